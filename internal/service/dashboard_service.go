package service

import (
	"context"
	"time"

	"github.com/spec-kit/crm-service/internal/auth"
	"github.com/spec-kit/crm-service/internal/repository"
	apperrors "github.com/spec-kit/crm-service/pkg/util/errorutil"
)

// DashboardWindow is how far back the recent counters look.
const DashboardWindow = 30 * 24 * time.Hour

// Dashboard holds the organizer's ticket counters.
type Dashboard struct {
	TotalTicketCount  int
	TotalInPast30     int
	CompletedInPast30 int
	Since             time.Time
}

// DashboardService aggregates department statistics.
type DashboardService struct {
	stats repository.StatsRepository
	now   func() time.Time
}

// NewDashboardService constructs the service.
func NewDashboardService(store *repository.Store) *DashboardService {
	return &DashboardService{stats: store.Stats, now: time.Now}
}

// Dashboard counts all tickets of the department, those created in the last
// 30 days, and those completed in the last 30 days.
func (s *DashboardService) Dashboard(ctx context.Context, p *auth.Principal) (*Dashboard, error) {
	scope, err := requireOrganizer(p)
	if err != nil {
		return nil, err
	}
	since := s.now().UTC().Add(-DashboardWindow)
	stats, err := s.stats.DepartmentStats(ctx, scope.DepartmentID, since)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return &Dashboard{
		TotalTicketCount:  stats.TotalTickets,
		TotalInPast30:     stats.RecentTickets,
		CompletedInPast30: stats.RecentCompleted,
		Since:             since,
	}, nil
}
