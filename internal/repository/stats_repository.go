package repository

import (
	"context"
	"time"
)

// DepartmentStats holds the dashboard counters for one department.
type DepartmentStats struct {
	TotalTickets    int
	RecentTickets   int
	RecentCompleted int
}

// StatsRepository computes read-side aggregates.
type StatsRepository interface {
	DepartmentStats(ctx context.Context, departmentID string, since time.Time) (DepartmentStats, error)
}

type statsRepository struct {
	db DB
}

// NewStatsRepository constructs the repository.
func NewStatsRepository(db DB) StatsRepository {
	return &statsRepository{db: db}
}

// DepartmentStats counts all tickets, tickets created since the cutoff, and
// completed tickets whose completion falls after the cutoff.
func (r *statsRepository) DepartmentStats(ctx context.Context, departmentID string, since time.Time) (DepartmentStats, error) {
	const query = `
        SELECT COUNT(*),
               COUNT(*) FILTER (WHERE t.created_at >= $2),
               COUNT(*) FILTER (WHERE c.name = 'completed' AND t.completed_at >= $2)
        FROM tickets t
        LEFT JOIN categories c ON c.id = t.category_id
        WHERE t.department_id = $1`
	var stats DepartmentStats
	err := r.db.QueryRow(ctx, query, departmentID, since).
		Scan(&stats.TotalTickets, &stats.RecentTickets, &stats.RecentCompleted)
	return stats, err
}
