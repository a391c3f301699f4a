package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/spec-kit/crm-service/pkg/util/errorutil"
)

func TestDashboard(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	org := w.organizer("olga")
	ann := w.associate(org, "ann")

	w.ticket(org, "open", nil)
	done := w.ticket(org, "done", ann)
	w.ticket(org, "busy", ann)
	w.ticket(w.organizer("oscar"), "foreign", nil)

	_, err := w.tickets.UpdateCategory(ctx, org, done.ID, "completed")
	require.NoError(t, err)

	dash, err := w.dashboard.Dashboard(ctx, org)
	require.NoError(t, err)
	assert.Equal(t, 3, dash.TotalTicketCount)
	assert.Equal(t, 3, dash.TotalInPast30)
	assert.Equal(t, 1, dash.CompletedInPast30)
	assert.Equal(t, w.clock.Add(-DashboardWindow), dash.Since)

	w.dashboard.now = func() time.Time { return w.clock.AddDate(0, 2, 0) }
	dash, err = w.dashboard.Dashboard(ctx, org)
	require.NoError(t, err)
	assert.Equal(t, 3, dash.TotalTicketCount)
	assert.Zero(t, dash.TotalInPast30)
	assert.Zero(t, dash.CompletedInPast30)

	_, err = w.dashboard.Dashboard(ctx, ann)
	assert.Equal(t, "FORBIDDEN", apperrors.ToDomainError(err).Code)
}
