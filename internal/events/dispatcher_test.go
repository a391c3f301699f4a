package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/crm-service/internal/domain"
)

func TestInMemoryDispatcher_Publish(t *testing.T) {
	d := NewInMemoryDispatcher()
	var seen []string

	d.Subscribe(EventTicketAssigned, func(_ context.Context, e Event) error {
		seen = append(seen, "first:"+e.SubjectID)
		return errors.New("smtp down")
	})
	d.Subscribe(EventTicketAssigned, func(_ context.Context, e Event) error {
		seen = append(seen, "second:"+e.SubjectID)
		return nil
	})
	d.Subscribe(EventFollowUpAdded, func(context.Context, Event) error {
		t.Fatal("unrelated handler called")
		return nil
	})

	evt := New(EventTicketAssigned, "t1", Actor{UserID: "u1", Role: domain.RoleOrganizer}, TicketAssignedPayload{AssociateID: "a1"})
	err := d.Publish(context.Background(), evt)

	require.Error(t, err)
	assert.ErrorContains(t, err, "smtp down")
	assert.Equal(t, []string{"first:t1", "second:t1"}, seen)
	assert.NotEmpty(t, evt.ID)
	assert.False(t, evt.Timestamp.IsZero())
}

func TestInMemoryDispatcher_NoListeners(t *testing.T) {
	d := NewInMemoryDispatcher()
	assert.NoError(t, d.Publish(context.Background(), New(EventTicketCreated, "t1", Actor{}, nil)))
}
