package service

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/crm-service/internal/events"
	"github.com/spec-kit/crm-service/internal/storage"
	apperrors "github.com/spec-kit/crm-service/pkg/util/errorutil"
)

func TestCreateFollowUp(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	org := w.organizer("olga")
	ann := w.associate(org, "ann")
	ticket := w.ticket(org, "Notes", ann)

	followUp, err := w.followUps.CreateFollowUp(ctx, ann, ticket.ID, FollowUpInput{
		Notes: strPtr("  called the client  "),
		File:  upload("minutes.pdf", "pdf"),
	})
	require.NoError(t, err)

	assert.Equal(t, "called the client", *followUp.Notes)
	require.NotNil(t, followUp.File)
	assert.True(t, strings.HasPrefix(*followUp.File, "ticket_files/ticket_"+ticket.ID+"/ticket_followups/"))
	assert.Equal(t, "minutes.pdf", storage.OriginalFilename(*followUp.File))
	assert.True(t, w.files.has(*followUp.File))

	ev, ok := w.events.last(events.EventFollowUpAdded)
	require.True(t, ok)
	assert.Equal(t, ticket.ID, ev.SubjectID)
	assert.True(t, ev.Payload.(events.FollowUpAddedPayload).HasFile)
}

func TestCreateFollowUp_EmptyIsAllowed(t *testing.T) {
	w := newWorld(t)
	org := w.organizer("olga")
	ticket := w.ticket(org, "Blank", nil)

	followUp, err := w.followUps.CreateFollowUp(context.Background(), org, ticket.ID, FollowUpInput{Notes: strPtr("   ")})
	require.NoError(t, err)
	assert.Nil(t, followUp.Notes)
	assert.Nil(t, followUp.File)
}

func TestFollowUps_FollowTicketScope(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	org := w.organizer("olga")
	ann := w.associate(org, "ann")
	ben := w.associate(org, "ben")
	bens := w.ticket(org, "Ben's", ben)

	_, err := w.followUps.CreateFollowUp(ctx, ann, bens.ID, FollowUpInput{Notes: strPtr("sneaky")})
	assert.True(t, apperrors.IsNotFound(err))

	followUp, err := w.followUps.CreateFollowUp(ctx, ben, bens.ID, FollowUpInput{Notes: strPtr("mine")})
	require.NoError(t, err)

	_, err = w.followUps.UpdateFollowUp(ctx, ann, followUp.ID, FollowUpInput{Notes: strPtr("edit")})
	assert.True(t, apperrors.IsNotFound(err))
	_, err = w.followUps.DeleteFollowUp(ctx, ann, followUp.ID)
	assert.True(t, apperrors.IsNotFound(err))

	outsider := w.organizer("oscar")
	_, err = w.followUps.DeleteFollowUp(ctx, outsider, followUp.ID)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestUpdateFollowUp_ReplacesFile(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	org := w.organizer("olga")
	ticket := w.ticket(org, "Files", nil)

	followUp, err := w.followUps.CreateFollowUp(ctx, org, ticket.ID, FollowUpInput{File: upload("v1.pdf", "1")})
	require.NoError(t, err)
	first := *followUp.File

	updated, err := w.followUps.UpdateFollowUp(ctx, org, followUp.ID, FollowUpInput{Notes: strPtr("new"), File: upload("v2.pdf", "2")})
	require.NoError(t, err)
	assert.Equal(t, "new", *updated.Notes)
	assert.True(t, w.files.has(*updated.File))
	assert.False(t, w.files.has(first))

	cleared, err := w.followUps.UpdateFollowUp(ctx, org, followUp.ID, FollowUpInput{ClearFile: true})
	require.NoError(t, err)
	assert.Nil(t, cleared.File)
	assert.False(t, w.files.has(*updated.File))
}

func TestDeleteFollowUp(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	org := w.organizer("olga")
	ticket := w.ticket(org, "Files", nil)

	followUp, err := w.followUps.CreateFollowUp(ctx, org, ticket.ID, FollowUpInput{File: upload("gone.pdf", "x")})
	require.NoError(t, err)

	ticketID, err := w.followUps.DeleteFollowUp(ctx, org, followUp.ID)
	require.NoError(t, err)
	assert.Equal(t, ticket.ID, ticketID)
	assert.False(t, w.files.has(*followUp.File))

	_, err = w.followUps.DeleteFollowUp(ctx, org, followUp.ID)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestFollowUp_TooLarge(t *testing.T) {
	w := newWorld(t)
	org := w.organizer("olga")
	ticket := w.ticket(org, "Big", nil)

	_, err := w.followUps.CreateFollowUp(context.Background(), org, ticket.ID, FollowUpInput{File: upload("big.bin", strings.Repeat("x", 4096))})
	assert.Equal(t, "The uploaded file is too large.", apperrors.ToDomainError(err).Details["file"])
}

func TestFollowUps_SameFilenameKeepSeparateFiles(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	org := w.organizer("olga")
	ann := w.associate(org, "ann")
	ticket := w.ticket(org, "Reports", ann)

	first, err := w.followUps.CreateFollowUp(ctx, ann, ticket.ID, FollowUpInput{File: upload("report.pdf", "AAA")})
	require.NoError(t, err)
	second, err := w.followUps.CreateFollowUp(ctx, ann, ticket.ID, FollowUpInput{File: upload("report.pdf", "BBB")})
	require.NoError(t, err)
	require.NotEqual(t, *first.File, *second.File)

	_, err = w.followUps.DeleteFollowUp(ctx, ann, second.ID)
	require.NoError(t, err)
	assert.False(t, w.files.has(*second.File))
	require.True(t, w.files.has(*first.File))

	rc, _, err := w.files.Open(ctx, *first.File)
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "AAA", string(body))
}
