package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/crm-service/internal/domain"
	"github.com/spec-kit/crm-service/internal/events"
	apperrors "github.com/spec-kit/crm-service/pkg/util/errorutil"
)

func categoryOf(t *testing.T, ticket *domain.Ticket) domain.CategoryName {
	t.Helper()
	require.NotNil(t, ticket.Category, "ticket %s has no category", ticket.ID)
	return *ticket.Category
}

func TestCreateTicket_Defaults(t *testing.T) {
	w := newWorld(t)
	org := w.organizer("olga")

	ticket, err := w.tickets.CreateTicket(context.Background(), org, TicketInput{
		Title:    "  Fix the printer ",
		Type:     domain.TicketType2,
		Category: strPtr("completed"),
	})
	require.NoError(t, err)

	assert.Equal(t, "Fix the printer", ticket.Title)
	assert.Equal(t, domain.DefaultTicketDescription, ticket.Description)
	assert.Equal(t, org.Department.ID, ticket.DepartmentID)
	assert.Nil(t, ticket.AssociateID)
	assert.Nil(t, ticket.Category, "a ticket without associate never carries a category")
	assert.Nil(t, ticket.CompletedAt)
	assert.Equal(t, []events.EventType{events.EventTicketCreated}, w.events.types())
}

func TestCreateTicket_WithAssociateStartsAssigned(t *testing.T) {
	w := newWorld(t)
	org := w.organizer("olga")
	ann := w.associate(org, "ann")

	ticket := w.ticket(org, "Call supplier", ann)

	assert.Equal(t, domain.CategoryAssigned, categoryOf(t, ticket))
	require.NotNil(t, ticket.CategoryID)
	stored, err := w.store.Categories.GetByID(context.Background(), *ticket.CategoryID)
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryAssigned, stored.Name)

	assigned, ok := w.events.last(events.EventTicketAssigned)
	require.True(t, ok)
	payload := assigned.Payload.(events.TicketAssignedPayload)
	assert.Equal(t, "ann@example.com", payload.AssociateEmail)
}

func TestCreateTicket_Validation(t *testing.T) {
	w := newWorld(t)
	org := w.organizer("olga")
	ctx := context.Background()

	tests := []struct {
		name  string
		in    TicketInput
		field string
		msg   string
	}{
		{"missing title", TicketInput{Type: domain.TicketType1}, "title", "This field is required."},
		{"long title", TicketInput{Title: strings.Repeat("x", 151), Type: domain.TicketType1}, "title", "Ensure this value has at most 150 characters."},
		{"bad type", TicketInput{Title: "t", Type: 9}, "type", invalidChoice},
		{"unknown associate", TicketInput{Title: "t", Type: domain.TicketType1, AssociateID: strPtr("assoc-404")}, "associate", invalidChoice},
		{"huge file", TicketInput{Title: "t", Type: domain.TicketType1, UploadedFile: upload("a.bin", strings.Repeat("x", 2048))}, "uploaded_file", "The uploaded file is too large."},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := w.tickets.CreateTicket(ctx, org, tc.in)
			de := apperrors.ToDomainError(err)
			require.NotNil(t, de)
			assert.Equal(t, "VALIDATION_FAILED", de.Code)
			assert.Equal(t, tc.msg, de.Details[tc.field])
		})
	}

	count, err := w.store.Tickets.Count(ctx, w.scopeFilter(org))
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestCreateTicket_AssociateFromOtherDepartment(t *testing.T) {
	w := newWorld(t)
	olga := w.organizer("olga")
	oscar := w.organizer("oscar")
	bob := w.associate(oscar, "bob")

	id := bob.Associate.ID
	_, err := w.tickets.CreateTicket(context.Background(), olga, TicketInput{Title: "t", Type: domain.TicketType1, AssociateID: &id})
	de := apperrors.ToDomainError(err)
	require.NotNil(t, de)
	assert.Equal(t, invalidChoice, de.Details["associate"])
}

func TestCreateTicket_AssociateCannotCreate(t *testing.T) {
	w := newWorld(t)
	org := w.organizer("olga")
	ann := w.associate(org, "ann")

	_, err := w.tickets.CreateTicket(context.Background(), ann, TicketInput{Title: "t", Type: domain.TicketType1})
	assert.Equal(t, "FORBIDDEN", apperrors.ToDomainError(err).Code)

	_, err = w.tickets.CreateTicket(context.Background(), nil, TicketInput{Title: "t", Type: domain.TicketType1})
	assert.Equal(t, "UNAUTHORIZED", apperrors.ToDomainError(err).Code)
}

func TestCreateTicket_StoresUploads(t *testing.T) {
	w := newWorld(t)
	org := w.organizer("olga")

	ticket, err := w.tickets.CreateTicket(context.Background(), org, TicketInput{
		Title:         "With files",
		Type:          domain.TicketType3,
		UploadedFile:  upload("../spec sheet.pdf", "pdf-bytes"),
		UploadedImage: upload("photo.png", "png-bytes"),
	})
	require.NoError(t, err)

	require.NotNil(t, ticket.UploadedFile)
	require.NotNil(t, ticket.UploadedImage)
	assert.True(t, strings.HasPrefix(*ticket.UploadedFile, "ticket_files/ticket_"+ticket.ID+"/"))
	assert.True(t, w.files.has(*ticket.UploadedFile))
	assert.True(t, w.files.has(*ticket.UploadedImage))

	stored, err := w.store.Tickets.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, ticket.UploadedFile, stored.UploadedFile)
}

func TestUpdateTicket_CategoryFollowsAssociate(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	org := w.organizer("olga")
	ann := w.associate(org, "ann")
	ben := w.associate(org, "ben")

	ticket := w.ticket(org, "Move office", ann)
	annID, benID := ann.Associate.ID, ben.Associate.ID

	ticket, err := w.tickets.UpdateCategory(ctx, ann, ticket.ID, "work_in_progress")
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryWorkInProgress, categoryOf(t, ticket))

	t.Run("same associate keeps stage", func(t *testing.T) {
		updated, err := w.tickets.UpdateTicket(ctx, org, ticket.ID, TicketInput{
			Title: "Move office now", Type: domain.TicketType1, AssociateID: &annID,
		})
		require.NoError(t, err)
		assert.Equal(t, domain.CategoryWorkInProgress, categoryOf(t, updated))
		assert.Equal(t, "Move office now", updated.Title)
	})

	t.Run("new associate keeps submitted category", func(t *testing.T) {
		updated, err := w.tickets.UpdateTicket(ctx, org, ticket.ID, TicketInput{
			Title: "Move office", Type: domain.TicketType1, AssociateID: &benID, Category: strPtr("work_in_progress"),
		})
		require.NoError(t, err)
		assert.Equal(t, domain.CategoryWorkInProgress, categoryOf(t, updated))
		assert.Equal(t, benID, *updated.AssociateID)

		ev, ok := w.events.last(events.EventTicketAssigned)
		require.True(t, ok)
		payload := ev.Payload.(events.TicketAssignedPayload)
		require.NotNil(t, payload.PreviousID)
		assert.Equal(t, annID, *payload.PreviousID)
	})

	t.Run("unassigning clears category", func(t *testing.T) {
		updated, err := w.tickets.UpdateTicket(ctx, org, ticket.ID, TicketInput{
			Title: "Move office", Type: domain.TicketType1,
		})
		require.NoError(t, err)
		assert.Nil(t, updated.AssociateID)
		assert.Nil(t, updated.Category)
		assert.Nil(t, updated.CategoryID)

		stored, err := w.store.Tickets.GetByID(ctx, ticket.ID)
		require.NoError(t, err)
		assert.Nil(t, stored.Category)
	})
}

func TestUpdateTicket_ReplacesFiles(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	org := w.organizer("olga")

	ticket, err := w.tickets.CreateTicket(ctx, org, TicketInput{
		Title: "Files", Type: domain.TicketType1,
		UploadedFile:  upload("old.pdf", "v1"),
		UploadedImage: upload("img.png", "img"),
	})
	require.NoError(t, err)
	oldFile, image := *ticket.UploadedFile, *ticket.UploadedImage

	updated, err := w.tickets.UpdateTicket(ctx, org, ticket.ID, TicketInput{
		Title: "Files", Type: domain.TicketType1,
		UploadedFile:       upload("new.pdf", "v2"),
		ClearUploadedImage: true,
	})
	require.NoError(t, err)

	require.NotNil(t, updated.UploadedFile)
	assert.NotEqual(t, oldFile, *updated.UploadedFile)
	assert.True(t, w.files.has(*updated.UploadedFile))
	assert.False(t, w.files.has(oldFile))
	assert.Nil(t, updated.UploadedImage)
	assert.False(t, w.files.has(image))
}

func TestUpdateCategory(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	org := w.organizer("olga")
	ann := w.associate(org, "ann")
	ticket := w.ticket(org, "Audit", ann)

	t.Run("associate limited to progress stages", func(t *testing.T) {
		for _, name := range []string{"assigned", "completed", "returned", "bogus"} {
			_, err := w.tickets.UpdateCategory(ctx, ann, ticket.ID, name)
			de := apperrors.ToDomainError(err)
			require.NotNil(t, de, name)
			assert.Equal(t, invalidChoice, de.Details["category"], name)
		}
		updated, err := w.tickets.UpdateCategory(ctx, ann, ticket.ID, "processed")
		require.NoError(t, err)
		assert.Equal(t, domain.CategoryProcessed, categoryOf(t, updated))
	})

	t.Run("completion is stamped once", func(t *testing.T) {
		w.clock = epoch.Add(48 * time.Hour)
		updated, err := w.tickets.UpdateCategory(ctx, org, ticket.ID, "completed")
		require.NoError(t, err)
		require.NotNil(t, updated.CompletedAt)
		assert.Equal(t, w.clock, *updated.CompletedAt)
		stamped := *updated.CompletedAt

		w.clock = epoch.Add(72 * time.Hour)
		annID := ann.Associate.ID
		updated, err = w.tickets.UpdateTicket(ctx, org, ticket.ID, TicketInput{Title: "Audit v2", Type: domain.TicketType1, AssociateID: &annID})
		require.NoError(t, err)
		assert.Equal(t, domain.CategoryCompleted, categoryOf(t, updated))
		assert.Equal(t, stamped, *updated.CompletedAt)

		ev, ok := w.events.last(events.EventTicketCategoryChanged)
		require.True(t, ok)
		assert.Equal(t, domain.CategoryCompleted, *ev.Payload.(events.TicketCategoryChangedPayload).NewCategory)
	})

	t.Run("unassigned ticket rejects category", func(t *testing.T) {
		orphan := w.ticket(org, "Orphan", nil)
		_, err := w.tickets.UpdateCategory(ctx, org, orphan.ID, "processed")
		de := apperrors.ToDomainError(err)
		require.NotNil(t, de)
		assert.Equal(t, "Associate must be selected before assigning a category.", de.Message)
	})
}

func TestAssignAssociate(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	org := w.organizer("olga")
	ann := w.associate(org, "ann")
	ticket := w.ticket(org, "Unowned", nil)

	updated, err := w.tickets.AssignAssociate(ctx, org, ticket.ID, ann.Associate.ID)
	require.NoError(t, err)
	assert.Equal(t, ann.Associate.ID, *updated.AssociateID)
	assert.Equal(t, domain.CategoryAssigned, categoryOf(t, updated))

	_, err = w.tickets.UpdateCategory(ctx, ann, ticket.ID, "processed")
	require.NoError(t, err)

	t.Run("same associate keeps stage", func(t *testing.T) {
		again, err := w.tickets.AssignAssociate(ctx, org, ticket.ID, ann.Associate.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.CategoryProcessed, categoryOf(t, again))
	})

	t.Run("handover restarts at assigned", func(t *testing.T) {
		ben := w.associate(org, "ben")
		moved, err := w.tickets.AssignAssociate(ctx, org, ticket.ID, ben.Associate.ID)
		require.NoError(t, err)
		assert.Equal(t, ben.Associate.ID, *moved.AssociateID)
		assert.Equal(t, domain.CategoryAssigned, categoryOf(t, moved))
	})

	_, err = w.tickets.AssignAssociate(ctx, org, ticket.ID, " ")
	assert.Equal(t, "This field is required.", apperrors.ToDomainError(err).Details["associate"])

	_, err = w.tickets.AssignAssociate(ctx, ann, ticket.ID, ann.Associate.ID)
	assert.Equal(t, "FORBIDDEN", apperrors.ToDomainError(err).Code)
}

func TestTicketVisibility(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	olga := w.organizer("olga")
	oscar := w.organizer("oscar")
	ann := w.associate(olga, "ann")
	ben := w.associate(olga, "ben")

	mine := w.ticket(olga, "Ann's", ann)
	bens := w.ticket(olga, "Ben's", ben)
	open := w.ticket(olga, "Open", nil)
	foreign := w.ticket(oscar, "Oscar's", nil)

	t.Run("organizer list splits unassigned", func(t *testing.T) {
		list, err := w.tickets.ListTickets(ctx, olga)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{mine.ID, bens.ID}, ids(list.Tickets))
		assert.Equal(t, []string{open.ID}, ids(list.Unassigned))
		for _, tk := range list.Tickets {
			assert.NotNil(t, tk.Associate)
		}
	})

	t.Run("associate sees own tickets only", func(t *testing.T) {
		list, err := w.tickets.ListTickets(ctx, ann)
		require.NoError(t, err)
		assert.Equal(t, []string{mine.ID}, ids(list.Tickets))
		assert.Empty(t, list.Unassigned)

		_, err = w.tickets.GetTicket(ctx, ann, bens.ID)
		assert.True(t, apperrors.IsNotFound(err))
		_, err = w.tickets.GetTicket(ctx, ann, open.ID)
		assert.True(t, apperrors.IsNotFound(err))
		_, err = w.tickets.UpdateCategory(ctx, ann, bens.ID, "processed")
		assert.True(t, apperrors.IsNotFound(err))
	})

	t.Run("other department is not found", func(t *testing.T) {
		_, err := w.tickets.GetTicket(ctx, olga, foreign.ID)
		assert.True(t, apperrors.IsNotFound(err))
		err = w.tickets.DeleteTicket(ctx, olga, foreign.ID)
		assert.True(t, apperrors.IsNotFound(err))
		_, err = w.tickets.UpdateTicket(ctx, olga, foreign.ID, TicketInput{Title: "x", Type: domain.TicketType1})
		assert.True(t, apperrors.IsNotFound(err))
	})

	t.Run("export is scoped", func(t *testing.T) {
		rows, err := w.tickets.ExportTickets(ctx, olga)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{mine.ID, bens.ID, open.ID}, ids(rows))

		rows, err = w.tickets.ExportTickets(ctx, ben)
		require.NoError(t, err)
		assert.Equal(t, []string{bens.ID}, ids(rows))

		_, err = w.tickets.ExportTickets(ctx, nil)
		assert.Equal(t, "UNAUTHORIZED", apperrors.ToDomainError(err).Code)
	})
}

func TestGetTicket_IncludesFollowUps(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	org := w.organizer("olga")
	ann := w.associate(org, "ann")
	ticket := w.ticket(org, "Notes", ann)

	_, err := w.followUps.CreateFollowUp(ctx, org, ticket.ID, FollowUpInput{Notes: strPtr("first")})
	require.NoError(t, err)
	_, err = w.followUps.CreateFollowUp(ctx, ann, ticket.ID, FollowUpInput{Notes: strPtr("second")})
	require.NoError(t, err)

	got, err := w.tickets.GetTicket(ctx, ann, ticket.ID)
	require.NoError(t, err)
	require.Len(t, got.FollowUps, 2)
	assert.Equal(t, "second", *got.FollowUps[0].Notes)
	require.NotNil(t, got.Associate)
	assert.Equal(t, "ann@example.com", got.Associate.Email())
}

func TestDeleteTicket_RemovesFilesAndFollowUps(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	org := w.organizer("olga")

	ticket, err := w.tickets.CreateTicket(ctx, org, TicketInput{
		Title: "Doomed", Type: domain.TicketType1, UploadedFile: upload("a.pdf", "a"),
	})
	require.NoError(t, err)
	followUp, err := w.followUps.CreateFollowUp(ctx, org, ticket.ID, FollowUpInput{File: upload("b.txt", "b")})
	require.NoError(t, err)

	require.NoError(t, w.tickets.DeleteTicket(ctx, org, ticket.ID))

	_, err = w.store.Tickets.GetByID(ctx, ticket.ID)
	assert.True(t, apperrors.IsNotFound(err))
	_, err = w.store.FollowUps.GetByID(ctx, followUp.ID)
	assert.True(t, apperrors.IsNotFound(err))
	assert.False(t, w.files.has(*ticket.UploadedFile))
	assert.False(t, w.files.has(*followUp.File))
}

func ids(tickets []domain.Ticket) []string {
	out := make([]string, 0, len(tickets))
	for _, t := range tickets {
		out = append(out, t.ID)
	}
	return out
}

func TestCreateTicket_FileAndImageWithSameName(t *testing.T) {
	w := newWorld(t)
	ticket, err := w.tickets.CreateTicket(context.Background(), w.organizer("olga"), TicketInput{
		Title: "Scans", Type: domain.TicketType1,
		UploadedFile:  upload("scan.png", "file"),
		UploadedImage: upload("scan.png", "image"),
	})
	require.NoError(t, err)
	require.NotEqual(t, *ticket.UploadedFile, *ticket.UploadedImage)
	assert.True(t, w.files.has(*ticket.UploadedFile))
	assert.True(t, w.files.has(*ticket.UploadedImage))
}

func TestUpdateTicket_CompletedSurvivesNewAssociate(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	org := w.organizer("olga")
	ann := w.associate(org, "ann")
	ben := w.associate(org, "ben")
	ticket := w.ticket(org, "Audit", ann)

	done, err := w.tickets.UpdateCategory(ctx, org, ticket.ID, "completed")
	require.NoError(t, err)
	require.NotNil(t, done.CompletedAt)
	stamp := *done.CompletedAt

	w.clock = w.clock.Add(time.Hour)
	benID := ben.Associate.ID
	updated, err := w.tickets.UpdateTicket(ctx, org, ticket.ID, TicketInput{
		Title: "Audit", Type: domain.TicketType1, AssociateID: &benID, Category: strPtr("completed"),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryCompleted, categoryOf(t, updated))
	require.NotNil(t, updated.CompletedAt)
	assert.True(t, stamp.Equal(*updated.CompletedAt))
}
