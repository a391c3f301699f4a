package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spec-kit/crm-service/internal/auth"
	"github.com/spec-kit/crm-service/internal/domain"
	"github.com/spec-kit/crm-service/internal/events"
	"github.com/spec-kit/crm-service/internal/repository"
	"github.com/spec-kit/crm-service/internal/storage"
	apperrors "github.com/spec-kit/crm-service/pkg/util/errorutil"
)

const maxTitleLength = 150

// TicketInput mirrors the ticket form.
//
// AssociateID nil leaves the ticket unassigned. Category nil keeps the stored
// category; an empty string clears it and lets the save hook derive one.
type TicketInput struct {
	Title              string
	Type               domain.TicketType
	Description        string
	AssociateID        *string
	Category           *string
	UploadedFile       *FileUpload
	UploadedImage      *FileUpload
	ClearUploadedFile  bool
	ClearUploadedImage bool
}

// TicketList is the ticket index of a caller. Unassigned is only filled for organizers.
type TicketList struct {
	Tickets    []domain.Ticket
	Unassigned []domain.Ticket
}

// TicketService coordinates ticket workflows.
type TicketService struct {
	store      *repository.Store
	files      storage.Storage
	dispatcher events.Dispatcher
	logger     *zap.Logger
	maxUpload  int64
	now        func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Store          *repository.Store
	Files          storage.Storage
	Dispatcher     events.Dispatcher
	Logger         *zap.Logger
	MaxUploadBytes int64
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		store:      deps.Store,
		files:      deps.Files,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		maxUpload:  deps.MaxUploadBytes,
		now:        time.Now,
	}
}

// CreateTicket creates a ticket in the organizer's department.
func (s *TicketService) CreateTicket(ctx context.Context, p *auth.Principal, in TicketInput) (*domain.Ticket, error) {
	scope, err := requireOrganizer(p)
	if err != nil {
		return nil, err
	}
	if err := s.validate(&in); err != nil {
		return nil, err
	}

	ticket := &domain.Ticket{
		Title:        in.Title,
		Type:         in.Type,
		Description:  in.Description,
		DepartmentID: scope.DepartmentID,
	}
	var saved []string
	err = s.store.InTx(ctx, func(tx *repository.Store) error {
		if err := resolveAssociate(ctx, tx, scope, in.AssociateID, ticket); err != nil {
			return err
		}
		if in.Category != nil && *in.Category != "" {
			name, ok := domain.ParseCategoryName(*in.Category)
			if !ok {
				return fieldError("category", invalidChoice)
			}
			ticket.Category = &name
		}
		if err := s.beforeSave(ctx, tx, nil, ticket); err != nil {
			return err
		}
		if err := tx.Tickets.Create(ctx, ticket); err != nil {
			return apperrors.MapError(err)
		}
		var err error
		saved, _, err = s.storeUploads(ctx, nil, ticket, in)
		if err != nil {
			return err
		}
		if len(saved) > 0 {
			return apperrors.MapError(tx.Tickets.Update(ctx, ticket))
		}
		return nil
	})
	if err != nil {
		s.discard(ctx, saved)
		return nil, err
	}

	publish(ctx, s.dispatcher, s.logger, events.New(events.EventTicketCreated, ticket.ID, actorOf(p),
		events.TicketCreatedPayload{
			DepartmentID: ticket.DepartmentID,
			Title:        ticket.Title,
			Type:         ticket.Type,
			AssociateID:  ticket.AssociateID,
		}))
	if ticket.IsAssigned() {
		s.publishAssigned(ctx, p, nil, ticket)
	}
	return ticket, nil
}

// ListTickets returns the caller's assigned tickets, plus the department's
// unassigned ones for organizers.
func (s *TicketService) ListTickets(ctx context.Context, p *auth.Principal) (*TicketList, error) {
	scope, err := requireScope(p)
	if err != nil {
		return nil, err
	}
	assigned, unassigned := true, false

	filter := repository.ScopeFilter(scope)
	filter.Assigned = &assigned
	tickets, err := s.store.Tickets.List(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	result := &TicketList{Tickets: tickets}

	if scope.AssociateID == nil {
		filter = repository.ScopeFilter(scope)
		filter.Assigned = &unassigned
		result.Unassigned, err = s.store.Tickets.List(ctx, filter)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
	}
	if err := s.attachAssociates(ctx, scope, result.Tickets); err != nil {
		return nil, err
	}
	return result, nil
}

// GetTicket loads one ticket in scope with its follow-ups.
func (s *TicketService) GetTicket(ctx context.Context, p *auth.Principal, id string) (*domain.Ticket, error) {
	scope, err := requireScope(p)
	if err != nil {
		return nil, err
	}
	ticket, err := loadTicket(ctx, s.store, scope, id)
	if err != nil {
		return nil, err
	}
	followUps, err := s.store.FollowUps.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	ticket.FollowUps = followUps
	if ticket.IsAssigned() {
		associate, err := s.store.Associates.GetByID(ctx, *ticket.AssociateID)
		if err != nil && !apperrors.IsNotFound(err) {
			return nil, apperrors.MapError(err)
		}
		ticket.Associate = associate
	}
	return ticket, nil
}

// UpdateTicket applies the full ticket form. Organizer only.
func (s *TicketService) UpdateTicket(ctx context.Context, p *auth.Principal, id string, in TicketInput) (*domain.Ticket, error) {
	scope, err := requireOrganizer(p)
	if err != nil {
		return nil, err
	}
	if err := s.validate(&in); err != nil {
		return nil, err
	}

	var (
		prev, ticket    *domain.Ticket
		saved, replaced []string
	)
	err = s.store.InTx(ctx, func(tx *repository.Store) error {
		var err error
		prev, err = loadTicket(ctx, tx, scope, id)
		if err != nil {
			return err
		}
		ticket = prev.Clone()
		ticket.Title = in.Title
		ticket.Type = in.Type
		ticket.Description = in.Description
		if err := resolveAssociate(ctx, tx, scope, in.AssociateID, ticket); err != nil {
			return err
		}
		if in.Category != nil {
			if *in.Category == "" {
				ticket.Category = nil
			} else {
				name, ok := domain.ParseCategoryName(*in.Category)
				if !ok {
					return fieldError("category", invalidChoice)
				}
				ticket.Category = &name
			}
		}
		if err := s.beforeSave(ctx, tx, prev, ticket); err != nil {
			return err
		}
		saved, replaced, err = s.storeUploads(ctx, prev, ticket, in)
		if err != nil {
			return err
		}
		return apperrors.MapError(tx.Tickets.Update(ctx, ticket))
	})
	if err != nil {
		s.discard(ctx, saved)
		return nil, err
	}
	s.discard(ctx, replaced)
	s.publishChanges(ctx, p, prev, ticket)
	return ticket, nil
}

// DeleteTicket removes a ticket, its follow-ups and their stored files.
func (s *TicketService) DeleteTicket(ctx context.Context, p *auth.Principal, id string) error {
	scope, err := requireOrganizer(p)
	if err != nil {
		return err
	}
	var ticket *domain.Ticket
	err = s.store.InTx(ctx, func(tx *repository.Store) error {
		var err error
		ticket, err = loadTicket(ctx, tx, scope, id)
		if err != nil {
			return err
		}
		ticket.FollowUps, err = tx.FollowUps.ListByTicket(ctx, ticket.ID)
		if err != nil {
			return apperrors.MapError(err)
		}
		return apperrors.MapError(tx.Tickets.Delete(ctx, ticket.ID))
	})
	if err != nil {
		return err
	}
	s.discard(ctx, ticket.StorageKeys())
	return nil
}

// AssignAssociate attaches an associate of the department to the ticket.
func (s *TicketService) AssignAssociate(ctx context.Context, p *auth.Principal, id, associateID string) (*domain.Ticket, error) {
	scope, err := requireOrganizer(p)
	if err != nil {
		return nil, err
	}
	associateID = strings.TrimSpace(associateID)
	if associateID == "" {
		return nil, fieldError("associate", "This field is required.")
	}

	var prev, ticket *domain.Ticket
	err = s.store.InTx(ctx, func(tx *repository.Store) error {
		var err error
		prev, err = loadTicket(ctx, tx, scope, id)
		if err != nil {
			return err
		}
		ticket = prev.Clone()
		if err := resolveAssociate(ctx, tx, scope, &associateID, ticket); err != nil {
			return err
		}
		if domain.Handover(prev, ticket) {
			ticket.Category = nil
		}
		if err := s.beforeSave(ctx, tx, prev, ticket); err != nil {
			return err
		}
		return apperrors.MapError(tx.Tickets.Update(ctx, ticket))
	})
	if err != nil {
		return nil, err
	}
	s.publishChanges(ctx, p, prev, ticket)
	return ticket, nil
}

// UpdateCategory moves a ticket to another stage. Associates may only pick
// work_in_progress or processed.
func (s *TicketService) UpdateCategory(ctx context.Context, p *auth.Principal, id, category string) (*domain.Ticket, error) {
	scope, err := requireScope(p)
	if err != nil {
		return nil, err
	}
	name, ok := domain.ParseCategoryName(category)
	if !ok || (p.Role() == domain.RoleAssociate && !name.AssociateSelectable()) {
		return nil, fieldError("category", invalidChoice)
	}

	var prev, ticket *domain.Ticket
	err = s.store.InTx(ctx, func(tx *repository.Store) error {
		var err error
		prev, err = loadTicket(ctx, tx, scope, id)
		if err != nil {
			return err
		}
		if !prev.IsAssigned() {
			return apperrors.NewValidationError("Associate must be selected before assigning a category.", nil)
		}
		ticket = prev.Clone()
		ticket.Category = &name
		if err := s.beforeSave(ctx, tx, prev, ticket); err != nil {
			return err
		}
		return apperrors.MapError(tx.Tickets.Update(ctx, ticket))
	})
	if err != nil {
		return nil, err
	}
	s.publishChanges(ctx, p, prev, ticket)
	return ticket, nil
}

// ExportTickets returns every ticket in the caller's scope, newest first.
func (s *TicketService) ExportTickets(ctx context.Context, p *auth.Principal) ([]domain.Ticket, error) {
	scope, err := requireScope(p)
	if err != nil {
		return nil, err
	}
	tickets, err := s.store.Tickets.List(ctx, repository.ScopeFilter(scope))
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// beforeSave runs on every insert and update: it derives the category from
// the associate, resolves the category row and stamps completion.
// prev is nil on insert.
func (s *TicketService) beforeSave(ctx context.Context, tx *repository.Store, prev, next *domain.Ticket) error {
	next.Category = domain.DeriveCategory(next)
	next.CategoryID = nil
	if next.Category != nil {
		category, err := tx.Categories.GetOrCreate(ctx, *next.Category)
		if err != nil {
			return apperrors.MapError(err)
		}
		next.CategoryID = &category.ID
	}
	domain.StampCompletion(prev, next, s.now().UTC())
	return nil
}

func (s *TicketService) validate(in *TicketInput) error {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.AssociateID = trimmed(in.AssociateID)

	details := map[string]any{}
	switch {
	case in.Title == "":
		details["title"] = "This field is required."
	case utf8.RuneCountInString(in.Title) > maxTitleLength:
		details["title"] = "Ensure this value has at most 150 characters."
	}
	if !in.Type.Valid() {
		details["type"] = invalidChoice
	}
	for field, upload := range map[string]*FileUpload{"uploaded_file": in.UploadedFile, "uploaded_image": in.UploadedImage} {
		if upload != nil && s.maxUpload > 0 && upload.Size > s.maxUpload {
			details[field] = "The uploaded file is too large."
		}
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("invalid input", details)
	}
	if in.Description == "" {
		in.Description = domain.DefaultTicketDescription
	}
	return nil
}

// storeUploads writes new files and returns the keys written and the keys
// they replaced.
func (s *TicketService) storeUploads(ctx context.Context, prev, ticket *domain.Ticket, in TicketInput) (saved, replaced []string, err error) {
	slots := []struct {
		upload *FileUpload
		clear  bool
		field  **string
		old    *string
	}{
		{in.UploadedFile, in.ClearUploadedFile, &ticket.UploadedFile, nil},
		{in.UploadedImage, in.ClearUploadedImage, &ticket.UploadedImage, nil},
	}
	if prev != nil {
		slots[0].old = prev.UploadedFile
		slots[1].old = prev.UploadedImage
	}

	for _, slot := range slots {
		if slot.upload == nil && !slot.clear {
			continue
		}
		if slot.old != nil {
			replaced = append(replaced, *slot.old)
		}
		*slot.field = nil
		if slot.upload == nil {
			continue
		}
		if s.files == nil {
			return saved, nil, apperrors.NewInternalError(errNoStorage)
		}
		key := storage.TicketFileKey(ticket.ID, slot.upload.Filename)
		if err := s.files.Save(ctx, key, slot.upload.Body, slot.upload.Size, slot.upload.ContentType); err != nil {
			return saved, nil, apperrors.NewInternalError(err)
		}
		saved = append(saved, key)
		*slot.field = &key
	}
	return saved, replaced, nil
}

// discard deletes stored files best-effort.
func (s *TicketService) discard(ctx context.Context, keys []string) {
	if s.files == nil {
		return
	}
	for _, key := range keys {
		if err := s.files.Delete(ctx, key); err != nil {
			s.logger.Warn("failed to delete stored file", zap.String("key", key), zap.Error(err))
		}
	}
}

func (s *TicketService) attachAssociates(ctx context.Context, scope domain.Scope, tickets []domain.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	associates, err := s.store.Associates.ListByDepartment(ctx, scope.DepartmentID)
	if err != nil {
		return apperrors.MapError(err)
	}
	byID := make(map[string]*domain.Associate, len(associates))
	for i := range associates {
		byID[associates[i].ID] = &associates[i]
	}
	for i := range tickets {
		if tickets[i].AssociateID != nil {
			tickets[i].Associate = byID[*tickets[i].AssociateID]
		}
	}
	return nil
}

func (s *TicketService) publishChanges(ctx context.Context, p *auth.Principal, prev, next *domain.Ticket) {
	if next.IsAssigned() && (!prev.IsAssigned() || *prev.AssociateID != *next.AssociateID) {
		s.publishAssigned(ctx, p, prev, next)
	}
	if !sameCategoryName(prev.Category, next.Category) {
		publish(ctx, s.dispatcher, s.logger, events.New(events.EventTicketCategoryChanged, next.ID, actorOf(p),
			events.TicketCategoryChangedPayload{
				Title:       next.Title,
				OldCategory: prev.Category,
				NewCategory: next.Category,
			}))
	}
}

func (s *TicketService) publishAssigned(ctx context.Context, p *auth.Principal, prev, next *domain.Ticket) {
	payload := events.TicketAssignedPayload{Title: next.Title, AssociateID: *next.AssociateID}
	if next.Associate != nil {
		payload.AssociateEmail = next.Associate.Email()
	}
	if prev != nil {
		payload.PreviousID = prev.AssociateID
	}
	publish(ctx, s.dispatcher, s.logger, events.New(events.EventTicketAssigned, next.ID, actorOf(p), payload))
}

// resolveAssociate sets the ticket's associate after checking it belongs to
// the department. A nil id unassigns the ticket.
func resolveAssociate(ctx context.Context, tx *repository.Store, scope domain.Scope, associateID *string, ticket *domain.Ticket) error {
	if associateID == nil {
		ticket.AssociateID = nil
		ticket.Associate = nil
		return nil
	}
	associate, err := tx.Associates.GetByID(ctx, *associateID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return fieldError("associate", invalidChoice)
		}
		return apperrors.MapError(err)
	}
	if associate.DepartmentID != scope.DepartmentID {
		return fieldError("associate", invalidChoice)
	}
	ticket.AssociateID = &associate.ID
	ticket.Associate = associate
	return nil
}

// loadTicket fetches a ticket and hides rows outside the scope.
func loadTicket(ctx context.Context, store *repository.Store, scope domain.Scope, id string) (*domain.Ticket, error) {
	ticket, err := store.Tickets.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "ticket", id)
	}
	if !scope.Allows(ticket) {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"id": id})
	}
	return ticket, nil
}

func sameCategoryName(a, b *domain.CategoryName) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
