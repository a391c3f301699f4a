package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/crm-service/internal/auth"
	"github.com/spec-kit/crm-service/internal/domain"
	"github.com/spec-kit/crm-service/internal/events"
	"github.com/spec-kit/crm-service/internal/repository"
	"github.com/spec-kit/crm-service/internal/storage"
	apperrors "github.com/spec-kit/crm-service/pkg/util/errorutil"
)

// FollowUpInput mirrors the follow-up form. Both fields are optional.
type FollowUpInput struct {
	Notes     *string
	File      *FileUpload
	ClearFile bool
}

// FollowUpService manages notes appended to tickets. Access follows the
// parent ticket's visibility.
type FollowUpService struct {
	store      *repository.Store
	files      storage.Storage
	dispatcher events.Dispatcher
	logger     *zap.Logger
	maxUpload  int64
}

// NewFollowUpService constructs the service.
func NewFollowUpService(deps TicketDependencies) *FollowUpService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FollowUpService{
		store:      deps.Store,
		files:      deps.Files,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		maxUpload:  deps.MaxUploadBytes,
	}
}

// CreateFollowUp appends a follow-up to a ticket in scope.
func (s *FollowUpService) CreateFollowUp(ctx context.Context, p *auth.Principal, ticketID string, in FollowUpInput) (*domain.FollowUp, error) {
	scope, err := requireScope(p)
	if err != nil {
		return nil, err
	}
	if err := s.validate(in); err != nil {
		return nil, err
	}

	followUp := &domain.FollowUp{TicketID: ticketID, Notes: trimmed(in.Notes)}
	var saved string
	err = s.store.InTx(ctx, func(tx *repository.Store) error {
		ticket, err := loadTicket(ctx, tx, scope, ticketID)
		if err != nil {
			return err
		}
		if in.File != nil {
			key, err := s.save(ctx, ticket.ID, in.File)
			if err != nil {
				return err
			}
			saved = key
			followUp.File = &key
		}
		return apperrors.MapError(tx.FollowUps.Create(ctx, followUp))
	})
	if err != nil {
		s.discard(ctx, saved)
		return nil, err
	}

	publish(ctx, s.dispatcher, s.logger, events.New(events.EventFollowUpAdded, ticketID, actorOf(p),
		events.FollowUpAddedPayload{
			FollowUpID:   followUp.ID,
			NotesPreview: preview(followUp.Notes, 140),
			HasFile:      followUp.File != nil,
		}))
	return followUp, nil
}

// UpdateFollowUp rewrites notes and optionally replaces or clears the file.
func (s *FollowUpService) UpdateFollowUp(ctx context.Context, p *auth.Principal, id string, in FollowUpInput) (*domain.FollowUp, error) {
	scope, err := requireScope(p)
	if err != nil {
		return nil, err
	}
	if err := s.validate(in); err != nil {
		return nil, err
	}

	var (
		followUp        *domain.FollowUp
		saved, replaced string
	)
	err = s.store.InTx(ctx, func(tx *repository.Store) error {
		var err error
		followUp, err = loadFollowUp(ctx, tx, scope, id)
		if err != nil {
			return err
		}
		followUp.Notes = trimmed(in.Notes)
		if in.File != nil || in.ClearFile {
			if followUp.File != nil {
				replaced = *followUp.File
			}
			followUp.File = nil
		}
		if in.File != nil {
			key, err := s.save(ctx, followUp.TicketID, in.File)
			if err != nil {
				return err
			}
			saved = key
			followUp.File = &key
		}
		return apperrors.MapError(tx.FollowUps.Update(ctx, followUp))
	})
	if err != nil {
		s.discard(ctx, saved)
		return nil, err
	}
	if replaced != saved {
		s.discard(ctx, replaced)
	}
	return followUp, nil
}

// DeleteFollowUp removes a follow-up and its file. It returns the parent ticket id.
func (s *FollowUpService) DeleteFollowUp(ctx context.Context, p *auth.Principal, id string) (string, error) {
	scope, err := requireScope(p)
	if err != nil {
		return "", err
	}
	var followUp *domain.FollowUp
	err = s.store.InTx(ctx, func(tx *repository.Store) error {
		var err error
		followUp, err = loadFollowUp(ctx, tx, scope, id)
		if err != nil {
			return err
		}
		return apperrors.MapError(tx.FollowUps.Delete(ctx, followUp.ID))
	})
	if err != nil {
		return "", err
	}
	if followUp.File != nil {
		s.discard(ctx, *followUp.File)
	}
	return followUp.TicketID, nil
}

func (s *FollowUpService) validate(in FollowUpInput) error {
	if in.File != nil && s.maxUpload > 0 && in.File.Size > s.maxUpload {
		return fieldError("file", "The uploaded file is too large.")
	}
	return nil
}

func (s *FollowUpService) save(ctx context.Context, ticketID string, upload *FileUpload) (string, error) {
	if s.files == nil {
		return "", apperrors.NewInternalError(errNoStorage)
	}
	key := storage.FollowUpFileKey(ticketID, upload.Filename)
	if err := s.files.Save(ctx, key, upload.Body, upload.Size, upload.ContentType); err != nil {
		return "", apperrors.NewInternalError(err)
	}
	return key, nil
}

func (s *FollowUpService) discard(ctx context.Context, key string) {
	if key == "" || s.files == nil {
		return
	}
	if err := s.files.Delete(ctx, key); err != nil {
		s.logger.Warn("failed to delete stored file", zap.String("key", key), zap.Error(err))
	}
}

// loadFollowUp fetches a follow-up whose ticket is visible in scope.
func loadFollowUp(ctx context.Context, store *repository.Store, scope domain.Scope, id string) (*domain.FollowUp, error) {
	followUp, err := store.FollowUps.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "follow-up", id)
	}
	if _, err := loadTicket(ctx, store, scope, followUp.TicketID); err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewNotFound("follow-up", map[string]any{"id": id})
		}
		return nil, err
	}
	return followUp, nil
}
