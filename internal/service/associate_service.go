package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/crm-service/internal/auth"
	"github.com/spec-kit/crm-service/internal/domain"
	"github.com/spec-kit/crm-service/internal/events"
	"github.com/spec-kit/crm-service/internal/repository"
	apperrors "github.com/spec-kit/crm-service/pkg/util/errorutil"
)

// AssociateInput mirrors the associate form; every field is required.
type AssociateInput struct {
	Email     string
	Username  string
	FirstName string
	LastName  string
}

func (in *AssociateInput) normalize() {
	in.Email = strings.TrimSpace(in.Email)
	in.Username = strings.TrimSpace(in.Username)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
}

// AssociateService manages the associates of an organizer's department.
type AssociateService struct {
	store      *repository.Store
	users      *UserService
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewAssociateService constructs the service.
func NewAssociateService(store *repository.Store, users *UserService, dispatcher events.Dispatcher, logger *zap.Logger) *AssociateService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssociateService{store: store, users: users, dispatcher: dispatcher, logger: logger}
}

// CreateAssociate creates an associate user with a random password and links
// it to the organizer's department.
func (s *AssociateService) CreateAssociate(ctx context.Context, p *auth.Principal, in AssociateInput) (*domain.Associate, error) {
	scope, err := requireOrganizer(p)
	if err != nil {
		return nil, err
	}
	in.normalize()
	if err := s.validate(in); err != nil {
		return nil, err
	}
	password, err := auth.RandomPassword()
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	hash, err := auth.HashPassword(password, s.users.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	user := &domain.User{
		Username:     in.Username,
		Email:        in.Email,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		PasswordHash: hash,
		IsAssociate:  true,
	}
	associate := &domain.Associate{DepartmentID: scope.DepartmentID, User: user}

	err = s.store.InTx(ctx, func(tx *repository.Store) error {
		if err := createUser(ctx, tx, user); err != nil {
			return err
		}
		associate.UserID = user.ID
		return apperrors.MapError(tx.Associates.Create(ctx, associate))
	})
	if err != nil {
		return nil, err
	}

	publish(ctx, s.dispatcher, s.logger, events.New(events.EventAssociateCreated, associate.ID, actorOf(p),
		events.AssociateCreatedPayload{
			AssociateID:  associate.ID,
			Email:        user.Email,
			Username:     user.Username,
			DepartmentID: associate.DepartmentID,
		}))
	return associate, nil
}

// ListAssociates returns the department's associates in creation order.
func (s *AssociateService) ListAssociates(ctx context.Context, p *auth.Principal) ([]domain.Associate, error) {
	scope, err := requireOrganizer(p)
	if err != nil {
		return nil, err
	}
	list, err := s.store.Associates.ListByDepartment(ctx, scope.DepartmentID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return list, nil
}

// GetAssociate loads an associate of the caller's department.
func (s *AssociateService) GetAssociate(ctx context.Context, p *auth.Principal, id string) (*domain.Associate, error) {
	scope, err := requireOrganizer(p)
	if err != nil {
		return nil, err
	}
	return loadAssociate(ctx, s.store, scope, id)
}

// UpdateAssociate rewrites the linked user's identity fields.
func (s *AssociateService) UpdateAssociate(ctx context.Context, p *auth.Principal, id string, in AssociateInput) (*domain.Associate, error) {
	scope, err := requireOrganizer(p)
	if err != nil {
		return nil, err
	}
	in.normalize()
	if err := s.validate(in); err != nil {
		return nil, err
	}

	var associate *domain.Associate
	err = s.store.InTx(ctx, func(tx *repository.Store) error {
		var err error
		associate, err = loadAssociate(ctx, tx, scope, id)
		if err != nil {
			return err
		}
		if err := ensureUnique(ctx, tx.Users, in.Username, in.Email, associate.UserID); err != nil {
			return err
		}
		user := associate.User
		user.Email = in.Email
		user.Username = in.Username
		user.FirstName = in.FirstName
		user.LastName = in.LastName
		if err := tx.Users.Update(ctx, user); err != nil {
			if apperrors.IsUniqueViolation(err) {
				return apperrors.NewConflict("username or email already taken", nil)
			}
			return apperrors.MapError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return associate, nil
}

// DeleteAssociate removes the associate together with its user account.
// Its tickets are released: no associate and no category.
func (s *AssociateService) DeleteAssociate(ctx context.Context, p *auth.Principal, id string) error {
	scope, err := requireOrganizer(p)
	if err != nil {
		return err
	}
	return s.store.InTx(ctx, func(tx *repository.Store) error {
		associate, err := loadAssociate(ctx, tx, scope, id)
		if err != nil {
			return err
		}
		released, err := tx.Tickets.ReleaseAssociate(ctx, associate.ID)
		if err != nil {
			return apperrors.MapError(err)
		}
		if err := tx.Associates.Delete(ctx, associate.ID); err != nil {
			return apperrors.MapError(err)
		}
		if err := tx.Users.Delete(ctx, associate.UserID); err != nil {
			return apperrors.MapError(err)
		}
		s.logger.Info("associate deleted", zap.String("associate_id", associate.ID), zap.Int64("released_tickets", released))
		return nil
	})
}

func (s *AssociateService) validate(in AssociateInput) error {
	details := map[string]any{}
	if err := s.users.checkIdentity(in.Username, in.Email); err != nil {
		if de := apperrors.ToDomainError(err); de != nil {
			for k, v := range de.Details {
				details[k] = v
			}
		}
	}
	if in.FirstName == "" {
		details["first_name"] = "This field is required."
	}
	if in.LastName == "" {
		details["last_name"] = "This field is required."
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("invalid input", details)
	}
	return nil
}

// loadAssociate fetches an associate and hides rows outside the department.
func loadAssociate(ctx context.Context, store *repository.Store, scope domain.Scope, id string) (*domain.Associate, error) {
	associate, err := store.Associates.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "associate", id)
	}
	if associate.DepartmentID != scope.DepartmentID {
		return nil, apperrors.NewNotFound("associate", map[string]any{"id": id})
	}
	return associate, nil
}
