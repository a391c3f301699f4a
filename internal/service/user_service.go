package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/spec-kit/crm-service/internal/auth"
	"github.com/spec-kit/crm-service/internal/domain"
	"github.com/spec-kit/crm-service/internal/repository"
	apperrors "github.com/spec-kit/crm-service/pkg/util/errorutil"
)

// UserService owns account creation.
type UserService struct {
	store      *repository.Store
	bcryptCost int
	validate   *validator.Validate
}

// NewUserService constructs the service.
func NewUserService(store *repository.Store, bcryptCost int) *UserService {
	return &UserService{store: store, bcryptCost: bcryptCost, validate: validator.New()}
}

// CreateUser hashes the password and persists the user. An organizer gets
// its department in the same transaction.
func (s *UserService) CreateUser(ctx context.Context, user *domain.User, password string) error {
	if err := s.checkIdentity(user.Username, user.Email); err != nil {
		return err
	}
	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	user.PasswordHash = hash
	return s.store.InTx(ctx, func(tx *repository.Store) error {
		return createUser(ctx, tx, user)
	})
}

func (s *UserService) checkIdentity(username, email string) error {
	details := map[string]any{}
	if strings.TrimSpace(username) == "" {
		details["username"] = "This field is required."
	}
	if strings.TrimSpace(email) == "" {
		details["email"] = "This field is required."
	} else if err := s.validate.Var(email, "email"); err != nil {
		details["email"] = "Enter a valid email address."
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("invalid input", details)
	}
	return nil
}

func createUser(ctx context.Context, store *repository.Store, user *domain.User) error {
	user.Username = strings.TrimSpace(user.Username)
	user.Email = strings.TrimSpace(user.Email)
	if err := ensureUnique(ctx, store.Users, user.Username, user.Email, ""); err != nil {
		return err
	}
	if err := store.Users.Create(ctx, user); err != nil {
		if apperrors.IsUniqueViolation(err) {
			return apperrors.NewConflict("username or email already taken", nil)
		}
		return apperrors.MapError(err)
	}
	if user.IsOrganizer {
		if _, err := store.Departments.GetOrCreateForUser(ctx, user.ID); err != nil {
			return apperrors.MapError(err)
		}
	}
	return nil
}

// ensureUnique reports taken usernames and emails as field errors.
// exceptID skips the user being edited.
func ensureUnique(ctx context.Context, users repository.UserRepository, username, email, exceptID string) error {
	details := map[string]any{}
	if existing, err := users.GetByUsername(ctx, username); err == nil && existing.ID != exceptID {
		details["username"] = "A user with that username already exists."
	} else if err != nil && !apperrors.IsNotFound(err) {
		return apperrors.MapError(err)
	}
	if existing, err := users.GetByEmail(ctx, email); err == nil && existing.ID != exceptID {
		details["email"] = "A user with that email already exists."
	} else if err != nil && !apperrors.IsNotFound(err) {
		return apperrors.MapError(err)
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("invalid input", details)
	}
	return nil
}
