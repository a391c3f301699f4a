package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/crm-service/internal/auth"
	"github.com/spec-kit/crm-service/internal/config"
	"github.com/spec-kit/crm-service/internal/domain"
	"github.com/spec-kit/crm-service/internal/events"
	"github.com/spec-kit/crm-service/internal/repository"
	apperrors "github.com/spec-kit/crm-service/pkg/util/errorutil"
)

const minPasswordLength = 8

// Session is the result of a successful signup or login.
type Session struct {
	User        *domain.User
	AccessToken string
	Token       domain.Token
}

// SignupInput mirrors the registration form.
type SignupInput struct {
	Username  string
	Email     string
	Password1 string
	Password2 string
}

// AuthService coordinates registration, login and password flows.
type AuthService struct {
	store      *repository.Store
	users      *UserService
	tokens     *auth.TokenManager
	revoker    auth.Revoker
	dispatcher events.Dispatcher
	logger     *zap.Logger
	bcryptCost int
	resetTTL   time.Duration
	now        func() time.Time
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	Store      *repository.Store
	Users      *UserService
	Tokens     *auth.TokenManager
	Revoker    auth.Revoker
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	resetTTL := time.Duration(cfg.Auth.PasswordResetTTLMinutes) * time.Minute
	if resetTTL <= 0 {
		resetTTL = 30 * time.Minute
	}
	return &AuthService{
		store:      deps.Store,
		users:      deps.Users,
		tokens:     deps.Tokens,
		revoker:    deps.Revoker,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		bcryptCost: cfg.Auth.BcryptCost,
		resetTTL:   resetTTL,
		now:        time.Now,
	}
}

// Signup registers an organizer and logs it in.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*Session, error) {
	if err := validateNewPassword(in.Password1, in.Password2, "password2"); err != nil {
		return nil, err
	}
	user := &domain.User{
		Username:    in.Username,
		Email:       in.Email,
		IsOrganizer: true,
	}
	if err := s.users.CreateUser(ctx, user, in.Password1); err != nil {
		return nil, err
	}
	s.logger.Info("organizer signed up", zap.String("user_id", user.ID))
	return s.issue(user)
}

// Login authenticates by username or email.
func (s *AuthService) Login(ctx context.Context, login, password string) (*Session, error) {
	user, err := s.store.Users.GetByLogin(ctx, strings.TrimSpace(login))
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, invalidCredentials()
		}
		return nil, apperrors.MapError(err)
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, invalidCredentials()
	}
	return s.issue(user)
}

// Logout revokes the session token until it would have expired.
func (s *AuthService) Logout(ctx context.Context, token domain.Token) error {
	if s.revoker == nil || token.ID == "" {
		return nil
	}
	if err := s.revoker.Revoke(ctx, token.ID, token.ExpiresAt); err != nil {
		return apperrors.NewInternalError(err)
	}
	return nil
}

// RequestPasswordReset stores a single-use token and emits the reset notification.
// Unknown addresses succeed silently so the endpoint does not reveal accounts.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.store.Users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil
		}
		return apperrors.MapError(err)
	}

	token := &repository.PasswordResetToken{
		UserID:    user.ID,
		Token:     uuid.NewString(),
		ExpiresAt: s.now().Add(s.resetTTL),
	}
	if err := s.store.PasswordResets.Create(ctx, token); err != nil {
		return apperrors.MapError(err)
	}
	publish(ctx, s.dispatcher, s.logger, events.New(events.EventPasswordResetRequested, user.ID,
		events.Actor{UserID: user.ID, Role: domain.RoleOf(user)},
		events.PasswordResetRequestedPayload{Email: user.Email, Token: token.Token, ExpiresAt: token.ExpiresAt}))
	return nil
}

// ConfirmPasswordReset validates the token and sets the new password.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, tokenStr, password1, password2 string) error {
	if err := validateNewPassword(password1, password2, "new_password2"); err != nil {
		return err
	}
	hash, err := auth.HashPassword(password1, s.bcryptCost)
	if err != nil {
		return apperrors.NewInternalError(err)
	}

	return s.store.InTx(ctx, func(tx *repository.Store) error {
		token, err := tx.PasswordResets.GetByToken(ctx, tokenStr)
		if err != nil {
			if apperrors.IsNotFound(err) {
				return invalidResetLink()
			}
			return apperrors.MapError(err)
		}
		if !token.Usable(s.now()) {
			return invalidResetLink()
		}
		user, err := tx.Users.GetByID(ctx, token.UserID)
		if err != nil {
			return notFound(err, "user", token.UserID)
		}
		user.PasswordHash = hash
		if err := tx.Users.Update(ctx, user); err != nil {
			return apperrors.MapError(err)
		}
		return apperrors.MapError(tx.PasswordResets.MarkUsed(ctx, token.ID))
	})
}

// ChangePassword verifies the current password before storing the new one.
func (s *AuthService) ChangePassword(ctx context.Context, p *auth.Principal, current, password1, password2 string) error {
	if p == nil || p.User == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	if err := validateNewPassword(password1, password2, "new_password2"); err != nil {
		return err
	}
	user, err := s.store.Users.GetByID(ctx, p.User.ID)
	if err != nil {
		return notFound(err, "user", p.User.ID)
	}
	if err := auth.ComparePassword(user.PasswordHash, current); err != nil {
		return fieldError("old_password", "Your old password was entered incorrectly. Please enter it again.")
	}
	hash, err := auth.HashPassword(password1, s.bcryptCost)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	user.PasswordHash = hash
	return apperrors.MapError(s.store.Users.Update(ctx, user))
}

func (s *AuthService) issue(user *domain.User) (*Session, error) {
	raw, tok, err := s.tokens.GenerateToken(user.ID, domain.RoleOf(user))
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &Session{User: user, AccessToken: raw, Token: tok}, nil
}

func validateNewPassword(password1, password2, confirmField string) error {
	if password1 != password2 {
		return fieldError(confirmField, "The two password fields didn't match.")
	}
	if utf8.RuneCountInString(password1) < minPasswordLength {
		return fieldError(confirmField, "This password is too short. It must contain at least 8 characters.")
	}
	return nil
}

func invalidCredentials() error {
	return apperrors.NewUnauthorized("Please enter a correct username and password.")
}

func invalidResetLink() error {
	return apperrors.NewValidationError("The password reset link was invalid, possibly because it has already been used.", nil)
}
