package dto

import (
	"time"

	"github.com/spec-kit/crm-service/internal/domain"
)

// SignupRequest payload for organizer registration.
type SignupRequest struct {
	Username  string `json:"username" form:"username" validate:"required,max=150"`
	Email     string `json:"email" form:"email" validate:"required,email"`
	Password1 string `json:"password1" form:"password1" validate:"required"`
	Password2 string `json:"password2" form:"password2" validate:"required"`
}

// LoginRequest accepts a username or an email address.
type LoginRequest struct {
	Username string `json:"username" form:"username" validate:"required"`
	Password string `json:"password" form:"password" validate:"required"`
}

// PasswordResetRequest payload for initiating reset.
type PasswordResetRequest struct {
	Email string `json:"email" form:"email" validate:"required,email"`
}

// PasswordResetConfirmRequest payload for choosing the new password.
type PasswordResetConfirmRequest struct {
	NewPassword1 string `json:"new_password1" form:"new_password1" validate:"required"`
	NewPassword2 string `json:"new_password2" form:"new_password2" validate:"required"`
}

// PasswordChangeRequest payload for authenticated password changes.
type PasswordChangeRequest struct {
	OldPassword  string `json:"old_password" form:"old_password" validate:"required"`
	NewPassword1 string `json:"new_password1" form:"new_password1" validate:"required"`
	NewPassword2 string `json:"new_password2" form:"new_password2" validate:"required"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID          string      `json:"id"`
	Username    string      `json:"username"`
	Email       string      `json:"email"`
	FirstName   string      `json:"first_name"`
	LastName    string      `json:"last_name"`
	Role        domain.Role `json:"role"`
	IsOrganizer bool        `json:"is_organizer"`
	IsAssociate bool        `json:"is_associate"`
}

// NewUserResponse maps a user.
func NewUserResponse(u *domain.User) UserResponse {
	if u == nil {
		return UserResponse{}
	}
	return UserResponse{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Role:        domain.RoleOf(u),
		IsOrganizer: u.IsOrganizer,
		IsAssociate: u.IsAssociate,
	}
}

// DashboardResponse carries the organizer counters.
type DashboardResponse struct {
	TotalTicketCount  int       `json:"total_ticket_count"`
	TotalInPast30     int       `json:"total_in_past30"`
	CompletedInPast30 int       `json:"completed_in_past30"`
	Since             time.Time `json:"since"`
}
