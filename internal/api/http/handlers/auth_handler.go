package handlers

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/crm-service/internal/api/dto"
	"github.com/spec-kit/crm-service/internal/auth"
	"github.com/spec-kit/crm-service/internal/service"
)

// CookieConfig controls the session cookie.
type CookieConfig struct {
	Name   string
	Secure bool
}

// AuthHandler exposes landing, signup, login and password endpoints.
type AuthHandler struct {
	auth   *service.AuthService
	cookie CookieConfig
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService, cookie CookieConfig) *AuthHandler {
	return &AuthHandler{auth: authService, cookie: cookie}
}

// Landing handles GET /.
func (h *AuthHandler) Landing(c *fiber.Ctx) error {
	if _, ok := auth.PrincipalFromContext(c); ok {
		return c.Redirect(auth.TicketsPath, fiber.StatusFound)
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"name":   "CRM",
		"signup": "/signup/",
		"login":  auth.LoginPath,
	}})
}

// Signup handles POST /signup/.
func (h *AuthHandler) Signup(c *fiber.Ctx) error {
	var req dto.SignupRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	session, err := h.auth.Signup(c.UserContext(), service.SignupInput{
		Username:  req.Username,
		Email:     req.Email,
		Password1: req.Password1,
		Password2: req.Password2,
	})
	if err != nil {
		return err
	}
	h.setSession(c, session)
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": sessionResponse(session)})
}

// Login handles POST /login/.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	session, err := h.auth.Login(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return err
	}
	h.setSession(c, session)
	return c.JSON(fiber.Map{"data": sessionResponse(session)})
}

// Logout handles POST /logout/.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	if err := h.auth.Logout(c.UserContext(), principal.Token); err != nil {
		return err
	}
	c.Cookie(&fiber.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return c.JSON(fiber.Map{"message": "You have been logged out."})
}

// Me handles GET /me/.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(principal.User)})
}

// RequestPasswordReset handles POST /reset-password/.
func (h *AuthHandler) RequestPasswordReset(c *fiber.Ctx) error {
	var req dto.PasswordResetRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := h.auth.RequestPasswordReset(c.UserContext(), req.Email); err != nil {
		return err
	}
	return c.Status(http.StatusAccepted).JSON(fiber.Map{
		"message": "We've emailed you instructions for setting your password, if an account exists with the email you entered.",
	})
}

// ConfirmPasswordReset handles POST /password-reset-confirm/:token.
func (h *AuthHandler) ConfirmPasswordReset(c *fiber.Ctx) error {
	var req dto.PasswordResetConfirmRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := h.auth.ConfirmPasswordReset(c.UserContext(), c.Params("token"), req.NewPassword1, req.NewPassword2); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Your password has been set. You may go ahead and log in now."})
}

// ChangePassword handles POST /password/change.
func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	var req dto.PasswordChangeRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := h.auth.ChangePassword(c.UserContext(), principal, req.OldPassword, req.NewPassword1, req.NewPassword2); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Your password was changed."})
}

func (h *AuthHandler) setSession(c *fiber.Ctx, session *service.Session) {
	c.Cookie(&fiber.Cookie{
		Name:     h.cookie.Name,
		Value:    session.AccessToken,
		Path:     "/",
		Expires:  session.Token.ExpiresAt,
		HTTPOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func sessionResponse(session *service.Session) fiber.Map {
	return fiber.Map{
		"user": dto.NewUserResponse(session.User),
		"auth": dto.AuthResponse{Token: session.AccessToken, ExpiresAt: session.Token.ExpiresAt},
	}
}
