package auth

import (
	"github.com/gofiber/fiber/v2"
)

const (
	LoginPath   = "/login/"
	TicketsPath = "/tickets/"
)

// LoginRequired sends anonymous callers to the login page.
func LoginRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFromContext(c); !ok {
			return c.Redirect(LoginPath, fiber.StatusFound)
		}
		return c.Next()
	}
}

// OrganizerRequired sends callers without an organizer department back to their tickets.
// Chain it after LoginRequired.
func OrganizerRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return c.Redirect(LoginPath, fiber.StatusFound)
		}
		if !principal.IsOrganizer() {
			return c.Redirect(TicketsPath, fiber.StatusFound)
		}
		return c.Next()
	}
}
