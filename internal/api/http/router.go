package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/crm-service/internal/api/http/handlers"
	"github.com/spec-kit/crm-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Metrics        *handlers.MetricsHandler
	Auth           *handlers.AuthHandler
	Dashboard      *handlers.DashboardHandler
	Associates     *handlers.AssociatesHandler
	Tickets        *handlers.TicketsHandler
	Categories     *handlers.CategoriesHandler
	FollowUps      *handlers.FollowUpsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Metrics.Metrics)

	app.Use(cfg.AuthMiddleware.Handle)

	app.Get("/", cfg.Auth.Landing)
	app.Post("/signup/", cfg.Auth.Signup)
	app.Post("/login/", cfg.Auth.Login)
	app.Post("/reset-password/", cfg.Auth.RequestPasswordReset)
	app.Post("/password-reset-confirm/:token", cfg.Auth.ConfirmPasswordReset)

	loginRequired := auth.LoginRequired()
	organizerRequired := auth.OrganizerRequired()

	app.Post("/logout/", loginRequired, cfg.Auth.Logout)
	app.Get("/me/", loginRequired, cfg.Auth.Me)
	app.Post("/password/change", loginRequired, cfg.Auth.ChangePassword)
	app.Get("/dashboard/", loginRequired, organizerRequired, cfg.Dashboard.Dashboard)
	app.Get("/media/*", loginRequired, cfg.Tickets.Media)

	associates := app.Group("/associates", loginRequired, organizerRequired)
	associates.Get("/", cfg.Associates.List)
	associates.Post("/", cfg.Associates.Create)
	associates.Get("/:id", cfg.Associates.Get)
	associates.Put("/:id", cfg.Associates.Update)
	associates.Delete("/:id", cfg.Associates.Delete)

	tickets := app.Group("/tickets", loginRequired)
	tickets.Get("/", cfg.Tickets.List)
	tickets.Post("/", organizerRequired, cfg.Tickets.Create)
	tickets.Get("/json", cfg.Tickets.Export)

	tickets.Get("/categories", cfg.Categories.List)
	tickets.Post("/categories", organizerRequired, cfg.Categories.Create)
	tickets.Get("/categories/:id", cfg.Categories.Get)

	tickets.Put("/followups/:id", cfg.FollowUps.Update)
	tickets.Delete("/followups/:id", cfg.FollowUps.Delete)

	tickets.Get("/:id", cfg.Tickets.Get)
	tickets.Put("/:id", organizerRequired, cfg.Tickets.Update)
	tickets.Delete("/:id", organizerRequired, cfg.Tickets.Delete)
	tickets.Post("/:id/assign-associate", organizerRequired, cfg.Tickets.AssignAssociate)
	tickets.Post("/:id/category", cfg.Tickets.UpdateCategory)
	tickets.Post("/:id/followups", cfg.FollowUps.Create)
}
