package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/crm-service/internal/api/http"
	"github.com/spec-kit/crm-service/internal/api/http/handlers"
	"github.com/spec-kit/crm-service/internal/auth"
	"github.com/spec-kit/crm-service/internal/config"
	"github.com/spec-kit/crm-service/internal/events"
	"github.com/spec-kit/crm-service/internal/observability"
	"github.com/spec-kit/crm-service/internal/persistence"
	"github.com/spec-kit/crm-service/internal/repository"
	"github.com/spec-kit/crm-service/internal/service"
	"github.com/spec-kit/crm-service/internal/storage"
	"github.com/spec-kit/crm-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	files, err := storage.New(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Fatal("failed to init storage", zap.Error(err))
	}

	store := repository.NewStore(pg.PoolHandle())
	dispatcher := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()

	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	worker.StartNotificationWorker(notificationService, logger)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL())
	revoker := auth.NewRedisRevoker(redis.Client)

	userService := service.NewUserService(store, cfg.Auth.BcryptCost)
	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		Store:      store,
		Users:      userService,
		Tokens:     tokens,
		Revoker:    revoker,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	associateService := service.NewAssociateService(store, userService, dispatcher, logger)
	ticketDeps := service.TicketDependencies{
		Store:          store,
		Files:          files,
		Dispatcher:     dispatcher,
		Logger:         logger,
		MaxUploadBytes: cfg.Storage.MaxUploadBytes(),
	}
	ticketService := service.NewTicketService(ticketDeps)
	followUpService := service.NewFollowUpService(ticketDeps)
	categoryService := service.NewCategoryService(store)
	dashboardService := service.NewDashboardService(store)

	authMiddleware := auth.NewAuthMiddleware(tokens, revoker, store.Users, store.Departments, store.Associates, cfg.Auth.CookieName)

	app := fiber.New(fiber.Config{
		AppName:   cfg.App.Name,
		BodyLimit: cfg.App.BodyLimitMB << 20,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:     handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Metrics:    handlers.NewMetricsHandler(metrics),
		Auth:       handlers.NewAuthHandler(authService, handlers.CookieConfig{Name: cfg.Auth.CookieName, Secure: cfg.Auth.CookieSecure}),
		Dashboard:  handlers.NewDashboardHandler(dashboardService),
		Associates: handlers.NewAssociatesHandler(associateService),
		Tickets:    handlers.NewTicketsHandler(ticketService, files, logger),
		Categories: handlers.NewCategoriesHandler(categoryService, files),
		FollowUps:  handlers.NewFollowUpsHandler(followUpService, files),

		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
