package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/service-request-engine/internal/api/http"
	"github.com/spec-kit/service-request-engine/internal/api/http/handlers"
	"github.com/spec-kit/service-request-engine/internal/auth"
	"github.com/spec-kit/service-request-engine/internal/config"
	"github.com/spec-kit/service-request-engine/internal/directory"
	"github.com/spec-kit/service-request-engine/internal/events"
	"github.com/spec-kit/service-request-engine/internal/observability"
	"github.com/spec-kit/service-request-engine/internal/persistence"
	"github.com/spec-kit/service-request-engine/internal/repository"
	"github.com/spec-kit/service-request-engine/internal/service"
	"github.com/spec-kit/service-request-engine/internal/worker"
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

	pool := pg.PoolHandle()
	if err := auth.EnsureBootstrapAdmin(ctx, pool, cfg.Auth, logger); err != nil {
		logger.Fatal("failed to seed bootstrap admin", zap.Error(err))
	}

	users := directory.NewCachedUserDirectory(
		directory.NewUserDirectory(pool), redis.Client, cfg.Directory.CacheTTL())
	companies := directory.NewCachedCompanyDirectory(
		directory.NewCompanyDirectory(pool), redis.Client, cfg.Directory.CacheTTL())
	requestRepo := repository.NewRequestRepository(pool)

	dispatcher := events.NewInMemoryDispatcher()
	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	worker.StartNotificationWorker(notificationService)

	workflowService := service.NewWorkflowService(service.WorkflowDependencies{
		RequestRepo: requestRepo,
		Users:       users,
		Companies:   companies,
		Dispatcher:  dispatcher,
	})
	contentService := service.NewContentService(service.ContentDependencies{
		RequestRepo: requestRepo,
		Users:       users,
		Companies:   companies,
		Dispatcher:  dispatcher,
	})
	queryService := service.NewQueryService(requestRepo, users, companies)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authMiddleware := auth.NewAuthMiddleware(tokens, users)

	app := fiber.New()
	metrics := observability.NewMetrics()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth:           handlers.NewAuthHandler(tokens, users),
		Requests:       handlers.NewRequestsHandler(workflowService, contentService, queryService),
		AuthMiddleware: authMiddleware,
		DevRoutes:      cfg.App.IsDevelopment(),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
