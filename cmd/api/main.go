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

	httptransport "github.com/spec-kit/query-desk/internal/api/http"
	"github.com/spec-kit/query-desk/internal/api/http/handlers"
	"github.com/spec-kit/query-desk/internal/auth"
	"github.com/spec-kit/query-desk/internal/config"
	"github.com/spec-kit/query-desk/internal/events"
	"github.com/spec-kit/query-desk/internal/observability"
	"github.com/spec-kit/query-desk/internal/persistence"
	"github.com/spec-kit/query-desk/internal/repository"
	"github.com/spec-kit/query-desk/internal/service"
	"github.com/spec-kit/query-desk/internal/session"
	"github.com/spec-kit/query-desk/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := persistence.Open(ctx, cfg.Store, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	if err := persistence.RunMigrations(ctx, db, logger); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	sessions, closeSessions := newSessionStore(ctx, cfg, logger)
	defer closeSessions()

	attachments, err := storage.NewDiskStore(cfg.Uploads.Dir, cfg.Uploads.MaxBytes, logger)
	if err != nil {
		logger.Fatal("failed to prepare upload directory", zap.Error(err))
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	service.NewNotificationService(dispatcher, logger, metrics, cfg.Notification).RegisterHandlers()

	credentials := service.NewCredentialService(
		repository.NewUserRepository(db),
		auth.NewPasswordHasher(cfg.Auth.BcryptCost, cfg.Auth.LegacySHA256),
		logger,
	)
	if err := credentials.Seed(ctx, service.DefaultSeedUsers); err != nil {
		logger.Fatal("failed to seed users", zap.Error(err))
	}

	queries := service.NewQueryService(service.QueryDependencies{
		QueryRepo: repository.NewQueryRepository(db, repository.QueryRepositoryOptions{
			RecloseOverwrites: cfg.Queries.RecloseOverwrites,
		}),
		Attachments:  attachments,
		Dispatcher:   dispatcher,
		Logger:       logger,
		MaxIDRetries: cfg.Queries.IDMaxRetries,
	})
	gate := service.NewAccessGate(service.GateDependencies{
		Credentials: credentials,
		Queries:     queries,
		Sessions:    sessions,
		Tokens:      auth.NewTokenManager(cfg.Auth.JWTSecret),
		SessionTTL:  cfg.Auth.SessionTTL(),
		Logger:      logger,
	})

	app := fiber.New(fiber.Config{
		AppName:   cfg.App.Name,
		BodyLimit: int(cfg.Uploads.MaxBytes) + 1<<20,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, db, sessions),
		Auth:           handlers.NewAuthHandler(gate),
		ClientQueries:  handlers.NewClientQueriesHandler(gate),
		SupportQueries: handlers.NewSupportQueriesHandler(gate),
		AuthMiddleware: auth.NewAuthMiddleware(gate),
		Roles:          gate,
		Metrics:        metrics,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
}

func newSessionStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (session.Store, func()) {
	if cfg.Session.Backend != config.SessionBackendRedis {
		logger.Info("using in-memory sessions")
		return session.NewMemoryStore(time.Now), func() {}
	}
	rdb, err := persistence.NewRedis(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Fatal("failed to connect redis", zap.Error(err))
	}
	return session.NewRedisStore(rdb.Client, cfg.Session.KeyPrefix, time.Now), rdb.Close
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
