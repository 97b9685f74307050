package main

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httptransport "github.com/asistlabs/asist-service/internal/api/http"
	"github.com/asistlabs/asist-service/internal/api/http/handlers"
	"github.com/asistlabs/asist-service/internal/auth"
	"github.com/asistlabs/asist-service/internal/config"
	"github.com/asistlabs/asist-service/internal/events"
	"github.com/asistlabs/asist-service/internal/observability"
	"github.com/asistlabs/asist-service/internal/persistence"
	"github.com/asistlabs/asist-service/internal/repository"
	"github.com/asistlabs/asist-service/internal/service"
	"github.com/asistlabs/asist-service/internal/worker"
)

const (
	shutdownTimeout = 10 * time.Second
	janitorInterval = time.Hour
)

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	if cfg.Auth.WeakSecret() {
		logger.Warn("AUTH_JWT_SECRET is shorter than recommended", zap.Int("min_bytes", config.MinSecretBytes))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()
	if pg.PoolHandle() == nil {
		return errors.New("POSTGRES_DSN is required: accounts are stored in postgres")
	}

	if cfg.Postgres.RunMigrations {
		if err := migrateUp(cfg.Postgres.DSN, logger); err != nil {
			return err
		}
	}

	rds := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer rds.Close()

	revocations, backend, err := selectRevocationStore(cfg.Auth.RevocationBackend, pg, rds)
	if err != nil {
		return err
	}
	logger.Info("revocation store selected", zap.String("backend", backend))

	secret, err := auth.NewSecret([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		return err
	}
	users := repository.NewUserRepository(pg.PoolHandle())
	principals := auth.NewPrincipalResolver(users)
	tokens := auth.NewTokenService(auth.NewTokenCodec(secret), auth.TokenServiceConfig{
		Issuer:     cfg.Auth.Issuer,
		AccessTTL:  cfg.Auth.AccessTokenTTL(),
		RefreshTTL: cfg.Auth.RefreshTokenTTL(),
	}, principals, revocations)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(registry)

	dispatcher := events.NewInMemoryDispatcher()
	worker.StartAuditWorker(service.NewAuditService(dispatcher, logger))

	authService, err := service.NewAuthService(service.AuthDependencies{
		Users:      users,
		Hasher:     auth.NewBcryptHasher(cfg.Auth.BcryptCost),
		Tokens:     tokens,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	var janitorDone <-chan struct{}
	if pruner, ok := revocations.(worker.Pruner); ok {
		janitorDone = worker.NewRevocationJanitor(pruner, janitorInterval, logger).Start(ctx)
	}

	healthDeps := map[string]handlers.Pinger{"postgres": pg}
	if rds != nil {
		healthDeps["redis"] = rds
	}

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
		Immutable:             true,
		ErrorHandler:          httptransport.ErrorHandler(logger, metrics),
	})
	httptransport.RegisterMiddlewares(app, httptransport.MiddlewareConfig{
		Logger:       logger,
		Metrics:      metrics,
		Timeout:      cfg.App.RequestTimeout(),
		AllowOrigins: cfg.CORS.AllowOrigins,
	})
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, healthDeps),
		Auth:           handlers.NewAuthHandler(authService),
		Users:          handlers.NewUsersHandler(authService),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, principals, logger, metrics),
		Gatherer:       registry,
		RateLimit:      cfg.RateLimit,
		Logger:         logger,
	})

	listenErr := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()))
		listenErr <- app.Listen(cfg.App.Addr())
	}()

	select {
	case err := <-listenErr:
		stop()
		return fmt.Errorf("fiber listen: %w", err)
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
	if janitorDone != nil {
		<-janitorDone
	}
	return nil
}

func migrateUp(dsn string, logger *zap.Logger) error {
	m, err := persistence.NewMigrator(dsn)
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			logger.Warn("close migrator", zap.Error(err))
		}
	}()
	if err := m.Up(); err != nil {
		return err
	}
	version, _, err := m.Version()
	if err != nil {
		return err
	}
	logger.Info("migrations applied", zap.Uint("version", version))
	return nil
}

// selectRevocationStore picks where revoked refresh token ids live.
func selectRevocationStore(backend string, pg *persistence.Postgres, rds *persistence.Redis) (auth.RevocationStore, string, error) {
	if backend == "" {
		backend = "postgres"
		if rds != nil {
			backend = "redis"
		}
	}

	switch backend {
	case "redis":
		if rds == nil {
			return nil, "", errors.New("AUTH_REVOCATION_BACKEND=redis requires REDIS_ADDR")
		}
		return repository.NewRedisRevocationStore(rds.Client), backend, nil
	case "postgres":
		if pg.PoolHandle() == nil {
			return nil, "", errors.New("AUTH_REVOCATION_BACKEND=postgres requires POSTGRES_DSN")
		}
		return repository.NewRevokedTokenRepository(pg.PoolHandle()), backend, nil
	case "memory":
		return repository.NewMemoryRevocationStore(), backend, nil
	default:
		return nil, "", fmt.Errorf("unknown revocation backend %q", backend)
	}
}
