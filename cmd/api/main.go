// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-chi/chi/v5"

	"github.com/sorser/backend/internal/admin"
	"github.com/sorser/backend/internal/analytics"
	"github.com/sorser/backend/internal/app"
	"github.com/sorser/backend/internal/article"
	"github.com/sorser/backend/internal/auth"
	"github.com/sorser/backend/internal/config"
	"github.com/sorser/backend/internal/health"
	"github.com/sorser/backend/internal/metrics"
	"github.com/sorser/backend/internal/middleware"
	"github.com/sorser/backend/internal/progress"
	"github.com/sorser/backend/internal/rbac"
	"github.com/sorser/backend/internal/server"
	"github.com/sorser/backend/internal/user"
)

const (
	drainDelay = 5 * time.Second
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

//nolint:funlen // bootstrap code is inherently verbose
func run(configPath string) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := app.SetupLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}

	jwtManager, err := auth.NewJWTManager(cfg.JWT)
	if err != nil {
		_ = a.Close(ctx)
		return err
	}
	logger.Info("JWT manager initialized",
		"algorithm", "ES256",
		"key_id", jwtManager.GetKeyID(),
	)

	authSvc := auth.NewService(a.AuthRepo, jwtManager, a.Users, a.Redis.Client)
	authHandler := auth.NewHandler(authSvc)
	userHandler := user.NewHandler(a.Users)
	rbacHandler := rbac.NewHandler(rbac.NewService(a.RBACRepo, a.RBACTx, cfg.Bootstrap.Guard, logger))
	articleHandler := article.NewHandler(a.Progression)
	progressHandler := progress.NewHandler(a.Progress)
	analyticsHandler := analytics.NewHandler(a.Analytics, a.Jobs)

	healthHandler := health.NewHandler(a.DB, a.Redis)
	healthHandler.AddCheck("queue", a.Producer)

	// Not ready until the permission catalog is seeded.
	healthHandler.SetReady(false)
	go seedPermissions(ctx, a, healthHandler, logger)

	adminHandler := admin.NewHandler(admin.HandlerConfig{
		DBStats:    a.DB.Stats,
		RedisStats: a.Redis.PoolStats,
		DBPing:     a.DB.Ping,
		RedisPing:  a.Redis.Ping,
		QueueDepth: a.Producer.Depth,
	})

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: healthHandler,
		Logger:        logger,
	})

	router := srv.Router()

	router.Use(middleware.RequestID)
	router.Use(middleware.Tracing)
	router.Use(middleware.Logger(logger))
	router.Use(
		middleware.NewRateLimiter(a.Redis.Client, middleware.RateLimitConfig{
			Limit: middleware.PerWindow(
				cfg.RateLimit.Requests,
				cfg.RateLimit.Burst,
				cfg.RateLimit.Window,
			),
			FailOpen: true,
		}).Handler,
	)
	router.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	router.Use(middleware.CORS(cfg.CORS))

	healthHandler.RegisterRoutes(router)

	router.Get("/.well-known/jwks.json", jwtManager.GetJWKSHandler())

	if cfg.Metrics.Enabled {
		router.Handle(cfg.Metrics.Path, metrics.Handler())
	}

	authenticator := middleware.Authenticator(authSvc)

	limitedWrites := authenticator
	if cfg.RateLimit.Writes > 0 {
		writeLimiter := middleware.NewRateLimiter(a.Redis.Client, middleware.RateLimitConfig{
			Limit:    middleware.PerWindow(cfg.RateLimit.Writes, cfg.RateLimit.Writes, cfg.RateLimit.Window),
			KeyFunc:  middleware.KeyByUserAndEndpoint,
			FailOpen: true,
		})
		limitedWrites = func(next http.Handler) http.Handler {
			return authenticator(writeLimiter.Handler(next))
		}
	}

	router.Route("/v1", func(r chi.Router) {
		authHandler.RegisterRoutes(r, authenticator)

		userHandler.RegisterRoutes(r, authenticator)
		userHandler.RegisterAdminRoutes(r, authenticator, a.Gate)
		rbacHandler.RegisterRoutes(r, authenticator, a.Gate)
		adminHandler.RegisterRoutes(r, authenticator, a.Gate)

		articleHandler.RegisterRoutes(r, authenticator)
		progressHandler.RegisterRoutes(r, limitedWrites)
		analyticsHandler.RegisterRoutes(r, authenticator, a.Gate)
	})

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.Server.ShutdownTimeout+drainDelay+5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx, drainDelay); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if err := a.Close(shutdownCtx); err != nil {
		logger.Error("resource close error", "error", err)
	}

	logger.Info("application stopped")
	return nil
}

func seedPermissions(ctx context.Context, a *app.App, h *health.Handler, logger *slog.Logger) {
	policy := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)

	err := backoff.RetryNotify(
		func() error { return a.Bootstrap.Seed(ctx) },
		policy,
		func(err error, wait time.Duration) {
			logger.Warn("permission seed failed, retrying", "error", err, "wait", wait)
		},
	)
	if err != nil {
		logger.Error("permission seed abandoned", "error", err)
		return
	}

	h.SetReady(true)
}
