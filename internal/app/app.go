// AngelaMos | 2026
// app.go

package app

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/sorser/backend/internal/analytics"
	"github.com/sorser/backend/internal/article"
	"github.com/sorser/backend/internal/auth"
	"github.com/sorser/backend/internal/bootstrap"
	"github.com/sorser/backend/internal/config"
	"github.com/sorser/backend/internal/core"
	"github.com/sorser/backend/internal/events"
	"github.com/sorser/backend/internal/jobs"
	"github.com/sorser/backend/internal/listeners"
	"github.com/sorser/backend/internal/mail"
	"github.com/sorser/backend/internal/progress"
	"github.com/sorser/backend/internal/queue"
	"github.com/sorser/backend/internal/rbac"
	"github.com/sorser/backend/internal/user"
)

// App holds the infrastructure and domain services shared by the API and
// worker processes. Each binary adds its own transport on top.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	DB        *core.Database
	Redis     *core.Redis
	Telemetry *core.Telemetry

	Producer *queue.Producer
	Jobs     *jobs.Client
	Bus      *events.Bus

	RBACRepo  rbac.Repository
	RBACTx    rbac.Transactor
	Gate      *rbac.Gate
	Bootstrap *bootstrap.Bootstrapper

	AuthRepo auth.Repository
	Users    *user.Service

	Articles        article.Repository
	Progression     *article.Progression
	ProgressRepo    progress.Repository
	Progress        *progress.Service
	AnalyticsSource analytics.Source
	Analytics       *analytics.Service
	Mailer          mail.Mailer
}

// New connects to Postgres and Redis and assembles the services. The
// caller owns the returned App and must call Close.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	if cfg.Otel.Enabled {
		tel, err := core.NewTelemetry(ctx, cfg.Otel, cfg.App)
		if err != nil {
			logger.Warn("failed to initialize telemetry", "error", err)
		} else {
			a.Telemetry = tel
			logger.Info("OpenTelemetry tracer initialized",
				"endpoint", cfg.Otel.Endpoint,
			)
		}
	}

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	a.DB = db
	logger.Info("database connected",
		"max_open_conns", cfg.Database.MaxOpenConns,
		"max_idle_conns", cfg.Database.MaxIdleConns,
	)

	rdb, err := core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	a.Redis = rdb
	logger.Info("redis connected",
		"pool_size", cfg.Redis.PoolSize,
	)

	a.Producer = queue.NewProducer(rdb.Client, logger, cfg.Queue.Stream, cfg.Queue.MaxLen)
	a.Jobs = jobs.NewClient(a.Producer, logger)
	a.Bus = events.NewBus(a.Jobs, logger)

	a.RBACRepo = rbac.NewRepository(db.DB)
	a.RBACTx = rbac.NewTransactor(db)
	a.Gate = rbac.NewGate(a.RBACRepo, logger)
	a.Bootstrap = bootstrap.New(a.RBACTx, cfg.Bootstrap, logger)

	a.AuthRepo = auth.NewRepository(db.DB)
	a.Users = user.NewService(user.NewRepository(db.DB), user.NewTransactor(db), a.AuthRepo, logger)
	a.Users.OnRegister(a.Bootstrap.OnRegister)

	a.Articles = article.NewRepository(db.DB)
	a.Progression = article.NewProgression(a.Articles, cfg.Progression.MinAccuracy)
	a.ProgressRepo = progress.NewRepository(db.DB)
	a.Progress = progress.NewService(a.ProgressRepo, a.Articles, a.Bus, logger)

	a.AnalyticsSource = analytics.NewRepository(db.DB)
	cache := analytics.NewCache(rdb.Client, cfg.Analytics.CachePrefix, cfg.Analytics.CacheTTL)
	a.Analytics = analytics.NewService(a.AnalyticsSource, cache, cfg.Analytics, logger)

	a.Mailer = mail.New(cfg.Mail, logger)

	listeners.Register(a.Bus, listeners.Deps{
		Progress:    a.ProgressRepo,
		Analytics:   a.Analytics,
		Jobs:        a.Jobs,
		Users:       a.Users,
		Articles:    a.Articles,
		Progression: a.Progression,
		Mailer:      a.Mailer,
		Email: listeners.CompletionEmailConfig{
			Threshold:   cfg.Progression.EmailThreshold,
			FrontendURL: cfg.Mail.FrontendURL,
		},
		Logger: logger,
	})

	return a, nil
}

// Close flushes telemetry and releases the pools in reverse order.
func (a *App) Close(ctx context.Context) error {
	var errs []error

	if a.Telemetry != nil {
		if err := a.Telemetry.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func SetupLogger(cfg config.LogConfig) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
