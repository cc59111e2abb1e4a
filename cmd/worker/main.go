// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sorser/backend/internal/analytics"
	"github.com/sorser/backend/internal/app"
	"github.com/sorser/backend/internal/auth"
	"github.com/sorser/backend/internal/config"
	"github.com/sorser/backend/internal/jobs"
	"github.com/sorser/backend/internal/metrics"
	"github.com/sorser/backend/internal/queue"
	"github.com/sorser/backend/internal/storage"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}

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

	logger := app.SetupLogger(cfg.Log).With("process", "worker")
	slog.SetDefault(logger)

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.Close(closeCtx); err != nil {
			logger.Error("resource close error", "error", err)
		}
	}()

	disk, err := storage.NewDisk(cfg.Export.Dir)
	if err != nil {
		return err
	}

	hostname, _ := os.Hostname()
	worker := queue.NewWorker(a.Redis.Client, a.Producer, queue.WorkerConfigFrom(cfg.Queue, hostname), logger)

	jobs.Register(worker, jobs.Deps{
		Analytics: a.Analytics,
		Exporter:  analytics.NewExporter(a.AnalyticsSource),
		Storage:   disk,
		Bus:       a.Bus,
		Logger:    logger,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return worker.Run(gctx)
	})

	g.Go(func() error {
		return a.Producer.RunPromoter(gctx, cfg.Queue.PromoteInterval)
	})

	if cfg.JWT.SessionPruneInterval > 0 {
		g.Go(func() error {
			return auth.RunPruner(gctx, a.AuthRepo, cfg.JWT.SessionPruneInterval, logger)
		})
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, metrics.Handler())
		metricsSrv := &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Go(func() error {
			logger.Info("metrics listening", "addr", cfg.Metrics.Addr)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})

		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return metricsSrv.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("worker stopped")
	return nil
}
