// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/sorser/backend/internal/app"
	"github.com/sorser/backend/internal/auth"
	"github.com/sorser/backend/internal/bootstrap"
	"github.com/sorser/backend/internal/config"
	"github.com/sorser/backend/internal/core"
	"github.com/sorser/backend/internal/rbac"
	"github.com/sorser/backend/internal/user"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	email := flag.String("email", "", "email of the user to promote to administrator")
	force := flag.Bool("force", false, "promote even when an administrator already exists")
	seedOnly := flag.Bool("seed-only", false, "seed permissions and the admin role, then exit")
	flag.Parse()

	if err := run(*configPath, *email, *force, *seedOnly); err != nil {
		slog.Error("bootstrap error", "error", err)
		os.Exit(1)
	}
}

func run(configPath, email string, force, seedOnly bool) error {
	if email == "" && !seedOnly {
		return errors.New("-email is required unless -seed-only is set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := app.SetupLogger(cfg.Log).With("process", "bootstrap")
	slog.SetDefault(logger)

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	boot := bootstrap.New(rbac.NewTransactor(db), cfg.Bootstrap, logger)
	if err := boot.Seed(ctx); err != nil {
		return fmt.Errorf("seed permissions: %w", err)
	}
	if seedOnly {
		return nil
	}

	users := user.NewService(user.NewRepository(db.DB), user.NewTransactor(db), auth.NewRepository(db.DB), logger)
	target, err := users.GetByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("find user %q: %w", email, err)
	}

	if err := boot.Promote(ctx, target.ID, force); err != nil {
		if errors.Is(err, bootstrap.ErrAdminExists) {
			return fmt.Errorf("%w: rerun with -force to add another", err)
		}
		return err
	}

	logger.Info("administrator promoted", "user_id", target.ID, "email", target.Email)
	return nil
}
