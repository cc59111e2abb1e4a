// AngelaMos | 2026
// bootstrap.go

package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sorser/backend/internal/config"
	"github.com/sorser/backend/internal/core"
	"github.com/sorser/backend/internal/rbac"
)

// lockKey serializes admin promotion across concurrent registrations.
const lockKey int64 = 0x736f72736572

var (
	ErrAdminExists  = fmt.Errorf("an administrator already exists: %w", core.ErrConflict)
	errNotFirstUser = errors.New("other users are already registered")
)

// promotion selects the precondition checked under the lock.
type promotion int

const (
	// firstUser requires that no other user row exists, whoever holds
	// the admin role now.
	firstUser promotion = iota
	// operator requires that nobody holds the admin role.
	operator
	forced
)

func (p promotion) String() string {
	switch p {
	case firstUser:
		return "first_user"
	case operator:
		return "operator"
	default:
		return "forced"
	}
}

type Bootstrapper struct {
	tx      rbac.Transactor
	role    string
	guard   string
	enabled bool
	logger  *slog.Logger
}

func New(tx rbac.Transactor, cfg config.BootstrapConfig, logger *slog.Logger) *Bootstrapper {
	if logger == nil {
		logger = slog.Default()
	}
	guard := cfg.Guard
	if guard == "" {
		guard = rbac.DefaultGuard
	}
	return &Bootstrapper{
		tx:      tx,
		role:    cfg.AdminRole,
		guard:   guard,
		enabled: cfg.FirstUserAdmin,
		logger:  logger,
	}
}

// SeedPermissions makes sure every catalog permission exists and that the
// admin role holds every permission currently defined. It is idempotent.
func (b *Bootstrapper) SeedPermissions(ctx context.Context, repo rbac.Repository) (*rbac.Role, error) {
	for _, name := range rbac.Catalog() {
		if _, err := repo.EnsurePermission(ctx, name, b.guard); err != nil {
			return nil, err
		}
	}

	role, err := repo.EnsureRole(ctx, b.role, b.guard)
	if err != nil {
		return nil, err
	}

	perms, err := repo.ListPermissions(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(perms))
	for _, p := range perms {
		ids = append(ids, p.ID)
	}

	if _, err := rbac.SyncRolePermissionsTx(ctx, repo, role.ID, ids); err != nil {
		return nil, fmt.Errorf("sync admin permissions: %w", err)
	}
	return role, nil
}

// PromoteIfFirst grants the admin role to userID only when userID is the
// only user that has ever registered. Losing the admin role later does not
// reopen the window. repo must be bound to the caller's transaction so the
// advisory lock covers both the check and the assignment.
func (b *Bootstrapper) PromoteIfFirst(
	ctx context.Context,
	repo rbac.Repository,
	userID string,
) (bool, error) {
	if !b.enabled {
		return false, nil
	}

	err := b.promote(ctx, repo, userID, firstUser)
	if errors.Is(err, errNotFirstUser) {
		return false, nil
	}
	return err == nil, err
}

// OnRegister adapts PromoteIfFirst to the user registration transaction.
func (b *Bootstrapper) OnRegister(ctx context.Context, tx core.DBTX, userID string) error {
	_, err := b.PromoteIfFirst(ctx, rbac.NewRepository(tx), userID)
	return err
}

// Promote is the explicit operator path. Without force it refuses when an
// administrator already exists.
func (b *Bootstrapper) Promote(ctx context.Context, userID string, force bool) error {
	mode := operator
	if force {
		mode = forced
	}
	return b.tx.WithTx(ctx, func(repo rbac.Repository) error {
		return b.promote(ctx, repo, userID, mode)
	})
}

func (b *Bootstrapper) Seed(ctx context.Context) error {
	return b.tx.WithTx(ctx, func(repo rbac.Repository) error {
		if err := repo.AdvisoryLock(ctx, lockKey); err != nil {
			return err
		}
		role, err := b.SeedPermissions(ctx, repo)
		if err != nil {
			return err
		}
		b.logger.InfoContext(ctx, "permissions seeded", "role", role.Name)
		return nil
	})
}

func (b *Bootstrapper) promote(
	ctx context.Context,
	repo rbac.Repository,
	userID string,
	mode promotion,
) error {
	if err := repo.AdvisoryLock(ctx, lockKey); err != nil {
		return err
	}

	switch mode {
	case firstUser:
		others, err := repo.CountOtherUsers(ctx, userID)
		if err != nil {
			return err
		}
		if others > 0 {
			return errNotFirstUser
		}
	case operator:
		if err := b.refuseIfHeld(ctx, repo); err != nil {
			return err
		}
	}

	role, err := b.SeedPermissions(ctx, repo)
	if err != nil {
		return err
	}

	if err := repo.AttachUserRoles(ctx, userID, []int64{role.ID}); err != nil {
		return err
	}

	b.logger.InfoContext(ctx, "administrator bootstrapped",
		"user_id", userID,
		"role", role.Name,
		"mode", mode.String(),
	)
	return nil
}

func (b *Bootstrapper) refuseIfHeld(ctx context.Context, repo rbac.Repository) error {
	existing, err := repo.GetRoleByName(ctx, b.role, b.guard)
	if errors.Is(err, core.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	held, err := repo.RoleHasUsers(ctx, existing.ID)
	if err != nil {
		return err
	}
	if held {
		return ErrAdminExists
	}
	return nil
}
