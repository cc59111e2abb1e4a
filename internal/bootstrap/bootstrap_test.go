// AngelaMos | 2026
// bootstrap_test.go

package bootstrap

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sorser/backend/internal/config"
	"github.com/sorser/backend/internal/rbac"
	"github.com/sorser/backend/internal/rbac/rbactest"
)

func newBootstrapper(repo *rbactest.Repository, enabled bool) *Bootstrapper {
	return New(repo, config.BootstrapConfig{
		FirstUserAdmin: enabled,
		AdminRole:      "Admin",
		Guard:          "web",
	}, nil)
}

func TestFirstUserBecomesAdmin(t *testing.T) {
	ctx := context.Background()
	repo := rbactest.NewRepository()
	b := newBootstrapper(repo, true)

	promoted, err := b.PromoteIfFirst(ctx, repo, "user-1")
	require.NoError(t, err)
	assert.True(t, promoted)

	promoted, err = b.PromoteIfFirst(ctx, repo, "user-2")
	require.NoError(t, err)
	assert.False(t, promoted)

	names, err := repo.UserPermissionNames(ctx, "user-1")
	require.NoError(t, err)
	assert.ElementsMatch(t, rbac.Catalog(), names)

	gate := rbac.NewGate(repo, nil)
	ok, err := gate.CanUserAccess(ctx, "user-2", "users", "view")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 2, repo.Locks)
}

func TestRegistrantAfterAdminRemovalIsNotPromoted(t *testing.T) {
	ctx := context.Background()
	repo := rbactest.NewRepository()
	b := newBootstrapper(repo, true)

	repo.AddUser("user-1")
	promoted, err := b.PromoteIfFirst(ctx, repo, "user-1")
	require.NoError(t, err)
	require.True(t, promoted)

	repo.AddUser("user-2")
	promoted, err = b.PromoteIfFirst(ctx, repo, "user-2")
	require.NoError(t, err)
	require.False(t, promoted)

	roles, err := repo.UserRoleIDs(ctx, "user-1")
	require.NoError(t, err)
	require.NoError(t, repo.DetachUserRoles(ctx, "user-1", roles))

	repo.AddUser("user-3")
	promoted, err = b.PromoteIfFirst(ctx, repo, "user-3")
	require.NoError(t, err)
	assert.False(t, promoted)

	ok, err := rbac.NewGate(repo, nil).CanUserAccess(ctx, "user-3", "roles", "edit")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, b.Promote(ctx, "user-3", false))
	names, err := repo.UserPermissionNames(ctx, "user-3")
	require.NoError(t, err)
	assert.ElementsMatch(t, rbac.Catalog(), names)
}

func TestPromoteIfFirstPropagatesCountErrors(t *testing.T) {
	repo := rbactest.NewRepository()
	repo.FailOn = "CountOtherUsers"

	promoted, err := newBootstrapper(repo, true).PromoteIfFirst(context.Background(), repo, "user-1")

	require.Error(t, err)
	assert.False(t, promoted)
}

func TestDisabledNeverPromotes(t *testing.T) {
	repo := rbactest.NewRepository()

	promoted, err := newBootstrapper(repo, false).PromoteIfFirst(context.Background(), repo, "user-1")

	require.NoError(t, err)
	assert.False(t, promoted)
	assert.Zero(t, repo.Locks)
}

func TestConcurrentRegistrationsPromoteOnce(t *testing.T) {
	repo := rbactest.NewRepository()
	b := newBootstrapper(repo, true)

	var promotedCount atomic.Int32
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.WithTx(context.Background(), func(tx rbac.Repository) error {
				ok, err := b.PromoteIfFirst(context.Background(), tx, "user-"+string(rune('a'+i)))
				if ok {
					promotedCount.Add(1)
				}
				return err
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), promotedCount.Load())
}

func TestPromoteRefusesWithoutForce(t *testing.T) {
	ctx := context.Background()
	repo := rbactest.NewRepository()
	b := newBootstrapper(repo, true)

	require.NoError(t, b.Promote(ctx, "user-1", false))
	assert.ErrorIs(t, b.Promote(ctx, "user-2", false), ErrAdminExists)
	require.NoError(t, b.Promote(ctx, "user-2", true))

	names, err := repo.UserPermissionNames(ctx, "user-2")
	require.NoError(t, err)
	assert.Contains(t, names, "analytics-export")
}

func TestSeedIsIdempotentAndCoversCustomPermissions(t *testing.T) {
	ctx := context.Background()
	repo := rbactest.NewRepository()
	b := newBootstrapper(repo, true)

	require.NoError(t, b.Seed(ctx))
	custom, err := repo.CreatePermission(ctx, "lessons-view", "web")
	require.NoError(t, err)
	require.NoError(t, b.Seed(ctx))

	perms, err := repo.ListPermissions(ctx)
	require.NoError(t, err)
	assert.Len(t, perms, len(rbac.Catalog())+1)

	role, err := repo.GetRoleByName(ctx, "Admin", "web")
	require.NoError(t, err)
	ids, err := repo.RolePermissionIDs(ctx, role.ID)
	require.NoError(t, err)
	assert.Contains(t, ids, custom.ID)
	assert.Len(t, ids, len(perms))
}
