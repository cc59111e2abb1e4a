// AngelaMos | 2026
// gate_test.go

package rbac_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sorser/backend/internal/core"
	"github.com/sorser/backend/internal/rbac"
	"github.com/sorser/backend/internal/rbac/rbactest"
)

const userID = "0b4c6f1e-5b7a-4f0d-9a55-2b1f9f3d8e10"

func seedRole(t *testing.T, repo *rbactest.Repository, role string, perms ...string) int64 {
	t.Helper()
	ctx := context.Background()

	r, err := repo.EnsureRole(ctx, role, rbac.DefaultGuard)
	require.NoError(t, err)

	ids := make([]int64, 0, len(perms))
	for _, name := range perms {
		p, err := repo.EnsurePermission(ctx, name, rbac.DefaultGuard)
		require.NoError(t, err)
		ids = append(ids, p.ID)
	}
	require.NoError(t, repo.AttachRolePermissions(ctx, r.ID, ids))
	return r.ID
}

func TestGateRequiresPrincipal(t *testing.T) {
	gate := rbac.NewGate(rbactest.NewRepository(), nil)

	ok, err := gate.CanUserAccess(context.Background(), "", "analytics", "view")

	assert.False(t, ok)
	assert.ErrorIs(t, err, rbac.ErrAuthenticationRequired)
	assert.ErrorIs(t, err, core.ErrUnauthorized)
}

func TestGateRolePermission(t *testing.T) {
	ctx := context.Background()
	repo := rbactest.NewRepository()
	roleID := seedRole(t, repo, "Instructor", "analytics-view")
	require.NoError(t, repo.AttachUserRoles(ctx, userID, []int64{roleID}))

	gate := rbac.NewGate(repo, nil)

	ok, err := gate.CanUserAccess(ctx, userID, "analytics", "")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = gate.CanUserAccess(ctx, userID, "analytics", "delete")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGateDirectPermission(t *testing.T) {
	ctx := context.Background()
	repo := rbactest.NewRepository()
	p, err := repo.EnsurePermission(ctx, "reports-create", rbac.DefaultGuard)
	require.NoError(t, err)
	require.NoError(t, repo.GrantUserPermission(ctx, userID, p.ID))

	assert.NoError(t, rbac.NewGate(repo, nil).Authorize(ctx, userID, "reports", "create"))
}

func TestGateNoAdminBypass(t *testing.T) {
	ctx := context.Background()
	repo := rbactest.NewRepository()
	roleID := seedRole(t, repo, "Admin", "users-view")
	require.NoError(t, repo.AttachUserRoles(ctx, userID, []int64{roleID}))

	err := rbac.NewGate(repo, nil).Authorize(ctx, userID, "analytics", "export")

	assert.ErrorIs(t, err, rbac.ErrAuthorizationDenied)
	assert.ErrorIs(t, err, core.ErrForbidden)
}

func TestGateLookupFailure(t *testing.T) {
	repo := rbactest.NewRepository()
	repo.FailOn = "UserPermissionNames"

	err := rbac.NewGate(repo, nil).Authorize(context.Background(), userID, "users", "view")

	require.Error(t, err)
	assert.NotErrorIs(t, err, core.ErrForbidden)
}

func TestRevokedRoleLosesAccess(t *testing.T) {
	ctx := context.Background()
	repo := rbactest.NewRepository()
	roleID := seedRole(t, repo, "Editor", "articles-edit")
	require.NoError(t, repo.AttachUserRoles(ctx, userID, []int64{roleID}))
	gate := rbac.NewGate(repo, nil)

	require.NoError(t, gate.Authorize(ctx, userID, "articles", "edit"))

	require.NoError(t, repo.DetachUserRoles(ctx, userID, []int64{roleID}))
	assert.ErrorIs(t, gate.Authorize(ctx, userID, "articles", "edit"), rbac.ErrAuthorizationDenied)
}
