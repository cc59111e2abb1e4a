// AngelaMos | 2026
// service_test.go

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

func newService(repo *rbactest.Repository) *rbac.Service {
	return rbac.NewService(repo, repo, "", nil)
}

func permIDs(t *testing.T, repo *rbactest.Repository, names ...string) []int64 {
	t.Helper()
	ids := make([]int64, 0, len(names))
	for _, n := range names {
		p, err := repo.EnsurePermission(context.Background(), n, rbac.DefaultGuard)
		require.NoError(t, err)
		ids = append(ids, p.ID)
	}
	return ids
}

func TestSyncRolePermissionsReconciles(t *testing.T) {
	ctx := context.Background()
	repo := rbactest.NewRepository()
	svc := newService(repo)

	ids := permIDs(t, repo, "articles-view", "articles-edit", "quizzes-view")
	role, err := svc.CreateRole(ctx, rbac.CreateRoleRequest{Name: "Editor", PermissionIDs: ids[:2]})
	require.NoError(t, err)
	assert.Equal(t, []string{"articles-edit", "articles-view"}, role.Permissions)

	res, err := svc.SyncRolePermissions(ctx, role.ID, []int64{ids[1], ids[2], ids[2]})
	require.NoError(t, err)
	assert.Equal(t, []int64{ids[2]}, res.Added)
	assert.Equal(t, []int64{ids[0]}, res.Removed)

	names, err := repo.RolePermissionNames(ctx, role.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"articles-edit", "quizzes-view"}, names)

	res, err = svc.SyncRolePermissions(ctx, role.ID, []int64{ids[1], ids[2]})
	require.NoError(t, err)
	assert.Empty(t, res.Added)
	assert.Empty(t, res.Removed)
}

func TestSyncRolePermissionsRejectsUnknown(t *testing.T) {
	ctx := context.Background()
	repo := rbactest.NewRepository()
	svc := newService(repo)
	role, err := repo.EnsureRole(ctx, "Editor", rbac.DefaultGuard)
	require.NoError(t, err)

	_, err = svc.SyncRolePermissions(ctx, role.ID, []int64{999})
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = svc.SyncRolePermissions(ctx, 12345, nil)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestSyncRolePermissionsRollsBack(t *testing.T) {
	ctx := context.Background()
	repo := rbactest.NewRepository()
	svc := newService(repo)

	ids := permIDs(t, repo, "users-view", "users-edit")
	role, err := repo.EnsureRole(ctx, "Support", rbac.DefaultGuard)
	require.NoError(t, err)
	require.NoError(t, repo.AttachRolePermissions(ctx, role.ID, ids[:1]))

	repo.FailOn = "AttachRolePermissions"
	_, err = svc.SyncRolePermissions(ctx, role.ID, ids[1:])
	require.Error(t, err)

	repo.FailOn = ""
	current, err := repo.RolePermissionIDs(ctx, role.ID)
	require.NoError(t, err)
	assert.Equal(t, ids[:1], current)
}

func TestCreateRoleDuplicate(t *testing.T) {
	ctx := context.Background()
	svc := newService(rbactest.NewRepository())

	_, err := svc.CreateRole(ctx, rbac.CreateRoleRequest{Name: "Instructor"})
	require.NoError(t, err)

	_, err = svc.CreateRole(ctx, rbac.CreateRoleRequest{Name: "Instructor"})
	assert.ErrorIs(t, err, core.ErrDuplicateKey)
}

func TestCreatePermissionValidatesName(t *testing.T) {
	ctx := context.Background()
	svc := newService(rbactest.NewRepository())

	p, err := svc.CreatePermission(ctx, " Lessons-View ")
	require.NoError(t, err)
	assert.Equal(t, "lessons-view", p.Name)

	_, err = svc.CreatePermission(ctx, "lessons")
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestGrantAndRevokeToUser(t *testing.T) {
	ctx := context.Background()
	repo := rbactest.NewRepository()
	svc := newService(repo)
	ids := permIDs(t, repo, "reports-view")
	uid := userID

	require.NoError(t, svc.Grant(ctx, rbac.GrantRequest{PermissionID: ids[0], UserID: &uid}))
	names, err := svc.UserPermissions(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, []string{"reports-view"}, names)

	require.NoError(t, svc.Revoke(ctx, rbac.GrantRequest{PermissionID: ids[0], UserID: &uid}))
	names, err = svc.UserPermissions(ctx, uid)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestGrantUnknownPermission(t *testing.T) {
	uid := userID
	err := newService(rbactest.NewRepository()).Grant(context.Background(), rbac.GrantRequest{
		PermissionID: 77,
		UserID:       &uid,
	})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestSyncUserRoles(t *testing.T) {
	ctx := context.Background()
	repo := rbactest.NewRepository()
	svc := newService(repo)

	a, err := repo.EnsureRole(ctx, "Student", rbac.DefaultGuard)
	require.NoError(t, err)
	b, err := repo.EnsureRole(ctx, "Instructor", rbac.DefaultGuard)
	require.NoError(t, err)
	require.NoError(t, svc.AssignRole(ctx, userID, a.ID))

	res, err := svc.SyncUserRoles(ctx, userID, []int64{b.ID})
	require.NoError(t, err)
	assert.Equal(t, []int64{b.ID}, res.Added)
	assert.Equal(t, []int64{a.ID}, res.Removed)

	_, err = svc.SyncUserRoles(ctx, userID, []int64{b.ID, 555})
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}
