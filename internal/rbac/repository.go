// AngelaMos | 2026
// repository.go

package rbac

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sorser/backend/internal/core"
)

type Repository interface {
	EnsurePermission(ctx context.Context, name, guard string) (*Permission, error)
	CreatePermission(ctx context.Context, name, guard string) (*Permission, error)
	GetPermission(ctx context.Context, id int64) (*Permission, error)
	ListPermissions(ctx context.Context) ([]Permission, error)
	CountPermissions(ctx context.Context, ids []int64) (int, error)

	EnsureRole(ctx context.Context, name, guard string) (*Role, error)
	CreateRole(ctx context.Context, name, guard string) (*Role, error)
	GetRole(ctx context.Context, id int64) (*Role, error)
	GetRoleByName(ctx context.Context, name, guard string) (*Role, error)
	ListRoles(ctx context.Context) ([]Role, error)
	CountRoles(ctx context.Context, ids []int64) (int, error)
	RoleHasUsers(ctx context.Context, roleID int64) (bool, error)

	RolePermissionIDs(ctx context.Context, roleID int64) ([]int64, error)
	RolePermissionNames(ctx context.Context, roleID int64) ([]string, error)
	AttachRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error
	DetachRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error

	GrantUserPermission(ctx context.Context, userID string, permissionID int64) error
	RevokeUserPermission(ctx context.Context, userID string, permissionID int64) error

	UserRoleIDs(ctx context.Context, userID string) ([]int64, error)
	AttachUserRoles(ctx context.Context, userID string, roleIDs []int64) error
	DetachUserRoles(ctx context.Context, userID string, roleIDs []int64) error

	UserPermissionNames(ctx context.Context, userID string) ([]string, error)

	// CountOtherUsers counts user rows other than userID, soft-deleted
	// ones included.
	CountOtherUsers(ctx context.Context, userID string) (int, error)

	// AdvisoryLock takes a transaction-scoped lock. Outside a transaction
	// it is released as soon as the statement finishes.
	AdvisoryLock(ctx context.Context, key int64) error
}

// Transactor runs fn against a Repository bound to one transaction.
type Transactor interface {
	WithTx(ctx context.Context, fn func(repo Repository) error) error
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

type transactor struct {
	db core.TxRunner
}

func NewTransactor(db core.TxRunner) Transactor {
	return &transactor{db: db}
}

func (t *transactor) WithTx(ctx context.Context, fn func(repo Repository) error) error {
	return t.db.InTx(ctx, func(tx core.DBTX) error {
		return fn(NewRepository(tx))
	})
}

func (r *repository) EnsurePermission(
	ctx context.Context,
	name, guard string,
) (*Permission, error) {
	query := `
		INSERT INTO permissions (name, guard_name)
		VALUES ($1, $2)
		ON CONFLICT (name, guard_name) DO UPDATE SET updated_at = permissions.updated_at
		RETURNING id, name, guard_name, created_at, updated_at`

	var p Permission
	if err := r.db.GetContext(ctx, &p, query, name, guard); err != nil {
		return nil, fmt.Errorf("ensure permission %s: %w", name, err)
	}
	return &p, nil
}

func (r *repository) CreatePermission(
	ctx context.Context,
	name, guard string,
) (*Permission, error) {
	query := `
		INSERT INTO permissions (name, guard_name)
		VALUES ($1, $2)
		RETURNING id, name, guard_name, created_at, updated_at`

	var p Permission
	if err := r.db.GetContext(ctx, &p, query, name, guard); err != nil {
		if core.IsUniqueViolation(err) {
			return nil, fmt.Errorf("create permission: %w", core.ErrDuplicateKey)
		}
		return nil, fmt.Errorf("create permission: %w", err)
	}
	return &p, nil
}

func (r *repository) GetPermission(ctx context.Context, id int64) (*Permission, error) {
	query := `
		SELECT id, name, guard_name, created_at, updated_at
		FROM permissions
		WHERE id = $1`

	var p Permission
	err := r.db.GetContext(ctx, &p, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get permission: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get permission: %w", err)
	}
	return &p, nil
}

func (r *repository) ListPermissions(ctx context.Context) ([]Permission, error) {
	query := `
		SELECT id, name, guard_name, created_at, updated_at
		FROM permissions
		ORDER BY name`

	var perms []Permission
	if err := r.db.SelectContext(ctx, &perms, query); err != nil {
		return nil, fmt.Errorf("list permissions: %w", err)
	}
	return perms, nil
}

func (r *repository) CountPermissions(ctx context.Context, ids []int64) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM permissions WHERE id = ANY($1)`
	if err := r.db.GetContext(ctx, &n, query, ids); err != nil {
		return 0, fmt.Errorf("count permissions: %w", err)
	}
	return n, nil
}

func (r *repository) EnsureRole(ctx context.Context, name, guard string) (*Role, error) {
	query := `
		INSERT INTO roles (name, guard_name)
		VALUES ($1, $2)
		ON CONFLICT (name, guard_name) DO UPDATE SET updated_at = roles.updated_at
		RETURNING id, name, guard_name, created_at, updated_at`

	var role Role
	if err := r.db.GetContext(ctx, &role, query, name, guard); err != nil {
		return nil, fmt.Errorf("ensure role %s: %w", name, err)
	}
	return &role, nil
}

func (r *repository) CreateRole(ctx context.Context, name, guard string) (*Role, error) {
	query := `
		INSERT INTO roles (name, guard_name)
		VALUES ($1, $2)
		RETURNING id, name, guard_name, created_at, updated_at`

	var role Role
	if err := r.db.GetContext(ctx, &role, query, name, guard); err != nil {
		if core.IsUniqueViolation(err) {
			return nil, fmt.Errorf("create role: %w", core.ErrDuplicateKey)
		}
		return nil, fmt.Errorf("create role: %w", err)
	}
	return &role, nil
}

func (r *repository) GetRole(ctx context.Context, id int64) (*Role, error) {
	query := `
		SELECT id, name, guard_name, created_at, updated_at
		FROM roles
		WHERE id = $1`

	var role Role
	err := r.db.GetContext(ctx, &role, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get role: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get role: %w", err)
	}
	return &role, nil
}

func (r *repository) GetRoleByName(ctx context.Context, name, guard string) (*Role, error) {
	query := `
		SELECT id, name, guard_name, created_at, updated_at
		FROM roles
		WHERE name = $1 AND guard_name = $2`

	var role Role
	err := r.db.GetContext(ctx, &role, query, name, guard)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get role by name: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get role by name: %w", err)
	}
	return &role, nil
}

func (r *repository) ListRoles(ctx context.Context) ([]Role, error) {
	query := `
		SELECT id, name, guard_name, created_at, updated_at
		FROM roles
		ORDER BY name`

	var roles []Role
	if err := r.db.SelectContext(ctx, &roles, query); err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	return roles, nil
}

func (r *repository) CountRoles(ctx context.Context, ids []int64) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM roles WHERE id = ANY($1)`
	if err := r.db.GetContext(ctx, &n, query, ids); err != nil {
		return 0, fmt.Errorf("count roles: %w", err)
	}
	return n, nil
}

func (r *repository) RoleHasUsers(ctx context.Context, roleID int64) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM model_has_roles WHERE role_id = $1)`
	if err := r.db.GetContext(ctx, &exists, query, roleID); err != nil {
		return false, fmt.Errorf("check role holders: %w", err)
	}
	return exists, nil
}

func (r *repository) RolePermissionIDs(ctx context.Context, roleID int64) ([]int64, error) {
	var ids []int64
	query := `SELECT permission_id FROM role_has_permissions WHERE role_id = $1 ORDER BY permission_id`
	if err := r.db.SelectContext(ctx, &ids, query, roleID); err != nil {
		return nil, fmt.Errorf("role permission ids: %w", err)
	}
	return ids, nil
}

func (r *repository) RolePermissionNames(ctx context.Context, roleID int64) ([]string, error) {
	query := `
		SELECT p.name
		FROM permissions p
		JOIN role_has_permissions rp ON rp.permission_id = p.id
		WHERE rp.role_id = $1
		ORDER BY p.name`

	var names []string
	if err := r.db.SelectContext(ctx, &names, query, roleID); err != nil {
		return nil, fmt.Errorf("role permission names: %w", err)
	}
	return names, nil
}

func (r *repository) AttachRolePermissions(
	ctx context.Context,
	roleID int64,
	permissionIDs []int64,
) error {
	if len(permissionIDs) == 0 {
		return nil
	}

	query := `
		INSERT INTO role_has_permissions (permission_id, role_id)
		SELECT unnest($2::bigint[]), $1
		ON CONFLICT DO NOTHING`

	if _, err := r.db.ExecContext(ctx, query, roleID, permissionIDs); err != nil {
		return fmt.Errorf("attach role permissions: %w", err)
	}
	return nil
}

func (r *repository) DetachRolePermissions(
	ctx context.Context,
	roleID int64,
	permissionIDs []int64,
) error {
	if len(permissionIDs) == 0 {
		return nil
	}

	query := `DELETE FROM role_has_permissions WHERE role_id = $1 AND permission_id = ANY($2)`
	if _, err := r.db.ExecContext(ctx, query, roleID, permissionIDs); err != nil {
		return fmt.Errorf("detach role permissions: %w", err)
	}
	return nil
}

func (r *repository) GrantUserPermission(
	ctx context.Context,
	userID string,
	permissionID int64,
) error {
	query := `
		INSERT INTO model_has_permissions (permission_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`

	if _, err := r.db.ExecContext(ctx, query, permissionID, userID); err != nil {
		return fmt.Errorf("grant user permission: %w", err)
	}
	return nil
}

func (r *repository) RevokeUserPermission(
	ctx context.Context,
	userID string,
	permissionID int64,
) error {
	query := `DELETE FROM model_has_permissions WHERE permission_id = $1 AND user_id = $2`
	if _, err := r.db.ExecContext(ctx, query, permissionID, userID); err != nil {
		return fmt.Errorf("revoke user permission: %w", err)
	}
	return nil
}

func (r *repository) UserRoleIDs(ctx context.Context, userID string) ([]int64, error) {
	var ids []int64
	query := `SELECT role_id FROM model_has_roles WHERE user_id = $1 ORDER BY role_id`
	if err := r.db.SelectContext(ctx, &ids, query, userID); err != nil {
		return nil, fmt.Errorf("user role ids: %w", err)
	}
	return ids, nil
}

func (r *repository) AttachUserRoles(ctx context.Context, userID string, roleIDs []int64) error {
	if len(roleIDs) == 0 {
		return nil
	}

	query := `
		INSERT INTO model_has_roles (role_id, user_id)
		SELECT unnest($2::bigint[]), $1
		ON CONFLICT DO NOTHING`

	if _, err := r.db.ExecContext(ctx, query, userID, roleIDs); err != nil {
		return fmt.Errorf("attach user roles: %w", err)
	}
	return nil
}

func (r *repository) DetachUserRoles(ctx context.Context, userID string, roleIDs []int64) error {
	if len(roleIDs) == 0 {
		return nil
	}

	query := `DELETE FROM model_has_roles WHERE user_id = $1 AND role_id = ANY($2)`
	if _, err := r.db.ExecContext(ctx, query, userID, roleIDs); err != nil {
		return fmt.Errorf("detach user roles: %w", err)
	}
	return nil
}

func (r *repository) UserPermissionNames(ctx context.Context, userID string) ([]string, error) {
	query := `
		SELECT p.name
		FROM permissions p
		JOIN model_has_permissions mp ON mp.permission_id = p.id
		WHERE mp.user_id = $1
		UNION
		SELECT p.name
		FROM permissions p
		JOIN role_has_permissions rp ON rp.permission_id = p.id
		JOIN model_has_roles mr ON mr.role_id = rp.role_id
		WHERE mr.user_id = $1`

	var names []string
	if err := r.db.SelectContext(ctx, &names, query, userID); err != nil {
		return nil, fmt.Errorf("user permission names: %w", err)
	}
	return names, nil
}

func (r *repository) CountOtherUsers(ctx context.Context, userID string) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM users WHERE id <> $1`
	if err := r.db.GetContext(ctx, &n, query, userID); err != nil {
		return 0, fmt.Errorf("count other users: %w", err)
	}
	return n, nil
}

func (r *repository) AdvisoryLock(ctx context.Context, key int64) error {
	if _, err := r.db.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, key); err != nil {
		return fmt.Errorf("advisory lock: %w", err)
	}
	return nil
}
