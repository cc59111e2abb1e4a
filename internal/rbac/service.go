// AngelaMos | 2026
// service.go

package rbac

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/sorser/backend/internal/core"
)

var permissionNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*(-[a-z][a-z0-9_]*)+$`)

type Service struct {
	repo   Repository
	tx     Transactor
	guard  string
	logger *slog.Logger
}

func NewService(repo Repository, tx Transactor, guard string, logger *slog.Logger) *Service {
	if guard == "" {
		guard = DefaultGuard
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, tx: tx, guard: guard, logger: logger}
}

func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	roles, err := s.repo.ListRoles(ctx)
	if err != nil {
		return nil, err
	}

	for i := range roles {
		names, err := s.repo.RolePermissionNames(ctx, roles[i].ID)
		if err != nil {
			return nil, err
		}
		roles[i].Permissions = names
	}
	return roles, nil
}

func (s *Service) CreateRole(ctx context.Context, req CreateRoleRequest) (*Role, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("create role: %w", core.ErrInvalidInput)
	}

	var created *Role
	err := s.tx.WithTx(ctx, func(repo Repository) error {
		role, err := repo.CreateRole(ctx, name, s.guard)
		if err != nil {
			return err
		}

		if _, err := syncRolePermissions(ctx, repo, role.ID, req.PermissionIDs); err != nil {
			return err
		}

		role.Permissions, err = repo.RolePermissionNames(ctx, role.ID)
		created = role
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "role created", "role_id", created.ID, "name", created.Name)
	return created, nil
}

// SyncRolePermissions makes the role's permission set exactly
// permissionIDs, applying additions and removals in one transaction.
func (s *Service) SyncRolePermissions(
	ctx context.Context,
	roleID int64,
	permissionIDs []int64,
) (*SyncResult, error) {
	var result *SyncResult
	err := s.tx.WithTx(ctx, func(repo Repository) error {
		if _, err := repo.GetRole(ctx, roleID); err != nil {
			return err
		}

		res, err := syncRolePermissions(ctx, repo, roleID, permissionIDs)
		result = res
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "role permissions synced",
		"role_id", roleID,
		"added", len(result.Added),
		"removed", len(result.Removed),
	)
	return result, nil
}

// SyncRolePermissionsTx is SyncRolePermissions for callers that already
// hold a transaction-bound repository.
func SyncRolePermissionsTx(
	ctx context.Context,
	repo Repository,
	roleID int64,
	permissionIDs []int64,
) (*SyncResult, error) {
	return syncRolePermissions(ctx, repo, roleID, permissionIDs)
}

func syncRolePermissions(
	ctx context.Context,
	repo Repository,
	roleID int64,
	permissionIDs []int64,
) (*SyncResult, error) {
	desired := uniqueIDs(permissionIDs)

	if len(desired) > 0 {
		n, err := repo.CountPermissions(ctx, desired)
		if err != nil {
			return nil, err
		}
		if n != len(desired) {
			return nil, fmt.Errorf("sync role permissions: unknown permission: %w", core.ErrInvalidInput)
		}
	}

	current, err := repo.RolePermissionIDs(ctx, roleID)
	if err != nil {
		return nil, err
	}

	add, remove := Reconcile(current, desired)
	if err := repo.DetachRolePermissions(ctx, roleID, remove); err != nil {
		return nil, err
	}
	if err := repo.AttachRolePermissions(ctx, roleID, add); err != nil {
		return nil, err
	}

	return &SyncResult{Added: emptyIfNil(add), Removed: emptyIfNil(remove)}, nil
}

func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.repo.ListPermissions(ctx)
}

func (s *Service) CreatePermission(ctx context.Context, name string) (*Permission, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if !permissionNamePattern.MatchString(name) {
		return nil, fmt.Errorf("create permission %q: %w", name, core.ErrInvalidInput)
	}

	perm, err := s.repo.CreatePermission(ctx, name, s.guard)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "permission created", "permission", perm.Name)
	return perm, nil
}

func (s *Service) Grant(ctx context.Context, req GrantRequest) error {
	if _, err := s.repo.GetPermission(ctx, req.PermissionID); err != nil {
		return err
	}

	switch {
	case req.RoleID != nil:
		if _, err := s.repo.GetRole(ctx, *req.RoleID); err != nil {
			return err
		}
		return s.repo.AttachRolePermissions(ctx, *req.RoleID, []int64{req.PermissionID})
	case req.UserID != nil:
		return s.repo.GrantUserPermission(ctx, *req.UserID, req.PermissionID)
	default:
		return fmt.Errorf("grant: role_id or user_id required: %w", core.ErrInvalidInput)
	}
}

func (s *Service) Revoke(ctx context.Context, req GrantRequest) error {
	switch {
	case req.RoleID != nil:
		return s.repo.DetachRolePermissions(ctx, *req.RoleID, []int64{req.PermissionID})
	case req.UserID != nil:
		return s.repo.RevokeUserPermission(ctx, *req.UserID, req.PermissionID)
	default:
		return fmt.Errorf("revoke: role_id or user_id required: %w", core.ErrInvalidInput)
	}
}

func (s *Service) AssignRole(ctx context.Context, userID string, roleID int64) error {
	if _, err := s.repo.GetRole(ctx, roleID); err != nil {
		return err
	}
	return s.repo.AttachUserRoles(ctx, userID, []int64{roleID})
}

func (s *Service) RemoveRole(ctx context.Context, userID string, roleID int64) error {
	return s.repo.DetachUserRoles(ctx, userID, []int64{roleID})
}

func (s *Service) SyncUserRoles(
	ctx context.Context,
	userID string,
	roleIDs []int64,
) (*SyncResult, error) {
	desired := uniqueIDs(roleIDs)

	var result *SyncResult
	err := s.tx.WithTx(ctx, func(repo Repository) error {
		if len(desired) > 0 {
			n, err := repo.CountRoles(ctx, desired)
			if err != nil {
				return err
			}
			if n != len(desired) {
				return fmt.Errorf("sync user roles: unknown role: %w", core.ErrInvalidInput)
			}
		}

		current, err := repo.UserRoleIDs(ctx, userID)
		if err != nil {
			return err
		}

		add, remove := Reconcile(current, desired)
		if err := repo.DetachUserRoles(ctx, userID, remove); err != nil {
			return err
		}
		if err := repo.AttachUserRoles(ctx, userID, add); err != nil {
			return err
		}

		result = &SyncResult{Added: emptyIfNil(add), Removed: emptyIfNil(remove)}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user roles synced",
		"user_id", userID,
		"added", len(result.Added),
		"removed", len(result.Removed),
	)
	return result, nil
}

func (s *Service) UserPermissions(ctx context.Context, userID string) ([]string, error) {
	names, err := s.repo.UserPermissionNames(ctx, userID)
	if err != nil {
		return nil, err
	}
	return emptyIfNil(names), nil
}

func emptyIfNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
