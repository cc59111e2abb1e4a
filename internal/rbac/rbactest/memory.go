// AngelaMos | 2026
// memory.go

// Package rbactest provides an in-memory rbac.Repository for tests of
// packages that depend on roles and permissions.
package rbactest

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/sorser/backend/internal/core"
	"github.com/sorser/backend/internal/rbac"
)

type pair struct {
	a int64
	b string
}

type state struct {
	nextID    int64
	perms     map[int64]rbac.Permission
	roles     map[int64]rbac.Role
	rolePerms map[[2]int64]struct{}
	userPerms map[pair]struct{}
	userRoles map[pair]struct{}
	users     map[string]struct{}
}

func (s state) clone() state {
	return state{
		nextID:    s.nextID,
		perms:     maps.Clone(s.perms),
		roles:     maps.Clone(s.roles),
		rolePerms: maps.Clone(s.rolePerms),
		userPerms: maps.Clone(s.userPerms),
		userRoles: maps.Clone(s.userRoles),
		users:     maps.Clone(s.users),
	}
}

// Repository is safe for concurrent use. WithTx serializes callers and
// restores the previous state when fn fails.
type Repository struct {
	mu     sync.Mutex
	txMu   sync.Mutex
	st     state
	Locks  int
	FailOn string
}

func NewRepository() *Repository {
	return &Repository{st: state{
		perms:     map[int64]rbac.Permission{},
		roles:     map[int64]rbac.Role{},
		rolePerms: map[[2]int64]struct{}{},
		userPerms: map[pair]struct{}{},
		userRoles: map[pair]struct{}{},
		users:     map[string]struct{}{},
	}}
}

func (r *Repository) WithTx(ctx context.Context, fn func(repo rbac.Repository) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()

	r.mu.Lock()
	snapshot := r.st.clone()
	r.mu.Unlock()

	if err := fn(r); err != nil {
		r.mu.Lock()
		r.st = snapshot
		r.mu.Unlock()
		return err
	}
	return nil
}

func (r *Repository) fail(op string) error {
	if r.FailOn == op {
		return fmt.Errorf("%s: injected failure", op)
	}
	return nil
}

func (r *Repository) EnsurePermission(_ context.Context, name, guard string) (*rbac.Permission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.st.perms {
		if p.Name == name && p.GuardName == guard {
			return &p, nil
		}
	}
	return r.insertPermission(name, guard), nil
}

func (r *Repository) CreatePermission(_ context.Context, name, guard string) (*rbac.Permission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.st.perms {
		if p.Name == name && p.GuardName == guard {
			return nil, fmt.Errorf("create permission: %w", core.ErrDuplicateKey)
		}
	}
	return r.insertPermission(name, guard), nil
}

func (r *Repository) insertPermission(name, guard string) *rbac.Permission {
	r.st.nextID++
	now := time.Now()
	p := rbac.Permission{ID: r.st.nextID, Name: name, GuardName: guard, CreatedAt: now, UpdatedAt: now}
	r.st.perms[p.ID] = p
	return &p
}

func (r *Repository) GetPermission(_ context.Context, id int64) (*rbac.Permission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.st.perms[id]
	if !ok {
		return nil, fmt.Errorf("get permission: %w", core.ErrNotFound)
	}
	return &p, nil
}

func (r *Repository) ListPermissions(context.Context) ([]rbac.Permission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := slices.Collect(maps.Values(r.st.perms))
	slices.SortFunc(out, func(a, b rbac.Permission) int { return cmp.Compare(a.Name, b.Name) })
	return out, nil
}

func (r *Repository) CountPermissions(_ context.Context, ids []int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, id := range ids {
		if _, ok := r.st.perms[id]; ok {
			n++
		}
	}
	return n, nil
}

func (r *Repository) EnsureRole(_ context.Context, name, guard string) (*rbac.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, role := range r.st.roles {
		if role.Name == name && role.GuardName == guard {
			return &role, nil
		}
	}
	return r.insertRole(name, guard), nil
}

func (r *Repository) CreateRole(_ context.Context, name, guard string) (*rbac.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, role := range r.st.roles {
		if role.Name == name && role.GuardName == guard {
			return nil, fmt.Errorf("create role: %w", core.ErrDuplicateKey)
		}
	}
	return r.insertRole(name, guard), nil
}

func (r *Repository) insertRole(name, guard string) *rbac.Role {
	r.st.nextID++
	now := time.Now()
	role := rbac.Role{ID: r.st.nextID, Name: name, GuardName: guard, CreatedAt: now, UpdatedAt: now}
	r.st.roles[role.ID] = role
	return &role
}

func (r *Repository) GetRole(_ context.Context, id int64) (*rbac.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	role, ok := r.st.roles[id]
	if !ok {
		return nil, fmt.Errorf("get role: %w", core.ErrNotFound)
	}
	return &role, nil
}

func (r *Repository) GetRoleByName(_ context.Context, name, guard string) (*rbac.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, role := range r.st.roles {
		if role.Name == name && role.GuardName == guard {
			return &role, nil
		}
	}
	return nil, fmt.Errorf("get role by name: %w", core.ErrNotFound)
}

func (r *Repository) ListRoles(context.Context) ([]rbac.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := slices.Collect(maps.Values(r.st.roles))
	slices.SortFunc(out, func(a, b rbac.Role) int { return cmp.Compare(a.Name, b.Name) })
	return out, nil
}

func (r *Repository) CountRoles(_ context.Context, ids []int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, id := range ids {
		if _, ok := r.st.roles[id]; ok {
			n++
		}
	}
	return n, nil
}

func (r *Repository) RoleHasUsers(_ context.Context, roleID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for k := range r.st.userRoles {
		if k.a == roleID {
			return true, nil
		}
	}
	return false, nil
}

func (r *Repository) RolePermissionIDs(_ context.Context, roleID int64) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ids []int64
	for k := range r.st.rolePerms {
		if k[0] == roleID {
			ids = append(ids, k[1])
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func (r *Repository) RolePermissionNames(ctx context.Context, roleID int64) ([]string, error) {
	ids, _ := r.RolePermissionIDs(ctx, roleID)

	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(ids))
	for _, id := range ids {
		names = append(names, r.st.perms[id].Name)
	}
	slices.Sort(names)
	return names, nil
}

func (r *Repository) AttachRolePermissions(_ context.Context, roleID int64, ids []int64) error {
	if err := r.fail("AttachRolePermissions"); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range ids {
		r.st.rolePerms[[2]int64{roleID, id}] = struct{}{}
	}
	return nil
}

func (r *Repository) DetachRolePermissions(_ context.Context, roleID int64, ids []int64) error {
	if err := r.fail("DetachRolePermissions"); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range ids {
		delete(r.st.rolePerms, [2]int64{roleID, id})
	}
	return nil
}

func (r *Repository) GrantUserPermission(_ context.Context, userID string, permissionID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.st.users[userID] = struct{}{}
	r.st.userPerms[pair{permissionID, userID}] = struct{}{}
	return nil
}

func (r *Repository) RevokeUserPermission(_ context.Context, userID string, permissionID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.st.userPerms, pair{permissionID, userID})
	return nil
}

func (r *Repository) UserRoleIDs(_ context.Context, userID string) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ids []int64
	for k := range r.st.userRoles {
		if k.b == userID {
			ids = append(ids, k.a)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func (r *Repository) AttachUserRoles(_ context.Context, userID string, roleIDs []int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.st.users[userID] = struct{}{}
	for _, id := range roleIDs {
		r.st.userRoles[pair{id, userID}] = struct{}{}
	}
	return nil
}

func (r *Repository) DetachUserRoles(_ context.Context, userID string, roleIDs []int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range roleIDs {
		delete(r.st.userRoles, pair{id, userID})
	}
	return nil
}

func (r *Repository) UserPermissionNames(_ context.Context, userID string) ([]string, error) {
	if err := r.fail("UserPermissionNames"); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	set := map[string]struct{}{}
	for k := range r.st.userPerms {
		if k.b == userID {
			set[r.st.perms[k.a].Name] = struct{}{}
		}
	}
	for ur := range r.st.userRoles {
		if ur.b != userID {
			continue
		}
		for rp := range r.st.rolePerms {
			if rp[0] == ur.a {
				set[r.st.perms[rp[1]].Name] = struct{}{}
			}
		}
	}

	names := slices.Collect(maps.Keys(set))
	slices.Sort(names)
	return names, nil
}

// AddUser records a registered user. Users that are granted a role or a
// permission are recorded implicitly.
func (r *Repository) AddUser(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.st.users[userID] = struct{}{}
}

func (r *Repository) CountOtherUsers(_ context.Context, userID string) (int, error) {
	if err := r.fail("CountOtherUsers"); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.st.users)
	if _, ok := r.st.users[userID]; ok {
		n--
	}
	return n, nil
}

func (r *Repository) AdvisoryLock(context.Context, int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Locks++
	return nil
}

var (
	_ rbac.Repository = (*Repository)(nil)
	_ rbac.Transactor = (*Repository)(nil)
)
