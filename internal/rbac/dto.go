// AngelaMos | 2026
// dto.go

package rbac

type CreateRoleRequest struct {
	Name          string  `json:"name"           validate:"required,min=1,max=100"`
	PermissionIDs []int64 `json:"permission_ids" validate:"omitempty,dive,gt=0"`
}

type CreatePermissionRequest struct {
	Name string `json:"name" validate:"required,min=3,max=150"`
}

type SyncPermissionsRequest struct {
	PermissionIDs []int64 `json:"permission_ids" validate:"dive,gt=0"`
}

type SyncRolesRequest struct {
	RoleIDs []int64 `json:"role_ids" validate:"dive,gt=0"`
}

// GrantRequest targets exactly one of a role or a user.
type GrantRequest struct {
	PermissionID int64   `json:"permission_id" validate:"required,gt=0"`
	RoleID       *int64  `json:"role_id"       validate:"required_without=UserID,excluded_with=UserID"`
	UserID       *string `json:"user_id"       validate:"required_without=RoleID,excluded_with=RoleID"`
}

type UserPermissionsResponse struct {
	UserID      string   `json:"user_id"`
	Permissions []string `json:"permissions"`
}
