// AngelaMos | 2026
// entity.go

package rbac

import (
	"time"
)

type Permission struct {
	ID        int64     `db:"id"         json:"id"`
	Name      string    `db:"name"       json:"name"`
	GuardName string    `db:"guard_name" json:"guard_name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

type Role struct {
	ID          int64     `db:"id"         json:"id"`
	Name        string    `db:"name"       json:"name"`
	GuardName   string    `db:"guard_name" json:"guard_name"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
	Permissions []string  `db:"-"          json:"permissions,omitempty"`
}

// SyncResult reports what a set reconciliation changed.
type SyncResult struct {
	Added   []int64 `json:"added"`
	Removed []int64 `json:"removed"`
}

const DefaultGuard = "web"
