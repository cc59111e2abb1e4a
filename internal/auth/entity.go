// AngelaMos | 2026
// entity.go

package auth

import (
	"time"
)

// RevokeReason is stored with a revoked refresh token so session listings
// and audits can tell a logout from a security kill.
type RevokeReason string

const (
	ReasonLogout          RevokeReason = "logout"
	ReasonLogoutAll       RevokeReason = "logout_all"
	ReasonSessionRevoked  RevokeReason = "session_revoked"
	ReasonRotationReuse   RevokeReason = "rotation_reuse"
	ReasonPasswordChanged RevokeReason = "password_changed"
	ReasonAccountBlocked  RevokeReason = "account_blocked"
	ReasonAccountDeleted  RevokeReason = "account_deleted"
)

type TokenState int

const (
	TokenActive TokenState = iota
	// TokenRotated means the token was already exchanged. Presenting it
	// again is treated as theft of the family.
	TokenRotated
	TokenRevoked
	TokenExpired
)

// RefreshToken is one stored session. Tokens of the same login share a
// FamilyID across rotations.
type RefreshToken struct {
	ID            string        `db:"id"`
	UserID        string        `db:"user_id"`
	TokenHash     string        `db:"token_hash"`
	FamilyID      string        `db:"family_id"`
	ExpiresAt     time.Time     `db:"expires_at"`
	CreatedAt     time.Time     `db:"created_at"`
	RotatedAt     *time.Time    `db:"rotated_at"`
	RotatedTo     *string       `db:"rotated_to"`
	RevokedAt     *time.Time    `db:"revoked_at"`
	RevokedReason *RevokeReason `db:"revoked_reason"`
	UserAgent     string        `db:"user_agent"`
	IPAddress     string        `db:"ip_address"`
}

// State reports how the token may be used at now. Rotation is checked
// before revocation so a replayed token always trips reuse detection.
func (t *RefreshToken) State(now time.Time) TokenState {
	switch {
	case t.RotatedAt != nil:
		return TokenRotated
	case t.RevokedAt != nil:
		return TokenRevoked
	case !now.Before(t.ExpiresAt):
		return TokenExpired
	default:
		return TokenActive
	}
}
