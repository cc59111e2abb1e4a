// AngelaMos | 2026
// repository.go

package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sorser/backend/internal/core"
)

// ExpiredRetention keeps expired tokens around for a day so a late replay
// still resolves to its family before the row is pruned.
const ExpiredRetention = 24 * time.Hour

type Repository interface {
	Create(ctx context.Context, token *RefreshToken) error
	FindByHash(ctx context.Context, tokenHash string) (*RefreshToken, error)
	FindByID(ctx context.Context, id string) (*RefreshToken, error)
	// Rotate marks id as exchanged for nextID. It fails with ErrNotFound
	// when id was already rotated.
	Rotate(ctx context.Context, id, nextID string) error
	Revoke(ctx context.Context, id string, reason RevokeReason) error
	RevokeFamily(ctx context.Context, familyID string, reason RevokeReason) (int64, error)
	RevokeAllForUser(ctx context.Context, userID string, reason RevokeReason) (int64, error)
	ActiveSessions(ctx context.Context, userID string) ([]RefreshToken, error)
	PruneExpired(ctx context.Context, before time.Time) (int64, error)
}

const tokenColumns = `
	id, user_id, token_hash, family_id, expires_at, created_at,
	rotated_at, rotated_to, revoked_at, revoked_reason, user_agent, ip_address`

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, token *RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens
			(id, user_id, token_hash, family_id, expires_at, user_agent, ip_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`

	err := r.db.GetContext(ctx, &token.CreatedAt, query,
		token.ID,
		token.UserID,
		token.TokenHash,
		token.FamilyID,
		token.ExpiresAt,
		token.UserAgent,
		token.IPAddress,
	)
	if err != nil {
		return fmt.Errorf("create refresh token: %w", err)
	}
	return nil
}

func (r *repository) FindByHash(ctx context.Context, tokenHash string) (*RefreshToken, error) {
	return r.findOne(ctx, `token_hash = $1`, tokenHash)
}

func (r *repository) FindByID(ctx context.Context, id string) (*RefreshToken, error) {
	return r.findOne(ctx, `id = $1`, id)
}

func (r *repository) findOne(ctx context.Context, where string, arg any) (*RefreshToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM refresh_tokens WHERE ` + where

	var token RefreshToken
	err := r.db.GetContext(ctx, &token, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find refresh token: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	return &token, nil
}

func (r *repository) Rotate(ctx context.Context, id, nextID string) error {
	query := `
		UPDATE refresh_tokens
		SET rotated_at = NOW(), rotated_to = $2
		WHERE id = $1 AND rotated_at IS NULL`

	n, err := r.exec(ctx, query, id, nextID)
	if err != nil {
		return fmt.Errorf("rotate refresh token: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("rotate refresh token: %w", core.ErrNotFound)
	}
	return nil
}

func (r *repository) Revoke(ctx context.Context, id string, reason RevokeReason) error {
	n, err := r.revoke(ctx, `id = $2`, reason, id)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("revoke refresh token: %w", core.ErrNotFound)
	}
	return nil
}

func (r *repository) RevokeFamily(ctx context.Context, familyID string, reason RevokeReason) (int64, error) {
	n, err := r.revoke(ctx, `family_id = $2`, reason, familyID)
	if err != nil {
		return 0, fmt.Errorf("revoke token family: %w", err)
	}
	return n, nil
}

func (r *repository) RevokeAllForUser(ctx context.Context, userID string, reason RevokeReason) (int64, error) {
	n, err := r.revoke(ctx, `user_id = $2`, reason, userID)
	if err != nil {
		return 0, fmt.Errorf("revoke user tokens: %w", err)
	}
	return n, nil
}

// revoke only touches live rows, so the first reason recorded wins.
func (r *repository) revoke(ctx context.Context, where string, reason RevokeReason, arg any) (int64, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked_at = NOW(), revoked_reason = $1
		WHERE revoked_at IS NULL AND ` + where

	return r.exec(ctx, query, reason, arg)
}

func (r *repository) ActiveSessions(ctx context.Context, userID string) ([]RefreshToken, error) {
	query := `
		SELECT ` + tokenColumns + `
		FROM refresh_tokens
		WHERE user_id = $1
			AND revoked_at IS NULL
			AND rotated_at IS NULL
			AND expires_at > NOW()
		ORDER BY created_at DESC`

	var tokens []RefreshToken
	if err := r.db.SelectContext(ctx, &tokens, query, userID); err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}
	return tokens, nil
}

func (r *repository) PruneExpired(ctx context.Context, before time.Time) (int64, error) {
	n, err := r.exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("prune expired tokens: %w", err)
	}
	return n, nil
}

func (r *repository) exec(ctx context.Context, query string, args ...any) (int64, error) {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
