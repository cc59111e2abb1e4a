// AngelaMos | 2026
// gate.go

package rbac

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/sorser/backend/internal/core"
	"github.com/sorser/backend/internal/metrics"
)

var (
	ErrAuthenticationRequired = fmt.Errorf("authentication required: %w", core.ErrUnauthorized)
	ErrAuthorizationDenied    = fmt.Errorf("authorization denied: %w", core.ErrForbidden)
)

type PermissionLookup interface {
	UserPermissionNames(ctx context.Context, userID string) ([]string, error)
}

// Gate answers whether a user may perform an action on a page. A user's
// effective permissions are the union of direct grants and grants through
// roles. There is no role that bypasses the check.
type Gate struct {
	lookup PermissionLookup
	logger *slog.Logger
}

func NewGate(lookup PermissionLookup, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{lookup: lookup, logger: logger}
}

func (g *Gate) CanUserAccess(
	ctx context.Context,
	userID, page, action string,
) (bool, error) {
	if userID == "" {
		return false, ErrAuthenticationRequired
	}

	names, err := g.lookup.UserPermissionNames(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("load permissions: %w", err)
	}

	return slices.Contains(names, PermissionName(page, action)), nil
}

func (g *Gate) Authorize(ctx context.Context, userID, page, action string) error {
	ok, err := g.CanUserAccess(ctx, userID, page, action)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	metrics.AuthorizationDenialsTotal.WithLabelValues(PermissionName(page, action)).Inc()
	g.logger.WarnContext(ctx, "permission denied",
		"user_id", userID,
		"page", page,
		"action", action,
	)
	return fmt.Errorf("%w: %s", ErrAuthorizationDenied, PermissionName(page, action))
}
