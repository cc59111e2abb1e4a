// AngelaMos | 2026
// permission.go

package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/sorser/backend/internal/core"
)

// Authorizer decides whether userID holds the permission for page/action.
// It returns an error wrapping core.ErrUnauthorized when no principal is
// present and one wrapping core.ErrForbidden on denial.
type Authorizer interface {
	Authorize(ctx context.Context, userID, page, action string) error
}

// RequirePermission guards a route with the `{page}-{action}` permission.
// It must run after Authenticator.
func RequirePermission(
	authz Authorizer,
	page, action string,
) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			err := authz.Authorize(r.Context(), GetUserID(r.Context()), page, action)
			switch {
			case err == nil:
				next.ServeHTTP(w, r)
			case errors.Is(err, core.ErrUnauthorized):
				core.JSONError(w, core.UnauthorizedError("authentication required"))
			case errors.Is(err, core.ErrForbidden):
				core.JSONError(w, core.ForbiddenError("insufficient permissions"))
			default:
				core.InternalServerError(w, err)
			}
		})
	}
}
