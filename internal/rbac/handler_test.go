// AngelaMos | 2026
// handler_test.go

package rbac_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sorser/backend/internal/core"
	"github.com/sorser/backend/internal/middleware"
	"github.com/sorser/backend/internal/rbac"
	"github.com/sorser/backend/internal/rbac/rbactest"
)

func asUser(id string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := middleware.WithClaims(r.Context(), &middleware.AccessTokenClaims{UserID: id})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func newRouter(t *testing.T, repo *rbactest.Repository, uid string) *chi.Mux {
	t.Helper()
	r := chi.NewRouter()
	rbac.NewHandler(newService(repo)).RegisterRoutes(r, asUser(uid), rbac.NewGate(repo, nil))
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandlerDeniesWithoutPermission(t *testing.T) {
	repo := rbactest.NewRepository()
	rec := do(newRouter(t, repo, userID), http.MethodGet, "/admin/roles", "")

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandlerSyncRolePermissions(t *testing.T) {
	ctx := context.Background()
	repo := rbactest.NewRepository()
	adminRole := seedRole(t, repo, "Admin", "roles-edit", "roles-view")
	require.NoError(t, repo.AttachUserRoles(ctx, userID, []int64{adminRole}))

	target, err := repo.EnsureRole(ctx, "Instructor", rbac.DefaultGuard)
	require.NoError(t, err)
	ids := permIDs(t, repo, "analytics-view")

	router := newRouter(t, repo, userID)
	body := `{"permission_ids":[` + strconv.FormatInt(ids[0], 10) + `]}`
	rec := do(router, http.MethodPut, "/admin/roles/"+strconv.FormatInt(target.ID, 10)+"/permissions", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Success bool            `json:"success"`
		Data    rbac.SyncResult `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Success)
	assert.Equal(t, ids, resp.Data.Added)

	rec = do(router, http.MethodPut, "/admin/roles/abc/permissions", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(router, http.MethodPut, "/admin/roles/9999/permissions", body)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerGrantNeedsExactlyOneTarget(t *testing.T) {
	ctx := context.Background()
	repo := rbactest.NewRepository()
	adminRole := seedRole(t, repo, "Admin", "permissions-edit")
	require.NoError(t, repo.AttachUserRoles(ctx, userID, []int64{adminRole}))
	router := newRouter(t, repo, userID)

	rec := do(router, http.MethodPost, "/admin/permissions/grant",
		`{"permission_id":1,"role_id":1,"user_id":"`+userID+`"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(router, http.MethodPost, "/admin/permissions/grant", `{"permission_id":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body core.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "VALIDATION_FAILED", body.Error.Code)

	pid := permIDs(t, repo, "reports-view")[0]
	rec = do(router, http.MethodPost, "/admin/permissions/grant",
		`{"permission_id":`+strconv.FormatInt(pid, 10)+`,"role_id":`+strconv.FormatInt(adminRole, 10)+`}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestHandlerAssignAndRemoveRole(t *testing.T) {
	ctx := context.Background()
	repo := rbactest.NewRepository()
	adminRole := seedRole(t, repo, "Admin", "users-edit", "users-view")
	require.NoError(t, repo.AttachUserRoles(ctx, userID, []int64{adminRole}))
	instructor := seedRole(t, repo, "Instructor", "analytics-view")
	router := newRouter(t, repo, userID)

	const student = "5d2e7c1a-0f3b-4a6e-9c8d-1b2a3c4d5e6f"
	path := "/admin/users/" + student + "/roles/" + strconv.FormatInt(instructor, 10)

	permissions := func() []string {
		rec := do(router, http.MethodGet, "/admin/users/"+student+"/permissions", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			Data rbac.UserPermissionsResponse `json:"data"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		return resp.Data.Permissions
	}

	assert.Equal(t, http.StatusNoContent, do(router, http.MethodPost, path, "").Code)
	assert.Equal(t, []string{"analytics-view"}, permissions())

	assert.Equal(t, http.StatusNoContent, do(router, http.MethodDelete, path, "").Code)
	assert.Empty(t, permissions())

	assert.Equal(t, http.StatusNotFound, do(router, http.MethodPost, "/admin/users/"+student+"/roles/9999", "").Code)
}
