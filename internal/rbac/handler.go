// AngelaMos | 2026
// handler.go

package rbac

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/sorser/backend/internal/core"
	"github.com/sorser/backend/internal/middleware"
)

type Handler struct {
	service   *Service
	validator *validator.Validate
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: core.NewValidator(),
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
	authz middleware.Authorizer,
) {
	can := func(page, action string) func(http.Handler) http.Handler {
		return middleware.RequirePermission(authz, page, action)
	}

	r.Group(func(r chi.Router) {
		r.Use(authenticator)

		r.With(can("roles", ActionView)).Get("/admin/roles", h.ListRoles)
		r.With(can("roles", ActionCreate)).Post("/admin/roles", h.CreateRole)
		r.With(can("roles", ActionEdit)).Put("/admin/roles/{roleID}/permissions", h.SyncRolePermissions)

		r.With(can("permissions", ActionView)).Get("/admin/permissions", h.ListPermissions)
		r.With(can("permissions", ActionCreate)).Post("/admin/permissions", h.CreatePermission)
		r.With(can("permissions", ActionEdit)).Post("/admin/permissions/grant", h.Grant)
		r.With(can("permissions", ActionEdit)).Post("/admin/permissions/revoke", h.Revoke)

		r.With(can("users", ActionEdit)).Put("/admin/users/{userID}/roles", h.SyncUserRoles)
		r.With(can("users", ActionEdit)).Post("/admin/users/{userID}/roles/{roleID}", h.AssignRole)
		r.With(can("users", ActionEdit)).Delete("/admin/users/{userID}/roles/{roleID}", h.RemoveRole)
		r.With(can("users", ActionView)).Get("/admin/users/{userID}/permissions", h.UserPermissions)
	})
}

func (h *Handler) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, roles)
}

func (h *Handler) CreateRole(w http.ResponseWriter, r *http.Request) {
	var req CreateRoleRequest
	if !core.DecodeAndValidate(w, r, h.validator, &req) {
		return
	}

	role, err := h.service.CreateRole(r.Context(), req)
	if err != nil {
		writeError(w, err, "role")
		return
	}

	core.Created(w, role)
}

func (h *Handler) SyncRolePermissions(w http.ResponseWriter, r *http.Request) {
	roleID, ok := parseID(w, chi.URLParam(r, "roleID"))
	if !ok {
		return
	}

	var req SyncPermissionsRequest
	if !core.DecodeAndValidate(w, r, h.validator, &req) {
		return
	}

	result, err := h.service.SyncRolePermissions(r.Context(), roleID, req.PermissionIDs)
	if err != nil {
		writeError(w, err, "role")
		return
	}

	core.OK(w, result)
}

func (h *Handler) ListPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.service.ListPermissions(r.Context())
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, perms)
}

func (h *Handler) CreatePermission(w http.ResponseWriter, r *http.Request) {
	var req CreatePermissionRequest
	if !core.DecodeAndValidate(w, r, h.validator, &req) {
		return
	}

	perm, err := h.service.CreatePermission(r.Context(), req.Name)
	if err != nil {
		writeError(w, err, "permission")
		return
	}

	core.Created(w, perm)
}

func (h *Handler) Grant(w http.ResponseWriter, r *http.Request) {
	var req GrantRequest
	if !core.DecodeAndValidate(w, r, h.validator, &req) {
		return
	}

	if err := h.service.Grant(r.Context(), req); err != nil {
		writeError(w, err, "permission or role")
		return
	}

	core.NoContent(w)
}

func (h *Handler) Revoke(w http.ResponseWriter, r *http.Request) {
	var req GrantRequest
	if !core.DecodeAndValidate(w, r, h.validator, &req) {
		return
	}

	if err := h.service.Revoke(r.Context(), req); err != nil {
		writeError(w, err, "permission or role")
		return
	}

	core.NoContent(w)
}

func (h *Handler) SyncUserRoles(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req SyncRolesRequest
	if !core.DecodeAndValidate(w, r, h.validator, &req) {
		return
	}

	result, err := h.service.SyncUserRoles(r.Context(), userID, req.RoleIDs)
	if err != nil {
		writeError(w, err, "role")
		return
	}

	core.OK(w, result)
}

func (h *Handler) AssignRole(w http.ResponseWriter, r *http.Request) {
	roleID, ok := parseID(w, chi.URLParam(r, "roleID"))
	if !ok {
		return
	}

	if err := h.service.AssignRole(r.Context(), chi.URLParam(r, "userID"), roleID); err != nil {
		writeError(w, err, "role")
		return
	}

	core.NoContent(w)
}

func (h *Handler) RemoveRole(w http.ResponseWriter, r *http.Request) {
	roleID, ok := parseID(w, chi.URLParam(r, "roleID"))
	if !ok {
		return
	}

	if err := h.service.RemoveRole(r.Context(), chi.URLParam(r, "userID"), roleID); err != nil {
		writeError(w, err, "role")
		return
	}

	core.NoContent(w)
}

func (h *Handler) UserPermissions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	names, err := h.service.UserPermissions(r.Context(), userID)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, UserPermissionsResponse{UserID: userID, Permissions: names})
}

func writeError(w http.ResponseWriter, err error, resource string) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, resource)
	case errors.Is(err, core.ErrDuplicateKey):
		core.JSONError(w, core.DuplicateError(resource))
	case errors.Is(err, core.ErrInvalidInput):
		core.BadRequest(w, err.Error())
	default:
		core.InternalServerError(w, err)
	}
}

func parseID(w http.ResponseWriter, raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		core.BadRequest(w, "invalid id")
		return 0, false
	}
	return id, true
}
