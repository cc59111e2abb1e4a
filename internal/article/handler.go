// AngelaMos | 2026
// handler.go

package article

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sorser/backend/internal/core"
	"github.com/sorser/backend/internal/middleware"
)

type Handler struct {
	progression *Progression
}

func NewHandler(progression *Progression) *Handler {
	return &Handler{progression: progression}
}

func (h *Handler) RegisterRoutes(r chi.Router, authenticator func(http.Handler) http.Handler) {
	r.With(authenticator).Get("/articles/{articleID}/access", h.GetAccess)
}

func (h *Handler) GetAccess(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "articleID"), 10, 64)
	if err != nil || id <= 0 {
		core.BadRequest(w, "invalid article id")
		return
	}

	access, err := h.progression.Access(r.Context(), middleware.GetUserID(r.Context()), id)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "article")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, access)
}
