// AngelaMos | 2026
// handler.go

package progress

import (
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

func (h *Handler) RegisterRoutes(r chi.Router, authenticator func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(authenticator)

		r.Post("/articles/{articleID}/complete", h.CompleteArticle)
		r.Post("/quizzes/{quizID}/attempts", h.SubmitQuiz)
		r.Post("/homophone-checks", h.SaveHomophoneCheck)
		r.Post("/typing-sessions", h.RecordTyping)
	})
}

func (h *Handler) CompleteArticle(w http.ResponseWriter, r *http.Request) {
	articleID, ok := pathID(w, r, "articleID")
	if !ok {
		return
	}

	var req CompleteArticleRequest
	if !core.DecodeAndValidate(w, r, h.validator, &req) {
		return
	}

	resp, err := h.service.CompleteArticle(r.Context(), middleware.GetUserID(r.Context()), articleID, req)
	if err != nil {
		core.Fail(w, err)
		return
	}

	core.Created(w, resp)
}

func (h *Handler) SubmitQuiz(w http.ResponseWriter, r *http.Request) {
	quizID, ok := pathID(w, r, "quizID")
	if !ok {
		return
	}

	var req SubmitQuizRequest
	if !core.DecodeAndValidate(w, r, h.validator, &req) {
		return
	}

	attempt, err := h.service.SubmitQuiz(r.Context(), middleware.GetUserID(r.Context()), quizID, req)
	if err != nil {
		core.Fail(w, err)
		return
	}

	core.Created(w, attempt)
}

func (h *Handler) SaveHomophoneCheck(w http.ResponseWriter, r *http.Request) {
	var req HomophoneCheckRequest
	if !core.DecodeAndValidate(w, r, h.validator, &req) {
		return
	}

	resp, err := h.service.SaveHomophoneCheck(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		core.Fail(w, err)
		return
	}

	core.Created(w, resp)
}

func (h *Handler) RecordTyping(w http.ResponseWriter, r *http.Request) {
	var req TypingSessionRequest
	if !core.DecodeAndValidate(w, r, h.validator, &req) {
		return
	}

	session, err := h.service.RecordTyping(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		core.Fail(w, err)
		return
	}

	core.Created(w, session)
}

func pathID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		core.BadRequest(w, "invalid "+param)
		return 0, false
	}
	return id, true
}
