// AngelaMos | 2026
// handler.go

package analytics

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/sorser/backend/internal/core"
	"github.com/sorser/backend/internal/middleware"
)

// Scheduler hands long-running analytics work to the job queue and
// returns the job id.
type Scheduler interface {
	ScheduleExport(ctx context.Context, req ExportRequest, requestedBy string) (string, error)
	ScheduleReport(ctx context.Context, userID, reportType string) (string, error)
}

type Handler struct {
	service   *Service
	scheduler Scheduler
	validator *validator.Validate
}

func NewHandler(service *Service, scheduler Scheduler) *Handler {
	return &Handler{
		service:   service,
		scheduler: scheduler,
		validator: core.NewValidator(),
	}
}

type ReportRequest struct {
	UserID     string `json:"user_id"     validate:"required"`
	ReportType string `json:"report_type" validate:"required,oneof=weekly monthly"`
}

type JobAccepted struct {
	JobID string `json:"job_id"`
}

type HistoryResponse struct {
	Days    int           `json:"days"`
	Streak  Streak        `json:"streak"`
	History []DayActivity `json:"history"`
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

		r.Get("/progress/me", h.MySummary)
		r.Get("/progress/me/history", h.MyHistory)

		r.With(can("analytics", "view")).Get("/admin/analytics/users/{userID}", h.UserSummary)
		r.With(can("analytics", "view")).Get("/admin/analytics/platform", h.Platform)
		r.With(can("analytics", "export")).Post("/admin/analytics/exports", h.Export)
		r.With(can("reports", "create")).Post("/admin/reports", h.Report)
	})
}

func (h *Handler) MySummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.UserSummary(r.Context(), middleware.GetUserID(r.Context()), 0)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}
	core.OK(w, summary)
}

func (h *Handler) MyHistory(w http.ResponseWriter, r *http.Request) {
	days := 0
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > MaxHistoryDays {
			core.BadRequest(w, "days must be between 1 and "+strconv.Itoa(MaxHistoryDays))
			return
		}
		days = n
	}

	summary, err := h.service.UserSummary(r.Context(), middleware.GetUserID(r.Context()), days)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, HistoryResponse{
		Days:    summary.HistoryDays,
		Streak:  summary.Streak,
		History: summary.History,
	})
}

func (h *Handler) UserSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.UserSummary(r.Context(), chi.URLParam(r, "userID"), 0)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}
	core.OK(w, summary)
}

func (h *Handler) Platform(w http.ResponseWriter, r *http.Request) {
	totals, err := h.service.Platform(r.Context())
	if err != nil {
		core.InternalServerError(w, err)
		return
	}
	core.OK(w, totals)
}

func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	var req ExportRequest
	if !core.DecodeAndValidate(w, r, h.validator, &req) {
		return
	}

	id, err := h.scheduler.ScheduleExport(r.Context(), req, middleware.GetUserID(r.Context()))
	if err != nil {
		core.Fail(w, err)
		return
	}
	core.Accepted(w, JobAccepted{JobID: id})
}

func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	var req ReportRequest
	if !core.DecodeAndValidate(w, r, h.validator, &req) {
		return
	}

	id, err := h.scheduler.ScheduleReport(r.Context(), req.UserID, req.ReportType)
	if err != nil {
		core.Fail(w, err)
		return
	}
	core.Accepted(w, JobAccepted{JobID: id})
}
