// AngelaMos | 2026
// handlers.go

package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/sorser/backend/internal/analytics"
	"github.com/sorser/backend/internal/events"
	"github.com/sorser/backend/internal/queue"
)

const artifactLayout = "20060102_150405"

type Registrar interface {
	Register(jobType string, h queue.Handler)
}

type Storage interface {
	Put(ctx context.Context, name string, data []byte) (string, error)
}

type Deps struct {
	Analytics *analytics.Service
	Exporter  *analytics.Exporter
	Storage   Storage
	Bus       *events.Bus
	Logger    *slog.Logger
	Now       func() time.Time
}

// job adapts a run function to queue.Handler and logs the final failure
// with whatever the payload says about the job.
type job struct {
	name     string
	run      func(ctx context.Context, env *queue.Envelope) error
	describe func(env *queue.Envelope) []any
	logger   *slog.Logger
}

func (j *job) Handle(ctx context.Context, env *queue.Envelope) error {
	return j.run(ctx, env)
}

func (j *job) Failed(ctx context.Context, env *queue.Envelope, err error) {
	attrs := []any{
		"job", j.name,
		"job_id", env.ID,
		"attempts", env.Attempt,
		"error", err,
	}
	if j.describe != nil {
		attrs = append(attrs, j.describe(env)...)
	}
	j.logger.ErrorContext(ctx, "job gave up", attrs...)
}

type runner struct {
	Deps
}

// Register binds every job type to w.
func Register(w Registrar, deps Deps) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	r := &runner{Deps: deps}
	log := deps.Logger.With("component", "jobs")

	register := func(name string, run func(context.Context, *queue.Envelope) error, describe func(*queue.Envelope) []any) {
		w.Register(name, &job{name: name, run: run, describe: describe, logger: log})
	}
	register(TypeCalculateUserAnalytics, r.calculateUser, describeCalculate)
	register(TypeExport, r.export, describeExport)
	register(TypeProgressReport, r.progressReport, describeReport)
	register(TypeListener, r.listener, describeListener)
}

func (r *runner) calculateUser(ctx context.Context, env *queue.Envelope) error {
	var p CalculateUserPayload
	if err := env.Decode(&p); err != nil {
		return err
	}

	s, err := r.Analytics.Refresh(ctx, p.UserID)
	if err != nil {
		return fmt.Errorf("refresh analytics: %w", err)
	}

	r.Logger.InfoContext(ctx, "user analytics recalculated",
		"user_id", p.UserID,
		"articles_completed", s.Articles.Completed,
		"streak", s.Streak.Current,
	)
	return nil
}

type exportArtifact struct {
	Type        string                  `json:"type"`
	Rows        int                     `json:"rows"`
	Filters     analytics.StudentFilter `json:"filters"`
	RequestedBy string                  `json:"requested_by"`
	GeneratedAt time.Time               `json:"generated_at"`
	Data        any                     `json:"data"`
}

func (r *runner) export(ctx context.Context, env *queue.Envelope) error {
	var p ExportPayload
	if err := env.Decode(&p); err != nil {
		return err
	}

	ds, err := r.Exporter.Build(ctx, analytics.ExportRequest{
		Type:    p.Type,
		Filters: p.Filters,
		UserID:  p.UserID,
	})
	if err != nil {
		return fmt.Errorf("build export: %w", err)
	}

	if ds.Rows == 0 {
		r.Logger.WarnContext(ctx, "export produced no rows, nothing written",
			"export_type", p.Type,
			"requested_by", p.RequestedBy,
		)
		return nil
	}

	now := r.Now().UTC()
	body, err := json.MarshalIndent(exportArtifact{
		Type:        ds.Type,
		Rows:        ds.Rows,
		Filters:     p.Filters,
		RequestedBy: p.RequestedBy,
		GeneratedAt: now,
		Data:        ds.Data,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal export: %w", err)
	}

	name := fmt.Sprintf("exports/%s_%s.json", ds.Type, now.Format(artifactLayout))
	path, err := r.Storage.Put(ctx, name, body)
	if err != nil {
		return fmt.Errorf("store export: %w", err)
	}

	r.Logger.InfoContext(ctx, "export written",
		"export_type", ds.Type,
		"rows", ds.Rows,
		"path", path,
		"requested_by", p.RequestedBy,
	)
	return nil
}

func (r *runner) progressReport(ctx context.Context, env *queue.Envelope) error {
	var p ReportPayload
	if err := env.Decode(&p); err != nil {
		return err
	}

	days, err := analytics.ReportWindow(p.ReportType)
	if err != nil {
		return err
	}

	s, err := r.Analytics.Summarize(ctx, p.UserID, days)
	if err != nil {
		return fmt.Errorf("summarize: %w", err)
	}

	report := analytics.BuildReport(p.ReportType, s)

	// TODO: mail the report once a progress report template exists.
	r.Logger.InfoContext(ctx, "progress report built",
		"user_id", report.UserID,
		"report_type", report.Type,
		"from", report.From,
		"to", report.To,
		"active_days", report.ActiveDays,
		"achievements", len(report.Achievements),
	)
	return nil
}

func (r *runner) listener(ctx context.Context, env *queue.Envelope) error {
	var p ListenerPayload
	if err := env.Decode(&p); err != nil {
		return err
	}
	return r.Bus.HandleDeferred(ctx, p.Listener, p.Event, p.Data)
}

// The describe functions read the payload on a best-effort basis. A
// payload that no longer decodes still gets its failure logged.

func describeCalculate(env *queue.Envelope) []any {
	var p CalculateUserPayload
	_ = env.Decode(&p) //nolint:errcheck // best-effort
	return []any{"user_id", p.UserID}
}

func describeExport(env *queue.Envelope) []any {
	var p ExportPayload
	_ = env.Decode(&p) //nolint:errcheck // best-effort
	return []any{
		"export_type", p.Type,
		"user_id", p.UserID,
		"requested_by", p.RequestedBy,
	}
}

func describeReport(env *queue.Envelope) []any {
	var p ReportPayload
	_ = env.Decode(&p) //nolint:errcheck // best-effort
	return []any{"user_id", p.UserID, "report_type", p.ReportType}
}

func describeListener(env *queue.Envelope) []any {
	var p ListenerPayload
	_ = env.Decode(&p) //nolint:errcheck // best-effort
	return []any{"listener", p.Listener, "event", p.Event}
}
