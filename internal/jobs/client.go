// AngelaMos | 2026
// client.go

package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/sorser/backend/internal/analytics"
	"github.com/sorser/backend/internal/config"
	"github.com/sorser/backend/internal/core"
	"github.com/sorser/backend/internal/events"
	"github.com/sorser/backend/internal/queue"
)

const (
	TypeCalculateUserAnalytics = "analytics.calculate_user"
	TypeExport                 = "analytics.export"
	TypeProgressReport         = "reports.progress"
	TypeListener               = "events.listener"
)

var options = map[string]queue.Options{
	TypeCalculateUserAnalytics: {MaxTries: 3, Timeout: 120 * time.Second},
	TypeExport:                 {MaxTries: 3, Timeout: config.MaxJobTimeout},
	TypeProgressReport:         {MaxTries: 3, Timeout: 120 * time.Second},
	TypeListener:               {MaxTries: 3, Timeout: 120 * time.Second},
}

type CalculateUserPayload struct {
	UserID string `json:"user_id"`
}

type ExportPayload struct {
	Type        string                  `json:"type"`
	Filters     analytics.StudentFilter `json:"filters"`
	UserID      string                  `json:"user_id,omitempty"`
	RequestedBy string                  `json:"requested_by"`
}

type ReportPayload struct {
	UserID     string `json:"user_id"`
	ReportType string `json:"report_type"`
}

type ListenerPayload struct {
	Listener string          `json:"listener"`
	Event    string          `json:"event"`
	Data     json.RawMessage `json:"data"`
}

type Enqueuer interface {
	Enqueue(ctx context.Context, jobType string, payload any, opts queue.Options) (*queue.Envelope, error)
}

// Client is the producing side used by the API process and by listeners.
type Client struct {
	queue  Enqueuer
	logger *slog.Logger
}

var (
	_ analytics.Scheduler = (*Client)(nil)
	_ events.Deferrer     = (*Client)(nil)
)

func NewClient(q Enqueuer, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{queue: q, logger: logger.With("component", "jobs_client")}
}

func (c *Client) CalculateUserAnalytics(ctx context.Context, userID string) error {
	_, err := c.enqueue(ctx, TypeCalculateUserAnalytics, CalculateUserPayload{UserID: userID})
	return err
}

func (c *Client) ScheduleExport(
	ctx context.Context,
	req analytics.ExportRequest,
	requestedBy string,
) (string, error) {
	return c.enqueue(ctx, TypeExport, ExportPayload{
		Type:        req.Type,
		Filters:     req.Filters,
		UserID:      req.UserID,
		RequestedBy: requestedBy,
	})
}

func (c *Client) ScheduleReport(ctx context.Context, userID, reportType string) (string, error) {
	if _, err := analytics.ReportWindow(reportType); err != nil {
		return "", fmt.Errorf("schedule report: %w: %w", core.ErrInvalidInput, err)
	}
	return c.enqueue(ctx, TypeProgressReport, ReportPayload{UserID: userID, ReportType: reportType})
}

// Defer queues a listener invocation with the event's JSON body.
func (c *Client) Defer(ctx context.Context, listener string, ev events.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", ev.EventName(), err)
	}
	_, err = c.enqueue(ctx, TypeListener, ListenerPayload{
		Listener: listener,
		Event:    ev.EventName(),
		Data:     data,
	})
	return err
}

func (c *Client) enqueue(ctx context.Context, jobType string, payload any) (string, error) {
	env, err := c.queue.Enqueue(ctx, jobType, payload, options[jobType])
	if err != nil {
		return "", fmt.Errorf("enqueue %s: %w", jobType, err)
	}
	return env.ID, nil
}
