// AngelaMos | 2026
// metrics.go

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sorser"

var (
	EventsDispatchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_dispatched_total",
		Help:      "Domain events dispatched, by event name.",
	}, []string{"event"})

	ListenerRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "listener_runs_total",
		Help:      "Listener executions by listener, mode and outcome.",
	}, []string{"listener", "mode", "outcome"})

	JobsEnqueuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_enqueued_total",
		Help:      "Jobs pushed onto the queue, by type.",
	}, []string{"type"})

	JobsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_processed_total",
		Help:      "Job attempts by type and outcome (success, retry, failed, dead).",
	}, []string{"type", "outcome"})

	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "job_duration_seconds",
		Help:      "Wall time of a single job attempt.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 120, 300},
	}, []string{"type"})

	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_depth",
		Help:      "Messages waiting, by queue (stream, delayed, dead).",
	}, []string{"queue"})

	AnalyticsCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "analytics_cache_total",
		Help:      "Analytics cache lookups by result (hit, miss, invalidate).",
	}, []string{"result"})

	AuthorizationDenialsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "authorization_denials_total",
		Help:      "Requests refused by the permission gate, by permission.",
	}, []string{"permission"})

	MailsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "mails_sent_total",
		Help:      "Outgoing mail by template and outcome.",
	}, []string{"template", "outcome"})
)

func Handler() http.Handler {
	return promhttp.Handler()
}
