// AngelaMos | 2026
// worker.go

package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"

	"github.com/sorser/backend/internal/config"
	"github.com/sorser/backend/internal/core"
	"github.com/sorser/backend/internal/metrics"
)

type Handler interface {
	Handle(ctx context.Context, env *Envelope) error
}

type HandlerFunc func(ctx context.Context, env *Envelope) error

func (f HandlerFunc) Handle(ctx context.Context, env *Envelope) error {
	return f(ctx, env)
}

// FailureHandler is called once when a job has used up its tries, before
// the envelope moves to the dead-letter stream.
type FailureHandler interface {
	Failed(ctx context.Context, env *Envelope, err error)
}

type WorkerConfig struct {
	Group          string
	Consumer       string
	BlockTime      time.Duration
	BatchSize      int64
	PendingIdle    time.Duration
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	Workers        int
	Capacity       int
}

func WorkerConfigFrom(cfg config.QueueConfig, hostname string) WorkerConfig {
	return WorkerConfig{
		Group:          cfg.Group,
		Consumer:       cfg.ConsumerName(hostname),
		BlockTime:      cfg.BlockTime,
		BatchSize:      cfg.BatchSize,
		PendingIdle:    cfg.PendingIdle,
		BackoffInitial: cfg.BackoffInitial,
		BackoffMax:     cfg.BackoffMax,
		Workers:        cfg.Workers,
		Capacity:       cfg.Capacity,
	}
}

// Worker consumes the stream through a consumer group. Stale pending
// entries from crashed consumers are reclaimed before new ones are read, so
// delivery is at-least-once.
type Worker struct {
	rdb      *redis.Client
	producer *Producer
	cfg      WorkerConfig
	logger   *slog.Logger
	now      func() time.Time

	mu           sync.RWMutex
	handlers     map[string]Handler
	pendingStart string
}

func NewWorker(rdb *redis.Client, producer *Producer, cfg WorkerConfig, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.BlockTime <= 0 {
		cfg.BlockTime = time.Second
	}
	if cfg.PendingIdle <= 0 {
		cfg.PendingIdle = 15 * time.Minute
	}
	if cfg.BackoffInitial <= 0 {
		cfg.BackoffInitial = 5 * time.Second
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = 5 * time.Minute
	}

	return &Worker{
		rdb:          rdb,
		producer:     producer,
		cfg:          cfg,
		logger:       logger.With("component", "queue_worker", "consumer", cfg.Consumer),
		now:          time.Now,
		handlers:     make(map[string]Handler),
		pendingStart: "0-0",
	}
}

func (w *Worker) Register(jobType string, h Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[jobType] = h
}

func (w *Worker) handler(jobType string) (Handler, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	h, ok := w.handlers[jobType]
	return h, ok
}

func (w *Worker) EnsureGroup(ctx context.Context) error {
	err := w.rdb.XGroupCreateMkStream(ctx, w.producer.stream, w.cfg.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group: %w", err)
	}
	return nil
}

type message struct {
	id   string
	data string
}

func (w *Worker) read(ctx context.Context) ([]message, error) {
	claimed, next, err := w.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   w.producer.stream,
		Group:    w.cfg.Group,
		Consumer: w.cfg.Consumer,
		MinIdle:  w.cfg.PendingIdle,
		Start:    w.pendingStart,
		Count:    w.cfg.BatchSize,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("xautoclaim: %w", err)
	}
	if next != "" {
		w.pendingStart = next
	}
	if len(claimed) > 0 {
		w.logger.InfoContext(ctx, "reclaimed stale jobs", "count", len(claimed))
		return toMessages(claimed), nil
	}

	streams, err := w.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    w.cfg.Group,
		Consumer: w.cfg.Consumer,
		Streams:  []string{w.producer.stream, ">"},
		Count:    w.cfg.BatchSize,
		Block:    w.cfg.BlockTime,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("xreadgroup: %w", err)
	}

	var out []message
	for _, s := range streams {
		out = append(out, toMessages(s.Messages)...)
	}
	return out, nil
}

func toMessages(xs []redis.XMessage) []message {
	out := make([]message, 0, len(xs))
	for _, x := range xs {
		data, _ := x.Values["data"].(string)
		out = append(out, message{id: x.ID, data: data})
	}
	return out
}

// Poll reads one batch and processes it on the calling goroutine.
func (w *Worker) Poll(ctx context.Context) (int, error) {
	msgs, err := w.read(ctx)
	if err != nil {
		return 0, err
	}
	for _, m := range msgs {
		w.process(ctx, m)
	}
	return len(msgs), nil
}

// Run consumes until ctx is cancelled, fanning messages out to a bounded
// pool, then drains the pool.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.EnsureGroup(ctx); err != nil {
		return err
	}

	pool := NewPool(w.logger, w.cfg.Workers, w.cfg.Capacity)
	pool.Start(context.WithoutCancel(ctx))

	w.logger.InfoContext(ctx, "queue worker started",
		"stream", w.producer.stream,
		"group", w.cfg.Group,
		"workers", w.cfg.Workers,
	)

	for ctx.Err() == nil {
		msgs, err := w.read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			w.logger.ErrorContext(ctx, "queue read failed", "error", err)
			sleep(ctx, time.Second)
			continue
		}

		for _, m := range msgs {
			if err := pool.Submit(ctx, func(taskCtx context.Context) { w.process(taskCtx, m) }); err != nil {
				break
			}
		}
	}

	w.logger.Info("queue worker stopping", "stats", pool.Stats())
	return pool.Shutdown(30 * time.Second)
}

func (w *Worker) process(ctx context.Context, m message) {
	if m.data == "" {
		w.bury(ctx, m, "", "invalid message format")
		return
	}

	env, err := parseEnvelope(m.data)
	if err != nil {
		w.bury(ctx, m, "", err.Error())
		return
	}

	h, ok := w.handler(env.Type)
	if !ok {
		w.bury(ctx, m, env.Type, "no handler registered for "+env.Type)
		return
	}

	env.Attempt++
	start := w.now()
	err = w.invoke(ctx, h, env)
	metrics.JobDuration.WithLabelValues(env.Type).Observe(time.Since(start).Seconds())

	log := w.logger.With("job_id", env.ID, "type", env.Type, "attempt", env.Attempt, "max_tries", env.MaxTries)

	if err == nil {
		metrics.JobsProcessedTotal.WithLabelValues(env.Type, "success").Inc()
		log.DebugContext(ctx, "job succeeded", "duration", time.Since(start))
		w.ack(ctx, m.id)
		return
	}

	env.LastError = err.Error()

	if !env.Exhausted() {
		delay := w.retryDelay(env.Attempt)
		if schedErr := w.producer.Schedule(ctx, env, w.now().Add(delay)); schedErr != nil {
			// Leave the entry pending; XAUTOCLAIM will hand it out again.
			log.ErrorContext(ctx, "schedule retry failed", "error", schedErr)
			return
		}
		metrics.JobsProcessedTotal.WithLabelValues(env.Type, "retry").Inc()
		log.WarnContext(ctx, "job failed, retry scheduled", "error", err, "delay", delay)
		w.ack(ctx, m.id)
		return
	}

	metrics.JobsProcessedTotal.WithLabelValues(env.Type, "failed").Inc()
	log.ErrorContext(ctx, "job failed permanently", "error", err)

	if fh, ok := h.(FailureHandler); ok {
		fh.Failed(ctx, env, err)
	}

	w.bury(ctx, message{id: m.id, data: mustJSON(env, m.data)}, env.Type, err.Error())
}

func (w *Worker) invoke(ctx context.Context, h Handler, env *Envelope) (err error) {
	timeout := env.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	spanCtx, span := core.StartSpan(ctx, "job "+env.Type,
		attribute.String("job.id", env.ID),
		attribute.Int("job.attempt", env.Attempt),
	)
	defer span.End()

	jobCtx, cancel := context.WithTimeout(spanCtx, timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			w.logger.ErrorContext(ctx, "job panic recovered",
				"job_id", env.ID,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			err = fmt.Errorf("panic: %v", r)
		}
		if err != nil {
			core.SetSpanError(spanCtx, err)
		}
	}()

	if err := h.Handle(jobCtx, env); err != nil {
		return err
	}
	if errors.Is(jobCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("job exceeded timeout %s", timeout)
	}
	return nil
}

// retryDelay is the delay before attempt+1, growing exponentially from
// BackoffInitial with jitter and capped at BackoffMax.
func (w *Worker) retryDelay(attempt int) time.Duration {
	b := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(w.cfg.BackoffInitial),
		backoff.WithMaxInterval(w.cfg.BackoffMax),
		backoff.WithMaxElapsedTime(0),
	)

	d := b.NextBackOff()
	for i := 1; i < attempt; i++ {
		d = b.NextBackOff()
	}
	return d
}

func (w *Worker) bury(ctx context.Context, m message, jobType, reason string) {
	if jobType == "" {
		jobType = "unknown"
	}
	metrics.JobsProcessedTotal.WithLabelValues(jobType, "dead").Inc()

	if err := w.producer.Bury(ctx, m.id, m.data, reason); err != nil {
		w.logger.ErrorContext(ctx, "dead letter publish failed", "msg_id", m.id, "error", err)
		return
	}
	w.logger.WarnContext(ctx, "job moved to dead letters", "msg_id", m.id, "type", jobType, "reason", reason)
	w.ack(ctx, m.id)
}

func (w *Worker) ack(ctx context.Context, msgID string) {
	if err := w.rdb.XAck(ctx, w.producer.stream, w.cfg.Group, msgID).Err(); err != nil {
		w.logger.ErrorContext(ctx, "xack failed", "msg_id", msgID, "error", err)
		return
	}
	// Acked entries are dropped so XLEN reflects work still outstanding.
	if err := w.rdb.XDel(ctx, w.producer.stream, msgID).Err(); err != nil {
		w.logger.WarnContext(ctx, "xdel failed", "msg_id", msgID, "error", err)
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
