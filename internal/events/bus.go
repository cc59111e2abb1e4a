// AngelaMos | 2026
// bus.go

package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/sorser/backend/internal/core"
	"github.com/sorser/backend/internal/metrics"
)

type Mode int

const (
	Sync Mode = iota
	Queued
)

func (m Mode) String() string {
	if m == Queued {
		return "queued"
	}
	return "sync"
}

type Listener interface {
	Name() string
	Handle(ctx context.Context, ev Event) error
}

// Filter is implemented by listeners that only care about some events of a
// type. A filtered-out queued listener is never enqueued.
type Filter interface {
	ShouldHandle(ev Event) bool
}

// Deferrer hands a queued listener invocation to the job queue.
type Deferrer interface {
	Defer(ctx context.Context, listener string, ev Event) error
}

type binding struct {
	listener Listener
	mode     Mode
}

type Bus struct {
	mu        sync.RWMutex
	bindings  map[string][]binding
	listeners map[string]Listener
	deferrer  Deferrer
	logger    *slog.Logger
}

func NewBus(deferrer Deferrer, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		bindings:  make(map[string][]binding),
		listeners: make(map[string]Listener),
		deferrer:  deferrer,
		logger:    logger,
	}
}

// Listen binds l to eventName. Bindings run in the order they were added.
func (b *Bus) Listen(eventName string, l Listener, mode Mode) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.bindings[eventName] = append(b.bindings[eventName], binding{listener: l, mode: mode})
	b.listeners[l.Name()] = l
}

// Dispatch runs every listener bound to ev's name. A failing listener does
// not stop the rest; all failures come back joined.
func (b *Bus) Dispatch(ctx context.Context, ev Event) error {
	b.mu.RLock()
	bound := b.bindings[ev.EventName()]
	b.mu.RUnlock()

	metrics.EventsDispatchedTotal.WithLabelValues(ev.EventName()).Inc()

	var errs []error
	for _, bd := range bound {
		if f, ok := bd.listener.(Filter); ok && !f.ShouldHandle(ev) {
			b.logger.DebugContext(ctx, "listener skipped",
				"event", ev.EventName(),
				"listener", bd.listener.Name(),
			)
			continue
		}

		if err := b.run(ctx, bd, ev); err != nil {
			metrics.ListenerRunsTotal.WithLabelValues(bd.listener.Name(), bd.mode.String(), "error").Inc()
			b.logger.ErrorContext(ctx, "listener failed",
				"event", ev.EventName(),
				"listener", bd.listener.Name(),
				"mode", bd.mode.String(),
				"user_id", ev.UserKey(),
				"error", err,
			)
			errs = append(errs, fmt.Errorf("%s: %w", bd.listener.Name(), err))
			continue
		}
		metrics.ListenerRunsTotal.WithLabelValues(bd.listener.Name(), bd.mode.String(), "success").Inc()
	}

	return errors.Join(errs...)
}

func (b *Bus) run(ctx context.Context, bd binding, ev Event) error {
	if bd.mode == Queued && b.deferrer != nil {
		core.AddSpanEvent(ctx, "listener queued",
			attribute.String("listener", bd.listener.Name()),
			attribute.String("event", ev.EventName()),
		)
		return b.deferrer.Defer(ctx, bd.listener.Name(), ev)
	}
	return bd.listener.Handle(ctx, ev)
}

// HandleDeferred runs a queued listener inside the worker.
func (b *Bus) HandleDeferred(
	ctx context.Context,
	listener, eventName string,
	raw json.RawMessage,
) error {
	b.mu.RLock()
	l, ok := b.listeners[listener]
	b.mu.RUnlock()
	if !ok {
		return fmt.Errorf("handle deferred: unknown listener %q", listener)
	}

	ev, err := Decode(eventName, raw)
	if err != nil {
		return err
	}

	return l.Handle(ctx, ev)
}

// Listener looks up a registered listener by name.
func (b *Bus) Listener(name string) (Listener, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	l, ok := b.listeners[name]
	return l, ok
}
