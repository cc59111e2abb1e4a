// AngelaMos | 2026
// queue_test.go

package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testStream = "sorser:test:jobs"

func setup(t *testing.T) (*redis.Client, *Producer, *Worker) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	p := NewProducer(rdb, nil, testStream, 0)
	w := NewWorker(rdb, p, WorkerConfig{
		Group:          "workers",
		Consumer:       "test-1",
		BlockTime:      10 * time.Millisecond,
		BatchSize:      10,
		BackoffInitial: time.Second,
		BackoffMax:     10 * time.Second,
	}, nil)
	require.NoError(t, w.EnsureGroup(context.Background()))
	return rdb, p, w
}

type payload struct {
	UserID string `json:"user_id"`
}

type failing struct {
	calls  atomic.Int32
	failed atomic.Int32
	err    error
}

func (f *failing) Handle(context.Context, *Envelope) error {
	f.calls.Add(1)
	return f.err
}

func (f *failing) Failed(_ context.Context, env *Envelope, err error) {
	f.failed.Add(1)
}

func TestEnqueueAndPoll(t *testing.T) {
	ctx := context.Background()
	_, p, w := setup(t)

	var got payload
	w.Register("analytics.calculate_user", HandlerFunc(func(_ context.Context, env *Envelope) error {
		assert.Equal(t, 1, env.Attempt)
		return env.Decode(&got)
	}))

	env, err := p.Enqueue(ctx, "analytics.calculate_user", payload{UserID: "u-1"}, Options{})
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxTries, env.MaxTries)
	assert.Equal(t, DefaultTimeout, env.Timeout)

	n, err := w.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "u-1", got.UserID)

	depth, err := p.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, Depth{}, depth)

	n, err = w.Poll(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRetryThenDeadLetter(t *testing.T) {
	ctx := context.Background()
	rdb, p, w := setup(t)

	h := &failing{err: errors.New("db unavailable")}
	w.Register("reports.progress", h)

	_, err := p.Enqueue(ctx, "reports.progress", payload{UserID: "u-2"}, Options{MaxTries: 2})
	require.NoError(t, err)

	_, err = w.Poll(ctx)
	require.NoError(t, err)

	depth, err := p.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, Depth{Delayed: 1}, depth)

	promoted, err := p.PromoteDue(ctx, time.Now())
	require.NoError(t, err)
	assert.Zero(t, promoted, "retry must wait for its backoff")

	promoted, err = p.PromoteDue(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, promoted)

	_, err = w.Poll(ctx)
	require.NoError(t, err)

	assert.Equal(t, int32(2), h.calls.Load())
	assert.Equal(t, int32(1), h.failed.Load())

	depth, err = p.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, Depth{Dead: 1}, depth)

	dead, err := rdb.XRange(ctx, p.DeadLetters(), "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, "db unavailable", dead[0].Values["reason"])

	env, err := parseEnvelope(dead[0].Values["payload"].(string))
	require.NoError(t, err)
	assert.Equal(t, 2, env.Attempt)
	assert.Equal(t, "db unavailable", env.LastError)
}

func TestUnknownTypeIsBuried(t *testing.T) {
	ctx := context.Background()
	_, p, w := setup(t)

	_, err := p.Enqueue(ctx, "nobody.handles", payload{}, Options{})
	require.NoError(t, err)

	_, err = w.Poll(ctx)
	require.NoError(t, err)

	depth, err := p.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, Depth{Dead: 1}, depth)
}

func TestMalformedMessageIsBuried(t *testing.T) {
	ctx := context.Background()
	rdb, p, w := setup(t)

	require.NoError(t, rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: testStream,
		Values: map[string]any{"data": "{not json"},
	}).Err())

	_, err := w.Poll(ctx)
	require.NoError(t, err)

	depth, err := p.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), depth.Dead)
	assert.Zero(t, depth.Stream)
}

func TestPanicCountsAsFailure(t *testing.T) {
	ctx := context.Background()
	_, p, w := setup(t)

	w.Register("analytics.export", HandlerFunc(func(context.Context, *Envelope) error {
		panic("nil map")
	}))

	_, err := p.Enqueue(ctx, "analytics.export", payload{}, Options{MaxTries: 1})
	require.NoError(t, err)

	_, err = w.Poll(ctx)
	require.NoError(t, err)

	depth, err := p.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, Depth{Dead: 1}, depth)
}

func TestTimeoutFailsAttempt(t *testing.T) {
	ctx := context.Background()
	_, p, w := setup(t)

	h := &failing{}
	w.Register("slow", HandlerFunc(func(ctx context.Context, env *Envelope) error {
		<-ctx.Done()
		return h.Handle(ctx, env)
	}))

	_, err := p.Enqueue(ctx, "slow", payload{}, Options{MaxTries: 1, Timeout: 20 * time.Millisecond})
	require.NoError(t, err)

	start := time.Now()
	_, err = w.Poll(ctx)
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 2*time.Second)
	depth, err := p.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), depth.Dead)
}

func TestRetryDelayBounds(t *testing.T) {
	_, _, w := setup(t)

	first := w.retryDelay(1)
	assert.GreaterOrEqual(t, first, 500*time.Millisecond)
	assert.LessOrEqual(t, first, 1500*time.Millisecond)

	late := w.retryDelay(20)
	assert.LessOrEqual(t, late, 15*time.Second)
	assert.GreaterOrEqual(t, late, 5*time.Second)
}

func TestPoolRecoversPanics(t *testing.T) {
	ctx := context.Background()
	pool := NewPool(nil, 2, 4)
	pool.Start(ctx)

	var mu sync.Mutex
	done := 0
	for i := range 6 {
		require.NoError(t, pool.Submit(ctx, func(context.Context) {
			if i == 3 {
				panic("boom")
			}
			mu.Lock()
			done++
			mu.Unlock()
		}))
	}

	require.NoError(t, pool.Shutdown(time.Second))

	stats := pool.Stats()
	assert.Equal(t, 5, done)
	assert.Equal(t, int64(6), stats.Submitted)
	assert.Equal(t, int64(6), stats.Completed)
	assert.Equal(t, int64(1), stats.Panics)
	assert.Error(t, pool.Submit(ctx, func(context.Context) {}))
}
