// AngelaMos | 2026
// producer.go

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sorser/backend/internal/metrics"
)

// Producer publishes envelopes to the stream and keeps the delayed set that
// holds retries until they are due.
type Producer struct {
	rdb     *redis.Client
	logger  *slog.Logger
	stream  string
	delayed string
	dead    string
	maxLen  int64
}

func NewProducer(rdb *redis.Client, logger *slog.Logger, stream string, maxLen int64) *Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Producer{
		rdb:     rdb,
		logger:  logger,
		stream:  stream,
		delayed: stream + ":delayed",
		dead:    stream + ":dlq",
		maxLen:  maxLen,
	}
}

func (p *Producer) Stream() string      { return p.stream }
func (p *Producer) DeadLetters() string { return p.dead }

func (p *Producer) Enqueue(
	ctx context.Context,
	jobType string,
	payload any,
	opts Options,
) (*Envelope, error) {
	env, err := NewEnvelope(jobType, payload, opts)
	if err != nil {
		return nil, err
	}

	if err := p.Publish(ctx, env); err != nil {
		return nil, err
	}
	return env, nil
}

func (p *Producer) Publish(ctx context.Context, env *Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	if err := p.xadd(ctx, p.stream, map[string]any{"data": string(data)}); err != nil {
		return err
	}

	metrics.JobsEnqueuedTotal.WithLabelValues(env.Type).Inc()
	p.logger.DebugContext(ctx, "job enqueued",
		"job_id", env.ID,
		"type", env.Type,
		"attempt", env.Attempt,
	)
	return nil
}

// Schedule parks env in the delayed set until at.
func (p *Producer) Schedule(ctx context.Context, env *Envelope, at time.Time) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	err = p.rdb.ZAdd(ctx, p.delayed, redis.Z{
		Score:  float64(at.UnixMilli()),
		Member: string(data),
	}).Err()
	if err != nil {
		return fmt.Errorf("zadd delayed: %w", err)
	}
	return nil
}

// PromoteDue moves every delayed envelope due at or before now back onto
// the stream. ZREM decides ownership so concurrent promoters never publish
// the same envelope twice.
func (p *Producer) PromoteDue(ctx context.Context, now time.Time) (int, error) {
	due, err := p.rdb.ZRangeByScore(ctx, p.delayed, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("zrangebyscore delayed: %w", err)
	}

	promoted := 0
	for _, member := range due {
		removed, err := p.rdb.ZRem(ctx, p.delayed, member).Result()
		if err != nil {
			return promoted, fmt.Errorf("zrem delayed: %w", err)
		}
		if removed == 0 {
			continue
		}

		if err := p.xadd(ctx, p.stream, map[string]any{"data": member}); err != nil {
			return promoted, err
		}
		promoted++
	}

	if promoted > 0 {
		p.logger.DebugContext(ctx, "delayed jobs promoted", "count", promoted)
	}
	return promoted, nil
}

// Bury appends a record to the dead-letter stream.
func (p *Producer) Bury(ctx context.Context, msgID, payload, reason string) error {
	return p.xadd(ctx, p.dead, map[string]any{
		"original_id": msgID,
		"payload":     payload,
		"reason":      reason,
		"failed_at":   time.Now().UTC().Format(time.RFC3339Nano),
	})
}

type Depth struct {
	Stream  int64 `json:"stream"`
	Delayed int64 `json:"delayed"`
	Dead    int64 `json:"dead"`
}

func (p *Producer) Depth(ctx context.Context) (Depth, error) {
	pipe := p.rdb.Pipeline()
	stream := pipe.XLen(ctx, p.stream)
	delayed := pipe.ZCard(ctx, p.delayed)
	dead := pipe.XLen(ctx, p.dead)

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return Depth{}, fmt.Errorf("queue depth: %w", err)
	}

	d := Depth{Stream: stream.Val(), Delayed: delayed.Val(), Dead: dead.Val()}
	metrics.QueueDepth.WithLabelValues("stream").Set(float64(d.Stream))
	metrics.QueueDepth.WithLabelValues("delayed").Set(float64(d.Delayed))
	metrics.QueueDepth.WithLabelValues("dead").Set(float64(d.Dead))
	return d, nil
}

// Ping satisfies the health checker.
func (p *Producer) Ping(ctx context.Context) error {
	_, err := p.Depth(ctx)
	return err
}

func (p *Producer) xadd(ctx context.Context, stream string, values map[string]any) error {
	args := &redis.XAddArgs{
		Stream: stream,
		Values: values,
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	if err := p.rdb.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", stream, err)
	}
	return nil
}

// RunPromoter calls PromoteDue every interval until ctx ends.
func (p *Producer) RunPromoter(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if _, err := p.PromoteDue(ctx, now); err != nil && ctx.Err() == nil {
				p.logger.ErrorContext(ctx, "promote delayed jobs failed", "error", err)
			}
		}
	}
}
