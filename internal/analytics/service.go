// AngelaMos | 2026
// service.go

package analytics

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sorser/backend/internal/config"
)

type Service struct {
	aggregator  *Aggregator
	cache       *Cache
	source      Source
	defaultDays int
	logger      *slog.Logger
}

func NewService(
	source Source,
	cache *Cache,
	cfg config.AnalyticsConfig,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		aggregator:  NewAggregator(source),
		cache:       cache,
		source:      source,
		defaultDays: ClampDays(cfg.HistoryDays),
		logger:      logger.With("component", "analytics"),
	}
}

func (s *Service) DefaultDays() int {
	return s.defaultDays
}

// UserSummary serves from cache and recomputes on a miss. A broken cache
// degrades to direct computation.
func (s *Service) UserSummary(ctx context.Context, userID string, days int) (*Summary, error) {
	if days <= 0 {
		days = s.defaultDays
	}
	days = ClampDays(days)

	cached, ok, err := s.cache.Get(ctx, userID, days)
	if err != nil {
		s.logger.WarnContext(ctx, "analytics cache read failed", "user_id", userID, "error", err)
	}
	if ok {
		return cached, nil
	}

	summary, err := s.aggregator.Summarize(ctx, userID, days)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, summary); err != nil {
		s.logger.WarnContext(ctx, "analytics cache write failed", "user_id", userID, "error", err)
	}
	return summary, nil
}

// Refresh recomputes the default window and stores it, replacing whatever
// was cached.
func (s *Service) Refresh(ctx context.Context, userID string) (*Summary, error) {
	summary, err := s.aggregator.Summarize(ctx, userID, s.defaultDays)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, summary); err != nil {
		return nil, fmt.Errorf("refresh analytics: %w", err)
	}
	return summary, nil
}

// Summarize computes without touching the cache.
func (s *Service) Summarize(ctx context.Context, userID string, days int) (*Summary, error) {
	return s.aggregator.Summarize(ctx, userID, days)
}

func (s *Service) Invalidate(ctx context.Context, userID string) error {
	return s.cache.Invalidate(ctx, userID)
}

func (s *Service) Platform(ctx context.Context) (*PlatformTotals, error) {
	return s.source.Platform(ctx)
}
