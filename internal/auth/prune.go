// AngelaMos | 2026
// prune.go

package auth

import (
	"context"
	"log/slog"
	"time"
)

// PruneSessions deletes tokens that expired more than ExpiredRetention
// before now.
func PruneSessions(ctx context.Context, repo Repository, now time.Time) (int64, error) {
	return repo.PruneExpired(ctx, now.Add(-ExpiredRetention))
}

// RunPruner calls PruneSessions every interval until ctx is done. Failures
// are logged and retried on the next tick.
func RunPruner(ctx context.Context, repo Repository, interval time.Duration, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			n, err := PruneSessions(ctx, repo, now)
			if err != nil {
				logger.WarnContext(ctx, "session prune failed", "error", err)
				continue
			}
			if n > 0 {
				logger.InfoContext(ctx, "expired sessions pruned", "deleted", n)
			}
		}
	}
}
