package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Purger removes expired files in batches.
type Purger interface {
	PurgeExpired(ctx context.Context, batch int) (int, error)
}

// StartCleanupJob purges expired files every interval until ctx is done.
// A zero interval disables the job.
func StartCleanupJob(ctx context.Context, p Purger, interval time.Duration, batch int, log *zap.Logger) {
	if interval <= 0 {
		log.Info("cleanup job disabled")
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cleanupExpiredFiles(ctx, p, batch, log)
			}
		}
	}()
}

// cleanupExpiredFiles drains full batches so a backlog clears in one tick.
func cleanupExpiredFiles(ctx context.Context, p Purger, batch int, log *zap.Logger) int {
	total := 0
	for ctx.Err() == nil {
		purged, err := p.PurgeExpired(ctx, batch)
		total += purged
		if err != nil {
			log.Error("error purging expired files", zap.Int("purged", purged), zap.Error(err))
			break
		}
		if purged < batch {
			break
		}
	}
	if total > 0 {
		log.Info("purged expired files", zap.Int("count", total))
	}
	return total
}
