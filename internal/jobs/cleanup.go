package jobs

import (
	"context"
	"log/slog"
	"time"

	"rankrent/internal/tracking"
)

const cleanupBatchSize = 1000

// CleanupJob enforces the event retention window.
type CleanupJob struct {
	events        *tracking.Store
	logger        *slog.Logger
	retentionDays int
	pause         time.Duration
	now           func() time.Time
}

func NewCleanupJob(events *tracking.Store, logger *slog.Logger, retentionDays int) *CleanupJob {
	return &CleanupJob{
		events:        events,
		logger:        logger,
		retentionDays: retentionDays,
		pause:         100 * time.Millisecond,
		now:           time.Now,
	}
}

// Run deletes events older than the retention period. Stored conversions are
// kept; their journeys degrade to the surviving events.
func (j *CleanupJob) Run(ctx context.Context) error {
	if j.retentionDays <= 0 {
		j.logger.Debug("Event retention disabled")
		return nil
	}
	cutoff := j.now().AddDate(0, 0, -j.retentionDays)

	j.logger.Info("Starting cleanup of old tracking events",
		slog.Int("retention_days", j.retentionDays),
		slog.Time("cutoff_date", cutoff))

	var total int64
	for {
		deleted, err := j.events.DeleteOlderThan(ctx, cutoff, cleanupBatchSize)
		if err != nil {
			j.logger.Error("Failed to delete old tracking events",
				slog.Any("error", err),
				slog.Int64("deleted_so_far", total))
			return err
		}
		total += deleted
		if deleted < cleanupBatchSize {
			break
		}

		// Let ingestion writes through between batches.
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(j.pause):
		}
	}

	j.logger.Info("Cleaned up old tracking events",
		slog.Int64("deleted_count", total),
		slog.Int("retention_days", j.retentionDays))
	return nil
}
