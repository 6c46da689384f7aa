package jobs

import (
	"context"
	"log/slog"

	"gorm.io/gorm"

	"rankrent/internal/conversions"
	"rankrent/internal/sites"
)

// ConversionJob matches newly appended events of every site against its goals.
type ConversionJob struct {
	db        *gorm.DB
	processor *conversions.Processor
	logger    *slog.Logger
}

func NewConversionJob(db *gorm.DB, processor *conversions.Processor, logger *slog.Logger) *ConversionJob {
	return &ConversionJob{db: db, processor: processor, logger: logger}
}

// Run drains each site's backlog. A failing site is logged and skipped so
// one broken goal set cannot stall the others.
func (j *ConversionJob) Run(ctx context.Context) error {
	list, err := sites.ListSites(j.db)
	if err != nil {
		j.logger.Error("Failed to list sites", slog.Any("error", err))
		return err
	}

	var scanned int
	var recorded int64
	for _, site := range list {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := j.processor.Drain(ctx, site.ID)
		if err != nil {
			j.logger.Error("Failed to process conversions",
				slog.Uint64("site_id", uint64(site.ID)),
				slog.Any("error", err))
			continue
		}
		scanned += res.Scanned
		recorded += res.Recorded
	}

	if scanned > 0 {
		j.logger.Info("Conversions processed",
			slog.Int("sites", len(list)),
			slog.Int("scanned", scanned),
			slog.Int64("recorded", recorded))
	}
	return nil
}
