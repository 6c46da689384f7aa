package conversions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"rankrent/internal/pkg/metrics"
	"rankrent/internal/timeframe"
)

var ErrNotFound = errors.New("conversion not found")

type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewStore(db *gorm.DB, logger *slog.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Save inserts conversions, skipping any event that already has one.
// It returns how many rows were new.
func (s *Store) Save(ctx context.Context, convs ...Conversion) (int64, error) {
	if len(convs) == 0 {
		return 0, nil
	}
	var (
		inserted int64
		written  []Conversion
	)
	err := sqlite.PerformWrite(s.logger, s.db.WithContext(ctx), func(tx *gorm.DB) error {
		inserted, written = 0, written[:0]
		for i := range convs {
			res := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "event_id"}},
				DoNothing: true,
			}).Create(&convs[i])
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected > 0 {
				inserted += res.RowsAffected
				written = append(written, convs[i])
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to save conversions: %w", err)
	}
	for _, c := range written {
		mode := "goal"
		if c.GoalID == nil {
			mode = "fallback"
		}
		metrics.ConversionsRecorded.WithLabelValues(mode).Inc()
	}
	return inserted, nil
}

func (s *Store) Get(ctx context.Context, conversionID string) (*Conversion, error) {
	var c Conversion
	err := s.db.WithContext(ctx).Where("conversion_id = ?", conversionID).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversion %s: %w", conversionID, err)
	}
	return &c, nil
}

// List returns the site's conversions in rng, newest first.
func (s *Store) List(ctx context.Context, siteID uint, rng timeframe.Range) ([]Conversion, error) {
	q := s.db.WithContext(ctx).Where("site_id = ?", siteID)
	if !rng.IsZero() {
		r := rng.UTC()
		q = q.Where("created_at >= ? AND created_at < ?", r.From, r.To)
	}
	var out []Conversion
	if err := q.Order("created_at DESC, conversion_id ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list conversions: %w", err)
	}
	return out, nil
}

// Cursor returns the last processed event id for the site, zero if none.
func (s *Store) Cursor(ctx context.Context, siteID uint) (uint, error) {
	var c Cursor
	err := s.db.WithContext(ctx).Where("site_id = ?", siteID).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load cursor for site %d: %w", siteID, err)
	}
	return c.LastEventID, nil
}

// Advance moves the cursor forward; it never moves back.
func (s *Store) Advance(ctx context.Context, siteID, lastEventID uint) error {
	return sqlite.PerformWrite(s.logger, s.db.WithContext(ctx), func(tx *gorm.DB) error {
		return tx.Exec(`
			INSERT INTO conversion_cursors (site_id, last_event_id, updated_at)
			VALUES (?, ?, ?)
			ON CONFLICT(site_id) DO UPDATE SET
				last_event_id = MAX(last_event_id, excluded.last_event_id),
				updated_at = excluded.updated_at
		`, siteID, lastEventID, time.Now().UTC()).Error
	})
}
