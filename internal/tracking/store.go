package tracking

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"rankrent/internal/timeframe"
)

// inChunk bounds IN (...) lists to stay under SQLite's variable limit.
const inChunk = 500

// Migrate creates the events table and its partial unique index.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&TrackingEvent{}); err != nil {
		return err
	}
	return db.Exec(pageViewSequenceIndex).Error
}

// Store reads and appends tracking events.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewStore(db *gorm.DB, logger *slog.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Append inserts events, silently skipping any whose event_id (or page_view
// sequence) is already stored. It returns how many rows were written.
func (s *Store) Append(ctx context.Context, events ...TrackingEvent) (int64, error) {
	if len(events) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	for i := range events {
		events[i].OccurredAt = events[i].OccurredAt.UTC()
		if events[i].CreatedAt.IsZero() {
			events[i].CreatedAt = now
		}
	}

	var inserted int64
	err := sqlite.PerformWrite(s.logger, s.db.WithContext(ctx), func(tx *gorm.DB) error {
		for i := range events {
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&events[i])
			if res.Error != nil {
				return res.Error
			}
			inserted += res.RowsAffected
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to append tracking events: %w", err)
	}
	return inserted, nil
}

func (s *Store) scoped(ctx context.Context, siteID uint, rng timeframe.Range) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&TrackingEvent{}).Where("site_id = ?", siteID)
	if !rng.IsZero() {
		r := rng.UTC()
		q = q.Where("occurred_at >= ? AND occurred_at < ?", r.From, r.To)
	}
	return q
}

// Events returns the site's events in rng, optionally for one session, ordered by
// session, sequence, time and insertion. event_id is unique so no event repeats.
func (s *Store) Events(ctx context.Context, siteID uint, rng timeframe.Range, sessionID string) ([]TrackingEvent, error) {
	var out []TrackingEvent
	q := s.scoped(ctx, siteID, rng)
	if sessionID != "" {
		q = q.Where("session_id = ?", sessionID)
	}
	err := q.Order("session_id ASC, sequence_number ASC, occurred_at ASC, id ASC").Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching tracking events: %w", err)
	}
	return out, nil
}

// Fingerprint identifies the event set in rng. Events are append-only, so the
// pair (count, max id) changes whenever the set does.
func (s *Store) Fingerprint(ctx context.Context, siteID uint, rng timeframe.Range) (string, error) {
	var row struct {
		N     int64
		MaxID uint
	}
	err := s.scoped(ctx, siteID, rng).
		Select("COUNT(*) AS n, COALESCE(MAX(id), 0) AS max_id").
		Scan(&row).Error
	if err != nil {
		return "", fmt.Errorf("error fingerprinting tracking events: %w", err)
	}
	return fmt.Sprintf("%d:%d", row.N, row.MaxID), nil
}

// SessionEvents loads every event of the given sessions, regardless of time.
func (s *Store) SessionEvents(ctx context.Context, siteID uint, sessionIDs []string) ([]TrackingEvent, error) {
	var out []TrackingEvent
	for _, chunk := range chunks(sessionIDs) {
		var part []TrackingEvent
		err := s.db.WithContext(ctx).
			Where("site_id = ? AND session_id IN ?", siteID, chunk).
			Order("session_id ASC, sequence_number ASC, occurred_at ASC, id ASC").
			Find(&part).Error
		if err != nil {
			return nil, fmt.Errorf("error fetching session events: %w", err)
		}
		out = append(out, part...)
	}
	return out, nil
}

// EventsAfter pages through a site's events by insertion id.
func (s *Store) EventsAfter(ctx context.Context, siteID uint, afterID uint, limit int) ([]TrackingEvent, error) {
	var out []TrackingEvent
	err := s.db.WithContext(ctx).
		Where("site_id = ? AND id > ?", siteID, afterID).
		Order("id ASC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching events after %d: %w", afterID, err)
	}
	return out, nil
}

// ContinuingSessions returns which of sessionIDs have events at or after t.
func (s *Store) ContinuingSessions(ctx context.Context, siteID uint, sessionIDs []string, t time.Time) (map[string]bool, error) {
	return s.distinctIn(ctx, "session_id", siteID, sessionIDs, "occurred_at >= ?", t.UTC())
}

// VisitorsSeenBefore returns which of visitorIDs have any event before t.
func (s *Store) VisitorsSeenBefore(ctx context.Context, siteID uint, visitorIDs []string, t time.Time) (map[string]bool, error) {
	return s.distinctIn(ctx, "visitor_id", siteID, visitorIDs, "occurred_at < ?", t.UTC())
}

func (s *Store) distinctIn(ctx context.Context, column string, siteID uint, ids []string, cond string, arg any) (map[string]bool, error) {
	found := make(map[string]bool)
	for _, chunk := range chunks(ids) {
		var hits []string
		err := s.db.WithContext(ctx).Model(&TrackingEvent{}).
			Where("site_id = ?", siteID).
			Where(column+" IN ?", chunk).
			Where(cond, arg).
			Distinct(column).
			Pluck(column, &hits).Error
		if err != nil {
			return nil, fmt.Errorf("error querying %s: %w", column, err)
		}
		for _, h := range hits {
			found[h] = true
		}
	}
	return found, nil
}

// DeleteOlderThan removes up to limit events that occurred before cutoff.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	var deleted int64
	err := sqlite.PerformWrite(s.logger, s.db.WithContext(ctx), func(tx *gorm.DB) error {
		res := tx.Where("id IN (?)",
			s.db.Model(&TrackingEvent{}).Select("id").Where("occurred_at < ?", cutoff.UTC()).Limit(limit),
		).Delete(&TrackingEvent{})
		deleted = res.RowsAffected
		return res.Error
	})
	return deleted, err
}

func chunks(ids []string) [][]string {
	var out [][]string
	for start := 0; start < len(ids); start += inChunk {
		end := start + inChunk
		if end > len(ids) {
			end = len(ids)
		}
		out = append(out, ids[start:end])
	}
	return out
}
