package goals

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("goal not found")

// Store persists goals. The engine only ever reads through ActiveGoals.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewStore(db *gorm.DB, logger *slog.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// ActiveGoals returns the site's active goals in default evaluation order.
func (s *Store) ActiveGoals(ctx context.Context, siteID uint) ([]ConversionGoal, error) {
	var out []ConversionGoal
	err := s.db.WithContext(ctx).
		Where("site_id = ? AND is_active = ?", siteID, true).
		Order("priority_rank ASC, created_at ASC, id ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load active goals for site %d: %w", siteID, err)
	}
	Sort(out, DefaultOrder)
	return out, nil
}

// List returns every goal of the site, active or not.
func (s *Store) List(ctx context.Context, siteID uint) ([]ConversionGoal, error) {
	var out []ConversionGoal
	if err := s.db.WithContext(ctx).Where("site_id = ?", siteID).Order("id ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list goals for site %d: %w", siteID, err)
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, siteID, id uint) (*ConversionGoal, error) {
	var g ConversionGoal
	err := s.db.WithContext(ctx).Where("site_id = ? AND id = ?", siteID, id).First(&g).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load goal %d: %w", id, err)
	}
	return &g, nil
}

// Create validates and stores a new goal.
func (s *Store) Create(ctx context.Context, g *ConversionGoal) error {
	if err := Validate(*g); err != nil {
		return err
	}
	now := time.Now().UTC()
	g.ID = 0
	g.CreatedAt, g.UpdatedAt = now, now
	return sqlite.PerformWrite(s.logger, s.db.WithContext(ctx), func(tx *gorm.DB) error {
		return tx.Create(g).Error
	})
}

// Update replaces a goal's definition. Conversions already recorded keep the
// goal name they were stored with.
func (s *Store) Update(ctx context.Context, g *ConversionGoal) error {
	if err := Validate(*g); err != nil {
		return err
	}
	existing, err := s.Get(ctx, g.SiteID, g.ID)
	if err != nil {
		return err
	}
	g.CreatedAt = existing.CreatedAt
	g.UpdatedAt = time.Now().UTC()
	return sqlite.PerformWrite(s.logger, s.db.WithContext(ctx), func(tx *gorm.DB) error {
		return tx.Save(g).Error
	})
}

// SetActive toggles a goal without touching its criteria.
func (s *Store) SetActive(ctx context.Context, siteID, id uint, active bool) error {
	var affected int64
	err := sqlite.PerformWrite(s.logger, s.db.WithContext(ctx), func(tx *gorm.DB) error {
		res := tx.Model(&ConversionGoal{}).
			Where("site_id = ? AND id = ?", siteID, id).
			Updates(map[string]any{"is_active": active, "updated_at": time.Now().UTC()})
		affected = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return fmt.Errorf("failed to update goal %d: %w", id, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, siteID, id uint) error {
	var affected int64
	err := sqlite.PerformWrite(s.logger, s.db.WithContext(ctx), func(tx *gorm.DB) error {
		res := tx.Where("site_id = ? AND id = ?", siteID, id).Delete(&ConversionGoal{})
		affected = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return fmt.Errorf("failed to delete goal %d: %w", id, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
