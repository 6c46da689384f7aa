// Package onboarding keeps the "have we shown this yet" flags of the dashboard,
// one row per site, user and step.
package onboarding

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Step names one onboarding hint.
type Step string

const (
	StepGoalsIntro      Step = "goals_intro"
	StepFallbackNotice  Step = "fallback_notice"
	StepJourneyTour     Step = "journey_tour"
	StepFirstConversion Step = "first_conversion"
)

// Steps lists every step in display order.
var Steps = []Step{StepGoalsIntro, StepFallbackNotice, StepJourneyTour, StepFirstConversion}

var ErrUnknownStep = errors.New("unknown onboarding step")

func (s Step) Valid() bool {
	for _, known := range Steps {
		if s == known {
			return true
		}
	}
	return false
}

// FlagData holds optional client state attached to a flag.
type FlagData struct {
	Dismissed bool   `json:"dismissed,omitempty"`
	Variant   string `json:"variant,omitempty"`
}

// Scan implements sql.Scanner interface for FlagData
func (fd *FlagData) Scan(value interface{}) error {
	if value == nil {
		*fd = FlagData{}
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, fd)
	case string:
		return json.Unmarshal([]byte(v), fd)
	default:
		return fmt.Errorf("cannot scan %T into FlagData", value)
	}
}

// Value implements driver.Valuer interface for FlagData
func (fd FlagData) Value() (driver.Value, error) {
	return json.Marshal(fd)
}

// Flag records that a step was shown to a user on a site.
type Flag struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	SiteID    uint      `gorm:"not null;uniqueIndex:idx_onboarding_flag" json:"site_id"`
	UserID    string    `gorm:"type:text;not null;uniqueIndex:idx_onboarding_flag" json:"user_id"`
	Step      Step      `gorm:"type:text;not null;uniqueIndex:idx_onboarding_flag" json:"step"`
	Data      FlagData  `gorm:"type:text" json:"data"`
	ShownAt   time.Time `gorm:"not null" json:"shown_at"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime:milli" json:"-"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime:milli" json:"-"`
}

func (Flag) TableName() string { return "onboarding_flags" }

// State is the per-step view returned to the dashboard.
type State map[Step]bool

// GetState reports, for every step, whether the user has seen it on the site.
func GetState(db *gorm.DB, siteID uint, userID string) (State, error) {
	var flags []Flag
	if err := db.Where("site_id = ? AND user_id = ?", siteID, userID).Find(&flags).Error; err != nil {
		return nil, fmt.Errorf("failed to load onboarding flags: %w", err)
	}
	state := make(State, len(Steps))
	for _, s := range Steps {
		state[s] = false
	}
	for _, f := range flags {
		state[f.Step] = true
	}
	return state, nil
}

// MarkShown records a step; repeating it only refreshes the data.
func MarkShown(db *gorm.DB, siteID uint, userID string, step Step, data FlagData) error {
	if !step.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownStep, step)
	}
	if userID == "" {
		return errors.New("user id is required")
	}
	flag := Flag{SiteID: siteID, UserID: userID, Step: step, Data: data, ShownAt: time.Now().UTC()}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "site_id"}, {Name: "user_id"}, {Name: "step"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}).Create(&flag).Error
	if err != nil {
		return fmt.Errorf("failed to mark onboarding step: %w", err)
	}
	return nil
}

// IsRequired is true while any step is still unseen by the user on the site.
func IsRequired(db *gorm.DB, siteID uint, userID string) (bool, error) {
	var count int64
	err := db.Model(&Flag{}).Where("site_id = ? AND user_id = ?", siteID, userID).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to count onboarding flags: %w", err)
	}
	return count < int64(len(Steps)), nil
}

// Reset forgets every flag of the user on the site.
func Reset(db *gorm.DB, siteID uint, userID string) error {
	result := db.Where("site_id = ? AND user_id = ?", siteID, userID).Delete(&Flag{})
	return result.Error
}
