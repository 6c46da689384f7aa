// Package goals evaluates tracking events against operator-defined conversion goals.
package goals

import (
	"errors"
	"fmt"
	"time"
)

// GoalType is the closed set of goal kinds.
type GoalType string

const (
	GoalCTAMatch        GoalType = "cta_match"
	GoalPageDestination GoalType = "page_destination"
	GoalURLPattern      GoalType = "url_pattern"
	GoalScrollDepth     GoalType = "scroll_depth"
	GoalTimeOnPage      GoalType = "time_on_page"
	GoalCombined        GoalType = "combined"
)

// FallbackGoalName labels conversions recorded without a goal.
const FallbackGoalName = "No goal"

var (
	ErrEmptyRule       = errors.New("goal has no criteria for its type")
	ErrUnknownGoalType = errors.New("unknown goal type")
)

func (t GoalType) Valid() bool {
	switch t {
	case GoalCTAMatch, GoalPageDestination, GoalURLPattern, GoalScrollDepth, GoalTimeOnPage, GoalCombined:
		return true
	}
	return false
}

// ConversionGoal is an operator-authored rule. Deactivating or deleting a goal
// only affects future matching; recorded conversions are never rewritten.
type ConversionGoal struct {
	ID              uint      `gorm:"primaryKey;autoIncrement" json:"goal_id"`
	SiteID          uint      `gorm:"index;not null" json:"site_id" validate:"required"`
	GoalName        string    `gorm:"not null" json:"goal_name" validate:"required,max=120"`
	GoalType        GoalType  `gorm:"size:32;not null" json:"goal_type" validate:"required,goal_type"`
	IsActive        bool      `gorm:"not null" json:"is_active"`
	ConversionValue float64   `gorm:"not null;default:0" json:"conversion_value" validate:"gte=0"`
	CTAExactMatches []string  `gorm:"serializer:json" json:"cta_exact_matches" validate:"dive,max=256"`
	CTAPatterns     []string  `gorm:"serializer:json" json:"cta_patterns" validate:"dive,max=256"`
	PageURLs        []string  `gorm:"serializer:json" json:"page_urls" validate:"dive,max=2048"`
	URLPatterns     []string  `gorm:"serializer:json" json:"url_patterns" validate:"dive,max=2048"`
	MinScrollDepth  *float64  `json:"min_scroll_depth,omitempty" validate:"omitempty,gt=0,lte=100"`
	MinTimeSeconds  *float64  `json:"min_time_seconds,omitempty" validate:"omitempty,gt=0"`
	PriorityRank    int       `gorm:"not null;default:0" json:"priority_rank"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Rule converts the stored row into its typed rule.
func (g ConversionGoal) Rule() (Rule, error) {
	var r Rule
	switch g.GoalType {
	case GoalCTAMatch:
		r = newCTAMatch(g.CTAExactMatches, g.CTAPatterns)
	case GoalPageDestination:
		r = newPageDestination(g.PageURLs)
	case GoalURLPattern:
		r = newURLPattern(g.URLPatterns)
	case GoalScrollDepth:
		r = ScrollDepth{MinPct: deref(g.MinScrollDepth)}
	case GoalTimeOnPage:
		r = TimeOnPage{MinSeconds: deref(g.MinTimeSeconds)}
	case GoalCombined:
		r = Combined{
			CTA:   newCTAMatch(g.CTAExactMatches, g.CTAPatterns),
			Pages: newPageDestination(g.PageURLs),
			URLs:  newURLPattern(g.URLPatterns),
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownGoalType, g.GoalType)
	}
	if !r.configured() {
		return nil, fmt.Errorf("%w: goal %d (%s)", ErrEmptyRule, g.ID, g.GoalType)
	}
	return r, nil
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
