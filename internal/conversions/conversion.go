// Package conversions stores the attribution results produced by goal matching.
// A row is written at most once per tracking event and never rewritten.
package conversions

import (
	"time"

	"github.com/google/uuid"

	"rankrent/internal/goals"
	"rankrent/internal/tracking"
)

// idSpace namespaces conversion ids derived from event ids.
var idSpace = uuid.MustParse("6f1c2a3e-93b4-4c1e-9a57-0d4b8e2f71aa")

// Conversion carries everything ad-platform exporters need without re-querying events.
type Conversion struct {
	ConversionID    string             `gorm:"primaryKey;size:36" json:"conversion_id"`
	EventID         string             `gorm:"uniqueIndex;not null" json:"event_id"`
	SiteID          uint               `gorm:"index:idx_conversions_site_created,priority:1;not null" json:"site_id"`
	SessionID       string             `gorm:"index" json:"session_id"`
	VisitorID       string             `json:"visitor_id"`
	GoalID          *uint              `gorm:"index" json:"goal_id"`
	GoalName        string             `gorm:"not null" json:"goal_name"`
	CTAText         *string            `json:"cta_text,omitempty"`
	EventType       tracking.EventType `gorm:"size:32" json:"event_type"`
	PageURL         string             `json:"page_url"`
	ConversionValue float64            `gorm:"not null;default:0" json:"conversion_value"`
	GCLID           *string            `gorm:"column:gclid" json:"gclid,omitempty"`
	FBCLID          *string            `gorm:"column:fbclid" json:"fbclid,omitempty"`
	CreatedAt       time.Time          `gorm:"index:idx_conversions_site_created,priority:2" json:"created_at"`
}

// IDForEvent derives the conversion id from the event id, so matching the
// same event twice yields the same conversion.
func IDForEvent(eventID string) string {
	return uuid.NewSHA1(idSpace, []byte(eventID)).String()
}

// FromMatch builds the conversion for a match. created_at is the event time.
func FromMatch(m goals.Match) Conversion {
	ev := m.Event
	c := Conversion{
		ConversionID:    IDForEvent(ev.EventID),
		EventID:         ev.EventID,
		SiteID:          ev.SiteID,
		SessionID:       ev.SessionID,
		VisitorID:       ev.VisitorID,
		GoalName:        m.GoalName(),
		CTAText:         ev.CTAText,
		EventType:       ev.EventType,
		PageURL:         ev.PageURL,
		ConversionValue: m.Value(),
		GCLID:           ev.GCLID,
		FBCLID:          ev.FBCLID,
		CreatedAt:       ev.OccurredAt.UTC(),
	}
	if m.Goal != nil {
		id := m.Goal.ID
		c.GoalID = &id
	}
	return c
}

// Cursor records the last event id the processor has matched for a site.
type Cursor struct {
	SiteID      uint `gorm:"primaryKey;autoIncrement:false"`
	LastEventID uint `gorm:"not null;default:0"`
	UpdatedAt   time.Time
}

func (Cursor) TableName() string { return "conversion_cursors" }
