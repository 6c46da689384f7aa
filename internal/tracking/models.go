// Package tracking is the append-only event store every projection is derived from.
package tracking

import "time"

// EventType is the collector-assigned kind of a tracking event.
type EventType string

const (
	EventPageView      EventType = "page_view"
	EventPageExit      EventType = "page_exit"
	EventWhatsAppClick EventType = "whatsapp_click"
	EventPhoneClick    EventType = "phone_click"
	EventEmailClick    EventType = "email_click"
	EventButtonClick   EventType = "button_click"
	EventFormSubmit    EventType = "form_submit"
	EventScroll        EventType = "scroll"
	EventTimeOnPage    EventType = "time_on_page"
	EventProductView   EventType = "product_view"
	EventAddToCart     EventType = "add_to_cart"
	EventPurchase      EventType = "purchase"
)

var knownEventTypes = map[EventType]bool{
	EventPageView: true, EventPageExit: true,
	EventWhatsAppClick: true, EventPhoneClick: true, EventEmailClick: true,
	EventButtonClick: true, EventFormSubmit: true,
	EventScroll: true, EventTimeOnPage: true,
	EventProductView: true, EventAddToCart: true, EventPurchase: true,
}

func (t EventType) Valid() bool {
	return knownEventTypes[t]
}

// IsClickClass reports whether the event is a lead action: the kinds that
// convert in fallback mode and that cta_match goals inspect.
func (t EventType) IsClickClass() bool {
	switch t {
	case EventWhatsAppClick, EventPhoneClick, EventEmailClick, EventButtonClick, EventFormSubmit:
		return true
	}
	return false
}

// TrackingEvent is one raw collector event. Rows are never updated.
// ID is the insertion order; EventID is the collector's idempotency key.
type TrackingEvent struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	EventID        string    `gorm:"uniqueIndex;size:64;not null" json:"event_id"`
	SiteID         uint      `gorm:"index:idx_tracking_site_occurred,priority:1;not null" json:"site_id"`
	SessionID      string    `gorm:"index;size:64" json:"session_id"`
	VisitorID      string    `gorm:"index;size:64" json:"visitor_id"`
	SequenceNumber int       `gorm:"not null;default:0" json:"sequence_number"`
	EventType      EventType `gorm:"size:32;not null" json:"event_type"`
	PageURL        string    `gorm:"not null" json:"page_url"`
	PageTitle      *string   `json:"page_title,omitempty"`
	CTAText        *string   `json:"cta_text,omitempty"`
	TargetURL      *string   `json:"target_url,omitempty"`
	ScrollDepthPct *float64  `json:"scroll_depth_pct,omitempty"`
	DwellSeconds   *float64  `json:"dwell_seconds,omitempty"`
	OccurredAt     time.Time `gorm:"index:idx_tracking_site_occurred,priority:2;not null" json:"occurred_at"`
	City           string    `json:"city"`
	Country        string    `json:"country"`
	Device         string    `gorm:"size:16" json:"device"`
	Referrer       string    `json:"referrer"`
	BotName        *string   `json:"bot_name,omitempty"`
	GCLID          *string   `gorm:"column:gclid" json:"gclid,omitempty"`
	FBCLID         *string   `gorm:"column:fbclid" json:"fbclid,omitempty"`
	Value          *float64  `json:"value,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// pageViewSequenceIndex backs the one-page_view-per-sequence invariant at the store level.
const pageViewSequenceIndex = `CREATE UNIQUE INDEX IF NOT EXISTS idx_tracking_page_view_seq
ON tracking_events(site_id, session_id, sequence_number)
WHERE event_type = 'page_view' AND sequence_number > 0 AND session_id <> ''`

// StringPtr is a small helper for optional event fields.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func FloatPtr(f float64) *float64 {
	return &f
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
