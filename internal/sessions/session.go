// Package sessions rebuilds browsing sessions from the raw event log.
//
// Sessions and visits are never stored: they are a pure function of the events
// sharing a session_id. Idle policy: the gap between two page views is credited
// to the earlier visit up to Options.IdleCeiling and capped there. A long gap
// never splits a session; the collector's session_id is authoritative.
package sessions

import (
	"fmt"
	"time"
)

type State string

const (
	StateOpen   State = "OPEN"
	StateClosed State = "CLOSED"
)

// DefaultIdleCeiling matches the collector's 30 minute session cookie.
const DefaultIdleCeiling = 30 * time.Minute

// Visit is one page view within a session.
type Visit struct {
	VisitID          string    `json:"visit_id"`
	SessionID        string    `json:"session_id"`
	PageURL          string    `json:"page_url"`
	PageTitle        *string   `json:"page_title,omitempty"`
	SequenceNumber   int       `json:"sequence_number"`
	EntryTime        time.Time `json:"entry_time"`
	TimeSpentSeconds *float64  `json:"time_spent_seconds"`
	IsEntry          bool      `json:"is_entry"`
	IsExit           bool      `json:"is_exit"`
	IsConversionPage bool      `json:"is_conversion_page,omitempty"`

	// EventSequence is the collector sequence of the page_view that opened the visit.
	EventSequence int `json:"-"`
}

// Session is the projection of all events sharing a session_id.
type Session struct {
	SessionID            string    `json:"session_id"`
	SiteID               uint      `json:"site_id"`
	VisitorID            string    `json:"visitor_id"`
	EntryPageURL         string    `json:"entry_page_url"`
	ExitPageURL          string    `json:"exit_page_url"`
	PagesVisited         int       `json:"pages_visited"`
	TotalDurationSeconds float64   `json:"total_duration_seconds"`
	Device               string    `json:"device"`
	City                 string    `json:"city"`
	Country              string    `json:"country"`
	BotName              *string   `json:"bot_name,omitempty"`
	Referrer             string    `json:"referrer,omitempty"`
	PaidClick            string    `json:"paid_click,omitempty"`
	EntryTime            time.Time `json:"entry_time"`
	LastEventTime        time.Time `json:"last_event_time"`
	State                State     `json:"state"`
	Visits               []Visit   `json:"visits"`
}

// IsBounce reports a single-visit session.
func (s Session) IsBounce() bool {
	return len(s.Visits) == 1
}

func (s Session) IsBot() bool {
	return s.BotName != nil && *s.BotName != ""
}

// VisitAt returns the visit the visitor was on at t: the last visit entered at or before t.
func (s Session) VisitAt(t time.Time) (Visit, bool) {
	for i := len(s.Visits) - 1; i >= 0; i-- {
		if !s.Visits[i].EntryTime.After(t) {
			return s.Visits[i], true
		}
	}
	return Visit{}, false
}

// VisitID is deterministic so repeated reconstructions agree.
func VisitID(sessionID string, sequence int) string {
	return fmt.Sprintf("%s:%d", sessionID, sequence)
}
