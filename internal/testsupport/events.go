package testsupport

import (
	"fmt"
	"sync/atomic"
	"time"

	"rankrent/internal/tracking"
)

var eventSeq atomic.Uint64

// SessionBuilder produces the events one visitor emits during a session.
// Page views advance the sequence; other events carry the current page's sequence.
type SessionBuilder struct {
	siteID    uint
	sessionID string
	visitorID string
	start     time.Time
	seq       int
	page      string
	device    string
	city      string
	country   string
	bot       *string
	events    []tracking.TrackingEvent
}

// NewSession starts a builder; offsets passed to the other methods are relative to start.
func NewSession(siteID uint, sessionID, visitorID string, start time.Time) *SessionBuilder {
	return &SessionBuilder{
		siteID:    siteID,
		sessionID: sessionID,
		visitorID: visitorID,
		start:     start,
		device:    "desktop",
		city:      "São Paulo",
		country:   "Brazil",
	}
}

func (b *SessionBuilder) WithDevice(device string) *SessionBuilder {
	b.device = device
	return b
}

func (b *SessionBuilder) WithGeo(city, country string) *SessionBuilder {
	b.city, b.country = city, country
	return b
}

func (b *SessionBuilder) WithBot(name string) *SessionBuilder {
	b.bot = &name
	return b
}

func (b *SessionBuilder) add(t tracking.EventType, at time.Duration, mutate func(*tracking.TrackingEvent)) *SessionBuilder {
	id := eventSeq.Add(1)
	ev := tracking.TrackingEvent{
		ID:             uint(id),
		EventID:        fmt.Sprintf("evt-%d", id),
		SiteID:         b.siteID,
		SessionID:      b.sessionID,
		VisitorID:      b.visitorID,
		SequenceNumber: b.seq,
		EventType:      t,
		PageURL:        b.page,
		OccurredAt:     b.start.Add(at),
		City:           b.city,
		Country:        b.country,
		Device:         b.device,
		BotName:        b.bot,
	}
	if mutate != nil {
		mutate(&ev)
	}
	b.events = append(b.events, ev)
	return b
}

func (b *SessionBuilder) View(pageURL string, at time.Duration) *SessionBuilder {
	b.seq++
	b.page = pageURL
	return b.add(tracking.EventPageView, at, nil)
}

// Landing is a page view carrying the referrer and an optional Google Ads click id.
func (b *SessionBuilder) Landing(pageURL, referrer, gclid string, at time.Duration) *SessionBuilder {
	b.seq++
	b.page = pageURL
	return b.add(tracking.EventPageView, at, func(ev *tracking.TrackingEvent) {
		ev.Referrer = referrer
		ev.GCLID = tracking.StringPtr(gclid)
	})
}

func (b *SessionBuilder) Exit(at time.Duration) *SessionBuilder {
	return b.add(tracking.EventPageExit, at, nil)
}

func (b *SessionBuilder) Click(t tracking.EventType, cta string, at time.Duration) *SessionBuilder {
	return b.add(t, at, func(ev *tracking.TrackingEvent) {
		ev.CTAText = tracking.StringPtr(cta)
	})
}

func (b *SessionBuilder) LinkClick(target string, at time.Duration) *SessionBuilder {
	return b.add(tracking.EventButtonClick, at, func(ev *tracking.TrackingEvent) {
		ev.TargetURL = tracking.StringPtr(target)
	})
}

func (b *SessionBuilder) Scroll(pct float64, at time.Duration) *SessionBuilder {
	return b.add(tracking.EventScroll, at, func(ev *tracking.TrackingEvent) {
		ev.ScrollDepthPct = tracking.FloatPtr(pct)
	})
}

func (b *SessionBuilder) Dwell(seconds float64, at time.Duration) *SessionBuilder {
	return b.add(tracking.EventTimeOnPage, at, func(ev *tracking.TrackingEvent) {
		ev.DwellSeconds = tracking.FloatPtr(seconds)
	})
}

// Events returns a copy of everything built so far.
func (b *SessionBuilder) Events() []tracking.TrackingEvent {
	out := make([]tracking.TrackingEvent, len(b.events))
	copy(out, b.events)
	return out
}

// Last returns the most recently built event.
func (b *SessionBuilder) Last() tracking.TrackingEvent {
	return b.events[len(b.events)-1]
}
