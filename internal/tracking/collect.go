package tracking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"rankrent/internal/pkg/geoip"
	"rankrent/internal/pkg/metrics"
	"rankrent/internal/pkg/user_agent"
)

// eventIDSpace namespaces event ids derived for payloads without one.
var eventIDSpace = uuid.MustParse("2b7d0c4e-5a61-4f3a-8e0d-9c4f1b6a7e23")

// DeriveEventID builds a stable id from the event's identity, so a collector
// retry of a payload without event_id is recognised as the same event.
func DeriveEventID(siteID uint, sessionID string, seq int, eventType string, occurredAt time.Time, detail string) string {
	key := fmt.Sprintf("%d|%s|%d|%s|%d|%s", siteID, strings.TrimSpace(sessionID), seq, eventType, occurredAt.UTC().UnixMilli(), detail)
	return uuid.NewSHA1(eventIDSpace, []byte(key)).String()
}

// ErrInvalidEvent wraps collector payload validation failures.
var ErrInvalidEvent = errors.New("invalid tracking event")

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterValidation("event_type", func(fl validator.FieldLevel) bool {
		return EventType(fl.Field().String()).Valid()
	})
}

// CollectInput is the collector contract, independent of transport.
type CollectInput struct {
	EventID        string    `json:"event_id" validate:"omitempty,max=64"`
	SessionID      string    `json:"session_id" validate:"required,max=64"`
	VisitorID      string    `json:"visitor_id" validate:"required,max=64"`
	SequenceNumber int       `json:"sequence_number" validate:"gte=0"`
	EventType      string    `json:"event_type" validate:"required,event_type"`
	PageURL        string    `json:"page_url" validate:"required,max=2048"`
	PageTitle      string    `json:"page_title" validate:"max=512"`
	CTAText        string    `json:"cta_text" validate:"max=512"`
	TargetURL      string    `json:"target_url" validate:"max=2048"`
	ScrollDepthPct *float64  `json:"scroll_depth_pct" validate:"omitempty,gte=0,lte=100"`
	DwellSeconds   *float64  `json:"dwell_seconds" validate:"omitempty,gte=0"`
	Value          *float64  `json:"value" validate:"omitempty,gte=0"`
	OccurredAt     time.Time `json:"occurred_at"`
	Referrer       string    `json:"referrer" validate:"max=2048"`
	GCLID          string    `json:"gclid" validate:"max=256"`
	FBCLID         string    `json:"fbclid" validate:"max=256"`
	IPAddress      string    `json:"-"`
	UserAgent      string    `json:"-"`
}

// Collector validates, enriches and appends collector payloads.
type Collector struct {
	store  *Store
	geo    *geoip.Resolver
	agents *user_agent.Detector
	logger *slog.Logger
	now    func() time.Time
}

func NewCollector(store *Store, geo *geoip.Resolver, agents *user_agent.Detector, logger *slog.Logger) *Collector {
	return &Collector{store: store, geo: geo, agents: agents, logger: logger, now: time.Now}
}

// Collect stores one event. The boolean is false when the event was a duplicate.
func (c *Collector) Collect(ctx context.Context, siteID uint, in CollectInput) (TrackingEvent, bool, error) {
	if err := validate.Struct(in); err != nil {
		metrics.EventsIngested.WithLabelValues(in.EventType, "invalid").Inc()
		return TrackingEvent{}, false, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}

	ev := c.buildEvent(siteID, in)
	n, err := c.store.Append(ctx, ev)
	if err != nil {
		metrics.EventsIngested.WithLabelValues(in.EventType, "error").Inc()
		return TrackingEvent{}, false, err
	}
	if n == 0 {
		c.logger.Debug("Duplicate tracking event ignored",
			slog.String("event_id", ev.EventID),
			slog.String("session_id", ev.SessionID))
		metrics.EventsIngested.WithLabelValues(in.EventType, "duplicate").Inc()
		return ev, false, nil
	}
	metrics.EventsIngested.WithLabelValues(in.EventType, "stored").Inc()
	return ev, true, nil
}

func (c *Collector) buildEvent(siteID uint, in CollectInput) TrackingEvent {
	occurred := in.OccurredAt
	if occurred.IsZero() {
		occurred = c.now()
	}
	eventID := strings.TrimSpace(in.EventID)
	if eventID == "" {
		eventID = DeriveEventID(siteID, in.SessionID, in.SequenceNumber, in.EventType, occurred, in.CTAText+"|"+in.TargetURL)
	}

	ua := c.agents.Parse(in.UserAgent)
	loc := c.geo.Lookup(in.IPAddress)

	ev := TrackingEvent{
		EventID:        eventID,
		SiteID:         siteID,
		SessionID:      strings.TrimSpace(in.SessionID),
		VisitorID:      strings.TrimSpace(in.VisitorID),
		SequenceNumber: in.SequenceNumber,
		EventType:      EventType(in.EventType),
		PageURL:        strings.TrimSpace(in.PageURL),
		PageTitle:      StringPtr(strings.TrimSpace(in.PageTitle)),
		CTAText:        StringPtr(in.CTAText),
		TargetURL:      StringPtr(strings.TrimSpace(in.TargetURL)),
		ScrollDepthPct: in.ScrollDepthPct,
		DwellSeconds:   in.DwellSeconds,
		Value:          in.Value,
		OccurredAt:     occurred.UTC(),
		City:           loc.City,
		Country:        loc.Country,
		Device:         ua.Device,
		Referrer:       in.Referrer,
		BotName:        StringPtr(ua.BotName),
		GCLID:          StringPtr(in.GCLID),
		FBCLID:         StringPtr(in.FBCLID),
	}

	// Click ids usually ride on the landing URL rather than the payload.
	if ev.GCLID == nil || ev.FBCLID == nil {
		if u, err := url.Parse(ev.PageURL); err == nil {
			q := u.Query()
			if ev.GCLID == nil {
				ev.GCLID = StringPtr(q.Get("gclid"))
			}
			if ev.FBCLID == nil {
				ev.FBCLID = StringPtr(q.Get("fbclid"))
			}
		}
	}
	return ev
}
