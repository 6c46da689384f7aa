// Package seeder generates realistic demo traffic for a rented site: visitors
// landing from search, maps or ads, browsing service pages and reaching out.
package seeder

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"rankrent/internal/pkg/user_agent"
	"rankrent/internal/tracking"
)

// EventAppender is the slice of the event store the seeder writes to.
type EventAppender interface {
	Append(ctx context.Context, events ...tracking.TrackingEvent) (int64, error)
}

// Seeder writes synthetic sessions through the event store.
type Seeder struct {
	events   EventAppender
	agents   *user_agent.Detector
	logger   *slog.Logger
	rng      *rand.Rand
	now      time.Time
	days     int
	batch    int
	Sessions int
}

type Option func(*Seeder)

// WithSeed makes the generated traffic reproducible.
func WithSeed(seed uint64) Option {
	return func(s *Seeder) { s.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) }
}

// WithNow anchors the generated window; sessions fall in the days before now.
func WithNow(now time.Time) Option {
	return func(s *Seeder) { s.now = now }
}

// WithDays spreads sessions over the last n days.
func WithDays(n int) Option {
	return func(s *Seeder) {
		if n > 0 {
			s.days = n
		}
	}
}

func New(events EventAppender, agents *user_agent.Detector, logger *slog.Logger, sessions int, opts ...Option) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	if agents == nil {
		agents = user_agent.Default()
	}
	s := &Seeder{
		events:   events,
		agents:   agents,
		logger:   logger,
		rng:      rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
		now:      time.Now().UTC(),
		days:     30,
		batch:    500,
		Sessions: sessions,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// journeyTemplates are typical paths through a local service site.
var journeyTemplates = [][]string{
	{"/"},
	{"/", "/servicos"},
	{"/", "/servicos", "/contato"},
	{"/", "/sobre", "/servicos", "/orcamento"},
	{"/servicos/desentupimento", "/contato"},
	{"/servicos/desentupimento", "/servicos/caca-vazamento", "/orcamento"},
	{"/blog/como-desentupir-pia", "/servicos/desentupimento"},
	{"/blog/vazamento-invisivel", "/", "/contato"},
	{"/bairros/moema", "/servicos", "/orcamento"},
	{"/", "/precos", "/orcamento", "/obrigado"},
}

var referrerPool = []struct {
	url   string
	gclid bool
}{
	{"https://www.google.com.br/", false},
	{"https://www.google.com.br/", false},
	{"https://www.google.com.br/", false},
	{"https://www.google.com.br/", true},
	{"https://maps.google.com/", false},
	{"https://l.instagram.com/", false},
	{"https://www.bing.com/", false},
	{"", false},
	{"", false},
}

var userAgents = []string{
	"Mozilla/5.0 (Linux; Android 14; SM-A546E) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Mobile Safari/537.36",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_4) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (iPad; CPU OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1",
	"Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)",
}

var cities = []struct{ city, country string }{
	{"São Paulo", "Brazil"},
	{"São Paulo", "Brazil"},
	{"Guarulhos", "Brazil"},
	{"Osasco", "Brazil"},
	{"Santo André", "Brazil"},
	{"Lisbon", "Portugal"},
}

var contactClicks = []struct {
	typ tracking.EventType
	cta string
}{
	{tracking.EventWhatsAppClick, "Chamar no WhatsApp"},
	{tracking.EventWhatsAppClick, "Fale conosco pelo WhatsApp"},
	{tracking.EventPhoneClick, "Ligar agora"},
	{tracking.EventFormSubmit, "Pedir orçamento"},
	{tracking.EventEmailClick, "contato@exemplo.com.br"},
}

// Seed writes Sessions sessions for siteID and returns the number of events stored.
func (s *Seeder) Seed(ctx context.Context, siteID uint) (int64, error) {
	start := time.Now()
	s.logger.Info("Seeding demo traffic",
		slog.Uint64("site_id", uint64(siteID)),
		slog.Int("sessions", s.Sessions),
		slog.Int("days", s.days))

	visitors := max(s.Sessions*3/4, 1)
	var pending []tracking.TrackingEvent
	var stored int64
	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		n, err := s.events.Append(ctx, pending...)
		if err != nil {
			return fmt.Errorf("failed to append seeded events: %w", err)
		}
		stored += n
		pending = pending[:0]
		return nil
	}

	for i := 0; i < s.Sessions; i++ {
		if err := ctx.Err(); err != nil {
			return stored, err
		}
		visitor := fmt.Sprintf("seed-v-%d", s.rng.IntN(visitors))
		pending = append(pending, s.session(siteID, fmt.Sprintf("seed-s-%d-%d", siteID, i), visitor)...)
		if len(pending) >= s.batch {
			if err := flush(); err != nil {
				return stored, err
			}
		}
	}
	if err := flush(); err != nil {
		return stored, err
	}

	s.logger.Info("Seeding completed",
		slog.Int64("events", stored),
		slog.Duration("elapsed", time.Since(start)))
	return stored, nil
}

// session builds one visit sequence: views with scroll and dwell signals, an
// optional contact click and, for some sessions, an explicit exit.
func (s *Seeder) session(siteID uint, sessionID, visitorID string) []tracking.TrackingEvent {
	journey := journeyTemplates[s.rng.IntN(len(journeyTemplates))]
	ref := referrerPool[s.rng.IntN(len(referrerPool))]
	ua := s.agents.Parse(userAgents[s.rng.IntN(len(userAgents))])
	place := cities[s.rng.IntN(len(cities))]

	offset := time.Duration(s.rng.IntN(s.days*24*3600)) * time.Second
	at := s.now.Add(-offset).Truncate(time.Second)

	var out []tracking.TrackingEvent
	add := func(seq int, typ tracking.EventType, page string, mutate func(*tracking.TrackingEvent)) {
		ev := tracking.TrackingEvent{
			EventID:        fmt.Sprintf("%s-%d", sessionID, len(out)),
			SiteID:         siteID,
			SessionID:      sessionID,
			VisitorID:      visitorID,
			SequenceNumber: seq,
			EventType:      typ,
			PageURL:        page,
			OccurredAt:     at,
			City:           place.city,
			Country:        place.country,
			Device:         ua.Device,
			BotName:        tracking.StringPtr(ua.BotName),
		}
		if mutate != nil {
			mutate(&ev)
		}
		out = append(out, ev)
	}

	for i, page := range journey {
		seq := i + 1
		landing := page
		if i == 0 && ref.gclid {
			landing = page + "?gclid=seed" + sessionID
		}
		add(seq, tracking.EventPageView, landing, func(ev *tracking.TrackingEvent) {
			if i == 0 {
				ev.Referrer = ref.url
				if ref.gclid {
					ev.GCLID = tracking.StringPtr("seed" + sessionID)
				}
			}
		})

		at = at.Add(time.Duration(5+s.rng.IntN(20)) * time.Second)
		depth := float64(25 * (1 + s.rng.IntN(4)))
		add(seq, tracking.EventScroll, landing, func(ev *tracking.TrackingEvent) {
			ev.ScrollDepthPct = tracking.FloatPtr(depth)
		})

		dwell := 10 + s.rng.IntN(120)
		at = at.Add(time.Duration(dwell) * time.Second)
		add(seq, tracking.EventTimeOnPage, landing, func(ev *tracking.TrackingEvent) {
			ev.DwellSeconds = tracking.FloatPtr(float64(dwell))
		})

		last := i == len(journey)-1
		if last && s.rng.IntN(3) == 0 {
			click := contactClicks[s.rng.IntN(len(contactClicks))]
			add(seq, click.typ, landing, func(ev *tracking.TrackingEvent) {
				ev.CTAText = tracking.StringPtr(click.cta)
			})
		}
		if last && s.rng.IntN(2) == 0 {
			at = at.Add(time.Duration(1+s.rng.IntN(10)) * time.Second)
			add(seq, tracking.EventPageExit, landing, nil)
		}
	}
	return out
}
