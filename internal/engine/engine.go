// Package engine is the read-side facade over the event log. It reconstructs
// sessions, attributes conversions, builds journeys and aggregates reports,
// always recomputing from events; the optional projection cache is keyed by
// the event-set fingerprint so it can never serve a stale projection.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"rankrent/internal/analytics"
	"rankrent/internal/config"
	"rankrent/internal/conversions"
	"rankrent/internal/goals"
	"rankrent/internal/pkg/async"
	"rankrent/internal/pkg/projcache"
	"rankrent/internal/sessions"
	"rankrent/internal/timeframe"
	"rankrent/internal/tracking"
)

// ErrUnavailable wraps failures of the underlying stores. Callers may retry.
var ErrUnavailable = errors.New("analytics temporarily unavailable")

// ErrNotFound is returned for an unknown conversion id.
var ErrNotFound = conversions.ErrNotFound

// EventSource reads the append-only event log.
type EventSource interface {
	Events(ctx context.Context, siteID uint, rng timeframe.Range, sessionID string) ([]tracking.TrackingEvent, error)
	Fingerprint(ctx context.Context, siteID uint, rng timeframe.Range) (string, error)
	ContinuingSessions(ctx context.Context, siteID uint, sessionIDs []string, t time.Time) (map[string]bool, error)
	VisitorsSeenBefore(ctx context.Context, siteID uint, visitorIDs []string, t time.Time) (map[string]bool, error)
}

type GoalSource interface {
	ActiveGoals(ctx context.Context, siteID uint) ([]goals.ConversionGoal, error)
}

// ConversionSource reads persisted conversions.
type ConversionSource interface {
	Get(ctx context.Context, conversionID string) (*conversions.Conversion, error)
	List(ctx context.Context, siteID uint, rng timeframe.Range) ([]conversions.Conversion, error)
}

// Settings are the tunables the engine reads from configuration.
type Settings struct {
	IdleCeiling     time.Duration
	FlowTopN        int
	DefaultPageSize int
	MaxPageSize     int
}

func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		IdleCeiling:     cfg.IdleCeiling(),
		FlowTopN:        cfg.FlowTopN,
		DefaultPageSize: cfg.DefaultPageSize,
		MaxPageSize:     cfg.MaxPageSize,
	}
}

type Engine struct {
	events      EventSource
	goals       GoalSource
	conversions ConversionSource
	matcher     *goals.Matcher
	cache       projcache.Cache
	settings    Settings
	logger      *slog.Logger
	now         func() time.Time
	pool        *async.Pool[analytics.Report]
}

type Option func(*Engine)

func WithCache(c projcache.Cache) Option {
	return func(e *Engine) {
		if c != nil {
			e.cache = c
		}
	}
}

func WithMatcher(m *goals.Matcher) Option {
	return func(e *Engine) { e.matcher = m }
}

func WithSettings(s Settings) Option {
	return func(e *Engine) { e.settings = s }
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithClock fixes the engine's notion of now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func New(events EventSource, goalSource GoalSource, convs ConversionSource, opts ...Option) *Engine {
	e := &Engine{
		events:      events,
		goals:       goalSource,
		conversions: convs,
		cache:       projcache.Noop{},
		settings: Settings{
			IdleCeiling:     sessions.DefaultIdleCeiling,
			FlowTopN:        5,
			DefaultPageSize: 25,
			MaxPageSize:     200,
		},
		logger: slog.Default(),
		now:    time.Now,
		pool:   async.NewPool[analytics.Report](2),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.matcher == nil {
		e.matcher = goals.NewMatcher(goals.WithLogger(e.logger))
	}
	return e
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
}
