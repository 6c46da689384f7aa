package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"rankrent/internal/analytics"
	"rankrent/internal/conversions"
	"rankrent/internal/goals"
	"rankrent/internal/journeys"
	"rankrent/internal/pkg/async"
	"rankrent/internal/pkg/metrics"
	"rankrent/internal/sessions"
	"rankrent/internal/timeframe"
	"rankrent/internal/tracking"
)

// SessionPage is one page of reconstructed sessions plus the run's data-quality counters.
type SessionPage struct {
	Sessions   []sessions.Session `json:"sessions"`
	Pagination analytics.PageInfo `json:"pagination"`
	Rejections sessions.Tally     `json:"rejections"`
	Duplicates int                `json:"duplicates"`
	Orphans    int                `json:"orphans"`
}

func observe(operation string) func() {
	start := time.Now()
	return func() {
		metrics.AggregationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}

// ReconstructSessions lists the sessions of a window after filtering.
func (e *Engine) ReconstructSessions(ctx context.Context, siteID uint, rng timeframe.Range, filter analytics.Filter, page analytics.Page) (SessionPage, error) {
	defer observe("reconstruct_sessions")()

	p, err := e.project(ctx, siteID, rng)
	if err != nil {
		return SessionPage{}, err
	}

	var converted map[string]bool
	if filter.HasConversion != nil {
		convs, err := e.conversions.List(ctx, siteID, rng)
		if err != nil {
			return SessionPage{}, unavailable("conversions", err)
		}
		converted = analytics.ConvertedSessions(convs)
	}

	kept := filter.Apply(p.Result.Sessions, converted)
	items, info := analytics.Paginate(kept, page.Normalize(e.settings.DefaultPageSize, e.settings.MaxPageSize))
	return SessionPage{
		Sessions:   items,
		Pagination: info,
		Rejections: p.Result.Rejections,
		Duplicates: p.Result.Duplicates,
		Orphans:    len(p.Result.Orphans),
	}, nil
}

// MatchConversion attributes one event against the given goals. It returns nil
// for events that are not conversions.
func (e *Engine) MatchConversion(ev tracking.TrackingEvent, list []goals.ConversionGoal) *conversions.Conversion {
	m := e.matcher.MatchConversion(ev, list)
	if m == nil {
		return nil
	}
	c := conversions.FromMatch(*m)
	return &c
}

// MatchEvent is MatchConversion against the site's active goals.
func (e *Engine) MatchEvent(ctx context.Context, ev tracking.TrackingEvent) (*conversions.Conversion, error) {
	list, err := e.goals.ActiveGoals(ctx, ev.SiteID)
	if err != nil {
		return nil, unavailable("goals", err)
	}
	return e.MatchConversion(ev, list), nil
}

// BuildJourney rebuilds the visits leading to a stored conversion.
func (e *Engine) BuildJourney(ctx context.Context, conversionID string) (journeys.Journey, error) {
	defer observe("build_journey")()

	conv, err := e.conversions.Get(ctx, conversionID)
	if errors.Is(err, conversions.ErrNotFound) {
		return journeys.Journey{}, ErrNotFound
	}
	if err != nil {
		return journeys.Journey{}, unavailable("conversion", err)
	}

	var session *sessions.Session
	if conv.SessionID != "" {
		events, err := e.events.Events(ctx, conv.SiteID, timeframe.Range{}, conv.SessionID)
		if err != nil {
			return journeys.Journey{}, unavailable("session events", err)
		}
		res := sessions.Reconstruct(events, sessions.Options{IdleCeiling: e.settings.IdleCeiling, Now: e.now()})
		for i := range res.Sessions {
			if res.Sessions[i].SessionID == conv.SessionID {
				session = &res.Sessions[i]
			}
		}
	}

	j := journeys.Build(*conv, session)
	if j.IsSynthetic {
		e.logger.Debug("Journey rebuilt from conversion only",
			slog.String("conversion_id", conversionID),
			slog.String("session_id", conv.SessionID))
	}
	return j, nil
}

// Aggregate computes the dashboard report for a window. The heatmap and the
// per-day split use the location of rng.From.
func (e *Engine) Aggregate(ctx context.Context, siteID uint, rng timeframe.Range, filter analytics.Filter) (analytics.Report, error) {
	defer observe("aggregate")()

	p, err := e.project(ctx, siteID, rng)
	if err != nil {
		return analytics.Report{}, err
	}
	convs, err := e.conversions.List(ctx, siteID, rng)
	if err != nil {
		return analytics.Report{}, unavailable("conversions", err)
	}

	in := filter.ApplyInput(analytics.Input{
		Sessions:    p.Result.Sessions,
		Conversions: convs,
		SeenBefore:  p.SeenBefore,
	})
	opts := analytics.Options{TopN: e.settings.FlowTopN, Location: rng.From.Location()}
	if rng.IsZero() {
		return analytics.Aggregate(in, opts), nil
	}

	report, err := analytics.AggregateDays(ctx, rng.Days(), in, opts)
	if err != nil {
		return analytics.Report{}, fmt.Errorf("aggregate %s: %w", rng, err)
	}
	return report, nil
}

// Compare aggregates both windows concurrently and diffs them. A zero previous
// window defaults to the equal-length window right before current.
func (e *Engine) Compare(ctx context.Context, siteID uint, current, previous timeframe.Range, filter analytics.Filter) (analytics.Comparison, error) {
	defer observe("compare")()

	if previous.IsZero() {
		previous = current.Previous()
	} else if !current.SameLength(previous) {
		return analytics.Comparison{}, fmt.Errorf("%w: previous window %s must match the length of %s",
			timeframe.ErrInvalidRange, previous, current)
	}
	results := e.pool.Execute(ctx, []async.Task[analytics.Report]{
		{Name: "current", Execute: func(ctx context.Context) (analytics.Report, error) {
			return e.Aggregate(ctx, siteID, current, filter)
		}},
		{Name: "previous", Execute: func(ctx context.Context) (analytics.Report, error) {
			return e.Aggregate(ctx, siteID, previous, filter)
		}},
	})
	if err := async.FirstError(results, "current", "previous"); err != nil {
		return analytics.Comparison{}, err
	}
	return analytics.Compare(results["current"].Data, results["previous"].Data), nil
}
