package engine

import (
	"context"
	"fmt"
	"time"

	"rankrent/internal/pkg/metrics"
	"rankrent/internal/pkg/projcache"
	"rankrent/internal/sessions"
	"rankrent/internal/timeframe"
)

// projection is the cached, filter-independent reconstruction of a window.
type projection struct {
	Result     sessions.Result `json:"result"`
	SeenBefore map[string]bool `json:"seen_before"`
}

// project reconstructs the sessions of rng. Session state also depends on
// events outside the window (continuation, returning visitors) and on whether
// the window has ended, so the fingerprint covers the site's whole event set.
func (e *Engine) project(ctx context.Context, siteID uint, rng timeframe.Range) (projection, error) {
	now := e.now()
	fp, err := e.events.Fingerprint(ctx, siteID, timeframe.Range{})
	if err != nil {
		return projection{}, unavailable("fingerprint", err)
	}
	windowOver := !rng.IsZero() && !rng.To.After(now)
	key := projcache.Key{
		Kind:        "sessions",
		SiteID:      siteID,
		Range:       rng,
		Fingerprint: fmt.Sprintf("%s:%t:%d", fp, windowOver, int64(e.settings.IdleCeiling/time.Second)),
	}

	var p projection
	if e.cache.Load(ctx, key, &p) {
		return p, nil
	}

	events, err := e.events.Events(ctx, siteID, rng, "")
	if err != nil {
		return projection{}, unavailable("events", err)
	}

	opts := sessions.Options{IdleCeiling: e.settings.IdleCeiling, Now: now}
	if windowOver {
		opts.WindowEnd = rng.To
		ids := distinct(len(events), func(i int) string { return events[i].SessionID })
		opts.Continuing, err = e.events.ContinuingSessions(ctx, siteID, ids, rng.To)
		if err != nil {
			return projection{}, unavailable("continuing sessions", err)
		}
	}
	p.Result = sessions.Reconstruct(events, opts)
	metrics.ObserveRejections(p.Result.Rejections.AsLabels())

	p.SeenBefore = map[string]bool{}
	if !rng.IsZero() {
		list := p.Result.Sessions
		visitors := distinct(len(list), func(i int) string { return list[i].VisitorID })
		p.SeenBefore, err = e.events.VisitorsSeenBefore(ctx, siteID, visitors, rng.From)
		if err != nil {
			return projection{}, unavailable("visitor history", err)
		}
	}

	e.cache.Store(ctx, key, p)
	return p, nil
}

func distinct(n int, at func(int) string) []string {
	seen := make(map[string]bool, n)
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		v := at(i)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
