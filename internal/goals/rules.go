package goals

import (
	"strings"

	"rankrent/internal/tracking"
)

// Signal is the part of an event a rule looks at, plus the visit context
// needed for first-crossing rules.
type Signal struct {
	Type      tracking.EventType
	CTAText   string
	Path      string
	TargetURL string

	ScrollDepth *float64
	// PriorScrollDepth is the deepest scroll already seen on this visit.
	PriorScrollDepth float64

	// Dwell is the cumulative time on the current visit when known.
	Dwell *float64
	// PriorDwell is the largest dwell already seen on this visit.
	PriorDwell float64
}

// SignalFromEvent builds a context-free signal: no prior scroll or dwell.
func SignalFromEvent(ev tracking.TrackingEvent) Signal {
	return Signal{
		Type:        ev.EventType,
		CTAText:     tracking.Deref(ev.CTAText),
		Path:        NormalizePath(ev.PageURL),
		TargetURL:   tracking.Deref(ev.TargetURL),
		ScrollDepth: ev.ScrollDepthPct,
		Dwell:       ev.DwellSeconds,
	}
}

// Rule is the closed union of goal kinds. Each variant is a pure predicate.
type Rule interface {
	Kind() GoalType
	Matches(Signal) bool
	configured() bool
}

// CTAMatch fires on click-class events whose text equals an exact entry
// (trimmed, case-sensitive) or contains a pattern (case-insensitive).
type CTAMatch struct {
	Exact    []string
	Patterns []string
}

func newCTAMatch(exact, patterns []string) CTAMatch {
	return CTAMatch{Exact: trimAll(exact, false), Patterns: trimAll(patterns, true)}
}

func (CTAMatch) Kind() GoalType { return GoalCTAMatch }

func (r CTAMatch) configured() bool { return len(r.Exact)+len(r.Patterns) > 0 }

func (r CTAMatch) Matches(s Signal) bool {
	if !s.Type.IsClickClass() {
		return false
	}
	text := strings.TrimSpace(s.CTAText)
	if text == "" {
		return false
	}
	for _, e := range r.Exact {
		if text == e {
			return true
		}
	}
	lower := strings.ToLower(text)
	for _, p := range r.Patterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// PageDestination fires on page views of a listed path or a path beneath it.
type PageDestination struct {
	Paths []string
}

func newPageDestination(urls []string) PageDestination {
	paths := make([]string, 0, len(urls))
	for _, u := range urls {
		if strings.TrimSpace(u) == "" {
			continue
		}
		paths = append(paths, NormalizePath(u))
	}
	return PageDestination{Paths: paths}
}

func (PageDestination) Kind() GoalType { return GoalPageDestination }

func (r PageDestination) configured() bool { return len(r.Paths) > 0 }

func (r PageDestination) Matches(s Signal) bool {
	if s.Type != tracking.EventPageView {
		return false
	}
	for _, p := range r.Paths {
		if PathMatches(s.Path, p) {
			return true
		}
	}
	return false
}

// URLPattern fires on any event whose target URL contains a pattern (case-insensitive).
type URLPattern struct {
	Patterns []string
}

func newURLPattern(patterns []string) URLPattern {
	return URLPattern{Patterns: trimAll(patterns, true)}
}

func (URLPattern) Kind() GoalType { return GoalURLPattern }

func (r URLPattern) configured() bool { return len(r.Patterns) > 0 }

func (r URLPattern) Matches(s Signal) bool {
	if s.TargetURL == "" {
		return false
	}
	target := strings.ToLower(s.TargetURL)
	for _, p := range r.Patterns {
		if strings.Contains(target, p) {
			return true
		}
	}
	return false
}

// ScrollDepth fires the first time a visit's scroll depth reaches MinPct.
type ScrollDepth struct {
	MinPct float64
}

func (ScrollDepth) Kind() GoalType { return GoalScrollDepth }

func (r ScrollDepth) configured() bool { return r.MinPct > 0 }

func (r ScrollDepth) Matches(s Signal) bool {
	if s.Type != tracking.EventScroll || s.ScrollDepth == nil {
		return false
	}
	return *s.ScrollDepth >= r.MinPct && s.PriorScrollDepth < r.MinPct
}

// TimeOnPage fires the first time a visit's dwell reaches MinSeconds.
// Only time signals and page exits carry dwell.
type TimeOnPage struct {
	MinSeconds float64
}

func (TimeOnPage) Kind() GoalType { return GoalTimeOnPage }

func (r TimeOnPage) configured() bool { return r.MinSeconds > 0 }

func (r TimeOnPage) Matches(s Signal) bool {
	if s.Type != tracking.EventTimeOnPage && s.Type != tracking.EventPageExit {
		return false
	}
	if s.Dwell == nil {
		return false
	}
	return *s.Dwell >= r.MinSeconds && s.PriorDwell < r.MinSeconds
}

// Combined ORs whichever of its CTA, page and URL criteria are set.
// Scroll and time criteria cannot be combined.
type Combined struct {
	CTA   CTAMatch
	Pages PageDestination
	URLs  URLPattern
}

func (Combined) Kind() GoalType { return GoalCombined }

func (r Combined) configured() bool {
	return r.CTA.configured() || r.Pages.configured() || r.URLs.configured()
}

func (r Combined) Matches(s Signal) bool {
	return (r.CTA.configured() && r.CTA.Matches(s)) ||
		(r.Pages.configured() && r.Pages.Matches(s)) ||
		(r.URLs.configured() && r.URLs.Matches(s))
}

func trimAll(in []string, lower bool) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if lower {
			s = strings.ToLower(s)
		}
		out = append(out, s)
	}
	return out
}
