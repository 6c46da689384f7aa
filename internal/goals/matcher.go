package goals

import (
	"cmp"
	"log/slog"
	"slices"
	"time"

	"rankrent/internal/sessions"
	"rankrent/internal/tracking"
)

// Match is the outcome of evaluating one event. Goal is nil in fallback mode.
type Match struct {
	Event tracking.TrackingEvent
	Goal  *ConversionGoal
}

func (m Match) Fallback() bool { return m.Goal == nil }

func (m Match) GoalName() string {
	if m.Goal == nil {
		return FallbackGoalName
	}
	return m.Goal.GoalName
}

// Value is the goal's conversion value, or the event's own value in fallback mode.
func (m Match) Value() float64 {
	if m.Goal != nil {
		return m.Goal.ConversionValue
	}
	if m.Event.Value != nil {
		return *m.Event.Value
	}
	return 0
}

type Option func(*Matcher)

// WithOrder replaces the tie-break policy.
func WithOrder(policy OrderPolicy) Option {
	return func(m *Matcher) {
		if policy != nil {
			m.order = policy
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *Matcher) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// Matcher picks at most one goal per event. It holds no state between calls,
// so goal changes take effect on the next evaluation.
type Matcher struct {
	order  OrderPolicy
	logger *slog.Logger
}

func NewMatcher(opts ...Option) *Matcher {
	m := &Matcher{order: DefaultOrder, logger: slog.Default()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type compiledGoal struct {
	goal *ConversionGoal
	rule Rule
}

type ruleSet struct {
	goals []compiledGoal
	// fallback is true when the site has no active goals at all.
	fallback bool
}

// compile keeps active goals in evaluation order. Goals whose rule is empty or
// unknown stay out of the set but still count as active, so they suppress fallback.
func (m *Matcher) compile(goals []ConversionGoal) ruleSet {
	active := make([]ConversionGoal, 0, len(goals))
	for _, g := range goals {
		if g.IsActive {
			active = append(active, g)
		}
	}
	Sort(active, m.order)

	set := ruleSet{fallback: len(active) == 0}
	for i := range active {
		rule, err := active[i].Rule()
		if err != nil {
			m.logger.Warn("Goal never matches",
				slog.Uint64("goal_id", uint64(active[i].ID)),
				slog.String("goal_type", string(active[i].GoalType)),
				slog.Any("error", err))
			continue
		}
		set.goals = append(set.goals, compiledGoal{goal: &active[i], rule: rule})
	}
	return set
}

func (s ruleSet) first(ev tracking.TrackingEvent, sig Signal) *Match {
	if s.fallback {
		if ev.EventType.IsClickClass() {
			return &Match{Event: ev}
		}
		return nil
	}
	for _, cg := range s.goals {
		if cg.rule.Matches(sig) {
			goal := *cg.goal
			return &Match{Event: ev, Goal: &goal}
		}
	}
	return nil
}

// MatchConversion evaluates a single event with no visit context: scroll and
// dwell goals fire whenever the event itself is at or past the threshold.
func (m *Matcher) MatchConversion(ev tracking.TrackingEvent, goals []ConversionGoal) *Match {
	return m.compile(goals).first(ev, SignalFromEvent(ev))
}

// MatchSession evaluates events in session order. Scroll and dwell goals fire
// at most once per visit. Events may span several sessions; the result is
// ordered by insertion id.
func (m *Matcher) MatchSession(events []tracking.TrackingEvent, goals []ConversionGoal) []Match {
	set := m.compile(goals)

	groups := make(map[string][]tracking.TrackingEvent)
	var loose []tracking.TrackingEvent
	for _, ev := range events {
		if ev.SessionID == "" {
			loose = append(loose, ev)
			continue
		}
		groups[ev.SessionID] = append(groups[ev.SessionID], ev)
	}

	var out []Match
	for _, group := range groups {
		out = append(out, walkSession(set, sessions.Prepare(group))...)
	}
	for _, ev := range loose {
		if match := set.first(ev, SignalFromEvent(ev)); match != nil {
			out = append(out, *match)
		}
	}
	slices.SortFunc(out, func(a, b Match) int {
		if c := cmp.Compare(a.Event.ID, b.Event.ID); c != 0 {
			return c
		}
		return cmp.Compare(a.Event.EventID, b.Event.EventID)
	})
	return out
}

type visitState struct {
	entry     time.Time
	maxScroll float64
	maxDwell  float64
}

func walkSession(set ruleSet, events []tracking.TrackingEvent) []Match {
	var (
		out   []Match
		visit visitState
	)
	for _, ev := range events {
		if ev.EventType == tracking.EventPageView {
			visit = visitState{entry: ev.OccurredAt}
		}

		sig := SignalFromEvent(ev)
		sig.PriorScrollDepth = visit.maxScroll
		sig.PriorDwell = visit.maxDwell
		if sig.Dwell == nil && !visit.entry.IsZero() &&
			(ev.EventType == tracking.EventTimeOnPage || ev.EventType == tracking.EventPageExit) {
			elapsed := ev.OccurredAt.Sub(visit.entry).Seconds()
			if elapsed >= 0 {
				sig.Dwell = &elapsed
			}
		}

		if match := set.first(ev, sig); match != nil {
			out = append(out, *match)
		}

		if sig.ScrollDepth != nil && *sig.ScrollDepth > visit.maxScroll {
			visit.maxScroll = *sig.ScrollDepth
		}
		if sig.Dwell != nil && *sig.Dwell > visit.maxDwell {
			visit.maxDwell = *sig.Dwell
		}
	}
	return out
}
