package analytics

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"rankrent/internal/conversions"
	"rankrent/internal/goals"
	"rankrent/internal/pkg/referrers"
	"rankrent/internal/sessions"
)

var titleCaser = cases.Title(language.Und)

// Partial is an additive aggregate. Partials built from disjoint slices of the
// input merge into exactly the aggregate of the whole input.
type Partial struct {
	loc *time.Location

	sessions    int
	bounces     int
	durationSum float64
	pagesSum    int
	visitors    map[string]bool
	sessionIDs  map[string]bool
	converting  map[string]bool

	goals     map[string]*GoalRow
	edges     map[edgeKey]int
	heatmap   Heatmap
	devices   map[string]int64
	countries map[string]int64
	sources   map[string]int64
}

type edgeKey struct{ from, to string }

func NewPartial(loc *time.Location) *Partial {
	if loc == nil {
		loc = time.UTC
	}
	return &Partial{
		loc:        loc,
		visitors:   make(map[string]bool),
		sessionIDs: make(map[string]bool),
		converting: make(map[string]bool),
		goals:      make(map[string]*GoalRow),
		edges:      make(map[edgeKey]int),
		devices:    make(map[string]int64),
		countries:  make(map[string]int64),
		sources:    make(map[string]int64),
	}
}

func (p *Partial) AddSession(s sessions.Session) {
	p.sessions++
	p.sessionIDs[s.SessionID] = true
	if s.IsBounce() {
		p.bounces++
	}
	p.durationSum += s.TotalDurationSeconds
	p.pagesSum += len(s.Visits)
	if s.VisitorID != "" {
		p.visitors[s.VisitorID] = true
	}

	for i := 1; i < len(s.Visits); i++ {
		from := goals.NormalizePath(s.Visits[i-1].PageURL)
		to := goals.NormalizePath(s.Visits[i].PageURL)
		if from != to {
			p.edges[edgeKey{from: from, to: to}]++
		}
	}

	entry := s.EntryTime.In(p.loc)
	p.heatmap[entry.Weekday()][entry.Hour()]++

	p.devices[deviceLabel(s.Device)]++
	country := s.Country
	if country == "" {
		country = "Unknown"
	}
	p.countries[country]++
	p.sources[referrers.Source(s.Referrer, s.PaidClick)]++
}

func (p *Partial) AddConversion(c conversions.Conversion) {
	key := goalKey(c.GoalID)
	row, ok := p.goals[key]
	if !ok {
		row = &GoalRow{GoalID: c.GoalID, GoalName: c.GoalName, lastSeen: c.CreatedAt}
		p.goals[key] = row
	}
	row.Conversions++
	row.ValueSum += c.ConversionValue
	row.observeName(c.GoalName, c.CreatedAt)
	if c.SessionID != "" {
		p.converting[c.SessionID] = true
	}
}

// Merge folds o into p.
func (p *Partial) Merge(o *Partial) {
	p.sessions += o.sessions
	p.bounces += o.bounces
	p.durationSum += o.durationSum
	p.pagesSum += o.pagesSum
	for v := range o.visitors {
		p.visitors[v] = true
	}
	for s := range o.sessionIDs {
		p.sessionIDs[s] = true
	}
	for s := range o.converting {
		p.converting[s] = true
	}
	for k, row := range o.goals {
		mine, ok := p.goals[k]
		if !ok {
			cp := *row
			p.goals[k] = &cp
			continue
		}
		mine.Conversions += row.Conversions
		mine.ValueSum += row.ValueSum
		mine.observeName(row.GoalName, row.lastSeen)
	}
	for e, n := range o.edges {
		p.edges[e] += n
	}
	for d := range o.heatmap {
		for h := range o.heatmap[d] {
			p.heatmap[d][h] += o.heatmap[d][h]
		}
	}
	for k, n := range o.devices {
		p.devices[k] += n
	}
	for k, n := range o.countries {
		p.countries[k] += n
	}
	for k, n := range o.sources {
		p.sources[k] += n
	}
}

// Report finalizes the partial.
func (p *Partial) Report(seenBefore map[string]bool, topN int) Report {
	r := Report{
		SessionMetrics: p.sessionMetrics(seenBefore),
		GoalBreakdown:  p.goalBreakdown(),
		FlowGraph:      p.flowGraph(topN),
		Heatmap:        p.heatmap,
		Devices:        sortedCounts(p.devices),
		Countries:      sortedCounts(p.countries),
		Sources:        sortedCounts(p.sources),
	}
	for _, row := range r.GoalBreakdown {
		r.Conversions.Count += row.Conversions
		r.Conversions.Value += row.ValueSum
	}
	if p.sessions > 0 {
		converted := 0
		for sid := range p.converting {
			if p.sessionIDs[sid] {
				converted++
			}
		}
		r.Conversions.Rate = float64(converted) / float64(p.sessions) * 100
	}
	return r
}

func deviceLabel(device string) string {
	device = strings.TrimSpace(device)
	if device == "" {
		return "Unknown"
	}
	return titleCaser.String(device)
}

func sortedCounts(m map[string]int64) []MetricCountResult {
	out := make([]MetricCountResult, 0, len(m))
	for name, n := range m {
		out = append(out, MetricCountResult{Name: name, Count: n})
	}
	slices.SortFunc(out, func(a, b MetricCountResult) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return out
}
