// Package analytics aggregates reconstructed sessions and recorded conversions
// into dashboard reports. Every function here is a pure function of its input.
package analytics

import (
	"time"

	"rankrent/internal/conversions"
	"rankrent/internal/sessions"
)

// MetricCountResult is one labelled count in a dimension breakdown.
type MetricCountResult struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// Input is the filtered material one report is computed from.
type Input struct {
	Sessions    []sessions.Session
	Conversions []conversions.Conversion
	// SeenBefore holds visitor ids with activity before the window start.
	SeenBefore map[string]bool
}

// Options tune report shape.
type Options struct {
	// TopN bounds outgoing edges per page in the flow graph.
	TopN int
	// Location buckets the heatmap and splits days; UTC when nil.
	Location *time.Location
}

func (o Options) location() *time.Location {
	if o.Location == nil {
		return time.UTC
	}
	return o.Location
}

func (o Options) topN() int {
	if o.TopN <= 0 {
		return 5
	}
	return o.TopN
}

// Report is the full aggregate served to the dashboard.
type Report struct {
	SessionMetrics SessionMetrics      `json:"session_metrics"`
	Conversions    ConversionTotals    `json:"conversions"`
	GoalBreakdown  []GoalRow           `json:"goal_breakdown"`
	FlowGraph      []FlowNode          `json:"flow_edges"`
	Heatmap        Heatmap             `json:"heatmap"`
	Devices        []MetricCountResult `json:"devices"`
	Countries      []MetricCountResult `json:"countries"`
	// Sources counts sessions by landing referrer or ad network.
	Sources []MetricCountResult `json:"sources"`
}

// ConversionTotals summarizes conversions in the window.
type ConversionTotals struct {
	Count int     `json:"count"`
	Value float64 `json:"value"`
	// Rate is converting sessions over total sessions, in percent.
	Rate float64 `json:"rate"`
}

// Aggregate computes the report in a single pass.
func Aggregate(in Input, opts Options) Report {
	p := NewPartial(opts.location())
	for _, s := range in.Sessions {
		p.AddSession(s)
	}
	for _, c := range in.Conversions {
		p.AddConversion(c)
	}
	return p.Report(in.SeenBefore, opts.topN())
}
