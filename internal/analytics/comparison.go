package analytics

import "math"

// NeutralBand is the absolute percent change treated as no change.
const NeutralBand = 5.0

// Direction classifies a change from the business point of view.
type Direction string

const (
	Improvement Direction = "improvement"
	Regression  Direction = "regression"
	Neutral     Direction = "neutral"
)

// MetricDelta compares one metric across two windows. ChangePct is the raw
// change; Direction already accounts for inverse metrics.
type MetricDelta struct {
	Metric    string    `json:"metric"`
	Current   float64   `json:"current"`
	Previous  float64   `json:"previous"`
	ChangePct float64   `json:"change_pct"`
	Inverse   bool      `json:"inverse"`
	Direction Direction `json:"direction"`
}

// Comparison is the period-over-period view.
type Comparison struct {
	Current  Report        `json:"current"`
	Previous Report        `json:"previous"`
	Deltas   []MetricDelta `json:"deltas"`
}

// PercentChange is (current - previous) / previous * 100. A zero previous
// yields 100 when current grew and 0 otherwise.
func PercentChange(current, previous float64) float64 {
	if previous == 0 {
		if current > 0 {
			return 100
		}
		return 0
	}
	return (current - previous) / math.Abs(previous) * 100
}

// Classify maps a raw change to a direction. Inverse metrics improve when they fall.
func Classify(changePct float64, inverse bool) Direction {
	if inverse {
		changePct = -changePct
	}
	switch {
	case changePct > NeutralBand:
		return Improvement
	case changePct < -NeutralBand:
		return Regression
	default:
		return Neutral
	}
}

// Delta builds one metric comparison.
func Delta(metric string, current, previous float64, inverse bool) MetricDelta {
	change := PercentChange(current, previous)
	return MetricDelta{
		Metric:    metric,
		Current:   current,
		Previous:  previous,
		ChangePct: change,
		Inverse:   inverse,
		Direction: Classify(change, inverse),
	}
}

// Compare diffs two reports.
func Compare(current, previous Report) Comparison {
	c, p := current.SessionMetrics, previous.SessionMetrics
	return Comparison{
		Current:  current,
		Previous: previous,
		Deltas: []MetricDelta{
			Delta("total_sessions", float64(c.TotalSessions), float64(p.TotalSessions), false),
			Delta("unique_visitors", float64(c.UniqueVisitors), float64(p.UniqueVisitors), false),
			Delta("new_visitors", float64(c.NewVisitors), float64(p.NewVisitors), false),
			Delta("returning_visitors", float64(c.ReturningVisitors), float64(p.ReturningVisitors), false),
			Delta("avg_duration_seconds", c.AvgDurationSeconds, p.AvgDurationSeconds, false),
			Delta("avg_pages_per_session", c.AvgPagesPerSession, p.AvgPagesPerSession, false),
			Delta("bounce_rate", c.BounceRate, p.BounceRate, true),
			Delta("engagement_rate", c.EngagementRate, p.EngagementRate, false),
			Delta("conversions", float64(current.Conversions.Count), float64(previous.Conversions.Count), false),
			Delta("conversion_value", current.Conversions.Value, previous.Conversions.Value, false),
			Delta("conversion_rate", current.Conversions.Rate, previous.Conversions.Rate, false),
		},
	}
}

// Find returns the delta for metric.
func (c Comparison) Find(metric string) (MetricDelta, bool) {
	for _, d := range c.Deltas {
		if d.Metric == metric {
			return d, true
		}
	}
	return MetricDelta{}, false
}
