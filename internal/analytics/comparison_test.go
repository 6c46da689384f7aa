package analytics_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rankrent/internal/analytics"
)

func TestPercentChange(t *testing.T) {
	tests := []struct {
		name              string
		current, previous float64
		want              float64
	}{
		{"growth", 120, 100, 20},
		{"decline", 80, 100, -20},
		{"from zero", 5, 0, 100},
		{"zero to zero", 0, 0, 0},
		{"flat", 42, 42, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, analytics.PercentChange(tt.current, tt.previous), 1e-9)
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		change  float64
		inverse bool
		want    analytics.Direction
	}{
		{"up is good", 12, false, analytics.Improvement},
		{"down is bad", -12, false, analytics.Regression},
		{"inside band", 4.9, false, analytics.Neutral},
		{"band edge", -5, false, analytics.Neutral},
		{"inverse up is bad", 20, true, analytics.Regression},
		{"inverse down is good", -20, true, analytics.Improvement},
		{"inverse inside band", 3, true, analytics.Neutral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, analytics.Classify(tt.change, tt.inverse))
		})
	}
}

func TestCompare_BounceRateRegression(t *testing.T) {
	current := analytics.Report{SessionMetrics: analytics.SessionMetrics{TotalSessions: 10, BounceRate: 60, EngagementRate: 40}}
	previous := analytics.Report{SessionMetrics: analytics.SessionMetrics{TotalSessions: 10, BounceRate: 50, EngagementRate: 50}}

	cmp := analytics.Compare(current, previous)

	bounce, ok := cmp.Find("bounce_rate")
	require.True(t, ok)
	assert.InDelta(t, 20.0, bounce.ChangePct, 1e-9)
	assert.True(t, bounce.Inverse)
	assert.Equal(t, analytics.Regression, bounce.Direction)

	engagement, ok := cmp.Find("engagement_rate")
	require.True(t, ok)
	assert.Equal(t, analytics.Regression, engagement.Direction)

	sessions, ok := cmp.Find("total_sessions")
	require.True(t, ok)
	assert.Equal(t, analytics.Neutral, sessions.Direction)

	_, ok = cmp.Find("nope")
	assert.False(t, ok)
}
