package analytics_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rankrent/internal/analytics"
	"rankrent/internal/conversions"
	"rankrent/internal/goals"
	"rankrent/internal/testsupport"
	"rankrent/internal/timeframe"
	"rankrent/internal/tracking"
)

func TestAggregateDays_MatchesSinglePass(t *testing.T) {
	var builders []*testsupport.SessionBuilder
	var convs []conversions.Conversion
	for i := 0; i < 20; i++ {
		at := monday.Add(time.Duration(i) * 7 * time.Hour)
		b := testsupport.NewSession(1, fmt.Sprintf("s%02d", i), fmt.Sprintf("v%d", i%6), at)
		pages(b, "/", "/servicos", "/contato")
		if i%3 == 0 {
			b.Click(tracking.EventWhatsAppClick, "WhatsApp", 2*time.Minute)
			convs = append(convs, conversions.FromMatch(goals.Match{Event: b.Last()}))
		}
		if i%4 == 0 {
			b.Exit(3 * time.Minute)
		}
		builders = append(builders, b)
	}
	in := analytics.Input{
		Sessions:    build(t, builders...),
		Conversions: convs,
		SeenBefore:  map[string]bool{"v1": true},
	}
	rng := timeframe.Range{From: monday, To: monday.AddDate(0, 0, 7)}
	opts := analytics.Options{TopN: 3}

	want := analytics.Aggregate(in, opts)
	got, err := analytics.AggregateDays(context.Background(), rng.Days(), in, opts)
	require.NoError(t, err)

	assert.Equal(t, want, got)
	assert.Equal(t, 20, got.SessionMetrics.TotalSessions)
	assert.Equal(t, 7, got.Conversions.Count)
	assert.InDelta(t, 35.0, got.Conversions.Rate, 1e-9)
	assert.Equal(t, 5, got.SessionMetrics.NewVisitors)
	assert.Equal(t, "Desktop", got.Devices[0].Name)
}

func TestAggregateDays_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rng := timeframe.Range{From: monday, To: monday.AddDate(0, 0, 3)}
	_, err := analytics.AggregateDays(ctx, rng.Days(), analytics.Input{}, analytics.Options{})
	assert.ErrorIs(t, err, context.Canceled)
}
