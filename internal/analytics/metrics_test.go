package analytics_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"rankrent/internal/analytics"
	"rankrent/internal/testsupport"
)

func TestComputeSessionMetrics(t *testing.T) {
	list := build(t,
		pages(testsupport.NewSession(1, "a", "ana", monday.Add(9*time.Hour)), "/"),
		pages(testsupport.NewSession(1, "b", "ana", monday.Add(10*time.Hour)), "/", "/precos", "/contato"),
		pages(testsupport.NewSession(1, "c", "bruno", monday.Add(11*time.Hour)), "/", "/contato"),
		pages(testsupport.NewSession(1, "d", "carla", monday.Add(12*time.Hour)), "/blog"),
	)

	m := analytics.ComputeSessionMetrics(list, map[string]bool{"bruno": true})
	assert.Equal(t, 4, m.TotalSessions)
	assert.Equal(t, 3, m.UniqueVisitors)
	assert.Equal(t, 2, m.NewVisitors)
	assert.Equal(t, 1, m.ReturningVisitors)
	assert.Equal(t, 50.0, m.BounceRate)
	assert.Equal(t, 50.0, m.EngagementRate)
	assert.Equal(t, 7.0/4, m.AvgPagesPerSession)
	// durations: b has 30+30, c has 30; last visits are open
	assert.Equal(t, 90.0/4, m.AvgDurationSeconds)
}

func TestComputeSessionMetrics_BounceBounds(t *testing.T) {
	for n := 0; n <= 6; n++ {
		for bounces := 0; bounces <= n; bounces++ {
			t.Run(fmt.Sprintf("%d_of_%d", bounces, n), func(t *testing.T) {
				var builders []*testsupport.SessionBuilder
				for i := 0; i < n; i++ {
					b := testsupport.NewSession(1, fmt.Sprintf("s%d", i), fmt.Sprintf("v%d", i), monday.Add(time.Duration(i)*time.Hour))
					if i < bounces {
						pages(b, "/")
					} else {
						pages(b, "/", "/next")
					}
					builders = append(builders, b)
				}
				m := analytics.ComputeSessionMetrics(build(t, builders...), nil)
				assert.GreaterOrEqual(t, m.BounceRate, 0.0)
				assert.LessOrEqual(t, m.BounceRate, 100.0)
				assert.InDelta(t, 100.0, m.BounceRate+m.EngagementRate, 1e-9)
			})
		}
	}
}
