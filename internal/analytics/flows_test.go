package analytics_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rankrent/internal/analytics"
	"rankrent/internal/testsupport"
)

func TestBuildFlowGraph(t *testing.T) {
	list := build(t,
		pages(testsupport.NewSession(1, "a", "a", monday), "/", "/precos", "/contato"),
		pages(testsupport.NewSession(1, "b", "b", monday), "/", "/precos", "/precos?ref=x", "/sobre"),
		pages(testsupport.NewSession(1, "c", "c", monday), "/", "/contato"),
		pages(testsupport.NewSession(1, "d", "d", monday), "/", "/blog"),
		pages(testsupport.NewSession(1, "e", "e", monday), "/blog/"),
	)

	graph := analytics.BuildFlowGraph(list, 2)
	require.NotEmpty(t, graph)

	home := graph[0]
	assert.Equal(t, "/", home.Page)
	assert.Equal(t, 4, home.Total)
	require.Len(t, home.Outgoing, 2, "trimmed to top N")
	assert.Equal(t, analytics.FlowEdge{From: "/", To: "/precos", Count: 2}, home.Outgoing[0])
	assert.Equal(t, analytics.FlowEdge{From: "/", To: "/blog", Count: 1}, home.Outgoing[1], "ties broken by target")

	var precos *analytics.FlowNode
	for i := range graph {
		if graph[i].Page == "/precos" {
			precos = &graph[i]
		}
	}
	require.NotNil(t, precos)
	assert.Equal(t, 2, precos.Total, "reload of the same page is not a transition")
}

func TestBuildHeatmap(t *testing.T) {
	saoPaulo := time.FixedZone("BRT", -3*3600)
	list := build(t,
		pages(testsupport.NewSession(1, "a", "a", monday.Add(14*time.Hour)), "/"), // Monday 11h local
		pages(testsupport.NewSession(1, "b", "b", monday.Add(14*time.Hour+5*time.Minute)), "/"),
		pages(testsupport.NewSession(1, "c", "c", monday.Add(2*time.Hour)), "/"), // Sunday 23h local
	)

	h := analytics.BuildHeatmap(list, saoPaulo)
	assert.Equal(t, 3, h.Total())
	assert.Equal(t, 2, h[time.Monday][11])
	assert.Equal(t, 1, h[time.Sunday][23])

	utc := analytics.BuildHeatmap(list, nil)
	assert.Equal(t, 2, utc[time.Monday][14])
}
