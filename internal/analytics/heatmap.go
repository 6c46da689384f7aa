package analytics

import (
	"time"

	"rankrent/internal/sessions"
)

// Heatmap counts session starts by weekday (Sunday = 0) and hour.
type Heatmap [7][24]int

// BuildHeatmap buckets session entry times in loc.
func BuildHeatmap(list []sessions.Session, loc *time.Location) Heatmap {
	p := NewPartial(loc)
	for _, s := range list {
		p.AddSession(s)
	}
	return p.heatmap
}

// Total is the number of sessions in the heatmap.
func (h Heatmap) Total() int {
	n := 0
	for d := range h {
		for _, c := range h[d] {
			n += c
		}
	}
	return n
}
