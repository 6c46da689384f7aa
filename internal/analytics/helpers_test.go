package analytics_test

import (
	"testing"
	"time"

	"rankrent/internal/sessions"
	"rankrent/internal/testsupport"
	"rankrent/internal/tracking"
)

var monday = time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)

func build(t *testing.T, builders ...*testsupport.SessionBuilder) []sessions.Session {
	t.Helper()
	var events []tracking.TrackingEvent
	for _, b := range builders {
		events = append(events, b.Events()...)
	}
	return sessions.Reconstruct(events, sessions.Options{Now: monday.AddDate(0, 1, 0)}).Sessions
}

func pages(b *testsupport.SessionBuilder, paths ...string) *testsupport.SessionBuilder {
	for i, p := range paths {
		b.View(p, time.Duration(i)*30*time.Second)
	}
	return b
}
