package analytics

import "rankrent/internal/sessions"

// SessionMetrics are the headline numbers of a window.
type SessionMetrics struct {
	TotalSessions      int     `json:"total_sessions"`
	UniqueVisitors     int     `json:"unique_visitors"`
	NewVisitors        int     `json:"new_visitors"`
	ReturningVisitors  int     `json:"returning_visitors"`
	AvgDurationSeconds float64 `json:"avg_duration_seconds"`
	AvgPagesPerSession float64 `json:"avg_pages_per_session"`
	BounceRate         float64 `json:"bounce_rate"`
	EngagementRate     float64 `json:"engagement_rate"`
}

// ComputeSessionMetrics summarizes sessions. A visitor is new when absent from
// seenBefore, the set of visitors active before the window.
func ComputeSessionMetrics(list []sessions.Session, seenBefore map[string]bool) SessionMetrics {
	p := NewPartial(nil)
	for _, s := range list {
		p.AddSession(s)
	}
	return p.sessionMetrics(seenBefore)
}

func (p *Partial) sessionMetrics(seenBefore map[string]bool) SessionMetrics {
	m := SessionMetrics{
		TotalSessions:  p.sessions,
		UniqueVisitors: len(p.visitors),
		EngagementRate: 100,
	}
	for v := range p.visitors {
		if seenBefore[v] {
			m.ReturningVisitors++
		} else {
			m.NewVisitors++
		}
	}
	if p.sessions == 0 {
		return m
	}
	n := float64(p.sessions)
	m.AvgDurationSeconds = p.durationSum / n
	m.AvgPagesPerSession = float64(p.pagesSum) / n
	m.BounceRate = float64(p.bounces) / n * 100
	m.EngagementRate = 100 - m.BounceRate
	return m
}
