package sessions

import (
	"sort"
	"time"

	"rankrent/internal/tracking"
)

// RejectReason names why an event was skipped.
type RejectReason string

const (
	RejectMissingSession  RejectReason = "missing_session_id"
	RejectInvalidSequence RejectReason = "invalid_sequence"
	RejectNonMonotonic    RejectReason = "non_monotonic_sequence"
)

// Tally counts skipped events per reason.
type Tally map[RejectReason]int

func (t Tally) Total() int {
	n := 0
	for _, c := range t {
		n += c
	}
	return n
}

// AsLabels converts the tally for metric export.
func (t Tally) AsLabels() map[string]int {
	out := make(map[string]int, len(t))
	for r, c := range t {
		out[string(r)] = c
	}
	return out
}

// Options tune one reconstruction run.
type Options struct {
	IdleCeiling time.Duration
	// WindowEnd is the exclusive end of the queried window; zero means unbounded.
	WindowEnd time.Time
	Now       time.Time
	// Continuing lists sessions known to have events after WindowEnd.
	Continuing map[string]bool
}

// Result is the reconstruction output.
type Result struct {
	Sessions   []Session `json:"sessions"`
	Rejections Tally     `json:"rejections"`
	Duplicates int       `json:"duplicates"`
	// Orphans are sessions with events but no page_view.
	Orphans []string `json:"orphans,omitempty"`
}

// Reconstruct groups events into sessions. It never fails: malformed events are
// tallied in Result.Rejections and skipped. The output is sorted by entry time,
// most recent first, and is identical for identical input.
func Reconstruct(events []tracking.TrackingEvent, opts Options) Result {
	if opts.IdleCeiling <= 0 {
		opts.IdleCeiling = DefaultIdleCeiling
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	res := Result{Rejections: Tally{}}
	groups := make(map[string][]tracking.TrackingEvent)
	for _, ev := range events {
		switch {
		case ev.SessionID == "":
			res.Rejections[RejectMissingSession]++
			continue
		case ev.SequenceNumber < 0:
			res.Rejections[RejectInvalidSequence]++
			continue
		}
		groups[ev.SessionID] = append(groups[ev.SessionID], ev)
	}

	for sid, group := range groups {
		group, dups := dedupe(group)
		res.Duplicates += dups
		orderEvents(group)
		group = dropNonMonotonic(group, res.Rejections)

		s, ok := buildSession(sid, group, opts)
		if !ok {
			res.Orphans = append(res.Orphans, sid)
			continue
		}
		res.Sessions = append(res.Sessions, s)
	}

	SortByRecency(res.Sessions)
	sort.Strings(res.Orphans)
	return res
}

// SortByRecency orders sessions by entry time descending, then session id.
func SortByRecency(list []Session) {
	sort.SliceStable(list, func(i, j int) bool {
		if !list[i].EntryTime.Equal(list[j].EntryTime) {
			return list[i].EntryTime.After(list[j].EntryTime)
		}
		return list[i].SessionID < list[j].SessionID
	})
}

// dedupe drops repeated event ids and repeated page_view sequence numbers,
// keeping the first by insertion order.
func dedupe(group []tracking.TrackingEvent) ([]tracking.TrackingEvent, int) {
	byInsertion := make([]tracking.TrackingEvent, len(group))
	copy(byInsertion, group)
	sort.SliceStable(byInsertion, func(i, j int) bool { return byInsertion[i].ID < byInsertion[j].ID })

	seenIDs := make(map[string]bool, len(byInsertion))
	seenSeq := make(map[int]bool)
	out := byInsertion[:0]
	dups := 0
	for _, ev := range byInsertion {
		if ev.EventID != "" && seenIDs[ev.EventID] {
			dups++
			continue
		}
		if ev.EventType == tracking.EventPageView && ev.SequenceNumber > 0 {
			if seenSeq[ev.SequenceNumber] {
				dups++
				continue
			}
			seenSeq[ev.SequenceNumber] = true
		}
		seenIDs[ev.EventID] = true
		out = append(out, ev)
	}
	return out, dups
}

// orderEvents sorts by sequence number when every event carries one, otherwise by time.
func orderEvents(group []tracking.TrackingEvent) {
	sequenced := true
	for _, ev := range group {
		if ev.SequenceNumber == 0 {
			sequenced = false
			break
		}
	}
	sort.SliceStable(group, func(i, j int) bool {
		a, b := group[i], group[j]
		if sequenced && a.SequenceNumber != b.SequenceNumber {
			return a.SequenceNumber < b.SequenceNumber
		}
		if !a.OccurredAt.Equal(b.OccurredAt) {
			return a.OccurredAt.Before(b.OccurredAt)
		}
		return a.ID < b.ID
	})
}

func buildSession(sid string, group []tracking.TrackingEvent, opts Options) (Session, bool) {
	s := Session{SessionID: sid}

	var lastView time.Time
	var exitAt *time.Time
	for _, ev := range group {
		if s.SiteID == 0 {
			s.SiteID = ev.SiteID
		}
		if s.VisitorID == "" {
			s.VisitorID = ev.VisitorID
		}
		if s.BotName == nil && ev.BotName != nil && *ev.BotName != "" {
			s.BotName = ev.BotName
		}
		if ev.OccurredAt.After(s.LastEventTime) {
			s.LastEventTime = ev.OccurredAt
		}

		switch ev.EventType {
		case tracking.EventPageView:
			if len(s.Visits) == 0 {
				s.Device, s.City, s.Country = ev.Device, ev.City, ev.Country
				s.Referrer = ev.Referrer
				s.PaidClick = paidClick(ev)
			}
			seq := len(s.Visits) + 1
			s.Visits = append(s.Visits, Visit{
				VisitID:        VisitID(sid, seq),
				SessionID:      sid,
				PageURL:        ev.PageURL,
				PageTitle:      ev.PageTitle,
				SequenceNumber: seq,
				EntryTime:      ev.OccurredAt,
				EventSequence:  ev.SequenceNumber,
			})
			lastView = ev.OccurredAt
			exitAt = nil
		case tracking.EventPageExit:
			if len(s.Visits) > 0 && !ev.OccurredAt.Before(lastView) {
				at := ev.OccurredAt
				exitAt = &at
			}
		}
	}

	if len(s.Visits) == 0 {
		return Session{}, false
	}

	for i := range s.Visits {
		var spent *float64
		switch {
		case i+1 < len(s.Visits):
			spent = capped(s.Visits[i+1].EntryTime.Sub(s.Visits[i].EntryTime), opts.IdleCeiling)
		case exitAt != nil:
			spent = capped(exitAt.Sub(s.Visits[i].EntryTime), opts.IdleCeiling)
		}
		s.Visits[i].TimeSpentSeconds = spent
		if spent != nil {
			s.TotalDurationSeconds += *spent
		}
	}

	first, last := &s.Visits[0], &s.Visits[len(s.Visits)-1]
	first.IsEntry = true
	s.EntryPageURL = first.PageURL
	s.ExitPageURL = last.PageURL
	s.EntryTime = first.EntryTime
	s.PagesVisited = len(s.Visits)

	s.State = StateOpen
	windowOver := !opts.WindowEnd.IsZero() && !opts.WindowEnd.After(opts.Now)
	if exitAt != nil || (windowOver && !opts.Continuing[sid]) {
		s.State = StateClosed
		last.IsExit = true
	}
	return s, true
}

// paidClick names the ad network whose click id rode on the landing view.
func paidClick(ev tracking.TrackingEvent) string {
	switch {
	case ev.GCLID != nil && *ev.GCLID != "":
		return "google"
	case ev.FBCLID != nil && *ev.FBCLID != "":
		return "meta"
	}
	return ""
}

func capped(d time.Duration, ceiling time.Duration) *float64 {
	if d < 0 {
		d = 0
	}
	if d > ceiling {
		d = ceiling
	}
	secs := d.Seconds()
	return &secs
}

// Prepare dedupes, orders and filters one session's events exactly as
// Reconstruct does, so other components walking a session see the same visits.
func Prepare(group []tracking.TrackingEvent) []tracking.TrackingEvent {
	out, _ := dedupe(group)
	orderEvents(out)
	return dropNonMonotonic(out, Tally{})
}

// dropNonMonotonic removes page_views that occur before an already accepted
// page_view of the same session. The group must already be ordered.
func dropNonMonotonic(group []tracking.TrackingEvent, rejections Tally) []tracking.TrackingEvent {
	out := make([]tracking.TrackingEvent, 0, len(group))
	var lastView time.Time
	seenView := false
	for _, ev := range group {
		if ev.EventType == tracking.EventPageView {
			if seenView && ev.OccurredAt.Before(lastView) {
				rejections[RejectNonMonotonic]++
				continue
			}
			seenView = true
			lastView = ev.OccurredAt
		}
		out = append(out, ev)
	}
	return out
}
