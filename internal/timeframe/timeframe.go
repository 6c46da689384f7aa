// Package timeframe models the half-open date windows analytics queries run over.
package timeframe

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidRange = errors.New("invalid time range")

// TimeProvider abstracts the clock so parsers and reconstruction can be tested.
type TimeProvider interface {
	Now(loc *time.Location) time.Time
}

// DefaultTimeProvider uses the system clock.
type DefaultTimeProvider struct{}

func (p *DefaultTimeProvider) Now(loc *time.Location) time.Time {
	return time.Now().In(loc)
}

// FixedTimeProvider always returns the same instant.
type FixedTimeProvider struct {
	At time.Time
}

func (p FixedTimeProvider) Now(loc *time.Location) time.Time {
	return p.At.In(loc)
}

// Range is the window [From, To). A zero Range means "unbounded".
type Range struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// NewRange validates and returns a window.
func NewRange(from, to time.Time) (Range, error) {
	if from.IsZero() || to.IsZero() || !from.Before(to) {
		return Range{}, fmt.Errorf("%w: from=%s to=%s", ErrInvalidRange, from.Format(time.RFC3339), to.Format(time.RFC3339))
	}
	return Range{From: from, To: to}, nil
}

func (r Range) IsZero() bool {
	return r.From.IsZero() && r.To.IsZero()
}

// Contains reports whether t falls inside the window. Unbounded windows contain everything.
func (r Range) Contains(t time.Time) bool {
	if r.IsZero() {
		return true
	}
	return !t.Before(r.From) && t.Before(r.To)
}

func (r Range) Duration() time.Duration {
	return r.To.Sub(r.From)
}

// SameLength reports whether r and other cover the same span. Calendar windows
// crossing a daylight-saving change may differ by up to one hour.
func (r Range) SameLength(other Range) bool {
	diff := r.Duration() - other.Duration()
	if diff < 0 {
		diff = -diff
	}
	return diff <= time.Hour
}

// Previous returns the equal-length window ending where r starts.
func (r Range) Previous() Range {
	d := r.Duration()
	return Range{From: r.From.Add(-d), To: r.From}
}

// Days splits the window at local midnights of From's location.
// The first and last slices may be partial days.
func (r Range) Days() []Range {
	if r.IsZero() || !r.From.Before(r.To) {
		return nil
	}
	loc := r.From.Location()
	var days []Range
	start := r.From
	for start.Before(r.To) {
		y, m, d := start.Date()
		next := time.Date(y, m, d+1, 0, 0, 0, 0, loc)
		if next.After(r.To) {
			next = r.To
		}
		days = append(days, Range{From: start, To: next})
		start = next
	}
	return days
}

// UTC returns the window with both bounds converted to UTC.
func (r Range) UTC() Range {
	return Range{From: r.From.UTC(), To: r.To.UTC()}
}

func (r Range) String() string {
	if r.IsZero() {
		return "all"
	}
	return r.From.Format(time.RFC3339) + "/" + r.To.Format(time.RFC3339)
}
