package analytics

import (
	"strings"

	"rankrent/internal/conversions"
	"rankrent/internal/sessions"
)

// Filter narrows the sessions a report or listing covers. The zero Filter keeps everything.
type Filter struct {
	MinPages           int     `query:"min_pages" json:"min_pages,omitempty"`
	MinDurationSeconds float64 `query:"min_duration" json:"min_duration,omitempty"`
	Device             string  `query:"device" json:"device,omitempty"`
	Country            string  `query:"country" json:"country,omitempty"`
	City               string  `query:"city" json:"city,omitempty"`
	HasConversion      *bool   `query:"has_conversion" json:"has_conversion,omitempty"`
	ExcludeBots        bool    `query:"exclude_bots" json:"exclude_bots,omitempty"`
}

func (f Filter) IsZero() bool {
	return f.MinPages <= 0 && f.MinDurationSeconds <= 0 &&
		f.Device == "" && f.Country == "" && f.City == "" &&
		f.HasConversion == nil && !f.ExcludeBots
}

// Match reports whether s passes. converted holds the ids of sessions with a conversion.
func (f Filter) Match(s sessions.Session, converted map[string]bool) bool {
	if f.MinPages > 0 && len(s.Visits) < f.MinPages {
		return false
	}
	if f.MinDurationSeconds > 0 && s.TotalDurationSeconds < f.MinDurationSeconds {
		return false
	}
	if f.Device != "" && !strings.EqualFold(f.Device, s.Device) {
		return false
	}
	if f.Country != "" && !strings.EqualFold(f.Country, s.Country) {
		return false
	}
	if f.City != "" && !strings.EqualFold(f.City, s.City) {
		return false
	}
	if f.HasConversion != nil && converted[s.SessionID] != *f.HasConversion {
		return false
	}
	if f.ExcludeBots && s.IsBot() {
		return false
	}
	return true
}

// Apply returns the sessions passing f in a new slice; list is not modified.
func (f Filter) Apply(list []sessions.Session, converted map[string]bool) []sessions.Session {
	out := make([]sessions.Session, 0, len(list))
	for _, s := range list {
		if f.Match(s, converted) {
			out = append(out, s)
		}
	}
	return out
}

// ApplyInput filters an Input. With a non-zero filter, only conversions
// belonging to a kept session remain.
func (f Filter) ApplyInput(in Input) Input {
	if f.IsZero() {
		return in
	}
	converted := ConvertedSessions(in.Conversions)
	kept := f.Apply(in.Sessions, converted)
	ids := make(map[string]bool, len(kept))
	for _, s := range kept {
		ids[s.SessionID] = true
	}
	convs := make([]conversions.Conversion, 0, len(in.Conversions))
	for _, c := range in.Conversions {
		if ids[c.SessionID] {
			convs = append(convs, c)
		}
	}
	return Input{Sessions: kept, Conversions: convs, SeenBefore: in.SeenBefore}
}

// ConvertedSessions indexes the session ids that produced a conversion.
func ConvertedSessions(list []conversions.Conversion) map[string]bool {
	out := make(map[string]bool, len(list))
	for _, c := range list {
		if c.SessionID != "" {
			out[c.SessionID] = true
		}
	}
	return out
}
