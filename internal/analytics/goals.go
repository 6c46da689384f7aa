package analytics

import (
	"cmp"
	"slices"
	"strconv"
	"time"

	"rankrent/internal/conversions"
	"rankrent/internal/goals"
)

// GoalRow is one bucket of the goal breakdown. GoalID is nil for the fallback bucket.
type GoalRow struct {
	GoalID      *uint   `json:"goal_id"`
	GoalName    string  `json:"goal_name"`
	Conversions int     `json:"conversions"`
	ValueSum    float64 `json:"value_sum"`

	lastSeen time.Time
}

// observeName keeps the name of the most recent conversion, so a renamed goal
// reports its latest name.
func (r *GoalRow) observeName(name string, at time.Time) {
	if at.After(r.lastSeen) || (at.Equal(r.lastSeen) && name < r.GoalName) {
		r.GoalName = name
		r.lastSeen = at
	}
}

func goalKey(id *uint) string {
	if id == nil {
		return ""
	}
	return strconv.FormatUint(uint64(*id), 10)
}

// GoalBreakdown groups conversions by goal, most conversions first.
func GoalBreakdown(list []conversions.Conversion) []GoalRow {
	p := NewPartial(nil)
	for _, c := range list {
		p.AddConversion(c)
	}
	return p.goalBreakdown()
}

func (p *Partial) goalBreakdown() []GoalRow {
	out := make([]GoalRow, 0, len(p.goals))
	for _, row := range p.goals {
		r := *row
		if r.GoalID == nil {
			r.GoalName = goals.FallbackGoalName
		}
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b GoalRow) int {
		if c := cmp.Compare(b.Conversions, a.Conversions); c != 0 {
			return c
		}
		if c := cmp.Compare(a.GoalName, b.GoalName); c != 0 {
			return c
		}
		return cmp.Compare(goalKey(a.GoalID), goalKey(b.GoalID))
	})
	return out
}
