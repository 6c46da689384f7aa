package goals

import (
	"cmp"
	"slices"
)

// OrderPolicy compares two goals; negative means a is evaluated first.
type OrderPolicy func(a, b ConversionGoal) int

// Specificity ranks goal types for tie-breaking; higher is evaluated first.
func Specificity(t GoalType) int {
	switch t {
	case GoalCombined:
		return 4
	case GoalURLPattern:
		return 3
	case GoalPageDestination:
		return 2
	case GoalCTAMatch:
		return 1
	default:
		return 0
	}
}

// DefaultOrder evaluates by priority rank, then type specificity, then age, then id.
func DefaultOrder(a, b ConversionGoal) int {
	if c := cmp.Compare(a.PriorityRank, b.PriorityRank); c != 0 {
		return c
	}
	if c := cmp.Compare(Specificity(b.GoalType), Specificity(a.GoalType)); c != 0 {
		return c
	}
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// Sort orders goals in place using policy, DefaultOrder when nil.
func Sort(goals []ConversionGoal, policy OrderPolicy) {
	if policy == nil {
		policy = DefaultOrder
	}
	slices.SortStableFunc(goals, policy)
}
