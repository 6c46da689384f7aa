package analytics_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rankrent/internal/analytics"
	"rankrent/internal/conversions"
	"rankrent/internal/goals"
)

func ptr(u uint) *uint { return &u }

func TestGoalBreakdown(t *testing.T) {
	list := []conversions.Conversion{
		{ConversionID: "1", GoalID: ptr(1), GoalName: "WhatsApp", ConversionValue: 50, CreatedAt: monday},
		{ConversionID: "2", GoalID: ptr(1), GoalName: "WhatsApp (novo)", ConversionValue: 50, CreatedAt: monday.Add(time.Hour)},
		{ConversionID: "3", GoalID: nil, GoalName: goals.FallbackGoalName, CreatedAt: monday},
		{ConversionID: "4", GoalID: nil, GoalName: goals.FallbackGoalName, CreatedAt: monday},
		{ConversionID: "5", GoalID: nil, GoalName: goals.FallbackGoalName, ConversionValue: 10, CreatedAt: monday},
		{ConversionID: "6", GoalID: ptr(2), GoalName: "Formulário", ConversionValue: 120, CreatedAt: monday},
	}

	rows := analytics.GoalBreakdown(list)
	require.Len(t, rows, 3)

	assert.Nil(t, rows[0].GoalID)
	assert.Equal(t, goals.FallbackGoalName, rows[0].GoalName)
	assert.Equal(t, 3, rows[0].Conversions)
	assert.Equal(t, 10.0, rows[0].ValueSum)

	assert.Equal(t, "WhatsApp (novo)", rows[1].GoalName, "latest name wins")
	assert.Equal(t, 2, rows[1].Conversions)
	assert.Equal(t, 100.0, rows[1].ValueSum)

	assert.Equal(t, uint(2), *rows[2].GoalID)
}
