package seeder_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rankrent/internal/seeder"
	"rankrent/internal/sessions"
	"rankrent/internal/testsupport"
	"rankrent/internal/timeframe"
	"rankrent/internal/tracking"
)

func TestSeed(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	testsupport.CleanAllTables(db)
	logger := testsupport.GetLogger()
	site := testsupport.CreateTestSite(t, db, "encanador.com.br")
	store := tracking.NewStore(db, logger)
	now := time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC)

	s := seeder.New(store, nil, logger, 40, seeder.WithSeed(42), seeder.WithNow(now), seeder.WithDays(7))
	stored, err := s.Seed(context.Background(), site.ID)
	require.NoError(t, err)
	require.Positive(t, stored)

	events, err := store.Events(context.Background(), site.ID, timeframe.Range{}, "")
	require.NoError(t, err)
	assert.Len(t, events, int(stored))
	for _, ev := range events {
		assert.True(t, ev.OccurredAt.Before(now.Add(time.Hour)), "event after the anchor: %s", ev.OccurredAt)
		assert.True(t, ev.OccurredAt.After(now.AddDate(0, 0, -8)), "event before the window: %s", ev.OccurredAt)
	}

	t.Run("reconstructs into clean sessions", func(t *testing.T) {
		res := sessions.Reconstruct(events, sessions.Options{Now: now.AddDate(0, 1, 0)})
		assert.Len(t, res.Sessions, 40)
		assert.Zero(t, res.Duplicates)
		assert.Zero(t, res.Rejections.Total())
	})

	t.Run("same seed is idempotent", func(t *testing.T) {
		again := seeder.New(store, nil, logger, 40, seeder.WithSeed(42), seeder.WithNow(now), seeder.WithDays(7))
		n, err := again.Seed(context.Background(), site.ID)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("honours cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := seeder.New(store, nil, logger, 5).Seed(ctx, site.ID)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
