package tracking_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rankrent/internal/pkg/geoip"
	"rankrent/internal/pkg/user_agent"
	"rankrent/internal/testsupport"
	"rankrent/internal/timeframe"
	"rankrent/internal/tracking"
)

var base = time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

func TestStoreAppend(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	store := tracking.NewStore(db, testsupport.GetLogger())
	ctx := context.Background()

	events := testsupport.NewSession(1, "s1", "v1", base).
		View("/", 0).
		Click(tracking.EventWhatsAppClick, "Chamar no WhatsApp", 20*time.Second).
		Events()

	n, err := store.Append(ctx, events...)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = store.Append(ctx, events...)
	require.NoError(t, err)
	assert.Zero(t, n, "replayed event ids are skipped")

	replayedView := events[0]
	replayedView.ID = 0
	replayedView.EventID = "other-id"
	n, err = store.Append(ctx, replayedView)
	require.NoError(t, err)
	assert.Zero(t, n, "a second page_view with the same sequence is skipped")

	n, err = store.Append(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStoreQueries(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	store := tracking.NewStore(db, testsupport.GetLogger())
	ctx := context.Background()

	early := testsupport.NewSession(1, "early", "returning", base.AddDate(0, 0, -5)).View("/", 0).Events()
	s1 := testsupport.NewSession(1, "s1", "returning", base).View("/", 0).View("/servicos", time.Minute).Events()
	s2 := testsupport.NewSession(1, "s2", "new", base.Add(time.Hour)).View("/contato", 0).Events()
	other := testsupport.NewSession(2, "x", "v", base).View("/", 0).Events()
	for _, evs := range [][]tracking.TrackingEvent{early, s1, s2, other} {
		testsupport.AppendEvents(t, db, evs...)
	}

	window := timeframe.Range{From: base.Add(-time.Hour), To: base.Add(2 * time.Hour)}

	t.Run("events in range ordered by session and sequence", func(t *testing.T) {
		got, err := store.Events(ctx, 1, window, "")
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "s1", got[0].SessionID)
		assert.Equal(t, 1, got[0].SequenceNumber)
		assert.Equal(t, 2, got[1].SequenceNumber)
		assert.Equal(t, "s2", got[2].SessionID)

		one, err := store.Events(ctx, 1, window, "s2")
		require.NoError(t, err)
		assert.Len(t, one, 1)

		all, err := store.Events(ctx, 1, timeframe.Range{}, "")
		require.NoError(t, err)
		assert.Len(t, all, 4, "zero range is unbounded")
	})

	t.Run("fingerprint changes when the event set does", func(t *testing.T) {
		before, err := store.Fingerprint(ctx, 1, window)
		require.NoError(t, err)
		assert.Contains(t, before, "3:")

		testsupport.AppendEvents(t, db, testsupport.NewSession(1, "s3", "v3", base.Add(30*time.Minute)).View("/", 0).Events()...)

		after, err := store.Fingerprint(ctx, 1, window)
		require.NoError(t, err)
		assert.NotEqual(t, before, after)
	})

	t.Run("session events ignore the range", func(t *testing.T) {
		got, err := store.SessionEvents(ctx, 1, []string{"early", "s1"})
		require.NoError(t, err)
		assert.Len(t, got, 3)
	})

	t.Run("visitor and session lookups", func(t *testing.T) {
		seen, err := store.VisitorsSeenBefore(ctx, 1, []string{"returning", "new"}, window.From)
		require.NoError(t, err)
		assert.Equal(t, map[string]bool{"returning": true}, seen)

		cont, err := store.ContinuingSessions(ctx, 1, []string{"s1", "s2"}, base.Add(30*time.Second))
		require.NoError(t, err)
		assert.Equal(t, map[string]bool{"s1": true, "s2": true}, cont)
	})

	t.Run("events after paginates by insertion id", func(t *testing.T) {
		first, err := store.EventsAfter(ctx, 1, 0, 2)
		require.NoError(t, err)
		require.Len(t, first, 2)

		rest, err := store.EventsAfter(ctx, 1, first[1].ID, 100)
		require.NoError(t, err)
		for _, ev := range rest {
			assert.Greater(t, ev.ID, first[1].ID)
			assert.Equal(t, uint(1), ev.SiteID)
		}
	})
}

func TestStoreDeleteOlderThan(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	store := tracking.NewStore(db, testsupport.GetLogger())
	ctx := context.Background()

	testsupport.AppendEvents(t, db, testsupport.NewSession(1, "old", "v", base.AddDate(-1, 0, 0)).
		View("/", 0).View("/a", time.Minute).View("/b", 2*time.Minute).Events()...)
	testsupport.AppendEvents(t, db, testsupport.NewSession(1, "new", "v", base).View("/", 0).Events()...)

	deleted, err := store.DeleteOlderThan(ctx, base.AddDate(0, 0, -30), 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted, "limit bounds each batch")

	deleted, err = store.DeleteOlderThan(ctx, base.AddDate(0, 0, -30), 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	left, err := store.Events(ctx, 1, timeframe.Range{}, "")
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "new", left[0].SessionID)
}

func TestCollector(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	logger := testsupport.GetLogger()
	geo, err := geoip.Open("", logger)
	require.NoError(t, err)
	collector := tracking.NewCollector(tracking.NewStore(db, logger), geo, user_agent.Default(), logger)
	ctx := context.Background()

	valid := tracking.CollectInput{
		SessionID:      "s1",
		VisitorID:      "v1",
		SequenceNumber: 1,
		EventType:      string(tracking.EventPageView),
		PageURL:        "https://encanador.com.br/?gclid=abc123",
		OccurredAt:     base,
		IPAddress:      "203.0.113.9",
		UserAgent:      "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)",
	}

	t.Run("enriches and stores", func(t *testing.T) {
		ev, stored, err := collector.Collect(ctx, 1, valid)
		require.NoError(t, err)
		assert.True(t, stored)
		assert.Equal(t, tracking.DeriveEventID(1, "s1", 1, "page_view", base, "|"), ev.EventID)
		assert.Equal(t, "abc123", tracking.Deref(ev.GCLID))
		assert.Nil(t, ev.FBCLID)
		assert.Equal(t, "Googlebot", tracking.Deref(ev.BotName))
		assert.Equal(t, geoip.Unknown, ev.City)
	})

	t.Run("duplicates are acknowledged, not stored", func(t *testing.T) {
		in := valid
		in.EventID = "fixed-id"
		in.SequenceNumber = 2
		_, stored, err := collector.Collect(ctx, 1, in)
		require.NoError(t, err)
		assert.True(t, stored)

		_, stored, err = collector.Collect(ctx, 1, in)
		require.NoError(t, err)
		assert.False(t, stored)
	})

	t.Run("retried clicks without event_id are stored once", func(t *testing.T) {
		click := valid
		click.EventType = string(tracking.EventWhatsAppClick)
		click.CTAText = "Chamar no WhatsApp"
		click.OccurredAt = base.Add(time.Minute)

		first, stored, err := collector.Collect(ctx, 1, click)
		require.NoError(t, err)
		assert.True(t, stored)

		retry, stored, err := collector.Collect(ctx, 1, click)
		require.NoError(t, err)
		assert.False(t, stored)
		assert.Equal(t, first.EventID, retry.EventID)

		other := click
		other.CTAText = "Ligar"
		_, stored, err = collector.Collect(ctx, 1, other)
		require.NoError(t, err)
		assert.True(t, stored, "a different button in the same instant is a new event")
	})

	tests := []struct {
		name   string
		mutate func(*tracking.CollectInput)
	}{
		{"unknown event type", func(in *tracking.CollectInput) { in.EventType = "hover" }},
		{"missing session", func(in *tracking.CollectInput) { in.SessionID = "" }},
		{"negative sequence", func(in *tracking.CollectInput) { in.SequenceNumber = -1 }},
		{"scroll above 100", func(in *tracking.CollectInput) { in.ScrollDepthPct = tracking.FloatPtr(120) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			_, _, err := collector.Collect(ctx, 1, in)
			assert.ErrorIs(t, err, tracking.ErrInvalidEvent)
		})
	}
}

func TestEventTypeClasses(t *testing.T) {
	tests := []struct {
		typ   tracking.EventType
		valid bool
		click bool
	}{
		{tracking.EventPageView, true, false},
		{tracking.EventWhatsAppClick, true, true},
		{tracking.EventFormSubmit, true, true},
		{tracking.EventScroll, true, false},
		{"hover", false, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.typ.Valid())
			assert.Equal(t, tt.click, tt.typ.IsClickClass())
		})
	}
}
