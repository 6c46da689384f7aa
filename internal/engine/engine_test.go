package engine_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"rankrent/internal/analytics"
	"rankrent/internal/conversions"
	"rankrent/internal/engine"
	"rankrent/internal/goals"
	"rankrent/internal/pkg/projcache"
	"rankrent/internal/testsupport"
	"rankrent/internal/timeframe"
	"rankrent/internal/tracking"
)

var (
	day   = time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)
	week  = timeframe.Range{From: day, To: day.AddDate(0, 0, 7)}
	clock = func() time.Time { return day.AddDate(0, 0, 10) }
)

// countingSource wraps the event store and counts full event reads.
type countingSource struct {
	*tracking.Store
	reads atomic.Int32
	fail  error
}

func (c *countingSource) Events(ctx context.Context, siteID uint, rng timeframe.Range, sessionID string) ([]tracking.TrackingEvent, error) {
	if c.fail != nil {
		return nil, c.fail
	}
	c.reads.Add(1)
	return c.Store.Events(ctx, siteID, rng, sessionID)
}

type fixture struct {
	db      *gorm.DB
	siteID  uint
	source  *countingSource
	convs   *conversions.Store
	goals   *goals.Store
	process func()
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testsupport.SetupTestDB(t)
	logger := testsupport.GetLogger()
	site := testsupport.CreateTestSite(t, db, "encanador-sp.com.br")
	events := tracking.NewStore(db, logger)
	convs := conversions.NewStore(db, logger)
	goalStore := goals.NewStore(db, logger)
	processor := conversions.NewProcessor(events, goalStore, convs, goals.NewMatcher(goals.WithLogger(logger)), logger, 0)

	fx := &fixture{db: db, siteID: site.ID, source: &countingSource{Store: events}, convs: convs, goals: goalStore}
	fx.process = func() {
		_, err := processor.Drain(context.Background(), site.ID)
		require.NoError(t, err)
	}
	return fx
}

func (fx *fixture) engine(opts ...engine.Option) *engine.Engine {
	opts = append([]engine.Option{engine.WithClock(clock), engine.WithLogger(testsupport.GetLogger())}, opts...)
	return engine.New(fx.source, fx.goals, fx.convs, opts...)
}

// seed writes three sessions: a three-page converting journey, a bounce and a mobile visit.
func (fx *fixture) seed(t *testing.T) (converter *testsupport.SessionBuilder) {
	t.Helper()
	converter = testsupport.NewSession(fx.siteID, "journey", "ana", day.Add(9*time.Hour)).
		View("/", 0).
		View("/servicos", 40*time.Second).
		View("/contato", 95*time.Second).
		Click(tracking.EventWhatsAppClick, "Chamar no WhatsApp", 110*time.Second)
	bounce := testsupport.NewSession(fx.siteID, "bounce", "bia", day.Add(26*time.Hour)).
		View("/blog/pragas", 0)
	mobile := testsupport.NewSession(fx.siteID, "mobile", "caio", day.Add(50*time.Hour)).WithDevice("mobile").
		View("/", 0).
		View("/precos", 20*time.Second)

	testsupport.AppendEvents(t, fx.db, converter.Events()...)
	testsupport.AppendEvents(t, fx.db, bounce.Events()...)
	testsupport.AppendEvents(t, fx.db, mobile.Events()...)
	fx.process()
	return converter
}

func TestEngine_ReconstructSessions(t *testing.T) {
	fx := newFixture(t)
	fx.seed(t)
	e := fx.engine()
	ctx := context.Background()

	page, err := e.ReconstructSessions(ctx, fx.siteID, week, analytics.Filter{}, analytics.Page{Number: 1, Size: 2})
	require.NoError(t, err)
	require.Len(t, page.Sessions, 2)
	assert.Equal(t, "mobile", page.Sessions[0].SessionID, "most recent first")
	assert.Equal(t, "bounce", page.Sessions[1].SessionID)
	assert.Equal(t, 3, page.Pagination.Total)
	assert.True(t, page.Pagination.HasNext)
	assert.Zero(t, page.Rejections.Total())

	yes := true
	page, err = e.ReconstructSessions(ctx, fx.siteID, week, analytics.Filter{HasConversion: &yes}, analytics.Page{})
	require.NoError(t, err)
	require.Len(t, page.Sessions, 1)
	s := page.Sessions[0]
	assert.Equal(t, "journey", s.SessionID)
	assert.Equal(t, 25, page.Pagination.PageSize, "default page size")
	require.Len(t, s.Visits, 3)
	assert.Equal(t, 40.0, *s.Visits[0].TimeSpentSeconds)
	assert.Equal(t, 55.0, *s.Visits[1].TimeSpentSeconds)
	assert.Nil(t, s.Visits[2].TimeSpentSeconds, "no exit recorded")
	assert.Equal(t, 95.0, s.TotalDurationSeconds)
}

func TestEngine_BuildJourney(t *testing.T) {
	fx := newFixture(t)
	converter := fx.seed(t)
	e := fx.engine()
	ctx := context.Background()

	convID := conversions.IDForEvent(converter.Last().EventID)
	j, err := e.BuildJourney(ctx, convID)
	require.NoError(t, err)
	assert.Equal(t, convID, j.ConversionID)
	assert.False(t, j.IsPartial)
	assert.False(t, j.IsSynthetic)
	require.Len(t, j.Visits, 3)
	assert.Equal(t, []string{"/", "/servicos", "/contato"},
		[]string{j.Visits[0].PageURL, j.Visits[1].PageURL, j.Visits[2].PageURL})
	assert.True(t, j.Visits[2].IsConversionPage)

	_, err = e.BuildJourney(ctx, "missing")
	assert.ErrorIs(t, err, engine.ErrNotFound)
}

func TestEngine_Aggregate(t *testing.T) {
	fx := newFixture(t)
	fx.seed(t)
	e := fx.engine()

	report, err := e.Aggregate(context.Background(), fx.siteID, week, analytics.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 3, report.SessionMetrics.TotalSessions)
	assert.InDelta(t, 100.0/3, report.SessionMetrics.BounceRate, 1e-9)
	assert.Equal(t, 1, report.Conversions.Count)
	require.Len(t, report.GoalBreakdown, 1)
	assert.Equal(t, goals.FallbackGoalName, report.GoalBreakdown[0].GoalName)
	assert.Equal(t, 3, report.Heatmap.Total())

	mobileOnly, err := e.Aggregate(context.Background(), fx.siteID, week, analytics.Filter{Device: "mobile"})
	require.NoError(t, err)
	assert.Equal(t, 1, mobileOnly.SessionMetrics.TotalSessions)
	assert.Zero(t, mobileOnly.Conversions.Count, "conversions follow the filtered sessions")
}

func TestEngine_Compare(t *testing.T) {
	fx := newFixture(t)
	fx.seed(t)
	earlier := testsupport.NewSession(fx.siteID, "earlier", "ana", day.Add(-3*24*time.Hour)).
		View("/", 0)
	testsupport.AppendEvents(t, fx.db, earlier.Events()...)
	e := fx.engine()

	cmp, err := e.Compare(context.Background(), fx.siteID, week, timeframe.Range{}, analytics.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 1, cmp.Previous.SessionMetrics.TotalSessions)
	assert.Equal(t, 3, cmp.Current.SessionMetrics.TotalSessions)
	assert.Equal(t, 1, cmp.Current.SessionMetrics.ReturningVisitors, "ana was seen last week")

	sessions, ok := cmp.Find("total_sessions")
	require.True(t, ok)
	assert.InDelta(t, 200.0, sessions.ChangePct, 1e-9)
	assert.Equal(t, analytics.Improvement, sessions.Direction)

	shorter := timeframe.Range{From: day.AddDate(0, 0, -3), To: day}
	_, err = e.Compare(context.Background(), fx.siteID, week, shorter, analytics.Filter{})
	assert.ErrorIs(t, err, timeframe.ErrInvalidRange)

	explicit, err := e.Compare(context.Background(), fx.siteID, week, week.Previous(), analytics.Filter{})
	require.NoError(t, err)
	assert.Equal(t, cmp.Previous.SessionMetrics.TotalSessions, explicit.Previous.SessionMetrics.TotalSessions)
}

func TestEngine_MatchConversion(t *testing.T) {
	fx := newFixture(t)
	e := fx.engine()
	ev := testsupport.NewSession(fx.siteID, "s", "v", day).
		View("/obrigado", 0).
		Last()

	assert.Nil(t, e.MatchConversion(ev, nil), "a page view is not a fallback conversion")

	goal := goals.ConversionGoal{ID: 9, SiteID: fx.siteID, GoalName: "Obrigado", GoalType: goals.GoalPageDestination,
		IsActive: true, PageURLs: []string{"/obrigado"}, ConversionValue: 80}
	c := e.MatchConversion(ev, []goals.ConversionGoal{goal})
	require.NotNil(t, c)
	assert.Equal(t, "Obrigado", c.GoalName)
	assert.Equal(t, 80.0, c.ConversionValue)
	assert.Equal(t, conversions.IDForEvent(ev.EventID), c.ConversionID)
}

func TestEngine_Unavailable(t *testing.T) {
	fx := newFixture(t)
	fx.source.fail = errors.New("database is locked")
	e := fx.engine()
	ctx := context.Background()

	_, err := e.ReconstructSessions(ctx, fx.siteID, week, analytics.Filter{}, analytics.Page{})
	assert.ErrorIs(t, err, engine.ErrUnavailable)

	_, err = e.Aggregate(ctx, fx.siteID, week, analytics.Filter{})
	assert.ErrorIs(t, err, engine.ErrUnavailable)

	_, err = e.Compare(ctx, fx.siteID, week, timeframe.Range{}, analytics.Filter{})
	assert.ErrorIs(t, err, engine.ErrUnavailable)
}

func TestEngine_ProjectionCache(t *testing.T) {
	fx := newFixture(t)
	fx.seed(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	e := fx.engine(engine.WithCache(projcache.New(rdb, time.Minute, testsupport.GetLogger())))
	ctx := context.Background()

	first, err := e.Aggregate(ctx, fx.siteID, week, analytics.Filter{})
	require.NoError(t, err)
	second, err := e.Aggregate(ctx, fx.siteID, week, analytics.Filter{})
	require.NoError(t, err)
	assert.Equal(t, int32(1), fx.source.reads.Load(), "second read served from cache")
	assert.Equal(t, first.SessionMetrics, second.SessionMetrics)

	late := testsupport.NewSession(fx.siteID, "late", "duda", day.Add(80*time.Hour)).View("/", 0)
	testsupport.AppendEvents(t, fx.db, late.Events()...)

	third, err := e.Aggregate(ctx, fx.siteID, week, analytics.Filter{})
	require.NoError(t, err)
	assert.Equal(t, int32(2), fx.source.reads.Load(), "a new event changes the fingerprint")
	assert.Equal(t, 4, third.SessionMetrics.TotalSessions)
}
