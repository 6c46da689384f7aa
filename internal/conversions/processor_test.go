package conversions_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rankrent/internal/conversions"
	"rankrent/internal/goals"
	"rankrent/internal/testsupport"
	"rankrent/internal/timeframe"
	"rankrent/internal/tracking"
)

type processorFixture struct {
	processor *conversions.Processor
	store     *conversions.Store
	goals     *goals.Store
	siteID    uint
}

func newProcessorFixture(t *testing.T, batch int) processorFixture {
	db := testsupport.SetupTestDB(t)
	logger := testsupport.GetLogger()
	site := testsupport.CreateTestSite(t, db, "dedetizadora-rj.com.br")
	store := conversions.NewStore(db, logger)
	goalStore := goals.NewStore(db, logger)
	p := conversions.NewProcessor(tracking.NewStore(db, logger), goalStore, store, goals.NewMatcher(goals.WithLogger(logger)), logger, batch)
	return processorFixture{processor: p, store: store, goals: goalStore, siteID: site.ID}
}

func TestProcessor_FallbackAndCursor(t *testing.T) {
	fx := newProcessorFixture(t, 100)
	db := testsupport.SetupTestDB(t)
	ctx := context.Background()

	b := testsupport.NewSession(fx.siteID, "s1", "v1", start).
		View("/", 0).
		View("/contact", 30*time.Second).
		Click(tracking.EventPhoneClick, "Call now", 40*time.Second)
	testsupport.AppendEvents(t, db, b.Events()...)

	res, err := fx.processor.ProcessSite(ctx, fx.siteID)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Scanned)
	assert.Equal(t, int64(1), res.Recorded)
	assert.Equal(t, b.Last().ID, res.LastEventID)

	res, err = fx.processor.ProcessSite(ctx, fx.siteID)
	require.NoError(t, err)
	assert.Zero(t, res.Scanned, "nothing past the cursor")

	list, err := fx.store.List(ctx, fx.siteID, timeframe.Range{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Nil(t, list[0].GoalID)
	assert.Equal(t, "/contact", list[0].PageURL)
}

func TestProcessor_GoalChangesOnlyAffectFutureEvents(t *testing.T) {
	fx := newProcessorFixture(t, 100)
	db := testsupport.SetupTestDB(t)
	ctx := context.Background()

	b := testsupport.NewSession(fx.siteID, "s1", "v1", start).
		View("/", 0).
		Click(tracking.EventWhatsAppClick, "WhatsApp", 5*time.Second)
	testsupport.AppendEvents(t, db, b.Events()...)
	_, err := fx.processor.ProcessSite(ctx, fx.siteID)
	require.NoError(t, err)

	require.NoError(t, fx.goals.Create(ctx, &goals.ConversionGoal{
		SiteID: fx.siteID, GoalName: "WhatsApp", GoalType: goals.GoalCTAMatch, IsActive: true,
		CTAPatterns: []string{"whatsapp"}, ConversionValue: 50,
	}))

	b.Click(tracking.EventWhatsAppClick, "WhatsApp", 10*time.Second)
	testsupport.AppendEvents(t, db, b.Last())
	_, err = fx.processor.ProcessSite(ctx, fx.siteID)
	require.NoError(t, err)

	list, err := fx.store.List(ctx, fx.siteID, timeframe.Range{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "WhatsApp", list[0].GoalName)
	assert.Equal(t, 50.0, list[0].ConversionValue)
	assert.Equal(t, goals.FallbackGoalName, list[1].GoalName, "earlier fallback conversion is kept")
}

func TestProcessor_VisitStateSpansBatches(t *testing.T) {
	fx := newProcessorFixture(t, 2)
	db := testsupport.SetupTestDB(t)
	ctx := context.Background()

	require.NoError(t, fx.goals.Create(ctx, &goals.ConversionGoal{
		SiteID: fx.siteID, GoalName: "Deep read", GoalType: goals.GoalScrollDepth, IsActive: true,
		MinScrollDepth: tracking.FloatPtr(50),
	}))

	b := testsupport.NewSession(fx.siteID, "s1", "v1", start).
		View("/blog", 0).
		Scroll(60, 10*time.Second).
		Scroll(10, 20*time.Second).
		Scroll(80, 30*time.Second)
	testsupport.AppendEvents(t, db, b.Events()...)

	res, err := fx.processor.Drain(ctx, fx.siteID)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Scanned)
	assert.Equal(t, int64(1), res.Recorded, "the second crossing lands in a later batch but the visit already fired")
}

func TestProcessor_RecordsBotSessions(t *testing.T) {
	fx := newProcessorFixture(t, 100)
	db := testsupport.SetupTestDB(t)
	ctx := context.Background()

	bot := testsupport.NewSession(fx.siteID, "bot", "crawler", start).
		WithBot("Googlebot").
		View("/contact", 0).
		Click(tracking.EventWhatsAppClick, "WhatsApp", time.Second)
	testsupport.AppendEvents(t, db, bot.Events()...)

	res, err := fx.processor.ProcessSite(ctx, fx.siteID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Recorded, "bots are excluded at read time, not when recording")

	list, err := fx.store.List(ctx, fx.siteID, timeframe.Range{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "bot", list[0].SessionID)
}

func TestProcessor_Reprocess(t *testing.T) {
	fx := newProcessorFixture(t, 100)
	db := testsupport.SetupTestDB(t)
	ctx := context.Background()

	b := testsupport.NewSession(fx.siteID, "s1", "v1", start).
		View("/", 0).
		Click(tracking.EventFormSubmit, "Enviar", time.Minute)
	testsupport.AppendEvents(t, db, b.Events()...)

	rng := timeframe.Range{From: start.Add(-time.Hour), To: start.Add(time.Hour)}
	res, err := fx.processor.Reprocess(ctx, fx.siteID, rng)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Recorded)

	res, err = fx.processor.Reprocess(ctx, fx.siteID, rng)
	require.NoError(t, err)
	assert.Zero(t, res.Recorded, "reprocessing is idempotent")
}
