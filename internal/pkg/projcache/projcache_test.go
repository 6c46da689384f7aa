package projcache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rankrent/internal/pkg/projcache"
	"rankrent/internal/timeframe"
)

type projection struct {
	Sessions []string `json:"sessions"`
	Total    int      `json:"total"`
}

func newClient(t *testing.T) (*projcache.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return projcache.New(rdb, time.Minute, nil), mr
}

func TestClient_RoundTrip(t *testing.T) {
	c, mr := newClient(t)
	ctx := context.Background()
	rng := timeframe.Range{
		From: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC),
	}
	key := projcache.Key{Kind: "sessions", SiteID: 7, Range: rng, Fingerprint: "12:340"}

	var got projection
	assert.False(t, c.Load(ctx, key, &got), "empty cache misses")

	c.Store(ctx, key, projection{Sessions: []string{"a", "b"}, Total: 2})
	require.True(t, c.Load(ctx, key, &got))
	assert.Equal(t, projection{Sessions: []string{"a", "b"}, Total: 2}, got)
	assert.Equal(t, time.Minute, mr.TTL(key.String()))

	t.Run("a new fingerprint is a different entry", func(t *testing.T) {
		next := key
		next.Fingerprint = "13:341"
		var fresh projection
		assert.False(t, c.Load(ctx, next, &fresh))
	})

	t.Run("corrupt entries miss", func(t *testing.T) {
		require.NoError(t, mr.Set(key.String(), "{not json"))
		var broken projection
		assert.False(t, c.Load(ctx, key, &broken))
	})

	t.Run("backend failure misses", func(t *testing.T) {
		mr.SetError("ERR backend down")
		defer mr.SetError("")
		var down projection
		assert.False(t, c.Load(ctx, key, &down))
	})
}

func TestKey_String(t *testing.T) {
	loc := time.FixedZone("BRT", -3*3600)
	a := projcache.Key{Kind: "sessions", SiteID: 1, Fingerprint: "1:1", Range: timeframe.Range{
		From: time.Date(2026, 3, 1, 0, 0, 0, 0, loc),
		To:   time.Date(2026, 3, 2, 0, 0, 0, 0, loc),
	}}
	b := a
	b.Range = a.Range.UTC()
	assert.Equal(t, a.String(), b.String(), "the same instant keys the same entry")
	assert.Contains(t, a.String(), "rankrent:proj:sessions:1:")
}

func TestNoop(t *testing.T) {
	var c projcache.Cache = projcache.Noop{}
	c.Store(context.Background(), projcache.Key{}, 1)
	var v int
	assert.False(t, c.Load(context.Background(), projcache.Key{}, &v))
}
