package rediscache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optimode/mailverify/internal/rediscache"
)

type sample struct {
	Score int    `json:"score"`
	Name  string `json:"name"`
}

func newTestCache(t *testing.T) *rediscache.Cache[sample] {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return rediscache.New[sample](client, "mailverify:test:")
}

func TestCache_SetGet(t *testing.T) {
	c := newTestCache(t)

	c.Set("a", sample{Score: 100, Name: "ok"}, time.Minute)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 100, v.Score)
	assert.Equal(t, "ok", v.Name)
}

func TestCache_MissReturnsFalse(t *testing.T) {
	c := newTestCache(t)
	_, ok := c.Get("missing")
	assert.False(t, ok)
}

func TestCache_Delete(t *testing.T) {
	c := newTestCache(t)
	c.Set("a", sample{Score: 1}, time.Minute)
	c.Delete("a")
	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestCache_Flush(t *testing.T) {
	c := newTestCache(t)
	c.Set("a", sample{Score: 1}, time.Minute)
	c.Set("b", sample{Score: 2}, time.Minute)
	c.Flush()
	assert.Equal(t, 0, c.Size())
}

func TestCache_StatsEvictionsAlwaysUnavailable(t *testing.T) {
	c := newTestCache(t)
	c.Set("a", sample{Score: 1}, time.Minute)
	_, _ = c.Get("a")

	stats := c.Stats()
	assert.Equal(t, int64(-1), stats.Evictions)
	assert.Equal(t, int64(1), stats.Hits)
}

func TestCache_PingUnavailableAfterClose(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := rediscache.New[sample](client, "mailverify:test:")

	require.NoError(t, c.Ping(context.Background()))
	mr.Close()
	assert.ErrorIs(t, c.Ping(context.Background()), rediscache.ErrUnavailable)
}
