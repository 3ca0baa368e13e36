package store

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb, slog.New(slog.NewTextHandler(io.Discard, nil))), mr
}

type payload struct {
	ICCID string `json:"iccid"`
	N     int    `json:"n"`
}

func TestJSONRoundTrip(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	ok, err := s.GetJSON(ctx, "missing", &payload{})
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetJSON(ctx, "p", payload{ICCID: "89", N: 3}, time.Minute))
	assert.True(t, mr.Exists("simfleet:p"))

	var got payload
	ok, err = s.GetJSON(ctx, "p", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, payload{ICCID: "89", N: 3}, got)

	mr.FastForward(2 * time.Minute)
	ok, err = s.GetJSON(ctx, "p", &got)
	require.NoError(t, err)
	assert.False(t, ok, "expired")
}

func TestGetJSON_Corrupt(t *testing.T) {
	s, mr := newTestStore(t)
	require.NoError(t, mr.Set("simfleet:bad", "{not json"))
	_, err := s.GetJSON(context.Background(), "bad", &payload{})
	assert.Error(t, err)
}

func TestDelete(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()
	s.SaveStringSafe(ctx, "a", "1", 0)
	s.SaveStringSafe(ctx, "b", "2", 0)
	require.NoError(t, s.Delete(ctx, "a", "b"))
	assert.False(t, mr.Exists("simfleet:a"))
	assert.NoError(t, s.Delete(ctx))
}

func TestStrings(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	s.SaveStringSafe(ctx, "dev:1:iccid", "8944", time.Hour)

	got := s.GetStrings(ctx, []string{"dev:1:iccid", "dev:2:iccid"})
	assert.Equal(t, map[string]string{"dev:1:iccid": "8944"}, got)
}

func TestIncDailyCounter(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()
	day := time.Date(2025, 5, 1, 23, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return day }

	for i := 1; i <= 2; i++ {
		ok, n, err := s.IncDailyCounter(ctx, "siv", 2)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, int64(i), n)
	}
	ok, n, err := s.IncDailyCounter(ctx, "siv", 2)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int64(3), n)

	assert.True(t, mr.TTL("simfleet:daily:siv:20250501") > 0)

	cnt, err := s.DailyCount(ctx, "siv")
	require.NoError(t, err)
	assert.Equal(t, int64(3), cnt)

	// next day starts over
	s.now = func() time.Time { return day.Add(2 * time.Hour) }
	ok, n, err = s.IncDailyCounter(ctx, "siv", 2)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(1), n)

	// no limit
	ok, _, err = s.IncDailyCounter(ctx, "other", 0)
	require.NoError(t, err)
	assert.True(t, ok)
}
