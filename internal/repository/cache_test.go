package repository

import (
	"context"
	"testing"
	"time"

	"meetslot/internal/availability"
	"meetslot/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	cache := NewResultCache(rdb, time.Minute)
	ctx := context.Background()

	days := []models.DayWindow{{Date: "2024-01-10", Start: "09:00", End: "11:00"}}
	res, err := availability.Compute(days, 30, 60, []models.Response{{
		Identity:     "Anna",
		Availability: models.Availability{"2024-01-10": {"09:00": models.MarkFree, "09:30": models.MarkFree}},
	}})
	require.NoError(t, err)

	got, err := cache.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, cache.Set(ctx, "p1", res))
	assert.True(t, mr.Exists("meetslot:results:p1"))

	got, err = cache.Get(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, res.BestWindows, got.BestWindows)
	assert.Equal(t, res.Heatmap, got.Heatmap)
	assert.Equal(t, 1, got.TotalResponses)

	mr.FastForward(2 * time.Minute)
	got, err = cache.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Nil(t, got, "entry expires after ttl")

	require.NoError(t, cache.Set(ctx, "p1", res))
	require.NoError(t, cache.Invalidate(ctx, "p1"))
	assert.False(t, mr.Exists("meetslot:results:p1"))

	require.NoError(t, mr.Set("meetslot:results:p2", "not json"))
	got, err = cache.Get(ctx, "p2")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestResultCache_Disabled(t *testing.T) {
	ctx := context.Background()
	for _, cache := range []*ResultCache{nil, NewResultCache(nil, time.Minute)} {
		got, err := cache.Get(ctx, "p1")
		assert.NoError(t, err)
		assert.Nil(t, got)
		assert.NoError(t, cache.Set(ctx, "p1", &availability.Result{}))
		assert.NoError(t, cache.Invalidate(ctx, "p1"))
		assert.NoError(t, cache.Ping(ctx))
	}
}
