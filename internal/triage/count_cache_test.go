package triage

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicdesk/triage-service/internal/domain"
)

func TestRedisCountCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cache := NewRedisCountCache(client, "test:status_counts")
	ctx := context.Background()

	t.Run("EmptyIsMiss", func(t *testing.T) {
		_, ok, err := cache.Counts(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("ShiftOnEmptyIsNoop", func(t *testing.T) {
		require.NoError(t, cache.Shift(ctx, domain.ReportStatusSubmitted, domain.ReportStatusResolved))
		assert.False(t, mr.Exists("test:status_counts"))
	})

	t.Run("ResetAndShift", func(t *testing.T) {
		require.NoError(t, cache.Reset(ctx, map[domain.ReportStatus]int{
			domain.ReportStatusSubmitted: 3,
			domain.ReportStatusResolved:  1,
		}))
		require.NoError(t, cache.Shift(ctx, domain.ReportStatusSubmitted, domain.ReportStatusResolved))

		counts, ok, err := cache.Counts(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, 2, counts[domain.ReportStatusSubmitted])
		assert.Equal(t, 2, counts[domain.ReportStatusResolved])
		assert.Equal(t, 0, counts[domain.ReportStatusDraft])
		assert.Len(t, counts, len(domain.AllStatuses))
		assert.Equal(t, "2", mr.HGet("test:status_counts", "resolved"))
	})

	t.Run("SameBucketIsNoop", func(t *testing.T) {
		require.NoError(t, cache.Shift(ctx, domain.ReportStatusResolved, domain.ReportStatusResolved))
		assert.Equal(t, "2", mr.HGet("test:status_counts", "resolved"))
	})

	t.Run("StaleBucketNeverGoesNegative", func(t *testing.T) {
		for _, cache := range []CountCache{cache, NewMemoryCountCache()} {
			require.NoError(t, cache.Reset(ctx, map[domain.ReportStatus]int{domain.ReportStatusClosed: 1}))
			require.NoError(t, cache.Shift(ctx, domain.ReportStatusDraft, domain.ReportStatusClosed))

			counts, ok, err := cache.Counts(ctx)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, 0, counts[domain.ReportStatusDraft])
			assert.Equal(t, 2, counts[domain.ReportStatusClosed])
		}
	})
}

func TestMemoryCountCache(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCountCache()

	require.NoError(t, cache.Shift(ctx, domain.ReportStatusDraft, domain.ReportStatusSubmitted))
	_, ok, _ := cache.Counts(ctx)
	assert.False(t, ok)

	require.NoError(t, cache.Reset(ctx, map[domain.ReportStatus]int{domain.ReportStatusDraft: 1}))
	require.NoError(t, cache.Shift(ctx, domain.ReportStatusDraft, domain.ReportStatusSubmitted))
	counts, ok, err := cache.Counts(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0, counts[domain.ReportStatusDraft])
	assert.Equal(t, 1, counts[domain.ReportStatusSubmitted])

	counts[domain.ReportStatusSubmitted] = 99
	fresh, _, _ := cache.Counts(ctx)
	assert.Equal(t, 1, fresh[domain.ReportStatusSubmitted])
}
