package triage

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/civicdesk/triage-service/internal/domain"
)

// CountCache holds per-status report counts between full recomputations.
type CountCache interface {
	// Counts returns the cached counts. ok is false when the cache has not been populated.
	Counts(ctx context.Context) (counts map[domain.ReportStatus]int, ok bool, err error)
	// Shift moves one report from one bucket to another. It is a no-op on an empty cache.
	Shift(ctx context.Context, from, to domain.ReportStatus) error
	// Reset replaces the cached counts.
	Reset(ctx context.Context, counts map[domain.ReportStatus]int) error
}

// MemoryCountCache is a process-local CountCache.
type MemoryCountCache struct {
	mu     sync.RWMutex
	counts map[domain.ReportStatus]int
}

// NewMemoryCountCache returns an empty cache.
func NewMemoryCountCache() *MemoryCountCache {
	return &MemoryCountCache{}
}

func (m *MemoryCountCache) Counts(_ context.Context) (map[domain.ReportStatus]int, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.counts == nil {
		return nil, false, nil
	}
	return copyCounts(m.counts), true, nil
}

func (m *MemoryCountCache) Shift(_ context.Context, from, to domain.ReportStatus) error {
	if from == to {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		return nil
	}
	if m.counts[from] > 0 {
		m.counts[from]--
	}
	m.counts[to]++
	return nil
}

func (m *MemoryCountCache) Reset(_ context.Context, counts map[domain.ReportStatus]int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts = zeroFilled(counts)
	return nil
}

// RedisCountCache stores counts in a Redis hash keyed by status.
type RedisCountCache struct {
	client redis.UniversalClient
	key    string
}

// NewRedisCountCache builds a cache on the given hash key.
func NewRedisCountCache(client redis.UniversalClient, key string) *RedisCountCache {
	return &RedisCountCache{client: client, key: key}
}

func (r *RedisCountCache) Counts(ctx context.Context) (map[domain.ReportStatus]int, bool, error) {
	raw, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, false, err
	}
	if len(raw) == 0 {
		return nil, false, nil
	}
	counts := make(map[domain.ReportStatus]int, len(domain.AllStatuses))
	for field, value := range raw {
		status, err := domain.ParseStatus(field)
		if err != nil {
			continue
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, false, err
		}
		counts[status] = n
	}
	return zeroFilled(counts), true, nil
}

// Shift applies both increments in one MULTI/EXEC, guarded by WATCH so a concurrent
// Reset or expiry cannot leave a half-populated hash. Like the memory cache, the source
// bucket never drops below zero.
func (r *RedisCountCache) Shift(ctx context.Context, from, to domain.ReportStatus) error {
	if from == to {
		return nil
	}
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, r.key).Result()
		if err != nil {
			return err
		}
		if exists == 0 {
			return nil
		}
		current, err := tx.HGet(ctx, r.key, string(from)).Int()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if current > 0 {
				pipe.HIncrBy(ctx, r.key, string(from), -1)
			}
			pipe.HIncrBy(ctx, r.key, string(to), 1)
			return nil
		})
		return err
	}, r.key)
	if errors.Is(err, redis.TxFailedErr) {
		// A concurrent writer touched the hash; drop it so the next read repopulates.
		return r.client.Del(ctx, r.key).Err()
	}
	return err
}

func (r *RedisCountCache) Reset(ctx context.Context, counts map[domain.ReportStatus]int) error {
	values := make(map[string]any, len(domain.AllStatuses))
	for status, n := range zeroFilled(counts) {
		values[string(status)] = n
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.key)
		pipe.HSet(ctx, r.key, values)
		return nil
	})
	return err
}

func zeroFilled(counts map[domain.ReportStatus]int) map[domain.ReportStatus]int {
	out := make(map[domain.ReportStatus]int, len(domain.AllStatuses))
	for _, status := range domain.AllStatuses {
		out[status] = counts[status]
	}
	return out
}

func copyCounts(counts map[domain.ReportStatus]int) map[domain.ReportStatus]int {
	out := make(map[domain.ReportStatus]int, len(counts))
	for k, v := range counts {
		out[k] = v
	}
	return out
}
