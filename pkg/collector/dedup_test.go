package collector_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/receiptkit/pkg/collector"
)

func TestMemoryDeduplicator_MarkSeen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	d := collector.NewMemoryDeduplicator(10, time.Hour)

	seen, err := d.MarkSeen(ctx, "r-1@1.0.0")
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = d.MarkSeen(ctx, "r-1@1.0.0")
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = d.MarkSeen(ctx, "r-1@2.0.0")
	require.NoError(t, err)
	assert.False(t, seen, "schema version is part of the identity")
}

func TestMemoryDeduplicator_TTL(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	d := collector.NewMemoryDeduplicator(10, time.Minute).WithClock(func() time.Time { return now })

	_, err := d.MarkSeen(ctx, "k")
	require.NoError(t, err)

	now = now.Add(59 * time.Second)
	seen, err := d.MarkSeen(ctx, "k")
	require.NoError(t, err)
	assert.True(t, seen)

	now = now.Add(time.Minute)
	seen, err = d.MarkSeen(ctx, "k")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestMemoryDeduplicator_Capacity(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	d := collector.NewMemoryDeduplicator(2, time.Hour)

	for _, k := range []string{"a", "b", "c"} {
		_, err := d.MarkSeen(ctx, k)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, d.Len())

	seen, err := d.MarkSeen(ctx, "a")
	require.NoError(t, err)
	assert.False(t, seen, "oldest key was evicted")
}

func TestMemoryDeduplicator_Forget(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	d := collector.NewMemoryDeduplicator(0, 0)

	_, err := d.MarkSeen(ctx, "k")
	require.NoError(t, err)
	require.NoError(t, d.Forget(ctx, "k"))
	require.NoError(t, d.Forget(ctx, "missing"))

	seen, err := d.MarkSeen(ctx, "k")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestMemoryDeduplicator_Concurrent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	d := collector.NewMemoryDeduplicator(1000, time.Hour)

	var firsts atomic.Int32
	var wg sync.WaitGroup
	for i := range 64 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seen, err := d.MarkSeen(ctx, fmt.Sprintf("k-%d", i%8))
			assert.NoError(t, err)
			if !seen {
				firsts.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 8, firsts.Load())
}

func TestMemoryDeduplicator_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := collector.NewMemoryDeduplicator(1, time.Hour).MarkSeen(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
}

// fakeRedis implements the SET NX and DEL commands the deduplicator uses. Any other command
// panics on the nil embedded client.
type fakeRedis struct {
	redis.UniversalClient

	mu   sync.Mutex
	keys map[string]time.Duration
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{keys: make(map[string]time.Duration)}
}

func (f *fakeRedis) SetNX(_ context.Context, key string, _ any, expiration time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.keys[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.keys[key] = expiration
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := f.keys[k]; ok {
			delete(f.keys, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (f *fakeRedis) expiry(key string) (time.Duration, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ttl, ok := f.keys[key]
	return ttl, ok
}

func TestRedisDeduplicator_MarkSeenAndForget(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := newFakeRedis()
	d, err := collector.NewRedisDeduplicator(client, "receipts:dedup:", 0)
	require.NoError(t, err)

	seen, err := d.MarkSeen(ctx, "r-1@1.0.0")
	require.NoError(t, err)
	assert.False(t, seen, "first delivery creates the key")

	ttl, ok := client.expiry("receipts:dedup:r-1@1.0.0")
	require.True(t, ok)
	assert.Equal(t, collector.DefaultDedupTTL, ttl)

	seen, err = d.MarkSeen(ctx, "r-1@1.0.0")
	require.NoError(t, err)
	assert.True(t, seen, "existing key is a duplicate")

	require.NoError(t, d.Forget(ctx, "r-1@1.0.0"))
	_, ok = client.expiry("receipts:dedup:r-1@1.0.0")
	assert.False(t, ok)

	seen, err = d.MarkSeen(ctx, "r-1@1.0.0")
	require.NoError(t, err)
	assert.False(t, seen, "forgotten key is accepted again")

	assert.NoError(t, d.Forget(ctx, "missing@1.0.0"))
}

func TestRedisDeduplicator(t *testing.T) {
	t.Parallel()

	_, err := collector.NewRedisDeduplicator(nil, "p:", time.Hour)
	assert.ErrorIs(t, err, collector.ErrInvalidConfig)

	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	d, err := collector.NewRedisDeduplicator(client, "receipts:dedup:", 0)
	require.NoError(t, err)

	_, err = d.MarkSeen(context.Background(), "r-1@1.0.0")
	assert.ErrorIs(t, err, collector.ErrDedupUnavailable)

	err = d.Forget(context.Background(), "r-1@1.0.0")
	assert.ErrorIs(t, err, collector.ErrDedupUnavailable)
}
