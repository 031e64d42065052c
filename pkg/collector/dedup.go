package collector

import (
	"container/list"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultDedupTTL matches the sender-side cache retention, after which no replay can arrive.
const DefaultDedupTTL = 30 * 24 * time.Hour

// Deduplicator remembers receipt keys.
type Deduplicator interface {
	// MarkSeen records key and reports whether it had already been recorded.
	MarkSeen(ctx context.Context, key string) (seen bool, err error)
	// Forget drops key so a later delivery of the same receipt is accepted again.
	Forget(ctx context.Context, key string) error
}

type memoryEntry struct {
	key     string
	expires time.Time
}

// MemoryDeduplicator keeps keys in a bounded in-process LRU with a TTL.
// Keys are lost on restart; use RedisDeduplicator when that matters.
type MemoryDeduplicator struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	now      func() time.Time
	items    map[string]*list.Element
	order    *list.List // front is most recent
}

// NewMemoryDeduplicator creates an in-memory deduplicator. Non-positive capacity defaults to
// 100000 keys, non-positive ttl to DefaultDedupTTL.
func NewMemoryDeduplicator(capacity int, ttl time.Duration) *MemoryDeduplicator {
	if capacity <= 0 {
		capacity = 100_000
	}
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}
	return &MemoryDeduplicator{
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
		items:    make(map[string]*list.Element),
		order:    list.New(),
	}
}

// WithClock replaces the time source. Intended for tests.
func (d *MemoryDeduplicator) WithClock(now func() time.Time) *MemoryDeduplicator {
	d.mu.Lock()
	defer d.mu.Unlock()
	if now != nil {
		d.now = now
	}
	return d
}

func (d *MemoryDeduplicator) MarkSeen(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if elem, ok := d.items[key]; ok {
		entry := elem.Value.(*memoryEntry)
		if now.Before(entry.expires) {
			return true, nil
		}
		d.order.Remove(elem)
		delete(d.items, key)
	}

	d.items[key] = d.order.PushFront(&memoryEntry{key: key, expires: now.Add(d.ttl)})
	for d.order.Len() > d.capacity {
		oldest := d.order.Back()
		d.order.Remove(oldest)
		delete(d.items, oldest.Value.(*memoryEntry).key)
	}
	return false, nil
}

func (d *MemoryDeduplicator) Forget(_ context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if elem, ok := d.items[key]; ok {
		d.order.Remove(elem)
		delete(d.items, key)
	}
	return nil
}

// Len returns the number of remembered keys, including expired ones not yet dropped.
func (d *MemoryDeduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.order.Len()
}

// RedisDeduplicator records keys with SET NX and a TTL, so every collector instance sharing
// the Redis database sees the same history.
type RedisDeduplicator struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisDeduplicator creates a Redis-backed deduplicator. Keys are stored as prefix+key.
func NewRedisDeduplicator(client redis.UniversalClient, prefix string, ttl time.Duration) (*RedisDeduplicator, error) {
	if client == nil {
		return nil, errors.Join(ErrInvalidConfig, errors.New("redis client is required"))
	}
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}
	return &RedisDeduplicator{client: client, prefix: prefix, ttl: ttl}, nil
}

func (d *RedisDeduplicator) MarkSeen(ctx context.Context, key string) (bool, error) {
	created, err := d.client.SetNX(ctx, d.prefix+key, 1, d.ttl).Result()
	if err != nil {
		return false, errors.Join(ErrDedupUnavailable, err)
	}
	return !created, nil
}

func (d *RedisDeduplicator) Forget(ctx context.Context, key string) error {
	if err := d.client.Del(ctx, d.prefix+key).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return errors.Join(ErrDedupUnavailable, err)
	}
	return nil
}

var (
	_ Deduplicator = (*MemoryDeduplicator)(nil)
	_ Deduplicator = (*RedisDeduplicator)(nil)
)
