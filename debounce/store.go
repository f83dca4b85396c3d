package debounce

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/s0up4200/reqflow/cache"
)

// Store records dispatch times for repeat suppression
type Store interface {
	// Acquire records a dispatch under key unless one was recorded less than
	// window ago. It reports whether the call may proceed. A refused call
	// does not refresh the recorded time.
	Acquire(ctx context.Context, key string, window time.Duration) (bool, error)
}

// Memory store defaults
const (
	DefaultMaxEntries = 4096
	DefaultEntryTTL   = 10 * time.Minute
)

// MemoryOption configures a MemoryStore
type MemoryOption func(*memoryOptions)

type memoryOptions struct {
	maxEntries int
	ttl        time.Duration
	now        func() time.Time
}

// WithMaxEntries caps the number of tracked keys. Zero or less keeps every
// key for the life of the process.
func WithMaxEntries(n int) MemoryOption {
	return func(o *memoryOptions) {
		o.maxEntries = n
	}
}

// WithEntryTTL bounds how long an idle key is tracked. It must exceed the
// largest repeat window in use. Zero or less disables expiry.
func WithEntryTTL(ttl time.Duration) MemoryOption {
	return func(o *memoryOptions) {
		o.ttl = ttl
	}
}

// WithClock replaces the time source
func WithClock(now func() time.Time) MemoryOption {
	return func(o *memoryOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// MemoryStore is an in-process Store backed by a bounded LRU
type MemoryStore struct {
	mu   sync.Mutex
	last *cache.LRU[string, time.Time]
	now  func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a MemoryStore
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	o := memoryOptions{
		maxEntries: DefaultMaxEntries,
		ttl:        DefaultEntryTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &MemoryStore{
		last: cache.New[string, time.Time](o.maxEntries, o.ttl, cache.WithClock(o.now)),
		now:  o.now,
	}
}

// Acquire implements Store
func (s *MemoryStore) Acquire(_ context.Context, key string, window time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if last, ok := s.last.Get(key); ok && now.Sub(last) < window {
		return false, nil
	}
	s.last.Put(key, now)
	return true, nil
}

// Len returns the number of tracked keys
func (s *MemoryStore) Len() int {
	return s.last.Size()
}

// RedisStore shares repeat suppression across processes. Each dispatch is a
// SET NX PX, so the key expires on its own once the window passes.
type RedisStore struct {
	client redis.Cmdable
	prefix string
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a RedisStore. Keys are namespaced under prefix.
func NewRedisStore(client redis.Cmdable, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "reqflow:debounce:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

// Acquire implements Store
func (s *RedisStore) Acquire(ctx context.Context, key string, window time.Duration) (bool, error) {
	return s.client.SetNX(ctx, s.prefix+key, time.Now().UnixMilli(), window).Result()
}
