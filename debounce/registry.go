package debounce

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Default timings
const (
	// DefaultRepeatWindow is the repeat-suppression window for plain calls
	DefaultRepeatWindow = 500 * time.Millisecond
	// DefaultDelay is how long a throttled call waits for a newer one
	DefaultDelay = 200 * time.Millisecond
)

// Option configures a Registry
type Option func(*Registry)

// WithStore sets the repeat-suppression store
func WithStore(s Store) Option {
	return func(r *Registry) {
		if s != nil {
			r.store = s
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// Registry tracks repeat suppression and throttled override slots. It is
// safe for concurrent use.
type Registry struct {
	store  Store
	logger zerolog.Logger

	mu    sync.Mutex
	seq   uint64
	slots map[string]*slot
}

// slot is the single pending or in-flight throttled call for a key
type slot struct {
	id     uint64
	timer  *time.Timer
	cancel func()
}

// NewRegistry creates a Registry. The default store is a MemoryStore.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		logger: zerolog.Nop(),
		slots:  make(map[string]*slot),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.store == nil {
		r.store = NewMemoryStore()
	}
	return r
}

// Allow reports whether a call under key may dispatch. A window of zero or
// less always allows.
func (r *Registry) Allow(ctx context.Context, key string, window time.Duration) (bool, error) {
	if window <= 0 {
		return true, nil
	}
	ok, err := r.store.Acquire(ctx, key, window)
	if err != nil {
		return false, fmt.Errorf("debounce store: %w", err)
	}
	if !ok {
		r.logger.Debug().Str("key", key).Dur("window", window).Msg("Suppressed repeated call")
	}
	return ok, nil
}

// Schedule arms run after delay under key. Any call already pending or in
// flight under the same key is superseded: its cancel func is invoked and,
// if still pending, its run never fires. A delay of zero or less uses
// DefaultDelay.
//
// The returned release must be called once the scheduled call settles; it
// frees the slot unless a newer call has already taken it.
func (r *Registry) Schedule(key string, delay time.Duration, cancel func(), run func()) (release func()) {
	if delay <= 0 {
		delay = DefaultDelay
	}

	r.mu.Lock()
	prev := r.slots[key]
	r.seq++
	s := &slot{id: r.seq, cancel: cancel}
	r.slots[key] = s
	s.timer = time.AfterFunc(delay, run)
	r.mu.Unlock()

	if prev != nil {
		pending := prev.timer.Stop()
		r.logger.Debug().
			Str("key", key).
			Bool("pending", pending).
			Msg("Overriding throttled call")
		if prev.cancel != nil {
			prev.cancel()
		}
	}

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if cur, ok := r.slots[key]; ok && cur.id == s.id {
			delete(r.slots, key)
		}
	}
}

// Pending returns the number of keys holding a throttled call
func (r *Registry) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.slots)
}

// Key identifies the same logical call: url, serialized params and method
func Key(url string, params any, method string) string {
	var b strings.Builder
	b.WriteString(url)
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			b.WriteString(fmt.Sprint(params))
		} else {
			b.Write(data)
		}
	}
	b.WriteString(strings.ToUpper(method))
	return b.String()
}
