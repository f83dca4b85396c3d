package middleware

import (
	"sync"

	"github.com/s0up4200/reqflow/transport"
)

type entry[F any] struct {
	id uint64
	fn F
}

// Registry holds mutable middleware stacks. Registration returns a remove
// function; calling it more than once is a no-op.
type Registry struct {
	mu     sync.RWMutex
	seq    uint64
	before []entry[Func[*transport.Request]]
	result []entry[Func[any]]
	errs   []entry[ErrorFunc]
}

// NewRegistry creates a registry seeded with the given sets
func NewRegistry(initial ...Set) *Registry {
	r := &Registry{}
	for _, s := range initial {
		for _, fn := range s.Before {
			r.Before(fn)
		}
		for _, fn := range s.Result {
			r.Result(fn)
		}
		for _, fn := range s.Error {
			r.Error(fn)
		}
	}
	return r
}

// Before registers a pre-flight middleware
func (r *Registry) Before(fn Func[*transport.Request]) (remove func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.next()
	r.before = append(r.before, entry[Func[*transport.Request]]{id: id, fn: fn})
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.before = without(r.before, id)
	}
}

// Result registers a result middleware
func (r *Registry) Result(fn Func[any]) (remove func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.next()
	r.result = append(r.result, entry[Func[any]]{id: id, fn: fn})
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.result = without(r.result, id)
	}
}

// Error registers an error middleware
func (r *Registry) Error(fn ErrorFunc) (remove func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.next()
	r.errs = append(r.errs, entry[ErrorFunc]{id: id, fn: fn})
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.errs = without(r.errs, id)
	}
}

// Snapshot copies the current stacks. A nil registry yields an empty set.
func (r *Registry) Snapshot() Set {
	if r == nil {
		return Set{}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Set{
		Before: funcs(r.before),
		Result: funcs(r.result),
		Error:  funcs(r.errs),
	}
}

// Len returns the number of registered entries across all stacks
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.before) + len(r.result) + len(r.errs)
}

func (r *Registry) next() uint64 {
	r.seq++
	return r.seq
}

func without[F any](list []entry[F], id uint64) []entry[F] {
	for i, e := range list {
		if e.id == id {
			out := make([]entry[F], 0, len(list)-1)
			out = append(out, list[:i]...)
			return append(out, list[i+1:]...)
		}
	}
	return list
}

func funcs[F any](list []entry[F]) []F {
	if len(list) == 0 {
		return nil
	}
	out := make([]F, len(list))
	for i, e := range list {
		out[i] = e.fn
	}
	return out
}
