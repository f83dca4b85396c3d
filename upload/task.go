package upload

import (
	"context"
	"slices"
	"sync"

	"github.com/bassosimone/runtimex"
	"github.com/google/uuid"
)

// Task is a running batch upload. It resolves to one result per file, in
// selection order, and settles exactly once.
type Task struct {
	id   string
	done chan struct{}

	mu         sync.Mutex
	started    bool
	onStart    []func()
	onProgress []func(float64)
	aborted    bool
	cancel     context.CancelFunc
	settled    bool
	results    []any
	err        error
}

func newTask() *Task {
	return &Task{
		id:   runtimex.PanicOnError1(uuid.NewV7()).String(),
		done: make(chan struct{}),
	}
}

// ID returns the task's UUIDv7
func (t *Task) ID() string {
	return t.id
}

// Done is closed once the task settles
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task settles or ctx is done
func (t *Task) Wait(ctx context.Context) ([]any, error) {
	select {
	case <-t.done:
		return t.results, t.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// OnStart registers fn to run once, right before transfers are issued.
// Registered after that point, fn runs immediately.
func (t *Task) OnStart(fn func()) *Task {
	t.mu.Lock()
	if !t.started {
		t.onStart = append(t.onStart, fn)
		t.mu.Unlock()
		return t
	}
	t.mu.Unlock()

	fn()
	return t
}

// OnProgress registers fn to receive aggregate progress in [0, 1]
func (t *Task) OnProgress(fn func(float64)) *Task {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onProgress = append(t.onProgress, fn)
	return t
}

// Abort cancels selection and every transfer. It is a no-op once the task
// has settled and safe to call more than once.
func (t *Task) Abort() {
	t.mu.Lock()
	if t.settled || t.aborted {
		t.mu.Unlock()
		return
	}
	t.aborted = true
	cancel := t.cancel
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// bind records the batch cancel func and reports false if already aborted
func (t *Task) bind(cancel context.CancelFunc) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.aborted {
		return false
	}
	t.cancel = cancel
	return true
}

func (t *Task) start() {
	t.mu.Lock()
	t.started = true
	fns := t.onStart
	t.onStart = nil
	t.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

func (t *Task) progress(v float64) {
	t.mu.Lock()
	fns := slices.Clone(t.onProgress)
	t.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

func (t *Task) settle(results []any, err error) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.settled {
		return false
	}
	t.settled = true
	t.results = results
	t.err = err
	t.cancel = nil
	close(t.done)
	return true
}

// tracker aggregates per-file progress into a single fraction and
// coalesces notifications to steps of at least 0.1
// progressStep is the smallest advance reported; the epsilon absorbs float
// error so exact 10% steps are not skipped
const progressStep = 0.1 - 1e-9

type tracker struct {
	mu        sync.Mutex
	fractions []float64
	last      float64
	notify    func(float64)
}

func newTracker(n int, notify func(float64)) *tracker {
	return &tracker{fractions: make([]float64, n), notify: notify}
}

// update records sent/total for file i. Progress never moves backwards.
func (p *tracker) update(i int, sent, total int64) {
	frac := 1.0
	if total > 0 {
		frac = float64(sent) / float64(total)
	}
	p.set(i, frac)
}

func (p *tracker) set(i int, frac float64) {
	if frac > 1 {
		frac = 1
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if frac <= p.fractions[i] {
		return
	}
	p.fractions[i] = frac

	var sum float64
	for _, f := range p.fractions {
		sum += f
	}
	agg := sum / float64(len(p.fractions))
	if agg-p.last >= progressStep {
		p.last = agg
		p.notify(agg)
	}
}

// finish reports completion unless it was already reported
func (p *tracker) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last < 1 {
		p.last = 1
		p.notify(1)
	}
}
