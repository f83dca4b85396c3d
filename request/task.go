package request

import (
	"context"
	"fmt"
	"sync"

	"github.com/bassosimone/runtimex"
	"github.com/go-viper/mapstructure/v2"
	"github.com/google/uuid"

	"github.com/s0up4200/reqflow/field"
)

// Task is a running call. It settles exactly once.
type Task struct {
	id   string
	done chan struct{}

	mu      sync.Mutex
	settled bool
	aborted bool
	cancel  context.CancelFunc
	value   any
	err     error
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

// Wait blocks until the task settles or ctx is done. Giving up on ctx does
// not abort the task.
func (t *Task) Wait(ctx context.Context) (any, error) {
	select {
	case <-t.done:
		return t.value, t.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Decode waits for the task and decodes its value into dst, which must be a
// pointer. Raw JSON values are normalized first; field names match json tags.
func (t *Task) Decode(ctx context.Context, dst any) error {
	value, err := t.Wait(ctx)
	if err != nil {
		return err
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           dst,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(field.Normalize(value)); err != nil {
		return fmt.Errorf("failed to decode result: %w", err)
	}
	return nil
}

// Abort cancels the call. Before dispatch the call is skipped and rejects
// with ErrAborted; after dispatch the transport call is cancelled; after
// settlement it does nothing. It is safe to call more than once.
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

// isAborted reports whether Abort was called
func (t *Task) isAborted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.aborted
}

// bind records the transport cancel func. It reports false when the task
// was aborted or settled before dispatch.
func (t *Task) bind(cancel context.CancelFunc) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.aborted || t.settled {
		return false
	}
	t.cancel = cancel
	return true
}

// supersede claims the task with err and cancels any in-flight call. It
// reports whether this call claimed the task; the caller must then publish.
func (t *Task) supersede(err error) bool {
	t.mu.Lock()
	if t.settled {
		t.mu.Unlock()
		return false
	}
	cancel := t.cancel
	t.claimLocked(nil, err)
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return true
}

// claim records the outcome. Only the first call has an effect, and Wait
// does not see it until publish.
func (t *Task) claim(value any, err error) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.settled {
		return false
	}
	t.claimLocked(value, err)
	return true
}

// publish releases waiters. It must follow a successful claim exactly once.
func (t *Task) publish() {
	close(t.done)
}

// isSettled reports whether the outcome has been claimed
func (t *Task) isSettled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.settled
}

func (t *Task) claimLocked(value any, err error) {
	t.settled = true
	t.value = value
	t.err = err
	t.cancel = nil
}
