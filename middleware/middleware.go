// Package middleware runs ordered transform stacks over requests, results
// and errors.
package middleware

import (
	"context"

	"github.com/s0up4200/reqflow/reqconfig"
	"github.com/s0up4200/reqflow/transport"
)

// Func transforms a value. Returning an error aborts the fold.
type Func[T any] func(ctx context.Context, value T, call *reqconfig.Call) (T, error)

// ErrorFunc intercepts a failure. Returning a nil error recovers the call
// with the returned value; returning an error passes it on.
type ErrorFunc func(ctx context.Context, err error, call *reqconfig.Call) (any, error)

// Set is the three named stacks applied to a call
type Set struct {
	// Before runs over the built request before dispatch
	Before []Func[*transport.Request]
	// Result turns the transport response into the resolved value. When
	// non-empty, declarative decoding is skipped.
	Result []Func[any]
	// Error gets the first chance to recover a failed call
	Error []ErrorFunc
}

// IsZero reports whether every stack is empty
func (s Set) IsZero() bool {
	return len(s.Before) == 0 && len(s.Result) == 0 && len(s.Error) == 0
}

// Compose concatenates sets in order, so entries of earlier sets run first
func Compose(sets ...Set) Set {
	var out Set
	for _, s := range sets {
		out.Before = append(out.Before, s.Before...)
		out.Result = append(out.Result, s.Result...)
		out.Error = append(out.Error, s.Error...)
	}
	return out
}

// Run folds stack left to right starting from initial. An empty stack
// returns initial unchanged; the first error stops the fold.
func Run[T any](ctx context.Context, stack []Func[T], initial T, call *reqconfig.Call) (T, error) {
	value := initial
	for _, fn := range stack {
		if fn == nil {
			continue
		}
		next, err := fn(ctx, value, call)
		if err != nil {
			return value, err
		}
		value = next
	}
	return value, nil
}

// RecoverErr folds err through stack. The first entry that returns a nil
// error recovers the call and ends the fold; otherwise the last error is
// returned.
func RecoverErr(ctx context.Context, stack []ErrorFunc, err error, call *reqconfig.Call) (any, error) {
	for _, fn := range stack {
		if fn == nil {
			continue
		}
		value, next := fn(ctx, err, call)
		if next == nil {
			return value, nil
		}
		err = next
	}
	return nil, err
}
