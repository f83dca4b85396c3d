package reqconfig

import "context"

// Call describes the request a resolver is computing a value for
type Call struct {
	URL    string
	Method string
	Data   map[string]any
	Header map[string]string
}

// Resolver produces a configuration value for a call
type Resolver[T any] interface {
	Resolve(ctx context.Context, call *Call) (T, error)
}

// Static is a literal configuration value
type Static[T any] struct {
	Value T
}

// Resolve implements Resolver
func (s Static[T]) Resolve(context.Context, *Call) (T, error) {
	return s.Value, nil
}

// Func is a configuration value computed per call
type Func[T any] func(ctx context.Context, call *Call) (T, error)

// Resolve implements Resolver
func (f Func[T]) Resolve(ctx context.Context, call *Call) (T, error) {
	return f(ctx, call)
}

var (
	_ Resolver[string] = Static[string]{}
	_ Resolver[string] = Func[string](nil)
)

// Literal wraps v as a static resolver
func Literal[T any](v T) Resolver[T] {
	return Static[T]{Value: v}
}

// Computed wraps fn as a per-call resolver
func Computed[T any](fn func(ctx context.Context, call *Call) (T, error)) Resolver[T] {
	return Func[T](fn)
}

// Resolve evaluates r, returning the zero value for a nil resolver
func Resolve[T any](ctx context.Context, r Resolver[T], call *Call) (T, error) {
	if r == nil {
		var zero T
		return zero, nil
	}
	return r.Resolve(ctx, call)
}

// Ptr returns a pointer to v, for filling Partial fields
func Ptr[T any](v T) *T {
	return &v
}
