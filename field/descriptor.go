package field

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/expr-lang/expr/vm"
	"github.com/itchyny/gojq"
)

// Kind tags the variant held by a Descriptor
type Kind int

const (
	// KindPath walks a value by key or index
	KindPath Kind = iota
	// KindFunc delegates to a callback
	KindFunc
	// KindExpr evaluates a compiled expr-lang expression
	KindExpr
	// KindQuery evaluates a compiled jq query
	KindQuery
)

// String returns the string representation of a Kind
func (k Kind) String() string {
	switch k {
	case KindPath:
		return "path"
	case KindFunc:
		return "func"
	case KindExpr:
		return "expr"
	case KindQuery:
		return "jq"
	default:
		return "unknown"
	}
}

// ResolveFunc computes a field from a value. args carries whatever context
// the caller passes along (the transport response, the call options).
type ResolveFunc func(ctx context.Context, value any, args ...any) (any, error)

// Descriptor is a value-extraction rule. The zero Descriptor is an empty
// path and resolves to the value itself.
type Descriptor struct {
	kind    Kind
	path    []string
	fn      ResolveFunc
	source  string
	program *vm.Program
	helpers map[string]any
	query   *gojq.Code
}

// Key returns a descriptor for a single top-level key
func Key(name string) Descriptor {
	return Path(name)
}

// Path returns a descriptor for a nested path. Numeric elements index slices.
func Path(keys ...string) Descriptor {
	return Descriptor{kind: KindPath, path: append([]string(nil), keys...)}
}

// Func returns a descriptor backed by a callback
func Func(fn ResolveFunc) Descriptor {
	return Descriptor{kind: KindFunc, fn: fn}
}

// Expr compiles an expr-lang expression into a descriptor. The expression
// sees the value as `res` and extra arguments as `args`.
func Expr(source string) (Descriptor, error) {
	return defaultCompiler.Expr(source)
}

// Query compiles a jq query into a descriptor
func Query(source string) (Descriptor, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return Descriptor{}, &CompilationError{Source: source, Kind: KindQuery, Err: fmt.Errorf("empty query")}
	}
	parsed, err := gojq.Parse(source)
	if err != nil {
		return Descriptor{}, &CompilationError{Source: source, Kind: KindQuery, Err: err}
	}
	code, err := gojq.Compile(parsed)
	if err != nil {
		return Descriptor{}, &CompilationError{Source: source, Kind: KindQuery, Err: err}
	}
	return Descriptor{kind: KindQuery, source: source, query: code}, nil
}

// MustExpr is like Expr but panics on compilation errors
func MustExpr(source string) Descriptor {
	d, err := Expr(source)
	if err != nil {
		panic(err)
	}
	return d
}

// MustQuery is like Query but panics on compilation errors
func MustQuery(source string) Descriptor {
	d, err := Query(source)
	if err != nil {
		panic(err)
	}
	return d
}

// Kind returns the variant held by the descriptor
func (d Descriptor) Kind() Kind {
	return d.kind
}

// Keys returns a copy of the path for path descriptors
func (d Descriptor) Keys() []string {
	return append([]string(nil), d.path...)
}

// String renders the descriptor for logs and config dumps
func (d Descriptor) String() string {
	switch d.kind {
	case KindPath:
		return strings.Join(d.path, ".")
	case KindFunc:
		return "<func>"
	default:
		return d.kind.String() + ":" + d.source
	}
}

// Resolve extracts a field from value according to the descriptor
func Resolve(ctx context.Context, d Descriptor, value any, args ...any) (any, error) {
	switch d.kind {
	case KindFunc:
		if d.fn == nil {
			return nil, fmt.Errorf("field: nil resolver func")
		}
		return d.fn(ctx, value, args...)
	case KindExpr:
		return d.runExpr(value, args)
	case KindQuery:
		return d.runQuery(ctx, value)
	default:
		return walk(value, d.path)
	}
}

// Parse builds a descriptor from a decoded configuration value:
//
//	"code"                  -> Key("code")
//	["data", 0, "url"]      -> Path("data", "0", "url")
//	{"expr": "res.ok ? 1 : 0"} -> Expr(...)
//	{"jq": ".data.items[0]"}  -> Query(...)
func Parse(v any) (Descriptor, error) {
	switch t := v.(type) {
	case Descriptor:
		return t, nil
	case string:
		return Key(t), nil
	case []string:
		return Path(t...), nil
	case []any:
		keys := make([]string, 0, len(t))
		for _, k := range t {
			switch kt := k.(type) {
			case string:
				keys = append(keys, kt)
			case int:
				keys = append(keys, strconv.Itoa(kt))
			case int64:
				keys = append(keys, strconv.FormatInt(kt, 10))
			case float64:
				keys = append(keys, strconv.FormatFloat(kt, 'f', -1, 64))
			default:
				return Descriptor{}, fmt.Errorf("field: unsupported path element %T", k)
			}
		}
		return Path(keys...), nil
	case map[string]any:
		if src, ok := t["expr"].(string); ok {
			return Expr(src)
		}
		if src, ok := t["jq"].(string); ok {
			return Query(src)
		}
		if p, ok := t["path"]; ok {
			return Parse(p)
		}
		return Descriptor{}, fmt.Errorf("field: descriptor map needs one of expr, jq or path")
	case nil:
		return Descriptor{}, fmt.Errorf("field: empty descriptor")
	default:
		return Descriptor{}, fmt.Errorf("field: unsupported descriptor %T", v)
	}
}
