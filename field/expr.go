package field

import (
	"fmt"
	"maps"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/s0up4200/reqflow/cache"
)

var defaultCompiler = NewCompiler(WithCache(256))

// CompilerOption configures an expression compiler
type CompilerOption func(*Compiler)

// WithCache enables program caching with the specified size
func WithCache(size int) CompilerOption {
	return func(c *Compiler) {
		if size > 0 {
			c.cache = cache.New[string, *vm.Program](size, 0)
		}
	}
}

// WithFunctions adds helper functions visible to expressions
func WithFunctions(funcs map[string]any) CompilerOption {
	return func(c *Compiler) {
		maps.Copy(c.helpers, funcs)
	}
}

// Compiler compiles expr-lang expressions into descriptors
type Compiler struct {
	helpers map[string]any
	cache   *cache.LRU[string, *vm.Program]
}

// NewCompiler creates a new expression compiler
func NewCompiler(opts ...CompilerOption) *Compiler {
	c := &Compiler{
		helpers: map[string]any{
			"has": func(m map[string]any, key string) bool {
				_, ok := m[key]
				return ok
			},
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Expr compiles source into a descriptor
func (c *Compiler) Expr(source string) (Descriptor, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return Descriptor{}, &CompilationError{Source: source, Kind: KindExpr, Err: fmt.Errorf("empty expression")}
	}

	if c.cache != nil {
		if program, ok := c.cache.Get(source); ok {
			return Descriptor{kind: KindExpr, source: source, program: program, helpers: c.helpers}, nil
		}
	}

	program, err := expr.Compile(source,
		expr.Env(c.env(nil, nil)),
		expr.AllowUndefinedVariables(),
	)
	if err != nil {
		return Descriptor{}, &CompilationError{Source: source, Kind: KindExpr, Err: err}
	}

	if c.cache != nil {
		c.cache.Put(source, program)
	}

	return Descriptor{kind: KindExpr, source: source, program: program, helpers: c.helpers}, nil
}

// Size returns the number of cached programs
func (c *Compiler) Size() int {
	if c.cache != nil {
		return c.cache.Size()
	}
	return 0
}

func (c *Compiler) env(value any, args []any) map[string]any {
	return newEnv(c.helpers, value, args)
}

func newEnv(helpers map[string]any, value any, args []any) map[string]any {
	env := make(map[string]any, len(helpers)+2)
	maps.Copy(env, helpers)
	env["res"] = Normalize(value)
	normArgs := make([]any, len(args))
	for i, a := range args {
		normArgs[i] = Normalize(a)
	}
	env["args"] = normArgs
	return env
}

func (d Descriptor) runExpr(value any, args []any) (any, error) {
	out, err := expr.Run(d.program, newEnv(d.helpers, value, args))
	if err != nil {
		return nil, &EvaluationError{Source: d.source, Kind: KindExpr, Err: err}
	}
	return out, nil
}
