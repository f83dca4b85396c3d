// Package filter compiles boolean expr-lang expressions that select items
// from decoded response lists.
package filter

import (
	"errors"
	"maps"
	"strings"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/rs/zerolog"

	"github.com/s0up4200/reqflow/cache"
)

// dateLayouts are tried in order when a helper receives a string
var dateLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

// CompilerOption configures a Compiler
type CompilerOption func(*Compiler)

// WithCache enables filter caching with the specified size
func WithCache(size int) CompilerOption {
	return func(c *Compiler) {
		if size > 0 {
			c.cache = cache.New[string, *vm.Program](size, 0)
		}
	}
}

// WithFunctions adds custom helper functions
func WithFunctions(funcs map[string]any) CompilerOption {
	return func(c *Compiler) {
		maps.Copy(c.custom, funcs)
	}
}

// WithClock sets the time source of the date helpers
func WithClock(now func() time.Time) CompilerOption {
	return func(c *Compiler) {
		c.now = now
	}
}

// Compiler compiles item filters
type Compiler struct {
	helpers map[string]any
	custom  map[string]any
	now     func() time.Time
	cache   *cache.LRU[string, *vm.Program]
}

// NewCompiler creates a filter compiler
func NewCompiler(opts ...CompilerOption) *Compiler {
	c := &Compiler{
		helpers: make(map[string]any, 16),
		custom:  make(map[string]any),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	addHelperFunctions(c.helpers, c.now)
	maps.Copy(c.helpers, c.custom)
	return c
}

var defaultCompiler = NewCompiler(WithCache(128))

// Compile compiles expression with the default compiler
func Compile(expression string) (*Filter, error) {
	return defaultCompiler.Compile(expression)
}

// Compile compiles an expression into a filter
func (c *Compiler) Compile(expression string) (*Filter, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return nil, &CompilationError{
			Expression: expression,
			Reason:     "empty expression",
		}
	}

	if c.cache != nil {
		if program, ok := c.cache.Get(expression); ok {
			return &Filter{expression: expression, program: program, helpers: c.helpers}, nil
		}
	}

	// Compile with static environment for validation
	program, err := expr.Compile(expression,
		expr.Env(c.helpers),
		expr.AllowUndefinedVariables(),
		expr.AsBool(),
	)
	if err != nil {
		return nil, &CompilationError{
			Expression: expression,
			Reason:     "failed to compile expression",
			Err:        err,
		}
	}

	if c.cache != nil {
		c.cache.Put(expression, program)
	}

	return &Filter{expression: expression, program: program, helpers: c.helpers}, nil
}

// Size returns the number of cached filters
func (c *Compiler) Size() int {
	if c.cache != nil {
		return c.cache.Size()
	}
	return 0
}

// Filter is a compiled boolean expression over list items. Object items
// expose their keys as variables; every item is also available as item.
type Filter struct {
	expression string
	program    *vm.Program
	helpers    map[string]any
}

// Expression returns the original expression
func (f *Filter) Expression() string {
	return f.expression
}

// Match evaluates the filter against item
func (f *Filter) Match(item any) (bool, error) {
	out, err := expr.Run(f.program, f.env(item))
	if err != nil {
		return false, &EvaluationError{Expression: f.expression, Index: -1, Reason: err.Error(), Err: err}
	}
	matched, ok := out.(bool)
	if !ok {
		return false, &EvaluationError{Expression: f.expression, Index: -1, Reason: "result is not a boolean"}
	}
	return matched, nil
}

// Apply returns the items that match, in order. The first evaluation error
// aborts.
func (f *Filter) Apply(items []any) ([]any, error) {
	out := make([]any, 0, len(items))
	for i, item := range items {
		ok, err := f.Match(item)
		if err != nil {
			var evalErr *EvaluationError
			if errors.As(err, &evalErr) {
				evalErr.Index = i
			}
			return nil, err
		}
		if ok {
			out = append(out, item)
		}
	}
	return out, nil
}

// Transform adapts the filter to a list transform. Items that fail to
// evaluate are dropped and logged.
func (f *Filter) Transform(logger zerolog.Logger) func([]any) []any {
	return func(items []any) []any {
		out := make([]any, 0, len(items))
		for i, item := range items {
			ok, err := f.Match(item)
			if err != nil {
				logger.Debug().Err(err).Int("index", i).Msg("Skipping item")
				continue
			}
			if ok {
				out = append(out, item)
			}
		}
		return out
	}
}

// env creates the runtime environment for one item
func (f *Filter) env(item any) map[string]any {
	fields, _ := item.(map[string]any)

	env := make(map[string]any, len(fields)+len(f.helpers)+2)
	maps.Copy(env, fields)
	maps.Copy(env, f.helpers)
	env["item"] = item
	env["has"] = func(key string) bool {
		_, ok := fields[key]
		return ok
	}
	return env
}

// addHelperFunctions adds the static helpers to env
func addHelperFunctions(env map[string]any, now func() time.Time) {
	// Date helpers
	env["daysSince"] = func(v any) int {
		t, ok := toTime(v)
		if !ok {
			return 0
		}
		return int(now().Sub(t).Hours() / 24)
	}
	env["daysAgo"] = func(days int) time.Time {
		return now().AddDate(0, 0, -days)
	}
	env["monthsAgo"] = func(months int) time.Time {
		return now().AddDate(0, -months, 0)
	}
	env["parseDate"] = func(v any) time.Time {
		t, _ := toTime(v)
		return t
	}
	// Case-insensitive string helpers; the contains, startsWith and
	// endsWith operators are case-sensitive
	env["icontains"] = func(str, substr string) bool {
		return strings.Contains(strings.ToLower(str), strings.ToLower(substr))
	}
	env["istartsWith"] = func(str, prefix string) bool {
		return strings.HasPrefix(strings.ToLower(str), strings.ToLower(prefix))
	}
	env["iendsWith"] = func(str, suffix string) bool {
		return strings.HasSuffix(strings.ToLower(str), strings.ToLower(suffix))
	}
	// Compile-time placeholder; Filter.env binds it per item
	env["has"] = func(string) bool { return false }
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		for _, layout := range dateLayouts {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, true
			}
		}
	case float64:
		// unix seconds
		return time.Unix(int64(t), 0), true
	}
	return time.Time{}, false
}
