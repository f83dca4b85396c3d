package filter

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestCompiler(opts ...CompilerOption) *Compiler {
	return NewCompiler(append([]CompilerOption{WithClock(func() time.Time { return fixedNow })}, opts...)...)
}

func TestCompile(t *testing.T) {
	tests := []struct {
		name        string
		expression  string
		wantErr     bool
		errContains string
	}{
		{
			name:       "valid expression",
			expression: `status == "active"`,
		},
		{
			name:        "empty expression",
			expression:  "  ",
			wantErr:     true,
			errContains: "empty expression",
		},
		{
			name:       "invalid syntax",
			expression: `icontains(name, "unclosed`,
			wantErr:    true,
		},
		{
			name:        "not a boolean",
			expression:  `"text"`,
			wantErr:     true,
			errContains: "failed to compile",
		},
		{
			name:       "complex expression",
			expression: `has("tags") and age > 30 and daysSince(created) < 7`,
		},
	}

	c := newTestCompiler()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := c.Compile(tt.expression)
			if tt.wantErr {
				require.Error(t, err)
				var compErr *CompilationError
				assert.ErrorAs(t, err, &compErr)
				if tt.errContains != "" {
					assert.Contains(t, err.Error(), tt.errContains)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expression, f.Expression())
		})
	}
}

func TestMatch(t *testing.T) {
	item := map[string]any{
		"name":    "Ann Example",
		"age":     float64(34),
		"status":  "active",
		"tags":    []any{"admin", "ops"},
		"created": "2026-02-27T08:00:00Z",
		"profile": map[string]any{"city": "Oslo"},
	}

	tests := []struct {
		name       string
		expression string
		expected   bool
	}{
		{name: "equality", expression: `status == "active"`, expected: true},
		{name: "number comparison", expression: `age > 30`, expected: true},
		{name: "membership", expression: `"ops" in tags`, expected: true},
		{name: "nested field", expression: `profile.city == "Oslo"`, expected: true},
		{name: "item variable", expression: `item.name startsWith "Ann"`, expected: true},
		{name: "contains operator", expression: `name contains "Example"`, expected: true},
		{name: "case-insensitive contains", expression: `icontains(name, "EXAMPLE")`, expected: true},
		{name: "starts with helper", expression: `istartsWith(name, "bob")`, expected: false},
		{name: "ends with helper", expression: `iendsWith(name, "EXAMPLE")`, expected: true},
		{name: "has key", expression: `has("tags") and not has("deleted")`, expected: true},
		{name: "days since", expression: `daysSince(created) == 2`, expected: true},
		{name: "date comparison", expression: `parseDate(created) > daysAgo(7)`, expected: true},
		{name: "older than a month", expression: `parseDate(created) < monthsAgo(1)`, expected: false},
		{name: "undefined key", expression: `deleted == nil`, expected: true},
	}

	c := newTestCompiler()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := c.Compile(tt.expression)
			require.NoError(t, err)

			got, err := f.Match(item)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestMatch_Scalar(t *testing.T) {
	f, err := newTestCompiler().Compile(`item > 2`)
	require.NoError(t, err)

	got, err := f.Match(float64(3))
	require.NoError(t, err)
	assert.True(t, got)
}

func TestApply(t *testing.T) {
	items := []any{
		map[string]any{"id": float64(1), "name": "a"},
		map[string]any{"id": float64(2), "name": "b"},
		map[string]any{"id": float64(3), "name": float64(7)},
	}

	c := newTestCompiler()

	f, err := c.Compile(`id >= 2`)
	require.NoError(t, err)
	got, err := f.Apply(items)
	require.NoError(t, err)
	assert.Equal(t, items[1:], got)

	f, err = c.Compile(`icontains(name, "b")`)
	require.NoError(t, err)

	_, err = f.Apply(items)
	require.Error(t, err)
	var evalErr *EvaluationError
	require.ErrorAs(t, err, &evalErr)
	assert.Equal(t, 2, evalErr.Index)
	assert.Contains(t, err.Error(), "on item 2")

	// the transform drops the failing item instead
	got = f.Transform(zerolog.Nop())(items)
	assert.Equal(t, []any{items[1]}, got)
}

func TestCompiler_Cache(t *testing.T) {
	c := newTestCompiler(WithCache(2))

	for _, e := range []string{`a == 1`, `a == 1`, `b == 2`} {
		_, err := c.Compile(e)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, c.Size())

	_, err := c.Compile(`c == 3`)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Size())

	assert.Equal(t, 0, NewCompiler().Size())
}

func TestCompiler_Functions(t *testing.T) {
	c := newTestCompiler(WithFunctions(map[string]any{
		"isEven":    func(n float64) bool { return int(n)%2 == 0 },
		"icontains": func(string, string) bool { return true },
	}))

	f, err := c.Compile(`isEven(id) and icontains(name, "nope")`)
	require.NoError(t, err)

	got, err := f.Match(map[string]any{"id": float64(4), "name": "x"})
	require.NoError(t, err)
	assert.True(t, got)
}

func TestToTime(t *testing.T) {
	tests := []struct {
		in   any
		want time.Time
		ok   bool
	}{
		{in: "2026-02-27", want: time.Date(2026, 2, 27, 0, 0, 0, 0, time.UTC), ok: true},
		{in: "2026-02-27T08:00:00Z", want: time.Date(2026, 2, 27, 8, 0, 0, 0, time.UTC), ok: true},
		{in: float64(0), want: time.Unix(0, 0), ok: true},
		{in: fixedNow, want: fixedNow, ok: true},
		{in: "yesterday", ok: false},
		{in: nil, ok: false},
	}

	for _, tt := range tests {
		got, ok := toTime(tt.in)
		assert.Equal(t, tt.ok, ok, "%v", tt.in)
		if tt.ok {
			assert.True(t, tt.want.Equal(got), "%v: got %v", tt.in, got)
		}
	}
}
