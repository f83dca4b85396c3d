package field

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is wrapped by every LookupError
var ErrNotFound = errors.New("field not found")

// Error types for field resolution
type (
	// LookupError indicates a path could not be walked because an
	// intermediate node is absent or cannot be indexed
	LookupError struct {
		Path   []string
		Depth  int
		Reason string
	}

	// CompilationError indicates an expression or query could not be compiled
	CompilationError struct {
		Source string
		Kind   Kind
		Err    error
	}

	// EvaluationError indicates a compiled expression or query failed at run time
	EvaluationError struct {
		Source string
		Kind   Kind
		Err    error
	}
)

func (e *LookupError) Error() string {
	at := strings.Join(e.Path[:e.Depth], ".")
	if at == "" {
		at = "<root>"
	}
	return fmt.Sprintf("lookup %q failed at %s: %s", strings.Join(e.Path, "."), at, e.Reason)
}

func (e *LookupError) Unwrap() error {
	return ErrNotFound
}

func (e *CompilationError) Error() string {
	return fmt.Sprintf("compile %s %q: %v", e.Kind, e.Source, e.Err)
}

func (e *CompilationError) Unwrap() error {
	return e.Err
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluate %s %q: %v", e.Kind, e.Source, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	return e.Err
}
