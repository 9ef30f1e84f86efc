package morph

import (
	"fmt"
	"strings"

	"github.com/starkandwayne/goutils/ansi"
)

// ErrorType categorizes a SchemaError.
type ErrorType string

const (
	// ErrMissingField indicates a record lacks a named field.
	ErrMissingField ErrorType = "missing_field"

	// ErrOutOfBounds indicates a sequence or string index was invalid.
	ErrOutOfBounds ErrorType = "out_of_bounds"

	// ErrStructuralMismatch indicates the value at a path had the wrong shape.
	ErrStructuralMismatch ErrorType = "structural_mismatch"

	// ErrCaseMismatch indicates a variant carried a different case than expected.
	ErrCaseMismatch ErrorType = "case_mismatch"

	// ErrConversionFailed indicates a primitive conversion failed.
	ErrConversionFailed ErrorType = "conversion_failed"

	// ErrEvaluation indicates a Resolved expression failed to evaluate.
	ErrEvaluation ErrorType = "evaluation_error"

	// ErrValidation indicates a shape or precondition check failed.
	ErrValidation ErrorType = "validation_error"

	// ErrUnsupportedNode indicates the patch engine met a node it cannot apply through.
	ErrUnsupportedNode ErrorType = "unsupported_node"

	// ErrPlanner indicates no migration path exists between two schemas.
	ErrPlanner ErrorType = "planner_error"
)

// SchemaError is the single error currency of this package. Errors are
// returned values; nothing in the core panics across its API boundary.
//
// Trace holds navigation nodes in reverse order: the innermost failure
// pushes first and every frame on the way out appends the node it was
// descending through. Error() renders them outermost-first.
type SchemaError struct {
	Type    ErrorType
	Message string
	Trace   []Node
	Cause   error
}

// Error renders the error with its navigation path, outermost node first.
func (e *SchemaError) Error() string {
	if len(e.Trace) == 0 {
		return fmt.Sprintf("%s: %s", e.Type, e.Message)
	}
	return fmt.Sprintf("%s at %s: %s", e.Type, e.TracePath(), e.Message)
}

// Unwrap exposes the cause for errors.Is/As chains.
func (e *SchemaError) Unwrap() error {
	return e.Cause
}

// TracePath renders the collected trace as a path string, outermost first.
func (e *SchemaError) TracePath() string {
	var b strings.Builder
	b.WriteString("$")
	for i := len(e.Trace) - 1; i >= 0; i-- {
		b.WriteString(e.Trace[i].Render())
	}
	return b.String()
}

// push records the node the current frame was descending through. Called as
// navigation unwinds, so the trace ends up reverse-ordered.
func (e *SchemaError) push(n Node) *SchemaError {
	e.Trace = append(e.Trace, n)
	return e
}

// IsSchemaError reports whether err is a *SchemaError.
func IsSchemaError(err error) bool {
	_, ok := err.(*SchemaError)
	return ok
}

// TypeOf returns the error type of a SchemaError, or "" for anything else.
func TypeOf(err error) ErrorType {
	if se, ok := err.(*SchemaError); ok {
		return se.Type
	}
	return ""
}

func newMissingFieldError(name string) *SchemaError {
	return &SchemaError{
		Type:    ErrMissingField,
		Message: ansi.Sprintf("record has no field @c{%s}", name),
	}
}

func newOutOfBoundsError(kind string, index, length int) *SchemaError {
	return &SchemaError{
		Type:    ErrOutOfBounds,
		Message: ansi.Sprintf("%s index @c{%d} out of bounds (length @c{%d})", kind, index, length),
	}
}

func newStructuralMismatchError(expected string, actual ValueKind) *SchemaError {
	return &SchemaError{
		Type:    ErrStructuralMismatch,
		Message: ansi.Sprintf("expected @m{%s}, got @m{%s}", expected, actual),
	}
}

func newCaseMismatchError(expected, actual string) *SchemaError {
	return &SchemaError{
		Type:    ErrCaseMismatch,
		Message: ansi.Sprintf("expected case @c{%s}, got @c{%s}", expected, actual),
	}
}

func newConversionError(trace []Node, from, to, reason string) *SchemaError {
	return &SchemaError{
		Type:    ErrConversionFailed,
		Message: ansi.Sprintf("cannot convert @m{%s} to @m{%s}: %s", from, to, reason),
		Trace:   trace,
	}
}

func newEvaluationError(format string, args ...interface{}) *SchemaError {
	return &SchemaError{
		Type:    ErrEvaluation,
		Message: fmt.Sprintf(format, args...),
	}
}

func newValidationError(format string, args ...interface{}) *SchemaError {
	return &SchemaError{
		Type:    ErrValidation,
		Message: fmt.Sprintf(format, args...),
	}
}

func newUnsupportedNodeError(n Node) *SchemaError {
	return &SchemaError{
		Type:    ErrUnsupportedNode,
		Message: ansi.Sprintf("@m{%s} is not supported in patch application", n.Render()),
	}
}

func newPlannerError(from, to string) *SchemaError {
	return &SchemaError{
		Type:    ErrPlanner,
		Message: ansi.Sprintf("no migration path from @c{%s} to @c{%s}", from, to),
	}
}

// isCaseMismatch reports whether err is a case-mismatch failure; the patch
// engine treats these specially under Elements traversal.
func isCaseMismatch(err error) bool {
	return TypeOf(err) == ErrCaseMismatch
}

// MultiError aggregates several failures, mostly during validation.
type MultiError struct {
	Errors []error
}

// Error renders every contained error, one per line.
func (e MultiError) Error() string {
	s := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		s = append(s, fmt.Sprintf(" - %s\n", err))
	}
	return ansi.Sprintf("@r{%d} error(s) detected:\n%s", len(e.Errors), strings.Join(s, ""))
}

// Count returns the number of contained errors.
func (e *MultiError) Count() int {
	return len(e.Errors)
}

// Append adds an error, flattening nested MultiErrors.
func (e *MultiError) Append(err error) {
	if err == nil {
		return
	}
	if mult, ok := err.(MultiError); ok {
		e.Errors = append(e.Errors, mult.Errors...)
	} else {
		e.Errors = append(e.Errors, err)
	}
}

// OrNil returns the aggregate as an error, or nil when empty.
func (e MultiError) OrNil() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}
