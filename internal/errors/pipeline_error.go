// Package errors provides standardized error types for table and pipeline operations.
// This package defines PipelineError for consistent error handling across
// the store, pipeline, and translator, with operation context and error wrapping support.
package errors

import (
	"fmt"
	"sort"
	"strings"
)

// Kind classifies a PipelineError.
type Kind int

const (
	// KindInvalidInput covers malformed arguments that fit no other kind.
	KindInvalidInput Kind = iota
	// KindSchema indicates a column expected at load time is absent.
	KindSchema
	// KindColumnNotFound indicates a projection or lookup referenced an unknown column.
	KindColumnNotFound
	// KindJoinKey indicates the join key is absent or not unique where uniqueness is required.
	KindJoinKey
	// KindReducerMismatch indicates a reducer names a missing or type-incompatible column.
	KindReducerMismatch
	// KindUnsupportedType indicates a data type the operation cannot handle.
	KindUnsupportedType
	// KindInternal wraps failures from underlying libraries.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid input"
	case KindSchema:
		return "schema error"
	case KindColumnNotFound:
		return "column not found"
	case KindJoinKey:
		return "join key error"
	case KindReducerMismatch:
		return "reducer mismatch"
	case KindUnsupportedType:
		return "unsupported type"
	case KindInternal:
		return "internal error"
	default:
		return "unknown"
	}
}

// PipelineError represents standardized errors across all table and pipeline operations
type PipelineError struct {
	Op      string            // Operation name (e.g., "Project", "Join", "Reduce")
	Kind    Kind              // Error classification
	Column  string            // Column name if applicable
	Message string            // Human-readable error description
	Cause   error             // Underlying error cause
	Context map[string]string // Optional diagnostic details
}

// Error implements the error interface
func (e *PipelineError) Error() string {
	var msg string
	if e.Column != "" {
		msg = fmt.Sprintf("%s operation failed on column '%s': %s", e.Op, e.Column, e.Message)
	} else {
		msg = fmt.Sprintf("%s operation failed: %s", e.Op, e.Message)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause for error wrapping support
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a PipelineError of the same kind.
// Sentinels (no Op) match on kind alone; otherwise Op and Column must match too.
func (e *PipelineError) Is(target error) bool {
	t, ok := target.(*PipelineError)
	if !ok {
		return false
	}
	if e.Kind != t.Kind {
		return false
	}
	if t.Op == "" {
		return true
	}
	return e.Op == t.Op && e.Column == t.Column
}

// WithContext returns a copy of the error carrying additional diagnostic details.
func (e *PipelineError) WithContext(ctx map[string]string) *PipelineError {
	out := *e
	out.Context = make(map[string]string, len(e.Context)+len(ctx))
	for k, v := range e.Context {
		out.Context[k] = v
	}
	for k, v := range ctx {
		out.Context[k] = v
	}
	return &out
}

// Detail renders the error together with its context, one key per line.
func (e *PipelineError) Detail() string {
	if len(e.Context) == 0 {
		return e.Error()
	}
	keys := make([]string, 0, len(e.Context))
	for k := range e.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(e.Error())
	for _, k := range keys {
		fmt.Fprintf(&b, "\n  %s: %s", k, e.Context[k])
	}
	return b.String()
}

// Sentinels for errors.Is checks by kind.
var (
	ErrSchema          = &PipelineError{Kind: KindSchema, Message: "schema error"}
	ErrColumnNotFound  = &PipelineError{Kind: KindColumnNotFound, Message: "column does not exist"}
	ErrJoinKey         = &PipelineError{Kind: KindJoinKey, Message: "join key error"}
	ErrReducerMismatch = &PipelineError{Kind: KindReducerMismatch, Message: "reducer mismatch"}
	ErrInvalidInput    = &PipelineError{Kind: KindInvalidInput, Message: "invalid input"}
	ErrUnsupportedType = &PipelineError{Kind: KindUnsupportedType, Message: "unsupported type"}
	ErrInternal        = &PipelineError{Kind: KindInternal, Message: "internal error"}
)

// Common error constructors for consistent error creation

// NewSchemaError creates an error for a column missing from loaded data
func NewSchemaError(op, column string) *PipelineError {
	return &PipelineError{
		Op:      op,
		Kind:    KindSchema,
		Column:  column,
		Message: "required column is missing from source",
	}
}

// NewColumnNotFoundError creates an error for operations on non-existent columns
func NewColumnNotFoundError(op, column string) *PipelineError {
	return &PipelineError{
		Op:      op,
		Kind:    KindColumnNotFound,
		Column:  column,
		Message: "column does not exist",
	}
}

// NewJoinKeyError creates an error for an absent or non-unique join key
func NewJoinKeyError(op, column, message string) *PipelineError {
	return &PipelineError{
		Op:      op,
		Kind:    KindJoinKey,
		Column:  column,
		Message: message,
	}
}

// NewReducerMismatchError creates an error for a reducer that cannot apply to its column
func NewReducerMismatchError(op, column, message string) *PipelineError {
	return &PipelineError{
		Op:      op,
		Kind:    KindReducerMismatch,
		Column:  column,
		Message: message,
	}
}

// NewInvalidInputError creates an error for invalid operation inputs
func NewInvalidInputError(op, message string) *PipelineError {
	return &PipelineError{
		Op:      op,
		Kind:    KindInvalidInput,
		Message: message,
	}
}

// NewUnsupportedTypeError creates an error for unsupported data types
func NewUnsupportedTypeError(op, typeName string) *PipelineError {
	return &PipelineError{
		Op:      op,
		Kind:    KindUnsupportedType,
		Message: fmt.Sprintf("unsupported type: %s", typeName),
	}
}

// NewInternalError creates an error for internal operation failures
func NewInternalError(op string, cause error) *PipelineError {
	return &PipelineError{
		Op:      op,
		Kind:    KindInternal,
		Message: "internal error occurred",
		Cause:   cause,
	}
}
