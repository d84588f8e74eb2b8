// Package errors provides structured error types for the forestmesh library.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the forest API and CLI
//   - Machine-readable error codes for programmatic handling
//   - Enough context (block id, octant coordinates, process rank) in the
//     message to reproduce a failure
//
// # Error Codes
//
// Every failure the core can detect is deterministic: the forest is a fixed
// algorithm over static input, so none of these errors carry retry
// semantics. Codes map the failure taxonomy:
//   - CONNECTIVITY_INVALID: malformed block graph, detected at construction
//   - REFINEMENT_BOUNDS: requested depth outside the valid level range
//   - COMM_MISMATCH: a collective exchange never completed on some rank
//   - STENCIL_DEGENERATE: dependent-node weights do not sum to one
//   - INVALID_INPUT, INTERNAL_ERROR: generic validation and bug guards
//
// # Usage
//
//	err := errors.New(errors.ErrCodeRefinementBounds, "level %d exceeds max %d", l, max)
//	if errors.Is(err, errors.ErrCodeRefinementBounds) {
//	    // reject before tree construction
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeCommMismatch, cause, "rank %d exchange round %d", rank, round)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for the failure taxonomy.
const (
	// ErrCodeConnectivityInvalid marks a malformed block connectivity
	// graph: out-of-range node ids, degenerate blocks, or edges shared in
	// a non-manifold way. Fatal; forest creation is aborted.
	ErrCodeConnectivityInvalid Code = "CONNECTIVITY_INVALID"

	// ErrCodeRefinementBounds marks a refinement target outside the valid
	// level range, rejected before any tree is constructed.
	ErrCodeRefinementBounds Code = "REFINEMENT_BOUNDS"

	// ErrCodeCommMismatch marks a collective operation that a peer never
	// joined. Silent hangs are unacceptable, so exchanges fail with the
	// ranks involved instead of blocking forever.
	ErrCodeCommMismatch Code = "COMM_MISMATCH"

	// ErrCodeStencilDegenerate marks a dependent node whose merged
	// interpolation weights do not sum to one within tolerance. Reported,
	// never normalized away.
	ErrCodeStencilDegenerate Code = "STENCIL_DEGENERATE"

	// Generic validation and internal errors.
	ErrCodeInvalidInput Code = "INVALID_INPUT"
	ErrCodeNotFound     Code = "NOT_FOUND"
	ErrCodeInternal     Code = "INTERNAL_ERROR"
	ErrCodeUnsupported  Code = "UNSUPPORTED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
