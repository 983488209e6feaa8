package common

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed taxonomy of processing failures.
type ErrorKind string

const (
	// KindExtractionFailure means no strategy produced text. Fatal for the
	// document, never for the run.
	KindExtractionFailure ErrorKind = "extraction_failure"
	// KindValidationError is recoverable; an automatic field fix is attempted
	// before surfacing.
	KindValidationError ErrorKind = "validation_error"
	// KindMappingError is recoverable; an alternative mapping is attempted
	// before surfacing.
	KindMappingError ErrorKind = "mapping_error"
	// KindTypeError is recoverable through the data transformer.
	KindTypeError ErrorKind = "type_error"
	// KindMissingField is recoverable through inference, else surfaced as a
	// non-fatal report entry.
	KindMissingField ErrorKind = "missing_field"
	// KindCriticalError is an unexpected internal fault. Always surfaced,
	// never swallowed, but still returned as a structured report entry.
	KindCriticalError ErrorKind = "critical_error"
)

// ProcessError represents a component-level failure converted into a typed
// result at the nearest boundary.
type ProcessError struct {
	Kind    ErrorKind
	Stage   string
	Message string
	Cause   error
}

func (e *ProcessError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s [%s]: %s: %v", e.Kind, e.Stage, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s [%s]: %s", e.Kind, e.Stage, e.Message)
}

func (e *ProcessError) Unwrap() error {
	return e.Cause
}

// Recoverable reports whether the pipeline may continue past this error.
func (e *ProcessError) Recoverable() bool {
	switch e.Kind {
	case KindExtractionFailure, KindCriticalError:
		return false
	default:
		return true
	}
}

// Common sentinel errors.
var (
	ErrNoText          = errors.New("no extraction strategy produced text")
	ErrInvalidTemplate = errors.New("invalid template")
	ErrUnsupported     = errors.New("unsupported source format")
)

// NewProcessError builds a typed processing error.
func NewProcessError(kind ErrorKind, stage, message string, cause error) *ProcessError {
	return &ProcessError{Kind: kind, Stage: stage, Message: message, Cause: cause}
}

// WrapError annotates err with a message, preserving the chain.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// KindOf extracts the error kind from an error chain; unexpected errors
// classify as critical.
func KindOf(err error) ErrorKind {
	var pe *ProcessError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	if errors.Is(err, ErrNoText) {
		return KindExtractionFailure
	}
	return KindCriticalError
}
