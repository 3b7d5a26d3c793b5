// Package taskerr defines the pipeline error taxonomy. Every stage error is
// classified into a Kind which drives the orchestrator's retry decision and
// is surfaced verbatim on the task status record.
package taskerr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for retry policy and status reporting.
type Kind string

const (
	// KindValidation marks bad input. Never retried.
	KindValidation Kind = "validation"
	// KindTransient marks network or provider failures. Retried with backoff.
	KindTransient Kind = "transient"
	// KindTimeout marks soft or hard time-limit expiry.
	KindTimeout Kind = "timeout"
	// KindConflict marks a duplicate in-flight task, rejected at submission.
	KindConflict Kind = "conflict"
	// KindInternal marks everything else. Not retried.
	KindInternal Kind = "internal"
)

// Error carries a kind alongside the underlying cause.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Err: fmt.Errorf(format, args...)}
}

func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindTransient, Err: err}
}

func Timeout(err error) error {
	return &Error{Kind: KindTimeout, Err: err}
}

func Conflict(format string, args ...any) error {
	return &Error{Kind: KindConflict, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the kind of err, defaulting to KindInternal for
// unclassified errors.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindInternal
}

// Retryable reports whether the orchestrator may re-attempt the failed
// stage. Validation and conflict errors fail immediately; soft timeouts are
// retried, hard timeouts are decided by the orchestrator before wrapping.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindTransient, KindTimeout:
		return true
	}
	return false
}

// Common sentinel errors.
var (
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrTaskNotFound      = errors.New("task not found")
	ErrDocumentNotFound  = errors.New("document not found")
	ErrEmptyDocument     = errors.New("document contains no text")
)
