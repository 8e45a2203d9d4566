// Package errs defines the error classes shared by the extraction pipeline.
// Callers branch on these with errors.As; everything else is wrapped with %w.
package errs

import (
	"errors"
	"fmt"
)

// ValidationError reports bad input detected before any network call.
// It is never retried and surfaces immediately to the caller.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Reason)
}

// NewValidation creates a ValidationError for the given field.
func NewValidation(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// TransientError wraps a failure that is eligible for retry: network errors,
// timeouts, rate limiting, 5xx responses and malformed provider payloads.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError wraps a failure that retrying can never fix: auth failures,
// exhausted quota, unsupported formats, content policy violations.
type PermanentError struct {
	Op  string
	Err error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// EmptyResponseError indicates the provider returned no usable content. It
// triggers the fallback ladder rather than an immediate failure.
type EmptyResponseError struct {
	Op string
}

func (e *EmptyResponseError) Error() string {
	return fmt.Sprintf("%s: provider returned an empty response", e.Op)
}

// TruncationError indicates generation stopped at the output-length ceiling.
// Partial holds whatever content was produced before the cutoff.
type TruncationError struct {
	Op      string
	Partial string
}

func (e *TruncationError) Error() string {
	return fmt.Sprintf("%s: response truncated at output-length ceiling (%d partial chars)", e.Op, len(e.Partial))
}

// ExhaustedError is raised when every retry attempt has failed.
type ExhaustedError struct {
	Op       string
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Op, e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsPermanent reports whether err is (or wraps) a PermanentError.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// IsTruncation reports whether err is (or wraps) a TruncationError.
func IsTruncation(err error) bool {
	var te *TruncationError
	return errors.As(err, &te)
}

// IsEmptyResponse reports whether err is (or wraps) an EmptyResponseError.
func IsEmptyResponse(err error) bool {
	var ee *EmptyResponseError
	return errors.As(err, &ee)
}
