package errs

import (
	"errors"
	"fmt"
)

// ErrNotFound reports a missing record.
var ErrNotFound = errors.New("not found")

// ValidationError reports malformed input rejected before any external call.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Validation builds a ValidationError with a formatted message.
func Validation(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// SynthesisError reports that retrieval succeeded but answer synthesis
// failed. The matches that grounded the failed attempt stay inspectable.
type SynthesisError struct {
	Err error
}

func (e *SynthesisError) Error() string { return "answer synthesis failed: " + e.Err.Error() }
func (e *SynthesisError) Unwrap() error { return e.Err }

// IsSynthesis reports whether err is an answer synthesis failure.
func IsSynthesis(err error) bool {
	var se *SynthesisError
	return errors.As(err, &se)
}
