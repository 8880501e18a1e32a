package llm

import "errors"

// errorKind classifies inference errors for retry decisions.
type errorKind int

const (
	kindTransient errorKind = iota // temporary, retry may succeed
	kindFatal                      // permanent, retrying cannot help
)

// classifiedError tags an underlying error with a retry classification.
type classifiedError struct {
	kind errorKind
	err  error
}

func (e *classifiedError) Error() string { return e.err.Error() }
func (e *classifiedError) Unwrap() error { return e.err }

// Transient wraps an error as retryable.
func Transient(err error) error {
	return &classifiedError{kind: kindTransient, err: err}
}

// Fatal wraps an error as non-retryable.
func Fatal(err error) error {
	return &classifiedError{kind: kindFatal, err: err}
}

// IsFatal reports whether the error is classified as non-retryable.
func IsFatal(err error) bool {
	var ce *classifiedError
	return errors.As(err, &ce) && ce.kind == kindFatal
}

// IsTransient reports whether the error is classified as retryable.
func IsTransient(err error) bool {
	var ce *classifiedError
	return errors.As(err, &ce) && ce.kind == kindTransient
}
