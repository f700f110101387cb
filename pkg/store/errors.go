package store

import "errors"

// TransientError marks a storage failure worth retrying with the same
// input: connection loss, serialization conflicts, resource exhaustion.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "transient storage failure: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError marks a storage failure that will not succeed on retry,
// such as a constraint or schema violation. The opportunity is marked
// error and surfaced rather than retried.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return "permanent storage failure: " + e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// IsTransient reports whether err is classified as retryable.
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

// IsPermanent reports whether err is classified as non-retryable.
func IsPermanent(err error) bool {
	var p *PermanentError
	return errors.As(err, &p)
}
