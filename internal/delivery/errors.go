package delivery

import (
	"errors"
	"fmt"
	"time"
)

var ErrEmptyPayload = errors.New("empty payload")

// TransientError is a failure worth retrying: network errors, 5xx and 429 responses.
type TransientError struct {
	Err        error
	RetryAfter time.Duration
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient delivery error: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// PermanentError is a failure that will not succeed on retry: 4xx responses and malformed payloads.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent delivery error: %v", e.Err)
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

func IsPermanent(err error) bool {
	var perm *PermanentError
	return errors.As(err, &perm)
}

// Result is the outcome of one Deliver call: Delivered, or failed with Err.
type Result struct {
	Delivered bool
	Attempts  int
	Err       error
}
