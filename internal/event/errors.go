package event

import (
	"fmt"
)

type UnsupportedEventTypeError struct {
	action string
}

func NewUnsupportedEventTypeError(action string) *UnsupportedEventTypeError {
	return &UnsupportedEventTypeError{action: action}
}

func (e *UnsupportedEventTypeError) Error() string {
	return fmt.Sprintf("Unsupported event type: %s", e.action)
}

// ConnectError is returned by Subscribe when the runtime cannot be reached.
type ConnectError struct {
	Err error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect to docker daemon: %v", e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}
