package logs

import (
	"errors"
	"fmt"
)

var ErrContainerGone = errors.New("container no longer exists")

// FetchError is returned when a log excerpt could not be retrieved. It never aborts a notification.
type FetchError struct {
	ContainerID string
	Err         error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch logs for container %s: %v", e.ContainerID, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
