package vehicleinfo

import (
	"errors"
	"fmt"
)

// ErrSessionClosed is returned for requests on a session that was closed.
var ErrSessionClosed = errors.New("session closed")

// ConnectError means the transport could not be opened within the retry budget.
type ConnectError struct {
	Target   Target
	Attempts int
	Err      error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect to %s failed after %d attempt(s): %v", e.Target, e.Attempts, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// ClientOpenError means the transport opened but the diagnostic client did not.
type ClientOpenError struct {
	Target Target
	Err    error
}

func (e *ClientOpenError) Error() string {
	return fmt.Sprintf("open UDS client for %s: %v", e.Target, e.Err)
}

func (e *ClientOpenError) Unwrap() error { return e.Err }
