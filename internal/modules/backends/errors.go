package backends

import (
	"fmt"
	"time"
)

// UnavailableError reports that the execution target cannot be reached.
type UnavailableError struct {
	Backend string
	Reason  string
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("backend %s unavailable: %s", e.Backend, e.Reason)
}

// TimeoutError reports that a backend call exceeded the caller's timeout.
type TimeoutError struct {
	Backend string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("backend %s timed out after %s", e.Backend, e.Timeout)
}

// TooLargeError reports a circuit wider than the backend capacity.
type TooLargeError struct {
	Backend  string
	Width    int
	Capacity int
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("backend %s: circuit needs %d qubits, capacity is %d", e.Backend, e.Width, e.Capacity)
}
