package timeout

import (
	"fmt"
	"time"
)

// TimeoutError reports that an operation's deadline fired before it settled.
type TimeoutError struct {
	OperationID string
	Timeout     time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("operation %s timed out after %s", e.OperationID, e.Timeout)
}

// CancellationError reports that an operation was cancelled externally
// before it settled.
type CancellationError struct {
	OperationID string
}

func (e *CancellationError) Error() string {
	return fmt.Sprintf("operation %s was cancelled", e.OperationID)
}
