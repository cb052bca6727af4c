package agentbridge

import (
	"errors"
	"fmt"
	"time"
)

// ErrExecutorClosed is returned when work is submitted to a closed executor.
var ErrExecutorClosed = errors.New("executor is closed")

// TimeoutError reports that the bounded wait for an executor job expired.
// The job itself may still be running in the background.
type TimeoutError struct {
	Op      string        // Operation that timed out
	Timeout time.Duration // Configured wait bound
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Op, e.Timeout)
}

// InitError reports that agent construction or setup failed. The partially
// created executor is always closed before an InitError surfaces.
type InitError struct {
	Err error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("agent initialization failed: %v", e.Err)
}

// Unwrap returns the underlying failure.
func (e *InitError) Unwrap() error { return e.Err }

// AnswerError reports that the agent's answer operation failed.
type AnswerError struct {
	Err error
}

func (e *AnswerError) Error() string {
	return fmt.Sprintf("question processing failed: %v", e.Err)
}

// Unwrap returns the underlying failure.
func (e *AnswerError) Unwrap() error { return e.Err }
