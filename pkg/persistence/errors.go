// Standardized error types shared by every persistence implementation.
package persistence

import (
	"errors"
	"fmt"
)

var (
	// ErrProviderNotFound indicates no provider config exists for the id.
	ErrProviderNotFound = errors.New("provider not found")

	// ErrFlowNotFound indicates no flow graph exists for the id.
	ErrFlowNotFound = errors.New("flow not found")

	// ErrExecutionNotFound indicates no execution exists for the id.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrNoActiveExecution indicates a ticket has no non-terminal execution.
	ErrNoActiveExecution = errors.New("no active execution for ticket")
)

// ExecutionError wraps execution-store failures with operation context.
type ExecutionError struct {
	Op          string // operation being performed ("Save", "ByID", ...)
	ExecutionID string
	Err         error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s operation failed for execution %s: %v", e.Op, e.ExecutionID, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

func (e *ExecutionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewExecutionError creates an execution error with context.
func NewExecutionError(op, executionID string, err error) *ExecutionError {
	return &ExecutionError{Op: op, ExecutionID: executionID, Err: err}
}

// IsProviderNotFound checks if an error indicates a missing provider config.
func IsProviderNotFound(err error) bool {
	return errors.Is(err, ErrProviderNotFound)
}

// IsFlowNotFound checks if an error indicates a missing flow graph.
func IsFlowNotFound(err error) bool {
	return errors.Is(err, ErrFlowNotFound)
}

// IsExecutionNotFound checks if an error indicates a missing execution.
func IsExecutionNotFound(err error) bool {
	return errors.Is(err, ErrExecutionNotFound)
}

// IsNoActiveExecution checks if an error indicates the ticket has no
// non-terminal execution.
func IsNoActiveExecution(err error) bool {
	return errors.Is(err, ErrNoActiveExecution)
}
