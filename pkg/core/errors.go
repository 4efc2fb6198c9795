// Package core wires the Lumen companion together: configuration, logging,
// persistence and the public Companion API.
package core

import (
	"errors"
	"fmt"

	"github.com/lumenqi/lumen-core/pkg/evolution"
	"github.com/lumenqi/lumen-core/pkg/orchestrator"
	"github.com/lumenqi/lumen-core/pkg/storage"
)

// Predefined errors for common failure scenarios.
var (
	// ErrInvalidConfig indicates that the provided configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNotFound indicates that a persisted document was never saved.
	ErrNotFound = storage.ErrNotFound

	// ErrCycleInProgress is returned by ForceEvolutionCycle while a cycle
	// is already running.
	ErrCycleInProgress = evolution.ErrCycleInProgress

	// ErrStorageOperation indicates that a storage operation failed.
	ErrStorageOperation = errors.New("storage operation failed")

	// ErrUnsupportedProvider indicates an unknown LLM or database provider.
	ErrUnsupportedProvider = errors.New("unsupported provider")

	// ErrAllSourcesFailed is logged when every source failed. Generate
	// answers with an apology instead of returning it.
	ErrAllSourcesFailed = orchestrator.ErrAllSourcesFailed

	// ErrClosed is returned by operations on a closed companion.
	ErrClosed = errors.New("companion is closed")
)

// CoreError wraps errors with operation context.
//
// Example:
//
//	err := &CoreError{
//	    Op:  "Load",
//	    Err: ErrStorageOperation,
//	}
//	// Error() returns: "lumen: Load: storage operation failed"
type CoreError struct {
	// Op is the name of the operation that failed.
	Op string

	// Err is the underlying error.
	Err error
}

// Error returns "lumen: <Op>: <Err>".
func (e *CoreError) Error() string {
	return fmt.Sprintf("lumen: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is and errors.As.
func (e *CoreError) Unwrap() error {
	return e.Err
}

// NewCoreError creates a new CoreError wrapping the given error.
//
// If err is nil, returns nil. This allows safe error wrapping:
//
//	if err != nil {
//	    return NewCoreError("Load", err)
//	}
func NewCoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &CoreError{
		Op:  op,
		Err: err,
	}
}
