// ABOUTME: Error types for session setup and rendering
// ABOUTME: SetupError is synchronous, GraphError is reported on failure
package render

import (
	"errors"
	"fmt"

	"github.com/Sendspin/offline-render/pkg/audio/bufferlist"
)

var (
	// ErrInvalidState is returned when an operation is not valid in the current state
	ErrInvalidState = errors.New("render: invalid state")

	// ErrAllocation is returned when working buffers cannot be allocated
	ErrAllocation = bufferlist.ErrAllocation

	// ErrInvalidLocator is returned for empty or unusable source and destination paths
	ErrInvalidLocator = errors.New("render: invalid locator")
)

// SetupError reports a failure to construct a session
type SetupError struct {
	Op      string
	Locator string
	Err     error
}

func (e *SetupError) Error() string {
	if e.Locator == "" {
		return fmt.Sprintf("render setup: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("render setup: %s %q: %v", e.Op, e.Locator, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

// GraphError reports a failed graph or writer operation during rendering
type GraphError struct {
	Op   string
	Code int32
	Err  error
}

func (e *GraphError) Error() string {
	return fmt.Sprintf("render: %s failed (code %d): %v", e.Op, e.Code, e.Err)
}

func (e *GraphError) Unwrap() error { return e.Err }
