package types

import "context"

// Hooks defines callbacks for scheduler lifecycle events.
//
// All hooks are optional and called asynchronously in background goroutines
// to avoid blocking the state machine or node execution contexts. Hooks
// receive the scheduler's lifecycle context which is cancelled during stop.
//
// Best practices for hook implementation:
//   - Complete quickly (< 1 second recommended)
//   - Respect context cancellation
//   - Don't block on long I/O operations
//   - Handle errors gracefully (return error for logging)
type Hooks struct {
	// OnStateChanged is called when the scheduler state transitions.
	OnStateChanged func(ctx context.Context, from, to State) error

	// OnNodeFault is called when a node records a callback fault.
	// redistributed is the number of queued keys pushed to the parent.
	OnNodeFault func(ctx context.Context, node NodeID, group GroupID, redistributed int, err error) error

	// OnError is called when a recoverable error occurs.
	OnError func(ctx context.Context, err error) error
}
