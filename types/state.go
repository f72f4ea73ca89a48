package types

// State represents the scheduler lifecycle state.
//
// States follow a defined progression during normal operation:
//
//	StateInit → StateAllocating → StateBuilding → StateRunning → StateStopping → StateStopped
//
// StateFatal is terminal and reachable from any running state; a scheduler
// that enters it must be discarded and rebuilt.
type State int

const (
	// StateInit is the initial state before any operations.
	StateInit State = iota

	// StateAllocating indicates the allocation map is being computed.
	StateAllocating

	// StateBuilding indicates the worker hierarchy is being constructed.
	StateBuilding

	// StateRunning indicates all nodes are started and processing work.
	StateRunning

	// StateStopping indicates graceful shutdown is in progress.
	StateStopping

	// StateStopped indicates all nodes joined and resources were released.
	StateStopped

	// StateFatal indicates an unrecoverable condition (e.g. a join that
	// exceeded its grace period). The instance is inspectable but unusable.
	StateFatal
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateInit:
		return "Init"
	case StateAllocating:
		return "Allocating"
	case StateBuilding:
		return "Building"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateStopped:
		return "Stopped"
	case StateFatal:
		return "Fatal"
	default:
		return "Unknown"
	}
}

// NodeState represents the lifecycle state of a single worker node.
//
// Normal progression:
//
//	NodeCreated → NodeStarted → NodeRunning → NodeStopping → NodeStopped → NodeFreed
//
// A node that records a callback fault jumps straight to NodeStopped.
type NodeState int

const (
	// NodeCreated is the state of a node registered in the arena but not launched.
	NodeCreated NodeState = iota

	// NodeStarted indicates the node's execution contexts are being launched.
	NodeStarted

	// NodeRunning indicates the node is pulling from its queue and stealing.
	NodeRunning

	// NodeStopping indicates the node observed cancellation and is winding down.
	NodeStopping

	// NodeStopped indicates all execution contexts of the node returned.
	NodeStopped

	// NodeFreed is terminal; the node was torn down after its children.
	NodeFreed
)

// String returns the string representation of the node state.
func (s NodeState) String() string {
	switch s {
	case NodeCreated:
		return "Created"
	case NodeStarted:
		return "Started"
	case NodeRunning:
		return "Running"
	case NodeStopping:
		return "Stopping"
	case NodeStopped:
		return "Stopped"
	case NodeFreed:
		return "Freed"
	default:
		return "Unknown"
	}
}
