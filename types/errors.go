package types

import "errors"

// Sentinel errors for the worktree library.
//
// These errors provide type-safe error checking using errors.Is() and errors.As().
// All components should use these sentinel errors for known error conditions
// and wrap them with context using fmt.Errorf("%s: %w", msg, err).

// Scheduler errors - Public API errors returned by the Scheduler component.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidParallelism is returned when Start is called with zero execution units.
	ErrInvalidParallelism = errors.New("parallelism must be >= 1")

	// ErrCallbackRequired is returned when Start is called without a process callback.
	ErrCallbackRequired = errors.New("process callback is required")

	// ErrAlreadyStarted is returned when Start is called on an already running scheduler.
	ErrAlreadyStarted = errors.New("scheduler already started")

	// ErrNotStarted is returned when operations require a started scheduler.
	ErrNotStarted = errors.New("scheduler not started")

	// ErrUnknownHandle is returned when a handle does not belong to this scheduler.
	ErrUnknownHandle = errors.New("unknown scheduler handle")

	// ErrStopTimeout is returned when graceful shutdown exceeds its grace period.
	// The hierarchy remains inspectable but is marked fatal and must be discarded.
	ErrStopTimeout = errors.New("stop exceeded grace period")

	// ErrFatal indicates a state from which the scheduler instance cannot safely
	// continue. The instance must be discarded and rebuilt; it is never reusable.
	ErrFatal = errors.New("scheduler in fatal state")
)

// Allocation errors - returned by the alloc package.
var (
	// ErrInvalidUnitCount is returned when an allocation is requested for fewer than one unit.
	ErrInvalidUnitCount = errors.New("unit count must be >= 1")

	// ErrInvalidGroupCount is returned when the group count is not positive.
	ErrInvalidGroupCount = errors.New("group count must be >= 1")
)

// Region errors - returned by the region package.
var (
	// ErrReadOnlyWrite is returned when write access is requested on a read-only region.
	ErrReadOnlyWrite = errors.New("write not supported on read-only region")

	// ErrLockTimeout is returned when lock acquisition on a locked-write region
	// exceeds the configured wait. The region remains in a well-defined, usable
	// state; no partial writes are observable.
	ErrLockTimeout = errors.New("lock acquisition timed out")

	// ErrRegionDestroyed is returned when accessing a region after Destroy.
	ErrRegionDestroyed = errors.New("region destroyed")

	// ErrInvalidRegionSize is returned when a region is created with size zero.
	ErrInvalidRegionSize = errors.New("region size must be > 0")
)

// Hierarchy errors - returned by the worker hierarchy.
var (
	// ErrWorkerFault is the sentinel wrapped around callback failures recorded
	// against a node. It never propagates to sibling nodes.
	ErrWorkerFault = errors.New("worker callback fault")

	// ErrNodeStopped is returned when work is routed to a node that already stopped.
	ErrNodeStopped = errors.New("node stopped")

	// ErrMaxDepthReached is returned when a spawn would exceed the configured
	// maximum hierarchy depth.
	ErrMaxDepthReached = errors.New("maximum hierarchy depth reached")

	// ErrNoUnitBudget is returned when a spawn is requested but no spare
	// allocation capacity remains for further subdivision.
	ErrNoUnitBudget = errors.New("no spare execution units for subdivision")
)
