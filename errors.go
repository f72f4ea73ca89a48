package worktree

import "github.com/arloliu/worktree/types"

// Sentinel errors re-exported from the types package so callers rarely need
// to import it directly. Use errors.Is for comparisons since returned errors
// may be wrapped with context.
var (
	// ErrInvalidConfig indicates the scheduler configuration failed validation.
	ErrInvalidConfig = types.ErrInvalidConfig

	// ErrInvalidParallelism indicates a non-positive execution unit count.
	ErrInvalidParallelism = types.ErrInvalidParallelism

	// ErrCallbackRequired indicates no ProcessFunc was supplied.
	ErrCallbackRequired = types.ErrCallbackRequired

	// ErrAlreadyStarted indicates Start was called more than once.
	ErrAlreadyStarted = types.ErrAlreadyStarted

	// ErrNotStarted indicates an operation that requires a running scheduler.
	ErrNotStarted = types.ErrNotStarted

	// ErrUnknownHandle indicates a submission through a released handle.
	ErrUnknownHandle = types.ErrUnknownHandle

	// ErrStopTimeout indicates the stop grace period elapsed with work left.
	ErrStopTimeout = types.ErrStopTimeout

	// ErrInvalidGroupCount indicates a non-positive partition group count.
	ErrInvalidGroupCount = types.ErrInvalidGroupCount

	// ErrInvalidUnitCount indicates a non-positive execution unit count.
	ErrInvalidUnitCount = types.ErrInvalidUnitCount

	// ErrReadOnlyWrite indicates a write on a read-only region.
	ErrReadOnlyWrite = types.ErrReadOnlyWrite

	// ErrLockTimeout indicates a locked-write acquisition timed out.
	ErrLockTimeout = types.ErrLockTimeout

	// ErrRegionDestroyed indicates access to a destroyed region.
	ErrRegionDestroyed = types.ErrRegionDestroyed

	// ErrInvalidRegionSize indicates a region spec with a non-positive size.
	ErrInvalidRegionSize = types.ErrInvalidRegionSize

	// ErrWorkerFault wraps the callback error that faulted a worker node.
	ErrWorkerFault = types.ErrWorkerFault
)
