package types

import "context"

// PartitionKey identifies one unit of work.
//
// Keys are opaque to the scheduler: the only structure it relies on is
// the deterministic mapping key mod G to a partition group.
type PartitionKey uint64

// GroupID identifies one of the G logical partition groups.
//
// Valid values are [0, G). A negative GroupID never routes work.
type GroupID int

// UnitID identifies one hardware execution unit available to the scheduler.
type UnitID int

// NodeID identifies a worker node inside a hierarchy.
//
// Node ids are allocated monotonically from an arena and are never reused
// within the lifetime of a hierarchy.
type NodeID uint64

// ProcessFunc is the unit-of-work callback supplied by the caller.
//
// The scheduler invokes it once per dequeued key, on the execution context
// of the node that owns (or stole) the key. Implementations must be safe
// for concurrent invocation and should honor ctx cancellation; a callback
// that ignores ctx can delay shutdown up to the stop grace period.
//
// Returning a non-nil error marks the invoking node as faulted: the node
// stops, its remaining queue is pushed to its parent for redistribution,
// and the error is recorded in the node's stats. Sibling nodes are never
// affected.
type ProcessFunc func(ctx context.Context, key PartitionKey, regions []Region) error

// Region is the narrow view of a shared memory region handed to callbacks.
//
// The concrete implementation lives in the region package; callbacks only
// need acquire/release semantics and never manage region lifecycle.
type Region interface {
	// Read acquires read access and returns the current buffer.
	Read() ([]byte, error)

	// ReleaseRead releases read access acquired by Read.
	ReleaseRead()

	// Write acquires write access and returns a mutable buffer.
	Write() ([]byte, error)

	// ReleaseWrite publishes the write and releases write access.
	ReleaseWrite()

	// Version returns the current published version of the region.
	Version() uint64
}
