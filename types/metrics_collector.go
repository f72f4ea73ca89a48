package types

// MetricsCollector defines methods for recording operational metrics.
//
// Implementations should be non-blocking and handle failures gracefully.
// All methods are called from node execution contexts and must be thread-safe.
//
// This interface composes smaller, domain-focused interfaces for better modularity.
type MetricsCollector interface {
	SchedulerMetrics
	HierarchyMetrics
	RegionMetrics
}

// SchedulerMetrics defines metrics for scheduler-level operations.
type SchedulerMetrics interface {
	// RecordStateTransition records a scheduler state transition event.
	RecordStateTransition(from, to State, duration float64)

	// RecordStartDuration records the time taken by Start in seconds.
	RecordStartDuration(duration float64)

	// RecordStopDuration records the time taken by Stop in seconds and whether
	// it completed within the grace period.
	RecordStopDuration(duration float64, graceful bool)
}

// HierarchyMetrics defines metrics for worker hierarchy operations.
type HierarchyMetrics interface {
	// RecordTaskDone records one completed callback invocation on a node.
	//
	// Parameters:
	//   - group: Partition group the key routed to
	//   - duration: Callback duration in seconds
	RecordTaskDone(group GroupID, duration float64)

	// RecordSteal records a successful work steal between siblings.
	//
	//   - level: Hierarchy level the steal happened on
	RecordSteal(level int)

	// RecordSpawn records an on-demand child spawn.
	RecordSpawn(level int)

	// RecordNodeFault records a callback fault on a node along with the number
	// of queued items redistributed to its parent.
	RecordNodeFault(group GroupID, redistributed int)

	// RecordQueueDepth sets the current queue depth gauge for a node.
	RecordQueueDepth(node NodeID, depth int)
}

// RegionMetrics defines metrics for shared memory region operations.
type RegionMetrics interface {
	// RecordRegionCopy records one copy-on-write private copy allocation.
	RecordRegionCopy(bytes int)

	// RecordLockWait records a locked-write acquisition wait in seconds.
	RecordLockWait(duration float64)

	// RecordSnapshot records a point-in-time snapshot and its size in bytes.
	RecordSnapshot(bytes int)
}
