package metrics

import "github.com/arloliu/worktree/types"

// NopMetrics implements a no-op metrics collector.
//
// All metrics are discarded. Useful for testing or when external
// metrics collection is used.
type NopMetrics struct{}

// Compile-time assertion that NopMetrics implements MetricsCollector.
var _ types.MetricsCollector = (*NopMetrics)(nil)

// NewNop creates a new no-op metrics collector.
//
// Returns:
//   - *NopMetrics: A new no-op metrics collector instance
func NewNop() *NopMetrics {
	return &NopMetrics{}
}

// SchedulerMetrics implementation

// RecordStateTransition discards the state transition metric.
func (n *NopMetrics) RecordStateTransition(_ /* from */, _ /* to */ types.State, _ /* duration */ float64) {
	// No-op
}

// RecordStartDuration discards the start duration metric.
func (n *NopMetrics) RecordStartDuration(_ /* duration */ float64) {
	// No-op
}

// RecordStopDuration discards the stop duration metric.
func (n *NopMetrics) RecordStopDuration(_ /* duration */ float64, _ /* graceful */ bool) {
	// No-op
}

// HierarchyMetrics implementation

// RecordTaskDone discards the task completion metric.
func (n *NopMetrics) RecordTaskDone(_ /* group */ types.GroupID, _ /* duration */ float64) {
	// No-op
}

// RecordSteal discards the steal metric.
func (n *NopMetrics) RecordSteal(_ /* level */ int) {
	// No-op
}

// RecordSpawn discards the spawn metric.
func (n *NopMetrics) RecordSpawn(_ /* level */ int) {
	// No-op
}

// RecordNodeFault discards the node fault metric.
func (n *NopMetrics) RecordNodeFault(_ /* group */ types.GroupID, _ /* redistributed */ int) {
	// No-op
}

// RecordQueueDepth discards the queue depth metric.
func (n *NopMetrics) RecordQueueDepth(_ /* node */ types.NodeID, _ /* depth */ int) {
	// No-op
}

// RegionMetrics implementation

// RecordRegionCopy discards the copy-on-write copy metric.
func (n *NopMetrics) RecordRegionCopy(_ /* bytes */ int) {
	// No-op
}

// RecordLockWait discards the lock wait metric.
func (n *NopMetrics) RecordLockWait(_ /* duration */ float64) {
	// No-op
}

// RecordSnapshot discards the snapshot metric.
func (n *NopMetrics) RecordSnapshot(_ /* bytes */ int) {
	// No-op
}
