package types

// NodeStats is a point-in-time snapshot of one worker node's counters.
//
// All counters are cumulative since node start. Snapshots are taken without
// stalling the node's execution contexts.
type NodeStats struct {
	// Node is the arena id of the node.
	Node NodeID `json:"node"`

	// Parent is the arena id of the owning parent (Node itself for the root).
	Parent NodeID `json:"parent"`

	// Level is the hierarchy level (0 for the root).
	Level int `json:"level"`

	// Group is the partition group the node serves (-1 for the root).
	Group GroupID `json:"group"`

	// State is the node lifecycle state at snapshot time.
	State NodeState `json:"state"`

	// TasksDone counts completed callback invocations.
	TasksDone uint64 `json:"tasksDone"`

	// StealsMade counts items this node took from sibling queues.
	StealsMade uint64 `json:"stealsMade"`

	// StealsReceived counts items siblings took from this node's queue.
	StealsReceived uint64 `json:"stealsReceived"`

	// Errors counts callback faults recorded against this node.
	Errors uint64 `json:"errors"`

	// QueueLen is the queue length at snapshot time.
	QueueLen int `json:"queueLen"`
}

// Stats aggregates per-node statistics for a scheduler handle.
type Stats struct {
	// Nodes maps node id to its snapshot.
	Nodes map[NodeID]NodeStats `json:"nodes"`

	// TasksDone is the sum of TasksDone across nodes.
	TasksDone uint64 `json:"tasksDone"`

	// StealsMade is the sum of StealsMade across nodes.
	StealsMade uint64 `json:"stealsMade"`

	// Errors is the sum of Errors across nodes.
	Errors uint64 `json:"errors"`
}
