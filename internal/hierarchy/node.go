package hierarchy

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/arloliu/worktree/types"
)

// Node is one worker in the hierarchy.
//
// The root node sits at level 0 with group -1 and executes orphaned keys.
// Level-1 nodes each own one partition group and run one execution context
// per unit their group is allocated. Deeper nodes are spawned on demand and
// consume their parent's queue, so ownsQueue is false for them.
type Node struct {
	id     types.NodeID
	level  int
	group  types.GroupID
	units  []types.UnitID
	parent *Node

	queue     *workQueue
	ownsQueue bool

	state atomic.Int32

	// active counts the node's running execution contexts; the last one to
	// exit marks the node stopped. faulted tells the remaining contexts of a
	// multi-unit node to exit after a sibling context faulted.
	active  atomic.Int64
	faulted atomic.Bool

	tasksDone      atomic.Uint64
	stealsMade     atomic.Uint64
	stealsReceived atomic.Uint64
	faults         atomic.Uint64

	mu       sync.Mutex
	children []*Node
	faultErr error
}

// ID returns the node's arena-allocated identifier.
func (n *Node) ID() types.NodeID {
	return n.id
}

// Level returns the node's depth in the hierarchy (root is 0).
func (n *Node) Level() int {
	return n.level
}

// Group returns the node's partition group (-1 for the root).
func (n *Node) Group() types.GroupID {
	return n.group
}

// Units returns the execution units allocated to the node's group.
// Empty for the root and for spawned children, which run a single context.
func (n *Node) Units() []types.UnitID {
	return n.units
}

// State returns the node's current lifecycle state.
func (n *Node) State() types.NodeState {
	return types.NodeState(n.state.Load())
}

func (n *Node) setState(s types.NodeState) {
	n.state.Store(int32(s))
}

// String renders the node as "node-<id>-L<level>-G<group>".
func (n *Node) String() string {
	return fmt.Sprintf("node-%d-L%d-G%d", n.id, n.level, n.group)
}

// QueueLen returns the current depth of the queue the node consumes.
func (n *Node) QueueLen() int {
	return n.queue.len()
}

// FaultErr returns the callback error that faulted the node, if any.
func (n *Node) FaultErr() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.faultErr
}

func (n *Node) setFaultErr(err error) {
	n.mu.Lock()
	n.faultErr = err
	n.mu.Unlock()
}

func (n *Node) addChild(child *Node) {
	n.mu.Lock()
	n.children = append(n.children, child)
	n.mu.Unlock()
}

// childrenSnapshot returns a copy of the child list, in spawn order.
// Spawn order is ascending node id, which steal relies on.
func (n *Node) childrenSnapshot() []*Node {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([]*Node, len(n.children))
	copy(out, n.children)

	return out
}

// stats captures the node's counters into a NodeStats value.
func (n *Node) stats() types.NodeStats {
	parent := n.id // the root is its own parent
	if n.parent != nil {
		parent = n.parent.id
	}

	return types.NodeStats{
		Node:           n.id,
		Parent:         parent,
		Level:          n.level,
		Group:          n.group,
		State:          n.State(),
		TasksDone:      n.tasksDone.Load(),
		StealsMade:     n.stealsMade.Load(),
		StealsReceived: n.stealsReceived.Load(),
		Errors:         n.faults.Load(),
		QueueLen:       n.queue.len(),
	}
}
