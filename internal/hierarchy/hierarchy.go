package hierarchy

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/arloliu/worktree/alloc"
	"github.com/arloliu/worktree/internal/logging"
	"github.com/arloliu/worktree/internal/metrics"
	"github.com/arloliu/worktree/partition"
	"github.com/arloliu/worktree/types"
)

// idlePollInterval bounds how long an idle node sleeps before re-attempting
// a steal from its siblings.
const idlePollInterval = 5 * time.Millisecond

// stopJoinWait bounds how long StopAll waits for nodes to join after their
// contexts have been cancelled. Nodes still running afterwards are abandoned.
const stopJoinWait = 250 * time.Millisecond

// FaultFunc is invoked when a node faults, after its queue has been drained
// to its parent.
type FaultFunc func(node types.NodeID, group types.GroupID, redistributed int, err error)

// Config carries everything a hierarchy needs. The scheduler validates and
// defaults it; the zero values here are only guarded, not defaulted.
type Config struct {
	// Assigner maps keys to groups.
	Assigner *partition.Assigner

	// Alloc maps groups to execution units. One level-1 node is created per
	// group, running one execution context per unit in the group's entry.
	Alloc *alloc.Map

	// Callback is invoked once per dequeued key.
	Callback types.ProcessFunc

	// Regions are passed through to every callback invocation.
	Regions []types.Region

	// QueueCapacity bounds each owning node's queue.
	QueueCapacity int

	// MaxDepth is the deepest allowed node level (root is level 0).
	MaxDepth int

	// SpawnThreshold is the queue depth above which a node spawns a child
	// to share its queue. 0 disables spawning.
	SpawnThreshold int

	// WorkerBudget caps the total number of non-root nodes. Raised to the
	// level-1 node count when set lower.
	WorkerBudget int

	// OnFault is called after fault handling completes. Optional.
	OnFault FaultFunc

	Logger  types.Logger
	Metrics types.HierarchyMetrics
}

// Hierarchy is the worker node tree. Create with New, run with Start, and
// shut down with StopAll. All exported methods are safe for concurrent use.
type Hierarchy struct {
	cfg Config

	ctx    context.Context
	cancel context.CancelFunc

	// nodes is the arena: every node ever created, by id. Ids are allocated
	// monotonically and never reused.
	nodes  *xsync.Map[types.NodeID, *Node]
	routes *xsync.Map[types.GroupID, *Node]
	nextID atomic.Uint64

	root   *Node
	budget atomic.Int64

	wg       sync.WaitGroup
	stopping atomic.Bool
	stopCh   chan struct{}
	stopOnce sync.Once

	maxLevel atomic.Int64
}

// New builds the node tree for the given allocation without starting it.
//
// A root node (level 0, group -1) is always created, plus one level-1 node
// per partition group. A level-1 node runs one execution context per unit in
// its group's allocation entry, so surplus units add parallelism instead of
// sitting idle.
//
// Parameters:
//   - cfg: Hierarchy configuration; Assigner, Alloc and Callback are required
//
// Returns:
//   - *Hierarchy: Built but not yet running hierarchy
//   - error: types.ErrInvalidConfig or types.ErrCallbackRequired
func New(cfg Config) (*Hierarchy, error) {
	if cfg.Assigner == nil || cfg.Alloc == nil {
		return nil, types.ErrInvalidConfig
	}
	if cfg.Callback == nil {
		return nil, types.ErrCallbackRequired
	}
	if cfg.QueueCapacity < 1 {
		cfg.QueueCapacity = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNop()
	}

	h := &Hierarchy{
		cfg:    cfg,
		nodes:  xsync.NewMap[types.NodeID, *Node](),
		routes: xsync.NewMap[types.GroupID, *Node](),
		stopCh: make(chan struct{}),
	}
	h.ctx, h.cancel = context.WithCancel(context.Background())

	h.root = h.newNode(nil, -1, nil)

	for g := 0; g < cfg.Alloc.Groups(); g++ {
		units, err := cfg.Alloc.UnitsFor(types.GroupID(g))
		if err != nil {
			return nil, err
		}

		n := h.newNode(h.root, types.GroupID(g), units)
		h.routes.Store(types.GroupID(g), n)
	}

	level1 := cfg.Alloc.Groups()
	if cfg.WorkerBudget < level1 {
		cfg.WorkerBudget = level1
	}
	h.budget.Store(int64(cfg.WorkerBudget - level1))

	return h, nil
}

// newNode allocates a node from the arena and links it under parent.
// Children of non-root parents share the parent's queue.
func (h *Hierarchy) newNode(parent *Node, group types.GroupID, units []types.UnitID) *Node {
	n := &Node{
		id:     types.NodeID(h.nextID.Add(1)),
		group:  group,
		units:  units,
		parent: parent,
	}

	switch {
	case parent == nil:
		n.level = 0
		n.queue = newWorkQueue(h.cfg.QueueCapacity)
		n.ownsQueue = true
	case parent == h.root:
		n.level = 1
		n.queue = newWorkQueue(h.cfg.QueueCapacity)
		n.ownsQueue = true
	default:
		n.level = parent.level + 1
		n.queue = parent.queue
		n.ownsQueue = false
	}

	n.setState(types.NodeCreated)
	h.nodes.Store(n.id, n)
	if parent != nil {
		parent.addChild(n)
	}

	for {
		cur := h.maxLevel.Load()
		if int64(n.level) <= cur || h.maxLevel.CompareAndSwap(cur, int64(n.level)) {
			break
		}
	}

	return n
}

// Start launches every node's execution contexts. It must be called exactly
// once.
func (h *Hierarchy) Start() {
	h.nodes.Range(func(_ types.NodeID, n *Node) bool {
		h.startNode(n)
		return true
	})

	h.cfg.Logger.Info("hierarchy started",
		"nodes", h.nodes.Size(),
		"queue_capacity", h.cfg.QueueCapacity,
		"max_depth", h.cfg.MaxDepth,
	)
}

// startNode launches one goroutine per execution unit allocated to the node.
// The root and spawned children run a single goroutine.
func (h *Hierarchy) startNode(n *Node) {
	n.setState(types.NodeStarted)

	contexts := max(len(n.units), 1)
	for i := 0; i < contexts; i++ {
		n.active.Add(1)
		h.wg.Add(1)
		go h.runNode(n)
	}
}

// Submit routes a key to the node owning its group and enqueues it.
//
// Keys whose owner has left the routing table (after a fault) go to the
// root node. Submit blocks when the target queue is full, bounded by ctx.
//
// Returns:
//   - error: types.ErrNodeStopped after StopAll, or ctx.Err()
func (h *Hierarchy) Submit(ctx context.Context, key types.PartitionKey) error {
	if h.stopping.Load() {
		return types.ErrNodeStopped
	}

	group := h.cfg.Assigner.Group(key)
	n, ok := h.routes.Load(group)
	if !ok {
		n = h.root
	}

	if err := n.queue.push(ctx, key); err != nil {
		return err
	}

	// The owner can fault between the route lookup and the push, leaving
	// the key in a queue nothing consumes. Move strays to the parent.
	if n.faulted.Load() {
		if _, err := h.drainToParent(ctx, n); err != nil {
			return err
		}
	}

	depth := n.queue.len()
	h.cfg.Metrics.RecordQueueDepth(n.id, depth)

	if h.cfg.SpawnThreshold > 0 && depth > h.cfg.SpawnThreshold {
		h.maybeSpawn(n)
	}

	return nil
}

// maybeSpawn adds a child consumer to an overloaded node when depth and
// budget allow. Failures are expected steady-state conditions and only
// logged at debug level.
func (h *Hierarchy) maybeSpawn(n *Node) {
	if _, err := h.SpawnChild(n); err != nil {
		h.cfg.Logger.Debug("spawn skipped", "node", n.String(), "cause", err)
	}
}

// SpawnChild spawns a child that consumes the given node's queue.
//
// Parameters:
//   - n: Overloaded parent node
//
// Returns:
//   - *Node: The started child
//   - error: types.ErrMaxDepthReached, types.ErrNoUnitBudget or types.ErrNodeStopped
func (h *Hierarchy) SpawnChild(n *Node) (*Node, error) {
	if h.stopping.Load() {
		return nil, types.ErrNodeStopped
	}
	if n.level+1 > h.cfg.MaxDepth {
		return nil, types.ErrMaxDepthReached
	}
	if h.budget.Add(-1) < 0 {
		h.budget.Add(1)
		return nil, types.ErrNoUnitBudget
	}

	child := h.newNode(n, n.group, nil)
	h.startNode(child)

	h.cfg.Metrics.RecordSpawn(child.level)
	h.cfg.Logger.Debug("spawned child",
		"child", child.String(),
		"parent", n.String(),
		"queue_len", n.queue.len(),
	)

	return child, nil
}

// runNode is one execution context of a node: drain the node's queue, steal
// from siblings, otherwise wait. The loop exits on fault, context
// cancellation, or when a graceful stop finds nothing left to do. The last
// context to exit marks the node stopped.
func (h *Hierarchy) runNode(n *Node) {
	defer func() {
		if n.active.Add(-1) == 0 {
			n.setState(types.NodeStopped)
		}
		h.wg.Done()
	}()

	n.setState(types.NodeRunning)

	idle := time.NewTimer(idlePollInterval)
	defer idle.Stop()

	for {
		// Cancellation abandons queued work; only the stop path drains.
		if h.ctx.Err() != nil || n.faulted.Load() {
			return
		}

		key, ok := n.queue.tryPop()
		if !ok {
			key, ok = h.steal(n)
		}
		if ok {
			if !h.process(n, key) {
				return
			}
			continue
		}

		if h.stopping.Load() {
			return
		}

		if !idle.Stop() {
			select {
			case <-idle.C:
			default:
			}
		}
		idle.Reset(idlePollInterval)

		select {
		case <-h.ctx.Done():
			return
		case <-h.stopCh:
			// Re-check the queue once before exiting.
		case key := <-n.queue.ch:
			if !h.process(n, key) {
				return
			}
		case <-idle.C:
			// Retry steal.
		}
	}
}

// steal takes one key from a busy sibling's queue. Only siblings that own
// their queue and hold at least two items are victims, visited in ascending
// node id order so contention is deterministic.
func (h *Hierarchy) steal(n *Node) (types.PartitionKey, bool) {
	if n.parent == nil {
		return 0, false
	}

	for _, sib := range n.parent.childrenSnapshot() {
		if sib == n || !sib.ownsQueue || sib.queue == n.queue {
			continue
		}
		if sib.queue.len() < 2 {
			continue
		}

		key, ok := sib.queue.tryPop()
		if !ok {
			continue
		}

		n.stealsMade.Add(1)
		sib.stealsReceived.Add(1)
		h.cfg.Metrics.RecordSteal(n.level)

		return key, true
	}

	return 0, false
}

// process runs the callback for one key. It returns false when the callback
// faulted and the execution context must exit.
func (h *Hierarchy) process(n *Node, key types.PartitionKey) bool {
	start := time.Now()
	err := h.cfg.Callback(h.ctx, key, h.cfg.Regions)
	if err != nil {
		h.fault(n, key, err)
		return false
	}

	n.tasksDone.Add(1)
	h.cfg.Metrics.RecordTaskDone(h.cfg.Assigner.Group(key), time.Since(start).Seconds())

	return true
}

// fault handles a callback error: the node leaves the routing table, its
// remaining queue drains to its parent, and the node stops. Siblings are
// never affected.
func (h *Hierarchy) fault(n *Node, key types.PartitionKey, err error) {
	n.faults.Add(1)
	n.setFaultErr(err)
	n.setState(types.NodeStopping)
	n.faulted.Store(true)

	// Reroute this node's group to its parent before draining, so
	// concurrent submits stop feeding the dead queue.
	if n.group >= 0 {
		if owner, ok := h.routes.Load(n.group); ok && owner == n {
			h.routes.Delete(n.group)
		}
	}

	redistributed, _ := h.drainToParent(h.ctx, n)

	n.setState(types.NodeStopped)

	h.cfg.Metrics.RecordNodeFault(n.group, redistributed)
	h.cfg.Logger.Error("node faulted",
		"node", n.String(),
		"key", uint64(key),
		"redistributed", redistributed,
		"error", err,
	)

	if h.cfg.OnFault != nil {
		h.cfg.OnFault(n.id, n.group, redistributed, err)
	}
}

// drainToParent moves every queued key on n to its parent. A full parent
// queue blocks instead of dropping keys, bounded by ctx.
//
// Returns:
//   - int: Number of keys moved
//   - error: ctx.Err() when the move was cut short; remaining keys are lost
func (h *Hierarchy) drainToParent(ctx context.Context, n *Node) (int, error) {
	if n.parent == nil || !n.ownsQueue {
		return 0, nil
	}

	keys := n.queue.drain()
	for i, k := range keys {
		if n.parent.queue.tryPush(k) {
			continue
		}
		if err := n.parent.queue.push(ctx, k); err != nil {
			h.cfg.Logger.Warn("redistribution cut short",
				"node", n.String(),
				"moved", i,
				"lost", len(keys)-i,
				"error", err,
			)

			return i, err
		}
	}

	return len(keys), nil
}

// StopAll shuts the hierarchy down.
//
// Nodes first drain their queues. With grace > 0 the drain is bounded: nodes
// still running when it elapses are cancelled, queued work is abandoned, and
// StopAll returns types.ErrStopTimeout. grace == 0 is an already-elapsed
// deadline: callbacks are cancelled immediately and any node that cannot
// join promptly makes StopAll return types.ErrStopTimeout. grace < 0 waits
// for a full drain without bound.
//
// Parameters:
//   - grace: Drain deadline
//
// Returns:
//   - error: types.ErrStopTimeout when the grace period elapsed
func (h *Hierarchy) StopAll(grace time.Duration) error {
	h.stopping.Store(true)
	h.stopOnce.Do(func() {
		close(h.stopCh)
		h.nodes.Range(func(_ types.NodeID, n *Node) bool {
			if n.State() == types.NodeRunning {
				n.setState(types.NodeStopping)
			}
			return true
		})
	})

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	if grace < 0 {
		<-done
		h.cancel()
		h.freeNodes()
		return nil
	}

	if grace > 0 {
		timer := time.NewTimer(grace)
		defer timer.Stop()

		select {
		case <-done:
			h.cancel()
			h.freeNodes()
			return nil
		case <-timer.C:
		}
	}

	// The deadline elapsed (grace == 0 starts elapsed). Cancel in-flight
	// callbacks and give the contexts a short window to join; whatever is
	// still running afterwards is abandoned.
	h.cancel()
	joined := true
	select {
	case <-done:
	case <-time.After(stopJoinWait):
		joined = false
	}
	h.freeNodes()

	if grace == 0 && joined {
		return nil
	}

	return types.ErrStopTimeout
}

// freeNodes marks every joined node freed. Children are spawned after their
// parents and all contexts have returned by now, so a single pass suffices.
func (h *Hierarchy) freeNodes() {
	h.nodes.Range(func(_ types.NodeID, n *Node) bool {
		if n.State() == types.NodeStopped {
			n.setState(types.NodeFreed)
		}
		return true
	})
}

// Root returns the root node.
func (h *Hierarchy) Root() *Node {
	return h.root
}

// Node looks up a node by id.
func (h *Hierarchy) Node(id types.NodeID) (*Node, bool) {
	return h.nodes.Load(id)
}

// RouteFor returns the node currently routing a group, or the root when the
// group's owner has faulted.
func (h *Hierarchy) RouteFor(group types.GroupID) *Node {
	if n, ok := h.routes.Load(group); ok {
		return n
	}

	return h.root
}

// Len returns the total number of nodes ever created, including the root.
func (h *Hierarchy) Len() int {
	return h.nodes.Size()
}

// Depth returns the deepest node level in the tree (root is 0).
func (h *Hierarchy) Depth() int {
	return int(h.maxLevel.Load())
}

// Stats captures a point-in-time view of every node plus aggregate counters.
func (h *Hierarchy) Stats() types.Stats {
	stats := types.Stats{Nodes: make(map[types.NodeID]types.NodeStats, h.nodes.Size())}

	h.nodes.Range(func(id types.NodeID, n *Node) bool {
		ns := n.stats()
		stats.Nodes[id] = ns
		stats.TasksDone += ns.TasksDone
		stats.StealsMade += ns.StealsMade
		stats.Errors += ns.Errors

		return true
	})

	return stats
}
