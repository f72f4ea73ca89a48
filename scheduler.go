package worktree

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/arloliu/worktree/alloc"
	"github.com/arloliu/worktree/internal/hierarchy"
	"github.com/arloliu/worktree/internal/logging"
	"github.com/arloliu/worktree/internal/metrics"
	"github.com/arloliu/worktree/partition"
	"github.com/arloliu/worktree/region"
	"github.com/arloliu/worktree/types"
)

// validTransitions defines the scheduler's legal state transitions.
// StateFatal is reachable from every non-terminal state and is handled
// separately in transition.
var validTransitions = map[types.State][]types.State{
	types.StateInit:       {types.StateAllocating},
	types.StateAllocating: {types.StateBuilding},
	types.StateBuilding:   {types.StateRunning},
	types.StateRunning:    {types.StateStopping},
	types.StateStopping:   {types.StateStopped},
	types.StateStopped:    {},
	types.StateFatal:      {},
}

func isValidTransition(from, to types.State) bool {
	if to == types.StateFatal {
		return from != types.StateStopped && from != types.StateFatal
	}

	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}

	return false
}

// Scheduler coordinates partition assignment, thread allocation, the worker
// hierarchy and shared memory regions behind one lifecycle.
//
// A Scheduler is single-use: Start once, Stop once. All exported methods are
// safe for concurrent use.
type Scheduler struct {
	cfg      Config
	opts     schedulerOptions
	callback types.ProcessFunc

	mu             sync.Mutex
	state          types.State
	lastTransition time.Time

	assigner *partition.Assigner
	allocMap *alloc.Map
	hier     *hierarchy.Hierarchy
	regions  []*region.Region

	handles *handleRegistry

	// lifecycle context handed to hooks; cancelled when the scheduler stops.
	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler creates a Scheduler for the given configuration and callback.
//
// Missing configuration values are defaulted via SetDefaults before
// validation. The scheduler starts in StateInit; no resources are allocated
// until Start.
//
// Parameters:
//   - cfg: Scheduler configuration
//   - callback: Unit-of-work callback invoked once per submitted key
//   - opts: Optional logger, metrics and hooks
//
// Returns:
//   - *Scheduler: Initialized scheduler in StateInit
//   - error: ErrCallbackRequired or a validation error
//
// Example:
//
//	cfg := worktree.DefaultConfig()
//	cfg.Regions = []worktree.RegionSpec{{Size: 4096, Mode: region.ModeCopyOnWrite}}
//	sched, err := worktree.NewScheduler(cfg, processKey)
//	if err != nil {
//	    return err
//	}
//	if err := sched.Start(ctx); err != nil {
//	    return err
//	}
//	defer sched.Stop()
func NewScheduler(cfg Config, callback types.ProcessFunc, opts ...Option) (*Scheduler, error) {
	if callback == nil {
		return nil, types.ErrCallbackRequired
	}

	SetDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options := schedulerOptions{
		logger:  logging.NewNop(),
		metrics: metrics.NewNop(),
	}
	for _, opt := range opts {
		opt(&options)
	}

	cfg.ValidateWithWarnings(options.logger)

	s := &Scheduler{
		cfg:            cfg,
		opts:           options,
		callback:       callback,
		state:          types.StateInit,
		lastTransition: time.Now(),
		handles:        newHandleRegistry(),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	return s, nil
}

// State returns the scheduler's current lifecycle state.
func (s *Scheduler) State() types.State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// transition moves the scheduler to a new state, recording metrics and
// firing the OnStateChanged hook. Callers must not hold s.mu.
func (s *Scheduler) transition(to types.State) error {
	s.mu.Lock()
	from := s.state
	if !isValidTransition(from, to) {
		s.mu.Unlock()
		return fmt.Errorf("%w: invalid transition %s -> %s", types.ErrInvalidConfig, from, to)
	}
	elapsed := time.Since(s.lastTransition)
	s.state = to
	s.lastTransition = time.Now()
	s.mu.Unlock()

	s.opts.metrics.RecordStateTransition(from, to, elapsed.Seconds())
	s.opts.logger.Info("state changed", "from", from.String(), "to", to.String())

	if s.opts.hooks != nil && s.opts.hooks.OnStateChanged != nil {
		hook := s.opts.hooks.OnStateChanged
		go func() {
			if err := hook(s.ctx, from, to); err != nil {
				s.opts.logger.Warn("OnStateChanged hook failed", "error", err)
			}
		}()
	}

	return nil
}

// fatal force-moves the scheduler into StateFatal.
func (s *Scheduler) fatal(cause error) {
	if err := s.transition(types.StateFatal); err != nil {
		return
	}

	s.opts.logger.Error("scheduler entered fatal state", "cause", cause)
	s.fireOnError(cause)
}

func (s *Scheduler) fireOnError(err error) {
	if s.opts.hooks == nil || s.opts.hooks.OnError == nil {
		return
	}

	hook := s.opts.hooks.OnError
	go func() {
		if hookErr := hook(s.ctx, err); hookErr != nil {
			s.opts.logger.Warn("OnError hook failed", "error", hookErr)
		}
	}()
}

// Start computes the allocation, builds the hierarchy and regions, and
// launches all worker nodes.
//
// The scheduler moves Init -> Allocating -> Building -> Running. Any failure
// moves it to StateFatal and tears down whatever was built.
//
// Parameters:
//   - ctx: Context bounding startup only; it does not govern the scheduler's
//     lifetime
//
// Returns:
//   - error: ErrAlreadyStarted, or the wrapped cause of a startup failure
func (s *Scheduler) Start(ctx context.Context) error {
	start := time.Now()

	s.mu.Lock()
	if s.state != types.StateInit {
		s.mu.Unlock()
		return types.ErrAlreadyStarted
	}
	s.mu.Unlock()

	if err := s.transition(types.StateAllocating); err != nil {
		return err
	}

	if err := s.allocate(); err != nil {
		s.fatal(err)
		return err
	}

	if err := s.transition(types.StateBuilding); err != nil {
		return err
	}

	if err := s.build(ctx); err != nil {
		s.destroyRegions()
		s.fatal(err)
		return err
	}

	if err := s.transition(types.StateRunning); err != nil {
		return err
	}

	s.opts.metrics.RecordStartDuration(time.Since(start).Seconds())
	s.opts.logger.Info("scheduler started",
		"groups", s.cfg.Groups,
		"units", s.cfg.Units,
		"strategy", s.allocMap.Strategy().String(),
		"nodes", s.hier.Len(),
		"regions", len(s.regions),
	)

	return nil
}

// allocate builds the assigner and the group-to-unit allocation map.
func (s *Scheduler) allocate() error {
	var popts []partition.Option
	if s.cfg.Boundary.Ceiling != 0 {
		popts = append(popts, partition.WithBoundaryCeiling(s.cfg.Boundary.Ceiling))
	}
	if s.cfg.Boundary.Window != 0 {
		popts = append(popts, partition.WithBoundaryWindow(s.cfg.Boundary.Window))
	}
	if s.cfg.Boundary.Correction != 0 {
		correction := s.cfg.Boundary.Correction
		if correction < 0 {
			correction = 0
		}
		popts = append(popts, partition.WithBoundaryCorrection(correction))
	}

	assigner, err := partition.New(s.cfg.Groups, popts...)
	if err != nil {
		return fmt.Errorf("create assigner: %w", err)
	}

	allocMap, err := alloc.New(s.cfg.Units, s.cfg.Groups)
	if err != nil {
		return fmt.Errorf("compute allocation: %w", err)
	}
	if err := allocMap.Validate(); err != nil {
		return fmt.Errorf("allocation coverage: %w", err)
	}

	s.mu.Lock()
	s.assigner = assigner
	s.allocMap = allocMap
	s.mu.Unlock()

	return nil
}

// build creates the shared regions and the worker hierarchy, then starts
// every node.
func (s *Scheduler) build(_ context.Context) error {
	regions := make([]*region.Region, 0, len(s.cfg.Regions))
	regionViews := make([]types.Region, 0, len(s.cfg.Regions))
	for i, spec := range s.cfg.Regions {
		r, err := region.New(spec.Size, spec.Mode,
			region.WithLockWait(s.cfg.LockWait),
			region.WithLogger(s.opts.logger),
			region.WithMetrics(s.opts.metrics),
		)
		if err != nil {
			for _, built := range regions {
				built.Destroy()
			}
			return fmt.Errorf("create region %d: %w", i, err)
		}
		regions = append(regions, r)
		regionViews = append(regionViews, r)
	}

	s.mu.Lock()
	s.regions = regions
	s.mu.Unlock()

	spawnThreshold := s.cfg.SpawnThreshold
	if spawnThreshold < 0 {
		spawnThreshold = 0
	}

	h, err := hierarchy.New(hierarchy.Config{
		Assigner:       s.assigner,
		Alloc:          s.allocMap,
		Callback:       s.callback,
		Regions:        regionViews,
		QueueCapacity:  s.cfg.QueueCapacity,
		MaxDepth:       s.cfg.MaxDepth,
		SpawnThreshold: spawnThreshold,
		WorkerBudget:   s.cfg.WorkerBudget,
		OnFault:        s.onNodeFault,
		Logger:         s.opts.logger,
		Metrics:        s.opts.metrics,
	})
	if err != nil {
		return fmt.Errorf("build hierarchy: %w", err)
	}

	s.mu.Lock()
	s.hier = h
	s.mu.Unlock()
	h.Start()

	return nil
}

// onNodeFault relays a node fault to the configured hooks.
func (s *Scheduler) onNodeFault(node types.NodeID, group types.GroupID, redistributed int, err error) {
	s.fireOnError(fmt.Errorf("%w: node %d group %d: %w", types.ErrWorkerFault, node, group, err))

	if s.opts.hooks == nil || s.opts.hooks.OnNodeFault == nil {
		return
	}

	hook := s.opts.hooks.OnNodeFault
	go func() {
		if hookErr := hook(s.ctx, node, group, redistributed, err); hookErr != nil {
			s.opts.logger.Warn("OnNodeFault hook failed", "error", hookErr)
		}
	}()
}

// Submit routes keys to their owning worker nodes.
//
// Each key maps to group (key mod Groups) and enqueues on the node owning
// that group. Submission blocks while the owning queue is full, bounded by
// ctx. Keys whose owner faulted are executed by the root node.
//
// Parameters:
//   - ctx: Context bounding the enqueue
//   - keys: Partition keys to process
//
// Returns:
//   - error: ErrNotStarted unless the scheduler is running, or ctx.Err()
func (s *Scheduler) Submit(ctx context.Context, keys ...types.PartitionKey) error {
	if s.State() != types.StateRunning {
		return types.ErrNotStarted
	}

	for _, key := range keys {
		if err := s.hier.Submit(ctx, key); err != nil {
			return err
		}
	}

	return nil
}

// Stop gracefully shuts the scheduler down.
//
// Worker queues drain within the configured stop grace. If the grace elapses
// (a zero grace starts elapsed and cancels immediately) the remaining work is
// abandoned, the scheduler enters StateFatal and Stop returns ErrStopTimeout;
// otherwise it enters StateStopped. Regions are
// destroyed either way. Stop is not idempotent: a second call returns
// ErrNotStarted.
//
// Returns:
//   - error: ErrNotStarted or ErrStopTimeout
func (s *Scheduler) Stop() error {
	start := time.Now()

	if err := s.transition(types.StateStopping); err != nil {
		return types.ErrNotStarted
	}

	s.handles.closeAll()

	stopErr := s.hier.StopAll(s.cfg.StopGrace)
	s.destroyRegions()
	s.cancel()

	graceful := stopErr == nil
	s.opts.metrics.RecordStopDuration(time.Since(start).Seconds(), graceful)

	if !graceful {
		s.fatal(stopErr)
		return stopErr
	}

	if err := s.transition(types.StateStopped); err != nil {
		return err
	}

	s.opts.logger.Info("scheduler stopped", "duration", time.Since(start))

	return nil
}

func (s *Scheduler) destroyRegions() {
	for _, r := range s.regions {
		r.Destroy()
	}
}

// Stats returns a point-in-time view of every node plus aggregate counters.
//
// Returns:
//   - types.Stats: Per-node and aggregate counters
//   - error: ErrNotStarted before Start
func (s *Scheduler) Stats() (types.Stats, error) {
	s.mu.Lock()
	h := s.hier
	s.mu.Unlock()

	if h == nil {
		return types.Stats{}, types.ErrNotStarted
	}

	return h.Stats(), nil
}

// Snapshot captures every configured region.
//
// Snapshots are taken in declaration order; each carries the region's
// version and an integrity checksum.
//
// Returns:
//   - []*region.Snapshot: One snapshot per region
//   - error: ErrNotStarted before Start, or the first capture failure
func (s *Scheduler) Snapshot() ([]*region.Snapshot, error) {
	if s.State() == types.StateInit {
		return nil, types.ErrNotStarted
	}

	snaps := make([]*region.Snapshot, 0, len(s.regions))
	for i, r := range s.regions {
		snap, err := r.Snapshot()
		if err != nil {
			return nil, fmt.Errorf("snapshot region %d: %w", i, err)
		}
		snaps = append(snaps, snap)
	}

	return snaps, nil
}

// Region returns the i-th configured region, or nil when out of range.
func (s *Scheduler) Region(i int) *region.Region {
	if i < 0 || i >= len(s.regions) {
		return nil
	}

	return s.regions[i]
}

// EstimateWorkload returns the per-group workload estimate for a key range,
// and the balance factor the current allocation achieves for it.
//
// Parameters:
//   - start: Inclusive lower bound of the key range
//   - end: Exclusive upper bound of the key range
//
// Returns:
//   - float64: Estimated work items per group
//   - float64: Allocation balance factor in [0, 1]
//   - error: ErrNotStarted before Start
func (s *Scheduler) EstimateWorkload(start, end types.PartitionKey) (float64, float64, error) {
	s.mu.Lock()
	assigner, allocMap := s.assigner, s.allocMap
	s.mu.Unlock()

	if assigner == nil || allocMap == nil {
		return 0, 0, types.ErrNotStarted
	}

	perGroup := assigner.EstimateWorkload(start, end)
	workloads := make([]float64, s.cfg.Groups)
	for g := range workloads {
		workloads[g] = perGroup
	}

	return perGroup, allocMap.BalanceFactor(workloads), nil
}
