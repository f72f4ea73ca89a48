// Package worktree provides a hierarchical worker scheduler with
// deterministic key-to-group partitioning and tiered shared memory regions.
//
// Work items are identified by opaque uint64 keys. Every key routes to a
// logical partition group (key mod Groups), groups are allocated onto
// execution units once at startup, and a tree of worker nodes executes the
// callback for each submitted key. Nodes steal from busy siblings when
// idle, spawn child consumers when their queue backs up, and on a callback
// fault drain their remaining work to their parent so siblings are never
// affected.
//
// # Quick Start
//
// Basic usage with default settings:
//
//	import "github.com/arloliu/worktree"
//
//	cfg := worktree.DefaultConfig()
//	cfg.Groups = 12
//
//	sched, err := worktree.NewScheduler(cfg, func(ctx context.Context, key types.PartitionKey, regions []types.Region) error {
//	    return process(key)
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := sched.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer sched.Stop()
//
//	h, _ := sched.Acquire()
//	defer h.Close()
//	_ = h.Submit(ctx, 144000, 144001, 287999)
//
// # Key Features
//
//   - Deterministic Routing: key mod Groups, stable across runs and restarts
//   - Static Allocation: groups map onto execution units once, with dedicated
//     units spread floor/ceil when units suffice and round-robin otherwise
//   - Work Stealing: idle nodes take single items from busy siblings
//   - Fault Isolation: a failing callback stops only its node; queued work
//     drains to the parent for redistribution
//   - Tiered Shared Memory: read-only, copy-on-write and locked-write
//     regions with versioning and checksummed snapshots
//
// # Architecture
//
// A scheduler progresses through a state machine:
//
//	Init → Allocating → Building → Running → Stopping → Stopped
//
// Start computes the allocation and builds the node tree: a root node for
// orphaned work plus one level-1 node per group, each running one execution
// context per unit its group is allocated. Submissions
// enter through handles and enqueue on the owning node; deeper nodes are
// spawned on demand up to the configured depth and worker budget.
//
// # Advanced Usage
//
// Shared regions and lifecycle hooks:
//
//	cfg := worktree.DefaultConfig()
//	cfg.Regions = []worktree.RegionSpec{
//	    {Size: 1 << 20, Mode: region.ModeCopyOnWrite},
//	    {Size: 4096, Mode: region.ModeLockedWrite},
//	}
//
//	hooks := &types.Hooks{
//	    OnNodeFault: func(ctx context.Context, node types.NodeID, group types.GroupID, redistributed int, err error) error {
//	        return alertOps(node, err)
//	    },
//	}
//
//	sched, err := worktree.NewScheduler(cfg, callback,
//	    worktree.WithHooks(hooks),
//	    worktree.WithMetrics(metrics.NewPrometheus(nil, "myapp")),
//	    worktree.WithLogger(logging.NewSlogDefault()),
//	)
package worktree
