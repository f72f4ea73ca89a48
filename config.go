package worktree

import (
	"fmt"
	"runtime"
	"time"

	"github.com/arloliu/worktree/partition"
	"github.com/arloliu/worktree/region"
	"github.com/arloliu/worktree/types"
)

// BoundaryConfig tunes the workload-estimation boundary zone.
//
// The zone only affects load balancing hints; routing never depends on it.
// Zero values fall back to the partition package defaults.
type BoundaryConfig struct {
	// Ceiling is the key value the zone is centered on (0 = package default).
	Ceiling uint64 `yaml:"ceiling"`

	// Window is the half-width of the zone in keys (0 = package default).
	Window uint64 `yaml:"window"`

	// Correction is the adjustment constant applied inside the zone
	// (0 = package default; set a negative value to disable).
	Correction float64 `yaml:"correction"`
}

// RegionSpec declares one shared memory region the scheduler creates at
// Start and destroys at Stop. Regions are passed to every callback in
// declaration order.
type RegionSpec struct {
	// Size is the region buffer size in bytes.
	Size int `yaml:"size"`

	// Mode is the region's concurrency mode.
	Mode region.Mode `yaml:"mode"`
}

// Config is the configuration for the Scheduler.
//
// All duration fields accept standard Go duration strings like "30s", "5m".
type Config struct {
	// Groups is the number of logical partition groups keys route across.
	// Every key maps to group (key mod Groups). Recommended: 12.
	Groups int `yaml:"groups"`

	// Units is the number of hardware execution units to allocate workers
	// onto. With Units >= Groups every group gets dedicated units, with any
	// surplus spread floor/ceil so group counts differ by at most one; with
	// fewer units groups share units round-robin.
	// Default: runtime.NumCPU().
	Units int `yaml:"units"`

	// QueueCapacity bounds each worker node's key queue. Submissions block
	// when the owning queue is full. Recommended: 1000.
	QueueCapacity int `yaml:"queueCapacity"`

	// MaxDepth is the deepest allowed node level. The root sits at level 0
	// and level-1 nodes carry routed work, so MaxDepth must be >= 1.
	// Recommended: 3.
	MaxDepth int `yaml:"maxDepth"`

	// SpawnThreshold is the queue depth above which a node spawns a child
	// consumer, subject to MaxDepth and WorkerBudget. Set to -1 to disable
	// spawning; 0 selects the default of QueueCapacity/2.
	SpawnThreshold int `yaml:"spawnThreshold"`

	// WorkerBudget caps the total number of worker nodes, including the
	// level-1 set. 0 selects Units; values below Groups are raised to
	// Groups so every level-1 node fits.
	WorkerBudget int `yaml:"workerBudget"`

	// StopGrace is how long Stop waits for queues to drain before
	// cancelling outstanding work. Zero cancels immediately and Stop
	// reports ErrStopTimeout when workers cannot join promptly. Negative
	// waits without bound. Recommended: 10 seconds.
	StopGrace time.Duration `yaml:"stopGrace"`

	// LockWait bounds locked-write region acquisition.
	// Recommended: 1 second.
	LockWait time.Duration `yaml:"lockWait"`

	// Boundary tunes the workload-estimation boundary zone.
	Boundary BoundaryConfig `yaml:"boundary"`

	// Regions declares the shared memory regions handed to callbacks.
	// May be empty.
	Regions []RegionSpec `yaml:"regions"`
}

// DefaultConfig returns a Config with sensible defaults.
//
// Returns:
//   - Config: Configuration with default values
func DefaultConfig() Config {
	return Config{
		Groups:        partition.DefaultGroups,
		Units:         runtime.NumCPU(),
		QueueCapacity: 1000,
		MaxDepth:      3,
		StopGrace:     10 * time.Second,
		LockWait:      region.DefaultLockWait,
	}
}

// SetDefaults fills in missing configuration values with production defaults.
//
// Parameters:
//   - cfg: Config to apply defaults to (modified in place)
func SetDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.Groups == 0 {
		cfg.Groups = defaults.Groups
	}
	if cfg.Units == 0 {
		cfg.Units = defaults.Units
	}
	if cfg.QueueCapacity == 0 {
		cfg.QueueCapacity = defaults.QueueCapacity
	}
	if cfg.MaxDepth == 0 {
		cfg.MaxDepth = defaults.MaxDepth
	}
	if cfg.SpawnThreshold == 0 {
		cfg.SpawnThreshold = cfg.QueueCapacity / 2
	}
	if cfg.WorkerBudget == 0 {
		cfg.WorkerBudget = cfg.Units
	}
	// A StopGrace of 0 is valid (cancel immediately), so no default is
	// applied; DefaultConfig carries the recommended 10s.
	if cfg.LockWait == 0 {
		cfg.LockWait = defaults.LockWait
	}
	// A zero Boundary is valid: the partition package applies its own
	// defaults, so nothing to fill here.
}

// Validate checks configuration constraints and returns an error for
// invalid values.
//
// Hard Validation Rules:
//   - Groups >= 1 (routing needs at least one group)
//   - Units >= 1 (workers need at least one execution unit)
//   - QueueCapacity >= 1 (submission needs somewhere to queue)
//   - MaxDepth >= 1 (level-1 nodes carry all routed work)
//   - SpawnThreshold <= QueueCapacity (threshold must be reachable)
//   - every region spec has Size >= 1 and a known Mode
//
// Returns:
//   - error: Validation error with clear explanation, nil if valid
func (cfg *Config) Validate() error {
	if cfg.Groups < 1 {
		return fmt.Errorf("%w: Groups must be >= 1, got %d", types.ErrInvalidGroupCount, cfg.Groups)
	}
	if cfg.Units < 1 {
		return fmt.Errorf("%w: Units must be >= 1, got %d", types.ErrInvalidParallelism, cfg.Units)
	}
	if cfg.QueueCapacity < 1 {
		return fmt.Errorf("%w: QueueCapacity must be >= 1, got %d", types.ErrInvalidConfig, cfg.QueueCapacity)
	}
	if cfg.MaxDepth < 1 {
		return fmt.Errorf("%w: MaxDepth must be >= 1, got %d", types.ErrInvalidConfig, cfg.MaxDepth)
	}
	if cfg.SpawnThreshold > cfg.QueueCapacity {
		return fmt.Errorf(
			"%w: SpawnThreshold (%d) must not exceed QueueCapacity (%d)",
			types.ErrInvalidConfig, cfg.SpawnThreshold, cfg.QueueCapacity,
		)
	}

	for i, spec := range cfg.Regions {
		if spec.Size < 1 {
			return fmt.Errorf("%w: region %d size must be >= 1, got %d", types.ErrInvalidRegionSize, i, spec.Size)
		}
		if spec.Mode < region.ModeReadOnly || spec.Mode > region.ModeLockedWrite {
			return fmt.Errorf("%w: region %d has unknown mode %d", types.ErrInvalidConfig, i, spec.Mode)
		}
	}

	return nil
}

// ValidateWithWarnings checks configuration and logs warnings for
// non-recommended values.
//
// This is called after Validate() in NewScheduler() to provide operator
// guidance.
//
// Parameters:
//   - logger: Logger instance for warning output
func (cfg *Config) ValidateWithWarnings(logger types.Logger) {
	// Warn when groups cannot all get dedicated nodes.
	if cfg.Units < cfg.Groups {
		logger.Warn(
			"fewer execution units than groups, groups will share worker nodes",
			"units", cfg.Units,
			"groups", cfg.Groups,
			"recommended", cfg.Groups,
		)
	}

	// Warn when a short stop grace is likely to abandon queued work.
	if cfg.StopGrace > 0 && cfg.StopGrace < time.Second {
		logger.Warn(
			"StopGrace is very short, queued work may be abandoned on stop",
			"stopGrace", cfg.StopGrace,
			"recommended", "10s or higher",
		)
	}
}

// TestConfig returns a configuration optimized for fast test execution.
//
// Small queues and short waits keep tests fast without changing semantics.
// Use DefaultConfig() for production deployments.
//
// Returns:
//   - Config: Configuration with fast timings for tests
//
// Example:
//
//	cfg := worktree.TestConfig()
//	cfg.Groups = 4
//	sched, err := worktree.NewScheduler(cfg, callback)
func TestConfig() Config {
	cfg := DefaultConfig()

	cfg.Units = 4
	cfg.Groups = 4
	cfg.QueueCapacity = 64
	cfg.StopGrace = 2 * time.Second
	cfg.LockWait = 100 * time.Millisecond

	return cfg
}
