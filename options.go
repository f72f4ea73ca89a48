package worktree

import "github.com/arloliu/worktree/types"

// Option configures a Scheduler with optional dependencies.
type Option func(*schedulerOptions)

// schedulerOptions holds optional Scheduler configuration.
type schedulerOptions struct {
	hooks   *types.Hooks
	metrics types.MetricsCollector
	logger  types.Logger
}

// WithHooks sets lifecycle event hooks.
//
// Parameters:
//   - hooks: Hooks structure with callback functions
//
// Returns:
//   - Option: Functional option for NewScheduler
//
// Example:
//
//	hooks := &types.Hooks{
//	    OnNodeFault: func(ctx context.Context, node types.NodeID, group types.GroupID, redistributed int, err error) error {
//	        return alertOps(node, err)
//	    },
//	}
//	sched, err := worktree.NewScheduler(cfg, callback, worktree.WithHooks(hooks))
func WithHooks(hooks *types.Hooks) Option {
	return func(o *schedulerOptions) {
		o.hooks = hooks
	}
}

// WithMetrics sets a metrics collector.
//
// Parameters:
//   - metrics: MetricsCollector implementation
//
// Returns:
//   - Option: Functional option for NewScheduler
//
// Example:
//
//	collector := metrics.NewPrometheus(nil, "myapp")
//	sched, err := worktree.NewScheduler(cfg, callback, worktree.WithMetrics(collector))
func WithMetrics(metrics types.MetricsCollector) Option {
	return func(o *schedulerOptions) {
		o.metrics = metrics
	}
}

// WithLogger sets a logger.
//
// Parameters:
//   - logger: Logger implementation (compatible with slog via logging.NewSlog)
//
// Returns:
//   - Option: Functional option for NewScheduler
//
// Example:
//
//	logger := logging.NewSlogDefault()
//	sched, err := worktree.NewScheduler(cfg, callback, worktree.WithLogger(logger))
func WithLogger(logger types.Logger) Option {
	return func(o *schedulerOptions) {
		o.logger = logger
	}
}
