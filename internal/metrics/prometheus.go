package metrics

import (
	"strconv"
	"sync"

	"github.com/arloliu/worktree/types"
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements types.MetricsCollector backed by Prometheus.
//
// Registration is deferred until the first record call so that constructing
// a collector never panics on duplicate registration in tests.
type PrometheusCollector struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	stateTransitions *prometheus.CounterVec
	startDuration    prometheus.Histogram
	stopDuration     *prometheus.HistogramVec

	tasksDone     *prometheus.CounterVec
	taskLatency   prometheus.Histogram
	steals        *prometheus.CounterVec
	spawns        *prometheus.CounterVec
	nodeFaults    *prometheus.CounterVec
	redistributed prometheus.Counter
	queueDepth    *prometheus.GaugeVec

	regionCopies   prometheus.Counter
	regionCopySize prometheus.Histogram
	lockWait       prometheus.Histogram
	snapshots      prometheus.Counter
	snapshotSize   prometheus.Histogram
}

// Compile-time assertion that PrometheusCollector implements MetricsCollector.
var _ types.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheus creates a new Prometheus-backed metrics collector.
//
// Parameters:
//   - reg: Prometheus registerer interface (uses prometheus.DefaultRegisterer if nil)
//   - namespace: Prometheus metrics namespace (defaults to "worktree" if empty)
//
// Returns:
//   - *PrometheusCollector: A MetricsCollector implementation using Prometheus
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "worktree"
	}

	return &PrometheusCollector{reg: reg, namespace: namespace}
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		p.stateTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "scheduler",
			Name:      "state_transitions_total",
			Help:      "Total scheduler state transitions by from/to state.",
		}, []string{"from", "to"})

		p.startDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "scheduler",
			Name:      "start_duration_seconds",
			Help:      "Time spent building the allocation and hierarchy in Start.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		})

		p.stopDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "scheduler",
			Name:      "stop_duration_seconds",
			Help:      "Time spent joining nodes in Stop, by outcome.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}, []string{"outcome"})

		p.tasksDone = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "hierarchy",
			Name:      "tasks_done_total",
			Help:      "Total completed callback invocations by partition group.",
		}, []string{"group"})

		p.taskLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "hierarchy",
			Name:      "task_latency_seconds",
			Help:      "Callback latency in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 16),
		})

		p.steals = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "hierarchy",
			Name:      "steals_total",
			Help:      "Total successful sibling work steals by hierarchy level.",
		}, []string{"level"})

		p.spawns = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "hierarchy",
			Name:      "spawns_total",
			Help:      "Total on-demand child spawns by hierarchy level.",
		}, []string{"level"})

		p.nodeFaults = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "hierarchy",
			Name:      "node_faults_total",
			Help:      "Total callback faults recorded against nodes by group.",
		}, []string{"group"})

		p.redistributed = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "hierarchy",
			Name:      "redistributed_keys_total",
			Help:      "Total queued keys pushed to a parent after a node fault.",
		})

		p.queueDepth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "hierarchy",
			Name:      "queue_depth",
			Help:      "Current work queue depth by node id.",
		}, []string{"node"})

		p.regionCopies = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "region",
			Name:      "cow_copies_total",
			Help:      "Total copy-on-write private copy allocations.",
		})

		p.regionCopySize = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "region",
			Name:      "cow_copy_bytes",
			Help:      "Size in bytes of copy-on-write private copies.",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 12),
		})

		p.lockWait = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "region",
			Name:      "lock_wait_seconds",
			Help:      "Locked-write acquisition wait in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 12),
		})

		p.snapshots = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "region",
			Name:      "snapshots_total",
			Help:      "Total point-in-time region snapshots taken.",
		})

		p.snapshotSize = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "region",
			Name:      "snapshot_bytes",
			Help:      "Size in bytes of region snapshots.",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 12),
		})

		p.reg.MustRegister(p.stateTransitions)
		p.reg.MustRegister(p.startDuration)
		p.reg.MustRegister(p.stopDuration)
		p.reg.MustRegister(p.tasksDone)
		p.reg.MustRegister(p.taskLatency)
		p.reg.MustRegister(p.steals)
		p.reg.MustRegister(p.spawns)
		p.reg.MustRegister(p.nodeFaults)
		p.reg.MustRegister(p.redistributed)
		p.reg.MustRegister(p.queueDepth)
		p.reg.MustRegister(p.regionCopies)
		p.reg.MustRegister(p.regionCopySize)
		p.reg.MustRegister(p.lockWait)
		p.reg.MustRegister(p.snapshots)
		p.reg.MustRegister(p.snapshotSize)
	})
}

// SchedulerMetrics implementation

// RecordStateTransition increments the transition counter for the from/to pair.
func (p *PrometheusCollector) RecordStateTransition(from, to types.State, _ float64) {
	p.ensureRegistered()
	p.stateTransitions.WithLabelValues(from.String(), to.String()).Inc()
}

// RecordStartDuration observes the Start latency.
func (p *PrometheusCollector) RecordStartDuration(duration float64) {
	p.ensureRegistered()
	p.startDuration.Observe(duration)
}

// RecordStopDuration observes the Stop latency by outcome.
func (p *PrometheusCollector) RecordStopDuration(duration float64, graceful bool) {
	p.ensureRegistered()
	outcome := "graceful"
	if !graceful {
		outcome = "timeout"
	}
	p.stopDuration.WithLabelValues(outcome).Observe(duration)
}

// HierarchyMetrics implementation

// RecordTaskDone increments the per-group completion counter and observes latency.
func (p *PrometheusCollector) RecordTaskDone(group types.GroupID, duration float64) {
	p.ensureRegistered()
	p.tasksDone.WithLabelValues(strconv.Itoa(int(group))).Inc()
	p.taskLatency.Observe(duration)
}

// RecordSteal increments the per-level steal counter.
func (p *PrometheusCollector) RecordSteal(level int) {
	p.ensureRegistered()
	p.steals.WithLabelValues(strconv.Itoa(level)).Inc()
}

// RecordSpawn increments the per-level spawn counter.
func (p *PrometheusCollector) RecordSpawn(level int) {
	p.ensureRegistered()
	p.spawns.WithLabelValues(strconv.Itoa(level)).Inc()
}

// RecordNodeFault increments the fault counter and adds redistributed keys.
func (p *PrometheusCollector) RecordNodeFault(group types.GroupID, redistributed int) {
	p.ensureRegistered()
	p.nodeFaults.WithLabelValues(strconv.Itoa(int(group))).Inc()
	p.redistributed.Add(float64(redistributed))
}

// RecordQueueDepth sets the queue depth gauge for a node.
func (p *PrometheusCollector) RecordQueueDepth(node types.NodeID, depth int) {
	p.ensureRegistered()
	p.queueDepth.WithLabelValues(strconv.FormatUint(uint64(node), 10)).Set(float64(depth))
}

// RegionMetrics implementation

// RecordRegionCopy counts one COW copy and observes its size.
func (p *PrometheusCollector) RecordRegionCopy(bytes int) {
	p.ensureRegistered()
	p.regionCopies.Inc()
	p.regionCopySize.Observe(float64(bytes))
}

// RecordLockWait observes a locked-write acquisition wait.
func (p *PrometheusCollector) RecordLockWait(duration float64) {
	p.ensureRegistered()
	p.lockWait.Observe(duration)
}

// RecordSnapshot counts one snapshot and observes its size.
func (p *PrometheusCollector) RecordSnapshot(bytes int) {
	p.ensureRegistered()
	p.snapshots.Inc()
	p.snapshotSize.Observe(float64(bytes))
}
