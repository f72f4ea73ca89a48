package partition

import (
	"math"

	"github.com/arloliu/worktree/types"
)

// Default assigner parameters.
//
// The defaults preserve the behavior of the historical workload: 12 groups,
// a density boundary at 144000 whose two neighbor keys form a matched pair,
// and a small correction constant applied inside the boundary zone.
const (
	// DefaultGroups is the default number of logical partition groups.
	DefaultGroups = 12

	// DefaultBoundaryCeiling is the key value the boundary zone is centered on.
	DefaultBoundaryCeiling = 144000

	// DefaultBoundaryWindow is the half-width of the boundary zone in keys.
	DefaultBoundaryWindow = 1200

	// DefaultBoundaryCorrection is the correction constant applied to weights
	// inside the boundary zone (3/144000).
	DefaultBoundaryCorrection = 3.0 / 144000.0
)

// Assigner maps partition keys to groups and estimates per-group workload.
//
// An Assigner is immutable after construction and safe for concurrent use.
type Assigner struct {
	groups     int
	ceiling    uint64
	window     uint64
	correction float64
}

// Option configures an Assigner.
type Option func(*Assigner)

// WithBoundaryCeiling sets the boundary zone's central key.
//
// Parameters:
//   - ceiling: Key value the zone is centered on (0 disables the zone)
//
// Returns:
//   - Option: Functional option for New
func WithBoundaryCeiling(ceiling uint64) Option {
	return func(a *Assigner) {
		a.ceiling = ceiling
	}
}

// WithBoundaryWindow sets the half-width of the boundary zone in keys.
//
// Parameters:
//   - window: Number of keys on each side of the ceiling inside the zone
//
// Returns:
//   - Option: Functional option for New
func WithBoundaryWindow(window uint64) Option {
	return func(a *Assigner) {
		a.window = window
	}
}

// WithBoundaryCorrection sets the correction constant applied inside the zone.
//
// Parameters:
//   - correction: Correction constant (0 disables the adjustment)
//
// Returns:
//   - Option: Functional option for New
func WithBoundaryCorrection(correction float64) Option {
	return func(a *Assigner) {
		a.correction = correction
	}
}

// New creates an Assigner for the given number of groups.
//
// Parameters:
//   - groups: Number of logical partition groups (must be >= 1)
//   - opts: Optional boundary-zone configuration
//
// Returns:
//   - *Assigner: Initialized assigner
//   - error: types.ErrInvalidGroupCount if groups < 1
//
// Example:
//
//	assigner, err := partition.New(12)
//	group := assigner.Group(key)
func New(groups int, opts ...Option) (*Assigner, error) {
	if groups < 1 {
		return nil, types.ErrInvalidGroupCount
	}

	a := &Assigner{
		groups:     groups,
		ceiling:    DefaultBoundaryCeiling,
		window:     DefaultBoundaryWindow,
		correction: DefaultBoundaryCorrection,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a, nil
}

// Groups returns the configured number of partition groups.
func (a *Assigner) Groups() int {
	return a.groups
}

// AssignGroup maps a key to one of the given number of groups.
//
// The mapping is key mod groups and therefore periodic:
// AssignGroup(k, g) == AssignGroup(k+g, g) for all k.
//
// Parameters:
//   - key: Partition key to route
//   - groups: Number of groups (must be >= 1)
//
// Returns:
//   - types.GroupID: Group in [0, groups)
//   - error: types.ErrInvalidGroupCount if groups < 1
func AssignGroup(key types.PartitionKey, groups int) (types.GroupID, error) {
	if groups < 1 {
		return -1, types.ErrInvalidGroupCount
	}

	return types.GroupID(uint64(key) % uint64(groups)), nil
}

// Group maps a key to a group using the assigner's validated group count.
//
// Returns:
//   - types.GroupID: Group in [0, Groups())
func (a *Assigner) Group(key types.PartitionKey) types.GroupID {
	return types.GroupID(uint64(key) % uint64(a.groups))
}

// BoundaryWeight returns the workload weight for a key.
//
// Keys outside the boundary zone weigh 1.0. Inside the zone the weight is
// raised by the correction constant scaled by proximity to the ceiling:
//
//	weight(k) = 1 + correction / (1 + distance(k)/ceiling)
//
// The two keys immediately adjacent to the ceiling are treated as a matched
// pair sharing one symmetric adjustment: both receive the identical weight
// with the correction doubled, and are never evaluated independently.
//
// The weight only informs load estimation; it never affects routing.
func (a *Assigner) BoundaryWeight(key types.PartitionKey) float64 {
	if a.ceiling == 0 || a.correction == 0 {
		return 1.0
	}

	k := uint64(key)
	var distance uint64
	if k >= a.ceiling {
		distance = k - a.ceiling
	} else {
		distance = a.ceiling - k
	}

	if distance > a.window {
		return 1.0
	}

	// The ceiling's immediate neighbors share one doubled, symmetric
	// adjustment. distance == 1 covers both members of the pair.
	scale := 1.0 + float64(distance)/float64(a.ceiling)
	if distance == 1 {
		return 1.0 + 2.0*a.correction/scale
	}

	return 1.0 + a.correction/scale
}

// EstimateWorkload returns a per-group workload estimate for a key range.
//
// The estimate uses the x/ln(x) density approximation over [start, end),
// divides it across the configured groups, and scales it by the boundary
// weight at the range midpoint. It is monotonic in the range size and is
// only a balancing hint for the thread allocator.
//
// Parameters:
//   - start: Inclusive lower bound of the key range
//   - end: Exclusive upper bound of the key range
//
// Returns:
//   - float64: Estimated work items per group (0 when the range is empty)
func (a *Assigner) EstimateWorkload(start, end types.PartitionKey) float64 {
	if start >= end {
		return 0
	}

	density := densityAt(uint64(end)) - densityAt(uint64(start))
	if density < 0 {
		density = 0
	}

	mid := types.PartitionKey((uint64(start) + uint64(end)) / 2)

	return density / float64(a.groups) * a.BoundaryWeight(mid)
}

// densityAt approximates the count of significant items below x as x/ln(x).
func densityAt(x uint64) float64 {
	if x < 2 {
		return 0
	}

	return float64(x) / math.Log(float64(x))
}
