package alloc

import (
	"fmt"
	"runtime"

	"github.com/arloliu/worktree/types"
)

// Strategy identifies how groups are mapped onto execution units.
type Strategy int

const (
	// StrategyRoundRobin shares units among groups (group g -> unit g mod N).
	// Chosen when there are fewer units than groups.
	StrategyRoundRobin Strategy = iota

	// StrategyOneToOne gives every group at least one dedicated unit, with
	// surplus units spread floor/ceil across the groups. Chosen when there
	// are at least as many units as groups.
	StrategyOneToOne
)

// String returns the human-readable strategy name.
func (s Strategy) String() string {
	switch s {
	case StrategyRoundRobin:
		return "round-robin"
	case StrategyOneToOne:
		return "one-to-one"
	default:
		return "unknown"
	}
}

// Map is an immutable group-to-unit allocation.
//
// Every group maps to a non-empty set of units. A Map is computed once by
// New and safe for concurrent use.
type Map struct {
	units    int
	groups   int
	strategy Strategy

	// unitsOf is indexed by group id, units in ascending order, never empty.
	unitsOf [][]types.UnitID
	// groupsOf is indexed by unit id, in ascending group order.
	groupsOf [][]types.GroupID
}

// New computes the allocation of execution units across groups.
//
// With units >= groups every unit is dedicated to exactly one group: each
// group receives floor(units/groups) units and the remainder goes to the
// lowest group ids, so group counts differ by at most one. With fewer units
// than groups the mapping is round-robin: group g maps to the single shared
// unit g mod units. Either way every group maps to a non-empty unit set.
//
// Parameters:
//   - units: Number of execution units available (must be >= 1)
//   - groups: Number of partition groups to place (must be >= 1)
//
// Returns:
//   - *Map: The computed allocation
//   - error: types.ErrInvalidUnitCount or types.ErrInvalidGroupCount
//
// Example:
//
//	m, err := alloc.New(24, 12)
//	units, _ := m.UnitsFor(7) // units 14 and 15
func New(units, groups int) (*Map, error) {
	if units < 1 {
		return nil, types.ErrInvalidUnitCount
	}
	if groups < 1 {
		return nil, types.ErrInvalidGroupCount
	}

	m := &Map{
		units:    units,
		groups:   groups,
		strategy: StrategyRoundRobin,
		unitsOf:  make([][]types.UnitID, groups),
		groupsOf: make([][]types.GroupID, units),
	}

	if units >= groups {
		m.strategy = StrategyOneToOne

		base := units / groups
		remainder := units % groups
		next := 0
		for g := 0; g < groups; g++ {
			share := base
			if g < remainder {
				share++
			}
			for i := 0; i < share; i++ {
				u := types.UnitID(next)
				next++
				m.unitsOf[g] = append(m.unitsOf[g], u)
				m.groupsOf[u] = append(m.groupsOf[u], types.GroupID(g))
			}
		}

		return m, nil
	}

	for g := 0; g < groups; g++ {
		u := g % units
		m.unitsOf[g] = []types.UnitID{types.UnitID(u)}
		m.groupsOf[u] = append(m.groupsOf[u], types.GroupID(g))
	}

	return m, nil
}

// Units returns the number of execution units in the allocation.
func (m *Map) Units() int {
	return m.units
}

// Groups returns the number of partition groups in the allocation.
func (m *Map) Groups() int {
	return m.groups
}

// Strategy returns the strategy the allocation was built with.
func (m *Map) Strategy() Strategy {
	return m.strategy
}

// UnitsFor returns the units a group is allocated, in ascending order.
//
// The returned slice is never empty and is shared; callers must not
// modify it.
//
// Parameters:
//   - group: Partition group id
//
// Returns:
//   - []types.UnitID: Units serving the group
//   - error: types.ErrInvalidGroupCount if group is out of range
func (m *Map) UnitsFor(group types.GroupID) ([]types.UnitID, error) {
	if group < 0 || int(group) >= m.groups {
		return nil, types.ErrInvalidGroupCount
	}

	return m.unitsOf[group], nil
}

// GroupsFor returns the groups allocated to a unit in ascending order.
//
// The returned slice is shared; callers must not modify it. With a
// one-to-one allocation every unit serves exactly one group.
func (m *Map) GroupsFor(unit types.UnitID) []types.GroupID {
	if unit < 0 || int(unit) >= m.units {
		return nil
	}

	return m.groupsOf[unit]
}

// Validate checks the allocation's coverage invariant.
//
// Every group must map to a non-empty set of in-range units, and the
// per-unit group lists must agree with the per-group mapping.
//
// Returns:
//   - error: Description of the first violation found, nil if consistent
func (m *Map) Validate() error {
	for g, units := range m.unitsOf {
		if len(units) == 0 {
			return fmt.Errorf("group %d allocated no units", g)
		}
		for _, u := range units {
			if u < 0 || int(u) >= m.units {
				return fmt.Errorf("group %d allocated out-of-range unit %d", g, u)
			}
			if !containsGroup(m.groupsOf[u], types.GroupID(g)) {
				return fmt.Errorf("group %d maps to unit %d but unit %d does not list it", g, u, u)
			}
		}
	}

	for u, groups := range m.groupsOf {
		for _, g := range groups {
			if !containsUnit(m.unitsOf[g], types.UnitID(u)) {
				return fmt.Errorf("unit %d lists group %d but group %d does not map to it", u, g, g)
			}
		}
	}

	return nil
}

func containsGroup(groups []types.GroupID, g types.GroupID) bool {
	for _, candidate := range groups {
		if candidate == g {
			return true
		}
	}

	return false
}

func containsUnit(units []types.UnitID, u types.UnitID) bool {
	for _, candidate := range units {
		if candidate == u {
			return true
		}
	}

	return false
}

// OptimalUnits returns the recommended unit count for a group count.
//
// A dedicated unit per group is ideal, but there is no point allocating more
// units than the host has CPUs.
//
// Parameters:
//   - groups: Number of partition groups
//
// Returns:
//   - int: min(NumCPU, groups), minimum 1
func OptimalUnits(groups int) int {
	if groups < 1 {
		return 1
	}

	if cpus := runtime.NumCPU(); cpus < groups {
		return cpus
	}

	return groups
}

// BalanceFactor measures how evenly a set of per-group workload estimates
// spreads across the allocation's units.
//
// A group's workload is split evenly across the units serving it, and the
// factor is the minimum loaded unit divided by the maximum loaded unit.
// 1.0 means a perfectly even spread.
//
// Parameters:
//   - workloads: Estimated workload per group, indexed by group id
//
// Returns:
//   - float64: Balance factor in [0, 1] (1.0 when no unit carries load)
func (m *Map) BalanceFactor(workloads []float64) float64 {
	perUnit := make([]float64, m.units)
	for g := 0; g < m.groups && g < len(workloads); g++ {
		share := workloads[g] / float64(len(m.unitsOf[g]))
		for _, u := range m.unitsOf[g] {
			perUnit[u] += share
		}
	}

	minLoad, maxLoad := -1.0, 0.0
	for _, load := range perUnit {
		if minLoad < 0 || load < minLoad {
			minLoad = load
		}
		if load > maxLoad {
			maxLoad = load
		}
	}

	if maxLoad == 0 {
		return 1.0
	}

	return minLoad / maxLoad
}
