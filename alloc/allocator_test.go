package alloc

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/worktree/types"
)

func TestNew(t *testing.T) {
	t.Run("rejects invalid unit count", func(t *testing.T) {
		_, err := New(0, 12)
		require.ErrorIs(t, err, types.ErrInvalidUnitCount)
	})

	t.Run("rejects invalid group count", func(t *testing.T) {
		_, err := New(4, 0)
		require.ErrorIs(t, err, types.ErrInvalidGroupCount)
	})

	t.Run("one-to-one when units cover groups", func(t *testing.T) {
		m, err := New(12, 12)
		require.NoError(t, err)
		require.Equal(t, StrategyOneToOne, m.Strategy())

		for g := 0; g < 12; g++ {
			units, err := m.UnitsFor(types.GroupID(g))
			require.NoError(t, err)
			require.Equal(t, []types.UnitID{types.UnitID(g)}, units)
			require.Equal(t, []types.GroupID{types.GroupID(g)}, m.GroupsFor(types.UnitID(g)))
		}
	})

	t.Run("surplus units fan out across groups", func(t *testing.T) {
		m, err := New(24, 12)
		require.NoError(t, err)
		require.Equal(t, StrategyOneToOne, m.Strategy())

		// Every group is served by exactly two dedicated units and no unit
		// is left idle.
		for g := 0; g < 12; g++ {
			units, err := m.UnitsFor(types.GroupID(g))
			require.NoError(t, err)
			require.Len(t, units, 2, "group %d", g)
			require.Equal(t, []types.UnitID{types.UnitID(2 * g), types.UnitID(2*g + 1)}, units)
		}
		for u := 0; u < 24; u++ {
			require.Len(t, m.GroupsFor(types.UnitID(u)), 1, "unit %d", u)
		}
	})

	t.Run("remainder units go to the lowest groups", func(t *testing.T) {
		m, err := New(14, 12)
		require.NoError(t, err)

		for g := 0; g < 12; g++ {
			units, err := m.UnitsFor(types.GroupID(g))
			require.NoError(t, err)
			if g < 2 {
				require.Len(t, units, 2, "group %d", g)
			} else {
				require.Len(t, units, 1, "group %d", g)
			}
		}
	})

	t.Run("round-robin when units are scarce", func(t *testing.T) {
		m, err := New(4, 12)
		require.NoError(t, err)
		require.Equal(t, StrategyRoundRobin, m.Strategy())

		for g := 0; g < 12; g++ {
			units, err := m.UnitsFor(types.GroupID(g))
			require.NoError(t, err)
			require.Equal(t, []types.UnitID{types.UnitID(g % 4)}, units)
		}

		require.Equal(t, []types.GroupID{0, 4, 8}, m.GroupsFor(0))
		require.Equal(t, []types.GroupID{3, 7, 11}, m.GroupsFor(3))
	})
}

func TestMapCoverage(t *testing.T) {
	// Every group must land on a non-empty unit set and every unit must
	// serve at least one group, for any unit count.
	for units := 1; units <= 10*12; units++ {
		m, err := New(units, 12)
		require.NoError(t, err, "units=%d", units)
		require.NoError(t, m.Validate(), "units=%d", units)

		assigned := 0
		for g := 0; g < 12; g++ {
			set, err := m.UnitsFor(types.GroupID(g))
			require.NoError(t, err, "units=%d group=%d", units, g)
			require.NotEmpty(t, set, "units=%d group=%d", units, g)
			assigned += len(set)
		}
		require.Equal(t, max(units, 12), assigned, "units=%d", units)

		for u := 0; u < units; u++ {
			require.NotEmpty(t, m.GroupsFor(types.UnitID(u)), "units=%d unit=%d", units, u)
		}
	}
}

func TestMapDeterminism(t *testing.T) {
	a, err := New(5, 12)
	require.NoError(t, err)
	b, err := New(5, 12)
	require.NoError(t, err)

	for g := 0; g < 12; g++ {
		ua, err := a.UnitsFor(types.GroupID(g))
		require.NoError(t, err)
		ub, err := b.UnitsFor(types.GroupID(g))
		require.NoError(t, err)
		require.Equal(t, ua, ub)
	}
}

func TestUnitsFor(t *testing.T) {
	m, err := New(4, 12)
	require.NoError(t, err)

	t.Run("out of range group", func(t *testing.T) {
		_, err := m.UnitsFor(-1)
		require.ErrorIs(t, err, types.ErrInvalidGroupCount)

		_, err = m.UnitsFor(12)
		require.ErrorIs(t, err, types.ErrInvalidGroupCount)
	})
}

func TestOptimalUnits(t *testing.T) {
	cpus := runtime.NumCPU()

	require.Equal(t, min(cpus, 12), OptimalUnits(12))
	require.Equal(t, 1, OptimalUnits(1))
	require.Equal(t, 1, OptimalUnits(0))
	require.Equal(t, cpus, OptimalUnits(cpus+100))
}

func TestBalanceFactor(t *testing.T) {
	t.Run("even load is perfectly balanced", func(t *testing.T) {
		m, err := New(4, 12)
		require.NoError(t, err)

		workloads := make([]float64, 12)
		for i := range workloads {
			workloads[i] = 1.0
		}
		require.Equal(t, 1.0, m.BalanceFactor(workloads))
	})

	t.Run("skewed load lowers the factor", func(t *testing.T) {
		m, err := New(4, 12)
		require.NoError(t, err)

		workloads := make([]float64, 12)
		for i := range workloads {
			workloads[i] = 1.0
		}
		workloads[0] = 10.0 // unit 0 now carries most of the load

		factor := m.BalanceFactor(workloads)
		require.Greater(t, factor, 0.0)
		require.Less(t, factor, 1.0)
	})

	t.Run("no load reports balanced", func(t *testing.T) {
		m, err := New(4, 12)
		require.NoError(t, err)
		require.Equal(t, 1.0, m.BalanceFactor(make([]float64, 12)))
	})

	t.Run("group load splits across its units", func(t *testing.T) {
		m, err := New(24, 12)
		require.NoError(t, err)

		workloads := make([]float64, 12)
		for i := range workloads {
			workloads[i] = 2.0
		}
		require.Equal(t, 1.0, m.BalanceFactor(workloads))
	})
}
