package partition

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/worktree/types"
)

func TestAssignGroup(t *testing.T) {
	t.Run("maps key mod groups", func(t *testing.T) {
		for key := uint64(0); key < 100; key++ {
			group, err := AssignGroup(types.PartitionKey(key), 12)
			require.NoError(t, err)
			require.Equal(t, types.GroupID(key%12), group)
		}
	})

	t.Run("periodic in the group count", func(t *testing.T) {
		for _, groups := range []int{1, 3, 12, 17} {
			for key := uint64(0); key < 50; key++ {
				a, err := AssignGroup(types.PartitionKey(key), groups)
				require.NoError(t, err)
				b, err := AssignGroup(types.PartitionKey(key+uint64(groups)), groups)
				require.NoError(t, err)
				require.Equal(t, a, b, "groups=%d key=%d", groups, key)
			}
		}
	})

	t.Run("rejects non-positive group count", func(t *testing.T) {
		_, err := AssignGroup(42, 0)
		require.ErrorIs(t, err, types.ErrInvalidGroupCount)

		_, err = AssignGroup(42, -1)
		require.ErrorIs(t, err, types.ErrInvalidGroupCount)
	})
}

func TestNew(t *testing.T) {
	t.Run("valid group count", func(t *testing.T) {
		a, err := New(12)
		require.NoError(t, err)
		require.Equal(t, 12, a.Groups())
	})

	t.Run("invalid group count", func(t *testing.T) {
		_, err := New(0)
		require.ErrorIs(t, err, types.ErrInvalidGroupCount)
	})

	t.Run("options override defaults", func(t *testing.T) {
		a, err := New(12, WithBoundaryCeiling(0))
		require.NoError(t, err)
		require.Equal(t, 1.0, a.BoundaryWeight(DefaultBoundaryCeiling))
	})
}

func TestBoundaryWeight(t *testing.T) {
	a, err := New(12)
	require.NoError(t, err)

	t.Run("far keys weigh one", func(t *testing.T) {
		require.Equal(t, 1.0, a.BoundaryWeight(2))
		require.Equal(t, 1.0, a.BoundaryWeight(DefaultBoundaryCeiling+DefaultBoundaryWindow+1))
	})

	t.Run("zone keys weigh above one", func(t *testing.T) {
		require.Greater(t, a.BoundaryWeight(DefaultBoundaryCeiling), 1.0)
		require.Greater(t, a.BoundaryWeight(DefaultBoundaryCeiling-100), 1.0)
		require.Greater(t, a.BoundaryWeight(DefaultBoundaryCeiling+100), 1.0)
	})

	t.Run("ceiling neighbors form a matched pair", func(t *testing.T) {
		below := a.BoundaryWeight(DefaultBoundaryCeiling - 1)
		above := a.BoundaryWeight(DefaultBoundaryCeiling + 1)
		require.Equal(t, below, above)

		// The pair shares a doubled adjustment, so it outweighs every
		// other key in the zone, including the ceiling itself.
		require.Greater(t, below, a.BoundaryWeight(DefaultBoundaryCeiling))
		require.Greater(t, below, a.BoundaryWeight(DefaultBoundaryCeiling-2))
	})

	t.Run("weight decays with distance", func(t *testing.T) {
		near := a.BoundaryWeight(DefaultBoundaryCeiling + 10)
		far := a.BoundaryWeight(DefaultBoundaryCeiling + 1000)
		require.Greater(t, near, far)
	})

	t.Run("weight never affects routing", func(t *testing.T) {
		for _, key := range []types.PartitionKey{
			DefaultBoundaryCeiling - 1,
			DefaultBoundaryCeiling,
			DefaultBoundaryCeiling + 1,
		} {
			group, err := AssignGroup(key, 12)
			require.NoError(t, err)
			require.Equal(t, types.GroupID(uint64(key)%12), group)
		}
	})
}

func TestEstimateWorkload(t *testing.T) {
	a, err := New(12)
	require.NoError(t, err)

	t.Run("empty range is zero", func(t *testing.T) {
		require.Equal(t, 0.0, a.EstimateWorkload(100, 100))
		require.Equal(t, 0.0, a.EstimateWorkload(200, 100))
	})

	t.Run("monotonic in range size", func(t *testing.T) {
		small := a.EstimateWorkload(1000, 2000)
		large := a.EstimateWorkload(1000, 4000)
		require.Greater(t, large, small)
		require.Greater(t, small, 0.0)
	})

	t.Run("boundary zone raises the estimate", func(t *testing.T) {
		plain, err := New(12, WithBoundaryCorrection(0))
		require.NoError(t, err)

		start := types.PartitionKey(DefaultBoundaryCeiling - 500)
		end := types.PartitionKey(DefaultBoundaryCeiling + 500)
		require.Greater(t, a.EstimateWorkload(start, end), plain.EstimateWorkload(start, end))
	})

	t.Run("deterministic", func(t *testing.T) {
		require.Equal(t, a.EstimateWorkload(10, 100000), a.EstimateWorkload(10, 100000))
	})
}
