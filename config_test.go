package worktree

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/worktree/region"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.Equal(t, 12, cfg.Groups)
	require.GreaterOrEqual(t, cfg.Units, 1)
	require.Equal(t, 1000, cfg.QueueCapacity)
	require.Equal(t, 3, cfg.MaxDepth)
	require.Equal(t, 10*time.Second, cfg.StopGrace)
	require.NoError(t, cfg.Validate())
}

func TestSetDefaults(t *testing.T) {
	t.Run("fills zero values", func(t *testing.T) {
		var cfg Config
		SetDefaults(&cfg)

		require.Equal(t, 12, cfg.Groups)
		require.GreaterOrEqual(t, cfg.Units, 1)
		require.Equal(t, cfg.QueueCapacity/2, cfg.SpawnThreshold)
		require.Equal(t, cfg.Units, cfg.WorkerBudget)
		require.NoError(t, cfg.Validate())
	})

	t.Run("keeps explicit values", func(t *testing.T) {
		cfg := Config{Groups: 7, Units: 2, SpawnThreshold: -1}
		SetDefaults(&cfg)

		require.Equal(t, 7, cfg.Groups)
		require.Equal(t, 2, cfg.Units)
		require.Equal(t, -1, cfg.SpawnThreshold, "disabled spawning must survive defaulting")
	})

	t.Run("leaves stop grace alone", func(t *testing.T) {
		var cfg Config
		SetDefaults(&cfg)

		require.Equal(t, time.Duration(0), cfg.StopGrace, "immediate stop must stay expressible")
	})
}

func TestConfigValidate(t *testing.T) {
	valid := func() Config {
		cfg := DefaultConfig()
		return cfg
	}

	t.Run("rejects bad group count", func(t *testing.T) {
		cfg := valid()
		cfg.Groups = 0
		require.ErrorIs(t, cfg.Validate(), ErrInvalidGroupCount)
	})

	t.Run("rejects bad unit count", func(t *testing.T) {
		cfg := valid()
		cfg.Units = 0
		require.ErrorIs(t, cfg.Validate(), ErrInvalidParallelism)
	})

	t.Run("rejects bad queue capacity", func(t *testing.T) {
		cfg := valid()
		cfg.QueueCapacity = 0
		require.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
	})

	t.Run("rejects bad max depth", func(t *testing.T) {
		cfg := valid()
		cfg.MaxDepth = 0
		require.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
	})

	t.Run("rejects unreachable spawn threshold", func(t *testing.T) {
		cfg := valid()
		cfg.SpawnThreshold = cfg.QueueCapacity + 1
		require.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
	})

	t.Run("rejects bad region specs", func(t *testing.T) {
		cfg := valid()
		cfg.Regions = []RegionSpec{{Size: 0, Mode: region.ModeReadOnly}}
		require.ErrorIs(t, cfg.Validate(), ErrInvalidRegionSize)

		cfg.Regions = []RegionSpec{{Size: 64, Mode: region.Mode(42)}}
		require.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
	})
}

func TestTestConfig(t *testing.T) {
	cfg := TestConfig()
	require.NoError(t, cfg.Validate())
	require.Less(t, cfg.StopGrace, DefaultConfig().StopGrace)
}
