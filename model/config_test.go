package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultRankConfig(t *testing.T) {
	t.Run("Returns correct default values", func(t *testing.T) {
		config := DefaultRankConfig()

		assert.Equal(t, 200, config.Limit, "Default Limit should be 200")
		assert.Equal(t, 0.8, config.ClipThreshold, "Default ClipThreshold should be 0.8")
		assert.Equal(t, 0.9, config.ClipPenalty, "Default ClipPenalty should be 0.9")
		assert.Equal(t, 0.9, config.NoPersonDistance, "Default NoPersonDistance should be 0.9")
		assert.Equal(t, CombineSum, config.Combine, "Default Combine should be sum")
		assert.NoError(t, config.Validate())
	})

	t.Run("Rejects unknown combine mode", func(t *testing.T) {
		config := DefaultRankConfig()
		config.Combine = "avg"

		assert.Error(t, config.Validate())
	})

	t.Run("Rejects negative distances", func(t *testing.T) {
		config := DefaultRankConfig()
		config.ClipPenalty = -1

		assert.Error(t, config.Validate())
	})
}

func TestDampenPersonDistance(t *testing.T) {
	config := DefaultRankConfig()

	t.Run("Distance above threshold is clipped to penalty", func(t *testing.T) {
		assert.Equal(t, 0.9, config.DampenPersonDistance(0.95))
		assert.Equal(t, 0.9, config.DampenPersonDistance(1.7))
	})

	t.Run("Distance at or below threshold is halved", func(t *testing.T) {
		assert.InDelta(t, 0.15, config.DampenPersonDistance(0.3), 1e-9)
		assert.InDelta(t, 0.4, config.DampenPersonDistance(0.8), 1e-9)
		assert.Equal(t, 0.0, config.DampenPersonDistance(0))
	})

	t.Run("Close person never scores worse than an irrelevant one", func(t *testing.T) {
		for d := 0.0; d <= 2.0; d += 0.05 {
			assert.LessOrEqual(t, config.DampenPersonDistance(d), config.ClipPenalty)
		}
	})
}

func TestDefaultSyncConfig(t *testing.T) {
	t.Run("Returns correct default values", func(t *testing.T) {
		config := DefaultSyncConfig()

		assert.Equal(t, 6*time.Hour, config.Interval)
		assert.Equal(t, 32, config.BatchSize)
		assert.False(t, config.AdvisoryLock)
		assert.NoError(t, config.Validate())
	})

	t.Run("Rejects zero batch size", func(t *testing.T) {
		config := DefaultSyncConfig()
		config.BatchSize = 0

		assert.Error(t, config.Validate())
	})
}
