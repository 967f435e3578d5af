package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "willow-api", cfg.AppName)
		assert.Equal(t, "db/pg", cfg.DatabaseMigrationFolderPath)
		assert.Equal(t, 10*time.Minute, cfg.TypeDefCacheTTL)
		assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
		assert.Empty(t, cfg.SupportedZones)
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
		t.Setenv("LINEAGE_SUPPORTED_ZONES", "landing,raw")
		t.Setenv("LINEAGE_SYNC_CONCURRENCY", "8")
		t.Setenv("SYNC_LOCK_TTL", "90s")
		t.Setenv("REDIS_ENABLED", "false")
		t.Setenv("TRACE_SAMPLE_RATIO", "0.25")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
		assert.Equal(t, []string{"landing", "raw"}, cfg.SupportedZones)
		assert.Equal(t, 8, cfg.SyncConcurrency)
		assert.Equal(t, 90*time.Second, cfg.SyncLockTTL)
		assert.False(t, cfg.RedisEnabled)
		assert.Equal(t, 0.25, cfg.TraceSampleRatio)
	})

	t.Run("malformed value", func(t *testing.T) {
		t.Setenv("PORT", "not-a-port")

		_, err := Load()
		assert.Error(t, err)
	})
}
