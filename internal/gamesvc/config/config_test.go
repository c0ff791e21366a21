package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"STORE_DRIVER", "RATE_LIMIT", "TX_MAX_RETRIES", "TX_MIN_BACKOFF", "REDIS_ADDR", "LEADERBOARD_SYNC_INTERVAL"} {
		t.Setenv(k, "")
	}

	cfg := Load()
	assert.Equal(t, DriverMongo, cfg.StoreDriver)
	assert.Equal(t, 100, cfg.RateLimit)
	assert.Equal(t, 5, cfg.Retry.MaxRetries)
	assert.Equal(t, 10*time.Millisecond, cfg.Retry.MinBackoff)
	assert.Equal(t, time.Minute, cfg.LeaderboardSyncInterval)
	assert.Empty(t, cfg.RedisAddr)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", DriverPostgres)
	t.Setenv("RATE_LIMIT", "20")
	t.Setenv("TX_MAX_RETRIES", "9")
	t.Setenv("TX_MAX_BACKOFF", "1s")
	t.Setenv("EVIDENCE_MAX_BYTES", "1024")
	t.Setenv("LEADERBOARD_SYNC_INTERVAL", "not-a-duration")

	cfg := Load()
	assert.Equal(t, DriverPostgres, cfg.StoreDriver)
	assert.Equal(t, 20, cfg.RateLimit)
	assert.Equal(t, 9, cfg.Retry.MaxRetries)
	assert.Equal(t, time.Second, cfg.Retry.MaxBackoff)
	assert.Equal(t, int64(1024), cfg.EvidenceMaxBytes)
	assert.Equal(t, time.Minute, cfg.LeaderboardSyncInterval)
}
