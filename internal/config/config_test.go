package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8484", cfg.Server.Addr)
	assert.Equal(t, 60*time.Second, cfg.Scheduler.PollInterval)
	assert.Equal(t, 1, cfg.Scheduler.DefaultConcurrency)
	assert.Equal(t, 43200*time.Second, cfg.Scheduler.DefaultExpiration)
	assert.Equal(t, time.Hour, cfg.Transfer.DefaultSeedTime)
	assert.True(t, cfg.Transfer.RemoveOnCompletion)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("FETCHARR_SERVER_ADDR", "127.0.0.1:9000")
	t.Setenv("FETCHARR_SCHEDULER_POLLINTERVAL", "30s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.PollInterval)
}

func TestQueueForDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	settings := cfg.QueueFor("torrents")
	assert.Equal(t, "torrents", settings.Queue)
	assert.Equal(t, 1, settings.Concurrency)
	assert.Equal(t, 43200*time.Second, settings.Expiration)
}

func TestQueueForConfiguredOverride(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	cfg.Queues = map[string]QueueSettings{
		"search": {Queue: "search-lane", Concurrency: 3},
	}

	settings := cfg.QueueFor("search")
	assert.Equal(t, "search-lane", settings.Queue)
	assert.Equal(t, 3, settings.Concurrency)
	assert.Equal(t, cfg.Scheduler.DefaultExpiration, settings.Expiration,
		"missing expiration falls back to the scheduler default")
}

func TestTrackerForUnknownIsZero(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	settings := cfg.TrackerFor("unknown")
	assert.False(t, settings.NoDownload)
	assert.Zero(t, settings.SeedTime)
}
