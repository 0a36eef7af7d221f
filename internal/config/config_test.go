package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, "https://www.pulsemcp.com", cfg.BaseURL)
	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, "indexes", cfg.IndexDir)
	assert.Equal(t, 1500*time.Millisecond, cfg.RequestDelay)
	assert.Equal(t, 30*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 4, cfg.MaxRetries)
	assert.Equal(t, 2*time.Second, cfg.InitialBackoff)
	assert.Equal(t, 2, cfg.TestPages)
	assert.Empty(t, cfg.DatabaseURL)
}

func TestNewConfigEnvOverrides(t *testing.T) {
	t.Setenv("HARVESTER_BASE_URL", "http://localhost:9999")
	t.Setenv("HARVESTER_REQUEST_DELAY", "10ms")
	t.Setenv("HARVESTER_MAX_RETRIES", "2")

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:9999", cfg.BaseURL)
	assert.Equal(t, 10*time.Millisecond, cfg.RequestDelay)
	assert.Equal(t, 2, cfg.MaxRetries)
}
