package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, StoragePostgres, cfg.StorageDriver)
	assert.Equal(t, 5*time.Second, cfg.QuoteCacheTTL)
	assert.Equal(t, 100, cfg.RateLimitMax)
	assert.Equal(t, "8000", cfg.APIPort)
	assert.True(t, cfg.SeedCatalog)
	assert.True(t, cfg.Development())
}

func TestParseFromEnvironment(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("QUOTE_CACHE_TTL", "250ms")
	t.Setenv("WORKERS", "8")
	t.Setenv("ENVIRONMENT", "production")

	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, StorageMemory, cfg.StorageDriver)
	assert.Equal(t, 250*time.Millisecond, cfg.QuoteCacheTTL)
	assert.Equal(t, 8, cfg.Workers)
	assert.False(t, cfg.Development())
}

func TestParseRejectsInvalidValues(t *testing.T) {
	t.Run("driver", func(t *testing.T) {
		t.Setenv("STORAGE_DRIVER", "sqlite")
		_, err := Parse()
		assert.ErrorContains(t, err, "STORAGE_DRIVER")
	})

	t.Run("workers", func(t *testing.T) {
		t.Setenv("WORKERS", "0")
		_, err := Parse()
		assert.ErrorContains(t, err, "WORKERS")
	})

	t.Run("malformed duration", func(t *testing.T) {
		t.Setenv("QUOTE_CACHE_TTL", "soon")
		_, err := Parse()
		assert.Error(t, err)
	})
}

func TestLoadPanicsOnInvalidConfig(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "sqlite")
	assert.Panics(t, func() { Load() })
}
