package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/radar_test")
	t.Setenv("CATALOG_SOURCES_FILE", "")
	t.Setenv("PORT", "")
	t.Setenv("OPS_PORT", "")
	t.Setenv("DISCOVERY_PAGE_SIZE", "")
	t.Setenv("SYNC_WORKERS", "")
	t.Setenv("TOKEN_TTL", "")
	t.Setenv("RABBITMQ_URL", "")
	t.Setenv("SCHEDULER_ENABLED", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.OpsPort)
	assert.Equal(t, 50, cfg.Discovery.PageSize)
	assert.Equal(t, 4, cfg.Sync.Workers)
	assert.Equal(t, 720*time.Hour, cfg.Auth.TokenTTL)
	assert.Empty(t, cfg.Broker.URL)
	assert.False(t, cfg.Scheduler.Enabled)
	assert.NotEmpty(t, cfg.Discovery.Categories)
	assert.Equal(t, 40, cfg.Discovery.Policy.MaxSteps)
	assert.Equal(t, 5, cfg.Discovery.Policy.NoNewResultStreak)
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/radar_test")
	t.Setenv("CATALOG_SOURCES_FILE", "")
	t.Setenv("PORT", "3000")
	t.Setenv("SYNC_WORKERS", "8")
	t.Setenv("TOKEN_TTL", "24h")
	t.Setenv("SCHEDULER_ENABLED", "true")
	t.Setenv("SCHEDULER_DISCOVERY_INTERVAL", "90m")
	t.Setenv("SIGNAL_SPIKE_ZSCORE", "3.5")
	t.Setenv("DISCOVERY_PROBE_TERMS", " x, y ,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.Server.Port)
	assert.Equal(t, 8, cfg.Sync.Workers)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, 90*time.Minute, cfg.Scheduler.DiscoveryInterval)
	assert.Equal(t, 3.5, cfg.Sync.SpikeThreshold)
	assert.Equal(t, []string{"x", "y"}, cfg.Discovery.ProbeTerms)
}

func TestLoadRejectsNonPositivePageSize(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/radar_test")
	t.Setenv("CATALOG_SOURCES_FILE", "")
	t.Setenv("DISCOVERY_PAGE_SIZE", "-3")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "discovery page size")
}

func TestLoadRejectsZeroWorkers(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/radar_test")
	t.Setenv("CATALOG_SOURCES_FILE", "")
	t.Setenv("DISCOVERY_PAGE_SIZE", "")
	t.Setenv("SYNC_WORKERS", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sync worker count")
}

func TestSourcesFileOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")
	overlay := `
catalog:
  base_url: ${TEST_PORTAL_URL}
  search_path: /v2/search
discovery:
  categories: [ports, customs]
  probe_terms: ["x"]
  policy:
    max_steps: 7
`
	require.NoError(t, os.WriteFile(path, []byte(overlay), 0o644))

	t.Setenv("DATABASE_URL", "postgres://localhost/radar_test")
	t.Setenv("TEST_PORTAL_URL", "https://data.example.gov")
	t.Setenv("CATALOG_SOURCES_FILE", path)
	t.Setenv("CATALOG_BROWSE_PATH", "")
	t.Setenv("DISCOVERY_PAGE_SIZE", "")
	t.Setenv("SYNC_WORKERS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://data.example.gov", cfg.Catalog.BaseURL)
	assert.Equal(t, "/v2/search", cfg.Catalog.SearchPath)
	assert.Equal(t, []string{"ports", "customs"}, cfg.Discovery.Categories)
	assert.Equal(t, []string{"x"}, cfg.Discovery.ProbeTerms)
	assert.Equal(t, 7, cfg.Discovery.Policy.MaxSteps)

	// Fields the overlay leaves out keep their environment defaults, and
	// a partial policy is normalized.
	assert.Equal(t, 5, cfg.Discovery.Policy.NoNewResultStreak)
	assert.Equal(t, "/datasets", cfg.Catalog.BrowsePath)
}

func TestSourcesFileMissing(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/radar_test")
	t.Setenv("CATALOG_SOURCES_FILE", filepath.Join(t.TempDir(), "absent.yaml"))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "catalog sources file")
}
