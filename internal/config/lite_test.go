package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLiteConfig(t *testing.T) {
	cfg := DefaultLiteConfig()

	assert.NotEmpty(t, cfg.DataDir)
	assert.Equal(t, 1000, cfg.CacheMaxItems)
	assert.Equal(t, 15*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 5, cfg.BulkConcurrency)
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadLiteConfig_Defaults(t *testing.T) {
	clearEnvVars(t)

	cfg := LoadLiteConfig()

	assert.NotEmpty(t, cfg.DataDir)
	assert.Equal(t, 1000, cfg.CacheMaxItems)
	assert.Equal(t, 5, cfg.BulkConcurrency)
}

func TestLoadLiteConfig_EnvironmentOverrides(t *testing.T) {
	clearEnvVars(t)

	os.Setenv("GENE_VALIDITY_DATA_DIR", "/tmp/test-gene-validity")
	os.Setenv("GENE_VALIDITY_CACHE_MAX_ITEMS", "500")
	os.Setenv("GENE_VALIDITY_CACHE_TTL", "12h")
	os.Setenv("GENE_VALIDITY_BULK_CONCURRENCY", "8")
	os.Setenv("GENE_VALIDITY_HTTP_PORT", "9090")
	os.Setenv("GENE_VALIDITY_LOG_LEVEL", "debug")

	defer clearEnvVars(t)

	cfg := LoadLiteConfig()

	assert.Equal(t, "/tmp/test-gene-validity", cfg.DataDir)
	assert.Equal(t, 500, cfg.CacheMaxItems)
	assert.Equal(t, 12*time.Hour, cfg.CacheTTL)
	assert.Equal(t, 8, cfg.BulkConcurrency)
	assert.Equal(t, 9090, cfg.HTTPPort)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadLiteConfig_IgnoresInvalidValues(t *testing.T) {
	clearEnvVars(t)

	os.Setenv("GENE_VALIDITY_CACHE_MAX_ITEMS", "not-a-number")
	os.Setenv("GENE_VALIDITY_BULK_CONCURRENCY", "-3")
	defer clearEnvVars(t)

	cfg := LoadLiteConfig()

	assert.Equal(t, 1000, cfg.CacheMaxItems)
	assert.Equal(t, 5, cfg.BulkConcurrency)
}

func TestLiteConfig_CurationDBPath(t *testing.T) {
	cfg := &LiteConfig{DataDir: "/home/user/.gene-validity"}

	assert.Equal(t, "/home/user/.gene-validity/curation.db", cfg.CurationDBPath())
}

func TestLiteConfig_EnsureDataDir(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "config-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	cfg := &LiteConfig{DataDir: filepath.Join(tmpDir, "gene-validity")}

	err = cfg.EnsureDataDir()
	require.NoError(t, err)

	_, err = os.Stat(cfg.DataDir)
	assert.NoError(t, err)
}

func clearEnvVars(t *testing.T) {
	t.Helper()
	vars := []string{
		"GENE_VALIDITY_DATA_DIR",
		"GENE_VALIDITY_CACHE_MAX_ITEMS",
		"GENE_VALIDITY_CACHE_TTL",
		"GENE_VALIDITY_BULK_CONCURRENCY",
		"GENE_VALIDITY_HTTP_PORT",
		"GENE_VALIDITY_LOG_LEVEL",
		"GENE_VALIDITY_LOG_FORMAT",
	}
	for _, v := range vars {
		os.Unsetenv(v)
	}
}
