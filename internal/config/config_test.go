package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 7171, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Storage.Engine)
	assert.Equal(t, "./data", cfg.Storage.DataPath)
	assert.Equal(t, "openai", cfg.Inference.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.Inference.Model)
	assert.Equal(t, 60*time.Second, cfg.Inference.Timeout)
	assert.Equal(t, 4, cfg.Queue.NumWorkers)
	assert.Equal(t, 500*time.Millisecond, cfg.Queue.PollInterval)
	assert.Equal(t, "record", cfg.Notify.Transport)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("STASH_PORT", "9090")
	t.Setenv("STASH_NUM_WORKERS", "8")
	t.Setenv("STASH_INFERENCE_PROVIDER", "gemini")
	t.Setenv("STASH_INFERENCE_TIMEOUT", "45s")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 8, cfg.Queue.NumWorkers)
	assert.Equal(t, "gemini", cfg.Inference.Provider)
	assert.Equal(t, 45*time.Second, cfg.Inference.Timeout)
}

func TestLoadConfigYAMLFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stash.yaml")
	yaml := "server:\n  port: 8001\nqueue:\n  num_workers: 2\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	t.Setenv("STASH_CONFIG", path)
	t.Setenv("STASH_NUM_WORKERS", "6") // env wins over file

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 8001, cfg.Server.Port)
	assert.Equal(t, 6, cfg.Queue.NumWorkers)
}

func TestLoadConfigUnparseableEnvFallsBack(t *testing.T) {
	t.Setenv("STASH_PORT", "not-a-number")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 7171, cfg.Server.Port)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := defaultConfig()
	cfg.Queue.NumWorkers = 0
	assert.Error(t, cfg.Validate())

	cfg = defaultConfig()
	cfg.Storage.Engine = "dynamo"
	assert.Error(t, cfg.Validate())

	cfg = defaultConfig()
	cfg.Storage.Engine = "postgres"
	assert.Error(t, cfg.Validate()) // missing DSN

	cfg = defaultConfig()
	cfg.Notify.Transport = "carrier-pigeon"
	assert.Error(t, cfg.Validate())
}
