// Package config provides configuration management for Stash.
// It loads settings from environment variables with the STASH_ prefix and
// provides sensible defaults for all options. An optional YAML file
// (STASH_CONFIG) may override defaults; environment variables always win.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration settings for the Stash pipeline.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Inference InferenceConfig `yaml:"inference"`
	Queue     QueueConfig     `yaml:"queue"`
	Notify    NotifyConfig    `yaml:"notify"`
}

// ServerConfig contains the ingestion gateway HTTP configuration.
type ServerConfig struct {
	Host string `yaml:"host"` // default: 127.0.0.1
	Port int    `yaml:"port"` // default: 7171
}

// StorageConfig contains datastore configuration.
type StorageConfig struct {
	// Engine selects the storage backend: sqlite or postgres (default: sqlite).
	Engine string `yaml:"engine"`

	// DataPath is the directory for the sqlite database file (default: ./data).
	DataPath string `yaml:"data_path"`

	// PostgresDSN is the connection string used when Engine is postgres.
	PostgresDSN string `yaml:"postgres_dsn"`
}

// InferenceConfig contains structured-inference capability configuration.
type InferenceConfig struct {
	// Provider selects the inference backend: openai or gemini (default: openai).
	Provider string `yaml:"provider"`

	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"` // per-call timeout (default: 60s)

	// EmbeddingModel is used for collection matching (default: text-embedding-3-small).
	EmbeddingModel string `yaml:"embedding_model"`

	// RequestsPerSecond is the sustained rate for the shared limiter (default: 2).
	RequestsPerSecond float64 `yaml:"requests_per_second"`

	// Burst is the limiter burst size (default: 4).
	Burst int `yaml:"burst"`
}

// QueueConfig contains worker runtime configuration.
type QueueConfig struct {
	// NumWorkers is the number of worker goroutines (default: 4).
	NumWorkers int `yaml:"num_workers"`

	// PollInterval is how often idle workers poll for jobs (default: 500ms).
	PollInterval time.Duration `yaml:"poll_interval"`

	// ShutdownTimeout is the maximum time to wait for workers to drain (default: 30s).
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// NotifyConfig contains notification dispatch configuration.
type NotifyConfig struct {
	// Transport selects the delivery backend: push or record (default: record).
	Transport string `yaml:"transport"`
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Queue.NumWorkers < 1 {
		return fmt.Errorf("config: num_workers must be >= 1, got %d", c.Queue.NumWorkers)
	}
	if c.Storage.Engine != "sqlite" && c.Storage.Engine != "postgres" {
		return fmt.Errorf("config: unknown storage engine %q", c.Storage.Engine)
	}
	if c.Storage.Engine == "postgres" && c.Storage.PostgresDSN == "" {
		return fmt.Errorf("config: postgres engine requires postgres_dsn")
	}
	if c.Notify.Transport != "record" && c.Notify.Transport != "push" {
		return fmt.Errorf("config: unknown notify transport %q", c.Notify.Transport)
	}
	return nil
}

// LoadConfig loads configuration from defaults, an optional YAML file named
// by STASH_CONFIG, and environment variables, in that order of precedence
// (later wins).
func LoadConfig() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("STASH_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 7171,
		},
		Storage: StorageConfig{
			Engine:   "sqlite",
			DataPath: "./data",
		},
		Inference: InferenceConfig{
			Provider:          "openai",
			Model:             "gpt-4o-mini",
			Timeout:           60 * time.Second,
			EmbeddingModel:    "text-embedding-3-small",
			RequestsPerSecond: 2,
			Burst:             4,
		},
		Queue: QueueConfig{
			NumWorkers:      4,
			PollInterval:    500 * time.Millisecond,
			ShutdownTimeout: 30 * time.Second,
		},
		Notify: NotifyConfig{
			Transport: "record",
		},
	}
}

func applyEnv(cfg *Config) {
	cfg.Server.Host = getEnv("STASH_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnvInt("STASH_PORT", cfg.Server.Port)

	cfg.Storage.Engine = getEnv("STASH_STORAGE_ENGINE", cfg.Storage.Engine)
	cfg.Storage.DataPath = getEnv("STASH_DATA_PATH", cfg.Storage.DataPath)
	cfg.Storage.PostgresDSN = getEnv("STASH_POSTGRES_DSN", cfg.Storage.PostgresDSN)

	cfg.Inference.Provider = getEnv("STASH_INFERENCE_PROVIDER", cfg.Inference.Provider)
	cfg.Inference.APIKey = getEnv("STASH_INFERENCE_API_KEY", cfg.Inference.APIKey)
	cfg.Inference.Model = getEnv("STASH_INFERENCE_MODEL", cfg.Inference.Model)
	cfg.Inference.BaseURL = getEnv("STASH_INFERENCE_BASE_URL", cfg.Inference.BaseURL)
	cfg.Inference.EmbeddingModel = getEnv("STASH_EMBEDDING_MODEL", cfg.Inference.EmbeddingModel)
	cfg.Inference.Timeout = getEnvDuration("STASH_INFERENCE_TIMEOUT", cfg.Inference.Timeout)

	cfg.Queue.NumWorkers = getEnvInt("STASH_NUM_WORKERS", cfg.Queue.NumWorkers)
	cfg.Queue.PollInterval = getEnvDuration("STASH_POLL_INTERVAL", cfg.Queue.PollInterval)
	cfg.Queue.ShutdownTimeout = getEnvDuration("STASH_SHUTDOWN_TIMEOUT", cfg.Queue.ShutdownTimeout)

	cfg.Notify.Transport = getEnv("STASH_NOTIFY_TRANSPORT", cfg.Notify.Transport)
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default
// value. Unparseable values fall back to the default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable (e.g. "45s") or
// returns a default value.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
