package config

import (
	"time"

	"github.com/hackfest/syncengine/internal/infra/kv"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig             `yaml:"server"`
	Logging  LoggingConfig            `yaml:"logging"`
	Remote   RemoteConfig             `yaml:"remote"`
	Retry    RetryConfig              `yaml:"retry"`
	Network  NetworkConfig            `yaml:"network"`
	Offline  OfflineConfig            `yaml:"offline"`
	Storage  StorageConfig            `yaml:"storage"`
	Profiles map[string]ProfileConfig `yaml:"profiles"`
}

// ServerConfig holds debug HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// RemoteConfig holds settings for the remote resource backend.
type RemoteConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"` // default deadline per remote call
}

// RetryConfig controls the retry/backoff policy for retryable failures.
type RetryConfig struct {
	MaxRetries int           `yaml:"max_retries"`
	BaseDelay  time.Duration `yaml:"base_delay"`
}

// NetworkConfig controls the connectivity monitor.
type NetworkConfig struct {
	ProbeInterval time.Duration `yaml:"probe_interval"`
	SlowThreshold time.Duration `yaml:"slow_threshold"` // RTT above this is Online(slow)
}

// OfflineConfig controls the persistent mutation queue.
type OfflineConfig struct {
	QueueKey string `yaml:"queue_key"`
	QueueCap int    `yaml:"queue_cap"`
}

// StorageConfig selects the key/value backend for durable state.
type StorageConfig struct {
	Backend  string            `yaml:"backend"` // memory, redis, postgres
	Redis    kv.RedisConfig    `yaml:"redis"`
	Database kv.PostgresConfig `yaml:"database"`
}

// ProfileConfig overrides timings for a named query class preset.
type ProfileConfig struct {
	StaleTime          time.Duration `yaml:"stale_time"`
	GCTime             time.Duration `yaml:"gc_time"`
	RefetchOnReconnect *bool         `yaml:"refetch_on_reconnect"`
	RefetchOnMount     *bool         `yaml:"refetch_on_mount"`
}
