package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	ApplyDefaults(&cfg)
	return &cfg, nil
}

// ApplyDefaults fills in the documented defaults for unset fields.
func ApplyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Remote.Timeout == 0 {
		cfg.Remote.Timeout = 10 * time.Second
	}
	if cfg.Retry.MaxRetries == 0 {
		cfg.Retry.MaxRetries = 3
	}
	if cfg.Retry.BaseDelay == 0 {
		cfg.Retry.BaseDelay = 500 * time.Millisecond
	}
	if cfg.Network.ProbeInterval == 0 {
		cfg.Network.ProbeInterval = 30 * time.Second
	}
	if cfg.Network.SlowThreshold == 0 {
		cfg.Network.SlowThreshold = 1500 * time.Millisecond
	}
	if cfg.Offline.QueueKey == "" {
		cfg.Offline.QueueKey = "syncengine:offline_queue"
	}
	if cfg.Offline.QueueCap == 0 {
		cfg.Offline.QueueCap = 50
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "memory"
	}
}

// Default returns a config with every default applied, for use without a
// config file.
func Default() *AppConfig {
	var cfg AppConfig
	ApplyDefaults(&cfg)
	return &cfg
}
