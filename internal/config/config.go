package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	// Backend selects the storage adapter: memory|file|pebble|redis.
	Backend string `json:"backend" yaml:"backend"`
	// DataDir is the base directory for the file and pebble backends.
	DataDir string `json:"dataDir" yaml:"dataDir"`
	// Fsync is the pebble WAL policy: always|interval|never.
	Fsync string `json:"fsync" yaml:"fsync"`

	Keys  KeyConfig   `json:"keys" yaml:"keys"`
	Redis RedisConfig `json:"redis" yaml:"redis"`
	Log   LogConfig   `json:"log" yaml:"log"`
}

// KeyConfig carries the storage-key derivation components.
type KeyConfig struct {
	Protocol string   `json:"protocol" yaml:"protocol"`
	Version  int      `json:"version" yaml:"version"`
	Context  string   `json:"context" yaml:"context"`
	Scope    []string `json:"scope" yaml:"scope"`
}

// RedisConfig configures the redis backend.
type RedisConfig struct {
	Addr     string `json:"addr" yaml:"addr"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
}

// LogConfig configures CLI logging.
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		Backend: "pebble",
		DataDir: DefaultDataDir(),
		Fsync:   "always",
		Keys: KeyConfig{
			Protocol: "seq",
			Version:  1,
			Scope:    []string{"store", "sequence"},
		},
		Redis: RedisConfig{Addr: "127.0.0.1:6379"},
		Log:   LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads configuration from a JSON or YAML file (by extension) on top
// of defaults. If path is empty, returns defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse yaml config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse json config: %w", err)
		}
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}
	return cfg, nil
}
