package config

import (
	"os"
	"strconv"
	"strings"
)

// FromEnv overlays SEQSTORE_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := os.Getenv("SEQSTORE_BACKEND"); v != "" {
		cfg.Backend = v
	}
	if v := os.Getenv("SEQSTORE_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("SEQSTORE_FSYNC"); v != "" {
		cfg.Fsync = v
	}
	if v := os.Getenv("SEQSTORE_PROTOCOL"); v != "" {
		cfg.Keys.Protocol = v
	}
	if v := os.Getenv("SEQSTORE_VERSION"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Keys.Version = n
		}
	}
	if v := os.Getenv("SEQSTORE_CONTEXT"); v != "" {
		cfg.Keys.Context = v
	}
	if v := os.Getenv("SEQSTORE_SCOPE"); v != "" {
		parts := strings.Split(v, ":")
		cfg.Keys.Scope = nil
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cfg.Keys.Scope = append(cfg.Keys.Scope, p)
			}
		}
	}
	if v := os.Getenv("SEQSTORE_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("SEQSTORE_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("SEQSTORE_REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Redis.DB = n
		}
	}
	if v := os.Getenv("SEQSTORE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("SEQSTORE_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}
