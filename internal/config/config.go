// Copyright (C) 2024 The Bygg Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package config loads the engine's own process configuration: cache
// location, worker count, and log format. This is ambient configuration
// for the engine's knobs, not the declarative action-defining configuration
// loader the core spec places out of scope — callers still register
// actions directly through the engine's in-process API.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/spf13/viper"
)

// DefaultCacheFileName is the conventional cache blob name inside a
// project's .bygg directory.
const DefaultCacheFileName = "cache.db"

// Config holds the engine's own process-level settings.
type Config struct {
	// CacheDir is the project-relative directory the cache blob lives in;
	// defaults to ".bygg".
	CacheDir string
	// CachePath is the resolved path to the cache blob: CacheDir joined
	// with DefaultCacheFileName, unless overridden directly.
	CachePath string
	// MaxWorkers bounds Runner concurrency; 0 means "detect from CPU count".
	MaxWorkers int
	// LogFormat is "text" or "json".
	LogFormat string
	// Debug enables debug-level logging.
	Debug bool
	// RedisAddr, if set, selects the Redis cache backend at this address
	// instead of the file backend.
	RedisAddr string
}

// defaults returns a Config with the engine's built-in defaults, before any
// file, environment, or override layer is applied.
func defaults() *Config {
	return &Config{
		CacheDir:   ".bygg",
		LogFormat:  "text",
		MaxWorkers: 0,
	}
}

// Load layers configuration: defaults, then a ".env" file in the project
// root if present, then a YAML/JSON config file at path (if non-empty and
// present), then BYGG_-prefixed environment variables. Resolved last:
// CachePath from CacheDir if not set explicitly, and MaxWorkers from the
// detected CPU count if left at zero.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: loading .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("BYGG")
	v.AutomaticEnv()
	v.SetDefault("cache_dir", cfg.CacheDir)
	v.SetDefault("log_format", cfg.LogFormat)
	v.SetDefault("max_workers", cfg.MaxWorkers)
	v.SetDefault("debug", cfg.Debug)
	v.SetDefault("redis_addr", cfg.RedisAddr)

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("config: reading %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: stat %s: %w", path, err)
		}
	}

	cfg.CacheDir = v.GetString("cache_dir")
	cfg.LogFormat = v.GetString("log_format")
	cfg.MaxWorkers = v.GetInt("max_workers")
	cfg.Debug = v.GetBool("debug")
	cfg.RedisAddr = v.GetString("redis_addr")

	if cfg.CachePath == "" {
		cfg.CachePath = filepath.Join(cfg.CacheDir, DefaultCacheFileName)
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = detectWorkerCount()
	}

	return cfg, nil
}

// detectWorkerCount asks the host for its logical CPU count to pick a
// sensible default concurrency, falling back to 1 if detection fails (a
// constrained container with no accessible /proc, for instance).
func detectWorkerCount() int {
	counts, err := cpu.Counts(true)
	if err != nil || counts < 1 {
		return 1
	}
	return counts
}
