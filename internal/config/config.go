// Package config loads store-tuning settings: GC thresholds, the log file
// path and pragma overrides. Settings come from, in precedence order,
// environment variables, a blockstore.toml file next to the database, and
// compiled-in defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config holds every tunable the store facade reads at Open time.
type Config struct {
	GCMinBlocks   int           `toml:"gc_min_blocks"`
	GCMaxDuration time.Duration `toml:"-"`
	GCMaxDurStr   string        `toml:"gc_max_duration"`
	LogPath       string        `toml:"log_path"`
	LogMaxSizeMB  int           `toml:"log_max_size_mb"`
	Synchronous   string        `toml:"synchronous"`
	PageSize      int           `toml:"page_size"`
}

func defaults() Config {
	return Config{
		GCMinBlocks:   10_000,
		GCMaxDuration: time.Second,
		GCMaxDurStr:   "1s",
		LogMaxSizeMB:  100,
		Synchronous:   "NORMAL",
		PageSize:      4096,
	}
}

// Load reads blockstore.toml from dir (if present), layers BLOCKSTORE_*
// environment variables on top via viper, and returns the resolved config.
// dir is typically the directory containing the database file.
func Load(dir string) (Config, error) {
	cfg := defaults()

	tomlPath := filepath.Join(dir, "blockstore.toml")
	if _, err := os.Stat(tomlPath); err == nil {
		if _, err := toml.DecodeFile(tomlPath, &cfg); err != nil {
			return Config{}, fmt.Errorf("decode %s: %w", tomlPath, err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix("BLOCKSTORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("gc_min_blocks", cfg.GCMinBlocks)
	v.SetDefault("gc_max_duration", cfg.GCMaxDurStr)
	v.SetDefault("log_path", cfg.LogPath)
	v.SetDefault("log_max_size_mb", cfg.LogMaxSizeMB)
	v.SetDefault("synchronous", cfg.Synchronous)
	v.SetDefault("page_size", cfg.PageSize)

	cfg.GCMinBlocks = v.GetInt("gc_min_blocks")
	cfg.GCMaxDurStr = v.GetString("gc_max_duration")
	cfg.LogPath = v.GetString("log_path")
	cfg.LogMaxSizeMB = v.GetInt("log_max_size_mb")
	cfg.Synchronous = v.GetString("synchronous")
	cfg.PageSize = v.GetInt("page_size")

	dur, err := time.ParseDuration(cfg.GCMaxDurStr)
	if err != nil {
		return Config{}, fmt.Errorf("parse gc_max_duration %q: %w", cfg.GCMaxDurStr, err)
	}
	cfg.GCMaxDuration = dur

	return cfg, nil
}

// Watch re-invokes onChange with the freshly reloaded config whenever
// tomlPath changes on disk, for long-lived embedders that want to retune
// the janitor without restarting. It relies on viper's fsnotify-backed
// WatchConfig.
func Watch(dir string, onChange func(Config)) error {
	tomlPath := filepath.Join(dir, "blockstore.toml")
	if _, err := os.Stat(tomlPath); err != nil {
		return nil
	}

	v := viper.New()
	v.SetConfigFile(tomlPath)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read %s: %w", tomlPath, err)
	}

	v.OnConfigChange(func(_ fsnotify.Event) {
		cfg, err := Load(dir)
		if err != nil {
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}
