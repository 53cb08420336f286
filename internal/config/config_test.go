package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.GCMinBlocks != 10_000 {
		t.Fatalf("GCMinBlocks = %d, want 10000", cfg.GCMinBlocks)
	}
	if cfg.GCMaxDuration != time.Second {
		t.Fatalf("GCMaxDuration = %v, want 1s", cfg.GCMaxDuration)
	}
}

func TestLoadFromTOML(t *testing.T) {
	dir := t.TempDir()
	content := "gc_min_blocks = 42\ngc_max_duration = \"5s\"\n"
	if err := os.WriteFile(filepath.Join(dir, "blockstore.toml"), []byte(content), 0o644); err != nil {
		t.Fatalf("write toml failed: %v", err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.GCMinBlocks != 42 {
		t.Fatalf("GCMinBlocks = %d, want 42", cfg.GCMinBlocks)
	}
	if cfg.GCMaxDuration != 5*time.Second {
		t.Fatalf("GCMaxDuration = %v, want 5s", cfg.GCMaxDuration)
	}
}

func TestEnvOverridesTOML(t *testing.T) {
	dir := t.TempDir()
	content := "gc_min_blocks = 42\n"
	if err := os.WriteFile(filepath.Join(dir, "blockstore.toml"), []byte(content), 0o644); err != nil {
		t.Fatalf("write toml failed: %v", err)
	}

	t.Setenv("BLOCKSTORE_GC_MIN_BLOCKS", "7")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.GCMinBlocks != 7 {
		t.Fatalf("GCMinBlocks = %d, want 7 (env should win)", cfg.GCMinBlocks)
	}
}
