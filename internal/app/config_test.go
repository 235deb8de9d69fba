package app

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.BaseURL != DefaultBaseURL {
		t.Fatalf("base url = %q", cfg.BaseURL)
	}
	if cfg.StateDir == "" {
		t.Fatalf("state dir must default")
	}
}

func TestLoadConfigReadsYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("base_url: http://10.0.0.5:11434/api\nlog_level: debug\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.BaseURL != "http://10.0.0.5:11434/api" {
		t.Fatalf("base url = %q", cfg.BaseURL)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("log level = %q", cfg.LogLevel)
	}
}

func TestLoadConfigHostEnvOverride(t *testing.T) {
	t.Setenv("OLLAMADASH_HOST", "http://gpu-box:11434/api")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.BaseURL != "http://gpu-box:11434/api" {
		t.Fatalf("env override ignored: %q", cfg.BaseURL)
	}
}
