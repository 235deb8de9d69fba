package app

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	BaseURL  string `yaml:"base_url"`
	StateDir string `yaml:"state_dir"`
	LogLevel string `yaml:"log_level"`
}

func DefaultConfig() Config {
	return Config{
		BaseURL:  DefaultBaseURL,
		StateDir: DefaultStateDir(),
		LogLevel: "info",
	}
}

// DefaultStateDir returns the directory for the message database and log
// file. Prefers XDG data dir; falls back to ~/.local/share, then tmp.
func DefaultStateDir() string {
	if base := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); base != "" {
		return filepath.Join(base, "ollamadash")
	}
	if base, err := os.UserHomeDir(); err == nil && base != "" {
		return filepath.Join(base, ".local", "share", "ollamadash")
	}
	return filepath.Join(os.TempDir(), "ollamadash")
}

// LoadConfig reads the yaml config at path, falling back to defaults when
// the file is absent. OLLAMADASH_HOST overrides the daemon URL either way.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return cfg, err
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if host := strings.TrimSpace(os.Getenv("OLLAMADASH_HOST")); host != "" {
		cfg.BaseURL = host
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.StateDir == "" {
		cfg.StateDir = DefaultStateDir()
	}
	return cfg, nil
}

// DefaultConfigPath is where LoadConfig looks when no --config flag is
// given.
func DefaultConfigPath() string {
	if base := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); base != "" {
		return filepath.Join(base, "ollamadash", "config.yaml")
	}
	if base, err := os.UserHomeDir(); err == nil && base != "" {
		return filepath.Join(base, ".config", "ollamadash", "config.yaml")
	}
	return ""
}
