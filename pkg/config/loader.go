package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadConfig reads the YAML config file at path, validates it, and installs it
// as the process-wide configuration. A missing file installs DefaultConfig.
// Any validation failure is returned before the previous config (if any) is
// replaced.
func LoadConfig(path string) error {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		getLogger().Info("No config file at %s, using defaults", path)
	case err != nil:
		return fmt.Errorf("failed to read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		getLogger().Info("Loaded config from %s", path)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	config = &cfg
	return nil
}

// WriteConfig serializes cfg to path as YAML. Used by deployments that want a
// starting config file to edit.
func WriteConfig(path string, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("refusing to write invalid config: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	return nil
}
