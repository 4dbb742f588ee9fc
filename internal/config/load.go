package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Load reads a TOML config file over the defaults, applies environment
// overrides, and validates the result.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	return finish(cfg)
}

// Resolve loads configuration using the override chain:
// defaults -> config file (if any) -> environment variables.
// path may come from the --config flag or DRIVEGIT_CONFIG; when empty or
// missing, configuration comes entirely from defaults and the environment.
func Resolve(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfig)
	}

	if path == "" {
		return finish(DefaultConfig())
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return finish(DefaultConfig())
	}

	return Load(path)
}

func finish(cfg *Config) (*Config, error) {
	if err := ApplyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}
