// SPDX-License-Identifier: MIT

package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Loader resolves an AppConfig with precedence ENV > file > defaults.
type Loader struct {
	path    string // optional YAML config file
	version string
}

// NewLoader creates a loader for the given optional config file path.
func NewLoader(path, version string) *Loader {
	return &Loader{path: path, version: version}
}

// Load resolves and validates the configuration.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.path != "" {
		if err := applyFile(&cfg, l.path); err != nil {
			return AppConfig{}, fmt.Errorf("load config file %s: %w", l.path, err)
		}
	}

	applyEnv(&cfg)
	resolvePaths(&cfg)
	cfg.Version = l.version

	if err := cfg.Validate(); err != nil {
		return AppConfig{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// applyFile overlays a YAML config file onto cfg. Unknown keys are rejected
// so typos surface at startup instead of silently using defaults.
func applyFile(cfg *AppConfig, path string) error {
	data, err := os.ReadFile(path) // #nosec G304 -- operator-supplied config path
	if err != nil {
		return err
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	return nil
}
