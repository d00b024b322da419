// Package config holds the workspace-scoped configuration. It is
// loaded once and passed explicitly to the components that need it;
// there is no global configuration state.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config selects the label policy, the solver and its budgets, and
// where project data lives.
type Config struct {
	// LabelPolicy is "stable" or "compact".
	LabelPolicy string `yaml:"labelPolicy"`

	// Solver is "neldermead" or "mayfly".
	Solver string `yaml:"solver"`

	// MaxIterations bounds the solver's major iterations.
	MaxIterations int `yaml:"maxIterations"`

	// PopulationSize is the mayfly swarm size; ignored by neldermead.
	PopulationSize int `yaml:"populationSize"`

	// Seed seeds the mayfly solver for reproducible runs.
	Seed int64 `yaml:"seed"`

	// DataDir is the root directory for stored projects.
	DataDir string `yaml:"dataDir"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		LabelPolicy:    "stable",
		Solver:         "neldermead",
		MaxIterations:  2000,
		PopulationSize: 40,
		Seed:           42,
		DataDir:        "./data",
	}
}

// Load reads a YAML config file and fills unset fields from the
// defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for values the engine cannot run
// with.
func (c Config) Validate() error {
	if c.LabelPolicy != "stable" && c.LabelPolicy != "compact" {
		return fmt.Errorf("unknown label policy %q", c.LabelPolicy)
	}
	if c.Solver != "neldermead" && c.Solver != "mayfly" {
		return fmt.Errorf("unknown solver %q", c.Solver)
	}
	if c.MaxIterations <= 0 {
		return fmt.Errorf("maxIterations must be positive, got %d", c.MaxIterations)
	}
	if c.Solver == "mayfly" && c.PopulationSize < 20 {
		return fmt.Errorf("mayfly needs a population of at least 20, got %d", c.PopulationSize)
	}
	if c.DataDir == "" {
		return fmt.Errorf("dataDir must be set")
	}
	return nil
}
