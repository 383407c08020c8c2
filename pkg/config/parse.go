package config

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/GoSim-25-26J-441/doc-simulation/pkg/models"
)

// parseOptions controls what a config may reference outside its own text
type parseOptions struct {
	baseDir    string // directory a relative power.file resolves against
	allowFiles bool
}

// ParseConfigYAML parses a SimulationConfig from YAML bytes and validates it.
// A CSV power file is resolved relative to the working directory; configs that arrive
// over a network API go through ParseUntrustedConfigYAML instead.
func ParseConfigYAML(data []byte) (*SimulationConfig, error) {
	return parseConfig(data, parseOptions{allowFiles: true})
}

// ParseConfigYAMLString parses a SimulationConfig from a YAML string and validates it.
func ParseConfigYAMLString(yamlText string) (*SimulationConfig, error) {
	return ParseConfigYAML([]byte(yamlText))
}

// ParseUntrustedConfigYAML parses a config received from a client. The power series
// must be inline (series_kw or constant_kw); power.file is rejected so a client cannot
// make the server read its own filesystem.
func ParseUntrustedConfigYAML(data []byte) (*SimulationConfig, error) {
	return parseConfig(data, parseOptions{})
}

// ParseUntrustedConfigYAMLString is ParseUntrustedConfigYAML for a string payload
func ParseUntrustedConfigYAMLString(yamlText string) (*SimulationConfig, error) {
	return ParseUntrustedConfigYAML([]byte(yamlText))
}

func parseConfig(data []byte, opts parseOptions) (*SimulationConfig, error) {
	var cfg SimulationConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config yaml: %w", &models.InvalidInputError{
			Field: "yaml", Value: len(data), Reason: err.Error(),
		})
	}

	applyDefaults(&cfg)

	if cfg.Power.File != "" && !opts.allowFiles {
		return nil, fmt.Errorf("invalid config: %w",
			invalid("power.file", "<redacted>", "not accepted here; send series_kw or constant_kw inline"))
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	series, err := resolvePower(cfg.Power, opts.baseDir)
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	cfg.series = series

	return &cfg, nil
}

func applyDefaults(cfg *SimulationConfig) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Timestep == "" {
		cfg.Timestep = "1h"
	}
	if cfg.Policy.Name == "" {
		cfg.Policy.Name = "threshold"
	}
	if cfg.Simulator.Type == "" {
		cfg.Simulator.Type = "linear"
	}
	if cfg.Simulator.Type == "linear" && cfg.Simulator.CaptureKgPerKWh == 0 {
		cfg.Simulator.CaptureKgPerKWh = DefaultCaptureKgPerKWh
	}
	if cfg.Power.Units == "" {
		cfg.Power.Units = "kW"
	}
}
