package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// CovenantYAMLConfig represents the complete covenant.yaml file structure.
type CovenantYAMLConfig struct {
	Gateway  GatewayConfig             `yaml:"gateway"`
	Defaults *Defaults                 `yaml:"defaults"`
	Retention *RetentionConfig         `yaml:"retention"`
	Models   []ModelDescriptorConfig   `yaml:"models"`
}

// Initialize loads, validates, and returns ready-to-use configuration.
// This is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Load covenant.yaml from configDir
//  2. Expand environment variables
//  3. Parse YAML into structs
//  4. Apply built-in defaults for any unset values
//  5. Resolve the gateway bearer token from its named environment variable
//  6. Validate all configuration
//  7. Return Config ready for use
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("initializing configuration")

	cfg, err := load(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	stats := cfg.Stats()
	log.Info("configuration initialized successfully",
		"models", stats.Models,
		"parallel_cap", stats.ParallelCap,
		"quality_gate", stats.QualityGate)

	return cfg, nil
}

// load is the internal loader (not exported).
func load(_ context.Context, configDir string) (*Config, error) {
	loader := &configLoader{configDir: configDir}

	raw, err := loader.loadCovenantYAML()
	if err != nil {
		return nil, NewLoadError("covenant.yaml", err)
	}

	defaults := raw.Defaults
	if defaults == nil {
		defaults = &Defaults{}
	}
	defaults.applyDefaults()

	retention := raw.Retention
	if retention == nil {
		retention = DefaultRetentionConfig()
	} else {
		merged := DefaultRetentionConfig()
		if err := mergo.Merge(merged, retention, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge retention config: %w", err)
		}
		retention = merged
	}

	gateway := raw.Gateway
	if gateway.TokenEnv != "" {
		gateway.token = os.Getenv(gateway.TokenEnv)
	}

	return &Config{
		configDir: configDir,
		Defaults:  defaults,
		Retention: retention,
		Gateway:   gateway,
		Models:    raw.Models,
	}, nil
}

// validate performs comprehensive validation on loaded configuration.
func validate(cfg *Config) error {
	v := NewValidator(cfg)
	return v.ValidateAll()
}

type configLoader struct {
	configDir string
}

func (l *configLoader) loadYAML(filename string, target any) error {
	path := filepath.Join(l.configDir, filename)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return err
	}

	// Expand environment variables using {{.VAR}} template syntax.
	// Note: ExpandEnv passes through original data on parse/execution errors,
	// allowing the YAML parser to handle the content (or fail with a clearer
	// error message).
	data = ExpandEnv(data)

	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return nil
}

func (l *configLoader) loadCovenantYAML() (*CovenantYAMLConfig, error) {
	var cfg CovenantYAMLConfig
	if err := l.loadYAML("covenant.yaml", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
