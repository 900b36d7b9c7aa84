package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// AppConfig bundles the three pipeline stage configs so the CLI and HTTP
// edge can load a single YAML file covering the whole scanner.
type AppConfig struct {
	Detector DetectorConfig `yaml:"detector"`
	Feature  FeatureConfig  `yaml:"feature"`
	Scorer   ScorerConfig   `yaml:"scorer"`
}

// DefaultAppConfig returns the documented defaults for all three stages.
func DefaultAppConfig() AppConfig {
	return AppConfig{
		Detector: DefaultDetectorConfig(),
		Feature:  DefaultFeatureConfig(),
		Scorer:   DefaultScorerConfig(),
	}
}

// LoadAppConfig reads an AppConfig from a YAML file, unmarshalling onto
// DefaultAppConfig so any field the file omits keeps its documented
// default.
func LoadAppConfig(path string) (AppConfig, error) {
	cfg := DefaultAppConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return AppConfig{}, fmt.Errorf("config: read app config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("config: parse app config: %w", err)
	}
	if err := cfg.Detector.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}
