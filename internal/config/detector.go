// Package config loads and validates the parameters for the detector,
// feature calculator and scorer from YAML, following the same
// load-with-defaults pattern used throughout this codebase for
// regime-aware threshold files.
package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// DetectorConfig is the immutable-after-construction configuration for the
// breakout detector.
type DetectorConfig struct {
	TotalWindow             int      `yaml:"total_window"`
	MinSideBars             int      `yaml:"min_side_bars"`
	MinRelativeHeight       float64  `yaml:"min_relative_height"`
	ExceedThreshold         float64  `yaml:"exceed_threshold"`
	PeakSupersedeThreshold  float64  `yaml:"peak_supersede_threshold"`
	PeakMeasure             string   `yaml:"peak_measure"`
	BreakoutModes           []string `yaml:"breakout_modes"`
	MomentumWindow          int      `yaml:"momentum_window"`

	UseCache bool   `yaml:"use_cache"`
	CacheDir string `yaml:"cache_dir"`
}

// DefaultDetectorConfig returns the spec's documented defaults.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		TotalWindow:            10,
		MinSideBars:            2,
		MinRelativeHeight:      0.05,
		ExceedThreshold:        0.005,
		PeakSupersedeThreshold: 0.03,
		PeakMeasure:            "body_top",
		BreakoutModes:          []string{"body_top"},
		MomentumWindow:         20,
		UseCache:               false,
		CacheDir:               "./cache",
	}
}

// Validate checks the construction-time preconditions from spec.md §4.1 and
// §7. It never mutates the receiver.
func (c DetectorConfig) Validate() error {
	if c.MinSideBars*2 > c.TotalWindow {
		return fmt.Errorf("config: min_side_bars*2 (%d) exceeds total_window (%d)",
			c.MinSideBars*2, c.TotalWindow)
	}
	if len(c.BreakoutModes) == 0 {
		return fmt.Errorf("config: breakout_modes must not be empty")
	}
	for _, m := range c.BreakoutModes {
		if !isKnownMeasure(m) {
			return fmt.Errorf("config: unknown breakout mode %q", m)
		}
	}
	if !isKnownMeasure(c.PeakMeasure) {
		return fmt.Errorf("config: unknown peak_measure %q", c.PeakMeasure)
	}
	for name, v := range map[string]float64{
		"min_relative_height":       c.MinRelativeHeight,
		"exceed_threshold":          c.ExceedThreshold,
		"peak_supersede_threshold":  c.PeakSupersedeThreshold,
	} {
		if v != v || isInf(v) { // NaN check without importing math twice
			return fmt.Errorf("config: %s must be finite, got %v", name, v)
		}
	}
	return nil
}

func isInf(v float64) bool {
	return v > 1e308 || v < -1e308
}

func isKnownMeasure(m string) bool {
	switch m {
	case "high", "close", "body_top":
		return true
	default:
		return false
	}
}

// CanonicalKey returns a deterministic, sorted encoding of the breakout
// modes used for the cache filename (spec.md §6).
func (c DetectorConfig) CanonicalKey() string {
	modes := append([]string(nil), c.BreakoutModes...)
	sort.Strings(modes)
	return strings.Join(modes, "")
}

// LoadDetectorConfig reads a DetectorConfig from a YAML file, falling back
// to DefaultDetectorConfig for any field the file omits by unmarshalling
// on top of the defaults.
func LoadDetectorConfig(path string) (DetectorConfig, error) {
	cfg := DefaultDetectorConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return DetectorConfig{}, fmt.Errorf("config: read detector config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return DetectorConfig{}, fmt.Errorf("config: parse detector config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return DetectorConfig{}, err
	}
	return cfg, nil
}
