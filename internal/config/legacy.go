package config

import (
	"fmt"
	"os"

	yamlv2 "gopkg.in/yaml.v2"
)

// LegacyDetectorConfigV2 is the schema-2.0 "window-only" detector config:
// it predates peak_measure/breakout_modes, which were added in 3.0. Kept
// around solely to read configs written before that change; current code
// reads/writes DetectorConfig via gopkg.in/yaml.v3 in detector.go.
type LegacyDetectorConfigV2 struct {
	TotalWindow            int     `yaml:"total_window" json:"total_window"`
	MinSideBars            int     `yaml:"min_side_bars" json:"min_side_bars"`
	MinRelativeHeight      float64 `yaml:"min_relative_height" json:"min_relative_height"`
	ExceedThreshold        float64 `yaml:"exceed_threshold" json:"exceed_threshold"`
	PeakSupersedeThreshold float64 `yaml:"peak_supersede_threshold" json:"peak_supersede_threshold"`
	MomentumWindow         int     `yaml:"momentum_window" json:"momentum_window"`
}

// LoadLegacyDetectorConfigV2 parses a schema-2.0 config file.
func LoadLegacyDetectorConfigV2(path string) (LegacyDetectorConfigV2, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return LegacyDetectorConfigV2{}, fmt.Errorf("config: read legacy v2 config: %w", err)
	}
	var legacy LegacyDetectorConfigV2
	if err := yamlv2.Unmarshal(data, &legacy); err != nil {
		return LegacyDetectorConfigV2{}, fmt.Errorf("config: parse legacy v2 config: %w", err)
	}
	return legacy, nil
}

// MigrateV2ToV3 fills the fields schema 2.0 never had with the current
// defaults (peak_measure=body_top, breakout_modes=[body_top]), per
// spec.md §6's "schema versions 2.0 must auto-migrate to 3.0" requirement.
func MigrateV2ToV3(legacy LegacyDetectorConfigV2) DetectorConfig {
	defaults := DefaultDetectorConfig()
	return DetectorConfig{
		TotalWindow:            legacy.TotalWindow,
		MinSideBars:            legacy.MinSideBars,
		MinRelativeHeight:      legacy.MinRelativeHeight,
		ExceedThreshold:        legacy.ExceedThreshold,
		PeakSupersedeThreshold: legacy.PeakSupersedeThreshold,
		MomentumWindow:         legacy.MomentumWindow,
		PeakMeasure:            defaults.PeakMeasure,
		BreakoutModes:          defaults.BreakoutModes,
		UseCache:               defaults.UseCache,
		CacheDir:               defaults.CacheDir,
	}
}
