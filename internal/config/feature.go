package config

// LabelConfig defines one forward-return label window.
type LabelConfig struct {
	MinDays int `yaml:"min_days"`
	MaxDays int `yaml:"max_days"`
}

// FeatureConfig configures the FeatureCalculator.
type FeatureConfig struct {
	StabilityLookforward int           `yaml:"stability_lookforward"`
	ContinuityLookback   int           `yaml:"continuity_lookback"`
	LabelConfigs         []LabelConfig `yaml:"label_configs"`
}

// DefaultFeatureConfig returns spec.md §4.2's documented defaults.
func DefaultFeatureConfig() FeatureConfig {
	return FeatureConfig{
		StabilityLookforward: 10,
		ContinuityLookback:   5,
	}
}
