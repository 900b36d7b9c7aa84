package config

// BonusConfig is a step table: a raw value x produces Multipliers[k] where
// k is the largest index with x >= Thresholds[k]; below Thresholds[0] the
// multiplier is 1.0 (untriggered). len(Thresholds) == len(Multipliers).
type BonusConfig struct {
	Thresholds  []float64 `yaml:"thresholds"`
	Multipliers []float64 `yaml:"multipliers"`
}

// ScorerConfig configures the Scorer's base score and eight bonuses.
type ScorerConfig struct {
	BaseScore float64 `yaml:"base_score"`

	AgeBonus         BonusConfig `yaml:"age_bonus"`
	TestBonus        BonusConfig `yaml:"test_bonus"`
	HeightBonus      BonusConfig `yaml:"height_bonus"`
	PeakVolumeBonus  BonusConfig `yaml:"peak_volume_bonus"`
	VolumeBonus      BonusConfig `yaml:"volume_bonus"`
	GapBonus         BonusConfig `yaml:"gap_bonus"`
	ContinuityBonus  BonusConfig `yaml:"continuity_bonus"`
	MomentumBonus    BonusConfig `yaml:"momentum_bonus"`

	// ClusterDensityThreshold is the proximity threshold used to cluster
	// broken-peak prices for test_bonus. When nil, the Scorer falls back
	// to the detector's PeakSupersedeThreshold (spec.md §9 Open Question).
	ClusterDensityThreshold *float64 `yaml:"cluster_density_threshold"`
}

// DefaultScorerConfig returns the spec.md §4.3 default bonus table.
func DefaultScorerConfig() ScorerConfig {
	return ScorerConfig{
		BaseScore:       50,
		AgeBonus:        BonusConfig{Thresholds: []float64{21, 63, 252}, Multipliers: []float64{1.15, 1.30, 1.50}},
		TestBonus:       BonusConfig{Thresholds: []float64{2, 3, 4}, Multipliers: []float64{1.10, 1.25, 1.40}},
		HeightBonus:     BonusConfig{Thresholds: []float64{0.10, 0.20}, Multipliers: []float64{1.15, 1.30}},
		PeakVolumeBonus: BonusConfig{Thresholds: []float64{2.0, 4.0}, Multipliers: []float64{1.15, 1.30}},
		VolumeBonus:     BonusConfig{Thresholds: []float64{1.5, 2.0}, Multipliers: []float64{1.15, 1.30}},
		GapBonus:        BonusConfig{Thresholds: []float64{0.01, 0.02}, Multipliers: []float64{1.10, 1.20}},
		ContinuityBonus: BonusConfig{Thresholds: []float64{3}, Multipliers: []float64{1.15}},
		MomentumBonus:   BonusConfig{Thresholds: []float64{2}, Multipliers: []float64{1.20}},
	}
}
