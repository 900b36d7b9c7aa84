// Package scoring implements the multiplicative breakout quality score
// (spec.md §4.3): a base value scaled by eight independent step-function
// bonuses, each explainable in a ScoreBreakdown.
package scoring

import "github.com/chartscan/breakoutscan/internal/config"

// StepTable looks a raw value up against a sorted threshold/multiplier
// table: x produces Multipliers[k] where k is the largest index with
// x >= Thresholds[k]; below Thresholds[0] the multiplier is 1.0
// (untriggered).
type StepTable struct {
	Thresholds  []float64
	Multipliers []float64
}

// NewStepTable builds a StepTable from a config.BonusConfig.
func NewStepTable(bc config.BonusConfig) StepTable {
	return StepTable{Thresholds: bc.Thresholds, Multipliers: bc.Multipliers}
}

// Lookup returns the multiplier for x along with the index of the
// threshold it hit, or (1.0, -1) if x triggered no threshold.
func (s StepTable) Lookup(x float64) (multiplier float64, hitIndex int) {
	hitIndex = -1
	multiplier = 1.0
	for i, t := range s.Thresholds {
		if x >= t {
			hitIndex = i
			multiplier = s.Multipliers[i]
		} else {
			break
		}
	}
	return multiplier, hitIndex
}
