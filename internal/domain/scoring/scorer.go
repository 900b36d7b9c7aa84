package scoring

import (
	"sort"

	"github.com/chartscan/breakoutscan/internal/config"
	"github.com/chartscan/breakoutscan/internal/domain/breakout"
)

// BonusResult is one bonus's contribution to a ScoreBreakdown.
type BonusResult struct {
	Name        string
	RawValue    float64
	ThresholdHit int
	Multiplier  float64
	Triggered   bool
}

// ScoreBreakdown is the first-class, JSON-serializable explanation of a
// quality score: every bonus's raw input, which threshold it hit (if any)
// and its resulting multiplier (spec.md §9 DESIGN NOTE (e)).
type ScoreBreakdown struct {
	Base          float64
	Bonuses       []BonusResult
	Total         float64
	BrokenPeakIDs []int64
}

// Scorer computes breakout.Breakout.QualityScore as BASE times the
// product of eight independent step-function bonuses (spec.md §4.3).
type Scorer struct {
	cfg    config.ScorerConfig
	tables scorerTables
}

type scorerTables struct {
	age, test, height, peakVolume, volume, gap, continuity, momentum StepTable
}

// NewScorer builds a Scorer from cfg.
func NewScorer(cfg config.ScorerConfig) *Scorer {
	return &Scorer{
		cfg: cfg,
		tables: scorerTables{
			age:        NewStepTable(cfg.AgeBonus),
			test:       NewStepTable(cfg.TestBonus),
			height:     NewStepTable(cfg.HeightBonus),
			peakVolume: NewStepTable(cfg.PeakVolumeBonus),
			volume:     NewStepTable(cfg.VolumeBonus),
			gap:        NewStepTable(cfg.GapBonus),
			continuity: NewStepTable(cfg.ContinuityBonus),
			momentum:   NewStepTable(cfg.MomentumBonus),
		},
	}
}

// clusterDensityThreshold resolves the proximity threshold used for
// test_bonus clustering: cfg.ClusterDensityThreshold if set, else
// supersedeThreshold (spec.md §9 Open Question — the two parameters
// default to the same value by design).
func (s *Scorer) clusterDensityThreshold(supersedeThreshold float64) float64 {
	if s.cfg.ClusterDensityThreshold != nil {
		return *s.cfg.ClusterDensityThreshold
	}
	return supersedeThreshold
}

// Score computes and sets b.QualityScore, returning the same value for
// convenience. supersedeThreshold is the detector's
// PeakSupersedeThreshold, used as the test_bonus clustering fallback.
func (s *Scorer) Score(b *breakout.Breakout, supersedeThreshold float64) float64 {
	breakdown := s.Breakdown(*b, supersedeThreshold)
	b.QualityScore = breakdown.Total
	return breakdown.Total
}

// ScoreBatch scores every breakout in bs in place.
func (s *Scorer) ScoreBatch(bs []breakout.Breakout, supersedeThreshold float64) {
	for i := range bs {
		s.Score(&bs[i], supersedeThreshold)
	}
}

// Breakdown computes the full explainable ScoreBreakdown for b without
// mutating it.
func (s *Scorer) Breakdown(b breakout.Breakout, supersedeThreshold float64) ScoreBreakdown {
	bonuses := []BonusResult{
		namedBonus("age_bonus", s.tables.age, ageRawValue(b)),
		namedBonus("test_bonus", s.tables.test, float64(testRawValue(b, s.clusterDensityThreshold(supersedeThreshold)))),
		namedBonus("height_bonus", s.tables.height, heightRawValue(b)),
		namedBonus("peak_volume_bonus", s.tables.peakVolume, peakVolumeRawValue(b)),
		namedBonus("volume_bonus", s.tables.volume, b.VolumeSurgeRatio),
		namedBonus("gap_bonus", s.tables.gap, gapRawValue(b)),
		namedBonus("continuity_bonus", s.tables.continuity, float64(b.ContinuityDays)),
		namedBonus("momentum_bonus", s.tables.momentum, float64(b.RecentBreakoutCount)),
	}

	total := s.cfg.BaseScore
	for _, bonus := range bonuses {
		total *= bonus.Multiplier
	}

	ids := b.BrokenPeakIDs()
	return ScoreBreakdown{
		Base:          s.cfg.BaseScore,
		Bonuses:       bonuses,
		Total:         total,
		BrokenPeakIDs: ids,
	}
}

func namedBonus(name string, table StepTable, raw float64) BonusResult {
	multiplier, hit := table.Lookup(raw)
	return BonusResult{
		Name:         name,
		RawValue:     raw,
		ThresholdHit: hit,
		Multiplier:   multiplier,
		Triggered:    hit >= 0,
	}
}

func ageRawValue(b breakout.Breakout) float64 {
	if len(b.BrokenPeaks) == 0 {
		return 0
	}
	oldest := b.BrokenPeaks[0].Index
	for _, p := range b.BrokenPeaks[1:] {
		if p.Index < oldest {
			oldest = p.Index
		}
	}
	return float64(b.Index - oldest)
}

func heightRawValue(b breakout.Breakout) float64 {
	max := 0.0
	for _, p := range b.BrokenPeaks {
		if p.RelativeHeight > max {
			max = p.RelativeHeight
		}
	}
	return max
}

func peakVolumeRawValue(b breakout.Breakout) float64 {
	max := 0.0
	for _, p := range b.BrokenPeaks {
		if p.VolumeSurgeRatio > max {
			max = p.VolumeSurgeRatio
		}
	}
	return max
}

func gapRawValue(b breakout.Breakout) float64 {
	if !b.GapUp {
		return 0
	}
	return b.GapUpPct
}

// testRawValue returns the size of the largest price-clustered subset of
// b.BrokenPeaks, where a cluster is a maximal run of ascending-sorted
// prices whose consecutive neighbours differ by no more than
// proximityThreshold * price (spec.md §4.3 "Clustering for test_bonus").
func testRawValue(b breakout.Breakout, proximityThreshold float64) int {
	if len(b.BrokenPeaks) == 0 {
		return 0
	}
	prices := make([]float64, len(b.BrokenPeaks))
	for i, p := range b.BrokenPeaks {
		prices[i] = p.Price
	}
	sort.Float64s(prices)

	best := 1
	current := 1
	for i := 1; i < len(prices); i++ {
		if prices[i]-prices[i-1] <= proximityThreshold*prices[i] {
			current++
		} else {
			current = 1
		}
		if current > best {
			best = current
		}
	}
	return best
}
