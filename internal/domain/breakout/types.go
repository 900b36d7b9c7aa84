// Package breakout implements the incremental breakout-detection engine:
// it maintains a set of active resistance peaks over a bar stream for a
// single symbol and emits BreakoutInfo when a bar penetrates one or more
// of them.
package breakout

import "time"

// Bar is one OHLCV record at one calendar day. Date must be strictly
// increasing across successive AddBar calls.
type Bar struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// PeakMeasure selects which price a peak is measured by.
type PeakMeasure string

const (
	MeasureHigh    PeakMeasure = "high"
	MeasureClose   PeakMeasure = "close"
	MeasureBodyTop PeakMeasure = "body_top"
)

// BreakoutMode selects which bar price is checked against a peak when
// deciding whether it has been broken. A breakout is confirmed if any
// configured mode exceeds the peak's price by ExceedThreshold.
type BreakoutMode string

const (
	ModeHigh    BreakoutMode = "high"
	ModeClose   BreakoutMode = "close"
	ModeBodyTop BreakoutMode = "body_top"
)

// Peak is a historical local maximum treated as resistance.
type Peak struct {
	ID    int64
	Index int
	Price float64
	Date  time.Time

	VolumeSurgeRatio    float64
	CandleChangePct     float64
	LeftSuppressionDays int
	RightSuppressionDays int
	RelativeHeight      float64
}

// BreakoutInfo is the detector's raw, pre-enrichment breakout output.
type BreakoutInfo struct {
	Index            int
	Price            float64
	Date             time.Time
	BrokenPeaks      []Peak
	SupersededPeaks  []Peak
}

// HighestPeakBroken returns the broken peak with the greatest price.
// BrokenPeaks is always non-empty on an emitted BreakoutInfo.
func (b BreakoutInfo) HighestPeakBroken() Peak {
	highest := b.BrokenPeaks[0]
	for _, p := range b.BrokenPeaks[1:] {
		if p.Price > highest.Price {
			highest = p
		}
	}
	return highest
}

// BrokenPeakIDs returns the IDs of every broken peak.
func (b BreakoutInfo) BrokenPeakIDs() []int64 {
	ids := make([]int64, len(b.BrokenPeaks))
	for i, p := range b.BrokenPeaks {
		ids[i] = p.ID
	}
	return ids
}

// SupersededPeakIDs returns the IDs of every peak removed by this breakout.
func (b BreakoutInfo) SupersededPeakIDs() []int64 {
	ids := make([]int64, len(b.SupersededPeaks))
	for i, p := range b.SupersededPeaks {
		ids[i] = p.ID
	}
	return ids
}

// BreakoutRecord is a lightweight log entry kept for momentum scoring and
// cache persistence.
type BreakoutRecord struct {
	Index    int
	Date     time.Time
	Price    float64
	NumPeaks int
}

// BreakoutType classifies the candle shape of a breakout bar.
type BreakoutType string

const (
	TypeYang   BreakoutType = "yang"
	TypeYin    BreakoutType = "yin"
	TypeShadow BreakoutType = "shadow"
)

// Breakout is the fully enriched breakout produced by FeatureCalculator.
type Breakout struct {
	Symbol string
	Date   time.Time
	Price  float64
	Index  int

	BrokenPeaks     []Peak
	SupersededPeaks []Peak

	Type            BreakoutType
	PriceChangePct  float64
	GapUp           bool
	GapUpPct        float64
	VolumeSurgeRatio float64
	ContinuityDays  int
	StabilityScore  float64

	// Optional ATR-derived attributes. Populated together or not at all.
	ATRValue             *float64
	ATRNormalizedHeight  *float64
	DailyReturnATRRatio  *float64

	RecentBreakoutCount int
	Labels              map[string]*float64

	QualityScore float64
}

// NumPeaksBroken returns len(BrokenPeaks).
func (b Breakout) NumPeaksBroken() int { return len(b.BrokenPeaks) }

// BrokenPeakIDs returns the IDs of every broken peak.
func (b Breakout) BrokenPeakIDs() []int64 {
	ids := make([]int64, len(b.BrokenPeaks))
	for i, p := range b.BrokenPeaks {
		ids[i] = p.ID
	}
	return ids
}

// HighestPeakBroken returns the broken peak with the greatest price.
func (b Breakout) HighestPeakBroken() Peak {
	highest := b.BrokenPeaks[0]
	for _, p := range b.BrokenPeaks[1:] {
		if p.Price > highest.Price {
			highest = p
		}
	}
	return highest
}

// Status summarizes a detector's current state for external consumers.
type Status struct {
	Symbol           string
	TotalBars        int
	ActivePeaksCount int
	LastDate         *time.Time
	CacheExists      bool
}
