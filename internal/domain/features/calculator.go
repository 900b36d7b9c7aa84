// Package features turns a raw breakout.BreakoutInfo into a fully
// enriched breakout.Breakout: candle classification, gap detection,
// volume surge, continuity, stability, optional ATR fields and forward
// return labels (spec.md §4.2).
package features

import (
	"fmt"
	"math"

	"github.com/chartscan/breakoutscan/internal/config"
	"github.com/chartscan/breakoutscan/internal/domain/breakout"
	"github.com/chartscan/breakoutscan/internal/domain/indicators"
)

// Calculator is a stateless enrichment step: every method call depends
// only on its arguments, never on prior calls.
type Calculator struct {
	cfg config.FeatureConfig

	// ATRPeriod enables ATR-derived fields when > 0. Left at zero, Enrich
	// leaves ATRValue/ATRNormalizedHeight/DailyReturnATRRatio nil.
	ATRPeriod int
}

// NewCalculator constructs a Calculator from cfg. ATR fields stay disabled
// until WithATR is used.
func NewCalculator(cfg config.FeatureConfig) *Calculator {
	return &Calculator{cfg: cfg}
}

// WithATR returns a copy of c with ATR-derived fields enabled using period.
func (c Calculator) WithATR(period int) *Calculator {
	c.ATRPeriod = period
	return &c
}

// Enrich computes a full breakout.Breakout from bars (the entire bar
// history fed to the detector so far, 0-indexed) and info (the detector's
// raw breakout output for bars[info.Index]). recentBreakoutCount should
// come from Detector.GetRecentBreakoutCount(info.Index); callers with no
// detector handy should pass 1 (spec.md §4.2: "if detector supplied, ask
// it; else 1").
func (c *Calculator) Enrich(bars []breakout.Bar, info breakout.BreakoutInfo, symbol string, recentBreakoutCount int) breakout.Breakout {
	idx := info.Index
	row := bars[idx]

	out := breakout.Breakout{
		Symbol:              symbol,
		Date:                info.Date,
		Price:               info.Price,
		Index:               idx,
		BrokenPeaks:         info.BrokenPeaks,
		SupersededPeaks:     info.SupersededPeaks,
		Type:                classifyType(row),
		VolumeSurgeRatio:    volumeSurgeRatio(bars, idx),
		ContinuityDays:      c.continuityDays(bars, idx),
		RecentBreakoutCount: recentBreakoutCount,
	}

	if row.Open > 0 {
		out.PriceChangePct = (row.Close - row.Open) / row.Open
	}

	if idx > 0 {
		prevClose := bars[idx-1].Close
		out.GapUp = row.Open > prevClose
		if prevClose > 0 && out.GapUp {
			out.GapUpPct = (row.Open - prevClose) / prevClose
		}
	}

	highestPeak := info.HighestPeakBroken()
	out.StabilityScore = c.stabilityScore(bars, idx, highestPeak.Price)

	if c.ATRPeriod > 0 {
		c.attachATR(bars, idx, &out)
	}

	for _, lc := range c.cfg.LabelConfigs {
		if out.Labels == nil {
			out.Labels = map[string]*float64{}
		}
		key := labelKey(lc)
		out.Labels[key] = forwardLabel(bars, idx, lc)
	}

	return out
}

func classifyType(row breakout.Bar) breakout.BreakoutType {
	if row.Open == 0 {
		return breakout.TypeShadow
	}
	changeRatio := math.Abs((row.Close - row.Open) / row.Open)
	switch {
	case changeRatio < 0.01:
		return breakout.TypeShadow
	case row.Close > row.Open:
		return breakout.TypeYang
	default:
		return breakout.TypeYin
	}
}

func volumeSurgeRatio(bars []breakout.Bar, idx int) float64 {
	windowStart := idx - 63
	if windowStart < 0 {
		windowStart = 0
	}
	if idx <= windowStart {
		return 1.0
	}
	var sum float64
	for i := windowStart; i < idx; i++ {
		sum += bars[i].Volume
	}
	avg := sum / float64(idx-windowStart)
	if avg <= 0 {
		return 1.0
	}
	return bars[idx].Volume / avg
}

func (c *Calculator) continuityDays(bars []breakout.Bar, idx int) int {
	lookback := c.cfg.ContinuityLookback
	if lookback <= 0 {
		lookback = 5
	}
	limit := idx - lookback
	if limit < 0 {
		limit = 0
	}
	days := 0
	for i := idx; i > limit; i-- {
		if bars[i].Close > bars[i].Open {
			days++
		} else {
			break
		}
	}
	return days
}

func (c *Calculator) stabilityScore(bars []breakout.Bar, idx int, peakPrice float64) float64 {
	lookforward := c.cfg.StabilityLookforward
	if lookforward <= 0 {
		lookforward = 10
	}
	end := idx + lookforward + 1
	if end > len(bars) {
		end = len(bars)
	}
	start := idx + 1
	if start >= end {
		return 50.0
	}
	stable := 0
	total := end - start
	for i := start; i < end; i++ {
		if bars[i].Low >= peakPrice {
			stable++
		}
	}
	return (float64(stable) / float64(total)) * 100
}

func (c *Calculator) attachATR(bars []breakout.Bar, idx int, out *breakout.Breakout) {
	upto := bars[:idx+1]
	atrBars := make([]indicators.ATRBar, len(upto))
	for i, b := range upto {
		atrBars[i] = indicators.ATRBar{High: b.High, Low: b.Low, Close: b.Close}
	}
	result := indicators.CalculateATR(atrBars, c.ATRPeriod)
	if !result.IsValid || result.Value <= 0 {
		return
	}
	atrValue := result.Value
	normalizedHeight := 0.0
	if len(out.BrokenPeaks) > 0 {
		normalizedHeight = out.HighestPeakBroken().RelativeHeight * bars[idx].Close / atrValue
	}
	dailyReturnRatio := 0.0
	if bars[idx].Open > 0 {
		dailyReturnRatio = (bars[idx].Close - bars[idx].Open) / atrValue
	}
	out.ATRValue = &atrValue
	out.ATRNormalizedHeight = &normalizedHeight
	out.DailyReturnATRRatio = &dailyReturnRatio
}

func labelKey(lc config.LabelConfig) string {
	return fmt.Sprintf("fwd_%d_%d", lc.MinDays, lc.MaxDays)
}

func forwardLabel(bars []breakout.Bar, idx int, lc config.LabelConfig) *float64 {
	maxIdx := idx + lc.MaxDays
	minIdx := idx + lc.MinDays
	if maxIdx >= len(bars) || minIdx >= len(bars) || minIdx < 0 {
		return nil
	}
	base := bars[minIdx].Close
	if base == 0 {
		return nil
	}
	label := (bars[maxIdx].Close - base) / base
	return &label
}
