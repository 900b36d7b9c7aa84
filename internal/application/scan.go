package application

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/chartscan/breakoutscan/internal/config"
	"github.com/chartscan/breakoutscan/internal/domain/breakout"
	"github.com/chartscan/breakoutscan/internal/domain/features"
	"github.com/chartscan/breakoutscan/internal/domain/scoring"
	"github.com/chartscan/breakoutscan/internal/metrics"
	"github.com/chartscan/breakoutscan/internal/persistence"
	"github.com/chartscan/breakoutscan/internal/scanresult"
)

// ScanOptions configures one batch-scan run across a set of symbols.
type ScanOptions struct {
	Cfg       config.AppConfig
	Cache     persistence.Cache
	Metrics   *metrics.Registry
	ATRPeriod int
}

// ScanSymbol runs symbol's full bar history through the Detector,
// FeatureCalculator and Scorer, returning its enriched StockResult.
func ScanSymbol(ctx context.Context, symbol string, bars []breakout.Bar, opts ScanOptions) (scanresult.StockResult, error) {
	detector, err := breakout.NewDetector(symbol, opts.Cfg.Detector, opts.Cache)
	if err != nil {
		return scanresult.StockResult{}, fmt.Errorf("application: new detector for %s: %w", symbol, err)
	}
	if _, err := detector.Load(ctx); err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Msg("detector cache load failed, scanning from scratch")
	}

	calc := features.NewCalculator(opts.Cfg.Feature)
	if opts.ATRPeriod > 0 {
		calc = calc.WithATR(opts.ATRPeriod)
	}
	scorer := scoring.NewScorer(opts.Cfg.Scorer)

	var enriched []breakout.Breakout
	for _, b := range bars {
		info, err := detector.AddBar(b)
		if err != nil {
			return scanresult.StockResult{}, fmt.Errorf("application: add bar for %s: %w", symbol, err)
		}
		if opts.Metrics != nil {
			opts.Metrics.BarsProcessed.WithLabelValues(symbol).Inc()
		}
		if info == nil {
			continue
		}

		recent := detector.GetRecentBreakoutCount(info.Index)
		out := calc.Enrich(detector.Bars(), *info, symbol, recent)
		scorer.Score(&out, opts.Cfg.Detector.PeakSupersedeThreshold)
		enriched = append(enriched, out)

		if opts.Metrics != nil {
			opts.Metrics.BreakoutsTotal.WithLabelValues(symbol).Inc()
			opts.Metrics.QualityScore.WithLabelValues(symbol).Observe(out.QualityScore)
		}
	}

	if err := detector.Save(ctx); err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Msg("detector cache save failed, continuing")
		if opts.Metrics != nil {
			opts.Metrics.PersistenceErrs.WithLabelValues("save").Inc()
		}
	}
	if opts.Metrics != nil {
		opts.Metrics.ActivePeaks.WithLabelValues(symbol).Set(float64(len(detector.ActivePeaks())))
	}

	return buildStockResult(symbol, bars, detector, enriched), nil
}

func buildStockResult(symbol string, bars []breakout.Bar, detector *breakout.Detector, enriched []breakout.Breakout) scanresult.StockResult {
	result := scanresult.StockResult{
		Symbol:         symbol,
		DataPoints:     len(bars),
		ActivePeaks:    len(detector.ActivePeaks()),
		TotalBreakouts: len(enriched),
	}
	if len(bars) > 0 {
		result.ScanStartDate = bars[0].Date
		result.ScanEndDate = bars[len(bars)-1].Date
	}

	peakIndex := map[int64]breakout.Peak{}
	activeIDs := map[int64]bool{}
	for _, p := range detector.ActivePeaks() {
		peakIndex[p.ID] = p
		activeIDs[p.ID] = true
	}

	var qualitySum, maxQuality float64
	for _, b := range enriched {
		qualitySum += b.QualityScore
		if b.QualityScore > maxQuality {
			maxQuality = b.QualityScore
		}
		if b.NumPeaksBroken() > 1 {
			result.MultiPeakCount++
		}
		for _, p := range b.BrokenPeaks {
			peakIndex[p.ID] = p
		}
		result.Breakouts = append(result.Breakouts, toBreakoutRecordJSON(b))
	}
	if len(enriched) > 0 {
		result.AvgQuality = qualitySum / float64(len(enriched))
	}
	result.MaxQuality = maxQuality

	for _, p := range peakIndex {
		result.AllPeaks = append(result.AllPeaks, scanresult.PeakRecord{
			ID:                   p.ID,
			Price:                p.Price,
			Date:                 p.Date,
			Index:                p.Index,
			VolumeSurgeRatio:     p.VolumeSurgeRatio,
			CandleChangePct:      p.CandleChangePct,
			LeftSuppressionDays:  p.LeftSuppressionDays,
			RightSuppressionDays: p.RightSuppressionDays,
			RelativeHeight:       p.RelativeHeight,
			IsActive:             activeIDs[p.ID],
		})
	}
	return result
}

func toBreakoutRecordJSON(b breakout.Breakout) scanresult.BreakoutRecordJSON {
	return scanresult.BreakoutRecordJSON{
		Date:                b.Date,
		Price:               b.Price,
		Index:               b.Index,
		BrokenPeakIDs:       b.BrokenPeakIDs(),
		SupersededPeakIDs:   supersededIDs(b),
		NumPeaksBroken:      b.NumPeaksBroken(),
		Type:                string(b.Type),
		PriceChangePct:      b.PriceChangePct,
		GapUpPct:            b.GapUpPct,
		VolumeSurgeRatio:    b.VolumeSurgeRatio,
		ContinuityDays:      b.ContinuityDays,
		StabilityScore:      b.StabilityScore,
		QualityScore:        b.QualityScore,
		RecentBreakoutCount: b.RecentBreakoutCount,
		Labels:              b.Labels,
		ATRValue:            b.ATRValue,
		ATRNormalizedHeight: b.ATRNormalizedHeight,
		DailyReturnATRRatio: b.DailyReturnATRRatio,
	}
}

func supersededIDs(b breakout.Breakout) []int64 {
	ids := make([]int64, len(b.SupersededPeaks))
	for i, p := range b.SupersededPeaks {
		ids[i] = p.ID
	}
	return ids
}

// ScanBatch runs ScanSymbol over every entry in symbolBars, building a
// complete scanresult.Document. A per-symbol error increments ScanErrors
// and is logged but does not abort the batch.
func ScanBatch(ctx context.Context, symbolBars map[string][]breakout.Bar, opts ScanOptions, startedAt time.Time) scanresult.Document {
	meta := scanresult.ScanMetadata{
		SchemaVersion:           scanresult.CurrentSchemaVersion,
		ScanDate:                startedAt,
		TotalStocks:             len(symbolBars),
		DetectorParams:          opts.Cfg.Detector,
		FeatureCalculatorParams: opts.Cfg.Feature,
		QualityScorerParams:     opts.Cfg.Scorer,
	}

	var results []scanresult.StockResult
	for symbol, bars := range symbolBars {
		result, err := ScanSymbol(ctx, symbol, bars, opts)
		if err != nil {
			log.Error().Err(err).Str("symbol", symbol).Msg("scan failed for symbol")
			meta.ScanErrors++
			continue
		}
		meta.StocksScanned++
		results = append(results, result)
		if meta.StartDate.IsZero() || result.ScanStartDate.Before(meta.StartDate) {
			meta.StartDate = result.ScanStartDate
		}
		if result.ScanEndDate.After(meta.EndDate) {
			meta.EndDate = result.ScanEndDate
		}
	}

	return scanresult.Document{
		ScanMetadata: meta,
		Results:      results,
		SummaryStats: scanresult.BuildSummaryStats(results),
	}
}
