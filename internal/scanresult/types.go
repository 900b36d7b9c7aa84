// Package scanresult implements the on-disk JSON document a batch scan
// produces for the visualisation consumer (spec.md §6), including the
// schema 2.0 → 3.0 auto-migration for "window-only" legacy detector
// configs.
package scanresult

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/chartscan/breakoutscan/internal/config"
)

// CurrentSchemaVersion is the version this package writes. Load migrates
// only LegacySchemaVersion documents; any other version is decoded as is.
const CurrentSchemaVersion = "3.0"

// LegacySchemaVersion identifies a schema-2.0 "window-only config"
// document that predates peak_measure/breakout_modes.
const LegacySchemaVersion = "2.0"

// ScanMetadata describes the parameters and extent of one batch scan.
type ScanMetadata struct {
	SchemaVersion          string              `json:"schema_version"`
	ScanDate               time.Time           `json:"scan_date"`
	TotalStocks            int                 `json:"total_stocks"`
	StocksScanned          int                 `json:"stocks_scanned"`
	ScanErrors             int                 `json:"scan_errors"`
	StartDate              time.Time           `json:"start_date"`
	EndDate                time.Time           `json:"end_date"`
	DetectorParams         config.DetectorConfig `json:"detector_params"`
	FeatureCalculatorParams config.FeatureConfig  `json:"feature_calculator_params"`
	QualityScorerParams    config.ScorerConfig   `json:"quality_scorer_params"`
}

// PeakRecord is a peak as it appears inside a single stock's result,
// referenced by id from BreakoutRecord.
type PeakRecord struct {
	ID                   int64     `json:"id"`
	Price                float64   `json:"price"`
	Date                 time.Time `json:"date"`
	Index                int       `json:"index"`
	VolumeSurgeRatio     float64   `json:"volume_surge_ratio"`
	CandleChangePct      float64   `json:"candle_change_pct"`
	LeftSuppressionDays  int       `json:"left_suppression_days"`
	RightSuppressionDays int       `json:"right_suppression_days"`
	RelativeHeight       float64   `json:"relative_height"`
	IsActive             bool      `json:"is_active"`
}

// BreakoutRecordJSON is a fully enriched breakout as it appears inside a
// single stock's result, referencing peaks by id.
type BreakoutRecordJSON struct {
	Date                time.Time           `json:"date"`
	Price               float64             `json:"price"`
	Index               int                 `json:"index"`
	BrokenPeakIDs       []int64             `json:"broken_peak_ids"`
	SupersededPeakIDs   []int64             `json:"superseded_peak_ids"`
	NumPeaksBroken      int                 `json:"num_peaks_broken"`
	Type                string              `json:"type"`
	PriceChangePct      float64             `json:"price_change_pct"`
	GapUpPct            float64             `json:"gap_up_pct"`
	VolumeSurgeRatio    float64             `json:"volume_surge_ratio"`
	ContinuityDays      int                 `json:"continuity_days"`
	StabilityScore      float64             `json:"stability_score"`
	QualityScore        float64             `json:"quality_score"`
	RecentBreakoutCount int                 `json:"recent_breakout_count"`
	Labels              map[string]*float64 `json:"labels,omitempty"`

	ATRValue            *float64 `json:"atr_value,omitempty"`
	ATRNormalizedHeight *float64 `json:"atr_normalized_height,omitempty"`
	DailyReturnATRRatio *float64 `json:"daily_return_atr_ratio,omitempty"`
}

// StockResult is one symbol's full scan output.
type StockResult struct {
	Symbol         string    `json:"symbol"`
	ScanStartDate  time.Time `json:"scan_start_date"`
	ScanEndDate    time.Time `json:"scan_end_date"`
	DataPoints     int       `json:"data_points"`
	ActivePeaks    int       `json:"active_peaks"`
	TotalBreakouts int       `json:"total_breakouts"`
	AvgQuality     float64   `json:"avg_quality"`
	MaxQuality     float64   `json:"max_quality"`
	MultiPeakCount int       `json:"multi_peak_count"`

	AllPeaks  []PeakRecord          `json:"all_peaks"`
	Breakouts []BreakoutRecordJSON `json:"breakouts"`
}

// SummaryStats aggregates TotalBreakouts/StocksWithBreakouts/averages
// across every StockResult in a Document.
type SummaryStats struct {
	TotalBreakouts     int     `json:"total_breakouts"`
	StocksWithBreakouts int    `json:"stocks_with_breakouts"`
	AvgQuality         float64 `json:"avg_quality"`
}

// Document is the complete scan-result JSON document (spec.md §6).
type Document struct {
	ScanMetadata ScanMetadata  `json:"scan_metadata"`
	Results      []StockResult `json:"results"`
	SummaryStats SummaryStats  `json:"summary_stats"`
}

// Marshal renders doc as indented JSON.
func Marshal(doc Document) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("scanresult: marshal document: %w", err)
	}
	return data, nil
}

// BuildSummaryStats computes SummaryStats from results.
func BuildSummaryStats(results []StockResult) SummaryStats {
	stats := SummaryStats{}
	var qualitySum float64
	var qualityCount int
	for _, r := range results {
		stats.TotalBreakouts += r.TotalBreakouts
		if r.TotalBreakouts > 0 {
			stats.StocksWithBreakouts++
		}
		for _, b := range r.Breakouts {
			qualitySum += b.QualityScore
			qualityCount++
		}
	}
	if qualityCount > 0 {
		stats.AvgQuality = qualitySum / float64(qualityCount)
	}
	return stats
}
