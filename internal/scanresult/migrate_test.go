package scanresult

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const legacyV2Doc = `{
  "scan_metadata": {
    "schema_version": "2.0",
    "scan_date": "2024-01-01T00:00:00Z",
    "total_stocks": 10,
    "stocks_scanned": 10,
    "scan_errors": 0,
    "start_date": "2023-01-01T00:00:00Z",
    "end_date": "2024-01-01T00:00:00Z",
    "detector_params": {
      "total_window": 10,
      "min_side_bars": 2,
      "min_relative_height": 0.05,
      "exceed_threshold": 0.005,
      "peak_supersede_threshold": 0.03,
      "momentum_window": 20
    }
  },
  "results": [],
  "summary_stats": {"total_breakouts": 0, "stocks_with_breakouts": 0, "avg_quality": 0}
}`

func TestLoadMigratesLegacyV2ToCurrentSchema(t *testing.T) {
	doc, err := Load([]byte(legacyV2Doc))
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, doc.ScanMetadata.SchemaVersion)
	assert.Equal(t, "body_top", doc.ScanMetadata.DetectorParams.PeakMeasure)
	assert.Equal(t, []string{"body_top"}, doc.ScanMetadata.DetectorParams.BreakoutModes)
	assert.Equal(t, 10, doc.ScanMetadata.DetectorParams.TotalWindow)
}

func TestLoadPassesThroughCurrentSchema(t *testing.T) {
	doc := Document{ScanMetadata: ScanMetadata{SchemaVersion: CurrentSchemaVersion}}
	data, err := Marshal(doc)
	require.NoError(t, err)

	loaded, err := Load(data)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, loaded.ScanMetadata.SchemaVersion)
}

func TestBuildSummaryStats(t *testing.T) {
	results := []StockResult{
		{Symbol: "A", TotalBreakouts: 2, Breakouts: []BreakoutRecordJSON{{QualityScore: 60}, {QualityScore: 80}}},
		{Symbol: "B", TotalBreakouts: 0},
	}
	stats := BuildSummaryStats(results)
	assert.Equal(t, 2, stats.TotalBreakouts)
	assert.Equal(t, 1, stats.StocksWithBreakouts)
	assert.Equal(t, 70.0, stats.AvgQuality)
}
