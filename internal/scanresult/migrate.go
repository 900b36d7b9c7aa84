package scanresult

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/chartscan/breakoutscan/internal/config"
)

// legacyScanMetadataV2 is the schema-2.0 "window-only config" shape: it
// predates peak_measure/breakout_modes and the feature/scorer parameter
// blocks entirely.
type legacyScanMetadataV2 struct {
	SchemaVersion string                        `json:"schema_version"`
	ScanDate      time.Time                      `json:"scan_date"`
	TotalStocks   int                            `json:"total_stocks"`
	StocksScanned int                            `json:"stocks_scanned"`
	ScanErrors    int                            `json:"scan_errors"`
	StartDate     time.Time                      `json:"start_date"`
	EndDate       time.Time                      `json:"end_date"`
	DetectorParams config.LegacyDetectorConfigV2 `json:"detector_params"`
}

type legacyDocumentV2 struct {
	ScanMetadata legacyScanMetadataV2 `json:"scan_metadata"`
	Results      []StockResult        `json:"results"`
	SummaryStats SummaryStats         `json:"summary_stats"`
}

// probeSchemaVersion peeks at schema_version without fully decoding data.
func probeSchemaVersion(data []byte) (string, error) {
	var probe struct {
		ScanMetadata struct {
			SchemaVersion string `json:"schema_version"`
		} `json:"scan_metadata"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return "", fmt.Errorf("scanresult: probe schema version: %w", err)
	}
	return probe.ScanMetadata.SchemaVersion, nil
}

// Load decodes a scan-result document, auto-migrating a schema-2.0
// document to 3.0 by filling the fields it never had with defaults
// (spec.md §6: "Schema versions 2.0 ... must auto-migrate to 3.0 by
// filling defaults").
func Load(data []byte) (Document, error) {
	version, err := probeSchemaVersion(data)
	if err != nil {
		return Document{}, err
	}

	if version == LegacySchemaVersion {
		return loadLegacyV2(data)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("scanresult: unmarshal document: %w", err)
	}
	return doc, nil
}

func loadLegacyV2(data []byte) (Document, error) {
	var legacy legacyDocumentV2
	if err := json.Unmarshal(data, &legacy); err != nil {
		return Document{}, fmt.Errorf("scanresult: unmarshal legacy v2 document: %w", err)
	}

	return Document{
		ScanMetadata: ScanMetadata{
			SchemaVersion:           CurrentSchemaVersion,
			ScanDate:                legacy.ScanMetadata.ScanDate,
			TotalStocks:             legacy.ScanMetadata.TotalStocks,
			StocksScanned:           legacy.ScanMetadata.StocksScanned,
			ScanErrors:              legacy.ScanMetadata.ScanErrors,
			StartDate:               legacy.ScanMetadata.StartDate,
			EndDate:                 legacy.ScanMetadata.EndDate,
			DetectorParams:          config.MigrateV2ToV3(legacy.ScanMetadata.DetectorParams),
			FeatureCalculatorParams: config.DefaultFeatureConfig(),
			QualityScorerParams:     config.DefaultScorerConfig(),
		},
		Results:      legacy.Results,
		SummaryStats: legacy.SummaryStats,
	}, nil
}
