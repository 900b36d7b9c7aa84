package sqlstore

// Schema is the DDL for the scan_results table. Callers run this once via
// their own migration tooling; this package does not migrate itself.
const Schema = `
CREATE TABLE IF NOT EXISTS scan_results (
	id         BIGSERIAL PRIMARY KEY,
	symbol     TEXT NOT NULL,
	scan_date  TIMESTAMPTZ NOT NULL,
	result     JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (symbol, scan_date)
);

CREATE INDEX IF NOT EXISTS idx_scan_results_symbol_date
	ON scan_results (symbol, scan_date DESC);
`
