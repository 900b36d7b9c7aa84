// Package sqlstore archives scan-result documents in Postgres, giving the
// visualisation consumer a queryable history alongside the JSON files
// written by internal/scanresult.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/chartscan/breakoutscan/internal/scanresult"
)

// ScanResultRepo persists scanresult.Document rows keyed by symbol and
// scan date.
type ScanResultRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewScanResultRepo returns a repo using db, applying timeout to every
// query.
func NewScanResultRepo(db *sqlx.DB, timeout time.Duration) *ScanResultRepo {
	return &ScanResultRepo{db: db, timeout: timeout}
}

// scanResultRow mirrors the scan_results table: one row per symbol per
// scan, with the full enriched result kept as jsonb for ad-hoc querying.
type scanResultRow struct {
	ID         int64     `db:"id"`
	Symbol     string    `db:"symbol"`
	ScanDate   time.Time `db:"scan_date"`
	Result     []byte    `db:"result"`
	CreatedAt  time.Time `db:"created_at"`
}

// InsertResult archives one symbol's StockResult for a scan run.
func (r *ScanResultRepo) InsertResult(ctx context.Context, scanDate time.Time, result scanresult.StockResult) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("sqlstore: marshal result: %w", err)
	}

	query := `
		INSERT INTO scan_results (symbol, scan_date, result)
		VALUES ($1, $2, $3)
		ON CONFLICT (symbol, scan_date) DO UPDATE SET result = EXCLUDED.result`

	if _, err := r.db.ExecContext(ctx, query, result.Symbol, scanDate, resultJSON); err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			return fmt.Errorf("sqlstore: insert result (%s): %w", pqErr.Code, err)
		}
		return fmt.Errorf("sqlstore: insert result: %w", err)
	}
	return nil
}

// InsertBatch archives every result from one scan run in a single
// transaction.
func (r *ScanResultRepo) InsertBatch(ctx context.Context, scanDate time.Time, results []scanresult.StockResult) error {
	if len(results) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout*time.Duration(len(results)/50+1))
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlstore: begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO scan_results (symbol, scan_date, result)
		VALUES ($1, $2, $3)
		ON CONFLICT (symbol, scan_date) DO UPDATE SET result = EXCLUDED.result`)
	if err != nil {
		return fmt.Errorf("sqlstore: prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, result := range results {
		resultJSON, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("sqlstore: marshal result for %s: %w", result.Symbol, err)
		}
		if _, err := stmt.ExecContext(ctx, result.Symbol, scanDate, resultJSON); err != nil {
			return fmt.Errorf("sqlstore: insert result for %s: %w", result.Symbol, err)
		}
	}
	return tx.Commit()
}

// GetLatest returns a symbol's most recently archived result, or nil if
// none exists.
func (r *ScanResultRepo) GetLatest(ctx context.Context, symbol string) (*scanresult.StockResult, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, symbol, scan_date, result, created_at
		FROM scan_results
		WHERE symbol = $1
		ORDER BY scan_date DESC
		LIMIT 1`

	var row scanResultRow
	if err := r.db.GetContext(ctx, &row, query, symbol); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("sqlstore: get latest result for %s: %w", symbol, err)
	}

	var result scanresult.StockResult
	if err := json.Unmarshal(row.Result, &result); err != nil {
		return nil, fmt.Errorf("sqlstore: unmarshal result for %s: %w", symbol, err)
	}
	return &result, nil
}

// ListBySymbol returns up to limit archived results for symbol, newest first.
func (r *ScanResultRepo) ListBySymbol(ctx context.Context, symbol string, limit int) ([]scanresult.StockResult, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, symbol, scan_date, result, created_at
		FROM scan_results
		WHERE symbol = $1
		ORDER BY scan_date DESC
		LIMIT $2`

	var rows []scanResultRow
	if err := r.db.SelectContext(ctx, &rows, query, symbol, limit); err != nil {
		return nil, fmt.Errorf("sqlstore: list results for %s: %w", symbol, err)
	}

	results := make([]scanresult.StockResult, 0, len(rows))
	for _, row := range rows {
		var result scanresult.StockResult
		if err := json.Unmarshal(row.Result, &result); err != nil {
			return nil, fmt.Errorf("sqlstore: unmarshal result for %s: %w", symbol, err)
		}
		results = append(results, result)
	}
	return results, nil
}
