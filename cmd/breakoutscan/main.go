package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/chartscan/breakoutscan/internal/application"
	"github.com/chartscan/breakoutscan/internal/config"
	"github.com/chartscan/breakoutscan/internal/domain/breakout"
	"github.com/chartscan/breakoutscan/internal/httpapi"
	applog "github.com/chartscan/breakoutscan/internal/log"
	"github.com/chartscan/breakoutscan/internal/metrics"
	"github.com/chartscan/breakoutscan/internal/persistence"
	"github.com/chartscan/breakoutscan/internal/persistence/sqlstore"
	"github.com/chartscan/breakoutscan/internal/resilience"
	"github.com/chartscan/breakoutscan/internal/scanresult"
)

const version = "v1.0.0"

func main() {
	applog.Setup(zerolog.InfoLevel)

	rootCmd := &cobra.Command{
		Use:     "breakoutscan",
		Short:   "Incremental breakout-detection engine for stock charts",
		Version: version,
		Long: `breakoutscan maintains a sliding-window peak set over a bar stream
and emits scored breakouts when price penetrates a prior resistance peak.

No trading decisions are made here: this tool wires the detection,
feature-enrichment and scoring stages together for batch scans and for the
read-only HTTP edge.`,
	}

	rootCmd.AddCommand(newScanCmd())
	rootCmd.AddCommand(newServeCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func newScanCmd() *cobra.Command {
	var inputDir, outputPath, configPath, cacheDir, redisAddr, postgresDSN string
	var atrPeriod int
	var quiet bool

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run a batch scan over a directory of per-symbol bar CSVs",
		Long:  "Each file in --input is named SYMBOL.csv with a date,open,high,low,close,volume header.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadAppConfig(configPath)
			if err != nil {
				return err
			}

			cache, err := newCache(cacheDir, redisAddr)
			if err != nil {
				return err
			}

			symbolBars, err := loadSymbolDir(inputDir)
			if err != nil {
				return err
			}
			if len(symbolBars) == 0 {
				return fmt.Errorf("breakoutscan: no CSV files found in %s", inputDir)
			}

			reg := metrics.NewRegistry(prometheus.NewRegistry())
			opts := application.ScanOptions{Cfg: cfg, Cache: cache, Metrics: reg, ATRPeriod: atrPeriod}

			progress := applog.NewScanProgress(len(symbolBars), quiet)
			i := 0
			for symbol := range symbolBars {
				i++
				progress.Update(i, symbol)
			}

			startedAt := time.Now()
			doc := application.ScanBatch(cmd.Context(), symbolBars, opts, startedAt)
			progress.Finish()

			data, err := scanresult.Marshal(doc)
			if err != nil {
				return err
			}
			if err := os.WriteFile(outputPath, data, 0o644); err != nil {
				return fmt.Errorf("breakoutscan: write scan result: %w", err)
			}

			if postgresDSN != "" {
				if err := archiveToPostgres(cmd.Context(), postgresDSN, startedAt, doc.Results); err != nil {
					log.Warn().Err(err).Msg("postgres archive failed, scan result file was still written")
				}
			}
			log.Info().
				Int("stocks_scanned", doc.ScanMetadata.StocksScanned).
				Int("scan_errors", doc.ScanMetadata.ScanErrors).
				Int("total_breakouts", doc.SummaryStats.TotalBreakouts).
				Str("output", outputPath).
				Msg("batch scan complete")
			return nil
		},
	}

	cmd.Flags().StringVar(&inputDir, "input", "", "directory of SYMBOL.csv bar files (required)")
	cmd.Flags().StringVar(&outputPath, "output", "scan_result.json", "path to write the scan result JSON document")
	cmd.Flags().StringVar(&configPath, "config", "", "optional YAML config file overriding defaults")
	cmd.Flags().StringVar(&cacheDir, "cache-dir", "", "directory for detector snapshot cache (disabled if empty)")
	cmd.Flags().StringVar(&redisAddr, "redis-addr", "", "Redis address for the detector cache, overriding --cache-dir")
	cmd.Flags().StringVar(&postgresDSN, "postgres-dsn", "", "Postgres DSN to archive scan results into (disabled if empty)")
	cmd.Flags().IntVar(&atrPeriod, "atr-period", 0, "enable ATR-derived features using this period (0 disables)")
	cmd.Flags().BoolVar(&quiet, "quiet", false, "suppress the terminal progress indicator")
	cmd.MarkFlagRequired("input")

	return cmd
}

// archiveToPostgres opens a short-lived connection and writes results into
// the scan_results table (see internal/persistence/sqlstore/schema.go).
func archiveToPostgres(ctx context.Context, dsn string, scanDate time.Time, results []scanresult.StockResult) error {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return fmt.Errorf("breakoutscan: connect postgres: %w", err)
	}
	defer db.Close()

	repo := sqlstore.NewScanResultRepo(db, 10*time.Second)
	if err := repo.InsertBatch(ctx, scanDate, results); err != nil {
		return fmt.Errorf("breakoutscan: archive scan results: %w", err)
	}
	log.Info().Int("results", len(results)).Msg("archived scan results to postgres")
	return nil
}

func newServeCmd() *cobra.Command {
	var host string
	var port int
	var configPath, cacheDir, redisAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the read-only HTTP edge: status, metrics, health and live-bar ingest",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadAppConfig(configPath)
			if err != nil {
				return err
			}
			cache, err := newCache(cacheDir, redisAddr)
			if err != nil {
				return err
			}

			registry := httpapi.NewRegistry(cfg.Detector, cache)
			serverCfg := httpapi.DefaultServerConfig()
			if host != "" {
				serverCfg.Host = host
			}
			if port != 0 {
				serverCfg.Port = port
			}

			server, err := httpapi.NewServer(serverCfg, registry)
			if err != nil {
				return fmt.Errorf("breakoutscan: start http edge: %w", err)
			}
			log.Info().Str("address", server.Address()).Msg("serving breakoutscan http edge")
			return server.Start()
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "override bind host (default 127.0.0.1)")
	cmd.Flags().IntVar(&port, "port", 0, "override bind port (default 8080 or $HTTP_PORT)")
	cmd.Flags().StringVar(&configPath, "config", "", "optional YAML config file overriding defaults")
	cmd.Flags().StringVar(&cacheDir, "cache-dir", "", "directory for detector snapshot cache (disabled if empty)")
	cmd.Flags().StringVar(&redisAddr, "redis-addr", "", "Redis address for the detector cache, overriding --cache-dir")

	return cmd
}

func loadAppConfig(path string) (config.AppConfig, error) {
	if path == "" {
		return config.DefaultAppConfig(), nil
	}
	return config.LoadAppConfig(path)
}

// newCache builds the detector snapshot cache behind a circuit breaker.
// redisAddr, when set, takes precedence over dir: live-mode deployments
// share one Redis instance across processes instead of per-process files
// (spec.md §4.1.3).
func newCache(dir, redisAddr string) (persistence.Cache, error) {
	if redisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: redisAddr})
		redisCache := persistence.NewRedisCache(client, "breakoutscan:", 0)
		return resilience.NewBreakerCache("detector-cache-redis", redisCache, 5, 10*time.Second, 30*time.Second), nil
	}
	if dir == "" {
		return nil, nil
	}
	fileCache, err := persistence.NewFileCache(dir)
	if err != nil {
		return nil, fmt.Errorf("breakoutscan: create cache dir: %w", err)
	}
	return resilience.NewBreakerCache("detector-cache-file", fileCache, 5, 10*time.Second, 30*time.Second), nil
}

// loadSymbolDir reads every *.csv file in dir, one symbol per file named
// SYMBOL.csv, into a map keyed by the upper-cased filename stem.
func loadSymbolDir(dir string) (map[string][]breakout.Bar, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("breakoutscan: read input dir: %w", err)
	}

	symbolBars := make(map[string][]breakout.Bar)
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".csv") {
			continue
		}
		symbol := strings.ToUpper(strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name())))
		bars, err := application.LoadBarsCSV(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		symbolBars[symbol] = bars
	}
	return symbolBars, nil
}
