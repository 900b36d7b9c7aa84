// Package metrics exposes the breakout scanner's Prometheus counters and
// gauges: bars processed, active peaks, breakouts emitted and the
// quality-score distribution.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds every metric the scanner exports.
type Registry struct {
	BarsProcessed   *prometheus.CounterVec
	ActivePeaks     *prometheus.GaugeVec
	BreakoutsTotal  *prometheus.CounterVec
	QualityScore    *prometheus.HistogramVec
	CacheHits       *prometheus.CounterVec
	CacheMisses     *prometheus.CounterVec
	PersistenceErrs *prometheus.CounterVec
	ScanDuration    prometheus.Histogram
}

// NewRegistry constructs and registers every metric against reg.
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		BarsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "breakoutscan_bars_processed_total",
				Help: "Total number of bars fed into a detector, by symbol.",
			},
			[]string{"symbol"},
		),
		ActivePeaks: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "breakoutscan_active_peaks",
				Help: "Current number of active resistance peaks, by symbol.",
			},
			[]string{"symbol"},
		),
		BreakoutsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "breakoutscan_breakouts_total",
				Help: "Total number of breakouts emitted, by symbol.",
			},
			[]string{"symbol"},
		),
		QualityScore: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "breakoutscan_quality_score",
				Help:    "Distribution of breakout quality scores.",
				Buckets: []float64{50, 60, 70, 80, 90, 100, 120, 150, 200},
			},
			[]string{"symbol"},
		),
		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "breakoutscan_cache_hits_total",
				Help: "Total number of detector cache load hits.",
			},
			[]string{"backend"},
		),
		CacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "breakoutscan_cache_misses_total",
				Help: "Total number of detector cache load misses.",
			},
			[]string{"backend"},
		),
		PersistenceErrs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "breakoutscan_persistence_errors_total",
				Help: "Total number of non-fatal persistence errors, by operation.",
			},
			[]string{"operation"},
		),
		ScanDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "breakoutscan_scan_duration_seconds",
				Help:    "Duration of a full batch scan run.",
				Buckets: prometheus.DefBuckets,
			},
		),
	}

	reg.MustRegister(
		r.BarsProcessed,
		r.ActivePeaks,
		r.BreakoutsTotal,
		r.QualityScore,
		r.CacheHits,
		r.CacheMisses,
		r.PersistenceErrs,
		r.ScanDuration,
	)
	return r
}
