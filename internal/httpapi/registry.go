// Package httpapi is the scanner's read-mostly HTTP edge: a status/health/
// metrics server plus a websocket bar-ingest endpoint for live mode. It is
// a consumer of the detection core, not new detection logic.
package httpapi

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/chartscan/breakoutscan/internal/config"
	"github.com/chartscan/breakoutscan/internal/domain/breakout"
	"github.com/chartscan/breakoutscan/internal/persistence"
)

// symbolWorker owns one Detector and serializes every inbound bar for its
// symbol through a single goroutine, so the detector itself never needs a
// mutex (spec.md §5: "concurrency is structural, not mutex-based").
type symbolWorker struct {
	detector *breakout.Detector
	inbox    chan bar
}

type bar struct {
	b     breakout.Bar
	reply chan<- workResult
}

type workResult struct {
	info *breakout.BreakoutInfo
	err  error
}

// Registry owns one symbolWorker per symbol seen over the websocket edge.
type Registry struct {
	mu      sync.Mutex
	workers map[string]*symbolWorker
	cfg     config.DetectorConfig
	cache   persistence.Cache
}

// NewRegistry constructs a Registry that lazily creates a Detector (using
// cfg and cache) for each new symbol it sees.
func NewRegistry(cfg config.DetectorConfig, cache persistence.Cache) *Registry {
	return &Registry{
		workers: make(map[string]*symbolWorker),
		cfg:     cfg,
		cache:   cache,
	}
}

func (r *Registry) workerFor(symbol string) (*symbolWorker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if w, ok := r.workers[symbol]; ok {
		return w, nil
	}

	detector, err := breakout.NewDetector(symbol, r.cfg, r.cache)
	if err != nil {
		return nil, fmt.Errorf("httpapi: create detector for %s: %w", symbol, err)
	}
	if ok, err := detector.Load(context.Background()); err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Msg("detector cache load failed, starting empty")
	} else if ok {
		log.Info().Str("symbol", symbol).Msg("restored detector state from cache")
	}

	w := &symbolWorker{detector: detector, inbox: make(chan bar, 64)}
	r.workers[symbol] = w
	go w.run()
	return w, nil
}

func (w *symbolWorker) run() {
	for req := range w.inbox {
		info, err := w.detector.AddBar(req.b)
		if err == nil {
			if saveErr := w.detector.Save(context.Background()); saveErr != nil {
				log.Warn().Err(saveErr).Msg("detector snapshot save failed, continuing in-memory")
			}
		}
		req.reply <- workResult{info: info, err: err}
	}
}

// AddBar routes bar to symbol's worker goroutine and waits for the result.
func (r *Registry) AddBar(symbol string, b breakout.Bar) (*breakout.BreakoutInfo, error) {
	w, err := r.workerFor(symbol)
	if err != nil {
		return nil, err
	}
	reply := make(chan workResult, 1)
	w.inbox <- bar{b: b, reply: reply}
	result := <-reply
	return result.info, result.err
}

// Status returns symbol's current detector status, or (Status{}, false) if
// no worker has been created for it yet.
func (r *Registry) Status(symbol string) (breakout.Status, bool) {
	r.mu.Lock()
	w, ok := r.workers[symbol]
	r.mu.Unlock()
	if !ok {
		return breakout.Status{}, false
	}
	return w.detector.Status(), true
}
