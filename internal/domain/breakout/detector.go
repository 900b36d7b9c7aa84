package breakout

import (
	"bytes"
	"context"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/chartscan/breakoutscan/internal/config"
	"github.com/chartscan/breakoutscan/internal/persistence"
)

// ErrNonMonotonicDate is returned when a bar's date does not strictly
// follow the previous bar's date.
var ErrNonMonotonicDate = fmt.Errorf("breakout: bar date is not strictly after the previous bar")

// ErrInvalidBar is returned when a bar carries a non-finite or negative
// price/volume field.
var ErrInvalidBar = fmt.Errorf("breakout: bar has an invalid field")

// Detector incrementally maintains a set of active resistance peaks for a
// single symbol's bar stream and emits BreakoutInfo whenever a bar
// penetrates one or more of them (spec.md §4.1).
//
// Detector is not safe for concurrent use; callers that share a Detector
// across goroutines must serialize access themselves.
type Detector struct {
	symbol string
	cfg    config.DetectorConfig

	bars []Bar

	activePeaks []Peak
	nextPeakID  int64
	history     []BreakoutRecord

	cache        persistence.Cache
	loadedFromCache bool
}

// NewDetector constructs a Detector for symbol using cfg, which must pass
// Validate. cache may be nil, in which case Save/Load/ClearCache are no-ops
// that report persistence as unused rather than erroring.
func NewDetector(symbol string, cfg config.DetectorConfig, cache persistence.Cache) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Detector{
		symbol: symbol,
		cfg:    cfg,
		cache:  cache,
	}, nil
}

// AddBar appends bar to the stream, updates the active peak set, and
// returns non-nil BreakoutInfo if bar broke one or more peaks.
func (d *Detector) AddBar(bar Bar) (*BreakoutInfo, error) {
	if err := d.validateBar(bar); err != nil {
		return nil, err
	}
	d.bars = append(d.bars, bar)
	currentIdx := len(d.bars) - 1

	d.detectPeak(currentIdx)
	return d.checkBreakouts(currentIdx), nil
}

// BatchAddBars feeds bars through AddBar in order, returning one
// BreakoutInfo slot per input bar (nil where no breakout occurred). It
// stops and returns the error from the first invalid bar, leaving every
// bar processed up to that point applied.
func (d *Detector) BatchAddBars(bars []Bar) ([]*BreakoutInfo, error) {
	out := make([]*BreakoutInfo, 0, len(bars))
	for _, bar := range bars {
		info, err := d.AddBar(bar)
		if err != nil {
			return out, err
		}
		out = append(out, info)
	}
	return out, nil
}

func (d *Detector) validateBar(bar Bar) error {
	if len(d.bars) > 0 {
		prev := d.bars[len(d.bars)-1]
		if !bar.Date.After(prev.Date) {
			return ErrNonMonotonicDate
		}
	}
	fields := []float64{bar.Open, bar.High, bar.Low, bar.Close, bar.Volume}
	for _, v := range fields {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return ErrInvalidBar
		}
	}
	if bar.High < bar.Low {
		return ErrInvalidBar
	}
	return nil
}

func (d *Detector) measure(idx int) float64 {
	return measureValue(d.bars[idx], PeakMeasure(d.cfg.PeakMeasure))
}

func measureValue(b Bar, m PeakMeasure) float64 {
	switch m {
	case MeasureHigh:
		return b.High
	case MeasureClose:
		return b.Close
	default: // body_top
		return math.Max(b.Open, b.Close)
	}
}

// detectPeak looks TotalWindow bars back from currentIdx for a new local
// maximum, per spec.md §4.1.1.
func (d *Detector) detectPeak(currentIdx int) {
	w := d.cfg.TotalWindow
	windowStart := currentIdx - w
	if windowStart < 0 {
		return
	}

	bestIdx := windowStart
	bestVal := d.measure(windowStart)
	for i := windowStart + 1; i < currentIdx; i++ {
		v := d.measure(i)
		if v > bestVal {
			bestVal = v
			bestIdx = i
		}
	}

	offset := bestIdx - windowStart
	side := d.cfg.MinSideBars
	if offset < side || offset >= (currentIdx-windowStart)-side {
		return
	}
	for _, p := range d.activePeaks {
		if p.Index == bestIdx {
			return
		}
	}

	windowMinLow := d.bars[windowStart].Low
	for i := windowStart + 1; i < currentIdx; i++ {
		if d.bars[i].Low < windowMinLow {
			windowMinLow = d.bars[i].Low
		}
	}
	relativeHeight := 0.0
	if windowMinLow > 0 {
		relativeHeight = (bestVal - windowMinLow) / windowMinLow
	}
	if relativeHeight < d.cfg.MinRelativeHeight {
		return
	}

	newPeak := d.createPeak(bestIdx, bestVal, currentIdx)
	d.reconcilePeaks(newPeak)
}

// createPeak computes the descriptive attributes attached to a peak at its
// creation time (spec.md §4.1.1).
func (d *Detector) createPeak(idx int, price float64, currentIdx int) Peak {
	id := d.nextPeakID
	d.nextPeakID++

	volStart := idx - 63
	if volStart < 0 {
		volStart = 0
	}
	volumeSurgeRatio := 1.0
	if idx > volStart {
		var sum float64
		for i := volStart; i < idx; i++ {
			sum += d.bars[i].Volume
		}
		avg := sum / float64(idx-volStart)
		if avg > 0 {
			volumeSurgeRatio = d.bars[idx].Volume / avg
		}
	}

	candleChangePct := 0.0
	if d.bars[idx].Open > 0 {
		candleChangePct = (d.bars[idx].Close - d.bars[idx].Open) / d.bars[idx].Open
	}

	leftSuppression := 0
	lowerBound := idx - 60
	if lowerBound < 0 {
		lowerBound = 0
	}
	for i := idx - 1; i > lowerBound; i-- {
		if d.bars[i].High < price {
			leftSuppression++
		} else {
			break
		}
	}

	side := d.cfg.TotalWindow / 2
	leftStart := idx - side
	if leftStart < 0 {
		leftStart = 0
	}
	rightEnd := idx + side + 1
	if rightEnd > currentIdx {
		rightEnd = currentIdx
	}
	windowLow := d.bars[leftStart].Low
	for i := leftStart + 1; i < rightEnd; i++ {
		if d.bars[i].Low < windowLow {
			windowLow = d.bars[i].Low
		}
	}
	relativeHeight := 0.0
	if windowLow > 0 {
		relativeHeight = (price - windowLow) / windowLow
	}

	return Peak{
		ID:                   id,
		Index:                idx,
		Price:                price,
		Date:                 d.bars[idx].Date,
		VolumeSurgeRatio:     volumeSurgeRatio,
		CandleChangePct:      candleChangePct,
		LeftSuppressionDays:  leftSuppression,
		RightSuppressionDays: 0,
		RelativeHeight:       relativeHeight,
	}
}

// reconcilePeaks decides, per spec.md §4.1.1, whether newPeak supersedes
// each existing active peak. An old peak is dropped only when newPeak is
// both higher priced and clearly above it (the relative gap reaches
// PeakSupersedeThreshold); a lower or merely marginally higher new peak
// coexists alongside the old one instead of replacing it.
func (d *Detector) reconcilePeaks(newPeak Peak) {
	survivors := d.activePeaks[:0:0]
	for _, old := range d.activePeaks {
		keep := true
		if newPeak.Price > old.Price {
			gap := (newPeak.Price - old.Price) / old.Price
			if gap >= d.cfg.PeakSupersedeThreshold {
				keep = false
			}
		}
		if keep {
			survivors = append(survivors, old)
		}
	}
	survivors = append(survivors, newPeak)
	d.activePeaks = survivors
}

// checkBreakouts tests every active peak against the bar at currentIdx, per
// spec.md §4.1.2. A broken peak is removed only when the breakout price
// exceeds its supersede price; otherwise it stays active.
func (d *Detector) checkBreakouts(currentIdx int) *BreakoutInfo {
	bar := d.bars[currentIdx]
	bodyTop := math.Max(bar.Open, bar.Close)

	var broken, superseded, remaining []Peak
	for _, peak := range d.activePeaks {
		exceedPrice := peak.Price * (1 + d.cfg.ExceedThreshold)
		supersedePrice := peak.Price * (1 + d.cfg.PeakSupersedeThreshold)

		isBreakout := false
		breakoutPrice := 0.0
		for _, modeStr := range d.cfg.BreakoutModes {
			mode := BreakoutMode(modeStr)
			var v float64
			switch mode {
			case ModeHigh:
				v = bar.High
			case ModeClose:
				v = bar.Close
			default:
				v = bodyTop
			}
			if v > exceedPrice {
				isBreakout = true
				if v > breakoutPrice {
					breakoutPrice = v
				}
			}
		}

		if !isBreakout {
			remaining = append(remaining, peak)
			continue
		}
		peak.RightSuppressionDays = currentIdx - peak.Index - 1
		broken = append(broken, peak)
		if breakoutPrice > supersedePrice {
			superseded = append(superseded, peak)
		} else {
			remaining = append(remaining, peak)
		}
	}
	d.activePeaks = remaining

	if len(broken) == 0 {
		return nil
	}

	finalPrice := bodyTop
	for _, modeStr := range d.cfg.BreakoutModes {
		switch BreakoutMode(modeStr) {
		case ModeHigh:
			finalPrice = math.Max(finalPrice, bar.High)
		case ModeClose:
			finalPrice = math.Max(finalPrice, bar.Close)
		}
	}

	d.history = append(d.history, BreakoutRecord{
		Index:    currentIdx,
		Date:     bar.Date,
		Price:    finalPrice,
		NumPeaks: len(broken),
	})

	return &BreakoutInfo{
		Index:           currentIdx,
		Price:           finalPrice,
		Date:            bar.Date,
		BrokenPeaks:     broken,
		SupersededPeaks: superseded,
	}
}

// GetRecentBreakoutCount returns how many breakouts have landed within
// MomentumWindow bars of currentIndex, floored at 1.
func (d *Detector) GetRecentBreakoutCount(currentIndex int) int {
	count := 0
	for _, h := range d.history {
		if h.Index <= currentIndex && currentIndex-h.Index <= d.cfg.MomentumWindow {
			count++
		}
	}
	if count < 1 {
		return 1
	}
	return count
}

// ActivePeaks returns a snapshot copy of the currently tracked peaks.
func (d *Detector) ActivePeaks() []Peak {
	out := make([]Peak, len(d.activePeaks))
	copy(out, d.activePeaks)
	return out
}

// BreakoutHistory returns a snapshot copy of every breakout emitted so far.
func (d *Detector) BreakoutHistory() []BreakoutRecord {
	out := make([]BreakoutRecord, len(d.history))
	copy(out, d.history)
	return out
}

// Status summarizes the detector's current state.
func (d *Detector) Status() Status {
	status := Status{
		Symbol:           d.symbol,
		TotalBars:        len(d.bars),
		ActivePeaksCount: len(d.activePeaks),
		CacheExists:      d.loadedFromCache,
	}
	if len(d.bars) > 0 {
		last := d.bars[len(d.bars)-1].Date
		status.LastDate = &last
	}
	return status
}

// Bars returns a snapshot copy of every bar fed to the detector so far.
func (d *Detector) Bars() []Bar {
	out := make([]Bar, len(d.bars))
	copy(out, d.bars)
	return out
}

var nonAlnum = regexp.MustCompile(`[^A-Za-z0-9]+`)

// CacheKey builds the cache key scheme documented in spec.md §6:
// "{safe_symbol}_tw{W}_ms{S}_pm{M}_bm{sorted_modes}".
func (d *Detector) CacheKey() string {
	safeSymbol := nonAlnum.ReplaceAllString(d.symbol, "_")
	return fmt.Sprintf("%s_tw%d_ms%d_pm%s_bm%s",
		safeSymbol,
		d.cfg.TotalWindow,
		int(d.cfg.MinSideBars),
		d.cfg.PeakMeasure,
		strings.ToLower(d.cfg.CanonicalKey()),
	)
}

// snapshot is the gob-encoded persisted state of a Detector.
type snapshot struct {
	Config      config.DetectorConfig
	Bars        []Bar
	ActivePeaks []Peak
	NextPeakID  int64
	History     []BreakoutRecord
}

// Save persists the detector's current state through its cache, keyed by
// CacheKey. If the detector was built without a cache, Save is a no-op.
func (d *Detector) Save(ctx context.Context) error {
	if d.cache == nil {
		return nil
	}
	snap := snapshot{
		Config:      d.cfg,
		Bars:        d.bars,
		ActivePeaks: d.activePeaks,
		NextPeakID:  d.nextPeakID,
		History:     d.history,
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return fmt.Errorf("breakout: encode snapshot: %w", err)
	}
	if err := d.cache.Save(ctx, d.CacheKey(), buf.Bytes()); err != nil {
		return fmt.Errorf("breakout: save snapshot: %w", err)
	}
	return nil
}

// Load restores the detector's state from its cache. It reports (false,
// nil) if no snapshot exists or if the cached config does not exactly
// match the detector's current config (spec.md §4.1.3: a config mismatch
// must be treated as a cache miss, never an error).
func (d *Detector) Load(ctx context.Context) (bool, error) {
	if d.cache == nil {
		return false, nil
	}
	blob, ok, err := d.cache.Load(ctx, d.CacheKey())
	if err != nil {
		return false, fmt.Errorf("breakout: load snapshot: %w", err)
	}
	if !ok {
		return false, nil
	}
	var snap snapshot
	if err := gob.NewDecoder(bytes.NewReader(blob)).Decode(&snap); err != nil {
		return false, fmt.Errorf("breakout: decode snapshot: %w", err)
	}
	stored, err := json.Marshal(snap.Config)
	if err != nil {
		return false, fmt.Errorf("breakout: encode cached config: %w", err)
	}
	current, err := json.Marshal(d.cfg)
	if err != nil {
		return false, fmt.Errorf("breakout: encode current config: %w", err)
	}
	if !bytes.Equal(stored, current) {
		return false, nil
	}
	d.bars = snap.Bars
	d.activePeaks = snap.ActivePeaks
	d.nextPeakID = snap.NextPeakID
	d.history = snap.History
	d.loadedFromCache = true
	return true, nil
}

// ClearCache removes any persisted snapshot for this detector.
func (d *Detector) ClearCache(ctx context.Context) error {
	if d.cache == nil {
		return nil
	}
	if err := d.cache.Clear(ctx, d.CacheKey()); err != nil {
		return fmt.Errorf("breakout: clear snapshot: %w", err)
	}
	return nil
}
