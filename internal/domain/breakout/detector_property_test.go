package breakout

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chartscan/breakoutscan/internal/config"
)

// propertyConfig is the configuration randomized-sequence runs use: a
// single measure/mode keeps the arithmetic in each check below legible.
func propertyConfig() config.DetectorConfig {
	cfg := config.DefaultDetectorConfig()
	cfg.TotalWindow = 10
	cfg.MinSideBars = 2
	cfg.MinRelativeHeight = 0
	cfg.ExceedThreshold = 0.005
	cfg.PeakSupersedeThreshold = 0.03
	cfg.PeakMeasure = "high"
	cfg.BreakoutModes = []string{"high"}
	return cfg
}

// randomWalkBars generates n bars whose High follows a bounded random walk,
// floored well above zero so Low (High-5) never turns negative.
func randomWalkBars(rng *rand.Rand, n int) []Bar {
	bars := make([]Bar, n)
	value := 50.0
	for i := 0; i < n; i++ {
		value += float64(rng.Intn(11) - 5) // [-5, 5]
		if value < 20 {
			value = 20
		}
		bars[i] = bar(i, value-2, value, value-5, value-2, float64(100+rng.Intn(900)))
	}
	return bars
}

// TestDetectorInvariantsHoldOverRandomizedSequences checks invariants 1-5 of
// spec.md §8 against many independent randomized bar sequences.
func TestDetectorInvariantsHoldOverRandomizedSequences(t *testing.T) {
	cfg := propertyConfig()
	rng := rand.New(rand.NewSource(20240615))

	for trial := 0; trial < 25; trial++ {
		d, err := NewDetector("RAND", cfg, nil)
		require.NoError(t, err)

		bars := randomWalkBars(rng, 80)
		seen := map[int64]bool{}
		var maxSeenID int64 = -1

		for i, b := range bars {
			info, err := d.AddBar(b)
			require.NoError(t, err)

			active := d.ActivePeaks()

			// 1. Monotone ids: a peak observed for the first time always
			// carries a larger id than every peak already observed.
			for _, p := range active {
				if seen[p.ID] {
					continue
				}
				assert.Greater(t, p.ID, maxSeenID, "trial %d bar %d: peak id not monotone", trial, i)
				seen[p.ID] = true
				if p.ID > maxSeenID {
					maxSeenID = p.ID
				}

				// 5. No peak in window tail: a newly created peak's offset
				// inside its W-bar detection window is strictly between
				// min_side_bars and W-min_side_bars-1 inclusive.
				windowStart := i - cfg.TotalWindow
				require.GreaterOrEqual(t, windowStart, 0, "trial %d: peak created before a full window existed", trial)
				offset := p.Index - windowStart
				assert.GreaterOrEqual(t, offset, cfg.MinSideBars, "trial %d bar %d: peak too close to left edge", trial, i)
				assert.Less(t, offset, cfg.TotalWindow-cfg.MinSideBars, "trial %d bar %d: peak too close to right edge", trial, i)
			}

			// 2. Active-set price separation: no active peak supersedes
			// another still-active peak.
			for _, a := range active {
				for _, bb := range active {
					if a.ID == bb.ID {
						continue
					}
					if bb.Price > a.Price {
						gap := (bb.Price - a.Price) / a.Price
						assert.Less(t, gap, cfg.PeakSupersedeThreshold, "trial %d bar %d: active peak %d supersedes active peak %d", trial, i, bb.ID, a.ID)
					}
				}
			}

			if info == nil {
				continue
			}

			// 3. Breakout implies confirmation: every broken peak was
			// actually exceeded by the configured mode.
			for _, p := range info.BrokenPeaks {
				confirmed := false
				for _, mode := range cfg.BreakoutModes {
					if measureValue(b, PeakMeasure(mode)) > p.Price*(1+cfg.ExceedThreshold) {
						confirmed = true
					}
				}
				assert.True(t, confirmed, "trial %d bar %d: broken peak %d was never exceeded", trial, i, p.ID)
			}

			// 4. Supersede implies retention-inverse.
			superseded := map[int64]bool{}
			for _, p := range info.SupersededPeaks {
				superseded[p.ID] = true
			}
			for _, p := range info.BrokenPeaks {
				threshold := p.Price * (1 + cfg.PeakSupersedeThreshold)
				if superseded[p.ID] {
					assert.Greater(t, info.Price, threshold, "trial %d bar %d: superseded peak %d not above supersede threshold", trial, i, p.ID)
				} else {
					assert.LessOrEqual(t, info.Price, threshold, "trial %d bar %d: retained peak %d above supersede threshold", trial, i, p.ID)
				}
			}
		}
	}
}

// TestDetectorCacheRoundTripMatchesUninterruptedRun checks invariant 6 of
// spec.md §8: splitting a sequence across a save/load boundary produces the
// same end state as feeding the whole sequence to a fresh detector at once.
func TestDetectorCacheRoundTripMatchesUninterruptedRun(t *testing.T) {
	cfg := propertyConfig()
	rng := rand.New(rand.NewSource(99))

	for trial := 0; trial < 10; trial++ {
		all := randomWalkBars(rng, 60)
		split := 20 + rng.Intn(20)

		cache := newFakeCache()
		first, err := NewDetector("RAND", cfg, cache)
		require.NoError(t, err)
		_, err = first.BatchAddBars(all[:split])
		require.NoError(t, err)
		require.NoError(t, first.Save(context.Background()))

		resumed, err := NewDetector("RAND", cfg, cache)
		require.NoError(t, err)
		ok, err := resumed.Load(context.Background())
		require.NoError(t, err)
		require.True(t, ok)
		_, err = resumed.BatchAddBars(all[split:])
		require.NoError(t, err)

		whole, err := NewDetector("RAND", cfg, nil)
		require.NoError(t, err)
		_, err = whole.BatchAddBars(all)
		require.NoError(t, err)

		assert.Equal(t, whole.ActivePeaks(), resumed.ActivePeaks(), "trial %d: active peaks diverged", trial)
		assert.Equal(t, whole.BreakoutHistory(), resumed.BreakoutHistory(), "trial %d: breakout history diverged", trial)
		assert.Equal(t, whole.Status().TotalBars, resumed.Status().TotalBars, "trial %d: total bars diverged", trial)
	}
}
