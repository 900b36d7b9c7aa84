package breakout

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chartscan/breakoutscan/internal/config"
)

func testConfig() config.DetectorConfig {
	cfg := config.DefaultDetectorConfig()
	cfg.TotalWindow = 10
	cfg.MinSideBars = 2
	cfg.MinRelativeHeight = 0.0
	cfg.ExceedThreshold = 0.0
	cfg.PeakSupersedeThreshold = 0.03
	cfg.PeakMeasure = "high"
	cfg.BreakoutModes = []string{"high"}
	return cfg
}

func bar(day int, open, high, low, close, volume float64) Bar {
	return Bar{
		Date:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, day),
		Open:   open,
		High:   high,
		Low:    low,
		Close:  close,
		Volume: volume,
	}
}

func newTestDetector(t *testing.T) *Detector {
	t.Helper()
	d, err := NewDetector("TEST", testConfig(), nil)
	require.NoError(t, err)
	return d
}

func TestNewDetectorRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.MinSideBars = 100
	_, err := NewDetector("TEST", cfg, nil)
	assert.Error(t, err)
}

func TestAddBarRejectsNonMonotonicDate(t *testing.T) {
	d := newTestDetector(t)
	_, err := d.AddBar(bar(5, 1, 1, 1, 1, 100))
	require.NoError(t, err)
	_, err = d.AddBar(bar(5, 1, 1, 1, 1, 100))
	assert.ErrorIs(t, err, ErrNonMonotonicDate)
}

func TestAddBarRejectsInvalidFields(t *testing.T) {
	d := newTestDetector(t)
	_, err := d.AddBar(bar(0, 1, -1, 1, 1, 100))
	assert.ErrorIs(t, err, ErrInvalidBar)
}

func TestDetectPeakFindsCenteredLocalMaximum(t *testing.T) {
	d := newTestDetector(t)
	highs := []float64{1, 2, 3, 9, 3, 2, 1, 1, 1, 1, 1}
	for i, h := range highs {
		_, err := d.AddBar(bar(i, h, h, h-0.5, h, 100))
		require.NoError(t, err)
	}
	// window closes over indices [0,10) once bar 10 (index 10) arrives.
	peaks := d.ActivePeaks()
	require.Len(t, peaks, 1)
	assert.Equal(t, 3, peaks[0].Index)
	assert.Equal(t, 9.0, peaks[0].Price)
}

func TestDetectPeakRejectsEdgePosition(t *testing.T) {
	d := newTestDetector(t)
	// maximum sits at offset 0 of the window: too close to the left edge.
	highs := []float64{9, 2, 3, 4, 3, 2, 1, 1, 1, 1, 1}
	for i, h := range highs {
		_, err := d.AddBar(bar(i, h, h, h-0.5, h, 100))
		require.NoError(t, err)
	}
	assert.Empty(t, d.ActivePeaks())
}

func TestCheckBreakoutsConfirmsAndRemovesPeak(t *testing.T) {
	d := newTestDetector(t)
	highs := []float64{1, 2, 3, 9, 3, 2, 1, 1, 1, 1, 1}
	for i, h := range highs {
		_, err := d.AddBar(bar(i, h, h, h-0.5, h, 100))
		require.NoError(t, err)
	}
	require.Len(t, d.ActivePeaks(), 1)

	info, err := d.AddBar(bar(len(highs), 10, 10, 9, 10, 100))
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, 10.0, info.Price)
	assert.Len(t, info.BrokenPeaks, 1)
	assert.Empty(t, d.ActivePeaks())
}

func TestCheckBreakoutsRetainsPeakBelowSupersedeThreshold(t *testing.T) {
	cfg := testConfig()
	cfg.ExceedThreshold = 0.0
	cfg.PeakSupersedeThreshold = 0.5
	d, err := NewDetector("TEST", cfg, nil)
	require.NoError(t, err)

	highs := []float64{1, 2, 3, 100, 3, 2, 1, 1, 1, 1, 1}
	for i, h := range highs {
		_, err := d.AddBar(bar(i, h, h, h-0.5, h, 100))
		require.NoError(t, err)
	}
	require.Len(t, d.ActivePeaks(), 1)

	info, err := d.AddBar(bar(len(highs), 105, 105, 104, 105, 100))
	require.NoError(t, err)
	require.NotNil(t, info)
	// 105 exceeds 100 but not by the 50% supersede gap, so the peak survives.
	assert.Len(t, d.ActivePeaks(), 1)
}

func TestGetRecentBreakoutCountFloorsAtOne(t *testing.T) {
	d := newTestDetector(t)
	assert.Equal(t, 1, d.GetRecentBreakoutCount(5))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	cache := newFakeCache()
	cfg := testConfig()

	d, err := NewDetector("TEST", cfg, cache)
	require.NoError(t, err)
	highs := []float64{1, 2, 3, 9, 3, 2, 1, 1, 1, 1, 1}
	for i, h := range highs {
		_, err := d.AddBar(bar(i, h, h, h-0.5, h, 100))
		require.NoError(t, err)
	}
	require.NoError(t, d.Save(context.Background()))

	restored, err := NewDetector("TEST", cfg, cache)
	require.NoError(t, err)
	ok, err := restored.Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, d.ActivePeaks(), restored.ActivePeaks())
	assert.Equal(t, d.Status().TotalBars, restored.Status().TotalBars)
}

func TestLoadMissesOnConfigMismatch(t *testing.T) {
	cache := newFakeCache()
	cfg := testConfig()
	d, err := NewDetector("TEST", cfg, cache)
	require.NoError(t, err)
	require.NoError(t, d.Save(context.Background()))

	otherCfg := testConfig()
	otherCfg.TotalWindow = 20
	otherCfg.MinSideBars = 1
	other, err := NewDetector("TEST", otherCfg, cache)
	require.NoError(t, err)
	ok, err := other.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

// fakeCache is a minimal in-memory persistence.Cache for tests that avoid
// touching the filesystem.
type fakeCache struct {
	data map[string][]byte
}

func newFakeCache() *fakeCache { return &fakeCache{data: map[string][]byte{}} }

func (f *fakeCache) Save(_ context.Context, key string, blob []byte) error {
	f.data[key] = append([]byte(nil), blob...)
	return nil
}

func (f *fakeCache) Load(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := f.data[key]
	return v, ok, nil
}

func (f *fakeCache) Clear(_ context.Context, key string) error {
	delete(f.data, key)
	return nil
}
