package httpapi

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chartscan/breakoutscan/internal/config"
	"github.com/chartscan/breakoutscan/internal/domain/breakout"
)

type memCache struct {
	data map[string][]byte
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (c *memCache) Save(_ context.Context, key string, blob []byte) error {
	c.data[key] = blob
	return nil
}

func (c *memCache) Load(_ context.Context, key string) ([]byte, bool, error) {
	blob, ok := c.data[key]
	return blob, ok, nil
}

func (c *memCache) Clear(_ context.Context, key string) error {
	delete(c.data, key)
	return nil
}

func testDetectorConfig() config.DetectorConfig {
	cfg := config.DefaultDetectorConfig()
	cfg.TotalWindow = 10
	cfg.MinSideBars = 2
	cfg.PeakSupersedeThreshold = 0.03
	cfg.PeakMeasure = "high"
	cfg.BreakoutModes = []string{"high"}
	return cfg
}

func testBar(day int, high float64) breakout.Bar {
	return breakout.Bar{
		Date:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, day),
		Open:   high - 1,
		High:   high,
		Low:    high - 2,
		Close:  high - 0.5,
		Volume: 1000,
	}
}

func TestRegistryCreatesDetectorLazilyAndRoutesBars(t *testing.T) {
	r := NewRegistry(testDetectorConfig(), newMemCache())

	_, ok := r.Status("AAPL")
	assert.False(t, ok)

	for day := 0; day < 5; day++ {
		_, err := r.AddBar("AAPL", testBar(day, float64(day+10)))
		require.NoError(t, err)
	}

	status, ok := r.Status("AAPL")
	require.True(t, ok)
	assert.Equal(t, "AAPL", status.Symbol)
	assert.Equal(t, 5, status.TotalBars)
}

func TestRegistryKeepsSeparateDetectorsPerSymbol(t *testing.T) {
	r := NewRegistry(testDetectorConfig(), newMemCache())

	_, err := r.AddBar("AAPL", testBar(0, 10))
	require.NoError(t, err)
	_, err = r.AddBar("MSFT", testBar(0, 20))
	require.NoError(t, err)
	_, err = r.AddBar("MSFT", testBar(1, 21))
	require.NoError(t, err)

	aapl, ok := r.Status("AAPL")
	require.True(t, ok)
	assert.Equal(t, 1, aapl.TotalBars)

	msft, ok := r.Status("MSFT")
	require.True(t, ok)
	assert.Equal(t, 2, msft.TotalBars)
}
