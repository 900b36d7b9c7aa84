// Package resilience wraps the detector's persistence cache with a circuit
// breaker so that repeated storage failures degrade to in-memory-only
// operation instead of retrying into an unavailable backend on every bar
// (spec.md §7: "persistence failures are non-fatal; the detector continues
// with in-memory state").
package resilience

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/chartscan/breakoutscan/internal/persistence"
)

// BreakerCache wraps a persistence.Cache with a gobreaker.CircuitBreaker.
// While the breaker is open, Save/Load/Clear return immediately with
// ErrCacheUnavailable instead of hitting the underlying store, so a dead
// Redis instance or a full disk cannot turn every AddBar call into a slow
// failure.
type BreakerCache struct {
	inner   persistence.Cache
	breaker *gobreaker.CircuitBreaker
}

// ErrCacheUnavailable is returned in place of the underlying error while
// the breaker is open.
var ErrCacheUnavailable = fmt.Errorf("resilience: cache circuit breaker open")

// NewBreakerCache wraps inner with a breaker named name. It trips after
// consecutiveFailures consecutive failures within interval and stays open
// for timeout before allowing a half-open probe.
func NewBreakerCache(name string, inner persistence.Cache, consecutiveFailures uint32, interval, timeout time.Duration) *BreakerCache {
	settings := gobreaker.Settings{
		Name:     name,
		Interval: interval,
		Timeout:  timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= consecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("persistence cache breaker state change")
		},
	}
	return &BreakerCache{inner: inner, breaker: gobreaker.NewCircuitBreaker(settings)}
}

// Save persists blob through the breaker. A breaker-open result is
// swallowed into ErrCacheUnavailable, which callers treat as non-fatal.
func (b *BreakerCache) Save(ctx context.Context, key string, blob []byte) error {
	_, err := b.breaker.Execute(func() (interface{}, error) {
		return nil, b.inner.Save(ctx, key, blob)
	})
	return wrapBreakerErr(err)
}

// Load retrieves key's blob through the breaker.
func (b *BreakerCache) Load(ctx context.Context, key string) ([]byte, bool, error) {
	result, err := b.breaker.Execute(func() (interface{}, error) {
		data, ok, err := b.inner.Load(ctx, key)
		return loadResult{data, ok}, err
	})
	if err != nil {
		return nil, false, wrapBreakerErr(err)
	}
	lr := result.(loadResult)
	return lr.data, lr.ok, nil
}

// Clear removes key's entry through the breaker.
func (b *BreakerCache) Clear(ctx context.Context, key string) error {
	_, err := b.breaker.Execute(func() (interface{}, error) {
		return nil, b.inner.Clear(ctx, key)
	})
	return wrapBreakerErr(err)
}

type loadResult struct {
	data []byte
	ok   bool
}

func wrapBreakerErr(err error) error {
	if err == nil {
		return nil
	}
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return ErrCacheUnavailable
	}
	return err
}
