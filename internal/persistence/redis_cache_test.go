package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisCacheLoadReturnsValueOnHit(t *testing.T) {
	client, mock := redismock.NewClientMock()
	cache := NewRedisCache(client, "breakoutscan:", time.Hour)

	mock.ExpectGet("breakoutscan:AAPL_tw10_ms2_pmhigh_bmhigh").SetVal("snapshot-bytes")

	data, ok, err := cache.Load(context.Background(), "AAPL_tw10_ms2_pmhigh_bmhigh")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("snapshot-bytes"), data)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCacheLoadMissesOnRedisNil(t *testing.T) {
	client, mock := redismock.NewClientMock()
	cache := NewRedisCache(client, "breakoutscan:", time.Hour)

	mock.ExpectGet("breakoutscan:MISSING").RedisNil()

	data, ok, err := cache.Load(context.Background(), "MISSING")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, data)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCacheLoadPropagatesOtherErrors(t *testing.T) {
	client, mock := redismock.NewClientMock()
	cache := NewRedisCache(client, "breakoutscan:", time.Hour)

	mock.ExpectGet("breakoutscan:AAPL").SetErr(redis.TxFailedErr)

	_, _, err := cache.Load(context.Background(), "AAPL")
	assert.Error(t, err)
}

func TestRedisCacheSaveSetsWithConfiguredTTL(t *testing.T) {
	client, mock := redismock.NewClientMock()
	cache := NewRedisCache(client, "breakoutscan:", 30*time.Minute)

	mock.ExpectSet("breakoutscan:AAPL", []byte("blob"), 30*time.Minute).SetVal("OK")

	err := cache.Save(context.Background(), "AAPL", []byte("blob"))
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCacheClearDeletesKey(t *testing.T) {
	client, mock := redismock.NewClientMock()
	cache := NewRedisCache(client, "breakoutscan:", 0)

	mock.ExpectDel("breakoutscan:AAPL").SetVal(1)

	err := cache.Clear(context.Background(), "AAPL")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
