package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarketCacheHitWithinTTL(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, PutMarketCache(db, "aggregate", "multiple", `{"v":1}`, 5*time.Minute))

	entry, err := GetMarketCache(db, "aggregate", "multiple")
	require.NoError(t, err)
	assert.Equal(t, `{"v":1}`, entry.DataJSON)
	assert.True(t, entry.ExpiresAt.After(time.Now()))
}

func TestMarketCacheExpiredEntryIsAMiss(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, PutMarketCache(db, "aggregate", "multiple", `{"v":1}`, -time.Second))

	_, err := GetMarketCache(db, "aggregate", "multiple")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMarketCacheWriteReplacesInsteadOfAccumulating(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, PutMarketCache(db, "aggregate", "multiple", `{"v":1}`, time.Minute))
	require.NoError(t, PutMarketCache(db, "aggregate", "multiple", `{"v":2}`, time.Minute))

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM market_data_cache WHERE symbol = ? AND source = ?`,
		"aggregate", "multiple").Scan(&count))
	assert.Equal(t, 1, count, "delete-then-insert keeps one row per key")

	entry, err := GetMarketCache(db, "aggregate", "multiple")
	require.NoError(t, err)
	assert.Equal(t, `{"v":2}`, entry.DataJSON)
}

func TestMarketCacheKeysAreIndependent(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, PutMarketCache(db, "aggregate", "multiple", `{"v":1}`, time.Minute))
	require.NoError(t, PutMarketCache(db, "btc", "coingecko", `{"v":9}`, time.Minute))

	entry, err := GetMarketCache(db, "btc", "coingecko")
	require.NoError(t, err)
	assert.Equal(t, `{"v":9}`, entry.DataJSON)
}

func TestPurgeExpiredMarketCache(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, PutMarketCache(db, "a", "s", `{}`, -time.Second))
	require.NoError(t, PutMarketCache(db, "b", "s", `{}`, time.Minute))

	purged, err := PurgeExpiredMarketCache(db)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	_, err = GetMarketCache(db, "b", "s")
	assert.NoError(t, err)
}
