package services

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/bpstack/home-account-showcase-sub001/src/database"
	"github.com/bpstack/home-account-showcase-sub001/src/logger"
	"github.com/bpstack/home-account-showcase-sub001/src/model"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	m.Run()
}

func newServiceTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.EnsureSchema(db))
	return db
}

type stubFeeds struct {
	crypto  CryptoQuotes
	fx      FxRates
	indices IndexQuotes

	cryptoErr  error
	fxErr      error
	indicesErr error

	cryptoCalls  int
	fxCalls      int
	indicesCalls int
}

func (s *stubFeeds) FetchCrypto(ctx context.Context) (CryptoQuotes, error) {
	s.cryptoCalls++
	if s.cryptoErr != nil {
		return CryptoQuotes{Bitcoin: fallbackBTC, Ethereum: fallbackETH}, s.cryptoErr
	}
	return s.crypto, nil
}

func (s *stubFeeds) FetchFx(ctx context.Context) (FxRates, error) {
	s.fxCalls++
	if s.fxErr != nil {
		return FxRates{EurUsd: fallbackEurUsd, EurGbp: fallbackEurGbp}, s.fxErr
	}
	return s.fx, nil
}

func (s *stubFeeds) FetchIndices(ctx context.Context) (IndexQuotes, error) {
	s.indicesCalls++
	if s.indicesErr != nil {
		return IndexQuotes{SP500: fallbackSP500, World: fallbackWorld, Tech: fallbackTech}, s.indicesErr
	}
	return s.indices, nil
}

func healthyFeeds() *stubFeeds {
	return &stubFeeds{
		crypto: CryptoQuotes{
			Bitcoin:  model.IndexQuote{Value: 101000, Change24Pct: 2.0},
			Ethereum: model.IndexQuote{Value: 3600, Change24Pct: 1.0},
		},
		fx: FxRates{EurUsd: 1.11, EurGbp: 0.86},
		indices: IndexQuotes{
			SP500: model.IndexQuote{Value: 6000, Change24Pct: 1.0},
			World: model.IndexQuote{Value: 3700, Change24Pct: 0.5},
			Tech:  model.IndexQuote{Value: 21000, Change24Pct: 1.5},
		},
	}
}

func TestGetMarketDataAggregatesAllFeeds(t *testing.T) {
	db := newServiceTestDB(t)
	feeds := healthyFeeds()
	svc := NewMarketService(db, feeds, 5*time.Minute)

	mc := svc.GetMarketData(context.Background())
	assert.Equal(t, 6000.0, mc.EquityIndex.Value)
	assert.Equal(t, 101000.0, mc.Bitcoin.Value)
	assert.Equal(t, 1.11, mc.EurUsd)
	assert.Equal(t, 0.86, mc.EurGbp)
	assert.False(t, mc.LastUpdated.IsZero())

	result := svc.LastCacheWrite()
	assert.True(t, result.Written)
	assert.NoError(t, result.Err)
}

func TestGetMarketDataServesFromCacheWithinTTL(t *testing.T) {
	db := newServiceTestDB(t)
	feeds := healthyFeeds()
	svc := NewMarketService(db, feeds, 5*time.Minute)

	first := svc.GetMarketData(context.Background())
	second := svc.GetMarketData(context.Background())

	assert.Equal(t, 1, feeds.cryptoCalls, "second read comes from the cache")
	assert.Equal(t, 1, feeds.fxCalls)
	assert.Equal(t, 1, feeds.indicesCalls)
	assert.Equal(t, first.Bitcoin.Value, second.Bitcoin.Value)
}

func TestGetMarketDataRefetchesAfterExpiry(t *testing.T) {
	db := newServiceTestDB(t)
	feeds := healthyFeeds()
	svc := NewMarketService(db, feeds, -time.Second)

	svc.GetMarketData(context.Background())
	svc.GetMarketData(context.Background())

	assert.Equal(t, 2, feeds.cryptoCalls, "expired cache entries are not served")
}

func TestGetMarketDataDegradesPerFeed(t *testing.T) {
	db := newServiceTestDB(t)
	feeds := healthyFeeds()
	feeds.cryptoErr = errors.New("rate limited")
	feeds.fxErr = errors.New("feed down")
	svc := NewMarketService(db, feeds, 5*time.Minute)

	mc := svc.GetMarketData(context.Background())

	// Failed feeds contribute their fallback values.
	assert.Equal(t, fallbackBTC.Value, mc.Bitcoin.Value)
	assert.Equal(t, fallbackEurUsd, mc.EurUsd)
	// The healthy feed still contributes live values.
	assert.Equal(t, 6000.0, mc.EquityIndex.Value)
}

func TestGetMarketDataTotalFailureStillFullyPopulated(t *testing.T) {
	db := newServiceTestDB(t)
	feeds := &stubFeeds{
		cryptoErr:  errors.New("down"),
		fxErr:      errors.New("down"),
		indicesErr: errors.New("down"),
	}
	svc := NewMarketService(db, feeds, 5*time.Minute)

	mc := svc.GetMarketData(context.Background())
	assert.Equal(t, fallbackSP500, mc.EquityIndex)
	assert.Equal(t, fallbackWorld, mc.WorldIndex)
	assert.Equal(t, fallbackTech, mc.TechIndex)
	assert.Equal(t, fallbackBTC, mc.Bitcoin)
	assert.Equal(t, fallbackETH, mc.Ethereum)
	assert.Equal(t, fallbackEurUsd, mc.EurUsd)
	assert.Equal(t, fallbackEurGbp, mc.EurGbp)
}

func TestCacheWriteFailureDoesNotFailTheRead(t *testing.T) {
	db := newServiceTestDB(t)
	feeds := healthyFeeds()
	svc := NewMarketService(db, feeds, 5*time.Minute)

	db.Close()
	mc := svc.GetMarketData(context.Background())

	require.NotNil(t, mc, "live data is served even when the cache is unwritable")
	assert.Equal(t, 6000.0, mc.EquityIndex.Value)
	result := svc.LastCacheWrite()
	assert.False(t, result.Written)
	assert.Error(t, result.Err)
}

func TestTrendAndSentimentThresholds(t *testing.T) {
	cases := []struct {
		avg       float64
		trend     string
		sentiment string
	}{
		{2.0, "alcista", "bullish"},
		{0.7, "alcista", "neutral"},
		{0.2, "neutral", "neutral"},
		{-0.2, "neutral", "neutral"},
		{-0.7, "bajista", "neutral"},
		{-2.0, "bajista", "bearish"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.trend, trendLabel(tc.avg), "avg %.1f", tc.avg)
		assert.Equal(t, tc.sentiment, sentimentLabel(tc.avg), "avg %.1f", tc.avg)
	}
}

func TestGetQuickSummaryPicksTopMoverByAbsoluteChange(t *testing.T) {
	db := newServiceTestDB(t)
	feeds := healthyFeeds()
	feeds.crypto.Bitcoin.Change24Pct = -6.0
	svc := NewMarketService(db, feeds, 5*time.Minute)

	summary := svc.GetQuickSummary(context.Background())
	assert.Equal(t, "Bitcoin", summary.TopMover)
	assert.Equal(t, -6.0, summary.TopMoverChange)
}

func TestGetMarketDataFullAttachesTrend(t *testing.T) {
	db := newServiceTestDB(t)
	svc := NewMarketService(db, healthyFeeds(), 5*time.Minute)

	// Average change of the healthy stub is (1.0+0.5+1.5+2.0+1.0)/5 = 1.2.
	data := svc.GetMarketDataFull(context.Background())
	assert.Equal(t, "alcista", data.Trend)
	assert.Equal(t, 6000.0, data.EquityIndex.Value)
}
