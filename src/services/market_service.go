package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"math"
	"sync"
	"time"

	"github.com/bpstack/home-account-showcase-sub001/src/logger"
	"github.com/bpstack/home-account-showcase-sub001/src/model"
)

const (
	marketCacheSymbol = "aggregate"
	marketCacheSource = "multiple"

	trendThresholdPct     = 0.5
	sentimentThresholdPct = 1.0
)

// CacheWriteResult reports the outcome of a best-effort cache write. A failed
// write never fails the request that triggered it, but the outcome is kept
// observable instead of being swallowed.
type CacheWriteResult struct {
	Written bool
	Err     error
}

// MarketService aggregates three independent upstream feeds into a single
// market context, backed by a database TTL cache shared across instances.
type MarketService struct {
	db    *sql.DB
	feeds MarketFeeds
	ttl   time.Duration

	mu            sync.Mutex
	lastCacheSave CacheWriteResult
}

func NewMarketService(db *sql.DB, feeds MarketFeeds, ttl time.Duration) *MarketService {
	return &MarketService{db: db, feeds: feeds, ttl: ttl}
}

// GetMarketData returns the aggregate market context, serving from the DB
// cache when a fresh entry exists and fanning out to the live feeds otherwise.
// It never returns an error: every field degrades to a documented fallback.
func (s *MarketService) GetMarketData(ctx context.Context) *model.MarketContext {
	if cached, err := model.GetMarketCache(s.db, marketCacheSymbol, marketCacheSource); err == nil {
		var mc model.MarketContext
		if err := json.Unmarshal([]byte(cached.DataJSON), &mc); err == nil {
			if logger.L != nil {
				logger.L.Debug("Market data served from cache", "cached_at", cached.CachedAt)
			}
			return &mc
		}
		if logger.L != nil {
			logger.L.Warn("Corrupt market cache entry, refetching", "error", err)
		}
	}

	mc := s.fetchLive(ctx)
	s.saveCache(mc)
	return mc
}

// fetchLive queries all three feeds concurrently and waits for every one to
// settle. A failed feed contributes its fallback values, never an error.
func (s *MarketService) fetchLive(ctx context.Context) *model.MarketContext {
	var (
		wg      sync.WaitGroup
		crypto  CryptoQuotes
		fx      FxRates
		indices IndexQuotes
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		var err error
		if crypto, err = s.feeds.FetchCrypto(ctx); err != nil && logger.L != nil {
			logger.L.Warn("Crypto feed failed, using fallback values", "error", err)
		}
	}()
	go func() {
		defer wg.Done()
		var err error
		if fx, err = s.feeds.FetchFx(ctx); err != nil && logger.L != nil {
			logger.L.Warn("FX feed failed, using fallback values", "error", err)
		}
	}()
	go func() {
		defer wg.Done()
		var err error
		if indices, err = s.feeds.FetchIndices(ctx); err != nil && logger.L != nil {
			logger.L.Warn("Index feed failed, using fallback values", "error", err)
		}
	}()
	wg.Wait()

	return &model.MarketContext{
		EquityIndex: indices.SP500,
		WorldIndex:  indices.World,
		TechIndex:   indices.Tech,
		Bitcoin:     crypto.Bitcoin,
		Ethereum:    crypto.Ethereum,
		EurUsd:      fx.EurUsd,
		EurGbp:      fx.EurGbp,
		LastUpdated: time.Now().UTC(),
	}
}

func (s *MarketService) saveCache(mc *model.MarketContext) {
	result := CacheWriteResult{}
	payload, err := json.Marshal(mc)
	if err == nil {
		err = model.PutMarketCache(s.db, marketCacheSymbol, marketCacheSource, string(payload), s.ttl)
	}
	if err != nil {
		result.Err = err
		if logger.L != nil {
			logger.L.Warn("Market cache write failed, serving live data anyway", "error", err)
		}
	} else {
		result.Written = true
	}

	s.mu.Lock()
	s.lastCacheSave = result
	s.mu.Unlock()
}

// LastCacheWrite reports the outcome of the most recent cache write attempt.
func (s *MarketService) LastCacheWrite() CacheWriteResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastCacheSave
}

// GetMarketDataFull decorates the aggregate context with a qualitative trend
// derived from the average 24h change across equities and crypto.
func (s *MarketService) GetMarketDataFull(ctx context.Context) *model.MarketData {
	mc := s.GetMarketData(ctx)
	return &model.MarketData{
		MarketContext: *mc,
		Trend:         trendLabel(averageChange(mc)),
	}
}

// GetQuickSummary condenses the market context into a headline view: overall
// sentiment plus the instrument with the largest absolute move.
func (s *MarketService) GetQuickSummary(ctx context.Context) *model.QuickSummary {
	mc := s.GetMarketData(ctx)

	movers := []struct {
		name   string
		change float64
	}{
		{"S&P 500", mc.EquityIndex.Change24Pct},
		{"MSCI World", mc.WorldIndex.Change24Pct},
		{"Nasdaq", mc.TechIndex.Change24Pct},
		{"Bitcoin", mc.Bitcoin.Change24Pct},
		{"Ethereum", mc.Ethereum.Change24Pct},
	}
	top := movers[0]
	for _, m := range movers[1:] {
		if math.Abs(m.change) > math.Abs(top.change) {
			top = m
		}
	}

	return &model.QuickSummary{
		Trending:       trendLabel(averageChange(mc)),
		TopMover:       top.name,
		TopMoverChange: top.change,
		Sentiment:      sentimentLabel(averageChange(mc)),
	}
}

func averageChange(mc *model.MarketContext) float64 {
	sum := mc.EquityIndex.Change24Pct +
		mc.WorldIndex.Change24Pct +
		mc.TechIndex.Change24Pct +
		mc.Bitcoin.Change24Pct +
		mc.Ethereum.Change24Pct
	return sum / 5
}

// trendLabel and sentimentLabel use different thresholds on purpose: the
// trend feeds Spanish-language prompt text, the sentiment feeds the summary
// endpoint, and the two surfaces have distinct sensitivity requirements.
func trendLabel(avg float64) string {
	switch {
	case avg > trendThresholdPct:
		return "alcista"
	case avg < -trendThresholdPct:
		return "bajista"
	default:
		return "neutral"
	}
}

func sentimentLabel(avg float64) string {
	switch {
	case avg > sentimentThresholdPct:
		return "bullish"
	case avg < -sentimentThresholdPct:
		return "bearish"
	default:
		return "neutral"
	}
}
