package model

import "time"

// IndexQuote is one tracked instrument: last value and 24h percent change.
type IndexQuote struct {
	Value       float64 `json:"value"`
	Change24Pct float64 `json:"change_24h_pct"`
}

// MarketContext is the aggregate snapshot produced by the market service and
// consumed read-only by the prompt builders. Every field has a fallback
// constant, so the context is always fully populated even when every upstream
// feed fails.
type MarketContext struct {
	EquityIndex IndexQuote `json:"sp500"`
	WorldIndex  IndexQuote `json:"msci_world"`
	TechIndex   IndexQuote `json:"nasdaq"`
	Bitcoin     IndexQuote `json:"bitcoin"`
	Ethereum    IndexQuote `json:"ethereum"`
	EurUsd      float64    `json:"eur_usd"`
	EurGbp      float64    `json:"eur_gbp"`
	LastUpdated time.Time  `json:"last_updated"`
}

// MarketData is the derived/reshaped view with the coarse trend label.
type MarketData struct {
	MarketContext
	Trend string `json:"trend"` // alcista | bajista | neutral
}

// QuickSummary is the compact dashboard view with the stricter sentiment label.
type QuickSummary struct {
	Trending       string  `json:"trending"`
	TopMover       string  `json:"top_mover"`
	TopMoverChange float64 `json:"top_mover_change_pct"`
	Sentiment      string  `json:"sentiment"` // bullish | bearish | neutral
}
