package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/bpstack/home-account-showcase-sub001/src/logger"
	"github.com/bpstack/home-account-showcase-sub001/src/model"
	"golang.org/x/net/publicsuffix"
)

// Fallback constants. Every market field degrades to one of these so the
// aggregate context is always fully populated, even under total upstream
// failure. Stale-looking defaults are preferred over a hard error in a
// dashboard context.
var (
	fallbackSP500  = model.IndexQuote{Value: 5890, Change24Pct: 2.3}
	fallbackWorld  = model.IndexQuote{Value: 3650, Change24Pct: 1.1}
	fallbackTech   = model.IndexQuote{Value: 20500, Change24Pct: 1.8}
	fallbackBTC    = model.IndexQuote{Value: 97000, Change24Pct: 1.5}
	fallbackETH    = model.IndexQuote{Value: 3400, Change24Pct: 0.8}
	fallbackEurUsd = 1.09
	fallbackEurGbp = 0.85
)

const feedUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/108.0.0.0 Safari/537.36"

type CryptoQuotes struct {
	Bitcoin  model.IndexQuote
	Ethereum model.IndexQuote
}

type FxRates struct {
	EurUsd float64
	EurGbp float64
}

type IndexQuotes struct {
	SP500 model.IndexQuote
	World model.IndexQuote
	Tech  model.IndexQuote
}

// MarketFeeds is the set of independent upstream sources the aggregator fans
// out to. Each method returns usable values even on error (its own fallback
// layer); the error reports the degradation.
type MarketFeeds interface {
	FetchCrypto(ctx context.Context) (CryptoQuotes, error)
	FetchFx(ctx context.Context) (FxRates, error)
	FetchIndices(ctx context.Context) (IndexQuotes, error)
}

// httpMarketFeeds talks to the public CoinGecko, Frankfurter and Yahoo Finance
// endpoints. Base URLs are fields so tests can point them at a local server.
type httpMarketFeeds struct {
	cryptoBaseURL string
	fxBaseURL     string
	indexBaseURL  string
	httpClient    *http.Client
}

func NewMarketFeeds() MarketFeeds {
	// Yahoo rejects clients without cookies and a browser User-Agent.
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil && logger.L != nil {
		logger.L.Error("Failed to create cookie jar for market feeds", "error", err)
	}
	return &httpMarketFeeds{
		cryptoBaseURL: "https://api.coingecko.com",
		fxBaseURL:     "https://api.frankfurter.app",
		indexBaseURL:  "https://query1.finance.yahoo.com",
		httpClient:    &http.Client{Jar: jar, Timeout: 15 * time.Second},
	}
}

func (f *httpMarketFeeds) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", feedUserAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("feed returned non-OK status %d for %s", resp.StatusCode, url)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (f *httpMarketFeeds) FetchCrypto(ctx context.Context) (CryptoQuotes, error) {
	fallback := CryptoQuotes{Bitcoin: fallbackBTC, Ethereum: fallbackETH}

	var decoded map[string]struct {
		USD       float64 `json:"usd"`
		USDChange float64 `json:"usd_24h_change"`
	}
	url := f.cryptoBaseURL + "/api/v3/simple/price?ids=bitcoin,ethereum&vs_currencies=usd&include_24hr_change=true"
	if err := f.getJSON(ctx, url, &decoded); err != nil {
		return fallback, fmt.Errorf("crypto feed degraded to fallback: %w", err)
	}

	btc, okBTC := decoded["bitcoin"]
	eth, okETH := decoded["ethereum"]
	if !okBTC || !okETH {
		return fallback, fmt.Errorf("crypto feed response missing instruments")
	}
	return CryptoQuotes{
		Bitcoin:  model.IndexQuote{Value: btc.USD, Change24Pct: btc.USDChange},
		Ethereum: model.IndexQuote{Value: eth.USD, Change24Pct: eth.USDChange},
	}, nil
}

func (f *httpMarketFeeds) FetchFx(ctx context.Context) (FxRates, error) {
	fallback := FxRates{EurUsd: fallbackEurUsd, EurGbp: fallbackEurGbp}

	var decoded struct {
		Rates map[string]float64 `json:"rates"`
	}
	url := f.fxBaseURL + "/latest?from=EUR&to=USD,GBP"
	if err := f.getJSON(ctx, url, &decoded); err != nil {
		return fallback, fmt.Errorf("fx feed degraded to fallback: %w", err)
	}

	usd, okUSD := decoded.Rates["USD"]
	gbp, okGBP := decoded.Rates["GBP"]
	if !okUSD || !okGBP {
		return fallback, fmt.Errorf("fx feed response missing rates")
	}
	return FxRates{EurUsd: usd, EurGbp: gbp}, nil
}

func (f *httpMarketFeeds) FetchIndices(ctx context.Context) (IndexQuotes, error) {
	fallback := IndexQuotes{SP500: fallbackSP500, World: fallbackWorld, Tech: fallbackTech}

	var decoded struct {
		QuoteResponse struct {
			Result []struct {
				Symbol                 string  `json:"symbol"`
				RegularMarketPrice     float64 `json:"regularMarketPrice"`
				RegularMarketChangePct float64 `json:"regularMarketChangePercent"`
			} `json:"result"`
			Error interface{} `json:"error"`
		} `json:"quoteResponse"`
	}
	url := f.indexBaseURL + "/v7/finance/quote?symbols=%5EGSPC,URTH,%5EIXIC"
	if err := f.getJSON(ctx, url, &decoded); err != nil {
		return fallback, fmt.Errorf("index feed degraded to fallback: %w", err)
	}
	if decoded.QuoteResponse.Error != nil || len(decoded.QuoteResponse.Result) == 0 {
		return fallback, fmt.Errorf("index feed returned an error or no results")
	}

	quotes := fallback
	for _, r := range decoded.QuoteResponse.Result {
		q := model.IndexQuote{Value: r.RegularMarketPrice, Change24Pct: r.RegularMarketChangePct}
		switch r.Symbol {
		case "^GSPC":
			quotes.SP500 = q
		case "URTH":
			quotes.World = q
		case "^IXIC":
			quotes.Tech = q
		}
	}
	return quotes, nil
}
