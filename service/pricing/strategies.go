package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/brojonat/solfeat/service/httpapi"
	"github.com/brojonat/solfeat/service/tokens"
)

// Quote is the result of one price layer. OK is false when the layer had no
// usable value and the chain should fall through.
type Quote struct {
	Ratio float64
	OK    bool
}

// Request describes the token and moment being priced.
type Request struct {
	Mint      string
	Symbol    string
	Timestamp int64
	Day       time.Time

	solUSD func(ctx context.Context) (float64, bool)
}

// SolUSD returns the SOL/USD price of the request's day, resolved lazily.
func (r Request) SolUSD(ctx context.Context) (float64, bool) {
	if r.solUSD == nil {
		return 0, false
	}
	return r.solUSD(ctx)
}

// Strategy is one layer of the token price chain.
type Strategy interface {
	Name() string
	Quote(ctx context.Context, req Request) Quote
}

// usdToSol converts a USD price into a SOL ratio using the request's SOL/USD price.
func usdToSol(ctx context.Context, req Request, usd float64) Quote {
	if usd <= 0 {
		return Quote{}
	}
	solUSD, ok := req.SolUSD(ctx)
	if !ok || solUSD <= 0 {
		return Quote{}
	}
	return Quote{Ratio: usd / solUSD, OK: true}
}

// JupiterStrategy prices by mint with the Jupiter spot API. It has no
// historical depth, so it only answers for recent transactions.
type JupiterStrategy struct {
	client  *httpapi.Client
	baseURL string
	window  time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

// NewJupiterStrategy creates the spot price layer. now may be nil.
func NewJupiterStrategy(client *httpapi.Client, baseURL string, window time.Duration, now func() time.Time, logger *slog.Logger) *JupiterStrategy {
	if now == nil {
		now = time.Now
	}
	return &JupiterStrategy{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		window:  window,
		now:     now,
		logger:  logger,
	}
}

func (s *JupiterStrategy) Name() string { return "jupiter" }

func (s *JupiterStrategy) Quote(ctx context.Context, req Request) Quote {
	age := s.now().Sub(time.Unix(req.Timestamp, 0))
	if age > s.window {
		return Quote{}
	}

	endpoint := fmt.Sprintf("%s/price/v3?ids=%s", s.baseURL, url.QueryEscape(req.Mint))
	var resp map[string]struct {
		USDPrice float64 `json:"usdPrice"`
	}
	if err := s.client.GetJSON(ctx, endpoint, nil, &resp); err != nil {
		s.logger.DebugContext(ctx, "jupiter price lookup failed", "mint", req.Mint, "error", err)
		return Quote{}
	}

	entry, ok := resp[req.Mint]
	if !ok {
		return Quote{}
	}
	return usdToSol(ctx, req, entry.USDPrice)
}

// CoinGeckoStrategy prices by symbol and date with the CoinGecko history API.
type CoinGeckoStrategy struct {
	client  *httpapi.Client
	baseURL string
	apiKey  string
	logger  *slog.Logger

	mu  sync.Mutex
	ids map[string]string // symbol -> coin id, "" when the search found nothing
}

// NewCoinGeckoStrategy creates the first historical layer. apiKey may be empty.
func NewCoinGeckoStrategy(client *httpapi.Client, baseURL, apiKey string, logger *slog.Logger) *CoinGeckoStrategy {
	return &CoinGeckoStrategy{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		logger:  logger,
		ids:     make(map[string]string),
	}
}

func (s *CoinGeckoStrategy) Name() string { return "coingecko" }

func (s *CoinGeckoStrategy) headers() map[string]string {
	if s.apiKey == "" {
		return nil
	}
	return map[string]string{"x-cg-demo-api-key": s.apiKey}
}

func (s *CoinGeckoStrategy) coinID(ctx context.Context, symbol string) (string, error) {
	s.mu.Lock()
	id, seen := s.ids[symbol]
	s.mu.Unlock()
	if seen {
		return id, nil
	}

	endpoint := fmt.Sprintf("%s/api/v3/search?query=%s", s.baseURL, url.QueryEscape(symbol))
	var resp struct {
		Coins []struct {
			ID     string `json:"id"`
			Symbol string `json:"symbol"`
		} `json:"coins"`
	}
	if err := s.client.GetJSON(ctx, endpoint, s.headers(), &resp); err != nil {
		return "", err
	}
	for _, coin := range resp.Coins {
		if strings.EqualFold(coin.Symbol, symbol) {
			id = coin.ID
			break
		}
	}

	s.mu.Lock()
	s.ids[symbol] = id
	s.mu.Unlock()
	return id, nil
}

func (s *CoinGeckoStrategy) Quote(ctx context.Context, req Request) Quote {
	if req.Symbol == tokens.UnknownSymbol {
		return Quote{}
	}
	id, err := s.coinID(ctx, req.Symbol)
	if err != nil {
		s.logger.DebugContext(ctx, "coingecko search failed", "symbol", req.Symbol, "error", err)
		return Quote{}
	}
	if id == "" {
		return Quote{}
	}

	endpoint := fmt.Sprintf("%s/api/v3/coins/%s/history?date=%s&localization=false",
		s.baseURL, url.PathEscape(id), req.Day.Format("02-01-2006"))
	var resp struct {
		MarketData struct {
			CurrentPrice map[string]float64 `json:"current_price"`
		} `json:"market_data"`
	}
	if err := s.client.GetJSON(ctx, endpoint, s.headers(), &resp); err != nil {
		s.logger.DebugContext(ctx, "coingecko history lookup failed", "symbol", req.Symbol, "error", err)
		return Quote{}
	}
	return usdToSol(ctx, req, resp.MarketData.CurrentPrice["usd"])
}

// CryptoCompareStrategy prices by symbol and day directly in SOL. It also
// serves the SOL/USD and SOL/BTC cross rates.
type CryptoCompareStrategy struct {
	client  *httpapi.Client
	baseURL string
	apiKey  string
	logger  *slog.Logger
}

// NewCryptoCompareStrategy creates the second historical layer.
func NewCryptoCompareStrategy(client *httpapi.Client, baseURL, apiKey string, logger *slog.Logger) *CryptoCompareStrategy {
	return &CryptoCompareStrategy{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		logger:  logger,
	}
}

func (s *CryptoCompareStrategy) Name() string { return "cryptocompare" }

func (s *CryptoCompareStrategy) Quote(ctx context.Context, req Request) Quote {
	if req.Symbol == tokens.UnknownSymbol {
		return Quote{}
	}
	price, err := s.historical(ctx, req.Symbol, "SOL", req.Day)
	if err != nil {
		s.logger.DebugContext(ctx, "cryptocompare lookup failed", "symbol", req.Symbol, "error", err)
		return Quote{}
	}
	return Quote{Ratio: price, OK: price > 0}
}

// SolPrice returns the price of one SOL in currency ("USD", "BTC") on day.
func (s *CryptoCompareStrategy) SolPrice(ctx context.Context, currency string, day time.Time) (float64, error) {
	return s.historical(ctx, "SOL", currency, day)
}

func (s *CryptoCompareStrategy) historical(ctx context.Context, from, to string, day time.Time) (float64, error) {
	q := url.Values{}
	q.Set("fsym", from)
	q.Set("tsyms", to)
	q.Set("ts", fmt.Sprintf("%d", day.Unix()))
	if s.apiKey != "" {
		q.Set("api_key", s.apiKey)
	}
	endpoint := fmt.Sprintf("%s/data/pricehistorical?%s", s.baseURL, q.Encode())

	var resp map[string]json.RawMessage
	if err := s.client.GetJSON(ctx, endpoint, nil, &resp); err != nil {
		return 0, err
	}

	raw, ok := resp[from]
	if !ok {
		return 0, fmt.Errorf("cryptocompare returned no %s price for %s", to, from)
	}
	var prices map[string]float64
	if err := json.Unmarshal(raw, &prices); err != nil {
		return 0, fmt.Errorf("failed to decode cryptocompare prices: %w", err)
	}
	price, ok := prices[to]
	if !ok {
		return 0, fmt.Errorf("cryptocompare returned no %s price for %s", to, from)
	}
	return price, nil
}
