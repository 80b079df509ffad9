// Package pricing resolves token/SOL ratios and SOL/BTC rates through a
// layered fallback chain backed by the persistent cache.
package pricing

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/brojonat/solfeat/service/metrics"
	"github.com/brojonat/solfeat/service/tokens"
)

// NativeSOLMint is the system program address some sources use for native SOL.
const NativeSOLMint = "11111111111111111111111111111111"

// Sanity bounds for accepted prices.
const (
	MaxTokenSolRatio = 1e6
	MinSolUSD        = 1.0
	MaxSolUSD        = 1000.0
	MinSolBTC        = 0.0001
	MaxSolBTC        = 0.1
	StablecoinMinUSD = 0.95
	StablecoinMaxUSD = 1.05
)

var stablecoins = map[string]bool{
	"USDC": true,
	"USDT": true,
	"BUSD": true,
	"DAI":  true,
}

// IsStablecoin reports whether symbol is a recognized USD stablecoin.
func IsStablecoin(symbol string) bool {
	return stablecoins[symbol]
}

// Cache is the subset of the persistent cache used by the resolver.
type Cache interface {
	SolBTC(key string) (float64, bool)
	PutSolBTC(key string, value float64)
	TokenSol(key string) (float64, bool)
	PutTokenSol(key string, value float64)
}

// TokenInfoResolver resolves mint metadata for cache keys and symbol lookups.
type TokenInfoResolver interface {
	GetTokenInfo(ctx context.Context, mint string) tokens.TokenInfo
}

// CrossRateSource provides the daily price of SOL in another currency.
type CrossRateSource interface {
	SolPrice(ctx context.Context, currency string, day time.Time) (float64, error)
}

// Stats summarizes resolver outcomes for the run.
type Stats struct {
	ValidationFailures int `json:"validation_failures"`
}

// Resolver implements the token price chain and the SOL cross rates.
type Resolver struct {
	cache      Cache
	tokens     TokenInfoResolver
	rates      CrossRateSource
	strategies []Strategy
	metrics    *metrics.Metrics
	logger     *slog.Logger

	mu                 sync.Mutex
	rateMemo           map[string]float64
	validationFailures int
}

// NewResolver creates a Resolver. Strategies are tried in the given order
// after the SOL, cache and stablecoin shortcuts.
// If metrics is nil, no metrics will be recorded.
func NewResolver(cache Cache, tokenInfo TokenInfoResolver, rates CrossRateSource, strategies []Strategy, m *metrics.Metrics, logger *slog.Logger) *Resolver {
	return &Resolver{
		cache:      cache,
		tokens:     tokenInfo,
		rates:      rates,
		strategies: strategies,
		metrics:    m,
		logger:     logger,
		rateMemo:   make(map[string]float64),
	}
}

// TokenToSolRatio returns how many SOL one whole unit of mint was worth at
// timestamp. ok is false when no layer produced a valid price; the failure is
// cached so the same key is never retried during the run.
func (r *Resolver) TokenToSolRatio(ctx context.Context, mint string, timestamp int64) (float64, bool) {
	if mint == tokens.WrappedSOLMint || mint == NativeSOLMint {
		return 1.0, true
	}

	info := r.tokens.GetTokenInfo(ctx, mint)
	day := dayOf(timestamp)
	key := TokenCacheKey(info.Symbol, day, mint)

	if ratio, ok := r.cache.TokenSol(key); ok {
		r.recordResolution("cache", ratio > 0)
		return ratio, ratio > 0
	}

	req := Request{
		Mint:      mint,
		Symbol:    info.Symbol,
		Timestamp: timestamp,
		Day:       day,
		solUSD: func(ctx context.Context) (float64, bool) {
			return r.solUSD(ctx, day)
		},
	}

	if IsStablecoin(info.Symbol) {
		if solUSD, ok := req.SolUSD(ctx); ok {
			ratio := 1.0 / solUSD
			if r.valid(ctx, req, ratio) {
				r.accept(ctx, key, "stablecoin", req, ratio)
				return ratio, true
			}
		}
	}

	for _, s := range r.strategies {
		q := s.Quote(ctx, req)
		if !q.OK {
			r.recordResolution(s.Name(), false)
			continue
		}
		if !r.valid(ctx, req, q.Ratio) {
			r.logger.WarnContext(ctx, "rejected out-of-range price",
				"mint", mint,
				"symbol", info.Symbol,
				"layer", s.Name(),
				"ratio", q.Ratio,
			)
			r.recordResolution(s.Name(), false)
			continue
		}
		r.accept(ctx, key, s.Name(), req, q.Ratio)
		return q.Ratio, true
	}

	r.cache.PutTokenSol(key, 0)
	r.mu.Lock()
	r.validationFailures++
	r.mu.Unlock()
	if r.metrics != nil {
		r.metrics.RecordPriceValidationFailure()
	}
	r.recordResolution("exhausted", false)
	r.logger.WarnContext(ctx, "token price unresolved",
		"mint", mint,
		"symbol", info.Symbol,
		"day", day.Format(dayLayout),
	)
	return 0, false
}

func (r *Resolver) accept(ctx context.Context, key, layer string, req Request, ratio float64) {
	r.cache.PutTokenSol(key, ratio)
	r.recordResolution(layer, true)
	r.logger.DebugContext(ctx, "resolved token price",
		"mint", req.Mint,
		"symbol", req.Symbol,
		"layer", layer,
		"ratio", ratio,
	)
}

// valid applies the sanity bound, plus the implied-USD band for stablecoins.
func (r *Resolver) valid(ctx context.Context, req Request, ratio float64) bool {
	if !(ratio > 0 && ratio <= MaxTokenSolRatio) {
		return false
	}
	if IsStablecoin(req.Symbol) {
		solUSD, ok := req.SolUSD(ctx)
		if !ok {
			return false
		}
		implied := ratio * solUSD
		return implied >= StablecoinMinUSD && implied <= StablecoinMaxUSD
	}
	return true
}

// SolToBtcRatio returns the SOL/BTC rate at timestamp. It never fails: when no
// valid rate can be fetched it returns the historical estimate for the period.
func (r *Resolver) SolToBtcRatio(ctx context.Context, timestamp int64) float64 {
	if timestamp <= 0 {
		return LatestSolBTCEstimate
	}

	day := dayOf(timestamp)
	key := SolBTCCacheKey(day)

	if ratio, ok := r.cache.SolBTC(key); ok && ratio > 0 {
		return ratio
	}
	if ratio, ok := r.memoized(key); ok {
		return ratio
	}

	if r.rates != nil {
		ratio, err := r.rates.SolPrice(ctx, "BTC", day)
		if err == nil && ratio >= MinSolBTC && ratio <= MaxSolBTC {
			r.cache.PutSolBTC(key, ratio)
			r.memoize(key, ratio)
			return ratio
		}
		r.logger.DebugContext(ctx, "SOL/BTC rate unavailable, using historical estimate",
			"day", day.Format(dayLayout),
			"ratio", ratio,
			"error", err,
		)
	}

	fallback := HistoricalSolBTC(day)
	r.memoize(key, fallback)
	return fallback
}

// solUSD returns the SOL/USD price for day. Failures are remembered for the
// rest of the run but not persisted.
func (r *Resolver) solUSD(ctx context.Context, day time.Time) (float64, bool) {
	key := SolUSDCacheKey(day)

	if price, ok := r.cache.SolBTC(key); ok && price > 0 {
		return price, true
	}
	if price, ok := r.memoized(key); ok {
		return price, price > 0
	}
	if r.rates == nil {
		return 0, false
	}

	price, err := r.rates.SolPrice(ctx, "USD", day)
	if err == nil && price >= MinSolUSD && price <= MaxSolUSD {
		r.cache.PutSolBTC(key, price)
		r.memoize(key, price)
		return price, true
	}

	r.logger.DebugContext(ctx, "SOL/USD price unavailable",
		"day", day.Format(dayLayout),
		"price", price,
		"error", err,
	)
	r.memoize(key, 0)
	return 0, false
}

// memoized returns an in-process cross rate (0 records a failed lookup).
func (r *Resolver) memoized(key string) (float64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.rateMemo[key]
	return v, ok
}

func (r *Resolver) memoize(key string, v float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rateMemo[key] = v
}

// Stats returns the resolver outcome counters for the run.
func (r *Resolver) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Stats{ValidationFailures: r.validationFailures}
}

func (r *Resolver) recordResolution(layer string, ok bool) {
	if r.metrics == nil {
		return
	}
	outcome := "miss"
	if ok {
		outcome = "hit"
	}
	r.metrics.RecordPriceResolution(layer, outcome)
}
