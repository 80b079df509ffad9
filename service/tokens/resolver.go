// Package tokens resolves SPL token mints to their symbol, decimals and name.
package tokens

import (
	"context"
	"log/slog"

	"github.com/brojonat/solfeat/service/metrics"
)

// Cache is the subset of the persistent cache used by the resolver.
type Cache interface {
	TokenInfo(mint string) (TokenInfo, bool)
	PutTokenInfo(mint string, info TokenInfo)
}

// Resolver looks up token metadata through the static table, the cache and
// an ordered list of remote sources. It never fails.
type Resolver struct {
	cache   Cache
	sources []Source
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewResolver creates a Resolver. Sources are consulted in the given order.
// If metrics is nil, no metrics will be recorded.
func NewResolver(cache Cache, sources []Source, m *metrics.Metrics, logger *slog.Logger) *Resolver {
	return &Resolver{
		cache:   cache,
		sources: sources,
		metrics: m,
		logger:  logger,
	}
}

// GetTokenInfo returns the metadata for mint, or Unknown when every source misses.
// Both outcomes are cached, so repeated calls for a mint never hit the network twice.
func (r *Resolver) GetTokenInfo(ctx context.Context, mint string) TokenInfo {
	if info, ok := Known(mint); ok {
		r.cache.PutTokenInfo(mint, info)
		r.record("static")
		return info
	}

	if info, ok := r.cache.TokenInfo(mint); ok {
		r.record("cache")
		return info
	}

	for _, src := range r.sources {
		raw, err := src.Lookup(ctx, mint)
		if err != nil {
			r.logger.DebugContext(ctx, "token metadata lookup failed",
				"mint", mint,
				"source", src.Name(),
				"error", err,
			)
			continue
		}

		info, ok := validate(raw)
		if !ok {
			r.logger.WarnContext(ctx, "rejected invalid token metadata",
				"mint", mint,
				"source", src.Name(),
				"symbol", raw.Symbol,
				"decimals", raw.Decimals,
			)
			continue
		}

		r.cache.PutTokenInfo(mint, info)
		r.record(src.Name())
		r.logger.DebugContext(ctx, "resolved token metadata",
			"mint", mint,
			"source", src.Name(),
			"symbol", info.Symbol,
			"decimals", info.Decimals,
		)
		return info
	}

	r.logger.WarnContext(ctx, "token metadata unresolved, using unknown sentinel", "mint", mint)
	r.cache.PutTokenInfo(mint, Unknown)
	r.record("unknown")
	return Unknown
}

func (r *Resolver) record(source string) {
	if r.metrics != nil {
		r.metrics.RecordTokenLookup(source)
	}
}
