// Package app wires the extraction pipeline from configuration. It is shared
// by the CLI and the Temporal worker.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/solfeat/service/cache"
	"github.com/brojonat/solfeat/service/config"
	"github.com/brojonat/solfeat/service/db"
	"github.com/brojonat/solfeat/service/features"
	"github.com/brojonat/solfeat/service/httpapi"
	"github.com/brojonat/solfeat/service/metrics"
	natspkg "github.com/brojonat/solfeat/service/nats"
	"github.com/brojonat/solfeat/service/pricing"
	"github.com/brojonat/solfeat/service/processor"
	"github.com/brojonat/solfeat/service/solana"
	"github.com/brojonat/solfeat/service/tokens"
	"github.com/hashicorp/go-multierror"
)

// Options selects optional parts of the wiring.
type Options struct {
	// Sinks connects the Postgres and NATS sinks when they are configured.
	Sinks bool
}

// App holds the wired pipeline.
type App struct {
	Config    *config.Config
	Cache     *cache.Cache
	Tokens    *tokens.Resolver
	Prices    *pricing.Resolver
	Processor *processor.Processor

	closers []func() error
	logger  *slog.Logger
}

// OpenCache opens the price cache with the configured backend.
func OpenCache(ctx context.Context, cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) (*cache.Cache, error) {
	var backend cache.Backend
	switch cfg.CacheBackend {
	case config.CacheBackendPebble:
		b, err := cache.NewPebbleBackend(cfg.CachePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open pebble cache: %w", err)
		}
		backend = b
	default:
		backend = cache.NewJSONFileBackend(cfg.CachePath)
	}
	return cache.Open(ctx, backend, m, logger), nil
}

// New builds every component of the pipeline. m may be nil.
func New(ctx context.Context, cfg *config.Config, opts Options, m *metrics.Metrics, logger *slog.Logger) (*App, error) {
	a := &App{Config: cfg, logger: logger}

	c, err := OpenCache(ctx, cfg, m, logger)
	if err != nil {
		return nil, err
	}
	a.Cache = c
	a.closers = append(a.closers, c.Close)

	client := func(provider string, delay time.Duration) *httpapi.Client {
		return httpapi.NewClient(httpapi.Options{
			Provider: provider,
			Timeout:  cfg.RequestTimeout,
			Delay:    delay,
			Metrics:  m,
			Logger:   logger,
		})
	}
	helius := client("helius", cfg.APIDelay)

	a.Tokens = tokens.NewResolver(c, []tokens.Source{
		tokens.NewHeliusSource(helius, cfg.HeliusBaseURL, cfg.HeliusAPIKey),
		tokens.NewMoralisSource(client("moralis", cfg.APIDelay), cfg.MoralisBaseURL, cfg.MoralisAPIKey),
	}, m, logger)

	cryptoCompare := pricing.NewCryptoCompareStrategy(client("cryptocompare", cfg.APIDelay), cfg.CryptoCompareBaseURL, cfg.CryptoCompareAPIKey, logger)
	a.Prices = pricing.NewResolver(c, a.Tokens, cryptoCompare, []pricing.Strategy{
		pricing.NewJupiterStrategy(client("jupiter", cfg.JupiterDelay), cfg.JupiterBaseURL, cfg.JupiterRecencyWindow, time.Now, logger),
		pricing.NewCoinGeckoStrategy(client("coingecko", cfg.APIDelay), cfg.CoinGeckoBaseURL, cfg.CoinGeckoAPIKey, logger),
		cryptoCompare,
	}, m, logger)

	fetcher := solana.NewFetcher(helius, solana.FetcherConfig{
		BaseURL:         cfg.HeliusBaseURL,
		APIKey:          cfg.HeliusAPIKey,
		PageSize:        cfg.PageSize,
		MaxTransactions: cfg.MaxTransactionsPerAddress,
		MaxRetries:      cfg.MaxRetries,
		BackoffUnit:     cfg.BackoffUnit,
		BackoffCeiling:  cfg.BackoffCeiling,
	}, m, logger)

	parser := solana.NewParser(a.Tokens, a.Prices, solana.ParserConfig{
		InstructionThreshold:   cfg.ProgrammaticInstructionThreshold,
		TokenTransferThreshold: cfg.ProgrammaticTokenTransferThreshold,
	}, m, logger)

	aggregator := features.NewAggregator(a.Prices, features.Config{
		BurstSlotThreshold:     cfg.BurstSlotThreshold,
		RoundNumberMaxDecimals: cfg.RoundNumberMaxDecimals,
	}, logger)

	var sinks []processor.Sink
	if opts.Sinks {
		sinks, err = a.connectSinks(ctx, m)
		if err != nil {
			a.Close()
			return nil, err
		}
	}

	a.Processor = processor.New(processor.Deps{
		Fetcher:    fetcher,
		Parser:     parser,
		Aggregator: aggregator,
		Cache:      c,
		Prices:     a.Prices,
		Sinks:      sinks,
		Metrics:    m,
		Logger:     logger,
	}, processor.Config{SaveEvery: cfg.SaveEvery})

	return a, nil
}

func (a *App) connectSinks(ctx context.Context, m *metrics.Metrics) ([]processor.Sink, error) {
	var sinks []processor.Sink

	if a.Config.DatabaseURL != "" {
		store, err := db.Connect(ctx, a.Config.DatabaseURL, m, a.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect feature store: %w", err)
		}
		a.closers = append(a.closers, func() error {
			store.Close()
			return nil
		})
		sinks = append(sinks, store)
		a.logger.InfoContext(ctx, "connected to feature database")
	}

	if a.Config.NATSURL != "" {
		publisher, err := natspkg.NewPublisher(a.Config.NATSURL, m, a.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create NATS publisher: %w", err)
		}
		a.closers = append(a.closers, publisher.Close)
		sinks = append(sinks, natspkg.Sink{Publisher: publisher})
		a.logger.InfoContext(ctx, "connected to NATS", "url", a.Config.NATSURL)
	}

	return sinks, nil
}

// Close releases the sinks and the cache backend, most recent first.
func (a *App) Close() error {
	var errs *multierror.Error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	a.closers = nil
	return errs.ErrorOrNil()
}
