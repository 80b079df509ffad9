// Package processor drives feature extraction for single addresses and for
// labeled manifests, with resumable incremental saves.
package processor

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/brojonat/solfeat/service/features"
	"github.com/brojonat/solfeat/service/metrics"
	"github.com/brojonat/solfeat/service/pricing"
	"github.com/brojonat/solfeat/service/solana"
	"github.com/pkg/errors"
)

// ErrNoTransactions is returned when an address has no usable history.
var ErrNoTransactions = errors.New("no transactions found")

// Fetcher streams the raw history of an address.
type Fetcher interface {
	FetchAllTransactions(ctx context.Context, address string) iter.Seq[solana.RawTransaction]
}

// Parser normalizes one raw transaction relative to a target address.
type Parser interface {
	Parse(ctx context.Context, raw solana.RawTransaction, target string) []solana.NormalizedTransfer
}

// Aggregator turns normalized transfers into a feature record.
type Aggregator interface {
	Aggregate(ctx context.Context, address string, transfers []solana.NormalizedTransfer) *features.Record
}

// CacheSaver persists the shared price cache.
type CacheSaver interface {
	Save(ctx context.Context) error
}

// PriceStats reports resolver outcomes for the run summary.
type PriceStats interface {
	Stats() pricing.Stats
}

// Sink receives every completed feature record. Write errors are logged and
// never abort a run.
type Sink interface {
	Name() string
	Write(ctx context.Context, rec *features.Record) error
}

// Config controls manifest runs.
type Config struct {
	// SaveEvery is the number of newly processed addresses between saves.
	SaveEvery int
}

// Deps are the collaborators of a Processor. Prices, Sinks and Metrics are
// optional.
type Deps struct {
	Fetcher    Fetcher
	Parser     Parser
	Aggregator Aggregator
	Cache      CacheSaver
	Prices     PriceStats
	Sinks      []Sink
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

// Processor runs the fetch, parse, aggregate and assess pipeline.
type Processor struct {
	fetcher    Fetcher
	parser     Parser
	aggregator Aggregator
	cache      CacheSaver
	prices     PriceStats
	sinks      []Sink
	cfg        Config
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// New creates a Processor.
func New(deps Deps, cfg Config) *Processor {
	if cfg.SaveEvery < 1 {
		cfg.SaveEvery = 1
	}
	return &Processor{
		fetcher:    deps.Fetcher,
		parser:     deps.Parser,
		aggregator: deps.Aggregator,
		cache:      deps.Cache,
		prices:     deps.Prices,
		sinks:      deps.Sinks,
		cfg:        cfg,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
	}
}

// Summary reports the outcome of a manifest run.
type Summary struct {
	Total                   int `json:"total"`
	Resumed                 int `json:"resumed"`
	Processed               int `json:"processed"`
	Skipped                 int `json:"skipped"`
	Failed                  int `json:"failed"`
	TableSize               int `json:"table_size"`
	LowTxCount              int `json:"low_tx_count"`
	HighPriceFailures       int `json:"high_price_failures"`
	SuspiciousPatterns      int `json:"suspicious_patterns"`
	PriceValidationFailures int `json:"price_validation_failures"`
}

// Run quality thresholds. They are independent of the per-record tags.
const (
	summaryLowTxCount       = 10
	summaryMinPriceRate     = 0.8
	summaryMaxRoundNumRatio = 0.5
)

// Count adds a newly processed record to the tallies. A record without a
// price success rate counts as fully priced.
func (s *Summary) Count(rec *features.Record) {
	s.Processed++
	v := rec.Features
	if v == nil {
		v = features.NewVector()
	}
	if v.Value("total_txs") < summaryLowTxCount {
		s.LowTxCount++
	}
	priceRate, ok := v.Get("price_fetch_success_rate")
	if !ok {
		priceRate = 1
	}
	if priceRate < summaryMinPriceRate {
		s.HighPriceFailures++
	}
	if v.Value("round_number_ratio") > summaryMaxRoundNumRatio {
		s.SuspiciousPatterns++
	}
}

// ProcessAddress extracts the feature record of one address. The record is
// unlabeled (Class -1) and carries its quality tags.
func (p *Processor) ProcessAddress(ctx context.Context, address string) (*features.Record, error) {
	if err := solana.ValidateAddress(address); err != nil {
		return nil, err
	}

	var transfers []solana.NormalizedTransfer
	fetched := 0
	for raw := range p.fetcher.FetchAllTransactions(ctx, address) {
		fetched++
		transfers = append(transfers, p.parser.Parse(ctx, raw, address)...)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("extraction of %s interrupted: %w", address, err)
	}
	if len(transfers) == 0 {
		return nil, fmt.Errorf("%w for %s (%d raw)", ErrNoTransactions, address, fetched)
	}

	rec := p.aggregator.Aggregate(ctx, address, transfers)
	if rec == nil {
		return nil, fmt.Errorf("%w for %s", ErrNoTransactions, address)
	}
	rec.Address = address
	rec.Class = -1
	rec.Quality = features.AssessQuality(rec.Features)

	p.logger.InfoContext(ctx, "features calculated",
		"address", address,
		"raw_transactions", fetched,
		"transfers", len(transfers),
		"features", rec.Features.Len(),
		"total_txs", rec.Features.Value("total_txs"),
		"btc_transacted_total", rec.Features.Value("btc_transacted_total"),
		"defi_ratio", rec.Features.Value("defi_ratio"),
		"price_fetch_success_rate", rec.Features.Value("price_fetch_success_rate"),
	)

	return rec, nil
}

// ExtractEntry processes one manifest entry. Panics are recovered into an
// error that carries the stack trace.
func (p *Processor) ExtractEntry(ctx context.Context, entry Entry) (rec *features.Record, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			rec = nil
			err = errors.Errorf("panic while processing %s: %v", entry.Address, r)
			p.logger.ErrorContext(ctx, "recovered panic",
				"address", entry.Address,
				"error", err,
				"stack", fmt.Sprintf("%+v", err),
			)
		}
		if p.metrics != nil {
			p.metrics.RecordAddressProcessed(outcome(err), time.Since(start).Seconds())
		}
	}()

	rec, err = p.ProcessAddress(ctx, entry.Address)
	if err != nil {
		return nil, err
	}
	rec.Class = entry.Class
	return rec, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, solana.ErrInvalidAddress):
		return "invalid"
	case errors.Is(err, ErrNoTransactions):
		return "empty"
	default:
		return "error"
	}
}

// Publish fans a record out to every configured sink.
func (p *Processor) Publish(ctx context.Context, rec *features.Record) {
	for _, sink := range p.sinks {
		err := sink.Write(ctx, rec)
		if p.metrics != nil {
			p.metrics.RecordSinkWrite(sink.Name(), err)
		}
		if err != nil {
			p.logger.WarnContext(ctx, "sink write failed",
				"sink", sink.Name(),
				"address", rec.Address,
				"error", err,
			)
		}
	}
}

// ProcessManifest extracts every manifest address not already present in
// the table at outputPath, saving the table and the price cache every
// SaveEvery new records and once at the end.
func (p *Processor) ProcessManifest(ctx context.Context, manifestPath, outputPath string) (*Summary, error) {
	entries, err := ReadManifest(manifestPath, p.logger)
	if err != nil {
		return nil, err
	}
	p.logger.InfoContext(ctx, "loaded manifest", "path", manifestPath, "addresses", len(entries))

	table, err := LoadTable(outputPath)
	if err != nil {
		return nil, err
	}
	if table.Len() > 0 {
		p.logger.InfoContext(ctx, "resuming from existing feature table",
			"path", outputPath,
			"processed_addresses", table.Len(),
		)
	}

	summary := &Summary{Total: len(entries)}
	for i, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		if table.Processed(entry.Address) {
			summary.Resumed++
			continue
		}

		p.logger.InfoContext(ctx, "processing address",
			"address", entry.Address,
			"position", i+1,
			"total", len(entries),
		)

		rec, err := p.ExtractEntry(ctx, entry)
		switch {
		case errors.Is(err, solana.ErrInvalidAddress), errors.Is(err, ErrNoTransactions):
			summary.Skipped++
			p.logger.WarnContext(ctx, "skipping address", "address", entry.Address, "reason", err)
			continue
		case err != nil:
			summary.Failed++
			p.logger.ErrorContext(ctx, "failed to process address", "address", entry.Address, "error", err)
			continue
		}

		table.Append(rec)
		summary.Count(rec)
		p.Publish(ctx, rec)

		if summary.Processed%p.cfg.SaveEvery == 0 {
			if err := p.checkpoint(ctx, table, outputPath); err != nil {
				p.logger.ErrorContext(ctx, "failed to save progress", "error", err)
			}
		}
	}

	var saveErr error
	if summary.Processed > 0 {
		saveErr = p.checkpoint(ctx, table, outputPath)
	} else if p.cache != nil {
		saveErr = p.cache.Save(context.WithoutCancel(ctx))
	}

	summary.TableSize = table.Len()
	if p.prices != nil {
		summary.PriceValidationFailures = p.prices.Stats().ValidationFailures
	}
	p.logger.InfoContext(ctx, "manifest run complete",
		"total", summary.Total,
		"resumed", summary.Resumed,
		"processed", summary.Processed,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"table_size", summary.TableSize,
		"low_tx_count", summary.LowTxCount,
		"high_price_failures", summary.HighPriceFailures,
		"suspicious_patterns", summary.SuspiciousPatterns,
		"price_validation_failures", summary.PriceValidationFailures,
	)

	if saveErr != nil {
		return summary, saveErr
	}
	if err := ctx.Err(); err != nil {
		return summary, fmt.Errorf("manifest run interrupted: %w", err)
	}
	return summary, nil
}

// checkpoint rewrites the table and saves the price cache. It runs even
// after ctx is canceled so an interrupted run keeps its progress.
func (p *Processor) checkpoint(ctx context.Context, table *Table, outputPath string) error {
	if err := table.Save(outputPath); err != nil {
		return err
	}
	if p.cache != nil {
		if err := p.cache.Save(context.WithoutCancel(ctx)); err != nil {
			return err
		}
	}
	p.logger.InfoContext(ctx, "progress saved", "path", outputPath, "rows", table.Len())
	return nil
}

// PersistRecords appends records whose address is not yet in the table at
// outputPath, then saves the table and the price cache. It returns the
// resulting table size.
func (p *Processor) PersistRecords(ctx context.Context, outputPath string, records []*features.Record) (int, error) {
	table, err := LoadTable(outputPath)
	if err != nil {
		return 0, err
	}
	added := 0
	for _, rec := range records {
		if rec == nil || table.Processed(rec.Address) {
			continue
		}
		table.Append(rec)
		added++
	}
	if err := p.checkpoint(ctx, table, outputPath); err != nil {
		return 0, err
	}
	p.logger.DebugContext(ctx, "persisted records", "added", added, "rows", table.Len())
	return table.Len(), nil
}
