package processor

import (
	"context"
	"errors"
	"io"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/brojonat/solfeat/service/features"
	"github.com/brojonat/solfeat/service/pricing"
	"github.com/brojonat/solfeat/service/solana"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	walletA  = "C8H4v4c2eA6njjgzvWSrCpLdYg3hWSygoVsi4RkUrzjV"
	walletB  = "4XTm6QXMNgVJqGd2u14BZRce7PoVGrBGV7AHGwhkWqTy"
	walletC  = "3fh1VqUoSyHL9rS8GKsqqacwUhR9nLuSxZm2aNgJGrjz"
	walletD  = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"
	baseTime = int64(1707523200)
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeFetcher serves fixed histories and records which addresses were fetched.
type fakeFetcher struct {
	mu        sync.Mutex
	histories map[string][]solana.RawTransaction
	fetched   []string
}

func (f *fakeFetcher) FetchAllTransactions(ctx context.Context, address string) iter.Seq[solana.RawTransaction] {
	f.mu.Lock()
	f.fetched = append(f.fetched, address)
	history := f.histories[address]
	f.mu.Unlock()

	return func(yield func(solana.RawTransaction) bool) {
		for _, tx := range history {
			if !yield(tx) {
				return
			}
		}
	}
}

// fakeParser turns native transfers into SOL transfers and panics for one target.
type fakeParser struct {
	panicFor string
}

func (p *fakeParser) Parse(ctx context.Context, raw solana.RawTransaction, target string) []solana.NormalizedTransfer {
	if target == p.panicFor {
		var m map[string]int
		m["boom"]++
	}
	out := make([]solana.NormalizedTransfer, 0, len(raw.NativeTransfers))
	for _, nt := range raw.NativeTransfers {
		sol := float64(nt.Amount) / solana.LamportsPerSOL
		out = append(out, solana.NormalizedTransfer{
			Signature:         raw.Signature,
			Slot:              raw.Slot,
			Timestamp:         raw.Timestamp,
			From:              nt.FromUserAccount,
			To:                nt.ToUserAccount,
			Type:              solana.TxTypeSOLTransfer,
			Context:           solana.TxContextPureTransfer,
			Normalized:        sol,
			ValueSOL:          sol,
			PriceFetchSuccess: true,
			FeeLamports:       raw.Fee,
		})
	}
	return out
}

type fixedRate float64

func (r fixedRate) SolToBtcRatio(ctx context.Context, timestamp int64) float64 {
	return float64(r)
}

type countingCache struct {
	saves int
	err   error
}

func (c *countingCache) Save(ctx context.Context) error {
	c.saves++
	return c.err
}

type fixedStats int

func (s fixedStats) Stats() pricing.Stats {
	return pricing.Stats{ValidationFailures: int(s)}
}

type recordingSink struct {
	name    string
	err     error
	written []string
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Write(ctx context.Context, rec *features.Record) error {
	s.written = append(s.written, rec.Address)
	return s.err
}

func transfer(sig string, slot int64, from, to string, lamports int64) solana.RawTransaction {
	return solana.RawTransaction{
		Signature: sig,
		Slot:      slot,
		Timestamp: baseTime + slot,
		Fee:       5000,
		FeePayer:  from,
		NativeTransfers: []solana.NativeTransfer{
			{FromUserAccount: from, ToUserAccount: to, Amount: lamports},
		},
	}
}

type harness struct {
	fetcher *fakeFetcher
	cache   *countingCache
	sinks   []*recordingSink
	proc    *Processor
}

func newHarness(t *testing.T, saveEvery int, sinkErr error) *harness {
	t.Helper()

	fetcher := &fakeFetcher{histories: map[string][]solana.RawTransaction{
		walletA: {
			transfer("a1", 100, walletA, walletB, 1_000_000_000),
			transfer("a2", 150, walletB, walletA, 500_000_000),
		},
		walletC: {transfer("c1", 10, walletC, walletB, 1_000_000_000)},
		walletD: {transfer("d1", 10, walletB, walletD, 2_000_000_000)},
	}}
	cache := &countingCache{}
	good := &recordingSink{name: "good"}
	bad := &recordingSink{name: "bad", err: sinkErr}

	proc := New(Deps{
		Fetcher:    fetcher,
		Parser:     &fakeParser{panicFor: walletC},
		Aggregator: features.NewAggregator(fixedRate(0.01), features.DefaultConfig(), testLogger()),
		Cache:      cache,
		Prices:     fixedStats(2),
		Sinks:      []Sink{good, bad},
		Logger:     testLogger(),
	}, Config{SaveEvery: saveEvery})

	return &harness{fetcher: fetcher, cache: cache, sinks: []*recordingSink{good, bad}, proc: proc}
}

func writeManifest(t *testing.T, dir string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, "manifest.csv")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func TestProcessAddress(t *testing.T) {
	h := newHarness(t, 3, nil)

	rec, err := h.proc.ProcessAddress(context.Background(), walletA)
	require.NoError(t, err)
	assert.Equal(t, walletA, rec.Address)
	assert.Equal(t, -1, rec.Class)
	assert.Equal(t, 2.0, rec.Features.Value("total_txs"))
	assert.Equal(t, features.DataQualityLowTxCount, rec.Quality.DataQualityWarning)
	assert.Equal(t, features.BehaviorLikelyHuman, rec.Quality.BehaviorPattern)
}

func TestProcessAddress_Errors(t *testing.T) {
	h := newHarness(t, 3, nil)

	_, err := h.proc.ProcessAddress(context.Background(), "not-an-address")
	assert.ErrorIs(t, err, solana.ErrInvalidAddress)

	_, err = h.proc.ProcessAddress(context.Background(), walletB)
	assert.ErrorIs(t, err, ErrNoTransactions)

	assert.Equal(t, []string{walletB}, h.fetcher.fetched, "invalid addresses are never fetched")
}

func TestExtractEntry_RecoversPanics(t *testing.T) {
	h := newHarness(t, 3, nil)

	rec, err := h.proc.ExtractEntry(context.Background(), Entry{Address: walletC, Class: 1})
	assert.Nil(t, rec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic while processing "+walletC)

	rec, err = h.proc.ExtractEntry(context.Background(), Entry{Address: walletD, Class: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Class)
}

func TestProcessManifest(t *testing.T) {
	dir := t.TempDir()
	manifest := writeManifest(t, dir,
		"Address,FLAG",
		walletA+",1",
		"not-an-address,0",
		walletB+",0",
		walletC+",1",
		walletD+",0",
		walletD+",oops",
	)
	output := filepath.Join(dir, "features.csv")

	h := newHarness(t, 1, errors.New("sink down"))

	summary, err := h.proc.ProcessManifest(context.Background(), manifest, output)
	require.NoError(t, err)

	assert.Equal(t, 5, summary.Total)
	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 2, summary.Skipped)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 2, summary.TableSize)
	assert.Equal(t, 2, summary.LowTxCount)
	assert.Equal(t, 2, summary.PriceValidationFailures)

	assert.Equal(t, []string{walletA, walletD}, h.sinks[0].written)
	assert.Equal(t, []string{walletA, walletD}, h.sinks[1].written, "a failing sink still sees every record")
	assert.Equal(t, 3, h.cache.saves, "one save per record plus the final save")

	table, err := LoadTable(output)
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{walletA: {}, walletD: {}}, table.ProcessedAddresses())
	records := table.Records()
	assert.Equal(t, 1, records[0].Class)
	assert.Equal(t, 0, records[1].Class)

	t.Run("resume skips saved addresses", func(t *testing.T) {
		h2 := newHarness(t, 1, nil)

		summary, err := h2.proc.ProcessManifest(context.Background(), manifest, output)
		require.NoError(t, err)

		assert.Equal(t, 2, summary.Resumed)
		assert.Equal(t, 0, summary.Processed)
		assert.Equal(t, 2, summary.Skipped)
		assert.Equal(t, 1, summary.Failed)
		assert.NotContains(t, h2.fetcher.fetched, walletA)
		assert.NotContains(t, h2.fetcher.fetched, walletD)
		assert.Equal(t, 1, h2.cache.saves, "the cache is saved even when nothing new was processed")

		table, err := LoadTable(output)
		require.NoError(t, err)
		assert.Equal(t, 2, table.Len())
	})
}

func TestProcessManifest_MissingColumns(t *testing.T) {
	dir := t.TempDir()
	manifest := writeManifest(t, dir, "address,label", walletA+",1")

	h := newHarness(t, 3, nil)
	_, err := h.proc.ProcessManifest(context.Background(), manifest, filepath.Join(dir, "out.csv"))
	assert.ErrorIs(t, err, ErrMissingColumns)
	assert.Empty(t, h.fetcher.fetched)
}

func TestProcessManifest_Canceled(t *testing.T) {
	dir := t.TempDir()
	manifest := writeManifest(t, dir, "Address,FLAG", walletA+",1", walletD+",0")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h := newHarness(t, 3, nil)
	summary, err := h.proc.ProcessManifest(ctx, manifest, filepath.Join(dir, "out.csv"))
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, summary)
	assert.Equal(t, 0, summary.Processed)
	assert.Empty(t, h.fetcher.fetched)
}

func TestPersistRecords(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "features.csv")
	h := newHarness(t, 3, nil)

	recA, err := h.proc.ExtractEntry(context.Background(), Entry{Address: walletA, Class: 1})
	require.NoError(t, err)
	recD, err := h.proc.ExtractEntry(context.Background(), Entry{Address: walletD, Class: 0})
	require.NoError(t, err)

	size, err := h.proc.PersistRecords(context.Background(), output, []*features.Record{recA, nil})
	require.NoError(t, err)
	assert.Equal(t, 1, size)

	size, err = h.proc.PersistRecords(context.Background(), output, []*features.Record{recA, recD})
	require.NoError(t, err)
	assert.Equal(t, 2, size, "already persisted addresses are not duplicated")
	assert.Equal(t, 2, h.cache.saves)
}

func TestSummaryCount(t *testing.T) {
	record := func(values map[string]float64) *features.Record {
		v := features.NewVector()
		for name, value := range values {
			v.Set(name, value)
		}
		return &features.Record{Features: v, Quality: features.AssessQuality(v)}
	}

	var s Summary
	s.Count(record(map[string]float64{"total_txs": 20, "price_fetch_success_rate": 0.7}))
	s.Count(record(map[string]float64{"total_txs": 9, "round_number_ratio": 0.6}))
	s.Count(record(map[string]float64{"total_txs": 10, "price_fetch_success_rate": 0.8, "round_number_ratio": 0.5}))

	assert.Equal(t, 3, s.Processed)
	assert.Equal(t, 1, s.LowTxCount, "only records under ten transactions are low")
	assert.Equal(t, 1, s.HighPriceFailures, "a 0.7 success rate is tagged MEDIUM but still counts")
	assert.Equal(t, 1, s.SuspiciousPatterns)
}
