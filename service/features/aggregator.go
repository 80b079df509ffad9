package features

import (
	"context"
	"log/slog"
	"math"
	"slices"
	"strings"

	"github.com/brojonat/solfeat/service/solana"
)

// accountCreationFeeSOL is the fee above which a transfer is assumed to
// have paid for account creation.
const accountCreationFeeSOL = 0.002

// SolBTCConverter turns SOL values into BTC at a given transfer time.
type SolBTCConverter interface {
	SolToBtcRatio(ctx context.Context, timestamp int64) float64
}

// Config holds the behavioral heuristic thresholds.
type Config struct {
	BurstSlotThreshold     int
	RoundNumberMaxDecimals int
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{BurstSlotThreshold: 10, RoundNumberMaxDecimals: 2}
}

// Aggregator computes feature vectors from normalized transfers.
type Aggregator struct {
	rates  SolBTCConverter
	cfg    Config
	logger *slog.Logger
}

// NewAggregator creates an aggregator converting values with rates.
func NewAggregator(rates SolBTCConverter, cfg Config, logger *slog.Logger) *Aggregator {
	return &Aggregator{rates: rates, cfg: cfg, logger: logger}
}

type directed struct {
	valueBTC float64
	valueSOL float64
	feeBTC   float64
	slot     int64
	context  solana.TxContext
}

// accumulator holds the per-address running totals of one Aggregate call.
type accumulator struct {
	sent, received []directed
	valuesBTC      []float64
	feesBTC        []float64
	slots          []int64

	humans   map[string]int
	programs map[string]struct{}
	contexts map[solana.TxContext]int
	mints    map[string]struct{}

	failed, sol, token          int
	dex, lending, staking       int
	programmatic, priceFailures int
	accountCreationSOL          float64
}

func newAccumulator() *accumulator {
	return &accumulator{
		humans:   make(map[string]int),
		programs: make(map[string]struct{}),
		contexts: make(map[solana.TxContext]int),
		mints:    make(map[string]struct{}),
	}
}

func (a *accumulator) counterparty(addr string) {
	if addr == "" {
		return
	}
	if solana.IsProgramAddress(addr) {
		a.programs[addr] = struct{}{}
		return
	}
	a.humans[addr]++
}

// Aggregate computes the feature record of address. It returns nil when
// transfers is empty. Address and Class on the result are left for the
// caller to assign.
func (g *Aggregator) Aggregate(ctx context.Context, address string, transfers []solana.NormalizedTransfer) *Record {
	if len(transfers) == 0 {
		return nil
	}

	acc := newAccumulator()
	for _, t := range transfers {
		if t.Timestamp == 0 {
			continue
		}
		g.accumulate(ctx, acc, address, t)
	}

	v := NewVector()
	g.counts(v, acc, len(transfers))
	slotRange(v, acc, len(transfers))
	valueStats(v, acc)
	intervalStats(v, acc)
	counterpartyStats(v, acc)

	contexts := make([]solana.TxContext, 0, len(acc.sent)+len(acc.received))
	for _, d := range acc.sent {
		contexts = append(contexts, d.context)
	}
	for _, d := range acc.received {
		contexts = append(contexts, d.context)
	}
	v.Set("avg_tx_complexity", complexity(contexts))
	v.Set("burst_activity_score", burstScore(acc.slots, g.cfg.BurstSlotThreshold))
	v.Set("round_number_ratio", roundNumberRatio(acc.valuesBTC, g.cfg.RoundNumberMaxDecimals))

	g.logger.DebugContext(ctx, "aggregated features",
		"address", address,
		"transfers", len(transfers),
		"sent", len(acc.sent),
		"received", len(acc.received),
		"features", v.Len())

	return &Record{Address: address, Class: -1, Features: v}
}

func (g *Aggregator) accumulate(ctx context.Context, acc *accumulator, address string, t solana.NormalizedTransfer) {
	if t.Type == solana.TxTypeFailed {
		acc.failed++
	}
	if t.Programmatic {
		acc.programmatic++
	}
	if !t.PriceFetchSuccess {
		acc.priceFailures++
	}

	acc.contexts[t.Context]++
	switch t.Context {
	case solana.TxContextDEXSwap:
		acc.dex++
	case solana.TxContextLending:
		acc.lending++
	case solana.TxContextStaking:
		acc.staking++
	}

	solBTC := 0.0
	if g.rates != nil {
		solBTC = g.rates.SolToBtcRatio(ctx, t.Timestamp)
	}
	feeSOL := t.FeeSOL()
	valueBTC := t.ValueSOL * solBTC
	feeBTC := feeSOL * solBTC

	acc.slots = append(acc.slots, t.Slot)

	switch t.Type {
	case solana.TxTypeSOLTransfer:
		acc.sol++
	case solana.TxTypeTokenTransfer:
		acc.token++
		if t.Mint != "" {
			acc.mints[t.Mint] = struct{}{}
		}
	}

	if feeSOL > accountCreationFeeSOL {
		acc.accountCreationSOL += feeSOL
	}

	entry := directed{
		valueBTC: valueBTC,
		valueSOL: t.ValueSOL,
		feeBTC:   feeBTC,
		slot:     t.Slot,
		context:  t.Context,
	}

	if strings.EqualFold(t.From, address) {
		acc.feesBTC = append(acc.feesBTC, feeBTC)
		if valueBTC > 0 {
			acc.sent = append(acc.sent, entry)
			acc.valuesBTC = append(acc.valuesBTC, valueBTC)
			acc.counterparty(t.To)
		}
	}
	if strings.EqualFold(t.To, address) && valueBTC > 0 {
		entry.feeBTC = 0
		acc.received = append(acc.received, entry)
		acc.valuesBTC = append(acc.valuesBTC, valueBTC)
		acc.counterparty(t.From)
	}
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}

func (g *Aggregator) counts(v *Vector, acc *accumulator, total int) {
	v.Set("num_txs_as_sender", float64(len(acc.sent)))
	v.Set("num_txs_as_receiver", float64(len(acc.received)))
	v.Set("total_txs", float64(total))

	v.Set("failed_txs", float64(acc.failed))
	v.Set("success_rate", ratio(total-acc.failed, total))
	v.Set("sol_txs", float64(acc.sol))
	v.Set("token_txs", float64(acc.token))
	v.Set("unique_tokens_transacted", float64(len(acc.mints)))
	v.Set("sol_to_token_ratio", solToTokenRatio(acc.sol, acc.token))

	v.Set("dex_swap_txs", float64(acc.dex))
	v.Set("lending_txs", float64(acc.lending))
	v.Set("staking_txs", float64(acc.staking))
	v.Set("programmatic_txs", float64(acc.programmatic))
	v.Set("programmatic_ratio", ratio(acc.programmatic, total))

	defi := acc.dex + acc.lending + acc.staking
	v.Set("defi_txs_total", float64(defi))
	v.Set("defi_ratio", ratio(defi, total))
	v.Set("dex_to_total_ratio", ratio(acc.dex, total))

	v.Set("price_fetch_failures", float64(acc.priceFailures))
	v.Set("price_fetch_success_rate", ratio(total-acc.priceFailures, total))
	v.Set("account_creation_costs_sol", acc.accountCreationSOL)

	mostCommon := 0
	for _, n := range acc.contexts {
		mostCommon = max(mostCommon, n)
	}
	v.Set("transaction_context_diversity", float64(len(acc.contexts)))
	v.Set("most_common_context_ratio", ratio(mostCommon, total))
}

// solToTokenRatio is +Inf for SOL-only activity and 0 when neither kind occurred.
func solToTokenRatio(sol, token int) float64 {
	switch {
	case token > 0:
		return float64(sol) / float64(token)
	case sol > 0:
		return math.Inf(1)
	}
	return 0
}

func firstSlot(entries []directed) float64 {
	var first int64
	for _, e := range entries {
		if e.slot > 0 && (first == 0 || e.slot < first) {
			first = e.slot
		}
	}
	return float64(first)
}

func slotRange(v *Vector, acc *accumulator, total int) {
	distinct := distinctSorted(acc.slots)
	var first, last float64
	if len(distinct) > 0 {
		first = float64(distinct[0])
		last = float64(distinct[len(distinct)-1])
	}
	lifetime := last - first

	v.Set("first_slot_appeared_in", first)
	v.Set("last_slot_appeared_in", last)
	v.Set("lifetime_in_slots", lifetime)
	v.Set("num_timesteps_appeared_in", float64(len(distinct)))
	density := 0.0
	if lifetime > 0 {
		density = float64(total) / lifetime
	}
	v.Set("slot_density", density)
	v.Set("first_sent_slot", firstSlot(acc.sent))
	v.Set("first_received_slot", firstSlot(acc.received))
}

func collect(entries []directed, field func(directed) float64) []float64 {
	out := make([]float64, 0, len(entries))
	for _, e := range entries {
		out = append(out, field(e))
	}
	return out
}

func valueStats(v *Vector, acc *accumulator) {
	addStats(v, "btc_transacted", acc.valuesBTC, true)
	addStats(v, "btc_sent", collect(acc.sent, func(d directed) float64 { return d.valueBTC }), true)
	addStats(v, "btc_received", collect(acc.received, func(d directed) float64 { return d.valueBTC }), true)
	addStats(v, "fees", acc.feesBTC, true)
	addStats(v, "sol_sent", collect(acc.sent, func(d directed) float64 { return d.valueSOL }), true)
	addStats(v, "sol_received", collect(acc.received, func(d directed) float64 { return d.valueSOL }), true)

	shares := make([]float64, 0, len(acc.sent))
	for _, d := range acc.sent {
		if d.valueBTC > 0 {
			shares = append(shares, d.feeBTC/d.valueBTC*100)
		}
	}
	addStats(v, "fees_as_share", shares, true)
}

func slotsOf(entries []directed) []int64 {
	out := make([]int64, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.slot)
	}
	return out
}

func intervalStats(v *Vector, acc *accumulator) {
	addStats(v, "slots_btwn_txs", intervals(acc.slots), true)
	addStats(v, "slots_btwn_input_txs", intervals(slotsOf(acc.sent)), true)
	addStats(v, "slots_btwn_output_txs", intervals(slotsOf(acc.received)), true)
}

func counterpartyStats(v *Vector, acc *accumulator) {
	counts := make([]float64, 0, len(acc.humans))
	multiple := 0
	for _, n := range acc.humans {
		counts = append(counts, float64(n))
		if n > 1 {
			multiple++
		}
	}
	// Map order is random; sort so the float sums are reproducible.
	slices.Sort(counts)

	v.Set("transacted_w_address_total", float64(len(acc.humans)))
	v.Set("transacted_w_programs_total", float64(len(acc.programs)))
	v.Set("num_addr_transacted_multiple", float64(multiple))
	addStats(v, "transacted_w_address", counts, false)
}
