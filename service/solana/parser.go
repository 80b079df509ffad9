package solana

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/brojonat/solfeat/service/metrics"
	"github.com/brojonat/solfeat/service/tokens"
)

// TokenInfoResolver resolves mint metadata for token transfers.
type TokenInfoResolver interface {
	GetTokenInfo(ctx context.Context, mint string) tokens.TokenInfo
}

// PriceResolver values token transfers in SOL.
type PriceResolver interface {
	TokenToSolRatio(ctx context.Context, mint string, timestamp int64) (float64, bool)
}

// ParserConfig holds the programmatic-activity thresholds.
type ParserConfig struct {
	InstructionThreshold   int
	TokenTransferThreshold int
}

// Parser turns raw history into normalized transfers for one target address.
type Parser struct {
	tokens  TokenInfoResolver
	prices  PriceResolver
	cfg     ParserConfig
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewParser creates a Parser.
// If metrics is nil, no metrics will be recorded.
func NewParser(tokenInfo TokenInfoResolver, prices PriceResolver, cfg ParserConfig, m *metrics.Metrics, logger *slog.Logger) *Parser {
	return &Parser{
		tokens:  tokenInfo,
		prices:  prices,
		cfg:     cfg,
		metrics: m,
		logger:  logger,
	}
}

// errInvalidProgramID marks a program ID that is not base58.
var errInvalidProgramID = errors.New("invalid program id")

// Parse returns the transfers of raw that involve target. Malformed
// transactions produce nothing. A failed transaction produces one FAILED
// entry and a successful one without matching transfers one FEE_ONLY entry.
func (p *Parser) Parse(ctx context.Context, raw RawTransaction, target string) []NormalizedTransfer {
	if err := raw.Validate(); err != nil {
		p.logger.WarnContext(ctx, "skipping malformed transaction", "error", err)
		p.recordSkipped("malformed")
		return nil
	}

	txContext, err := Classify(raw)
	if err != nil {
		p.logger.WarnContext(ctx, "failed to classify transaction",
			"signature", raw.Signature,
			"error", err,
		)
	}

	base := NormalizedTransfer{
		Signature:    raw.Signature,
		Slot:         raw.Slot,
		Timestamp:    raw.Timestamp,
		Context:      txContext,
		Programmatic: IsProgrammatic(raw, p.cfg),
	}

	if raw.Failed() {
		return p.emit([]NormalizedTransfer{p.placeholder(base, TxTypeFailed, target)}, raw, target)
	}

	transfers := p.solTransfers(ctx, base, raw, target)
	transfers = append(transfers, p.tokenTransfers(ctx, base, raw, target)...)
	if len(transfers) == 0 {
		transfers = append(transfers, p.placeholder(base, TxTypeFeeOnly, target))
	}
	return p.emit(transfers, raw, target)
}

// emit attributes the fee to exactly one entry: the first one paid out by
// the target or the fee payer, or the first entry when nothing is outgoing.
func (p *Parser) emit(transfers []NormalizedTransfer, raw RawTransaction, target string) []NormalizedTransfer {
	payer := 0
	for i, t := range transfers {
		if strings.EqualFold(t.From, target) || (raw.FeePayer != "" && strings.EqualFold(t.From, raw.FeePayer)) {
			payer = i
			break
		}
	}
	transfers[payer].FeeLamports = max(raw.Fee, 0)
	if p.metrics != nil {
		for _, t := range transfers {
			p.metrics.RecordTransferParsed(string(t.Type))
		}
	}
	return transfers
}

func (p *Parser) placeholder(base NormalizedTransfer, txType TxType, target string) NormalizedTransfer {
	t := base
	t.Type = txType
	t.From = target
	t.To = target
	t.Mint = tokens.WrappedSOLMint
	t.Symbol = "SOL"
	t.Decimals = tokens.DefaultDecimals
	t.PriceFetchSuccess = true
	return t
}

func involves(from, to, target string) bool {
	return strings.EqualFold(from, target) || strings.EqualFold(to, target)
}

func (p *Parser) solTransfers(ctx context.Context, base NormalizedTransfer, raw RawTransaction, target string) []NormalizedTransfer {
	var out []NormalizedTransfer

	for _, nt := range raw.NativeTransfers {
		from := strings.TrimSpace(nt.FromUserAccount)
		to := strings.TrimSpace(nt.ToUserAccount)
		if from == "" || to == "" || nt.Amount <= 0 || !involves(from, to, target) {
			continue
		}
		t := base
		t.Type = TxTypeSOLTransfer
		t.From = from
		t.To = to
		t.Mint = tokens.WrappedSOLMint
		t.Symbol = "SOL"
		t.Decimals = tokens.DefaultDecimals
		t.RawAmount = uint64(nt.Amount)
		t.Normalized = tokens.Normalize(float64(nt.Amount), tokens.DefaultDecimals)
		t.ValueSOL = t.Normalized
		t.PriceFetchSuccess = true
		out = append(out, t)
	}

	for _, tt := range raw.TokenTransfers {
		if strings.TrimSpace(tt.Mint) != tokens.WrappedSOLMint {
			continue
		}
		from := strings.TrimSpace(tt.FromUserAccount)
		to := strings.TrimSpace(tt.ToUserAccount)
		if from == "" || to == "" || !(tt.TokenAmount > 0) || !involves(from, to, target) {
			continue
		}
		rawAmount, ok := toRawAmount(tt.TokenAmount, tokens.DefaultDecimals)
		if !ok {
			p.logger.WarnContext(ctx, "skipping wrapped SOL transfer with invalid amount",
				"signature", raw.Signature,
				"amount", tt.TokenAmount,
			)
			p.recordSkipped("invalid_amount")
			continue
		}
		t := base
		t.Type = TxTypeSOLTransfer
		t.From = from
		t.To = to
		t.Mint = tokens.WrappedSOLMint
		t.Symbol = "WSOL"
		t.Decimals = tokens.DefaultDecimals
		t.RawAmount = rawAmount
		t.Normalized = tokens.Normalize(float64(rawAmount), tokens.DefaultDecimals)
		t.ValueSOL = t.Normalized
		t.PriceFetchSuccess = true
		out = append(out, t)
	}

	return out
}

func (p *Parser) tokenTransfers(ctx context.Context, base NormalizedTransfer, raw RawTransaction, target string) []NormalizedTransfer {
	var out []NormalizedTransfer

	for _, tt := range raw.TokenTransfers {
		mint := strings.TrimSpace(tt.Mint)
		if mint == "" || mint == tokens.WrappedSOLMint {
			continue
		}
		from := strings.TrimSpace(tt.FromUserAccount)
		to := strings.TrimSpace(tt.ToUserAccount)
		if from == "" || to == "" || !(tt.TokenAmount > 0) || !involves(from, to, target) {
			continue
		}

		info := p.tokens.GetTokenInfo(ctx, mint)
		rawAmount, decimals, err := tokenRawAmount(tt, info)
		if err != nil {
			p.logger.WarnContext(ctx, "skipping token transfer with invalid amount",
				"signature", raw.Signature,
				"mint", mint,
				"error", err,
			)
			p.recordSkipped("invalid_amount")
			continue
		}

		t := base
		t.Type = TxTypeTokenTransfer
		t.From = from
		t.To = to
		t.Mint = mint
		t.Symbol = info.Symbol
		t.Decimals = decimals
		t.RawAmount = rawAmount
		t.Normalized = tokens.Normalize(float64(rawAmount), decimals)

		ratio, ok := p.prices.TokenToSolRatio(ctx, mint, raw.Timestamp)
		t.PriceFetchSuccess = ok
		if ok {
			t.ValueSOL = t.Normalized * ratio
		}
		if math.IsInf(t.ValueSOL, 0) || math.IsNaN(t.ValueSOL) || t.ValueSOL < 0 {
			t.ValueSOL = 0
			t.PriceFetchSuccess = false
		}
		out = append(out, t)
	}

	return out
}

// tokenRawAmount prefers the integer amount reported by the provider,
// scaled by the decimals it was reported with. Otherwise the UI amount is
// converted using the mint metadata, or the provider decimals for unknown
// mints.
func tokenRawAmount(tt TokenTransfer, info tokens.TokenInfo) (uint64, int, error) {
	decimals := info.Decimals
	if rta := tt.RawTokenAmount; rta != nil {
		if rta.TokenAmount != "" {
			if v, err := strconv.ParseUint(rta.TokenAmount, 10, 64); err == nil {
				return v, tokens.ClampDecimals(rta.Decimals), nil
			}
		}
		if info.IsUnknown() {
			decimals = tokens.ClampDecimals(rta.Decimals)
		}
	}
	v, ok := toRawAmount(tt.TokenAmount, decimals)
	if !ok {
		return 0, 0, fmt.Errorf("amount %v does not fit in a raw token amount", tt.TokenAmount)
	}
	return v, decimals, nil
}

// toRawAmount converts a UI amount to integer units, rounding to nearest.
func toRawAmount(amount float64, decimals int) (uint64, bool) {
	v := math.Round(tokens.ToRaw(amount, decimals))
	if math.IsNaN(v) || v < 0 || v >= math.MaxUint64 {
		return 0, false
	}
	return uint64(v), true
}

// Classify returns the economic context of raw. A program ID that is not
// base58 is an error and yields UNKNOWN.
func Classify(raw RawTransaction) (TxContext, error) {
	ids := raw.ProgramIDs()
	for _, id := range ids {
		if !isBase58(id) {
			return TxContextUnknown, fmt.Errorf("%w: %q", errInvalidProgramID, id)
		}
	}

	anyIn := func(r ProgramRegistry) bool {
		for _, id := range ids {
			if r.Contains(id) {
				return true
			}
		}
		return false
	}

	switch {
	case anyIn(DEXPrograms):
		return TxContextDEXSwap, nil
	case anyIn(LendingPrograms):
		return TxContextLending, nil
	case anyIn(StakingPrograms):
		return TxContextStaking, nil
	case (len(raw.NativeTransfers) > 0 || len(raw.TokenTransfers) > 0) && !anyIn(KnownPrograms):
		return TxContextPureTransfer, nil
	default:
		return TxContextOtherProgram, nil
	}
}

// IsProgrammatic reports whether raw looks like bot or contract activity.
func IsProgrammatic(raw RawTransaction, cfg ParserConfig) bool {
	if raw.InstructionCount() > cfg.InstructionThreshold {
		return true
	}
	if len(raw.TokenTransfers) > cfg.TokenTransferThreshold {
		return true
	}
	for _, id := range raw.ProgramIDs() {
		if KnownPrograms.Contains(id) {
			return true
		}
	}
	return false
}

func (p *Parser) recordSkipped(reason string) {
	if p.metrics != nil {
		p.metrics.RecordTransactionSkipped(reason)
	}
}
