package solana

import (
	"encoding/json"
	"fmt"
)

// LamportsPerSOL is the number of lamports in one SOL.
const LamportsPerSOL = 1_000_000_000

// RawTransaction is one element of the Helius enhanced transaction history.
// Only the fields the parser reads are decoded.
type RawTransaction struct {
	Signature        string           `json:"signature"`
	Slot             int64            `json:"slot"`
	Timestamp        int64            `json:"timestamp"`
	Fee              int64            `json:"fee"`
	FeePayer         string           `json:"feePayer"`
	TransactionError json.RawMessage  `json:"transactionError,omitempty"`
	Meta             *TransactionMeta `json:"meta,omitempty"`
	NativeTransfers  []NativeTransfer `json:"nativeTransfers"`
	TokenTransfers   []TokenTransfer  `json:"tokenTransfers"`
	Instructions     []Instruction    `json:"instructions"`
	Transaction      *TransactionBody `json:"transaction,omitempty"`
}

// TransactionMeta carries the on-chain execution status.
type TransactionMeta struct {
	Err json.RawMessage `json:"err,omitempty"`
}

// NativeTransfer is a lamport movement between two accounts.
type NativeTransfer struct {
	FromUserAccount string `json:"fromUserAccount"`
	ToUserAccount   string `json:"toUserAccount"`
	Amount          int64  `json:"amount"`
}

// TokenTransfer is an SPL token movement. TokenAmount is already divided by
// the mint decimals; RawTokenAmount, when present, carries the integer amount.
type TokenTransfer struct {
	FromUserAccount string          `json:"fromUserAccount"`
	ToUserAccount   string          `json:"toUserAccount"`
	TokenAmount     float64         `json:"tokenAmount"`
	Mint            string          `json:"mint"`
	RawTokenAmount  *RawTokenAmount `json:"rawTokenAmount,omitempty"`
}

// RawTokenAmount is the integer amount of a token transfer as a decimal string.
type RawTokenAmount struct {
	TokenAmount string `json:"tokenAmount"`
	Decimals    int    `json:"decimals"`
}

// Instruction is a top-level instruction of a transaction.
type Instruction struct {
	ProgramID string `json:"programId"`
}

// TransactionBody mirrors the parsed transaction message.
type TransactionBody struct {
	Message struct {
		Instructions []Instruction `json:"instructions"`
	} `json:"message"`
}

// MalformedTransactionError reports a transaction missing a required field.
type MalformedTransactionError struct {
	Signature string
	Field     string
	Value     int64
}

func (e *MalformedTransactionError) Error() string {
	sig := e.Signature
	if len(sig) > 20 {
		sig = sig[:20]
	}
	return fmt.Sprintf("malformed transaction %q: missing or non-positive %s (%d)", sig, e.Field, e.Value)
}

// Validate checks that the identifying fields are present.
func (t RawTransaction) Validate() error {
	switch {
	case t.Signature == "":
		return &MalformedTransactionError{Field: "signature"}
	case t.Slot <= 0:
		return &MalformedTransactionError{Signature: t.Signature, Field: "slot", Value: t.Slot}
	case t.Timestamp <= 0:
		return &MalformedTransactionError{Signature: t.Signature, Field: "timestamp", Value: t.Timestamp}
	}
	return nil
}

// Failed reports whether the transaction failed on-chain.
func (t RawTransaction) Failed() bool {
	if !isNull(t.TransactionError) {
		return true
	}
	return t.Meta != nil && !isNull(t.Meta.Err)
}

// ProgramIDs returns the distinct program IDs invoked by the transaction in
// first-seen order, across both instruction lists.
func (t RawTransaction) ProgramIDs() []string {
	seen := make(map[string]struct{})
	var ids []string
	add := func(instructions []Instruction) {
		for _, ix := range instructions {
			if ix.ProgramID == "" {
				continue
			}
			if _, ok := seen[ix.ProgramID]; ok {
				continue
			}
			seen[ix.ProgramID] = struct{}{}
			ids = append(ids, ix.ProgramID)
		}
	}
	add(t.Instructions)
	if t.Transaction != nil {
		add(t.Transaction.Message.Instructions)
	}
	return ids
}

// InstructionCount returns the number of top-level instructions.
func (t RawTransaction) InstructionCount() int {
	if t.Transaction != nil && len(t.Transaction.Message.Instructions) > 0 {
		return len(t.Transaction.Message.Instructions)
	}
	return len(t.Instructions)
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

// TxType is the kind of a normalized transfer.
type TxType string

const (
	TxTypeSOLTransfer   TxType = "SOL_TRANSFER"
	TxTypeTokenTransfer TxType = "TOKEN_TRANSFER"
	TxTypeFailed        TxType = "FAILED"
	TxTypeFeeOnly       TxType = "FEE_ONLY"
)

// TxContext is the economic context of the transaction a transfer belongs to.
type TxContext string

const (
	TxContextDEXSwap      TxContext = "DEX_SWAP"
	TxContextLending      TxContext = "LENDING"
	TxContextStaking      TxContext = "STAKING"
	TxContextPureTransfer TxContext = "PURE_TRANSFER"
	TxContextOtherProgram TxContext = "OTHER_PROGRAM"
	TxContextUnknown      TxContext = "UNKNOWN"
)

// NormalizedTransfer is one value movement involving the target address.
// Normalized is RawAmount / 10^Decimals. ValueSOL is Normalized times the
// resolved token/SOL ratio, or 0 when PriceFetchSuccess is false.
type NormalizedTransfer struct {
	Signature         string
	Slot              int64
	Timestamp         int64
	From              string
	To                string
	Type              TxType
	Context           TxContext
	Mint              string
	Symbol            string
	Decimals          int
	RawAmount         uint64
	Normalized        float64
	ValueSOL          float64
	PriceFetchSuccess bool
	Programmatic      bool
	FeeLamports       int64
}

// FeeSOL returns the attributed fee in SOL.
func (n NormalizedTransfer) FeeSOL() float64 {
	return float64(n.FeeLamports) / LamportsPerSOL
}
