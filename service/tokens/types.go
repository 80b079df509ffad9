package tokens

import (
	"math"
	"strings"
)

// WrappedSOLMint is the canonical wrapped-SOL mint. Transfers of this mint are
// valued 1:1 with native SOL.
const WrappedSOLMint = "So11111111111111111111111111111111111111112"

const (
	// UnknownSymbol marks a mint whose metadata could not be resolved.
	UnknownSymbol = "UNKNOWN"
	// DefaultDecimals is used when decimals are missing or out of range.
	DefaultDecimals = 9
	// MaxDecimals is the largest decimals value accepted from any source.
	MaxDecimals = 18
	// MaxSymbolLength is the longest symbol accepted from a remote source.
	MaxSymbolLength = 20
)

// TokenInfo describes an SPL token mint.
type TokenInfo struct {
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
	Name     string `json:"name"`
}

// Unknown is returned when no source can resolve a mint.
var Unknown = TokenInfo{Symbol: UnknownSymbol, Decimals: DefaultDecimals, Name: "Unknown Token"}

// IsUnknown reports whether the info is the unknown sentinel.
func (t TokenInfo) IsUnknown() bool {
	return t.Symbol == UnknownSymbol
}

// ClampDecimals forces decimals outside [0, MaxDecimals] to DefaultDecimals.
func ClampDecimals(decimals int) int {
	if decimals < 0 || decimals > MaxDecimals {
		return DefaultDecimals
	}
	return decimals
}

// Normalize converts a raw minor-unit amount into whole token units.
func Normalize(raw float64, decimals int) float64 {
	return raw / math.Pow10(ClampDecimals(decimals))
}

// ToRaw converts a whole-unit amount back into minor units.
func ToRaw(amount float64, decimals int) float64 {
	return math.Round(amount * math.Pow10(ClampDecimals(decimals)))
}

// validate checks a remotely sourced TokenInfo and returns it with the symbol
// upper-cased. ok is false when the result must be treated as a miss.
func validate(info TokenInfo) (TokenInfo, bool) {
	symbol := strings.ToUpper(strings.TrimSpace(info.Symbol))
	if symbol == "" || len(symbol) > MaxSymbolLength || symbol == UnknownSymbol {
		return TokenInfo{}, false
	}
	if info.Decimals < 0 || info.Decimals > MaxDecimals {
		return TokenInfo{}, false
	}
	info.Symbol = symbol
	if info.Name == "" {
		info.Name = symbol
	}
	return info, true
}
