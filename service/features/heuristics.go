package features

import (
	"strings"

	"github.com/brojonat/solfeat/service/solana"
	"github.com/shopspring/decimal"
)

var complexityWeights = map[solana.TxContext]float64{
	solana.TxContextPureTransfer: 1.0,
	solana.TxContextDEXSwap:      3.0,
	solana.TxContextLending:      2.5,
	solana.TxContextStaking:      2.0,
	solana.TxContextOtherProgram: 2.0,
	solana.TxContextUnknown:      1.5,
}

// complexity returns the mean context weight of the given contexts.
func complexity(contexts []solana.TxContext) float64 {
	if len(contexts) == 0 {
		return 0
	}
	var total float64
	for _, c := range contexts {
		w, ok := complexityWeights[c]
		if !ok {
			w = complexityWeights[solana.TxContextUnknown]
		}
		total += w
	}
	return total / float64(len(contexts))
}

// burstScore is the fraction of distinct-slot gaps shorter than threshold.
// Fewer than three slots score 0.
func burstScore(slots []int64, threshold int) float64 {
	if len(slots) < 3 {
		return 0
	}
	gaps := intervals(slots)
	if len(gaps) == 0 {
		return 0
	}
	short := 0
	for _, g := range gaps {
		if g < float64(threshold) {
			short++
		}
	}
	return float64(short) / float64(len(gaps))
}

// isRoundNumber reports whether value, written with 8 decimal places and
// trailing zeros trimmed, has at most maxDecimals fractional digits.
func isRoundNumber(value float64, maxDecimals int) bool {
	if !(value > 0) {
		return false
	}
	s := decimal.NewFromFloat(value).StringFixed(8)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	_, frac, found := strings.Cut(s, ".")
	return !found || len(frac) <= maxDecimals
}

// roundNumberRatio is the fraction of values that are round numbers.
func roundNumberRatio(values []float64, maxDecimals int) float64 {
	if len(values) == 0 {
		return 0
	}
	round := 0
	for _, v := range values {
		if isRoundNumber(v, maxDecimals) {
			round++
		}
	}
	return float64(round) / float64(len(values))
}
