package pricing

import "time"

// LatestSolBTCEstimate applies to periods after the table and to unknown timestamps.
const LatestSolBTCEstimate = 0.002

// HistoricalSolBTC returns the static SOL/BTC estimate for the period containing t.
// It is used whenever no live rate can be obtained.
func HistoricalSolBTC(t time.Time) float64 {
	firstHalf := t.Month() <= time.June
	switch year := t.Year(); {
	case year <= 2021:
		if firstHalf {
			return 0.0005
		}
		return 0.002
	case year == 2022:
		if firstHalf {
			return 0.003
		}
		return 0.001
	case year == 2023:
		return 0.0008
	default:
		return LatestSolBTCEstimate
	}
}
