package pricing

import (
	"fmt"
	"time"
)

const dayLayout = "2006-01-02"

// dayOf returns the UTC calendar day containing the unix timestamp.
func dayOf(ts int64) time.Time {
	t := time.Unix(ts, 0).UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// TokenCacheKey is the token_sol key for a symbol, day and mint.
func TokenCacheKey(symbol string, day time.Time, mint string) string {
	prefix := mint
	if len(prefix) > 20 {
		prefix = prefix[:20]
	}
	return fmt.Sprintf("%s_%s_%s", symbol, day.Format(dayLayout), prefix)
}

// SolBTCCacheKey is the sol_btc key for the SOL/BTC rate of a day.
func SolBTCCacheKey(day time.Time) string {
	return "SOL_BTC_" + day.Format(dayLayout)
}

// SolUSDCacheKey is the sol_btc key for the SOL/USD price of a day.
func SolUSDCacheKey(day time.Time) string {
	return "SOL_USD_" + day.Format(dayLayout)
}
