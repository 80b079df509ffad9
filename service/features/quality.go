package features

// Quality tag values.
const (
	DataQualityLowTxCount      = "LOW_TRANSACTION_COUNT"
	DataQualityVeryHighTxCount = "VERY_HIGH_TRANSACTION_COUNT"
	DataQualityNormal          = "NORMAL"

	PriceQualityPoor   = "POOR"
	PriceQualityMedium = "MEDIUM"
	PriceQualityGood   = "GOOD"

	BehaviorLikelyBotOrDeFi = "LIKELY_BOT_OR_DEFI"
	BehaviorLikelyHuman     = "LIKELY_HUMAN"
	BehaviorMixed           = "MIXED"
)

const (
	lowTxCount        = 5
	veryHighTxCount   = 10000
	poorPriceRate     = 0.5
	mediumPriceRate   = 0.8
	botProgrammatic   = 0.9
	botDeFi           = 0.8
	humanProgrammatic = 0.1
	humanDeFi         = 0.1
)

// AssessQuality derives the categorical quality tags from a feature vector.
func AssessQuality(v *Vector) Quality {
	var q Quality

	total := v.Value("total_txs")
	switch {
	case total < lowTxCount:
		q.DataQualityWarning = DataQualityLowTxCount
	case total > veryHighTxCount:
		q.DataQualityWarning = DataQualityVeryHighTxCount
	default:
		q.DataQualityWarning = DataQualityNormal
	}

	priceRate := v.Value("price_fetch_success_rate")
	switch {
	case priceRate < poorPriceRate:
		q.PriceQuality = PriceQualityPoor
	case priceRate < mediumPriceRate:
		q.PriceQuality = PriceQualityMedium
	default:
		q.PriceQuality = PriceQualityGood
	}

	programmatic := v.Value("programmatic_ratio")
	defi := v.Value("defi_ratio")
	switch {
	case programmatic > botProgrammatic && defi > botDeFi:
		q.BehaviorPattern = BehaviorLikelyBotOrDeFi
	case programmatic < humanProgrammatic && defi < humanDeFi:
		q.BehaviorPattern = BehaviorLikelyHuman
	default:
		q.BehaviorPattern = BehaviorMixed
	}

	return q
}
