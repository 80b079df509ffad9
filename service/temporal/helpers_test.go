package temporal

import (
	"io"
	"log/slog"

	"github.com/brojonat/solfeat/service/features"
)

const (
	walletA = "C8H4v4c2eA6njjgzvWSrCpLdYg3hWSygoVsi4RkUrzjV"
	walletB = "4XTm6QXMNgVJqGd2u14BZRce7PoVGrBGV7AHGwhkWqTy"
	walletC = "3fh1VqUoSyHL9rS8GKsqqacwUhR9nLuSxZm2aNgJGrjz"
	walletD = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRecord(address string, class int, warning string) *features.Record {
	v := features.NewVector()
	v.Set("total_txs", 20)
	if warning == features.DataQualityLowTxCount {
		v.Set("total_txs", 3)
	}
	v.Set("sol_to_token_ratio", 2)
	return &features.Record{
		Address:  address,
		Class:    class,
		Features: v,
		Quality: features.Quality{
			DataQualityWarning: warning,
			PriceQuality:       features.PriceQualityGood,
			BehaviorPattern:    features.BehaviorMixed,
		},
	}
}
