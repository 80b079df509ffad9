package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func vectorOf(values map[string]float64) *Vector {
	v := NewVector()
	for name, value := range values {
		v.Set(name, value)
	}
	return v
}

func TestAssessQuality(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]float64
		want   Quality
	}{
		{
			name: "low count, poor prices, human",
			values: map[string]float64{
				"total_txs": 4, "price_fetch_success_rate": 0.4,
				"programmatic_ratio": 0.05, "defi_ratio": 0.0,
			},
			want: Quality{DataQualityLowTxCount, PriceQualityPoor, BehaviorLikelyHuman},
		},
		{
			name: "normal count, medium prices, mixed",
			values: map[string]float64{
				"total_txs": 5, "price_fetch_success_rate": 0.5,
				"programmatic_ratio": 0.5, "defi_ratio": 0.5,
			},
			want: Quality{DataQualityNormal, PriceQualityMedium, BehaviorMixed},
		},
		{
			name: "very high count, good prices, bot",
			values: map[string]float64{
				"total_txs": 10001, "price_fetch_success_rate": 0.8,
				"programmatic_ratio": 0.95, "defi_ratio": 0.85,
			},
			want: Quality{DataQualityVeryHighTxCount, PriceQualityGood, BehaviorLikelyBotOrDeFi},
		},
		{
			name: "boundaries stay normal",
			values: map[string]float64{
				"total_txs": 10000, "price_fetch_success_rate": 1,
				"programmatic_ratio": 0.9, "defi_ratio": 0.8,
			},
			want: Quality{DataQualityNormal, PriceQualityGood, BehaviorMixed},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AssessQuality(vectorOf(tt.values)))
		})
	}
}
