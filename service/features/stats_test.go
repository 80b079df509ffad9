package features

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarize(t *testing.T) {
	assert.Equal(t, Summary{}, Summarize(nil))

	s := Summarize([]float64{4, 1, 3, 2})
	assert.Equal(t, 10.0, s.Total)
	assert.Equal(t, 1.0, s.Min)
	assert.Equal(t, 4.0, s.Max)
	assert.Equal(t, 2.5, s.Mean)
	assert.Equal(t, 2.5, s.Median)
	assert.InDelta(t, math.Sqrt(1.25), s.Std, 1e-12)

	odd := Summarize([]float64{9, 1, 5})
	assert.Equal(t, 5.0, odd.Median)

	single := Summarize([]float64{7})
	assert.Equal(t, 0.0, single.Std)
}

func TestSummarize_DoesNotReorderInput(t *testing.T) {
	values := []float64{3, 1, 2}
	Summarize(values)
	assert.Equal(t, []float64{3, 1, 2}, values)
}

func TestAddStats(t *testing.T) {
	v := NewVector()
	addStats(v, "x", nil, true)
	addStats(v, "y", []float64{1, 3}, false)

	assert.Equal(t, []string{
		"x_total", "x_min", "x_max", "x_mean", "x_median", "x_std",
		"y_min", "y_max", "y_mean", "y_median", "y_std",
	}, v.Names())
	assert.Equal(t, 2.0, v.Value("y_mean"))
}

func TestIntervals(t *testing.T) {
	assert.Nil(t, intervals(nil))
	assert.Nil(t, intervals([]int64{5, 5}))
	assert.Equal(t, []float64{5, 25}, intervals([]int64{130, 100, 105, 105, 0}))
}
