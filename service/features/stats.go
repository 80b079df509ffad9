package features

import (
	"math"
	"slices"
)

// Summary is the descriptive statistics block of a value list.
// Every field is 0 for an empty list. Std is the population deviation.
type Summary struct {
	Total  float64
	Min    float64
	Max    float64
	Mean   float64
	Median float64
	Std    float64
}

// Summarize computes the statistics of values.
func Summarize(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)

	var s Summary
	for _, v := range sorted {
		s.Total += v
	}
	n := float64(len(sorted))
	s.Min = sorted[0]
	s.Max = sorted[len(sorted)-1]
	s.Mean = s.Total / n

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		s.Median = (sorted[mid-1] + sorted[mid]) / 2
	} else {
		s.Median = sorted[mid]
	}

	var sq float64
	for _, v := range sorted {
		d := v - s.Mean
		sq += d * d
	}
	s.Std = math.Sqrt(sq / n)
	return s
}

// addStats writes the {prefix}_total/_min/_max/_mean/_median/_std block.
func addStats(v *Vector, prefix string, values []float64, includeTotal bool) {
	s := Summarize(values)
	if includeTotal {
		v.Set(prefix+"_total", s.Total)
	}
	v.Set(prefix+"_min", s.Min)
	v.Set(prefix+"_max", s.Max)
	v.Set(prefix+"_mean", s.Mean)
	v.Set(prefix+"_median", s.Median)
	v.Set(prefix+"_std", s.Std)
}

// distinctSorted returns the distinct positive slots in ascending order.
func distinctSorted(slots []int64) []int64 {
	out := make([]int64, 0, len(slots))
	for _, s := range slots {
		if s > 0 {
			out = append(out, s)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// intervals returns the gaps between consecutive distinct slots.
func intervals(slots []int64) []float64 {
	distinct := distinctSorted(slots)
	if len(distinct) < 2 {
		return nil
	}
	gaps := make([]float64, 0, len(distinct)-1)
	for i := 1; i < len(distinct); i++ {
		gaps = append(gaps, float64(distinct[i]-distinct[i-1]))
	}
	return gaps
}
