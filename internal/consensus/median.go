package consensus

import (
	"math"
	"sort"

	"github.com/eletricells/vantdge/internal/model"
)

// Median returns the median of values; the mean of the two middle values
// for an even count. Returns 0 for no values. values is not reordered.
func Median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// RepeatCount is the multiplicity of a value with weight w in the
// weighted-median multiset: round(w*scale), half to even, never negative.
func RepeatCount(w, scale float64) int {
	if scale <= 0 {
		scale = 10
	}
	n := math.RoundToEven(w * scale)
	if n <= 0 || math.IsNaN(n) {
		return 0
	}
	return int(n)
}

// WeightedMedian is the median of the multiset in which values[i] appears
// RepeatCount(weights[i], scale) times. The multiset is walked by
// cumulative counts rather than materialised; the result is identical.
// If every weight rounds to zero the plain median is returned.
func WeightedMedian(values, weights []float64, scale float64) float64 {
	type entry struct {
		value float64
		count int
	}
	entries := make([]entry, 0, len(values))
	total := 0
	for i, v := range values {
		var w float64
		if i < len(weights) {
			w = weights[i]
		}
		c := RepeatCount(w, scale)
		if c == 0 {
			continue
		}
		entries = append(entries, entry{value: v, count: c})
		total += c
	}
	if total == 0 {
		return Median(values)
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].value < entries[j].value })

	at := func(pos int) float64 {
		seen := 0
		for _, e := range entries {
			seen += e.count
			if pos < seen {
				return e.value
			}
		}
		return entries[len(entries)-1].value
	}

	if total%2 == 1 {
		return at(total / 2)
	}
	return (at(total/2-1) + at(total/2)) / 2
}

// Kinds returns the distinct kinds present in estimates, in first-seen
// order.
func Kinds(estimates []model.SourceEstimate) []model.ValueKind {
	seen := make(map[model.ValueKind]bool)
	var kinds []model.ValueKind
	for _, e := range estimates {
		if e.Kind == "" || seen[e.Kind] {
			continue
		}
		seen[e.Kind] = true
		kinds = append(kinds, e.Kind)
	}
	return kinds
}
