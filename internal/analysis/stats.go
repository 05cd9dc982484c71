package analysis

import (
	"math"
	"sort"
)

var severityRanks = map[Severity]int{
	SeverityHigh:   3,
	SeverityMedium: 2,
	SeverityLow:    1,
}

// severityRank orders issue severities; unknown labels rank 0
func severityRank(s Severity) int {
	return severityRanks[s]
}

// round2 rounds half away from zero to two decimals
func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

func percentage(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(part) * 100 / float64(total)
}

func clip(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// scaledSeverity maps the distance past a threshold onto [0,1]
func scaledSeverity(excess, span float64) float64 {
	if span <= 0 {
		return 1
	}
	return clip(excess/span, 0, 1)
}

// counter is a local fold accumulator keyed by bucket label
type counter struct {
	counts map[string]int
	total  int
}

func newCounter() *counter {
	return &counter{counts: make(map[string]int)}
}

func (c *counter) Add(key string) {
	c.counts[key]++
	c.total++
}

// Distribution converts counts to percentages of the counted total
func (c *counter) Distribution() map[string]float64 {
	out := make(map[string]float64, len(c.counts))
	for k, v := range c.counts {
		out[k] = percentage(v, c.total)
	}
	return out
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// NormalizedEntropy returns the Shannon entropy (log2) of a percentage
// distribution divided by log2 of its bucket count. One bucket or fewer yields 0.
func NormalizedEntropy(distribution map[string]float64) float64 {
	n := len(distribution)
	if n <= 1 {
		return 0
	}

	entropy := 0.0
	for _, k := range sortedKeys(distribution) {
		p := distribution[k] / 100
		if p > 0 {
			entropy -= p * math.Log2(p)
		}
	}

	maxEntropy := math.Log2(float64(n))
	if maxEntropy <= 0 {
		return 0
	}
	return entropy / maxEntropy
}

// NDCG scores gains in the order given against the same gains sorted descending
func NDCG(gains []float64) float64 {
	if len(gains) == 0 {
		return 0
	}

	dcg := discountedGain(gains)

	ideal := append([]float64(nil), gains...)
	sort.Sort(sort.Reverse(sort.Float64Slice(ideal)))
	idcg := discountedGain(ideal)

	if idcg == 0 {
		return 0
	}
	return dcg / idcg
}

func discountedGain(gains []float64) float64 {
	sum := 0.0
	for i, g := range gains {
		sum += g / math.Log2(float64(i)+2)
	}
	return sum
}
