// Package correction adjusts a family of p-values for multiple comparisons.
package correction

import (
	"math"
	"sort"
)

// MethodBH names the Benjamini–Hochberg step-up procedure.
const MethodBH = "BH"

// BenjaminiHochberg returns adjusted p-values aligned with raw. Ties keep
// their input order when ranked. NaN inputs are treated as 1.
func BenjaminiHochberg(raw []float64) []float64 {
	m := len(raw)
	adjusted := make([]float64, m)
	if m == 0 {
		return adjusted
	}

	p := make([]float64, m)
	order := make([]int, m)
	for i, v := range raw {
		if math.IsNaN(v) {
			v = 1
		}
		p[i] = v
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return p[order[a]] < p[order[b]] })

	running := 1.0
	for rank := m; rank >= 1; rank-- {
		idx := order[rank-1]
		q := p[idx] * float64(m) / float64(rank)
		if q < running {
			running = q
		}
		adjusted[idx] = running
	}
	return adjusted
}

// Corrector adjusts p-values keyed by task identity.
type Corrector struct{}

// NewCorrector creates a new BH corrector
func NewCorrector() *Corrector {
	return &Corrector{}
}

// Method returns the correction name recorded on results.
func (c *Corrector) Method() string { return MethodBH }

// Adjust corrects the given family. keys and raw are parallel; the result
// maps every key to its adjusted p-value.
func (c *Corrector) Adjust(keys []string, raw []float64) map[string]float64 {
	adj := BenjaminiHochberg(raw)
	out := make(map[string]float64, len(keys))
	for i, k := range keys {
		out[k] = adj[i]
	}
	return out
}
