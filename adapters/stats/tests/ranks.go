package tests

import "sort"

// rank assigns 1-based average ranks and returns the tie term Σ(t³ − t).
func rank(values []float64) (ranks []float64, ties float64) {
	n := len(values)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return values[idx[a]] < values[idx[b]] })

	ranks = make([]float64, n)
	for i := 0; i < n; {
		j := i + 1
		for j < n && values[idx[j]] == values[idx[i]] {
			j++
		}
		avg := float64(i+j+1) / 2
		for k := i; k < j; k++ {
			ranks[idx[k]] = avg
		}
		if t := float64(j - i); t > 1 {
			ties += t*t*t - t
		}
		i = j
	}
	return ranks, ties
}

// binomial returns C(n, k) as a float.
func binomial(n, k int) float64 {
	if k < 0 || k > n {
		return 0
	}
	if k > n-k {
		k = n - k
	}
	r := 1.0
	for i := 1; i <= k; i++ {
		r = r * float64(n-k+i) / float64(i)
	}
	return r
}

// twoSidedExact doubles the smaller tail of a discrete distribution given as
// counts per statistic value.
func twoSidedExact(counts []float64, observed int) float64 {
	var total, lower, upper float64
	for u, c := range counts {
		total += c
		if u <= observed {
			lower += c
		}
		if u >= observed {
			upper += c
		}
	}
	p := 2 * lower / total
	if up := 2 * upper / total; up < p {
		p = up
	}
	if p > 1 {
		p = 1
	}
	return p
}
