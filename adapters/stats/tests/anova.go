package tests

import (
	"gonum.org/v1/gonum/stat"

	"gocompare/adapters/stats/dist"
	"gocompare/domain/analysis"
	"gocompare/domain/core"
)

// OneWayANOVA runs the classical F test across k independent groups. The
// effect size is η².
func OneWayANOVA(groups [][]float64) (analysis.TestResult, error) {
	k := len(groups)
	var n, grand float64
	means := make([]float64, k)
	for i, g := range groups {
		means[i] = stat.Mean(g, nil)
		grand += means[i] * float64(len(g))
		n += float64(len(g))
	}
	grand /= n

	var between, within float64
	for i, g := range groups {
		d := means[i] - grand
		between += float64(len(g)) * d * d
		for _, v := range g {
			e := v - means[i]
			within += e * e
		}
	}
	if within <= 0 {
		return analysis.TestResult{}, core.NewInsufficientDataError("no within-group variance")
	}
	df1, df2 := float64(k-1), n-float64(k)
	f := (between / df1) / (within / df2)
	return analysis.TestResult{
		Method:         analysis.MethodANOVA,
		Statistic:      f,
		PValue:         dist.FUpper(f, df1, df2),
		EffectSize:     analysis.Float64(between / (between + within)),
		EffectSizeKind: "eta_squared",
		DF:             analysis.Float64(df1),
		DF2:            analysis.Float64(df2),
		N:              int(n),
	}, nil
}

// KruskalWallis runs the rank-based H test with tie correction. The effect
// size is ε² = H / (n − 1).
func KruskalWallis(groups [][]float64) (analysis.TestResult, error) {
	var all []float64
	for _, g := range groups {
		all = append(all, g...)
	}
	ranks, ties := rank(all)
	n := float64(len(all))

	var h float64
	offset := 0
	for _, g := range groups {
		var r float64
		for _, v := range ranks[offset : offset+len(g)] {
			r += v
		}
		offset += len(g)
		h += r * r / float64(len(g))
	}
	h = 12/(n*(n+1))*h - 3*(n+1)

	correction := 1 - ties/(n*n*n-n)
	if correction <= 0 {
		return analysis.TestResult{}, core.NewInsufficientDataError("all values are tied")
	}
	h /= correction
	df := float64(len(groups) - 1)
	return analysis.TestResult{
		Method:         analysis.MethodKruskalWallis,
		Statistic:      h,
		PValue:         dist.ChiSquareUpper(h, df),
		EffectSize:     analysis.Float64(h / (n - 1)),
		EffectSizeKind: "epsilon_squared",
		DF:             analysis.Float64(df),
		N:              len(all),
	}, nil
}
