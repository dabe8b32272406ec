package tests

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"gocompare/adapters/stats/dist"
	"gocompare/domain/analysis"
	"gocompare/domain/core"
)

const exactWilcoxonMax = 25

// Differences returns after − before for aligned complete pairs.
func Differences(before, after []float64) []float64 {
	d := make([]float64, len(before))
	for i := range before {
		d[i] = after[i] - before[i]
	}
	return d
}

// PairedT runs the one-sample t-test on paired differences. The effect size
// is Cohen's d_z.
func PairedT(before, after []float64) (analysis.TestResult, error) {
	d := Differences(before, after)
	n := float64(len(d))
	mean, variance := stat.MeanVariance(d, nil)
	if variance <= 0 || math.IsNaN(variance) {
		return analysis.TestResult{}, core.NewInsufficientDataError("paired differences have zero variance")
	}
	sd := math.Sqrt(variance)
	t := mean / (sd / math.Sqrt(n))
	df := n - 1
	return analysis.TestResult{
		Method:         analysis.MethodPairedT,
		Statistic:      t,
		PValue:         dist.TTwoSided(t, df),
		EffectSize:     analysis.Float64(mean / sd),
		EffectSizeKind: "cohens_dz",
		DF:             analysis.Float64(df),
		N:              len(d),
	}, nil
}

// WilcoxonSignedRank runs the signed-rank test on paired differences. Zero
// differences are dropped. The statistic is min(W+, W−).
func WilcoxonSignedRank(before, after []float64) (analysis.TestResult, error) {
	var nonzero []float64
	for _, v := range Differences(before, after) {
		if v != 0 {
			nonzero = append(nonzero, v)
		}
	}
	n := len(nonzero)
	if n == 0 {
		return analysis.TestResult{}, core.NewInsufficientDataError("all paired differences are zero")
	}

	abs := make([]float64, n)
	for i, v := range nonzero {
		abs[i] = math.Abs(v)
	}
	ranks, ties := rank(abs)
	var wPlus, wMinus float64
	for i, v := range nonzero {
		if v > 0 {
			wPlus += ranks[i]
		} else {
			wMinus += ranks[i]
		}
	}

	res := analysis.TestResult{
		Method:         analysis.MethodWilcoxon,
		Statistic:      math.Min(wPlus, wMinus),
		EffectSize:     analysis.Float64((wPlus - wMinus) / (wPlus + wMinus)),
		EffectSizeKind: effectRankBiserial,
		N:              n,
		Diagnostics:    map[string]float64{"w_plus": wPlus, "w_minus": wMinus},
	}
	if dropped := len(before) - n; dropped > 0 {
		res.Warnings = append(res.Warnings, "zero differences dropped")
		res.Diagnostics["zero_differences"] = float64(dropped)
	}

	if n <= exactWilcoxonMax && ties == 0 {
		res.PValue = dist.ClampP(twoSidedExact(signedRankCounts(n), int(math.Round(wPlus))))
		res.Diagnostics["exact"] = 1
		return res, nil
	}

	fn := float64(n)
	mu := fn * (fn + 1) / 4
	variance := fn*(fn+1)*(2*fn+1)/24 - ties/48
	if variance <= 0 {
		return analysis.TestResult{}, core.NewInsufficientDataError("all paired differences are tied")
	}
	z := math.Max(math.Abs(wPlus-mu)-0.5, 0) / math.Sqrt(variance)
	res.PValue = dist.ZTwoSided(z)
	res.Diagnostics["z"] = z
	res.Diagnostics["exact"] = 0
	return res, nil
}

// signedRankCounts returns the number of sign assignments giving each W+
// in [0, n(n+1)/2].
func signedRankCounts(n int) []float64 {
	maxW := n * (n + 1) / 2
	counts := make([]float64, maxW+1)
	counts[0] = 1
	for r := 1; r <= n; r++ {
		for w := maxW; w >= r; w-- {
			counts[w] += counts[w-r]
		}
	}
	return counts
}
