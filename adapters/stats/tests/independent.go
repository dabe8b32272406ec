package tests

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"gocompare/adapters/stats/dist"
	"gocompare/domain/analysis"
	"gocompare/domain/core"
)

const (
	exactMannWhitneyMax = 8
	effectCohensD       = "cohens_d"
	effectRankBiserial  = "rank_biserial"
)

// StudentT runs the pooled-variance two-sample t-test. The statistic is
// signed as mean(a) − mean(b).
func StudentT(a, b []float64) (analysis.TestResult, error) {
	n1, n2 := float64(len(a)), float64(len(b))
	m1, v1 := stat.MeanVariance(a, nil)
	m2, v2 := stat.MeanVariance(b, nil)
	df := n1 + n2 - 2
	pooled := ((n1-1)*v1 + (n2-1)*v2) / df
	if pooled <= 0 || math.IsNaN(pooled) {
		return analysis.TestResult{}, core.NewInsufficientDataError("both groups have zero variance")
	}
	t := (m1 - m2) / math.Sqrt(pooled*(1/n1+1/n2))
	return analysis.TestResult{
		Method:         analysis.MethodStudentT,
		Statistic:      t,
		PValue:         dist.TTwoSided(t, df),
		EffectSize:     analysis.Float64((m1 - m2) / math.Sqrt(pooled)),
		EffectSizeKind: effectCohensD,
		DF:             analysis.Float64(df),
		N:              len(a) + len(b),
	}, nil
}

// WelchT runs the unequal-variance t-test with Welch–Satterthwaite degrees
// of freedom.
func WelchT(a, b []float64) (analysis.TestResult, error) {
	n1, n2 := float64(len(a)), float64(len(b))
	m1, v1 := stat.MeanVariance(a, nil)
	m2, v2 := stat.MeanVariance(b, nil)
	q1, q2 := v1/n1, v2/n2
	se2 := q1 + q2
	if se2 <= 0 || math.IsNaN(se2) {
		return analysis.TestResult{}, core.NewInsufficientDataError("both groups have zero variance")
	}
	t := (m1 - m2) / math.Sqrt(se2)
	df := se2 * se2 / (q1*q1/(n1-1) + q2*q2/(n2-1))
	return analysis.TestResult{
		Method:         analysis.MethodWelchT,
		Statistic:      t,
		PValue:         dist.TTwoSided(t, df),
		EffectSize:     analysis.Float64((m1 - m2) / math.Sqrt((v1+v2)/2)),
		EffectSizeKind: effectCohensD,
		DF:             analysis.Float64(df),
		N:              len(a) + len(b),
	}, nil
}

// MannWhitney runs the Mann–Whitney U test. The statistic is U for the first
// sample. Small samples without ties use the exact distribution; otherwise
// the normal approximation with tie and continuity corrections.
func MannWhitney(a, b []float64) (analysis.TestResult, error) {
	n1, n2 := len(a), len(b)
	all := make([]float64, 0, n1+n2)
	all = append(all, a...)
	all = append(all, b...)
	ranks, ties := rank(all)

	var r1 float64
	for _, r := range ranks[:n1] {
		r1 += r
	}
	f1, f2 := float64(n1), float64(n2)
	u1 := r1 - f1*(f1+1)/2
	n := f1 + f2

	res := analysis.TestResult{
		Method:         analysis.MethodMannWhitney,
		Statistic:      u1,
		EffectSize:     analysis.Float64(1 - 2*u1/(f1*f2)),
		EffectSizeKind: effectRankBiserial,
		N:              n1 + n2,
		Diagnostics:    map[string]float64{},
	}

	if n1 <= exactMannWhitneyMax && n2 <= exactMannWhitneyMax && ties == 0 {
		res.PValue = dist.ClampP(twoSidedExact(mannWhitneyCounts(n1, n2), int(math.Round(u1))))
		res.Diagnostics["exact"] = 1
		return res, nil
	}

	variance := f1 * f2 / 12 * ((n + 1) - ties/(n*(n-1)))
	if variance <= 0 {
		return analysis.TestResult{}, core.NewInsufficientDataError("all values are tied")
	}
	diff := math.Max(math.Abs(u1-f1*f2/2)-0.5, 0)
	z := diff / math.Sqrt(variance)
	res.PValue = dist.ZTwoSided(z)
	res.Diagnostics["z"] = z
	res.Diagnostics["exact"] = 0
	return res, nil
}

// mannWhitneyCounts returns, for every U in [0, n1·n2], the number of rank
// arrangements producing it.
func mannWhitneyCounts(n1, n2 int) []float64 {
	// f[i][j] is the distribution for sample sizes i and j.
	f := make([][][]float64, n1+1)
	for i := range f {
		f[i] = make([][]float64, n2+1)
		for j := range f[i] {
			f[i][j] = make([]float64, i*j+1)
			if i == 0 || j == 0 {
				f[i][j][0] = 1
				continue
			}
			for u := 0; u <= i*j; u++ {
				var c float64
				if u-j >= 0 && u-j <= (i-1)*j {
					c += f[i-1][j][u-j]
				}
				if u <= i*(j-1) {
					c += f[i][j-1][u]
				}
				f[i][j][u] = c
			}
		}
	}
	return f[n1][n2]
}
