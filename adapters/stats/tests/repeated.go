package tests

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"gocompare/adapters/stats/dist"
	"gocompare/domain/analysis"
	"gocompare/domain/core"
)

// RepeatedANOVA runs the one-way repeated-measures ANOVA over complete
// subjects (rows) × timepoints (columns). The p-value is Greenhouse–Geisser
// corrected; the uncorrected value is kept in Diagnostics.
func RepeatedANOVA(rows [][]float64) (analysis.TestResult, error) {
	n, k := len(rows), len(rows[0])
	fn, fk := float64(n), float64(k)

	data := mat.NewDense(n, k, nil)
	for i, r := range rows {
		data.SetRow(i, r)
	}

	var grand float64
	colMeans := make([]float64, k)
	for j := 0; j < k; j++ {
		colMeans[j] = stat.Mean(mat.Col(nil, j, data), nil)
		grand += colMeans[j]
	}
	grand /= fk

	var ssTime, ssSubj, ssTotal float64
	for j := 0; j < k; j++ {
		d := colMeans[j] - grand
		ssTime += fn * d * d
	}
	for i := 0; i < n; i++ {
		d := stat.Mean(rows[i], nil) - grand
		ssSubj += fk * d * d
		for _, v := range rows[i] {
			e := v - grand
			ssTotal += e * e
		}
	}
	ssErr := ssTotal - ssTime - ssSubj
	if ssErr <= 1e-12*math.Max(ssTotal, 1) {
		return analysis.TestResult{}, core.NewInsufficientDataError("no residual variance across timepoints")
	}

	df1, df2 := fk-1, (fn-1)*(fk-1)
	f := (ssTime / df1) / (ssErr / df2)
	eps := greenhouseGeisser(data)
	pRaw := dist.FUpper(f, df1, df2)
	pGG := dist.FUpper(f, eps*df1, eps*df2)

	return analysis.TestResult{
		Method:         analysis.MethodRMANOVA,
		Statistic:      f,
		PValue:         pGG,
		EffectSize:     analysis.Float64(ssTime / (ssTime + ssErr)),
		EffectSizeKind: "partial_eta_squared",
		DF:             analysis.Float64(df1),
		DF2:            analysis.Float64(df2),
		N:              n,
		Diagnostics: map[string]float64{
			"gg_epsilon":     eps,
			"p_uncorrected":  pRaw,
			"p_gg":           pGG,
			"df_gg":          eps * df1,
			"df2_gg":         eps * df2,
			"timepoints":     fk,
			"ss_time":        ssTime,
			"ss_error":       ssErr,
			"ss_subjects":    ssSubj,
			"mean_sq_error":  ssErr / df2,
			"mean_sq_effect": ssTime / df1,
		},
	}, nil
}

// greenhouseGeisser estimates sphericity from the double-centred covariance
// of the timepoint columns, bounded to [1/(k−1), 1].
func greenhouseGeisser(data *mat.Dense) float64 {
	_, k := data.Dims()
	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, data, nil)

	rowMeans := make([]float64, k)
	var grand float64
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			rowMeans[i] += cov.At(i, j)
		}
		rowMeans[i] /= float64(k)
		grand += rowMeans[i]
	}
	grand /= float64(k)

	var trace, sumSq float64
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			c := cov.At(i, j) - rowMeans[i] - rowMeans[j] + grand
			sumSq += c * c
			if i == j {
				trace += c
			}
		}
	}
	lower := 1 / float64(k-1)
	if sumSq == 0 {
		return 1
	}
	eps := trace * trace / (float64(k-1) * sumSq)
	return math.Min(1, math.Max(lower, eps))
}

// Friedman runs the rank-based repeated-measures test with tie correction.
// The effect size is Kendall's W.
func Friedman(rows [][]float64) (analysis.TestResult, error) {
	n, k := len(rows), len(rows[0])
	fn, fk := float64(n), float64(k)

	sums := make([]float64, k)
	var ties float64
	for _, r := range rows {
		ranks, t := rank(r)
		ties += t
		for j, v := range ranks {
			sums[j] += v
		}
	}

	var ss float64
	for _, r := range sums {
		ss += r * r
	}
	q := 12/(fn*fk*(fk+1))*ss - 3*fn*(fk+1)
	correction := 1 - ties/(fn*(fk*fk*fk-fk))
	if correction <= 0 {
		return analysis.TestResult{}, core.NewInsufficientDataError("every subject is tied across timepoints")
	}
	q /= correction
	df := fk - 1
	return analysis.TestResult{
		Method:         analysis.MethodFriedman,
		Statistic:      q,
		PValue:         dist.ChiSquareUpper(q, df),
		EffectSize:     analysis.Float64(q / (fn * (fk - 1))),
		EffectSizeKind: "kendalls_w",
		DF:             analysis.Float64(df),
		N:              n,
	}, nil
}
