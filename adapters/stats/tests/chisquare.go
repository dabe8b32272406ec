package tests

import (
	"fmt"
	"math"

	"gocompare/adapters/stats/dist"
	"gocompare/domain/analysis"
	"gocompare/domain/core"
)

// ChiSquareIndependence tests association between group membership (rows)
// and category (columns) of a contingency table. The effect size is
// Cramér's V.
func ChiSquareIndependence(table [][]float64) (analysis.TestResult, error) {
	r := len(table)
	if r < 2 {
		return analysis.TestResult{}, core.NewInsufficientDataError("contingency table has %d row(s)", r)
	}
	c := len(table[0])
	if c < 2 {
		return analysis.TestResult{}, core.NewInsufficientDataError("contingency table has %d column(s)", c)
	}
	rowSums := make([]float64, r)
	colSums := make([]float64, c)
	var total float64
	for i, row := range table {
		for j, v := range row {
			rowSums[i] += v
			colSums[j] += v
			total += v
		}
	}

	var chi2 float64
	small := 0
	for i := range table {
		for j := range table[i] {
			e := rowSums[i] * colSums[j] / total
			if e == 0 {
				continue
			}
			if e < 5 {
				small++
			}
			d := table[i][j] - e
			chi2 += d * d / e
		}
	}

	df := float64((r - 1) * (c - 1))
	minDim := math.Min(float64(r), float64(c)) - 1
	res := analysis.TestResult{
		Method:         analysis.MethodChiSquare,
		Statistic:      chi2,
		PValue:         dist.ChiSquareUpper(chi2, df),
		EffectSize:     analysis.Float64(math.Sqrt(chi2 / (total * minDim))),
		EffectSizeKind: "cramers_v",
		DF:             analysis.Float64(df),
		N:              int(total),
	}
	if small > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%d of %d expected counts below 5", small, r*c))
	}
	return res, nil
}
