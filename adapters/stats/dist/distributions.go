// Package dist wraps the gonum distributions used for p-values so every test
// computes tails the same way.
package dist

import (
	"math"

	"gonum.org/v1/gonum/mathext"
	"gonum.org/v1/gonum/stat/distuv"
)

// MinPValue is the floor for reported p-values. Smaller values are clamped
// rather than rounded to zero.
const MinPValue = 1e-300

// ClampP bounds a p-value to [MinPValue, 1]. NaN maps to 1.
func ClampP(p float64) float64 {
	switch {
	case math.IsNaN(p):
		return 1
	case p < MinPValue:
		return MinPValue
	case p > 1:
		return 1
	}
	return p
}

// TTwoSided computes the two-tailed p-value of a t statistic.
func TTwoSided(t, df float64) float64 {
	if df <= 0 || math.IsNaN(t) {
		return 1
	}
	if math.IsInf(t, 0) {
		return MinPValue
	}
	tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	return ClampP(2 * tDist.Survival(math.Abs(t)))
}

// FUpper computes the upper-tail p-value of an F statistic.
func FUpper(f, df1, df2 float64) float64 {
	if df1 <= 0 || df2 <= 0 || math.IsNaN(f) {
		return 1
	}
	if math.IsInf(f, 1) {
		return MinPValue
	}
	if f <= 0 {
		return 1
	}
	// distuv.F.Survival is 1-CDF and cancels to zero below ~1e-16; the
	// complementary incomplete beta keeps the tail.
	return ClampP(mathext.RegIncBeta(df2/2, df1/2, df2/(df2+df1*f)))
}

// ChiSquareUpper computes the upper-tail p-value of a chi-square statistic.
func ChiSquareUpper(x, df float64) float64 {
	if df <= 0 || math.IsNaN(x) {
		return 1
	}
	if math.IsInf(x, 1) {
		return MinPValue
	}
	if x <= 0 {
		return 1
	}
	chiDist := distuv.ChiSquared{K: df}
	return ClampP(chiDist.Survival(x))
}

// ZTwoSided computes the two-tailed p-value of a standard normal statistic.
func ZTwoSided(z float64) float64 {
	if math.IsNaN(z) {
		return 1
	}
	if math.IsInf(z, 0) {
		return MinPValue
	}
	return ClampP(2 * NormalUpper(math.Abs(z)))
}

// NormalUpper computes P(Z > z). The lower CDF at -z goes through Erfc and
// stays accurate far into the tail, unlike distuv's Survival.
func NormalUpper(z float64) float64 {
	return distuv.UnitNormal.CDF(-z)
}

// NormalQuantile computes the standard normal inverse CDF.
func NormalQuantile(p float64) float64 {
	return distuv.UnitNormal.Quantile(p)
}
