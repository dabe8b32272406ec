package descriptive

import (
	"math"
	"sort"

	"gocompare/adapters/stats/dist"
)

const (
	// MethodShapiroWilk is Royston's 1995 Shapiro–Wilk approximation.
	MethodShapiroWilk = "shapiro_wilk"
	// MethodDAgostino is D'Agostino's K² omnibus test.
	MethodDAgostino = "dagostino_k2"

	shapiroMinN = 3
	shapiroMaxN = 5000
)

var (
	swC1 = []float64{0, 0.221157, -0.147981, -2.07119, 4.434685, -2.706056}
	swC2 = []float64{0, 0.042981, -0.293762, -1.752461, 5.682633, -3.582633}
	swC3 = []float64{0.544, -0.39978, 0.025054, -6.714e-4}
	swC4 = []float64{1.3822, -0.77857, 0.062767, -0.0020322}
	swC5 = []float64{-1.5861, -0.31082, -0.083751, 0.0038915}
	swC6 = []float64{-0.4803, -0.082676, 0.0030302}
	swG  = []float64{-2.273, 0.459}
)

// Normality runs the normality test appropriate for the sample size and
// returns the p-value and method. ok is false when normality cannot be
// determined (n < 3 or a constant sample).
func Normality(values []float64) (p float64, method string, ok bool) {
	n := len(values)
	switch {
	case n < shapiroMinN:
		return 0, "", false
	case n <= shapiroMaxN:
		_, p, ok = ShapiroWilk(values)
		return p, MethodShapiroWilk, ok
	default:
		p, ok = DAgostinoK2(values)
		return p, MethodDAgostino, ok
	}
}

// ShapiroWilk computes the W statistic and its p-value for 3 <= n <= 5000.
func ShapiroWilk(values []float64) (w, p float64, ok bool) {
	n := len(values)
	if n < shapiroMinN || n > shapiroMaxN {
		return 0, 0, false
	}
	x := append([]float64(nil), values...)
	sort.Float64s(x)
	if x[n-1]-x[0] < 1e-19 {
		return 0, 0, false
	}

	a := shapiroCoefficients(n)
	mean := 0.0
	for _, v := range x {
		mean += v
	}
	mean /= float64(n)

	var num, ss float64
	for i := 0; i < n/2; i++ {
		num += a[i] * (x[n-1-i] - x[i])
	}
	for _, v := range x {
		d := v - mean
		ss += d * d
	}
	w = num * num / ss
	if w > 1 {
		w = 1
	}
	return w, shapiroPValue(w, n), true
}

// shapiroCoefficients returns the positive half of the coefficient vector,
// a[0] belonging to the extreme order statistics.
func shapiroCoefficients(n int) []float64 {
	half := n / 2
	a := make([]float64, half)
	if n == 3 {
		a[0] = math.Sqrt(0.5)
		return a
	}

	m := make([]float64, half)
	an25 := float64(n) + 0.25
	var summ2 float64
	for i := range m {
		m[i] = -dist.NormalQuantile((float64(i+1) - 0.375) / an25)
		summ2 += m[i] * m[i]
	}
	summ2 *= 2
	ssumm2 := math.Sqrt(summ2)
	rsn := 1 / math.Sqrt(float64(n))

	a1 := poly(swC1, rsn) + m[0]/ssumm2
	start := 1
	var fac float64
	if n > 5 {
		start = 2
		a2 := m[1]/ssumm2 + poly(swC2, rsn)
		fac = math.Sqrt((summ2 - 2*m[0]*m[0] - 2*m[1]*m[1]) / (1 - 2*a1*a1 - 2*a2*a2))
		a[1] = a2
	} else {
		fac = math.Sqrt((summ2 - 2*m[0]*m[0]) / (1 - 2*a1*a1))
	}
	a[0] = a1
	for i := start; i < half; i++ {
		a[i] = m[i] / fac
	}
	return a
}

func shapiroPValue(w float64, n int) float64 {
	if n == 3 {
		p := 6 / math.Pi * (math.Asin(math.Sqrt(w)) - math.Pi/3)
		return dist.ClampP(math.Max(p, 0))
	}
	y := math.Log(1 - w)
	an := float64(n)
	var mu, sigma float64
	if n <= 11 {
		gamma := poly(swG, an)
		if y >= gamma {
			return dist.MinPValue
		}
		y = -math.Log(gamma - y)
		mu = poly(swC3, an)
		sigma = math.Exp(poly(swC4, an))
	} else {
		ln := math.Log(an)
		mu = poly(swC5, ln)
		sigma = math.Exp(poly(swC6, ln))
	}
	return dist.ClampP(dist.NormalUpper((y - mu) / sigma))
}

// poly evaluates c[0] + c[1]x + c[2]x² + ...
func poly(c []float64, x float64) float64 {
	r := 0.0
	for i := len(c) - 1; i >= 0; i-- {
		r = r*x + c[i]
	}
	return r
}

// DAgostinoK2 computes the omnibus skewness/kurtosis normality test used for
// large samples.
func DAgostinoK2(values []float64) (float64, bool) {
	n := float64(len(values))
	if n < 8 {
		return 0, false
	}
	var mean float64
	for _, v := range values {
		mean += v
	}
	mean /= n
	var m2, m3, m4 float64
	for _, v := range values {
		d := v - mean
		d2 := d * d
		m2 += d2
		m3 += d2 * d
		m4 += d2 * d2
	}
	m2 /= n
	m3 /= n
	m4 /= n
	if m2 <= 0 || math.IsNaN(m2) {
		return 0, false
	}
	g1 := m3 / math.Pow(m2, 1.5)
	b2 := m4 / (m2 * m2)

	y := g1 * math.Sqrt((n+1)*(n+3)/(6*(n-2)))
	beta2 := 3 * (n*n + 27*n - 70) * (n + 1) * (n + 3) / ((n - 2) * (n + 5) * (n + 7) * (n + 9))
	w2 := -1 + math.Sqrt(2*(beta2-1))
	if w2 <= 1 {
		return 0, false
	}
	delta := 1 / math.Sqrt(math.Log(math.Sqrt(w2)))
	alpha := math.Sqrt(2 / (w2 - 1))
	ay := y / alpha
	z1 := delta * math.Log(ay+math.Sqrt(ay*ay+1))

	e := 3 * (n - 1) / (n + 1)
	v := 24 * n * (n - 2) * (n - 3) / ((n + 1) * (n + 1) * (n + 3) * (n + 5))
	x := (b2 - e) / math.Sqrt(v)
	sqrtBeta1 := 6 * (n*n - 5*n + 2) / ((n + 7) * (n + 9)) * math.Sqrt(6*(n+3)*(n+5)/(n*(n-2)*(n-3)))
	a := 6 + 8/sqrtBeta1*(2/sqrtBeta1+math.Sqrt(1+4/(sqrtBeta1*sqrtBeta1)))
	den := 1 + x*math.Sqrt(2/(a-4))
	if den <= 0 {
		return dist.MinPValue, true
	}
	z2 := (1 - 2/(9*a) - math.Cbrt((1-2/a)/den)) / math.Sqrt(2/(9*a))

	return dist.ChiSquareUpper(z1*z1+z2*z2, 2), true
}
