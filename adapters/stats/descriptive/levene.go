package descriptive

import (
	"math"

	"github.com/montanaflynn/stats"

	"gocompare/adapters/stats/dist"
)

// Homogeneity is the outcome of the Brown–Forsythe variance test.
type Homogeneity struct {
	Statistic float64
	PValue    float64
	DF1       float64
	DF2       float64
	// Included lists the indices of the groups that entered the test.
	Included []int
	// Determinate is false when fewer than two groups have spread.
	Determinate bool
}

// Homogeneous reports whether equal variances can be assumed at alpha.
// An indeterminate test is treated as homogeneous.
func (h Homogeneity) Homogeneous(alpha float64) bool {
	if !h.Determinate {
		return true
	}
	return h.PValue >= alpha
}

// BrownForsythe runs Levene's test centred on group medians. Groups with
// zero variance or fewer than two observations are left out.
func BrownForsythe(groups [][]float64) Homogeneity {
	var (
		devs     [][]float64
		included []int
	)
	for i, g := range groups {
		if len(g) < 2 || zeroVariance(g) {
			continue
		}
		med, err := stats.Median(g)
		if err != nil {
			continue
		}
		z := make([]float64, len(g))
		for j, v := range g {
			z[j] = math.Abs(v - med)
		}
		devs = append(devs, z)
		included = append(included, i)
	}

	k := len(devs)
	if k < 2 {
		return Homogeneity{Included: included}
	}

	var total, grand float64
	means := make([]float64, k)
	for i, z := range devs {
		for _, v := range z {
			means[i] += v
		}
		grand += means[i]
		means[i] /= float64(len(z))
		total += float64(len(z))
	}
	grand /= total

	var between, within float64
	for i, z := range devs {
		d := means[i] - grand
		between += float64(len(z)) * d * d
		for _, v := range z {
			e := v - means[i]
			within += e * e
		}
	}

	df1 := float64(k - 1)
	df2 := total - float64(k)
	h := Homogeneity{DF1: df1, DF2: df2, Included: included, Determinate: true}
	if within == 0 {
		if between == 0 {
			h.PValue = 1
		} else {
			h.Statistic = math.Inf(1)
			h.PValue = dist.MinPValue
		}
		return h
	}
	h.Statistic = (between / df1) / (within / df2)
	h.PValue = dist.FUpper(h.Statistic, df1, df2)
	return h
}

func zeroVariance(values []float64) bool {
	for _, v := range values[1:] {
		if v != values[0] {
			return false
		}
	}
	return true
}
