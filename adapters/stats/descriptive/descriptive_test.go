package descriptive

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat/distuv"

	"gocompare/adapters/stats/dist"
	"gocompare/domain/core"
)

func TestShapiroWilkReferenceValues(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		w      float64
		p      float64
	}{
		{"four evenly spaced", []float64{1, 2, 3, 4}, 0.99291, 0.97188},
		{"three points", []float64{1, 2, 4}, 0.96429, 0.63689},
		{"right skewed", []float64{148, 154, 158, 160, 161, 162, 166, 170, 182, 195, 236}, 0.78881, 0.00670},
		{"outlier", []float64{1, 2, 3, 100}, 0.64566, 0.00221},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, p, ok := ShapiroWilk(tt.values)
			require.True(t, ok)
			assert.InDelta(t, tt.w, w, 1e-4)
			assert.InDelta(t, tt.p, p, 1e-4)
		})
	}
}

func TestShapiroWilkIndeterminate(t *testing.T) {
	_, _, ok := ShapiroWilk([]float64{1, 2})
	assert.False(t, ok)
	_, _, ok = ShapiroWilk([]float64{5, 5, 5, 5})
	assert.False(t, ok, "constant sample")
}

func TestNormalitySwitchesToDAgostino(t *testing.T) {
	n := 6000
	normal := make([]float64, n)
	skewed := make([]float64, n)
	for i := range normal {
		q := (float64(i) + 0.5) / float64(n)
		normal[i] = distuv.UnitNormal.Quantile(q)
		skewed[i] = -math.Log(1 - q)
	}

	p, method, ok := Normality(normal)
	require.True(t, ok)
	assert.Equal(t, MethodDAgostino, method)
	assert.Greater(t, p, 0.9)

	p, _, ok = Normality(skewed)
	require.True(t, ok)
	assert.Less(t, p, 1e-10)
	assert.GreaterOrEqual(t, p, dist.MinPValue)

	_, method, ok = Normality(normal[:100])
	require.True(t, ok)
	assert.Equal(t, MethodShapiroWilk, method)
}

func TestBrownForsythe(t *testing.T) {
	t.Run("equal spread", func(t *testing.T) {
		h := BrownForsythe([][]float64{{10, 12, 11, 13}, {20, 22, 21, 23}})
		require.True(t, h.Determinate)
		assert.InDelta(t, 0, h.Statistic, 1e-12)
		assert.True(t, h.Homogeneous(0.05))
	})

	t.Run("tenfold spread", func(t *testing.T) {
		a := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
		b := []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}
		h := BrownForsythe([][]float64{a, b})
		assert.InDelta(t, 22.5557, h.Statistic, 1e-3)
		assert.Equal(t, 1.0, h.DF1)
		assert.Equal(t, 18.0, h.DF2)
		assert.Less(t, h.PValue, 0.001)
		assert.False(t, h.Homogeneous(0.05))
	})

	t.Run("zero variance groups are excluded", func(t *testing.T) {
		h := BrownForsythe([][]float64{{4, 4, 4}, {1, 2, 3, 100}, {1, 2, 3, 4}})
		assert.Equal(t, []int{1, 2}, h.Included)
		assert.InDelta(t, 0.98602, h.Statistic, 1e-4)
	})

	t.Run("single group with spread", func(t *testing.T) {
		h := BrownForsythe([][]float64{{4, 4, 4}, {1, 2, 3}})
		assert.False(t, h.Determinate)
		assert.True(t, h.Homogeneous(0.05))
	})
}

func TestComputerDescribe(t *testing.T) {
	c := NewComputer()

	t.Run("numeric partition", func(t *testing.T) {
		row := c.Describe(Partition{Variable: "hb", Group: "A", Values: []float64{10, 12, 11, 13}})
		assert.Equal(t, 4, row.N)
		require.NotNil(t, row.Mean)
		assert.InDelta(t, 11.5, *row.Mean, 1e-12)
		require.NotNil(t, row.SD)
		assert.InDelta(t, math.Sqrt(5.0/3.0), *row.SD, 1e-12)
		assert.InDelta(t, 11.5, *row.Median, 1e-12)
		assert.Equal(t, 10.0, *row.Min)
		assert.Equal(t, 13.0, *row.Max)
		require.NotNil(t, row.NormalityP)
		assert.Equal(t, MethodShapiroWilk, row.NormalityMethod)
		assert.True(t, row.IsNormal(0.05))
	})

	t.Run("single observation has no sd", func(t *testing.T) {
		row := c.Describe(Partition{Variable: "hb", Group: "A", Values: []float64{7}})
		assert.Equal(t, 1, row.N)
		assert.Nil(t, row.SD)
		assert.Nil(t, row.NormalityP)
		assert.False(t, row.IsNormal(0.05))
		assert.Equal(t, 7.0, *row.Mean)
	})

	t.Run("categorical partition", func(t *testing.T) {
		row := c.Describe(Partition{Variable: "sex", Group: "A", Labels: []string{"f", "m", "f"}})
		assert.Equal(t, 3, row.N)
		assert.Equal(t, map[string]int{"f": 2, "m": 1}, row.Levels)
		assert.Nil(t, row.Mean)
	})
}

func TestComputerSummarize(t *testing.T) {
	c := NewComputer()

	rows, err := c.Summarize([]Partition{
		{Variable: "hb", Group: "A", Values: []float64{1, 2}},
		{Variable: "hb", Group: "B"},
	})
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	rows, err = c.Summarize([]Partition{{Variable: "hb", Group: "A"}})
	assert.Empty(t, rows)
	assert.True(t, errors.Is(err, core.ErrInsufficientData))
}

func TestSortedLevels(t *testing.T) {
	c := NewComputer()
	rows, err := c.Summarize([]Partition{
		{Variable: "x", Group: "A", Labels: []string{"z", "a"}},
		{Variable: "x", Group: "B", Labels: []string{"m"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "m", "z"}, SortedLevels(rows))
}
