package selector

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gocompare/adapters/stats/descriptive"
	"gocompare/domain/analysis"
	"gocompare/domain/core"
	"gocompare/domain/variable"
)

func pv(v float64) *float64 { return &v }

func twoGroups(pa, pb *float64, homogeneityP float64) Profile {
	return Profile{
		Design:   DesignIndependent,
		DataType: variable.TypeNumeric,
		Groups: []GroupProfile{
			{Label: "A", N: 10, NormalityP: pa},
			{Label: "B", N: 10, NormalityP: pb},
		},
		Homogeneity: descriptive.Homogeneity{PValue: homogeneityP, Determinate: true},
	}
}

func TestSelectIndependent(t *testing.T) {
	s := New(DefaultConfig())

	tests := []struct {
		name    string
		profile Profile
		method  analysis.Method
		rule    string
	}{
		{"normal and homogeneous", twoGroups(pv(0.5), pv(0.4), 0.8), analysis.MethodStudentT, RuleStudentT},
		{"normal and heterogeneous", twoGroups(pv(0.5), pv(0.4), 0.01), analysis.MethodWelchT, RuleWelchT},
		{"one non-normal", twoGroups(pv(0.5), pv(0.001), 0.8), analysis.MethodMannWhitney, RuleMannWhitney},
		{"indeterminate normality", twoGroups(nil, pv(0.9), 0.8), analysis.MethodMannWhitney, RuleMannWhitney},
		{"boundary p equals alpha is normal", twoGroups(pv(0.05), pv(0.05), 0.05), analysis.MethodStudentT, RuleStudentT},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := s.Select(tt.profile)
			require.NoError(t, err)
			assert.Equal(t, tt.method, d.Method)
			assert.Equal(t, tt.rule, d.Rule)
			assert.NotEmpty(t, d.Reason)
		})
	}
}

func TestSelectManyGroups(t *testing.T) {
	s := New(DefaultConfig())
	p := twoGroups(pv(0.5), pv(0.5), 0.5)
	p.Groups = append(p.Groups, GroupProfile{Label: "C", N: 8, NormalityP: pv(0.6)})

	d, err := s.Select(p)
	require.NoError(t, err)
	assert.Equal(t, analysis.MethodANOVA, d.Method)

	p.Homogeneity.PValue = 0.001
	d, err = s.Select(p)
	require.NoError(t, err)
	assert.Equal(t, analysis.MethodKruskalWallis, d.Method)
}

func TestSelectOrdinalUsesRanks(t *testing.T) {
	s := New(DefaultConfig())
	p := twoGroups(pv(0.9), pv(0.9), 0.9)
	p.DataType = variable.TypeOrdinal

	d, err := s.Select(p)
	require.NoError(t, err)
	assert.Equal(t, analysis.MethodMannWhitney, d.Method)
}

func TestSelectCategorical(t *testing.T) {
	s := New(DefaultConfig())
	p := twoGroups(nil, nil, 0)
	p.DataType = variable.TypeCategorical
	p.Levels = 3

	d, err := s.Select(p)
	require.NoError(t, err)
	assert.Equal(t, analysis.MethodChiSquare, d.Method)

	p.Levels = 1
	d, err = s.Select(p)
	assert.True(t, errors.Is(err, core.ErrInsufficientData))
	assert.Equal(t, analysis.MethodUndetermined, d.Method)
}

func TestSelectInsufficient(t *testing.T) {
	s := New(DefaultConfig())

	t.Run("group with one observation", func(t *testing.T) {
		p := twoGroups(pv(0.5), nil, 1)
		p.Groups[1].N = 1
		d, err := s.Select(p)
		require.Error(t, err)
		assert.True(t, errors.Is(err, core.ErrInsufficientData))
		assert.Equal(t, analysis.MethodUndetermined, d.Method)
		assert.Equal(t, RuleInsufficientData, d.Rule)
		assert.Contains(t, err.Error(), `"B"`)
	})

	t.Run("single group", func(t *testing.T) {
		p := twoGroups(pv(0.5), pv(0.5), 1)
		p.Groups = p.Groups[:1]
		_, err := s.Select(p)
		assert.True(t, errors.Is(err, core.ErrInsufficientData))
	})

	t.Run("one complete subject", func(t *testing.T) {
		_, err := s.Select(Profile{Design: DesignPaired, CompleteSubjects: 1})
		assert.True(t, errors.Is(err, core.ErrInsufficientData))
	})
}

func TestSelectPaired(t *testing.T) {
	s := New(DefaultConfig())
	p := Profile{Design: DesignPaired, DataType: variable.TypeNumeric, CompleteSubjects: 10, Timepoints: 2,
		DifferenceNormality: []*float64{pv(0.3)}}

	d, err := s.Select(p)
	require.NoError(t, err)
	assert.Equal(t, analysis.MethodPairedT, d.Method)

	p.DifferenceNormality = []*float64{pv(0.01)}
	d, err = s.Select(p)
	require.NoError(t, err)
	assert.Equal(t, analysis.MethodWilcoxon, d.Method)
}

func TestSelectRepeated(t *testing.T) {
	s := New(Config{NormalityAlpha: 0.05, VarianceAlpha: 0.05, RandomSlopeMinSubjects: 20})
	p := Profile{Design: DesignRepeated, DataType: variable.TypeNumeric, CompleteSubjects: 10, ObservedSubjects: 10,
		Timepoints: 3, DifferenceNormality: []*float64{pv(0.3), pv(0.6)}}

	d, err := s.Select(p)
	require.NoError(t, err)
	assert.Equal(t, analysis.MethodRMANOVA, d.Method)

	p.DifferenceNormality[1] = nil
	d, err = s.Select(p)
	require.NoError(t, err)
	assert.Equal(t, analysis.MethodFriedman, d.Method)

	p.Groups = []GroupProfile{{Label: "drug", N: 12}, {Label: "placebo", N: 12}}
	p.ObservedSubjects = 24
	d, err = s.Select(p)
	require.NoError(t, err)
	assert.Equal(t, analysis.MethodMixedModel, d.Method)
	assert.True(t, d.RandomSlope)

	p.ObservedSubjects = 19
	d, err = s.Select(p)
	require.NoError(t, err)
	assert.False(t, d.RandomSlope, "below the random slope threshold")
}

func TestRulesOrder(t *testing.T) {
	rules := New(DefaultConfig()).Rules()
	require.NotEmpty(t, rules)
	assert.Equal(t, RuleInsufficientData, rules[0].Name)
	names := make(map[string]bool)
	for _, r := range rules {
		assert.False(t, names[r.Name], "duplicate rule %s", r.Name)
		names[r.Name] = true
	}
}
