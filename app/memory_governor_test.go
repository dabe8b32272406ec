package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gocompare/domain/analysis"
	"gocompare/domain/core"
	"gocompare/domain/variable"
	"gocompare/internal/config"
	"gocompare/ports"
)

// subjectsFrame has n subjects with one row each.
func subjectsFrame(t *testing.T, n int) [][]string {
	records := [][]string{{"subject", "arm", "y"}}
	for i := 0; i < n; i++ {
		records = append(records, []string{fmt.Sprintf("s%03d", i), []string{"a", "b"}[i%2], strconv.Itoa(i)})
	}
	return records
}

var governorContract = variable.DatasetContract{Variables: []variable.Contract{
	{Name: "subject", Role: variable.RoleID, DataType: variable.TypeText},
	{Name: "arm", Role: variable.RoleGroup, DataType: variable.TypeCategorical},
	{Name: "y", Role: variable.RoleOutcome, DataType: variable.TypeNumeric},
}}

func limits(full, chunk, ceiling float64, maxSubjects int) config.MemoryConfig {
	return config.MemoryConfig{FullLimit: full, ChunkLimit: chunk, SampledCeiling: ceiling, MaxSampledSubjects: maxSubjects, Seed: 42}
}

func TestMemoryGovernorStrategies(t *testing.T) {
	f := frame(t, subjectsFrame(t, 100))
	ctx := context.Background()

	t.Run("full", func(t *testing.T) {
		plan, err := NewMemoryGovernor(limits(1e5, 1e6, 1e6, 10), 4, quietLogger()).Plan(ctx, f, governorContract, 1)
		require.NoError(t, err)
		assert.Equal(t, analysis.StrategyFull, plan.Execution.Strategy)
		assert.Equal(t, 1e4, plan.Execution.Estimate)
		assert.Equal(t, 100, plan.Execution.Rows)
		assert.Equal(t, 100, plan.Execution.Subjects)
		assert.Equal(t, 4, plan.Execution.Workers)
		assert.Equal(t, 1.0, plan.Execution.SampleFraction)
		assert.False(t, plan.Execution.Sampled)
		assert.Empty(t, plan.Filter)
		assert.True(t, plan.Preload())
	})

	t.Run("chunked", func(t *testing.T) {
		plan, err := NewMemoryGovernor(limits(1e3, 1e5, 1e6, 10), 4, quietLogger()).Plan(ctx, f, governorContract, 1)
		require.NoError(t, err)
		assert.Equal(t, analysis.StrategyChunked, plan.Execution.Strategy)
		assert.Equal(t, 1, plan.Execution.Workers)
		assert.False(t, plan.Preload())
	})

	t.Run("sampled", func(t *testing.T) {
		plan, err := NewMemoryGovernor(limits(1e2, 1e3, 1e4, 20), 4, quietLogger()).Plan(ctx, f, governorContract, 1)
		require.NoError(t, err)
		e := plan.Execution
		assert.Equal(t, analysis.StrategySampled, e.Strategy)
		assert.True(t, e.Sampled)
		assert.Equal(t, 20, e.SampledSubjects)
		assert.InDelta(t, 0.2, e.SampleFraction, 1e-12)
		assert.Equal(t, int64(42), e.Seed)
		require.Len(t, plan.Filter, 1)
		assert.Equal(t, ports.OpIn, plan.Filter[0].Op)
		assert.Equal(t, plan.Subjects, plan.Filter[0].Values)

		n, err := f.RowCount(ctx, plan.Filter...)
		require.NoError(t, err)
		assert.Equal(t, 20, n)
	})

	t.Run("sampled estimate above ceiling", func(t *testing.T) {
		_, err := NewMemoryGovernor(limits(1e2, 1e3, 1e2, 20), 4, quietLogger()).Plan(ctx, f, governorContract, 1)
		assert.True(t, errors.Is(err, core.ErrMemoryExceeded))
	})

	t.Run("sampling rows without subject id", func(t *testing.T) {
		noID := variable.DatasetContract{Variables: governorContract.Variables[1:]}
		plan, err := NewMemoryGovernor(limits(1e2, 1e3, 1e9, 20), 4, quietLogger()).Plan(ctx, f, noID, 1)
		require.NoError(t, err)
		e := plan.Execution
		assert.Equal(t, analysis.StrategySampled, e.Strategy)
		assert.Equal(t, 100, e.Subjects)
		assert.Equal(t, 20, e.SampledSubjects)
		assert.InDelta(t, 0.2, e.SampleFraction, 1e-12)
		assert.Empty(t, plan.Subjects)
		require.Len(t, plan.Filter, 1)
		assert.Equal(t, ports.OpRows, plan.Filter[0].Op)

		n, err := f.RowCount(ctx, plan.Filter...)
		require.NoError(t, err)
		assert.Equal(t, 20, n)

		again, err := NewMemoryGovernor(limits(1e2, 1e3, 1e9, 20), 4, quietLogger()).Plan(ctx, f, noID, 1)
		require.NoError(t, err)
		assert.Equal(t, plan.Filter, again.Filter, "same seed, same rows")
	})

	t.Run("sampled rows above ceiling", func(t *testing.T) {
		noID := variable.DatasetContract{Variables: governorContract.Variables[1:]}
		_, err := NewMemoryGovernor(limits(1e2, 1e3, 1e2, 20), 4, quietLogger()).Plan(ctx, f, noID, 1)
		assert.True(t, errors.Is(err, core.ErrMemoryExceeded))
	})
}

func TestSampleSubjects(t *testing.T) {
	ids := []string{"e", "a", "d", "c", "b", "f", "g", "h"}
	reversed := []string{"h", "g", "f", "e", "d", "c", "b", "a"}

	first := SampleSubjects(ids, 3, 7)
	assert.Len(t, first, 3)
	assert.Equal(t, first, SampleSubjects(reversed, 3, 7), "input order does not matter")
	assert.IsIncreasing(t, first)
	assert.Equal(t, []string{"e", "a", "d", "c", "b", "f", "g", "h"}, ids, "input not modified")

	assert.Len(t, SampleSubjects(ids, 100, 7), len(ids))

	differs := false
	for seed := int64(1); seed < 20 && !differs; seed++ {
		differs = fmt.Sprint(SampleSubjects(ids, 3, seed)) != fmt.Sprint(first)
	}
	assert.True(t, differs, "some seed selects a different subset")
}
