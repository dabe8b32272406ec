// Package tests executes the statistical procedure chosen by the selector.
package tests

import (
	"context"
	"fmt"

	"gocompare/adapters/stats/dist"
	"gocompare/adapters/stats/mixed"
	"gocompare/domain/analysis"
	"gocompare/domain/core"
)

// Sample is the numeric data of one compared group.
type Sample struct {
	Label  string
	Values []float64
}

// CategorySample is the categorical data of one compared group.
type CategorySample struct {
	Label  string
	Labels []string
}

// Input carries the data shapes the procedures consume. Only the shape
// matching the decision has to be filled.
type Input struct {
	Groups     []Sample
	Categories []CategorySample
	// Repeated holds complete subjects (rows) × ordered timepoints.
	Repeated   [][]float64
	Timepoints []string
	Long       *mixed.Data
}

// Runner executes decisions.
type Runner struct {
	mixedIterations int
}

// NewRunner creates a runner. maxIterations bounds the mixed-model optimiser.
func NewRunner(maxIterations int) *Runner {
	return &Runner{mixedIterations: maxIterations}
}

// Run executes the decision's method on in.
func (r *Runner) Run(ctx context.Context, d analysis.Decision, in Input) (analysis.TestResult, error) {
	var (
		res analysis.TestResult
		err error
	)
	switch d.Method {
	case analysis.MethodStudentT, analysis.MethodWelchT, analysis.MethodMannWhitney:
		if len(in.Groups) != 2 {
			return res, core.NewInvalidDesignError("%s needs 2 groups, got %d", d.Method, len(in.Groups))
		}
		a, b := in.Groups[0].Values, in.Groups[1].Values
		switch d.Method {
		case analysis.MethodStudentT:
			res, err = StudentT(a, b)
		case analysis.MethodWelchT:
			res, err = WelchT(a, b)
		default:
			res, err = MannWhitney(a, b)
		}
		res.GroupsCompared = sampleLabels(in.Groups)
	case analysis.MethodANOVA, analysis.MethodKruskalWallis:
		values := make([][]float64, len(in.Groups))
		for i, g := range in.Groups {
			values[i] = g.Values
		}
		if d.Method == analysis.MethodANOVA {
			res, err = OneWayANOVA(values)
		} else {
			res, err = KruskalWallis(values)
		}
		res.GroupsCompared = sampleLabels(in.Groups)
	case analysis.MethodPairedT, analysis.MethodWilcoxon:
		before, after := columns(in.Repeated, 0), columns(in.Repeated, 1)
		if d.Method == analysis.MethodPairedT {
			res, err = PairedT(before, after)
		} else {
			res, err = WilcoxonSignedRank(before, after)
		}
		res.GroupsCompared = in.Timepoints
	case analysis.MethodRMANOVA, analysis.MethodFriedman:
		if len(in.Repeated) == 0 {
			return res, core.NewInsufficientDataError("no complete subjects")
		}
		if d.Method == analysis.MethodRMANOVA {
			res, err = RepeatedANOVA(in.Repeated)
		} else {
			res, err = Friedman(in.Repeated)
		}
		res.GroupsCompared = in.Timepoints
	case analysis.MethodChiSquare:
		res, err = ChiSquareIndependence(contingency(in.Categories))
		labels := make([]string, len(in.Categories))
		for i, c := range in.Categories {
			labels[i] = c.Label
		}
		res.GroupsCompared = labels
	case analysis.MethodMixedModel:
		res, err = r.runMixed(ctx, d, in)
	default:
		return res, core.NewInsufficientDataError("no test for method %q", d.Method)
	}
	if err != nil {
		return analysis.TestResult{}, err
	}
	res.PValue = dist.ClampP(res.PValue)
	return res, nil
}

func (r *Runner) runMixed(ctx context.Context, d analysis.Decision, in Input) (analysis.TestResult, error) {
	if in.Long == nil {
		return analysis.TestResult{}, core.NewInsufficientDataError("no long-format data")
	}
	fit, err := mixed.Fit(ctx, *in.Long, mixed.Options{RandomSlope: d.RandomSlope, MaxIterations: r.mixedIterations})
	if err != nil {
		return analysis.TestResult{}, err
	}
	diag := fit.Diagnostics
	return analysis.TestResult{
		Method:         analysis.MethodMixedModel,
		Statistic:      fit.Statistic,
		PValue:         fit.P,
		GroupsCompared: in.Long.GroupLevels,
		N:              diag.Observations,
		Model:          &diag,
		Diagnostics: map[string]float64{
			"joint_wald_chi2": diag.JointWaldChi2,
			"joint_wald_p":    diag.JointWaldP,
		},
		Warnings: fit.Warnings,
	}, nil
}

func sampleLabels(groups []Sample) []string {
	out := make([]string, len(groups))
	for i, g := range groups {
		out[i] = g.Label
	}
	return out
}

func columns(rows [][]float64, j int) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = r[j]
	}
	return out
}

// contingency tabulates groups × sorted levels, dropping empty columns.
func contingency(cats []CategorySample) [][]float64 {
	index := make(map[string]int)
	var levels []string
	for _, c := range cats {
		for _, l := range c.Labels {
			if _, ok := index[l]; !ok {
				index[l] = len(levels)
				levels = append(levels, l)
			}
		}
	}
	table := make([][]float64, len(cats))
	for i, c := range cats {
		table[i] = make([]float64, len(levels))
		for _, l := range c.Labels {
			table[i][index[l]]++
		}
	}
	return table
}

// String renders a compact result line for logs.
func String(res analysis.TestResult) string {
	return fmt.Sprintf("%s stat=%.4g p=%.4g n=%d", res.Method, res.Statistic, res.PValue, res.N)
}
