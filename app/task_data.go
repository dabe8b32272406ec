package app

import (
	"context"
	"fmt"

	"gocompare/adapters/stats/descriptive"
	"gocompare/adapters/stats/mixed"
	"gocompare/adapters/stats/selector"
	"gocompare/adapters/stats/tests"
	"gocompare/domain/analysis"
	"gocompare/domain/core"
	"gocompare/domain/variable"
	"gocompare/ports"
)

// TaskData is the materialised slice of one task: what the selector needs
// to decide and what the runner needs to execute.
type TaskData struct {
	Descriptives []analysis.DescriptiveRow
	Profile      selector.Profile
	Input        tests.Input
}

// slicer loads task data through an accessor. It holds no mutable state and
// is shared by all workers.
type slicer struct {
	acc      ports.DataAccessor
	contract variable.DatasetContract
	filter   []ports.Predicate
	computer *descriptive.Computer
}

func newSlicer(acc ports.DataAccessor, contract variable.DatasetContract, filter []ports.Predicate) *slicer {
	return &slicer{acc: acc, contract: contract, filter: filter, computer: descriptive.NewComputer()}
}

// predicates returns the batch filter plus the task's stratum restriction.
func (s *slicer) predicates(t analysis.Task) []ports.Predicate {
	preds := append([]ports.Predicate(nil), s.filter...)
	if t.Stratum != nil {
		preds = append(preds, ports.Eq(t.Stratum.Variable, t.Stratum.Level))
	}
	return preds
}

// Load materialises the task. An error wraps ErrInsufficientData when the
// data holds nothing to describe; rows computed so far are returned with it.
func (s *slicer) Load(ctx context.Context, t analysis.Task) (*TaskData, error) {
	dataType := variable.TypeNumeric
	if c, err := s.contract.Lookup(t.Columns()[0]); err == nil {
		dataType = c.DataType
	}
	if t.IsRepeated() {
		return s.loadRepeated(ctx, t, dataType)
	}
	return s.loadIndependent(ctx, t, dataType)
}

func (s *slicer) column(ctx context.Context, name string, preds []ports.Predicate, rows int) (ports.Series, error) {
	col, err := s.acc.Column(ctx, name, preds...)
	if err != nil {
		return ports.Series{}, err
	}
	if rows >= 0 && col.Len() != rows {
		return ports.Series{}, fmt.Errorf("column %q has %d rows, expected %d", name, col.Len(), rows)
	}
	return col, nil
}

func (s *slicer) loadIndependent(ctx context.Context, t analysis.Task, dataType variable.DataType) (*TaskData, error) {
	preds := s.predicates(t)
	groups, err := s.column(ctx, t.Group, preds, -1)
	if err != nil {
		return nil, err
	}
	values, err := s.column(ctx, t.Target, preds, groups.Len())
	if err != nil {
		return nil, err
	}

	categorical := dataType == variable.TypeCategorical
	numbers := make(map[string][]float64)
	labels := make(map[string][]string)
	seen := make(map[string]bool)
	var levels []string
	for i, g := range groups.Cells {
		v := values.Cells[i]
		if g.Missing || v.Missing || (!categorical && !v.Numeric) {
			continue
		}
		if !seen[g.Text] {
			seen[g.Text] = true
			levels = append(levels, g.Text)
		}
		if categorical {
			labels[g.Text] = append(labels[g.Text], v.Text)
		} else {
			numbers[g.Text] = append(numbers[g.Text], v.Number)
		}
	}
	sortNatural(levels)

	timepoint := ""
	if len(t.Time) > 0 {
		timepoint = t.Time[0]
	}
	parts := make([]descriptive.Partition, len(levels))
	for i, l := range levels {
		parts[i] = descriptive.Partition{Variable: t.Target, Group: l, Timepoint: timepoint}
		if categorical {
			parts[i].Labels = labels[l]
		} else {
			parts[i].Values = numbers[l]
		}
	}
	rows, err := s.computer.Summarize(parts)
	if err != nil {
		return nil, err
	}

	data := &TaskData{
		Descriptives: rows,
		Profile:      selector.Profile{Design: selector.DesignIndependent, DataType: dataType},
	}
	var samples [][]float64
	for i, r := range rows {
		data.Profile.Groups = append(data.Profile.Groups, selector.GroupProfile{Label: r.Group, N: r.N, NormalityP: r.NormalityP})
		if categorical {
			data.Input.Categories = append(data.Input.Categories, tests.CategorySample{Label: r.Group, Labels: parts[i].Labels})
			continue
		}
		samples = append(samples, parts[i].Values)
		data.Input.Groups = append(data.Input.Groups, tests.Sample{Label: r.Group, Values: parts[i].Values})
	}
	if categorical {
		data.Profile.Levels = len(descriptive.SortedLevels(rows))
	} else {
		data.Profile.Homogeneity = descriptive.BrownForsythe(samples)
	}
	return data, nil
}

// subjectRow is one subject's aligned measurements across the task's
// timepoints. value[j] is valid only when ok[j].
type subjectRow struct {
	subject    string
	group      string
	value      []float64
	ok         []bool
	covariates []float64
	hasCov     bool
}

func (r subjectRow) complete() bool {
	for _, ok := range r.ok {
		if !ok {
			return false
		}
	}
	return true
}

func (r subjectRow) observed() bool {
	for _, ok := range r.ok {
		if ok {
			return true
		}
	}
	return false
}

func (s *slicer) loadRepeated(ctx context.Context, t analysis.Task, dataType variable.DataType) (*TaskData, error) {
	preds := s.predicates(t)
	cols := t.Columns()
	if len(cols) != len(t.Time) {
		return nil, core.NewInvalidDesignError("task %s has %d columns for %d timepoints", t.Label(), len(cols), len(t.Time))
	}

	series := make([]ports.Series, len(cols))
	n := -1
	for j, c := range cols {
		col, err := s.column(ctx, c, preds, n)
		if err != nil {
			return nil, err
		}
		series[j], n = col, col.Len()
	}

	var ids, groups ports.Series
	if id, ok := s.contract.SubjectID(); ok {
		col, err := s.column(ctx, id.Name, preds, n)
		if err != nil {
			return nil, err
		}
		ids = col
	}
	if t.Group != "" {
		col, err := s.column(ctx, t.Group, preds, n)
		if err != nil {
			return nil, err
		}
		groups = col
	}
	covSeries := make([]ports.Series, len(t.Covariates))
	for k, c := range t.Covariates {
		col, err := s.column(ctx, c, preds, n)
		if err != nil {
			return nil, err
		}
		covSeries[k] = col
	}

	subjects := make([]subjectRow, 0, n)
	for i := 0; i < n; i++ {
		row := subjectRow{subject: fmt.Sprintf("row-%d", i+1), value: make([]float64, len(cols)), ok: make([]bool, len(cols))}
		if ids.Cells != nil {
			if ids.Cells[i].Missing {
				continue
			}
			row.subject = ids.Cells[i].Text
		}
		if groups.Cells != nil {
			if groups.Cells[i].Missing {
				continue
			}
			row.group = groups.Cells[i].Text
		}
		for j := range cols {
			if c := series[j].Cells[i]; c.Numeric {
				row.value[j], row.ok[j] = c.Number, true
			}
		}
		row.hasCov = true
		for k := range covSeries {
			c := covSeries[k].Cells[i]
			if !c.Numeric {
				row.hasCov = false
				break
			}
			row.covariates = append(row.covariates, c.Number)
		}
		subjects = append(subjects, row)
	}

	return s.buildRepeated(t, dataType, subjects)
}

func (s *slicer) buildRepeated(t analysis.Task, dataType variable.DataType, subjects []subjectRow) (*TaskData, error) {
	k := len(t.Time)

	var levels []string
	seen := make(map[string]bool)
	for _, r := range subjects {
		if t.Group != "" && r.observed() && !seen[r.group] {
			seen[r.group] = true
			levels = append(levels, r.group)
		}
	}
	sortNatural(levels)
	if t.Group == "" {
		levels = []string{""}
	}

	// Descriptives per timepoint × group.
	var parts []descriptive.Partition
	for j, tp := range t.Time {
		for _, l := range levels {
			p := descriptive.Partition{Variable: t.Columns()[j], Group: l, Timepoint: tp, Values: []float64{}}
			for _, r := range subjects {
				if r.group == l && r.ok[j] {
					p.Values = append(p.Values, r.value[j])
				}
			}
			parts = append(parts, p)
		}
	}
	rows, err := s.computer.Summarize(parts)
	if err != nil {
		return nil, err
	}

	design := selector.DesignRepeated
	if k == 2 {
		design = selector.DesignPaired
	}
	data := &TaskData{
		Descriptives: rows,
		Profile:      selector.Profile{Design: design, DataType: dataType, Timepoints: k},
		Input:        tests.Input{Timepoints: t.Time},
	}

	observedByGroup := make(map[string]int)
	for _, r := range subjects {
		if r.observed() {
			data.Profile.ObservedSubjects++
			observedByGroup[r.group]++
		}
		if r.complete() {
			data.Input.Repeated = append(data.Input.Repeated, append([]float64(nil), r.value...))
		}
	}
	data.Profile.CompleteSubjects = len(data.Input.Repeated)

	for j := 0; j+1 < k; j++ {
		before := make([]float64, len(data.Input.Repeated))
		after := make([]float64, len(data.Input.Repeated))
		for i, r := range data.Input.Repeated {
			before[i], after[i] = r[j], r[j+1]
		}
		var pv *float64
		if p, _, ok := descriptive.Normality(tests.Differences(before, after)); ok {
			pv = analysis.Float64(p)
		}
		data.Profile.DifferenceNormality = append(data.Profile.DifferenceNormality, pv)
	}

	if design == selector.DesignRepeated && t.Group != "" {
		for _, l := range levels {
			data.Profile.Groups = append(data.Profile.Groups, selector.GroupProfile{Label: l, N: observedByGroup[l]})
		}
		if len(levels) >= 2 {
			data.Input.Long = longFormat(t, levels, subjects)
		}
	}
	return data, nil
}

// longFormat expands observed cells into mixed-model observations. Subjects
// with a missing covariate are left out.
func longFormat(t analysis.Task, levels []string, subjects []subjectRow) *mixed.Data {
	groupIndex := make(map[string]int, len(levels))
	for i, l := range levels {
		groupIndex[l] = i
	}
	d := &mixed.Data{TimeLevels: t.Time, GroupLevels: levels, CovariateNames: t.Covariates}
	for _, r := range subjects {
		if !r.hasCov {
			continue
		}
		for j := range t.Time {
			if !r.ok[j] {
				continue
			}
			d.Observations = append(d.Observations, mixed.Observation{
				Subject:    r.subject,
				Time:       j,
				Group:      groupIndex[r.group],
				Y:          r.value[j],
				Covariates: r.covariates,
			})
		}
	}
	return d
}

// constantResponse reports whether every observation has the same outcome.
func constantResponse(d *mixed.Data) bool {
	if d == nil || len(d.Observations) == 0 {
		return true
	}
	first := d.Observations[0].Y
	for _, o := range d.Observations[1:] {
		if o.Y != first {
			return false
		}
	}
	return true
}
