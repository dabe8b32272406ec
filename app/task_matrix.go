package app

import (
	"context"
	"sort"

	"gocompare/domain/analysis"
	"gocompare/domain/core"
	"gocompare/domain/variable"
	"gocompare/ports"
)

// BuildTasks generates the unstratified task matrix for a mode, in output
// order. Tasks carry no IDs yet.
func BuildTasks(contract variable.DatasetContract, mode analysis.Mode) ([]analysis.Task, error) {
	group, hasGroup := contract.Group()
	covariates := contract.CovariateNames()

	var tasks []analysis.Task
	switch mode {
	case analysis.ModeAllOutcomesVsGroup:
		if !hasGroup {
			return nil, core.NewInvalidDesignError("mode %s needs a group variable", mode)
		}
		for _, o := range contract.Outcomes() {
			if !o.IsAnalyzable() {
				continue
			}
			tasks = append(tasks, analysis.Task{
				Kind:       analysis.KindOutcome,
				Target:     o.Name,
				Group:      group.Name,
				Covariates: covariates,
			})
		}

	case analysis.ModeTimepointMatrix:
		if !hasGroup {
			return nil, core.NewInvalidDesignError("mode %s needs a group variable", mode)
		}
		for _, f := range contract.Families() {
			for _, m := range f.Members {
				if !m.IsAnalyzable() {
					continue
				}
				tasks = append(tasks, analysis.Task{
					Kind:       analysis.KindTimepoint,
					Target:     m.Name,
					Group:      group.Name,
					Time:       []string{m.Timepoint},
					Covariates: covariates,
				})
			}
		}

	case analysis.ModePairwiseTimepoints:
		for _, f := range repeatedFamilies(contract) {
			for i := 0; i+1 < len(f.Members); i++ {
				a, b := f.Members[i], f.Members[i+1]
				tasks = append(tasks, analysis.Task{
					Kind:    analysis.KindPaired,
					Target:  f.Name,
					Targets: []string{a.Name, b.Name},
					Time:    []string{a.Timepoint, b.Timepoint},
				})
			}
		}

	case analysis.ModeLongitudinal:
		for _, f := range repeatedFamilies(contract) {
			t := analysis.Task{
				Kind:       analysis.KindLongitudinal,
				Target:     f.Name,
				Targets:    f.Columns(),
				Time:       f.Timepoints(),
				Covariates: covariates,
			}
			if hasGroup {
				t.Group = group.Name
			}
			tasks = append(tasks, t)
		}

	default:
		return nil, core.NewInvalidDesignError("unknown mode %q", mode)
	}

	if len(tasks) == 0 {
		return nil, core.NewInvalidDesignError("mode %s yields no tasks for this contract", mode)
	}
	return tasks, nil
}

// repeatedFamilies returns the numeric or ordinal families with at least two
// timepoints.
func repeatedFamilies(contract variable.DatasetContract) []variable.Family {
	var out []variable.Family
	for _, f := range contract.Families() {
		if len(f.Members) < 2 {
			continue
		}
		switch f.DataType() {
		case variable.TypeNumeric, variable.TypeOrdinal:
			out = append(out, f)
		}
	}
	return out
}

// Stratify repeats each group-comparison task once per observed level of
// each subgroup-role variable. Each stratified copy directly follows its
// parent. Levels are read through acc under filter.
func Stratify(ctx context.Context, acc ports.DataAccessor, contract variable.DatasetContract, tasks []analysis.Task, filter []ports.Predicate) ([]analysis.Task, error) {
	stratifiers := contract.ByRole(variable.RoleSubgroup)
	if len(stratifiers) == 0 {
		return tasks, nil
	}

	levels := make(map[string][]string, len(stratifiers))
	for _, s := range stratifiers {
		preds := append(append([]ports.Predicate(nil), filter...), ports.NotMissing(s.Name))
		col, err := acc.Column(ctx, s.Name, preds...)
		if err != nil {
			return nil, err
		}
		levels[s.Name] = distinctSorted(col)
	}

	out := make([]analysis.Task, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t)
		if t.Group == "" {
			continue
		}
		for _, s := range stratifiers {
			for _, level := range levels[s.Name] {
				st := t
				st.Stratum = &analysis.Stratum{Variable: s.Name, Level: level}
				out = append(out, st)
			}
		}
	}
	return out, nil
}

// AssignIDs returns the tasks with deterministic IDs. Duplicate task keys
// are an invalid design.
func AssignIDs(tasks []analysis.Task) ([]analysis.Task, error) {
	out := make([]analysis.Task, len(tasks))
	seen := make(map[core.TaskID]string, len(tasks))
	for i, t := range tasks {
		t = t.WithID()
		if _, dup := seen[t.ID]; dup {
			return nil, core.NewInvalidDesignError("duplicate task %s", t.Label())
		}
		seen[t.ID] = t.Key()
		out[i] = t
	}
	return out, nil
}

// TaskColumns lists the distinct outcome columns the tasks read, in first-use
// order.
func TaskColumns(tasks []analysis.Task) []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range tasks {
		for _, c := range t.Columns() {
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
	}
	return out
}

// distinctSorted returns the distinct non-missing texts of a series in
// natural order.
func distinctSorted(s ports.Series) []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range s.Cells {
		if c.Missing || seen[c.Text] {
			continue
		}
		seen[c.Text] = true
		out = append(out, c.Text)
	}
	sortNatural(out)
	return out
}

func sortNatural(labels []string) {
	order := variable.NewTimepointOrder(nil)
	sort.SliceStable(labels, func(i, j int) bool { return order.Less(labels[i], labels[j]) })
}
