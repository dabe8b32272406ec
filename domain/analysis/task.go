package analysis

import (
	"strings"

	"gocompare/domain/core"
)

// Mode selects how the task matrix is generated from a dataset contract.
type Mode string

const (
	ModeAllOutcomesVsGroup Mode = "all-outcomes-vs-group"
	ModeTimepointMatrix    Mode = "timepoint-matrix"
	ModePairwiseTimepoints Mode = "pairwise-timepoints"
	ModeLongitudinal       Mode = "longitudinal"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.TrimSpace(s)); m {
	case ModeAllOutcomesVsGroup, ModeTimepointMatrix, ModePairwiseTimepoints, ModeLongitudinal:
		return m, nil
	}
	return "", core.NewInvalidDesignError("unknown mode %q", s)
}

// TaskKind describes the data shape a task compares.
type TaskKind string

const (
	KindOutcome      TaskKind = "outcome"      // one column across independent groups
	KindTimepoint    TaskKind = "timepoint"    // one timepoint column across independent groups
	KindPaired       TaskKind = "paired"       // two timepoint columns on the same subjects
	KindLongitudinal TaskKind = "longitudinal" // two or more timepoint columns, optional between factor
)

// Stratum restricts a task to one level of a subgroup-role variable.
type Stratum struct {
	Variable string `json:"variable"`
	Level    string `json:"level"`
}

// Task is one unit of comparison work. Created by the orchestrator,
// consumed once, never mutated.
type Task struct {
	ID         core.TaskID `json:"id"`
	Kind       TaskKind    `json:"kind"`
	Target     string      `json:"target"`
	Targets    []string    `json:"targets,omitempty"`
	Group      string      `json:"group,omitempty"`
	Time       []string    `json:"time,omitempty"`
	Covariates []string    `json:"covariates,omitempty"`
	Stratum    *Stratum    `json:"stratum,omitempty"`
}

// Key is the canonical identity string of the task.
func (t Task) Key() string {
	parts := []string{string(t.Kind), t.Target, strings.Join(t.Targets, ","), t.Group, strings.Join(t.Time, ",")}
	if t.Stratum != nil {
		parts = append(parts, t.Stratum.Variable+"="+t.Stratum.Level)
	}
	return strings.Join(parts, "|")
}

// Label is the human-readable target for progress reporting.
func (t Task) Label() string {
	label := t.Target
	if len(t.Time) > 0 {
		label += "@" + strings.Join(t.Time, "→")
	}
	if t.Stratum != nil {
		label += " [" + t.Stratum.Variable + "=" + t.Stratum.Level + "]"
	}
	return label
}

// Columns returns the outcome columns the task reads.
func (t Task) Columns() []string {
	if len(t.Targets) > 0 {
		return t.Targets
	}
	return []string{t.Target}
}

// IsRepeated reports whether the task compares measurements on the same subjects.
func (t Task) IsRepeated() bool {
	return t.Kind == KindPaired || t.Kind == KindLongitudinal
}

// WithID returns a copy carrying the deterministic ID derived from its key.
func (t Task) WithID() Task {
	t.ID = core.TaskID(core.DeriveID("task", t.Key()))
	return t
}
