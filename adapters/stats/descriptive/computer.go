// Package descriptive computes per-partition summaries, normality and
// variance homogeneity for the comparison engine.
package descriptive

import (
	"sort"

	"github.com/montanaflynn/stats"

	"gocompare/domain/analysis"
	"gocompare/domain/core"
)

// Partition is one slice of a column: a single group (and optionally a
// single timepoint). Numeric partitions fill Values; categorical ones fill
// Labels. Missing cells are already removed.
type Partition struct {
	Variable  string
	Group     string
	Timepoint string
	Values    []float64
	Labels    []string
}

// Len returns the number of usable observations.
func (p Partition) Len() int {
	if p.Labels != nil {
		return len(p.Labels)
	}
	return len(p.Values)
}

// Computer produces DescriptiveRows. It holds no state.
type Computer struct{}

// NewComputer creates a new descriptive computer
func NewComputer() *Computer {
	return &Computer{}
}

// Summarize describes every non-empty partition in order. It fails with
// ErrInsufficientData when no partition holds any observation.
func (c *Computer) Summarize(parts []Partition) ([]analysis.DescriptiveRow, error) {
	rows := make([]analysis.DescriptiveRow, 0, len(parts))
	for _, p := range parts {
		if p.Len() == 0 {
			continue
		}
		rows = append(rows, c.Describe(p))
	}
	if len(rows) == 0 {
		name := ""
		if len(parts) > 0 {
			name = parts[0].Variable
		}
		return nil, core.NewInsufficientDataError("no usable values for %q", name)
	}
	return rows, nil
}

// Describe computes the summary of a single partition.
func (c *Computer) Describe(p Partition) analysis.DescriptiveRow {
	row := analysis.DescriptiveRow{
		Variable:  p.Variable,
		Group:     p.Group,
		Timepoint: p.Timepoint,
		N:         p.Len(),
	}
	if p.Labels != nil {
		row.Levels = levelCounts(p.Labels)
		return row
	}

	data := p.Values
	if len(data) == 0 {
		return row
	}
	if mean, err := stats.Mean(data); err == nil {
		row.Mean = analysis.Float64(mean)
	}
	if median, err := stats.Median(data); err == nil {
		row.Median = analysis.Float64(median)
	}
	if lo, err := stats.Min(data); err == nil {
		row.Min = analysis.Float64(lo)
	}
	if hi, err := stats.Max(data); err == nil {
		row.Max = analysis.Float64(hi)
	}
	if len(data) >= 2 {
		if sd, err := stats.StandardDeviationSample(data); err == nil {
			row.SD = analysis.Float64(sd)
		}
	}
	if pv, method, ok := Normality(p.Values); ok {
		row.NormalityP = analysis.Float64(pv)
		row.NormalityMethod = method
	}
	return row
}

func levelCounts(labels []string) map[string]int {
	counts := make(map[string]int)
	for _, l := range labels {
		counts[l]++
	}
	return counts
}

// SortedLevels returns the distinct labels of the given rows in sorted order.
func SortedLevels(rows []analysis.DescriptiveRow) []string {
	seen := make(map[string]struct{})
	for _, r := range rows {
		for l := range r.Levels {
			seen[l] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for l := range seen {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}
