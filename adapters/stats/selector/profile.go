package selector

import (
	"gocompare/adapters/stats/descriptive"
	"gocompare/domain/variable"
)

// Design is the comparison structure of a task.
type Design string

const (
	DesignIndependent Design = "independent"
	DesignPaired      Design = "paired"
	DesignRepeated    Design = "repeated"
)

// GroupProfile describes one compared partition. For repeated designs with a
// between factor, N counts subjects observed in the group.
type GroupProfile struct {
	Label      string
	N          int
	NormalityP *float64
}

// Profile is everything the selector needs to know about a task's data.
type Profile struct {
	Design   Design
	DataType variable.DataType
	Groups   []GroupProfile
	// Homogeneity is the Brown–Forsythe result over Groups.
	Homogeneity descriptive.Homogeneity
	// DifferenceNormality holds one p-value per consecutive difference
	// series (a single entry for paired designs). nil entries are
	// indeterminate.
	DifferenceNormality []*float64
	Timepoints          int
	// CompleteSubjects counts subjects observed at every timepoint.
	CompleteSubjects int
	// ObservedSubjects counts subjects observed at least once.
	ObservedSubjects int
	// Levels is the number of distinct categories of a categorical outcome.
	Levels int
}

// HasBetweenFactor reports whether a repeated design also compares groups.
func (p Profile) HasBetweenFactor() bool {
	return p.Design == DesignRepeated && len(p.Groups) >= 2
}

func (p Profile) rankOnly() bool {
	return p.DataType == variable.TypeOrdinal
}
