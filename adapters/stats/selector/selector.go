// Package selector chooses the statistical test for a task from an ordered
// list of named rules. The first rule whose precondition holds wins.
package selector

import (
	"fmt"

	"gocompare/domain/analysis"
	"gocompare/domain/core"
	"gocompare/domain/variable"
)

// Rule names, exported so results can be traced back to the rule that fired.
const (
	RuleInsufficientData = "insufficient-data"
	RuleChiSquare        = "categorical-independence"
	RuleStudentT         = "two-groups-normal-equal-variance"
	RuleWelchT           = "two-groups-normal-unequal-variance"
	RuleMannWhitney      = "two-groups-non-normal"
	RuleANOVA            = "many-groups-normal-equal-variance"
	RuleKruskalWallis    = "many-groups-otherwise"
	RulePairedT          = "paired-normal-differences"
	RuleWilcoxon         = "paired-non-normal-differences"
	RuleMixedModel       = "repeated-with-between-factor"
	RuleRMANOVA          = "repeated-normal-differences"
	RuleFriedman         = "repeated-non-normal-differences"
)

// Rule is one entry of the selection table.
type Rule struct {
	Name   string
	Method analysis.Method
	When   func(s *Selector, p Profile) bool
	Reason string
}

// Config holds the thresholds used by the rule predicates.
type Config struct {
	NormalityAlpha         float64
	VarianceAlpha          float64
	RandomSlopeMinSubjects int
}

// DefaultConfig returns the conventional thresholds.
func DefaultConfig() Config {
	return Config{NormalityAlpha: 0.05, VarianceAlpha: 0.05, RandomSlopeMinSubjects: 12}
}

// Selector evaluates the rule table against a profile.
type Selector struct {
	cfg   Config
	rules []Rule
}

// New creates a selector with the standard rule table.
func New(cfg Config) *Selector {
	return &Selector{cfg: cfg, rules: defaultRules()}
}

// Rules returns the rule table in evaluation order.
func (s *Selector) Rules() []Rule {
	out := make([]Rule, len(s.rules))
	copy(out, s.rules)
	return out
}

// Select returns the decision for the profile. When the data cannot support
// any test the decision names MethodUndetermined and the error wraps
// ErrInsufficientData.
func (s *Selector) Select(p Profile) (analysis.Decision, error) {
	for _, r := range s.rules {
		if !r.When(s, p) {
			continue
		}
		d := analysis.Decision{Method: r.Method, Rule: r.Name, Reason: r.Reason}
		if r.Method == analysis.MethodUndetermined {
			return d, core.NewInsufficientDataError("%s", insufficientReason(p))
		}
		if r.Method == analysis.MethodMixedModel {
			d.RandomSlope = p.ObservedSubjects >= s.cfg.RandomSlopeMinSubjects
		}
		return d, nil
	}
	return analysis.Decision{Method: analysis.MethodUndetermined, Rule: RuleInsufficientData},
		core.NewInvalidDesignError("no selection rule matches design %q with %d groups", p.Design, len(p.Groups))
}

func defaultRules() []Rule {
	return []Rule{
		{RuleInsufficientData, analysis.MethodUndetermined, (*Selector).insufficient, "too few usable observations"},
		{RuleChiSquare, analysis.MethodChiSquare, func(s *Selector, p Profile) bool {
			return p.Design == DesignIndependent && p.DataType == variable.TypeCategorical
		}, "categorical outcome across independent groups"},
		{RuleStudentT, analysis.MethodStudentT, func(s *Selector, p Profile) bool {
			return s.independent(p, 2) && s.allNormal(p) && s.homogeneous(p)
		}, "two groups, both normal, equal variances"},
		{RuleWelchT, analysis.MethodWelchT, func(s *Selector, p Profile) bool {
			return s.independent(p, 2) && s.allNormal(p)
		}, "two groups, both normal, unequal variances"},
		{RuleMannWhitney, analysis.MethodMannWhitney, func(s *Selector, p Profile) bool {
			return s.independent(p, 2)
		}, "two groups, normality not established"},
		{RuleANOVA, analysis.MethodANOVA, func(s *Selector, p Profile) bool {
			return s.independentMany(p) && s.allNormal(p) && s.homogeneous(p)
		}, "three or more groups, all normal, equal variances"},
		{RuleKruskalWallis, analysis.MethodKruskalWallis, func(s *Selector, p Profile) bool {
			return s.independentMany(p)
		}, "three or more groups, normality or homogeneity not established"},
		{RulePairedT, analysis.MethodPairedT, func(s *Selector, p Profile) bool {
			return p.Design == DesignPaired && s.differencesNormal(p)
		}, "paired measurements with normal differences"},
		{RuleWilcoxon, analysis.MethodWilcoxon, func(s *Selector, p Profile) bool {
			return p.Design == DesignPaired
		}, "paired measurements, difference normality not established"},
		{RuleMixedModel, analysis.MethodMixedModel, func(s *Selector, p Profile) bool {
			return p.HasBetweenFactor() && p.Timepoints >= 3
		}, "repeated measurements with a between-subjects factor"},
		{RuleRMANOVA, analysis.MethodRMANOVA, func(s *Selector, p Profile) bool {
			return p.Design == DesignRepeated && p.Timepoints >= 3 && s.differencesNormal(p)
		}, "repeated measurements with normal consecutive differences"},
		{RuleFriedman, analysis.MethodFriedman, func(s *Selector, p Profile) bool {
			return p.Design == DesignRepeated && p.Timepoints >= 3
		}, "repeated measurements, difference normality not established"},
	}
}

func (s *Selector) insufficient(p Profile) bool {
	switch p.Design {
	case DesignIndependent:
		if len(p.Groups) < 2 {
			return true
		}
		for _, g := range p.Groups {
			if g.N < 2 {
				return true
			}
		}
		return p.DataType == variable.TypeCategorical && p.Levels < 2
	case DesignPaired:
		return p.CompleteSubjects < 2
	case DesignRepeated:
		if p.HasBetweenFactor() {
			for _, g := range p.Groups {
				if g.N < 2 {
					return true
				}
			}
			return false
		}
		return p.CompleteSubjects < 2
	}
	return false
}

func (s *Selector) independent(p Profile, groups int) bool {
	return p.Design == DesignIndependent && len(p.Groups) == groups
}

func (s *Selector) independentMany(p Profile) bool {
	return p.Design == DesignIndependent && len(p.Groups) >= 3
}

func (s *Selector) normal(pv *float64) bool {
	return pv != nil && *pv >= s.cfg.NormalityAlpha
}

func (s *Selector) allNormal(p Profile) bool {
	if p.rankOnly() {
		return false
	}
	for _, g := range p.Groups {
		if !s.normal(g.NormalityP) {
			return false
		}
	}
	return true
}

func (s *Selector) homogeneous(p Profile) bool {
	return p.Homogeneity.Homogeneous(s.cfg.VarianceAlpha)
}

func (s *Selector) differencesNormal(p Profile) bool {
	if p.rankOnly() || len(p.DifferenceNormality) == 0 {
		return false
	}
	for _, pv := range p.DifferenceNormality {
		if !s.normal(pv) {
			return false
		}
	}
	return true
}

func insufficientReason(p Profile) string {
	switch p.Design {
	case DesignIndependent:
		if len(p.Groups) < 2 {
			return fmt.Sprintf("%d group(s) with data, need at least 2", len(p.Groups))
		}
		for _, g := range p.Groups {
			if g.N < 2 {
				return fmt.Sprintf("group %q has %d usable observation(s)", g.Label, g.N)
			}
		}
		return fmt.Sprintf("categorical outcome has %d level(s)", p.Levels)
	case DesignRepeated:
		for _, g := range p.Groups {
			if g.N < 2 {
				return fmt.Sprintf("group %q has %d observed subject(s)", g.Label, g.N)
			}
		}
	}
	return fmt.Sprintf("%d complete subject(s), need at least 2", p.CompleteSubjects)
}
