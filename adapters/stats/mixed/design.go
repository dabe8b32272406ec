// Package mixed fits linear mixed models of the form
//
//	y ~ C(Time) + C(Group) + C(Time):C(Group) + covariates + (1 [+ time] | subject)
//
// by restricted maximum likelihood.
package mixed

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"gocompare/domain/core"
)

// Observation is one long-format row. Time and Group index into the level
// lists of Data; index 0 is the reference level.
type Observation struct {
	Subject    string
	Time       int
	Group      int
	Y          float64
	Covariates []float64
}

// Data is the long-format input of a fit.
type Data struct {
	Observations   []Observation
	TimeLevels     []string
	GroupLevels    []string
	CovariateNames []string
}

type term struct {
	name        string
	interaction bool
	value       func(o Observation) float64
}

// subjectBlock holds the per-subject design.
type subjectBlock struct {
	x *mat.Dense
	z *mat.Dense
	y *mat.VecDense
}

type design struct {
	terms    []term
	blocks   []subjectBlock
	n        int
	dropped  []string
	subjects int
}

func timeTerm(levels []string, t int) string {
	return fmt.Sprintf("C(Time)[T.%s]", levels[t])
}

func groupTerm(levels []string, g int) string {
	return fmt.Sprintf("C(Group)[T.%s]", levels[g])
}

func indicator(match func(o Observation) bool) func(o Observation) float64 {
	return func(o Observation) float64 {
		if match(o) {
			return 1
		}
		return 0
	}
}

// buildTerms lists the treatment-coded fixed effects in model order.
func buildTerms(d Data) []term {
	terms := []term{{name: "Intercept", value: func(Observation) float64 { return 1 }}}
	for t := 1; t < len(d.TimeLevels); t++ {
		t := t
		terms = append(terms, term{name: timeTerm(d.TimeLevels, t), value: indicator(func(o Observation) bool { return o.Time == t })})
	}
	for g := 1; g < len(d.GroupLevels); g++ {
		g := g
		terms = append(terms, term{name: groupTerm(d.GroupLevels, g), value: indicator(func(o Observation) bool { return o.Group == g })})
	}
	for t := 1; t < len(d.TimeLevels); t++ {
		t := t
		for g := 1; g < len(d.GroupLevels); g++ {
			g := g
			terms = append(terms, term{
				name:        timeTerm(d.TimeLevels, t) + ":" + groupTerm(d.GroupLevels, g),
				interaction: true,
				value:       indicator(func(o Observation) bool { return o.Time == t && o.Group == g }),
			})
		}
	}
	for c, name := range d.CovariateNames {
		c := c
		terms = append(terms, term{name: name, value: func(o Observation) float64 { return o.Covariates[c] }})
	}
	return terms
}

// newDesign builds the per-subject matrices. Fixed-effect columns that are
// zero for every observation (empty cells) are dropped.
func newDesign(d Data, randomSlope bool) (*design, error) {
	if len(d.Observations) == 0 {
		return nil, core.NewInsufficientDataError("no observations")
	}
	all := buildTerms(d)
	var terms []term
	var dropped []string
	for _, t := range all {
		used := false
		for _, o := range d.Observations {
			if t.value(o) != 0 {
				used = true
				break
			}
		}
		if used {
			terms = append(terms, t)
		} else {
			dropped = append(dropped, t.name)
		}
	}

	bySubject := make(map[string][]Observation)
	var order []string
	for _, o := range d.Observations {
		if _, ok := bySubject[o.Subject]; !ok {
			order = append(order, o.Subject)
		}
		bySubject[o.Subject] = append(bySubject[o.Subject], o)
	}
	sort.Strings(order)

	q := 1
	if randomSlope {
		q = 2
	}
	des := &design{terms: terms, n: len(d.Observations), dropped: dropped, subjects: len(order)}
	for _, s := range order {
		obs := bySubject[s]
		x := mat.NewDense(len(obs), len(terms), nil)
		z := mat.NewDense(len(obs), q, nil)
		y := mat.NewVecDense(len(obs), nil)
		for i, o := range obs {
			for j, t := range terms {
				x.Set(i, j, t.value(o))
			}
			z.Set(i, 0, 1)
			if randomSlope {
				z.Set(i, 1, float64(o.Time))
			}
			y.SetVec(i, o.Y)
		}
		des.blocks = append(des.blocks, subjectBlock{x: x, z: z, y: y})
	}
	return des, nil
}

func (d *design) p() int { return len(d.terms) }
