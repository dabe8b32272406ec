// Package testkit generates seeded synthetic datasets for tests and demos.
package testkit

import (
	"fmt"
	"math"
	"math/rand"
	"strconv"

	"gocompare/adapters/excel"
	"gocompare/adapters/memory"
	"gocompare/domain/variable"
	"gocompare/ports"
)

// TrialConfig configures the synthetic longitudinal trial
type TrialConfig struct {
	SubjectsPerArm int      `json:"subjects_per_arm" yaml:"subjects_per_arm"`
	Arms           []string `json:"arms" yaml:"arms"`
	Timepoints     []string `json:"timepoints" yaml:"timepoints"`
	Sites          []string `json:"sites" yaml:"sites"`
	Baseline       float64  `json:"baseline" yaml:"baseline"`
	// Decline is subtracted per timepoint in every arm after the first.
	Decline     float64 `json:"decline" yaml:"decline"`
	NoiseSD     float64 `json:"noise_sd" yaml:"noise_sd"`
	SubjectSD   float64 `json:"subject_sd" yaml:"subject_sd"`
	MissingRate float64 `json:"missing_rate" yaml:"missing_rate"`
	Seed        int64   `json:"seed" yaml:"seed"`
}

// DefaultTrialConfig returns a two-arm, four-visit trial where the treated
// arm declines by 3 units per visit against a flat placebo arm.
func DefaultTrialConfig() TrialConfig {
	return TrialConfig{
		SubjectsPerArm: 30,
		Arms:           []string{"placebo", "treated"},
		Timepoints:     []string{"t0", "t1", "t2", "t3"},
		Sites:          []string{"north", "south"},
		Baseline:       140,
		Decline:        3,
		NoiseSD:        3,
		SubjectSD:      2,
		Seed:           42,
	}
}

// Column names of the generated table.
const (
	ColSubject   = "subject"
	ColArm       = "arm"
	ColSite      = "site"
	ColAge       = "age"
	ColResponder = "responder"
	ColSeverity  = "severity"
	Measure      = "hb"
)

// TrialGenerator generates wide-format trial tables: one row per subject,
// one hb_<timepoint> column per visit.
type TrialGenerator struct {
	config TrialConfig
	rng    *rand.Rand
}

// NewTrialGenerator creates a generator. Equal configs generate equal tables.
func NewTrialGenerator(config TrialConfig) *TrialGenerator {
	return &TrialGenerator{
		config: config,
		rng:    ports.SeededStream("trial", config.Seed),
	}
}

// MeasureColumn names the outcome column of a timepoint.
func MeasureColumn(tp string) string {
	return Measure + "_" + tp
}

// Header returns the table's column names.
func (g *TrialGenerator) Header() []string {
	header := []string{ColSubject, ColArm, ColSite, ColAge, ColResponder, ColSeverity}
	for _, tp := range g.config.Timepoints {
		header = append(header, MeasureColumn(tp))
	}
	return header
}

// Records generates the header-first table.
func (g *TrialGenerator) Records() [][]string {
	records := [][]string{g.Header()}
	for a, arm := range g.config.Arms {
		for s := 0; s < g.config.SubjectsPerArm; s++ {
			records = append(records, g.subjectRow(a, arm, s))
		}
	}
	return records
}

func (g *TrialGenerator) subjectRow(armIndex int, arm string, s int) []string {
	c := g.config
	site := ""
	if len(c.Sites) > 0 {
		site = c.Sites[s%len(c.Sites)]
	}
	age := 30 + g.rng.Intn(40)
	intercept := g.rng.NormFloat64() * c.SubjectSD

	row := []string{
		fmt.Sprintf("%s-%03d", arm, s+1),
		arm,
		site,
		strconv.Itoa(age),
	}

	// Responders are more common in declining arms.
	responder := "no"
	if g.rng.Float64() < 0.3+0.4*float64(armIndex)/math.Max(1, float64(len(c.Arms)-1)) {
		responder = "yes"
	}
	row = append(row, responder, strconv.Itoa(1+g.rng.Intn(4)))

	for t := range c.Timepoints {
		y := c.Baseline + intercept - c.Decline*float64(armIndex*t) + g.rng.NormFloat64()*c.NoiseSD
		if t > 0 && g.rng.Float64() < c.MissingRate {
			row = append(row, "NA")
			continue
		}
		row = append(row, strconv.FormatFloat(math.Round(y*100)/100, 'f', -1, 64))
	}
	return row
}

// Frame generates the table as an in-memory accessor.
func (g *TrialGenerator) Frame() (*memory.Frame, error) {
	return memory.FromRecords(g.Records())
}

// Contract returns the dataset contract describing the generated table.
func (g *TrialGenerator) Contract() variable.DatasetContract {
	vars := []variable.Contract{
		{Name: ColSubject, Role: variable.RoleID, DataType: variable.TypeText},
		{Name: ColArm, Role: variable.RoleGroup, DataType: variable.TypeCategorical},
		{Name: ColSite, Role: variable.RoleSubgroup, DataType: variable.TypeCategorical},
		{Name: ColAge, Role: variable.RoleCovariate, DataType: variable.TypeNumeric},
		{Name: ColResponder, Role: variable.RoleOutcome, DataType: variable.TypeCategorical},
		{Name: ColSeverity, Role: variable.RoleOutcome, DataType: variable.TypeOrdinal},
	}
	for _, tp := range g.config.Timepoints {
		vars = append(vars, variable.Contract{
			Name:      MeasureColumn(tp),
			Role:      variable.RoleOutcome,
			DataType:  variable.TypeNumeric,
			Timepoint: tp,
			Subgroup:  Measure,
		})
	}
	return variable.DatasetContract{Variables: vars, TimepointOrder: g.config.Timepoints}
}

// Export writes the table to path as CSV or XLSX, by extension.
func (g *TrialGenerator) Export(path string) error {
	return excel.WriteRecords(path, g.Records())
}
