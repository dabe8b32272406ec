package variable

import (
	"fmt"
	"sort"
	"strings"

	"gocompare/domain/core"
)

// Role is the analytical role a variable plays in a dataset.
type Role string

const (
	RoleID        Role = "id"
	RoleGroup     Role = "group"
	RoleSubgroup  Role = "subgroup"
	RoleCovariate Role = "covariate"
	RoleOutcome   Role = "outcome"
	RoleExclude   Role = "exclude"
)

// DataType is the measurement type of a variable.
type DataType string

const (
	TypeNumeric     DataType = "numeric"
	TypeCategorical DataType = "categorical"
	TypeOrdinal     DataType = "ordinal"
	TypeDate        DataType = "date"
	TypeText        DataType = "text"
)

// Contract describes one variable. It is a value type and never mutated
// after validation.
type Contract struct {
	Name      string   `json:"name" yaml:"name"`
	Role      Role     `json:"role" yaml:"role"`
	DataType  DataType `json:"data_type" yaml:"data_type"`
	Timepoint string   `json:"timepoint,omitempty" yaml:"timepoint,omitempty"`
	Subgroup  string   `json:"subgroup,omitempty" yaml:"subgroup,omitempty"`
}

// HasTimepoint reports whether the variable is tagged with a timepoint.
func (c Contract) HasTimepoint() bool {
	return c.Timepoint != ""
}

// Family returns the logical measure the variable belongs to: the subgroup
// tag when present, otherwise the variable's own name.
func (c Contract) Family() string {
	if c.Subgroup != "" {
		return c.Subgroup
	}
	return c.Name
}

// IsAnalyzable reports whether the data type can feed a hypothesis test.
func (c Contract) IsAnalyzable() bool {
	switch c.DataType {
	case TypeNumeric, TypeOrdinal, TypeCategorical:
		return true
	}
	return false
}

var validRoles = map[Role]bool{
	RoleID: true, RoleGroup: true, RoleSubgroup: true,
	RoleCovariate: true, RoleOutcome: true, RoleExclude: true,
}

var validTypes = map[DataType]bool{
	TypeNumeric: true, TypeCategorical: true, TypeOrdinal: true,
	TypeDate: true, TypeText: true,
}

// DatasetContract is the full set of variable contracts for one dataset.
type DatasetContract struct {
	Variables []Contract `json:"variables" yaml:"variables"`

	// TimepointOrder fixes the order of timepoint labels. Labels not listed
	// sort after the listed ones in natural order.
	TimepointOrder []string `json:"timepoint_order,omitempty" yaml:"timepoint_order,omitempty"`
}

// Validate checks the contract invariants. Every violation is reported as
// core.ErrInvalidDesign.
func (d DatasetContract) Validate() error {
	if len(d.Variables) == 0 {
		return core.NewInvalidDesignError("contract has no variables")
	}

	seen := make(map[string]bool, len(d.Variables))
	var groups, ids []string
	outcomes := 0

	for _, v := range d.Variables {
		name := strings.TrimSpace(v.Name)
		if name == "" {
			return core.NewInvalidDesignError("variable with empty name")
		}
		if seen[name] {
			return core.NewInvalidDesignError("duplicate variable %q", name)
		}
		seen[name] = true

		if !validRoles[v.Role] {
			return core.NewInvalidDesignError("variable %q has unknown role %q", name, v.Role)
		}
		if !validTypes[v.DataType] {
			return core.NewInvalidDesignError("variable %q has unknown data type %q", name, v.DataType)
		}
		if v.Timepoint != "" && v.Role != RoleOutcome {
			return core.NewInvalidDesignError("variable %q: timepoint is only meaningful for outcomes (role %q)", name, v.Role)
		}

		switch v.Role {
		case RoleGroup:
			groups = append(groups, name)
		case RoleID:
			ids = append(ids, name)
		case RoleOutcome:
			outcomes++
		}
	}

	if len(groups) > 1 {
		return core.NewInvalidDesignError("more than one primary group variable: %s", strings.Join(groups, ", "))
	}
	if len(ids) > 1 {
		return core.NewInvalidDesignError("more than one subject id variable: %s", strings.Join(ids, ", "))
	}
	if outcomes == 0 {
		return core.NewInvalidDesignError("contract declares no outcome variables")
	}

	// Within a family each timepoint may appear once, and every member
	// shares one data type.
	type slot struct{ family, tp string }
	slots := make(map[slot]string)
	first := make(map[string]Contract)
	for _, v := range d.Variables {
		if v.Role != RoleOutcome || v.Timepoint == "" {
			continue
		}
		if f, ok := first[v.Family()]; !ok {
			first[v.Family()] = v
		} else if f.DataType != v.DataType {
			return core.NewInvalidDesignError("subgroup %q mixes data types: %q is %s, %q is %s", v.Family(), f.Name, f.DataType, v.Name, v.DataType)
		}
		key := slot{v.Family(), v.Timepoint}
		if other, ok := slots[key]; ok {
			return core.NewInvalidDesignError("variables %q and %q share timepoint %q in subgroup %q", other, v.Name, v.Timepoint, v.Family())
		}
		slots[key] = v.Name
	}

	return nil
}

// Lookup returns the contract with the given name.
func (d DatasetContract) Lookup(name string) (Contract, error) {
	for _, v := range d.Variables {
		if v.Name == name {
			return v, nil
		}
	}
	return Contract{}, core.NewVariableNotFoundError(name)
}

// ByRole returns the variables holding a role, in declaration order.
func (d DatasetContract) ByRole(role Role) []Contract {
	var out []Contract
	for _, v := range d.Variables {
		if v.Role == role {
			out = append(out, v)
		}
	}
	return out
}

// Group returns the primary grouping variable, if any.
func (d DatasetContract) Group() (Contract, bool) {
	g := d.ByRole(RoleGroup)
	if len(g) == 0 {
		return Contract{}, false
	}
	return g[0], true
}

// SubjectID returns the subject identifier variable, if any.
func (d DatasetContract) SubjectID() (Contract, bool) {
	ids := d.ByRole(RoleID)
	if len(ids) == 0 {
		return Contract{}, false
	}
	return ids[0], true
}

// Outcomes returns all outcome variables in declaration order.
func (d DatasetContract) Outcomes() []Contract {
	return d.ByRole(RoleOutcome)
}

// CovariateNames returns the names of numeric covariates.
func (d DatasetContract) CovariateNames() []string {
	var out []string
	for _, v := range d.ByRole(RoleCovariate) {
		if v.DataType == TypeNumeric {
			out = append(out, v.Name)
		}
	}
	return out
}

// Families groups timepoint-tagged outcomes by subgroup tag. Each family's
// members are sorted by timepoint; families are returned sorted by name.
func (d DatasetContract) Families() []Family {
	byName := make(map[string][]Contract)
	for _, v := range d.Outcomes() {
		if !v.HasTimepoint() {
			continue
		}
		byName[v.Family()] = append(byName[v.Family()], v)
	}

	order := NewTimepointOrder(d.TimepointOrder)
	families := make([]Family, 0, len(byName))
	for name, members := range byName {
		sort.SliceStable(members, func(i, j int) bool {
			return order.Less(members[i].Timepoint, members[j].Timepoint)
		})
		families = append(families, Family{Name: name, Members: members})
	}
	sort.Slice(families, func(i, j int) bool { return families[i].Name < families[j].Name })
	return families
}

// Family is a logical measure observed at several timepoints.
type Family struct {
	Name    string
	Members []Contract
}

// Timepoints returns the ordered timepoint labels of the family.
func (f Family) Timepoints() []string {
	out := make([]string, len(f.Members))
	for i, m := range f.Members {
		out[i] = m.Timepoint
	}
	return out
}

// Columns returns the ordered column names of the family.
func (f Family) Columns() []string {
	out := make([]string, len(f.Members))
	for i, m := range f.Members {
		out[i] = m.Name
	}
	return out
}

// DataType returns the data type shared by the family's members.
func (f Family) DataType() DataType {
	if len(f.Members) == 0 {
		return ""
	}
	return f.Members[0].DataType
}

func (f Family) String() string {
	return fmt.Sprintf("%s[%s]", f.Name, strings.Join(f.Timepoints(), ","))
}
