// Package roles reads variable-role suggestion documents produced upstream
// (for example by a classification model) and merges them into a dataset
// contract. Nothing is accepted without passing contract validation.
package roles

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"gocompare/domain/variable"
)

// Suggestion is one proposed variable contract with its confidence.
type Suggestion struct {
	variable.Contract
	Confidence float64
}

// Document is a parsed suggestion document.
type Document struct {
	Suggestions    []Suggestion
	TimepointOrder []string
}

// Parse reads a suggestion document. The variable list is found at path
// ("variables" when empty); each entry must carry a name. Unknown fields are
// ignored and role/type names are normalised to lower case.
func Parse(body []byte, path string) (Document, error) {
	if !gjson.ValidBytes(body) {
		return Document{}, fmt.Errorf("suggestion document is not valid JSON")
	}
	if path == "" {
		path = "variables"
	}
	list := gjson.GetBytes(body, path)
	if !list.Exists() || !list.IsArray() {
		return Document{}, fmt.Errorf("suggestion path %q is not an array", path)
	}

	var doc Document
	var parseErr error
	list.ForEach(func(_, item gjson.Result) bool {
		name := strings.TrimSpace(item.Get("name").String())
		if name == "" {
			parseErr = fmt.Errorf("suggestion without a name: %s", item.Raw)
			return false
		}
		conf := 1.0
		if c := item.Get("confidence"); c.Exists() {
			conf = c.Float()
		}
		doc.Suggestions = append(doc.Suggestions, Suggestion{
			Contract: variable.Contract{
				Name:      name,
				Role:      variable.Role(strings.ToLower(item.Get("role").String())),
				DataType:  variable.DataType(strings.ToLower(firstString(item, "data_type", "type"))),
				Timepoint: item.Get("timepoint").String(),
				Subgroup:  item.Get("subgroup").String(),
			},
			Confidence: conf,
		})
		return true
	})
	if parseErr != nil {
		return Document{}, parseErr
	}
	for _, tp := range gjson.GetBytes(body, "timepoint_order").Array() {
		doc.TimepointOrder = append(doc.TimepointOrder, tp.String())
	}
	return doc, nil
}

func firstString(item gjson.Result, keys ...string) string {
	for _, k := range keys {
		if v := item.Get(k); v.Exists() {
			return v.String()
		}
	}
	return ""
}

// MergeReport lists what a merge did.
type MergeReport struct {
	Added   []string
	Filled  []string
	Skipped []string
}

// Merge overlays suggestions on base. Declared variables win: a suggestion
// only fills empty fields of a declared variable or adds an undeclared one.
// Suggestions below minConfidence are skipped. The merged contract is
// validated before it is returned.
func Merge(base variable.DatasetContract, doc Document, minConfidence float64) (variable.DatasetContract, MergeReport, error) {
	merged := variable.DatasetContract{
		Variables:      append([]variable.Contract(nil), base.Variables...),
		TimepointOrder: base.TimepointOrder,
	}
	if len(merged.TimepointOrder) == 0 {
		merged.TimepointOrder = doc.TimepointOrder
	}

	index := make(map[string]int, len(merged.Variables))
	for i, v := range merged.Variables {
		index[v.Name] = i
	}

	var report MergeReport
	for _, s := range doc.Suggestions {
		if s.Confidence < minConfidence {
			report.Skipped = append(report.Skipped, s.Name)
			continue
		}
		i, declared := index[s.Name]
		if !declared {
			index[s.Name] = len(merged.Variables)
			merged.Variables = append(merged.Variables, s.Contract)
			report.Added = append(report.Added, s.Name)
			continue
		}
		v := &merged.Variables[i]
		filled := false
		if v.Role == "" && s.Role != "" {
			v.Role, filled = s.Role, true
		}
		if v.DataType == "" && s.DataType != "" {
			v.DataType, filled = s.DataType, true
		}
		if v.Timepoint == "" && s.Timepoint != "" && v.Role == variable.RoleOutcome {
			v.Timepoint, filled = s.Timepoint, true
		}
		if v.Subgroup == "" && s.Subgroup != "" {
			v.Subgroup, filled = s.Subgroup, true
		}
		if filled {
			report.Filled = append(report.Filled, s.Name)
		}
	}

	if err := merged.Validate(); err != nil {
		return variable.DatasetContract{}, report, err
	}
	return merged, report, nil
}
