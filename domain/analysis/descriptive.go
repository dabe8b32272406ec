package analysis

// DescriptiveRow summarises one (variable, group[, timepoint]) partition.
// SD is nil when n < 2 and NormalityP is nil when normality is indeterminate.
type DescriptiveRow struct {
	Variable        string         `json:"variable"`
	Group           string         `json:"group,omitempty"`
	Timepoint       string         `json:"timepoint,omitempty"`
	N               int            `json:"n"`
	Mean            *float64       `json:"mean,omitempty"`
	SD              *float64       `json:"sd"`
	Median          *float64       `json:"median,omitempty"`
	Min             *float64       `json:"min,omitempty"`
	Max             *float64       `json:"max,omitempty"`
	NormalityP      *float64       `json:"normality_p"`
	NormalityMethod string         `json:"normality_method,omitempty"`
	Levels          map[string]int `json:"levels,omitempty"`
}

// IsNormal reports whether the partition passed a normality test at alpha.
// Indeterminate normality is never treated as normal.
func (r DescriptiveRow) IsNormal(alpha float64) bool {
	return r.NormalityP != nil && *r.NormalityP >= alpha
}

// Variance returns SD² or 0 when SD is undefined.
func (r DescriptiveRow) Variance() float64 {
	if r.SD == nil {
		return 0
	}
	return *r.SD * *r.SD
}
