package ports

import (
	"context"
	"math"
	"sort"
	"strconv"
	"strings"
)

// PredicateOp is a row filter operator.
type PredicateOp string

const (
	OpEq         PredicateOp = "eq"
	OpIn         PredicateOp = "in"
	OpNotMissing PredicateOp = "not_missing"
	// OpRows selects rows by 1-based position in the accessor's row order.
	// Column is ignored.
	OpRows PredicateOp = "rows"
)

// Predicate filters rows by the value of one column.
type Predicate struct {
	Column string
	Op     PredicateOp
	Values []string
}

// Eq matches rows whose column equals value.
func Eq(column, value string) Predicate {
	return Predicate{Column: column, Op: OpEq, Values: []string{value}}
}

// In matches rows whose column is one of values.
func In(column string, values []string) Predicate {
	return Predicate{Column: column, Op: OpIn, Values: values}
}

// NotMissing matches rows where column is present.
func NotMissing(column string) Predicate {
	return Predicate{Column: column, Op: OpNotMissing}
}

// Rows matches the rows at the given 1-based positions.
func Rows(positions []int) Predicate {
	values := make([]string, len(positions))
	for i, p := range positions {
		values[i] = strconv.Itoa(p)
	}
	return Predicate{Op: OpRows, Values: values}
}

// Positions returns the set of row positions an OpRows predicate keeps.
// Values that are not positive integers are skipped.
func (p Predicate) Positions() map[int]bool {
	set := make(map[int]bool, len(p.Values))
	for _, v := range p.Values {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			set[n] = true
		}
	}
	return set
}

// Matches evaluates the predicate against one cell. OpRows depends on the row
// position, not the cell, and never matches here.
func (p Predicate) Matches(c Cell) bool {
	switch p.Op {
	case OpNotMissing:
		return !c.Missing
	case OpEq, OpIn:
		if c.Missing {
			return false
		}
		for _, v := range p.Values {
			if c.Text == v {
				return true
			}
		}
	}
	return false
}

// Cell is one value of a column. Text holds the raw representation; Number is
// set when the text parses as a finite float.
type Cell struct {
	Text    string
	Number  float64
	Numeric bool
	Missing bool
}

// missingTokens are raw values treated as missing.
var missingTokens = map[string]bool{
	"": true, "na": true, "n/a": true, "nan": true, "null": true, "none": true, ".": true, "-": true,
}

// MissingTokens lists the lower-cased raw values treated as missing, sorted.
func MissingTokens() []string {
	out := make([]string, 0, len(missingTokens))
	for t := range missingTokens {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// ParseCell converts a raw text value into a Cell.
func ParseCell(raw string) Cell {
	text := strings.TrimSpace(raw)
	if missingTokens[strings.ToLower(text)] {
		return Cell{Missing: true}
	}
	c := Cell{Text: text}
	if f, err := strconv.ParseFloat(text, 64); err == nil && !isNaNOrInf(f) {
		c.Number = f
		c.Numeric = true
	}
	return c
}

// NumberCell builds a numeric cell.
func NumberCell(v float64) Cell {
	if isNaNOrInf(v) {
		return Cell{Missing: true}
	}
	return Cell{Text: strconv.FormatFloat(v, 'g', -1, 64), Number: v, Numeric: true}
}

func isNaNOrInf(f float64) bool {
	return math.IsNaN(f) || math.IsInf(f, 0)
}

// Series is one column loaded under a predicate set. Rows are in the
// accessor's stable row order, so series loaded with the same predicates
// align row by row.
type Series struct {
	Name  string
	Cells []Cell
}

// Len returns the number of rows.
func (s Series) Len() int {
	return len(s.Cells)
}

// DataAccessor is the columnar input contract consumed from the ingestion
// layer: load values for column X, filtered to rows satisfying predicates P.
type DataAccessor interface {
	// RowCount returns the number of rows matching the predicates.
	RowCount(ctx context.Context, preds ...Predicate) (int, error)

	// Column loads one column restricted to rows matching every predicate.
	Column(ctx context.Context, name string, preds ...Predicate) (Series, error)
}
