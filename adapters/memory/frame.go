// Package memory provides in-process implementations of the columnar data
// accessor.
package memory

import (
	"context"
	"fmt"
	"strings"

	"gocompare/domain/core"
	"gocompare/ports"
)

// Frame is a row-major in-memory table. Row order is insertion order.
type Frame struct {
	columns []string
	index   map[string]int
	rows    [][]ports.Cell
}

var _ ports.DataAccessor = (*Frame)(nil)

// NewFrame creates an empty frame with the given header. Duplicate or empty
// column names are rejected.
func NewFrame(columns []string) (*Frame, error) {
	f := &Frame{index: make(map[string]int, len(columns))}
	for _, c := range columns {
		name := strings.TrimSpace(c)
		if name == "" {
			return nil, fmt.Errorf("empty column name at position %d", len(f.columns))
		}
		if _, dup := f.index[name]; dup {
			return nil, fmt.Errorf("duplicate column %q", name)
		}
		f.index[name] = len(f.columns)
		f.columns = append(f.columns, name)
	}
	return f, nil
}

// FromRecords builds a frame from string records whose first row is the
// header. Short rows are padded with missing cells.
func FromRecords(records [][]string) (*Frame, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("no header row")
	}
	f, err := NewFrame(records[0])
	if err != nil {
		return nil, err
	}
	for _, r := range records[1:] {
		f.AppendRaw(r)
	}
	return f, nil
}

// AppendRaw parses and appends one row of raw values.
func (f *Frame) AppendRaw(values []string) {
	row := make([]ports.Cell, len(f.columns))
	for i := range row {
		if i < len(values) {
			row[i] = ports.ParseCell(values[i])
		} else {
			row[i] = ports.Cell{Missing: true}
		}
	}
	f.rows = append(f.rows, row)
}

// Columns returns the header in order.
func (f *Frame) Columns() []string {
	return append([]string(nil), f.columns...)
}

// Len returns the total number of rows.
func (f *Frame) Len() int {
	return len(f.rows)
}

// Records renders the frame back into string records with a header row.
func (f *Frame) Records() [][]string {
	out := make([][]string, 0, len(f.rows)+1)
	out = append(out, f.Columns())
	for _, r := range f.rows {
		rec := make([]string, len(r))
		for i, c := range r {
			rec[i] = c.Text
		}
		out = append(out, rec)
	}
	return out
}

// rowSets indexes the positions of OpRows predicates by predicate index.
func rowSets(preds []ports.Predicate) map[int]map[int]bool {
	var sets map[int]map[int]bool
	for i, p := range preds {
		if p.Op == ports.OpRows {
			if sets == nil {
				sets = make(map[int]map[int]bool)
			}
			sets[i] = p.Positions()
		}
	}
	return sets
}

// matches reports whether the row at 0-based index pos passes every predicate.
func (f *Frame) matches(pos int, row []ports.Cell, preds []ports.Predicate, sets map[int]map[int]bool) (bool, error) {
	for i, p := range preds {
		if p.Op == ports.OpRows {
			if !sets[i][pos+1] {
				return false, nil
			}
			continue
		}
		idx, ok := f.index[p.Column]
		if !ok {
			return false, core.NewVariableNotFoundError(p.Column)
		}
		if !p.Matches(row[idx]) {
			return false, nil
		}
	}
	return true, nil
}

// RowCount returns the number of rows matching every predicate.
func (f *Frame) RowCount(ctx context.Context, preds ...ports.Predicate) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	sets := rowSets(preds)
	n := 0
	for i, r := range f.rows {
		ok, err := f.matches(i, r, preds, sets)
		if err != nil {
			return 0, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}

// Column loads one column restricted to matching rows.
func (f *Frame) Column(ctx context.Context, name string, preds ...ports.Predicate) (ports.Series, error) {
	if err := ctx.Err(); err != nil {
		return ports.Series{}, err
	}
	idx, ok := f.index[name]
	if !ok {
		return ports.Series{}, core.NewVariableNotFoundError(name)
	}
	sets := rowSets(preds)
	s := ports.Series{Name: name}
	for i, r := range f.rows {
		ok, err := f.matches(i, r, preds, sets)
		if err != nil {
			return ports.Series{}, err
		}
		if ok {
			s.Cells = append(s.Cells, r[idx])
		}
	}
	return s, nil
}
