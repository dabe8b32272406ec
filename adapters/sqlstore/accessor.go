// Package sqlstore serves dataset columns from a SQL table through sqlx.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"

	"gocompare/domain/core"
	"gocompare/ports"
)

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// rowPosition names the ROW_NUMBER column added when a predicate selects rows
// by position.
const rowPosition = "_gocompare_row"

// Accessor reads one wide-format table. Rows are ordered by OrderBy, which
// must be unique for series to align.
type Accessor struct {
	db      *sqlx.DB
	table   string
	orderBy string
	columns map[string]bool
}

var _ ports.DataAccessor = (*Accessor)(nil)

// NewAccessor validates the table and order column names and loads the
// table's column list.
func NewAccessor(ctx context.Context, db *sqlx.DB, table, orderBy string) (*Accessor, error) {
	if !identifier.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if !identifier.MatchString(orderBy) {
		return nil, fmt.Errorf("invalid order column %q", orderBy)
	}
	a := &Accessor{db: db, table: table, orderBy: orderBy, columns: make(map[string]bool)}

	rows, err := db.QueryxContext(ctx, fmt.Sprintf(`SELECT * FROM %s WHERE 1 = 0`, quote(table)))
	if err != nil {
		return nil, fmt.Errorf("failed to inspect table %s: %w", table, err)
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}
	for _, c := range cols {
		a.columns[c] = true
	}
	if !a.columns[orderBy] {
		return nil, core.NewVariableNotFoundError(orderBy)
	}
	return a, nil
}

func quote(name string) string {
	return `"` + name + `"`
}

func (a *Accessor) column(name string) (string, error) {
	if !identifier.MatchString(name) || !a.columns[name] {
		return "", core.NewVariableNotFoundError(name)
	}
	return quote(name), nil
}

// where renders the predicate list with bindvar placeholders.
func (a *Accessor) where(preds []ports.Predicate) (string, []interface{}, error) {
	if len(preds) == 0 {
		return "", nil, nil
	}
	var (
		clauses []string
		args    []interface{}
	)
	for _, p := range preds {
		if p.Op == ports.OpRows {
			positions := make([]int, 0, len(p.Values))
			for n := range p.Positions() {
				positions = append(positions, n)
			}
			if len(positions) == 0 {
				clauses = append(clauses, "1 = 0")
				continue
			}
			sort.Ints(positions)
			clauses = append(clauses, quote(rowPosition)+" IN (?)")
			args = append(args, positions)
			continue
		}
		col, err := a.column(p.Column)
		if err != nil {
			return "", nil, err
		}
		text := fmt.Sprintf("TRIM(CAST(%s AS TEXT))", col)
		switch p.Op {
		case ports.OpEq:
			clauses = append(clauses, text+" = ?")
			args = append(args, p.Values[0])
		case ports.OpIn:
			if len(p.Values) == 0 {
				clauses = append(clauses, "1 = 0")
				continue
			}
			clauses = append(clauses, text+" IN (?)")
			args = append(args, p.Values)
		case ports.OpNotMissing:
			clauses = append(clauses, fmt.Sprintf("%s IS NOT NULL AND LOWER(%s) NOT IN (?)", col, text))
			args = append(args, ports.MissingTokens())
		default:
			return "", nil, fmt.Errorf("unsupported predicate %q", p.Op)
		}
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

// source is the FROM target. Position predicates number the rows in OrderBy
// order first.
func (a *Accessor) source(preds []ports.Predicate) string {
	for _, p := range preds {
		if p.Op == ports.OpRows {
			return fmt.Sprintf("(SELECT *, ROW_NUMBER() OVER (ORDER BY %s) AS %s FROM %s) AS positioned",
				quote(a.orderBy), quote(rowPosition), quote(a.table))
		}
	}
	return quote(a.table)
}

// build fills query's two verbs with the FROM target and the WHERE clause.
func (a *Accessor) build(query string, preds []ports.Predicate) (string, []interface{}, error) {
	where, args, err := a.where(preds)
	if err != nil {
		return "", nil, err
	}
	q := fmt.Sprintf(query, a.source(preds), where)
	if len(args) > 0 {
		q, args, err = sqlx.In(q, args...)
		if err != nil {
			return "", nil, fmt.Errorf("failed to expand query: %w", err)
		}
	}
	return a.db.Rebind(q), args, nil
}

// RowCount returns the number of rows matching the predicates.
func (a *Accessor) RowCount(ctx context.Context, preds ...ports.Predicate) (int, error) {
	q, args, err := a.build("SELECT COUNT(*) FROM %s%s", preds)
	if err != nil {
		return 0, err
	}
	var n int
	if err := a.db.GetContext(ctx, &n, q, args...); err != nil {
		return 0, fmt.Errorf("failed to count rows: %w", err)
	}
	return n, nil
}

// Column loads one column in OrderBy order.
func (a *Accessor) Column(ctx context.Context, name string, preds ...ports.Predicate) (ports.Series, error) {
	col, err := a.column(name)
	if err != nil {
		return ports.Series{}, err
	}
	q, args, err := a.build("SELECT "+col+" FROM %s%s ORDER BY "+quote(a.orderBy), preds)
	if err != nil {
		return ports.Series{}, err
	}
	var values []sql.NullString
	if err := a.db.SelectContext(ctx, &values, q, args...); err != nil {
		return ports.Series{}, fmt.Errorf("failed to load column %s: %w", name, err)
	}
	s := ports.Series{Name: name, Cells: make([]ports.Cell, len(values))}
	for i, v := range values {
		if !v.Valid {
			s.Cells[i] = ports.Cell{Missing: true}
			continue
		}
		s.Cells[i] = ports.ParseCell(v.String)
	}
	return s, nil
}

// Columns returns the table's column names known to the accessor.
func (a *Accessor) Columns() []string {
	out := make([]string, 0, len(a.columns))
	for c := range a.columns {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
