// Package checkpoint holds the run's result table and persists it at a
// fixed cadence so an interrupted run loses at most one interval of work.
package checkpoint

import "strings"

// Table is an ordered set of records with named columns. Rows are
// addressed by position, which matches the input file's row order.
type Table struct {
	columns []string
	index   map[string]int
	rows    [][]string
}

// NewTable creates an empty table with columns.
func NewTable(columns ...string) *Table {
	t := &Table{index: make(map[string]int)}
	for _, c := range columns {
		t.AddColumn(c)
	}
	return t
}

// AddColumn appends column if it does not exist yet.
func (t *Table) AddColumn(column string) {
	if _, ok := t.index[column]; ok {
		return
	}
	t.index[column] = len(t.columns)
	t.columns = append(t.columns, column)
}

// HasColumn reports whether column exists.
func (t *Table) HasColumn(column string) bool {
	_, ok := t.index[column]
	return ok
}

// Columns returns the column names in order.
func (t *Table) Columns() []string {
	return append([]string(nil), t.columns...)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Append adds a row and returns its position. Unknown columns are added.
func (t *Table) Append(values map[string]string) int {
	t.rows = append(t.rows, nil)
	row := len(t.rows) - 1
	t.Update(row, values)
	return row
}

// Update overwrites the given columns of row in place. Unknown columns are
// added. Out-of-range rows are ignored.
func (t *Table) Update(row int, values map[string]string) {
	if row < 0 || row >= len(t.rows) {
		return
	}
	for _, c := range sortedKeys(values) {
		t.AddColumn(c)
		t.set(row, t.index[c], values[c])
	}
}

// Get returns a cell, or "" when the row or column is missing.
func (t *Table) Get(row int, column string) string {
	if row < 0 || row >= len(t.rows) {
		return ""
	}
	i, ok := t.index[column]
	if !ok || i >= len(t.rows[row]) {
		return ""
	}
	return t.rows[row][i]
}

// Row returns a copy of row as a column map.
func (t *Table) Row(row int) map[string]string {
	out := make(map[string]string, len(t.columns))
	for _, c := range t.columns {
		out[c] = t.Get(row, c)
	}
	return out
}

// Rows returns every row as a column map.
func (t *Table) Rows() []map[string]string {
	out := make([]map[string]string, len(t.rows))
	for i := range t.rows {
		out[i] = t.Row(i)
	}
	return out
}

// Records returns the header and cells as a rectangular grid.
func (t *Table) Records() [][]string {
	out := make([][]string, 0, len(t.rows)+1)
	out = append(out, t.Columns())
	for i := range t.rows {
		rec := make([]string, len(t.columns))
		copy(rec, t.rows[i])
		out = append(out, rec)
	}
	return out
}

func (t *Table) set(row, col int, value string) {
	for len(t.rows[row]) <= col {
		t.rows[row] = append(t.rows[row], "")
	}
	t.rows[row][col] = value
}

// SheetName turns parts into a worksheet name: spaces removed, joined by
// "_", characters Excel forbids replaced, at most 31 characters.
func SheetName(parts ...string) string {
	name := strings.Join(parts, "_")
	name = strings.ReplaceAll(name, " ", "")
	name = strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '-'
		}
		return r
	}, name)
	if r := []rune(name); len(r) > 31 {
		name = string(r[:31])
	}
	if name == "" {
		name = "Sheet"
	}
	return name
}
