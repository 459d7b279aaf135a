package dataset

import (
	"fmt"
	"sort"
	"time"
)

// Table is a column-oriented tabular extract. Cell values are one of
// string, float64, time.Time or nil for an explicit missing value.
// Every transformation in this package consumes a table and produces a
// new one; tables are never mutated in place by two operations.
type Table struct {
	cols []string
	data map[string][]any
	rows int
}

// New creates an empty table with the given column order.
func New(columns ...string) *Table {
	t := &Table{data: make(map[string][]any, len(columns))}
	for _, c := range columns {
		t.addColumn(c)
	}
	return t
}

func (t *Table) addColumn(name string) {
	if _, ok := t.data[name]; ok {
		return
	}
	col := make([]any, t.rows)
	t.cols = append(t.cols, name)
	t.data[name] = col
}

// Columns returns the ordered column names.
func (t *Table) Columns() []string {
	out := make([]string, len(t.cols))
	copy(out, t.cols)
	return out
}

// NumRows reports the row count.
func (t *Table) NumRows() int {
	return t.rows
}

// HasColumn reports whether the named column exists.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.data[name]
	return ok
}

// Column returns the backing slice for a column, or nil when absent.
func (t *Table) Column(name string) []any {
	return t.data[name]
}

// Value returns the cell at (column, row).
func (t *Table) Value(column string, row int) any {
	col, ok := t.data[column]
	if !ok || row < 0 || row >= len(col) {
		return nil
	}
	return col[row]
}

// Set assigns the cell at (column, row), creating the column on demand.
func (t *Table) Set(column string, row int, v any) {
	if !t.HasColumn(column) {
		t.addColumn(column)
	}
	if row >= 0 && row < t.rows {
		t.data[column][row] = v
	}
}

// AppendRow appends one row; columns absent from values get nil. New
// columns are introduced in sorted order so tables rebuilt from
// unordered row maps stay deterministic.
func (t *Table) AppendRow(values map[string]any) {
	var added []string
	for name := range values {
		if !t.HasColumn(name) {
			added = append(added, name)
		}
	}
	sort.Strings(added)
	for _, name := range added {
		t.addColumn(name)
	}
	for _, name := range t.cols {
		t.data[name] = append(t.data[name], values[name])
	}
	t.rows++
}

// RenameColumn renames a column keeping its original position. When the
// target name is already taken the old column is dropped instead, so a
// canonical column is never overwritten by a later source.
func (t *Table) RenameColumn(old, new string) {
	if old == new || !t.HasColumn(old) {
		return
	}
	if t.HasColumn(new) {
		t.DropColumn(old)
		return
	}
	for i, c := range t.cols {
		if c == old {
			t.cols[i] = new
			break
		}
	}
	t.data[new] = t.data[old]
	delete(t.data, old)
}

// DropColumn removes a column entirely.
func (t *Table) DropColumn(name string) {
	if !t.HasColumn(name) {
		return
	}
	for i, c := range t.cols {
		if c == name {
			t.cols = append(t.cols[:i], t.cols[i+1:]...)
			break
		}
	}
	delete(t.data, name)
}

// Clone performs a deep copy of the table.
func (t *Table) Clone() *Table {
	out := &Table{
		cols: make([]string, len(t.cols)),
		data: make(map[string][]any, len(t.cols)),
		rows: t.rows,
	}
	copy(out.cols, t.cols)
	for name, col := range t.data {
		dup := make([]any, len(col))
		copy(dup, col)
		out.data[name] = dup
	}
	return out
}

// filterRows keeps only the rows whose keep flag is true.
func (t *Table) filterRows(keep []bool) {
	kept := 0
	for _, k := range keep {
		if k {
			kept++
		}
	}
	if kept == t.rows {
		return
	}
	for name, col := range t.data {
		next := make([]any, 0, kept)
		for i, k := range keep {
			if k {
				next = append(next, col[i])
			}
		}
		t.data[name] = next
	}
	t.rows = kept
}

// Records converts the table to row maps suitable for bulk storage.
// Dates are rendered as YYYY-MM-DD strings so records stay JSON friendly.
func (t *Table) Records() []map[string]any {
	out := make([]map[string]any, t.rows)
	for i := 0; i < t.rows; i++ {
		row := make(map[string]any, len(t.cols))
		for _, name := range t.cols {
			v := t.data[name][i]
			if d, ok := v.(time.Time); ok {
				v = d.Format("2006-01-02")
			}
			row[name] = v
		}
		out[i] = row
	}
	return out
}

// FromRecords builds a table from row maps. Column order follows first
// appearance across the records.
func FromRecords(records []map[string]any) *Table {
	t := New()
	for _, rec := range records {
		t.AppendRow(rec)
	}
	return t
}

// rowKey renders a row for full-row equality checks.
func (t *Table) rowKey(row int) string {
	key := ""
	for _, name := range t.cols {
		key += fmt.Sprintf("%s=%v;", name, t.data[name][row])
	}
	return key
}
