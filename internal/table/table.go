// Package table holds tabular datasets as string cells with a named header.
package table

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Table is a header plus rows of string cells. Rows are always as wide as
// Header; missing cells are empty strings.
type Table struct {
	Header []string
	Rows   [][]string

	index map[string]int
}

// New builds a table and pads or truncates every row to the header width.
func New(header []string, rows [][]string) *Table {
	t := &Table{Header: header, Rows: rows}
	for i, r := range t.Rows {
		t.Rows[i] = fit(r, len(header))
	}
	t.reindex()
	return t
}

func fit(row []string, n int) []string {
	if len(row) == n {
		return row
	}
	if len(row) > n {
		return row[:n]
	}
	out := make([]string, n)
	copy(out, row)
	return out
}

func (t *Table) reindex() {
	t.index = make(map[string]int, len(t.Header))
	for i, h := range t.Header {
		if _, dup := t.index[h]; !dup {
			t.index[h] = i
		}
	}
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// Col returns the index of column name, or -1.
func (t *Table) Col(name string) int {
	if i, ok := t.index[name]; ok {
		return i
	}
	return -1
}

// HasColumn reports whether name is a column of t.
func (t *Table) HasColumn(name string) bool { return t.Col(name) >= 0 }

// RequireColumns returns an error naming the first missing column.
func (t *Table) RequireColumns(names ...string) error {
	for _, n := range names {
		if !t.HasColumn(n) {
			return eris.Errorf("table: missing column %q (have: %s)", n, strings.Join(t.Header, ", "))
		}
	}
	return nil
}

// Value returns the trimmed cell at row for column name, or "" when the
// column does not exist.
func (t *Table) Value(row int, name string) string {
	i := t.Col(name)
	if i < 0 || row < 0 || row >= len(t.Rows) {
		return ""
	}
	return strings.TrimSpace(t.Rows[row][i])
}

// AddColumns appends columns to t. values holds one slice per row, each as
// wide as names. Adding a column that already exists is an error.
func (t *Table) AddColumns(names []string, values [][]string) error {
	if len(values) != len(t.Rows) {
		return eris.Errorf("table: %d value rows for %d table rows", len(values), len(t.Rows))
	}
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if t.HasColumn(n) || seen[n] {
			return eris.Errorf("table: column %q already exists", n)
		}
		seen[n] = true
	}
	for i, r := range t.Rows {
		row := make([]string, 0, len(r)+len(names))
		row = append(row, r...)
		t.Rows[i] = append(row, fit(values[i], len(names))...)
	}
	header := make([]string, 0, len(t.Header)+len(names))
	header = append(header, t.Header...)
	t.Header = append(header, names...)
	t.reindex()
	return nil
}

// AddColumnIfMissing appends a constant column when name is absent.
func (t *Table) AddColumnIfMissing(name, value string) bool {
	if t.HasColumn(name) {
		return false
	}
	values := make([][]string, len(t.Rows))
	for i := range values {
		values[i] = []string{value}
	}
	_ = t.AddColumns([]string{name}, values)
	return true
}

// Clone returns a table with its own header. Row slices are shared, which
// is safe because AddColumns copies every row it extends.
func (t *Table) Clone() *Table {
	out := &Table{Header: append([]string(nil), t.Header...), Rows: append([][]string(nil), t.Rows...)}
	out.reindex()
	return out
}

// Filter returns a new table holding the rows for which keep returns true.
// Row slices are shared with t.
func (t *Table) Filter(keep func(row int) bool) *Table {
	out := &Table{Header: append([]string(nil), t.Header...)}
	for i, r := range t.Rows {
		if keep(i) {
			out.Rows = append(out.Rows, r)
		}
	}
	out.reindex()
	return out
}

// Select returns a new table with only the named columns, in that order.
func (t *Table) Select(names ...string) (*Table, error) {
	if err := t.RequireColumns(names...); err != nil {
		return nil, err
	}
	idx := make([]int, len(names))
	for i, n := range names {
		idx[i] = t.Col(n)
	}
	rows := make([][]string, len(t.Rows))
	for i, r := range t.Rows {
		row := make([]string, len(idx))
		for j, c := range idx {
			row[j] = r[c]
		}
		rows[i] = row
	}
	header := make([]string, len(names))
	copy(header, names)
	return New(header, rows), nil
}

// Concat stacks a and b. The header is a's columns followed by b's columns
// not already in a; cells absent from a source table are empty.
func Concat(a, b *Table) *Table {
	header := make([]string, 0, len(a.Header)+len(b.Header))
	header = append(header, a.Header...)
	for _, h := range b.Header {
		if !a.HasColumn(h) {
			header = append(header, h)
		}
	}

	rows := make([][]string, 0, len(a.Rows)+len(b.Rows))
	for _, src := range []*Table{a, b} {
		idx := make([]int, len(header))
		for j, h := range header {
			idx[j] = src.Col(h)
		}
		for _, r := range src.Rows {
			row := make([]string, len(header))
			for j, c := range idx {
				if c >= 0 {
					row[j] = r[c]
				}
			}
			rows = append(rows, row)
		}
	}
	return New(header, rows)
}
