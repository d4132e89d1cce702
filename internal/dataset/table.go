package dataset

import (
	"fmt"
	"strings"
)

// Table is a column-oriented raw dataset. Every cell is kept as text exactly
// as the reader produced it; typing happens once, against a schema, when the
// survey records are decoded.
type Table struct {
	Name    string
	Columns []string
	cells   [][]string // cells[col][row]
	index   map[string]int
	rows    int
}

// NewTable builds a table from row-major records. Short rows are padded with
// empty cells; long rows are an error.
func NewTable(name string, columns []string, rows [][]string) (*Table, error) {
	cells := make([][]string, len(columns))
	for j := range cells {
		cells[j] = make([]string, len(rows))
	}
	for i, row := range rows {
		if len(row) > len(columns) {
			return nil, fmt.Errorf("row %d has %d cells, header has %d", i+1, len(row), len(columns))
		}
		for j, v := range row {
			cells[j][i] = v
		}
	}
	return newColumnTable(name, columns, cells)
}

func newColumnTable(name string, columns []string, cells [][]string) (*Table, error) {
	t := &Table{Name: name, Columns: append([]string(nil), columns...), cells: cells, index: make(map[string]int, len(columns))}
	for j, c := range t.Columns {
		if _, dup := t.index[c]; dup {
			return nil, fmt.Errorf("duplicate column %q", c)
		}
		t.index[c] = j
		if j == 0 {
			t.rows = len(cells[j])
		} else if len(cells[j]) != t.rows {
			return nil, fmt.Errorf("column %q has %d rows, expected %d", c, len(cells[j]), t.rows)
		}
	}
	return t, nil
}

// Len returns the number of data rows.
func (t *Table) Len() int { return t.rows }

// Has reports whether the column exists.
func (t *Table) Has(col string) bool {
	_, ok := t.index[col]
	return ok
}

// Column returns the cells of a column. The slice is shared with the table
// and must not be modified.
func (t *Table) Column(col string) ([]string, bool) {
	j, ok := t.index[col]
	if !ok {
		return nil, false
	}
	return t.cells[j], true
}

// Value returns one cell, or "" when the column is absent.
func (t *Table) Value(col string, row int) string {
	j, ok := t.index[col]
	if !ok || row < 0 || row >= t.rows {
		return ""
	}
	return t.cells[j][row]
}

// LowerNames returns a copy of the table with every column identifier
// trimmed and lower-cased, dropping a leading UTF-8 byte order mark. Two
// columns that collide after normalization are an error.
func (t *Table) LowerNames() (*Table, error) {
	cols := make([]string, len(t.Columns))
	for j, c := range t.Columns {
		cols[j] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(c, "\ufeff")))
	}
	out, err := newColumnTable(t.Name, cols, t.cells)
	if err != nil {
		return nil, fmt.Errorf("normalize column names: %w", err)
	}
	return out, nil
}

// Rename returns a copy of the table with column from renamed to to.
// It is a no-op when from is absent.
func (t *Table) Rename(from, to string) (*Table, error) {
	j, ok := t.index[from]
	if !ok || from == to {
		return t, nil
	}
	cols := append([]string(nil), t.Columns...)
	cols[j] = to
	return newColumnTable(t.Name, cols, t.cells)
}

// IsMissing reports whether a raw cell holds no value. Readers encode missing
// data differently: empty strings (csv, xlsx), "NaN"/"NA" (dataframe loads)
// and "." (Stata/SAS exports).
func IsMissing(v string) bool {
	switch strings.TrimSpace(v) {
	case "", ".", "NA", "NaN", "nan":
		return true
	}
	return false
}

// Missing counts missing cells in a column.
func (t *Table) Missing(col string) int {
	cells, ok := t.Column(col)
	if !ok {
		return t.rows
	}
	n := 0
	for _, v := range cells {
		if IsMissing(v) {
			n++
		}
	}
	return n
}
