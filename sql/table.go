package sql

import "fmt"

// Table is an order-preserving mapping from column name to Column, plus an
// explicit row count. The explicit count matters for zero-column tables:
// plan nodes like COUNT(*) produce rows without producing columns.
type Table struct {
	names   []string
	columns []Column
	numRows int
}

// NewTable returns an empty table with an explicit row count.
func NewTable(numRows int) *Table {
	return &Table{numRows: numRows}
}

// TableFromColumns builds a table from parallel name/column slices.
func TableFromColumns(names []string, columns []Column) (*Table, error) {
	if len(names) != len(columns) {
		return nil, fmt.Errorf("sql: %d names for %d columns", len(names), len(columns))
	}
	numRows := 0
	if len(columns) > 0 {
		numRows = columns[0].Len()
	}
	t := NewTable(numRows)
	for i := range names {
		if err := t.AddColumn(names[i], columns[i]); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// AddColumn appends a named column. All columns of a table share one length.
func (t *Table) AddColumn(name string, c Column) error {
	if c.Len() != t.numRows {
		return fmt.Errorf("sql: column %q has %d rows, table has %d", name, c.Len(), t.numRows)
	}
	for _, n := range t.names {
		if n == name {
			return fmt.Errorf("sql: duplicate column %q", name)
		}
	}
	t.names = append(t.names, name)
	t.columns = append(t.columns, c)
	return nil
}

// NumRows returns the row count.
func (t *Table) NumRows() int { return t.numRows }

// NumColumns returns the column count.
func (t *Table) NumColumns() int { return len(t.columns) }

// ColumnNames returns the column names in insertion order.
func (t *Table) ColumnNames() []string { return t.names }

// Column returns the i-th column.
func (t *Table) Column(i int) Column { return t.columns[i] }

// ColumnName returns the i-th column name.
func (t *Table) ColumnName(i int) string { return t.names[i] }

// ColumnByName looks a column up by name.
func (t *Table) ColumnByName(name string) (Column, bool) {
	for i, n := range t.names {
		if n == name {
			return t.columns[i], true
		}
	}
	return Column{}, false
}

// Schema returns the (name, type) pairs of the table in column order.
func (t *Table) Schema() []ColumnField {
	fields := make([]ColumnField, len(t.columns))
	for i := range t.columns {
		fields[i] = ColumnField{Name: t.names[i], Type: t.columns[i].Type()}
	}
	return fields
}
