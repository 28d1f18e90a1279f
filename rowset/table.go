package rowset

import "fmt"

// Column describes one column of a table. It is persisted verbatim by
// the codec so that a decoded table is self-describing.
type Column struct {
	CatalogName   string
	Label         string
	Name          string
	TypeName      string
	Type          TypeCode
	DisplaySize   int32
	Precision     int32
	Scale         int32
	TableName     string
	SchemaName    string
	AutoIncrement bool
	CaseSensitive bool
	Currency      bool
	Searchable    bool
	Signed        bool
	Nullable      Nullability
}

// Row is one row of cell values aligned to the table's columns. A nil cell
// is SQL NULL.
type Row []any

// Table is an in-memory result set: column descriptors, rows and a cursor.
// Cursor positions are 1-based as in database/sql drivers: 0 is before the
// first row and Len()+1 is after the last.
type Table struct {
	Columns []Column
	Rows    []Row

	pos int
}

// NewTable returns an empty table with the given columns.
func NewTable(columns []Column) *Table {
	return &Table{Columns: columns}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// InsertRow appends a row. The cursor is left where it was.
func (t *Table) InsertRow(row Row) error {
	if len(row) != len(t.Columns) {
		return fmt.Errorf("rowset: row has %d values, table has %d columns", len(row), len(t.Columns))
	}
	t.Rows = append(t.Rows, row)
	return nil
}

// ColumnIndex returns the 0-based index of the column with the given label,
// or -1.
func (t *Table) ColumnIndex(label string) int {
	for i, c := range t.Columns {
		if c.Label == label {
			return i
		}
	}
	return -1
}

// Position returns the cursor position.
func (t *Table) Position() int {
	return t.pos
}

func (t *Table) BeforeFirst() {
	t.pos = 0
}

func (t *Table) AfterLast() {
	t.pos = len(t.Rows) + 1
}

func (t *Table) IsBeforeFirst() bool {
	return len(t.Rows) > 0 && t.pos == 0
}

func (t *Table) IsAfterLast() bool {
	return len(t.Rows) > 0 && t.pos > len(t.Rows)
}

func (t *Table) onRow() bool {
	return t.pos >= 1 && t.pos <= len(t.Rows)
}

// Next moves the cursor forward one row and reports whether it is on a row.
func (t *Table) Next() bool {
	if t.pos <= len(t.Rows) {
		t.pos++
	}
	return t.onRow()
}

// Previous moves the cursor back one row and reports whether it is on a row.
func (t *Table) Previous() bool {
	if t.pos > 0 {
		t.pos--
	}
	return t.onRow()
}

func (t *Table) First() bool {
	return t.Absolute(1)
}

func (t *Table) Last() bool {
	return t.Absolute(-1)
}

// Absolute moves the cursor to row n. Negative n counts back from the end,
// -1 being the last row. Moving past either end parks the cursor before the
// first or after the last row and returns false.
func (t *Table) Absolute(n int) bool {
	switch {
	case n > 0:
		t.pos = min(n, len(t.Rows)+1)
	case n < 0:
		t.pos = max(len(t.Rows)+1+n, 0)
	default:
		t.pos = 0
	}
	return t.onRow()
}

// Relative moves the cursor n rows from its current position.
func (t *Table) Relative(n int) bool {
	t.pos = min(max(t.pos+n, 0), len(t.Rows)+1)
	return t.onRow()
}

// Row returns the row under the cursor, or nil when the cursor is not on a
// row.
func (t *Table) Row() Row {
	if !t.onRow() {
		return nil
	}
	return t.Rows[t.pos-1]
}

// Value returns the 0-based column value of the current row.
func (t *Table) Value(col int) (any, error) {
	row := t.Row()
	if row == nil {
		return nil, fmt.Errorf("rowset: cursor at %d is not on a row", t.pos)
	}
	if col < 0 || col >= len(row) {
		return nil, fmt.Errorf("rowset: column index %d out of range", col)
	}
	return row[col], nil
}
