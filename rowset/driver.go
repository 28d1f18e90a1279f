package rowset

import (
	"database/sql/driver"
	"errors"
	"io"
	"math"

	"github.com/shopspring/decimal"
)

// FromRows reads rows to the end and returns them as a table. Column
// descriptors come from the driver's column type metadata when it offers
// any; otherwise the type is inferred from the first non-NULL value. Cells of
// columns with a known codec are converted to the codec's Go type so that a
// freshly read table and a decoded one hold identical values.
//
// FromRows does not close rows. It only fails when the driver does.
func FromRows(rows driver.Rows) (*Table, error) {
	names := rows.Columns()
	columns := make([]Column, len(names))
	known := make([]bool, len(names))
	for i, name := range names {
		c := Column{
			Label:      name,
			Name:       name,
			Searchable: true,
			Nullable:   NullableUnknown,
		}
		if r, ok := rows.(driver.RowsColumnTypeDatabaseTypeName); ok {
			c.TypeName = r.ColumnTypeDatabaseTypeName(i)
			c.Type, known[i] = TypeForDatabaseType(c.TypeName)
		}
		if r, ok := rows.(driver.RowsColumnTypeNullable); ok {
			if nullable, ok := r.ColumnTypeNullable(i); ok {
				c.Nullable = NoNulls
				if nullable {
					c.Nullable = Nullable
				}
			}
		}
		if r, ok := rows.(driver.RowsColumnTypeLength); ok {
			if length, ok := r.ColumnTypeLength(i); ok {
				c.DisplaySize = clampInt32(length)
			}
		}
		if r, ok := rows.(driver.RowsColumnTypePrecisionScale); ok {
			if precision, scale, ok := r.ColumnTypePrecisionScale(i); ok {
				c.Precision = clampInt32(precision)
				c.Scale = clampInt32(scale)
			}
		}
		columns[i] = c
	}

	t := NewTable(columns)
	dest := make([]driver.Value, len(names))
	for {
		err := rows.Next(dest)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		row := make(Row, len(dest))
		for i, v := range dest {
			if b, ok := v.([]byte); ok {
				// drivers may reuse the buffer on the next call
				v = append([]byte(nil), b...)
			}
			row[i] = v
		}
		t.Rows = append(t.Rows, row)
	}

	for i := range t.Columns {
		c := &t.Columns[i]
		if !known[i] {
			c.Type, known[i] = inferType(t.Rows, i)
		}
		if !known[i] {
			continue
		}
		if c.TypeName == "" {
			c.TypeName = c.Type.String()
		}
		c.Signed = isNumeric(c.Type)
		c.CaseSensitive = isCharacter(c.Type)
		normalizeColumn(t.Rows, i, c.Type)
	}
	return t, nil
}

func inferType(rows []Row, col int) (TypeCode, bool) {
	for _, row := range rows {
		if row[col] != nil {
			return typeForValue(row[col])
		}
	}
	// all NULL or no rows; any nullable type will do
	return TypeVarChar, true
}

// normalizeColumn converts cells in place. Cells that do not convert keep
// their driver value; encoding such a table fails later, which only costs
// the cache write.
func normalizeColumn(rows []Row, col int, code TypeCode) {
	codec, err := codecFor(col+1, code)
	if err != nil {
		return
	}
	for _, row := range rows {
		if v, err := codec.normalize(row[col]); err == nil {
			row[col] = v
		}
	}
}

func isNumeric(code TypeCode) bool {
	switch code {
	case TypeTinyInt, TypeSmallInt, TypeInteger, TypeBigInt, TypeFloat, TypeReal, TypeDouble, TypeNumeric, TypeDecimal:
		return true
	}
	return false
}

func isCharacter(code TypeCode) bool {
	switch code {
	case TypeChar, TypeVarChar, TypeLongVarChar, TypeNChar, TypeNVarChar, TypeLongNVarChar:
		return true
	}
	return false
}

func clampInt32(v int64) int32 {
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	if v < math.MinInt32 {
		return math.MinInt32
	}
	return int32(v)
}

// DriverValue converts a table cell to a value database/sql accepts from a
// driver.
func DriverValue(v any) driver.Value {
	switch x := v.(type) {
	case int32:
		return int64(x)
	case float32:
		return float64(x)
	case decimal.Decimal:
		return decimalString(x)
	}
	return v
}
