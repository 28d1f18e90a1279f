package rowset

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TypeCode is a column's numeric SQL type code. The values are part of the
// wire format and are shared with other clients reading the same entries.
type TypeCode int32

// Type codes understood by the codec registry.
const (
	TypeBit           TypeCode = -7
	TypeTinyInt       TypeCode = -6
	TypeSmallInt      TypeCode = 5
	TypeInteger       TypeCode = 4
	TypeBigInt        TypeCode = -5
	TypeFloat         TypeCode = 6
	TypeReal          TypeCode = 7
	TypeDouble        TypeCode = 8
	TypeNumeric       TypeCode = 2
	TypeDecimal       TypeCode = 3
	TypeChar          TypeCode = 1
	TypeVarChar       TypeCode = 12
	TypeLongVarChar   TypeCode = -1
	TypeNChar         TypeCode = -15
	TypeNVarChar      TypeCode = -9
	TypeLongNVarChar  TypeCode = -16
	TypeDate          TypeCode = 91
	TypeTime          TypeCode = 92
	TypeTimestamp     TypeCode = 93
	TypeBinary        TypeCode = -2
	TypeVarBinary     TypeCode = -3
	TypeLongVarBinary TypeCode = -4
	TypeBlob          TypeCode = 2004
	TypeBoolean       TypeCode = 16
)

// Nullability is the tri-state nullability of a column.
type Nullability int32

const (
	NoNulls         Nullability = 0
	Nullable        Nullability = 1
	NullableUnknown Nullability = 2
)

var databaseTypes = map[string]TypeCode{
	"BOOL":        TypeBoolean,
	"BOOLEAN":     TypeBoolean,
	"BIT":         TypeBit,
	"TINYINT":     TypeTinyInt,
	"INT2":        TypeSmallInt,
	"SMALLINT":    TypeSmallInt,
	"INT":         TypeInteger,
	"INT4":        TypeInteger,
	"INTEGER":     TypeInteger,
	"MEDIUMINT":   TypeInteger,
	"INT8":        TypeBigInt,
	"BIGINT":      TypeBigInt,
	"FLOAT":       TypeFloat,
	"FLOAT4":      TypeReal,
	"REAL":        TypeReal,
	"FLOAT8":      TypeDouble,
	"DOUBLE":      TypeDouble,
	"NUMERIC":     TypeNumeric,
	"DECIMAL":     TypeDecimal,
	"CHAR":        TypeChar,
	"BPCHAR":      TypeChar,
	"VARCHAR":     TypeVarChar,
	"NAME":        TypeVarChar,
	"UUID":        TypeVarChar,
	"JSON":        TypeLongVarChar,
	"JSONB":       TypeLongVarChar,
	"TEXT":        TypeLongVarChar,
	"MEDIUMTEXT":  TypeLongVarChar,
	"LONGTEXT":    TypeLongVarChar,
	"NCHAR":       TypeNChar,
	"NVARCHAR":    TypeNVarChar,
	"DATE":        TypeDate,
	"TIME":        TypeTime,
	"TIMETZ":      TypeTime,
	"TIMESTAMP":   TypeTimestamp,
	"TIMESTAMPTZ": TypeTimestamp,
	"DATETIME":    TypeTimestamp,
	"BINARY":      TypeBinary,
	"VARBINARY":   TypeVarBinary,
	"BYTEA":       TypeLongVarBinary,
	"BLOB":        TypeBlob,
	"MEDIUMBLOB":  TypeBlob,
	"LONGBLOB":    TypeBlob,
}

// TypeForDatabaseType maps a driver reported database type name such as
// "INT4" or "VARCHAR" to a type code.
func TypeForDatabaseType(name string) (TypeCode, bool) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if i := strings.IndexByte(name, '('); i > 0 {
		name = name[:i]
	}
	code, ok := databaseTypes[name]
	return code, ok
}

// typeForValue infers a type code from a driver value. Used when the driver
// does not report column type names.
func typeForValue(v any) (TypeCode, bool) {
	switch v.(type) {
	case bool:
		return TypeBoolean, true
	case int32:
		return TypeInteger, true
	case int, int8, int16, int64, uint8, uint16, uint32, uint, uint64:
		return TypeBigInt, true
	case float32:
		return TypeReal, true
	case float64:
		return TypeDouble, true
	case decimal.Decimal:
		return TypeNumeric, true
	case string:
		return TypeVarChar, true
	case []byte:
		return TypeVarBinary, true
	case time.Time:
		return TypeTimestamp, true
	}
	return 0, false
}

func (t TypeCode) String() string {
	switch t {
	case TypeBit:
		return "BIT"
	case TypeTinyInt:
		return "TINYINT"
	case TypeSmallInt:
		return "SMALLINT"
	case TypeInteger:
		return "INTEGER"
	case TypeBigInt:
		return "BIGINT"
	case TypeFloat:
		return "FLOAT"
	case TypeReal:
		return "REAL"
	case TypeDouble:
		return "DOUBLE"
	case TypeNumeric:
		return "NUMERIC"
	case TypeDecimal:
		return "DECIMAL"
	case TypeChar:
		return "CHAR"
	case TypeVarChar:
		return "VARCHAR"
	case TypeLongVarChar:
		return "LONGVARCHAR"
	case TypeNChar:
		return "NCHAR"
	case TypeNVarChar:
		return "NVARCHAR"
	case TypeLongNVarChar:
		return "LONGNVARCHAR"
	case TypeDate:
		return "DATE"
	case TypeTime:
		return "TIME"
	case TypeTimestamp:
		return "TIMESTAMP"
	case TypeBinary:
		return "BINARY"
	case TypeVarBinary:
		return "VARBINARY"
	case TypeLongVarBinary:
		return "LONGVARBINARY"
	case TypeBlob:
		return "BLOB"
	case TypeBoolean:
		return "BOOLEAN"
	}
	return "TYPE(" + strconv.Itoa(int(t)) + ")"
}
