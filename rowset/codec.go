package rowset

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

const (
	cellNull  byte = 0
	cellValue byte = 1
)

// ColumnCodec encodes and decodes the cells of one column. Every cell is
// written as a presence byte (0 for SQL NULL, 1 otherwise) followed by the
// value, so NULL never collides with an empty string or an empty byte slice.
type ColumnCodec interface {
	Encode(w *Buffer, v any) error
	Decode(r *Reader) (any, error)
}

// columnCodec is the single implementation behind the twelve strategies.
// Each strategy supplies a conversion to its canonical Go type and the
// fixed wire representation of that type.
type columnCodec struct {
	index int
	kind  string
	conv  func(v any) (any, error)
	write func(w *Buffer, v any) error
	read  func(r *Reader) (any, error)
}

// CodecFor returns the codec for the column at the 1-based columnIndex with
// the given type code.
func CodecFor(columnIndex int, code TypeCode) (ColumnCodec, error) {
	c, err := codecFor(columnIndex, code)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func codecFor(columnIndex int, code TypeCode) (*columnCodec, error) {
	var s strategy
	switch code {
	case TypeBit, TypeBoolean:
		s = boolStrategy
	case TypeTinyInt, TypeSmallInt, TypeInteger:
		s = int32Strategy
	case TypeBigInt:
		s = int64Strategy
	case TypeFloat, TypeReal:
		s = float32Strategy
	case TypeDouble:
		s = float64Strategy
	case TypeNumeric, TypeDecimal:
		s = decimalStrategy
	case TypeChar, TypeVarChar, TypeLongVarChar, TypeNChar, TypeNVarChar, TypeLongNVarChar:
		s = stringStrategy
	case TypeDate:
		s = dateStrategy
	case TypeTime:
		s = timeStrategy
	case TypeTimestamp:
		s = timestampStrategy
	case TypeBinary, TypeVarBinary, TypeLongVarBinary:
		s = binaryStrategy
	case TypeBlob:
		s = blobStrategy
	default:
		return nil, fmt.Errorf("%w: column %d has type code %d", ErrUnsupportedColumnType, columnIndex, int32(code))
	}
	return &columnCodec{
		index: columnIndex,
		kind:  s.kind,
		conv:  s.conv,
		write: s.write,
		read:  s.read,
	}, nil
}

func (c *columnCodec) Encode(w *Buffer, v any) error {
	if v == nil {
		return w.WriteByte(cellNull)
	}
	cv, err := c.normalize(v)
	if err != nil {
		return err
	}
	if err := w.WriteByte(cellValue); err != nil {
		return err
	}
	return c.write(w, cv)
}

func (c *columnCodec) Decode(r *Reader) (any, error) {
	flag, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	switch flag {
	case cellNull:
		return nil, nil
	case cellValue:
		return c.read(r)
	}
	return nil, fmt.Errorf("%w: column %d: invalid presence byte %#x", ErrMalformedStream, c.index, flag)
}

// normalize converts v to the codec's canonical Go type.
func (c *columnCodec) normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	cv, err := c.conv(v)
	if err != nil {
		return nil, fmt.Errorf("%w: column %d (%s): %v", ErrInvalidValue, c.index, c.kind, err)
	}
	return cv, nil
}

type strategy struct {
	kind  string
	conv  func(v any) (any, error)
	write func(w *Buffer, v any) error
	read  func(r *Reader) (any, error)
}

var (
	boolStrategy = strategy{
		kind: "boolean",
		conv: func(v any) (any, error) { return toBool(v) },
		write: func(w *Buffer, v any) error {
			return w.WriteBool(v.(bool))
		},
		read: func(r *Reader) (any, error) { return r.ReadBool() },
	}
	int32Strategy = strategy{
		kind: "int32",
		conv: func(v any) (any, error) {
			i, err := toInt64(v)
			if err != nil {
				return nil, err
			}
			if i < math.MinInt32 || i > math.MaxInt32 {
				return nil, fmt.Errorf("%d overflows int32", i)
			}
			return int32(i), nil
		},
		write: func(w *Buffer, v any) error { return w.WriteInt32(v.(int32)) },
		read:  func(r *Reader) (any, error) { return r.ReadInt32() },
	}
	int64Strategy = strategy{
		kind:  "int64",
		conv:  func(v any) (any, error) { return toInt64(v) },
		write: func(w *Buffer, v any) error { return w.WriteInt64(v.(int64)) },
		read:  func(r *Reader) (any, error) { return r.ReadInt64() },
	}
	float32Strategy = strategy{
		kind: "float32",
		conv: func(v any) (any, error) {
			if f, ok := v.(float32); ok {
				return f, nil
			}
			f, err := toFloat64(v)
			if err != nil {
				return nil, err
			}
			return float32(f), nil
		},
		write: func(w *Buffer, v any) error {
			return w.WriteInt32(int32(math.Float32bits(v.(float32))))
		},
		read: func(r *Reader) (any, error) {
			i, err := r.ReadInt32()
			if err != nil {
				return nil, err
			}
			return math.Float32frombits(uint32(i)), nil
		},
	}
	float64Strategy = strategy{
		kind: "float64",
		conv: func(v any) (any, error) { return toFloat64(v) },
		write: func(w *Buffer, v any) error {
			return w.WriteInt64(int64(math.Float64bits(v.(float64))))
		},
		read: func(r *Reader) (any, error) {
			i, err := r.ReadInt64()
			if err != nil {
				return nil, err
			}
			return math.Float64frombits(uint64(i)), nil
		},
	}
	decimalStrategy = strategy{
		kind: "decimal",
		conv: func(v any) (any, error) { return toDecimal(v) },
		write: func(w *Buffer, v any) error {
			return w.WriteString(decimalString(v.(decimal.Decimal)))
		},
		read: func(r *Reader) (any, error) {
			s, err := r.ReadString()
			if err != nil {
				return nil, err
			}
			d, err := decimal.NewFromString(s)
			if err != nil {
				return nil, fmt.Errorf("%w: decimal %q: %v", ErrMalformedStream, s, err)
			}
			return d, nil
		},
	}
	stringStrategy = strategy{
		kind:  "string",
		conv:  func(v any) (any, error) { return toString(v) },
		write: func(w *Buffer, v any) error { return w.WriteString(v.(string)) },
		read:  func(r *Reader) (any, error) { return r.ReadString() },
	}
	dateStrategy      = temporalStrategy("date")
	timeStrategy      = temporalStrategy("time")
	timestampStrategy = temporalStrategy("timestamp")
	binaryStrategy    = bytesStrategy("binary")
	blobStrategy      = bytesStrategy("blob")
)

// temporalLayouts are the text forms drivers use for dates and times when
// they do not return time.Time, such as pgx for time columns or mysql
// without parseTime. Forms without a zone are read as UTC.
var temporalLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z07",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
	"15:04:05.999999999Z07:00",
	"15:04:05.999999999Z07",
	"15:04:05.999999999",
}

func parseTemporal(s string) (time.Time, error) {
	for _, layout := range temporalLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

// temporalStrategy encodes instants as microseconds since the Unix epoch.
// The zone is not part of the wire format: decoded values are in UTC, and
// a normalized cell is converted to UTC so that a fresh read and a cache
// hit return the same value.
func temporalStrategy(kind string) strategy {
	return strategy{
		kind: kind,
		conv: func(v any) (any, error) {
			switch x := v.(type) {
			case time.Time:
				return x.UTC(), nil
			case string:
				t, err := parseTemporal(x)
				return t.UTC(), err
			case []byte:
				t, err := parseTemporal(string(x))
				return t.UTC(), err
			}
			return nil, fmt.Errorf("unexpected %T", v)
		},
		write: func(w *Buffer, v any) error {
			return w.WriteInt64(v.(time.Time).UnixMicro())
		},
		read: func(r *Reader) (any, error) {
			us, err := r.ReadInt64()
			if err != nil {
				return nil, err
			}
			return time.UnixMicro(us).UTC(), nil
		},
	}
}

func bytesStrategy(kind string) strategy {
	return strategy{
		kind: kind,
		conv: func(v any) (any, error) {
			switch b := v.(type) {
			case []byte:
				out := make([]byte, len(b))
				copy(out, b)
				return out, nil
			case string:
				return []byte(b), nil
			}
			return nil, fmt.Errorf("unexpected %T", v)
		},
		write: func(w *Buffer, v any) error { return w.WriteBytes(v.([]byte)) },
		read:  func(r *Reader) (any, error) { return r.ReadBytes() },
	}
}

// decimalString keeps trailing zeros so that the scale survives a round
// trip.
func decimalString(d decimal.Decimal) string {
	if exp := d.Exponent(); exp < 0 {
		return d.StringFixed(-exp)
	}
	return d.String()
}

func toBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		return strconv.ParseBool(b)
	case []byte:
		return strconv.ParseBool(string(b))
	}
	i, err := toInt64(v)
	if err != nil {
		return false, err
	}
	return i != 0, nil
}

func toInt64(v any) (int64, error) {
	switch i := v.(type) {
	case int64:
		return i, nil
	case int:
		return int64(i), nil
	case int32:
		return int64(i), nil
	case int16:
		return int64(i), nil
	case int8:
		return int64(i), nil
	case uint8:
		return int64(i), nil
	case uint16:
		return int64(i), nil
	case uint32:
		return int64(i), nil
	case uint:
		if uint64(i) > math.MaxInt64 {
			return 0, fmt.Errorf("%d overflows int64", i)
		}
		return int64(i), nil
	case uint64:
		if i > math.MaxInt64 {
			return 0, fmt.Errorf("%d overflows int64", i)
		}
		return int64(i), nil
	case bool:
		if i {
			return 1, nil
		}
		return 0, nil
	case float64:
		if i != math.Trunc(i) {
			return 0, fmt.Errorf("%v is not integral", i)
		}
		return int64(i), nil
	case decimal.Decimal:
		if !i.Equal(i.Truncate(0)) {
			return 0, fmt.Errorf("%s is not integral", i)
		}
		return i.IntPart(), nil
	case string:
		return strconv.ParseInt(i, 10, 64)
	case []byte:
		return strconv.ParseInt(string(i), 10, 64)
	}
	return 0, fmt.Errorf("unexpected %T", v)
}

func toFloat64(v any) (float64, error) {
	switch f := v.(type) {
	case float64:
		return f, nil
	case float32:
		return float64(f), nil
	case decimal.Decimal:
		d, _ := f.Float64()
		return d, nil
	case string:
		return strconv.ParseFloat(f, 64)
	case []byte:
		return strconv.ParseFloat(string(f), 64)
	}
	i, err := toInt64(v)
	if err != nil {
		return 0, err
	}
	return float64(i), nil
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch d := v.(type) {
	case decimal.Decimal:
		return d, nil
	case string:
		return decimal.NewFromString(d)
	case []byte:
		return decimal.NewFromString(string(d))
	case float64:
		return decimal.NewFromFloat(d), nil
	case float32:
		return decimal.NewFromFloat32(d), nil
	}
	i, err := toInt64(v)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.NewFromInt(i), nil
}

func toString(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	case fmt.Stringer:
		return s.String(), nil
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return fmt.Sprint(s), nil
	}
	return "", fmt.Errorf("unexpected %T", v)
}
