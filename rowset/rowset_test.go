package rowset

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func column(label string, code TypeCode) Column {
	return Column{
		CatalogName:   "shop",
		Label:         label,
		Name:          label,
		TypeName:      code.String(),
		Type:          code,
		DisplaySize:   32,
		Precision:     10,
		Scale:         2,
		TableName:     "products",
		SchemaName:    "public",
		AutoIncrement: label == "id",
		CaseSensitive: isCharacter(code),
		Currency:      label == "price",
		Searchable:    true,
		Signed:        isNumeric(code),
		Nullable:      Nullable,
	}
}

func allTypesTable() *Table {
	ts := time.Date(2023, 3, 14, 15, 9, 26, 535897000, time.UTC)
	t := NewTable([]Column{
		column("flag", TypeBoolean),
		column("id", TypeInteger),
		column("big", TypeBigInt),
		column("ratio", TypeReal),
		column("score", TypeDouble),
		column("price", TypeNumeric),
		column("name", TypeVarChar),
		column("day", TypeDate),
		column("at", TypeTime),
		column("created", TypeTimestamp),
		column("hash", TypeVarBinary),
		column("payload", TypeBlob),
	})
	rows := []Row{
		{true, int32(1), int64(1 << 40), float32(0.5), 3.25, decimal.RequireFromString("19.90"), "Widget",
			time.Date(2023, 3, 14, 0, 0, 0, 0, time.UTC), time.Date(1970, 1, 1, 15, 9, 26, 0, time.UTC), ts,
			[]byte{0xde, 0xad}, []byte("blob")},
		{false, int32(-7), int64(-1), float32(-1.25), -0.0001, decimal.RequireFromString("-3"), "",
			ts, ts, ts, []byte{}, []byte{}},
		{nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil},
	}
	for _, r := range rows {
		if err := t.InsertRow(r); err != nil {
			panic(err)
		}
	}
	return t
}

var tableOpts = cmp.Options{cmpopts.IgnoreUnexported(Table{})}

func TestRoundTrip(t *testing.T) {
	assert := require.New(t)

	want := allTypesTable()
	b, err := Encode(want, 1<<16)
	assert.Nil(err)

	got, err := Decode(b)
	assert.Nil(err)
	if diff := cmp.Diff(want, got, tableOpts); diff != "" {
		t.Fatalf("Decode(Encode(table)) mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(0, got.Position())
	assert.True(got.IsBeforeFirst())
}

func TestRoundTripPreservesDecimalScale(t *testing.T) {
	assert := require.New(t)

	tbl := NewTable([]Column{column("price", TypeDecimal)})
	assert.Nil(tbl.InsertRow(Row{decimal.RequireFromString("1.50")}))

	b, err := Encode(tbl, 0)
	assert.Nil(err)
	got, err := Decode(b)
	assert.Nil(err)
	assert.Equal("1.50", decimalString(got.Rows[0][0].(decimal.Decimal)))
}

func TestNullIsNotEmpty(t *testing.T) {
	assert := require.New(t)

	tbl := NewTable([]Column{column("name", TypeVarChar), column("hash", TypeBinary)})
	assert.Nil(tbl.InsertRow(Row{"", []byte{}}))
	assert.Nil(tbl.InsertRow(Row{nil, nil}))

	b, err := Encode(tbl, 0)
	assert.Nil(err)
	got, err := Decode(b)
	assert.Nil(err)

	assert.Equal("", got.Rows[0][0])
	assert.Equal([]byte{}, got.Rows[0][1])
	assert.Nil(got.Rows[1][0])
	assert.Nil(got.Rows[1][1])
}

func TestEncodeNormalizesDriverValues(t *testing.T) {
	assert := require.New(t)

	tbl := NewTable([]Column{column("id", TypeSmallInt), column("ratio", TypeFloat), column("price", TypeNumeric)})
	assert.Nil(tbl.InsertRow(Row{int64(42), float64(0.25), "12.340"}))

	b, err := Encode(tbl, 0)
	assert.Nil(err)
	got, err := Decode(b)
	assert.Nil(err)

	assert.Equal(int32(42), got.Rows[0][0])
	assert.Equal(float32(0.25), got.Rows[0][1])
	assert.True(decimal.RequireFromString("12.340").Equal(got.Rows[0][2].(decimal.Decimal)))
}

func TestMetadataRoundTrip(t *testing.T) {
	assert := require.New(t)

	want := allTypesTable().Columns
	b, err := EncodeMetadata(want)
	assert.Nil(err)

	got, err := DecodeMetadata(b)
	assert.Nil(err)
	assert.Equal(want, got)

	// every prefix of the stream is too short
	for n := 0; n < len(b); n++ {
		_, err := DecodeMetadata(b[:n])
		assert.True(errors.Is(err, ErrMalformedStream), "prefix %d: %v", n, err)
	}
}

func TestBufferOverflow(t *testing.T) {
	assert := require.New(t)

	tbl := allTypesTable()
	full, err := Encode(tbl, 0)
	assert.Nil(err)

	_, err = Encode(tbl, len(full)-1)
	assert.True(errors.Is(err, ErrBufferOverflow))

	b, err := Encode(tbl, len(full))
	assert.Nil(err)
	assert.Equal(full, b)
}

func TestUnsupportedColumnType(t *testing.T) {
	assert := require.New(t)

	_, err := CodecFor(3, TypeCode(2002)) // STRUCT
	assert.True(errors.Is(err, ErrUnsupportedColumnType))

	tbl := NewTable([]Column{column("x", TypeCode(1111))})
	_, err = Encode(tbl, 0)
	assert.True(errors.Is(err, ErrUnsupportedColumnType))

	// same failure on the decode side
	meta, err := EncodeMetadata(tbl.Columns)
	assert.Nil(err)
	_, err = Decode(meta)
	assert.True(errors.Is(err, ErrUnsupportedColumnType))
}

func TestDecodeMalformed(t *testing.T) {
	assert := require.New(t)

	b, err := Encode(allTypesTable(), 0)
	assert.Nil(err)

	tests := map[string][]byte{
		"empty":          {},
		"truncated cell": b[:len(b)-1],
		"bad presence":   append(append([]byte{}, b...), 7),
		"negative count": {0xff, 0xff, 0xff, 0xff},
		"trailing bytes": {0, 0, 0, 0, 1},
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(input)
			assert.True(errors.Is(err, ErrMalformedStream), "%v", err)
		})
	}
}

func TestEncodeInvalidValue(t *testing.T) {
	assert := require.New(t)

	tbl := NewTable([]Column{column("id", TypeInteger)})
	assert.Nil(tbl.InsertRow(Row{int64(1) << 40}))
	_, err := Encode(tbl, 0)
	assert.True(errors.Is(err, ErrInvalidValue))

	tbl = NewTable([]Column{column("created", TypeTimestamp)})
	assert.Nil(tbl.InsertRow(Row{"yesterday"}))
	_, err = Encode(tbl, 0)
	assert.True(errors.Is(err, ErrInvalidValue))
}

func TestCodecForCoversAllFamilies(t *testing.T) {
	assert := require.New(t)

	codes := []TypeCode{
		TypeBit, TypeBoolean, TypeTinyInt, TypeSmallInt, TypeInteger, TypeBigInt,
		TypeFloat, TypeReal, TypeDouble, TypeNumeric, TypeDecimal,
		TypeChar, TypeVarChar, TypeLongVarChar, TypeNChar, TypeNVarChar, TypeLongNVarChar,
		TypeDate, TypeTime, TypeTimestamp,
		TypeBinary, TypeVarBinary, TypeLongVarBinary, TypeBlob,
	}
	for i, code := range codes {
		c, err := CodecFor(i+1, code)
		assert.Nil(err, code.String())
		assert.NotNil(c)
	}
}

func TestTemporalTextForms(t *testing.T) {
	assert := require.New(t)

	tests := []struct {
		code TypeCode
		in   any
		want time.Time
	}{
		{TypeTimestamp, "2024-05-01 12:30:45.123456", time.Date(2024, 5, 1, 12, 30, 45, 123456000, time.UTC)},
		{TypeTimestamp, []byte("2024-05-01 12:30:45"), time.Date(2024, 5, 1, 12, 30, 45, 0, time.UTC)},
		{TypeTimestamp, "2024-05-01 14:30:45+02", time.Date(2024, 5, 1, 12, 30, 45, 0, time.UTC)},
		{TypeTimestamp, "2024-05-01T12:30:45Z", time.Date(2024, 5, 1, 12, 30, 45, 0, time.UTC)},
		{TypeDate, []byte("2024-05-01"), time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
		{TypeTime, "12:30:45.5", time.Date(0, 1, 1, 12, 30, 45, 500000000, time.UTC)},
		{TypeTime, []byte("12:30:45"), time.Date(0, 1, 1, 12, 30, 45, 0, time.UTC)},
		{TypeTimestamp, time.Date(2024, 5, 1, 14, 30, 45, 0, time.FixedZone("CEST", 7200)), time.Date(2024, 5, 1, 12, 30, 45, 0, time.UTC)},
	}
	for _, tc := range tests {
		tbl := NewTable([]Column{column("at", tc.code)})
		assert.Nil(tbl.InsertRow(Row{tc.in}))

		b, err := Encode(tbl, 0)
		assert.Nil(err, "%v", tc.in)
		got, err := Decode(b)
		assert.Nil(err)

		// fresh and decoded cells are identical, including the zone
		fresh, err := codecFor(1, tc.code)
		assert.Nil(err)
		normalized, err := fresh.normalize(tc.in)
		assert.Nil(err)
		assert.Equal(tc.want, normalized, "%v", tc.in)
		assert.Equal(tc.want, got.Rows[0][0], "%v", tc.in)
	}
}

func TestLengthPrefixLimit(t *testing.T) {
	assert := require.New(t)

	assert.Nil(checkLength(math.MaxInt32))
	assert.True(errors.Is(checkLength(math.MaxInt32+1), ErrBufferOverflow))

	// strings and byte slices share the limit
	w := NewBuffer(0)
	assert.Nil(w.WriteString("abc"))
	assert.Nil(w.WriteBytes([]byte("abc")))
	assert.Equal([]byte{0, 0, 0, 3, 'a', 'b', 'c', 0, 0, 0, 3, 'a', 'b', 'c'}, w.Bytes())
}
