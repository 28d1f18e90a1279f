// Package rowset holds the in-memory table representation of a query result
// and its binary encoding.
//
// Wire format, all integers big-endian:
//
//	[columnCount int32]
//	per column: catalog, label, name, typeName (length-prefixed strings),
//	            type, displaySize, precision (int32), tableName (string),
//	            scale (int32), schemaName (string), autoIncrement,
//	            caseSensitive, currency (bool byte), nullable (int32),
//	            searchable, signed (bool byte)
//	rows until the end of the buffer, each cell as [present byte][value]
package rowset

import "fmt"

// EncodeMetadata encodes column descriptors.
func EncodeMetadata(columns []Column) ([]byte, error) {
	w := NewBuffer(0)
	if err := writeMetadata(w, columns); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// DecodeMetadata decodes column descriptors written by EncodeMetadata.
func DecodeMetadata(b []byte) ([]Column, error) {
	return readMetadata(NewReader(b))
}

// metadataWriter keeps the first write error, like metadataReader.
type metadataWriter struct {
	w   *Buffer
	err error
}

func (m *metadataWriter) str(s string) {
	if m.err == nil {
		m.err = m.w.WriteString(s)
	}
}

func (m *metadataWriter) i32(i int32) {
	if m.err == nil {
		m.err = m.w.WriteInt32(i)
	}
}

func (m *metadataWriter) boolean(b bool) {
	if m.err == nil {
		m.err = m.w.WriteBool(b)
	}
}

func writeMetadata(w *Buffer, columns []Column) error {
	m := &metadataWriter{w: w}
	m.i32(int32(len(columns)))
	for _, c := range columns {
		m.str(c.CatalogName)
		m.str(c.Label)
		m.str(c.Name)
		m.str(c.TypeName)
		m.i32(int32(c.Type))
		m.i32(c.DisplaySize)
		m.i32(c.Precision)
		m.str(c.TableName)
		m.i32(c.Scale)
		m.str(c.SchemaName)
		m.boolean(c.AutoIncrement)
		m.boolean(c.CaseSensitive)
		m.boolean(c.Currency)
		m.i32(int32(c.Nullable))
		m.boolean(c.Searchable)
		m.boolean(c.Signed)
	}
	return m.err
}

// metadataReader keeps the first read error so a column can be read field
// by field.
type metadataReader struct {
	r   *Reader
	err error
}

func (m *metadataReader) str() string {
	if m.err != nil {
		return ""
	}
	var s string
	s, m.err = m.r.ReadString()
	return s
}

func (m *metadataReader) i32() int32 {
	if m.err != nil {
		return 0
	}
	var i int32
	i, m.err = m.r.ReadInt32()
	return i
}

func (m *metadataReader) boolean() bool {
	if m.err != nil {
		return false
	}
	var b bool
	b, m.err = m.r.ReadBool()
	return b
}

func readMetadata(r *Reader) ([]Column, error) {
	count, err := r.ReadInt32()
	if err != nil {
		return nil, err
	}
	if count < 0 {
		return nil, fmt.Errorf("%w: negative column count %d", ErrMalformedStream, count)
	}
	columns := make([]Column, 0, min(int(count), r.Len()))
	m := &metadataReader{r: r}
	for i := 0; i < int(count); i++ {
		c := Column{
			CatalogName: m.str(),
			Label:       m.str(),
			Name:        m.str(),
			TypeName:    m.str(),
			Type:        TypeCode(m.i32()),
			DisplaySize: m.i32(),
			Precision:   m.i32(),
			TableName:   m.str(),
			Scale:       m.i32(),
			SchemaName:  m.str(),
		}
		c.AutoIncrement = m.boolean()
		c.CaseSensitive = m.boolean()
		c.Currency = m.boolean()
		c.Nullable = Nullability(m.i32())
		c.Searchable = m.boolean()
		c.Signed = m.boolean()
		if m.err != nil {
			return nil, fmt.Errorf("column %d of %d: %w", i+1, count, m.err)
		}
		columns = append(columns, c)
	}
	return columns, nil
}

func codecsFor(columns []Column) ([]*columnCodec, error) {
	codecs := make([]*columnCodec, len(columns))
	for i, c := range columns {
		codec, err := codecFor(i+1, c.Type)
		if err != nil {
			return nil, err
		}
		codecs[i] = codec
	}
	return codecs, nil
}

// Encode serializes t into at most capacity bytes. It fails with
// ErrBufferOverflow rather than growing past capacity. The table's cursor is
// not used or moved.
func Encode(t *Table, capacity int) ([]byte, error) {
	w := NewBuffer(capacity)
	if err := writeMetadata(w, t.Columns); err != nil {
		return nil, err
	}
	codecs, err := codecsFor(t.Columns)
	if err != nil {
		return nil, err
	}
	for n, row := range t.Rows {
		if len(row) != len(codecs) {
			return nil, fmt.Errorf("rowset: row %d has %d values, table has %d columns", n+1, len(row), len(codecs))
		}
		for i, codec := range codecs {
			if err := codec.Encode(w, row[i]); err != nil {
				return nil, err
			}
		}
	}
	return w.Bytes(), nil
}

// Decode deserializes a table written by Encode. The returned table's cursor
// is before the first row.
func Decode(b []byte) (*Table, error) {
	r := NewReader(b)
	columns, err := readMetadata(r)
	if err != nil {
		return nil, err
	}
	codecs, err := codecsFor(columns)
	if err != nil {
		return nil, err
	}
	if len(codecs) == 0 && r.Len() > 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes after zero columns", ErrMalformedStream, r.Len())
	}

	t := NewTable(columns)
	for r.Len() > 0 {
		row := make(Row, len(codecs))
		for i, codec := range codecs {
			v, err := codec.Decode(r)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", t.Len()+1, err)
			}
			row[i] = v
		}
		if err := t.InsertRow(row); err != nil {
			return nil, err
		}
	}
	t.BeforeFirst()
	return t, nil
}
