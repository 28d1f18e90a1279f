package rowset

import "errors"

var (
	// ErrUnsupportedColumnType is returned when a column's type code has no
	// codec. It fails the whole encode or decode call.
	ErrUnsupportedColumnType = errors.New("rowset: unsupported column type")
	// ErrBufferOverflow is returned when an encoded table does not fit in the
	// configured buffer capacity.
	ErrBufferOverflow = errors.New("rowset: buffer overflow")
	// ErrMalformedStream is returned when encoded bytes end early or carry an
	// impossible value.
	ErrMalformedStream = errors.New("rowset: malformed stream")
	// ErrInvalidValue is returned when a cell value cannot be converted to its
	// column's type.
	ErrInvalidValue = errors.New("rowset: invalid value")
)
