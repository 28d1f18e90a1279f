package rowset

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Buffer is an append-only big-endian byte buffer with a hard capacity.
// Writes that would exceed the capacity fail with ErrBufferOverflow and leave
// the buffer unchanged.
type Buffer struct {
	b     []byte
	limit int
}

// NewBuffer returns a buffer that holds at most capacity bytes. A capacity
// of zero or less means no limit.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		return &Buffer{limit: math.MaxInt}
	}
	// don't allocate the whole capacity up front; most results are small
	initial := capacity
	if initial > 4096 {
		initial = 4096
	}
	return &Buffer{b: make([]byte, 0, initial), limit: capacity}
}

// Len returns the number of bytes written so far.
func (w *Buffer) Len() int {
	return len(w.b)
}

// Bytes returns the written bytes.
func (w *Buffer) Bytes() []byte {
	return w.b
}

func (w *Buffer) reserve(n int) error {
	if n > w.limit-len(w.b) {
		return fmt.Errorf("%w: writing %d bytes at offset %d exceeds capacity %d",
			ErrBufferOverflow, n, len(w.b), w.limit)
	}
	return nil
}

func (w *Buffer) WriteByte(c byte) error {
	if err := w.reserve(1); err != nil {
		return err
	}
	w.b = append(w.b, c)
	return nil
}

func (w *Buffer) WriteBool(v bool) error {
	if v {
		return w.WriteByte(1)
	}
	return w.WriteByte(0)
}

func (w *Buffer) WriteInt32(v int32) error {
	if err := w.reserve(4); err != nil {
		return err
	}
	w.b = binary.BigEndian.AppendUint32(w.b, uint32(v))
	return nil
}

func (w *Buffer) WriteInt64(v int64) error {
	if err := w.reserve(8); err != nil {
		return err
	}
	w.b = binary.BigEndian.AppendUint64(w.b, uint64(v))
	return nil
}

// checkLength fails for values whose length does not fit the 32-bit prefix.
func checkLength(n int) error {
	if n > math.MaxInt32 {
		return fmt.Errorf("%w: %d bytes do not fit a length prefix", ErrBufferOverflow, n)
	}
	return nil
}

// WriteBytes writes a 32-bit length followed by p.
func (w *Buffer) WriteBytes(p []byte) error {
	if err := checkLength(len(p)); err != nil {
		return err
	}
	if err := w.reserve(4 + len(p)); err != nil {
		return err
	}
	w.b = binary.BigEndian.AppendUint32(w.b, uint32(len(p)))
	w.b = append(w.b, p...)
	return nil
}

// WriteString writes a 32-bit length followed by the UTF-8 bytes of s.
func (w *Buffer) WriteString(s string) error {
	if err := checkLength(len(s)); err != nil {
		return err
	}
	if err := w.reserve(4 + len(s)); err != nil {
		return err
	}
	w.b = binary.BigEndian.AppendUint32(w.b, uint32(len(s)))
	w.b = append(w.b, s...)
	return nil
}

// Reader consumes a byte slice written by Buffer. Short reads fail with
// ErrMalformedStream.
type Reader struct {
	b   []byte
	off int
}

func NewReader(b []byte) *Reader {
	return &Reader{b: b}
}

// Len returns the number of unread bytes.
func (r *Reader) Len() int {
	return len(r.b) - r.off
}

func (r *Reader) next(n int) ([]byte, error) {
	if n < 0 || n > r.Len() {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, have %d",
			ErrMalformedStream, n, r.off, r.Len())
	}
	p := r.b[r.off : r.off+n]
	r.off += n
	return p, nil
}

func (r *Reader) ReadByte() (byte, error) {
	p, err := r.next(1)
	if err != nil {
		return 0, err
	}
	return p[0], nil
}

func (r *Reader) ReadBool() (bool, error) {
	c, err := r.ReadByte()
	if err != nil {
		return false, err
	}
	switch c {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, fmt.Errorf("%w: invalid boolean byte %#x at offset %d", ErrMalformedStream, c, r.off-1)
}

func (r *Reader) ReadInt32() (int32, error) {
	p, err := r.next(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(p)), nil
}

func (r *Reader) ReadInt64() (int64, error) {
	p, err := r.next(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(p)), nil
}

// ReadBytes reads a length-prefixed byte slice. The result is a copy and is
// never nil.
func (r *Reader) ReadBytes() ([]byte, error) {
	n, err := r.ReadInt32()
	if err != nil {
		return nil, err
	}
	p, err := r.next(int(n))
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(p))
	copy(out, p)
	return out, nil
}

// ReadString reads a length-prefixed UTF-8 string.
func (r *Reader) ReadString() (string, error) {
	n, err := r.ReadInt32()
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	p, err := r.next(int(n))
	if err != nil {
		return "", err
	}
	return string(p), nil
}
