package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// Buffer is a read-only cursor source over a fixed byte slice.
// Every read takes a position and returns the value together with the
// position just past it; the Buffer itself never changes.
type Buffer struct {
	data  []byte
	order binary.ByteOrder
}

// NewBuffer wraps data using the CDC2 payload byte order (little-endian)
func NewBuffer(data []byte) Buffer {
	return Buffer{data: data, order: binary.LittleEndian}
}

// NewBufferOrder wraps data using an explicit byte order
func NewBufferOrder(data []byte, order binary.ByteOrder) Buffer {
	return Buffer{data: data, order: order}
}

// Len returns the number of bytes in the buffer
func (b Buffer) Len() int {
	return len(b.data)
}

// Remaining returns how many bytes lie at or after pos
func (b Buffer) Remaining(pos int) int {
	if pos >= len(b.data) {
		return 0
	}
	return len(b.data) - pos
}

func (b Buffer) span(pos, n int) ([]byte, error) {
	if pos < 0 || n < 0 || pos > len(b.data)-n {
		return nil, fmt.Errorf("%w: %d bytes at offset %d, buffer holds %d", ErrOutOfBounds, n, pos, len(b.data))
	}
	return b.data[pos : pos+n], nil
}

// Bytes returns n bytes starting at pos. The result aliases the buffer.
func (b Buffer) Bytes(pos, n int) ([]byte, int, error) {
	s, err := b.span(pos, n)
	if err != nil {
		return nil, pos, err
	}
	return s, pos + n, nil
}

// CString reads a fixed-width field of n bytes and returns the text up to
// the first NUL
func (b Buffer) CString(pos, n int) (string, int, error) {
	s, err := b.span(pos, n)
	if err != nil {
		return "", pos, err
	}
	if i := bytes.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	return string(s), pos + n, nil
}

func (b Buffer) Uint8(pos int) (uint8, int, error) {
	s, err := b.span(pos, 1)
	if err != nil {
		return 0, pos, err
	}
	return s[0], pos + 1, nil
}

func (b Buffer) Int8(pos int) (int8, int, error) {
	v, next, err := b.Uint8(pos)
	return int8(v), next, err
}

func (b Buffer) Uint16(pos int) (uint16, int, error) {
	s, err := b.span(pos, 2)
	if err != nil {
		return 0, pos, err
	}
	return b.order.Uint16(s), pos + 2, nil
}

func (b Buffer) Int16(pos int) (int16, int, error) {
	v, next, err := b.Uint16(pos)
	return int16(v), next, err
}

func (b Buffer) Uint32(pos int) (uint32, int, error) {
	s, err := b.span(pos, 4)
	if err != nil {
		return 0, pos, err
	}
	return b.order.Uint32(s), pos + 4, nil
}

func (b Buffer) Int32(pos int) (int32, int, error) {
	v, next, err := b.Uint32(pos)
	return int32(v), next, err
}

func (b Buffer) Uint64(pos int) (uint64, int, error) {
	s, err := b.span(pos, 8)
	if err != nil {
		return 0, pos, err
	}
	return b.order.Uint64(s), pos + 8, nil
}

// Int64 reads a two's-complement 64-bit integer
func (b Buffer) Int64(pos int) (int64, int, error) {
	v, next, err := b.Uint64(pos)
	return int64(v), next, err
}

// Float16 reads an IEEE-754 binary16 value and widens it to float32
func (b Buffer) Float16(pos int) (float32, int, error) {
	v, next, err := b.Uint16(pos)
	if err != nil {
		return 0, pos, err
	}
	return halfToFloat32(v), next, nil
}

func (b Buffer) Float32(pos int) (float32, int, error) {
	v, next, err := b.Uint32(pos)
	if err != nil {
		return 0, pos, err
	}
	return math.Float32frombits(v), next, nil
}

func (b Buffer) Float64(pos int) (float64, int, error) {
	v, next, err := b.Uint64(pos)
	if err != nil {
		return 0, pos, err
	}
	return math.Float64frombits(v), next, nil
}

// Varint reads the 1-or-2 byte domain varint at pos
func (b Buffer) Varint(pos int) (uint16, int, error) {
	first, err := b.span(pos, 1)
	if err != nil {
		return 0, pos, err
	}
	if first[0]&varintWide == 0 {
		return uint16(first[0]), pos + 1, nil
	}
	s, err := b.span(pos, 2)
	if err != nil {
		return 0, pos, err
	}
	return binary.BigEndian.Uint16(s) & varintMask, pos + 2, nil
}

// halfToFloat32 expands binary16 (1 sign, 5 exponent, 10 fraction bits)
func halfToFloat32(h uint16) float32 {
	sign := uint32(h>>15) << 31
	exp := uint32(h>>10) & 0x1F
	frac := uint32(h) & 0x3FF

	switch exp {
	case 0x1F:
		// Inf and NaN keep their payload
		return math.Float32frombits(sign | 0x7F800000 | frac<<13)
	case 0:
		if frac == 0 {
			return math.Float32frombits(sign)
		}
		// Subnormal: frac * 2^-24
		f := float32(frac) / (1 << 24)
		if sign != 0 {
			f = -f
		}
		return f
	default:
		return math.Float32frombits(sign | (exp+127-15)<<23 | frac<<13)
	}
}
