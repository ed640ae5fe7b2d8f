// Package bitwise provides an immutable bit-string value used for
// bit-addressed parse results.
package bitwise

import "strings"

// Bytes is a fixed-length sequence of bits stored MSB-first. The zero value
// is an empty bit string.
type Bytes struct {
	data []byte
	n    int
}

// FromBytes returns a bit string covering every bit of b, MSB-first.
func FromBytes(b []byte) Bytes {
	data := make([]byte, len(b))
	copy(data, b)
	return Bytes{data: data, n: len(b) * 8}
}

// Slice extracts n bits from b starting at bit offset off (counted MSB-first
// from the start of b). The result is left-aligned in its own backing bytes.
func Slice(b []byte, off, n int64) Bytes {
	if off < 0 || n < 0 || off+n > int64(len(b))*8 {
		panic("bitwise: slice out of range")
	}
	data := make([]byte, (n+7)/8)
	for i := int64(0); i < n; i++ {
		src := off + i
		if b[src/8]&(0x80>>uint(src%8)) != 0 {
			data[i/8] |= 0x80 >> uint(i%8)
		}
	}
	return Bytes{data: data, n: int(n)}
}

// Len returns the number of bits.
func (b Bytes) Len() int { return b.n }

// At reports whether bit i is set. Bit 0 is the first (most significant) bit.
func (b Bytes) At(i int) bool {
	if i < 0 || i >= b.n {
		panic("bitwise: bit index out of range")
	}
	return b.data[i/8]&(0x80>>uint(i%8)) != 0
}

// Uint64 interprets the bits as a big-endian unsigned integer. It panics if
// the bit string is longer than 64 bits.
func (b Bytes) Uint64() uint64 {
	if b.n > 64 {
		panic("bitwise: bit string exceeds 64 bits")
	}
	var v uint64
	for i := 0; i < b.n; i++ {
		v <<= 1
		if b.At(i) {
			v |= 1
		}
	}
	return v
}

// Bytes returns the bits packed left-aligned into a fresh byte slice of
// length ceil(Len/8).
func (b Bytes) Bytes() []byte {
	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out
}

// Equal reports whether two bit strings have the same length and bits.
func (b Bytes) Equal(o Bytes) bool {
	if b.n != o.n {
		return false
	}
	for i := 0; i < b.n; i++ {
		if b.At(i) != o.At(i) {
			return false
		}
	}
	return true
}

// String renders the bits as a 0b-prefixed binary literal.
func (b Bytes) String() string {
	var sb strings.Builder
	sb.Grow(b.n + 2)
	sb.WriteString("0b")
	for i := 0; i < b.n; i++ {
		if b.At(i) {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}
