package asm

import "encoding/binary"

// Buffer accumulates encoded machine code. It is append-only except for
// Patch, which fixup callbacks use to overwrite displacement bytes that
// were reserved during encoding.
//
// The zero value is a valid, empty buffer.
type Buffer struct {
	code []byte
}

// NewBuffer constructs a Buffer over the given byte slice.
func NewBuffer(code []byte) *Buffer {
	return &Buffer{code: code}
}

// Len returns the number of bytes written so far.
func (b *Buffer) Len() int {
	return len(b.code)
}

// Bytes returns the written bytes. The returned slice aliases the buffer's
// storage and remains valid until the next write.
func (b *Buffer) Bytes() []byte {
	return b.code
}

// WriteByte appends a single byte.
func (b *Buffer) WriteByte(v byte) {
	b.code = append(b.code, v)
}

// Write appends the given bytes.
func (b *Buffer) Write(v []byte) {
	b.code = append(b.code, v...)
}

// WriteUint16 appends v in little-endian order.
func (b *Buffer) WriteUint16(v uint16) {
	b.code = append(b.code, byte(v), byte(v>>8))
}

// WriteUint32 appends v in little-endian order.
func (b *Buffer) WriteUint32(v uint32) {
	b.code = append(b.code, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

// WriteConst appends the little-endian encoding of v at the given bit
// width, one of 8, 16 or 32.
func (b *Buffer) WriteConst(v int64, width byte) {
	switch width {
	case 8:
		b.WriteByte(byte(int8(v)))
	case 16:
		b.WriteUint16(uint16(int16(v)))
	case 32:
		b.WriteUint32(uint32(int32(v)))
	default:
		panic("BUG: width must be one of 8, 16 or 32")
	}
}

// Reserve appends width/8 zero bytes and returns the offset of the first,
// for a later Patch once the value is known.
func (b *Buffer) Reserve(width byte) int {
	off := len(b.code)
	for i := byte(0); i < width/8; i++ {
		b.code = append(b.code, 0)
	}
	return off
}

// Patch overwrites previously reserved bytes at off with the little-endian
// encoding of v at the given bit width.
func (b *Buffer) Patch(off int, v int64, width byte) {
	switch width {
	case 8:
		b.code[off] = byte(int8(v))
	case 16:
		binary.LittleEndian.PutUint16(b.code[off:], uint16(int16(v)))
	case 32:
		binary.LittleEndian.PutUint32(b.code[off:], uint32(int32(v)))
	default:
		panic("BUG: width must be one of 8, 16 or 32")
	}
}
