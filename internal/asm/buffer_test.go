package asm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuffer_writes(t *testing.T) {
	b := NewBuffer(nil)
	require.Equal(t, 0, b.Len())

	b.WriteByte(0x90)
	b.Write([]byte{0x89, 0xd8})
	b.WriteUint16(0x1234)
	b.WriteUint32(0xdeadbeef)
	require.Equal(t, []byte{0x90, 0x89, 0xd8, 0x34, 0x12, 0xef, 0xbe, 0xad, 0xde}, b.Bytes())
}

func TestBuffer_WriteConst(t *testing.T) {
	tests := []struct {
		name  string
		v     int64
		width byte
		exp   []byte
	}{
		{name: "8-bit", v: -2, width: 8, exp: []byte{0xfe}},
		{name: "16-bit", v: 0x0102, width: 16, exp: []byte{0x02, 0x01}},
		{name: "32-bit", v: 0x100, width: 32, exp: []byte{0x00, 0x01, 0x00, 0x00}},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			b := NewBuffer(nil)
			b.WriteConst(tc.v, tc.width)
			require.Equal(t, tc.exp, b.Bytes())
		})
	}
}

func TestBuffer_ReservePatch(t *testing.T) {
	b := NewBuffer(nil)
	b.WriteByte(0xe9)
	off := b.Reserve(32)
	require.Equal(t, 1, off)
	require.Equal(t, []byte{0xe9, 0, 0, 0, 0}, b.Bytes())

	b.Patch(off, -2, 32)
	require.Equal(t, []byte{0xe9, 0xfe, 0xff, 0xff, 0xff}, b.Bytes())

	b8 := NewBuffer([]byte{0xeb})
	off = b8.Reserve(8)
	b8.Patch(off, -2, 8)
	require.Equal(t, []byte{0xeb, 0xfe}, b8.Bytes())
}
