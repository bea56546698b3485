package asm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsNumericLiteral(t *testing.T) {
	tests := []struct {
		in  string
		exp bool
	}{
		{in: "0", exp: true},
		{in: "123", exp: true},
		{in: "-123", exp: true},
		{in: "+123", exp: true},
		{in: "123d", exp: true},
		{in: "101b", exp: true},
		{in: "0ffh", exp: true},
		{in: "10h", exp: true},
		{in: "-10h", exp: true},
		{in: "", exp: false},
		{in: "-", exp: false},
		{in: "h", exp: false},
		// Hex literals must begin with a decimal digit.
		{in: "ffh", exp: false},
		{in: "eax", exp: false},
		{in: "12x", exp: false},
		{in: "1_2", exp: false},
		// 'b' and 'd' double as suffix letters and digits.
		{in: "1b1", exp: true},
		{in: "dd", exp: true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.in, func(t *testing.T) {
			require.Equal(t, tc.exp, IsNumericLiteral(tc.in))
		})
	}
}

func TestParseLiteral(t *testing.T) {
	tests := []struct {
		in  string
		exp int32
	}{
		{in: "0", exp: 0},
		{in: "123", exp: 123},
		{in: "123d", exp: 123},
		{in: "-123", exp: -123},
		{in: "+55", exp: 55},
		{in: "101b", exp: 5},
		{in: "10h", exp: 16},
		{in: "0ffh", exp: 255},
		{in: "-10h", exp: -16},
		{in: "0ffffffffh", exp: -1},
		{in: "2147483647", exp: 2147483647},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.in, func(t *testing.T) {
			actual, ok := ParseLiteral(tc.in)
			require.True(t, ok)
			require.Equal(t, tc.exp, actual)
		})
	}

	t.Run("not a literal", func(t *testing.T) {
		_, ok := ParseLiteral("eax")
		require.False(t, ok)
	})
}

func TestFoldTerms(t *testing.T) {
	tests := []struct {
		in, exp string
	}{
		{in: "10h", exp: "16"},
		{in: "1+2", exp: "3"},
		{in: "1-2", exp: "-1"},
		{in: "ebx", exp: "ebx"},
		{in: "ebx+8", exp: "ebx+8"},
		{in: "ebx-8", exp: "ebx-8"},
		{in: "ebx+8+ecx*4+8h", exp: "ebx+ecx*4+16"},
		{in: "8+ebx", exp: "ebx+8"},
		{in: "ebx+4+4", exp: "ebx+8"},
		{in: "ebx+4-8", exp: "ebx-4"},
		{in: "ebp-10h", exp: "ebp-16"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.in, func(t *testing.T) {
			require.Equal(t, tc.exp, FoldTerms(tc.in))
		})
	}
}

func TestSplitTerms(t *testing.T) {
	terms, signs := SplitTerms("ebx+ecx*4-10h")
	require.Equal(t, []string{"ebx", "ecx*4", "10h"}, terms)
	require.Equal(t, []byte{'+', '+', '-'}, signs)

	terms, signs = SplitTerms("-5+eax")
	require.Equal(t, []string{"5", "eax"}, terms)
	require.Equal(t, []byte{'-', '+'}, signs)
}
