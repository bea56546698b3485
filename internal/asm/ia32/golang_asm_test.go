package ia32

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/twitchyliquid64/golang-asm/obj"
	"github.com/twitchyliquid64/golang-asm/obj/x86"

	"github.com/sasmlabs/sasm/internal/asm/golang_asm"
)

// The Go toolchain is free to pick any of several valid encodings for most
// instructions, so the cross-check sticks to forms with exactly one
// encoding plus the reg-to-reg arithmetic group, where both encoders
// prefer the r/m, r direction.

func TestEncode_matchesGoToolchainStandalone(t *testing.T) {
	tests := []struct {
		text string
		as   obj.As
	}{
		{text: "ret", as: obj.ARET},
		{text: "pushf", as: x86.APUSHFL},
		{text: "popf", as: x86.APOPFL},
		{text: "cdq", as: x86.ACDQ},
		{text: "cwd", as: x86.ACWD},
		{text: "clc", as: x86.ACLC},
		{text: "stc", as: x86.ASTC},
		{text: "cld", as: x86.ACLD},
		{text: "std", as: x86.ASTD},
		{text: "sahf", as: x86.ASAHF},
		{text: "lahf", as: x86.ALAHF},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.text, func(t *testing.T) {
			want, err := golang_asm.EncodeStandalone(tc.as)
			require.NoError(t, err)
			require.Equal(t, want, assembleLine(t, tc.text))
		})
	}
}

func TestEncode_matchesGoToolchainRegToReg(t *testing.T) {
	tests := []struct {
		text     string
		as       obj.As
		from, to int16
	}{
		{text: "mov ebx, ecx", as: x86.AMOVL, from: x86.REG_CX, to: x86.REG_BX},
		{text: "add esi, edi", as: x86.AADDL, from: x86.REG_DI, to: x86.REG_SI},
		{text: "sub eax, edx", as: x86.ASUBL, from: x86.REG_DX, to: x86.REG_AX},
		{text: "xor ebp, eax", as: x86.AXORL, from: x86.REG_AX, to: x86.REG_BP},
		{text: "and ecx, ebx", as: x86.AANDL, from: x86.REG_BX, to: x86.REG_CX},
		{text: "or edx, esp", as: x86.AORL, from: x86.REG_SP, to: x86.REG_DX},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.text, func(t *testing.T) {
			want, err := golang_asm.EncodeRegisterToRegister(tc.as, tc.from, tc.to)
			require.NoError(t, err)
			require.Equal(t, want, assembleLine(t, tc.text))
		})
	}
}

func assembleLine(t *testing.T, text string) []byte {
	t.Helper()
	a := NewAssembler()
	require.NoError(t, a.Add(text))
	out, err := a.Assemble()
	require.NoError(t, err)
	return out.Code
}
