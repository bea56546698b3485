package ia32

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sasmlabs/sasm/internal/asm"
)

type testSymbols struct {
	consts  map[string]string
	removed map[string]struct{}
	externs map[string]uint32
}

func (s testSymbols) Constant(name string) (string, bool) {
	repl, ok := s.consts[name]
	return repl, ok
}

func (s testSymbols) IsRemoved(name string) bool {
	_, ok := s.removed[name]
	return ok
}

func (s testSymbols) Extern(name string) (uint32, bool) {
	addr, ok := s.externs[name]
	return addr, ok
}

func TestParseOperand(t *testing.T) {
	syms := testSymbols{
		consts:  map[string]string{"count": "5", "dest": "edi"},
		removed: map[string]struct{}{"gone": {}},
		externs: map[string]uint32{"messageboxa": 0x7e450dea},
	}

	tests := []struct {
		name string
		text string
		exp  Operand
	}{
		{name: "32-bit register", text: "eax", exp: Operand{Kind: OperandReg16_32, Reg: RegAX, Width: Width32}},
		{name: "16-bit register", text: "si", exp: Operand{Kind: OperandReg16_32, Reg: RegSI, RegCode: 0b110, Width: Width16, text16: true}},
		{name: "8-bit register", text: "ch", exp: Operand{Kind: OperandReg8, Reg: RegCX, RegCode: 0b101, Width: Width8}},
		{name: "decimal literal", text: "42", exp: Operand{Kind: OperandConst, Value: 42}},
		{name: "hex literal", text: "0ffh", exp: Operand{Kind: OperandConst, Value: 255}},
		{name: "negative literal", text: "-2", exp: Operand{Kind: OperandConst, Value: -2}},
		{name: "substituted constant", text: "count", exp: Operand{Kind: OperandConst, Value: 5}},
		{name: "constant naming a register", text: "dest", exp: Operand{Kind: OperandReg16_32, Reg: RegDI, RegCode: 0b111, Width: Width32}},
		{name: "extern", text: "messageboxa", exp: Operand{Kind: OperandConst, Value: 0x7e450dea}},
		{name: "label reference", text: "target", exp: Operand{Kind: OperandSymbolic, Symbol: "target"}},
		{
			name: "plain address",
			text: "[ebx]",
			exp:  Operand{Kind: OperandAddress16_32, Base: RegBX},
		},
		{
			name: "byte hinted address",
			text: "byte [esi+1]",
			exp:  Operand{Kind: OperandAddress8, Base: RegSI, Disp: 1},
		},
		{
			name: "word hinted address",
			text: "word [edi]",
			exp:  Operand{Kind: OperandAddress16_32, Base: RegDI, text16: true},
		},
		{
			name: "base index scale disp",
			text: "[ebx+ecx*4+10h]",
			exp:  Operand{Kind: OperandAddress16_32, Base: RegBX, Index: RegCX, Scale: 4, Disp: 0x10},
		},
		{
			name: "scale before register",
			text: "[2*edx+8]",
			exp:  Operand{Kind: OperandAddress16_32, Index: RegDX, Scale: 2, Disp: 8},
		},
		{
			name: "two bare registers",
			text: "[ebp+eax]",
			exp:  Operand{Kind: OperandAddress16_32, Base: RegBP, Index: RegAX, Scale: 1},
		},
		{
			name: "folded literal terms",
			text: "[ebx+8+8h]",
			exp:  Operand{Kind: OperandAddress16_32, Base: RegBX, Disp: 16},
		},
		{
			name: "negative displacement",
			text: "[ebp-4]",
			exp:  Operand{Kind: OperandAddress16_32, Base: RegBP, Disp: -4},
		},
		{
			name: "pure displacement",
			text: "[401000h]",
			exp:  Operand{Kind: OperandAddress16_32, Disp: 0x401000},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			op, err := ParseOperand(tc.text, syms)
			require.NoError(t, err)
			require.Equal(t, tc.exp, op)
		})
	}
}

func TestParseOperand_errors(t *testing.T) {
	syms := testSymbols{removed: map[string]struct{}{"gone": {}}}

	tests := []struct {
		name string
		text string
		kind asm.ErrorKind
	}{
		{name: "removed constant", text: "gone", kind: asm.ErrShadowedConstant},
		{name: "removed constant in address", text: "[ebp+gone]", kind: asm.ErrShadowedConstant},
		{name: "four terms", text: "[eax+ebx+4+label]", kind: asm.ErrBadAddress},
		{name: "unknown register", text: "[eax+foo]", kind: asm.ErrBadAddress},
		{name: "negated register", text: "[-eax]", kind: asm.ErrBadAddress},
		{name: "negated index", text: "[eax-ebx*2]", kind: asm.ErrBadAddress},
		{name: "8-bit register in address", text: "[al]", kind: asm.ErrBadAddress},
		{name: "three registers", text: "[eax+ebx+ecx]", kind: asm.ErrBadAddress},
		{name: "two index terms", text: "[eax*2+ebx*2]", kind: asm.ErrBadAddress},
		{name: "bad scale", text: "[eax*3]", kind: asm.ErrBadAddress},
		{name: "symbolic scale", text: "[eax*ebx]", kind: asm.ErrBadAddress},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseOperand(tc.text, syms)
			require.Error(t, err)
			te, ok := err.(*asm.TranslationError)
			require.True(t, ok)
			require.Equal(t, tc.kind, te.Kind)
		})
	}
}

func TestParseOperand_constantChains(t *testing.T) {
	syms := testSymbols{consts: map[string]string{
		"a": "b+1",
		"b": "c+1",
		"c": "1",
	}}

	op, err := ParseOperand("[ebx+a]", syms)
	require.NoError(t, err)
	require.Equal(t, Operand{Kind: OperandAddress16_32, Base: RegBX, Disp: 3}, op)
}
