package ia32

import "fmt"

// OperandKind tags the Operand sum type.
type OperandKind byte

const (
	// OperandConst is a signed 32-bit immediate.
	OperandConst OperandKind = iota
	// OperandSymbolic is a label reference whose value is unknown until
	// the fixup pass; it reserves zero bytes when encoded.
	OperandSymbolic
	// OperandReg8 is one of al,cl,dl,bl,ah,ch,dh,bh.
	OperandReg8
	// OperandReg16_32 is a 16- or 32-bit register; the width is carried
	// separately since the encoded code is shared between spellings.
	OperandReg16_32
	// OperandAddress8 is a byte-sized memory operand.
	OperandAddress8
	// OperandAddress16_32 is a word- or dword-sized memory operand.
	OperandAddress16_32
)

// String implements fmt.Stringer.
func (k OperandKind) String() (ret string) {
	switch k {
	case OperandConst:
		ret = "const"
	case OperandSymbolic:
		ret = "symbolic"
	case OperandReg8:
		ret = "reg8"
	case OperandReg16_32:
		ret = "reg16_32"
	case OperandAddress8:
		ret = "address8"
	case OperandAddress16_32:
		ret = "address16_32"
	}
	return
}

// Operand is one parsed instruction operand.
type Operand struct {
	Kind OperandKind

	// Value is the immediate for OperandConst.
	Value int32
	// Symbol is the referenced label name for OperandSymbolic.
	Symbol string

	// Reg and RegCode describe register operands. For address operands
	// Base/Index/Scale/Disp describe [base + index*scale + disp]; Scale
	// is zero when there is no index.
	Reg     Register
	RegCode byte
	Width   RegisterWidth

	Base  Register
	Index Register
	Scale byte
	Disp  int32

	// text16 records that the textual form was a 16-bit register or
	// carried a "word" size hint, which drives 0x66/0x67 prefix emission.
	text16 bool
}

// IsRegister reports whether the operand is a register of either file.
func (o Operand) IsRegister() bool {
	return o.Kind == OperandReg8 || o.Kind == OperandReg16_32
}

// IsAddress reports whether the operand is a memory operand.
func (o Operand) IsAddress() bool {
	return o.Kind == OperandAddress8 || o.Kind == OperandAddress16_32
}

// Is8Bit reports whether the operand selects the 8-bit operand size.
func (o Operand) Is8Bit() bool {
	return o.Kind == OperandReg8 || o.Kind == OperandAddress8
}

// String implements fmt.Stringer, for error reporting.
func (o Operand) String() string {
	switch o.Kind {
	case OperandConst:
		return fmt.Sprintf("0x%x", uint32(o.Value))
	case OperandSymbolic:
		return o.Symbol
	case OperandReg8, OperandReg16_32:
		return fmt.Sprintf("%s(code=%d)", registerName(o.Reg), o.RegCode)
	default:
		if o.Index != NilRegister {
			return fmt.Sprintf("[%s + %s*%d + 0x%x]", registerName(o.Base), registerName(o.Index), o.Scale, uint32(o.Disp))
		} else if o.Base != NilRegister {
			return fmt.Sprintf("[%s + 0x%x]", registerName(o.Base), uint32(o.Disp))
		}
		return fmt.Sprintf("[0x%x]", uint32(o.Disp))
	}
}
