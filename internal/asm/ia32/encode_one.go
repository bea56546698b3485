package ia32

import (
	"math"

	"github.com/sasmlabs/sasm/internal/asm"
)

// condCodes maps conditional-jump mnemonics and their aliases to the low
// nibble of the two-byte 0x0F 0x8x opcode.
// https://www.felixcloutier.com/x86/jcc
var condCodes = map[string]byte{
	"jo": 0x0, "jno": 0x1,
	"jb": 0x2, "jc": 0x2, "jnae": 0x2,
	"jae": 0x3, "jnb": 0x3, "jnc": 0x3,
	"je": 0x4, "jz": 0x4,
	"jne": 0x5, "jnz": 0x5,
	"jbe": 0x6, "jna": 0x6,
	"ja": 0x7, "jnbe": 0x7,
	"js": 0x8, "jns": 0x9,
	"jp": 0xa, "jpe": 0xa,
	"jnp": 0xb, "jpo": 0xb,
	"jl": 0xc, "jnge": 0xc,
	"jge": 0xd, "jnl": 0xd,
	"jle": 0xe, "jng": 0xe,
	"jg": 0xf, "jnle": 0xf,
}

// shortJumpOpcodes covers the forms with only an 8-bit displacement.
var shortJumpOpcodes = map[string]byte{
	"jcxz":   0xe3,
	"jecxz":  0xe3,
	"loop":   0xe2,
	"loope":  0xe1,
	"loopz":  0xe1,
	"loopne": 0xe0,
	"loopnz": 0xe0,
}

// unaryGroupDigits is the 0xF6/0xF7 group: /digit selects the operation.
var unaryGroupDigits = map[string]byte{
	"not":  2,
	"neg":  3,
	"mul":  4,
	"imul": 5,
	"div":  6,
	"idiv": 7,
}

func (a *Assembler) encodeOne(n *Node) error {
	o := n.Operands[0]

	if cc, ok := condCodes[n.Mnemonic]; ok {
		n.Buf.WriteByte(0x0f)
		n.Buf.WriteByte(0x80 | cc)
		return a.encodeJumpTarget(n, o, 32)
	}
	if opc, ok := shortJumpOpcodes[n.Mnemonic]; ok {
		if n.Mnemonic == "jcxz" {
			n.Prefixes = append(n.Prefixes, 0x67)
		}
		n.Buf.WriteByte(opc)
		return a.encodeJumpTarget(n, o, 8)
	}
	if digit, ok := unaryGroupDigits[n.Mnemonic]; ok {
		if !o.IsRegister() && !o.IsAddress() {
			return asm.NewBadOperandCombination(n.Mnemonic, "operand must be a register or memory")
		}
		if o.Is8Bit() {
			n.Buf.WriteByte(0xf6)
		} else {
			n.Buf.WriteByte(0xf7)
		}
		return encodeRM(n, o, digit)
	}

	switch n.Mnemonic {
	case "push":
		return a.encodePush(n, o)
	case "pop":
		return a.encodePop(n, o)
	case "inc":
		return a.encodeIncDec(n, o, 0x40, 0)
	case "dec":
		return a.encodeIncDec(n, o, 0x48, 1)
	case "call":
		return a.encodeCall(n, o)
	case "jmp":
		return a.encodeJmp(n, o)
	case "ret", "retn":
		return encodeRetImm(n, o, 0xc2)
	case "retf":
		return encodeRetImm(n, o, 0xca)
	case "int":
		return encodeByteImm(n, o, 0xcd)
	case "in":
		return encodeByteImm(n, o, 0xe5)
	case "out":
		return encodeByteImm(n, o, 0xe7)
	case "storeb":
		return encodeStore(n, o, 8)
	case "storew":
		return encodeStore(n, o, 16)
	case "stored":
		return encodeStore(n, o, 32)
	}
	return asm.NewUnknownMnemonic(n.Mnemonic)
}

// encodeJumpTarget emits the displacement of a relative jump whose opcode
// bytes are already written. Constants are taken as literal displacements;
// symbolic targets reserve placeholder bytes and a relative fixup.
func (a *Assembler) encodeJumpTarget(n *Node, o Operand, width byte) error {
	switch o.Kind {
	case OperandConst:
		if width == 8 && !fitsInt8(o.Value) {
			return asm.NewBadImmediate(int64(o.Value), 8)
		}
		n.Buf.WriteConst(int64(o.Value), width)
		return nil
	case OperandSymbolic:
		a.reserveFixup(n, o.Symbol, width, true)
		return nil
	}
	return asm.NewBadOperandCombination(n.Mnemonic, "target must be a label or constant")
}

func (a *Assembler) encodePush(n *Node, o Operand) error {
	switch o.Kind {
	case OperandConst:
		if fitsInt8(o.Value) {
			n.Buf.WriteByte(0x6a)
			n.Buf.WriteConst(int64(o.Value), 8)
		} else {
			n.Buf.WriteByte(0x68)
			n.Buf.WriteConst(int64(o.Value), 32)
		}
		return nil
	case OperandSymbolic:
		n.Buf.WriteByte(0x68)
		a.reserveFixup(n, o.Symbol, 32, false)
		return nil
	case OperandReg16_32:
		n.Buf.WriteByte(0x50 + o.RegCode)
		return nil
	case OperandAddress16_32:
		n.Buf.WriteByte(0xff)
		return n.encodeMemory(o, 6)
	}
	return asm.NewBadOperandCombination("push", "operand must be dword sized")
}

func (a *Assembler) encodePop(n *Node, o Operand) error {
	switch o.Kind {
	case OperandReg16_32:
		n.Buf.WriteByte(0x58 + o.RegCode)
		return nil
	case OperandAddress16_32:
		n.Buf.WriteByte(0x8f)
		return n.encodeMemory(o, 0)
	}
	return asm.NewBadOperandCombination("pop", "operand must be a dword register or memory")
}

func (a *Assembler) encodeIncDec(n *Node, o Operand, shortBase, digit byte) error {
	switch o.Kind {
	case OperandReg16_32:
		n.Buf.WriteByte(shortBase + o.RegCode)
		return nil
	case OperandReg8, OperandAddress8:
		n.Buf.WriteByte(0xfe)
		return encodeRM(n, o, digit)
	case OperandAddress16_32:
		n.Buf.WriteByte(0xff)
		return encodeRM(n, o, digit)
	}
	return asm.NewBadOperandCombination(n.Mnemonic, "operand must be a register or memory")
}

func (a *Assembler) encodeCall(n *Node, o Operand) error {
	switch o.Kind {
	case OperandConst, OperandSymbolic:
		n.Buf.WriteByte(0xe8)
		return a.encodeJumpTarget(n, o, 32)
	case OperandReg16_32, OperandAddress16_32:
		n.Buf.WriteByte(0xff)
		return encodeRM(n, o, 2)
	}
	return asm.NewBadOperandCombination("call", "target must be dword sized")
}

// encodeJmp picks the two-byte short form when the target is a known
// backward label in range or a byte-sized constant; everything else uses
// the five-byte near form. The choice must happen here because the
// instruction's length feeds every later offset.
func (a *Assembler) encodeJmp(n *Node, o Operand) error {
	switch o.Kind {
	case OperandConst:
		if fitsInt8(o.Value) {
			n.Buf.WriteByte(0xeb)
			n.Buf.WriteConst(int64(o.Value), 8)
		} else {
			n.Buf.WriteByte(0xe9)
			n.Buf.WriteConst(int64(o.Value), 32)
		}
		return nil
	case OperandSymbolic:
		if off, ok := a.labelOffset(o.Symbol); ok {
			disp := off - n.OffsetInBinary - len(n.Prefixes) - 2
			if disp >= math.MinInt8 && disp <= math.MaxInt8 {
				n.Buf.WriteByte(0xeb)
				a.reserveFixup(n, o.Symbol, 8, true)
				return nil
			}
		}
		n.Buf.WriteByte(0xe9)
		a.reserveFixup(n, o.Symbol, 32, true)
		return nil
	case OperandReg16_32, OperandAddress16_32:
		n.Buf.WriteByte(0xff)
		return encodeRM(n, o, 4)
	}
	return asm.NewBadOperandCombination("jmp", "target must be dword sized")
}

func encodeRetImm(n *Node, o Operand, opcode byte) error {
	if o.Kind != OperandConst {
		return asm.NewBadOperandCombination(n.Mnemonic, "operand must be a constant")
	}
	n.Buf.WriteByte(opcode)
	n.Buf.WriteConst(int64(o.Value), 32)
	return nil
}

func encodeByteImm(n *Node, o Operand, opcode byte) error {
	if o.Kind != OperandConst {
		return asm.NewBadOperandCombination(n.Mnemonic, "operand must be a constant")
	}
	if o.Value < math.MinInt8 || o.Value > math.MaxUint8 {
		return asm.NewBadImmediate(int64(o.Value), 8)
	}
	n.Buf.WriteByte(opcode)
	n.Buf.WriteConst(int64(o.Value), 8)
	return nil
}

func encodeStore(n *Node, o Operand, width byte) error {
	if o.Kind != OperandConst {
		return asm.NewBadOperandCombination(n.Mnemonic, "value must be a constant")
	}
	n.Buf.WriteConst(int64(o.Value), width)
	return nil
}
