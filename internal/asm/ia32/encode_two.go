package ia32

import (
	"math"

	"github.com/sasmlabs/sasm/internal/asm"
)

// arithGroups maps the eight ALU mnemonics to their group index. The
// reg/mem base opcode is index*8 and the index doubles as the /digit of
// the 0x80/0x81/0x83 immediate forms.
// https://www.felixcloutier.com/x86/add
var arithGroups = map[string]byte{
	"add": 0,
	"or":  1,
	"adc": 2,
	"sbb": 3,
	"and": 4,
	"sub": 5,
	"xor": 6,
	"cmp": 7,
}

// shiftDigits selects the operation of the 0xC0/0xC1/0xD2/0xD3 group.
var shiftDigits = map[string]byte{
	"rol": 0,
	"ror": 1,
	"rcl": 2,
	"rcr": 3,
	"shl": 4,
	"sal": 4,
	"shr": 5,
	"sar": 7,
}

func (a *Assembler) encodeTwo(n *Node) error {
	dst, src := n.Operands[0], n.Operands[1]
	if dst.Kind == OperandConst || dst.Kind == OperandSymbolic {
		return asm.NewBadOperandCombination(n.Mnemonic, "first operand cannot be a constant")
	}
	if dst.IsAddress() && src.IsAddress() {
		return asm.NewBadOperandCombination(n.Mnemonic, "memory to memory")
	}

	if group, ok := arithGroups[n.Mnemonic]; ok {
		return a.encodeArith(n, dst, src, group)
	}
	if digit, ok := shiftDigits[n.Mnemonic]; ok {
		return encodeShift(n, dst, src, digit)
	}

	switch n.Mnemonic {
	case "mov":
		return a.encodeMov(n, dst, src)
	case "test":
		return encodeTest(n, dst, src)
	case "xchg":
		return encodeXchg(n, dst, src)
	case "lea":
		return encodeLea(n, dst, src)
	case "imul":
		return encodeImul2(n, dst, src)
	case "movzx":
		return encodeMovzx(n, dst, src)
	}
	return asm.NewUnknownMnemonic(n.Mnemonic)
}

// sameWidth rejects 8-bit paired with 16/32-bit when both operands carry a
// size.
func sameWidth(n *Node, dst, src Operand) error {
	if dst.Is8Bit() != src.Is8Bit() {
		return asm.NewBadOperandCombination(n.Mnemonic, "operand size mismatch")
	}
	return nil
}

func (a *Assembler) encodeArith(n *Node, dst, src Operand, group byte) error {
	base := group * 8
	switch {
	case src.IsRegister():
		if err := sameWidth(n, dst, src); err != nil {
			return err
		}
		if !dst.Is8Bit() {
			base++
		}
		n.Buf.WriteByte(base)
		return encodeRM(n, dst, src.RegCode)
	case src.IsAddress():
		if !dst.IsRegister() {
			return asm.NewBadOperandCombination(n.Mnemonic, "source memory needs a register destination")
		}
		if err := sameWidth(n, dst, src); err != nil {
			return err
		}
		base += 2
		if !dst.Is8Bit() {
			base++
		}
		n.Buf.WriteByte(base)
		return encodeRM(n, src, dst.RegCode)
	case src.Kind == OperandConst:
		return encodeArithImm(n, dst, src.Value, group)
	case src.Kind == OperandSymbolic && (n.Mnemonic == "add" || n.Mnemonic == "sub"):
		if dst.Is8Bit() {
			return asm.NewBadOperandCombination(n.Mnemonic, "label value needs a dword destination")
		}
		n.Buf.WriteByte(0x81)
		if err := encodeRM(n, dst, group); err != nil {
			return err
		}
		a.reserveFixup(n, src.Symbol, 32, false)
		return nil
	}
	return asm.NewBadOperandCombination(n.Mnemonic, "unsupported source operand")
}

func encodeArithImm(n *Node, dst Operand, v int32, group byte) error {
	switch {
	case dst.Is8Bit():
		if v < math.MinInt8 || v > math.MaxUint8 {
			return asm.NewBadImmediate(int64(v), 8)
		}
		n.Buf.WriteByte(0x80)
		if err := encodeRM(n, dst, group); err != nil {
			return err
		}
		n.Buf.WriteConst(int64(v), 8)
	case fitsInt8(v):
		// Sign-extended byte form.
		n.Buf.WriteByte(0x83)
		if err := encodeRM(n, dst, group); err != nil {
			return err
		}
		n.Buf.WriteConst(int64(v), 8)
	default:
		n.Buf.WriteByte(0x81)
		if err := encodeRM(n, dst, group); err != nil {
			return err
		}
		n.Buf.WriteConst(int64(v), 32)
	}
	return nil
}

func (a *Assembler) encodeMov(n *Node, dst, src Operand) error {
	switch {
	case src.IsRegister():
		if err := sameWidth(n, dst, src); err != nil {
			return err
		}
		if src.Is8Bit() {
			n.Buf.WriteByte(0x88)
		} else {
			n.Buf.WriteByte(0x89)
		}
		return encodeRM(n, dst, src.RegCode)
	case src.IsAddress():
		if !dst.IsRegister() {
			return asm.NewBadOperandCombination("mov", "source memory needs a register destination")
		}
		if err := sameWidth(n, dst, src); err != nil {
			return err
		}
		if dst.Is8Bit() {
			n.Buf.WriteByte(0x8a)
		} else {
			n.Buf.WriteByte(0x8b)
		}
		return encodeRM(n, src, dst.RegCode)
	case src.Kind == OperandConst:
		if dst.Is8Bit() {
			if src.Value < math.MinInt8 || src.Value > math.MaxUint8 {
				return asm.NewBadImmediate(int64(src.Value), 8)
			}
			n.Buf.WriteByte(0xc6)
			if err := encodeRM(n, dst, 0); err != nil {
				return err
			}
			n.Buf.WriteConst(int64(src.Value), 8)
			return nil
		}
		n.Buf.WriteByte(0xc7)
		if err := encodeRM(n, dst, 0); err != nil {
			return err
		}
		n.Buf.WriteConst(int64(src.Value), 32)
		return nil
	case src.Kind == OperandSymbolic:
		if dst.Is8Bit() {
			return asm.NewBadOperandCombination("mov", "label value needs a dword destination")
		}
		n.Buf.WriteByte(0xc7)
		if err := encodeRM(n, dst, 0); err != nil {
			return err
		}
		a.reserveFixup(n, src.Symbol, 32, false)
		return nil
	}
	return asm.NewBadOperandCombination("mov", "unsupported source operand")
}

func encodeTest(n *Node, dst, src Operand) error {
	switch {
	case src.IsRegister():
		if err := sameWidth(n, dst, src); err != nil {
			return err
		}
		if src.Is8Bit() {
			n.Buf.WriteByte(0x84)
		} else {
			n.Buf.WriteByte(0x85)
		}
		return encodeRM(n, dst, src.RegCode)
	case src.IsAddress() && dst.IsRegister():
		// test is commutative; only the rm,reg form exists.
		if err := sameWidth(n, dst, src); err != nil {
			return err
		}
		if dst.Is8Bit() {
			n.Buf.WriteByte(0x84)
		} else {
			n.Buf.WriteByte(0x85)
		}
		return encodeRM(n, src, dst.RegCode)
	case src.Kind == OperandConst:
		if dst.Is8Bit() {
			if src.Value < math.MinInt8 || src.Value > math.MaxUint8 {
				return asm.NewBadImmediate(int64(src.Value), 8)
			}
			n.Buf.WriteByte(0xf6)
			if err := encodeRM(n, dst, 0); err != nil {
				return err
			}
			n.Buf.WriteConst(int64(src.Value), 8)
			return nil
		}
		n.Buf.WriteByte(0xf7)
		if err := encodeRM(n, dst, 0); err != nil {
			return err
		}
		n.Buf.WriteConst(int64(src.Value), 32)
		return nil
	}
	return asm.NewBadOperandCombination("test", "unsupported source operand")
}

func encodeXchg(n *Node, dst, src Operand) error {
	if !dst.IsRegister() && !src.IsRegister() {
		return asm.NewBadOperandCombination("xchg", "one operand must be a register")
	}
	if err := sameWidth(n, dst, src); err != nil {
		return err
	}
	reg, rm := src, dst
	if !reg.IsRegister() {
		reg, rm = dst, src
	}
	if reg.Is8Bit() {
		n.Buf.WriteByte(0x86)
	} else {
		n.Buf.WriteByte(0x87)
	}
	return encodeRM(n, rm, reg.RegCode)
}

func encodeLea(n *Node, dst, src Operand) error {
	if dst.Kind != OperandReg16_32 || !src.IsAddress() {
		return asm.NewBadOperandCombination("lea", "needs a dword register destination and a memory source")
	}
	n.Buf.WriteByte(0x8d)
	return n.encodeMemory(src, dst.RegCode)
}

func encodeShift(n *Node, dst, src Operand, digit byte) error {
	if !dst.IsRegister() {
		return asm.NewBadOperandCombination(n.Mnemonic, "first operand must be a register")
	}
	switch {
	case src.Kind == OperandConst:
		if src.Value < 0 || src.Value > math.MaxUint8 {
			return asm.NewBadImmediate(int64(src.Value), 8)
		}
		if dst.Is8Bit() {
			n.Buf.WriteByte(0xc0)
		} else {
			n.Buf.WriteByte(0xc1)
		}
		modRMRegister(n, digit, dst.RegCode)
		n.Buf.WriteConst(int64(src.Value), 8)
		return nil
	case src.Kind == OperandReg8 && src.Reg == RegCX && src.RegCode == 0b001:
		if dst.Is8Bit() {
			n.Buf.WriteByte(0xd2)
		} else {
			n.Buf.WriteByte(0xd3)
		}
		modRMRegister(n, digit, dst.RegCode)
		return nil
	}
	return asm.NewBadOperandCombination(n.Mnemonic, "count must be a constant or cl")
}

func encodeImul2(n *Node, dst, src Operand) error {
	if dst.Kind != OperandReg16_32 {
		return asm.NewBadOperandCombination("imul", "destination must be a dword register")
	}
	if src.Kind != OperandReg16_32 && src.Kind != OperandAddress16_32 {
		return asm.NewBadOperandCombination("imul", "source must be dword sized")
	}
	n.Buf.WriteByte(0x0f)
	n.Buf.WriteByte(0xaf)
	return encodeRM(n, src, dst.RegCode)
}

// encodeMovzx never emits size prefixes: the source width is part of the
// opcode and the destination is always 32-bit.
func encodeMovzx(n *Node, dst, src Operand) error {
	if dst.Kind != OperandReg16_32 || dst.Width != Width32 {
		return asm.NewBadOperandCombination("movzx", "destination must be a dword register")
	}
	n.Buf.WriteByte(0x0f)
	switch {
	case src.Kind == OperandReg8 || src.Kind == OperandAddress8:
		n.Buf.WriteByte(0xb6)
	case src.Kind == OperandReg16_32 && src.Width == Width16,
		src.Kind == OperandAddress16_32 && src.text16:
		n.Buf.WriteByte(0xb7)
	default:
		return asm.NewBadOperandCombination("movzx", "source must be byte or word sized")
	}
	return encodeRM(n, src, dst.RegCode)
}

func (a *Assembler) encodeThree(n *Node) error {
	if n.Mnemonic != "imul" {
		return asm.NewUnknownMnemonic(n.Mnemonic)
	}
	dst, src, imm := n.Operands[0], n.Operands[1], n.Operands[2]
	if dst.Kind != OperandReg16_32 {
		return asm.NewBadOperandCombination("imul", "destination must be a dword register")
	}
	if src.Kind != OperandReg16_32 && src.Kind != OperandAddress16_32 {
		return asm.NewBadOperandCombination("imul", "source must be dword sized")
	}
	if imm.Kind != OperandConst {
		return asm.NewBadOperandCombination("imul", "third operand must be a constant")
	}
	if fitsInt8(imm.Value) {
		n.Buf.WriteByte(0x6b)
		if err := encodeRM(n, src, dst.RegCode); err != nil {
			return err
		}
		n.Buf.WriteConst(int64(imm.Value), 8)
		return nil
	}
	n.Buf.WriteByte(0x69)
	if err := encodeRM(n, src, dst.RegCode); err != nil {
		return err
	}
	n.Buf.WriteConst(int64(imm.Value), 32)
	return nil
}
