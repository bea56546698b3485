package ia32

import (
	"github.com/sasmlabs/sasm/internal/asm"
)

// encode parses the node's raw operands and dispatches on their count.
// Prefix bytes are settled here so that every later length computation,
// including the short-jump decision, sees the final instruction size.
func (a *Assembler) encode(n *Node) error {
	for _, raw := range n.RawOperands {
		op, err := ParseOperand(raw, a)
		if err != nil {
			return err
		}
		n.Operands = append(n.Operands, op)
	}

	if n.Mnemonic != "movzx" {
		emitSizePrefixes(n)
	}

	switch len(n.Operands) {
	case 0:
		return a.encodeNone(n)
	case 1:
		return a.encodeOne(n)
	case 2:
		return a.encodeTwo(n)
	case 3:
		return a.encodeThree(n)
	}
	return asm.NewBadOperandCombination(n.Mnemonic, "too many operands")
}

// emitSizePrefixes appends 0x66 for the first operand spelled with a
// 16-bit size and 0x67 for a further 16-bit memory operand.
func emitSizePrefixes(n *Node) {
	seen := false
	for _, op := range n.Operands {
		if !op.text16 {
			continue
		}
		if !seen {
			n.Prefixes = append(n.Prefixes, 0x66)
			seen = true
		} else if op.IsAddress() {
			n.Prefixes = append(n.Prefixes, 0x67)
		}
	}
}

// modRMRegister writes a mod=11 ModR/M byte selecting the register rm.
func modRMRegister(n *Node, reg, rm byte) {
	n.Buf.WriteByte(0b11_000_000 | reg<<3 | rm)
}

// encodeRM writes the ModR/M (and SIB/displacement) bytes for an operand
// in the r/m slot, with reg occupying the middle field.
func encodeRM(n *Node, o Operand, reg byte) error {
	if o.IsRegister() {
		modRMRegister(n, reg, o.RegCode)
		return nil
	}
	return n.encodeMemory(o, reg)
}
