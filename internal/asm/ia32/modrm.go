package ia32

import (
	"math"

	"github.com/sasmlabs/sasm/internal/asm"
)

// memoryLocation composes the ModR/M mod and r/m fields, the SIB byte and
// the displacement width for a memory operand. The returned modRM carries
// only the mod and r/m bits; the caller ORs the reg field in.
// https://wiki.osdev.org/X86-64_Instruction_Encoding#32.2F64-bit_addressing
func (o Operand) memoryLocation() (modRM, sib byte, useSIB bool, dispWidth byte, err error) {
	base, index, scale, disp := o.Base, o.Index, o.Scale, o.Disp

	// esp cannot be an index. With scale 1 the operand means the same
	// thing with the registers swapped, so swap; otherwise reject.
	if index == RegSP {
		if scale != 1 {
			err = asm.NewBadAddress(o.String(), "esp cannot be scaled")
			return
		}
		if base == RegSP {
			err = asm.NewBadAddress(o.String(), "esp twice in address")
			return
		}
		base, index = index, base
	}

	// With a base present, prefer ebp in the base field. The swap is only
	// meaning-preserving at scale 1.
	if index == RegBP && base != NilRegister && scale == 1 {
		base, index = index, base
	}

	if base == NilRegister && index == NilRegister {
		// Pure displacement: mod=00, r/m=101, disp32.
		modRM = 0b00_000_101
		dispWidth = 32
		return
	}

	if index == NilRegister && base != RegSP {
		rm := register3bits(base)
		switch {
		case disp == 0 && base != RegBP:
			// [ebp] has no mod=00 encoding; that slot is disp32.
			modRM = 0b00_000_000 | rm
		case fitsInt8(disp):
			modRM = 0b01_000_000 | rm
			dispWidth = 8
		default:
			modRM = 0b10_000_000 | rm
			dispWidth = 32
		}
		return
	}

	// Everything else needs a SIB byte: r/m=100 selects it.
	useSIB = true

	var scaleBits byte
	switch scale {
	case 0, 1:
	case 2:
		scaleBits = 0b01
	case 4:
		scaleBits = 0b10
	case 8:
		scaleBits = 0b11
	}

	indexBits := byte(0b100) // none
	if index != NilRegister {
		indexBits = register3bits(index)
	}

	if base == NilRegister {
		// [index*scale + disp]: SIB base=101 under mod=00 means disp32.
		modRM = 0b00_000_100
		sib = scaleBits<<6 | indexBits<<3 | 0b101
		dispWidth = 32
		return
	}

	baseBits := register3bits(base)
	switch {
	case disp == 0 && base != RegBP:
		modRM = 0b00_000_100
	case fitsInt8(disp):
		modRM = 0b01_000_100
		dispWidth = 8
	default:
		modRM = 0b10_000_100
		dispWidth = 32
	}
	sib = scaleBits<<6 | indexBits<<3 | baseBits
	return
}

func fitsInt8(v int32) bool {
	return v >= math.MinInt8 && v <= math.MaxInt8
}

// encodeMemory writes the ModR/M byte with reg in the middle field, then
// the SIB byte and displacement of the memory operand o.
func (n *Node) encodeMemory(o Operand, reg byte) error {
	modRM, sib, useSIB, dispWidth, err := o.memoryLocation()
	if err != nil {
		return err
	}
	n.Buf.WriteByte(modRM | reg<<3)
	if useSIB {
		n.Buf.WriteByte(sib)
	}
	if dispWidth != 0 {
		n.Buf.WriteConst(int64(o.Disp), dispWidth)
	}
	return nil
}
