package ia32

// Register identifies one general purpose register of the 32-bit
// protected-mode register file. The zero value NilRegister means "no
// register", which operand parsing uses for absent base/index registers.
type Register byte

const (
	NilRegister Register = iota
	RegAX
	RegCX
	RegDX
	RegBX
	RegSP
	RegBP
	RegSI
	RegDI
)

// RegisterWidth distinguishes the three textual register families. The
// encoded 3-bit register code is shared between the 16- and 32-bit
// spellings; the width only matters for prefix emission and operand-size
// checks.
type RegisterWidth byte

const (
	Width8 RegisterWidth = iota
	Width16
	Width32
)

// registers maps every textual register name to its identity, its width
// and its 3-bit encoding. The 8-bit file reuses codes 0-7 with the
// high-byte registers ah/ch/dh/bh at 4-7.
// https://wiki.osdev.org/X86-64_Instruction_Encoding#Registers
var registers = map[string]struct {
	reg   Register
	width RegisterWidth
	code  byte
}{
	"eax": {RegAX, Width32, 0b000},
	"ecx": {RegCX, Width32, 0b001},
	"edx": {RegDX, Width32, 0b010},
	"ebx": {RegBX, Width32, 0b011},
	"esp": {RegSP, Width32, 0b100},
	"ebp": {RegBP, Width32, 0b101},
	"esi": {RegSI, Width32, 0b110},
	"edi": {RegDI, Width32, 0b111},

	"ax": {RegAX, Width16, 0b000},
	"cx": {RegCX, Width16, 0b001},
	"dx": {RegDX, Width16, 0b010},
	"bx": {RegBX, Width16, 0b011},
	"sp": {RegSP, Width16, 0b100},
	"bp": {RegBP, Width16, 0b101},
	"si": {RegSI, Width16, 0b110},
	"di": {RegDI, Width16, 0b111},

	"al": {RegAX, Width8, 0b000},
	"cl": {RegCX, Width8, 0b001},
	"dl": {RegDX, Width8, 0b010},
	"bl": {RegBX, Width8, 0b011},
	"ah": {RegAX, Width8, 0b100},
	"ch": {RegCX, Width8, 0b101},
	"dh": {RegDX, Width8, 0b110},
	"bh": {RegBX, Width8, 0b111},
}

// register3bits returns the ModR/M / SIB encoding of a 16/32-bit register.
func register3bits(r Register) byte {
	// Register identities are laid out in encoding order.
	return byte(r - RegAX)
}

// IsRegisterName reports whether name spells any register. Label
// collection uses it to reserve register names.
func IsRegisterName(name string) bool {
	_, ok := registers[name]
	return ok
}

func registerName(r Register) string {
	switch r {
	case RegAX:
		return "eax"
	case RegCX:
		return "ecx"
	case RegDX:
		return "edx"
	case RegBX:
		return "ebx"
	case RegSP:
		return "esp"
	case RegBP:
		return "ebp"
	case RegSI:
		return "esi"
	case RegDI:
		return "edi"
	}
	return "?"
}
