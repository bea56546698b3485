package ia32

import "github.com/sasmlabs/sasm/internal/asm"

// zeroOperandOpcodes maps every supported operand-less mnemonic to the
// bytes it emits. The w-sized string primitives and the 16-bit sign
// extensions carry their 0x66 prefix inside the table since it is part of
// the fixed form, not derived from any operand.
// https://www.felixcloutier.com/x86/
var zeroOperandOpcodes = map[string][]byte{
	"pusha": {0x60},
	"popa":  {0x61},
	"pushf": {0x9c},
	"popf":  {0x9d},

	"ret":  {0xc3},
	"retn": {0xc3},
	"retf": {0xcb},

	"nop": {0x90},

	"cmc": {0xf5},
	"clc": {0xf8},
	"stc": {0xf9},
	"cli": {0xfa},
	"sti": {0xfb},
	"cld": {0xfc},
	"std": {0xfd},

	"int1": {0xf1},
	"int3": {0xcc},

	"lahf": {0x9f},
	"sahf": {0x9e},

	"cbw":  {0x66, 0x98},
	"cwde": {0x98},
	"cwd":  {0x66, 0x99},
	"cdq":  {0x99},

	"movsb": {0xa4},
	"movsw": {0x66, 0xa5},
	"movsd": {0xa5},
	"cmpsb": {0xa6},
	"cmpsw": {0x66, 0xa7},
	"cmpsd": {0xa7},
	"stosb": {0xaa},
	"stosw": {0x66, 0xab},
	"stosd": {0xab},
	"lodsb": {0xac},
	"lodsw": {0x66, 0xad},
	"lodsd": {0xad},
	"scasb": {0xae},
	"scasw": {0x66, 0xaf},
	"scasd": {0xaf},

	"salc": {0xd6},
	"xlat": {0xd7},
}

func (a *Assembler) encodeNone(n *Node) error {
	bytes, ok := zeroOperandOpcodes[n.Mnemonic]
	if !ok {
		return asm.NewUnknownMnemonic(n.Mnemonic)
	}
	n.Buf.Write(bytes)
	return nil
}
