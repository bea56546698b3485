package ia32

import (
	"strings"

	"github.com/sasmlabs/sasm/internal/asm"
)

// Node is one instruction record: a source line carried through parsing,
// encoding and fixup. The byte buffer holds the opcode, ModR/M, SIB,
// displacement and immediate bytes; prefix bytes are kept separately and
// concatenated in front of the buffer when the final output is assembled.
type Node struct {
	Mnemonic    string
	RawOperands []string
	Operands    []Operand
	Prefixes    []byte
	Buf         *asm.Buffer
	// OffsetInBinary is the byte offset of the instruction (prefixes
	// included) within the final output, assigned when the node is added
	// as the running sum of the preceding instructions' lengths.
	OffsetInBinary int
	// SourceText is the canonical line this node was built from.
	SourceText string
}

// Len returns the instruction's total byte length, prefixes included.
func (n *Node) Len() int {
	return len(n.Prefixes) + n.Buf.Len()
}

// String implements fmt.Stringer, for error reporting.
func (n *Node) String() string {
	return n.SourceText
}

// newNode splits a canonical source line into mnemonic and raw operands.
// REP/REPE/REPNE prefixes are stripped from the mnemonic here and turned
// into prefix bytes.
func newNode(line string) *Node {
	n := &Node{SourceText: line, Buf: asm.NewBuffer(nil)}

	rest := line
	if i := strings.IndexByte(rest, ' '); i >= 0 {
		n.Mnemonic = rest[:i]
		rest = rest[i+1:]
	} else {
		n.Mnemonic = rest
		rest = ""
	}

	// https://www.felixcloutier.com/x86/rep:repe:repz:repne:repnz
	switch n.Mnemonic {
	case "rep", "repe", "repz":
		n.Prefixes = append(n.Prefixes, 0xf3)
		n.Mnemonic, rest = splitMnemonic(rest)
	case "repne", "repnz":
		n.Prefixes = append(n.Prefixes, 0xf2)
		n.Mnemonic, rest = splitMnemonic(rest)
	}

	if rest != "" {
		for _, op := range strings.Split(rest, ",") {
			n.RawOperands = append(n.RawOperands, strings.TrimSpace(op))
		}
	}
	return n
}

func splitMnemonic(rest string) (mnemonic, remainder string) {
	if i := strings.IndexByte(rest, ' '); i >= 0 {
		return rest[:i], rest[i+1:]
	}
	return rest, ""
}
