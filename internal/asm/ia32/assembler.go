package ia32

import (
	"math"
	"sort"
	"strings"

	"github.com/sasmlabs/sasm/internal/asm"
)

// Assembler turns a stream of canonical source lines into 32-bit
// protected-mode machine code. Lines are encoded as they arrive; operands
// naming labels reserve placeholder bytes and a fixup record, drained by
// Assemble once every offset is known.
type Assembler struct {
	nodes  []*Node
	offset int

	labels      map[string]*asm.Label
	labelOrder  []string
	varLabels   map[string]struct{}
	pending     []string
	storeNodes  []*Node
	consts      map[string]string
	removed     map[string]struct{}
	externs     map[string]uint32
	externOrder []string

	fixups []fixup
}

// fixup is one deferred patch: width bytes at bufOffset inside node's
// buffer receive either the label's absolute byte offset or the
// PC-relative displacement to it.
type fixup struct {
	node      *Node
	bufOffset int
	width     byte
	relative  bool
	label     string
}

// NewAssembler returns an empty Assembler.
func NewAssembler() *Assembler {
	return &Assembler{
		labels:    map[string]*asm.Label{},
		varLabels: map[string]struct{}{},
		consts:    map[string]string{},
		removed:   map[string]struct{}{},
		externs:   map[string]uint32{},
	}
}

// Constant implements SymbolTable.
func (a *Assembler) Constant(name string) (string, bool) {
	repl, ok := a.consts[name]
	return repl, ok
}

// IsRemoved implements SymbolTable.
func (a *Assembler) IsRemoved(name string) bool {
	_, ok := a.removed[name]
	return ok
}

// Extern implements SymbolTable.
func (a *Assembler) Extern(name string) (uint32, bool) {
	addr, ok := a.externs[name]
	return addr, ok
}

// DefineExtern records the resolved absolute address of an external
// symbol. Extern names keep their original case.
func (a *Assembler) DefineExtern(name string, addr uint32) error {
	if _, ok := a.externs[name]; ok {
		return asm.NewDuplicateExtern(name)
	}
	a.externs[name] = addr
	a.externOrder = append(a.externOrder, name)
	return nil
}

// Add encodes one canonical source line. Leading "name:" prefixes define
// labels pointing at the instruction the rest of the line produces, or at
// the next instruction when the line is label-only.
func (a *Assembler) Add(line string) error {
	for {
		i := strings.IndexByte(line, ':')
		if i < 0 {
			break
		}
		name := line[:i]
		if strings.IndexByte(name, ' ') >= 0 {
			break
		}
		if err := a.defineLabel(name); err != nil {
			return err.WithReason(line)
		}
		line = strings.TrimSpace(line[i+1:])
	}
	if line == "" {
		return nil
	}

	n := newNode(line)
	switch n.Mnemonic {
	case "addconst":
		return a.addConst(n)
	case "remconst":
		for _, name := range n.RawOperands {
			delete(a.consts, name)
			a.removed[name] = struct{}{}
		}
		return nil
	}

	n.OffsetInBinary = a.offset
	if err := a.encode(n); err != nil {
		if te, ok := err.(*asm.TranslationError); ok {
			return te.WithReason(n)
		}
		return err
	}

	if isStoreMnemonic(n.Mnemonic) {
		a.storeNodes = append(a.storeNodes, n)
		for _, name := range a.pending {
			a.varLabels[name] = struct{}{}
		}
	}
	a.pending = a.pending[:0]

	a.nodes = append(a.nodes, n)
	a.offset += n.Len()
	return nil
}

func (a *Assembler) defineLabel(name string) *asm.TranslationError {
	// Register names and names that read as hex literals would be
	// ambiguous in operand position, so they cannot label anything.
	if name == "" || IsRegisterName(name) || isHexLikeName(name) || strings.ContainsAny(name, "[]") {
		return asm.NewDuplicateLabel(name)
	}
	if _, ok := a.labels[name]; ok {
		return asm.NewDuplicateLabel(name)
	}
	a.labels[name] = asm.NewLabel(name, len(a.nodes))
	a.labelOrder = append(a.labelOrder, name)
	a.pending = append(a.pending, name)
	return nil
}

// addconst NAME REPLACEMENT binds a textual constant; proc/endp expansion
// uses it to scope argument and local names to the instruction stream
// position where they appear.
func (a *Assembler) addConst(n *Node) error {
	if len(n.RawOperands) < 2 {
		return asm.NewBadLocalSyntax(n.SourceText).WithReason(n)
	}
	name := n.RawOperands[0]
	if _, ok := a.consts[name]; ok {
		return asm.NewDuplicateConstant(name).WithReason(n)
	}
	// Replacement text may itself contain commas.
	a.consts[name] = strings.Join(n.RawOperands[1:], ",")
	return nil
}

func isStoreMnemonic(m string) bool {
	return m == "storeb" || m == "storew" || m == "stored"
}

// isHexLikeName reports whether name consists only of hex digits with an
// optional trailing h.
func isHexLikeName(name string) bool {
	if name[len(name)-1] == 'h' {
		name = name[:len(name)-1]
	}
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		if !asm.IsHexDigit(name[i]) {
			return false
		}
	}
	return true
}

// labelOffset returns the byte offset a label resolves to right now.
// Backward labels resolve to the offset of the instruction they precede;
// a label collected for the instruction currently being encoded resolves
// to the current write position. Forward labels are unknown.
func (a *Assembler) labelOffset(name string) (int, bool) {
	l, ok := a.labels[name]
	if !ok {
		return 0, false
	}
	if l.InstructionIndex >= len(a.nodes) {
		return a.offset, true
	}
	return a.nodes[l.InstructionIndex].OffsetInBinary, true
}

// reserveFixup reserves width placeholder bytes in n's buffer and records
// the patch to apply once label offsets are final.
func (a *Assembler) reserveFixup(n *Node, label string, width byte, relative bool) {
	off := n.Buf.Reserve(width)
	a.fixups = append(a.fixups, fixup{node: n, bufOffset: off, width: width, relative: relative, label: label})
}

// Output is the result of a complete assembly: the flat code buffer, the
// byte offset of every variable label, a snapshot of the bytes each data
// declaration initially produced, keyed by offset, and a per-instruction
// listing.
type Output struct {
	Code                 []byte
	VariableOffsets      map[string]int
	InitialVariableBytes map[int][]byte
	Listing              []ListingEntry
}

// ListingEntry describes one emitted instruction for disassembly-style
// output: its byte offset, its bytes (prefixes included) and the canonical
// source text it came from.
type ListingEntry struct {
	Offset int
	Bytes  []byte
	Text   string
}

// Assemble runs the two final sweeps: label offsets are copied from the
// instructions they point at, every pending fixup is patched, and the
// per-instruction buffers are concatenated.
func (a *Assembler) Assemble() (*Output, error) {
	for _, name := range a.labelOrder {
		l := a.labels[name]
		if l.InstructionIndex < len(a.nodes) {
			l.Offset = a.nodes[l.InstructionIndex].OffsetInBinary
		} else {
			l.Offset = a.offset
		}
	}

	for _, f := range a.fixups {
		l, ok := a.labels[f.label]
		if !ok {
			return nil, asm.NewUnknownLabel(f.label).WithReason(f.node)
		}
		v := int64(l.Offset)
		if f.relative {
			v -= int64(f.node.OffsetInBinary) + int64(f.node.Len())
		}
		if f.width == 8 && (v < math.MinInt8 || v > math.MaxInt8) {
			return nil, asm.NewBadImmediate(v, 8).WithReason(f.node)
		}
		f.node.Buf.Patch(f.bufOffset, v, f.width)
	}

	out := &Output{
		Code:                 make([]byte, 0, a.offset),
		VariableOffsets:      map[string]int{},
		InitialVariableBytes: map[int][]byte{},
	}
	for _, n := range a.nodes {
		out.Code = append(out.Code, n.Prefixes...)
		out.Code = append(out.Code, n.Buf.Bytes()...)
		out.Listing = append(out.Listing, ListingEntry{
			Offset: n.OffsetInBinary,
			Bytes:  out.Code[n.OffsetInBinary : n.OffsetInBinary+n.Len()],
			Text:   n.SourceText,
		})
	}
	for name := range a.varLabels {
		out.VariableOffsets[name] = a.labels[name].Offset
	}
	for _, n := range a.storeNodes {
		out.InitialVariableBytes[n.OffsetInBinary] = append([]byte(nil), n.Buf.Bytes()...)
	}
	return out, nil
}

// Externs returns the declared extern names in declaration order.
func (a *Assembler) Externs() []string {
	return append([]string(nil), a.externOrder...)
}

// Labels returns every defined label name, sorted.
func (a *Assembler) Labels() []string {
	names := append([]string(nil), a.labelOrder...)
	sort.Strings(names)
	return names
}
