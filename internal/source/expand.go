package source

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sasmlabs/sasm/internal/asm"
)

// LibraryHandle is an opaque reference to a loaded library, produced by a
// LibraryResolver. The translator never inspects it.
type LibraryHandle uintptr

// LibraryResolver supplies absolute addresses for extern symbols. The
// translator is otherwise a pure function of its input text; this is its
// only external collaborator.
type LibraryResolver interface {
	ResolveLibrary(name string) (LibraryHandle, error)
	ResolveSymbol(h LibraryHandle, symbol string) (uint32, error)
}

// Expander lowers the structural forms of the dialect into the primitive
// instruction stream the encoder understands: extern declarations, data
// directives, procedure frames, invoke and the addr pseudo-operand.
// Expanded lines may themselves be structural (invoke arguments written
// with addr, dup lists inside dup lists) and are re-expanded in place.
type Expander struct {
	Resolver LibraryResolver

	externs     map[string]uint32
	externOrder []string
}

// Externs returns the resolved extern table in declaration order.
func (e *Expander) Externs() (names []string, addrs map[string]uint32) {
	return e.externOrder, e.externs
}

type procFrame struct {
	name string
	// names collects every argument and local so that endp can emit one
	// remconst taking them all out of scope.
	names []string
	// shift is the running stack reservation of the declared locals.
	shift int
	// prologEnd is the position in the output right after "mov ebp, esp",
	// where endp splices the "sub esp, n" reservation.
	prologEnd int
	// argOffset is the [ebp+n] offset of the next argument, starting at 8
	// past the saved frame pointer and return address.
	argOffset int
}

type expandState struct {
	out   []string
	frame *procFrame
}

// Expand walks the preprocessed lines in source order and returns the
// canonical primitive stream.
func (e *Expander) Expand(lines []string) ([]string, error) {
	if e.externs == nil {
		e.externs = map[string]uint32{}
	}
	st := &expandState{}
	for _, line := range lines {
		if err := e.expandLine(st, line); err != nil {
			return nil, err
		}
	}
	if st.frame != nil {
		return nil, asm.NewBadLocalSyntax("proc " + st.frame.name + " has no endp")
	}
	return st.out, nil
}

func (e *Expander) expandLine(st *expandState, line string) error {
	switch {
	case strings.HasPrefix(line, "extern "):
		return e.expandExtern(line)
	case isDataDirective(line):
		return e.expandData(st, line)
	case strings.HasPrefix(line, "proc ") || line == "proc":
		return e.expandProc(st, line)
	case strings.HasPrefix(line, "local ") || line == "local":
		return e.expandLocal(st, line)
	case line == "endp":
		return e.expandEndp(st)
	case strings.HasPrefix(line, "invoke ") || line == "invoke":
		return e.expandInvoke(st, line)
	case strings.HasPrefix(line, "push addr "):
		e.expandPushAddr(st, strings.TrimSpace(line[len("push addr "):]))
		return nil
	case strings.HasPrefix(line, "mov "):
		if dst, src, ok := splitMovAddr(line); ok {
			e.expandMovAddr(st, dst, src)
			return nil
		}
	case strings.HasPrefix(line, "call "):
		e.emitCall(st, strings.TrimSpace(line[len("call "):]))
		return nil
	}

	if st.frame != nil && isReturnMnemonic(line) {
		// Tear the frame down before any return inside a procedure.
		st.out = append(st.out, "mov esp, ebp", "pop ebp")
	}
	st.out = append(st.out, line)
	return nil
}

// expandExtern resolves "extern NAME lib LIBRARY" and records the symbol's
// absolute address. The line itself emits nothing. Symbol and library keep
// their original case on the resolver side; the installed constant is
// matched against lowercased operand text.
func (e *Expander) expandExtern(line string) error {
	f := strings.Fields(line)
	if len(f) != 4 || f[2] != "lib" {
		return asm.NewBadExternSyntax(line)
	}
	symbol, library := f[1], f[3]
	name := strings.ToLower(symbol)
	if _, ok := e.externs[name]; ok {
		return asm.NewDuplicateExtern(name)
	}
	if e.Resolver == nil {
		return fmt.Errorf("no library resolver configured for %q", line)
	}
	h, err := e.Resolver.ResolveLibrary(library)
	if err != nil {
		return fmt.Errorf("resolving library %q: %w", library, err)
	}
	addr, err := e.Resolver.ResolveSymbol(h, symbol)
	if err != nil {
		return fmt.Errorf("resolving symbol %q in %q: %w", symbol, library, err)
	}
	e.externs[name] = addr
	e.externOrder = append(e.externOrder, name)
	return nil
}

// emitCall lowers a call. Extern targets hold absolute addresses which
// cannot survive the relative call encoding, so they go through a register.
func (e *Expander) emitCall(st *expandState, target string) {
	if _, ok := e.externs[target]; ok {
		st.out = append(st.out, "mov ecx, "+target, "call ecx")
		return
	}
	st.out = append(st.out, "call "+target)
}

func (e *Expander) expandInvoke(st *expandState, line string) error {
	rest := strings.TrimSpace(strings.TrimPrefix(line, "invoke"))
	if rest == "" {
		return asm.NewBadOperandCombination("invoke", "missing callee")
	}
	callee := rest
	var args []string
	if i := strings.IndexByte(rest, ','); i >= 0 {
		callee = strings.TrimSpace(rest[:i])
		args = splitList(rest[i+1:])
	}
	for i := len(args) - 1; i >= 0; i-- {
		if err := e.expandLine(st, "push "+args[i]); err != nil {
			return err
		}
	}
	e.emitCall(st, callee)
	return nil
}

// expandPushAddr lowers "push addr x". A bracketed x is a plain effective
// address; a label names an offset within the emitted buffer, so the code
// base stored in the $this slot is added at run time. ecx is the scratch
// register; its caller value is preserved through the stack slot swap.
func (e *Expander) expandPushAddr(st *expandState, operand string) {
	if strings.ContainsRune(operand, '[') {
		st.out = append(st.out,
			"push ecx",
			"lea ecx, "+operand,
			"xchg [esp], ecx")
		return
	}
	st.out = append(st.out,
		"push ecx",
		"mov ecx, "+operand,
		"add ecx, $this",
		"xchg [esp], ecx")
}

// expandMovAddr lowers "mov reg, addr x" the same way, except the value
// lands directly in the destination register.
func (e *Expander) expandMovAddr(st *expandState, dst, src string) {
	if strings.ContainsRune(src, '[') {
		st.out = append(st.out, "lea "+dst+", "+src)
		return
	}
	if _, ok := e.externs[src]; ok {
		// Extern addresses are already absolute.
		st.out = append(st.out, "mov "+dst+", "+src)
		return
	}
	st.out = append(st.out, "mov "+dst+", "+src, "add "+dst+", $this")
}

func splitMovAddr(line string) (dst, src string, ok bool) {
	rest := line[len("mov "):]
	i := strings.IndexByte(rest, ',')
	if i < 0 {
		return "", "", false
	}
	src = strings.TrimSpace(rest[i+1:])
	if !strings.HasPrefix(src, "addr ") {
		return "", "", false
	}
	return strings.TrimSpace(rest[:i]), strings.TrimSpace(src[len("addr "):]), true
}

func (e *Expander) expandProc(st *expandState, line string) error {
	if st.frame != nil {
		return asm.NewBadLocalSyntax("proc " + st.frame.name + " has no endp")
	}
	rest := strings.TrimSpace(strings.TrimPrefix(line, "proc"))
	if rest == "" {
		return asm.NewBadLocalSyntax(line)
	}
	name := rest
	var args []string
	if i := strings.IndexByte(rest, ' '); i >= 0 {
		name = rest[:i]
		args = splitList(rest[i+1:])
	}

	frame := &procFrame{name: name, argOffset: 8}
	for _, arg := range args {
		argName, size, err := splitSized(arg)
		if err != nil {
			return err
		}
		st.out = append(st.out, fmt.Sprintf("addconst %s, [ebp+%d]", argName, frame.argOffset))
		frame.argOffset += size
		frame.names = append(frame.names, argName)
	}
	st.out = append(st.out, name+":", "push ebp", "mov ebp, esp")
	frame.prologEnd = len(st.out)
	st.frame = frame
	return nil
}

func (e *Expander) expandLocal(st *expandState, line string) error {
	if st.frame == nil {
		return asm.NewBadLocalSyntax(line)
	}
	rest := strings.TrimSpace(strings.TrimPrefix(line, "local"))
	for _, decl := range splitList(rest) {
		name, size, err := splitSized(decl)
		if err != nil {
			return err
		}
		st.frame.shift += size
		st.out = append(st.out, fmt.Sprintf("addconst %s, [ebp-%d]", name, st.frame.shift))
		st.frame.names = append(st.frame.names, name)
	}
	return nil
}

func (e *Expander) expandEndp(st *expandState) error {
	frame := st.frame
	if frame == nil {
		return asm.NewBadLocalSyntax("endp")
	}
	st.frame = nil
	if frame.shift > 0 {
		reserve := "sub esp, " + strconv.Itoa(frame.shift)
		st.out = append(st.out, "")
		copy(st.out[frame.prologEnd+1:], st.out[frame.prologEnd:])
		st.out[frame.prologEnd] = reserve
	}
	if len(frame.names) > 0 {
		st.out = append(st.out, "remconst "+strings.Join(frame.names, ", "))
	}
	return nil
}

// splitSized parses "name:dword" or "name:word" and returns the name and
// the slot size in bytes.
func splitSized(decl string) (name string, size int, err error) {
	i := strings.IndexByte(decl, ':')
	if i < 0 {
		return "", 0, asm.NewBadLocalSyntax(decl)
	}
	name = strings.TrimSpace(decl[:i])
	switch strings.TrimSpace(decl[i+1:]) {
	case "dword":
		size = 4
	case "word":
		size = 2
	default:
		return "", 0, asm.NewBadLocalSyntax(decl)
	}
	if name == "" {
		return "", 0, asm.NewBadLocalSyntax(decl)
	}
	return name, size, nil
}

func isReturnMnemonic(line string) bool {
	m := line
	if i := strings.IndexByte(line, ' '); i >= 0 {
		m = line[:i]
	}
	return m == "ret" || m == "retn" || m == "retf"
}
