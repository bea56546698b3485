package source

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sasmlabs/sasm/internal/asm"
)

// fakeResolver maps library names to fixed handles and "library!symbol" to
// fixed addresses.
type fakeResolver struct {
	libraries map[string]LibraryHandle
	symbols   map[string]uint32
}

func (r *fakeResolver) ResolveLibrary(name string) (LibraryHandle, error) {
	h, ok := r.libraries[name]
	if !ok {
		return 0, fmt.Errorf("library %q not found", name)
	}
	return h, nil
}

func (r *fakeResolver) ResolveSymbol(h LibraryHandle, symbol string) (uint32, error) {
	addr, ok := r.symbols[fmt.Sprintf("%d!%s", h, symbol)]
	if !ok {
		return 0, fmt.Errorf("symbol %q not found", symbol)
	}
	return addr, nil
}

func testResolver() *fakeResolver {
	return &fakeResolver{
		libraries: map[string]LibraryHandle{"Kernel32.dll": 1},
		symbols:   map[string]uint32{"1!ExitProcess": 0x77aa0010},
	}
}

func expand(t *testing.T, lines ...string) []string {
	t.Helper()
	e := &Expander{Resolver: testResolver()}
	out, err := e.Expand(lines)
	require.NoError(t, err)
	return out
}

func TestExpand_data(t *testing.T) {
	tests := []struct {
		name string
		line string
		exp  []string
	}{
		{
			name: "labelled bytes",
			line: `foo db "AB", 0`,
			exp:  []string{"foo:", "storeb 65", "storeb 66", "storeb 0"},
		},
		{
			name: "unlabelled bytes",
			line: "db 1, 2, 3",
			exp:  []string{"storeb 1", "storeb 2", "storeb 3"},
		},
		{
			name: "words",
			line: `w dw 1000h, "A"`,
			exp:  []string{"w:", "storew 4096", "storew 65"},
		},
		{
			name: "dwords",
			line: "d dd 0deadbeefh",
			exp:  []string{"d:", "stored -559038737"},
		},
		{
			name: "dword string packs a pair",
			line: `d dd "AB"`,
			exp:  []string{"d:", "stored 4325441"},
		},
		{
			name: "dword string pads odd length",
			line: `d dd "A"`,
			exp:  []string{"d:", "stored 65"},
		},
		{
			name: "dup",
			line: "buf db 3 dup (0)",
			exp:  []string{"buf:", "storeb 0", "storeb 0", "storeb 0"},
		},
		{
			name: "nested dup",
			line: "buf db 2 dup (1, 2 dup (0))",
			exp:  []string{"buf:", "storeb 1", "storeb 0", "storeb 0", "storeb 1", "storeb 0", "storeb 0"},
		},
		{
			name: "dup list with string",
			line: `buf db 2 dup ("hi", 0)`,
			exp:  []string{"buf:", "storeb 104", "storeb 105", "storeb 0", "storeb 104", "storeb 105", "storeb 0"},
		},
		{
			name: "constant element left for the operand parser",
			line: "x db count",
			exp:  []string{"x:", "storeb count"},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.exp, expand(t, tc.line))
		})
	}
}

func TestExpand_dataErrors(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{name: "dd string too long", line: `d dd "ABC"`},
		{name: "dup count not a constant", line: "buf db n dup (0)"},
		{name: "missing value list", line: "db"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			e := &Expander{}
			_, err := e.Expand([]string{tc.line})
			require.Error(t, err)
			require.Equal(t, asm.ErrBadOperandCombination, err.(*asm.TranslationError).Kind)
		})
	}
}

func TestExpand_extern(t *testing.T) {
	t.Run("resolves and records", func(t *testing.T) {
		e := &Expander{Resolver: testResolver()}
		out, err := e.Expand([]string{"extern ExitProcess lib Kernel32.dll"})
		require.NoError(t, err)
		require.Empty(t, out)
		names, addrs := e.Externs()
		require.Equal(t, []string{"exitprocess"}, names)
		require.Equal(t, uint32(0x77aa0010), addrs["exitprocess"])
	})

	t.Run("extern call goes through ecx", func(t *testing.T) {
		out := expand(t,
			"extern ExitProcess lib Kernel32.dll",
			"call exitprocess")
		require.Equal(t, []string{"mov ecx, exitprocess", "call ecx"}, out)
	})

	t.Run("plain call is untouched", func(t *testing.T) {
		require.Equal(t, []string{"call fn"}, expand(t, "call fn"))
	})

	t.Run("bad syntax", func(t *testing.T) {
		e := &Expander{Resolver: testResolver()}
		_, err := e.Expand([]string{"extern ExitProcess Kernel32.dll"})
		require.Error(t, err)
		require.Equal(t, asm.ErrBadExternSyntax, err.(*asm.TranslationError).Kind)
	})

	t.Run("duplicate", func(t *testing.T) {
		e := &Expander{Resolver: testResolver()}
		_, err := e.Expand([]string{
			"extern ExitProcess lib Kernel32.dll",
			"extern ExitProcess lib Kernel32.dll",
		})
		require.Error(t, err)
		require.Equal(t, asm.ErrDuplicateExtern, err.(*asm.TranslationError).Kind)
	})

	t.Run("unknown library", func(t *testing.T) {
		e := &Expander{Resolver: testResolver()}
		_, err := e.Expand([]string{"extern Foo lib missing.dll"})
		require.Error(t, err)
	})
}

func TestExpand_proc(t *testing.T) {
	t.Run("arguments bind to frame offsets", func(t *testing.T) {
		out := expand(t, "proc add2 a:dword, b:dword", "mov eax, a", "endp")
		require.Equal(t, []string{
			"addconst a, [ebp+8]",
			"addconst b, [ebp+12]",
			"add2:",
			"push ebp",
			"mov ebp, esp",
			"mov eax, a",
			"remconst a, b",
		}, out)
	})

	t.Run("word argument advances by two", func(t *testing.T) {
		out := expand(t, "proc f a:word, b:dword", "endp")
		require.Equal(t, "addconst a, [ebp+8]", out[0])
		require.Equal(t, "addconst b, [ebp+10]", out[1])
	})

	t.Run("locals reserve stack after the prolog", func(t *testing.T) {
		out := expand(t,
			"proc f",
			"local x:dword, y:word",
			"mov eax, x",
			"endp")
		require.Equal(t, []string{
			"f:",
			"push ebp",
			"mov ebp, esp",
			"sub esp, 6",
			"addconst x, [ebp-4]",
			"addconst y, [ebp-6]",
			"mov eax, x",
			"remconst x, y",
		}, out)
	})

	t.Run("ret inside a procedure tears the frame down", func(t *testing.T) {
		out := expand(t, "proc f", "ret", "endp")
		require.Equal(t, []string{
			"f:",
			"push ebp",
			"mov ebp, esp",
			"mov esp, ebp",
			"pop ebp",
			"ret",
		}, out)
	})

	t.Run("ret outside a procedure is untouched", func(t *testing.T) {
		require.Equal(t, []string{"ret"}, expand(t, "ret"))
	})

	t.Run("endp without locals or arguments vanishes", func(t *testing.T) {
		out := expand(t, "proc f", "nop", "endp")
		require.Equal(t, []string{"f:", "push ebp", "mov ebp, esp", "nop"}, out)
	})
}

func TestExpand_procErrors(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
	}{
		{name: "bad size token", lines: []string{"proc f a:qword", "endp"}},
		{name: "local outside proc", lines: []string{"local x:dword"}},
		{name: "endp without proc", lines: []string{"endp"}},
		{name: "missing endp", lines: []string{"proc f"}},
		{name: "nested proc", lines: []string{"proc f", "proc g", "endp", "endp"}},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			e := &Expander{}
			_, err := e.Expand(tc.lines)
			require.Error(t, err)
			require.Equal(t, asm.ErrBadLocalSyntax, err.(*asm.TranslationError).Kind)
		})
	}
}

func TestExpand_invoke(t *testing.T) {
	t.Run("arguments push right to left", func(t *testing.T) {
		out := expand(t, "invoke fn, eax, 2, [ebx]")
		require.Equal(t, []string{"push [ebx]", "push 2", "push eax", "call fn"}, out)
	})

	t.Run("no arguments", func(t *testing.T) {
		require.Equal(t, []string{"call fn"}, expand(t, "invoke fn"))
	})

	t.Run("extern callee goes through ecx", func(t *testing.T) {
		out := expand(t,
			"extern ExitProcess lib Kernel32.dll",
			"invoke exitprocess, 0")
		require.Equal(t, []string{"push 0", "mov ecx, exitprocess", "call ecx"}, out)
	})

	t.Run("addr argument expands", func(t *testing.T) {
		out := expand(t, "invoke fn, addr buf")
		require.Equal(t, []string{
			"push ecx",
			"mov ecx, buf",
			"add ecx, $this",
			"xchg [esp], ecx",
			"call fn",
		}, out)
	})
}

func TestExpand_addr(t *testing.T) {
	t.Run("push addr of bracketed expression", func(t *testing.T) {
		out := expand(t, "push addr [ebp-8]")
		require.Equal(t, []string{"push ecx", "lea ecx, [ebp-8]", "xchg [esp], ecx"}, out)
	})

	t.Run("mov addr of bracketed expression", func(t *testing.T) {
		require.Equal(t, []string{"lea edx, [ebx+4]"}, expand(t, "mov edx, addr [ebx+4]"))
	})

	t.Run("mov addr of variable adds the code base", func(t *testing.T) {
		out := expand(t, "mov edx, addr buf")
		require.Equal(t, []string{"mov edx, buf", "add edx, $this"}, out)
	})

	t.Run("mov addr of extern is direct", func(t *testing.T) {
		out := expand(t,
			"extern ExitProcess lib Kernel32.dll",
			"mov edx, addr exitprocess")
		require.Equal(t, []string{"mov edx, exitprocess"}, out)
	})

	t.Run("plain mov is untouched", func(t *testing.T) {
		require.Equal(t, []string{"mov eax, ebx"}, expand(t, "mov eax, ebx"))
	})
}
