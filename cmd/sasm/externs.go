package main

import (
	"fmt"
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/sasmlabs/sasm"
)

// externTable resolves libraries and symbols from a static TOML table. Each
// top-level TOML table is a library; its keys map symbol names to absolute
// addresses:
//
//	["Kernel32.dll"]
//	ExitProcess = 0x77aa0010
//	Beep = 0x77aa0020
//
// Handles are one-based indexes into the sorted library name list.
type externTable struct {
	libraries []string
	symbols   map[string]map[string]uint32
}

func loadExternTable(path string) (sasm.LibraryResolver, error) {
	var raw map[string]map[string]int64
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return nil, err
	}

	t := &externTable{symbols: make(map[string]map[string]uint32, len(raw))}
	for lib, syms := range raw {
		t.libraries = append(t.libraries, lib)
		addrs := make(map[string]uint32, len(syms))
		for name, addr := range syms {
			if addr < 0 || addr > 0xffffffff {
				return nil, fmt.Errorf("%s: address %#x of %s.%s is not a 32-bit value", path, addr, lib, name)
			}
			addrs[name] = uint32(addr)
		}
		t.symbols[lib] = addrs
	}
	sort.Strings(t.libraries)
	return t, nil
}

func (t *externTable) ResolveLibrary(name string) (sasm.LibraryHandle, error) {
	for i, lib := range t.libraries {
		if lib == name {
			return sasm.LibraryHandle(i + 1), nil
		}
	}
	return 0, fmt.Errorf("library %q not in the extern table", name)
}

func (t *externTable) ResolveSymbol(h sasm.LibraryHandle, symbol string) (uint32, error) {
	i := int(h) - 1
	if i < 0 || i >= len(t.libraries) {
		return 0, fmt.Errorf("invalid library handle %d", h)
	}
	lib := t.libraries[i]
	addr, ok := t.symbols[lib][symbol]
	if !ok {
		return 0, fmt.Errorf("symbol %q not in the extern table for %s", symbol, lib)
	}
	return addr, nil
}
