package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadExternTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "externs.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
["Kernel32.dll"]
ExitProcess = 0x77aa0010
Beep = 0x77aa0020

["User32.dll"]
MessageBoxA = 0x77bb0030
`), 0o600))

	r, err := loadExternTable(path)
	require.NoError(t, err)

	h, err := r.ResolveLibrary("Kernel32.dll")
	require.NoError(t, err)
	addr, err := r.ResolveSymbol(h, "ExitProcess")
	require.NoError(t, err)
	require.Equal(t, uint32(0x77aa0010), addr)

	h2, err := r.ResolveLibrary("User32.dll")
	require.NoError(t, err)
	require.NotEqual(t, h, h2)
	addr, err = r.ResolveSymbol(h2, "MessageBoxA")
	require.NoError(t, err)
	require.Equal(t, uint32(0x77bb0030), addr)

	_, err = r.ResolveLibrary("Shell32.dll")
	require.Error(t, err)
	_, err = r.ResolveSymbol(h, "NoSuchSymbol")
	require.Error(t, err)
}

func TestLoadExternTable_rejectsWideAddress(t *testing.T) {
	path := filepath.Join(t.TempDir(), "externs.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
["Kernel32.dll"]
Huge = 0x1_0000_0000
`), 0o600))

	_, err := loadExternTable(path)
	require.Error(t, err)
}
