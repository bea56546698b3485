package filecache

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewKey(t *testing.T) {
	require.Equal(t, NewKey([]byte("ab")), NewKey([]byte("ab")))
	require.NotEqual(t, NewKey([]byte("ab")), NewKey([]byte("ba")))
	// Boundary shifts between parts must change the key.
	require.NotEqual(t, NewKey([]byte("a"), []byte("b")), NewKey([]byte("ab")))
	require.NotEqual(t, NewKey([]byte("a"), []byte("b")), NewKey([]byte("ab"), nil))
}

func TestFileCache(t *testing.T) {
	fc := New(t.TempDir())
	key := NewKey([]byte("source"), []byte("externs"))

	t.Run("miss", func(t *testing.T) {
		_, ok, err := fc.Get(key)
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("add then hit", func(t *testing.T) {
		require.NoError(t, fc.Add(key, bytes.NewReader([]byte{0x90, 0xc3})))
		content, ok, err := fc.Get(key)
		require.NoError(t, err)
		require.True(t, ok)
		defer content.Close()
		read, err := io.ReadAll(content)
		require.NoError(t, err)
		require.Equal(t, []byte{0x90, 0xc3}, read)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, fc.Delete(key))
		_, ok, err := fc.Get(key)
		require.NoError(t, err)
		require.False(t, ok)
		// Deleting a missing entry is not an error.
		require.NoError(t, fc.Delete(key))
	})
}
