package filecache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path"
)

// Key addresses one cache entry. Keys are derived from the assembled
// program's inputs, so a byte-identical source with the same extern table
// hits the same entry.
type Key [sha256.Size]byte

// NewKey hashes the given parts into a cache key. Each part is
// length-prefixed so that boundary shifts between parts change the key.
func NewKey(parts ...[]byte) (key Key) {
	h := sha256.New()
	var n [8]byte
	for _, p := range parts {
		for i, l := 0, len(p); i < 8; i++ {
			n[i] = byte(l >> (8 * i))
		}
		h.Write(n[:])
		h.Write(p)
	}
	h.Sum(key[:0])
	return
}

// Cache stores assembled programs keyed by their inputs.
//
// Note: this can be expanded to do binary signing/verification, set TTL on
// each entry, etc.
type Cache interface {
	Get(key Key) (content io.ReadCloser, ok bool, err error)
	Add(key Key, content io.Reader) error
	Delete(key Key) error
}

// New returns a Cache that writes entries as files under dir, one file per
// key. The directory is created on first use.
func New(dir string) Cache {
	return &fileCache{dirPath: dir}
}

type fileCache struct {
	dirPath string
}

func (fc *fileCache) path(key Key) string {
	return path.Join(fc.dirPath, hex.EncodeToString(key[:]))
}

func (fc *fileCache) Get(key Key) (content io.ReadCloser, ok bool, err error) {
	content, err = os.Open(fc.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, err
	} else {
		return content, true, nil
	}
}

func (fc *fileCache) Add(key Key, content io.Reader) (err error) {
	if err = os.MkdirAll(fc.dirPath, 0o700); err != nil {
		return
	}
	file, err := os.Create(fc.path(key))
	if err != nil {
		return
	}
	defer file.Close()
	_, err = io.Copy(file, content)
	return
}

func (fc *fileCache) Delete(key Key) (err error) {
	err = os.Remove(fc.path(key))
	if errors.Is(err, os.ErrNotExist) {
		err = nil
	}
	return
}
