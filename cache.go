package sasm

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	"github.com/sasmlabs/sasm/internal/asm/ia32"
)

// cacheMagic versions the serialized unit layout. Bump the trailing byte on
// any format change so stale entries read as misses.
var cacheMagic = []byte{'s', 'a', 's', 'm', 1}

// writeTranslationUnit serializes u in an explicit little-endian layout:
// code, variable table, initial-bytes snapshot, listing.
func writeTranslationUnit(w *bytes.Buffer, u *TranslationUnit) {
	w.Write(cacheMagic)
	writeBytes(w, u.code)

	names := u.Variables()
	writeUint32(w, uint32(len(names)))
	for _, name := range names {
		writeString(w, name)
		writeUint32(w, uint32(u.varOffsets[name]))
	}

	offsets := make([]int, 0, len(u.initial))
	for off := range u.initial {
		offsets = append(offsets, off)
	}
	sort.Ints(offsets)
	writeUint32(w, uint32(len(offsets)))
	for _, off := range offsets {
		writeUint32(w, uint32(off))
		writeBytes(w, u.initial[off])
	}

	writeUint32(w, uint32(len(u.listing)))
	for _, e := range u.listing {
		writeUint32(w, uint32(e.Offset))
		writeBytes(w, e.Bytes)
		writeString(w, e.Text)
	}
}

func readTranslationUnit(r io.Reader) (*TranslationUnit, error) {
	magic := make([]byte, len(cacheMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, err
	}
	if !bytes.Equal(magic, cacheMagic) {
		return nil, fmt.Errorf("invalid cache entry header")
	}

	code, err := readBytes(r)
	if err != nil {
		return nil, err
	}
	u := &TranslationUnit{
		code:       code,
		varOffsets: map[string]int{},
		initial:    map[int][]byte{},
	}

	nVars, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < nVars; i++ {
		name, err := readString(r)
		if err != nil {
			return nil, err
		}
		off, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		u.varOffsets[name] = int(off)
	}

	nInitial, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < nInitial; i++ {
		off, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		b, err := readBytes(r)
		if err != nil {
			return nil, err
		}
		u.initial[int(off)] = b
	}

	nListing, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < nListing; i++ {
		off, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		b, err := readBytes(r)
		if err != nil {
			return nil, err
		}
		text, err := readString(r)
		if err != nil {
			return nil, err
		}
		u.listing = append(u.listing, ia32.ListingEntry{Offset: int(off), Bytes: b, Text: text})
	}
	return u, nil
}

func writeUint32(w *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.Write(b[:])
}

func writeBytes(w *bytes.Buffer, b []byte) {
	writeUint32(w, uint32(len(b)))
	w.Write(b)
}

func writeString(w *bytes.Buffer, s string) {
	writeBytes(w, []byte(s))
}

func readUint32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func readBytes(r io.Reader) ([]byte, error) {
	n, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

func readString(r io.Reader) (string, error) {
	b, err := readBytes(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
