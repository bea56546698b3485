package sasm

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf16"

	"github.com/sasmlabs/sasm/internal/asm/ia32"
)

// TranslationUnit is the result of one successful Translate call: the
// assembled code in execution order plus the variable tables. Apart from
// RestoreVariables, which rewrites only snapshot-listed bytes, it is
// immutable.
type TranslationUnit struct {
	code       []byte
	varOffsets map[string]int
	initial    map[int][]byte
	listing    []ia32.ListingEntry
}

func newTranslationUnit(out *ia32.Output) *TranslationUnit {
	return &TranslationUnit{
		code:       out.Code,
		varOffsets: out.VariableOffsets,
		initial:    out.InitialVariableBytes,
		listing:    out.Listing,
	}
}

// Code returns the assembled bytes. The slice aliases the unit's storage:
// copy it before handing it to an executable page if the unit will be
// restored later.
func (u *TranslationUnit) Code() []byte {
	return u.code
}

// VariableOffsets maps each declared data variable to the byte offset of
// its first byte within Code.
func (u *TranslationUnit) VariableOffsets() map[string]int {
	return u.varOffsets
}

// InitialVariableBytes maps byte offsets to the bytes the data
// declarations at those offsets initially produced.
func (u *TranslationUnit) InitialVariableBytes() map[int][]byte {
	return u.initial
}

// RestoreVariables rewrites every data variable back to its declared
// initial bytes, leaving all other code bytes untouched.
func (u *TranslationUnit) RestoreVariables() {
	for off, b := range u.initial {
		copy(u.code[off:], b)
	}
}

// Listing returns one entry per emitted instruction: offset, bytes and the
// canonical source text.
func (u *TranslationUnit) Listing() []ia32.ListingEntry {
	return u.listing
}

func (u *TranslationUnit) variable(name string) (int, error) {
	off, ok := u.varOffsets[name]
	if !ok {
		return 0, fmt.Errorf("unknown variable %q", name)
	}
	return off, nil
}

// Byte reads the variable's first byte.
func (u *TranslationUnit) Byte(name string) (byte, error) {
	off, err := u.variable(name)
	if err != nil {
		return 0, err
	}
	return u.code[off], nil
}

// Word reads the variable as a little-endian 16-bit value.
func (u *TranslationUnit) Word(name string) (uint16, error) {
	off, err := u.variable(name)
	if err != nil {
		return 0, err
	}
	return uint16(u.code[off]) | uint16(u.code[off+1])<<8, nil
}

// DWord reads the variable as a little-endian 32-bit value.
func (u *TranslationUnit) DWord(name string) (uint32, error) {
	off, err := u.variable(name)
	if err != nil {
		return 0, err
	}
	return uint32(u.code[off]) | uint32(u.code[off+1])<<8 |
		uint32(u.code[off+2])<<16 | uint32(u.code[off+3])<<24, nil
}

// ASCIIZ reads the variable as a NUL-terminated byte string.
func (u *TranslationUnit) ASCIIZ(name string) (string, error) {
	off, err := u.variable(name)
	if err != nil {
		return "", err
	}
	end := off
	for end < len(u.code) && u.code[end] != 0 {
		end++
	}
	return string(u.code[off:end]), nil
}

// UTF16Z reads the variable as a NUL-terminated little-endian UTF-16
// string.
func (u *TranslationUnit) UTF16Z(name string) (string, error) {
	off, err := u.variable(name)
	if err != nil {
		return "", err
	}
	var units []uint16
	for i := off; i+1 < len(u.code); i += 2 {
		v := uint16(u.code[i]) | uint16(u.code[i+1])<<8
		if v == 0 {
			break
		}
		units = append(units, v)
	}
	return string(utf16.Decode(units)), nil
}

// String implements fmt.Stringer with a hex listing, one instruction per
// line.
func (u *TranslationUnit) String() string {
	var b strings.Builder
	for _, e := range u.listing {
		fmt.Fprintf(&b, "%08x  % x  %s\n", e.Offset, e.Bytes, e.Text)
	}
	return b.String()
}

// Variables returns the declared variable names sorted by offset.
func (u *TranslationUnit) Variables() []string {
	names := make([]string, 0, len(u.varOffsets))
	for name := range u.varOffsets {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if u.varOffsets[names[i]] != u.varOffsets[names[j]] {
			return u.varOffsets[names[i]] < u.varOffsets[names[j]]
		}
		return names[i] < names[j]
	})
	return names
}
