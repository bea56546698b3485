// Package sasm assembles a small IA-32 dialect into flat 32-bit
// protected-mode machine code. Given a program text it produces the
// assembled bytes, a table mapping declared data variables to their byte
// offsets, and a snapshot of every variable's initial bytes so the host
// can reset them between runs without re-assembling.
//
// A Translator is not internally synchronized. Translator values are
// cheap; use one per goroutine or guard Translate with a mutex.
package sasm

import (
	"bytes"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/sasmlabs/sasm/internal/asm"
	"github.com/sasmlabs/sasm/internal/asm/ia32"
	"github.com/sasmlabs/sasm/internal/filecache"
	"github.com/sasmlabs/sasm/internal/source"
)

// LibraryHandle is an opaque reference to a loaded library.
type LibraryHandle = source.LibraryHandle

// LibraryResolver supplies absolute addresses for extern symbols. It is
// the translator's only external collaborator: the translator neither
// opens libraries nor touches memory protection.
type LibraryResolver = source.LibraryResolver

// TranslationError is the single error type raised for malformed input.
// Reason references the offending source line or instruction record.
type TranslationError = asm.TranslationError

// Translator assembles source text. Construct one with NewTranslator.
type Translator struct {
	resolver LibraryResolver
	prolog   bool
	logger   logrus.FieldLogger
	cache    filecache.Cache
}

// Option configures a Translator.
type Option func(*Translator)

// WithResolver installs the resolver consulted for extern declarations.
// Without one, any extern line fails.
func WithResolver(r LibraryResolver) Option {
	return func(t *Translator) { t.resolver = r }
}

// WithProlog prepends the fixed host-adapter prolog and pre-installs the
// $first, $second, $this and $return frame constants. The asmret epilog is
// its mirror.
func WithProlog(enabled bool) Option {
	return func(t *Translator) { t.prolog = enabled }
}

// WithLogger enables debug tracing of the translation passes.
func WithLogger(l logrus.FieldLogger) Option {
	return func(t *Translator) { t.logger = l }
}

// WithCache stores assembled programs under dir, keyed by source text,
// prolog selection and the resolved extern table. A later Translate of the
// same inputs is served from disk.
func WithCache(dir string) Option {
	return func(t *Translator) { t.cache = filecache.New(dir) }
}

// NewTranslator returns a Translator with the given options applied.
func NewTranslator(opts ...Option) *Translator {
	t := &Translator{}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Translate assembles the newline-delimited source text. Malformed input
// returns a *TranslationError; a missing resolver or a resolver failure
// returns a plain error, with the resolver's error wrapped. No partial
// output is ever produced.
func (t *Translator) Translate(text string) (*TranslationUnit, error) {
	pp := &source.Preprocessor{}
	lines := pp.Preprocess(text)
	t.debugf("preprocessed %d lines", len(lines))

	ex := &source.Expander{Resolver: t.resolver}
	lines, err := ex.Expand(lines)
	if err != nil {
		return nil, err
	}
	externNames, externAddrs := ex.Externs()
	t.debugf("expanded to %d primitive lines, %d externs", len(lines), len(externNames))

	if t.prolog {
		lines = append(prologLines(), lines...)
	}

	if t.cache != nil {
		if u, ok := t.cacheGet(text, externNames, externAddrs); ok {
			t.debugf("cache hit")
			return u, nil
		}
	}

	a := ia32.NewAssembler()
	for _, name := range externNames {
		if err := a.DefineExtern(name, externAddrs[name]); err != nil {
			return nil, err
		}
	}
	for _, line := range lines {
		if err := a.Add(line); err != nil {
			return nil, err
		}
	}
	out, err := a.Assemble()
	if err != nil {
		return nil, err
	}
	t.debugf("assembled %d bytes, %d variables", len(out.Code), len(out.VariableOffsets))

	u := newTranslationUnit(out)
	if t.cache != nil {
		t.cacheAdd(text, externNames, externAddrs, u)
	}
	return u, nil
}

func (t *Translator) debugf(format string, args ...interface{}) {
	if t.logger != nil {
		t.logger.Debugf(format, args...)
	}
}

// prologLines is the fixed host-adapter sequence prepended when the caller
// requests a prolog. It saves eax and the caller's flags, establishes the
// frame, stashes the return address in the $return slot and saves the
// callee-saved registers. The asmret epilog in the source package unwinds
// it in reverse.
func prologLines() []string {
	return []string{
		"addconst $first, [ebp+18h]",
		"addconst $second, [ebp+1ch]",
		"addconst $this, [ebp+20h]",
		"addconst $return, [ebp+28h]",
		"push eax",
		"pushf",
		"push ecx",
		"push edx",
		"push ebp",
		"mov ebp, esp",
		"mov ecx, [ebp+14h]",
		"mov [ebp+28h], ecx",
		"push ebx",
		"push esi",
		"push edi",
	}
}

func (t *Translator) cacheKey(text string, externNames []string, externAddrs map[string]uint32) filecache.Key {
	parts := [][]byte{[]byte(text), {boolByte(t.prolog)}}
	for _, name := range externNames {
		parts = append(parts, []byte(name+"="+strconv.FormatUint(uint64(externAddrs[name]), 16)))
	}
	return filecache.NewKey(parts...)
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func (t *Translator) cacheGet(text string, externNames []string, externAddrs map[string]uint32) (*TranslationUnit, bool) {
	content, ok, err := t.cache.Get(t.cacheKey(text, externNames, externAddrs))
	if err != nil || !ok {
		return nil, false
	}
	defer content.Close()
	u, err := readTranslationUnit(content)
	if err != nil {
		// A corrupt or stale entry is treated as a miss.
		t.debugf("discarding unreadable cache entry: %v", err)
		return nil, false
	}
	return u, true
}

func (t *Translator) cacheAdd(text string, externNames []string, externAddrs map[string]uint32, u *TranslationUnit) {
	var buf bytes.Buffer
	writeTranslationUnit(&buf, u)
	if err := t.cache.Add(t.cacheKey(text, externNames, externAddrs), &buf); err != nil {
		t.debugf("cache write failed: %v", err)
	}
}
