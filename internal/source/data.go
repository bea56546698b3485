package source

import (
	"strconv"
	"strings"

	"github.com/sasmlabs/sasm/internal/asm"
)

// storeMnemonics maps the three data directives to their primitive store
// mnemonic and element size in bytes.
var storeMnemonics = map[string]struct {
	mnemonic string
	size     int
}{
	"db": {"storeb", 1},
	"dw": {"storew", 2},
	"dd": {"stored", 4},
}

// isDataDirective reports whether the line is a db/dw/dd declaration,
// optionally preceded by a label token.
func isDataDirective(line string) bool {
	f := strings.SplitN(line, " ", 3)
	if _, ok := storeMnemonics[f[0]]; ok {
		return true
	}
	if len(f) >= 2 {
		_, ok := storeMnemonics[f[1]]
		return ok
	}
	return false
}

// expandData lowers a data declaration into store primitives. A leading
// label token becomes a label definition so that the stores right after it
// classify the name as a variable.
func (e *Expander) expandData(st *expandState, line string) error {
	f := strings.SplitN(line, " ", 3)
	directive := f[0]
	rest := ""
	if _, ok := storeMnemonics[f[0]]; ok {
		if len(f) > 1 {
			rest = strings.TrimSpace(line[len(f[0]):])
		}
	} else {
		st.out = append(st.out, f[0]+":")
		directive = f[1]
		rest = strings.TrimSpace(line[len(f[0])+1+len(f[1]):])
	}

	d := storeMnemonics[directive]
	if rest == "" {
		return asm.NewBadOperandCombination(directive, "missing value list")
	}
	return e.expandValueList(st, directive, d.mnemonic, d.size, rest)
}

func (e *Expander) expandValueList(st *expandState, directive, mnemonic string, size int, list string) error {
	for _, elem := range splitList(list) {
		if err := e.expandValueElement(st, directive, mnemonic, size, elem); err != nil {
			return err
		}
	}
	return nil
}

func (e *Expander) expandValueElement(st *expandState, directive, mnemonic string, size int, elem string) error {
	if strings.HasPrefix(elem, `"`) {
		return expandString(st, directive, mnemonic, size, elem)
	}
	if count, inner, ok := splitDup(elem); ok {
		n, parsed := asm.ParseLiteral(count)
		if !parsed || n < 0 {
			return asm.NewBadOperandCombination(directive, "dup count must be a non-negative constant")
		}
		for i := int32(0); i < n; i++ {
			if err := e.expandValueList(st, directive, mnemonic, size, inner); err != nil {
				return err
			}
		}
		return nil
	}
	// Numeric literals are written out in decimal; constant names become the
	// store's operand as they are, for the operand parser to substitute when
	// the line encodes.
	if v, ok := asm.ParseLiteral(elem); ok {
		elem = strconv.FormatInt(int64(v), 10)
	}
	st.out = append(st.out, mnemonic+" "+elem)
	return nil
}

// expandString emits one store per code unit. Byte and word units carry one
// character each; double words pack a pair with the second character in the
// high half, NUL-padded. Longer strings in a dd list lose bytes under that
// packing, so they are rejected.
func expandString(st *expandState, directive, mnemonic string, size int, elem string) error {
	if len(elem) < 2 || elem[len(elem)-1] != '"' {
		return asm.NewBadOperandCombination(directive, "unterminated string "+elem)
	}
	content := elem[1 : len(elem)-1]
	if size == 4 {
		if len(content) > 2 {
			return asm.NewBadOperandCombination(directive, "string longer than two characters")
		}
		v := uint32(0)
		if len(content) > 0 {
			v = uint32(content[0])
		}
		if len(content) > 1 {
			v |= uint32(content[1]) << 16
		}
		st.out = append(st.out, mnemonic+" "+strconv.FormatUint(uint64(v), 10))
		return nil
	}
	for i := 0; i < len(content); i++ {
		st.out = append(st.out, mnemonic+" "+strconv.Itoa(int(content[i])))
	}
	return nil
}

// splitDup recognizes "<count> dup (<list>)".
func splitDup(elem string) (count, inner string, ok bool) {
	i := strings.Index(elem, " dup")
	if i < 0 {
		return "", "", false
	}
	count = strings.TrimSpace(elem[:i])
	rest := strings.TrimSpace(elem[i+len(" dup"):])
	if len(rest) < 2 || rest[0] != '(' || rest[len(rest)-1] != ')' {
		return "", "", false
	}
	return count, strings.TrimSpace(rest[1 : len(rest)-1]), true
}

// splitList splits a comma separated list, honouring commas inside string
// literals and dup parentheses.
func splitList(s string) []string {
	var out []string
	depth := 0
	quoted := false
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			quoted = !quoted
		case '(':
			if !quoted {
				depth++
			}
		case ')':
			if !quoted && depth > 0 {
				depth--
			}
		case ',':
			if !quoted && depth == 0 {
				out = append(out, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	if t := strings.TrimSpace(s[start:]); t != "" {
		out = append(out, t)
	}
	return out
}
