package ia32

import (
	"strings"

	"github.com/sasmlabs/sasm/internal/asm"
)

// SymbolTable supplies the names visible to operand parsing at the current
// instruction: textual constants, constants already removed by a procedure
// epilogue, and resolved extern addresses.
type SymbolTable interface {
	Constant(name string) (string, bool)
	IsRemoved(name string) bool
	Extern(name string) (uint32, bool)
}

// maxSubstitutionRounds bounds constant substitution so that mutually
// recursive equ definitions cannot loop forever.
const maxSubstitutionRounds = 8

// ParseOperand classifies one textual operand as a register, constant,
// symbolic label reference or memory address.
func ParseOperand(text string, syms SymbolTable) (Operand, error) {
	var hint8, hint16 bool
	switch {
	case strings.HasPrefix(text, "byte "):
		hint8 = true
		text = text[len("byte "):]
	case strings.HasPrefix(text, "word "):
		hint16 = true
		text = text[len("word "):]
	}
	text = strings.ReplaceAll(text, " ", "")

	text, err := substituteConstants(text, syms)
	if err != nil {
		return Operand{}, err
	}

	bracketed := false
	if i := strings.IndexByte(text, '['); i >= 0 {
		j := strings.LastIndexByte(text, ']')
		if j < i {
			return Operand{}, asm.NewBadAddress(text, "unbalanced brackets")
		}
		text = text[i+1 : j]
		bracketed = true
	}

	if !bracketed {
		if r, ok := registers[text]; ok {
			op := Operand{Reg: r.reg, RegCode: r.code, Width: r.width, text16: r.width == Width16}
			if r.width == Width8 {
				op.Kind = OperandReg8
			} else {
				op.Kind = OperandReg16_32
			}
			return op, nil
		}
		if v, ok := asm.ParseLiteral(text); ok {
			return Operand{Kind: OperandConst, Value: v}, nil
		}
		if addr, ok := syms.Extern(text); ok {
			return Operand{Kind: OperandConst, Value: int32(addr)}, nil
		}
		return Operand{Kind: OperandSymbolic, Symbol: text}, nil
	}

	return parseAddress(text, hint8, hint16)
}

// substituteConstants replaces identifier tokens that name a known
// constant with their replacement text, and rejects tokens naming a
// removed constant. Substitution repeats so that equ chains resolve.
func substituteConstants(text string, syms SymbolTable) (string, error) {
	for round := 0; round < maxSubstitutionRounds; round++ {
		var out strings.Builder
		changed := false
		for i := 0; i < len(text); {
			if !isNameByte(text[i]) {
				out.WriteByte(text[i])
				i++
				continue
			}
			j := i
			for j < len(text) && isNameByte(text[j]) {
				j++
			}
			tok := text[i:j]
			if syms.IsRemoved(tok) {
				return "", asm.NewShadowedConstant(tok)
			}
			if repl, ok := syms.Constant(tok); ok {
				out.WriteString(repl)
				changed = true
			} else {
				out.WriteString(tok)
			}
			i = j
		}
		if !changed {
			return text, nil
		}
		text = out.String()
	}
	return text, nil
}

func isNameByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '_' || c == '$' || c == '.'
}

// parseAddress parses the bracket interior of a memory operand,
// [base + index*scale + disp], after folding numeric sub-terms.
func parseAddress(inner string, hint8, hint16 bool) (Operand, error) {
	op := Operand{Kind: OperandAddress16_32, text16: hint16}
	if hint8 {
		op.Kind = OperandAddress8
	}

	terms, signs := asm.SplitTerms(asm.FoldTerms(inner))
	if len(terms) > 3 {
		return Operand{}, asm.NewBadAddress(inner, "more than three terms")
	}

	var disp int64
	for i, term := range terms {
		if v, ok := asm.ParseLiteral(term); ok {
			if signs[i] == '-' {
				disp -= int64(v)
			} else {
				disp += int64(v)
			}
			continue
		}

		if strings.ContainsRune(term, '*') {
			if signs[i] == '-' {
				return Operand{}, asm.NewBadAddress(inner, "illegal sign on index")
			}
			if op.Index != NilRegister {
				return Operand{}, asm.NewBadAddress(inner, "duplicate index")
			}
			index, width, scale, err := parseIndexTerm(inner, term)
			if err != nil {
				return Operand{}, err
			}
			op.Index, op.Scale = index, scale
			if width == Width16 {
				op.text16 = true
			}
			continue
		}

		r, ok := registers[term]
		if !ok {
			return Operand{}, asm.NewBadAddress(inner, "unknown register "+quote(term))
		}
		if r.width == Width8 {
			return Operand{}, asm.NewBadAddress(inner, "8-bit register "+term+" in address")
		}
		if signs[i] == '-' {
			return Operand{}, asm.NewBadAddress(inner, "illegal sign on register "+term)
		}
		if r.width == Width16 {
			op.text16 = true
		}
		switch {
		case op.Base == NilRegister:
			op.Base = r.reg
		case op.Index == NilRegister:
			op.Index, op.Scale = r.reg, 1
		default:
			return Operand{}, asm.NewBadAddress(inner, "too many registers")
		}
	}

	op.Disp = int32(disp)
	return op, nil
}

// parseIndexTerm splits "reg*scale" (either order) and validates the
// scale, which must be a constant in {1,2,4,8}.
func parseIndexTerm(inner, term string) (index Register, width RegisterWidth, scale byte, err error) {
	parts := strings.SplitN(term, "*", 2)
	regText, scaleText := parts[0], parts[1]
	r, ok := registers[regText]
	if !ok {
		// Allow the "scale*reg" spelling.
		regText, scaleText = scaleText, regText
		if r, ok = registers[regText]; !ok {
			err = asm.NewBadAddress(inner, "unknown register in index term "+quote(term))
			return
		}
	}
	if r.width == Width8 {
		err = asm.NewBadAddress(inner, "8-bit register "+regText+" in address")
		return
	}
	v, ok := asm.ParseLiteral(scaleText)
	if !ok {
		err = asm.NewBadAddress(inner, "scale must be a constant")
		return
	}
	switch v {
	case 1, 2, 4, 8:
	default:
		err = asm.NewBadAddress(inner, "scale must be one of 1, 2, 4, 8")
		return
	}
	return r.reg, r.width, byte(v), nil
}

func quote(s string) string {
	return `"` + s + `"`
}
