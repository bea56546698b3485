package asm

import (
	"strconv"
	"strings"
)

// IsHexDigit reports whether c is one of 0-9 or a-f. The dialect is
// lower-cased before literals are inspected, so upper-case digits never
// reach this function.
func IsHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')
}

func isDecDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// IsNumericLiteral reports whether s is a base-suffixed integer literal:
// either a trailing-'h' hexadecimal whose first character is a decimal
// digit, or a string of characters drawn from 0-9, 'b' and 'd' (the binary
// and decimal suffixes double as digits, so classification alone cannot
// pick the base).
func IsNumericLiteral(s string) bool {
	if len(s) > 0 && (s[0] == '+' || s[0] == '-') {
		s = s[1:]
	}
	if s == "" {
		return false
	}
	if s[len(s)-1] == 'h' {
		body := s[:len(s)-1]
		if body == "" || !isDecDigit(body[0]) {
			return false
		}
		for i := 0; i < len(body); i++ {
			if !IsHexDigit(body[i]) {
				return false
			}
		}
		return true
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !isDecDigit(c) && c != 'b' && c != 'd' {
			return false
		}
	}
	return true
}

// ParseLiteral converts a numeric literal to its signed 32-bit value.
// The trailing suffix selects the base: 'b' binary, 'd' decimal,
// 'h' hexadecimal; no suffix means decimal.
func ParseLiteral(s string) (int32, bool) {
	if !IsNumericLiteral(s) {
		return 0, false
	}
	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}
	base := 10
	switch s[len(s)-1] {
	case 'b':
		base = 2
		s = s[:len(s)-1]
	case 'd':
		base = 10
		s = s[:len(s)-1]
	case 'h':
		base = 16
		s = s[:len(s)-1]
	}
	// 64-bit parse with a narrowing conversion so that literals such as
	// 0ffffffffh wrap to their signed 32-bit interpretation.
	v, err := strconv.ParseInt(s, base, 64)
	if err != nil {
		return 0, false
	}
	if neg {
		v = -v
	}
	return int32(v), true
}

// FoldTerms scans a '+'/'-' separated expression left to right, sums the
// terms that parse as numeric literals and keeps the rest verbatim. The
// result is the unrecognized terms followed by the signed sum, so
// "ebx+8+ecx*4+8h" folds to "ebx+ecx*4+16".
func FoldTerms(s string) string {
	terms, signs := SplitTerms(s)
	var sum int64
	var kept strings.Builder
	folded := false
	for i, t := range terms {
		if v, ok := ParseLiteral(t); ok {
			if signs[i] == '-' {
				sum -= int64(v)
			} else {
				sum += int64(v)
			}
			folded = true
			continue
		}
		if kept.Len() > 0 || signs[i] == '-' {
			kept.WriteByte(signs[i])
		}
		kept.WriteString(t)
	}
	if !folded {
		return s
	}
	if kept.Len() == 0 {
		return strconv.FormatInt(sum, 10)
	}
	if sum < 0 {
		kept.WriteString(strconv.FormatInt(sum, 10))
	} else {
		kept.WriteByte('+')
		kept.WriteString(strconv.FormatInt(sum, 10))
	}
	return kept.String()
}

// SplitTerms splits s on top-level '+' and '-' and returns the terms along
// with the sign preceding each ('+' for the first term when unsigned).
// A sign that begins a term (for example the '-' in "ebx+-4") binds to the
// following term rather than producing an empty one.
func SplitTerms(s string) (terms []string, signs []byte) {
	sign := byte('+')
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '+' && c != '-' {
			continue
		}
		if i == start {
			// Leading sign of the current term.
			if c == '-' {
				if sign == '-' {
					sign = '+'
				} else {
					sign = '-'
				}
			}
			start = i + 1
			continue
		}
		terms = append(terms, s[start:i])
		signs = append(signs, sign)
		sign = c
		start = i + 1
	}
	if start < len(s) {
		terms = append(terms, s[start:])
		signs = append(signs, sign)
	}
	return
}
