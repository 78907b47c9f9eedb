// Package match implements the small sigil pattern language used to validate
// free-form input lines: tutorial step answers and loot section lines.
//
// A pattern is literal text (compared case-insensitively) with class tokens
// introduced by a sigil character:
//
//	<sigil>A  alphabetic run
//	<sigil>N  numeric run
//	<sigil>W  word: a letter followed by letters, digits or underscores
//	<sigil>X  hexadecimal run
//	<sigil><sigil>  one literal sigil
//
// Runs of whitespace in the pattern match runs of whitespace in the text and
// nothing else. Class tokens are greedy and back off one character at a time
// when the rest of the pattern fails. The whole text must be consumed.
package match

import "unicode"

type class int

const (
	classNone class = iota
	classAlpha
	classNumeric
	classWord
	classHex
)

func classFor(tag byte) class {
	switch tag {
	case 'A', 'a':
		return classAlpha
	case 'N', 'n':
		return classNumeric
	case 'W', 'w':
		return classWord
	case 'X', 'x':
		return classHex
	}
	return classNone
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\v' || b == '\f'
}

func isAlpha(b byte) bool { return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') }
func isDigit(b byte) bool { return b >= '0' && b <= '9' }
func isHex(b byte) bool {
	return isDigit(b) || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}

func foldEq(a, b byte) bool {
	return unicode.ToLower(rune(a)) == unicode.ToLower(rune(b))
}

// runLength returns the longest run of c starting at text[i].
func runLength(c class, text string, i int) int {
	n := 0
	for i+n < len(text) {
		b := text[i+n]
		var ok bool
		switch c {
		case classAlpha:
			ok = isAlpha(b)
		case classNumeric:
			ok = isDigit(b)
		case classHex:
			ok = isHex(b)
		case classWord:
			if n == 0 {
				ok = isAlpha(b)
			} else {
				ok = isAlpha(b) || isDigit(b) || b == '_'
			}
		}
		if !ok {
			break
		}
		n++
	}
	return n
}

type matcher struct {
	pattern string
	text    string
	sigil   byte
	caps    []string
}

// Match reports whether text matches pattern.
func Match(pattern, text string, sigil byte) bool {
	m := &matcher{pattern: pattern, text: text, sigil: sigil}
	return m.at(0, 0)
}

// Captures matches like Match and also returns the text consumed by each
// class token, in pattern order.
func Captures(pattern, text string, sigil byte) ([]string, bool) {
	m := &matcher{pattern: pattern, text: text, sigil: sigil}
	if !m.at(0, 0) {
		return nil, false
	}
	return m.caps, true
}

func (m *matcher) at(pi, ti int) bool {
	p, t := m.pattern, m.text
	if pi == len(p) {
		return ti == len(t)
	}

	c := p[pi]
	if isSpace(c) {
		if ti >= len(t) || !isSpace(t[ti]) {
			return false
		}
		for pi < len(p) && isSpace(p[pi]) {
			pi++
		}
		for ti < len(t) && isSpace(t[ti]) {
			ti++
		}
		return m.at(pi, ti)
	}

	if c == m.sigil && pi+1 < len(p) {
		tag := p[pi+1]
		if tag == m.sigil {
			return ti < len(t) && t[ti] == m.sigil && m.at(pi+2, ti+1)
		}
		cls := classFor(tag)
		if cls == classNone {
			return ti < len(t) && foldEq(tag, t[ti]) && m.at(pi+2, ti+1)
		}
		saved := len(m.caps)
		for n := runLength(cls, t, ti); n > 0; n-- {
			m.caps = append(m.caps[:saved], t[ti:ti+n])
			if m.at(pi+2, ti+n) {
				return true
			}
		}
		m.caps = m.caps[:saved]
		return false
	}

	if ti >= len(t) || isSpace(t[ti]) || !foldEq(c, t[ti]) {
		return false
	}
	return m.at(pi+1, ti+1)
}
