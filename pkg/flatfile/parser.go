// Package flatfile implements the legacy "rom-olc" text formats for the world
// catalogs: a count line followed by #SENTINEL blocks of key/value field
// lines, each block ended by #END. Loot uses its own section grammar between
// #LOOT and #ENDLOOT.
package flatfile

import (
	"bufio"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/crystal-mush/gorom/pkg/loot"
	"github.com/crystal-mush/gorom/pkg/persist"
)

// Parser is a token reader over a rom-olc file with line tracking. Every
// error it returns is a *persist.Error carrying the current line.
type Parser struct {
	reader *bufio.Reader
	line   int // 1-based line of the next unread byte
}

// NewParser wraps br. The first byte read is on line 1.
func NewParser(br *bufio.Reader) *Parser {
	return &Parser{reader: br, line: 1}
}

// Line returns the line number of the next unread byte.
func (p *Parser) Line() int { return p.line }

func (p *Parser) errf(format string, args ...any) error {
	return persist.Errorf(p.line, format, args...)
}

// ioErr turns a read error into either a format error (premature EOF) or a
// plain I/O error.
func (p *Parser) ioErr(err error, what string) error {
	if errors.Is(err, io.EOF) {
		return p.errf("unexpected end of file reading %s", what)
	}
	return err
}

// --- Low-level I/O helpers ---

func (p *Parser) peekByte() (byte, error) {
	b, err := p.reader.Peek(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (p *Parser) mustReadByte() (byte, error) {
	b, err := p.reader.ReadByte()
	if err == nil && b == '\n' {
		p.line++
	}
	return b, err
}

func isBlank(b byte) bool { return b == ' ' || b == '\t' || b == '\r' || b == '\n' }

// skipSpace consumes whitespace, including newlines.
func (p *Parser) skipSpace() error {
	for {
		ch, err := p.peekByte()
		if err != nil {
			return err
		}
		if !isBlank(ch) {
			return nil
		}
		p.mustReadByte()
	}
}

// skipBlanks consumes spaces and tabs but stops at a newline.
func (p *Parser) skipBlanks() {
	for {
		ch, err := p.peekByte()
		if err != nil || (ch != ' ' && ch != '\t') {
			return
		}
		p.mustReadByte()
	}
}

// AtEOF skips whitespace and reports whether the input is exhausted.
func (p *Parser) AtEOF() (bool, error) {
	err := p.skipSpace()
	if errors.Is(err, io.EOF) {
		return true, nil
	}
	return false, err
}

// ReadWord skips whitespace and returns the next run of non-blank bytes.
func (p *Parser) ReadWord() (string, error) {
	if err := p.skipSpace(); err != nil {
		return "", p.ioErr(err, "word")
	}
	var sb strings.Builder
	for {
		ch, err := p.peekByte()
		if err != nil || isBlank(ch) {
			break
		}
		p.mustReadByte()
		sb.WriteByte(ch)
	}
	return sb.String(), nil
}

// ReadNumber reads a word and parses it as a signed decimal integer.
func (p *Parser) ReadNumber() (int, error) {
	w, err := p.ReadWord()
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(w)
	if err != nil {
		return 0, p.errf("expected a number, got %q", w)
	}
	return n, nil
}

// ReadString skips leading blanks and reads up to a tilde. The string may
// span lines; '\r' is dropped. The rest of the tilde's line is consumed when
// it holds only whitespace.
func (p *Parser) ReadString() (string, error) {
	p.skipBlanks()
	start := p.line
	var sb strings.Builder
	for {
		b, err := p.mustReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", persist.Errorf(start, "unterminated string (missing '~')")
			}
			return "", err
		}
		if b == '~' {
			break
		}
		if b != '\r' {
			sb.WriteByte(b)
		}
	}
	p.skipBlanks()
	if ch, err := p.peekByte(); err == nil && (ch == '\n' || ch == '\r') {
		p.ReadToEOL()
	}
	return sb.String(), nil
}

// ReadToEOL returns the rest of the current line, trimmed, and consumes the
// newline.
func (p *Parser) ReadToEOL() (string, error) {
	line, err := p.reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	if strings.HasSuffix(line, "\n") {
		p.line++
	}
	return strings.TrimSpace(line), nil
}

// Expect reads a word and checks it against want (case-insensitive).
func (p *Parser) Expect(want string) error {
	w, err := p.ReadWord()
	if err != nil {
		return err
	}
	if !strings.EqualFold(w, want) {
		return p.errf("expected %s, got %q", want, w)
	}
	return nil
}

// Lines hands the rest of the current input to a line-oriented reader. The
// parser's line count follows the lines consumed through it.
func (p *Parser) Lines() loot.LineSource { return &lineSource{p: p} }

type lineSource struct{ p *Parser }

func (s *lineSource) NextLine() (string, int, bool, error) {
	if _, err := s.p.peekByte(); err != nil {
		if errors.Is(err, io.EOF) {
			return "", 0, false, nil
		}
		return "", 0, false, err
	}
	n := s.p.line
	line, err := s.p.reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", 0, false, err
	}
	if strings.HasSuffix(line, "\n") {
		s.p.line++
	}
	return strings.TrimRight(line, "\r\n"), n, true, nil
}
