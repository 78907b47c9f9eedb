package loot

import (
	"bufio"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/crystal-mush/gorom/pkg/match"
	"github.com/crystal-mush/gorom/pkg/persist"
)

// EndSentinel terminates a loot section.
const EndSentinel = "#ENDLOOT"

// Line patterns. The sigil is '%' so '#' can appear literally in sentinels.
const sigil = '%'

const (
	patGroup        = "group %W %N"
	patItem         = "item %N %N %N weight %N"
	patCP           = "cp %N %N weight %N"
	patTable        = "table %W"
	patTableParent  = "table %W : %W"
	patTableParent2 = "table %W:%W"
	patUseGroup     = "use_group %W"
	patUseGroupN    = "use_group %W %N"
	patAddItem      = "add_item %N %N %N weight %N"
	patAddCP        = "add_cp %N %N weight %N"
	patMulCP        = "mul_cp %N"
	patMulAll       = "mul_all_chances %N"
	patRemoveItem   = "remove_item %N"
	patRemoveGroup  = "remove_group %W"
)

// LineSource yields section lines one at a time with their 1-based line
// numbers in the enclosing file.
type LineSource interface {
	NextLine() (line string, lineNo int, ok bool, err error)
}

type stringLines struct {
	lines []string
	next  int
	base  int
}

func (s *stringLines) NextLine() (string, int, bool, error) {
	if s.next >= len(s.lines) {
		return "", 0, false, nil
	}
	l := s.lines[s.next]
	s.next++
	return l, s.base + s.next, true, nil
}

// ReaderLines adapts a buffered reader positioned at the start of a section.
// lastLine is the number of the line consumed just before the section.
type ReaderLines struct {
	br   *bufio.Reader
	line int
}

// NewReaderLines wraps br.
func NewReaderLines(br *bufio.Reader, lastLine int) *ReaderLines {
	return &ReaderLines{br: br, line: lastLine}
}

// NextLine implements LineSource.
func (r *ReaderLines) NextLine() (string, int, bool, error) {
	s, err := r.br.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", 0, false, err
	}
	if s == "" && err != nil {
		return "", 0, false, nil
	}
	r.line++
	return strings.TrimRight(s, "\r\n"), r.line, true, nil
}

// Line returns the number of the last line read.
func (r *ReaderLines) Line() int { return r.line }

// ParseSection parses a raw loot section and appends its groups and tables to
// db, tagged with owner. The text may or may not include the trailing
// #ENDLOOT; anything after it is ignored. Nothing is added to db unless the
// whole section parses.
func ParseSection(db *DB, text, owner string) error {
	src := &stringLines{lines: strings.Split(text, "\n")}
	_, err := parse(db, src, owner, false)
	return err
}

// ReadSection parses a section from src up to and including #ENDLOOT. A
// missing terminator is a format error.
func ReadSection(db *DB, src LineSource, owner string) error {
	_, err := parse(db, src, owner, true)
	return err
}

type parser struct {
	owner  string
	groups []Group
	tables []Table
	// exactly one of these is non-nil while inside a record
	group *Group
	table *Table
}

func (p *parser) flush() {
	if p.group != nil {
		p.groups = append(p.groups, *p.group)
		p.group = nil
	}
	if p.table != nil {
		p.tables = append(p.tables, *p.table)
		p.table = nil
	}
}

func parse(db *DB, src LineSource, owner string, requireEnd bool) (int, error) {
	p := &parser{owner: owner}
	last := 0
	ended := false
	for {
		raw, lineNo, ok, err := src.NextLine()
		if err != nil {
			return last, err
		}
		if !ok {
			break
		}
		last = lineNo
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "*") {
			continue
		}
		if strings.EqualFold(line, EndSentinel) {
			ended = true
			break
		}
		if err := p.line(line, lineNo); err != nil {
			return last, err
		}
	}
	if requireEnd && !ended {
		return last, persist.Errorf(last, "unterminated loot section: missing %s", EndSentinel)
	}
	p.flush()
	return last, p.commit(db, last)
}

// commit checks every record and name before touching db.
func (p *parser) commit(db *DB, line int) error {
	seen := map[string]bool{}
	for i := range p.groups {
		g := &p.groups[i]
		if err := g.Validate(); err != nil {
			return persist.Errorf(line, "%v", err)
		}
		k := key(g.Name)
		if _, dup := db.groupIdx[k]; dup || seen[k] {
			return persist.Errorf(line, "duplicate loot group %q", g.Name)
		}
		seen[k] = true
	}
	seen = map[string]bool{}
	for i := range p.tables {
		t := &p.tables[i]
		if err := t.Validate(); err != nil {
			return persist.Errorf(line, "%v", err)
		}
		k := key(t.Name)
		if _, dup := db.tableIdx[k]; dup || seen[k] {
			return persist.Errorf(line, "duplicate loot table %q", t.Name)
		}
		seen[k] = true
	}
	for _, g := range p.groups {
		if err := db.AddGroup(g); err != nil {
			return err
		}
	}
	for _, t := range p.tables {
		if err := db.AddTable(t); err != nil {
			return err
		}
	}
	return nil
}

func (p *parser) line(line string, lineNo int) error {
	word := line
	if i := strings.IndexAny(line, " \t"); i >= 0 {
		word = line[:i]
	}
	word = strings.ToLower(word)

	expect := func(patterns ...string) ([]string, error) {
		for _, pat := range patterns {
			if caps, ok := match.Captures(pat, line, sigil); ok {
				return caps, nil
			}
		}
		return nil, persist.Errorf(lineNo, "malformed %s line: %q", word, line)
	}
	// num converts a digit run captured by %N. The first overflow is kept
	// in numErr and reported before anything is stored.
	var numErr error
	num := func(s string) int {
		n, err := strconv.Atoi(s)
		if err != nil && numErr == nil {
			numErr = persist.Errorf(lineNo, "%s: number %s out of range", word, s)
		}
		return n
	}
	entry := func(e Entry) error {
		if numErr != nil {
			return numErr
		}
		if err := e.Validate(); err != nil {
			return persist.Errorf(lineNo, "%s: %v", word, err)
		}
		return nil
	}

	switch word {
	case "group":
		caps, err := expect(patGroup)
		if err != nil {
			return err
		}
		rolls := num(caps[1])
		if numErr != nil {
			return numErr
		}
		p.flush()
		p.group = &Group{Name: caps[0], Rolls: rolls, Owner: p.owner}
		return nil

	case "table":
		caps, err := expect(patTableParent, patTableParent2, patTable)
		if err != nil {
			return err
		}
		p.flush()
		t := &Table{Name: caps[0], Owner: p.owner}
		if len(caps) > 1 {
			t.Parent = caps[1]
			if strings.EqualFold(t.Parent, t.Name) {
				return persist.Errorf(lineNo, "loot table %q names itself as parent", t.Name)
			}
		}
		p.table = t
		return nil

	case "item", "cp":
		if p.group == nil {
			return persist.Errorf(lineNo, "%s line outside a group: %q", word, line)
		}
		var e Entry
		if word == "item" {
			caps, err := expect(patItem)
			if err != nil {
				return err
			}
			e = Entry{Kind: EntryItem, Vnum: num(caps[0]), Min: num(caps[1]), Max: num(caps[2]), Weight: num(caps[3])}
		} else {
			caps, err := expect(patCP)
			if err != nil {
				return err
			}
			e = Entry{Kind: EntryCP, Min: num(caps[0]), Max: num(caps[1]), Weight: num(caps[2])}
		}
		if err := entry(e); err != nil {
			return err
		}
		p.group.Entries = append(p.group.Entries, e)
		return nil
	}

	kind, ok := OpKindByName(word)
	if !ok {
		return persist.Errorf(lineNo, "unknown loot keyword %q", word)
	}
	if p.table == nil {
		return persist.Errorf(lineNo, "%s line outside a table: %q", word, line)
	}
	op := Op{Kind: kind}
	switch kind {
	case OpUseGroup:
		caps, err := expect(patUseGroupN, patUseGroup)
		if err != nil {
			return err
		}
		op.Group, op.Times = caps[0], 1
		if len(caps) > 1 {
			op.Times = num(caps[1])
		}
		if numErr != nil {
			return numErr
		}
		if op.Times < 1 {
			return persist.Errorf(lineNo, "use_group %s: times must be at least 1", op.Group)
		}
	case OpAddItem:
		caps, err := expect(patAddItem)
		if err != nil {
			return err
		}
		op.Vnum, op.Min, op.Max, op.Weight = num(caps[0]), num(caps[1]), num(caps[2]), num(caps[3])
		if err := entry(Entry{Min: op.Min, Max: op.Max, Weight: op.Weight}); err != nil {
			return err
		}
	case OpAddCP:
		caps, err := expect(patAddCP)
		if err != nil {
			return err
		}
		op.Min, op.Max, op.Weight = num(caps[0]), num(caps[1]), num(caps[2])
		if err := entry(Entry{Min: op.Min, Max: op.Max, Weight: op.Weight}); err != nil {
			return err
		}
	case OpMulCP:
		caps, err := expect(patMulCP)
		if err != nil {
			return err
		}
		op.Factor = num(caps[0])
	case OpMulAllChances:
		caps, err := expect(patMulAll)
		if err != nil {
			return err
		}
		op.Factor = num(caps[0])
	case OpRemoveItem:
		caps, err := expect(patRemoveItem)
		if err != nil {
			return err
		}
		op.Vnum = num(caps[0])
	case OpRemoveGroup:
		caps, err := expect(patRemoveGroup)
		if err != nil {
			return err
		}
		op.Group = caps[0]
	}
	if numErr != nil {
		return numErr
	}
	p.table.Ops = append(p.table.Ops, op)
	return nil
}
