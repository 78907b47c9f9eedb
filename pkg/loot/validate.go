package loot

import (
	"fmt"
	"strings"

	"github.com/crystal-mush/gorom/pkg/match"
)

// patName is the shape of group and table names in the section grammar.
const patName = "%W"

// ValidName reports whether name can appear as a group or table name in a
// loot section: a letter followed by letters, digits or underscores.
func ValidName(name string) bool { return match.Match(patName, name, sigil) }

// validOwner reports whether owner survives a "#LOOT owner" header line.
func validOwner(owner string) bool {
	return owner == strings.TrimSpace(owner) && !strings.ContainsAny(owner, "\r\n")
}

func checkName(what, name string) error {
	if !ValidName(name) {
		return fmt.Errorf("%s name %q must be a letter followed by letters, digits or '_'", what, name)
	}
	return nil
}

func nonNegative(field string, n int) error {
	if n < 0 {
		return fmt.Errorf("%s %d is negative", field, n)
	}
	return nil
}

// Validate checks a group against the section grammar, so that anything
// accepted here can be written and read back.
func (g *Group) Validate() error {
	if err := checkName("group", g.Name); err != nil {
		return err
	}
	if !validOwner(g.Owner) {
		return fmt.Errorf("group %s: owner %q has surrounding blanks or line breaks", g.Name, g.Owner)
	}
	if err := nonNegative("rolls", g.Rolls); err != nil {
		return fmt.Errorf("group %s: %w", g.Name, err)
	}
	for i, e := range g.Entries {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("group %s: entry %d: %w", g.Name, i, err)
		}
	}
	return nil
}

// Validate checks one operation's fields for its kind.
func (op Op) Validate() error {
	switch op.Kind {
	case OpUseGroup:
		if err := checkName("group", op.Group); err != nil {
			return err
		}
		if op.Times < 1 {
			return fmt.Errorf("use_group %s: times must be at least 1", op.Group)
		}
	case OpAddItem:
		return Entry{Kind: EntryItem, Vnum: op.Vnum, Min: op.Min, Max: op.Max, Weight: op.Weight}.Validate()
	case OpAddCP:
		return Entry{Kind: EntryCP, Min: op.Min, Max: op.Max, Weight: op.Weight}.Validate()
	case OpMulCP, OpMulAllChances:
		return nonNegative("factor", op.Factor)
	case OpRemoveItem:
		return nonNegative("vnum", op.Vnum)
	case OpRemoveGroup:
		return checkName("group", op.Group)
	default:
		return fmt.Errorf("unknown op %d", int(op.Kind))
	}
	return nil
}

// Validate checks a table and its declared operations.
func (t *Table) Validate() error {
	if err := checkName("table", t.Name); err != nil {
		return err
	}
	if !validOwner(t.Owner) {
		return fmt.Errorf("table %s: owner %q has surrounding blanks or line breaks", t.Name, t.Owner)
	}
	if t.Parent != "" {
		if err := checkName("parent", t.Parent); err != nil {
			return fmt.Errorf("table %s: %w", t.Name, err)
		}
		if strings.EqualFold(t.Parent, t.Name) {
			return fmt.Errorf("loot table %q names itself as parent", t.Name)
		}
	}
	for i, op := range t.Ops {
		if err := op.Validate(); err != nil {
			return fmt.Errorf("table %s: op %d: %w", t.Name, i, err)
		}
	}
	return nil
}

// Validate checks every group and table.
func (db *DB) Validate() error {
	for g := range db.Groups.Pointers() {
		if err := g.Validate(); err != nil {
			return err
		}
	}
	for t := range db.Tables.Pointers() {
		if err := t.Validate(); err != nil {
			return err
		}
	}
	return nil
}
