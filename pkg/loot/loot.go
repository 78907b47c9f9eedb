// Package loot holds loot groups (weighted draw tables) and loot tables
// (ordered operations, optionally inheriting from a parent table), the
// section grammar they are persisted in, and the resolver that flattens a
// table's inheritance chain into a concrete draw list.
package loot

import (
	"fmt"
	"iter"
	"sort"
	"strings"

	"github.com/crystal-mush/gorom/pkg/growable"
)

// EntryKind discriminates loot entries.
type EntryKind int

const (
	EntryItem EntryKind = iota // a concrete object vnum
	EntryCP                    // currency points
)

func (k EntryKind) String() string {
	if k == EntryCP {
		return "cp"
	}
	return "item"
}

// Entry is one weighted possibility. Vnum is unused for EntryCP.
type Entry struct {
	Kind   EntryKind
	Vnum   int
	Min    int
	Max    int
	Weight int
}

// Validate checks that vnum, min and weight are not negative and min ≤ max.
func (e Entry) Validate() error {
	if e.Vnum < 0 {
		return fmt.Errorf("vnum %d is negative", e.Vnum)
	}
	if e.Min < 0 {
		return fmt.Errorf("min %d is negative", e.Min)
	}
	if e.Weight < 0 {
		return fmt.Errorf("weight %d is negative", e.Weight)
	}
	if e.Min > e.Max {
		return fmt.Errorf("min %d exceeds max %d", e.Min, e.Max)
	}
	return nil
}

// Group is a named weighted draw table, drawn Rolls times per use.
type Group struct {
	Name    string
	Rolls   int
	Entries []Entry
	Owner   string // defining area; scopes persistence only
}

// OpKind enumerates loot table operations.
type OpKind int

const (
	OpUseGroup OpKind = iota
	OpAddItem
	OpAddCP
	OpMulCP
	OpMulAllChances
	OpRemoveItem
	OpRemoveGroup
)

var opNames = [...]string{
	OpUseGroup:      "use_group",
	OpAddItem:       "add_item",
	OpAddCP:         "add_cp",
	OpMulCP:         "mul_cp",
	OpMulAllChances: "mul_all_chances",
	OpRemoveItem:    "remove_item",
	OpRemoveGroup:   "remove_group",
}

func (k OpKind) String() string {
	if k >= 0 && int(k) < len(opNames) {
		return opNames[k]
	}
	return "unknown"
}

// OpKindByName maps a persisted operation keyword to its kind.
func OpKindByName(name string) (OpKind, bool) {
	for i, n := range opNames {
		if strings.EqualFold(n, name) {
			return OpKind(i), true
		}
	}
	return 0, false
}

// Op is one step in assembling a table. Which fields are meaningful depends
// on Kind:
//
//	use_group        Group, Times
//	add_item         Vnum, Min, Max, Weight
//	add_cp           Min, Max, Weight
//	mul_cp           Factor (percent)
//	mul_all_chances  Factor (percent)
//	remove_item      Vnum
//	remove_group     Group
type Op struct {
	Kind   OpKind
	Group  string
	Times  int
	Vnum   int
	Min    int
	Max    int
	Weight int
	Factor int
}

// Table is a named list of operations with an optional parent.
type Table struct {
	Name   string
	Parent string
	Ops    []Op
	Owner  string

	resolved *Resolved
}

// Resolved returns the flattened table, or nil before resolution.
func (t *Table) Resolved() *Resolved { return t.resolved }

// DB is the loot database: every group and table, unique by name within each
// set.
type DB struct {
	Groups *growable.Store[Group]
	Tables *growable.Store[Table]

	groupIdx map[string]int
	tableIdx map[string]int
}

// NewDB returns an empty database.
func NewDB() *DB {
	return &DB{
		Groups:   growable.New(Group{Rolls: 1}, growable.Options[Group]{}),
		Tables:   growable.New(Table{}, growable.Options[Table]{}),
		groupIdx: make(map[string]int),
		tableIdx: make(map[string]int),
	}
}

func key(name string) string { return strings.ToLower(name) }

// AddGroup appends g. Names must be unique and g must pass Validate.
func (db *DB) AddGroup(g Group) error {
	if err := g.Validate(); err != nil {
		return err
	}
	k := key(g.Name)
	if _, dup := db.groupIdx[k]; dup {
		return fmt.Errorf("duplicate loot group %q", g.Name)
	}
	if err := db.Groups.Append(g); err != nil {
		return err
	}
	db.groupIdx[k] = db.Groups.Len() - 1
	return nil
}

// AddTable appends t. Names must be unique and t must pass Validate.
func (db *DB) AddTable(t Table) error {
	if err := t.Validate(); err != nil {
		return err
	}
	k := key(t.Name)
	if _, dup := db.tableIdx[k]; dup {
		return fmt.Errorf("duplicate loot table %q", t.Name)
	}
	t.resolved = nil
	if err := db.Tables.Append(t); err != nil {
		return err
	}
	db.tableIdx[k] = db.Tables.Len() - 1
	return nil
}

// Group looks up a group by name.
func (db *DB) Group(name string) (*Group, bool) {
	i, ok := db.groupIdx[key(name)]
	if !ok {
		return nil, false
	}
	return db.Groups.At(i), true
}

// Table looks up a table by name.
func (db *DB) Table(name string) (*Table, bool) {
	i, ok := db.tableIdx[key(name)]
	if !ok {
		return nil, false
	}
	return db.Tables.At(i), true
}

// GroupsOwnedBy iterates over the groups defined by owner.
func (db *DB) GroupsOwnedBy(owner string) iter.Seq[*Group] {
	return func(yield func(*Group) bool) {
		for g := range db.Groups.Pointers() {
			if g.Owner == owner && !yield(g) {
				return
			}
		}
	}
}

// TablesOwnedBy iterates over the tables defined by owner.
func (db *DB) TablesOwnedBy(owner string) iter.Seq[*Table] {
	return func(yield func(*Table) bool) {
		for t := range db.Tables.Pointers() {
			if t.Owner == owner && !yield(t) {
				return
			}
		}
	}
}

// Owners returns every owner with at least one record, sorted ("" first).
func (db *DB) Owners() []string {
	seen := map[string]bool{}
	for _, g := range db.Groups.All() {
		seen[g.Owner] = true
	}
	for _, t := range db.Tables.All() {
		seen[t.Owner] = true
	}
	owners := make([]string, 0, len(seen))
	for o := range seen {
		owners = append(owners, o)
	}
	sort.Strings(owners)
	return owners
}

// WithoutOwner returns a copy of db minus owner's groups and tables, with no
// resolution state. Section reloads parse into this copy and swap it in on
// success.
func (db *DB) WithoutOwner(owner string) *DB {
	out := NewDB()
	for _, g := range db.Groups.All() {
		if g.Owner != owner {
			out.AddGroup(cloneGroup(g))
		}
	}
	for _, t := range db.Tables.All() {
		if t.Owner != owner {
			out.AddTable(cloneTable(t))
		}
	}
	return out
}

// Invalidate drops every table's resolution. Call it after editing declared
// operations, then ResolveAll again.
func (db *DB) Invalidate() {
	for t := range db.Tables.Pointers() {
		t.resolved = nil
	}
}

func cloneGroup(g Group) Group {
	g.Entries = append([]Entry(nil), g.Entries...)
	return g
}

func cloneTable(t Table) Table {
	t.Ops = append([]Op(nil), t.Ops...)
	t.resolved = nil
	return t
}
