package loot

import (
	"fmt"
	"slices"
	"strings"

	"github.com/crystal-mush/gorom/pkg/persist"
)

// Draw is a group expanded into a table: Rolls weighted picks from Entries.
type Draw struct {
	Group   string
	Rolls   int
	Entries []Entry
}

// Resolved is a table with its parent chain replayed and every use_group
// expanded. It holds no references to other tables or groups.
type Resolved struct {
	Name  string
	Draws []Draw
	// Items are standalone entries; each drops independently with
	// Weight percent chance.
	Items []Entry
}

func (r *Resolved) clone(name string) *Resolved {
	out := &Resolved{Name: name, Items: slices.Clone(r.Items)}
	for _, d := range r.Draws {
		d.Entries = slices.Clone(d.Entries)
		out.Draws = append(out.Draws, d)
	}
	return out
}

// each visits every entry, standalone or inside a draw.
func (r *Resolved) each(fn func(*Entry)) {
	for i := range r.Items {
		fn(&r.Items[i])
	}
	for d := range r.Draws {
		for i := range r.Draws[d].Entries {
			fn(&r.Draws[d].Entries[i])
		}
	}
}

// ResolveAll resolves every table not yet resolved. Parents resolve before
// children; a parent chain that loops back on itself, an unknown parent and
// an unknown group are all format errors. Tables resolved before the error
// keep their resolution. Calling it again with nothing new is a no-op.
func ResolveAll(db *DB) error {
	for t := range db.Tables.Pointers() {
		if _, err := db.resolve(t, nil); err != nil {
			return err
		}
	}
	return nil
}

// Resolve resolves one table (and its ancestors) by name.
func (db *DB) Resolve(name string) (*Resolved, error) {
	t, ok := db.Table(name)
	if !ok {
		return nil, persist.Errorf(persist.NoLine, "unknown loot table %q", name)
	}
	return db.resolve(t, nil)
}

func (db *DB) resolve(t *Table, chain []string) (*Resolved, error) {
	if t.resolved != nil {
		return t.resolved, nil
	}
	for _, name := range chain {
		if strings.EqualFold(name, t.Name) {
			loop := append(slices.Clone(chain), t.Name)
			return nil, persist.Errorf(persist.NoLine, "loot table cycle: %s", strings.Join(loop, " -> "))
		}
	}
	chain = append(chain, t.Name)

	var work *Resolved
	if t.Parent != "" {
		parent, ok := db.Table(t.Parent)
		if !ok {
			return nil, persist.Errorf(persist.NoLine, "loot table %q: unknown parent %q", t.Name, t.Parent)
		}
		pr, err := db.resolve(parent, chain)
		if err != nil {
			return nil, err
		}
		work = pr.clone(t.Name)
	} else {
		work = &Resolved{Name: t.Name}
	}

	for _, op := range t.Ops {
		if err := db.apply(work, op); err != nil {
			return nil, persist.Errorf(persist.NoLine, "loot table %q: %v", t.Name, err)
		}
	}
	t.resolved = work
	return work, nil
}

func scale(v, percent int) int { return v * percent / 100 }

func (db *DB) apply(r *Resolved, op Op) error {
	switch op.Kind {
	case OpUseGroup:
		g, ok := db.Group(op.Group)
		if !ok {
			return fmt.Errorf("unknown loot group %q", op.Group)
		}
		times := max(op.Times, 1)
		r.Draws = append(r.Draws, Draw{
			Group:   g.Name,
			Rolls:   g.Rolls * times,
			Entries: slices.Clone(g.Entries),
		})
	case OpAddItem:
		r.Items = append(r.Items, Entry{Kind: EntryItem, Vnum: op.Vnum, Min: op.Min, Max: op.Max, Weight: op.Weight})
	case OpAddCP:
		r.Items = append(r.Items, Entry{Kind: EntryCP, Min: op.Min, Max: op.Max, Weight: op.Weight})
	case OpMulCP:
		r.each(func(e *Entry) {
			if e.Kind == EntryCP {
				e.Min, e.Max = scale(e.Min, op.Factor), scale(e.Max, op.Factor)
			}
		})
	case OpMulAllChances:
		r.each(func(e *Entry) { e.Weight = scale(e.Weight, op.Factor) })
	case OpRemoveItem:
		drop := func(e Entry) bool { return e.Kind == EntryItem && e.Vnum == op.Vnum }
		r.Items = slices.DeleteFunc(r.Items, drop)
		for i := range r.Draws {
			r.Draws[i].Entries = slices.DeleteFunc(r.Draws[i].Entries, drop)
		}
	case OpRemoveGroup:
		r.Draws = slices.DeleteFunc(r.Draws, func(d Draw) bool {
			return strings.EqualFold(d.Group, op.Group)
		})
	default:
		return fmt.Errorf("unknown loot operation %d", op.Kind)
	}
	return nil
}
