package jsonfmt

import (
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/crystal-mush/gorom/pkg/loot"
	"github.com/crystal-mush/gorom/pkg/persist"
)

// Loot document keys.
const (
	KeyLootGroups = "groups"
	KeyLootTables = "tables"
)

type entryJSON struct {
	Kind   string `json:"kind"`
	Vnum   int    `json:"vnum,omitempty"`
	Min    int    `json:"min"`
	Max    int    `json:"max"`
	Weight int    `json:"weight"`
}

type groupJSON struct {
	Name    string      `json:"name"`
	Rolls   int         `json:"rolls"`
	Owner   string      `json:"owner,omitempty"`
	Entries []entryJSON `json:"entries,omitempty"`
}

// opJSON carries only the fields its op uses.
type opJSON struct {
	Op     string `json:"op"`
	Group  string `json:"group,omitempty"`
	Times  int    `json:"times,omitempty"`
	Vnum   int    `json:"vnum,omitempty"`
	Min    int    `json:"min,omitempty"`
	Max    int    `json:"max,omitempty"`
	Weight int    `json:"weight,omitempty"`
	Factor int    `json:"factor,omitempty"`
}

type tableJSON struct {
	Name   string   `json:"name"`
	Parent string   `json:"parent,omitempty"`
	Owner  string   `json:"owner,omitempty"`
	Ops    []opJSON `json:"ops,omitempty"`
}

func groupTo(g *loot.Group) groupJSON {
	j := groupJSON{Name: g.Name, Rolls: g.Rolls, Owner: g.Owner}
	for _, e := range g.Entries {
		j.Entries = append(j.Entries, entryJSON{Kind: e.Kind.String(), Vnum: e.Vnum, Min: e.Min, Max: e.Max, Weight: e.Weight})
	}
	return j
}

func groupFrom(j *groupJSON) (loot.Group, error) {
	g := loot.Group{Name: j.Name, Rolls: j.Rolls, Owner: j.Owner}
	for i, je := range j.Entries {
		e := loot.Entry{Vnum: je.Vnum, Min: je.Min, Max: je.Max, Weight: je.Weight}
		switch je.Kind {
		case "item":
			e.Kind = loot.EntryItem
		case "cp":
			e.Kind = loot.EntryCP
			e.Vnum = 0
		default:
			return g, fmt.Errorf("entries[%d]: unknown kind %q", i, je.Kind)
		}
		if err := e.Validate(); err != nil {
			return g, fmt.Errorf("entries[%d]: %w", i, err)
		}
		g.Entries = append(g.Entries, e)
	}
	return g, g.Validate()
}

func opTo(op loot.Op) opJSON {
	j := opJSON{Op: op.Kind.String()}
	switch op.Kind {
	case loot.OpUseGroup:
		j.Group, j.Times = op.Group, op.Times
	case loot.OpAddItem:
		j.Vnum, j.Min, j.Max, j.Weight = op.Vnum, op.Min, op.Max, op.Weight
	case loot.OpAddCP:
		j.Min, j.Max, j.Weight = op.Min, op.Max, op.Weight
	case loot.OpMulCP, loot.OpMulAllChances:
		j.Factor = op.Factor
	case loot.OpRemoveItem:
		j.Vnum = op.Vnum
	case loot.OpRemoveGroup:
		j.Group = op.Group
	}
	return j
}

func opFrom(j opJSON) (loot.Op, error) {
	kind, ok := loot.OpKindByName(j.Op)
	if !ok {
		return loot.Op{}, fmt.Errorf("unknown op %q", j.Op)
	}
	op := loot.Op{Kind: kind}
	switch kind {
	case loot.OpUseGroup:
		if j.Group == "" {
			return op, fmt.Errorf("use_group without group")
		}
		op.Group, op.Times = j.Group, j.Times
		if op.Times == 0 {
			op.Times = 1
		}
	case loot.OpAddItem:
		op.Vnum, op.Min, op.Max, op.Weight = j.Vnum, j.Min, j.Max, j.Weight
	case loot.OpAddCP:
		op.Min, op.Max, op.Weight = j.Min, j.Max, j.Weight
	case loot.OpMulCP, loot.OpMulAllChances:
		op.Factor = j.Factor
	case loot.OpRemoveItem:
		op.Vnum = j.Vnum
	case loot.OpRemoveGroup:
		op.Group = j.Group
	}
	return op, op.Validate()
}

func tableTo(t *loot.Table) tableJSON {
	j := tableJSON{Name: t.Name, Parent: t.Parent, Owner: t.Owner}
	for _, op := range t.Ops {
		j.Ops = append(j.Ops, opTo(op))
	}
	return j
}

func tableFrom(j *tableJSON) (loot.Table, error) {
	t := loot.Table{Name: j.Name, Parent: j.Parent, Owner: j.Owner}
	for i, jo := range j.Ops {
		op, err := opFrom(jo)
		if err != nil {
			return t, fmt.Errorf("ops[%d]: %w", i, err)
		}
		t.Ops = append(t.Ops, op)
	}
	return t, nil
}

// LootFormat stores declared groups and tables, never resolutions.
var LootFormat = &persist.Format[*loot.DB]{
	Name: persist.FormatJSON,
	Load: func(r persist.Reader, filename string, dst *loot.DB) persist.Result {
		return persist.ResultOf(loadLoot(r, dst))
	},
	Save: func(w persist.Writer, filename string, src *loot.DB) persist.Result {
		groups := make([]groupJSON, 0, src.Groups.Len())
		for g := range src.Groups.Pointers() {
			groups = append(groups, groupTo(g))
		}
		tables := make([]tableJSON, 0, src.Tables.Len())
		for t := range src.Tables.Pointers() {
			tables = append(tables, tableTo(t))
		}
		return persist.ResultOf(persist.EncodeEnvelope(w,
			persist.Section{Key: KeyLootGroups, Items: groups},
			persist.Section{Key: KeyLootTables, Items: tables}))
	},
}

func loadLoot(r persist.Reader, dst *loot.DB) error {
	data, err := r.Fill()
	if err != nil {
		return err
	}
	raws, err := persist.DecodeEnvelope(data, KeyLootGroups, KeyLootTables)
	if err != nil {
		return err
	}
	var groups []groupJSON
	if err := json.Unmarshal(raws[0], &groups); err != nil {
		return persist.Errorf(persist.NoLine, "%s: %v", KeyLootGroups, err)
	}
	var tables []tableJSON
	if err := json.Unmarshal(raws[1], &tables); err != nil {
		return persist.Errorf(persist.NoLine, "%s: %v", KeyLootTables, err)
	}
	for i := range groups {
		g, err := groupFrom(&groups[i])
		if err == nil {
			err = dst.AddGroup(g)
		}
		if err != nil {
			return persist.Errorf(persist.NoLine, "%s[%d]: %v", KeyLootGroups, i, err)
		}
	}
	for i := range tables {
		t, err := tableFrom(&tables[i])
		if err == nil {
			err = dst.AddTable(t)
		}
		if err != nil {
			return persist.Errorf(persist.NoLine, "%s[%d]: %v", KeyLootTables, i, err)
		}
	}
	return nil
}
