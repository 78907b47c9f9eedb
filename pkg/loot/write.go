package loot

import (
	"bufio"
	"fmt"
	"io"

	"github.com/crystal-mush/gorom/pkg/persist"
)

// WriteSection writes owner's groups and tables as a section body followed
// by #ENDLOOT. Only declared operations are written, never a resolution.
// Nothing is written if any record would not read back.
func WriteSection(w io.Writer, db *DB, owner string) error {
	for g := range db.GroupsOwnedBy(owner) {
		if err := g.Validate(); err != nil {
			return persist.Errorf(persist.NoLine, "cannot write loot: %v", err)
		}
	}
	for t := range db.TablesOwnedBy(owner) {
		if err := t.Validate(); err != nil {
			return persist.Errorf(persist.NoLine, "cannot write loot: %v", err)
		}
	}
	bw := bufio.NewWriter(w)
	for g := range db.GroupsOwnedBy(owner) {
		writeGroup(bw, g)
	}
	for t := range db.TablesOwnedBy(owner) {
		writeTable(bw, t)
	}
	fmt.Fprintln(bw, EndSentinel)
	return bw.Flush()
}

func writeGroup(w *bufio.Writer, g *Group) {
	fmt.Fprintf(w, "group %s %d\n", g.Name, g.Rolls)
	for _, e := range g.Entries {
		if e.Kind == EntryCP {
			fmt.Fprintf(w, "    cp %d %d weight %d\n", e.Min, e.Max, e.Weight)
		} else {
			fmt.Fprintf(w, "    item %d %d %d weight %d\n", e.Vnum, e.Min, e.Max, e.Weight)
		}
	}
	fmt.Fprintln(w)
}

func writeTable(w *bufio.Writer, t *Table) {
	if t.Parent != "" {
		fmt.Fprintf(w, "table %s : %s\n", t.Name, t.Parent)
	} else {
		fmt.Fprintf(w, "table %s\n", t.Name)
	}
	for _, op := range t.Ops {
		fmt.Fprintf(w, "    %s\n", FormatOp(op))
	}
	fmt.Fprintln(w)
}

// FormatOp renders op as a section line without indentation.
func FormatOp(op Op) string {
	switch op.Kind {
	case OpUseGroup:
		if op.Times > 1 {
			return fmt.Sprintf("use_group %s %d", op.Group, op.Times)
		}
		return "use_group " + op.Group
	case OpAddItem:
		return fmt.Sprintf("add_item %d %d %d weight %d", op.Vnum, op.Min, op.Max, op.Weight)
	case OpAddCP:
		return fmt.Sprintf("add_cp %d %d weight %d", op.Min, op.Max, op.Weight)
	case OpMulCP:
		return fmt.Sprintf("mul_cp %d", op.Factor)
	case OpMulAllChances:
		return fmt.Sprintf("mul_all_chances %d", op.Factor)
	case OpRemoveItem:
		return fmt.Sprintf("remove_item %d", op.Vnum)
	case OpRemoveGroup:
		return "remove_group " + op.Group
	}
	return fmt.Sprintf("# unknown op %d", op.Kind)
}
