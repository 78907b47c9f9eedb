// Package jsonfmt implements the JSON catalog formats. Every document is
//
//	{"formatVersion": 1, "<catalog>": [ ... ]}
//
// with camelCase field names, flags as arrays of names and enumerations as
// names. Unlike rom-olc these formats work over any persist stream.
package jsonfmt

import (
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/crystal-mush/gorom/pkg/gamedb"
	"github.com/crystal-mush/gorom/pkg/persist"
)

// CatalogFormat builds the JSON format for a record catalog stored under key,
// using D as the wire shape of T.
func CatalogFormat[T, D any](key string, to func(*T) D, from func(*D) (T, error)) *persist.Format[*gamedb.Catalog[T]] {
	return &persist.Format[*gamedb.Catalog[T]]{
		Name: persist.FormatJSON,
		Load: func(r persist.Reader, filename string, dst *gamedb.Catalog[T]) persist.Result {
			return persist.ResultOf(load(r, key, from, dst))
		},
		Save: func(w persist.Writer, filename string, src *gamedb.Catalog[T]) persist.Result {
			items := make([]D, 0, src.Len())
			for _, rec := range src.All() {
				items = append(items, to(&rec))
			}
			return persist.ResultOf(persist.EncodeEnvelope(w, persist.Section{Key: key, Items: items}))
		},
	}
}

func load[T, D any](r persist.Reader, key string, from func(*D) (T, error), dst *gamedb.Catalog[T]) error {
	data, err := r.Fill()
	if err != nil {
		return err
	}
	raws, err := persist.DecodeEnvelope(data, key)
	if err != nil {
		return err
	}
	var items []D
	if err := json.Unmarshal(raws[0], &items); err != nil {
		return persist.Errorf(persist.NoLine, "%s: %v", key, err)
	}
	for i := range items {
		rec, err := from(&items[i])
		if err != nil {
			return persist.Errorf(persist.NoLine, "%s[%d]: %v", key, i, err)
		}
		if err := dst.Add(rec); err != nil {
			return persist.Errorf(persist.NoLine, "%s[%d]: %v", key, i, err)
		}
	}
	return nil
}

func enumName[E ~int](table gamedb.EnumTable[E], v E) string {
	if n := table.Name(v); n != "" {
		return n
	}
	return fmt.Sprint(int(v))
}

func enumValue[E ~int](table gamedb.EnumTable[E], field, name string) (E, error) {
	v, ok := table.Value(name)
	if !ok {
		return v, fmt.Errorf("%s: unknown value %q", field, name)
	}
	return v, nil
}

func flagsValue(table gamedb.FlagTable, field string, names []string) (gamedb.Flags, error) {
	f, err := table.Parse(names)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	return f, nil
}
