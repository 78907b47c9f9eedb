package catalog

import (
	"github.com/crystal-mush/gorom/pkg/flatfile"
	"github.com/crystal-mush/gorom/pkg/gamedb"
	"github.com/crystal-mush/gorom/pkg/jsonfmt"
	"github.com/crystal-mush/gorom/pkg/loot"
	"github.com/crystal-mush/gorom/pkg/persist"
)

// binder is the type-erased view of one catalog's registry and slot in the
// world context.
type binder interface {
	formats() []string
	formatFor(filename string) string
	// decode loads into a fresh catalog; commit swaps it into cats.
	decode(r persist.Reader, filename string) (commit func(cats *gamedb.Catalogs), res persist.Result)
	encode(w persist.Writer, filename string, cats *gamedb.Catalogs) persist.Result
	convert(r persist.Reader, from string, w persist.Writer, to string) persist.Result
}

type binding[C any] struct {
	reg   *persist.Registry[C]
	fresh func() C
	get   func(*gamedb.Catalogs) C
	set   func(*gamedb.Catalogs, C)
	// finish runs after a successful decode, before the swap.
	finish func(C) error
}

func (b *binding[C]) formats() []string { return b.reg.Names() }

func (b *binding[C]) formatFor(filename string) string {
	if f := b.reg.Select(filename); f != nil {
		return f.Name
	}
	return ""
}

func (b *binding[C]) load(r persist.Reader, filename string) (C, persist.Result) {
	dst := b.fresh()
	f := b.reg.Select(filename)
	if f == nil {
		return dst, persist.UnsupportedErr("no format registered for %s catalog %s", b.reg.Catalog(), filename)
	}
	res := f.Load(r, filename, dst)
	if res.IsOK() && b.finish != nil {
		res = persist.ResultOf(b.finish(dst))
	}
	return dst, res
}

func (b *binding[C]) decode(r persist.Reader, filename string) (func(*gamedb.Catalogs), persist.Result) {
	dst, res := b.load(r, filename)
	if !res.IsOK() {
		return nil, res
	}
	return func(cats *gamedb.Catalogs) { b.set(cats, dst) }, res
}

func (b *binding[C]) save(w persist.Writer, filename string, src C) persist.Result {
	f := b.reg.Select(filename)
	if f == nil {
		return persist.UnsupportedErr("no format registered for %s catalog %s", b.reg.Catalog(), filename)
	}
	return f.Save(w, filename, src)
}

func (b *binding[C]) encode(w persist.Writer, filename string, cats *gamedb.Catalogs) persist.Result {
	return b.save(w, filename, b.get(cats))
}

func (b *binding[C]) convert(r persist.Reader, from string, w persist.Writer, to string) persist.Result {
	src, res := b.load(r, from)
	if !res.IsOK() {
		return res
	}
	return b.save(w, to, src)
}

func registry[C any](name string, formats ...*persist.Format[C]) *persist.Registry[C] {
	reg := persist.NewRegistry[C](name, persist.FormatROM)
	for _, f := range formats {
		if f != nil {
			reg.Register(f)
		}
	}
	return reg
}

// recordBinding wires a record catalog to its rom-olc and JSON formats.
func recordBinding[T any](name string, rom, js *persist.Format[*gamedb.Catalog[T]], fresh func() *gamedb.Catalog[T],
	get func(*gamedb.Catalogs) *gamedb.Catalog[T], set func(*gamedb.Catalogs, *gamedb.Catalog[T])) binder {
	return &binding[*gamedb.Catalog[T]]{
		reg:   registry(name, rom, js),
		fresh: fresh,
		get:   get,
		set:   set,
	}
}

// jsonIf returns f when JSON support is enabled, nil otherwise. Without it
// ".json" filenames fall back to rom-olc.
func jsonIf[C any](on bool, f *persist.Format[C]) *persist.Format[C] {
	if on {
		return f
	}
	return nil
}

// LootRegistry returns the loot format registry. Section loads always use
// its rom-olc entry.
func LootRegistry(withJSON bool) *persist.Registry[*loot.DB] {
	return registry(gamedb.CatLoot, flatfile.LootFormat, jsonIf(withJSON, jsonfmt.LootFormat))
}

func newBindings(withJSON bool) map[Kind]binder {
	return map[Kind]binder{
		Classes: recordBinding(gamedb.CatClasses, flatfile.ClassFormat, jsonIf(withJSON, jsonfmt.ClassFormat), gamedb.NewClasses,
			func(c *gamedb.Catalogs) *gamedb.Catalog[gamedb.Class] { return c.Classes },
			func(c *gamedb.Catalogs, v *gamedb.Catalog[gamedb.Class]) { c.Classes = v }),
		Races: recordBinding(gamedb.CatRaces, flatfile.RaceFormat, jsonIf(withJSON, jsonfmt.RaceFormat), gamedb.NewRaces,
			func(c *gamedb.Catalogs) *gamedb.Catalog[gamedb.Race] { return c.Races },
			func(c *gamedb.Catalogs, v *gamedb.Catalog[gamedb.Race]) { c.Races = v }),
		Commands: recordBinding(gamedb.CatCommands, flatfile.CommandFormat, jsonIf(withJSON, jsonfmt.CommandFormat), gamedb.NewCommands,
			func(c *gamedb.Catalogs) *gamedb.Catalog[gamedb.Command] { return c.Commands },
			func(c *gamedb.Catalogs, v *gamedb.Catalog[gamedb.Command]) { c.Commands = v }),
		Socials: recordBinding(gamedb.CatSocials, flatfile.SocialFormat, jsonIf(withJSON, jsonfmt.SocialFormat), gamedb.NewSocials,
			func(c *gamedb.Catalogs) *gamedb.Catalog[gamedb.Social] { return c.Socials },
			func(c *gamedb.Catalogs, v *gamedb.Catalog[gamedb.Social]) { c.Socials = v }),
		Tutorials: recordBinding(gamedb.CatTutorials, flatfile.TutorialFormat, jsonIf(withJSON, jsonfmt.TutorialFormat), gamedb.NewTutorials,
			func(c *gamedb.Catalogs) *gamedb.Catalog[gamedb.Tutorial] { return c.Tutorials },
			func(c *gamedb.Catalogs, v *gamedb.Catalog[gamedb.Tutorial]) { c.Tutorials = v }),
		Scripts: recordBinding(gamedb.CatScripts, flatfile.ScriptFormat, jsonIf(withJSON, jsonfmt.ScriptFormat), gamedb.NewScripts,
			func(c *gamedb.Catalogs) *gamedb.Catalog[gamedb.Script] { return c.Scripts },
			func(c *gamedb.Catalogs, v *gamedb.Catalog[gamedb.Script]) { c.Scripts = v }),
		Loot: &binding[*loot.DB]{
			reg:    LootRegistry(withJSON),
			fresh:  loot.NewDB,
			get:    func(c *gamedb.Catalogs) *loot.DB { return c.Loot },
			set:    func(c *gamedb.Catalogs, v *loot.DB) { c.Loot = v },
			finish: loot.ResolveAll,
		},
	}
}
