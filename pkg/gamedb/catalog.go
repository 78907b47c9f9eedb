package gamedb

import (
	"fmt"
	"iter"
	"strings"

	"github.com/crystal-mush/gorom/pkg/growable"
	"github.com/crystal-mush/gorom/pkg/loot"
)

// Catalog is a named collection of records of one type, unique by name.
// Pointers returned by Find and At are valid until the next Add.
type Catalog[T any] struct {
	name  string
	key   func(*T) string
	items *growable.Store[T]
	index map[string]int
}

// NewCatalog creates an empty catalog. key extracts a record's name.
func NewCatalog[T any](name string, key func(*T) string) *Catalog[T] {
	var zero T
	return &Catalog[T]{
		name:  name,
		key:   key,
		items: growable.New(zero, growable.Options[T]{}),
		index: make(map[string]int),
	}
}

// Name returns the catalog name.
func (c *Catalog[T]) Name() string { return c.name }

// Len returns the number of records.
func (c *Catalog[T]) Len() int { return c.items.Len() }

// Add appends rec. Duplicate or empty names are rejected.
func (c *Catalog[T]) Add(rec T) error {
	k := strings.ToLower(c.key(&rec))
	if k == "" {
		return fmt.Errorf("%s: record has no name", c.name)
	}
	if _, dup := c.index[k]; dup {
		return fmt.Errorf("%s: duplicate name %q", c.name, c.key(&rec))
	}
	if err := c.items.Append(rec); err != nil {
		return fmt.Errorf("%s: %w", c.name, err)
	}
	c.index[k] = c.items.Len() - 1
	return nil
}

// Find returns the record with the given name (case-insensitive).
func (c *Catalog[T]) Find(name string) (*T, bool) {
	i, ok := c.index[strings.ToLower(name)]
	if !ok {
		return nil, false
	}
	return c.items.At(i), true
}

// FindPrefix returns the first record, in catalog order, whose name starts
// with prefix. Exact matches win.
func (c *Catalog[T]) FindPrefix(prefix string) (*T, bool) {
	if rec, ok := c.Find(prefix); ok {
		return rec, true
	}
	if prefix == "" {
		return nil, false
	}
	lp := strings.ToLower(prefix)
	for rec := range c.items.Pointers() {
		if strings.HasPrefix(strings.ToLower(c.key(rec)), lp) {
			return rec, true
		}
	}
	return nil, false
}

// At returns record i, or nil.
func (c *Catalog[T]) At(i int) *T { return c.items.At(i) }

// All iterates over the records in load order.
func (c *Catalog[T]) All() iter.Seq2[int, T] { return c.items.All() }

// Records returns a copy of the records.
func (c *Catalog[T]) Records() []T { return c.items.Slice() }

// Catalog names, used for filenames, JSON keys and admin commands.
const (
	CatClasses   = "classes"
	CatCommands  = "commands"
	CatRaces     = "races"
	CatSocials   = "socials"
	CatTutorials = "tutorials"
	CatScripts   = "scripts"
	CatLoot      = "loot"
)

// NewClasses returns an empty class catalog.
func NewClasses() *Catalog[Class] {
	return NewCatalog(CatClasses, func(c *Class) string { return c.Name })
}

// NewCommands returns an empty command catalog.
func NewCommands() *Catalog[Command] {
	return NewCatalog(CatCommands, func(c *Command) string { return c.Name })
}

// NewRaces returns an empty race catalog.
func NewRaces() *Catalog[Race] {
	return NewCatalog(CatRaces, func(r *Race) string { return r.Name })
}

// NewSocials returns an empty social catalog.
func NewSocials() *Catalog[Social] {
	return NewCatalog(CatSocials, func(s *Social) string { return s.Name })
}

// NewTutorials returns an empty tutorial catalog.
func NewTutorials() *Catalog[Tutorial] {
	return NewCatalog(CatTutorials, func(t *Tutorial) string { return t.Name })
}

// NewScripts returns an empty script catalog.
func NewScripts() *Catalog[Script] {
	return NewCatalog(CatScripts, func(s *Script) string { return s.Name })
}

// Catalogs is the world catalog context built at boot and handed to every
// component that reads or replaces catalog contents. Only the server loop
// goroutine touches it.
type Catalogs struct {
	Classes   *Catalog[Class]
	Commands  *Catalog[Command]
	Races     *Catalog[Race]
	Socials   *Catalog[Social]
	Tutorials *Catalog[Tutorial]
	Scripts   *Catalog[Script]
	Loot      *loot.DB
}

// NewCatalogs returns a context with every catalog empty.
func NewCatalogs() *Catalogs {
	return &Catalogs{
		Classes:   NewClasses(),
		Commands:  NewCommands(),
		Races:     NewRaces(),
		Socials:   NewSocials(),
		Tutorials: NewTutorials(),
		Scripts:   NewScripts(),
		Loot:      loot.NewDB(),
	}
}

// Counts returns the record count per catalog name.
func (c *Catalogs) Counts() map[string]int {
	return map[string]int{
		CatClasses:   c.Classes.Len(),
		CatCommands:  c.Commands.Len(),
		CatRaces:     c.Races.Len(),
		CatSocials:   c.Socials.Len(),
		CatTutorials: c.Tutorials.Len(),
		CatScripts:   c.Scripts.Len(),
		CatLoot:      c.Loot.Groups.Len() + c.Loot.Tables.Len(),
	}
}
