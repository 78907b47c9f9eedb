// Package catalog orchestrates loading and saving the world catalogs: it
// resolves filenames against the data directory, opens files through the
// descriptor guard, picks a format by extension, swaps freshly decoded
// catalogs into the live context only on success, and writes saves through
// a temp file that is renamed into place.
package catalog

import (
	"strings"

	"github.com/crystal-mush/gorom/pkg/gamedb"
)

// Kind identifies one catalog.
type Kind int

const (
	Classes Kind = iota
	Races
	Commands
	Socials
	Tutorials
	Scripts
	Loot
)

var kindNames = [...]string{
	Classes:   gamedb.CatClasses,
	Races:     gamedb.CatRaces,
	Commands:  gamedb.CatCommands,
	Socials:   gamedb.CatSocials,
	Tutorials: gamedb.CatTutorials,
	Scripts:   gamedb.CatScripts,
	Loot:      gamedb.CatLoot,
}

// Kinds returns every catalog in boot order.
func Kinds() []Kind {
	return []Kind{Classes, Races, Commands, Socials, Tutorials, Scripts, Loot}
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// DefaultFile is the catalog's filename when none is configured.
func (k Kind) DefaultFile() string { return k.String() + ".olc" }

// ParseKind looks up a catalog by name or unique prefix.
func ParseKind(name string) (Kind, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return 0, false
	}
	found, n := Kind(0), 0
	for _, k := range Kinds() {
		if k.String() == name {
			return k, true
		}
		if strings.HasPrefix(k.String(), name) {
			found, n = k, n+1
		}
	}
	return found, n == 1
}
