package gamedb

import (
	"fmt"
	"strings"
)

// Flags is a bit set resolved against a FlagTable by name.
type Flags uint64

// Has reports whether every bit in mask is set.
func (f Flags) Has(mask Flags) bool { return f&mask == mask }

// FlagDef names one bit.
type FlagDef struct {
	Name string
	Bit  Flags
}

// FlagTable is a fixed name table for one flag field.
type FlagTable []FlagDef

// Lookup returns the bit for name (case-insensitive).
func (t FlagTable) Lookup(name string) (Flags, bool) {
	for _, d := range t {
		if strings.EqualFold(d.Name, name) {
			return d.Bit, true
		}
	}
	return 0, false
}

// Parse resolves a list of names. The first unknown name is returned in the
// error.
func (t FlagTable) Parse(names []string) (Flags, error) {
	var f Flags
	for _, n := range names {
		if n == "" {
			continue
		}
		bit, ok := t.Lookup(n)
		if !ok {
			return 0, fmt.Errorf("unknown flag %q", n)
		}
		f |= bit
	}
	return f, nil
}

// Names returns the names of the bits set in f, in table order.
func (t FlagTable) Names(f Flags) []string {
	names := []string{}
	for _, d := range t {
		if f&d.Bit != 0 {
			names = append(names, d.Name)
		}
	}
	return names
}

// String renders f as space-separated names ("none" when empty).
func (t FlagTable) String(f Flags) string {
	names := t.Names(f)
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, " ")
}

// bit returns the ROM letter bit: A=1<<0 ... Z=1<<25, aa=1<<26 ...
func bit(n uint) Flags { return Flags(1) << n }

// ActFlags are NPC behaviour flags.
var ActFlags = FlagTable{
	{"npc", bit(0)},
	{"sentinel", bit(1)},
	{"scavenger", bit(2)},
	{"aggressive", bit(5)},
	{"stay_area", bit(6)},
	{"wimpy", bit(7)},
	{"pet", bit(8)},
	{"train", bit(9)},
	{"practice", bit(10)},
	{"undead", bit(14)},
	{"cleric", bit(16)},
	{"mage", bit(17)},
	{"thief", bit(18)},
	{"warrior", bit(19)},
	{"noalign", bit(20)},
	{"nopurge", bit(21)},
	{"outdoors", bit(22)},
	{"indoors", bit(24)},
	{"healer", bit(26)},
	{"gain", bit(27)},
	{"update_always", bit(28)},
	{"changer", bit(29)},
}

// AffectFlags are magical affect flags.
var AffectFlags = FlagTable{
	{"blind", bit(0)},
	{"invisible", bit(1)},
	{"detect_evil", bit(2)},
	{"detect_invis", bit(3)},
	{"detect_magic", bit(4)},
	{"detect_hidden", bit(5)},
	{"detect_good", bit(6)},
	{"sanctuary", bit(7)},
	{"faerie_fire", bit(8)},
	{"infrared", bit(9)},
	{"curse", bit(10)},
	{"poison", bit(12)},
	{"protect_evil", bit(13)},
	{"protect_good", bit(14)},
	{"sneak", bit(15)},
	{"hide", bit(16)},
	{"sleep", bit(17)},
	{"charm", bit(18)},
	{"flying", bit(19)},
	{"pass_door", bit(20)},
	{"haste", bit(21)},
	{"calm", bit(22)},
	{"plague", bit(23)},
	{"weaken", bit(24)},
	{"dark_vision", bit(25)},
	{"berserk", bit(26)},
	{"swim", bit(27)},
	{"regeneration", bit(28)},
	{"slow", bit(29)},
}

// OffFlags are combat behaviour flags.
var OffFlags = FlagTable{
	{"area_attack", bit(0)},
	{"backstab", bit(1)},
	{"bash", bit(2)},
	{"berserk", bit(3)},
	{"disarm", bit(4)},
	{"dodge", bit(5)},
	{"fade", bit(6)},
	{"fast", bit(7)},
	{"kick", bit(8)},
	{"dirt_kick", bit(9)},
	{"parry", bit(10)},
	{"rescue", bit(11)},
	{"tail", bit(12)},
	{"trip", bit(13)},
	{"crush", bit(14)},
	{"assist_all", bit(15)},
	{"assist_align", bit(16)},
	{"assist_race", bit(17)},
	{"assist_players", bit(18)},
	{"assist_guard", bit(19)},
	{"assist_vnum", bit(20)},
}

// IRVFlags are shared by immunity, resistance and vulnerability fields.
var IRVFlags = FlagTable{
	{"summon", bit(0)},
	{"charm", bit(1)},
	{"magic", bit(2)},
	{"weapon", bit(3)},
	{"bash", bit(4)},
	{"pierce", bit(5)},
	{"slash", bit(6)},
	{"fire", bit(7)},
	{"cold", bit(8)},
	{"lightning", bit(9)},
	{"acid", bit(10)},
	{"poison", bit(11)},
	{"negative", bit(12)},
	{"holy", bit(13)},
	{"energy", bit(14)},
	{"mental", bit(15)},
	{"disease", bit(16)},
	{"drowning", bit(17)},
	{"light", bit(18)},
	{"sound", bit(19)},
	{"wood", bit(23)},
	{"silver", bit(24)},
	{"iron", bit(25)},
}

// FormFlags describe a body's form.
var FormFlags = FlagTable{
	{"edible", bit(0)},
	{"poison", bit(1)},
	{"magical", bit(2)},
	{"instant_decay", bit(3)},
	{"other", bit(4)},
	{"animal", bit(6)},
	{"sentient", bit(7)},
	{"undead", bit(8)},
	{"construct", bit(9)},
	{"mist", bit(10)},
	{"intangible", bit(11)},
	{"biped", bit(12)},
	{"centaur", bit(13)},
	{"insect", bit(14)},
	{"spider", bit(15)},
	{"crustacean", bit(16)},
	{"worm", bit(17)},
	{"blob", bit(18)},
	{"mammal", bit(21)},
	{"bird", bit(22)},
	{"reptile", bit(23)},
	{"snake", bit(24)},
	{"dragon", bit(25)},
	{"amphibian", bit(26)},
	{"fish", bit(27)},
	{"cold_blood", bit(28)},
}

// PartFlags describe a body's parts.
var PartFlags = FlagTable{
	{"head", bit(0)},
	{"arms", bit(1)},
	{"legs", bit(2)},
	{"heart", bit(3)},
	{"brains", bit(4)},
	{"guts", bit(5)},
	{"hands", bit(6)},
	{"feet", bit(7)},
	{"fingers", bit(8)},
	{"ear", bit(9)},
	{"eye", bit(10)},
	{"long_tongue", bit(11)},
	{"eyestalks", bit(12)},
	{"tentacles", bit(13)},
	{"fins", bit(14)},
	{"wings", bit(15)},
	{"tail", bit(16)},
	{"claws", bit(20)},
	{"fangs", bit(21)},
	{"horns", bit(22)},
	{"scales", bit(23)},
	{"tusks", bit(24)},
}
