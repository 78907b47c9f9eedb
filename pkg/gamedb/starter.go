package gamedb

import (
	"fmt"

	"github.com/crystal-mush/gorom/pkg/loot"
)

// starterLoot is the loot catalog a fresh world starts with.
const starterLoot = `group vermin_scraps 1
    item 3010 1 1 weight 60
    cp 1 5 weight 40

group humanoid_common 2
    item 3001 1 1 weight 40
    item 3002 1 3 weight 30
    cp 5 25 weight 30

table vermin
    use_group vermin_scraps

table humanoid
    use_group humanoid_common
    add_cp 2 10 weight 50

table guard : humanoid
    add_item 3350 1 1 weight 20
    mul_cp 150
`

// Starter returns the catalogs a brand new world is seeded with when the
// data directory holds no catalog files.
func Starter() *Catalogs {
	c := NewCatalogs()

	for _, cl := range []Class{
		{Name: "mage", WhoName: "Mag", BaseGroup: "mage basics", DefaultGroup: "mage default",
			Weapon: 3700, Guilds: []int{3018, 9618}, PrimeStat: StatInt, SkillCap: 75,
			Thac0_00: 20, Thac0_32: 6, HPMin: 6, HPMax: 8, ManaUser: true, StartLoc: 3001},
		{Name: "warrior", WhoName: "War", BaseGroup: "warrior basics", DefaultGroup: "warrior default",
			Weapon: 3702, Guilds: []int{3022, 9633}, PrimeStat: StatStr, SkillCap: 75,
			Thac0_00: 20, Thac0_32: -10, HPMin: 11, HPMax: 15, StartLoc: 3001},
	} {
		must(c.Classes.Add(cl))
	}

	for _, r := range []Race{
		{Name: "human", WhoName: "Human", PC: true, Points: 0,
			Form: mustFlags(FormFlags, "edible", "sentient", "biped", "mammal"),
			Parts: mustFlags(PartFlags, "head", "arms", "legs", "heart", "brains", "guts", "hands", "feet", "fingers", "ear", "eye"),
			Size: SizeMedium, Stats: [5]int{13, 13, 13, 13, 13}, MaxStats: [5]int{18, 18, 18, 18, 18},
			ClassMult: []ClassMult{{"mage", 100}, {"warrior", 100}}, StartLoc: 3001},
		{Name: "elf", WhoName: "Elf", PC: true, Points: 5,
			Aff:  mustFlags(AffectFlags, "infrared"),
			Res:  mustFlags(IRVFlags, "charm"),
			Vuln: mustFlags(IRVFlags, "iron"),
			Form: mustFlags(FormFlags, "edible", "sentient", "biped", "mammal"),
			Parts: mustFlags(PartFlags, "head", "arms", "legs", "heart", "brains", "guts", "hands", "feet", "fingers", "ear", "eye"),
			Size: SizeSmall, Stats: [5]int{12, 14, 13, 15, 11}, MaxStats: [5]int{16, 20, 18, 21, 15},
			Skills: []string{"sneak", "hide"}, ClassMult: []ClassMult{{"mage", 100}, {"warrior", 150}}, StartLoc: 3001},
		{Name: "rat", Act: mustFlags(ActFlags, "npc", "scavenger"),
			Off:  mustFlags(OffFlags, "fast", "dodge"),
			Form: mustFlags(FormFlags, "edible", "animal", "mammal"),
			Parts: mustFlags(PartFlags, "head", "legs", "heart", "guts", "feet", "tail", "fangs"),
			Size: SizeTiny},
	} {
		must(c.Races.Add(r))
	}

	for _, cmd := range []Command{
		{Name: "look", Function: "do_look", Position: PosResting, Show: true},
		{Name: "say", Function: "do_say", Position: PosResting, Show: true},
		{Name: "help", Function: "do_help", Position: PosDead, Show: true},
		{Name: "who", Function: "do_who", Position: PosDead, Show: true},
		{Name: "quit", Function: "do_quit", Position: PosDead, Show: true},
		{Name: "login", Function: "do_login", Position: PosDead, Log: LogNever},
		{Name: "socials", Function: "do_socials", Position: PosDead, Show: true},
		{Name: "classes", Function: "do_classes", Position: PosDead, Show: true},
		{Name: "races", Function: "do_races", Position: PosDead, Show: true},
		{Name: "tutorial", Function: "do_tutorial", Position: PosDead, Show: true},
		{Name: "catalogs", Function: "do_catalogs", Level: 60, Position: PosDead, Log: LogAlways, Show: true},
		{Name: "save", Function: "do_save", Level: 60, Position: PosDead, Log: LogAlways, Show: true},
		{Name: "load", Function: "do_load", Level: 60, Position: PosDead, Log: LogAlways, Show: true},
		{Name: "convert", Function: "do_convert", Level: 60, Position: PosDead, Log: LogAlways, Show: true},
		{Name: "loot", Function: "do_loot", Level: 60, Position: PosDead, Show: true},
		{Name: "roll", Function: "do_roll", Level: 60, Position: PosDead, Show: true},
		{Name: "snapshot", Function: "do_snapshot", Level: 60, Position: PosDead, Log: LogAlways, Show: true},
		{Name: "restore", Function: "do_restore", Level: 60, Position: PosDead, Log: LogAlways, Show: true},
		{Name: "archive", Function: "do_archive", Level: 60, Position: PosDead, Log: LogAlways, Show: true},
	} {
		must(c.Commands.Add(cmd))
	}

	for _, s := range []Social{
		{Name: "smile", CharNoArg: "You smile happily.", OthersNoArg: "$n smiles happily.",
			CharFound: "You smile at $M.", OthersFound: "$n beams a smile at $N.", VictFound: "$n smiles at you.",
			CharAuto: "You smile at yourself.", OthersAuto: "$n smiles at $mself.", CharNotFound: "They aren't here."},
		{Name: "nod", CharNoArg: "You nod.", OthersNoArg: "$n nods.",
			CharFound: "You nod to $M.", OthersFound: "$n nods to $N.", VictFound: "$n nods to you."},
	} {
		must(c.Socials.Add(s))
	}

	must(c.Tutorials.Add(Tutorial{
		Name:   "basics",
		Blurb:  "A short walk through talking to the world.",
		Finish: "You have finished the basics tutorial.",
		Steps: []TutorialStep{
			{Prompt: "Greet the world: type 'say hello'.", Match: "say #W"},
			{Prompt: "Try a social: type 'smile'.", Match: "smile"},
			{Prompt: "Ask for your age: type 'age <number>'.", Match: "age #N"},
		},
	}))

	must(c.Scripts.Add(Script{Name: "greet", Source: "fun greet(ch) {\n  send(ch, \"Welcome!\");\n}\n"}))

	must(loot.ParseSection(c.Loot, starterLoot, ""))
	must(loot.ResolveAll(c.Loot))
	return c
}

// must panics on err; the starter world is fixed data.
func must(err error) {
	if err != nil {
		panic(fmt.Sprintf("gamedb: starter world: %v", err))
	}
}

func mustFlags(t FlagTable, names ...string) Flags {
	f, err := t.Parse(names)
	if err != nil {
		panic(err)
	}
	return f
}
