package flatfile

import (
	"strconv"
	"strings"

	"github.com/crystal-mush/gorom/pkg/gamedb"
	"github.com/crystal-mush/gorom/pkg/persist"
)

// Record sentinels.
const (
	SentinelClass   = "#CLASS"
	SentinelCommand = "#COMMAND"
	SentinelRace    = "#RACE"
	SentinelSocial  = "#SOCIAL"
	SentinelScript  = "#LOX_SCRIPT"
	SentinelTut     = "#TUTORIAL"
	SentinelStep    = "#STEP"
	SentinelLoot    = "#LOOT"
)

func errUnknownEnum(key string, v int) error {
	return persist.Errorf(persist.NoLine, "%s: no name for value %d", key, v)
}

// readIntList parses the rest of the line as integers.
func readIntList(p *Parser) ([]int, error) {
	line, err := p.ReadToEOL()
	if err != nil {
		return nil, err
	}
	var out []int
	for _, w := range strings.Fields(line) {
		n, err := strconv.Atoi(w)
		if err != nil {
			return nil, persist.Errorf(p.Line()-1, "expected a number, got %q", w)
		}
		out = append(out, n)
	}
	return out, nil
}

func statsField[T any](key string, ptr func(*T) *[5]int) Field[T] {
	return CustomField(key,
		func(p *Parser, rec *T) error {
			dst := ptr(rec)
			for i := range dst {
				n, err := p.ReadNumber()
				if err != nil {
					return err
				}
				dst[i] = n
			}
			return nil
		},
		func(wr *writer, rec *T) { wr.writeInts(key, ptr(rec)[:]) })
}

// ClassFields is the #CLASS field table.
var ClassFields = []Field[gamedb.Class]{
	StringField("name", func(c *gamedb.Class) *string { return &c.Name }),
	StringField("who", func(c *gamedb.Class) *string { return &c.WhoName }),
	StringField("basegroup", func(c *gamedb.Class) *string { return &c.BaseGroup }),
	StringField("defaultgroup", func(c *gamedb.Class) *string { return &c.DefaultGroup }),
	IntField("weapon", func(c *gamedb.Class) *int { return &c.Weapon }),
	CustomField("guilds",
		func(p *Parser, c *gamedb.Class) error {
			g, err := readIntList(p)
			c.Guilds = g
			return err
		},
		func(wr *writer, c *gamedb.Class) { wr.writeInts("guilds", c.Guilds) }),
	EnumField("primestat", gamedb.Stats, func(c *gamedb.Class) *gamedb.Stat { return &c.PrimeStat }),
	IntField("skillcap", func(c *gamedb.Class) *int { return &c.SkillCap }),
	IntField("thac0_00", func(c *gamedb.Class) *int { return &c.Thac0_00 }),
	IntField("thac0_32", func(c *gamedb.Class) *int { return &c.Thac0_32 }),
	IntField("hpmin", func(c *gamedb.Class) *int { return &c.HPMin }),
	IntField("hpmax", func(c *gamedb.Class) *int { return &c.HPMax }),
	BoolField("mana", func(c *gamedb.Class) *bool { return &c.ManaUser }),
	IntField("startloc", func(c *gamedb.Class) *int { return &c.StartLoc }),
}

// RaceFields is the #RACE field table. skill and classmult repeat, one line
// per element.
var RaceFields = []Field[gamedb.Race]{
	StringField("name", func(r *gamedb.Race) *string { return &r.Name }),
	StringField("who", func(r *gamedb.Race) *string { return &r.WhoName }),
	BoolField("pc", func(r *gamedb.Race) *bool { return &r.PC }),
	IntField("points", func(r *gamedb.Race) *int { return &r.Points }),
	FlagsField("act", gamedb.ActFlags, func(r *gamedb.Race) *gamedb.Flags { return &r.Act }),
	FlagsField("aff", gamedb.AffectFlags, func(r *gamedb.Race) *gamedb.Flags { return &r.Aff }),
	FlagsField("off", gamedb.OffFlags, func(r *gamedb.Race) *gamedb.Flags { return &r.Off }),
	FlagsField("imm", gamedb.IRVFlags, func(r *gamedb.Race) *gamedb.Flags { return &r.Imm }),
	FlagsField("res", gamedb.IRVFlags, func(r *gamedb.Race) *gamedb.Flags { return &r.Res }),
	FlagsField("vuln", gamedb.IRVFlags, func(r *gamedb.Race) *gamedb.Flags { return &r.Vuln }),
	FlagsField("form", gamedb.FormFlags, func(r *gamedb.Race) *gamedb.Flags { return &r.Form }),
	FlagsField("parts", gamedb.PartFlags, func(r *gamedb.Race) *gamedb.Flags { return &r.Parts }),
	EnumField("size", gamedb.Sizes, func(r *gamedb.Race) *gamedb.Size { return &r.Size }),
	statsField("stats", func(r *gamedb.Race) *[5]int { return &r.Stats }),
	statsField("maxstats", func(r *gamedb.Race) *[5]int { return &r.MaxStats }),
	CustomField("skill",
		func(p *Parser, r *gamedb.Race) error {
			s, err := p.ReadString()
			if err == nil {
				r.Skills = append(r.Skills, s)
			}
			return err
		},
		func(wr *writer, r *gamedb.Race) {
			for _, s := range r.Skills {
				wr.writeString("skill", s)
			}
		}),
	CustomField("classmult",
		func(p *Parser, r *gamedb.Race) error {
			class, err := p.ReadWord()
			if err != nil {
				return err
			}
			mult, err := p.ReadNumber()
			if err != nil {
				return err
			}
			r.ClassMult = append(r.ClassMult, gamedb.ClassMult{Class: class, Mult: mult})
			return nil
		},
		func(wr *writer, r *gamedb.Race) {
			for _, cm := range r.ClassMult {
				wr.writeWord("classmult", cm.Class, cm.Mult)
			}
		}),
	IntField("startloc", func(r *gamedb.Race) *int { return &r.StartLoc }),
}

// CommandFields is the #COMMAND field table.
var CommandFields = []Field[gamedb.Command]{
	StringField("name", func(c *gamedb.Command) *string { return &c.Name }),
	StringField("function", func(c *gamedb.Command) *string { return &c.Function }),
	EnumField("position", gamedb.Positions, func(c *gamedb.Command) *gamedb.Position { return &c.Position }),
	IntField("level", func(c *gamedb.Command) *int { return &c.Level }),
	EnumField("log", gamedb.LogLevels, func(c *gamedb.Command) *gamedb.LogLevel { return &c.Log }),
	BoolField("show", func(c *gamedb.Command) *bool { return &c.Show }),
}

// SocialFields is the #SOCIAL field table.
var SocialFields = []Field[gamedb.Social]{
	StringField("name", func(s *gamedb.Social) *string { return &s.Name }),
	StringField("char_no_arg", func(s *gamedb.Social) *string { return &s.CharNoArg }),
	StringField("others_no_arg", func(s *gamedb.Social) *string { return &s.OthersNoArg }),
	StringField("char_found", func(s *gamedb.Social) *string { return &s.CharFound }),
	StringField("others_found", func(s *gamedb.Social) *string { return &s.OthersFound }),
	StringField("vict_found", func(s *gamedb.Social) *string { return &s.VictFound }),
	StringField("char_auto", func(s *gamedb.Social) *string { return &s.CharAuto }),
	StringField("others_auto", func(s *gamedb.Social) *string { return &s.OthersAuto }),
	StringField("char_not_found", func(s *gamedb.Social) *string { return &s.CharNotFound }),
}

// ScriptFields is the #LOX_SCRIPT field table.
var ScriptFields = []Field[gamedb.Script]{
	StringField("name", func(s *gamedb.Script) *string { return &s.Name }),
	StringField("source", func(s *gamedb.Script) *string { return &s.Source }),
}

// StepFields is the nested #STEP field table.
var StepFields = []Field[gamedb.TutorialStep]{
	StringField("prompt", func(s *gamedb.TutorialStep) *string { return &s.Prompt }),
	StringField("match", func(s *gamedb.TutorialStep) *string { return &s.Match }),
}

// TutorialFields is the #TUTORIAL field table. Steps nest as #STEP blocks.
var TutorialFields = []Field[gamedb.Tutorial]{
	StringField("name", func(t *gamedb.Tutorial) *string { return &t.Name }),
	StringField("blurb", func(t *gamedb.Tutorial) *string { return &t.Blurb }),
	StringField("finish", func(t *gamedb.Tutorial) *string { return &t.Finish }),
	IntField("minlevel", func(t *gamedb.Tutorial) *int { return &t.MinLevel }),
	CustomField(SentinelStep,
		func(p *Parser, t *gamedb.Tutorial) error {
			var step gamedb.TutorialStep
			if err := ReadFields(p, StepFields, &step); err != nil {
				return err
			}
			t.Steps = append(t.Steps, step)
			return nil
		},
		func(wr *writer, t *gamedb.Tutorial) {
			for i := range t.Steps {
				wr.writef("%s\n", SentinelStep)
				WriteFields(wr, StepFields, &t.Steps[i])
			}
		}),
}

// Formats for each record catalog.
var (
	ClassFormat    = CatalogFormat(SentinelClass, ClassFields)
	CommandFormat  = CatalogFormat(SentinelCommand, CommandFields)
	RaceFormat     = CatalogFormat(SentinelRace, RaceFields)
	SocialFormat   = CatalogFormat(SentinelSocial, SocialFields)
	ScriptFormat   = CatalogFormat(SentinelScript, ScriptFields)
	TutorialFormat = CatalogFormat(SentinelTut, TutorialFields)
)
