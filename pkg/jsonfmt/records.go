package jsonfmt

import "github.com/crystal-mush/gorom/pkg/gamedb"

type classJSON struct {
	Name         string `json:"name"`
	Who          string `json:"who"`
	BaseGroup    string `json:"baseGroup"`
	DefaultGroup string `json:"defaultGroup"`
	Weapon       int    `json:"weapon"`
	Guilds       []int  `json:"guilds,omitempty"`
	PrimeStat    string `json:"primeStat"`
	SkillCap     int    `json:"skillCap"`
	Thac0_00     int    `json:"thac0_00"`
	Thac0_32     int    `json:"thac0_32"`
	HPMin        int    `json:"hpMin"`
	HPMax        int    `json:"hpMax"`
	Mana         bool   `json:"mana"`
	StartLoc     int    `json:"startLoc"`
}

func classTo(c *gamedb.Class) classJSON {
	return classJSON{
		Name: c.Name, Who: c.WhoName, BaseGroup: c.BaseGroup, DefaultGroup: c.DefaultGroup,
		Weapon: c.Weapon, Guilds: c.Guilds, PrimeStat: enumName(gamedb.Stats, c.PrimeStat),
		SkillCap: c.SkillCap, Thac0_00: c.Thac0_00, Thac0_32: c.Thac0_32,
		HPMin: c.HPMin, HPMax: c.HPMax, Mana: c.ManaUser, StartLoc: c.StartLoc,
	}
}

func classFrom(j *classJSON) (gamedb.Class, error) {
	stat, err := enumValue(gamedb.Stats, "primeStat", j.PrimeStat)
	if err != nil {
		return gamedb.Class{}, err
	}
	return gamedb.Class{
		Name: j.Name, WhoName: j.Who, BaseGroup: j.BaseGroup, DefaultGroup: j.DefaultGroup,
		Weapon: j.Weapon, Guilds: j.Guilds, PrimeStat: stat,
		SkillCap: j.SkillCap, Thac0_00: j.Thac0_00, Thac0_32: j.Thac0_32,
		HPMin: j.HPMin, HPMax: j.HPMax, ManaUser: j.Mana, StartLoc: j.StartLoc,
	}, nil
}

type classMultJSON struct {
	Class string `json:"class"`
	Mult  int    `json:"mult"`
}

type raceJSON struct {
	Name      string          `json:"name"`
	Who       string          `json:"who"`
	PC        bool            `json:"pc"`
	Points    int             `json:"points"`
	Act       []string        `json:"act"`
	Aff       []string        `json:"aff"`
	Off       []string        `json:"off"`
	Imm       []string        `json:"imm"`
	Res       []string        `json:"res"`
	Vuln      []string        `json:"vuln"`
	Form      []string        `json:"form"`
	Parts     []string        `json:"parts"`
	Size      string          `json:"size"`
	Stats     [5]int          `json:"stats"`
	MaxStats  [5]int          `json:"maxStats"`
	Skills    []string        `json:"skills,omitempty"`
	ClassMult []classMultJSON `json:"classMult,omitempty"`
	StartLoc  int             `json:"startLoc"`
}

func raceTo(r *gamedb.Race) raceJSON {
	j := raceJSON{
		Name: r.Name, Who: r.WhoName, PC: r.PC, Points: r.Points,
		Act:   gamedb.ActFlags.Names(r.Act),
		Aff:   gamedb.AffectFlags.Names(r.Aff),
		Off:   gamedb.OffFlags.Names(r.Off),
		Imm:   gamedb.IRVFlags.Names(r.Imm),
		Res:   gamedb.IRVFlags.Names(r.Res),
		Vuln:  gamedb.IRVFlags.Names(r.Vuln),
		Form:  gamedb.FormFlags.Names(r.Form),
		Parts: gamedb.PartFlags.Names(r.Parts),
		Size:  enumName(gamedb.Sizes, r.Size),
		Stats: r.Stats, MaxStats: r.MaxStats,
		Skills: r.Skills, StartLoc: r.StartLoc,
	}
	for _, cm := range r.ClassMult {
		j.ClassMult = append(j.ClassMult, classMultJSON{Class: cm.Class, Mult: cm.Mult})
	}
	return j
}

func raceFrom(j *raceJSON) (gamedb.Race, error) {
	r := gamedb.Race{
		Name: j.Name, WhoName: j.Who, PC: j.PC, Points: j.Points,
		Stats: j.Stats, MaxStats: j.MaxStats, Skills: j.Skills, StartLoc: j.StartLoc,
	}
	var err error
	set := func(dst *gamedb.Flags, table gamedb.FlagTable, field string, names []string) {
		if err == nil {
			*dst, err = flagsValue(table, field, names)
		}
	}
	set(&r.Act, gamedb.ActFlags, "act", j.Act)
	set(&r.Aff, gamedb.AffectFlags, "aff", j.Aff)
	set(&r.Off, gamedb.OffFlags, "off", j.Off)
	set(&r.Imm, gamedb.IRVFlags, "imm", j.Imm)
	set(&r.Res, gamedb.IRVFlags, "res", j.Res)
	set(&r.Vuln, gamedb.IRVFlags, "vuln", j.Vuln)
	set(&r.Form, gamedb.FormFlags, "form", j.Form)
	set(&r.Parts, gamedb.PartFlags, "parts", j.Parts)
	if err != nil {
		return r, err
	}
	if r.Size, err = enumValue(gamedb.Sizes, "size", j.Size); err != nil {
		return r, err
	}
	for _, cm := range j.ClassMult {
		r.ClassMult = append(r.ClassMult, gamedb.ClassMult{Class: cm.Class, Mult: cm.Mult})
	}
	return r, nil
}

type commandJSON struct {
	Name     string `json:"name"`
	Function string `json:"function"`
	Position string `json:"position"`
	Level    int    `json:"level"`
	Log      string `json:"log"`
	Show     bool   `json:"show"`
}

func commandTo(c *gamedb.Command) commandJSON {
	return commandJSON{
		Name: c.Name, Function: c.Function,
		Position: enumName(gamedb.Positions, c.Position),
		Level:    c.Level,
		Log:      enumName(gamedb.LogLevels, c.Log),
		Show:     c.Show,
	}
}

func commandFrom(j *commandJSON) (gamedb.Command, error) {
	c := gamedb.Command{Name: j.Name, Function: j.Function, Level: j.Level, Show: j.Show}
	var err error
	if c.Position, err = enumValue(gamedb.Positions, "position", j.Position); err != nil {
		return c, err
	}
	if c.Log, err = enumValue(gamedb.LogLevels, "log", j.Log); err != nil {
		return c, err
	}
	return c, nil
}

type socialJSON struct {
	Name         string `json:"name"`
	CharNoArg    string `json:"charNoArg"`
	OthersNoArg  string `json:"othersNoArg"`
	CharFound    string `json:"charFound"`
	OthersFound  string `json:"othersFound"`
	VictFound    string `json:"victFound"`
	CharAuto     string `json:"charAuto"`
	OthersAuto   string `json:"othersAuto"`
	CharNotFound string `json:"charNotFound"`
}

func socialTo(s *gamedb.Social) socialJSON { return socialJSON(*s) }

func socialFrom(j *socialJSON) (gamedb.Social, error) { return gamedb.Social(*j), nil }

type stepJSON struct {
	Prompt string `json:"prompt"`
	Match  string `json:"match"`
}

type tutorialJSON struct {
	Name     string     `json:"name"`
	Blurb    string     `json:"blurb"`
	Finish   string     `json:"finish"`
	MinLevel int        `json:"minLevel"`
	Steps    []stepJSON `json:"steps,omitempty"`
}

func tutorialTo(t *gamedb.Tutorial) tutorialJSON {
	j := tutorialJSON{Name: t.Name, Blurb: t.Blurb, Finish: t.Finish, MinLevel: t.MinLevel}
	for _, s := range t.Steps {
		j.Steps = append(j.Steps, stepJSON(s))
	}
	return j
}

func tutorialFrom(j *tutorialJSON) (gamedb.Tutorial, error) {
	t := gamedb.Tutorial{Name: j.Name, Blurb: j.Blurb, Finish: j.Finish, MinLevel: j.MinLevel}
	for _, s := range j.Steps {
		t.Steps = append(t.Steps, gamedb.TutorialStep(s))
	}
	return t, nil
}

type scriptJSON struct {
	Name   string `json:"name"`
	Source string `json:"source"`
}

func scriptTo(s *gamedb.Script) scriptJSON            { return scriptJSON(*s) }
func scriptFrom(j *scriptJSON) (gamedb.Script, error) { return gamedb.Script(*j), nil }

// Formats for each record catalog.
var (
	ClassFormat    = CatalogFormat(gamedb.CatClasses, classTo, classFrom)
	CommandFormat  = CatalogFormat(gamedb.CatCommands, commandTo, commandFrom)
	RaceFormat     = CatalogFormat(gamedb.CatRaces, raceTo, raceFrom)
	SocialFormat   = CatalogFormat(gamedb.CatSocials, socialTo, socialFrom)
	ScriptFormat   = CatalogFormat(gamedb.CatScripts, scriptTo, scriptFrom)
	TutorialFormat = CatalogFormat(gamedb.CatTutorials, tutorialTo, tutorialFrom)
)
