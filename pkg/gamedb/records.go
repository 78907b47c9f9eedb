package gamedb

// Class is a player class definition.
type Class struct {
	Name         string
	WhoName      string // three-letter tag shown on WHO
	BaseGroup    string
	DefaultGroup string
	Weapon       int   // vnum of the starting weapon
	Guilds       []int // guild room vnums
	PrimeStat    Stat
	SkillCap     int
	Thac0_00     int
	Thac0_32     int
	HPMin        int
	HPMax        int
	ManaUser     bool
	StartLoc     int
}

// ClassMult is a race's experience multiplier for one class.
type ClassMult struct {
	Class string
	Mult  int
}

// Race is a race definition shared by players and NPCs.
type Race struct {
	Name      string
	WhoName   string
	PC        bool
	Points    int
	Act       Flags
	Aff       Flags
	Off       Flags
	Imm       Flags
	Res       Flags
	Vuln      Flags
	Form      Flags
	Parts     Flags
	Size      Size
	Stats     [5]int
	MaxStats  [5]int
	Skills    []string
	ClassMult []ClassMult
	StartLoc  int
}

// Command maps an input verb to a built-in function.
type Command struct {
	Name     string
	Function string // name of the handler, resolved by the command interpreter
	Position Position
	Level    int
	Log      LogLevel
	Show     bool
}

// Social is a canned emote with per-audience messages. $n is the actor,
// $N the victim.
type Social struct {
	Name         string
	CharNoArg    string
	OthersNoArg  string
	CharFound    string
	OthersFound  string
	VictFound    string
	CharAuto     string
	OthersAuto   string
	CharNotFound string
}

// TutorialStep is one prompt of a tutorial. Match is a token pattern the
// player's input must satisfy to advance.
type TutorialStep struct {
	Prompt string
	Match  string
}

// Tutorial is an ordered list of steps shown to new players.
type Tutorial struct {
	Name     string
	Blurb    string
	Finish   string
	MinLevel int
	Steps    []TutorialStep
}

// Script is a named script handed to the scripting engine by triggers.
type Script struct {
	Name   string
	Source string
}
