package gamedb

import "strings"

// EnumDef names one value of an enumerated field.
type EnumDef[T ~int] struct {
	Name  string
	Value T
}

// EnumTable maps an enumerated field's values to their persisted names.
type EnumTable[T ~int] []EnumDef[T]

// Name returns the persisted name of v, or "" if v is not in the table.
func (t EnumTable[T]) Name(v T) string {
	for _, d := range t {
		if d.Value == v {
			return d.Name
		}
	}
	return ""
}

// Value looks up name (case-insensitive).
func (t EnumTable[T]) Value(name string) (T, bool) {
	for _, d := range t {
		if strings.EqualFold(d.Name, name) {
			return d.Value, true
		}
	}
	var zero T
	return zero, false
}

// Position is the minimum position a command may be used from.
type Position int

const (
	PosDead Position = iota
	PosMortal
	PosIncap
	PosStunned
	PosSleeping
	PosResting
	PosSitting
	PosFighting
	PosStanding
)

// Positions is the name table for Position.
var Positions = EnumTable[Position]{
	{"dead", PosDead},
	{"mortal", PosMortal},
	{"incap", PosIncap},
	{"stunned", PosStunned},
	{"sleeping", PosSleeping},
	{"resting", PosResting},
	{"sitting", PosSitting},
	{"fighting", PosFighting},
	{"standing", PosStanding},
}

// LogLevel controls command logging.
type LogLevel int

const (
	LogNormal LogLevel = iota
	LogAlways
	LogNever
)

// LogLevels is the name table for LogLevel.
var LogLevels = EnumTable[LogLevel]{
	{"normal", LogNormal},
	{"always", LogAlways},
	{"never", LogNever},
}

// Size is a race's body size.
type Size int

const (
	SizeTiny Size = iota
	SizeSmall
	SizeMedium
	SizeLarge
	SizeHuge
	SizeGiant
)

// Sizes is the name table for Size.
var Sizes = EnumTable[Size]{
	{"tiny", SizeTiny},
	{"small", SizeSmall},
	{"medium", SizeMedium},
	{"large", SizeLarge},
	{"huge", SizeHuge},
	{"giant", SizeGiant},
}

// Stat indexes the five primary attributes.
type Stat int

const (
	StatStr Stat = iota
	StatInt
	StatWis
	StatDex
	StatCon
	StatCount int = 5
)

// Stats is the name table for Stat.
var Stats = EnumTable[Stat]{
	{"str", StatStr},
	{"int", StatInt},
	{"wis", StatWis},
	{"dex", StatDex},
	{"con", StatCon},
}
