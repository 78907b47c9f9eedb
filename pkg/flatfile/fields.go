package flatfile

import (
	"strings"

	"github.com/crystal-mush/gorom/pkg/gamedb"
)

// FieldKind tags how a field's value is spelled.
type FieldKind int

const (
	KindString FieldKind = iota // tilde-terminated
	KindInt
	KindBool // 0 or 1
	KindFlags
	KindEnum
	KindCustom
)

// Field describes one "key value" line of a record of type T. Fields are
// written in table order; on read any order is accepted.
type Field[T any] struct {
	Key   string
	Kind  FieldKind
	read  func(p *Parser, rec *T) error
	write func(wr *writer, rec *T)
}

// StringField binds key to a string.
func StringField[T any](key string, ptr func(*T) *string) Field[T] {
	return Field[T]{
		Key:  key,
		Kind: KindString,
		read: func(p *Parser, rec *T) error {
			s, err := p.ReadString()
			*ptr(rec) = s
			return err
		},
		write: func(wr *writer, rec *T) { wr.writeString(key, *ptr(rec)) },
	}
}

// IntField binds key to an int.
func IntField[T any](key string, ptr func(*T) *int) Field[T] {
	return Field[T]{
		Key:  key,
		Kind: KindInt,
		read: func(p *Parser, rec *T) error {
			n, err := p.ReadNumber()
			*ptr(rec) = n
			return err
		},
		write: func(wr *writer, rec *T) { wr.writef("%s %d\n", key, *ptr(rec)) },
	}
}

// BoolField binds key to a bool stored as 0/1.
func BoolField[T any](key string, ptr func(*T) *bool) Field[T] {
	return Field[T]{
		Key:  key,
		Kind: KindBool,
		read: func(p *Parser, rec *T) error {
			n, err := p.ReadNumber()
			*ptr(rec) = n != 0
			return err
		},
		write: func(wr *writer, rec *T) {
			v := 0
			if *ptr(rec) {
				v = 1
			}
			wr.writef("%s %d\n", key, v)
		},
	}
}

// FlagsField binds key to a bit set spelled as names from table, ended by a
// tilde: "act npc sentinel~".
func FlagsField[T any](key string, table gamedb.FlagTable, ptr func(*T) *gamedb.Flags) Field[T] {
	return Field[T]{
		Key:  key,
		Kind: KindFlags,
		read: func(p *Parser, rec *T) error {
			s, err := p.ReadString()
			if err != nil {
				return err
			}
			f, err := table.Parse(strings.Fields(s))
			if err != nil {
				return p.errf("%s: %v", key, err)
			}
			*ptr(rec) = f
			return nil
		},
		write: func(wr *writer, rec *T) {
			wr.writeString(key, strings.Join(table.Names(*ptr(rec)), " "))
		},
	}
}

// EnumField binds key to an enumerated value spelled by name.
func EnumField[T any, E ~int](key string, table gamedb.EnumTable[E], ptr func(*T) *E) Field[T] {
	return Field[T]{
		Key:  key,
		Kind: KindEnum,
		read: func(p *Parser, rec *T) error {
			w, err := p.ReadWord()
			if err != nil {
				return err
			}
			v, ok := table.Value(w)
			if !ok {
				return p.errf("%s: unknown value %q", key, w)
			}
			*ptr(rec) = v
			return nil
		},
		write: func(wr *writer, rec *T) {
			name := table.Name(*ptr(rec))
			if name == "" {
				wr.err = errUnknownEnum(key, int(*ptr(rec)))
				return
			}
			wr.writef("%s %s\n", key, name)
		},
	}
}

// CustomField binds key to hand-written read and write functions. write must
// emit complete lines starting with key; it may emit several (repeated keys).
func CustomField[T any](key string, read func(p *Parser, rec *T) error, write func(wr *writer, rec *T)) Field[T] {
	return Field[T]{Key: key, Kind: KindCustom, read: read, write: write}
}

// ReadFields reads "key value" lines into rec until #END.
func ReadFields[T any](p *Parser, fields []Field[T], rec *T) error {
	for {
		key, err := p.ReadWord()
		if err != nil {
			return err
		}
		if strings.EqualFold(key, "#END") {
			return nil
		}
		f := findField(fields, key)
		if f == nil {
			return p.errf("unknown field %q", key)
		}
		if err := f.read(p, rec); err != nil {
			return err
		}
	}
}

// WriteFields writes every field of rec followed by #END.
func WriteFields[T any](wr *writer, fields []Field[T], rec *T) {
	for i := range fields {
		fields[i].write(wr, rec)
	}
	wr.writef("#END\n")
}

func findField[T any](fields []Field[T], key string) *Field[T] {
	for i := range fields {
		if strings.EqualFold(fields[i].Key, key) {
			return &fields[i]
		}
	}
	return nil
}
