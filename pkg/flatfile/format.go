package flatfile

import (
	"bufio"
	"errors"
	"io"

	"github.com/crystal-mush/gorom/pkg/gamedb"
	"github.com/crystal-mush/gorom/pkg/growable"
	"github.com/crystal-mush/gorom/pkg/loot"
	"github.com/crystal-mush/gorom/pkg/persist"
)

// CatalogFormat builds the rom-olc format for a record catalog. It only
// accepts file-backed streams.
func CatalogFormat[T any](sentinel string, fields []Field[T]) *persist.Format[*gamedb.Catalog[T]] {
	return &persist.Format[*gamedb.Catalog[T]]{
		Name: persist.FormatROM,
		Load: func(r persist.Reader, filename string, dst *gamedb.Catalog[T]) persist.Result {
			fr, err := persist.RequireFile(r, persist.FormatROM)
			if err != nil {
				return persist.ResultOf(err)
			}
			return persist.ResultOf(ReadCatalog(fr.Buffered(), sentinel, fields, dst))
		},
		Save: func(w persist.Writer, filename string, src *gamedb.Catalog[T]) persist.Result {
			fw, err := persist.RequireFileWriter(w, persist.FormatROM)
			if err != nil {
				return persist.ResultOf(err)
			}
			if err := WriteCatalog(fw, sentinel, fields, src); err != nil {
				return persist.ResultOf(err)
			}
			return persist.ResultOf(fw.Flush())
		},
	}
}

// ReadCatalog reads a count line and that many sentinel blocks into dst.
func ReadCatalog[T any](br *bufio.Reader, sentinel string, fields []Field[T], dst *gamedb.Catalog[T]) error {
	p := NewParser(br)
	count, err := p.ReadNumber()
	if err != nil {
		return err
	}
	if count < 0 {
		return p.errf("negative record count %d", count)
	}
	for i := 0; i < count; i++ {
		if err := p.Expect(sentinel); err != nil {
			return err
		}
		start := p.Line()
		var rec T
		if err := ReadFields(p, fields, &rec); err != nil {
			return err
		}
		if err := dst.Add(rec); err != nil {
			if errors.Is(err, growable.ErrCapacity) {
				return err
			}
			return persist.Errorf(start, "%v", err)
		}
	}
	eof, err := p.AtEOF()
	if err != nil {
		return err
	}
	if !eof {
		w, _ := p.ReadWord()
		return p.errf("unexpected %q after %d records", w, count)
	}
	return nil
}

// WriteCatalog writes src as a count line and sentinel blocks.
func WriteCatalog[T any](w io.Writer, sentinel string, fields []Field[T], src *gamedb.Catalog[T]) error {
	wr := &writer{w: w}
	wr.writef("%d\n", src.Len())
	for _, rec := range src.All() {
		wr.writef("%s\n", sentinel)
		WriteFields(wr, fields, &rec)
	}
	return wr.err
}

// LootFormat is the rom-olc loot catalog: one or more "#LOOT [owner]"
// sections, each ended by #ENDLOOT. Sections load and save without the
// #LOOT line, which the enclosing area file owns.
var LootFormat = &persist.Format[*loot.DB]{
	Name: persist.FormatROM,
	Load: func(r persist.Reader, filename string, dst *loot.DB) persist.Result {
		fr, err := persist.RequireFile(r, persist.FormatROM)
		if err != nil {
			return persist.ResultOf(err)
		}
		return persist.ResultOf(ReadLoot(fr.Buffered(), dst))
	},
	Save: func(w persist.Writer, filename string, src *loot.DB) persist.Result {
		fw, err := persist.RequireFileWriter(w, persist.FormatROM)
		if err != nil {
			return persist.ResultOf(err)
		}
		if err := WriteLoot(fw, src); err != nil {
			return persist.ResultOf(err)
		}
		return persist.ResultOf(fw.Flush())
	},
	LoadSection: func(r persist.Reader, owner string, dst *loot.DB) persist.Result {
		fr, err := persist.RequireFile(r, persist.FormatROM)
		if err != nil {
			return persist.ResultOf(err)
		}
		p := NewParser(fr.Buffered())
		return persist.ResultOf(loot.ReadSection(dst, p.Lines(), owner))
	},
	SaveSection: func(w persist.Writer, owner string, src *loot.DB) persist.Result {
		fw, err := persist.RequireFileWriter(w, persist.FormatROM)
		if err != nil {
			return persist.ResultOf(err)
		}
		if err := loot.WriteSection(fw, src, owner); err != nil {
			return persist.ResultOf(err)
		}
		return persist.ResultOf(fw.Flush())
	},
}

// ReadLoot reads every #LOOT section in br into db.
func ReadLoot(br *bufio.Reader, db *loot.DB) error {
	p := NewParser(br)
	for {
		eof, err := p.AtEOF()
		if err != nil {
			return err
		}
		if eof {
			return nil
		}
		if err := p.Expect(SentinelLoot); err != nil {
			return err
		}
		owner, err := p.ReadToEOL()
		if err != nil {
			return err
		}
		if err := loot.ReadSection(db, p.Lines(), owner); err != nil {
			return err
		}
	}
}

// WriteLoot writes one section per owner, unowned records first.
func WriteLoot(w io.Writer, db *loot.DB) error {
	if err := db.Validate(); err != nil {
		return persist.Errorf(persist.NoLine, "cannot write loot: %v", err)
	}
	wr := &writer{w: w}
	for _, owner := range db.Owners() {
		if owner == "" {
			wr.writef("%s\n", SentinelLoot)
		} else {
			wr.writef("%s %s\n", SentinelLoot, owner)
		}
		if wr.err != nil {
			return wr.err
		}
		if err := loot.WriteSection(w, db, owner); err != nil {
			return err
		}
	}
	return wr.err
}
