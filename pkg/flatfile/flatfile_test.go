package flatfile

import (
	"bufio"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/crystal-mush/gorom/pkg/gamedb"
	"github.com/crystal-mush/gorom/pkg/loot"
	"github.com/crystal-mush/gorom/pkg/persist"
)

func saveFile[C any](t *testing.T, f *persist.Format[C], path string, src C) persist.Result {
	t.Helper()
	fh, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer fh.Close()
	return f.Save(persist.NewFileWriter(fh), path, src)
}

func loadFile[C any](t *testing.T, f *persist.Format[C], path string, dst C) persist.Result {
	t.Helper()
	fh, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer fh.Close()
	return f.Load(persist.NewFileReader(fh), path, dst)
}

func roundTrip[T any](t *testing.T, f *persist.Format[*gamedb.Catalog[T]], src, dst *gamedb.Catalog[T]) {
	t.Helper()
	path := filepath.Join(t.TempDir(), src.Name()+".olc")
	if res := saveFile(t, f, path, src); !res.IsOK() {
		t.Fatalf("save %s: %v", src.Name(), res)
	}
	if res := loadFile(t, f, path, dst); !res.IsOK() {
		data, _ := os.ReadFile(path)
		t.Fatalf("load %s: %v\n%s", src.Name(), res, data)
	}
	if !reflect.DeepEqual(src.Records(), dst.Records()) {
		t.Errorf("%s differs after round trip\n got %+v\nwant %+v", src.Name(), dst.Records(), src.Records())
	}
}

func TestCatalogRoundTrip(t *testing.T) {
	c := gamedb.Starter()
	roundTrip(t, ClassFormat, c.Classes, gamedb.NewClasses())
	roundTrip(t, CommandFormat, c.Commands, gamedb.NewCommands())
	roundTrip(t, RaceFormat, c.Races, gamedb.NewRaces())
	roundTrip(t, SocialFormat, c.Socials, gamedb.NewSocials())
	roundTrip(t, ScriptFormat, c.Scripts, gamedb.NewScripts())
	roundTrip(t, TutorialFormat, c.Tutorials, gamedb.NewTutorials())
}

func TestReadRace(t *testing.T) {
	text := `1
#RACE
name dwarf~
who Dwarf~
pc 1
points 8
vuln drowning~
res poison disease~
form edible sentient biped mammal~
size small
stats 14 12 14 10 15
skill berserk~
classmult warrior 100
classmult mage 150
#END
`
	races := gamedb.NewRaces()
	if err := ReadCatalog(bufio.NewReader(strings.NewReader(text)), SentinelRace, RaceFields, races); err != nil {
		t.Fatal(err)
	}
	r, ok := races.Find("dwarf")
	if !ok {
		t.Fatal("dwarf not loaded")
	}
	if !r.PC || r.Points != 8 || r.Size != gamedb.SizeSmall {
		t.Errorf("race = %+v", r)
	}
	if gamedb.IRVFlags.String(r.Res) != "poison disease" {
		t.Errorf("res = %q", gamedb.IRVFlags.String(r.Res))
	}
	if r.Stats != [5]int{14, 12, 14, 10, 15} {
		t.Errorf("stats = %v", r.Stats)
	}
	if len(r.ClassMult) != 2 || r.ClassMult[1] != (gamedb.ClassMult{Class: "mage", Mult: 150}) {
		t.Errorf("classmult = %+v", r.ClassMult)
	}
}

func TestReadErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
		line int
		want string
	}{
		{"wrong sentinel", "1\n#CLASS\nname x~\n#END\n", 2, "#COMMAND"},
		{"unknown key", "1\n#COMMAND\nname x~\ncolour red~\n#END\n", 4, "colour"},
		{"bad enum", "1\n#COMMAND\nname x~\nposition flying\n#END\n", 3, "flying"},
		{"bad number", "1\n#COMMAND\nlevel ten\n#END\n", 3, "ten"},
		{"short count", "2\n#COMMAND\nname x~\n#END\n", 5, "end of file"},
		{"trailing data", "0\n#COMMAND\n", 2, "after 0 records"},
		{"unterminated string", "1\n#COMMAND\nname x\n#END\n", 3, "unterminated"},
		{"duplicate", "2\n#COMMAND\nname x~\n#END\n#COMMAND\nname X~\n#END\n", 5, "duplicate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ReadCatalog(bufio.NewReader(strings.NewReader(tt.text)), SentinelCommand, CommandFields, gamedb.NewCommands())
			var pe *persist.Error
			if !errors.As(err, &pe) || pe.Status != persist.StatusFormatError {
				t.Fatalf("err = %v, want format error", err)
			}
			if pe.Line != tt.line {
				t.Errorf("line = %d, want %d (%v)", pe.Line, tt.line, err)
			}
			if !strings.Contains(pe.Msg, tt.want) {
				t.Errorf("message %q does not mention %q", pe.Msg, tt.want)
			}
		})
	}
}

func TestBadFlagName(t *testing.T) {
	text := "1\n#RACE\nname x~\nact npc flies~\n#END\n"
	err := ReadCatalog(bufio.NewReader(strings.NewReader(text)), SentinelRace, RaceFields, gamedb.NewRaces())
	res := persist.ResultOf(err)
	if res.Status != persist.StatusFormatError || !strings.Contains(res.Message, "flies") {
		t.Errorf("result = %v", res)
	}
}

func TestUnreadableStringRejectedOnSave(t *testing.T) {
	for _, src := range []string{"a ~ b", "    print \"hi\";\n", "\tindented", "line\r\n"} {
		scripts := gamedb.NewScripts()
		scripts.Add(gamedb.Script{Name: "bad", Source: src})
		path := filepath.Join(t.TempDir(), "scripts.olc")
		if res := saveFile(t, ScriptFormat, path, scripts); res.Status != persist.StatusFormatError {
			t.Errorf("save %q = %v, want a format error", src, res)
		}
	}

	races := gamedb.NewRaces()
	races.Add(gamedb.Race{Name: "elf", ClassMult: []gamedb.ClassMult{{Class: "dark knight", Mult: 120}}})
	path := filepath.Join(t.TempDir(), "races.olc")
	if res := saveFile(t, RaceFormat, path, races); res.Status != persist.StatusFormatError {
		t.Errorf("classmult with a blank = %v, want a format error", res)
	}
}

// Blanks inside a value, blank lines and a leading newline all survive.
func TestStringWhitespaceRoundTrip(t *testing.T) {
	src := gamedb.NewScripts()
	for i, source := range []string{
		"fun f() {\n    print \"hi\";\n\n}\n",
		"\nstarts on the next line",
		"trailing blanks   ",
		"",
	} {
		src.Add(gamedb.Script{Name: string(rune('a' + i)), Source: source})
	}
	roundTrip(t, ScriptFormat, src, gamedb.NewScripts())
}

func TestMemoryStreamUnsupported(t *testing.T) {
	res := ClassFormat.Load(persist.NewMemReader([]byte("0\n")), "classes.olc", gamedb.NewClasses())
	if res.Status != persist.StatusUnsupported {
		t.Errorf("load from memory = %v", res)
	}
	res = LootFormat.Save(&persist.MemWriter{}, "loot.olc", loot.NewDB())
	if res.Status != persist.StatusUnsupported {
		t.Errorf("save to memory = %v", res)
	}
}

func TestLootFileRoundTrip(t *testing.T) {
	db := gamedb.Starter().Loot
	if err := loot.ParseSection(db, "group area_only 1\n    item 8000 1 1 weight 5\ntable area_mob : humanoid\n    use_group area_only\n", "newthalos"); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "loot.olc")
	if res := saveFile(t, LootFormat, path, db); !res.IsOK() {
		t.Fatal(res)
	}
	data, _ := os.ReadFile(path)
	if !strings.HasPrefix(string(data), "#LOOT\n") || !strings.Contains(string(data), "#LOOT newthalos\n") {
		t.Errorf("unexpected layout:\n%s", data)
	}

	got := loot.NewDB()
	if res := loadFile(t, LootFormat, path, got); !res.IsOK() {
		t.Fatalf("load: %v\n%s", res, data)
	}
	if !reflect.DeepEqual(got.Groups.Slice(), db.Groups.Slice()) {
		t.Error("groups differ")
	}
	if tb, _ := got.Table("area_mob"); tb == nil || tb.Owner != "newthalos" {
		t.Errorf("area_mob = %+v", tb)
	}
	if err := loot.ResolveAll(got); err != nil {
		t.Errorf("resolve after load: %v", err)
	}
}

func TestLootSection(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "area.are")
	area := "#AREA midgaard~\n#LOOT\ngroup g 1\n    cp 1 2 weight 3\n#ENDLOOT\n#ROOMS\n"
	os.WriteFile(path, []byte(area), 0o644)

	fh, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer fh.Close()
	fr := persist.NewFileReader(fh)
	br := fr.Buffered()
	br.ReadString('\n') // #AREA
	br.ReadString('\n') // #LOOT

	db := loot.NewDB()
	if res := LootFormat.LoadSection(fr, "midgaard", db); !res.IsOK() {
		t.Fatal(res)
	}
	if g, ok := db.Group("g"); !ok || g.Owner != "midgaard" {
		t.Errorf("group = %+v", g)
	}
	if rest, _ := br.ReadString('\n'); rest != "#ROOMS\n" {
		t.Errorf("section load overran: next line %q", rest)
	}

	out := filepath.Join(dir, "out.are")
	oh, _ := os.Create(out)
	res := LootFormat.SaveSection(persist.NewFileWriter(oh), "midgaard", db)
	oh.Close()
	if !res.IsOK() {
		t.Fatal(res)
	}
	data, _ := os.ReadFile(out)
	if string(data) != "group g 1\n    cp 1 2 weight 3\n\n#ENDLOOT\n" {
		t.Errorf("section = %q", data)
	}
}
