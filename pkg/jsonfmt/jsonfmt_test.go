package jsonfmt

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/crystal-mush/gorom/pkg/flatfile"
	"github.com/crystal-mush/gorom/pkg/gamedb"
	"github.com/crystal-mush/gorom/pkg/loot"
	"github.com/crystal-mush/gorom/pkg/persist"
)

func memRoundTrip[T any](t *testing.T, f *persist.Format[*gamedb.Catalog[T]], src, dst *gamedb.Catalog[T]) []byte {
	t.Helper()
	w := &persist.MemWriter{}
	if res := f.Save(w, src.Name()+".json", src); !res.IsOK() {
		t.Fatalf("save %s: %v", src.Name(), res)
	}
	if res := f.Load(persist.NewMemReader(w.Bytes()), src.Name()+".json", dst); !res.IsOK() {
		t.Fatalf("load %s: %v\n%s", src.Name(), res, w.Bytes())
	}
	if !reflect.DeepEqual(src.Records(), dst.Records()) {
		t.Errorf("%s differs after round trip\n got %+v\nwant %+v", src.Name(), dst.Records(), src.Records())
	}
	return w.Bytes()
}

func TestCatalogRoundTrip(t *testing.T) {
	c := gamedb.Starter()
	memRoundTrip(t, ClassFormat, c.Classes, gamedb.NewClasses())
	memRoundTrip(t, CommandFormat, c.Commands, gamedb.NewCommands())
	data := memRoundTrip(t, RaceFormat, c.Races, gamedb.NewRaces())
	memRoundTrip(t, SocialFormat, c.Socials, gamedb.NewSocials())
	memRoundTrip(t, ScriptFormat, c.Scripts, gamedb.NewScripts())
	memRoundTrip(t, TutorialFormat, c.Tutorials, gamedb.NewTutorials())

	doc := string(data)
	for _, want := range []string{`"formatVersion": 1`, `"races": [`, `"maxStats"`, `"infrared"`, `"size": "small"`} {
		if !strings.Contains(doc, want) {
			t.Errorf("document lacks %s", want)
		}
	}
}

func saveText[C any](t *testing.T, f *persist.Format[C], path string, src C) {
	t.Helper()
	fh, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer fh.Close()
	if res := f.Save(persist.NewFileWriter(fh), path, src); !res.IsOK() {
		t.Fatalf("rom-olc save %s: %v", filepath.Base(path), res)
	}
}

func loadText[C any](t *testing.T, f *persist.Format[C], path string, dst C) {
	t.Helper()
	fh, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer fh.Close()
	if res := f.Load(persist.NewFileReader(fh), path, dst); !res.IsOK() {
		data, _ := os.ReadFile(path)
		t.Fatalf("rom-olc load %s: %v\n%s", filepath.Base(path), res, data)
	}
}

func saveJSON[C any](t *testing.T, f *persist.Format[C], src C) []byte {
	t.Helper()
	w := &persist.MemWriter{}
	if res := f.Save(w, "x.json", src); !res.IsOK() {
		t.Fatalf("json save: %v", res)
	}
	return w.Bytes()
}

func loadJSON[C any](t *testing.T, f *persist.Format[C], data []byte, dst C) {
	t.Helper()
	if res := f.Load(persist.NewMemReader(data), "x.json", dst); !res.IsOK() {
		t.Fatalf("json load: %v\n%s", res, data)
	}
}

// crossFormat carries src through rom-olc then JSON, and through JSON then
// rom-olc, and checks that both arrive unchanged.
func crossFormat[T any](t *testing.T, text, js *persist.Format[*gamedb.Catalog[T]], src *gamedb.Catalog[T], fresh func() *gamedb.Catalog[T]) {
	t.Helper()
	dir := t.TempDir()

	path := filepath.Join(dir, "text-first.olc")
	saveText(t, text, path, src)
	fromText := fresh()
	loadText(t, text, path, fromText)
	viaJSON := fresh()
	loadJSON(t, js, saveJSON(t, js, fromText), viaJSON)
	if !reflect.DeepEqual(viaJSON.Records(), src.Records()) {
		t.Errorf("rom-olc -> json changed %s\n got %+v\nwant %+v", src.Name(), viaJSON.Records(), src.Records())
	}

	fromJSON := fresh()
	loadJSON(t, js, saveJSON(t, js, src), fromJSON)
	path = filepath.Join(dir, "json-first.olc")
	saveText(t, text, path, fromJSON)
	viaText := fresh()
	loadText(t, text, path, viaText)
	if !reflect.DeepEqual(viaText.Records(), src.Records()) {
		t.Errorf("json -> rom-olc changed %s\n got %+v\nwant %+v", src.Name(), viaText.Records(), src.Records())
	}
}

// edgeCatalogs is the starter world plus records with empty lists, empty and
// multi-line strings, indented script bodies and negative numbers.
func edgeCatalogs(t *testing.T) *gamedb.Catalogs {
	t.Helper()
	c := gamedb.Starter()
	aff, err := gamedb.AffectFlags.Parse([]string{"infrared"})
	if err != nil {
		t.Fatal(err)
	}
	for _, err := range []error{
		c.Classes.Add(gamedb.Class{Name: "thief", WhoName: "Thi", PrimeStat: gamedb.StatDex, Thac0_32: -4}),
		c.Races.Add(gamedb.Race{Name: "sprite", Size: gamedb.SizeTiny, Aff: aff, Stats: [5]int{-1, 2, 0, 3, -2},
			Skills:    []string{"second attack", "hide"},
			ClassMult: []gamedb.ClassMult{{Class: "thief", Mult: 90}, {Class: "mage", Mult: 110}}}),
		c.Commands.Add(gamedb.Command{Name: "noop", Position: gamedb.PosDead, Log: gamedb.LogNever}),
		c.Socials.Add(gamedb.Social{Name: "wave", CharNoArg: "You wave.\nAnd wave again.", OthersFound: "$n waves at $N.  "}),
		c.Scripts.Add(gamedb.Script{Name: "indented", Source: "fun f() {\n    if (x) {\n        print \"hi\";\n    }\n\n}\n"}),
		c.Scripts.Add(gamedb.Script{Name: "empty"}),
		c.Scripts.Add(gamedb.Script{Name: "late", Source: "\n\nprint 1;"}),
		c.Tutorials.Add(gamedb.Tutorial{Name: "nothing", MinLevel: 5}),
		c.Tutorials.Add(gamedb.Tutorial{Name: "wordy", Blurb: "Two\nlines.", Steps: []gamedb.TutorialStep{
			{Prompt: "Anything at all."},
			{Prompt: "Type a number:\n  like 42", Match: "#N"},
		}}),
	} {
		if err != nil {
			t.Fatal(err)
		}
	}
	return c
}

// Every catalog must come back identical through either format, in either
// order.
func TestCrossFormat(t *testing.T) {
	c := edgeCatalogs(t)
	tests := []struct {
		name string
		run  func(t *testing.T)
	}{
		{gamedb.CatClasses, func(t *testing.T) {
			crossFormat(t, flatfile.ClassFormat, ClassFormat, c.Classes, gamedb.NewClasses)
		}},
		{gamedb.CatCommands, func(t *testing.T) {
			crossFormat(t, flatfile.CommandFormat, CommandFormat, c.Commands, gamedb.NewCommands)
		}},
		{gamedb.CatRaces, func(t *testing.T) {
			crossFormat(t, flatfile.RaceFormat, RaceFormat, c.Races, gamedb.NewRaces)
		}},
		{gamedb.CatSocials, func(t *testing.T) {
			crossFormat(t, flatfile.SocialFormat, SocialFormat, c.Socials, gamedb.NewSocials)
		}},
		{gamedb.CatScripts, func(t *testing.T) {
			crossFormat(t, flatfile.ScriptFormat, ScriptFormat, c.Scripts, gamedb.NewScripts)
		}},
		{gamedb.CatTutorials, func(t *testing.T) {
			crossFormat(t, flatfile.TutorialFormat, TutorialFormat, c.Tutorials, gamedb.NewTutorials)
		}},
		{gamedb.CatLoot, func(t *testing.T) { crossFormatLoot(t, c.Loot) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, tt.run)
	}
}

func crossFormatLoot(t *testing.T, db *loot.DB) {
	if err := loot.ParseSection(db, `group empty 0
group area_only 1
    item 8000 1 1 weight 5
    cp 0 0 weight 0
table bare
table area_mob : guard
    use_group area_only 3
    use_group empty
    mul_all_chances 0
    remove_group humanoid_common
    remove_item 3350
`, "newthalos"); err != nil {
		t.Fatal(err)
	}
	// Drops cached resolutions so records compare by declared content.
	src := db.WithoutOwner("nobody")
	sameLoot := func(how string, got *loot.DB) {
		t.Helper()
		if !reflect.DeepEqual(got.Groups.Slice(), src.Groups.Slice()) {
			t.Errorf("%s changed groups\n got %+v\nwant %+v", how, got.Groups.Slice(), src.Groups.Slice())
		}
		if !reflect.DeepEqual(got.Tables.Slice(), src.Tables.Slice()) {
			t.Errorf("%s changed tables\n got %+v\nwant %+v", how, got.Tables.Slice(), src.Tables.Slice())
		}
		if err := loot.ResolveAll(got); err != nil {
			t.Errorf("%s: resolve: %v", how, err)
		}
	}
	dir := t.TempDir()

	path := filepath.Join(dir, "text-first.olc")
	saveText(t, flatfile.LootFormat, path, src)
	fromText := loot.NewDB()
	loadText(t, flatfile.LootFormat, path, fromText)
	viaJSON := loot.NewDB()
	loadJSON(t, LootFormat, saveJSON(t, LootFormat, fromText), viaJSON)
	sameLoot("rom-olc -> json", viaJSON)

	fromJSON := loot.NewDB()
	loadJSON(t, LootFormat, saveJSON(t, LootFormat, src), fromJSON)
	path = filepath.Join(dir, "json-first.olc")
	saveText(t, flatfile.LootFormat, path, fromJSON)
	viaText := loot.NewDB()
	loadText(t, flatfile.LootFormat, path, viaText)
	sameLoot("json -> rom-olc", viaText)
}

// JSON loot that the rom-olc grammar could not hold is refused at load, so
// it can never be converted into a file that fails to reload.
func TestLootRejectsUnwritable(t *testing.T) {
	docs := map[string]string{
		"hyphenated name": `{"formatVersion": 1, "groups": [{"name": "goblin-common", "rolls": 1}], "tables": []}`,
		"digit name":      `{"formatVersion": 1, "groups": [{"name": "1st", "rolls": -2}], "tables": []}`,
		"negative rolls":  `{"formatVersion": 1, "groups": [{"name": "g", "rolls": -2}], "tables": []}`,
		"negative vnum":   `{"formatVersion": 1, "groups": [{"name": "g", "rolls": 1, "entries": [{"kind": "item", "vnum": -3, "min": 1, "max": 1, "weight": 1}]}], "tables": []}`,
		"negative factor": `{"formatVersion": 1, "groups": [], "tables": [{"name": "t", "ops": [{"op": "mul_cp", "factor": -50}]}]}`,
		"negative times":  `{"formatVersion": 1, "groups": [], "tables": [{"name": "t", "ops": [{"op": "use_group", "group": "g", "times": -1}]}]}`,
		"spaced parent":   `{"formatVersion": 1, "groups": [], "tables": [{"name": "t", "parent": "big boss"}]}`,
	}
	for name, doc := range docs {
		t.Run(name, func(t *testing.T) {
			db := loot.NewDB()
			res := LootFormat.Load(persist.NewMemReader([]byte(doc)), "loot.json", db)
			if res.Status != persist.StatusFormatError {
				t.Fatalf("result = %v, want a format error", res)
			}
		})
	}
}

// A script the rom-olc reader would alter is refused on the rom-olc save
// rather than silently changed.
func TestLossyStringRefusedByText(t *testing.T) {
	doc := `{"formatVersion": 1, "scripts": [{"name": "s", "source": "    print \"hi\";\r\n"}]}`
	scripts := gamedb.NewScripts()
	loadJSON(t, ScriptFormat, []byte(doc), scripts)

	path := filepath.Join(t.TempDir(), "scripts.olc")
	fh, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer fh.Close()
	res := flatfile.ScriptFormat.Save(persist.NewFileWriter(fh), path, scripts)
	if res.Status != persist.StatusFormatError {
		t.Errorf("result = %v, want a format error", res)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name   string
		doc    string
		status persist.Status
	}{
		{"future version", `{"formatVersion": 2, "commands": []}`, persist.StatusUnsupported},
		{"no version", `{"commands": []}`, persist.StatusFormatError},
		{"missing array", `{"formatVersion": 1}`, persist.StatusFormatError},
		{"not an array", `{"formatVersion": 1, "commands": {}}`, persist.StatusFormatError},
		{"malformed", `{"formatVersion": 1, "commands": [`, persist.StatusFormatError},
		{"bad enum", `{"formatVersion": 1, "commands": [{"name": "x", "position": "flying", "log": "normal"}]}`, persist.StatusFormatError},
		{"duplicate", `{"formatVersion": 1, "commands": [{"name": "x", "position": "dead", "log": "normal"}, {"name": "X", "position": "dead", "log": "normal"}]}`, persist.StatusFormatError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := CommandFormat.Load(persist.NewMemReader([]byte(tt.doc)), "commands.json", gamedb.NewCommands())
			if res.Status != tt.status {
				t.Errorf("status = %v (%s), want %v", res.Status, res.Message, tt.status)
			}
		})
	}
}

func TestBadFlagName(t *testing.T) {
	doc := `{"formatVersion": 1, "races": [{"name": "x", "act": ["npc", "flies"], "size": "tiny"}]}`
	res := RaceFormat.Load(persist.NewMemReader([]byte(doc)), "races.json", gamedb.NewRaces())
	if res.Status != persist.StatusFormatError || !strings.Contains(res.Message, "flies") {
		t.Errorf("result = %v", res)
	}
}

func TestLootRoundTrip(t *testing.T) {
	db := gamedb.Starter().Loot
	if err := loot.ParseSection(db, "group area_only 1\n    item 8000 1 1 weight 5\ntable area_mob : guard\n    use_group area_only 3\n    mul_all_chances 50\n    remove_group humanoid_common\n    remove_item 3350\n", "newthalos"); err != nil {
		t.Fatal(err)
	}
	if err := loot.ResolveAll(db); err != nil {
		t.Fatal(err)
	}

	w := &persist.MemWriter{}
	if res := LootFormat.Save(w, "loot.json", db); !res.IsOK() {
		t.Fatal(res)
	}
	if strings.Contains(string(w.Bytes()), "draws") {
		t.Error("resolution leaked into the saved document")
	}

	got := loot.NewDB()
	if res := LootFormat.Load(persist.NewMemReader(w.Bytes()), "loot.json", got); !res.IsOK() {
		t.Fatalf("load: %v", res)
	}
	if !reflect.DeepEqual(got.Groups.Slice(), db.Groups.Slice()) {
		t.Errorf("groups differ")
	}
	if !reflect.DeepEqual(got.WithoutOwner("x").Tables.Slice(), db.WithoutOwner("x").Tables.Slice()) {
		t.Errorf("tables differ")
	}
	if err := loot.ResolveAll(got); err != nil {
		t.Fatalf("resolve after load: %v", err)
	}
	want, _ := db.Resolve("area_mob")
	have, _ := got.Resolve("area_mob")
	if !reflect.DeepEqual(want, have) {
		t.Errorf("resolution differs after reload\n got %+v\nwant %+v", have, want)
	}
}

func TestLootEmptyArrays(t *testing.T) {
	w := &persist.MemWriter{}
	if res := LootFormat.Save(w, "loot.json", loot.NewDB()); !res.IsOK() {
		t.Fatal(res)
	}
	if res := LootFormat.Load(persist.NewMemReader(w.Bytes()), "loot.json", loot.NewDB()); !res.IsOK() {
		t.Errorf("empty catalog should reload: %v\n%s", res, w.Bytes())
	}
}

func TestLootBadOp(t *testing.T) {
	doc := `{"formatVersion": 1, "groups": [], "tables": [{"name": "t", "ops": [{"op": "explode"}]}]}`
	res := LootFormat.Load(persist.NewMemReader([]byte(doc)), "loot.json", loot.NewDB())
	if res.Status != persist.StatusFormatError {
		t.Errorf("result = %v", res)
	}
}
