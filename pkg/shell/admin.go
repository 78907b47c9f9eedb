package shell

import (
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/buildkite/shellwords"
	"github.com/rodaine/table"

	"github.com/crystal-mush/gorom/pkg/archive"
	"github.com/crystal-mush/gorom/pkg/catalog"
	"github.com/crystal-mush/gorom/pkg/crypt"
	"github.com/crystal-mush/gorom/pkg/loot"
	"github.com/crystal-mush/gorom/pkg/persist"
)

// argv splits administrative arguments the way a shell would, so file
// names may be quoted.
func argv(s *Session, args string) ([]string, bool) {
	parts, err := shellwords.SplitPosix(args)
	if err != nil {
		s.send("Unbalanced quotes.")
		return nil, false
	}
	return parts, true
}

func kindNames() string {
	var names []string
	for _, k := range catalog.Kinds() {
		names = append(names, k.String())
	}
	return strings.Join(names, " ")
}

func kindArg(s *Session, name string) (catalog.Kind, bool) {
	k, ok := catalog.ParseKind(name)
	if !ok {
		s.send(fmt.Sprintf("No such catalog %q. Catalogs: %s", name, kindNames()))
	}
	return k, ok
}

// report prints a persistence result verbatim.
func report(s *Session, res persist.Result) { s.send(res.String()) }

func doLogin(sh *Shell, s *Session, args string) {
	if s.IsAdmin() {
		s.send("You already have administrator access.")
		return
	}
	hash, ok := sh.Config.Admins[strings.ToLower(s.Name)]
	if !ok || !crypt.Verify(args, hash) {
		log.Printf("WARNING: shell: failed admin login for %s@%s", s.Name, s.Addr)
		s.send("Wrong password.")
		return
	}
	s.Level = LevelAdmin
	log.Printf("shell: %s@%s granted administrator access", s.Name, s.Addr)
	s.send("Administrator access granted.")
}

func doCatalogs(sh *Shell, s *Session, _ string) {
	counts := sh.cats().Counts()
	t := table.New("Catalog", "Records", "File", "Formats")
	for _, k := range catalog.Kinds() {
		t.AddRow(k, counts[k.String()], sh.Catalog.File(k), strings.Join(sh.Catalog.Formats(k), ","))
	}
	sendTable(s, t)
}

func doSave(sh *Shell, s *Session, args string) {
	parts, ok := argv(s, args)
	if !ok {
		return
	}
	if len(parts) == 0 || len(parts) > 2 {
		s.send("Syntax: save all | save <catalog> [file]")
		return
	}
	if parts[0] == "all" {
		k, res := sh.Catalog.SaveAll()
		if !res.IsOK() {
			s.send(k.String() + ": " + res.String())
			return
		}
		report(s, res)
		if sh.Config.SnapshotOnSave && sh.Store != nil {
			s.send("snapshot: " + sh.Catalog.Snapshot(sh.Store).String())
		}
		return
	}
	k, ok := kindArg(s, parts[0])
	if !ok {
		return
	}
	file := ""
	if len(parts) == 2 {
		file = parts[1]
	}
	report(s, sh.Catalog.Save(k, file))
}

func doLoad(sh *Shell, s *Session, args string) {
	parts, ok := argv(s, args)
	if !ok {
		return
	}
	switch {
	case len(parts) == 0:
		s.send("Syntax: load all | load <catalog> [file] | load section <owner> <file>")
		return
	case parts[0] == "all":
		k, res := sh.Catalog.LoadAll()
		if !res.IsOK() {
			s.send(k.String() + ": " + res.String())
			return
		}
		report(s, res)
		return
	case parts[0] == "section":
		if len(parts) != 3 {
			s.send("Syntax: load section <owner> <file>")
			return
		}
		report(s, sh.Catalog.LoadLootSectionFile(parts[2], parts[1]))
		return
	}
	k, ok := kindArg(s, parts[0])
	if !ok {
		return
	}
	file := ""
	if len(parts) > 1 {
		file = parts[1]
	}
	report(s, sh.Catalog.Load(k, file))
}

func doConvert(sh *Shell, s *Session, args string) {
	parts, ok := argv(s, args)
	if !ok {
		return
	}
	if len(parts) < 2 || len(parts) > 3 {
		s.send("Syntax: convert <catalog> [from] <to>")
		return
	}
	k, ok := kindArg(s, parts[0])
	if !ok {
		return
	}
	from, to := sh.Catalog.File(k), parts[1]
	if len(parts) == 3 {
		from, to = parts[1], parts[2]
	}
	report(s, sh.Catalog.Convert(k, from, to))
}

func doSnapshot(sh *Shell, s *Session, _ string) {
	if sh.Store == nil {
		s.send("No snapshot store is configured.")
		return
	}
	report(s, sh.Catalog.Snapshot(sh.Store))
}

func doRestore(sh *Shell, s *Session, _ string) {
	if sh.Store == nil {
		s.send("No snapshot store is configured.")
		return
	}
	if info, err := sh.Store.SnapshotInfo(); err == nil && info != nil {
		s.send(fmt.Sprintf("Restoring snapshot taken %s.", info.At.Format("2006-01-02 15:04:05 MST")))
	}
	report(s, sh.Catalog.Restore(sh.Store))
}

func entryRow(t table.Table, source string, e loot.Entry) {
	what := "cp"
	if e.Kind == loot.EntryItem {
		what = "#" + strconv.Itoa(e.Vnum)
	}
	t.AddRow(source, what, fmt.Sprintf("%d-%d", e.Min, e.Max), e.Weight)
}

func doLoot(sh *Shell, s *Session, args string) {
	db := sh.cats().Loot
	if args == "" {
		t := table.New("Table", "Parent", "Owner", "Ops")
		for _, lt := range db.Tables.All() {
			t.AddRow(lt.Name, lt.Parent, lt.Owner, len(lt.Ops))
		}
		sendTable(s, t)
		var groups []string
		for _, g := range db.Groups.All() {
			groups = append(groups, g.Name)
		}
		s.send("Groups: " + strings.Join(groups, " "))
		return
	}

	r, err := db.Resolve(args)
	if err != nil {
		report(s, persist.ResultOf(err))
		return
	}
	s.send("Loot table " + r.Name + ":")
	t := table.New("From", "Drop", "Qty", "Weight")
	for _, d := range r.Draws {
		src := fmt.Sprintf("%s x%d", d.Group, d.Rolls)
		for _, e := range d.Entries {
			entryRow(t, src, e)
		}
	}
	for _, e := range r.Items {
		entryRow(t, "standalone", e)
	}
	sendTable(s, t)
}

func doRoll(sh *Shell, s *Session, args string) {
	parts, ok := argv(s, args)
	if !ok {
		return
	}
	if len(parts) == 0 || len(parts) > 2 {
		s.send("Syntax: roll <table> [times]")
		return
	}
	times := 1
	if len(parts) == 2 {
		n, err := strconv.Atoi(parts[1])
		if err != nil || n < 1 || n > 20 {
			s.send("Roll between 1 and 20 times.")
			return
		}
		times = n
	}
	r, err := sh.cats().Loot.Resolve(parts[0])
	if err != nil {
		report(s, persist.ResultOf(err))
		return
	}
	for i := 1; i <= times; i++ {
		d := loot.Roll(r, sh.Rand)
		var out []string
		for _, it := range d.Items {
			out = append(out, fmt.Sprintf("%dx #%d", it.Qty, it.Vnum))
		}
		if d.CP > 0 {
			out = append(out, fmt.Sprintf("%d cp", d.CP))
		}
		if len(out) == 0 {
			out = append(out, "nothing")
		}
		s.send(fmt.Sprintf("Roll %d: %s", i, strings.Join(out, ", ")))
	}
}

func doArchive(sh *Shell, s *Session, args string) {
	dir := sh.Config.ArchiveDir
	if dir == "" {
		s.send("No archive directory is configured.")
		return
	}
	if args == "list" {
		infos, err := archive.List(dir)
		if err != nil {
			s.send("Error: " + err.Error())
			return
		}
		if len(infos) == 0 {
			s.send("No archives in " + dir + ".")
			return
		}
		t := table.New("Archive", "Taken", "Files", "Size")
		for _, ai := range infos {
			t.AddRow(ai.Filename, ai.Timestamp, ai.Files, ai.Size)
		}
		sendTable(s, t)
		return
	}
	if args != "" {
		s.send("Syntax: archive [list]")
		return
	}

	p := archive.Params{
		Dir:      dir,
		MudName:  sh.Config.MudName,
		Counts:   sh.cats().Counts(),
		ConfPath: sh.Config.ConfPath,
	}
	for _, k := range catalog.Kinds() {
		p.Catalogs = append(p.Catalogs, sh.Catalog.Path(k))
	}
	if sh.Store != nil {
		p.BoltBackup = sh.Store.Backup
	}
	if sh.Journal != nil {
		p.JournalBackup = sh.Journal.Backup
	}
	path, err := archive.Create(p)
	if err != nil {
		log.Printf("WARNING: shell: archive: %v", err)
		s.send("Error: " + err.Error())
		return
	}
	log.Printf("shell: %s wrote archive %s", s.Name, path)
	s.send("Archive written to " + path + ".")
	removed, err := archive.Prune(dir, sh.Config.ArchiveRetain)
	if err != nil {
		s.send("Error pruning archives: " + err.Error())
	}
	if len(removed) > 0 {
		s.send(fmt.Sprintf("Pruned %d old archive(s).", len(removed)))
	}
}
