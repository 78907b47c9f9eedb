package shell

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/rodaine/table"

	"github.com/crystal-mush/gorom/pkg/gamedb"
)

// builtins maps command function names, as stored in the commands catalog,
// to their handlers.
func builtins() map[string]handler {
	return map[string]handler{
		"do_look":     doLook,
		"do_say":      doSay,
		"do_help":     doHelp,
		"do_who":      doWho,
		"do_quit":     doQuit,
		"do_login":    doLogin,
		"do_socials":  doSocials,
		"do_classes":  doClasses,
		"do_races":    doRaces,
		"do_tutorial": doTutorial,
		"do_catalogs": doCatalogs,
		"do_save":     doSave,
		"do_load":     doLoad,
		"do_convert":  doConvert,
		"do_loot":     doLoot,
		"do_roll":     doRoll,
		"do_snapshot": doSnapshot,
		"do_restore":  doRestore,
		"do_archive":  doArchive,
	}
}

// sendTable prints t to s with telnet line endings.
func sendTable(s *Session, t table.Table) {
	var buf bytes.Buffer
	t.WithWriter(&buf).Print()
	out := strings.TrimRight(buf.String(), "\n")
	s.send(strings.ReplaceAll(out, "\n", "\r\n"))
}

// sendColumns lists words six to a row.
func sendColumns(s *Session, words []string) {
	var b strings.Builder
	for i, w := range words {
		fmt.Fprintf(&b, "%-12s", w)
		if i%6 == 5 && i < len(words)-1 {
			b.WriteString("\r\n")
		}
	}
	s.send(strings.TrimRight(b.String(), " "))
}

func doLook(sh *Shell, s *Session, _ string) {
	s.send("The Void")
	s.send("  You float in a formless grey void. Nothing has been built here yet.")
	for _, o := range sh.sessions {
		if o != s && o.state == statePlaying {
			s.send(o.Name + " is here.")
		}
	}
}

func doSay(sh *Shell, s *Session, args string) {
	if args == "" {
		s.send("Say what?")
		return
	}
	s.send("You say '" + args + "'")
	sh.toOthers(s, s.Name+" says '"+args+"'")
}

func doHelp(sh *Shell, s *Session, args string) {
	cats := sh.cats()
	if args != "" {
		if cmd := sh.findCommand(strings.ToLower(args), s.Level); cmd != nil && cmd.Show {
			pos := gamedb.Positions.Name(cmd.Position)
			s.send(fmt.Sprintf("%s: level %d, usable while %s or better.", cmd.Name, cmd.Level, pos))
			return
		}
		if soc, ok := cats.Socials.FindPrefix(args); ok {
			s.send(soc.Name + " is a social. Try it with or without a target.")
			return
		}
		s.send("No help on that word.")
		return
	}
	var names []string
	for _, cmd := range cats.Commands.All() {
		if cmd.Show && cmd.Level <= s.Level {
			names = append(names, cmd.Name)
		}
	}
	sendColumns(s, names)
}

func doWho(sh *Shell, s *Session, _ string) {
	t := table.New("Lvl", "Name", "Idle", "Via")
	n := 0
	for _, o := range sh.sessions {
		if o.state != statePlaying {
			continue
		}
		n++
		t.AddRow(o.Level, o.Name, time.Since(o.LastInput).Round(time.Second), o.Via)
	}
	sendTable(s, t)
	s.send(fmt.Sprintf("Players found: %d", n))
}

func doQuit(sh *Shell, s *Session, _ string) {
	s.send("Alas, all good things must come to an end.")
	sh.toOthers(s, s.Name+" has left the game.")
	s.state = stateQuit
	s.client.Close()
}

func doSocials(sh *Shell, s *Session, _ string) {
	var names []string
	for _, soc := range sh.cats().Socials.All() {
		names = append(names, soc.Name)
	}
	sendColumns(s, names)
}

func doClasses(sh *Shell, s *Session, _ string) {
	t := table.New("Class", "Who", "Prime", "HP/lvl", "Mana")
	for _, cl := range sh.cats().Classes.All() {
		mana := "no"
		if cl.ManaUser {
			mana = "yes"
		}
		t.AddRow(cl.Name, cl.WhoName, gamedb.Stats.Name(cl.PrimeStat), fmt.Sprintf("%d-%d", cl.HPMin, cl.HPMax), mana)
	}
	sendTable(s, t)
}

func doRaces(sh *Shell, s *Session, _ string) {
	t := table.New("Race", "Who", "PC", "Size", "Points")
	for _, r := range sh.cats().Races.All() {
		pc := ""
		if r.PC {
			pc = "yes"
		}
		t.AddRow(r.Name, r.WhoName, pc, gamedb.Sizes.Name(r.Size), r.Points)
	}
	sendTable(s, t)
}

func doTutorial(sh *Shell, s *Session, args string) {
	tuts := sh.cats().Tutorials
	switch strings.ToLower(args) {
	case "":
		if s.tutorial != nil {
			s.send(fmt.Sprintf("Tutorial %s, step %d of %d: %s", s.tutorial.Name,
				s.step+1, len(s.tutorial.Steps), s.tutorial.Steps[s.step].Prompt))
			return
		}
		t := table.New("Tutorial", "Steps", "About")
		for _, tut := range tuts.All() {
			if tut.MinLevel <= s.Level {
				t.AddRow(tut.Name, len(tut.Steps), tut.Blurb)
			}
		}
		sendTable(s, t)
		return
	case "stop":
		if s.tutorial == nil {
			s.send("You are not following a tutorial.")
			return
		}
		s.send("You stop the " + s.tutorial.Name + " tutorial.")
		s.tutorial, s.step = nil, 0
		return
	}

	tut, ok := tuts.FindPrefix(args)
	if !ok || tut.MinLevel > s.Level {
		s.send("No such tutorial.")
		return
	}
	if len(tut.Steps) == 0 {
		s.send(tut.Finish)
		return
	}
	startTutorial(s, tut)
}
