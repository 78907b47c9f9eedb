// Package shell is the in-game command interpreter. It implements
// server.World: each input line is looked up in the commands catalog and
// dispatched to a built-in handler by the command's function name, with
// socials as the fallback.
package shell

import (
	"log"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/crystal-mush/gorom/pkg/boltstore"
	"github.com/crystal-mush/gorom/pkg/catalog"
	"github.com/crystal-mush/gorom/pkg/gamedb"
	"github.com/crystal-mush/gorom/pkg/journal"
	"github.com/crystal-mush/gorom/pkg/loot"
	"github.com/crystal-mush/gorom/pkg/match"
	"github.com/crystal-mush/gorom/pkg/server"
)

// Trust levels.
const (
	LevelMortal = 1
	LevelAdmin  = 60
)

// Client is the output side of a connection. *server.Conn satisfies it.
type Client interface {
	Send(msg string)
	SendNoNewline(msg string)
	Close()
}

type sessionState int

const (
	stateGetName sessionState = iota
	statePlaying
	stateQuit
)

// Session is one connected character.
type Session struct {
	Name      string
	Level     int
	Position  gamedb.Position
	Addr      string
	Via       string
	ConnTime  time.Time
	LastInput time.Time

	client   Client
	state    sessionState
	tutorial *gamedb.Tutorial
	step     int
}

func (s *Session) send(msg string) { s.client.Send(msg) }

// IsAdmin reports whether s has administrator trust.
func (s *Session) IsAdmin() bool { return s.Level >= LevelAdmin }

// Config holds shell settings taken from the game config.
type Config struct {
	MudName string
	Welcome string            // greeting; "Welcome to <MudName>!" when empty
	Admins  map[string]string // name -> password hash
	// SnapshotOnSave copies every catalog to Store after "save all".
	SnapshotOnSave bool
	ArchiveDir     string
	ArchiveRetain  int
	ConfPath       string // included in archives when set
}

type handler func(sh *Shell, s *Session, args string)

// Shell is the game world as seen by connections.
type Shell struct {
	Config  Config
	Catalog *catalog.Manager
	// Store receives snapshots; nil disables snapshot and restore.
	Store   *boltstore.Store
	// Journal is copied into archives when set.
	Journal *journal.Journal
	Rand    loot.Rand

	sessions []*Session
	byClient map[Client]*Session
	handlers map[string]handler
	pulse    uint64
}

// New creates a shell over the catalogs in m.
func New(cfg Config, m *catalog.Manager) *Shell {
	if cfg.MudName == "" {
		cfg.MudName = "GoROM"
	}
	return &Shell{
		Config:   cfg,
		Catalog:  m,
		Rand:     rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5eed)),
		byClient: make(map[Client]*Session),
		handlers: builtins(),
	}
}

func (sh *Shell) cats() *gamedb.Catalogs { return sh.Catalog.Catalogs }

// Connect greets a new connection and asks for a name.
func (sh *Shell) Connect(c *server.Conn) { sh.connect(c, c.Addr, c.Transport.String()) }

// Dispatch runs one line of input.
func (sh *Shell) Dispatch(c *server.Conn, line string) { sh.dispatch(c, line) }

// Disconnect forgets the connection's session.
func (sh *Shell) Disconnect(c *server.Conn) { sh.disconnect(c) }

// Tick advances the pulse counter.
func (sh *Shell) Tick() { sh.pulse++ }

// Pulse returns the number of ticks since boot.
func (sh *Shell) Pulse() uint64 { return sh.pulse }

// Sessions returns the connected sessions in arrival order.
func (sh *Shell) Sessions() []*Session { return sh.sessions }

func (sh *Shell) connect(c Client, addr, via string) {
	now := time.Now()
	s := &Session{
		Level:     LevelMortal,
		Position:  gamedb.PosStanding,
		Addr:      addr,
		Via:       via,
		ConnTime:  now,
		LastInput: now,
		client:    c,
	}
	sh.sessions = append(sh.sessions, s)
	sh.byClient[c] = s

	welcome := sh.Config.Welcome
	if welcome == "" {
		welcome = "Welcome to " + sh.Config.MudName + "!"
	}
	c.Send(welcome)
	c.SendNoNewline("By what name do you wish to be known? ")
}

func (sh *Shell) disconnect(c Client) {
	s, ok := sh.byClient[c]
	if !ok {
		return
	}
	delete(sh.byClient, c)
	for i, o := range sh.sessions {
		if o == s {
			sh.sessions = append(sh.sessions[:i], sh.sessions[i+1:]...)
			break
		}
	}
	if s.state == statePlaying {
		sh.toOthers(s, s.Name+" has lost the link.")
		log.Printf("shell: %s@%s disconnected", s.Name, s.Addr)
	}
}

func (sh *Shell) dispatch(c Client, line string) {
	s, ok := sh.byClient[c]
	if !ok {
		return
	}
	s.LastInput = time.Now()
	switch s.state {
	case stateGetName:
		sh.nanny(s, strings.TrimSpace(line))
	case statePlaying:
		sh.interpret(s, line)
		if s.state == statePlaying {
			s.client.SendNoNewline("\r\n> ")
		}
	}
}

// nanny handles the name prompt.
func (sh *Shell) nanny(s *Session, name string) {
	if !validName(name) {
		s.send("Illegal name, try another.")
		s.client.SendNoNewline("Name: ")
		return
	}
	name = strings.ToUpper(name[:1]) + strings.ToLower(name[1:])
	if sh.findPlaying(name) != nil {
		s.send("That character is already playing.")
		s.client.SendNoNewline("Name: ")
		return
	}
	s.Name = name
	s.state = statePlaying
	log.Printf("shell: %s@%s has connected", s.Name, s.Addr)
	s.send("\r\nWelcome, " + name + ". Type 'help' for a list of commands.")
	sh.toOthers(s, name+" has entered the game.")
	s.client.SendNoNewline("\r\n> ")
}

// validName accepts 2 to 12 letters.
func validName(name string) bool {
	return len(name) >= 2 && len(name) <= 12 && match.Match("#A", name, '#')
}

func (sh *Shell) findPlaying(name string) *Session {
	for _, o := range sh.sessions {
		if o.state == statePlaying && strings.EqualFold(o.Name, name) {
			return o
		}
	}
	return nil
}

// findTarget looks up a playing character by name prefix.
func (sh *Shell) findTarget(prefix string) *Session {
	for _, o := range sh.sessions {
		if o.state == statePlaying && len(prefix) > 0 &&
			strings.HasPrefix(strings.ToLower(o.Name), strings.ToLower(prefix)) {
			return o
		}
	}
	return nil
}

func (sh *Shell) toOthers(s *Session, msg string) {
	for _, o := range sh.sessions {
		if o != s && o.state == statePlaying {
			o.send(msg)
		}
	}
}

// NotifyAdmins sends msg to every connected administrator.
func (sh *Shell) NotifyAdmins(msg string) {
	for _, o := range sh.sessions {
		if o.state == statePlaying && o.IsAdmin() {
			o.send(msg)
		}
	}
}

// findCommand returns the first command, in catalog order, whose name
// starts with verb and that s may use.
func (sh *Shell) findCommand(verb string, level int) *gamedb.Command {
	for _, cmd := range sh.cats().Commands.All() {
		if cmd.Level <= level && strings.HasPrefix(cmd.Name, verb) {
			return &cmd
		}
	}
	return nil
}

func splitVerb(line string) (string, string) {
	verb, rest, _ := strings.Cut(line, " ")
	return strings.ToLower(verb), strings.TrimSpace(rest)
}

func (sh *Shell) interpret(s *Session, line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	advance := sh.tutorialMatches(s, line)

	var verb, args string
	if line[0] == '\'' {
		verb, args = "say", strings.TrimSpace(line[1:])
	} else {
		verb, args = splitVerb(line)
	}

	cmd := sh.findCommand(verb, s.Level)
	switch {
	case cmd == nil:
		if !sh.checkSocial(s, verb, args) {
			s.send("Huh?")
		}
	case s.Position < cmd.Position:
		s.send("You can't do that right now.")
	default:
		if cmd.Log == gamedb.LogAlways {
			log.Printf("Log %s: %s", s.Name, line)
		}
		h, ok := sh.handlers[cmd.Function]
		if !ok {
			log.Printf("WARNING: shell: command %s names unknown function %q", cmd.Name, cmd.Function)
			s.send("Huh?")
			break
		}
		h(sh, s, args)
	}

	if advance {
		sh.advanceTutorial(s)
	}
}
