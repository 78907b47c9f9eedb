package shell

import (
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/crystal-mush/gorom/pkg/catalog"
	"github.com/crystal-mush/gorom/pkg/fileguard"
	"github.com/crystal-mush/gorom/pkg/gamedb"
)

type fakeClient struct {
	lines  []string
	closed bool
}

func (f *fakeClient) Send(msg string)          { f.lines = append(f.lines, msg) }
func (f *fakeClient) SendNoNewline(msg string) { f.lines = append(f.lines, msg) }
func (f *fakeClient) Close()                   { f.closed = true }

// take returns everything sent since the last call.
func (f *fakeClient) take() string {
	out := strings.Join(f.lines, "\n")
	f.lines = nil
	return out
}

func newTestShell(t *testing.T, cfg Config) *Shell {
	t.Helper()
	g, err := fileguard.New()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(g.Shutdown)
	m := catalog.New(catalog.Config{DataDir: t.TempDir(), JSON: true}, gamedb.Starter(), g)
	sh := New(cfg, m)
	sh.Rand = rand.New(rand.NewPCG(1, 2))
	return sh
}

// enter connects a client and plays it under name.
func enter(t *testing.T, sh *Shell, name string) *fakeClient {
	t.Helper()
	c := &fakeClient{}
	sh.connect(c, "127.0.0.1", "telnet")
	sh.dispatch(c, name)
	if out := c.take(); !strings.Contains(out, "Welcome, ") {
		t.Fatalf("login as %s: %q", name, out)
	}
	return c
}

func TestNannyNames(t *testing.T) {
	sh := newTestShell(t, Config{MudName: "Testmud"})
	c := &fakeClient{}
	sh.connect(c, "127.0.0.1", "telnet")
	if out := c.take(); !strings.Contains(out, "Welcome to Testmud!") || !strings.Contains(out, "By what name") {
		t.Fatalf("greeting = %q", out)
	}

	for _, bad := range []string{"", "x", "bob1", "averyveryverylongname", "two words"} {
		sh.dispatch(c, bad)
		if out := c.take(); !strings.Contains(out, "Illegal name") {
			t.Errorf("name %q: got %q", bad, out)
		}
	}

	sh.dispatch(c, "aLiCe")
	if out := c.take(); !strings.Contains(out, "Welcome, Alice.") {
		t.Fatalf("got %q", out)
	}

	dup := &fakeClient{}
	sh.connect(dup, "127.0.0.2", "telnet")
	dup.take()
	sh.dispatch(dup, "ALICE")
	if out := dup.take(); !strings.Contains(out, "already playing") {
		t.Errorf("duplicate name: got %q", out)
	}
	sh.dispatch(dup, "bob")
	if out := c.take(); !strings.Contains(out, "Bob has entered the game.") {
		t.Errorf("arrival not announced: %q", out)
	}
}

func TestCommandPrefixAndLevel(t *testing.T) {
	sh := newTestShell(t, Config{})
	c := enter(t, sh, "alice")

	sh.dispatch(c, "l")
	if out := c.take(); !strings.Contains(out, "The Void") {
		t.Errorf("l: %q", out)
	}
	sh.dispatch(c, "catalogs")
	if out := c.take(); !strings.Contains(out, "Huh?") {
		t.Errorf("mortal ran catalogs: %q", out)
	}
	sh.dispatch(c, "xyzzy")
	if out := c.take(); !strings.Contains(out, "Huh?") {
		t.Errorf("xyzzy: %q", out)
	}

	sh.dispatch(c, "help")
	out := c.take()
	if !strings.Contains(out, "look") || strings.Contains(out, "snapshot") || strings.Contains(out, "login") {
		t.Errorf("help lists wrong commands: %q", out)
	}
}

func TestPositionCheck(t *testing.T) {
	sh := newTestShell(t, Config{})
	c := enter(t, sh, "alice")
	sh.sessions[0].Position = gamedb.PosSleeping
	sh.dispatch(c, "look")
	if out := c.take(); !strings.Contains(out, "You can't do that right now.") {
		t.Errorf("sleeping look: %q", out)
	}
	sh.dispatch(c, "who")
	if out := c.take(); !strings.Contains(out, "Players found: 1") {
		t.Errorf("who: %q", out)
	}
}

func TestUnknownFunction(t *testing.T) {
	sh := newTestShell(t, Config{})
	sh.cats().Commands.Add(gamedb.Command{Name: "dance", Function: "do_dance", Show: true})
	c := enter(t, sh, "alice")
	sh.dispatch(c, "dance")
	if out := c.take(); !strings.Contains(out, "Huh?") {
		t.Errorf("got %q", out)
	}
}

func TestSayAndSocials(t *testing.T) {
	sh := newTestShell(t, Config{})
	a := enter(t, sh, "alice")
	b := enter(t, sh, "bob")
	a.take()

	sh.dispatch(a, "'hello there")
	if out := a.take(); !strings.Contains(out, "You say 'hello there'") {
		t.Errorf("speaker: %q", out)
	}
	if out := b.take(); !strings.Contains(out, "Alice says 'hello there'") {
		t.Errorf("listener: %q", out)
	}

	sh.dispatch(a, "smile bo")
	if out := a.take(); !strings.Contains(out, "You smile at them.") {
		t.Errorf("actor: %q", out)
	}
	if out := b.take(); !strings.Contains(out, "Alice smiles at you.") {
		t.Errorf("victim: %q", out)
	}

	sh.dispatch(a, "smile")
	if out := b.take(); !strings.Contains(out, "Alice smiles happily.") {
		t.Errorf("no-arg others: %q", out)
	}
	sh.dispatch(a, "smile zed")
	if out := a.take(); !strings.Contains(out, "They aren't here.") {
		t.Errorf("not found: %q", out)
	}
	sh.dispatch(a, "smile alice")
	if out := a.take(); !strings.Contains(out, "You smile at yourself.") {
		t.Errorf("auto: %q", out)
	}
	if out := b.take(); !strings.Contains(out, "Alice smiles at themself.") {
		t.Errorf("auto others: %q", out)
	}
}

func TestAct(t *testing.T) {
	ch := &Session{Name: "Alice"}
	vict := &Session{Name: "Bob"}
	tests := []struct{ in, want string }{
		{"$n smiles at $N.", "Alice smiles at Bob."},
		{"$n pats $M on $S head.", "Alice pats them on their head."},
		{"$e said it costs $$5", "they said it costs $5"},
		{"trailing $", "trailing $"},
		{"$q stays", "$q stays"},
	}
	for _, tt := range tests {
		if got := act(tt.in, ch, vict); got != tt.want {
			t.Errorf("act(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTutorialProgress(t *testing.T) {
	sh := newTestShell(t, Config{})
	c := enter(t, sh, "alice")

	sh.dispatch(c, "tutorial")
	if out := c.take(); !strings.Contains(out, "basics") {
		t.Fatalf("list: %q", out)
	}
	sh.dispatch(c, "tutorial bas")
	if out := c.take(); !strings.Contains(out, "type 'say hello'") {
		t.Fatalf("start: %q", out)
	}
	sh.dispatch(c, "look")
	if out := c.take(); strings.Contains(out, "type 'smile'") {
		t.Fatalf("advanced on wrong answer: %q", out)
	}
	sh.dispatch(c, "say hello")
	if out := c.take(); !strings.Contains(out, "type 'smile'") {
		t.Fatalf("step 2: %q", out)
	}
	sh.dispatch(c, "tutorial")
	if out := c.take(); !strings.Contains(out, "step 2 of 3") {
		t.Errorf("status: %q", out)
	}
	sh.dispatch(c, "smile")
	sh.dispatch(c, "age 42")
	if out := c.take(); !strings.Contains(out, "finished the basics tutorial") {
		t.Fatalf("finish: %q", out)
	}
	if sh.sessions[0].tutorial != nil {
		t.Error("tutorial still active after finishing")
	}

	sh.dispatch(c, "tutorial basics")
	sh.dispatch(c, "tutorial stop")
	if out := c.take(); !strings.Contains(out, "You stop the basics tutorial.") {
		t.Errorf("stop: %q", out)
	}
	sh.dispatch(c, "tutorial nosuch")
	if out := c.take(); !strings.Contains(out, "No such tutorial.") {
		t.Errorf("unknown: %q", out)
	}
}

func TestQuitAndDisconnect(t *testing.T) {
	sh := newTestShell(t, Config{})
	a := enter(t, sh, "alice")
	b := enter(t, sh, "bob")
	a.take()

	sh.dispatch(a, "quit")
	if !a.closed {
		t.Fatal("quit did not close the client")
	}
	if out := b.take(); !strings.Contains(out, "Alice has left the game.") {
		t.Errorf("bob saw %q", out)
	}
	sh.disconnect(a)
	sh.disconnect(b)
	if n := len(sh.Sessions()); n != 0 {
		t.Errorf("%d sessions left", n)
	}
	if _, ok := sh.byClient[a]; ok {
		t.Error("client still indexed")
	}
}

func TestTickAdvancesPulse(t *testing.T) {
	sh := newTestShell(t, Config{})
	for range 3 {
		sh.Tick()
	}
	if sh.Pulse() != 3 {
		t.Errorf("pulse = %d", sh.Pulse())
	}
}
