package server

import (
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// fakeWorld records what the loop hands it. Every method runs on the test
// goroutine because the tests drive step directly.
type fakeWorld struct {
	connected    []*Conn
	disconnected []*Conn
	lines        map[*Conn][]string
	ticks        int
	panicOn      string
}

func newFakeWorld() *fakeWorld { return &fakeWorld{lines: make(map[*Conn][]string)} }

func (w *fakeWorld) Connect(c *Conn) {
	w.connected = append(w.connected, c)
	c.Send("Welcome.")
}

func (w *fakeWorld) Dispatch(c *Conn, line string) {
	if w.panicOn != "" && line == w.panicOn {
		panic("boom")
	}
	w.lines[c] = append(w.lines[c], line)
	if line == "quit" {
		c.Send("Bye.")
		c.Close()
	}
}

func (w *fakeWorld) Disconnect(c *Conn) { w.disconnected = append(w.disconnected, c) }
func (w *fakeWorld) Tick()              { w.ticks++ }

func newTestServer(t *testing.T, w World, tweak func(*Config)) (*Server, net.Addr) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Addr = ""
	cfg.Tick = 10 * time.Millisecond
	cfg.CrashLog = filepath.Join(t.TempDir(), "crash.log")
	if tweak != nil {
		tweak(&cfg)
	}
	s := New(cfg, w)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	s.Serve(ln, TransportTCP)
	t.Cleanup(s.shutdown)
	return s, ln.Addr()
}

func dial(t *testing.T, addr net.Addr) net.Conn {
	t.Helper()
	c, err := net.Dial("tcp", addr.String())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

// stepUntil runs loop iterations until cond holds.
func stepUntil(t *testing.T, s *Server, what string, cond func() bool) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < 300; i++ {
		if cond() {
			return
		}
		s.step(ctx)
	}
	if !cond() {
		t.Fatalf("timed out waiting for %s", what)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func readAll(t *testing.T, c net.Conn) string {
	t.Helper()
	c.SetReadDeadline(time.Now().Add(3 * time.Second))
	data, _ := io.ReadAll(c)
	return string(data)
}

func TestOneAcceptPerTick(t *testing.T) {
	w := newFakeWorld()
	s, addr := newTestServer(t, w, nil)
	for range 3 {
		dial(t, addr)
	}
	waitFor(t, "pending connection", func() bool { return len(s.pending) == 1 })

	prev := 0
	stepUntil(t, s, "three connections", func() bool {
		n := len(s.conns)
		if n-prev > 1 {
			t.Fatalf("accepted %d connections in one tick", n-prev)
		}
		prev = n
		return n == 3
	})
	if len(w.connected) != 3 {
		t.Errorf("Connect called %d times, want 3", len(w.connected))
	}
}

func TestWorldTicksWithoutConnections(t *testing.T) {
	w := newFakeWorld()
	s, _ := newTestServer(t, w, nil)
	start := time.Now()
	for range 3 {
		s.step(context.Background())
	}
	if w.ticks != 3 {
		t.Errorf("world ticked %d times, want 3", w.ticks)
	}
	if s.Ticks() != 3 {
		t.Errorf("Ticks() = %d, want 3", s.Ticks())
	}
	if time.Since(start) < 2*s.Config.Tick {
		t.Errorf("idle ticks returned after %v, wait should be bounded by the tick", time.Since(start))
	}
}

func connect(t *testing.T, s *Server, w *fakeWorld, addr net.Addr) (net.Conn, *Conn) {
	t.Helper()
	client := dial(t, addr)
	n := len(w.connected)
	stepUntil(t, s, "connect", func() bool { return len(w.connected) > n })
	return client, w.connected[n]
}

func TestLineBufferingAcrossChunks(t *testing.T) {
	w := newFakeWorld()
	s, addr := newTestServer(t, w, nil)
	client, c := connect(t, s, w, addr)

	client.Write([]byte("hel"))
	stepUntil(t, s, "partial input", func() bool { return c.BytesIn == 3 })
	if len(w.lines[c]) != 0 {
		t.Fatalf("dispatched %q before end of line", w.lines[c])
	}
	client.Write([]byte("lo\r\n"))
	stepUntil(t, s, "dispatch", func() bool { return len(w.lines[c]) == 1 })
	if w.lines[c][0] != "hello" {
		t.Errorf("line = %q, want %q", w.lines[c][0], "hello")
	}
}

func TestOneLinePerTick(t *testing.T) {
	w := newFakeWorld()
	s, addr := newTestServer(t, w, nil)
	client, c := connect(t, s, w, addr)

	client.Write([]byte("north\nsouth\n!\n"))
	prev := 0
	stepUntil(t, s, "three lines", func() bool {
		n := len(w.lines[c])
		if n-prev > 1 {
			t.Fatalf("dispatched %d lines in one tick", n-prev)
		}
		prev = n
		return n == 3
	})
	want := []string{"north", "south", "south"}
	if strings.Join(w.lines[c], ",") != strings.Join(want, ",") {
		t.Errorf("lines = %q, want %q", w.lines[c], want)
	}
}

func TestErrorIsolation(t *testing.T) {
	w := newFakeWorld()
	w.panicOn = "crash"
	s, addr := newTestServer(t, w, nil)
	clientA, a := connect(t, s, w, addr)
	clientB, b := connect(t, s, w, addr)

	// A panics in dispatch and B still gets its line in the same tick.
	clientA.Write([]byte("crash\n"))
	clientB.Write([]byte("say hi\n"))
	waitFor(t, "both readable", func() bool { return a.readable() && b.readable() })
	s.step(context.Background())

	if got := w.lines[b]; len(got) != 1 || got[0] != "say hi" {
		t.Errorf("B lines = %q, want [say hi]", got)
	}
	for _, c := range s.conns {
		if c == a {
			t.Error("panicking connection still live")
		}
	}
	if len(s.conns) != 1 || s.conns[0] != b {
		t.Errorf("live connections = %d, want only B", len(s.conns))
	}
	data, err := os.ReadFile(s.Config.CrashLog)
	if err != nil || !strings.Contains(string(data), "boom") {
		t.Errorf("crash log missing panic report: %v", err)
	}
}

func TestHangupDoesNotBlockOthers(t *testing.T) {
	w := newFakeWorld()
	s, addr := newTestServer(t, w, nil)
	clientA, a := connect(t, s, w, addr)
	clientB, b := connect(t, s, w, addr)

	clientA.Close()
	clientB.Write([]byte("look\n"))
	waitFor(t, "both readable", func() bool { return a.readable() && b.readable() })
	s.step(context.Background())

	if got := w.lines[b]; len(got) != 1 || got[0] != "look" {
		t.Errorf("B lines = %q, want [look]", got)
	}
	if a.State() != StateClosed {
		t.Errorf("A state = %s, want closed", a.State())
	}
	if a.closeErr != nil {
		t.Errorf("orderly hangup recorded as error: %v", a.closeErr)
	}
	if len(w.disconnected) != 1 || w.disconnected[0] != a {
		t.Error("Disconnect not called for A")
	}
}

func TestCloseDrainsOutput(t *testing.T) {
	w := newFakeWorld()
	s, addr := newTestServer(t, w, nil)
	client, c := connect(t, s, w, addr)

	client.Write([]byte("quit\n"))
	stepUntil(t, s, "close", func() bool { return c.State() == StateClosed })
	got := readAll(t, client)
	if !strings.Contains(got, "Welcome.\r\n") || !strings.HasSuffix(got, "Bye.\r\n") {
		t.Errorf("client read %q", got)
	}
}

func TestInputOverflow(t *testing.T) {
	w := newFakeWorld()
	s, addr := newTestServer(t, w, func(cfg *Config) { cfg.MaxInput = 16 })
	client, c := connect(t, s, w, addr)

	client.Write([]byte(strings.Repeat("x", 40)))
	stepUntil(t, s, "overflow close", func() bool { return c.State() == StateClosed })
	if got := readAll(t, client); !strings.Contains(got, "*** Input overflow! ***") {
		t.Errorf("client read %q", got)
	}
	if len(w.lines[c]) != 0 {
		t.Errorf("overflowed input dispatched: %q", w.lines[c])
	}
}

func TestIdleTimeout(t *testing.T) {
	w := newFakeWorld()
	s, addr := newTestServer(t, w, func(cfg *Config) { cfg.IdleTimeout = 30 * time.Millisecond })
	client, c := connect(t, s, w, addr)
	stepUntil(t, s, "idle close", func() bool { return c.State() == StateClosed })
	if got := readAll(t, client); !strings.Contains(got, "Idle timeout.") {
		t.Errorf("client read %q", got)
	}
}

func TestInboxCall(t *testing.T) {
	w := newFakeWorld()
	s, _ := newTestServer(t, w, nil)

	errc := make(chan error, 1)
	var ran uint64
	go func() {
		errc <- s.Inbox().Call(context.Background(), func() { ran = s.Ticks() + 1 })
	}()
	var err error
	stepUntil(t, s, "inbox call", func() bool {
		select {
		case err = <-errc:
			return true
		default:
			return false
		}
	})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if ran == 0 {
		t.Error("posted function did not run")
	}
}

func TestInboxStopped(t *testing.T) {
	in := newInbox(1, func() {})
	in.stop()
	if in.Post(func() {}) {
		t.Error("Post succeeded after stop")
	}
	if err := in.Call(context.Background(), func() {}); err != ErrStopped {
		t.Errorf("Call after stop = %v, want ErrStopped", err)
	}
}

func TestCleanLine(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"look\r", "look"},
		{"say hi\tthere", "say hi\tthere"},
		{"lokk\b\bok", "look"},
		{"\xff\xfb\x01north", "north"},
		{"caf\xc3\xa9", "caf"},
		{"\b\bx", "x"},
	}
	for _, tt := range tests {
		if got := cleanLine([]byte(tt.in)); got != tt.want {
			t.Errorf("cleanLine(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestReadySetEmpty(t *testing.T) {
	var rs ReadySet
	if !rs.Empty() {
		t.Error("zero ReadySet not empty")
	}
	rs.Control = true
	if rs.Empty() {
		t.Error("ReadySet with Control reported empty")
	}
}
