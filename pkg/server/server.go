// Package server runs the single-threaded game loop. Transport goroutines
// only move bytes; accepting, reading input, dispatching lines, advancing
// the world and queueing output all happen on the loop goroutine, one
// bounded slice of work per connection per tick.
package server

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"runtime/debug"
	"sync"
	"time"

	"github.com/crystal-mush/gorom/pkg/fileguard"
	"github.com/crystal-mush/gorom/pkg/memwatch"
)

// World is the simulation driven by the loop. All calls happen on the loop
// goroutine.
type World interface {
	// Connect is called once a connection is established.
	Connect(c *Conn)
	// Dispatch handles one complete input line.
	Dispatch(c *Conn, line string)
	// Disconnect is called before an established connection is closed.
	Disconnect(c *Conn)
	// Tick advances the world by one step.
	Tick()
}

// Config holds loop and listener settings.
type Config struct {
	Addr      string // cleartext listen address; empty disables
	TLSAddr   string // TLS listen address; empty disables
	TLSConfig *tls.Config

	Tick        time.Duration
	ChunkSize   int // bytes read per connection per tick
	MaxInput    int // buffered input without a newline before overflow
	IdleTimeout time.Duration
	WatchTicks  int    // memory watchpoint check interval; 0 disables
	CrashLog    string // panic reports are appended here
}

// DefaultConfig returns ROM-like defaults: four ticks a second on port 4000.
func DefaultConfig() Config {
	return Config{
		Addr:      ":4000",
		Tick:      250 * time.Millisecond,
		ChunkSize: 1024,
		MaxInput:  4096,
		CrashLog:  "crash.log",
	}
}

type incoming struct {
	s    stream
	t    Transport
	addr string
	tlsc *tls.Conn
}

const acceptBackoff = 50 * time.Millisecond

// Server owns the connections and the loop.
type Server struct {
	Config  Config
	World   World
	Metrics *Metrics
	Guard   *fileguard.Guard
	Watches *memwatch.Set

	conns   []*Conn
	pending chan incoming
	wakeCh  chan struct{}
	inbox   *Inbox
	quit    chan struct{}
	ticks   uint64

	mu        sync.Mutex
	listeners []net.Listener
}

// New creates a server driving world.
func New(cfg Config, world World) *Server {
	if cfg.Tick <= 0 {
		cfg.Tick = DefaultConfig().Tick
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultConfig().ChunkSize
	}
	if cfg.MaxInput <= 0 {
		cfg.MaxInput = DefaultConfig().MaxInput
	}
	s := &Server{
		Config:  cfg,
		World:   world,
		pending: make(chan incoming, 1),
		wakeCh:  make(chan struct{}, 1),
		quit:    make(chan struct{}),
	}
	s.inbox = newInbox(64, s.signal)
	return s
}

// Inbox returns the queue for running work on the loop goroutine.
func (s *Server) Inbox() *Inbox { return s.inbox }

// Ticks returns the number of completed loop iterations.
func (s *Server) Ticks() uint64 { return s.ticks }

// Conns returns the live connections. Loop goroutine only.
func (s *Server) Conns() []*Conn { return s.conns }

// Listen opens the configured listeners and starts accepting.
func (s *Server) Listen() error {
	if s.Config.Addr == "" && s.Config.TLSAddr == "" {
		return fmt.Errorf("both cleartext and TLS listeners are disabled; nothing to listen on")
	}
	if s.Config.Addr != "" {
		ln, err := net.Listen("tcp", s.Config.Addr)
		if err != nil {
			return fmt.Errorf("cleartext listener: %w", err)
		}
		log.Printf("Listening (cleartext) on %s", ln.Addr())
		s.Serve(ln, TransportTCP)
	}
	if s.Config.TLSAddr != "" {
		if s.Config.TLSConfig == nil {
			return fmt.Errorf("TLS listener: no certificate configured")
		}
		ln, err := net.Listen("tcp", s.Config.TLSAddr)
		if err != nil {
			return fmt.Errorf("TLS listener: %w", err)
		}
		log.Printf("Listening (TLS) on %s", ln.Addr())
		s.Serve(ln, TransportTLS)
	}
	return nil
}

// Serve accepts connections from ln until it is closed. TLS connections
// start in the handshaking state.
func (s *Server) Serve(ln net.Listener, t Transport) {
	s.mu.Lock()
	s.listeners = append(s.listeners, ln)
	s.mu.Unlock()
	go s.acceptLoop(ln, t)
}

// acceptLoop hands each accepted connection to the loop. The one-slot
// pending queue means at most one waits while the loop is busy.
func (s *Server) acceptLoop(ln net.Listener, t Transport) {
	for {
		nc, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Printf("Accept error: %v", err)
			s.Metrics.acceptError()
			time.Sleep(acceptBackoff)
			continue
		}
		in := incoming{s: nc, t: t, addr: nc.RemoteAddr().String()}
		if t == TransportTLS {
			tc := tls.Server(nc, s.Config.TLSConfig)
			in.s, in.tlsc = tc, tc
		}
		if !s.enqueue(context.Background(), in) {
			nc.Close()
			return
		}
	}
}

// enqueue waits for the loop to take the connection.
func (s *Server) enqueue(ctx context.Context, in incoming) bool {
	select {
	case s.pending <- in:
		s.signal()
		return true
	case <-s.quit:
		return false
	case <-ctx.Done():
		return false
	}
}

// Run drives the loop until ctx is cancelled, then closes every
// connection and listener. Iterations are paced to one per tick period;
// an early wake only moves I/O to the start of the tick.
func (s *Server) Run(ctx context.Context) error {
	log.Printf("Server loop running, tick %v", s.Config.Tick)
	pace := time.NewTimer(0)
	defer pace.Stop()
	for ctx.Err() == nil {
		start := time.Now()
		s.step(ctx)
		rest := s.Config.Tick - time.Since(start)
		if rest <= 0 {
			continue
		}
		pace.Reset(rest)
		select {
		case <-pace.C:
		case <-ctx.Done():
		}
	}
	s.shutdown()
	return nil
}

// step is one loop iteration.
func (s *Server) step(ctx context.Context) {
	start := time.Now()
	rs := s.poll(ctx, s.Config.Tick)

	if rs.Control {
		s.acceptOne()
	}
	for _, c := range rs.Exceptional {
		s.fail(c, <-c.werr)
	}
	for _, c := range rs.Readable {
		s.service(c)
	}
	s.dispatchLines()
	s.tickWorld()
	s.inbox.drain()
	for _, c := range s.conns {
		if n := c.flush(); n > 0 {
			s.Metrics.sent(n)
		}
	}
	s.reap()

	s.ticks++
	s.checkWatches()
	s.Metrics.tick(time.Since(start), s.conns)
}

// acceptOne takes at most one pending connection.
func (s *Server) acceptOne() {
	var in incoming
	select {
	case in = <-s.pending:
	default:
		return
	}
	c := newConn(in.s, in.t, in.addr, s.signal)
	s.conns = append(s.conns, c)
	s.Metrics.accepted(c.Transport)
	log.Printf("[%s] New %s connection from %s", c.short(), c.Transport, c.Addr)
	if in.tlsc != nil {
		c.tlsc = in.tlsc
		c.startHandshake()
		return
	}
	s.establish(c)
}

func (s *Server) establish(c *Conn) {
	c.state = StateEstablished
	c.start(s.Config.ChunkSize)
	s.safely(c, "connect", func() { s.World.Connect(c) })
}

// service consumes one ready event for c: a finished handshake or one chunk
// of input.
func (s *Server) service(c *Conn) {
	switch c.state {
	case StateHandshaking:
		if err := <-c.hsDone; err != nil {
			log.Printf("[%s] TLS handshake failed: %v", c.short(), err)
			s.fail(c, err)
			return
		}
		s.establish(c)
	case StateEstablished:
		ch := <-c.in
		if ch.err != nil {
			s.fail(c, ch.err)
			return
		}
		c.BytesIn += len(ch.data)
		s.Metrics.received(len(ch.data))
		c.inbuf = append(c.inbuf, ch.data...)
		if len(c.inbuf) > s.Config.MaxInput && bytes.IndexByte(c.inbuf, '\n') < 0 {
			log.Printf("[%s] Input overflow from %s", c.short(), c.Addr)
			c.inbuf = c.inbuf[:0]
			c.Send("*** Input overflow! ***")
			c.Close()
		}
	}
}

// dispatchLines hands at most one complete line per connection to the world.
func (s *Server) dispatchLines() {
	for _, c := range s.conns {
		if c.linger || !c.hasLine() {
			continue
		}
		line, _ := c.nextLine()
		c.LastInput = time.Now()
		s.Metrics.line()
		s.safely(c, "dispatch", func() { s.World.Dispatch(c, line) })
	}
}

func (s *Server) tickWorld() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("WARNING: panic in world tick: %v", r)
			s.crashReport("world tick", r)
		}
	}()
	s.World.Tick()
}

// safely runs a World callback for c. A panic closes c and nothing else.
func (s *Server) safely(c *Conn, what string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[%s] panic in %s: %v", c.short(), what, r)
			s.crashReport(fmt.Sprintf("%s for %s", what, c.ID), r)
			c.closeErr = fmt.Errorf("panic in %s: %v", what, r)
			c.state = StateClosing
		}
	}()
	fn()
}

// crashReport appends a stack trace to the crash log, using the descriptor
// guard's reserve so it works even when descriptors run out.
func (s *Server) crashReport(what string, r any) {
	if s.Config.CrashLog == "" {
		return
	}
	write := func() {
		f, err := os.OpenFile(s.Config.CrashLog, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			log.Printf("WARNING: crash log: %v", err)
			return
		}
		fmt.Fprintf(f, "%s panic in %s: %v\n%s\n", time.Now().Format(time.RFC3339), what, r, debug.Stack())
		f.Close()
	}
	if s.Guard == nil || !s.Guard.Emergency(write) {
		write()
	}
}

// fail moves c to closing. Orderly shutdown (EOF) is not an error.
func (s *Server) fail(c *Conn, err error) {
	if c.state >= StateClosing {
		return
	}
	if !errors.Is(err, io.EOF) {
		c.closeErr = err
	}
	c.state = StateClosing
}

// reap closes connections that are done: failed ones at once, lingering
// ones once their output has been handed off.
func (s *Server) reap() {
	now := time.Now()
	live := s.conns[:0]
	for _, c := range s.conns {
		if s.Config.IdleTimeout > 0 && c.state == StateEstablished && !c.linger &&
			now.Sub(c.LastInput) > s.Config.IdleTimeout {
			c.Send("Idle timeout.")
			c.Close()
		}
		if c.linger && c.state < StateClosing && c.pending.Len() == 0 {
			c.state = StateClosing
		}
		if c.state == StateClosing && (c.pending.Len() == 0 || c.closeErr != nil || !c.started) {
			s.closeConn(c)
			continue
		}
		live = append(live, c)
	}
	clear(s.conns[len(live):])
	s.conns = live
}

func (s *Server) closeConn(c *Conn) {
	if c.started {
		s.safely(c, "disconnect", func() { s.World.Disconnect(c) })
	}
	c.shut()
	s.Metrics.closed(c.Transport)
	if c.closeErr != nil {
		log.Printf("[%s] Connection closed from %s: %v", c.short(), c.Addr, c.closeErr)
	} else {
		log.Printf("[%s] Connection closed from %s", c.short(), c.Addr)
	}
}

func (s *Server) checkWatches() {
	if s.Watches == nil || s.Config.WatchTicks <= 0 || s.ticks%uint64(s.Config.WatchTicks) != 0 {
		return
	}
	divs := s.Watches.Check()
	for _, d := range divs {
		log.Printf("WARNING: memwatch: %s", d)
	}
	if len(divs) > 0 {
		s.Metrics.divergences(len(divs))
		s.Watches.Rebase()
	}
}

// Stop closes the listeners. Run keeps going until its context ends.
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ln := range s.listeners {
		ln.Close()
	}
	s.listeners = nil
}

func (s *Server) shutdown() {
	close(s.quit)
	s.Stop()
	for _, c := range s.conns {
		if c.started {
			s.safely(c, "disconnect", func() { s.World.Disconnect(c) })
		}
		c.flush()
		c.shut()
	}
	s.conns = nil
	s.inbox.stop()
	log.Printf("Server loop stopped after %d ticks", s.ticks)
}
