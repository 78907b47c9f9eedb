package server

import (
	"bytes"
	"context"
	"crypto/tls"
	"io"
	"time"

	"github.com/google/uuid"
)

// ConnState tracks where a connection is in its lifecycle.
type ConnState int

const (
	StateHandshaking ConnState = iota // TLS handshake in progress
	StateEstablished                  // reading and writing
	StateClosing                      // output draining, no more input
	StateClosed
)

var stateNames = [...]string{"handshaking", "established", "closing", "closed"}

func (s ConnState) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Transport identifies how a connection reached the server.
type Transport int

const (
	TransportTCP Transport = iota
	TransportTLS
	TransportWebSocket
)

var transportNames = [...]string{"tcp", "tls", "websocket"}

func (t Transport) String() string {
	if t >= 0 && int(t) < len(transportNames) {
		return transportNames[t]
	}
	return "unknown"
}

// stream is the byte pipe under a connection. net.Conn satisfies it.
type stream interface {
	io.ReadWriteCloser
	SetWriteDeadline(t time.Time) error
}

type chunk struct {
	data []byte
	err  error
}

const (
	outQueueDepth    = 16
	writeTimeout     = 5 * time.Second
	handshakeTimeout = 10 * time.Second
)

// Conn is one client connection. Everything except the transport goroutines
// runs on the loop goroutine, so fields are not locked.
type Conn struct {
	ID        uuid.UUID
	Addr      string
	Transport Transport
	ConnTime  time.Time
	LastInput time.Time
	BytesIn   int
	BytesOut  int
	// Session belongs to the World.
	Session any

	state  ConnState
	stream stream
	tlsc   *tls.Conn

	hsDone chan error  // handshake result
	in     chan chunk  // one chunk at a time from the reader
	outq   chan []byte // handed to the writer
	werr   chan error  // first write failure
	done   chan struct{}
	wake   func()

	inbuf    []byte       // input not yet split into lines
	pending  bytes.Buffer // output not yet handed to the writer
	lastLine string
	closeErr error
	linger   bool // close once output drains
	started  bool
}

func newConn(s stream, t Transport, addr string, wake func()) *Conn {
	now := time.Now()
	return &Conn{
		ID:        uuid.New(),
		Addr:      addr,
		Transport: t,
		ConnTime:  now,
		LastInput: now,
		state:     StateEstablished,
		stream:    s,
		hsDone:    make(chan error, 1),
		in:        make(chan chunk, 1),
		outq:      make(chan []byte, outQueueDepth),
		werr:      make(chan error, 1),
		done:      make(chan struct{}),
		wake:      wake,
	}
}

// State returns the connection's lifecycle state.
func (c *Conn) State() ConnState { return c.state }

// short is the bracketed prefix used in log lines.
func (c *Conn) short() string { return c.ID.String()[:8] }

// Send queues msg for output, terminated with CRLF when it has no newline.
func (c *Conn) Send(msg string) {
	if c.state >= StateClosed {
		return
	}
	c.pending.WriteString(msg)
	if len(msg) == 0 || msg[len(msg)-1] != '\n' {
		c.pending.WriteString("\r\n")
	}
}

// SendNoNewline queues msg exactly as given, e.g. for a prompt.
func (c *Conn) SendNoNewline(msg string) {
	if c.state >= StateClosed {
		return
	}
	c.pending.WriteString(msg)
}

// Close asks the loop to close the connection once queued output is sent.
func (c *Conn) Close() {
	if c.state == StateEstablished || c.state == StateHandshaking {
		c.linger = true
	}
}

// startHandshake runs the TLS handshake off the loop; the result arrives on
// hsDone.
func (c *Conn) startHandshake() {
	c.state = StateHandshaking
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), handshakeTimeout)
		defer cancel()
		c.hsDone <- c.tlsc.HandshakeContext(ctx)
		c.wake()
	}()
}

// start launches the transport goroutines.
func (c *Conn) start(chunkSize int) {
	c.started = true
	go c.readLoop(chunkSize)
	go c.writeLoop()
}

// readLoop moves one chunk at a time into c.in. The 1-slot channel holds
// the reader back until the loop consumes the previous chunk.
func (c *Conn) readLoop(chunkSize int) {
	for {
		buf := make([]byte, chunkSize)
		n, err := c.stream.Read(buf)
		if n > 0 {
			select {
			case c.in <- chunk{data: buf[:n]}:
				c.wake()
			case <-c.done:
				return
			}
		}
		if err != nil {
			select {
			case c.in <- chunk{err: err}:
				c.wake()
			case <-c.done:
			}
			return
		}
	}
}

// writeLoop writes queued output until outq is closed, then closes the
// stream. After the first failure remaining output is discarded.
func (c *Conn) writeLoop() {
	defer c.stream.Close()
	failed := false
	for p := range c.outq {
		if failed {
			continue
		}
		c.stream.SetWriteDeadline(time.Now().Add(writeTimeout))
		if _, err := c.stream.Write(p); err != nil {
			failed = true
			c.werr <- err
			c.wake()
		}
	}
}

// readable reports whether a chunk or handshake result is waiting.
func (c *Conn) readable() bool {
	switch c.state {
	case StateHandshaking:
		return len(c.hsDone) > 0
	case StateEstablished:
		return len(c.in) > 0
	}
	return false
}

// writable reports whether output is queued and the writer has room.
func (c *Conn) writable() bool {
	return c.state <= StateClosing && c.pending.Len() > 0 && len(c.outq) < cap(c.outq)
}

func (c *Conn) exceptional() bool { return len(c.werr) > 0 }

// hasLine reports whether a complete line is buffered.
func (c *Conn) hasLine() bool {
	return c.state == StateEstablished && bytes.IndexByte(c.inbuf, '\n') >= 0
}

// nextLine removes and returns the first complete line, cleaned of telnet
// sequences, control characters and backspaces. "!" repeats the last line.
func (c *Conn) nextLine() (string, bool) {
	i := bytes.IndexByte(c.inbuf, '\n')
	if i < 0 {
		return "", false
	}
	raw := c.inbuf[:i]
	c.inbuf = append(c.inbuf[:0], c.inbuf[i+1:]...)
	line := cleanLine(raw)
	if line == "!" {
		return c.lastLine, true
	}
	c.lastLine = line
	return line, true
}

// cleanLine strips telnet IAC sequences and control characters and applies
// backspaces.
func cleanLine(raw []byte) string {
	out := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		b := raw[i]
		switch {
		case b == 0xFF && i+2 < len(raw) && raw[i+1] >= 0xFB && raw[i+1] <= 0xFE:
			i += 2 // IAC WILL/WONT/DO/DONT opt
		case b == 0xFF && i+1 < len(raw):
			i++
		case b == '\b' || b == 0x7F:
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		case b < 32 && b != '\t', b >= 0x80:
		default:
			out = append(out, b)
		}
	}
	return string(out)
}

// flush hands pending output to the writer if it has room.
func (c *Conn) flush() int {
	if !c.writable() {
		return 0
	}
	p := bytes.Clone(c.pending.Bytes())
	c.pending.Reset()
	c.outq <- p
	c.BytesOut += len(p)
	return len(p)
}

// shut stops the transport goroutines. Output already handed to the writer
// is still written before the stream closes.
func (c *Conn) shut() {
	if c.state == StateClosed {
		return
	}
	c.state = StateClosed
	close(c.done)
	close(c.outq)
	if !c.started {
		c.stream.Close()
	}
}
