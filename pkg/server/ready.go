package server

import (
	"context"
	"time"
)

// ReadySet is the result of one readiness wait.
type ReadySet struct {
	Control     bool // a connection is waiting to be accepted
	Readable    []*Conn
	Writable    []*Conn
	Exceptional []*Conn
	// Lines lists established connections with a complete buffered line.
	Lines []*Conn
	Max   int // connections examined
}

// Empty reports whether nothing needs service.
func (rs *ReadySet) Empty() bool {
	return !rs.Control && len(rs.Readable) == 0 && len(rs.Writable) == 0 &&
		len(rs.Exceptional) == 0 && len(rs.Lines) == 0
}

// readySet builds a fresh set from the listener queue and every live
// connection.
func (s *Server) readySet() ReadySet {
	rs := ReadySet{Control: len(s.pending) > 0, Max: len(s.conns)}
	for _, c := range s.conns {
		if c.readable() {
			rs.Readable = append(rs.Readable, c)
		}
		if c.writable() {
			rs.Writable = append(rs.Writable, c)
		}
		if c.exceptional() {
			rs.Exceptional = append(rs.Exceptional, c)
		}
		if c.hasLine() {
			rs.Lines = append(rs.Lines, c)
		}
	}
	return rs
}

// poll waits up to timeout for anything to become ready. The wait is always
// bounded so the world keeps ticking with no connections.
func (s *Server) poll(ctx context.Context, timeout time.Duration) ReadySet {
	rs := s.readySet()
	if !rs.Empty() || len(s.inbox.ch) > 0 {
		return rs
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-s.wakeCh:
	case <-timer.C:
	case <-ctx.Done():
	}
	return s.readySet()
}

// signal wakes a poll in progress. It never blocks.
func (s *Server) signal() {
	select {
	case s.wakeCh <- struct{}{}:
	default:
	}
}
