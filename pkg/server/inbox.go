package server

import (
	"context"
	"errors"
	"log"
)

// ErrStopped is returned by Inbox.Call once the loop has stopped.
var ErrStopped = errors.New("server: loop stopped")

// Inbox carries work from other goroutines (HTTP handlers, file watchers)
// onto the loop goroutine, which runs it between ticks.
type Inbox struct {
	ch      chan func()
	stopped chan struct{}
	wake    func()
}

func newInbox(depth int, wake func()) *Inbox {
	return &Inbox{
		ch:      make(chan func(), depth),
		stopped: make(chan struct{}),
		wake:    wake,
	}
}

// Post queues fn without waiting. It reports false if the inbox is full or
// the loop has stopped.
func (in *Inbox) Post(fn func()) bool {
	select {
	case <-in.stopped:
		return false
	default:
	}
	select {
	case in.ch <- fn:
		in.wake()
		return true
	default:
		log.Printf("WARNING: server inbox full, dropping work")
		return false
	}
}

// Call runs fn on the loop goroutine and waits for it to finish.
func (in *Inbox) Call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	wrapped := func() {
		defer close(done)
		fn()
	}
	select {
	case in.ch <- wrapped:
		in.wake()
	case <-in.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-in.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// drain runs everything queued right now.
func (in *Inbox) drain() int {
	n := 0
	for {
		select {
		case fn := <-in.ch:
			fn()
			n++
		default:
			return n
		}
	}
}

func (in *Inbox) stop() { close(in.stopped) }
