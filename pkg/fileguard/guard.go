// Package fileguard keeps one spare file descriptor in reserve so the server
// can always write an emergency diagnostic, even when it is close to its
// descriptor limit. The reserve is held on the null device while no real file
// is open and is given up for the duration of each real open.
package fileguard

import (
	"fmt"
	"log"
	"os"
	"sync"
)

// Guard serialises real file opens through the reserve descriptor.
type Guard struct {
	mu       sync.Mutex
	reserve  *os.File
	open     int
	nullPath string
}

// New opens the reserve descriptor.
func New() (*Guard, error) {
	g := &Guard{nullPath: os.DevNull}
	if err := g.reopenReserve(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Guard) reopenReserve() error {
	f, err := os.OpenFile(g.nullPath, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("fileguard: open reserve %s: %w", g.nullPath, err)
	}
	g.reserve = f
	return nil
}

func (g *Guard) releaseReserve() {
	if g.reserve != nil {
		g.reserve.Close()
		g.reserve = nil
	}
}

// Open opens a real file. The reserve is released before the first real open
// and restored if that open fails.
func (g *Guard) Open(path string, flag int, perm os.FileMode) (*os.File, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.open == 0 {
		g.releaseReserve()
	}
	f, err := os.OpenFile(path, flag, perm)
	if err != nil {
		if g.open == 0 {
			if rerr := g.reopenReserve(); rerr != nil {
				log.Printf("WARNING: %v", rerr)
			}
		}
		return nil, err
	}
	g.open++
	return f, nil
}

// Close closes a file opened with Open and restores the reserve once no real
// file remains open.
func (g *Guard) Close(f *os.File) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	err := f.Close()
	if g.open > 0 {
		g.open--
	}
	if g.open == 0 && g.reserve == nil {
		if rerr := g.reopenReserve(); rerr != nil {
			log.Printf("WARNING: %v", rerr)
		}
	}
	return err
}

// OpenCount returns the number of real files currently open.
func (g *Guard) OpenCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.open
}

// ReserveHeld reports whether the reserve descriptor is open.
func (g *Guard) ReserveHeld() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.reserve != nil
}

// Emergency gives up the reserve to fn, which may open one file (for example
// a crash log), then takes the reserve back. It is a no-op while real files
// are open, since the reserve is already spent.
func (g *Guard) Emergency(fn func()) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.reserve == nil {
		return false
	}
	g.releaseReserve()
	fn()
	if err := g.reopenReserve(); err != nil {
		log.Printf("WARNING: %v", err)
	}
	return true
}

// Shutdown closes the reserve descriptor.
func (g *Guard) Shutdown() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.releaseReserve()
}
