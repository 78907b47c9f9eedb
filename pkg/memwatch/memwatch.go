// Package memwatch snapshots raw memory regions and reports when they change.
// It is a debugging aid for chasing stray writes into long-lived world state;
// nothing depends on it outside debug builds of the server loop.
package memwatch

import (
	"bytes"
	"fmt"
	"sort"
	"unsafe"
)

// maxReported caps the number of differing offsets listed per region.
const maxReported = 8

// Divergence describes a watched region that no longer matches its snapshot.
type Divergence struct {
	Name    string
	Offsets []int // first differing offsets, up to maxReported
	Old     []byte
	New     []byte
	Total   int // total differing bytes
}

// String renders the divergence for a log line.
func (d Divergence) String() string {
	s := fmt.Sprintf("watch %q: %d byte(s) changed", d.Name, d.Total)
	for i, off := range d.Offsets {
		s += fmt.Sprintf(" [+%d %02x->%02x]", off, d.Old[i], d.New[i])
	}
	return s
}

type watch struct {
	live []byte
	snap []byte
}

// Set is a collection of named watchpoints.
type Set struct {
	watches map[string]*watch
}

// NewSet returns an empty watchpoint set.
func NewSet() *Set {
	return &Set{watches: make(map[string]*watch)}
}

// Watch snapshots region under name. The region must stay reachable for as
// long as it is watched.
func (s *Set) Watch(name string, region []byte) {
	s.watches[name] = &watch{live: region, snap: bytes.Clone(region)}
}

// WatchValue watches the raw bytes of *p. Only the value itself is covered,
// not memory it points to.
func WatchValue[T any](s *Set, name string, p *T) {
	size := unsafe.Sizeof(*p)
	if size == 0 {
		return
	}
	region := unsafe.Slice((*byte)(unsafe.Pointer(p)), size)
	s.Watch(name, region)
}

// Unwatch removes a watchpoint.
func (s *Set) Unwatch(name string) {
	delete(s.watches, name)
}

// Len returns the number of watchpoints.
func (s *Set) Len() int { return len(s.watches) }

// Check compares every region with its snapshot, sorted by name.
func (s *Set) Check() []Divergence {
	var out []Divergence
	for name, w := range s.watches {
		if bytes.Equal(w.live, w.snap) {
			continue
		}
		d := Divergence{Name: name}
		for i := range w.live {
			if w.live[i] == w.snap[i] {
				continue
			}
			d.Total++
			if len(d.Offsets) < maxReported {
				d.Offsets = append(d.Offsets, i)
				d.Old = append(d.Old, w.snap[i])
				d.New = append(d.New, w.live[i])
			}
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Rebase takes fresh snapshots of every region, accepting current contents.
func (s *Set) Rebase() {
	for _, w := range s.watches {
		copy(w.snap, w.live)
	}
}
