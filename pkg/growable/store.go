// Package growable provides an append-only resizable record store with a
// bound default value. Catalogs and the loot database keep their records in
// one of these instead of managing slice capacity by hand.
package growable

import (
	"errors"
	"fmt"
	"iter"
)

// Defaults used when a store is created with a zero Options value.
const (
	DefaultMinCap = 8
	DefaultGrowth = 2
)

// ErrCapacity is returned when growing a store would exceed its MaxCap.
var ErrCapacity = errors.New("growable: capacity exhausted")

// Options configures a store's growth policy.
type Options[T any] struct {
	MinCap int      // capacity allocated on the first append
	Growth int      // capacity multiplier when full
	MaxCap int      // 0 = unbounded
	New    func() T // element constructor; nil = copy Default
}

// Store is a growable array of T. The zero value is not usable; call New.
type Store[T any] struct {
	items  []T
	def    T
	ctor   func() T
	minCap int
	growth int
	maxCap int
}

// New creates an empty store (capacity 0) bound to def.
func New[T any](def T, opts Options[T]) *Store[T] {
	s := &Store[T]{
		def:    def,
		ctor:   opts.New,
		minCap: opts.MinCap,
		growth: opts.Growth,
		maxCap: opts.MaxCap,
	}
	if s.minCap <= 0 {
		s.minCap = DefaultMinCap
	}
	if s.growth < 2 {
		s.growth = DefaultGrowth
	}
	return s
}

// Len returns the number of elements.
func (s *Store[T]) Len() int { return len(s.items) }

// Cap returns the allocated capacity.
func (s *Store[T]) Cap() int { return cap(s.items) }

// Default returns the bound default value.
func (s *Store[T]) Default() T { return s.def }

func (s *Store[T]) fresh() T {
	if s.ctor != nil {
		return s.ctor()
	}
	return s.def
}

func (s *Store[T]) grow() error {
	want := s.minCap
	if c := cap(s.items); c > 0 {
		want = c * s.growth
	}
	if s.maxCap > 0 && want > s.maxCap {
		if cap(s.items) >= s.maxCap {
			return fmt.Errorf("%w (max %d)", ErrCapacity, s.maxCap)
		}
		want = s.maxCap
	}
	next := make([]T, len(s.items), want)
	copy(next, s.items)
	s.items = next
	return nil
}

// AppendDefault adds a default-initialised element and returns a pointer to
// it. The pointer is invalidated by the next growth; do not keep it across
// another append.
func (s *Store[T]) AppendDefault() (*T, error) {
	if len(s.items) == cap(s.items) {
		if err := s.grow(); err != nil {
			return nil, err
		}
	}
	s.items = append(s.items, s.fresh())
	return &s.items[len(s.items)-1], nil
}

// Append adds v to the end of the store.
func (s *Store[T]) Append(v T) error {
	p, err := s.AppendDefault()
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Get returns element i, or the default value when i is out of range.
func (s *Store[T]) Get(i int) T {
	if i < 0 || i >= len(s.items) {
		return s.def
	}
	return s.items[i]
}

// At returns a pointer to element i, or nil when out of range.
func (s *Store[T]) At(i int) *T {
	if i < 0 || i >= len(s.items) {
		return nil
	}
	return &s.items[i]
}

// SetGrowing writes v at index i, appending default elements first until the
// store is long enough.
func (s *Store[T]) SetGrowing(i int, v T) error {
	if i < 0 {
		return fmt.Errorf("growable: negative index %d", i)
	}
	for len(s.items) <= i {
		if _, err := s.AppendDefault(); err != nil {
			return err
		}
	}
	s.items[i] = v
	return nil
}

// Reset drops every element but keeps the allocated capacity.
func (s *Store[T]) Reset() {
	clear(s.items)
	s.items = s.items[:0]
}

// All iterates over index/element pairs in order.
func (s *Store[T]) All() iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		for i, v := range s.items {
			if !yield(i, v) {
				return
			}
		}
	}
}

// Pointers iterates over element pointers; valid only while the caller does
// not append.
func (s *Store[T]) Pointers() iter.Seq[*T] {
	return func(yield func(*T) bool) {
		for i := range s.items {
			if !yield(&s.items[i]) {
				return
			}
		}
	}
}

// Slice returns a copy of the elements.
func (s *Store[T]) Slice() []T {
	out := make([]T, len(s.items))
	copy(out, s.items)
	return out
}
