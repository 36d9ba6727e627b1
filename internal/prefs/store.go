// Package prefs holds the item names the chat wants to be notified about.
//
// There is a single namespace shared by every recipient. The set lives
// behind a Backend so a per-recipient or persistent store can replace the
// in-memory default without touching callers.
package prefs

import (
	"sort"
	"sync"
)

// Backend stores raw item names. Implementations need not be safe for
// concurrent use; Store serializes every call.
type Backend interface {
	Has(name string) bool
	Add(name string)
	Remove(name string)
	All() []string
}

type Outcome int

const (
	Added Outcome = iota + 1
	Removed
)

func (o Outcome) String() string {
	switch o {
	case Added:
		return "added"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

type Store struct {
	mu sync.Mutex
	b  Backend
}

// New returns a store over b, or over an in-memory set when b is nil.
func New(b Backend) *Store {
	if b == nil {
		b = NewMemory()
	}
	return &Store{b: b}
}

// Toggle flips membership of name, compared by exact raw value.
func (s *Store) Toggle(name string) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.b.Has(name) {
		s.b.Remove(name)
		return Removed
	}
	s.b.Add(name)
	return Added
}

// List returns the names sorted.
func (s *Store) List() []string {
	out := s.Names()
	sort.Strings(out)
	return out
}

// Names returns an unordered copy of the set.
func (s *Store) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.b.All()...)
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.b.All())
}

func (s *Store) IsEmpty() bool { return s.Len() == 0 }

func (s *Store) Has(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Has(name)
}
