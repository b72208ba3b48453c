// Package slots holds the fixed set of photo slots of the booth.
package slots

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cjeanneret/photobooth/internal/logic/capture"
)

var (
	// ErrOutOfRange is returned for an index outside [0, N).
	ErrOutOfRange = errors.New("slot index out of range")
	// ErrSlotFilled is returned when writing a slot that already holds a still.
	ErrSlotFilled = errors.New("slot already filled")
)

// Store holds N slots. Its size never changes; a filled slot is immutable
// until Clear.
type Store struct {
	mu     sync.RWMutex
	stills []*capture.Still
}

// NewStore creates a store with n empty slots.
func NewStore(n int) *Store {
	return &Store{stills: make([]*capture.Still, n)}
}

// Len returns the number of slots.
func (s *Store) Len() int {
	return len(s.stills)
}

// Set fills slot i.
func (s *Store) Set(i int, still *capture.Still) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.stills) {
		return fmt.Errorf("set slot %d: %w", i, ErrOutOfRange)
	}
	if s.stills[i] != nil {
		return fmt.Errorf("set slot %d: %w", i, ErrSlotFilled)
	}
	s.stills[i] = still
	return nil
}

// Get returns the still of slot i, or nil if the slot is empty.
func (s *Store) Get(i int) (*capture.Still, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i < 0 || i >= len(s.stills) {
		return nil, fmt.Errorf("get slot %d: %w", i, ErrOutOfRange)
	}
	return s.stills[i], nil
}

// Filled returns how many slots hold a still.
func (s *Store) Filled() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, st := range s.stills {
		if st != nil {
			n++
		}
	}
	return n
}

// AllFilled reports whether every slot holds a still.
func (s *Store) AllFilled() bool {
	return s.Filled() == len(s.stills)
}

// FilledFlags returns one flag per slot.
func (s *Store) FilledFlags() []bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	flags := make([]bool, len(s.stills))
	for i, st := range s.stills {
		flags[i] = st != nil
	}
	return flags
}

// Snapshot returns the current stills in slot order (nil for empty slots).
func (s *Store) Snapshot() []*capture.Still {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*capture.Still, len(s.stills))
	copy(out, s.stills)
	return out
}

// Clear empties every slot.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.stills {
		s.stills[i] = nil
	}
}
