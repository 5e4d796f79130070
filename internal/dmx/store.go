// Package dmx holds the latest received frame per universe.
package dmx

import "sync"

// Store is a last-write-wins cache of raw DMX frames keyed by universe.
// Entries persist until the process exits.
type Store struct {
	mu     sync.RWMutex
	frames map[uint16][]byte
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		frames: make(map[uint16][]byte),
	}
}

// Update overwrites the frame for a universe. The data is copied, so the
// caller may reuse its buffer.
func (s *Store) Update(universe uint16, data []byte) {
	frame := make([]byte, len(data))
	copy(frame, data)

	s.mu.Lock()
	s.frames[universe] = frame
	s.mu.Unlock()
}

// Get returns a copy of the latest frame for a universe.
func (s *Store) Get(universe uint16) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	frame, ok := s.frames[universe]
	if !ok {
		return nil, false
	}
	out := make([]byte, len(frame))
	copy(out, frame)
	return out, true
}

// All returns a snapshot of every universe's latest frame.
func (s *Store) All() map[uint16][]byte {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[uint16][]byte, len(s.frames))
	for universe, frame := range s.frames {
		copied := make([]byte, len(frame))
		copy(copied, frame)
		out[universe] = copied
	}
	return out
}
