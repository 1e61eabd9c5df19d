package shared

import (
	"errors"
	"sync"

	"go.uber.org/atomic"
)

const (
	// DefaultTickSnapshotSize is the default maximum number of entries for a tick snapshot.
	DefaultTickSnapshotSize = 60
)

// TickSnapshot represents a bounded, insertion-ordered snapshot of the most
// recent ticks for a market. Pushing past capacity evicts the oldest entry.
type TickSnapshot struct {
	data    []Tick
	dataMtx sync.RWMutex
	start   atomic.Int32
	count   atomic.Int32
	size    atomic.Int32
}

// NewTickSnapshot initializes a new tick snapshot.
func NewTickSnapshot(size int32) (*TickSnapshot, error) {
	if size < 0 {
		return nil, errors.New("snapshot size cannot be negative")
	}
	if size == 0 {
		return nil, errors.New("snapshot size cannot be zero")
	}

	snapshot := &TickSnapshot{
		data: make([]Tick, size),
	}

	snapshot.size.Store(size)
	return snapshot, nil
}

// Update adds the provided tick to the snapshot.
func (s *TickSnapshot) Update(tick Tick) {
	s.dataMtx.Lock()
	defer s.dataMtx.Unlock()

	start := s.start.Load()
	count := s.count.Load()
	size := s.size.Load()
	end := (start + count) % size
	s.data[end] = tick

	if count == size {
		// Overwrite the oldest entry when the snapshot is at capacity.
		s.start.Store((start + 1) % size)
	} else {
		s.count.Add(1)
	}
}

// ReplaceLast overwrites the most recent entry with the provided tick. It
// reports whether a replacement took place, which requires a non-empty
// snapshot. Used to apply the last-write-wins policy for ticks sharing a
// timestamp.
func (s *TickSnapshot) ReplaceLast(tick Tick) bool {
	s.dataMtx.Lock()
	defer s.dataMtx.Unlock()

	start := s.start.Load()
	count := s.count.Load()
	size := s.size.Load()
	if count == 0 {
		return false
	}

	end := (start + count - 1) % size
	s.data[end] = tick
	return true
}

// Last returns the last added entry for the snapshot.
func (s *TickSnapshot) Last() (Tick, bool) {
	s.dataMtx.RLock()
	defer s.dataMtx.RUnlock()

	start := s.start.Load()
	count := s.count.Load()
	size := s.size.Load()
	if count == 0 {
		return Tick{}, false
	}

	end := (start + count - 1) % size
	return s.data[end], true
}

// LastN fetches the last n number of elements from the snapshot, ordered
// oldest to newest.
func (s *TickSnapshot) LastN(n int32) []Tick {
	s.dataMtx.RLock()
	defer s.dataMtx.RUnlock()

	if n <= 0 {
		return nil
	}

	start := s.start.Load()
	count := s.count.Load()
	size := s.size.Load()

	// Clamp the number of elements expected if it is greater than the snapshot count.
	if n > count {
		n = count
	}

	set := make([]Tick, n)
	start = (start + count - n + size) % size

	for i := range n {
		idx := (start + i) % size
		set[i] = s.data[idx]
	}

	return set
}

// All returns every entry in the snapshot, ordered oldest to newest.
func (s *TickSnapshot) All() []Tick {
	return s.LastN(s.count.Load())
}

// Count returns the number of entries currently held by the snapshot.
func (s *TickSnapshot) Count() int32 {
	return s.count.Load()
}
