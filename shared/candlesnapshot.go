package shared

import (
	"errors"
	"sync"

	"go.uber.org/atomic"
)

const (
	// DefaultCandleSnapshotSize is the default maximum number of completed
	// candles retained per market and granularity.
	DefaultCandleSnapshotSize = 120
)

// CandleSnapshot represents a bounded, insertion-ordered snapshot of completed
// candles. Pushing past capacity evicts the oldest entry.
type CandleSnapshot struct {
	data    []Candle
	dataMtx sync.RWMutex
	start   atomic.Int32
	count   atomic.Int32
	size    atomic.Int32
}

// NewCandleSnapshot initializes a new candle snapshot.
func NewCandleSnapshot(size int32) (*CandleSnapshot, error) {
	if size < 0 {
		return nil, errors.New("snapshot size cannot be negative")
	}
	if size == 0 {
		return nil, errors.New("snapshot size cannot be zero")
	}

	snapshot := &CandleSnapshot{
		data: make([]Candle, size),
	}

	snapshot.size.Store(size)
	return snapshot, nil
}

// Update adds the provided candle to the snapshot.
func (s *CandleSnapshot) Update(candle Candle) {
	s.dataMtx.Lock()
	defer s.dataMtx.Unlock()

	start := s.start.Load()
	count := s.count.Load()
	size := s.size.Load()
	end := (start + count) % size
	s.data[end] = candle

	if count == size {
		// Overwrite the oldest entry when the snapshot is at capacity.
		s.start.Store((start + 1) % size)
	} else {
		s.count.Add(1)
	}
}

// Reset discards the snapshot contents and installs the provided candles,
// keeping only the most recent entries when they exceed capacity.
func (s *CandleSnapshot) Reset(candles []Candle) {
	s.dataMtx.Lock()

	size := s.size.Load()
	if int32(len(candles)) > size {
		candles = candles[int32(len(candles))-size:]
	}

	copy(s.data, candles)
	s.start.Store(0)
	s.count.Store(int32(len(candles)))

	s.dataMtx.Unlock()
}

// Last returns the last added entry for the snapshot.
func (s *CandleSnapshot) Last() (Candle, bool) {
	s.dataMtx.RLock()
	defer s.dataMtx.RUnlock()

	start := s.start.Load()
	count := s.count.Load()
	size := s.size.Load()
	if count == 0 {
		return Candle{}, false
	}

	end := (start + count - 1) % size
	return s.data[end], true
}

// LastN fetches the last n number of elements from the snapshot, ordered
// oldest to newest.
func (s *CandleSnapshot) LastN(n int32) []Candle {
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

	set := make([]Candle, n)
	start = (start + count - n + size) % size

	for i := range n {
		idx := (start + i) % size
		set[i] = s.data[idx]
	}

	return set
}

// All returns every entry in the snapshot, ordered oldest to newest.
func (s *CandleSnapshot) All() []Candle {
	return s.LastN(s.count.Load())
}

// Count returns the number of entries currently held by the snapshot.
func (s *CandleSnapshot) Count() int32 {
	return s.count.Load()
}
