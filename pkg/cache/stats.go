package cache

import (
	"sync/atomic"
)

// Statistics tracks cache performance counters. All methods are safe
// for concurrent use.
type Statistics struct {
	hits    atomic.Int64
	misses  atomic.Int64
	sets    atomic.Int64
	deletes atomic.Int64

	currentSize atomic.Int64
	maxSize     atomic.Int64
}

// NewStatistics creates a new statistics tracker.
func NewStatistics() *Statistics {
	return &Statistics{}
}

// Hit records a cache hit.
func (s *Statistics) Hit() {
	s.hits.Add(1)
}

// Miss records a cache miss.
func (s *Statistics) Miss() {
	s.misses.Add(1)
}

// Set records a cache set operation.
func (s *Statistics) Set() {
	s.sets.Add(1)
}

// Delete records a cache delete operation.
func (s *Statistics) Delete() {
	s.deletes.Add(1)
}

// UpdateSize updates the current cache size.
func (s *Statistics) UpdateSize(size int64) {
	s.currentSize.Store(size)
	for {
		max := s.maxSize.Load()
		if size <= max || s.maxSize.CompareAndSwap(max, size) {
			return
		}
	}
}

// Hits returns the total number of cache hits.
func (s *Statistics) Hits() int64 {
	return s.hits.Load()
}

// Misses returns the total number of cache misses.
func (s *Statistics) Misses() int64 {
	return s.misses.Load()
}

// Sets returns the total number of set operations.
func (s *Statistics) Sets() int64 {
	return s.sets.Load()
}

// Deletes returns the total number of delete operations.
func (s *Statistics) Deletes() int64 {
	return s.deletes.Load()
}

// Size returns the current number of entries.
func (s *Statistics) Size() int64 {
	return s.currentSize.Load()
}

// MaxSize returns the high-water mark of entries.
func (s *Statistics) MaxSize() int64 {
	return s.maxSize.Load()
}

// HitRate returns the fraction of lookups served from cache, in [0, 1].
func (s *Statistics) HitRate() float64 {
	hits := s.Hits()
	total := hits + s.Misses()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
