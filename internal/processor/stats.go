package processor

import "sync"

// Stats accumulates run-level counters across documents. Monotonically
// appended; safe for concurrent readers and writers behind one mutex.
type Stats struct {
	mu sync.Mutex

	processed  int
	failed     int
	cacheHits  int
	qualitySum float64
}

// Snapshot is a consistent read of the accumulated statistics.
type Snapshot struct {
	Processed      int
	Failed         int
	CacheHits      int
	AverageQuality float64 // mean aggregate quality over successful runs
}

func (s *Stats) recordSuccess(aggregateQuality float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed++
	s.qualitySum += aggregateQuality
}

func (s *Stats) recordFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed++
	s.failed++
}

func (s *Stats) recordCacheHit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cacheHits++
}

// Snapshot returns the current totals.
func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		Processed: s.processed,
		Failed:    s.failed,
		CacheHits: s.cacheHits,
	}
	if ok := s.processed - s.failed; ok > 0 {
		snap.AverageQuality = s.qualitySum / float64(ok)
	}
	return snap
}
