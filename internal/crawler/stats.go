package crawler

import (
	"fmt"
	"sync"
)

// Stats aggregates worker counters. One instance is shared by all workers
// of a run.
type Stats struct {
	mu         sync.Mutex
	calls      int
	saved      int
	skipped    int
	failed     int
	matched    int
	mismatched int
}

// Snapshot is a consistent copy of the counters.
type Snapshot struct {
	Calls      int
	Saved      int
	Skipped    int
	Failed     int
	Matched    int
	Mismatched int
}

func NewStats() *Stats {
	return &Stats{}
}

// TryCall consumes one unit of the call budget under the lock, so
// concurrent workers cannot overshoot max. max <= 0 means unlimited.
func (s *Stats) TryCall(max int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if max > 0 && s.calls >= max {
		return false
	}
	s.calls++
	return true
}

// Calls returns the number of upstream fetch calls made so far. Workers
// consult it against the per-run call budget.
func (s *Stats) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *Stats) AddSaved() {
	s.mu.Lock()
	s.saved++
	s.mu.Unlock()
}

func (s *Stats) AddSkipped() {
	s.mu.Lock()
	s.skipped++
	s.mu.Unlock()
}

func (s *Stats) AddFailed() {
	s.mu.Lock()
	s.failed++
	s.mu.Unlock()
}

func (s *Stats) AddMatched() {
	s.mu.Lock()
	s.matched++
	s.mu.Unlock()
}

func (s *Stats) AddMismatched() {
	s.mu.Lock()
	s.mismatched++
	s.mu.Unlock()
}

func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Calls:      s.calls,
		Saved:      s.saved,
		Skipped:    s.skipped,
		Failed:     s.failed,
		Matched:    s.matched,
		Mismatched: s.mismatched,
	}
}

func (snap Snapshot) String() string {
	return fmt.Sprintf("calls=%d saved=%d skipped=%d failed=%d matched=%d mismatched=%d",
		snap.Calls, snap.Saved, snap.Skipped, snap.Failed, snap.Matched, snap.Mismatched)
}
