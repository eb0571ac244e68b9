// Package snapshot implements the per-file optimistic concurrency control
// primitive: a content digest recorded per (path, holder) pair at capture
// time, later re-verified against the content on disk.
package snapshot

import (
	"os"
	"sync"
	"time"

	"github.com/orchestra-core/ledger/internal/hashutil"
)

// Snapshot is a single recorded (path, holder) baseline.
type Snapshot struct {
	Path      string
	Holder    string
	Digest    string
	CapturedAt time.Time
}

// Store is an in-memory map of file path to per-holder snapshots, guarded by
// a single mutex. Time is read from an injectable clock so tests can control
// sweeping deterministically.
type Store struct {
	mu   sync.Mutex
	byPath map[string]map[string]Snapshot
	now  func() time.Time
}

// New returns an empty Store using the real wall clock.
func New() *Store {
	return &Store{
		byPath: make(map[string]map[string]Snapshot),
		now:    time.Now,
	}
}

// NewWithClock returns an empty Store using an injected clock, for tests.
func NewWithClock(now func() time.Time) *Store {
	return &Store{
		byPath: make(map[string]map[string]Snapshot),
		now:    now,
	}
}

// Capture records the digest of content under (path, holder), overwriting
// any existing entry for that pair and refreshing its timestamp.
func (s *Store) Capture(path, content, holder string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	holders, ok := s.byPath[path]
	if !ok {
		holders = make(map[string]Snapshot)
		s.byPath[path] = holders
	}
	holders[holder] = Snapshot{
		Path:       path,
		Holder:     holder,
		Digest:     hashutil.Digest(content),
		CapturedAt: s.now(),
	}
}

// CaptureFromDisk reads path from disk and captures its digest under holder.
// A read failure is returned to the caller, who is expected to swallow it.
func (s *Store) CaptureFromDisk(path, holder string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	s.Capture(path, string(content), holder)
	return nil
}

// Verify reports whether the on-disk content at path still matches the
// digest recorded for (path, holder). If no snapshot exists for that pair,
// Verify returns true: no prior read implies no stale contract. Any read
// failure is treated as stale and returns false. Verify never refreshes the
// stored digest, so repeated calls within the same baseline still detect an
// intervening external mutation.
func (s *Store) Verify(path, holder string) bool {
	s.mu.Lock()
	holders, ok := s.byPath[path]
	var existing Snapshot
	if ok {
		existing, ok = holders[holder]
	}
	s.mu.Unlock()

	if !ok {
		return true
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return false
	}

	return hashutil.Digest(string(content)) == existing.Digest
}

// Release removes the snapshot for (path, holder), but only if it belongs to
// holder.
func (s *Store) Release(path, holder string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	holders, ok := s.byPath[path]
	if !ok {
		return
	}
	delete(holders, holder)
	if len(holders) == 0 {
		delete(s.byPath, path)
	}
}

// ReleaseAll removes every snapshot belonging to holder, across all paths.
func (s *Store) ReleaseAll(holder string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for path, holders := range s.byPath {
		delete(holders, holder)
		if len(holders) == 0 {
			delete(s.byPath, path)
		}
	}
}

// Sweep removes every snapshot older than maxAge, as measured against the
// store's clock.
func (s *Store) Sweep(maxAge time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-maxAge)
	for path, holders := range s.byPath {
		for holder, snap := range holders {
			if snap.CapturedAt.Before(cutoff) {
				delete(holders, holder)
			}
		}
		if len(holders) == 0 {
			delete(s.byPath, path)
		}
	}
}

// Run starts a background sweeper that calls Sweep(maxAge) every interval,
// until the returned stop function is called. The sweeper goroutine is
// independent of the store's clock advancing in real time.
func (s *Store) Run(interval, maxAge time.Duration) (stop func()) {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				s.Sweep(maxAge)
			case <-done:
				return
			}
		}
	}()

	return func() {
		ticker.Stop()
		close(done)
	}
}
