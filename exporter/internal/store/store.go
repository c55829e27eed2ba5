package store

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/dirsize/dirsize-exporter/pkg/types"
)

// Entry is a measurement together with the time it was last recorded.
type Entry struct {
	Measurement types.Measurement
	UpdatedAt   time.Time
}

// Store is a thread-safe in-memory measurement store, keyed by labels.
// A background goroutine (Run) periodically evicts entries that have not
// been updated within the configured TTL.
type Store struct {
	mu     sync.RWMutex
	data   map[types.Labels]*Entry
	last   types.Cycle
	cycles int
	ttl    time.Duration
	now    func() time.Time // injectable for deterministic tests

	subs []chan struct{}
}

// New creates a Store with the given TTL.
func New(ttl time.Duration) *Store {
	return &Store{
		data: make(map[types.Labels]*Entry),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Record stores or replaces the measurement for m.Labels.
func (s *Store) Record(m types.Measurement) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[m.Labels] = &Entry{
		Measurement: m,
		UpdatedAt:   s.now(),
	}
}

// CycleDone remembers c as the most recent cycle and wakes every subscriber.
func (s *Store) CycleDone(c types.Cycle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = c
	s.cycles++
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
			// a wakeup is already pending
		}
	}
}

// Subscribe returns a channel that receives a value after each finished
// cycle. Wakeups coalesce: a reader that falls behind sees one pending value,
// not one per cycle.
func (s *Store) Subscribe() <-chan struct{} {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	s.subs = append(s.subs, ch)
	s.mu.Unlock()
	return ch
}

// LastCycle returns the most recent cycle and the number of cycles completed.
// The count is zero until the first cycle finishes.
func (s *Store) LastCycle() (types.Cycle, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last, s.cycles
}

// List returns all entries whose UpdatedAt is within the TTL, ordered by path
// and then base dir.
func (s *Store) List() []*Entry {
	s.mu.RLock()
	cutoff := s.now().Add(-s.ttl)
	out := make([]*Entry, 0, len(s.data))
	for _, e := range s.data {
		if e.UpdatedAt.After(cutoff) {
			out = append(out, e)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Measurement.Labels, out[j].Measurement.Labels
		if a.FullPath != b.FullPath {
			return a.FullPath < b.FullPath
		}
		return a.BaseDir < b.BaseDir
	})
	return out
}

// Count returns the total number of entries currently held, including stale ones.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Evict removes entries whose UpdatedAt is older than now minus TTL.
// It returns the number of entries removed.
func (s *Store) Evict(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := now.Add(-s.ttl)
	removed := 0
	for l, e := range s.data {
		if !e.UpdatedAt.After(cutoff) {
			delete(s.data, l)
			removed++
		}
	}
	return removed
}

// Run starts the background TTL eviction loop. It ticks at half the TTL interval
// (minimum 1 second). Run blocks until ctx is cancelled.
func (s *Store) Run(ctx context.Context) error {
	interval := s.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-t.C:
			if n := s.Evict(now); n > 0 {
				slog.Debug("store: evicted stale measurements", "count", n, "remaining", s.Count())
			}
		}
	}
}
