package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/facultyload/facultyload/pkg/types"
)

// Snapshot origins.
const (
	OriginLive = "live"
	OriginDemo = "demo"
)

// Snapshot is the outcome of one pipeline run.
type Snapshot struct {
	ID          string
	GeneratedAt time.Time
	// Origin is OriginLive for upstream data, OriginDemo for the fallback set.
	Origin  string
	Records []types.Record
	// Rejected counts rows dropped because an hours value was unreadable.
	Rejected int
	// Error explains why the fallback was used, or lists rejected rows.
	Error string
}

// Entry is a snapshot together with the time it was stored.
type Entry struct {
	Snapshot  *Snapshot
	UpdatedAt time.Time
}

// Store is a thread-safe in-memory history of snapshots, newest last.
// It holds at most keep entries; Run evicts entries older than the TTL.
type Store struct {
	mu      sync.RWMutex
	entries []*Entry
	keep    int
	ttl     time.Duration
	now     func() time.Time // injectable for deterministic tests
}

// New creates a Store with the given TTL and capacity.
func New(ttl time.Duration, keep int) *Store {
	if keep <= 0 {
		keep = 1
	}
	return &Store{
		keep: keep,
		ttl:  ttl,
		now:  time.Now,
	}
}

// TTL returns the configured time-to-live.
func (s *Store) TTL() time.Duration { return s.ttl }

// Put appends snap, dropping the oldest entry when the store is full.
// Callers must not modify snap after calling Put.
func (s *Store) Put(snap *Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, &Entry{Snapshot: snap, UpdatedAt: s.now()})
	if over := len(s.entries) - s.keep; over > 0 {
		s.entries = append(s.entries[:0:0], s.entries[over:]...)
	}
}

// Latest returns the newest entry that is still within the TTL.
func (s *Store) Latest() (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.entries) == 0 {
		return nil, false
	}
	e := s.entries[len(s.entries)-1]
	if !s.live(e) {
		return nil, false
	}
	return e, true
}

// LatestLive returns the newest live-origin entry within the TTL.
func (s *Store) LatestLive() (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if !s.live(e) {
			break
		}
		if e.Snapshot.Origin == OriginLive {
			return e, true
		}
	}
	return nil, false
}

// Get returns the entry with the given snapshot ID. It may be stale.
func (s *Store) Get(id string) (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries {
		if e.Snapshot.ID == id {
			return e, true
		}
	}
	return nil, false
}

// List returns all entries within the TTL, newest first.
func (s *Store) List() []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Entry, 0, len(s.entries))
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.live(s.entries[i]) {
			out = append(out, s.entries[i])
		}
	}
	return out
}

// Count returns the number of entries currently held, including stale ones.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Evict removes entries whose UpdatedAt is older than now minus TTL and
// returns how many were removed. A zero TTL disables eviction.
func (s *Store) Evict(now time.Time) int {
	if s.ttl <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := now.Add(-s.ttl)
	kept := s.entries[:0]
	for _, e := range s.entries {
		if e.UpdatedAt.After(cutoff) {
			kept = append(kept, e)
		}
	}
	removed := len(s.entries) - len(kept)
	for i := len(kept); i < len(s.entries); i++ {
		s.entries[i] = nil
	}
	s.entries = kept
	return removed
}

// Run starts the background TTL eviction loop. It ticks at half the TTL
// (minimum 1 second) and blocks until ctx is cancelled.
func (s *Store) Run(ctx context.Context) {
	if s.ttl <= 0 {
		<-ctx.Done()
		return
	}
	interval := s.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := s.Evict(now); n > 0 {
				slog.Debug("store: evicted stale snapshots", "count", n)
			}
		}
	}
}

func (s *Store) live(e *Entry) bool {
	return s.ttl <= 0 || e.UpdatedAt.After(s.now().Add(-s.ttl))
}
