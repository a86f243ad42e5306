package history

import (
	"sync"
)

// Defaults for the operational limits.
const (
	DefaultCap      = 200
	DefaultPageSize = 20
)

// Config sizes a Store. Zero values take the defaults.
type Config struct {
	Cap      int
	PageSize int

	// Sequencer overrides the id source (tests use a deterministic one).
	Sequencer Sequencer
}

// Store is the per-session, append-only log of execution attempts.
//
// Appends are serialized by a mutex; reads return copies. Entries leave the
// store only through FIFO eviction past Cap or through Clear/Invalidate.
type Store struct {
	mu       sync.Mutex
	entries  []Entry // oldest first
	cap      int
	pageSize int
	seq      Sequencer
}

// New creates an empty store.
func New(cfg Config) *Store {
	if cfg.Cap <= 0 {
		cfg.Cap = DefaultCap
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.Sequencer == nil {
		cfg.Sequencer = NewClock()
	}
	return &Store{
		cap:      cfg.Cap,
		pageSize: cfg.PageSize,
		seq:      cfg.Sequencer,
	}
}

// Record assigns the next id to entry, appends it and evicts the oldest
// entries past the cap. It never fails. The stored entry is returned.
func (s *Store) Record(entry Entry) Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry.ID = s.seq.Next()
	s.entries = append(s.entries, entry)

	if over := len(s.entries) - s.cap; over > 0 {
		kept := make([]Entry, s.cap, s.cap+1)
		copy(kept, s.entries[over:])
		s.entries = kept
	}
	return entry
}

// Len returns the number of retained entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Cap returns the retention cap.
func (s *Store) Cap() int {
	return s.cap
}

// Entries returns all retained entries, newest first.
func (s *Store) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.newestFirst(0, len(s.entries))
}

// Get returns the entry with id.
func (s *Store) Get(id int64) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.entries {
		if s.entries[i].ID == id {
			return s.entries[i], true
		}
	}
	return Entry{}, false
}

// Replay returns the original query text of entry id for re-submission.
// It does not execute anything.
func (s *Store) Replay(id int64) (string, bool) {
	e, ok := s.Get(id)
	if !ok {
		return "", false
	}
	return e.QueryText, true
}

// Clear drops every entry. Ids keep increasing afterwards.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
}

// Invalidate drops every entry at the end of a session.
func (s *Store) Invalidate() {
	s.Clear()
}

// newestFirst copies entries in positions [from, to) of the newest-first view.
// Caller must hold mu.
func (s *Store) newestFirst(from, to int) []Entry {
	out := make([]Entry, 0, to-from)
	n := len(s.entries)
	for i := from; i < to; i++ {
		out = append(out, s.entries[n-1-i])
	}
	return out
}
