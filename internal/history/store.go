// Package history keeps the bounded, newest-first log of completed
// verifications and the analytics derived from it.
package history

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/ppiankov/factstrip/internal/model"
)

// DefaultCapacity is how many entries are retained
const DefaultCapacity = 50

// Persister durably stores the whole log. Implementations absorb their own failures.
type Persister interface {
	Load() []model.HistoryEntry
	Save(entries []model.HistoryEntry)
	Delete()
}

// ExplainFunc computes a fresh explanation for a statement
type ExplainFunc func(ctx context.Context, statement string) (model.Explanation, error)

// Store is the in-memory source of truth for history. Each mutation runs to
// completion under the store lock: update list, persist, recompute analytics.
type Store struct {
	mu        sync.Mutex
	entries   []model.HistoryEntry
	analytics model.Analytics
	persister Persister
	capacity  int
	logger    *zap.Logger
}

// Open creates a store and restores whatever the persister holds
func Open(p Persister, capacity int, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	entries := p.Load()
	if len(entries) > capacity {
		entries = entries[:capacity]
	}

	s := &Store{
		entries:   entries,
		analytics: ComputeAnalytics(entries),
		persister: p,
		capacity:  capacity,
		logger:    logger.Named("history"),
	}
	s.logger.Debug("history restored", zap.Int("entries", len(entries)))
	return s
}

// Add records a completed verification as the newest entry
func (s *Store) Add(result model.VerificationResult) model.HistoryEntry {
	entry := model.NewHistoryEntry(result)

	s.mu.Lock()
	defer s.mu.Unlock()

	keep := len(s.entries)
	if keep > s.capacity-1 {
		keep = s.capacity - 1
	}
	next := make([]model.HistoryEntry, 0, keep+1)
	next = append(next, entry)
	next = append(next, s.entries[:keep]...)

	if evicted := len(s.entries) - keep; evicted > 0 {
		s.logger.Debug("history full, evicting oldest", zap.Int("evicted", evicted))
	}

	s.commit(next)
	return entry
}

// Remove deletes the entry with id. It reports whether anything was removed.
func (s *Store) Remove(id model.EntryID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]model.HistoryEntry, 0, len(s.entries))
	for _, e := range s.entries {
		if e.ID != id {
			next = append(next, e)
		}
	}
	if len(next) == len(s.entries) {
		return false
	}

	s.commit(next)
	return true
}

// ClearAll empties the history and deletes the persisted record
func (s *Store) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = []model.HistoryEntry{}
	s.analytics = model.Analytics{}
	s.persister.Delete()
}

// GetByID returns the entry with id, if present
func (s *Store) GetByID(id model.EntryID) (model.HistoryEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return model.HistoryEntry{}, false
	}
	return s.entries[i], true
}

// Entries returns a copy of the history, newest first
func (s *Store) Entries() []model.HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.HistoryEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Analytics returns the counters for the current history
func (s *Store) Analytics() model.Analytics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.analytics
}

// Len returns the number of retained entries
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// RegenerateExplanation recomputes the explanation of entry id using compute.
//
// It returns (nil, nil) when the entry does not exist, or no longer exists
// once compute returns. A failing compute leaves the entry untouched and its
// error is returned.
func (s *Store) RegenerateExplanation(ctx context.Context, id model.EntryID, compute ExplainFunc) (*model.HistoryEntry, error) {
	entry, ok := s.GetByID(id)
	if !ok {
		return nil, nil
	}

	// compute may block on the network, so it runs without the lock
	explanation, err := compute(ctx, entry.Statement)
	if err != nil {
		return nil, fmt.Errorf("regenerate explanation: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		s.logger.Debug("entry removed while explanation was computed", zap.String("id", string(id)))
		return nil, nil
	}

	updated := s.entries[i].WithExplanation(explanation)
	next := make([]model.HistoryEntry, len(s.entries))
	copy(next, s.entries)
	next[i] = updated

	s.commit(next)
	return &updated, nil
}

// commit installs next, persists it and recomputes analytics. Caller holds mu.
func (s *Store) commit(next []model.HistoryEntry) {
	s.entries = next
	s.persister.Save(next)
	s.analytics = ComputeAnalytics(next)
}

func (s *Store) indexOf(id model.EntryID) int {
	for i, e := range s.entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}
