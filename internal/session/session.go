// Package session wires the request controller, history and explanation
// service into the one object presentation layers observe.
package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/factstrip/internal/explain"
	"github.com/ppiankov/factstrip/internal/history"
	"github.com/ppiankov/factstrip/internal/model"
	"github.com/ppiankov/factstrip/internal/persist"
	"github.com/ppiankov/factstrip/internal/store"
	"github.com/ppiankov/factstrip/internal/verify"
)

// ErrNotFound is returned for operations on an id that is not in history
var ErrNotFound = errors.New("history entry not found")

// ErrorView is the visible error of the latest request
type ErrorView struct {
	Kind    verify.Kind `json:"kind"`
	Message string      `json:"message"`
}

// Snapshot is everything presentation reads
type Snapshot struct {
	State     string                    `json:"state"`
	Result    *model.VerificationResult `json:"result"`
	Error     *ErrorView                `json:"error"`
	IsLoading bool                      `json:"isLoading"`
	History   []model.HistoryEntry      `json:"history"`
	Analytics model.Analytics           `json:"analytics"`
}

// Options configure a Session
type Options struct {
	Backend     verify.Backend   // required
	Store       store.Store      // required, closed by Session.Close
	Explainer   *explain.Service // nil means fallback explanations only
	FillMissing bool             // ask the explainer when the backend sent no explanation
	Persist     persist.Options
	Timeout     time.Duration
	Logger      *zap.Logger

	// test hooks
	Now   func() time.Time
	NewID func() string
}

// Session is the shared state of one user session
type Session struct {
	controller *verify.Controller
	backend    verify.Backend
	detached   verify.Options
	history    *history.Store
	explainer  *explain.Service
	store      store.Store
	logger     *zap.Logger

	mu      sync.Mutex
	subs    map[int]func(Snapshot)
	nextSub int
	closed  bool
}

// Open restores history from opts.Store and returns a ready session
func Open(opts Options) (*Session, error) {
	if opts.Backend == nil {
		return nil, errors.New("session: backend is required")
	}
	if opts.Store == nil {
		return nil, errors.New("session: store is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Explainer == nil {
		opts.Explainer = explain.NewService(nil, opts.Logger)
	}

	adapter := persist.NewAdapter(opts.Store, opts.Persist, opts.Logger)
	hist := history.Open(adapter, opts.Persist.Capacity, opts.Logger)

	s := &Session{
		history:   hist,
		explainer: opts.Explainer,
		store:     opts.Store,
		logger:    opts.Logger.Named("session"),
		subs:      make(map[int]func(Snapshot)),
	}

	backend := opts.Backend
	if opts.FillMissing {
		backend = &explainingBackend{next: backend, explainer: opts.Explainer}
	}

	s.backend = backend
	s.detached = verify.Options{
		Timeout: opts.Timeout,
		Now:     opts.Now,
		NewID:   opts.NewID,
		Logger:  opts.Logger,
	}

	live := s.detached
	live.OnChange = func(verify.Status) { s.publish() }
	s.controller = verify.NewController(backend, hist, live)

	s.logger.Debug("session opened", zap.Int("history", hist.Len()))
	return s, nil
}

// Submit verifies statement. See verify.Controller.Submit for the error contract.
func (s *Session) Submit(ctx context.Context, statement string, style model.Style) (*model.VerificationResult, error) {
	return s.controller.Submit(ctx, statement, style)
}

// CheckDetached verifies statement on its own request track. It never
// supersedes or is superseded by Submit, and leaves the visible result alone;
// a success is still recorded in history.
func (s *Session) CheckDetached(ctx context.Context, statement string, style model.Style) (*model.VerificationResult, error) {
	res, err := verify.NewController(s.backend, s.history, s.detached).Submit(ctx, statement, style)
	if err == nil {
		s.publish()
	}
	return res, err
}

// Clear drops the visible result and error. History is untouched.
func (s *Session) Clear() {
	s.controller.Clear()
}

// Remove deletes one history entry
func (s *Session) Remove(id model.EntryID) error {
	if !s.history.Remove(id) {
		return ErrNotFound
	}
	s.publish()
	return nil
}

// ClearAll empties history and deletes the persisted record
func (s *Session) ClearAll() {
	s.history.ClearAll()
	s.publish()
}

// GetByID looks up one history entry
func (s *Session) GetByID(id model.EntryID) (model.HistoryEntry, bool) {
	return s.history.GetByID(id)
}

// History returns the entries, newest first
func (s *Session) History() []model.HistoryEntry {
	return s.history.Entries()
}

// Analytics returns the current counters
func (s *Session) Analytics() model.Analytics {
	return s.history.Analytics()
}

// RegenerateExplanation refreshes the explanation of entry id using the
// session's explainer, which falls back instead of failing.
func (s *Session) RegenerateExplanation(ctx context.Context, id model.EntryID) (*model.HistoryEntry, error) {
	return s.RegenerateExplanationWith(ctx, id, s.explainer.Compute)
}

// RegenerateExplanationWith refreshes the explanation of entry id using compute.
// A failing compute leaves the entry untouched and its error is returned.
func (s *Session) RegenerateExplanationWith(ctx context.Context, id model.EntryID, compute history.ExplainFunc) (*model.HistoryEntry, error) {
	entry, err := s.history.RegenerateExplanation(ctx, id, compute)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, ErrNotFound
	}
	s.publish()
	return entry, nil
}

// Snapshot returns the current observable state
func (s *Session) Snapshot() Snapshot {
	st := s.controller.Status()
	snap := Snapshot{
		State:     st.State.String(),
		Result:    st.Result,
		IsLoading: st.IsLoading(),
		History:   s.history.Entries(),
		Analytics: s.history.Analytics(),
	}
	if st.Err != nil {
		snap.Error = &ErrorView{Kind: st.Err.Kind, Message: st.Err.Message}
	}
	return snap
}

// Subscribe registers fn to receive a snapshot after every visible change.
// fn runs synchronously and must not block. The returned func unsubscribes.
func (s *Session) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// Close releases the store and drops all subscribers
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.subs = make(map[int]func(Snapshot))
	s.mu.Unlock()

	s.logger.Debug("session closed")
	return s.store.Close()
}

func (s *Session) publish() {
	s.mu.Lock()
	if len(s.subs) == 0 {
		s.mu.Unlock()
		return
	}
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(Snapshot), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.subs[id])
	}
	s.mu.Unlock()

	snap := s.Snapshot()
	for _, fn := range fns {
		fn(snap)
	}
}
