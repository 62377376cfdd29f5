package store

import (
	"sort"
	"sync"
	"time"

	"github.com/wonny/riskdash/internal/contracts"
	"github.com/wonny/riskdash/pkg/logger"
)

// FetchToken identifies one fetch. Only the token from the latest
// BeginFetch may commit or fail.
type FetchToken uint64

// State is one consistent read of the store
type State struct {
	History     []contracts.RiskObservation  `json:"history"`
	Summary     *contracts.SummaryStatistics `json:"summary"`
	Snapshot    *contracts.CurrentSnapshot   `json:"current_snapshot"`
	IsLoading   bool                         `json:"is_loading"`
	Err         error                        `json:"-"`
	LastUpdated time.Time                    `json:"last_updated"`
}

// Observer is notified after every mutation
type Observer func(State)

// Store holds the dashboard's risk state
// ⭐ SSOT: history/summary/snapshot 상태는 이 구조체에서만
type Store struct {
	mu          sync.RWMutex
	history     []contracts.RiskObservation
	summary     *contracts.SummaryStatistics
	snapshot    *contracts.CurrentSnapshot
	isLoading   bool
	err         error
	lastUpdated time.Time
	generation  uint64

	obsMu     sync.Mutex
	observers map[int]Observer
	nextObs   int

	now    func() time.Time
	logger *logger.Logger
}

// New creates an empty store
func New(log *logger.Logger) *Store {
	return &Store{
		observers: make(map[int]Observer),
		now:       time.Now,
		logger:    log.WithComponent("store"),
	}
}

// Subscribe registers fn; the returned func removes it
func (s *Store) Subscribe(fn Observer) func() {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()

	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn

	return func() {
		s.obsMu.Lock()
		delete(s.observers, id)
		s.obsMu.Unlock()
	}
}

// BeginFetch marks a fetch in flight and supersedes any older one
func (s *Store) BeginFetch() FetchToken {
	s.mu.Lock()
	s.generation++
	tok := FetchToken(s.generation)
	s.isLoading = true
	s.mu.Unlock()

	s.notify()
	return tok
}

// CommitHistory replaces history and summary wholesale.
// A superseded token is discarded and returns false.
func (s *Store) CommitHistory(tok FetchToken, history []contracts.RiskObservation, summary *contracts.SummaryStatistics) bool {
	s.mu.Lock()
	if uint64(tok) != s.generation {
		current := s.generation
		s.mu.Unlock()
		s.logger.WithFields(map[string]interface{}{
			"token":   uint64(tok),
			"current": current,
		}).Warn("Discarded stale fetch result")
		return false
	}

	sorted := make([]contracts.RiskObservation, len(history))
	copy(sorted, history)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date < sorted[j].Date
	})

	s.history = sorted
	s.summary = summary
	s.isLoading = false
	s.err = nil
	s.lastUpdated = s.now()
	s.mu.Unlock()

	s.logger.WithFields(map[string]interface{}{
		"observations": len(sorted),
		"has_summary":  summary != nil,
	}).Info("History replaced")

	s.notify()
	return true
}

// FailFetch records a terminal fetch error, leaving history untouched.
// A superseded token is discarded and returns false.
func (s *Store) FailFetch(tok FetchToken, err error) bool {
	s.mu.Lock()
	if uint64(tok) != s.generation {
		s.mu.Unlock()
		s.logger.WithError(err).Debug("Discarded stale fetch failure")
		return false
	}
	s.isLoading = false
	s.err = err
	s.mu.Unlock()

	s.notify()
	return true
}

// ReplaceSnapshot swaps the current snapshot wholesale
func (s *Store) ReplaceSnapshot(snap *contracts.CurrentSnapshot) {
	s.mu.Lock()
	s.snapshot = snap
	s.err = nil
	s.lastUpdated = s.now()
	s.mu.Unlock()

	s.notify()
}

// ReplaceDerivedSnapshot installs snap only while no snapshot exists or
// the current one carries the same Source (i.e. was derived the same way).
// A live snapshot is never replaced. Reports whether snap was installed.
func (s *Store) ReplaceDerivedSnapshot(snap *contracts.CurrentSnapshot) bool {
	s.mu.Lock()
	if s.snapshot != nil && s.snapshot.Source != snap.Source {
		s.mu.Unlock()
		return false
	}
	s.snapshot = snap
	s.err = nil
	s.lastUpdated = s.now()
	s.mu.Unlock()

	s.notify()
	return true
}

// SetError records an error without touching data
func (s *Store) SetError(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()

	s.notify()
}

// ClearError drops the current error, if any
func (s *Store) ClearError() {
	s.mu.Lock()
	changed := s.err != nil
	s.err = nil
	s.mu.Unlock()

	if changed {
		s.notify()
	}
}

// Reset clears everything back to the initial empty state
func (s *Store) Reset() {
	s.mu.Lock()
	s.history = nil
	s.summary = nil
	s.snapshot = nil
	s.isLoading = false
	s.err = nil
	s.lastUpdated = time.Time{}
	s.generation++ // orphan any fetch in flight
	s.mu.Unlock()

	s.notify()
}

// Snapshot returns one consistent copy of the state
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stateLocked()
}

// History returns a copy of the history window
func (s *Store) History() []contracts.RiskObservation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneHistory(s.history)
}

// Summary returns the current summary (nil when absent)
func (s *Store) Summary() *contracts.SummaryStatistics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.summary
}

// Current returns the current snapshot (nil when absent)
func (s *Store) Current() *contracts.CurrentSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// IsLoading reports whether a fetch is in flight
func (s *Store) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isLoading
}

// Err returns the current error
func (s *Store) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// LastUpdated returns the time of the last successful data mutation
func (s *Store) LastUpdated() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUpdated
}

func (s *Store) stateLocked() State {
	return State{
		History:     cloneHistory(s.history),
		Summary:     s.summary,
		Snapshot:    s.snapshot,
		IsLoading:   s.isLoading,
		Err:         s.err,
		LastUpdated: s.lastUpdated,
	}
}

func (s *Store) notify() {
	s.obsMu.Lock()
	if len(s.observers) == 0 {
		s.obsMu.Unlock()
		return
	}
	fns := make([]Observer, 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.obsMu.Unlock()

	state := s.Snapshot()
	for _, fn := range fns {
		fn(state)
	}
}

func cloneHistory(h []contracts.RiskObservation) []contracts.RiskObservation {
	if h == nil {
		return nil
	}
	out := make([]contracts.RiskObservation, len(h))
	copy(out, h)
	return out
}
