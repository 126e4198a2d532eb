package poller

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/CosmoTheDev/reconctl/internal/store"
)

// ErrEmptyJobID is returned when a session is requested without a job id.
var ErrEmptyJobID = errors.New("job id is required")

// Manager keeps one session record per job id. Sessions for different jobs are
// fully independent; the manager only guards its own maps.
type Manager struct {
	fetcher Fetcher
	opts    Options

	mu       sync.Mutex
	sessions map[string]*Session
	stores   map[string]*store.ResultStore
}

// NewManager returns a Manager whose sessions fetch through f.
func NewManager(f Fetcher, opts Options) *Manager {
	return &Manager{
		fetcher:  f,
		opts:     opts,
		sessions: make(map[string]*Session),
		stores:   make(map[string]*store.ResultStore),
	}
}

// Start begins polling jobID. If a session for jobID is still polling it is
// returned unchanged. A stopped session is replaced by a fresh one that reuses
// the job's store, which is how a viewer retries after PollDegraded. A job
// whose stored snapshot is already terminal is never polled again.
//
// A cancelled session counts as stopped as soon as Cancel returns, while its
// aborted request may still be unwinding. Replacing it right away can leave
// one job with two requests open for a moment; the old session's result is
// discarded and never reaches the store.
func (m *Manager) Start(ctx context.Context, jobID string) (*Session, error) {
	if jobID == "" {
		return nil, ErrEmptyJobID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.sessions[jobID]; ok {
		if existing.State() != StateStopped || existing.Store().Current().Terminal() {
			return existing, nil
		}
		slog.Info("restarting poll session", "job_id", jobID, "previous_reason", existing.StopReason().String())
	}

	st, ok := m.stores[jobID]
	if !ok {
		st = store.New(jobID)
		m.stores[jobID] = st
	}
	if st.Current().Terminal() {
		// Seeded from a cached result: nothing left to poll.
		s := finishedSession(jobID, m.fetcher, st, m.opts)
		m.sessions[jobID] = s
		return s, nil
	}
	s := NewSession(jobID, m.fetcher, st, m.opts)
	if err := s.Start(ctx); err != nil {
		return nil, err
	}
	m.sessions[jobID] = s
	return s, nil
}

// Store returns the result store for jobID, creating it if needed so a viewer
// can subscribe before polling starts.
func (m *Manager) Store(jobID string) *store.ResultStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.stores[jobID]
	if !ok {
		st = store.New(jobID)
		m.stores[jobID] = st
	}
	return st
}

// Get returns the current session for jobID.
func (m *Manager) Get(jobID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[jobID]
	return s, ok
}

// Stop cancels the session for jobID. It reports whether a session existed.
func (m *Manager) Stop(jobID string) bool {
	m.mu.Lock()
	s, ok := m.sessions[jobID]
	m.mu.Unlock()
	if !ok {
		return false
	}
	s.Cancel()
	return true
}

// StopAll cancels every session, e.g. when the viewing process exits.
func (m *Manager) StopAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		s.Cancel()
	}
}

// Forget drops a stopped job's session and store.
func (m *Manager) Forget(jobID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[jobID]; ok && s.State() != StateStopped {
		return
	}
	delete(m.sessions, jobID)
	delete(m.stores, jobID)
}

// Active lists job ids whose sessions are still polling, sorted.
func (m *Manager) Active() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, s := range m.sessions {
		if s.State() == StatePolling {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
