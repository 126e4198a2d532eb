// Package store holds the latest known snapshot of one scan and fans every
// accepted update out to subscribers.
package store

import (
	"log/slog"
	"sync"

	"github.com/CosmoTheDev/reconctl/models"
)

// Subscriber is called with each accepted snapshot. It runs on the goroutine
// that called Update and must not block for long.
type Subscriber func(*models.Scan)

// ResultStore is the per-job snapshot holder. The zero value is not usable;
// create one with New.
//
// Snapshots are replaced wholesale (each poll response is a full snapshot).
// Once a terminal snapshot is stored, every later update is a no-op.
type ResultStore struct {
	jobID string

	mu      sync.RWMutex
	current *models.Scan
	subs    map[int]Subscriber
	order   []int
	nextID  int
}

// New returns an empty store bound to jobID.
func New(jobID string) *ResultStore {
	return &ResultStore{jobID: jobID, subs: make(map[int]Subscriber)}
}

// JobID returns the job this store tracks.
func (s *ResultStore) JobID() string { return s.jobID }

// Current returns the latest accepted snapshot, or nil before the first one.
// Callers must treat the result as read-only.
func (s *ResultStore) Current() *models.Scan {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Update stores snap and notifies subscribers. It returns false without
// notifying when snap is nil, belongs to another job, would move the status
// backwards, or when the stored snapshot is already terminal.
func (s *ResultStore) Update(snap *models.Scan) bool {
	if snap == nil {
		return false
	}

	s.mu.Lock()
	if snap.ID != s.jobID {
		s.mu.Unlock()
		slog.Warn("store: dropping snapshot for another job", "job_id", s.jobID, "snapshot_id", snap.ID)
		return false
	}
	if s.current != nil {
		if s.current.Terminal() {
			s.mu.Unlock()
			return false
		}
		if snap.Status.Rank() < s.current.Status.Rank() {
			s.mu.Unlock()
			slog.Debug("store: ignoring status regression",
				"job_id", s.jobID, "from", s.current.Status, "to", snap.Status)
			return false
		}
	}
	s.current = snap
	subs := make([]Subscriber, 0, len(s.order))
	for _, id := range s.order {
		subs = append(subs, s.subs[id])
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
	return true
}

// Subscribe registers fn for future updates and returns a function that
// removes it. Unsubscribing twice is harmless.
func (s *ResultStore) Subscribe(fn Subscriber) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.order = append(s.order, id)
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			for i, v := range s.order {
				if v == id {
					s.order = append(s.order[:i:i], s.order[i+1:]...)
					break
				}
			}
		})
	}
}
