// Package poller tracks a remote scan by polling its status endpoint until the
// scan is terminal, the owner cancels, or the backend stops answering.
//
// Each Session owns exactly one goroutine. The next fetch is scheduled only
// after the previous one has resolved, so at most one request is in flight per
// session and responses are observed in request order.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/CosmoTheDev/reconctl/internal/config"
	"github.com/CosmoTheDev/reconctl/internal/reconapi"
	"github.com/CosmoTheDev/reconctl/internal/store"
	"github.com/CosmoTheDev/reconctl/models"
)

// ErrAlreadyStarted is returned by Start on a session that has left Idle.
var ErrAlreadyStarted = errors.New("poll session already started")

// Fetcher returns the current snapshot of a scan. *reconapi.Client implements it.
type Fetcher interface {
	GetScan(ctx context.Context, id string) (*models.Scan, error)
}

// State is the lifecycle of a Session.
type State int

const (
	StateIdle State = iota
	StatePolling
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// StopReason says why a Session reached StateStopped.
type StopReason int

const (
	StopNone StopReason = iota
	StopTerminal
	StopCancelled
	StopDegraded
)

func (r StopReason) String() string {
	switch r {
	case StopNone:
		return "none"
	case StopTerminal:
		return "terminal"
	case StopCancelled:
		return "cancelled"
	case StopDegraded:
		return "degraded"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}

// PollDegraded is reported once when a session gives up after too many
// consecutive failed fetches. The job may still be running remotely; the owner
// can start a fresh session to retry.
type PollDegraded struct {
	JobID    string
	Failures int
	LastErr  error
}

func (e *PollDegraded) Error() string {
	return fmt.Sprintf("polling job %s stopped after %d consecutive failures: %v", e.JobID, e.Failures, e.LastErr)
}

func (e *PollDegraded) Unwrap() error { return e.LastErr }

// Options tunes a Session. Zero values fall back to the defaults in config.
type Options struct {
	// Interval is the delay between the end of one fetch and the start of the next.
	Interval time.Duration
	// FetchTimeout bounds each fetch; a timeout is a transient failure.
	FetchTimeout time.Duration
	// MaxFailures consecutive failures stop the session with PollDegraded.
	MaxFailures int
	// Backoff stretches the delay exponentially (up to MaxInterval) while
	// fetches keep failing. Off by default.
	Backoff     bool
	MaxInterval time.Duration

	// Clock drives the poll timer. Defaults to the real clock.
	Clock clockwork.Clock
	// OnDegraded is called once, outside any lock, when the failure threshold is hit.
	OnDegraded func(*PollDegraded)
	Logger     *slog.Logger
}

// OptionsFromConfig maps the poll section of the config file onto Options.
func OptionsFromConfig(cfg config.PollConfig) Options {
	return Options{
		Interval:     cfg.Interval,
		FetchTimeout: cfg.FetchTimeout,
		MaxFailures:  cfg.MaxFailures,
		Backoff:      cfg.Backoff,
		MaxInterval:  cfg.MaxInterval,
	}
}

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = config.DefaultPollInterval
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = 10 * time.Second
	}
	if o.MaxFailures <= 0 {
		o.MaxFailures = config.DefaultMaxFailures
	}
	if o.MaxInterval < o.Interval {
		o.MaxInterval = o.Interval
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Session polls one job id. Create it with NewSession, run it with Start and
// end it with Cancel (or by cancelling the context given to Start).
type Session struct {
	id      uuid.UUID
	jobID   string
	fetcher Fetcher
	store   *store.ResultStore
	opts    Options
	log     *slog.Logger
	backoff *backoff.ExponentialBackOff

	mu        sync.Mutex
	state     State
	reason    StopReason
	cancelled bool
	inFlight  bool
	failures  int
	lastErr   error
	degraded  *PollDegraded
	timer     clockwork.Timer
	cancelRun context.CancelFunc
	done      chan struct{}
	closeDone sync.Once
}

// NewSession binds a session to jobID. Accepted snapshots go to st.
func NewSession(jobID string, f Fetcher, st *store.ResultStore, opts Options) *Session {
	opts = opts.withDefaults()
	id := uuid.New()
	s := &Session{
		id:      id,
		jobID:   jobID,
		fetcher: f,
		store:   st,
		opts:    opts,
		log:     opts.Logger.With("job_id", jobID, "session", id.String()),
		done:    make(chan struct{}),
	}
	if opts.Backoff {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = opts.Interval
		b.MaxInterval = opts.MaxInterval
		b.MaxElapsedTime = 0
		b.Reset()
		s.backoff = b
	}
	return s
}

// finishedSession returns a session that is already stopped with
// StopTerminal. It never fetches.
func finishedSession(jobID string, f Fetcher, st *store.ResultStore, opts Options) *Session {
	s := NewSession(jobID, f, st, opts)
	s.state = StateStopped
	s.reason = StopTerminal
	s.closeDone.Do(func() { close(s.done) })
	return s
}

// Start moves the session from Idle to Polling and issues the first fetch
// immediately.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return ErrAlreadyStarted
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRun = cancel
	s.state = StatePolling
	s.log.Debug("poll session started", "interval", s.opts.Interval, "max_failures", s.opts.MaxFailures)
	go s.run(runCtx)
	return nil
}

// Cancel stops the session. A pending timer is cleared, the in-flight request
// is aborted, and any result that still arrives is discarded: once Cancel
// returns, the session makes no further store update.
//
// Cancel must not be called from a store subscriber of this session.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateStopped {
		return
	}
	wasIdle := s.state == StateIdle
	s.cancelled = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.cancelRun != nil {
		s.cancelRun()
	}
	s.stopLocked(StopCancelled)
	if wasIdle {
		s.closeDone.Do(func() { close(s.done) })
	}
}

func (s *Session) run(ctx context.Context) {
	defer s.closeDone.Do(func() { close(s.done) })
	defer s.cancelRun()

	for {
		if !s.beginFetch() {
			return
		}
		snap, err := s.fetch(ctx)
		delay, more := s.complete(ctx, snap, err)
		if !more {
			return
		}
		if !s.wait(ctx, delay) {
			return
		}
	}
}

// beginFetch claims the in-flight slot.
func (s *Session) beginFetch() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled || s.state != StatePolling || s.inFlight {
		return false
	}
	s.inFlight = true
	return true
}

func (s *Session) fetch(ctx context.Context) (*models.Scan, error) {
	fctx, cancel := context.WithTimeout(ctx, s.opts.FetchTimeout)
	defer cancel()
	snap, err := s.fetcher.GetScan(fctx, s.jobID)
	if err == nil && snap == nil {
		err = &reconapi.ParseError{Op: "get scan " + s.jobID, Err: errors.New("empty snapshot")}
	}
	return snap, err
}

// complete applies the outcome of a fetch. The continuation decision is made
// here, from the value just fetched, while holding the session lock so that a
// concurrent Cancel either wins before the store update or after it.
func (s *Session) complete(ctx context.Context, snap *models.Scan, err error) (time.Duration, bool) {
	s.mu.Lock()
	s.inFlight = false

	if s.cancelled || ctx.Err() != nil {
		s.stopLocked(StopCancelled)
		s.mu.Unlock()
		s.log.Debug("discarding fetch result after cancellation")
		return 0, false
	}

	if err != nil {
		s.failures++
		s.lastErr = err
		if s.failures >= s.opts.MaxFailures {
			deg := &PollDegraded{JobID: s.jobID, Failures: s.failures, LastErr: err}
			s.degraded = deg
			s.stopLocked(StopDegraded)
			s.mu.Unlock()
			s.log.Warn("backend unreachable, polling stopped", "failures", deg.Failures, "error", err)
			if s.opts.OnDegraded != nil {
				s.opts.OnDegraded(deg)
			}
			return 0, false
		}
		delay := s.opts.Interval
		if s.backoff != nil {
			delay = s.backoff.NextBackOff()
			if delay == backoff.Stop || delay > s.opts.MaxInterval {
				delay = s.opts.MaxInterval
			}
		}
		failures := s.failures
		s.mu.Unlock()
		s.log.Warn("status fetch failed", "failures", failures, "retry_in", delay, "error", err)
		return delay, true
	}

	s.failures = 0
	s.lastErr = nil
	if s.backoff != nil {
		s.backoff.Reset()
	}
	accepted := s.store.Update(snap)
	terminal := snap.Terminal()
	if terminal {
		s.stopLocked(StopTerminal)
	}
	s.mu.Unlock()

	s.log.Debug("status fetched", "status", snap.Status, "accepted", accepted)
	if terminal {
		s.log.Info("scan reached terminal status", "status", snap.Status)
		return 0, false
	}
	return s.opts.Interval, true
}

// wait parks until the poll timer fires. It returns false if the session was
// cancelled meanwhile.
func (s *Session) wait(ctx context.Context, delay time.Duration) bool {
	s.mu.Lock()
	if s.cancelled {
		s.mu.Unlock()
		return false
	}
	t := s.opts.Clock.NewTimer(delay)
	s.timer = t
	s.mu.Unlock()

	select {
	case <-ctx.Done():
		t.Stop()
		s.mu.Lock()
		s.timer = nil
		s.stopLocked(StopCancelled)
		s.mu.Unlock()
		return false
	case <-t.Chan():
		s.mu.Lock()
		s.timer = nil
		s.mu.Unlock()
		return true
	}
}

func (s *Session) stopLocked(reason StopReason) {
	if s.state == StateStopped {
		return
	}
	s.state = StateStopped
	s.reason = reason
	s.log.Debug("poll session stopped", "reason", reason.String())
}

// ID is a unique identifier for this session, used in logs.
func (s *Session) ID() uuid.UUID { return s.id }

// JobID returns the job this session polls.
func (s *Session) JobID() string { return s.jobID }

// Store returns the store this session writes to.
func (s *Session) Store() *store.ResultStore { return s.store }

// Done is closed once the session has stopped and its goroutine has exited.
func (s *Session) Done() <-chan struct{} { return s.done }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// StopReason returns why the session stopped, or StopNone while it runs.
func (s *Session) StopReason() StopReason {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// InFlight reports whether a fetch is currently outstanding.
func (s *Session) InFlight() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// Failures returns the current consecutive failure count.
func (s *Session) Failures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures
}

// LastError returns the error of the most recent failed fetch, or nil after a success.
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Err returns the *PollDegraded that stopped the session, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.degraded == nil {
		return nil
	}
	return s.degraded
}

// Wait blocks until the session stops or ctx is done.
func (s *Session) Wait(ctx context.Context) (StopReason, error) {
	select {
	case <-s.done:
		return s.StopReason(), s.Err()
	case <-ctx.Done():
		return StopNone, ctx.Err()
	}
}
