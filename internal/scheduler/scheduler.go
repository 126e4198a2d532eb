// Package scheduler submits recurring scans from the schedules in the config
// file and follows each submitted job until it finishes.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/CosmoTheDev/reconctl/internal/config"
	"github.com/CosmoTheDev/reconctl/internal/poller"
	"github.com/CosmoTheDev/reconctl/internal/reconapi"
)

// ErrUnknownSchedule is returned for names that are not registered.
var ErrUnknownSchedule = errors.New("unknown schedule")

// Submitter creates a scan on behalf of a schedule.
type Submitter interface {
	SubmitAs(ctx context.Context, source, domain string, scanTypes []string) (*reconapi.JobHandle, error)
}

// Tracker starts a poll session for a job id. *poller.Manager implements it.
type Tracker interface {
	Start(ctx context.Context, jobID string) (*poller.Session, error)
}

// FinishFunc is called once a scheduled job's session has stopped.
type FinishFunc func(ctx context.Context, sched config.ScheduleConfig, s *poller.Session)

// Entry describes a registered schedule.
type Entry struct {
	Name    string
	Expr    string
	Domain  string
	Next    time.Time
	Prev    time.Time
	LastJob string
}

// Scheduler registers schedules with robfig/cron. A firing submits the scan,
// then blocks until its poll session stops, so a slow scan is never
// overlapped by the next firing of the same schedule.
type Scheduler struct {
	submit   Submitter
	tracker  Tracker
	onFinish FinishFunc
	cron     *cron.Cron

	mu      sync.Mutex
	ctx     context.Context
	entries map[string]cron.EntryID
	scheds  map[string]config.ScheduleConfig
	lastJob map[string]string
}

// New returns a stopped Scheduler. onFinish may be nil.
func New(submit Submitter, tracker Tracker, onFinish FinishFunc) *Scheduler {
	logger := cron.PrintfLogger(slog.NewLogLogger(slog.Default().Handler(), slog.LevelDebug))
	return &Scheduler{
		submit:   submit,
		tracker:  tracker,
		onFinish: onFinish,
		cron:     cron.New(cron.WithLogger(logger), cron.WithChain(cron.Recover(logger))),
		ctx:      context.Background(),
		entries:  make(map[string]cron.EntryID),
		scheds:   make(map[string]config.ScheduleConfig),
		lastJob:  make(map[string]string),
	}
}

// Validate checks that expr is parseable by robfig/cron.
func Validate(expr string) error {
	_, err := cron.ParseStandard(expr)
	return err
}

// NextRun returns the first firing of expr after from.
func NextRun(expr string, from time.Time) (time.Time, error) {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(from), nil
}

// Start registers schedules and starts the cron runner. Invalid schedules are
// logged and skipped; the number registered is returned. Jobs fired later run
// under ctx.
func (s *Scheduler) Start(ctx context.Context, schedules []config.ScheduleConfig) int {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	n := 0
	for _, sc := range schedules {
		if err := s.Add(sc); err != nil {
			slog.Warn("scheduler: skipping schedule", "name", sc.Name, "expr", sc.Expr, "error", err)
			continue
		}
		n++
	}
	s.cron.Start()
	slog.Info("scheduler started", "schedules_loaded", n)
	return n
}

// Stop halts the cron runner and waits for running jobs to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Add validates and registers one schedule, replacing any with the same name.
func (s *Scheduler) Add(sc config.ScheduleConfig) error {
	sc.Name = strings.TrimSpace(sc.Name)
	sc.Domain = strings.TrimSpace(sc.Domain)
	if sc.Name == "" {
		return errors.New("schedule name is required")
	}
	if sc.Domain == "" {
		return fmt.Errorf("schedule %q has no domain", sc.Name)
	}
	if err := Validate(sc.Expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", sc.Expr, err)
	}

	s.Remove(sc.Name)
	job := cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).Then(cron.FuncJob(func() {
		s.mu.Lock()
		ctx := s.ctx
		s.mu.Unlock()
		if _, err := s.run(ctx, sc); err != nil {
			slog.Warn("scheduler: firing schedule failed", "name", sc.Name, "error", err)
		}
	}))
	id, err := s.cron.AddJob(sc.Expr, job)
	if err != nil {
		return fmt.Errorf("registering schedule %q: %w", sc.Name, err)
	}

	s.mu.Lock()
	s.entries[sc.Name] = id
	s.scheds[sc.Name] = sc
	s.mu.Unlock()
	return nil
}

// Remove unregisters a schedule. It reports whether it existed.
func (s *Scheduler) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.entries[name]
	if !ok {
		return false
	}
	s.cron.Remove(id)
	delete(s.entries, name)
	delete(s.scheds, name)
	return true
}

// List returns registered schedules ordered by name.
func (s *Scheduler) List() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, 0, len(s.entries))
	for name, id := range s.entries {
		e := s.cron.Entry(id)
		sc := s.scheds[name]
		out = append(out, Entry{
			Name:    name,
			Expr:    sc.Expr,
			Domain:  sc.Domain,
			Next:    e.Next,
			Prev:    e.Prev,
			LastJob: s.lastJob[name],
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// TriggerNow fires a registered schedule immediately and waits for its session
// to stop. It returns the submitted job id.
func (s *Scheduler) TriggerNow(ctx context.Context, name string) (string, error) {
	s.mu.Lock()
	sc, ok := s.scheds[name]
	s.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownSchedule, name)
	}
	return s.run(ctx, sc)
}

func (s *Scheduler) run(ctx context.Context, sc config.ScheduleConfig) (string, error) {
	h, err := s.submit.SubmitAs(ctx, "schedule:"+sc.Name, sc.Domain, sc.ScanTypes)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.lastJob[sc.Name] = h.ID
	s.mu.Unlock()

	sess, err := s.tracker.Start(ctx, h.ID)
	if err != nil {
		return h.ID, fmt.Errorf("tracking job %s: %w", h.ID, err)
	}
	slog.Info("scheduled scan started", "schedule", sc.Name, "domain", sc.Domain, "job_id", h.ID)

	<-sess.Done()
	slog.Info("scheduled scan finished", "schedule", sc.Name, "job_id", h.ID, "reason", sess.StopReason().String())
	if s.onFinish != nil {
		s.onFinish(ctx, sc, sess)
	}
	return h.ID, nil
}
