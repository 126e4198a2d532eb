package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/CosmoTheDev/reconctl/internal/config"
	"github.com/CosmoTheDev/reconctl/internal/database"
	"github.com/CosmoTheDev/reconctl/internal/jobs"
	"github.com/CosmoTheDev/reconctl/internal/notify"
	"github.com/CosmoTheDev/reconctl/internal/poller"
	"github.com/CosmoTheDev/reconctl/internal/reconapi"
	"github.com/CosmoTheDev/reconctl/models"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#22C55E")).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B")).Bold(true)
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)
)

// runtime is everything a command needs to talk to the service.
type runtime struct {
	cfg       *config.Config
	client    *reconapi.Client
	db        database.DB // nil when the local cache is unavailable
	cache     *jobs.Cache
	submitter *jobs.Submitter
	history   *jobs.HistoryFetcher
	notifier  *notify.Dispatcher
	manager   *poller.Manager
}

// openRuntime loads config and wires the client, poller and local cache.
// A broken cache is logged and skipped; the service is still usable without it.
func openRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	rt := &runtime{
		cfg:      cfg,
		client:   reconapi.New(cfg.API),
		notifier: notify.NewDispatcher(cfg.Notify),
	}

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		slog.Warn("Local cache disabled", "driver", cfg.Database.Driver, "error", err)
	} else {
		rt.db = db
		rt.cache = jobs.NewCache(db)
	}

	rt.submitter = jobs.NewSubmitter(rt.client, rt.cache)
	rt.history = jobs.NewHistoryFetcher(rt.client)

	opts := poller.OptionsFromConfig(cfg.Poll)
	opts.OnDegraded = rt.onDegraded
	rt.manager = poller.NewManager(rt.client, opts)
	return rt, nil
}

func (rt *runtime) Close() {
	rt.manager.StopAll()
	if rt.db != nil {
		_ = rt.db.Close()
	}
}

func (rt *runtime) onDegraded(pd *poller.PollDegraded) {
	slog.Warn("Polling degraded", "job_id", pd.JobID, "failures", pd.Failures, "error", pd.LastErr)
	domain := ""
	if snap := rt.manager.Store(pd.JobID).Current(); snap != nil {
		domain = snap.Domain
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	rt.notifier.Notify(ctx, notify.PollDegraded(pd.JobID, domain, pd.Failures, pd.LastErr))
}

// finish caches a terminal snapshot and sends the completion notification.
func (rt *runtime) finish(ctx context.Context, snap *models.Scan) {
	if !snap.Terminal() {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if rt.cache != nil {
		if err := rt.cache.SaveTerminal(ctx, snap); err != nil {
			slog.Warn("Could not cache result", "job_id", snap.ID, "error", err)
		}
	}
	rt.notifier.Notify(ctx, notify.ScanFinished(snap, rt.client.BaseURL()))
}

// seedFromCache loads a finished scan from the local cache into the job's
// store, so the poller does not fetch it again. It reports whether it did.
func (rt *runtime) seedFromCache(ctx context.Context, jobID string) bool {
	if rt.cache == nil || rt.manager.Store(jobID).Current() != nil {
		return false
	}
	snap, err := rt.cache.Result(ctx, jobID)
	if err != nil {
		if !errors.Is(err, jobs.ErrNotCached) {
			slog.Debug("Cache lookup failed", "job_id", jobID, "error", err)
		}
		return false
	}
	return rt.manager.Store(jobID).Update(snap)
}

// setupFileLogger tees slog output to stdout and to logs under logDir.
func setupFileLogger(logDir, name string) (string, func(), error) {
	if logDir == "" {
		logDir = "logs"
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return "", nil, fmt.Errorf("creating log dir %s: %w", logDir, err)
	}

	ts := time.Now().UTC().Format("20060102-150405")
	runLogPath := filepath.Join(logDir, fmt.Sprintf("%s-%s.log", name, ts))
	runFile, err := os.OpenFile(runLogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return "", nil, fmt.Errorf("opening run log file: %w", err)
	}

	latestPath := filepath.Join(logDir, "reconctl.log")
	latestFile, err := os.OpenFile(latestPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		_ = runFile.Close()
		return "", nil, fmt.Errorf("opening latest log file: %w", err)
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(io.MultiWriter(os.Stderr, runFile, latestFile), &slog.HandlerOptions{
		Level:     level,
		AddSource: verbose,
	})
	slog.SetDefault(slog.New(handler))
	slog.SetLogLoggerLevel(level)

	cleanup := func() {
		_ = latestFile.Close()
		_ = runFile.Close()
	}
	return runLogPath, cleanup, nil
}
