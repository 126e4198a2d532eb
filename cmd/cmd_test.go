package cmd

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CosmoTheDev/reconctl/internal/config"
	"github.com/CosmoTheDev/reconctl/internal/database"
	"github.com/CosmoTheDev/reconctl/internal/jobs"
	"github.com/CosmoTheDev/reconctl/internal/notify"
	"github.com/CosmoTheDev/reconctl/internal/poller"
	"github.com/CosmoTheDev/reconctl/internal/reconapi"
	"github.com/CosmoTheDev/reconctl/models"
)

func testRuntime(t *testing.T, handler http.Handler) *runtime {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		API:  config.APIConfig{BaseURL: srv.URL, Timeout: time.Second},
		Poll: config.PollConfig{Interval: 10 * time.Millisecond, FetchTimeout: time.Second, MaxFailures: 3},
	}
	rt := &runtime{
		cfg:      cfg,
		client:   reconapi.New(cfg.API),
		notifier: notify.NewDispatcher(cfg.Notify),
	}
	opts := poller.OptionsFromConfig(cfg.Poll)
	opts.OnDegraded = rt.onDegraded
	rt.manager = poller.NewManager(rt.client, opts)
	t.Cleanup(rt.Close)
	return rt
}

func TestFollowJobPrintsFinalReport(t *testing.T) {
	var hits atomic.Int32
	rt := testRuntime(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			_, _ = w.Write([]byte(`{"id":"abc123","domain":"example.com","status":"running"}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"abc123","domain":"example.com","status":"completed",
			"ports":[{"ip":"1.2.3.4","ports":[22,443]}]}`))
	}))

	var out, progress bytes.Buffer
	require.NoError(t, followJob(t.Context(), rt, "abc123", &out, &progress, "text"))

	assert.Contains(t, progress.String(), "example.com  running")
	assert.Contains(t, progress.String(), "Scan completed.")
	assert.Contains(t, out.String(), "Port 22")
	assert.Contains(t, out.String(), "Port 443")
	assert.EqualValues(t, 3, hits.Load())
}

func TestFollowJobReportsDegraded(t *testing.T) {
	rt := testRuntime(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	var out, progress bytes.Buffer
	err := followJob(t.Context(), rt, "abc123", &out, &progress, "json")
	require.Error(t, err)
	var pd *poller.PollDegraded
	assert.ErrorAs(t, err, &pd)
	assert.Contains(t, err.Error(), "lost track of scan abc123")
	assert.Empty(t, out.String())
}

func TestUpsertSchedule(t *testing.T) {
	cfg := &config.Config{}
	assert.False(t, upsertSchedule(cfg, config.ScheduleConfig{Name: "x"}))
	assert.True(t, upsertSchedule(cfg, config.ScheduleConfig{Name: "nightly", Expr: "@daily", Domain: "a.com"}))
	assert.True(t, upsertSchedule(cfg, config.ScheduleConfig{Name: "nightly", Expr: "@every 6h", Domain: "b.com"}))
	require.Len(t, cfg.Schedules, 1)
	assert.Equal(t, "b.com", cfg.Schedules[0].Domain)
}

func TestRedact(t *testing.T) {
	cfg := &config.Config{}
	cfg.Notify.Telegram.BotToken = "123:abc"
	cfg.Notify.Webhook.Secret = "s3cret"
	cfg.Database.DSN = "user:pass@tcp(db)/recon"
	redact(cfg)
	assert.Equal(t, "tg-***", cfg.Notify.Telegram.BotToken)
	assert.Equal(t, "***", cfg.Notify.Webhook.Secret)
	assert.Equal(t, "***", cfg.Database.DSN)
	assert.Empty(t, cfg.Notify.Slack.WebhookURL)
}

func TestParseHelpers(t *testing.T) {
	assert.Equal(t, []string{"subdomains", "ports"}, parseCommaList(" subdomains, ,ports "))
	assert.Nil(t, parseCommaList("  "))
	assert.Equal(t, 2.5, parseFloatOrZero("2.5"))
	assert.Zero(t, parseFloatOrZero("fast"))
	assert.Equal(t, 7, parseIntOrDefault("x", 7))
	assert.Equal(t, 3*time.Second, parseDurationOrDefault("3s", time.Second))
	assert.Equal(t, time.Second, parseDurationOrDefault("-3s", time.Second))
	assert.NoError(t, validateDuration(""))
	assert.Error(t, validateDuration("soon"))
}

func TestFollowJobUsesCachedResult(t *testing.T) {
	var hits atomic.Int32
	rt := testRuntime(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	db, err := database.Open(t.Context(), config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "cache.db")})
	require.NoError(t, err)
	rt.db = db
	rt.cache = jobs.NewCache(db)
	require.NoError(t, rt.cache.SaveTerminal(t.Context(), &models.Scan{
		ID: "abc123", Domain: "example.com", Status: models.StatusCompleted,
		Technologies: []string{"nginx"},
	}))

	var out, progress bytes.Buffer
	require.NoError(t, followJob(t.Context(), rt, "abc123", &out, &progress, "text"))
	assert.Contains(t, progress.String(), "loaded from the local cache")
	assert.Contains(t, out.String(), "nginx")
	assert.Zero(t, hits.Load())
}

func TestSubmitScanLogsOnce(t *testing.T) {
	rt := testRuntime(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		_, _ = w.Write([]byte(`{"id":"abc123"}`))
	}))
	rt.submitter = jobs.NewSubmitter(rt.client, nil)

	var logs bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logs, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	job, err := submitScan(t.Context(), rt, " example.com ", nil)
	require.NoError(t, err)
	assert.Equal(t, "abc123", job.ID)
	assert.Equal(t, 1, strings.Count(logs.String(), "Scan submitted"), logs.String())
}
