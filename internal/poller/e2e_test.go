package poller_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CosmoTheDev/reconctl/internal/config"
	"github.com/CosmoTheDev/reconctl/internal/poller"
	"github.com/CosmoTheDev/reconctl/internal/reconapi"
	"github.com/CosmoTheDev/reconctl/internal/render"
	"github.com/CosmoTheDev/reconctl/models"
)

func advance(t *testing.T, clock *clockwork.FakeClock, d time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(d)
}

func TestSubmitPollRenderEndToEnd(t *testing.T) {
	bodies := []string{
		`{"id":"abc123","domain":"example.com","status":"pending","timestamp":"2025-01-01T10:00:00"}`,
		`{"id":"abc123","domain":"example.com","status":"running","timestamp":"2025-01-01T10:00:00",
		  "subdomains":{"subdomains":["a.example.com"],"count":1}}`,
		`{"id":"abc123","domain":"example.com","status":"completed","timestamp":"2025-01-01T10:00:00",
		  "subdomains":{"subdomains":["a.example.com","b.example.com"],"count":2},
		  "ports":[{"ip":"93.184.216.34","ports":[80,443]}],
		  "technologies":null,"screenshots":null}`,
	}
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/scan", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"abc123","domain":"example.com","status":"pending","timestamp":"2025-01-01T10:00:00"}`))
	})
	mux.HandleFunc("GET /api/scan/{id}", func(w http.ResponseWriter, r *http.Request) {
		n := int(hits.Add(1))
		_, _ = w.Write([]byte(bodies[min(n, len(bodies))-1]))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := reconapi.New(config.APIConfig{BaseURL: srv.URL, Timeout: 2 * time.Second})
	clock := clockwork.NewFakeClock()
	m := poller.NewManager(client, poller.Options{Interval: 2 * time.Second, Clock: clock})
	t.Cleanup(m.StopAll)

	job, err := client.Submit(t.Context(), "example.com", nil)
	require.NoError(t, err)

	var mu sync.Mutex
	var statuses []models.Status
	m.Store(job.ID).Subscribe(func(s *models.Scan) {
		mu.Lock()
		statuses = append(statuses, s.Status)
		mu.Unlock()
	})

	s, err := m.Start(t.Context(), job.ID)
	require.NoError(t, err)
	advance(t, clock, 2*time.Second)
	advance(t, clock, 2*time.Second)

	reason, err := s.Wait(t.Context())
	require.NoError(t, err)
	assert.Equal(t, poller.StopTerminal, reason)
	assert.EqualValues(t, 3, hits.Load())

	mu.Lock()
	assert.Equal(t, []models.Status{models.StatusPending, models.StatusRunning, models.StatusCompleted}, statuses)
	mu.Unlock()

	v := render.Render(m.Store(job.ID).Current())
	assert.Equal(t, 2, v.Summary.Subdomains)
	assert.Equal(t, 2, v.Summary.OpenPorts)
	assert.Equal(t, []string{"Port 80", "Port 443"}, v.Section(render.SectionPorts).Items)
	assert.Equal(t, render.NoTechnologies, v.Section(render.SectionTechnologies).Placeholder)

	// No further requests once terminal.
	clock.Advance(10 * time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.EqualValues(t, 3, hits.Load())
}

func TestUnreachableBackendDegradesOnce(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	var degraded atomic.Int32
	clock := clockwork.NewFakeClock()
	client := reconapi.New(config.APIConfig{BaseURL: srv.URL, Timeout: time.Second})
	m := poller.NewManager(client, poller.Options{
		Interval:    2 * time.Second,
		MaxFailures: 10,
		Clock:       clock,
		OnDegraded:  func(*poller.PollDegraded) { degraded.Add(1) },
	})

	s, err := m.Start(t.Context(), "abc123")
	require.NoError(t, err)
	for i := 1; i < 10; i++ {
		advance(t, clock, 2*time.Second)
	}
	reason, err := s.Wait(t.Context())
	assert.Equal(t, poller.StopDegraded, reason)

	var pd *poller.PollDegraded
	require.ErrorAs(t, err, &pd)
	var fe *reconapi.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, http.StatusServiceUnavailable, fe.StatusCode)
	assert.EqualValues(t, 1, degraded.Load())
	assert.EqualValues(t, 10, hits.Load())
	assert.Nil(t, m.Store("abc123").Current())
}
