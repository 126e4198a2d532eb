package jobs

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CosmoTheDev/reconctl/internal/config"
	"github.com/CosmoTheDev/reconctl/internal/database"
	"github.com/CosmoTheDev/reconctl/internal/reconapi"
	"github.com/CosmoTheDev/reconctl/models"
)

func at(day int) models.Timestamp {
	return models.Timestamp{Time: time.Date(2025, 1, day, 12, 0, 0, 0, time.UTC)}
}

type listerFunc func(ctx context.Context) ([]models.Scan, error)

func (f listerFunc) ListScans(ctx context.Context) ([]models.Scan, error) { return f(ctx) }

type fakeAPI struct {
	handle *reconapi.JobHandle
	err    error
	calls  int
}

func (f *fakeAPI) Submit(ctx context.Context, domain string, scanTypes []string) (*reconapi.JobHandle, error) {
	f.calls++
	return f.handle, f.err
}

func newCache(t *testing.T) *Cache {
	t.Helper()
	db, err := database.Open(t.Context(), config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "cache.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewCache(db)
}

func TestHistoryListNewestFirstWithCounts(t *testing.T) {
	h := NewHistoryFetcher(listerFunc(func(context.Context) ([]models.Scan, error) {
		return []models.Scan{
			{ID: "old", Domain: "a.com", Status: models.StatusCompleted, Timestamp: at(1),
				Subdomains: &models.SubdomainResult{Count: 12}, Ports: []models.PortResult{{Ports: []int{80, 443, 8080}}}, Technologies: []string{"nginx"}},
			{ID: "new", Domain: "b.com", Status: models.StatusPending, Timestamp: at(3)},
			{ID: "mid", Domain: "c.com", Status: models.StatusFailed, Timestamp: at(2), Ports: []models.PortResult{}},
		}, nil
	}))

	rows, err := h.List(t.Context())
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"new", "mid", "old"}, []string{rows[0].ID, rows[1].ID, rows[2].ID})

	assert.Equal(t, 12, rows[2].Subdomains)
	assert.Equal(t, 3, rows[2].Ports)
	assert.Equal(t, "12 Subs • 3 Ports • 1 Techs", rows[2].Overview())
	assert.Empty(t, rows[0].Overview())
	assert.Zero(t, rows[1].Ports)
}

func TestHistoryListEmpty(t *testing.T) {
	h := NewHistoryFetcher(listerFunc(func(context.Context) ([]models.Scan, error) { return nil, nil }))
	rows, err := h.List(t.Context())
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestHistoryListFailureIsFetchError(t *testing.T) {
	for name, cause := range map[string]error{
		"fetch": &reconapi.FetchError{Op: "list scans", StatusCode: 500, Err: errors.New("boom")},
		"parse": &reconapi.ParseError{Op: "list scans", Err: errors.New("bad json")},
	} {
		t.Run(name, func(t *testing.T) {
			h := NewHistoryFetcher(listerFunc(func(context.Context) ([]models.Scan, error) { return nil, cause }))
			rows, err := h.List(t.Context())
			assert.Nil(t, rows)
			var fe *reconapi.FetchError
			require.ErrorAs(t, err, &fe)
			assert.ErrorIs(t, err, cause)
		})
	}
}

func TestSubmitterRecordsSubmission(t *testing.T) {
	cache := newCache(t)
	api := &fakeAPI{handle: &reconapi.JobHandle{ID: "abc123"}}
	s := NewSubmitter(api, cache)

	h, err := s.Submit(t.Context(), " example.com ", nil)
	require.NoError(t, err)
	assert.Equal(t, "abc123", h.ID)

	subs, err := cache.Submissions(t.Context())
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "example.com", subs[0].Domain)
	assert.Equal(t, []string{"all"}, subs[0].ScanTypes)
	assert.Equal(t, "cli", subs[0].Source)
	assert.False(t, subs[0].SubmittedAt.IsZero())
}

func TestSubmitterFailureLeavesNoState(t *testing.T) {
	cache := newCache(t)
	api := &fakeAPI{err: &reconapi.SubmissionError{Domain: "example.com", Err: errors.New("500")}}
	s := NewSubmitter(api, cache)

	_, err := s.SubmitAs(t.Context(), "schedule:nightly", "example.com", []string{"ports"})
	var se *reconapi.SubmissionError
	require.ErrorAs(t, err, &se)

	subs, err := cache.Submissions(t.Context())
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestSubmitterWithoutCache(t *testing.T) {
	s := NewSubmitter(&fakeAPI{handle: &reconapi.JobHandle{ID: "x"}}, nil)
	h, err := s.Submit(t.Context(), "example.com", []string{"ports"})
	require.NoError(t, err)
	assert.Equal(t, "x", h.ID)
}

func TestCacheStoresOnlyTerminalSnapshots(t *testing.T) {
	cache := newCache(t)
	ctx := t.Context()

	running := &models.Scan{ID: "r", Domain: "a.com", Status: models.StatusRunning, Timestamp: at(1)}
	assert.ErrorIs(t, cache.SaveTerminal(ctx, running), ErrNotTerminal)
	assert.ErrorIs(t, cache.SaveTerminal(ctx, nil), ErrNotTerminal)

	done := &models.Scan{ID: "c", Domain: "b.com", Status: models.StatusCompleted, Timestamp: at(2),
		Subdomains: &models.SubdomainResult{Subdomains: []string{"x.b.com"}, Count: 1},
		Ports:      []models.PortResult{{IP: "1.2.3.4", Ports: []int{443}, Banners: map[string]string{"443": "nginx"}}},
	}
	failed := &models.Scan{ID: "f", Domain: "c.com", Status: models.StatusFailed, Timestamp: at(3)}
	require.NoError(t, cache.SaveTerminal(ctx, done))
	require.NoError(t, cache.SaveTerminal(ctx, failed))
	require.NoError(t, cache.SaveTerminal(ctx, done))

	got, err := cache.Result(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, done.Ports, got.Ports)
	assert.True(t, done.Timestamp.Equal(got.Timestamp.Time))

	_, err = cache.Result(ctx, "r")
	assert.ErrorIs(t, err, ErrNotCached)

	rows, err := cache.ListLocal(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "f", rows[0].ID)
	assert.Equal(t, "1 Subs • 1 Ports", rows[1].Overview())
}

func TestCacheToleratesCorruptRows(t *testing.T) {
	cache := newCache(t)
	ctx := t.Context()

	require.NoError(t, cache.db.Upsert(ctx, "submissions", submissionRow{
		JobID: "bad", Domain: "a.com", ScanTypes: "{not json", Source: "cli", SubmittedAt: formatTime(at(1).Time),
	}, []string{"job_id"}))
	subs, err := cache.Submissions(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "bad", subs[0].JobID)
	assert.Empty(t, subs[0].ScanTypes)

	require.NoError(t, cache.db.Upsert(ctx, "results", resultRow{
		JobID: "broken", Domain: "b.com", Status: "completed", Payload: "{truncated",
	}, []string{"job_id"}))
	require.NoError(t, cache.SaveTerminal(ctx, &models.Scan{ID: "good", Domain: "c.com", Status: models.StatusCompleted, Timestamp: at(2)}))
	rows, err := cache.ListLocal(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "good", rows[0].ID)

	_, err = cache.Result(ctx, "broken")
	assert.ErrorContains(t, err, "decoding cached scan broken")
}
