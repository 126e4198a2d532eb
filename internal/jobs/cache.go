package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/CosmoTheDev/reconctl/internal/database"
	"github.com/CosmoTheDev/reconctl/models"
)

// ErrNotTerminal is returned when asked to cache a scan that can still change.
var ErrNotTerminal = errors.New("only completed or failed scans are cached")

// ErrNotCached is returned by Cache.Result for unknown job ids.
var ErrNotCached = errors.New("scan not in local cache")

// Submission is a scan this client submitted.
type Submission struct {
	JobID       string    `json:"job_id" yaml:"job_id"`
	Domain      string    `json:"domain" yaml:"domain"`
	ScanTypes   []string  `json:"scan_types" yaml:"scan_types"`
	Source      string    `json:"source" yaml:"source"`
	SubmittedAt time.Time `json:"submitted_at" yaml:"submitted_at"`
}

type submissionRow struct {
	JobID       string `db:"job_id"`
	Domain      string `db:"domain"`
	ScanTypes   string `db:"scan_types"`
	Source      string `db:"source"`
	SubmittedAt string `db:"submitted_at"`
}

type resultRow struct {
	JobID     string `db:"job_id"`
	Domain    string `db:"domain"`
	Status    string `db:"status"`
	Payload   string `db:"payload"`
	CreatedAt string `db:"created_at"`
	UpdatedAt string `db:"updated_at"`
}

// Cache persists submissions and terminal results in the local database.
type Cache struct {
	db  database.DB
	now func() time.Time
}

func NewCache(db database.DB) *Cache {
	return &Cache{db: db, now: time.Now}
}

// RecordSubmission stores (or refreshes) a submission.
func (c *Cache) RecordSubmission(ctx context.Context, s Submission) error {
	types, err := json.Marshal(s.ScanTypes)
	if err != nil {
		return fmt.Errorf("encoding scan types: %w", err)
	}
	if s.SubmittedAt.IsZero() {
		s.SubmittedAt = c.now()
	}
	if s.Source == "" {
		s.Source = "cli"
	}
	row := submissionRow{
		JobID:       s.JobID,
		Domain:      s.Domain,
		ScanTypes:   string(types),
		Source:      s.Source,
		SubmittedAt: formatTime(s.SubmittedAt),
	}
	if err := c.db.Upsert(ctx, "submissions", row, []string{"job_id"}); err != nil {
		return fmt.Errorf("recording submission %s: %w", s.JobID, err)
	}
	return nil
}

// Submissions lists recorded submissions, newest first.
func (c *Cache) Submissions(ctx context.Context) ([]Submission, error) {
	var rows []submissionRow
	if err := c.db.Select(ctx, &rows,
		`SELECT job_id, domain, scan_types, source, submitted_at FROM submissions ORDER BY submitted_at DESC, job_id`); err != nil {
		return nil, fmt.Errorf("listing submissions: %w", err)
	}
	out := make([]Submission, 0, len(rows))
	for _, r := range rows {
		s := Submission{JobID: r.JobID, Domain: r.Domain, Source: r.Source, SubmittedAt: parseTime(r.SubmittedAt)}
		if err := json.Unmarshal([]byte(r.ScanTypes), &s.ScanTypes); err != nil {
			slog.Debug("Ignoring unreadable scan types", "job_id", r.JobID, "error", err)
		}
		out = append(out, s)
	}
	return out, nil
}

// SaveTerminal stores a completed or failed snapshot. Terminal snapshots
// never change, so a later save of the same job overwrites identical data.
func (c *Cache) SaveTerminal(ctx context.Context, snap *models.Scan) error {
	if !snap.Terminal() {
		return ErrNotTerminal
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding scan %s: %w", snap.ID, err)
	}
	row := resultRow{
		JobID:     snap.ID,
		Domain:    snap.Domain,
		Status:    string(snap.Status),
		Payload:   string(payload),
		CreatedAt: formatTime(snap.Timestamp.Time),
		UpdatedAt: formatTime(c.now()),
	}
	if err := c.db.Upsert(ctx, "results", row, []string{"job_id"}); err != nil {
		return fmt.Errorf("caching scan %s: %w", snap.ID, err)
	}
	return nil
}

// Result loads a cached snapshot.
func (c *Cache) Result(ctx context.Context, jobID string) (*models.Scan, error) {
	var row resultRow
	err := c.db.Get(ctx, &row, `SELECT job_id, payload FROM results WHERE job_id = ?`, jobID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotCached
	}
	if err != nil {
		return nil, fmt.Errorf("loading cached scan %s: %w", jobID, err)
	}
	var snap models.Scan
	if err := json.Unmarshal([]byte(row.Payload), &snap); err != nil {
		return nil, fmt.Errorf("decoding cached scan %s: %w", jobID, err)
	}
	return &snap, nil
}

// ListLocal returns cached results as history rows, newest first.
func (c *Cache) ListLocal(ctx context.Context) ([]Summary, error) {
	var rows []resultRow
	if err := c.db.Select(ctx, &rows, `SELECT job_id, payload FROM results`); err != nil {
		return nil, fmt.Errorf("listing cached scans: %w", err)
	}
	out := make([]Summary, 0, len(rows))
	for _, r := range rows {
		var snap models.Scan
		if err := json.Unmarshal([]byte(r.Payload), &snap); err != nil {
			slog.Debug("Skipping unreadable cached scan", "job_id", r.JobID, "error", err)
			continue
		}
		out = append(out, Summarize(&snap))
	}
	SortNewestFirst(out)
	return out, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}
	}
	return t
}
