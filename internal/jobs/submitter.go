package jobs

import (
	"context"
	"log/slog"
	"strings"

	"github.com/CosmoTheDev/reconctl/internal/reconapi"
)

// API submits scans. *reconapi.Client implements it.
type API interface {
	Submit(ctx context.Context, domain string, scanTypes []string) (*reconapi.JobHandle, error)
}

// Submitter creates scans and records them in the local cache.
type Submitter struct {
	api   API
	cache *Cache
}

// NewSubmitter returns a Submitter. cache may be nil.
func NewSubmitter(api API, cache *Cache) *Submitter {
	return &Submitter{api: api, cache: cache}
}

// Submit creates a scan for domain. Failures are *reconapi.SubmissionError
// and leave no local state behind.
func (s *Submitter) Submit(ctx context.Context, domain string, scanTypes []string) (*reconapi.JobHandle, error) {
	return s.SubmitAs(ctx, "cli", domain, scanTypes)
}

// SubmitAs is Submit with the origin recorded in the cache, e.g. "schedule:nightly".
func (s *Submitter) SubmitAs(ctx context.Context, source, domain string, scanTypes []string) (*reconapi.JobHandle, error) {
	h, err := s.api.Submit(ctx, domain, scanTypes)
	if err != nil {
		return nil, err
	}
	slog.Info("Scan submitted", "job_id", h.ID, "domain", strings.TrimSpace(domain), "source", source)

	if s.cache != nil {
		if len(scanTypes) == 0 {
			scanTypes = reconapi.DefaultScanTypes
		}
		sub := Submission{JobID: h.ID, Domain: strings.TrimSpace(domain), ScanTypes: scanTypes, Source: source}
		if err := s.cache.RecordSubmission(ctx, sub); err != nil {
			slog.Warn("Could not record submission locally", "job_id", h.ID, "error", err)
		}
	}
	return h, nil
}
