package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of a remote scan.
// Transitions are monotonic: pending → running → completed|failed.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// ParseStatus returns the Status for s, or an error for anything outside the
// four-value enum.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed:
		return st, nil
	default:
		return "", fmt.Errorf("unknown scan status %q", s)
	}
}

// Terminal reports whether no further transition can follow s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Rank orders statuses for monotonicity checks. Both terminal states share
// the highest rank.
func (s Status) Rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusRunning:
		return 1
	case StatusCompleted, StatusFailed:
		return 2
	default:
		return -1
	}
}

// UnmarshalJSON rejects unknown status values.
func (s *Status) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("status: %w", err)
	}
	st, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// zonelessLayout is what the recon service emits for naive datetimes.
const zonelessLayout = "2006-01-02T15:04:05.999999999"

// Timestamp accepts both RFC3339 and zone-less ISO-8601 values.
// Zone-less values are interpreted as UTC.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		t.Time = time.Time{}
		return nil
	}
	if parsed, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		t.Time = parsed
		return nil
	}
	parsed, err := time.ParseInLocation(zonelessLayout, raw, time.UTC)
	if err != nil {
		return fmt.Errorf("timestamp %q: %w", raw, err)
	}
	t.Time = parsed
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// SubdomainResult is the subdomain enumeration output.
type SubdomainResult struct {
	Subdomains []string `json:"subdomains"`
	Count      int      `json:"count"`
}

// PortResult lists the open ports found on one resolved address.
type PortResult struct {
	IP      string            `json:"ip"`
	Ports   []int             `json:"ports"`
	Banners map[string]string `json:"banners,omitempty"`
}

// Scan is a full snapshot of a remote scan as returned by GET /api/scan/{id}.
// Every result field stays nil until the service populates it.
type Scan struct {
	ID        string    `json:"id"`
	Domain    string    `json:"domain"`
	Status    Status    `json:"status"`
	Timestamp Timestamp `json:"timestamp"`

	Subdomains      *SubdomainResult  `json:"subdomains"`
	Ports           []PortResult      `json:"ports"`
	Technologies    []string          `json:"technologies"`
	Directories     []string          `json:"directories,omitempty"`
	Screenshots     map[string]string `json:"screenshots,omitempty"` // hostname -> data URI
	Vulnerabilities []string          `json:"vulnerabilities,omitempty"`
}

// Terminal reports whether the snapshot is final.
func (s *Scan) Terminal() bool {
	return s != nil && s.Status.Terminal()
}

// Validate checks the fields every snapshot must carry.
func (s *Scan) Validate() error {
	if s == nil {
		return fmt.Errorf("empty snapshot")
	}
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("snapshot missing id")
	}
	if s.Status == "" {
		return fmt.Errorf("snapshot %s missing status", s.ID)
	}
	return nil
}
