package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanDecodeFullSnapshot(t *testing.T) {
	raw := `{
		"id": "abc123",
		"domain": "example.com",
		"status": "completed",
		"timestamp": "2025-03-01T10:20:30.123456",
		"subdomains": {"subdomains": ["a.example.com", "b.example.com"], "count": 2},
		"ports": [{"ip": "93.184.216.34", "ports": [80, 443]}],
		"technologies": ["nginx"],
		"screenshots": {"example.com": "data:image/png;base64,AAAA"}
	}`

	var s Scan
	require.NoError(t, json.Unmarshal([]byte(raw), &s))
	assert.Equal(t, "abc123", s.ID)
	assert.Equal(t, StatusCompleted, s.Status)
	assert.True(t, s.Terminal())
	require.NotNil(t, s.Subdomains)
	assert.Equal(t, 2, s.Subdomains.Count)
	assert.Equal(t, []int{80, 443}, s.Ports[0].Ports)
	assert.Nil(t, s.Directories)
	assert.Equal(t, time.Date(2025, 3, 1, 10, 20, 30, 123456000, time.UTC), s.Timestamp.Time)
}

func TestScanDecodeNullResults(t *testing.T) {
	raw := `{"id":"x","domain":"d","status":"pending","timestamp":"2025-03-01T10:20:30Z",
		"subdomains":null,"ports":null,"technologies":null}`

	var s Scan
	require.NoError(t, json.Unmarshal([]byte(raw), &s))
	assert.Nil(t, s.Subdomains)
	assert.Nil(t, s.Ports)
	assert.False(t, s.Terminal())
	assert.NoError(t, s.Validate())
}

func TestScanDecodeRejectsUnknownStatus(t *testing.T) {
	var s Scan
	err := json.Unmarshal([]byte(`{"id":"x","status":"paused"}`), &s)
	assert.ErrorContains(t, err, "unknown scan status")
}

func TestStatusRankIsMonotonic(t *testing.T) {
	assert.Less(t, StatusPending.Rank(), StatusRunning.Rank())
	assert.Less(t, StatusRunning.Rank(), StatusCompleted.Rank())
	assert.Equal(t, StatusCompleted.Rank(), StatusFailed.Rank())
	assert.True(t, StatusFailed.Terminal())
	assert.False(t, StatusRunning.Terminal())
}

func TestValidate(t *testing.T) {
	var nilScan *Scan
	assert.Error(t, nilScan.Validate())
	assert.Error(t, (&Scan{Status: StatusRunning}).Validate())
	assert.Error(t, (&Scan{ID: "x"}).Validate())
}
