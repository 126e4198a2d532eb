// Package reconapi is a thin HTTP client for the recon service REST API.
package reconapi

// DefaultScanTypes is sent when the caller does not pick any scan types.
var DefaultScanTypes = []string{"all"}

// SubmitRequest is sent to POST /api/scan.
type SubmitRequest struct {
	Domain    string   `json:"domain"`
	ScanTypes []string `json:"scan_types"`
}

// JobHandle identifies a created scan. The service returns the full initial
// snapshot; only the id is required.
type JobHandle struct {
	ID string `json:"id"`
}

// HealthStatus is returned by GET /health.
type HealthStatus struct {
	Status string `json:"status"`
}
