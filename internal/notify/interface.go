package notify

import "context"

// Event types.
const (
	EventScanSubmitted = "scan_submitted"
	EventScanCompleted = "scan_completed"
	EventScanFailed    = "scan_failed"
	EventPollDegraded  = "poll_degraded"
)

// Event is a notification about one scan.
type Event struct {
	Type     string
	Title    string
	Body     string
	URL      string // optional link to the scan on the service
	JobID    string
	Domain   string
	Status   string
	Metadata map[string]any
}

// Channel is implemented by each notification provider.
type Channel interface {
	Name() string
	IsConfigured() bool
	Send(ctx context.Context, evt Event) error
}
