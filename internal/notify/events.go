package notify

import (
	"fmt"
	"strings"

	"github.com/CosmoTheDev/reconctl/internal/render"
	"github.com/CosmoTheDev/reconctl/models"
)

// ScanFinished builds the event for a terminal snapshot. baseURL, when set,
// is used for a link to the scan's JSON.
func ScanFinished(snap *models.Scan, baseURL string) Event {
	v := render.Render(snap)
	evt := Event{
		JobID:  v.Header.JobID,
		Domain: v.Header.Domain,
		Status: v.Header.Status,
		Metadata: map[string]any{
			"subdomains":      v.Summary.Subdomains,
			"open_ports":      v.Summary.OpenPorts,
			"technologies":    v.Summary.Technologies,
			"screenshots":     v.Summary.Screenshots,
			"vulnerabilities": len(v.Section(render.SectionVulnerabilities).Items),
		},
	}
	if snap != nil && snap.Status == models.StatusFailed {
		evt.Type = EventScanFailed
		evt.Title = fmt.Sprintf("Scan failed: %s", evt.Domain)
	} else {
		evt.Type = EventScanCompleted
		evt.Title = fmt.Sprintf("Scan completed: %s", evt.Domain)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d subdomains, %d open ports, %d technologies, %d screenshots",
		v.Summary.Subdomains, v.Summary.OpenPorts, v.Summary.Technologies, v.Summary.Screenshots)
	if vulns := v.Section(render.SectionVulnerabilities).Items; len(vulns) > 0 {
		fmt.Fprintf(&b, "\nPotential vulnerabilities: %s", strings.Join(vulns, ", "))
	}
	evt.Body = b.String()
	if baseURL != "" && evt.JobID != "" {
		evt.URL = strings.TrimRight(baseURL, "/") + "/api/scan/" + evt.JobID
	}
	return evt
}

// PollDegraded builds the event sent when a poll session gives up.
func PollDegraded(jobID, domain string, failures int, cause error) Event {
	body := fmt.Sprintf("Stopped polling after %d consecutive failures.", failures)
	if cause != nil {
		body += "\nLast error: " + cause.Error()
	}
	target := domain
	if target == "" {
		target = jobID
	}
	return Event{
		Type:     EventPollDegraded,
		Title:    fmt.Sprintf("Lost track of scan %s", target),
		Body:     body,
		JobID:    jobID,
		Domain:   domain,
		Metadata: map[string]any{"failures": failures},
	}
}

// ScanSubmitted builds the event for a newly created scan.
func ScanSubmitted(jobID, domain, source string) Event {
	return Event{
		Type:     EventScanSubmitted,
		Title:    fmt.Sprintf("Scan submitted: %s", domain),
		Body:     fmt.Sprintf("Job %s created by %s.", jobID, source),
		JobID:    jobID,
		Domain:   domain,
		Status:   string(models.StatusPending),
		Metadata: map[string]any{"source": source},
	}
}
