// Package jobs submits scans, lists scan history and keeps a local cache of
// submissions and finished results.
package jobs

import (
	"fmt"
	"strings"
	"time"

	"github.com/CosmoTheDev/reconctl/internal/render"
	"github.com/CosmoTheDev/reconctl/models"
)

// Summary is one history row.
type Summary struct {
	ID           string        `json:"id" yaml:"id"`
	Domain       string        `json:"domain" yaml:"domain"`
	Status       models.Status `json:"status" yaml:"status"`
	CreatedAt    time.Time     `json:"created_at,omitzero" yaml:"created_at,omitempty"`
	Subdomains   int           `json:"subdomains" yaml:"subdomains"`
	Ports        int           `json:"ports" yaml:"ports"`
	Technologies int           `json:"technologies" yaml:"technologies"`
}

// Summarize projects a snapshot onto a history row using the same counting
// rules as the result view.
func Summarize(s *models.Scan) Summary {
	v := render.Render(s)
	out := Summary{
		Subdomains:   v.Summary.Subdomains,
		Ports:        v.Summary.OpenPorts,
		Technologies: v.Summary.Technologies,
	}
	if s != nil {
		out.ID = s.ID
		out.Domain = s.Domain
		out.Status = s.Status
		out.CreatedAt = s.Timestamp.Time
	}
	return out
}

// Overview is the compact result line, e.g. "12 Subs • 3 Ports • 5 Techs".
// Zero counts are left out.
func (s Summary) Overview() string {
	var parts []string
	if s.Subdomains > 0 {
		parts = append(parts, fmt.Sprintf("%d Subs", s.Subdomains))
	}
	if s.Ports > 0 {
		parts = append(parts, fmt.Sprintf("%d Ports", s.Ports))
	}
	if s.Technologies > 0 {
		parts = append(parts, fmt.Sprintf("%d Techs", s.Technologies))
	}
	return strings.Join(parts, " • ")
}
