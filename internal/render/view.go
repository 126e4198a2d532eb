// Package render turns a scan snapshot into display sections. Render is pure
// and total: any snapshot, including nil or a partially populated one,
// produces a complete View with zero counts and placeholder text where data is
// missing.
package render

import (
	"encoding/base64"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/CosmoTheDev/reconctl/models"
)

// Placeholder text shown for empty sections.
const (
	NoPorts           = "No open ports found or scan failed."
	NoTechnologies    = "No technologies detected."
	NoScreenshots     = "No screenshots captured."
	NoDirectories     = "No directories discovered."
	NoVulnerabilities = "No potential vulnerabilities identified."
	NoSubdomains      = "No subdomains found."

	InProgress   = "Scanning in progress..."
	AdvisoryHint = "Check version against NVD or run targeted exploit check."
)

// Section keys, in display order.
const (
	SectionPorts           = "ports"
	SectionTechnologies    = "technologies"
	SectionDirectories     = "directories"
	SectionVulnerabilities = "vulnerabilities"
	SectionSubdomains      = "subdomains"
)

type Header struct {
	JobID      string    `json:"job_id" yaml:"job_id"`
	Domain     string    `json:"domain" yaml:"domain"`
	Status     string    `json:"status" yaml:"status"`
	CreatedAt  time.Time `json:"created_at,omitzero" yaml:"created_at,omitempty"`
	InProgress bool      `json:"in_progress" yaml:"in_progress"`
	Terminal   bool      `json:"terminal" yaml:"terminal"`
}

// Summary holds the four headline counts.
type Summary struct {
	Subdomains   int `json:"subdomains" yaml:"subdomains"`
	OpenPorts    int `json:"open_ports" yaml:"open_ports"`
	Technologies int `json:"technologies" yaml:"technologies"`
	Screenshots  int `json:"screenshots" yaml:"screenshots"`
}

// Section is a titled list. Placeholder is set only when Items is empty.
type Section struct {
	Key         string   `json:"key" yaml:"key"`
	Title       string   `json:"title" yaml:"title"`
	Items       []string `json:"items" yaml:"items"`
	Note        string   `json:"note,omitempty" yaml:"note,omitempty"`
	Placeholder string   `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
}

// Empty reports whether the section has nothing to show.
func (s Section) Empty() bool { return len(s.Items) == 0 }

// Screenshot is one gallery tile. The image itself is not carried, only what
// a terminal can show about it.
type Screenshot struct {
	Host      string `json:"host" yaml:"host"`
	MediaType string `json:"media_type,omitempty" yaml:"media_type,omitempty"`
	Bytes     int    `json:"bytes" yaml:"bytes"`
	VisitURL  string `json:"visit_url" yaml:"visit_url"`
	Valid     bool   `json:"valid" yaml:"valid"`
}

type Gallery struct {
	Title       string       `json:"title" yaml:"title"`
	Items       []Screenshot `json:"items" yaml:"items"`
	Placeholder string       `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
}

// View is everything a frontend needs to display a snapshot.
type View struct {
	Header   Header    `json:"header" yaml:"header"`
	Summary  Summary   `json:"summary" yaml:"summary"`
	Sections []Section `json:"sections" yaml:"sections"`
	Gallery  Gallery   `json:"gallery" yaml:"gallery"`
	// Banners maps a first-host port to the service banner, when known.
	Banners map[int]string `json:"banners,omitempty" yaml:"banners,omitempty"`
}

// Section returns the section with key, or a zero Section.
func (v View) Section(key string) Section {
	for _, s := range v.Sections {
		if s.Key == key {
			return s
		}
	}
	return Section{}
}

// Render maps snap to a View. It never panics and never returns an error.
func Render(snap *models.Scan) View {
	if snap == nil {
		snap = &models.Scan{}
	}

	v := View{
		Header: Header{
			JobID:      snap.ID,
			Domain:     snap.Domain,
			Status:     statusLabel(snap.Status),
			CreatedAt:  snap.Timestamp.Time,
			InProgress: snap.Status == models.StatusRunning,
			Terminal:   snap.Status.Terminal(),
		},
	}

	subdomains := subdomainList(snap.Subdomains)
	ports, banners := firstHostPorts(snap.Ports)
	techs := nonEmpty(snap.Technologies)
	v.Banners = banners

	v.Summary = Summary{
		Subdomains:   subdomainCount(snap.Subdomains, subdomains),
		OpenPorts:    len(ports),
		Technologies: len(techs),
		Screenshots:  len(snap.Screenshots),
	}

	badges := make([]string, 0, len(ports))
	for _, p := range ports {
		badges = append(badges, "Port "+strconv.Itoa(p))
	}

	v.Sections = []Section{
		section(SectionPorts, "Open Ports & Services", badges, "", NoPorts),
		section(SectionTechnologies, "Technology Stack", techs, "", NoTechnologies),
		section(SectionDirectories, "Directory & File Discovery", nonEmpty(snap.Directories), "", NoDirectories),
		section(SectionVulnerabilities, "Potential Vulnerabilities", nonEmpty(snap.Vulnerabilities), AdvisoryHint, NoVulnerabilities),
		section(SectionSubdomains, "Subdomains", subdomains, "", NoSubdomains),
	}
	v.Gallery = gallery(snap.Screenshots)
	return v
}

func section(key, title string, items []string, note, placeholder string) Section {
	s := Section{Key: key, Title: title, Items: items}
	if len(items) == 0 {
		s.Items = []string{}
		s.Placeholder = placeholder
		return s
	}
	s.Note = note
	return s
}

func statusLabel(s models.Status) string {
	if s == "" {
		return "unknown"
	}
	return string(s)
}

func subdomainList(r *models.SubdomainResult) []string {
	if r == nil {
		return nil
	}
	return nonEmpty(r.Subdomains)
}

// subdomainCount prefers the reported count and falls back to the list length.
func subdomainCount(r *models.SubdomainResult, list []string) int {
	if r != nil && r.Count > 0 {
		return r.Count
	}
	return len(list)
}

// firstHostPorts returns the ports of the first scanned host only.
func firstHostPorts(hosts []models.PortResult) ([]int, map[int]string) {
	if len(hosts) == 0 {
		return nil, nil
	}
	first := hosts[0]
	var banners map[int]string
	for k, b := range first.Banners {
		p, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil || strings.TrimSpace(b) == "" {
			continue
		}
		if banners == nil {
			banners = make(map[int]string)
		}
		banners[p] = strings.TrimSpace(b)
	}
	return first.Ports, banners
}

func nonEmpty(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func gallery(shots map[string]string) Gallery {
	g := Gallery{Title: "Visual Reconnaissance", Items: []Screenshot{}}
	if len(shots) == 0 {
		g.Placeholder = NoScreenshots
		return g
	}
	hosts := make([]string, 0, len(shots))
	for h := range shots {
		hosts = append(hosts, h)
	}
	sort.Strings(hosts)
	for _, h := range hosts {
		mt, n, ok := inspectDataURI(shots[h])
		g.Items = append(g.Items, Screenshot{
			Host:      h,
			MediaType: mt,
			Bytes:     n,
			VisitURL:  "http://" + h,
			Valid:     ok,
		})
	}
	return g
}

// inspectDataURI extracts the media type and decoded size of a
// "data:<type>;base64,<payload>" URI. Bare base64 payloads are accepted too.
func inspectDataURI(uri string) (mediaType string, size int, ok bool) {
	payload := strings.TrimSpace(uri)
	if rest, found := strings.CutPrefix(payload, "data:"); found {
		meta, data, found := strings.Cut(rest, ",")
		if !found {
			return "", 0, false
		}
		mediaType, _, _ = strings.Cut(meta, ";")
		if !strings.HasSuffix(meta, ";base64") {
			return mediaType, len(data), true
		}
		payload = data
	}
	b, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return mediaType, 0, false
	}
	return mediaType, len(b), true
}
