package tui

import (
	"errors"
	"strings"

	"github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
)

// scanTypeOptions lists the scan types the service understands. The multi
// select mutates its options, so every form gets a fresh slice.
func scanTypeOptions() []huh.Option[string] {
	return []huh.Option[string]{
		huh.NewOption("Everything", "all"),
		huh.NewOption("Subdomain enumeration", "subdomains"),
		huh.NewOption("Port scan", "ports"),
		huh.NewOption("OSINT (tech stack, screenshots, directories)", "osint"),
	}
}

// ValidateDomain rejects blank input. Everything else is left to the service.
func ValidateDomain(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("domain is required")
	}
	return nil
}

// NewScanForm builds the new-scan form. It is run standalone by
// `reconctl scan` and embedded in the TUI.
func NewScanForm(domain *string, scanTypes *[]string) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Target domain").
				Placeholder("example.com").
				Value(domain).
				Validate(ValidateDomain),
			huh.NewMultiSelect[string]().
				Title("Scan types").
				Options(scanTypeOptions()...).
				Value(scanTypes),
		),
	)
}

// scanRequestedMsg is sent when the embedded form is submitted.
type scanRequestedMsg struct {
	domain    string
	scanTypes []string
}

type scanSubmittedMsg struct {
	jobID  string
	domain string
	err    error
}

// NewScanModel wraps the form for use inside the App.
type NewScanModel struct {
	form      *huh.Form
	domain    *string
	scanTypes *[]string
}

func NewNewScanModel() NewScanModel {
	domain := ""
	scanTypes := []string{"all"}
	return NewScanModel{
		form:      NewScanForm(&domain, &scanTypes),
		domain:    &domain,
		scanTypes: &scanTypes,
	}
}

func (n NewScanModel) Init() tea.Cmd { return n.form.Init() }

// Update returns done=true once the form was submitted or aborted.
func (n NewScanModel) Update(msg tea.Msg) (NewScanModel, tea.Cmd, bool) {
	if k, ok := msg.(tea.KeyMsg); ok && k.String() == "esc" {
		return n, nil, true
	}
	m, cmd := n.form.Update(msg)
	if f, ok := m.(*huh.Form); ok {
		n.form = f
	}
	switch n.form.State {
	case huh.StateCompleted:
		req := scanRequestedMsg{domain: strings.TrimSpace(*n.domain), scanTypes: *n.scanTypes}
		return n, func() tea.Msg { return req }, true
	case huh.StateAborted:
		return n, nil, true
	}
	return n, cmd, false
}

func (n NewScanModel) View() string { return n.form.View() }
