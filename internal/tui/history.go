package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/CosmoTheDev/reconctl/internal/jobs"
)

// HistoryModel lists past scans, either from the service or from the local cache.
type HistoryModel struct {
	ctx      context.Context
	history  *jobs.HistoryFetcher
	cache    *jobs.Cache
	local    bool
	rows     []jobs.Summary
	err      error
	cursor   int
	width    int
	height   int
	lastLoad time.Time
	loading  bool
}

type historyLoadedMsg struct {
	local bool
	rows  []jobs.Summary
	err   error
}

func NewHistoryModel(ctx context.Context, h *jobs.HistoryFetcher, cache *jobs.Cache) HistoryModel {
	return HistoryModel{ctx: ctx, history: h, cache: cache, loading: true}
}

func (h HistoryModel) Init() tea.Cmd {
	return h.loadCmd()
}

func (h HistoryModel) loadCmd() tea.Cmd {
	ctx, local, history, cache := h.ctx, h.local, h.history, h.cache
	return func() tea.Msg {
		lctx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		if local {
			if cache == nil {
				return historyLoadedMsg{local: true}
			}
			rows, err := cache.ListLocal(lctx)
			return historyLoadedMsg{local: true, rows: rows, err: err}
		}
		rows, err := history.List(lctx)
		return historyLoadedMsg{rows: rows, err: err}
	}
}

func (h HistoryModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case historyLoadedMsg:
		if msg.local != h.local {
			return h, nil
		}
		h.rows = msg.rows
		h.err = msg.err
		h.loading = false
		h.lastLoad = time.Now()
		h.cursor = min(h.cursor, max(0, len(h.rows)-1))

	case tea.KeyMsg:
		switch msg.String() {
		case "j", "down":
			if h.cursor < len(h.rows)-1 {
				h.cursor++
			}
		case "k", "up":
			if h.cursor > 0 {
				h.cursor--
			}
		case "l":
			h.local = !h.local
			h.cursor = 0
			h.rows = nil
			h.loading = true
			return h, h.loadCmd()
		case "r":
			h.loading = true
			return h, h.loadCmd()
		case "enter":
			if h.cursor < len(h.rows) {
				id := h.rows[h.cursor].ID
				return h, func() tea.Msg { return watchJobMsg{jobID: id} }
			}
		}
	}
	return h, nil
}

func (h *HistoryModel) SetSize(w, ht int) {
	h.width = w
	h.height = ht
}

func (h HistoryModel) View() string {
	title := "Scan History"
	if h.local {
		title = "Local Cache"
	}
	width := max(20, h.width-2)
	if h.loading && len(h.rows) == 0 {
		return panelStyle.Width(width).Render("Loading scans...")
	}

	lineLimit := max(5, h.height-8)
	start := 0
	if h.cursor >= lineLimit {
		start = h.cursor - lineLimit + 1
	}

	var rows []string
	for i := start; i < len(h.rows) && i < start+lineLimit; i++ {
		r := h.rows[i]
		created := "-"
		if !r.CreatedAt.IsZero() {
			created = r.CreatedAt.Local().Format(time.DateTime)
		}
		row := lipgloss.JoinHorizontal(lipgloss.Left,
			lipgloss.NewStyle().Width(32).Foreground(ink).Render(truncate(r.Domain, 30)),
			lipgloss.NewStyle().Width(22).Foreground(slate).Render(created),
			lipgloss.NewStyle().Width(14).Render(statusBadge(string(r.Status))),
			dimStyle.Render(r.Overview()),
		)
		if i == h.cursor {
			row = selectedRowStyle.Render(row)
		}
		rows = append(rows, row)
	}
	if len(h.rows) == 0 {
		rows = append(rows, dimStyle.Render(jobs.NoScans))
	}
	if h.err != nil {
		rows = append(rows, "", errorStyle.Render("Could not load scans: "+h.err.Error()))
	}

	updated := "never"
	if !h.lastLoad.IsZero() {
		updated = h.lastLoad.Format("15:04:05")
	}
	keys := lipgloss.JoinHorizontal(lipgloss.Left,
		keycapStyle.Render("enter"), " ", dimStyle.Render("open"), "   ",
		keycapStyle.Render("l"), " ", dimStyle.Render("remote/local"), "   ",
		keycapStyle.Render("r"), " ", dimStyle.Render("refresh"), "   ",
		dimStyle.Render("updated "+updated),
	)

	body := []string{
		panelHeaderStyle.Render(title),
		dimStyle.Render("Domain                          Date                  Status        Result Overview"),
	}
	body = append(body, rows...)
	body = append(body, "", keys)
	return panelStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, body...))
}

// Selected returns the highlighted row.
func (h HistoryModel) Selected() (jobs.Summary, bool) {
	if h.cursor < len(h.rows) {
		return h.rows[h.cursor], true
	}
	return jobs.Summary{}, false
}
