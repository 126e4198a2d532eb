package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/CosmoTheDev/reconctl/internal/jobs"
	"github.com/CosmoTheDev/reconctl/internal/poller"
	"github.com/CosmoTheDev/reconctl/internal/render"
	"github.com/CosmoTheDev/reconctl/models"
)

// scanUpdateMsg signals that the watched job's store accepted a snapshot.
type scanUpdateMsg struct{ jobID string }

// sessionStoppedMsg is sent once when the watched session stops.
type sessionStoppedMsg struct {
	jobID  string
	reason poller.StopReason
	err    error
}

// watchJobMsg asks the app to switch the watch tab to a job.
type watchJobMsg struct{ jobID string }

type cacheSavedMsg struct {
	jobID string
	err   error
}

// WatchModel follows one job: it subscribes to the job's result store and
// re-renders whenever the poller accepts a snapshot.
type WatchModel struct {
	ctx     context.Context
	manager *poller.Manager
	cache   *jobs.Cache

	jobID   string
	session *poller.Session
	updates chan struct{}
	unsub   func()

	width  int
	height int
	offset int
	notice string
}

func NewWatchModel(ctx context.Context, m *poller.Manager, cache *jobs.Cache) WatchModel {
	return WatchModel{ctx: ctx, manager: m, cache: cache}
}

func (w WatchModel) Init() tea.Cmd { return nil }

// Watch switches to jobID and starts (or reuses) its poll session. The
// session of the job being left is cancelled.
func (w WatchModel) Watch(jobID string) (WatchModel, tea.Cmd) {
	if w.unsub != nil {
		w.unsub()
	}
	if w.jobID != "" && w.jobID != jobID {
		w.manager.Stop(w.jobID)
	}
	w.jobID = jobID
	w.offset = 0
	w.notice = ""

	w.seedFromCache(jobID)

	// The store calls subscribers while the session holds its lock, so the
	// subscriber only drops a token into a one-slot channel.
	updates := make(chan struct{}, 1)
	w.updates = updates
	w.unsub = w.manager.Store(jobID).Subscribe(func(*models.Scan) {
		select {
		case updates <- struct{}{}:
		default:
		}
	})
	return w.start()
}

// seedFromCache puts a locally cached result into the store so a finished
// scan opens without hitting the service.
func (w WatchModel) seedFromCache(jobID string) {
	st := w.manager.Store(jobID)
	if w.cache == nil || st.Current() != nil {
		return
	}
	ctx, cancel := context.WithTimeout(w.ctx, 2*time.Second)
	defer cancel()
	if snap, err := w.cache.Result(ctx, jobID); err == nil {
		st.Update(snap)
	}
}

func (w WatchModel) start() (WatchModel, tea.Cmd) {
	s, err := w.manager.Start(w.ctx, w.jobID)
	if err != nil {
		w.notice = errorStyle.Render("Could not start polling: " + err.Error())
		return w, nil
	}
	w.session = s
	return w, w.waitCmd()
}

func (w WatchModel) waitCmd() tea.Cmd {
	jobID, updates, s := w.jobID, w.updates, w.session
	return func() tea.Msg {
		select {
		case <-updates:
			return scanUpdateMsg{jobID: jobID}
		case <-s.Done():
			return sessionStoppedMsg{jobID: jobID, reason: s.StopReason(), err: s.Err()}
		}
	}
}

func (w WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case scanUpdateMsg:
		if msg.jobID != w.jobID || w.session == nil {
			return w, nil
		}
		return w, w.waitCmd()

	case sessionStoppedMsg:
		if msg.jobID != w.jobID {
			return w, nil
		}
		switch msg.reason {
		case poller.StopDegraded:
			w.notice = warnStyle.Render(fmt.Sprintf("Lost contact with the service (%v). Press r to retry.", msg.err))
		case poller.StopCancelled:
			w.notice = dimStyle.Render("Polling stopped. Press r to resume.")
		case poller.StopTerminal:
			w.notice = ""
			return w, w.saveCmd()
		}

	case cacheSavedMsg:
		if msg.err != nil && msg.jobID == w.jobID {
			w.notice = dimStyle.Render("Result not cached locally: " + msg.err.Error())
		}

	case tea.KeyMsg:
		switch msg.String() {
		case "r":
			if w.jobID == "" || w.session == nil || w.session.State() != poller.StateStopped {
				return w, nil
			}
			if w.manager.Store(w.jobID).Current().Terminal() {
				return w, nil
			}
			w.notice = ""
			return w.start()
		case "c":
			if w.jobID != "" {
				w.manager.Stop(w.jobID)
			}
		case "j", "down":
			w.offset++
		case "k", "up":
			w.offset = max(0, w.offset-1)
		case "pgdown", "f":
			w.offset += max(1, w.height-4)
		case "pgup", "b":
			w.offset = max(0, w.offset-max(1, w.height-4))
		case "g", "home":
			w.offset = 0
		}
	}
	return w, nil
}

func (w WatchModel) saveCmd() tea.Cmd {
	if w.cache == nil {
		return nil
	}
	ctx, cache, jobID := w.ctx, w.cache, w.jobID
	snap := w.manager.Store(jobID).Current()
	return func() tea.Msg {
		sctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return cacheSavedMsg{jobID: jobID, err: cache.SaveTerminal(sctx, snap)}
	}
}

func (w *WatchModel) SetSize(width, height int) {
	w.width = width
	w.height = height
}

// Close detaches from the watched job and cancels its session.
func (w WatchModel) Close() {
	if w.unsub != nil {
		w.unsub()
	}
	if w.jobID != "" {
		w.manager.Stop(w.jobID)
	}
}

func (w WatchModel) View() string {
	width := max(20, w.width-2)
	if w.jobID == "" {
		return panelStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left,
			panelHeaderStyle.Render("No scan selected"),
			"",
			dimStyle.Render("Press n to start a scan, or pick one from History (2)."),
		))
	}

	snap := w.manager.Store(w.jobID).Current()
	if snap == nil {
		body := []string{panelHeaderStyle.Render("Initializing Scan..."), dimStyle.Render("job " + w.jobID)}
		if w.notice != "" {
			body = append(body, "", w.notice)
		}
		return panelStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, body...))
	}

	content := w.renderScan(render.Render(snap), width)
	lines := strings.Split(content, "\n")
	limit := max(5, w.height-3)
	offset := min(w.offset, max(0, len(lines)-limit))
	end := min(len(lines), offset+limit)

	footer := w.pollLine()
	if w.notice != "" {
		footer = w.notice
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		strings.Join(lines[offset:end], "\n"),
		footer,
	)
}

func (w WatchModel) pollLine() string {
	if w.session == nil {
		return ""
	}
	state := w.session.State()
	parts := []string{dimStyle.Render("poller: " + state.String())}
	if w.session.InFlight() {
		parts = append(parts, dimStyle.Render("fetching..."))
	}
	if state == poller.StateStopped {
		parts = append(parts, dimStyle.Render("("+w.session.StopReason().String()+")"))
	}
	if n := w.session.Failures(); n > 0 {
		parts = append(parts, warnStyle.Render(fmt.Sprintf("%d failed fetches", n)))
		if err := w.session.LastError(); err != nil {
			parts = append(parts, dimStyle.Render(truncate(err.Error(), 60)))
		}
	}
	return strings.Join(parts, "  ")
}

func (w WatchModel) renderScan(v render.View, width int) string {
	created := ""
	if !v.Header.CreatedAt.IsZero() {
		created = "Scanned on " + v.Header.CreatedAt.Local().Format(time.DateTime)
	}
	headerRow := lipgloss.JoinHorizontal(lipgloss.Left,
		titleStyle.Render(v.Header.Domain),
		"  ",
		statusBadge(v.Header.Status),
		"  ",
		dimStyle.Render(created),
	)
	if v.Header.InProgress {
		headerRow += "  " + lipgloss.NewStyle().Foreground(blue).Render("• "+render.InProgress)
	}

	cardW := 18
	if width >= 100 {
		cardW = 20
	}
	summary := lipgloss.JoinHorizontal(lipgloss.Top,
		renderCounter("Subdomains", v.Summary.Subdomains, okStyle, cardW),
		renderCounter("Open Ports", v.Summary.OpenPorts, okStyle, cardW),
		renderCounter("Technologies", v.Summary.Technologies, okStyle, cardW),
		renderCounter("Screenshots", v.Summary.Screenshots, okStyle, cardW),
	)

	blocks := []string{headerRow, summary}
	for _, s := range v.Sections {
		blocks = append(blocks, panelStyle.Width(width).Render(renderSection(s, v.Banners)))
		if s.Key == render.SectionTechnologies {
			blocks = append(blocks, panelStyle.Width(width).Render(renderGallery(v.Gallery)))
		}
	}
	return lipgloss.JoinVertical(lipgloss.Left, blocks...)
}

func renderSection(s render.Section, banners map[int]string) string {
	rows := []string{panelHeaderStyle.Render(s.Title)}
	if s.Empty() {
		return lipgloss.JoinVertical(lipgloss.Left, append(rows, dimStyle.Render(s.Placeholder))...)
	}
	switch s.Key {
	case render.SectionPorts:
		badges := make([]string, 0, len(s.Items))
		for _, item := range s.Items {
			badges = append(badges, badgeStyle.Render(item), " ")
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Left, badges...))
		ports := make([]int, 0, len(banners))
		for p := range banners {
			ports = append(ports, p)
		}
		sort.Ints(ports)
		for _, p := range ports {
			rows = append(rows, dimStyle.Render(fmt.Sprintf("%d: %s", p, banners[p])))
		}
	case render.SectionTechnologies:
		badges := make([]string, 0, len(s.Items))
		for _, item := range s.Items {
			badges = append(badges, techBadgeStyle.Render(item))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Left, badges...))
	case render.SectionVulnerabilities:
		for _, item := range s.Items {
			rows = append(rows, vulnStyle.Render("! "+item), dimStyle.Render("  "+s.Note))
		}
	default:
		for _, item := range s.Items {
			rows = append(rows, "  "+item)
		}
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func renderGallery(g render.Gallery) string {
	rows := []string{panelHeaderStyle.Render(g.Title)}
	if len(g.Items) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, append(rows, dimStyle.Render(g.Placeholder))...)
	}
	for _, shot := range g.Items {
		info := fmt.Sprintf("%s, %d bytes", shot.MediaType, shot.Bytes)
		if !shot.Valid {
			info = "unreadable image"
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Left,
			lipgloss.NewStyle().Width(32).Foreground(ink).Render(truncate(shot.Host, 30)),
			dimStyle.Render(info),
			"  ",
			lipgloss.NewStyle().Foreground(blue).Render(shot.VisitURL),
		))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func renderCounter(label string, count int, style lipgloss.Style, width int) string {
	return boxStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Center,
			style.Bold(true).Render(fmt.Sprintf("%d", count)),
			dimStyle.Render(strings.ToUpper(label)),
		),
	) + "  "
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
