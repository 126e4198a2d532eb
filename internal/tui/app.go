package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/CosmoTheDev/reconctl/internal/jobs"
	"github.com/CosmoTheDev/reconctl/internal/poller"
)

// Tab represents a TUI navigation tab.
type Tab int

const (
	TabWatch Tab = iota
	TabHistory
)

var tabNames = []string{"Scan", "History"}

// Backend bundles what the TUI needs to talk to the service.
type Backend struct {
	Submitter *jobs.Submitter
	History   *jobs.HistoryFetcher
	Cache     *jobs.Cache // optional
	Manager   *poller.Manager
	BaseURL   string
}

// App is the root bubbletea model.
type App struct {
	ctx       context.Context
	backend   Backend
	width     int
	height    int
	activeTab Tab
	watch     WatchModel
	history   HistoryModel
	newScan   *NewScanModel
	statusMsg string
	initialID string
}

// NewApp creates the TUI application. If jobID is set the app opens on it.
func NewApp(ctx context.Context, b Backend, jobID string) *App {
	return &App{
		ctx:       ctx,
		backend:   b,
		watch:     NewWatchModel(ctx, b.Manager, b.Cache),
		history:   NewHistoryModel(ctx, b.History, b.Cache),
		initialID: jobID,
	}
}

// Run starts the bubbletea program and blocks until the user quits.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen(), tea.WithContext(a.ctx))
	_, err := p.Run()
	a.watch.Close()
	return err
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	cmds := []tea.Cmd{a.history.Init()}
	if a.initialID != "" {
		id := a.initialID
		cmds = append(cmds, func() tea.Msg { return watchJobMsg{jobID: id} })
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if size, ok := msg.(tea.WindowSizeMsg); ok {
		a.resize(size)
	}

	if a.newScan != nil {
		if _, ok := msg.(tea.KeyMsg); ok || isFormMsg(msg) {
			ns, cmd, done := a.newScan.Update(msg)
			if done {
				a.newScan = nil
			} else {
				a.newScan = &ns
			}
			return a, cmd
		}
	}

	switch msg := msg.(type) {
	case watchJobMsg:
		a.activeTab = TabWatch
		var cmd tea.Cmd
		a.watch, cmd = a.watch.Watch(msg.jobID)
		return a, cmd

	case scanRequestedMsg:
		a.statusMsg = "Submitting scan for " + msg.domain + "..."
		return a, a.submitCmd(msg)

	case scanSubmittedMsg:
		if msg.err != nil {
			a.statusMsg = errorStyle.Render(msg.err.Error())
			return a, nil
		}
		a.statusMsg = okStyle.Render(fmt.Sprintf("Scan %s submitted for %s", msg.jobID, msg.domain))
		id := msg.jobID
		return a, tea.Batch(
			func() tea.Msg { return watchJobMsg{jobID: id} },
			a.history.loadCmd(),
		)

	case scanUpdateMsg, sessionStoppedMsg, cacheSavedMsg:
		m, cmd := a.watch.Update(msg)
		a.watch = m.(WatchModel)
		return a, cmd

	case historyLoadedMsg:
		m, cmd := a.history.Update(msg)
		a.history = m.(HistoryModel)
		return a, cmd

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return a, tea.Quit
		case "1":
			a.activeTab = TabWatch
			return a, nil
		case "2":
			a.activeTab = TabHistory
			return a, nil
		case "tab", "shift+tab":
			a.activeTab = (a.activeTab + 1) % Tab(len(tabNames))
			return a, nil
		case "n":
			ns := NewNewScanModel()
			a.newScan = &ns
			return a, ns.Init()
		}
	}

	switch a.activeTab {
	case TabWatch:
		m, cmd := a.watch.Update(msg)
		a.watch = m.(WatchModel)
		return a, cmd
	case TabHistory:
		m, cmd := a.history.Update(msg)
		a.history = m.(HistoryModel)
		return a, cmd
	}
	return a, nil
}

// isFormMsg reports whether msg is internal to an open huh form (cursor
// blinks, field focus changes) rather than an app message.
func isFormMsg(msg tea.Msg) bool {
	switch msg.(type) {
	case watchJobMsg, scanRequestedMsg, scanSubmittedMsg, scanUpdateMsg,
		sessionStoppedMsg, cacheSavedMsg, historyLoadedMsg, tea.WindowSizeMsg:
		return false
	}
	return true
}

func (a *App) resize(msg tea.WindowSizeMsg) {
	a.width = msg.Width
	a.height = msg.Height
	contentW := max(20, msg.Width-2)
	contentH := max(8, msg.Height-6)
	a.watch.SetSize(contentW, contentH)
	a.history.SetSize(contentW, contentH)
}

func (a *App) submitCmd(req scanRequestedMsg) tea.Cmd {
	ctx, sub := a.ctx, a.backend.Submitter
	return func() tea.Msg {
		sctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		h, err := sub.Submit(sctx, req.domain, req.scanTypes)
		if err != nil {
			return scanSubmittedMsg{domain: req.domain, err: err}
		}
		return scanSubmittedMsg{jobID: h.ID, domain: req.domain}
	}
}

// View implements tea.Model.
func (a *App) View() string {
	if a.width == 0 {
		return "Loading..."
	}

	var content string
	switch {
	case a.newScan != nil:
		content = panelStyle.Width(max(20, a.width-4)).Render(
			lipgloss.JoinVertical(lipgloss.Left,
				panelHeaderStyle.Render("New Scan"),
				"",
				a.newScan.View(),
				dimStyle.Render("esc cancel"),
			),
		)
	case a.activeTab == TabHistory:
		content = a.history.View()
	default:
		content = a.watch.View()
	}

	contentBox := lipgloss.NewStyle().
		Width(a.width).
		Padding(0, 1).
		MaxHeight(max(1, a.height-4)).
		Render(content)

	help := "tab switch  n new scan  r retry/refresh  c stop  j/k scroll  q quit"
	if n := len(a.backend.Manager.Active()); n > 0 {
		help = fmt.Sprintf("%d polling   %s", n, help)
	}
	if a.statusMsg != "" {
		help = a.statusMsg + "   " + help
	}
	status := statusBarStyle.Width(a.width).Render(help)

	return lipgloss.JoinVertical(lipgloss.Left,
		a.renderHeader(),
		contentBox,
		status,
	)
}

func (a *App) renderHeader() string {
	row := lipgloss.JoinHorizontal(lipgloss.Left,
		titleStyle.Render("reconctl"),
		"  ",
		dimStyle.Render(a.backend.BaseURL),
		"  ",
		a.renderTabLabels(),
	)
	return lipgloss.NewStyle().
		BorderBottom(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(line).
		Width(a.width).
		Padding(0, 1).
		Render(row)
}

func (a *App) renderTabLabels() string {
	parts := make([]string, 0, len(tabNames)*2)
	for i, name := range tabNames {
		label := fmt.Sprintf("%d:%s", i+1, name)
		if Tab(i) == a.activeTab {
			parts = append(parts, lipgloss.NewStyle().Bold(true).Foreground(accent).Render(label))
		} else {
			parts = append(parts, dimStyle.Render(label))
		}
		if i < len(tabNames)-1 {
			parts = append(parts, dimStyle.Render("  ·  "))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Left, parts...)
}
