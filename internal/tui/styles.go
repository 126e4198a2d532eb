package tui

import "github.com/charmbracelet/lipgloss"

var (
	accent     = lipgloss.Color("#14B8A6") // teal
	green      = lipgloss.Color("#22C55E")
	yellow     = lipgloss.Color("#F59E0B")
	red        = lipgloss.Color("#EF4444")
	blue       = lipgloss.Color("#38BDF8")
	slate      = lipgloss.Color("#94A3B8")
	slateDim   = lipgloss.Color("#64748B")
	panelBg    = lipgloss.Color("#111827")
	bgDark     = lipgloss.Color("#0B1220")
	line       = lipgloss.Color("#1F2937")
	ink        = lipgloss.Color("#E5E7EB")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ink).
			Background(bgDark).
			BorderStyle(lipgloss.ThickBorder()).
			BorderLeft(true).
			BorderTop(false).
			BorderRight(false).
			BorderBottom(false).
			BorderForeground(accent).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(slate).
			Background(bgDark).
			BorderTop(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(line).
			Padding(0, 1)

	completedStyle = lipgloss.NewStyle().Foreground(bgDark).Background(green).Padding(0, 1)
	failedStyle    = lipgloss.NewStyle().Foreground(bgDark).Background(red).Padding(0, 1)
	runningStyle   = lipgloss.NewStyle().Foreground(bgDark).Background(blue).Padding(0, 1)
	warnStyle      = lipgloss.NewStyle().Bold(true).Foreground(yellow)
	errorStyle     = lipgloss.NewStyle().Bold(true).Foreground(red)
	okStyle        = lipgloss.NewStyle().Foreground(green)
	badgeStyle     = lipgloss.NewStyle().Foreground(green).Background(lipgloss.Color("#052E16")).Padding(0, 1)
	techBadgeStyle = lipgloss.NewStyle().Foreground(ink).BorderStyle(lipgloss.RoundedBorder()).BorderForeground(line).Padding(0, 1)
	vulnStyle      = lipgloss.NewStyle().Bold(true).Foreground(red)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(line).
			Background(panelBg).
			Padding(1, 2)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(line).
			Background(panelBg).
			Padding(1, 1)

	panelHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(ink)

	mutedBadgeStyle = lipgloss.NewStyle().
			Foreground(slate).
			Background(bgDark).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(line).
			Padding(0, 1)

	keycapStyle = lipgloss.NewStyle().
			Foreground(ink).
			Background(lipgloss.Color("#1E293B")).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(line).
			Padding(0, 1)

	selectedRowStyle = lipgloss.NewStyle().
				Background(lipgloss.Color("#0F172A")).
				BorderStyle(lipgloss.NormalBorder()).
				BorderLeft(true).
				BorderForeground(accent)

	dimStyle = lipgloss.NewStyle().Foreground(slateDim)
)

func statusBadge(status string) string {
	switch status {
	case "completed":
		return completedStyle.Render(status)
	case "failed":
		return failedStyle.Render(status)
	case "running":
		return runningStyle.Render(status)
	default:
		return mutedBadgeStyle.Render(status)
	}
}
