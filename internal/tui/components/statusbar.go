package components

import (
	"strings"

	"github.com/theirongolddev/qaid/internal/tui/theme"

	"github.com/charmbracelet/lipgloss"
)

// StatusInfo is what the status bar reports on its right side.
type StatusInfo struct {
	Provider    string
	State       string
	Refreshing  bool
	AutoRefresh bool
	Age         string
	Err         string
}

// RenderStatusBar renders the bottom status line.
func RenderStatusBar(width int, info StatusInfo) string {
	t := theme.Active
	base := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	accent := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface)
	bad := lipgloss.NewStyle().Foreground(t.Bad).Background(t.Surface)

	left := base.Render(" [?]help  [r]efresh  [q]uit")

	var right []string
	if info.Err != "" {
		right = append(right, bad.Render(info.Err))
	}
	if info.Provider != "" {
		right = append(right, accent.Render(info.Provider)+base.Render(" "+info.State))
	}
	switch {
	case info.Refreshing:
		right = append(right, accent.Render("refreshing"))
	case info.Age != "":
		right = append(right, base.Render("updated "+info.Age))
	}
	if info.AutoRefresh {
		right = append(right, base.Render("auto"))
	}
	r := strings.Join(right, base.Render("  ")) + base.Render(" ")

	gap := max(0, width-lipgloss.Width(left)-lipgloss.Width(r))
	return left + base.Render(strings.Repeat(" ", gap)) + r
}
