package components

import (
	"strings"

	"github.com/theirongolddev/qaid/internal/tui/theme"

	"github.com/charmbracelet/lipgloss"
)

// Tab is one dashboard tab and its shortcut key.
type Tab struct {
	Name string
	Key  rune
}

// Tabs lists the dashboard tabs in display order.
var Tabs = []Tab{
	{Name: "Overview", Key: 'o'},
	{Name: "Test Cases", Key: 't'},
	{Name: "Bug Reports", Key: 'b'},
	{Name: "Providers", Key: 'p'},
	{Name: "History", Key: 'h'},
}

const tabGap = " "

// TabLabel returns the unstyled label drawn for tab.
func TabLabel(tab Tab, active bool) string {
	if active {
		return " " + tab.Name + " "
	}
	return " [" + string(tab.Key) + "]" + strings.TrimPrefix(tab.Name, string(tab.Name[0])) + " "
}

// TabWidth is the rendered width of tab.
func TabWidth(tab Tab, active bool) int {
	return lipgloss.Width(TabLabel(tab, active))
}

// RenderTabBar renders the tab bar with activeIdx highlighted.
func RenderTabBar(activeIdx, width int) string {
	t := theme.Active
	activeStyle := lipgloss.NewStyle().Foreground(t.Background).Background(t.Accent).Bold(true)
	inactiveStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	keyStyle := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface).Bold(true)
	gap := lipgloss.NewStyle().Background(t.Surface).Render(tabGap)

	parts := make([]string, 0, len(Tabs))
	for i, tab := range Tabs {
		if i == activeIdx {
			parts = append(parts, activeStyle.Render(TabLabel(tab, true)))
			continue
		}
		rest := strings.TrimPrefix(tab.Name, string(tab.Name[0]))
		parts = append(parts,
			inactiveStyle.Render(" [")+keyStyle.Render(string(tab.Key))+inactiveStyle.Render("]"+rest+" "))
	}
	bar := strings.Join(parts, gap)
	return lipgloss.NewStyle().Background(t.Surface).Width(width).Render(bar)
}

// TabIndex returns the index of the tab bound to key, or -1.
func TabIndex(key rune) int {
	for i, tab := range Tabs {
		if tab.Key == key {
			return i
		}
	}
	return -1
}

// TabAt returns the tab under column x of the tab bar, or -1.
func TabAt(x, activeIdx int) int {
	pos := 0
	for i, tab := range Tabs {
		w := TabWidth(tab, i == activeIdx)
		if x >= pos && x < pos+w {
			return i
		}
		pos += w + len(tabGap)
	}
	return -1
}
