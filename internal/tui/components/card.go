// Package components holds the widgets the dashboard tabs are built from.
package components

import (
	"github.com/theirongolddev/qaid/internal/tui/theme"

	"github.com/charmbracelet/lipgloss"
)

// Metric is one headline number shown in a card.
type Metric struct {
	Label string
	Value string
	Note  string
}

// SplitWidth divides total into n widths that sum to total. The leftmost
// widths take the remainder.
func SplitWidth(total, n int) []int {
	if n <= 0 {
		return nil
	}
	widths := make([]int, n)
	for i := range widths {
		widths[i] = total / n
		if i < total%n {
			widths[i]++
		}
	}
	return widths
}

func cardStyle(outerWidth int, border lipgloss.Color) lipgloss.Style {
	t := theme.Active
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		BorderBackground(t.Background).
		Background(t.Surface).
		Width(max(10, outerWidth-2)).
		Padding(0, 1)
}

// MetricCard renders m in a bordered card outerWidth columns wide.
func MetricCard(m Metric, outerWidth int) string {
	t := theme.Active
	label := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	value := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface).Bold(true)
	note := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)

	body := label.Render(m.Label) + "\n" + value.Render(m.Value)
	if m.Note != "" {
		body += "\n" + note.Render(m.Note)
	}
	return cardStyle(outerWidth, t.Border).Render(body)
}

// MetricRow renders metrics side by side across totalWidth columns.
func MetricRow(metrics []Metric, totalWidth int) string {
	if len(metrics) == 0 {
		return ""
	}
	widths := SplitWidth(totalWidth, len(metrics))
	cards := make([]string, len(metrics))
	for i, m := range metrics {
		cards[i] = MetricCard(m, widths[i])
	}
	return Row(cards)
}

// Panel renders body under an optional title in a bordered card.
func Panel(title, body string, outerWidth int) string {
	return panel(title, body, outerWidth, theme.Active.Border)
}

// FocusPanel is Panel with an accent border.
func FocusPanel(title, body string, outerWidth int) string {
	return panel(title, body, outerWidth, theme.Active.BorderAccent)
}

func panel(title, body string, outerWidth int, border lipgloss.Color) string {
	t := theme.Active
	content := body
	if title != "" {
		heading := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface).Bold(true)
		content = heading.Render(title) + "\n" + body
	}
	return cardStyle(outerWidth, border).Render(content)
}

// Row joins rendered cards horizontally. Shorter cards are padded with the
// background color so the row has no unstyled cells.
func Row(cards []string) string {
	if len(cards) == 0 {
		return ""
	}
	height := 0
	for _, c := range cards {
		height = max(height, lipgloss.Height(c))
	}
	bg := lipgloss.NewStyle().Background(theme.Active.Background)
	padded := make([]string, len(cards))
	for i, c := range cards {
		padded[i] = bg.Width(lipgloss.Width(c)).Height(height).Render(c)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, padded...)
}

// InnerWidth is the text width inside a card of outerWidth.
func InnerWidth(outerWidth int) int {
	return max(10, outerWidth-4)
}
