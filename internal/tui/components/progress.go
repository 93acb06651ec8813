package components

import (
	"fmt"
	"strings"

	"github.com/theirongolddev/qaid/internal/tui/theme"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
)

// ScoreColor grades a 0-100 score. Higher is better.
func ScoreColor(score float64) lipgloss.Color {
	t := theme.Active
	switch {
	case score >= 70:
		return t.Good
	case score >= 40:
		return t.Highlight
	case score >= 20:
		return t.Warn
	default:
		return t.Bad
	}
}

// ScoreBar renders a labeled 0-100 score with a solid progress bar.
func ScoreBar(label string, score float64, labelW, barW int) string {
	t := theme.Active
	score = max(0, min(100, score))
	color := ScoreColor(score)

	bar := progress.New(
		progress.WithSolidFill(string(color)),
		progress.WithWidth(max(4, barW)),
		progress.WithoutPercentage(),
	)
	bar.EmptyColor = string(t.TextDim)

	labelStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	valueStyle := lipgloss.NewStyle().Foreground(color).Background(t.Surface).Bold(true)
	gap := lipgloss.NewStyle().Background(t.Surface).Render(" ")

	return labelStyle.Render(fmt.Sprintf("%-*s", labelW, label)) + gap +
		bar.ViewAs(score/100) + gap +
		valueStyle.Render(fmt.Sprintf("%3.0f", score))
}

// ShareBar renders a 0-100 share as a bar of width cells.
func ShareBar(share float64, width int, color lipgloss.Color) string {
	t := theme.Active
	filled := int(share / 100 * float64(width))
	filled = max(0, min(width, filled))
	on := lipgloss.NewStyle().Foreground(color).Background(t.Surface)
	off := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)
	return on.Render(strings.Repeat("█", filled)) + off.Render(strings.Repeat("·", width-filled))
}
