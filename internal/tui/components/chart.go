package components

import (
	"fmt"
	"math"
	"strings"

	"github.com/theirongolddev/qaid/internal/tui/theme"

	"github.com/charmbracelet/lipgloss"
)

var eighths = []rune{' ', '▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// Sparkline renders values as a single line of block characters.
func Sparkline(values []float64, color lipgloss.Color) string {
	if len(values) == 0 {
		return ""
	}
	peak := peakOf(values)
	var b strings.Builder
	for _, v := range values {
		idx := int(math.Round(v / peak * 7))
		b.WriteRune(eighths[1+max(0, min(7, idx))])
	}
	return lipgloss.NewStyle().Foreground(color).Background(theme.Active.Surface).Render(b.String())
}

// Columns renders values as vertical bars height rows tall, oldest on the
// left. labels, when given, must be one per value and are drawn sparsely
// under the axis.
func Columns(values []float64, labels []string, color lipgloss.Color, width, height int) string {
	if len(values) == 0 {
		return ""
	}
	if width < 16 || height < 3 {
		return Sparkline(values, color)
	}
	t := theme.Active
	axis := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)
	bar := lipgloss.NewStyle().Foreground(color).Background(t.Surface)
	blank := lipgloss.NewStyle().Background(t.Surface)

	peak := peakOf(values)
	top := ScaleLabel(peak)
	gutter := max(len(top), 1) + 1

	plotW := width - gutter - 1
	values, labels = resample(values, labels, (plotW+1)/2)
	n := len(values)
	colW := max(1, min(4, (plotW-(n-1))/n))

	var b strings.Builder
	for row := height; row >= 1; row-- {
		label := ""
		if row == height {
			label = top
		}
		b.WriteString(axis.Render(fmt.Sprintf("%*s│", gutter, label)))
		for i, v := range values {
			if i > 0 {
				b.WriteString(blank.Render(" "))
			}
			// Fill in eighths of a row.
			level := v / peak * float64(height) * 8
			cell := int(math.Round(level)) - (row-1)*8
			cell = max(0, min(8, cell))
			b.WriteString(bar.Render(strings.Repeat(string(eighths[cell]), colW)))
		}
		b.WriteString("\n")
	}

	span := n*colW + (n - 1)
	b.WriteString(axis.Render(fmt.Sprintf("%*s└%s", gutter, "0", strings.Repeat("─", span))))
	if len(labels) == n {
		b.WriteString("\n")
		b.WriteString(axis.Render(strings.Repeat(" ", gutter+1) + axisLabels(labels, colW, span)))
	}
	return b.String()
}

// axisLabels places labels under their columns, skipping any that would
// collide with the previous one.
func axisLabels(labels []string, colW, span int) string {
	line := []rune(strings.Repeat(" ", span))
	next := 0
	for i, lbl := range labels {
		pos := i * (colW + 1)
		r := []rune(lbl)
		if pos < next || pos+len(r) > span {
			continue
		}
		copy(line[pos:], r)
		next = pos + len(r) + 1
	}
	return strings.TrimRight(string(line), " ")
}

// resample keeps at most limit evenly spaced points.
func resample(values []float64, labels []string, limit int) ([]float64, []string) {
	n := len(values)
	if limit < 2 || n <= limit {
		return values, labels
	}
	outV := make([]float64, limit)
	var outL []string
	if len(labels) == n {
		outL = make([]string, limit)
	}
	for i := range outV {
		src := i * (n - 1) / (limit - 1)
		outV[i] = values[src]
		if outL != nil {
			outL[i] = labels[src]
		}
	}
	return outV, outL
}

func peakOf(values []float64) float64 {
	peak := 0.0
	for _, v := range values {
		peak = max(peak, v)
	}
	if peak == 0 {
		return 1
	}
	return peak
}

// ScaleLabel formats an axis value compactly.
func ScaleLabel(v float64) string {
	switch {
	case v >= 1e6:
		return trimZero(fmt.Sprintf("%.1f", v/1e6)) + "M"
	case v >= 1e3:
		return trimZero(fmt.Sprintf("%.1f", v/1e3)) + "k"
	case v >= 10 || v == math.Trunc(v):
		return fmt.Sprintf("%.0f", v)
	default:
		return fmt.Sprintf("%.2f", v)
	}
}

func trimZero(s string) string {
	return strings.TrimSuffix(s, ".0")
}
