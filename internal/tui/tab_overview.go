package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/theirongolddev/qaid/internal/cli"
	"github.com/theirongolddev/qaid/internal/model"
	"github.com/theirongolddev/qaid/internal/pipeline"
	"github.com/theirongolddev/qaid/internal/report"
	"github.com/theirongolddev/qaid/internal/tui/components"
	"github.com/theirongolddev/qaid/internal/tui/theme"

	"github.com/charmbracelet/lipgloss"
)

func (a App) renderOverview(cw int) string {
	t := theme.Active
	m := a.metrics
	s := a.report.Summary
	var b strings.Builder

	b.WriteString(components.MetricRow([]components.Metric{
		{Label: "Generations", Value: cli.FormatNumber(int64(m.TotalGenerations)),
			Note: cli.FormatPercent(m.OverallSuccessRate) + " successful"},
		{Label: "Time saved", Value: cli.FormatMinutes(m.TotalTimeSavedMinutes),
			Note: fmt.Sprintf("%.1f hours", m.TotalTimeSavedHours)},
		{Label: "AI cost", Value: cli.FormatCost(m.TotalCost),
			Note: cli.FormatTokens(m.TotalTokens) + " tokens"},
		{Label: "Net savings", Value: cli.FormatCost(s.CostSavings.NetSavings),
			Note: fmt.Sprintf("ROI %.0f%%", s.CostSavings.ROIPercent)},
	}, cw))
	b.WriteString("\n")

	values, labels := a.dailySeries(m.DailyTrends, func(d model.DayBucket) float64 {
		return float64(d.Generations)
	})
	b.WriteString(components.Panel(
		fmt.Sprintf("Generations per day (%dd)  %s", a.days, trendNote(s.Trend)),
		components.Columns(values, labels, t.Info, components.InnerWidth(cw), 8),
		cw,
	))
	b.WriteString("\n")

	halves := components.SplitWidth(cw, 2)
	scores := a.renderScores(components.InnerWidth(halves[0]))
	session := a.renderSession(components.InnerWidth(halves[1]))
	if a.isCompact() {
		b.WriteString(components.Panel("Scores", scores, cw))
		b.WriteString("\n")
		b.WriteString(components.Panel("This session", session, cw))
	} else {
		b.WriteString(components.Row([]string{
			components.Panel("Scores", scores, halves[0]),
			components.Panel("This session", session, halves[1]),
		}))
	}
	b.WriteString("\n")

	b.WriteString(components.Panel("Recommendations", renderRecommendations(a.report.Recommendations, components.InnerWidth(cw)), cw))
	return b.String()
}

func (a App) renderScores(w int) string {
	s := a.report.Summary
	const labelW = 16
	barW := max(8, w-labelW-6)
	lines := []string{
		components.ScoreBar("Efficiency", float64(s.EfficiencyScore), labelW, barW),
		components.ScoreBar("Quality", float64(s.QualityScore), labelW, barW),
		components.ScoreBar("Success rate", a.metrics.OverallSuccessRate, labelW, barW),
		// Same scaling as the cost term of the efficiency score.
		components.ScoreBar("Cost efficiency", min(s.CostEfficiency*10, 100), labelW, barW),
	}
	return strings.Join(lines, "\n")
}

func (a App) renderSession(w int) string {
	t := theme.Active
	label := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	value := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface).Bold(true)
	ss := a.session

	pairs := [][2]string{
		{"Test cases", cli.FormatNumber(int64(ss.TestCasesGenerated))},
		{"Bug reports", cli.FormatNumber(int64(ss.BugReportsGenerated))},
		{"Calls today", fmt.Sprintf("%d (%d failed)", ss.AICallsToday, ss.FailedCalls)},
		{"Tokens", cli.FormatTokens(ss.TotalTokensUsed)},
		{"Cost today", cli.FormatCost(ss.TotalCostToday)},
	}
	lines := make([]string, len(pairs))
	for i, p := range pairs {
		lines[i] = label.Render(fmt.Sprintf("%-14s", p[0])) + value.Render(truncStr(p[1], max(4, w-14)))
	}
	return strings.Join(lines, "\n")
}

func renderRecommendations(recs []report.Recommendation, w int) string {
	t := theme.Active
	msg := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)
	if len(recs) == 0 {
		return lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface).Render("Nothing to act on.")
	}
	lines := make([]string, len(recs))
	for i, r := range recs {
		tag := priorityTag(r.Priority)
		lines[i] = tag + msg.Render(" "+truncStr(r.Message, max(10, w-lipgloss.Width(tag)-1)))
	}
	return strings.Join(lines, "\n")
}

func priorityTag(priority string) string {
	t := theme.Active
	color := t.TextMuted
	switch priority {
	case "high":
		color = t.Bad
	case "medium":
		color = t.Highlight
	}
	return lipgloss.NewStyle().Foreground(color).Background(t.Surface).Bold(true).
		Render("[" + strings.ToUpper(priority) + "]")
}

func trendNote(tr report.TrendAnalysis) string {
	switch tr.Direction {
	case report.TrendInsufficientData:
		return "trend: not enough data"
	case report.TrendStable:
		return "trend: stable"
	default:
		return fmt.Sprintf("trend: %s %s", tr.Direction, cli.FormatChange(tr.ChangePercent))
	}
}

// dailySeries returns one value per day of the window, oldest first, with
// axis labels.
func (a App) dailySeries(trends map[string]model.DayBucket, value func(model.DayBucket) float64) ([]float64, []string) {
	until := a.loadedAt
	if until.IsZero() {
		until = a.now()
	}
	since := until.AddDate(0, 0, -(a.days - 1))
	rows := pipeline.FillDays(trends, since, until)

	n := len(rows)
	values := make([]float64, n)
	dates := make([]time.Time, n)
	for i, r := range rows {
		values[n-1-i] = value(r.Bucket)
		dates[n-1-i] = r.Date
	}
	return values, dateLabels(dates)
}

// dateLabels labels the first day and each month change with the month
// name, every other day with its day of month.
func dateLabels(dates []time.Time) []string {
	labels := make([]string, len(dates))
	for i, d := range dates {
		if i == 0 || d.Month() != dates[i-1].Month() {
			labels[i] = d.Format("Jan")
			continue
		}
		labels[i] = strconv.Itoa(d.Day())
	}
	return labels
}
