package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/theirongolddev/qaid/internal/cli"
	"github.com/theirongolddev/qaid/internal/model"
	"github.com/theirongolddev/qaid/internal/pipeline"
	"github.com/theirongolddev/qaid/internal/tui/components"
	"github.com/theirongolddev/qaid/internal/tui/theme"

	"github.com/charmbracelet/lipgloss"
)

// share is one labeled slice of a breakdown.
type share struct {
	label string
	count int
}

func (a App) renderTestCases(cw int) string {
	t := theme.Active
	m := a.metrics
	k := m.TestCases
	var b strings.Builder

	b.WriteString(components.MetricRow([]components.Metric{
		{Label: "Test cases", Value: cli.FormatNumber(int64(m.TotalTestCasesGenerated)),
			Note: fmt.Sprintf("%d generations", k.Total)},
		{Label: "Success rate", Value: cli.FormatPercent(k.SuccessRate),
			Note: fmt.Sprintf("%d failed", k.Failed)},
		{Label: "Automatable", Value: cli.FormatNumber(int64(m.AutomationCandidates)),
			Note: fmt.Sprintf("%.1f cases per run", m.AvgTestCasesPerGeneration)},
		{Label: "Cost per case", Value: cli.FormatCost(k.AvgCostPerUnit),
			Note: "saved " + cli.FormatMinutes(k.TimeSavedMinutes)},
	}, cw))
	b.WriteString("\n")

	bd := m.TestCaseBreakdown
	types := []share{
		{"Functional", bd.Functional},
		{"Integration", bd.Integration},
		{"Negative", bd.Negative},
		{"Edge case", bd.EdgeCase},
		{"Performance", bd.Performance},
		{"Security", bd.Security},
		{"Other", bd.Other},
	}

	values, labels := a.dailySeries(k.DailyTrends, func(d model.DayBucket) float64 {
		return float64(d.Count)
	})
	halves := components.SplitWidth(cw, 2)
	byType := components.Panel("By type", renderShares(types, components.InnerWidth(halves[0]), t.Accent), halves[0])
	daily := components.Panel("Test cases per day",
		components.Columns(values, labels, t.Accent, components.InnerWidth(halves[1]), 7), halves[1])

	if a.isCompact() {
		b.WriteString(byType + "\n" + daily)
	} else {
		b.WriteString(components.Row([]string{byType, daily}))
	}
	return b.String()
}

func (a App) renderBugReports(cw int) string {
	t := theme.Active
	m := a.metrics
	k := m.BugReports
	var b strings.Builder

	b.WriteString(components.MetricRow([]components.Metric{
		{Label: "Bug reports", Value: cli.FormatNumber(int64(m.TotalBugReportsGenerated)),
			Note: fmt.Sprintf("%d generations", k.Total)},
		{Label: "Critical", Value: cli.FormatNumber(int64(m.CriticalBugsIdentified))},
		{Label: "Success rate", Value: cli.FormatPercent(k.SuccessRate),
			Note: fmt.Sprintf("%d failed", k.Failed)},
		{Label: "Cost per report", Value: cli.FormatCost(k.AvgCostPerUnit),
			Note: "saved " + cli.FormatMinutes(k.TimeSavedMinutes)},
	}, cw))
	b.WriteString("\n")

	severities := make([]share, 0, len(m.BugReportsBySeverity))
	for sev, n := range m.BugReportsBySeverity {
		severities = append(severities, share{sev, n})
	}
	sort.Slice(severities, func(i, j int) bool {
		ri, rj := severityRank(severities[i].label), severityRank(severities[j].label)
		if ri != rj {
			return ri < rj
		}
		return severities[i].label < severities[j].label
	})

	values, labels := a.dailySeries(k.DailyTrends, func(d model.DayBucket) float64 {
		return float64(d.Count)
	})
	halves := components.SplitWidth(cw, 2)
	bySeverity := components.Panel("By severity", renderShares(severities, components.InnerWidth(halves[0]), t.Warn), halves[0])
	daily := components.Panel("Reports per day",
		components.Columns(values, labels, t.Warn, components.InnerWidth(halves[1]), 7), halves[1])

	if a.isCompact() {
		b.WriteString(bySeverity + "\n" + daily)
	} else {
		b.WriteString(components.Row([]string{bySeverity, daily}))
	}
	return b.String()
}

func severityRank(sev string) int {
	switch strings.ToLower(sev) {
	case "critical":
		return 0
	case "high":
		return 1
	case "medium":
		return 2
	case "low":
		return 3
	}
	return 4
}

func (a App) renderProviders(cw int) string {
	t := theme.Active
	rows := pipeline.SortProviders(a.metrics.ProviderUsage)
	if len(rows) == 0 {
		return components.Panel("Providers",
			lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface).Render("No provider usage in this window"), cw)
	}

	inner := components.InnerWidth(cw)
	head := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface).Bold(true)
	name := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)
	num := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)

	const cols = "%-14s %8s %10s %10s %7s "
	fixed := lipgloss.Width(fmt.Sprintf(cols, "", "", "", "", ""))
	barW := max(10, inner-fixed)

	var b strings.Builder
	b.WriteString(head.Render(fmt.Sprintf(cols, "Provider", "Runs", "Tokens", "Cost", "Share")))
	for _, r := range rows {
		b.WriteString("\n")
		b.WriteString(name.Render(fmt.Sprintf("%-14s ", truncStr(r.Provider, 14))))
		b.WriteString(num.Render(fmt.Sprintf("%8s %10s %10s %6.1f%% ",
			cli.FormatNumber(int64(r.Usage.Count)),
			cli.FormatTokens(r.Usage.Tokens),
			cli.FormatCost(r.Usage.Cost),
			r.SharePercent)))
		b.WriteString(components.ShareBar(r.SharePercent, barW, t.Info))
	}

	body := components.Panel(fmt.Sprintf("Providers (%dd)", a.days), b.String(), cw)
	if st := a.svc; st.Provider != "" {
		line := fmt.Sprintf("Active: %s", st.Provider)
		if st.Model != "" {
			line += " / " + st.Model
		}
		line += "  " + string(st.State)
		if st.Error != "" {
			line += "  " + st.Error
		}
		body += "\n" + lipgloss.NewStyle().Foreground(t.TextMuted).Render(" "+line)
	}
	return body
}

// renderShares draws labeled bars scaled to the total count.
func renderShares(shares []share, w int, color lipgloss.Color) string {
	t := theme.Active
	total := 0
	labelW := 0
	for _, s := range shares {
		total += s.count
		labelW = max(labelW, len(s.label))
	}
	if total == 0 {
		return lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface).Render("Nothing yet")
	}

	label := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)
	count := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	barW := max(6, w-labelW-11)

	var lines []string
	for _, s := range shares {
		if s.count == 0 {
			continue
		}
		pct := float64(s.count) / float64(total) * 100
		lines = append(lines, label.Render(fmt.Sprintf("%-*s ", labelW, s.label))+
			components.ShareBar(pct, barW, color)+
			count.Render(fmt.Sprintf(" %4d %3.0f%%", s.count, pct)))
	}
	return strings.Join(lines, "\n")
}
