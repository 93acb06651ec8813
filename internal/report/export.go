package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/theirongolddev/qaid/internal/pipeline"
)

// Format is an export encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ParseFormat accepts "json" or "csv", case-insensitively. Empty means JSON.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unsupported format: %s (use json or csv)", s)
	}
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv; charset=utf-8"
	}
	return "application/json; charset=utf-8"
}

// Filename returns ai-integration-report-YYYY-MM-DD.<ext> for the local date of now.
func Filename(now time.Time, f Format) string {
	return fmt.Sprintf("ai-integration-report-%s.%s", now.Format(pipeline.DayLayout), f)
}

// Export writes r to w in the given format.
func Export(w io.Writer, r Report, f Format) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("failed to encode JSON: %w", err)
		}
		return nil
	case FormatCSV:
		return writeCSV(w, r)
	default:
		return fmt.Errorf("unsupported format: %s (use json or csv)", f)
	}
}

func writeCSV(w io.Writer, r Report) error {
	writer := csv.NewWriter(w)

	s := r.Summary
	m := r.DetailedMetrics
	rows := [][]string{
		{"section", "metric", "value"},
		{"export", "generated_at", r.ExportInfo.GeneratedAt.Format(time.RFC3339)},
		{"export", "window_days", strconv.Itoa(r.ExportInfo.WindowDays)},
		{"export", "version", r.ExportInfo.Version},
		{"summary", "total_generations", strconv.Itoa(s.TotalGenerations)},
		{"summary", "overall_success_rate", formatFloat(s.OverallSuccessRate)},
		{"summary", "test_cases_generated", strconv.Itoa(s.TotalTestCasesGenerated)},
		{"summary", "bug_reports_generated", strconv.Itoa(s.TotalBugReportsGenerated)},
		{"summary", "time_saved_hours", formatFloat(s.TotalTimeSavedHours)},
		{"summary", "total_cost_usd", fmt.Sprintf("%.6f", s.TotalCost)},
		{"summary", "efficiency_score", strconv.Itoa(s.EfficiencyScore)},
		{"summary", "quality_score", strconv.Itoa(s.QualityScore)},
		{"summary", "cost_efficiency", formatFloat(s.CostEfficiency)},
		{"cost_savings", "labor_cost_saved_usd", formatFloat(s.CostSavings.LaborCostSaved)},
		{"cost_savings", "ai_cost_usd", fmt.Sprintf("%.6f", s.CostSavings.AICost)},
		{"cost_savings", "net_savings_usd", formatFloat(s.CostSavings.NetSavings)},
		{"cost_savings", "roi_percent", formatFloat(s.CostSavings.ROIPercent)},
		{"trend", "direction", string(s.Trend.Direction)},
		{"trend", "recent_daily_avg", formatFloat(s.Trend.RecentDailyAvg)},
		{"trend", "prior_daily_avg", formatFloat(s.Trend.PriorDailyAvg)},
		{"test_cases", "success_rate", formatFloat(m.TestCases.SuccessRate)},
		{"test_cases", "automation_candidates", strconv.Itoa(m.AutomationCandidates)},
		{"test_cases", "avg_per_generation", formatFloat(m.AvgTestCasesPerGeneration)},
		{"bug_reports", "success_rate", formatFloat(m.BugReports.SuccessRate)},
		{"bug_reports", "critical_identified", strconv.Itoa(m.CriticalBugsIdentified)},
		{"service", "state", string(r.ServiceStatus.State)},
		{"service", "provider", r.ServiceStatus.Provider},
		{"service", "model", r.ServiceStatus.Model},
	}

	providers := make([]string, 0, len(m.ProviderUsage))
	for name := range m.ProviderUsage {
		providers = append(providers, name)
	}
	sort.Strings(providers)
	for _, name := range providers {
		pu := m.ProviderUsage[name]
		rows = append(rows,
			[]string{"provider:" + name, "count", strconv.Itoa(pu.Count)},
			[]string{"provider:" + name, "cost_usd", fmt.Sprintf("%.6f", pu.Cost)},
			[]string{"provider:" + name, "tokens", strconv.FormatInt(pu.Tokens, 10)},
		)
	}

	days := make([]string, 0, len(m.DailyTrends))
	for day := range m.DailyTrends {
		days = append(days, day)
	}
	sort.Strings(days)
	for _, day := range days {
		rows = append(rows, []string{"daily:" + day, "count", strconv.Itoa(m.DailyTrends[day].Count)})
	}

	for i, rec := range r.Recommendations {
		rows = append(rows, []string{
			fmt.Sprintf("recommendation:%d", i+1),
			rec.Type + "/" + rec.Priority,
			rec.Message,
		})
	}

	if err := writer.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
