// Package pipeline computes windowed aggregates over generation events.
// Everything here is a pure function of its inputs.
package pipeline

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/theirongolddev/qaid/internal/model"
)

// DayLayout is the key format of day trend buckets.
const DayLayout = "2006-01-02"

// Aggregate computes dashboard metrics from the events of one window.
// The caller is responsible for filtering events to the window.
func Aggregate(events []model.GenerationEvent, windowDays int) model.DashboardMetrics {
	m := model.NewDashboardMetrics(windowDays)

	var testCases, bugReports []model.GenerationEvent
	for _, ev := range events {
		switch ev.Kind {
		case model.KindTestCaseGeneration:
			testCases = append(testCases, ev)
		case model.KindBugReportGeneration:
			bugReports = append(bugReports, ev)
		}
	}

	m.TestCases = aggregateKind(testCases)
	m.BugReports = aggregateKind(bugReports)

	successfulTestCaseRuns := 0
	for _, ev := range testCases {
		if !ev.Successful || ev.TestCase == nil {
			continue
		}
		successfulTestCaseRuns++
		m.AutomationCandidates += ev.TestCase.AutomationCandidateCount
		addBreakdown(&m.TestCaseBreakdown, ev.TestCase.Breakdown)
	}
	for _, ev := range bugReports {
		if !ev.Successful {
			continue
		}
		severity := "unspecified"
		if ev.BugReport != nil && ev.BugReport.Severity != "" {
			severity = strings.ToLower(ev.BugReport.Severity)
		}
		m.BugReportsBySeverity[severity]++
		if severity == "critical" {
			m.CriticalBugsIdentified++
		}
	}

	m.TotalTestCasesGenerated = m.TestCases.Units
	m.TotalBugReportsGenerated = m.BugReports.Units
	if successfulTestCaseRuns > 0 {
		m.AvgTestCasesPerGeneration = round2(float64(m.TotalTestCasesGenerated) / float64(successfulTestCaseRuns))
	}

	m.TotalGenerations = m.TestCases.Total + m.BugReports.Total
	m.SuccessfulGenerations = m.TestCases.Successful + m.BugReports.Successful
	m.OverallSuccessRate = SuccessRate(m.SuccessfulGenerations, m.TotalGenerations)
	m.TotalTimeSavedMinutes = m.TestCases.TimeSavedMinutes + m.BugReports.TimeSavedMinutes
	m.TotalTimeSavedHours = m.TotalTimeSavedMinutes / 60
	m.TotalCost = m.TestCases.Cost + m.BugReports.Cost
	m.TotalTokens = m.TestCases.Tokens + m.BugReports.Tokens

	var totalLatency int64
	for _, ev := range events {
		totalLatency += ev.ResponseTimeMs
	}
	if len(events) > 0 {
		m.AvgResponseTimeMs = round2(float64(totalLatency) / float64(len(events)))
	}

	mergeProviders(m.ProviderUsage, m.TestCases.ProviderUsage)
	mergeProviders(m.ProviderUsage, m.BugReports.ProviderUsage)
	mergeDays(m.DailyTrends, m.TestCases.DailyTrends)
	mergeDays(m.DailyTrends, m.BugReports.DailyTrends)

	return m
}

func aggregateKind(events []model.GenerationEvent) model.KindMetrics {
	km := model.NewKindMetrics()

	for _, ev := range events {
		km.Total++
		if ev.Successful {
			km.Successful++
		} else {
			km.Failed++
		}

		units := eventUnits(ev)
		km.Units += units
		km.TimeSavedMinutes += ev.EstimatedTimeSavedMinutes
		km.Cost += ev.Cost
		km.Tokens += ev.TokensUsed

		pu := km.ProviderUsage[ev.Provider]
		pu.Count++
		pu.Cost += ev.Cost
		pu.Tokens += ev.TokensUsed
		km.ProviderUsage[ev.Provider] = pu

		day := ev.Timestamp.Format(DayLayout)
		db := km.DailyTrends[day]
		db.Count += units
		db.Generations++
		db.Cost += ev.Cost
		db.TimeSaved += ev.EstimatedTimeSavedMinutes
		km.DailyTrends[day] = db
	}

	km.SuccessRate = SuccessRate(km.Successful, km.Total)
	if km.Units > 0 {
		km.AvgCostPerUnit = km.Cost / float64(km.Units)
	}
	return km
}

// eventUnits is the number of artifacts an event produced: its test case
// count, or one per successful bug report.
func eventUnits(ev model.GenerationEvent) int {
	if !ev.Successful {
		return 0
	}
	switch ev.Kind {
	case model.KindTestCaseGeneration:
		if ev.TestCase != nil {
			return ev.TestCase.TestCaseCount
		}
	case model.KindBugReportGeneration:
		return 1
	}
	return 0
}

// SuccessRate returns successful/total as a percentage rounded to two
// decimals, or 0 when total is 0.
func SuccessRate(successful, total int) float64 {
	if total <= 0 {
		return 0
	}
	return round2(float64(successful) / float64(total) * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func addBreakdown(dst *model.TestCaseBreakdown, src model.TestCaseBreakdown) {
	dst.Functional += src.Functional
	dst.Integration += src.Integration
	dst.Negative += src.Negative
	dst.EdgeCase += src.EdgeCase
	dst.Performance += src.Performance
	dst.Security += src.Security
	dst.Other += src.Other
}

func mergeProviders(dst, src map[string]model.ProviderUsage) {
	for name, pu := range src {
		d := dst[name]
		d.Count += pu.Count
		d.Cost += pu.Cost
		d.Tokens += pu.Tokens
		dst[name] = d
	}
}

func mergeDays(dst, src map[string]model.DayBucket) {
	for day, b := range src {
		d := dst[day]
		d.Count += b.Count
		d.Generations += b.Generations
		d.Cost += b.Cost
		d.TimeSaved += b.TimeSaved
		dst[day] = d
	}
}

// FilterByTime returns events whose timestamp falls within [since, until].
func FilterByTime(events []model.GenerationEvent, since, until time.Time) []model.GenerationEvent {
	if since.IsZero() && until.IsZero() {
		return events
	}

	var result []model.GenerationEvent
	for _, ev := range events {
		if !since.IsZero() && ev.Timestamp.Before(since) {
			continue
		}
		if !until.IsZero() && ev.Timestamp.After(until) {
			continue
		}
		result = append(result, ev)
	}
	return result
}

// FilterByProvider returns events served by a provider matching the substring.
func FilterByProvider(events []model.GenerationEvent, provider string) []model.GenerationEvent {
	if provider == "" {
		return events
	}
	var result []model.GenerationEvent
	for _, ev := range events {
		if containsIgnoreCase(ev.Provider, provider) {
			result = append(result, ev)
		}
	}
	return result
}

func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// ProviderShare is one row of a provider breakdown.
type ProviderShare struct {
	Provider     string
	Usage        model.ProviderUsage
	SharePercent float64
}

// SortProviders returns provider usage sorted by cost, then count, descending.
func SortProviders(usage map[string]model.ProviderUsage) []ProviderShare {
	total := 0
	for _, pu := range usage {
		total += pu.Count
	}

	rows := make([]ProviderShare, 0, len(usage))
	for name, pu := range usage {
		row := ProviderShare{Provider: name, Usage: pu}
		if total > 0 {
			row.SharePercent = float64(pu.Count) / float64(total) * 100
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Usage.Cost != rows[j].Usage.Cost {
			return rows[i].Usage.Cost > rows[j].Usage.Cost
		}
		if rows[i].Usage.Count != rows[j].Usage.Count {
			return rows[i].Usage.Count > rows[j].Usage.Count
		}
		return rows[i].Provider < rows[j].Provider
	})
	return rows
}

// DayRow is one calendar day of a trend table.
type DayRow struct {
	Date   time.Time
	Bucket model.DayBucket
}

// FillDays expands trend buckets into one row per day in [since, until],
// most recent first, so gaps show as zeros.
func FillDays(trends map[string]model.DayBucket, since, until time.Time) []DayRow {
	dayMap := make(map[string]DayRow, len(trends))
	for key, b := range trends {
		t, err := time.ParseInLocation(DayLayout, key, time.Local)
		if err != nil {
			continue
		}
		dayMap[key] = DayRow{Date: t, Bucket: b}
	}

	if !since.IsZero() && !until.IsZero() {
		day := time.Date(since.Year(), since.Month(), since.Day(), 0, 0, 0, 0, time.Local)
		end := time.Date(until.Year(), until.Month(), until.Day(), 0, 0, 0, 0, time.Local)
		for !day.After(end) {
			key := day.Format(DayLayout)
			if _, ok := dayMap[key]; !ok {
				dayMap[key] = DayRow{Date: day}
			}
			day = day.AddDate(0, 0, 1)
		}
	}

	days := make([]DayRow, 0, len(dayMap))
	for _, d := range dayMap {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool {
		return days[i].Date.After(days[j].Date)
	})
	return days
}
