package pipeline

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/theirongolddev/qaid/internal/model"
)

func tcEvent(ts time.Time, ok bool, count int) model.GenerationEvent {
	ev := model.GenerationEvent{
		Kind:       model.KindTestCaseGeneration,
		Timestamp:  ts,
		Successful: ok,
		Provider:   "gemini",
		Model:      "gemini-2.0-flash-lite",
		TestCase:   &model.TestCasePayload{},
	}
	if ok {
		ev.TokensUsed = 1000
		ev.Cost = 0.00015
		ev.EstimatedTimeSavedMinutes = float64(count) * 8
		ev.TestCase.TestCaseCount = count
		ev.TestCase.Breakdown.Functional = count
		ev.TestCase.AutomationCandidateCount = 1
	}
	return ev
}

func bugEvent(ts time.Time, ok bool, severity string) model.GenerationEvent {
	ev := model.GenerationEvent{
		Kind:       model.KindBugReportGeneration,
		Timestamp:  ts,
		Successful: ok,
		Provider:   "openai",
		Model:      "gpt-4o-mini",
		BugReport:  &model.BugReportPayload{Severity: severity},
	}
	if ok {
		ev.TokensUsed = 500
		ev.Cost = 0.0002
		ev.EstimatedTimeSavedMinutes = 15
	}
	return ev
}

func TestAggregate_EmptyWindowHasZeroShape(t *testing.T) {
	m := Aggregate(nil, 30)
	if m.WindowDays != 30 || m.TotalGenerations != 0 || m.OverallSuccessRate != 0 {
		t.Fatalf("unexpected totals: %+v", m)
	}
	if m.ProviderUsage == nil || m.DailyTrends == nil || m.TestCases.DailyTrends == nil {
		t.Fatal("maps must be allocated for an empty window")
	}

	data, err := json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	if raw["providerUsage"] == nil {
		t.Fatal("providerUsage serialized as null")
	}
}

func TestAggregate_OverallSuccessRateIsCountWeighted(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	var events []model.GenerationEvent
	for i := 0; i < 10; i++ {
		events = append(events, tcEvent(now, true, 4))
	}
	for i := 0; i < 5; i++ {
		events = append(events, bugEvent(now, false, ""))
	}

	m := Aggregate(events, 30)
	if m.TestCases.SuccessRate != 100 {
		t.Fatalf("test case rate = %v, want 100", m.TestCases.SuccessRate)
	}
	if m.BugReports.SuccessRate != 0 {
		t.Fatalf("bug report rate = %v, want 0", m.BugReports.SuccessRate)
	}
	if m.OverallSuccessRate != 66.67 {
		t.Fatalf("overall rate = %v, want 66.67", m.OverallSuccessRate)
	}
}

func TestAggregate_Totals(t *testing.T) {
	day1 := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)
	events := []model.GenerationEvent{
		tcEvent(day1, true, 3),
		tcEvent(day1, false, 0),
		tcEvent(day2, true, 5),
		bugEvent(day2, true, "Critical"),
		bugEvent(day2, true, "low"),
	}

	m := Aggregate(events, 7)

	if m.TotalTestCasesGenerated != 8 {
		t.Fatalf("test cases = %d, want 8", m.TotalTestCasesGenerated)
	}
	if m.AvgTestCasesPerGeneration != 4 {
		t.Fatalf("avg per generation = %v, want 4", m.AvgTestCasesPerGeneration)
	}
	if m.CriticalBugsIdentified != 1 || m.BugReportsBySeverity["low"] != 1 {
		t.Fatalf("severity counts = %v (critical %d)", m.BugReportsBySeverity, m.CriticalBugsIdentified)
	}
	if m.AutomationCandidates != 2 || m.TestCaseBreakdown.Functional != 8 {
		t.Fatalf("automation %d functional %d", m.AutomationCandidates, m.TestCaseBreakdown.Functional)
	}
	wantMinutes := 8.0*8 + 2*15
	if m.TotalTimeSavedMinutes != wantMinutes || math.Abs(m.TotalTimeSavedHours-wantMinutes/60) > 1e-9 {
		t.Fatalf("time saved = %v min / %v h", m.TotalTimeSavedMinutes, m.TotalTimeSavedHours)
	}
	if m.TestCases.Failed != 1 || m.TestCases.Total != 3 {
		t.Fatalf("test case counts = %+v", m.TestCases)
	}
	if m.ProviderUsage["gemini"].Count != 3 || m.ProviderUsage["openai"].Count != 2 {
		t.Fatalf("provider usage = %+v", m.ProviderUsage)
	}
	if got := m.DailyTrends["2026-05-02"]; got.Count != 7 || got.Generations != 3 {
		t.Fatalf("day 2 bucket = %+v, want 5 test cases + 2 reports over 3 generations", got)
	}
	if math.Abs(m.TestCases.AvgCostPerUnit-0.0003/8) > 1e-12 {
		t.Fatalf("avg cost per test case = %v", m.TestCases.AvgCostPerUnit)
	}
}

func TestAggregate_DayBucketsUseEventLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*3600)
	// 2026-05-01 23:30 UTC is already 2026-05-02 in Tokyo.
	ts := time.Date(2026, 5, 1, 23, 30, 0, 0, time.UTC).In(tokyo)

	m := Aggregate([]model.GenerationEvent{tcEvent(ts, true, 1)}, 1)
	if _, ok := m.DailyTrends["2026-05-02"]; !ok {
		t.Fatalf("trend keys = %v, want 2026-05-02", m.DailyTrends)
	}
}

func TestFilterByTime_Inclusive(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	events := []model.GenerationEvent{
		tcEvent(base.Add(-time.Second), true, 1),
		tcEvent(base, true, 1),
		tcEvent(base.Add(time.Hour), true, 1),
		tcEvent(base.Add(time.Hour+time.Second), true, 1),
	}
	got := FilterByTime(events, base, base.Add(time.Hour))
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
}

func TestSortProviders(t *testing.T) {
	rows := SortProviders(map[string]model.ProviderUsage{
		"gemini": {Count: 3, Cost: 0.1},
		"openai": {Count: 1, Cost: 0.5},
	})
	if len(rows) != 2 || rows[0].Provider != "openai" {
		t.Fatalf("rows = %+v, want openai first by cost", rows)
	}
	if rows[1].SharePercent != 75 {
		t.Fatalf("gemini share = %v, want 75", rows[1].SharePercent)
	}
}

func TestFillDays(t *testing.T) {
	since := time.Date(2026, 5, 1, 10, 0, 0, 0, time.Local)
	until := time.Date(2026, 5, 3, 10, 0, 0, 0, time.Local)
	rows := FillDays(map[string]model.DayBucket{"2026-05-02": {Count: 4}}, since, until)
	if len(rows) != 3 {
		t.Fatalf("len = %d, want 3", len(rows))
	}
	if rows[0].Date.Format(DayLayout) != "2026-05-03" || rows[1].Bucket.Count != 4 {
		t.Fatalf("rows = %+v", rows)
	}
}
