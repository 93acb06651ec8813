package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"
	"time"

	"github.com/theirongolddev/qaid/internal/integration"
	"github.com/theirongolddev/qaid/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEfficiencyScoreClampsWithZeroCost(t *testing.T) {
	m := model.NewDashboardMetrics(30)
	m.TotalGenerations = 10
	m.OverallSuccessRate = 100
	m.TotalCost = 0
	m.TotalTimeSavedHours = 1000
	m.TotalTimeSavedMinutes = 60000

	assert.Equal(t, 100.0, CostEfficiency(m))
	score := EfficiencyScore(m)
	assert.LessOrEqual(t, score, 100)
	assert.Equal(t, 100, score)
}

func TestEfficiencyScore(t *testing.T) {
	m := model.NewDashboardMetrics(30)
	m.OverallSuccessRate = 50
	m.TotalCost = 10
	m.TotalTimeSavedMinutes = 5 // 0.5 per dollar
	m.TotalTimeSavedHours = 5.0 / 60

	// 0.4*50 + 0.3*5 + 0.3*(1/6) = 21.55
	assert.Equal(t, 22, EfficiencyScore(m))
}

func TestQualityScore(t *testing.T) {
	m := model.NewDashboardMetrics(30)
	m.AutomationCandidates = 10
	m.CriticalBugsIdentified = 2
	m.AvgTestCasesPerGeneration = 4

	// 0.4*20 + 0.3*20 + 0.3*40 = 26
	assert.Equal(t, 26, QualityScore(m))

	m.AutomationCandidates = 500
	m.CriticalBugsIdentified = 50
	m.AvgTestCasesPerGeneration = 40
	assert.Equal(t, 100, QualityScore(m))
}

func TestClassifyTrendBoundary(t *testing.T) {
	assert.Equal(t, TrendStable, ClassifyTrend(11.0, 10.0))
	assert.Equal(t, TrendIncreasing, ClassifyTrend(11.01, 10.0))
	assert.Equal(t, TrendStable, ClassifyTrend(9.0, 10.0))
	assert.Equal(t, TrendDecreasing, ClassifyTrend(8.99, 10.0))
	assert.Equal(t, TrendIncreasing, ClassifyTrend(1, 0))
	assert.Equal(t, TrendStable, ClassifyTrend(0, 0))
}

func TestAnalyzeTrend(t *testing.T) {
	assert.Equal(t, TrendInsufficientData, AnalyzeTrend(nil).Direction)
	assert.Equal(t, TrendInsufficientData, AnalyzeTrend(map[string]model.DayBucket{
		"2026-05-10": {Count: 4},
	}).Direction)

	trends := map[string]model.DayBucket{}
	anchor := time.Date(2026, 5, 20, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 14; i++ {
		count := 10
		if i < 7 {
			count = 12
		}
		trends[anchor.AddDate(0, 0, -i).Format("2006-01-02")] = model.DayBucket{Count: count}
	}
	// older than two weeks is ignored
	trends["2026-04-01"] = model.DayBucket{Count: 1000}

	ta := AnalyzeTrend(trends)
	assert.Equal(t, TrendIncreasing, ta.Direction)
	assert.Equal(t, 12.0, ta.RecentDailyAvg)
	assert.Equal(t, 10.0, ta.PriorDailyAvg)
	assert.Equal(t, 20.0, ta.ChangePercent)
	assert.Equal(t, 15, ta.DaysObserved)
}

func TestAnalyzeTrendExactTenPercentIsStable(t *testing.T) {
	// 77 units in the recent week and 70 in the prior one: 11.0 vs 10.0 per day.
	trends := map[string]model.DayBucket{
		"2026-05-20": {Count: 77},
		"2026-05-13": {Count: 70},
	}
	assert.Equal(t, TrendStable, AnalyzeTrend(trends).Direction)
}

func TestRecommendations(t *testing.T) {
	assert.Empty(t, Recommendations(model.NewDashboardMetrics(30)))

	m := model.NewDashboardMetrics(30)
	m.TotalGenerations = 10
	m.OverallSuccessRate = 60
	m.TotalCost = 10
	m.TotalTimeSavedMinutes = 10
	m.TotalTestCasesGenerated = 20
	m.AutomationCandidates = 2
	m.AvgTestCasesPerGeneration = 3

	recs := Recommendations(m)
	require.Len(t, recs, 4)
	assert.Equal(t, "reliability", recs[0].Type)
	assert.Equal(t, "high", recs[0].Priority)
	assert.Equal(t, "cost", recs[1].Type)
	assert.Equal(t, "medium", recs[1].Priority)
	assert.Equal(t, "automation", recs[2].Type)
	assert.Equal(t, "coverage", recs[3].Type)
	assert.Equal(t, "low", recs[3].Priority)

	healthy := m
	healthy.OverallSuccessRate = 95
	healthy.TotalTimeSavedMinutes = 1000
	healthy.AutomationCandidates = 10
	healthy.AvgTestCasesPerGeneration = 8
	assert.Empty(t, Recommendations(healthy))
}

func TestCostSavings(t *testing.T) {
	m := model.NewDashboardMetrics(30)
	m.TotalTimeSavedMinutes = 120
	m.TotalCost = 2

	s := ComputeCostSavings(m)
	assert.Equal(t, 120.0, s.LaborCostSaved)
	assert.Equal(t, 118.0, s.NetSavings)
	assert.Equal(t, 5900.0, s.ROIPercent)

	m.TotalCost = 0
	assert.Zero(t, ComputeCostSavings(m).ROIPercent)
}

func sampleReport() Report {
	m := model.NewDashboardMetrics(30)
	m.TotalGenerations = 2
	m.SuccessfulGenerations = 2
	m.OverallSuccessRate = 100
	m.TotalTestCasesGenerated = 6
	m.TotalTimeSavedMinutes = 48
	m.TotalTimeSavedHours = 0.8
	m.TotalCost = 0.0003
	m.ProviderUsage["gemini"] = model.ProviderUsage{Count: 2, Cost: 0.0003, Tokens: 2000}
	m.DailyTrends["2026-05-20"] = model.DayBucket{Count: 6, Generations: 2}

	status := integration.ServiceStatus{Initialized: true, Available: true, State: integration.StateReady, Provider: "gemini", Model: "gemini-2.0-flash-lite"}
	return Build(m, status, time.Date(2026, 5, 20, 15, 0, 0, 0, time.UTC))
}

func TestExportJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Export(&buf, sampleReport(), FormatJSON))

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	for _, key := range []string{"exportInfo", "summary", "detailedMetrics", "serviceStatus", "recommendations"} {
		assert.Contains(t, doc, key)
	}
	assert.Contains(t, buf.String(), "\n  \"exportInfo\"")
}

func TestExportCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Export(&buf, sampleReport(), FormatCSV))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.NotEmpty(t, rows)
	assert.Equal(t, []string{"section", "metric", "value"}, rows[0])

	found := map[string]string{}
	for _, r := range rows[1:] {
		found[r[0]+"/"+r[1]] = r[2]
	}
	assert.Equal(t, "6", found["summary/test_cases_generated"])
	assert.Equal(t, "2", found["provider:gemini/count"])
	assert.Equal(t, "ready", found["service/state"])
}

func TestFilenameAndFormat(t *testing.T) {
	now := time.Date(2026, 3, 7, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, "ai-integration-report-2026-03-07.json", Filename(now, FormatJSON))
	assert.Equal(t, "ai-integration-report-2026-03-07.csv", Filename(now, FormatCSV))

	f, err := ParseFormat("CSV")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	f, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	_, err = ParseFormat("xml")
	require.Error(t, err)
}
