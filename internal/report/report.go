// Package report derives scores, trends and recommendations from dashboard
// metrics and serializes them as an exportable report.
package report

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/theirongolddev/qaid/internal/integration"
	"github.com/theirongolddev/qaid/internal/model"
	"github.com/theirongolddev/qaid/internal/pipeline"
)

// ReportVersion is written into every export.
const ReportVersion = "1.0"

// LaborCostPerMinute is the USD value of one minute of manual QA work.
const LaborCostPerMinute = 1.0

// Fixed recommendation thresholds.
const (
	minSuccessRate        = 80.0
	minCostEfficiency     = 2.0
	minAutomationRatio    = 0.30
	minTestCasesPerRun    = 5.0
	trendWindowDays       = 7
	maxCostEfficiencyTerm = 100.0
)

// Trend is the direction of daily generation volume.
type Trend string

const (
	TrendIncreasing       Trend = "increasing"
	TrendDecreasing       Trend = "decreasing"
	TrendStable           Trend = "stable"
	TrendInsufficientData Trend = "insufficient_data"
)

// Report is the full analytics document.
type Report struct {
	ExportInfo      ExportInfo                `json:"exportInfo"`
	Summary         Summary                   `json:"summary"`
	DetailedMetrics model.DashboardMetrics    `json:"detailedMetrics"`
	ServiceStatus   integration.ServiceStatus `json:"serviceStatus"`
	Recommendations []Recommendation          `json:"recommendations"`
}

// ExportInfo describes when and over what window the report was built.
type ExportInfo struct {
	GeneratedAt time.Time `json:"generatedAt"`
	WindowDays  int       `json:"windowDays"`
	Version     string    `json:"version"`
}

// Summary holds the headline numbers and derived scores.
type Summary struct {
	TotalGenerations         int           `json:"totalGenerations"`
	OverallSuccessRate       float64       `json:"overallSuccessRate"`
	TotalTestCasesGenerated  int           `json:"totalTestCasesGenerated"`
	TotalBugReportsGenerated int           `json:"totalBugReportsGenerated"`
	TotalTimeSavedHours      float64       `json:"totalTimeSavedHours"`
	TotalCost                float64       `json:"totalCost"`
	EfficiencyScore          int           `json:"efficiencyScore"`
	QualityScore             int           `json:"qualityScore"`
	CostEfficiency           float64       `json:"costEfficiency"`
	CostSavings              CostSavings   `json:"costSavings"`
	Trend                    TrendAnalysis `json:"trend"`
}

// CostSavings compares displaced labor with AI spend.
type CostSavings struct {
	LaborCostSaved float64 `json:"laborCostSaved"`
	AICost         float64 `json:"aiCost"`
	NetSavings     float64 `json:"netSavings"`
	ROIPercent     float64 `json:"roiPercent"`
}

// TrendAnalysis compares the last seven days with the seven before.
type TrendAnalysis struct {
	Direction      Trend   `json:"direction"`
	RecentDailyAvg float64 `json:"recentDailyAvg"`
	PriorDailyAvg  float64 `json:"priorDailyAvg"`
	ChangePercent  float64 `json:"changePercent"`
	DaysObserved   int     `json:"daysObserved"`
}

// Recommendation is one suggested action.
type Recommendation struct {
	Type     string `json:"type"`
	Priority string `json:"priority"`
	Message  string `json:"message"`
}

// Build derives the report from m. It performs no I/O.
func Build(m model.DashboardMetrics, status integration.ServiceStatus, now time.Time) Report {
	costEff := CostEfficiency(m)
	savings := ComputeCostSavings(m)

	return Report{
		ExportInfo: ExportInfo{
			GeneratedAt: now,
			WindowDays:  m.WindowDays,
			Version:     ReportVersion,
		},
		Summary: Summary{
			TotalGenerations:         m.TotalGenerations,
			OverallSuccessRate:       m.OverallSuccessRate,
			TotalTestCasesGenerated:  m.TotalTestCasesGenerated,
			TotalBugReportsGenerated: m.TotalBugReportsGenerated,
			TotalTimeSavedHours:      round2(m.TotalTimeSavedHours),
			TotalCost:                m.TotalCost,
			EfficiencyScore:          EfficiencyScore(m),
			QualityScore:             QualityScore(m),
			CostEfficiency:           round2(costEff),
			CostSavings:              savings,
			Trend:                    AnalyzeTrend(m.DailyTrends),
		},
		DetailedMetrics: m,
		ServiceStatus:   status,
		Recommendations: Recommendations(m),
	}
}

// CostEfficiency is labor value saved per dollar of AI cost. With no cost
// it is the upper bound of 100.
func CostEfficiency(m model.DashboardMetrics) float64 {
	if m.TotalCost <= 0 {
		return maxCostEfficiencyTerm
	}
	return m.TotalTimeSavedMinutes * LaborCostPerMinute / m.TotalCost
}

// EfficiencyScore blends success rate, cost efficiency and time saved into 0..100.
func EfficiencyScore(m model.DashboardMetrics) int {
	score := 0.4*m.OverallSuccessRate +
		0.3*math.Min(CostEfficiency(m)*10, 100) +
		0.3*math.Min(m.TotalTimeSavedHours*2, 100)
	return clampScore(score)
}

// QualityScore blends automation candidates, critical bugs found and test
// case yield into 0..100.
func QualityScore(m model.DashboardMetrics) int {
	score := 0.4*math.Min(float64(m.AutomationCandidates)*2, 100) +
		0.3*math.Min(float64(m.CriticalBugsIdentified)*10, 100) +
		0.3*math.Min(m.AvgTestCasesPerGeneration*10, 100)
	return clampScore(score)
}

func clampScore(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	return int(math.Max(0, math.Min(100, math.Round(v))))
}

// ComputeCostSavings values saved time at LaborCostPerMinute. ROI is 0
// when nothing was spent.
func ComputeCostSavings(m model.DashboardMetrics) CostSavings {
	labor := m.TotalTimeSavedMinutes * LaborCostPerMinute
	s := CostSavings{
		LaborCostSaved: round2(labor),
		AICost:         m.TotalCost,
		NetSavings:     round2(labor - m.TotalCost),
	}
	if m.TotalCost > 0 {
		s.ROIPercent = round2((labor - m.TotalCost) / m.TotalCost * 100)
	}
	return s
}

// AnalyzeTrend compares mean daily volume over the seven days ending at the
// latest day present with the seven days before that.
func AnalyzeTrend(trends map[string]model.DayBucket) TrendAnalysis {
	type day struct {
		date  time.Time
		count int
	}
	days := make([]day, 0, len(trends))
	for key, b := range trends {
		d, err := time.Parse(pipeline.DayLayout, key)
		if err != nil {
			continue
		}
		days = append(days, day{date: d, count: b.Count})
	}

	ta := TrendAnalysis{Direction: TrendInsufficientData, DaysObserved: len(days)}
	if len(days) < 2 {
		return ta
	}

	sort.Slice(days, func(i, j int) bool { return days[i].date.Before(days[j].date) })
	anchor := days[len(days)-1].date

	var recent, prior int
	for _, d := range days {
		age := int(anchor.Sub(d.date).Hours() / 24)
		switch {
		case age < trendWindowDays:
			recent += d.count
		case age < 2*trendWindowDays:
			prior += d.count
		}
	}

	ta.RecentDailyAvg = float64(recent) / trendWindowDays
	ta.PriorDailyAvg = float64(prior) / trendWindowDays
	ta.Direction = ClassifyTrend(ta.RecentDailyAvg, ta.PriorDailyAvg)
	if ta.PriorDailyAvg > 0 {
		ta.ChangePercent = round2((ta.RecentDailyAvg - ta.PriorDailyAvg) / ta.PriorDailyAvg * 100)
	}
	ta.RecentDailyAvg = round2(ta.RecentDailyAvg)
	ta.PriorDailyAvg = round2(ta.PriorDailyAvg)
	return ta
}

// ClassifyTrend labels a change of more than 10% either way. Exactly 10%
// is stable.
func ClassifyTrend(recent, prior float64) Trend {
	if prior <= 0 {
		if recent > 0 {
			return TrendIncreasing
		}
		return TrendStable
	}
	switch {
	case recent*10 > prior*11:
		return TrendIncreasing
	case recent*10 < prior*9:
		return TrendDecreasing
	default:
		return TrendStable
	}
}

// Recommendations applies the fixed threshold rules. An empty window gets none.
func Recommendations(m model.DashboardMetrics) []Recommendation {
	recs := []Recommendation{}
	if m.TotalGenerations == 0 {
		return recs
	}

	if m.OverallSuccessRate < minSuccessRate {
		recs = append(recs, Recommendation{
			Type:     "reliability",
			Priority: "high",
			Message: fmt.Sprintf("Success rate is %.1f%%. Review your prompts and provider configuration.",
				m.OverallSuccessRate),
		})
	}
	if eff := CostEfficiency(m); eff < minCostEfficiency {
		recs = append(recs, Recommendation{
			Type:     "cost",
			Priority: "medium",
			Message: fmt.Sprintf("Each AI dollar saves %.2f dollars of manual work. Optimize prompts or switch to a cheaper provider.",
				eff),
		})
	}
	if m.TotalTestCasesGenerated > 0 {
		ratio := float64(m.AutomationCandidates) / float64(m.TotalTestCasesGenerated)
		if ratio < minAutomationRatio {
			recs = append(recs, Recommendation{
				Type:     "automation",
				Priority: "medium",
				Message: fmt.Sprintf("Only %.0f%% of generated test cases are automation candidates. Adjust templates to favor automatable checks.",
					ratio*100),
			})
		}
		if m.AvgTestCasesPerGeneration < minTestCasesPerRun {
			recs = append(recs, Recommendation{
				Type:     "coverage",
				Priority: "low",
				Message: fmt.Sprintf("Generations average %.1f test cases. Broaden prompts to cover more scenarios.",
					m.AvgTestCasesPerGeneration),
			})
		}
	}
	return recs
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
