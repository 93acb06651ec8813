package model

// DashboardMetrics is the windowed aggregate over generation events. It is
// recomputed on every read and never stored.
type DashboardMetrics struct {
	WindowDays int `json:"windowDays"`

	TestCases  KindMetrics `json:"testCases"`
	BugReports KindMetrics `json:"bugReports"`

	TotalGenerations      int     `json:"totalGenerations"`
	SuccessfulGenerations int     `json:"successfulGenerations"`
	OverallSuccessRate    float64 `json:"overallSuccessRate"` // percent, count-weighted
	TotalTimeSavedMinutes float64 `json:"totalTimeSavedMinutes"`
	TotalTimeSavedHours   float64 `json:"totalTimeSavedHours"`
	TotalCost             float64 `json:"totalCost"`
	TotalTokens           int64   `json:"totalTokens"`
	AvgResponseTimeMs     float64 `json:"avgResponseTimeMs"`

	TotalTestCasesGenerated   int               `json:"totalTestCasesGenerated"`
	AutomationCandidates      int               `json:"automationCandidates"`
	AvgTestCasesPerGeneration float64           `json:"avgTestCasesPerGeneration"`
	TotalBugReportsGenerated  int               `json:"totalBugReportsGenerated"`
	CriticalBugsIdentified    int               `json:"criticalBugsIdentified"`
	TestCaseBreakdown         TestCaseBreakdown `json:"testCaseBreakdown"`
	BugReportsBySeverity      map[string]int    `json:"bugReportsBySeverity"`

	ProviderUsage map[string]ProviderUsage `json:"providerUsage"`
	DailyTrends   map[string]DayBucket     `json:"dailyTrends"`
}

// KindMetrics aggregates one event kind within the window.
type KindMetrics struct {
	Total            int     `json:"total"`
	Successful       int     `json:"successful"`
	Failed           int     `json:"failed"`
	SuccessRate      float64 `json:"successRate"` // percent
	Units            int     `json:"units"`       // test cases or reports produced
	TimeSavedMinutes float64 `json:"timeSavedMinutes"`
	Cost             float64 `json:"cost"`
	AvgCostPerUnit   float64 `json:"avgCostPerUnit"`
	Tokens           int64   `json:"tokens"`

	ProviderUsage map[string]ProviderUsage `json:"providerUsage"`
	DailyTrends   map[string]DayBucket     `json:"dailyTrends"`
}

// ProviderUsage groups events by the provider that served them.
type ProviderUsage struct {
	Count  int     `json:"count"`
	Cost   float64 `json:"cost"`
	Tokens int64   `json:"tokens"`
}

// DayBucket holds one calendar day of activity, keyed by YYYY-MM-DD in the
// event's own timestamp location.
type DayBucket struct {
	Count       int     `json:"count"` // units produced
	Generations int     `json:"generations"`
	Cost        float64 `json:"cost"`
	TimeSaved   float64 `json:"timeSaved"` // minutes
}

// SessionMetrics holds process-lifetime counters. They are never persisted.
type SessionMetrics struct {
	TestCasesGenerated  int     `json:"testCasesGenerated"`
	BugReportsGenerated int     `json:"bugReportsGenerated"`
	AICallsToday        int     `json:"aiCallsToday"`
	SuccessfulCalls     int     `json:"successfulCalls"`
	FailedCalls         int     `json:"failedCalls"`
	TotalTokensUsed     int64   `json:"totalTokensUsed"`
	TotalCostToday      float64 `json:"totalCostToday"`
	TimeSavedMinutes    float64 `json:"timeSaved"`
}

// NewKindMetrics returns a KindMetrics with its maps allocated so that JSON
// output never contains null for an empty window.
func NewKindMetrics() KindMetrics {
	return KindMetrics{
		ProviderUsage: make(map[string]ProviderUsage),
		DailyTrends:   make(map[string]DayBucket),
	}
}

// NewDashboardMetrics returns the zero-valued dashboard shape for a window.
func NewDashboardMetrics(windowDays int) DashboardMetrics {
	return DashboardMetrics{
		WindowDays:           windowDays,
		TestCases:            NewKindMetrics(),
		BugReports:           NewKindMetrics(),
		BugReportsBySeverity: make(map[string]int),
		ProviderUsage:        make(map[string]ProviderUsage),
		DailyTrends:          make(map[string]DayBucket),
	}
}
