// Package model defines domain types for qaid generation events and metrics.
package model

import "time"

// Kind identifies which generation produced an event.
type Kind string

const (
	KindTestCaseGeneration  Kind = "test_case_generation"
	KindBugReportGeneration Kind = "bug_report_generation"
)

// Valid reports whether k is a known event kind.
func (k Kind) Valid() bool {
	return k == KindTestCaseGeneration || k == KindBugReportGeneration
}

// GenerationEvent is one recorded generation attempt. Cost and
// EstimatedTimeSavedMinutes are computed when the event is created and
// never recomputed afterwards.
type GenerationEvent struct {
	ID                        string    `json:"id"`
	Kind                      Kind      `json:"kind"`
	Timestamp                 time.Time `json:"timestamp"`
	Successful                bool      `json:"successful"`
	Provider                  string    `json:"provider"`
	Model                     string    `json:"model"`
	TokensUsed                int64     `json:"tokensUsed"`
	Cost                      float64   `json:"cost"`
	ResponseTimeMs            int64     `json:"responseTimeMs"`
	EstimatedTimeSavedMinutes float64   `json:"estimatedTimeSavedMinutes"`
	ErrorMessage              string    `json:"errorMessage,omitempty"`

	// Exactly one of these is set, matching Kind.
	TestCase  *TestCasePayload  `json:"testCase,omitempty"`
	BugReport *BugReportPayload `json:"bugReport,omitempty"`
}

// TestCasePayload holds the fields specific to test case generations.
type TestCasePayload struct {
	TestCaseCount            int               `json:"testCaseCount"`
	DocumentTitle            string            `json:"documentTitle"`
	PromptLength             int               `json:"promptLength"`
	Breakdown                TestCaseBreakdown `json:"testCaseBreakdown"`
	AutomationCandidateCount int               `json:"automationCandidateCount"`
	AverageStepsPerTest      float64           `json:"averageStepsPerTest"`
}

// BugReportPayload holds the fields specific to bug report generations.
type BugReportPayload struct {
	Severity                string `json:"severity"`
	Category                string `json:"category"`
	HasStepsToReproduce     bool   `json:"hasStepsToReproduce"`
	HasWorkaround           bool   `json:"hasWorkaround"`
	TestCaseSuggestionCount int    `json:"testCaseSuggestionCount"`
}

// TestCaseBreakdown counts generated test cases by type.
type TestCaseBreakdown struct {
	Functional  int `json:"functional"`
	Integration int `json:"integration"`
	Negative    int `json:"negative"`
	EdgeCase    int `json:"edgeCase"`
	Performance int `json:"performance"`
	Security    int `json:"security"`
	Other       int `json:"other"`
}

// Total returns the number of test cases across all buckets.
func (b TestCaseBreakdown) Total() int {
	return b.Functional + b.Integration + b.Negative + b.EdgeCase +
		b.Performance + b.Security + b.Other
}

// UsageLog is a raw record of one call to the generation capability.
type UsageLog struct {
	ID             string    `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	Provider       string    `json:"provider"`
	Model          string    `json:"model"`
	Operation      string    `json:"operation"`
	TokensUsed     int64     `json:"tokensUsed"`
	ResponseTimeMs int64     `json:"responseTimeMs"`
	Successful     bool      `json:"successful"`
	ErrorMessage   string    `json:"errorMessage,omitempty"`
}

// TestCase is one generated test case as returned by the model.
type TestCase struct {
	ID                  string   `json:"id,omitempty"`
	Title               string   `json:"title"`
	Type                string   `json:"type"`
	Priority            string   `json:"priority,omitempty"`
	Preconditions       string   `json:"preconditions,omitempty"`
	Steps               Steps    `json:"steps,omitempty"`
	ExpectedResult      string   `json:"expectedResult,omitempty"`
	AutomationPotential string   `json:"automationPotential,omitempty"`
	Tags                []string `json:"tags,omitempty"`
}

// BugReport is a generated bug report as returned by the model.
type BugReport struct {
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	Severity           string   `json:"severity"`
	Category           string   `json:"category"`
	StepsToReproduce   Steps    `json:"stepsToReproduce,omitempty"`
	ExpectedBehavior   string   `json:"expectedBehavior,omitempty"`
	ActualBehavior     string   `json:"actualBehavior,omitempty"`
	Environment        string   `json:"environment,omitempty"`
	Workaround         string   `json:"workaround,omitempty"`
	SuggestedTestCases Steps    `json:"suggestedTestCases,omitempty"`
}
