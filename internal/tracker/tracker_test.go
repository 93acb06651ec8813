package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/theirongolddev/qaid/internal/config"
	"github.com/theirongolddev/qaid/internal/model"
	"github.com/theirongolddev/qaid/internal/store"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory EventStore whose operations can be made to fail.
type fakeStore struct {
	mu        sync.Mutex
	events    []model.GenerationEvent
	usage     []model.UsageLog
	failWrite bool
	failRead  bool
}

func (f *fakeStore) CreateEvent(_ context.Context, ev model.GenerationEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrite {
		return errors.New("disk full")
	}
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeStore) QueryEvents(_ context.Context, q store.Query) ([]model.GenerationEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failRead {
		return nil, errors.New("connection reset")
	}
	var out []model.GenerationEvent
	for _, ev := range f.events {
		if !q.Since.IsZero() && ev.Timestamp.Before(q.Since) {
			continue
		}
		if !q.Until.IsZero() && ev.Timestamp.After(q.Until) {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func (f *fakeStore) LogUsage(_ context.Context, u model.UsageLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrite {
		return errors.New("disk full")
	}
	f.usage = append(f.usage, u)
	return nil
}

func (f *fakeStore) QueryUsage(context.Context, time.Time, int) ([]model.UsageLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.UsageLog(nil), f.usage...), nil
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestTracker(t *testing.T, s store.EventStore, opts ...Option) (*Tracker, *clock) {
	t.Helper()
	c := &clock{now: time.Date(2026, 6, 15, 10, 0, 0, 0, time.Local)}
	opts = append([]Option{WithClock(c.Now), WithLogger(zerolog.Nop())}, opts...)
	return New(s, opts...), c
}

func threeTestCases() []model.TestCase {
	return []model.TestCase{
		{Title: "valid login", Type: "Functional", Steps: []string{"open", "type", "submit"}, AutomationPotential: "High"},
		{Title: "logout", Type: "Functional", Steps: []string{"click"}},
		{Title: "long password", Type: "Edge Case", AutomationPotential: "medium"},
	}
}

func TestTrackTestCaseGeneration_EndToEnd(t *testing.T) {
	ctx := context.Background()
	s, err := store.Open(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	tr, _ := newTestTracker(t, s)

	tracking, err := tr.TrackTestCaseGeneration(ctx, TestCaseGenerationInput{
		TestCases:     threeTestCases(),
		DocumentTitle: "Login requirements",
		PromptLength:  420,
		Provider:      "gemini",
		Model:         "gemini-2.0-flash-lite",
		TokensUsed:    1200,
		ResponseTime:  900 * time.Millisecond,
		Successful:    true,
	})
	require.NoError(t, err)
	require.NotEmpty(t, tracking.TrackingID)

	ev := tracking.Metrics
	require.NotNil(t, ev.TestCase)
	assert.Equal(t, 3, ev.TestCase.TestCaseCount)
	assert.Equal(t, 24.0, ev.EstimatedTimeSavedMinutes)
	assert.InDelta(t, 0.00018, ev.Cost, 1e-12)
	assert.Equal(t, model.TestCaseBreakdown{Functional: 2, EdgeCase: 1}, ev.TestCase.Breakdown)
	assert.Equal(t, 1, ev.TestCase.AutomationCandidateCount)
	assert.InDelta(t, 4.0/3.0, ev.TestCase.AverageStepsPerTest, 1e-9)
	assert.Equal(t, int64(900), ev.ResponseTimeMs)

	m, err := tr.DashboardMetrics(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, m.TotalTestCasesGenerated)
	assert.Equal(t, 100.0, m.TestCases.SuccessRate)
	assert.Equal(t, 1, m.AutomationCandidates)
}

func TestCostUsesRatesInEffectAtEventTime(t *testing.T) {
	in, out := 1.0, 3.0
	rates, err := config.NewRateTable(config.PricingOverrides{
		Overrides: map[string]config.ModelPricingOverride{
			"gemini-2.0-flash-lite": {InputPerMTok: &in, OutputPerMTok: &out, EffectiveFrom: "2026-06-16"},
		},
	})
	require.NoError(t, err)

	ctx := context.Background()
	tr, c := newTestTracker(t, &fakeStore{}, WithRates(rates))
	track := func() float64 {
		tracking, err := tr.TrackBugReportGeneration(ctx, BugReportGenerationInput{
			Report:     &model.BugReport{Severity: "low"},
			Provider:   "gemini",
			Model:      "gemini-2.0-flash-lite",
			TokensUsed: 1_000_000,
			Successful: true,
		})
		require.NoError(t, err)
		return tracking.Metrics.Cost
	}

	assert.InDelta(t, 0.15, track(), 1e-12, "the clock is still before the new rate")
	c.Advance(24 * time.Hour)
	assert.InDelta(t, 2.0, track(), 1e-12)
}

func TestTrackFailedGenerationIsNeverBilled(t *testing.T) {
	ctx := context.Background()
	fs := &fakeStore{}
	tr, _ := newTestTracker(t, fs)

	tracking, err := tr.TrackTestCaseGeneration(ctx, TestCaseGenerationInput{
		TestCases:    threeTestCases(),
		Provider:     "gemini",
		Model:        "gemini-2.0-flash-lite",
		TokensUsed:   5000,
		Successful:   false,
		ErrorMessage: "quota exceeded",
	})
	require.NoError(t, err)

	ev := tracking.Metrics
	assert.False(t, ev.Successful)
	assert.Zero(t, ev.TokensUsed)
	assert.Zero(t, ev.Cost)
	assert.Zero(t, ev.EstimatedTimeSavedMinutes)
	assert.Zero(t, ev.TestCase.TestCaseCount)
	assert.Equal(t, "quota exceeded", ev.ErrorMessage)

	bug, err := tr.TrackBugReportGeneration(ctx, BugReportGenerationInput{
		Provider:   "openai",
		Model:      "gpt-4o-mini",
		TokensUsed: 300,
		Successful: false,
	})
	require.NoError(t, err)
	assert.Zero(t, bug.Metrics.Cost)
	assert.Zero(t, bug.Metrics.TokensUsed)
	assert.Zero(t, bug.Metrics.EstimatedTimeSavedMinutes)
}

func TestTrackBugReportGeneration(t *testing.T) {
	tr, _ := newTestTracker(t, &fakeStore{})

	tracking, err := tr.TrackBugReportGeneration(context.Background(), BugReportGenerationInput{
		Report: &model.BugReport{
			Title:              "Checkout total wrong",
			Severity:           "Critical",
			Category:           "Functional",
			StepsToReproduce:   []string{"add item", "apply coupon"},
			SuggestedTestCases: []string{"coupon stacking", "zero total"},
		},
		Provider:   "gemini",
		Model:      "gemini-2.0-flash-lite",
		TokensUsed: 800,
		Successful: true,
	})
	require.NoError(t, err)

	p := tracking.Metrics.BugReport
	require.NotNil(t, p)
	assert.Equal(t, "Critical", p.Severity)
	assert.True(t, p.HasStepsToReproduce)
	assert.False(t, p.HasWorkaround)
	assert.Equal(t, 2, p.TestCaseSuggestionCount)
	assert.Equal(t, 15.0, tracking.Metrics.EstimatedTimeSavedMinutes)
}

func TestSessionCounters(t *testing.T) {
	ctx := context.Background()
	tr, _ := newTestTracker(t, &fakeStore{})

	const n, m, k = 7, 4, 3
	for i := 0; i < n; i++ {
		_, err := tr.TrackTestCaseGeneration(ctx, TestCaseGenerationInput{
			TestCases:  threeTestCases(),
			Provider:   "gemini",
			Model:      "gemini-2.0-flash-lite",
			TokensUsed: 1000,
			Successful: i < m,
		})
		require.NoError(t, err)
	}
	for i := 0; i < k; i++ {
		_, err := tr.TrackBugReportGeneration(ctx, BugReportGenerationInput{
			Report:     &model.BugReport{Severity: "low"},
			Provider:   "gemini",
			TokensUsed: 100,
			Successful: true,
		})
		require.NoError(t, err)
	}

	sess := tr.Session()
	assert.Equal(t, m+k, sess.SuccessfulCalls)
	assert.Equal(t, n-m, sess.FailedCalls)
	assert.Equal(t, n+k, sess.AICallsToday)
	assert.Equal(t, m*3, sess.TestCasesGenerated)
	assert.Equal(t, k, sess.BugReportsGenerated)
	assert.Equal(t, int64(m*1000+k*100), sess.TotalTokensUsed)
	assert.Equal(t, float64(m*24+k*15), sess.TimeSavedMinutes)

	tr.ResetSessionMetrics()
	assert.Equal(t, model.SessionMetrics{}, tr.Session())
	assert.Empty(t, tr.History())
}

func TestSessionTodayCountersRollOver(t *testing.T) {
	ctx := context.Background()
	tr, c := newTestTracker(t, &fakeStore{})

	_, err := tr.TrackTestCaseGeneration(ctx, TestCaseGenerationInput{
		TestCases: threeTestCases(), Provider: "gemini", TokensUsed: 1000, Successful: true,
	})
	require.NoError(t, err)
	require.Equal(t, 1, tr.Session().AICallsToday)

	c.Advance(24 * time.Hour)
	sess := tr.Session()
	assert.Zero(t, sess.AICallsToday)
	assert.Zero(t, sess.TotalCostToday)
	assert.Equal(t, 1, sess.SuccessfulCalls)
	assert.Equal(t, 3, sess.TestCasesGenerated)
}

func TestHistoryIsBounded(t *testing.T) {
	ctx := context.Background()
	ids := 0
	tr, _ := newTestTracker(t, &fakeStore{}, WithIDGenerator(func() string {
		ids++
		return fmt.Sprintf("ev-%03d", ids)
	}))

	for i := 0; i < DefaultHistorySize+10; i++ {
		_, err := tr.TrackBugReportGeneration(ctx, BugReportGenerationInput{Provider: "gemini", Successful: true})
		require.NoError(t, err)
	}

	h := tr.History()
	require.Len(t, h, DefaultHistorySize)
	assert.Equal(t, "ev-011", h[0].ID)
	assert.Equal(t, "ev-060", h[len(h)-1].ID)
}

func TestStorageWriteFailure(t *testing.T) {
	fs := &fakeStore{failWrite: true}
	tr, _ := newTestTracker(t, fs)

	tracking, err := tr.TrackTestCaseGeneration(context.Background(), TestCaseGenerationInput{
		TestCases: threeTestCases(), Provider: "gemini", TokensUsed: 1000, Successful: true,
	})
	require.ErrorIs(t, err, ErrStorageWrite)
	assert.Empty(t, tracking.TrackingID)

	assert.Equal(t, 1, tr.Session().SuccessfulCalls)
	assert.Len(t, tr.History(), 1)

	// Usage logs never surface errors.
	tr.LogUsage(context.Background(), model.UsageLog{Operation: "test_cases"})
}

func TestDashboardMetricsReadFailure(t *testing.T) {
	tr, _ := newTestTracker(t, &fakeStore{failRead: true})

	m, err := tr.DashboardMetrics(context.Background(), 7)
	require.ErrorIs(t, err, ErrStorageRead)
	assert.Equal(t, 7, m.WindowDays)
	assert.Zero(t, m.TotalGenerations)
	assert.NotNil(t, m.ProviderUsage)
}

func TestDashboardMetricsIsIdempotent(t *testing.T) {
	ctx := context.Background()
	tr, c := newTestTracker(t, &fakeStore{})

	for i := 0; i < 5; i++ {
		_, err := tr.TrackTestCaseGeneration(ctx, TestCaseGenerationInput{
			TestCases: threeTestCases(), Provider: "gemini", TokensUsed: 1000, Successful: i%2 == 0,
		})
		require.NoError(t, err)
		_, err = tr.TrackBugReportGeneration(ctx, BugReportGenerationInput{
			Report: &model.BugReport{Severity: "high"}, Provider: "openai", Model: "gpt-4o-mini", TokensUsed: 200, Successful: true,
		})
		require.NoError(t, err)
		c.Advance(7 * time.Hour)
	}

	first, err := tr.DashboardMetrics(ctx, 30)
	require.NoError(t, err)
	second, err := tr.DashboardMetrics(ctx, 30)
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestDashboardMetricsWindow(t *testing.T) {
	ctx := context.Background()
	tr, c := newTestTracker(t, &fakeStore{})

	_, err := tr.TrackBugReportGeneration(ctx, BugReportGenerationInput{Provider: "gemini", Successful: true})
	require.NoError(t, err)

	c.Advance(3 * 24 * time.Hour)
	_, err = tr.TrackBugReportGeneration(ctx, BugReportGenerationInput{Provider: "gemini", Successful: true})
	require.NoError(t, err)

	m, err := tr.DashboardMetrics(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, m.TotalBugReportsGenerated)

	m, err = tr.DashboardMetrics(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultWindowDays, m.WindowDays)
	assert.Equal(t, 2, m.TotalBugReportsGenerated)
}

func TestBreakdownByType(t *testing.T) {
	b := BreakdownByType([]model.TestCase{
		{Type: "functional"}, {Type: "INTEGRATION"}, {Type: "edge-case"}, {Type: "edge_case"},
		{Type: "Negative"}, {Type: "performance"}, {Type: "Security"}, {Type: "usability"}, {},
	})
	assert.Equal(t, model.TestCaseBreakdown{
		Functional: 1, Integration: 1, Negative: 1, EdgeCase: 2, Performance: 1, Security: 1, Other: 2,
	}, b)
}

func TestLogUsageFillsDefaults(t *testing.T) {
	fs := &fakeStore{}
	tr, c := newTestTracker(t, fs)

	tr.LogUsage(context.Background(), model.UsageLog{Provider: "gemini", Operation: "connection_check", Successful: true})

	logs, err := tr.RecentUsage(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.NotEmpty(t, logs[0].ID)
	assert.True(t, logs[0].Timestamp.Equal(c.Now()))
}

func TestRingEviction(t *testing.T) {
	r := newRing[int](3)
	for i := 1; i <= 5; i++ {
		r.push(i)
	}
	assert.Equal(t, []int{3, 4, 5}, r.items())
	assert.Equal(t, 3, r.len())

	r.reset()
	assert.Empty(t, r.items())
}
