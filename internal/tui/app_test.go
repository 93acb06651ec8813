package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/theirongolddev/qaid/internal/integration"
	"github.com/theirongolddev/qaid/internal/model"
	"github.com/theirongolddev/qaid/internal/pipeline"

	tea "github.com/charmbracelet/bubbletea"
)

type stubSource struct {
	events  []model.GenerationEvent
	err     error
	lastDay int
}

func (s *stubSource) DashboardMetrics(_ context.Context, windowDays int) (model.DashboardMetrics, error) {
	s.lastDay = windowDays
	if s.err != nil {
		return model.NewDashboardMetrics(windowDays), s.err
	}
	return pipeline.Aggregate(s.events, windowDays), nil
}

func (s *stubSource) Events(context.Context, int) ([]model.GenerationEvent, error) {
	return s.events, s.err
}

func (s *stubSource) Session() model.SessionMetrics {
	return model.SessionMetrics{TestCasesGenerated: 3, AICallsToday: 2}
}

var testNow = time.Date(2026, 5, 20, 15, 0, 0, 0, time.Local)

func sampleEvents() []model.GenerationEvent {
	return []model.GenerationEvent{
		{
			ID: "a", Kind: model.KindTestCaseGeneration, Timestamp: testNow.Add(-2 * time.Hour),
			Successful: true, Provider: "gemini", Model: "gemini-2.0-flash-lite", TokensUsed: 1200,
			Cost: 0.00018, EstimatedTimeSavedMinutes: 24,
			TestCase: &model.TestCasePayload{
				TestCaseCount: 3, DocumentTitle: "checkout",
				Breakdown:                model.TestCaseBreakdown{Functional: 2, EdgeCase: 1},
				AutomationCandidateCount: 1,
			},
		},
		{
			ID: "b", Kind: model.KindBugReportGeneration, Timestamp: testNow.Add(-time.Hour),
			Successful: true, Provider: "openai", Model: "gpt-4o-mini", TokensUsed: 800, Cost: 0.0003,
			EstimatedTimeSavedMinutes: 15,
			BugReport: &model.BugReportPayload{Severity: "critical", Category: "payments"},
		},
		{
			ID: "c", Kind: model.KindBugReportGeneration, Timestamp: testNow.Add(-30 * time.Minute),
			Successful: false, Provider: "openai", Model: "gpt-4o-mini", ErrorMessage: "quota",
		},
	}
}

func newTestApp(src Source) App {
	return NewApp(src, Options{
		Days: 7,
		Now:  func() time.Time { return testNow },
		Status: func() integration.ServiceStatus {
			return integration.ServiceStatus{Provider: "gemini", State: integration.StateReady}
		},
	})
}

// load runs the app's load command synchronously and applies the result.
func load(t *testing.T, a App) App {
	t.Helper()
	msg, ok := a.loadCmd()().(DataLoadedMsg)
	if !ok {
		t.Fatal("loadCmd did not return DataLoadedMsg")
	}
	next, _ := a.Update(msg)
	return next.(App)
}

func press(a App, key string) App {
	var msg tea.KeyMsg
	switch key {
	case "left":
		msg = tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		msg = tea.KeyMsg{Type: tea.KeyRight}
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	next, _ := a.Update(msg)
	return next.(App)
}

func sized(a App, w, h int) App {
	next, _ := a.Update(tea.WindowSizeMsg{Width: w, Height: h})
	return next.(App)
}

func TestLoadPopulatesDashboard(t *testing.T) {
	src := &stubSource{events: sampleEvents()}
	a := load(t, newTestApp(src))

	if !a.loaded || a.refreshing {
		t.Fatalf("loaded=%v refreshing=%v after load", a.loaded, a.refreshing)
	}
	if src.lastDay != 7 {
		t.Fatalf("source window = %d, want 7", src.lastDay)
	}
	if a.metrics.TotalTestCasesGenerated != 3 {
		t.Fatalf("TotalTestCasesGenerated = %d, want 3", a.metrics.TotalTestCasesGenerated)
	}
	if a.report.Summary.TotalGenerations != 3 {
		t.Fatalf("report generations = %d, want 3", a.report.Summary.TotalGenerations)
	}
	if a.events[0].ID != "c" {
		t.Fatalf("events should be newest first, got %q", a.events[0].ID)
	}
	if a.session.TestCasesGenerated != 3 {
		t.Fatal("session metrics not carried into the model")
	}
}

func TestLoadErrorKeepsZeroShape(t *testing.T) {
	a := load(t, newTestApp(&stubSource{err: errors.New("disk gone")}))
	if a.loadErr == nil {
		t.Fatal("loadErr should be set")
	}
	if a.metrics.TestCases.DailyTrends == nil {
		t.Fatal("metrics should keep the allocated zero shape on error")
	}
	a = sized(a, 140, 45)
	if !strings.Contains(a.View(), "metrics unavailable") {
		t.Fatal("status bar should report the read error")
	}
}

func TestTabNavigation(t *testing.T) {
	a := load(t, newTestApp(&stubSource{events: sampleEvents()}))

	a = press(a, "b")
	if a.activeTab != tabBugReports {
		t.Fatalf("after 'b' activeTab = %d, want %d", a.activeTab, tabBugReports)
	}
	a = press(a, "right")
	if a.activeTab != tabProviders {
		t.Fatalf("after right activeTab = %d, want %d", a.activeTab, tabProviders)
	}
	a = press(a, "o")
	a = press(a, "left")
	if a.activeTab != tabHistory {
		t.Fatalf("left from overview should wrap to history, got %d", a.activeTab)
	}
}

func TestKeysIgnoredUntilLoaded(t *testing.T) {
	a := newTestApp(&stubSource{})
	a = press(a, "b")
	if a.activeTab != tabOverview {
		t.Fatal("tab keys should be ignored before the first load")
	}
}

func TestWindowStepping(t *testing.T) {
	if got := stepWindow(7, true); got != 30 {
		t.Fatalf("stepWindow(7, up) = %d, want 30", got)
	}
	if got := stepWindow(90, true); got != 90 {
		t.Fatalf("stepWindow(90, up) = %d, want 90", got)
	}
	if got := stepWindow(14, false); got != 7 {
		t.Fatalf("stepWindow(14, down) = %d, want 7", got)
	}
	if got := stepWindow(1, false); got != 1 {
		t.Fatalf("stepWindow(1, down) = %d, want 1", got)
	}
}

func TestStaleWindowLoadIgnored(t *testing.T) {
	src := &stubSource{events: sampleEvents()}
	a := load(t, newTestApp(src))
	stale := a.loadCmd()().(DataLoadedMsg)

	a = press(a, "]")
	if a.days != 30 || !a.refreshing {
		t.Fatalf("days=%d refreshing=%v after ']'", a.days, a.refreshing)
	}
	stale.Metrics = model.NewDashboardMetrics(7)
	next, _ := a.Update(stale)
	a = next.(App)
	if a.metrics.TotalGenerations != 3 {
		t.Fatal("a load for the previous window overwrote current metrics")
	}
}

func TestAutoRefreshOnTick(t *testing.T) {
	now := testNow
	a := NewApp(&stubSource{}, Options{
		Days:            7,
		AutoRefresh:     true,
		RefreshInterval: 10 * time.Second,
		Now:             func() time.Time { return now },
	})
	a = load(t, a)

	next, _ := a.Update(tickMsg{})
	if next.(App).refreshing {
		t.Fatal("tick before the interval should not refresh")
	}
	now = now.Add(11 * time.Second)
	next, _ = a.Update(tickMsg{})
	if !next.(App).refreshing {
		t.Fatal("tick after the interval should start a refresh")
	}

	a = press(a, "R")
	if a.autoRefresh {
		t.Fatal("'R' should toggle auto-refresh off")
	}
}

func TestHistorySearch(t *testing.T) {
	a := load(t, newTestApp(&stubSource{events: sampleEvents()}))
	a = press(a, "h")
	a = press(a, "/")
	if !a.history.searching {
		t.Fatal("'/' should start a search")
	}
	for _, r := range "checkout" {
		a = press(a, string(r))
	}
	a = press(a, "enter")
	if a.history.searching || a.history.query != "checkout" {
		t.Fatalf("searching=%v query=%q after enter", a.history.searching, a.history.query)
	}
	if got := len(a.visibleEvents()); got != 1 {
		t.Fatalf("visible events = %d, want 1", got)
	}
	a = press(a, "esc")
	if got := len(a.visibleEvents()); got != 3 {
		t.Fatalf("after esc visible events = %d, want 3", got)
	}
}

func TestHistoryCursorClamped(t *testing.T) {
	a := load(t, newTestApp(&stubSource{events: sampleEvents()}))
	a = press(a, "h")
	for range 5 {
		a = press(a, "j")
	}
	if a.history.cursor != 2 {
		t.Fatalf("cursor = %d, want 2", a.history.cursor)
	}
	a = press(a, "g")
	if a.history.cursor != 0 {
		t.Fatalf("cursor after g = %d, want 0", a.history.cursor)
	}
}

func TestProviderFilter(t *testing.T) {
	src := &stubSource{events: sampleEvents()}
	a := NewApp(src, Options{Days: 7, Provider: "open", Now: func() time.Time { return testNow }})
	a = load(t, a)
	if got := len(a.visibleEvents()); got != 2 {
		t.Fatalf("visible events with provider filter = %d, want 2", got)
	}
}

func TestViewRendersEveryTab(t *testing.T) {
	a := load(t, newTestApp(&stubSource{events: sampleEvents()}))
	for _, width := range []int{90, 150} {
		a = sized(a, width, 50)
		for tab := range tabHistory + 1 {
			a.activeTab = tab
			if out := a.View(); strings.TrimSpace(out) == "" {
				t.Fatalf("width %d tab %d rendered nothing", width, tab)
			}
		}
	}
}

func TestViewTooNarrow(t *testing.T) {
	a := sized(newTestApp(&stubSource{}), 60, 20)
	if !strings.Contains(a.View(), "too narrow") {
		t.Fatal("narrow terminals should get a warning instead of the dashboard")
	}
}

func TestDateLabels(t *testing.T) {
	dates := []time.Time{
		time.Date(2026, 4, 29, 0, 0, 0, 0, time.Local),
		time.Date(2026, 4, 30, 0, 0, 0, 0, time.Local),
		time.Date(2026, 5, 1, 0, 0, 0, 0, time.Local),
		time.Date(2026, 5, 2, 0, 0, 0, 0, time.Local),
	}
	got := strings.Join(dateLabels(dates), ",")
	if got != "Apr,30,May,2" {
		t.Fatalf("dateLabels = %q, want Apr,30,May,2", got)
	}
}
