package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/theirongolddev/qaid/internal/model"
)

func openTestStore(t *testing.T) *SQLite {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "events.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testCaseEvent(id string, ts time.Time, ok bool) model.GenerationEvent {
	return model.GenerationEvent{
		ID:         id,
		Kind:       model.KindTestCaseGeneration,
		Timestamp:  ts,
		Successful: ok,
		Provider:   "gemini",
		Model:      "gemini-2.0-flash-lite",
		TokensUsed: 1200,
		Cost:       0.00018,
		TestCase: &model.TestCasePayload{
			TestCaseCount:            3,
			DocumentTitle:            "Login spec",
			Breakdown:                model.TestCaseBreakdown{Functional: 2, EdgeCase: 1},
			AutomationCandidateCount: 1,
			AverageStepsPerTest:      2.5,
		},
	}
}

func TestCreateAndQueryEvents(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	loc := time.FixedZone("UTC-5", -5*3600)
	base := time.Date(2026, 3, 10, 22, 30, 0, 0, loc)

	if err := s.CreateEvent(ctx, testCaseEvent("tc-1", base, true)); err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	if err := s.CreateEvent(ctx, testCaseEvent("tc-2", base.Add(time.Hour), false)); err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	bug := model.GenerationEvent{
		ID:         "bug-1",
		Kind:       model.KindBugReportGeneration,
		Timestamp:  base.Add(2 * time.Hour),
		Successful: true,
		Provider:   "openai",
		Model:      "gpt-4o-mini",
		BugReport:  &model.BugReportPayload{Severity: "Critical", HasWorkaround: true},
	}
	if err := s.CreateEvent(ctx, bug); err != nil {
		t.Fatalf("CreateEvent bug: %v", err)
	}

	all, err := s.QueryEvents(ctx, Query{})
	if err != nil {
		t.Fatalf("QueryEvents: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len(all) = %d, want 3", len(all))
	}
	if all[0].ID != "tc-1" || all[2].ID != "bug-1" {
		t.Fatalf("order = [%s %s %s], want oldest first", all[0].ID, all[1].ID, all[2].ID)
	}

	first := all[0]
	if first.Timestamp.Format("2006-01-02") != "2026-03-10" {
		t.Fatalf("stored timestamp lost its offset: %s", first.Timestamp)
	}
	if !first.Timestamp.Equal(base) {
		t.Fatalf("timestamp = %s, want %s", first.Timestamp, base)
	}
	if first.TestCase == nil || first.TestCase.Breakdown.EdgeCase != 1 {
		t.Fatalf("payload not restored: %+v", first.TestCase)
	}
	if all[2].BugReport == nil || all[2].BugReport.Severity != "Critical" {
		t.Fatalf("bug payload not restored: %+v", all[2].BugReport)
	}

	onlyBugs, err := s.QueryEvents(ctx, Query{Kind: model.KindBugReportGeneration})
	if err != nil {
		t.Fatal(err)
	}
	if len(onlyBugs) != 1 {
		t.Fatalf("bug filter returned %d rows, want 1", len(onlyBugs))
	}

	succeeded := true
	okRows, err := s.QueryEvents(ctx, Query{Provider: "gemini", Successful: &succeeded})
	if err != nil {
		t.Fatal(err)
	}
	if len(okRows) != 1 || okRows[0].ID != "tc-1" {
		t.Fatalf("provider+successful filter returned %d rows", len(okRows))
	}

	windowed, err := s.QueryEvents(ctx, Query{Since: base.Add(30 * time.Minute), Until: base.Add(time.Hour)})
	if err != nil {
		t.Fatal(err)
	}
	if len(windowed) != 1 || windowed[0].ID != "tc-2" {
		t.Fatalf("window returned %d rows, want only tc-2", len(windowed))
	}
}

func TestCreateEventRejectsDuplicateID(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	ev := testCaseEvent("dup", time.Now(), true)
	if err := s.CreateEvent(ctx, ev); err != nil {
		t.Fatal(err)
	}
	err := s.CreateEvent(ctx, ev)
	if !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("second insert err = %v, want ErrDuplicateID", err)
	}
}

func TestUsageLogs(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	now := time.Now()
	for i, op := range []string{"test_cases", "bug_report", "connection_check"} {
		err := s.LogUsage(ctx, model.UsageLog{
			ID:         op,
			Timestamp:  now.Add(time.Duration(i) * time.Minute),
			Provider:   "gemini",
			Model:      "gemini-2.0-flash-lite",
			Operation:  op,
			TokensUsed: int64(100 * i),
			Successful: i != 1,
		})
		if err != nil {
			t.Fatalf("LogUsage: %v", err)
		}
	}

	logs, err := s.QueryUsage(ctx, now.Add(30*time.Second), 10)
	if err != nil {
		t.Fatalf("QueryUsage: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("len(logs) = %d, want 2", len(logs))
	}
	if logs[0].Operation != "connection_check" || logs[1].Successful {
		t.Fatalf("unexpected rows: %+v", logs)
	}
}
