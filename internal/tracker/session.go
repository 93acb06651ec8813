package tracker

import (
	"time"

	"github.com/theirongolddev/qaid/internal/model"
)

// session holds SessionMetrics plus the local day the *Today counters
// belong to. Callers hold Tracker.mu.
type session struct {
	metrics model.SessionMetrics
	day     string
}

func (s *session) rollover(now time.Time) {
	day := now.Local().Format("2006-01-02")
	if s.day == day {
		return
	}
	if s.day != "" {
		s.metrics.AICallsToday = 0
		s.metrics.TotalCostToday = 0
	}
	s.day = day
}

func (s *session) fold(ev model.GenerationEvent, now time.Time) {
	s.rollover(now)

	s.metrics.AICallsToday++
	if !ev.Successful {
		s.metrics.FailedCalls++
		return
	}

	s.metrics.SuccessfulCalls++
	s.metrics.TotalTokensUsed += ev.TokensUsed
	s.metrics.TotalCostToday += ev.Cost
	s.metrics.TimeSavedMinutes += ev.EstimatedTimeSavedMinutes

	switch ev.Kind {
	case model.KindTestCaseGeneration:
		if ev.TestCase != nil {
			s.metrics.TestCasesGenerated += ev.TestCase.TestCaseCount
		}
	case model.KindBugReportGeneration:
		s.metrics.BugReportsGenerated++
	}
}

func (s *session) reset(now time.Time) {
	s.metrics = model.SessionMetrics{}
	s.day = now.Local().Format("2006-01-02")
}
