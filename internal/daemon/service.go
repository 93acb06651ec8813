// Package daemon runs the long-lived qaid HTTP API. It serves the tracker
// and integration facade over JSON, polls the dashboard window to publish
// usage deltas and can export reports on a cron schedule.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/theirongolddev/qaid/internal/integration"
	"github.com/theirongolddev/qaid/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Metrics is the tracker surface the daemon serves.
type Metrics interface {
	DashboardMetrics(ctx context.Context, windowDays int) (model.DashboardMetrics, error)
	Session() model.SessionMetrics
	History() []model.GenerationEvent
	ResetSessionMetrics()
}

// Facade is the integration surface the daemon serves.
type Facade interface {
	Status() integration.ServiceStatus
	GenerateTestCases(ctx context.Context, req integration.TestCaseRequest) (*integration.TestCaseOutcome, error)
	GenerateBugReport(ctx context.Context, req integration.BugReportRequest) (*integration.BugReportOutcome, error)
	SwitchProvider(ctx context.Context, provider string) error
}

// Config controls the daemon runtime behavior.
type Config struct {
	Addr           string
	Days           int
	Interval       time.Duration
	EventsBuffer   int
	ReportSchedule string // standard 5-field cron expression, empty disables exports
	ReportDir      string
	ReportDays     int
}

// Snapshot is a compact usage state for status/event payloads.
type Snapshot struct {
	At                 time.Time `json:"at"`
	Generations        int       `json:"generations"`
	TestCases          int       `json:"test_cases"`
	BugReports         int       `json:"bug_reports"`
	Tokens             int64     `json:"tokens"`
	EstimatedCostUSD   float64   `json:"estimated_cost_usd"`
	TimeSavedMinutes   float64   `json:"time_saved_minutes"`
	OverallSuccessRate float64   `json:"overall_success_rate"`
}

// Delta captures snapshot deltas between polls.
type Delta struct {
	Generations      int     `json:"generations"`
	TestCases        int     `json:"test_cases"`
	BugReports       int     `json:"bug_reports"`
	Tokens           int64   `json:"tokens"`
	EstimatedCostUSD float64 `json:"estimated_cost_usd"`
	TimeSavedMinutes float64 `json:"time_saved_minutes"`
}

func (d Delta) isZero() bool {
	return d.Generations == 0 &&
		d.TestCases == 0 &&
		d.BugReports == 0 &&
		d.Tokens == 0 &&
		d.EstimatedCostUSD == 0 &&
		d.TimeSavedMinutes == 0
}

// Event is emitted whenever the usage snapshot changes.
type Event struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Snapshot  Snapshot  `json:"snapshot"`
	Delta     Delta     `json:"delta"`
}

// Status is served at /v1/status.
type Status struct {
	StartedAt       time.Time                 `json:"started_at"`
	LastPollAt      time.Time                 `json:"last_poll_at"`
	PollIntervalSec int                       `json:"poll_interval_sec"`
	PollCount       int64                     `json:"poll_count"`
	Days            int                       `json:"days"`
	Summary         Snapshot                  `json:"summary"`
	Service         integration.ServiceStatus `json:"service"`
	LastError       string                    `json:"last_error,omitempty"`
	EventCount      int                       `json:"event_count"`
	SubscriberCount int                       `json:"subscriber_count"`
	ReportSchedule  string                    `json:"report_schedule,omitempty"`
	LastExport      string                    `json:"last_export,omitempty"`
}

// Service provides the daemon runtime and HTTP API.
type Service struct {
	cfg     Config
	metrics Metrics
	facade  Facade
	logger  zerolog.Logger
	now     func() time.Time

	mu          sync.RWMutex
	startedAt   time.Time
	lastPollAt  time.Time
	pollCount   int64
	lastError   string
	hasSnapshot bool
	snapshot    Snapshot
	nextEventID int64
	events      []Event
	lastExport  string

	nextSubID int
	subs      map[int]chan Event
}

// New returns a new daemon service with the provided config.
func New(cfg Config, metrics Metrics, facade Facade) *Service {
	if cfg.Interval < 2*time.Second {
		cfg.Interval = 10 * time.Second
	}
	if cfg.EventsBuffer < 1 {
		cfg.EventsBuffer = 200
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8787"
	}
	if cfg.Days < 1 {
		cfg.Days = 30
	}
	if cfg.ReportDays < 1 {
		cfg.ReportDays = cfg.Days
	}

	return &Service{
		cfg:       cfg,
		metrics:   metrics,
		facade:    facade,
		logger:    log.Logger.With().Str("component", "daemon").Logger(),
		now:       time.Now,
		startedAt: time.Now(),
		subs:      make(map[int]chan Event),
	}
}

// Run starts HTTP endpoints, polling and scheduled exports until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	gin.SetMode(gin.ReleaseMode)

	server := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	scheduler, err := s.startScheduler(ctx)
	if err != nil {
		return err
	}
	if scheduler != nil {
		defer scheduler.Stop()
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	s.logger.Info().Str("addr", s.cfg.Addr).Msg("daemon listening")

	// Seed initial snapshot so status is useful immediately.
	s.pollOnce(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		case <-ticker.C:
			s.pollOnce(ctx)
		case err := <-errCh:
			return fmt.Errorf("daemon http server: %w", err)
		}
	}
}

func (s *Service) pollOnce(ctx context.Context) {
	m, err := s.metrics.DashboardMetrics(ctx, s.cfg.Days)
	now := s.now()
	if err != nil {
		s.mu.Lock()
		s.lastError = err.Error()
		s.lastPollAt = now
		s.pollCount++
		s.mu.Unlock()
		s.logger.Warn().Err(err).Msg("poll failed")
		return
	}

	snap := snapshotFromMetrics(m, now)

	var (
		ev      Event
		publish bool
	)

	s.mu.Lock()
	prev := s.snapshot
	prevExists := s.hasSnapshot

	s.hasSnapshot = true
	s.snapshot = snap
	s.lastPollAt = now
	s.pollCount++
	s.lastError = ""

	if !prevExists {
		s.nextEventID++
		ev = Event{
			ID:        s.nextEventID,
			Type:      "snapshot",
			Timestamp: now,
			Snapshot:  snap,
		}
		publish = true
	} else if delta := diffSnapshots(prev, snap); !delta.isZero() {
		s.nextEventID++
		ev = Event{
			ID:        s.nextEventID,
			Type:      "usage_delta",
			Timestamp: now,
			Snapshot:  snap,
			Delta:     delta,
		}
		publish = true
	}
	s.mu.Unlock()

	if publish {
		s.publishEvent(ev)
	}
}

func snapshotFromMetrics(m model.DashboardMetrics, at time.Time) Snapshot {
	return Snapshot{
		At:                 at,
		Generations:        m.TotalGenerations,
		TestCases:          m.TotalTestCasesGenerated,
		BugReports:         m.TotalBugReportsGenerated,
		Tokens:             m.TotalTokens,
		EstimatedCostUSD:   m.TotalCost,
		TimeSavedMinutes:   m.TotalTimeSavedMinutes,
		OverallSuccessRate: m.OverallSuccessRate,
	}
}

func diffSnapshots(prev, curr Snapshot) Delta {
	return Delta{
		Generations:      curr.Generations - prev.Generations,
		TestCases:        curr.TestCases - prev.TestCases,
		BugReports:       curr.BugReports - prev.BugReports,
		Tokens:           curr.Tokens - prev.Tokens,
		EstimatedCostUSD: curr.EstimatedCostUSD - prev.EstimatedCostUSD,
		TimeSavedMinutes: curr.TimeSavedMinutes - prev.TimeSavedMinutes,
	}
}

func (s *Service) publishEvent(ev Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	if len(s.events) > s.cfg.EventsBuffer {
		s.events = s.events[len(s.events)-s.cfg.EventsBuffer:]
	}

	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	s.mu.Unlock()
}

func (s *Service) snapshotStatus() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Status{
		StartedAt:       s.startedAt,
		LastPollAt:      s.lastPollAt,
		PollIntervalSec: int(s.cfg.Interval.Seconds()),
		PollCount:       s.pollCount,
		Days:            s.cfg.Days,
		Summary:         s.snapshot,
		Service:         s.facade.Status(),
		LastError:       s.lastError,
		EventCount:      len(s.events),
		SubscriberCount: len(s.subs),
		ReportSchedule:  s.cfg.ReportSchedule,
		LastExport:      s.lastExport,
	}
}

func (s *Service) addSubscriber(ch chan Event) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSubID++
	id := s.nextSubID
	s.subs[id] = ch
	return id
}

func (s *Service) removeSubscriber(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, id)
}
