// Package tracker records generation events and answers windowed queries
// over them.
//
// Every Track call writes exactly one event to the store, folds it into the
// process-local SessionMetrics and appends it to a bounded history. A failed
// store write is reported as ErrStorageWrite; the session and history still
// reflect the attempt.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/theirongolddev/qaid/internal/config"
	"github.com/theirongolddev/qaid/internal/model"
	"github.com/theirongolddev/qaid/internal/pipeline"
	"github.com/theirongolddev/qaid/internal/store"
	"github.com/theirongolddev/qaid/internal/telemetry"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// ErrStorageWrite is returned when an event could not be persisted.
	ErrStorageWrite = errors.New("tracker: storage write failed")
	// ErrStorageRead is returned when a windowed query failed.
	ErrStorageRead = errors.New("tracker: storage read failed")
)

// DefaultWindowDays is used when a dashboard query asks for a non-positive window.
const DefaultWindowDays = 30

// Tracker is safe for concurrent use.
type Tracker struct {
	store    store.EventStore
	now      func() time.Time
	newID    func() string
	recorder telemetry.Recorder
	rates    *config.RateTable
	logger   zerolog.Logger

	mu      sync.Mutex
	session session
	history *ring[model.GenerationEvent]
}

// Option configures a Tracker.
type Option func(*trackerOptions)

type trackerOptions struct {
	now         func() time.Time
	newID       func() string
	recorder    telemetry.Recorder
	rates       *config.RateTable
	logger      *zerolog.Logger
	historySize int
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *trackerOptions) { o.now = now }
}

// WithIDGenerator overrides the uuid-based event id source.
func WithIDGenerator(newID func() string) Option {
	return func(o *trackerOptions) { o.newID = newID }
}

// WithRecorder sends every tracked event to a telemetry recorder.
func WithRecorder(r telemetry.Recorder) Option {
	return func(o *trackerOptions) { o.recorder = r }
}

// WithRates prices events with r instead of the built-in rates.
func WithRates(r *config.RateTable) Option {
	return func(o *trackerOptions) { o.rates = r }
}

// WithLogger sets the logger. The default is the global zerolog logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *trackerOptions) { o.logger = &l }
}

// WithHistorySize sets how many recent events History keeps.
func WithHistorySize(n int) Option {
	return func(o *trackerOptions) { o.historySize = n }
}

// New creates a Tracker backed by s.
func New(s store.EventStore, opts ...Option) *Tracker {
	o := trackerOptions{
		now:         time.Now,
		newID:       uuid.NewString,
		recorder:    telemetry.Noop{},
		historySize: DefaultHistorySize,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.rates == nil {
		o.rates = config.DefaultRates()
	}

	logger := log.Logger
	if o.logger != nil {
		logger = *o.logger
	}

	t := &Tracker{
		store:    s,
		now:      o.now,
		newID:    o.newID,
		recorder: o.recorder,
		rates:    o.rates,
		logger:   logger.With().Str("component", "tracker").Logger(),
		history:  newRing[model.GenerationEvent](o.historySize),
	}
	t.session.reset(t.now())
	return t
}

// TestCaseGenerationInput describes one test case generation attempt.
type TestCaseGenerationInput struct {
	TestCases     []model.TestCase
	DocumentTitle string
	PromptLength  int
	Provider      string
	Model         string
	TokensUsed    int64
	ResponseTime  time.Duration
	Successful    bool
	ErrorMessage  string
}

// BugReportGenerationInput describes one bug report generation attempt.
// Report may be nil for a failed attempt.
type BugReportGenerationInput struct {
	Report       *model.BugReport
	Provider     string
	Model        string
	TokensUsed   int64
	ResponseTime time.Duration
	Successful   bool
	ErrorMessage string
}

// Tracking is the result of recording one event.
type Tracking struct {
	TrackingID string                `json:"trackingId"`
	Metrics    model.GenerationEvent `json:"metrics"`
}

// TrackTestCaseGeneration records a test case generation attempt.
func (t *Tracker) TrackTestCaseGeneration(ctx context.Context, in TestCaseGenerationInput) (Tracking, error) {
	ev := t.newEvent(model.KindTestCaseGeneration, in.Provider, in.Model, in.TokensUsed, in.ResponseTime, in.Successful, in.ErrorMessage)

	payload := &model.TestCasePayload{
		DocumentTitle: in.DocumentTitle,
		PromptLength:  max(in.PromptLength, 0),
	}
	if in.Successful {
		payload.TestCaseCount = len(in.TestCases)
		payload.Breakdown = BreakdownByType(in.TestCases)
		payload.AutomationCandidateCount = CountAutomationCandidates(in.TestCases)
		payload.AverageStepsPerTest = AverageSteps(in.TestCases)
		ev.EstimatedTimeSavedMinutes = config.EstimateMinutesSaved(ev.Kind, payload.TestCaseCount)
	}
	ev.TestCase = payload

	return t.record(ctx, ev)
}

// TrackBugReportGeneration records a bug report generation attempt.
func (t *Tracker) TrackBugReportGeneration(ctx context.Context, in BugReportGenerationInput) (Tracking, error) {
	ev := t.newEvent(model.KindBugReportGeneration, in.Provider, in.Model, in.TokensUsed, in.ResponseTime, in.Successful, in.ErrorMessage)

	payload := &model.BugReportPayload{}
	if in.Report != nil {
		payload.Severity = strings.TrimSpace(in.Report.Severity)
		payload.Category = strings.TrimSpace(in.Report.Category)
		payload.HasStepsToReproduce = len(in.Report.StepsToReproduce) > 0
		payload.HasWorkaround = strings.TrimSpace(in.Report.Workaround) != ""
		payload.TestCaseSuggestionCount = len(in.Report.SuggestedTestCases)
	}
	if in.Successful {
		ev.EstimatedTimeSavedMinutes = config.EstimateMinutesSaved(ev.Kind, 1)
	}
	ev.BugReport = payload

	return t.record(ctx, ev)
}

// newEvent fills the fields common to both kinds. Failed attempts are never
// billed: tokens and cost stay zero.
func (t *Tracker) newEvent(kind model.Kind, provider, modelName string, tokens int64, latency time.Duration, ok bool, errMsg string) model.GenerationEvent {
	ev := model.GenerationEvent{
		ID:             t.newID(),
		Kind:           kind,
		Timestamp:      t.now(),
		Successful:     ok,
		Provider:       provider,
		Model:          modelName,
		ResponseTimeMs: max(latency.Milliseconds(), 0),
	}
	if ok {
		ev.TokensUsed = max(tokens, 0)
		ev.Cost = t.rates.Cost(provider, modelName, ev.Timestamp, ev.TokensUsed)
	} else {
		ev.ErrorMessage = errMsg
	}
	return ev
}

func (t *Tracker) record(ctx context.Context, ev model.GenerationEvent) (Tracking, error) {
	t.mu.Lock()
	t.session.fold(ev, ev.Timestamp)
	t.history.push(ev)
	t.mu.Unlock()

	t.recorder.RecordGeneration(ctx, ev)

	if err := t.store.CreateEvent(ctx, ev); err != nil {
		t.logger.Warn().Err(err).
			Str("tracking_id", ev.ID).
			Str("kind", string(ev.Kind)).
			Msg("persisting generation event")
		return Tracking{}, fmt.Errorf("%w: %w", ErrStorageWrite, err)
	}

	t.logger.Debug().
		Str("tracking_id", ev.ID).
		Str("kind", string(ev.Kind)).
		Str("provider", ev.Provider).
		Bool("successful", ev.Successful).
		Int64("tokens", ev.TokensUsed).
		Msg("tracked generation")

	return Tracking{TrackingID: ev.ID, Metrics: ev}, nil
}

// DashboardMetrics aggregates the events of the last windowDays days.
// On a read failure it returns the zero-valued shape and an error wrapping
// ErrStorageRead.
func (t *Tracker) DashboardMetrics(ctx context.Context, windowDays int) (model.DashboardMetrics, error) {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	now := t.now()
	since := now.AddDate(0, 0, -windowDays)

	events, err := t.store.QueryEvents(ctx, store.Query{Since: since, Until: now})
	if err != nil {
		t.logger.Warn().Err(err).Int("window_days", windowDays).Msg("querying dashboard window")
		return model.NewDashboardMetrics(windowDays), fmt.Errorf("%w: %w", ErrStorageRead, err)
	}
	return pipeline.Aggregate(events, windowDays), nil
}

// Events returns the raw events of the last windowDays days.
func (t *Tracker) Events(ctx context.Context, windowDays int) ([]model.GenerationEvent, error) {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	now := t.now()
	events, err := t.store.QueryEvents(ctx, store.Query{Since: now.AddDate(0, 0, -windowDays), Until: now})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageRead, err)
	}
	return events, nil
}

// Session returns a snapshot of the process-local counters.
func (t *Tracker) Session() model.SessionMetrics {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.session.rollover(t.now())
	return t.session.metrics
}

// History returns the most recent events, oldest first.
func (t *Tracker) History() []model.GenerationEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.history.items()
}

// ResetSessionMetrics zeroes the session counters and clears the history.
func (t *Tracker) ResetSessionMetrics() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.session.reset(t.now())
	t.history.reset()
}

// LogUsage writes one raw usage row. Failures are logged and dropped.
func (t *Tracker) LogUsage(ctx context.Context, u model.UsageLog) {
	if u.ID == "" {
		u.ID = t.newID()
	}
	if u.Timestamp.IsZero() {
		u.Timestamp = t.now()
	}
	if err := t.store.LogUsage(ctx, u); err != nil {
		t.logger.Debug().Err(err).Str("operation", u.Operation).Msg("dropping usage log")
	}
}

// RecentUsage returns usage rows from the last windowDays days, newest first.
func (t *Tracker) RecentUsage(ctx context.Context, windowDays, limit int) ([]model.UsageLog, error) {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	logs, err := t.store.QueryUsage(ctx, t.now().AddDate(0, 0, -windowDays), limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageRead, err)
	}
	return logs, nil
}

// BreakdownByType counts test cases per normalized type. Matching ignores
// case, spaces, hyphens and underscores; unknown types count as other.
func BreakdownByType(cases []model.TestCase) model.TestCaseBreakdown {
	var b model.TestCaseBreakdown
	for _, tc := range cases {
		switch normalizeType(tc.Type) {
		case "functional":
			b.Functional++
		case "integration":
			b.Integration++
		case "negative":
			b.Negative++
		case "edgecase":
			b.EdgeCase++
		case "performance":
			b.Performance++
		case "security":
			b.Security++
		default:
			b.Other++
		}
	}
	return b
}

func normalizeType(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '_', '\t':
			return -1
		}
		return r
	}, strings.ToLower(s))
}

// CountAutomationCandidates counts test cases with high automation potential.
func CountAutomationCandidates(cases []model.TestCase) int {
	n := 0
	for _, tc := range cases {
		if strings.EqualFold(strings.TrimSpace(tc.AutomationPotential), "high") {
			n++
		}
	}
	return n
}

// AverageSteps returns the mean number of steps per test case.
func AverageSteps(cases []model.TestCase) float64 {
	if len(cases) == 0 {
		return 0
	}
	total := 0
	for _, tc := range cases {
		total += len(tc.Steps)
	}
	return float64(total) / float64(len(cases))
}
