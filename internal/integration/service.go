// Package integration orchestrates generation requests end to end: it owns
// the connection to the active provider, runs each request through the
// generator and records the outcome with the metrics tracker.
package integration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/theirongolddev/qaid/internal/config"
	"github.com/theirongolddev/qaid/internal/generation"
	"github.com/theirongolddev/qaid/internal/model"
	"github.com/theirongolddev/qaid/internal/tracker"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// State is the facade's lifecycle state.
type State string

const (
	StateIdle         State = "idle"
	StateInitializing State = "initializing"
	StateReady        State = "ready"
	StateGenerating   State = "generating"
	StateError        State = "error"
)

// Tracker records generation outcomes. *tracker.Tracker implements it.
type Tracker interface {
	TrackTestCaseGeneration(ctx context.Context, in tracker.TestCaseGenerationInput) (tracker.Tracking, error)
	TrackBugReportGeneration(ctx context.Context, in tracker.BugReportGenerationInput) (tracker.Tracking, error)
	LogUsage(ctx context.Context, u model.UsageLog)
}

// Service is safe for concurrent use.
type Service struct {
	factory     generation.Factory
	tracker     Tracker
	logger      zerolog.Logger
	temperature float32
	maxTokens   int
	initTimeout time.Duration

	init singleflight.Group

	mu         sync.RWMutex
	state      State
	provider   string
	gen        generation.Generator
	initErr    error
	generating int
}

// Option configures a Service.
type Option func(*Service)

// WithProvider sets the provider used by the first Initialize.
func WithProvider(name string) Option {
	return func(s *Service) { s.provider = name }
}

// WithRequestDefaults sets temperature and token limit for every request.
func WithRequestDefaults(temperature float32, maxTokens int) Option {
	return func(s *Service) {
		s.temperature = temperature
		s.maxTokens = maxTokens
	}
}

// WithInitTimeout bounds the shared connection check run by Initialize.
func WithInitTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.initTimeout = d
		}
	}
}

// WithLogger sets the logger. The default is the global zerolog logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// New creates an idle Service. Nothing is contacted until Initialize or
// the first generation.
func New(factory generation.Factory, t Tracker, opts ...Option) *Service {
	s := &Service{
		factory:     factory,
		tracker:     t,
		logger:      log.Logger,
		temperature: 0.7,
		maxTokens:   8192,
		initTimeout: DefaultInitTimeout,
		state:       StateIdle,
		provider:    config.DefaultProvider,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With().Str("component", "integration").Logger()
	return s
}

// DefaultInitTimeout bounds the connection check when no timeout is set.
const DefaultInitTimeout = 30 * time.Second

// Initialize connects to the configured provider. Concurrent callers share
// one attempt; it is a no-op once the service is ready. The attempt is
// detached from ctx and bounded by the init timeout, so a caller that gives
// up only stops waiting: the check runs to completion for everyone else.
func (s *Service) Initialize(ctx context.Context) error {
	s.mu.RLock()
	ready := s.state == StateReady || s.state == StateGenerating
	s.mu.RUnlock()
	if ready {
		return nil
	}

	ch := s.init.DoChan("initialize", func() (any, error) {
		attempt, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.initTimeout)
		defer cancel()
		return nil, s.initialize(attempt)
	})
	select {
	case r := <-ch:
		return r.Err
	case <-ctx.Done():
		return generation.NewError(generation.ErrGenerationFailed, s.currentProvider(), "initialize", "request canceled", ctx.Err())
	}
}

func (s *Service) initialize(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateReady || s.state == StateGenerating {
		s.mu.Unlock()
		return nil
	}
	s.state = StateInitializing
	provider := s.provider
	s.mu.Unlock()

	gen, err := s.connect(ctx, provider)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		// A canceled check says nothing about the provider; the next
		// request tries again.
		if errors.Is(err, context.Canceled) {
			s.state = StateIdle
			s.initErr = nil
			s.logger.Debug().Err(err).Str("provider", provider).Msg("initialization canceled")
			return err
		}
		s.state = StateError
		s.initErr = err
		s.logger.Warn().Err(err).Str("provider", provider).Msg("initialization failed")
		return err
	}
	s.gen = gen
	s.provider = gen.Provider()
	s.initErr = nil
	s.state = StateReady
	s.logger.Info().Str("provider", gen.Provider()).Str("model", gen.Model()).Msg("generation service ready")
	return nil
}

// connect builds a generator for provider and checks that it answers.
func (s *Service) connect(ctx context.Context, provider string) (generation.Generator, error) {
	gen, err := s.factory(provider)
	if err != nil {
		return nil, asError(err, provider, "configure")
	}

	start := time.Now()
	err = gen.CheckConnection(ctx)
	s.logUsage(ctx, gen, generation.TypeConnectionCheck, generation.Response{ResponseTime: time.Since(start)}, err)
	if err != nil {
		return nil, asError(err, gen.Provider(), "check_connection")
	}
	return gen, nil
}

// SwitchProvider connects to another provider and makes it active only if
// the connection check passes. On failure the previous provider stays.
func (s *Service) SwitchProvider(ctx context.Context, provider string) error {
	gen, err := s.connect(ctx, provider)
	if err != nil {
		s.logger.Warn().Err(err).Str("provider", provider).Msg("provider switch rejected")
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	previous := s.provider
	s.gen = gen
	s.provider = gen.Provider()
	s.initErr = nil
	if s.generating == 0 {
		s.state = StateReady
	} else {
		s.state = StateGenerating
	}
	s.logger.Info().Str("from", previous).Str("provider", gen.Provider()).Str("model", gen.Model()).Msg("switched provider")
	return nil
}

// ServiceStatus is a point-in-time snapshot of the facade.
type ServiceStatus struct {
	Initialized bool   `json:"initialized"`
	Available   bool   `json:"available"`
	Generating  bool   `json:"generating"`
	State       State  `json:"state"`
	Provider    string `json:"provider"`
	Model       string `json:"model,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Status returns the current state without any I/O.
func (s *Service) Status() ServiceStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := ServiceStatus{
		Initialized: s.state == StateReady || s.state == StateGenerating,
		Available:   s.state == StateReady || s.state == StateGenerating,
		Generating:  s.state == StateGenerating,
		State:       s.state,
		Provider:    s.provider,
	}
	if s.gen != nil {
		st.Model = s.gen.Model()
	}
	if s.initErr != nil {
		st.Error = generation.UserMessage(s.initErr)
	}
	return st
}

// ensureReady initializes an idle service once. A service in the error
// state keeps returning its initialization error until Initialize or
// SwitchProvider succeeds.
func (s *Service) ensureReady(ctx context.Context) error {
	s.mu.RLock()
	state, initErr := s.state, s.initErr
	s.mu.RUnlock()

	switch state {
	case StateReady, StateGenerating:
		return nil
	case StateError:
		return initErr
	default:
		return s.Initialize(ctx)
	}
}

func (s *Service) begin() generation.Generator {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generating++
	s.state = StateGenerating
	return s.gen
}

func (s *Service) end() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generating--
	if s.generating == 0 && s.state == StateGenerating {
		s.state = StateReady
	}
}

func (s *Service) currentProvider() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.provider
}

type callResult struct {
	resp generation.Response
	err  error
}

// call runs one generation. If ctx ends first the late reply is discarded.
func (s *Service) call(ctx context.Context, gen generation.Generator, req generation.Request) (generation.Response, error) {
	ch := make(chan callResult, 1)
	start := time.Now()
	go func() {
		resp, err := gen.Generate(ctx, req)
		ch <- callResult{resp: resp, err: err}
	}()

	select {
	case r := <-ch:
		if r.resp.ResponseTime == 0 {
			r.resp.ResponseTime = time.Since(start)
		}
		return r.resp, r.err
	case <-ctx.Done():
		return generation.Response{ResponseTime: time.Since(start)},
			generation.NewError(generation.ErrGenerationFailed, gen.Provider(), "generate", "request canceled", ctx.Err())
	}
}

// TestCaseRequest asks for test cases derived from a document.
type TestCaseRequest struct {
	Content  string         `json:"content"`
	Title    string         `json:"title,omitempty"`
	Template TemplateConfig `json:"template,omitempty"`
}

// TestCaseOutcome is a successful test case generation. Tracking is nil
// when the event could not be stored.
type TestCaseOutcome struct {
	TestCases    []model.TestCase  `json:"testCases"`
	Provider     string            `json:"provider"`
	Model        string            `json:"model"`
	TokensUsed   int64             `json:"tokensUsed"`
	ResponseTime time.Duration     `json:"responseTime"`
	Tracking     *tracker.Tracking `json:"tracking"`
}

// GenerateTestCases generates and tracks test cases for req.
func (s *Service) GenerateTestCases(ctx context.Context, req TestCaseRequest) (*TestCaseOutcome, error) {
	const op = "generate_test_cases"
	if strings.TrimSpace(req.Content) == "" {
		return nil, generation.NewError(generation.ErrValidation, "", op, "document content is required", nil)
	}

	fail := func(gen generation.Generator, resp generation.Response, err error) (*TestCaseOutcome, error) {
		gerr := asError(err, s.currentProvider(), op)
		in := tracker.TestCaseGenerationInput{
			DocumentTitle: req.Title,
			PromptLength:  len(req.Content),
			Provider:      s.currentProvider(),
			ResponseTime:  resp.ResponseTime,
			ErrorMessage:  gerr.Error(),
		}
		if gen != nil {
			in.Provider, in.Model = gen.Provider(), gen.Model()
		}
		trackCtx := context.WithoutCancel(ctx)
		if _, terr := s.tracker.TrackTestCaseGeneration(trackCtx, in); terr != nil {
			s.logger.Warn().Err(terr).Msg("tracking failed generation")
		}
		if gen != nil {
			s.logUsage(trackCtx, gen, generation.TypeTestCases, resp, gerr)
		}
		return nil, gerr
	}

	if err := s.ensureReady(ctx); err != nil {
		return fail(nil, generation.Response{}, err)
	}

	gen := s.begin()
	defer s.end()

	prompt := BuildTestCasePrompt(req.Content, req.Title, req.Template)
	resp, err := s.call(ctx, gen, generation.Request{
		Prompt:      prompt,
		System:      testCaseSystemPrompt,
		Temperature: s.temperature,
		MaxTokens:   s.maxTokens,
		Type:        generation.TypeTestCases,
	})
	if err != nil {
		return fail(gen, resp, err)
	}

	cases, err := ParseTestCases(resp.Text)
	if err != nil {
		return fail(gen, resp, generation.NewError(generation.ErrGenerationFailed, gen.Provider(), op, "could not parse model reply", err))
	}
	if len(cases) == 0 {
		return fail(gen, resp, generation.NewError(generation.ErrGenerationFailed, gen.Provider(), op, "model returned no test cases", nil))
	}
	for i := range cases {
		if cases[i].ID == "" {
			cases[i].ID = fmt.Sprintf("TC-%03d", i+1)
		}
	}

	out := &TestCaseOutcome{
		TestCases:    cases,
		Provider:     gen.Provider(),
		Model:        gen.Model(),
		TokensUsed:   resp.TokensUsed,
		ResponseTime: resp.ResponseTime,
	}

	tracking, terr := s.tracker.TrackTestCaseGeneration(ctx, tracker.TestCaseGenerationInput{
		TestCases:     cases,
		DocumentTitle: req.Title,
		PromptLength:  len(req.Content),
		Provider:      gen.Provider(),
		Model:         gen.Model(),
		TokensUsed:    resp.TokensUsed,
		ResponseTime:  resp.ResponseTime,
		Successful:    true,
	})
	if terr != nil {
		s.logger.Warn().Err(terr).Msg("generation succeeded but tracking failed")
	} else {
		out.Tracking = &tracking
	}
	s.logUsage(ctx, gen, generation.TypeTestCases, resp, nil)

	return out, nil
}

// BugReportRequest asks for a bug report from a description and/or console output.
type BugReportRequest struct {
	Prompt       string            `json:"prompt"`
	ConsoleError string            `json:"consoleError,omitempty"`
	Context      map[string]string `json:"context,omitempty"`
}

// BugReportOutcome is a successful bug report generation. Tracking is nil
// when the event could not be stored.
type BugReportOutcome struct {
	Report       *model.BugReport  `json:"report"`
	Provider     string            `json:"provider"`
	Model        string            `json:"model"`
	TokensUsed   int64             `json:"tokensUsed"`
	ResponseTime time.Duration     `json:"responseTime"`
	Tracking     *tracker.Tracking `json:"tracking"`
}

// GenerateBugReport generates and tracks a bug report for req.
func (s *Service) GenerateBugReport(ctx context.Context, req BugReportRequest) (*BugReportOutcome, error) {
	const op = "generate_bug_report"
	if strings.TrimSpace(req.Prompt) == "" && strings.TrimSpace(req.ConsoleError) == "" {
		return nil, generation.NewError(generation.ErrValidation, "", op, "a description or console error is required", nil)
	}

	fail := func(gen generation.Generator, resp generation.Response, err error) (*BugReportOutcome, error) {
		gerr := asError(err, s.currentProvider(), op)
		in := tracker.BugReportGenerationInput{
			Provider:     s.currentProvider(),
			ResponseTime: resp.ResponseTime,
			ErrorMessage: gerr.Error(),
		}
		if gen != nil {
			in.Provider, in.Model = gen.Provider(), gen.Model()
		}
		trackCtx := context.WithoutCancel(ctx)
		if _, terr := s.tracker.TrackBugReportGeneration(trackCtx, in); terr != nil {
			s.logger.Warn().Err(terr).Msg("tracking failed generation")
		}
		if gen != nil {
			s.logUsage(trackCtx, gen, generation.TypeBugReport, resp, gerr)
		}
		return nil, gerr
	}

	if err := s.ensureReady(ctx); err != nil {
		return fail(nil, generation.Response{}, err)
	}

	gen := s.begin()
	defer s.end()

	resp, err := s.call(ctx, gen, generation.Request{
		Prompt:      BuildBugReportPrompt(req.Prompt, req.ConsoleError, req.Context),
		System:      bugReportSystemPrompt,
		Temperature: s.temperature,
		MaxTokens:   s.maxTokens,
		Type:        generation.TypeBugReport,
	})
	if err != nil {
		return fail(gen, resp, err)
	}

	report, err := ParseBugReport(resp.Text)
	if err != nil {
		return fail(gen, resp, generation.NewError(generation.ErrGenerationFailed, gen.Provider(), op, "could not parse model reply", err))
	}

	out := &BugReportOutcome{
		Report:       report,
		Provider:     gen.Provider(),
		Model:        gen.Model(),
		TokensUsed:   resp.TokensUsed,
		ResponseTime: resp.ResponseTime,
	}

	tracking, terr := s.tracker.TrackBugReportGeneration(ctx, tracker.BugReportGenerationInput{
		Report:       report,
		Provider:     gen.Provider(),
		Model:        gen.Model(),
		TokensUsed:   resp.TokensUsed,
		ResponseTime: resp.ResponseTime,
		Successful:   true,
	})
	if terr != nil {
		s.logger.Warn().Err(terr).Msg("generation succeeded but tracking failed")
	} else {
		out.Tracking = &tracking
	}
	s.logUsage(ctx, gen, generation.TypeBugReport, resp, nil)

	return out, nil
}

func (s *Service) logUsage(ctx context.Context, gen generation.Generator, op string, resp generation.Response, err error) {
	u := model.UsageLog{
		Provider:       gen.Provider(),
		Model:          gen.Model(),
		Operation:      op,
		TokensUsed:     resp.TokensUsed,
		ResponseTimeMs: resp.ResponseTime.Milliseconds(),
		Successful:     err == nil,
	}
	if err != nil {
		u.TokensUsed = 0
		u.ErrorMessage = err.Error()
	}
	s.tracker.LogUsage(ctx, u)
}

// asError makes sure callers always receive a classified *generation.Error.
func asError(err error, provider, op string) *generation.Error {
	var gerr *generation.Error
	if errors.As(err, &gerr) {
		return gerr
	}
	return generation.NewError(generation.ErrGenerationFailed, provider, op, "", err)
}
