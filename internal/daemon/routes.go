package daemon

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/theirongolddev/qaid/internal/generation"
	"github.com/theirongolddev/qaid/internal/integration"
	"github.com/theirongolddev/qaid/internal/report"

	"github.com/gin-gonic/gin"
)

// Handler returns the HTTP router. Run serves it; tests drive it directly.
func (s *Service) Handler() http.Handler {
	router := gin.New()
	router.Use(gin.Recovery())
	s.registerRoutes(router)
	return router
}

func (s *Service) registerRoutes(router *gin.Engine) {
	router.GET("/healthz", s.handleHealth)

	v1 := router.Group("/v1")
	v1.GET("/status", s.handleStatus)
	v1.GET("/session", s.handleSession)
	v1.POST("/session/reset", s.handleSessionReset)
	v1.GET("/history", s.handleHistory)
	v1.GET("/dashboard", s.handleDashboard)
	v1.GET("/report", s.handleReport)
	v1.GET("/events", s.handleEvents)
	v1.GET("/stream", s.handleStream)

	v1.POST("/generate/test-cases", s.handleGenerateTestCases)
	v1.POST("/generate/bug-report", s.handleGenerateBugReport)
	v1.POST("/provider", s.handleSwitchProvider)
}

func (s *Service) handleHealth(c *gin.Context) {
	c.String(http.StatusOK, "ok\n")
}

func (s *Service) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.snapshotStatus())
}

func (s *Service) handleSession(c *gin.Context) {
	c.JSON(http.StatusOK, s.metrics.Session())
}

func (s *Service) handleSessionReset(c *gin.Context) {
	s.metrics.ResetSessionMetrics()
	c.JSON(http.StatusOK, s.metrics.Session())
}

func (s *Service) handleHistory(c *gin.Context) {
	c.JSON(http.StatusOK, s.metrics.History())
}

func (s *Service) handleDashboard(c *gin.Context) {
	days, ok := s.daysParam(c, s.cfg.Days)
	if !ok {
		return
	}
	m, err := s.metrics.DashboardMetrics(c.Request.Context(), days)
	if err != nil {
		s.logger.Warn().Err(err).Int("days", days).Msg("dashboard metrics unavailable")
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "metrics are temporarily unavailable", "metrics": m})
		return
	}
	c.JSON(http.StatusOK, m)
}

func (s *Service) handleReport(c *gin.Context) {
	days, ok := s.daysParam(c, s.cfg.ReportDays)
	if !ok {
		return
	}
	format, err := report.ParseFormat(c.Query("format"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	m, err := s.metrics.DashboardMetrics(c.Request.Context(), days)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	now := s.now()
	r := report.Build(m, s.facade.Status(), now)

	var buf bytes.Buffer
	if err := report.Export(&buf, r, format); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if c.Query("download") != "" {
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.Filename(now, format)))
	}
	c.Data(http.StatusOK, format.ContentType(), buf.Bytes())
}

func (s *Service) handleEvents(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	s.mu.RLock()
	if limit > len(s.events) {
		limit = len(s.events)
	}
	out := make([]Event, limit)
	copy(out, s.events[len(s.events)-limit:])
	s.mu.RUnlock()

	c.JSON(http.StatusOK, out)
}

func (s *Service) handleStream(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	ch := make(chan Event, 16)
	id := s.addSubscriber(ch)
	defer s.removeSubscriber(id)

	// Send current snapshot immediately.
	current := Event{
		Type:      "snapshot",
		Timestamp: s.now(),
		Snapshot:  s.snapshotStatus().Summary,
	}
	writeSSE(c.Writer, current)
	c.Writer.Flush()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-ch:
			writeSSE(c.Writer, ev)
			c.Writer.Flush()
		}
	}
}

func writeSSE(w gin.ResponseWriter, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "event: %s\n", ev.Type)
	_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
}

func (s *Service) handleGenerateTestCases(c *gin.Context) {
	var req integration.TestCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	out, err := s.facade.GenerateTestCases(c.Request.Context(), req)
	if err != nil {
		s.writeGenerationError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Service) handleGenerateBugReport(c *gin.Context) {
	var req integration.BugReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	out, err := s.facade.GenerateBugReport(c.Request.Context(), req)
	if err != nil {
		s.writeGenerationError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

type switchProviderRequest struct {
	Provider string `json:"provider" binding:"required"`
}

func (s *Service) handleSwitchProvider(c *gin.Context) {
	var req switchProviderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if err := s.facade.SwitchProvider(c.Request.Context(), req.Provider); err != nil {
		s.writeGenerationError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.facade.Status())
}

func (s *Service) writeGenerationError(c *gin.Context, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Warn().Err(err).Str("path", c.FullPath()).Msg("generation request failed")
	}
	c.JSON(status, gin.H{"error": generation.UserMessage(err)})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, generation.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, generation.ErrQuotaExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, generation.ErrProviderMisconfigured):
		return http.StatusServiceUnavailable
	case errors.Is(err, generation.ErrConnection), errors.Is(err, generation.ErrGenerationFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Service) daysParam(c *gin.Context, fallback int) (int, bool) {
	raw := c.Query("days")
	if raw == "" {
		return fallback, true
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "days must be a positive integer"})
		return 0, false
	}
	return days, true
}
