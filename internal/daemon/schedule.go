package daemon

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/theirongolddev/qaid/internal/report"

	"github.com/robfig/cron/v3"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

const exportTimeout = 30 * time.Second

// startScheduler registers the report export job. It returns nil when no
// schedule is configured.
func (s *Service) startScheduler(ctx context.Context) (*cron.Cron, error) {
	if s.cfg.ReportSchedule == "" {
		return nil, nil
	}
	if s.cfg.ReportDir == "" {
		return nil, fmt.Errorf("report schedule %q needs a report directory", s.cfg.ReportSchedule)
	}

	c := cron.New(cron.WithParser(cronParser))
	_, err := c.AddFunc(s.cfg.ReportSchedule, func() {
		jobCtx, cancel := context.WithTimeout(ctx, exportTimeout)
		defer cancel()
		if path, err := s.exportReport(jobCtx); err != nil {
			s.logger.Error().Err(err).Msg("scheduled report export failed")
		} else {
			s.logger.Info().Str("path", path).Msg("report exported")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid report schedule %q: %w", s.cfg.ReportSchedule, err)
	}
	c.Start()
	s.logger.Info().Str("schedule", s.cfg.ReportSchedule).Str("dir", s.cfg.ReportDir).Msg("report export scheduled")
	return c, nil
}

// exportReport writes a JSON report for the configured window into ReportDir.
func (s *Service) exportReport(ctx context.Context) (string, error) {
	m, err := s.metrics.DashboardMetrics(ctx, s.cfg.ReportDays)
	if err != nil {
		return "", fmt.Errorf("collecting metrics: %w", err)
	}
	now := s.now()
	r := report.Build(m, s.facade.Status(), now)

	if err := os.MkdirAll(s.cfg.ReportDir, 0o750); err != nil {
		return "", fmt.Errorf("creating report dir: %w", err)
	}
	path := filepath.Join(s.cfg.ReportDir, report.Filename(now, report.FormatJSON))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating report file: %w", err)
	}
	if err := report.Export(f, r, report.FormatJSON); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing report file: %w", err)
	}

	s.mu.Lock()
	s.lastExport = path
	s.mu.Unlock()
	return path, nil
}
