package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/theirongolddev/qaid/internal/report"

	"github.com/spf13/cobra"
)

var (
	flagReportFormat string
	flagReportOut    string
	flagReportExport bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Build the analytics report (JSON or CSV)",
	Long: "Build the analytics report over the time window. Writes to stdout unless " +
		"--export (dated file in the current directory) or --out is given.",
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVarP(&flagReportFormat, "format", "f", "json", "Output format (json, csv)")
	reportCmd.Flags().StringVarP(&flagReportOut, "out", "o", "", "Write to this file")
	reportCmd.Flags().BoolVar(&flagReportExport, "export", false, "Write to ai-integration-report-<date>.<format>")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, _ []string) error {
	format, err := report.ParseFormat(flagReportFormat)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	m, err := a.tracker.DashboardMetrics(ctx, flagDays)
	if err != nil {
		return err
	}
	now := timeNow()
	r := report.Build(m, a.facade.Status(), now)

	path := flagReportOut
	if path == "" && flagReportExport {
		path = report.Filename(now, format)
	}
	if path == "" {
		return report.Export(cmd.OutOrStdout(), r, format)
	}
	return writeReportFile(path, r, format)
}

func writeReportFile(path string, r report.Report, format report.Format) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("creating report dir: %w", err)
		}
	}
	f, err := os.Create(path) //nolint:gosec // path is chosen by the local user
	if err != nil {
		return fmt.Errorf("creating report file: %w", err)
	}
	if err := report.Export(f, r, format); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing report file: %w", err)
	}
	fmt.Fprintf(os.Stderr, "  Report written to %s\n", path)
	return nil
}
