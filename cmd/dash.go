package cmd

import (
	"fmt"
	"time"

	"github.com/theirongolddev/qaid/internal/tui"
	"github.com/theirongolddev/qaid/internal/tui/theme"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	flagDashTheme    string
	flagDashNoReload bool
	flagDashOnly     string
)

var dashCmd = &cobra.Command{
	Use:     "dash",
	Aliases: []string{"tui"},
	Short:   "Launch the interactive metrics dashboard",
	RunE:    runDash,
}

func init() {
	dashCmd.Flags().StringVar(&flagDashTheme, "theme", "", "Color theme (default from config)")
	dashCmd.Flags().BoolVar(&flagDashNoReload, "no-refresh", false, "Disable auto-refresh")
	dashCmd.Flags().StringVar(&flagDashOnly, "only", "", "Filter history to provider (substring match)")
	rootCmd.AddCommand(dashCmd)
}

func runDash(cmd *cobra.Command, _ []string) error {
	theme.SetActive(valueOr(flagDashTheme, cfg.Dashboard.Theme))

	// Without a forced profile lipgloss may fall back to no colors, which
	// leaves the background fills unstyled.
	lipgloss.SetColorProfile(termenv.TrueColor)

	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	app := tui.NewApp(a.tracker, tui.Options{
		Days:            flagDays,
		Provider:        flagDashOnly,
		AutoRefresh:     cfg.Dashboard.AutoRefresh && !flagDashNoReload,
		RefreshInterval: time.Duration(cfg.Dashboard.RefreshIntervalSec) * time.Second,
		Status:          a.facade.Status,
		Now:             timeNow,
	})
	// Log lines would tear the alt screen.
	prev := zerolog.GlobalLevel()
	zerolog.SetGlobalLevel(zerolog.Disabled)
	defer zerolog.SetGlobalLevel(prev)

	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}
