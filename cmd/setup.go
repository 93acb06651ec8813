package cmd

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/theirongolddev/qaid/internal/config"
	"github.com/theirongolddev/qaid/internal/tui/theme"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup: provider, API key and defaults",
	RunE:  runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

// setupValues holds the form fields before they are copied into the config.
type setupValues struct {
	provider  string
	apiKey    string
	model     string
	days      int
	theme     string
	telemetry bool
}

func runSetup(_ *cobra.Command, _ []string) error {
	// Start from the file on disk so flags given to this run are not saved.
	saved, err := config.Load()
	if err != nil {
		return err
	}

	vals := setupValues{
		provider:  saved.Provider.Active,
		days:      saved.General.DefaultDays,
		theme:     saved.Dashboard.Theme,
		telemetry: saved.Telemetry.Enabled,
	}

	providers := make([]string, 0, len(saved.Providers))
	for name := range saved.Providers {
		providers = append(providers, name)
	}
	sort.Strings(providers)

	pick := huh.NewGroup(
		huh.NewNote().
			Title("Welcome to qaid").
			Description("Pick the AI backend used to generate test cases and bug reports."),
		huh.NewSelect[string]().
			Title("Provider").
			Options(huh.NewOptions(providers...)...).
			Value(&vals.provider),
	)
	if err := huh.NewForm(pick).Run(); err != nil {
		return setupAborted(err)
	}

	target := saved.Providers[vals.provider]
	vals.model = target.Model

	var fields []huh.Field
	if vals.provider != "local" {
		desc := "Leave blank to keep the current key"
		if target.APIKeyEnv != "" {
			desc += fmt.Sprintf(" or to read it from $%s", target.APIKeyEnv)
		}
		if existing := config.GetAPIKey(saved, vals.provider); existing != "" {
			desc += fmt.Sprintf(". Current: %s", maskAPIKey(existing))
		}
		fields = append(fields, huh.NewInput().
			Title("API key").
			Description(desc).
			EchoMode(huh.EchoModePassword).
			Value(&vals.apiKey))
	}
	fields = append(fields,
		huh.NewInput().
			Title("Model").
			Placeholder(target.Model).
			Value(&vals.model),
		huh.NewSelect[int]().
			Title("Default time range").
			Options(
				huh.NewOption("7 days", 7),
				huh.NewOption("30 days", 30),
				huh.NewOption("90 days", 90),
			).
			Value(&vals.days),
		huh.NewSelect[string]().
			Title("Dashboard theme").
			Options(huh.NewOptions(theme.Names()...)...).
			Value(&vals.theme),
		huh.NewConfirm().
			Title("Export metrics over OTLP?").
			Value(&vals.telemetry),
	)
	if err := huh.NewForm(huh.NewGroup(fields...)).Run(); err != nil {
		return setupAborted(err)
	}

	applySetup(&saved, vals)
	if err := config.Save(saved); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Println()
	fmt.Printf("  Saved to %s\n", config.ConfigPath())
	fmt.Println("  Run `qaid status` to check the connection, or `qaid setup` to reconfigure.")
	fmt.Println()
	return nil
}

// applySetup copies non-empty form values into cfg.
func applySetup(cfg *config.Config, v setupValues) {
	cfg.Provider.Active = v.provider
	t := cfg.Providers[v.provider]
	if key := strings.TrimSpace(v.apiKey); key != "" {
		t.APIKey = key
	}
	if m := strings.TrimSpace(v.model); m != "" {
		t.Model = m
	}
	cfg.Providers[v.provider] = t
	if v.days > 0 {
		cfg.General.DefaultDays = v.days
	}
	if v.theme != "" {
		cfg.Dashboard.Theme = v.theme
	}
	cfg.Telemetry.Enabled = v.telemetry
}

func setupAborted(err error) error {
	if errors.Is(err, huh.ErrUserAborted) {
		fmt.Println("  Setup cancelled, nothing saved.")
		return nil
	}
	return fmt.Errorf("setup form: %w", err)
}

func maskAPIKey(key string) string {
	if len(key) > 16 {
		return key[:8] + "..." + key[len(key)-4:]
	}
	if len(key) > 4 {
		return key[:4] + "..."
	}
	return "****"
}
