package cmd

import (
	"fmt"
	"sort"

	"github.com/theirongolddev/qaid/internal/cli"
	"github.com/theirongolddev/qaid/internal/config"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	RunE:  runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(_ *cobra.Command, _ []string) error {
	fmt.Printf("  Config file: %s\n", config.ConfigPath())
	if config.Exists() {
		fmt.Println("  Status: loaded")
	} else {
		fmt.Println("  Status: using defaults (no config file)")
	}
	fmt.Println()

	section("General",
		kv("Default days", fmt.Sprint(cfg.General.DefaultDays)),
		kv("Data dir", config.DataDir(cfg)),
		kv("Log level", valueOr(cfg.General.LogLevel, "info")),
	)

	section("Provider",
		kv("Active", cfg.Provider.Active),
		kv("Temperature", fmt.Sprintf("%.2f", cfg.Provider.Temperature)),
		kv("Max tokens", fmt.Sprint(cfg.Provider.MaxTokens)),
		kv("Timeout", cfg.Provider.Timeout.String()),
	)

	names := make([]string, 0, len(cfg.Providers))
	for name := range cfg.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Println(cli.RenderSection("[Providers]"))
	for _, name := range names {
		t := cfg.Providers[name]
		fmt.Printf("    %-10s %s  %s  key: %s\n", name, t.Model, cli.Muted(t.BaseURL), keyStatus(name))
	}
	fmt.Println()

	section("Retry",
		kv("Max attempts", fmt.Sprint(cfg.Retry.MaxAttempts)),
		kv("Initial delay", cfg.Retry.InitialDelay.String()),
		kv("Max delay", cfg.Retry.MaxDelay.String()),
		kv("Multiplier", fmt.Sprintf("%.1f", cfg.Retry.Multiplier)),
	)

	section("Telemetry",
		kv("Enabled", yesNo(cfg.Telemetry.Enabled)),
		kv("Endpoint", valueOr(cfg.Telemetry.Endpoint, "default (localhost:4317)")),
		kv("Insecure", yesNo(cfg.Telemetry.Insecure)),
	)

	section("Server",
		kv("Address", cfg.Server.Addr),
		kv("Report schedule", valueOr(cfg.Server.ReportSchedule, "off")),
		kv("Report dir", valueOr(cfg.Server.ReportDir, "-")),
		kv("Report days", fmt.Sprint(cfg.Server.ReportDays)),
	)

	section("Dashboard",
		kv("Theme", cfg.Dashboard.Theme),
		kv("Auto refresh", yesNo(cfg.Dashboard.AutoRefresh)),
		kv("Refresh every", fmt.Sprintf("%ds", cfg.Dashboard.RefreshIntervalSec)),
	)

	overrides := len(cfg.Pricing.Providers) + len(cfg.Pricing.Overrides)
	section("Pricing",
		kv("Overrides", fmt.Sprint(overrides)),
	)

	fmt.Println("  Run `qaid setup` to reconfigure.")
	return nil
}

func kv(k, v string) [2]string { return [2]string{k, v} }

func section(name string, pairs ...[2]string) {
	fmt.Println(cli.RenderSection("[" + name + "]"))
	fmt.Print(cli.RenderKV(pairs))
	fmt.Println()
}
