package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/theirongolddev/qaid/internal/cli"
	"github.com/theirongolddev/qaid/internal/config"
	"github.com/theirongolddev/qaid/internal/integration"

	"github.com/spf13/cobra"
)

var flagStatusCheck bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show AI provider status and today's activity",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&flagStatusCheck, "check", true, "Probe the provider with a connection check")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if flagStatusCheck {
		checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		// The error is reflected in Status below.
		_ = a.facade.Initialize(checkCtx)
		cancel()
	}
	st := a.facade.Status()

	fmt.Println()
	fmt.Println(cli.RenderTitle("AI SERVICE STATUS"))
	fmt.Println()

	pairs := [][2]string{
		{"State", string(st.State)},
		{"Provider", valueOr(st.Provider, cfg.Provider.Active)},
		{"Model", valueOr(st.Model, cfg.Providers[cfg.Provider.Active].Model)},
		{"Available", yesNo(st.Available)},
		{"API key", keyStatus(cfg.Provider.Active)},
	}
	if st.Error != "" {
		pairs = append(pairs, [2]string{"Error", st.Error})
	}
	fmt.Print(cli.RenderKV(pairs))

	todayStart := startOfDay(timeNow())
	usage, err := a.tracker.RecentUsage(ctx, 1, 0)
	if err != nil {
		return err
	}
	var calls, ok int
	var tokens int64
	for _, u := range usage {
		if u.Timestamp.Before(todayStart) {
			continue
		}
		calls++
		if u.Successful {
			ok++
			tokens += u.TokensUsed
		}
	}

	fmt.Println()
	fmt.Println(cli.RenderSection("Today"))
	fmt.Print(cli.RenderKV([][2]string{
		{"Calls", cli.FormatNumber(int64(calls))},
		{"Successful", cli.FormatNumber(int64(ok))},
		{"Tokens", cli.FormatTokens(tokens)},
	}))

	if st.State == integration.StateError {
		fmt.Println()
		fmt.Println("  Run `qaid setup` to configure a provider.")
	}
	return nil
}

func keyStatus(provider string) string {
	if provider == "local" {
		return "not required"
	}
	key := config.GetAPIKey(cfg, provider)
	if key == "" {
		return "not configured"
	}
	return maskAPIKey(key)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func valueOr(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
