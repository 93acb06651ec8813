package cmd

import (
	"fmt"

	"github.com/theirongolddev/qaid/internal/cli"
	"github.com/theirongolddev/qaid/internal/pipeline"

	"github.com/spf13/cobra"
)

var providersCmd = &cobra.Command{
	Use:     "providers",
	Aliases: []string{"models"},
	Short:   "Provider usage breakdown",
	RunE:    runProviders,
}

func init() {
	rootCmd.AddCommand(providersCmd)
}

func runProviders(cmd *cobra.Command, _ []string) error {
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
	providers := pipeline.SortProviders(m.ProviderUsage)
	if len(providers) == 0 {
		fmt.Println("\n  No provider data in the selected time range.")
		return nil
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("PROVIDER USAGE  Last %dd", flagDays)))
	fmt.Println()

	rows := make([][]string, 0, len(providers))
	for _, p := range providers {
		rows = append(rows, []string{
			p.Provider,
			cli.FormatNumber(int64(p.Usage.Count)),
			cli.FormatTokens(p.Usage.Tokens),
			cli.FormatCost(p.Usage.Cost),
			fmt.Sprintf("%.1f%%", p.SharePercent),
			cli.RenderShareBar(p.SharePercent, 16),
		})
	}

	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"Provider", "Runs", "Tokens", "Cost", "Share", ""},
		Rows:    rows,
	}))

	return nil
}
