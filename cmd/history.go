package cmd

import (
	"fmt"
	"sort"

	"github.com/theirongolddev/qaid/internal/cli"
	"github.com/theirongolddev/qaid/internal/model"
	"github.com/theirongolddev/qaid/internal/pipeline"

	"github.com/spf13/cobra"
)

var (
	historyLimit    int
	historyProvider string
	historyUsage    bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Recent generation events, or raw provider calls with --usage",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "Number of rows to show")
	historyCmd.Flags().StringVar(&historyProvider, "only", "", "Filter to provider (substring match)")
	historyCmd.Flags().BoolVar(&historyUsage, "usage", false, "Show raw usage log rows, connection checks included")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if historyUsage {
		logs, err := a.tracker.RecentUsage(ctx, flagDays, historyLimit)
		if err != nil {
			return err
		}
		return printUsage(logs)
	}

	events, err := a.tracker.Events(ctx, flagDays)
	if err != nil {
		return err
	}
	if historyProvider != "" {
		events = pipeline.FilterByProvider(events, historyProvider)
	}
	if len(events) == 0 {
		fmt.Println("\n  No generations in the selected time range.")
		return nil
	}

	sort.Slice(events, func(i, j int) bool {
		return events[i].Timestamp.After(events[j].Timestamp)
	})
	if historyLimit > 0 && len(events) > historyLimit {
		events = events[:historyLimit]
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("RECENT GENERATIONS  Last %dd", flagDays)))
	fmt.Println()

	rows := make([][]string, 0, len(events))
	for _, ev := range events {
		rows = append(rows, []string{
			ev.Timestamp.Local().Format("01-02 15:04"),
			string(ev.Kind),
			ev.Provider,
			outcome(ev),
			cli.FormatTokens(ev.TokensUsed),
			cli.FormatCost(ev.Cost),
			cli.FormatMinutes(ev.EstimatedTimeSavedMinutes),
		})
	}

	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"When", "Kind", "Provider", "Result", "Tokens", "Cost", "Saved"},
		Rows:    rows,
	}))
	return nil
}

func outcome(ev model.GenerationEvent) string {
	if !ev.Successful {
		return "failed"
	}
	switch {
	case ev.TestCase != nil:
		return fmt.Sprintf("%d cases", ev.TestCase.TestCaseCount)
	case ev.BugReport != nil:
		return ev.BugReport.Severity
	default:
		return "ok"
	}
}

func printUsage(logs []model.UsageLog) error {
	if len(logs) == 0 {
		fmt.Println("\n  No provider calls in the selected time range.")
		return nil
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("PROVIDER CALLS  Last %dd", flagDays)))
	fmt.Println()

	rows := make([][]string, 0, len(logs))
	for _, u := range logs {
		status := "ok"
		if !u.Successful {
			status = "error"
		}
		rows = append(rows, []string{
			u.Timestamp.Local().Format("01-02 15:04:05"),
			u.Operation,
			u.Provider + "/" + u.Model,
			status,
			cli.FormatTokens(u.TokensUsed),
			cli.FormatLatency(u.ResponseTimeMs),
		})
	}

	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"When", "Operation", "Provider", "Status", "Tokens", "Latency"},
		Rows:    rows,
	}))
	return nil
}
