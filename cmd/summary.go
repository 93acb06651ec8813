package cmd

import (
	"fmt"

	"github.com/theirongolddev/qaid/internal/cli"
	"github.com/theirongolddev/qaid/internal/report"

	"github.com/spf13/cobra"
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Generation metrics summary with scores",
	RunE:  runSummary,
}

func init() {
	rootCmd.AddCommand(summaryCmd)
}

func runSummary(cmd *cobra.Command, _ []string) error {
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

	if m.TotalGenerations == 0 {
		fmt.Println("\n  No generations recorded in the selected time range.")
		fmt.Println("  Try `qaid generate test-cases --file <doc>` first.")
		return nil
	}

	r := report.Build(m, a.facade.Status(), timeNow())
	s := r.Summary

	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("AI GENERATION  Last %dd", flagDays)))
	fmt.Println()

	rows := [][]string{
		{"Generations", cli.FormatNumber(int64(s.TotalGenerations))},
		{"Success Rate", cli.FormatPercent(s.OverallSuccessRate)},
		{"Avg Response", cli.FormatLatency(int64(m.AvgResponseTimeMs))},
		cli.SeparatorRow,
		{"Test Cases", cli.FormatNumber(int64(s.TotalTestCasesGenerated))},
		{"Automation Candidates", cli.FormatNumber(int64(m.AutomationCandidates))},
		{"Test Cases/Generation", fmt.Sprintf("%.1f", m.AvgTestCasesPerGeneration)},
		{"Bug Reports", cli.FormatNumber(int64(s.TotalBugReportsGenerated))},
		{"Critical Bugs", cli.FormatNumber(int64(m.CriticalBugsIdentified))},
		cli.SeparatorRow,
		{"Tokens", cli.FormatTokens(m.TotalTokens)},
		{"Cost (est)", cli.FormatCost(s.TotalCost)},
		{"Time Saved", cli.FormatMinutes(m.TotalTimeSavedMinutes)},
		{"Labor Value", cli.FormatCost(s.CostSavings.LaborCostSaved)},
		{"Net Savings", cli.FormatCost(s.CostSavings.NetSavings)},
	}
	if s.CostSavings.AICost > 0 {
		rows = append(rows, []string{"ROI", fmt.Sprintf("%.0f%%", s.CostSavings.ROIPercent)})
	}

	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"Metric", "Value"},
		Rows:    rows,
	}))

	fmt.Println()
	fmt.Println(cli.RenderSection("Scores"))
	fmt.Print(cli.RenderKV([][2]string{
		{"Efficiency", cli.RenderScore(s.EfficiencyScore, 20)},
		{"Quality", cli.RenderScore(s.QualityScore, 20)},
		{"Trend", trendLine(s.Trend)},
	}))

	printRecommendations(r.Recommendations)
	return nil
}

func trendLine(t report.TrendAnalysis) string {
	if t.Direction == report.TrendInsufficientData {
		return "not enough data"
	}
	line := fmt.Sprintf("%s  (%.1f/day vs %.1f/day", t.Direction, t.RecentDailyAvg, t.PriorDailyAvg)
	if t.PriorDailyAvg > 0 {
		line += ", " + cli.FormatChange(t.ChangePercent)
	}
	return line + ")"
}

func printRecommendations(recs []report.Recommendation) {
	if len(recs) == 0 {
		return
	}
	fmt.Println()
	fmt.Println(cli.RenderSection("Recommendations"))
	for _, rec := range recs {
		fmt.Printf("  %s %s\n", cli.RenderPriority(rec.Priority), rec.Message)
	}
}
