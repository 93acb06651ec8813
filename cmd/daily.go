package cmd

import (
	"fmt"

	"github.com/theirongolddev/qaid/internal/cli"
	"github.com/theirongolddev/qaid/internal/pipeline"

	"github.com/spf13/cobra"
)

var dailyCmd = &cobra.Command{
	Use:   "daily",
	Short: "Daily generation table",
	RunE:  runDaily,
}

func init() {
	rootCmd.AddCommand(dailyCmd)
}

func runDaily(cmd *cobra.Command, _ []string) error {
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
		fmt.Println("\n  No data for the selected period.")
		return nil
	}

	until := timeNow()
	since := until.AddDate(0, 0, -(flagDays - 1))
	days := pipeline.FillDays(m.DailyTrends, since, until)

	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("DAILY GENERATIONS  Last %dd", flagDays)))
	fmt.Println()

	spark := make([]float64, 0, len(days))
	rows := make([][]string, 0, len(days))
	for _, d := range days {
		rows = append(rows, []string{
			d.Date.Format(pipeline.DayLayout),
			d.Date.Format("Mon"),
			cli.FormatNumber(int64(d.Bucket.Generations)),
			cli.FormatNumber(int64(d.Bucket.Count)),
			cli.FormatMinutes(d.Bucket.TimeSaved),
			cli.FormatCost(d.Bucket.Cost),
		})
	}
	for i := len(days) - 1; i >= 0; i-- {
		spark = append(spark, float64(days[i].Bucket.Count))
	}

	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"Date", "Day", "Runs", "Units", "Saved", "Cost"},
		Rows:    rows,
	}))
	fmt.Printf("\n  %s  %s\n", cli.Muted("volume"), cli.RenderSparkline(spark))

	return nil
}
