package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/theirongolddev/qaid/internal/cli"
	"github.com/theirongolddev/qaid/internal/generation"
	"github.com/theirongolddev/qaid/internal/integration"
	"github.com/theirongolddev/qaid/internal/model"
	"github.com/theirongolddev/qaid/internal/tracker"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	flagGenFile      string
	flagGenTitle     string
	flagGenCount     int
	flagGenFormat    string
	flagGenPriority  string
	flagGenFocus     string
	flagGenNegative  bool
	flagGenEdgeCases bool
	flagGenJSON      bool

	flagBugConsole string
	flagBugContext []string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate QA artifacts with the active AI provider",
}

var generateTestCasesCmd = &cobra.Command{
	Use:   "test-cases [file]",
	Short: "Generate test cases from a requirements document",
	Long:  "Generate test cases from a requirements document. Reads the file argument, --file, or stdin.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runGenerateTestCases,
}

var generateBugReportCmd = &cobra.Command{
	Use:   "bug-report [description]",
	Short: "Generate a bug report from a description and/or console output",
	Args:  cobra.ArbitraryArgs,
	RunE:  runGenerateBugReport,
}

func init() {
	f := generateTestCasesCmd.Flags()
	f.StringVar(&flagGenFile, "file", "", "Requirements document path ('-' for stdin)")
	f.StringVar(&flagGenTitle, "title", "", "Document title (default: file name)")
	f.IntVar(&flagGenCount, "count", 0, "Number of test cases to request (0 lets the model decide)")
	f.StringVar(&flagGenFormat, "format", "steps", "Step format (steps, gherkin)")
	f.StringVar(&flagGenPriority, "priority", "", "Favor this priority (high, medium, low)")
	f.StringVar(&flagGenFocus, "focus", "", "Area to focus on, e.g. \"payments\"")
	f.BoolVar(&flagGenNegative, "negative", true, "Include negative test cases")
	f.BoolVar(&flagGenEdgeCases, "edge-cases", true, "Include edge cases")

	b := generateBugReportCmd.Flags()
	b.StringVar(&flagBugConsole, "console", "", "Console error output, or @path to read it from a file")
	b.StringArrayVar(&flagBugContext, "context", nil, "Extra context as key=value (repeatable)")

	generateCmd.PersistentFlags().BoolVar(&flagGenJSON, "json", false, "Print the raw result as JSON")
	generateCmd.AddCommand(generateTestCasesCmd)
	generateCmd.AddCommand(generateBugReportCmd)
	rootCmd.AddCommand(generateCmd)
}

func runGenerateTestCases(cmd *cobra.Command, args []string) error {
	path := flagGenFile
	if len(args) == 1 {
		path = args[0]
	}
	content, err := readInput(cmd.InOrStdin(), path)
	if err != nil {
		return err
	}
	title := flagGenTitle
	if title == "" && path != "" && path != "-" {
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	out, err := a.facade.GenerateTestCases(ctx, integration.TestCaseRequest{
		Content: content,
		Title:   title,
		Template: integration.TemplateConfig{
			Count:            flagGenCount,
			Format:           flagGenFormat,
			Priority:         flagGenPriority,
			Focus:            flagGenFocus,
			IncludeNegative:  flagGenNegative,
			IncludeEdgeCases: flagGenEdgeCases,
		},
	})
	if err != nil {
		return userError(err)
	}

	if flagGenJSON {
		return printJSON(cmd.OutOrStdout(), out)
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("TEST CASES  %d generated", len(out.TestCases))))
	fmt.Println()
	for _, tc := range out.TestCases {
		printTestCase(tc)
	}
	printTracking(out.Provider, out.Model, out.TokensUsed, out.Tracking)
	return nil
}

func runGenerateBugReport(cmd *cobra.Command, args []string) error {
	console := flagBugConsole
	if strings.HasPrefix(console, "@") {
		data, err := os.ReadFile(console[1:]) //nolint:gosec // path is chosen by the local user
		if err != nil {
			return fmt.Errorf("reading console output: %w", err)
		}
		console = string(data)
	}
	extra, err := parseContext(flagBugContext)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	out, err := a.facade.GenerateBugReport(ctx, integration.BugReportRequest{
		Prompt:       strings.Join(args, " "),
		ConsoleError: console,
		Context:      extra,
	})
	if err != nil {
		return userError(err)
	}

	if flagGenJSON {
		return printJSON(cmd.OutOrStdout(), out)
	}

	r := out.Report
	fmt.Println()
	fmt.Println(cli.RenderTitle("BUG REPORT"))
	fmt.Println()
	pairs := [][2]string{
		{"Title", r.Title},
		{"Severity", r.Severity},
		{"Category", r.Category},
	}
	if r.ExpectedBehavior != "" {
		pairs = append(pairs, [2]string{"Expected", r.ExpectedBehavior})
	}
	if r.ActualBehavior != "" {
		pairs = append(pairs, [2]string{"Actual", r.ActualBehavior})
	}
	fmt.Print(cli.RenderKV(pairs))
	fmt.Printf("\n  %s\n", r.Description)
	printList("Steps to reproduce", r.StepsToReproduce, true)
	printList("Suggested test cases", r.SuggestedTestCases, false)
	printTracking(out.Provider, out.Model, out.TokensUsed, out.Tracking)
	return nil
}

func readInput(stdin io.Reader, path string) (string, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // path is chosen by the local user
	if err != nil {
		return "", fmt.Errorf("reading document: %w", err)
	}
	return string(data), nil
}

func parseContext(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid --context %q (want key=value)", p)
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return out, nil
}

// userError replaces classified generation errors with their user-facing
// message. The full error is logged at debug level.
func userError(err error) error {
	var gerr *generation.Error
	if errors.As(err, &gerr) {
		log.Debug().Err(err).Msg("generation failed")
		return errors.New(gerr.UserMessage())
	}
	return err
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printTestCase(tc model.TestCase) {
	meta := []string{tc.Type}
	if tc.Priority != "" {
		meta = append(meta, tc.Priority)
	}
	if tc.AutomationPotential != "" {
		meta = append(meta, "automation: "+tc.AutomationPotential)
	}
	fmt.Printf("  %s  %s  %s\n", tc.ID, tc.Title, cli.Muted("("+strings.Join(meta, ", ")+")"))
	if tc.Preconditions != "" {
		fmt.Printf("      %s %s\n", cli.Muted("given"), tc.Preconditions)
	}
	for i, step := range tc.Steps {
		fmt.Printf("      %d. %s\n", i+1, step)
	}
	if tc.ExpectedResult != "" {
		fmt.Printf("      %s %s\n", cli.Muted("expect"), tc.ExpectedResult)
	}
	fmt.Println()
}

func printList(title string, items []string, numbered bool) {
	if len(items) == 0 {
		return
	}
	fmt.Println()
	fmt.Println(cli.RenderSection(title))
	for i, item := range items {
		if numbered {
			fmt.Printf("    %d. %s\n", i+1, item)
		} else {
			fmt.Printf("    - %s\n", item)
		}
	}
}

func printTracking(provider, modelName string, tokens int64, t *tracker.Tracking) {
	fmt.Println()
	line := fmt.Sprintf("%s/%s  %s tokens", provider, modelName, cli.FormatTokens(tokens))
	if t != nil {
		line += fmt.Sprintf("  %s  saved %s", cli.FormatCost(t.Metrics.Cost), cli.FormatMinutes(t.Metrics.EstimatedTimeSavedMinutes))
	}
	fmt.Println("  " + cli.Muted(line))
	if t == nil {
		fmt.Println(cli.RenderWarning("result was not recorded in the metrics store"))
	}
}
