package tui

import (
	"fmt"
	"strings"

	"github.com/theirongolddev/qaid/internal/cli"
	"github.com/theirongolddev/qaid/internal/model"
	"github.com/theirongolddev/qaid/internal/pipeline"
	"github.com/theirongolddev/qaid/internal/tui/components"
	"github.com/theirongolddev/qaid/internal/tui/theme"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type historyState struct {
	cursor    int
	offset    int
	filter    string // provider substring from the command line
	query     string
	searching bool
	input     textinput.Model
}

func (h *historyState) clamp(n int) {
	h.cursor = max(0, min(h.cursor, n-1))
	h.offset = min(h.offset, h.cursor)
}

func (h *historyState) move(delta, n int) {
	h.cursor += delta
	h.clamp(n)
}

func newSearchInput(value string) textinput.Model {
	t := theme.Active
	ti := textinput.New()
	ti.Placeholder = "provider, model, document or severity"
	ti.Prompt = "/ "
	ti.CharLimit = 64
	ti.SetValue(value)
	ti.PromptStyle = lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface)
	ti.TextStyle = lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)
	ti.PlaceholderStyle = lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)
	return ti
}

// visibleEvents applies the provider filter and the search query.
func (a App) visibleEvents() []model.GenerationEvent {
	events := a.events
	if a.history.filter != "" {
		events = pipeline.FilterByProvider(events, a.history.filter)
	}
	if a.history.query == "" {
		return events
	}
	return searchEvents(events, a.history.query)
}

func searchEvents(events []model.GenerationEvent, query string) []model.GenerationEvent {
	q := strings.ToLower(query)
	var out []model.GenerationEvent
	for _, ev := range events {
		fields := []string{ev.Provider, ev.Model, string(ev.Kind), ev.ErrorMessage}
		if ev.TestCase != nil {
			fields = append(fields, ev.TestCase.DocumentTitle)
		}
		if ev.BugReport != nil {
			fields = append(fields, ev.BugReport.Severity, ev.BugReport.Category)
		}
		for _, f := range fields {
			if strings.Contains(strings.ToLower(f), q) {
				out = append(out, ev)
				break
			}
		}
	}
	return out
}

// updateHistoryKey handles list navigation. ok is false for keys the tab
// does not own.
func (a App) updateHistoryKey(key string) (App, tea.Cmd, bool) {
	n := len(a.visibleEvents())
	switch key {
	case "/":
		a.history.searching = true
		a.history.input = newSearchInput(a.history.query)
		a.history.input.Focus()
		return a, textinput.Blink, true
	case "esc":
		a.history.query = ""
		a.history.cursor, a.history.offset = 0, 0
		return a, nil, true
	case "j", "down":
		a.history.move(1, n)
		return a, nil, true
	case "k", "up":
		a.history.move(-1, n)
		return a, nil, true
	case "g", "home":
		a.history.cursor, a.history.offset = 0, 0
		return a, nil, true
	case "G", "end":
		a.history.move(n, n)
		return a, nil, true
	}
	return a, nil, false
}

func (a App) updateHistorySearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		a.history.query = strings.TrimSpace(a.history.input.Value())
		a.history.searching = false
		a.history.cursor, a.history.offset = 0, 0
		return a, nil
	case "esc":
		a.history.searching = false
		return a, nil
	}
	var cmd tea.Cmd
	a.history.input, cmd = a.history.input.Update(msg)
	return a, cmd
}

func (a App) renderHistory(cw, h int) string {
	t := theme.Active
	events := a.visibleEvents()

	var b strings.Builder
	if a.history.searching {
		b.WriteString(components.FocusPanel("", a.history.input.View(), cw))
		b.WriteString("\n")
		h -= 3
	} else if a.history.query != "" {
		b.WriteString(lipgloss.NewStyle().Foreground(t.TextMuted).Render(
			fmt.Sprintf(" search %q  %d matches  [esc] clear", a.history.query, len(events))))
		b.WriteString("\n")
		h--
	}

	if len(events) == 0 {
		b.WriteString(components.Panel("History",
			lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface).Render("No generations in this window"), cw))
		return b.String()
	}

	listW, detailW := cw, 0
	if !a.isCompact() {
		listW = cw * 3 / 5
		detailW = cw - listW
	}

	list := a.renderHistoryList(events, listW, h)
	if detailW == 0 {
		b.WriteString(list)
		return b.String()
	}
	detail := components.Panel("Details", eventDetail(events[a.history.cursor], components.InnerWidth(detailW)), detailW)
	b.WriteString(components.Row([]string{list, detail}))
	return b.String()
}

func (a App) renderHistoryList(events []model.GenerationEvent, w, h int) string {
	t := theme.Active
	head := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface).Bold(true)
	row := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)
	sel := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.SurfaceHover).Bold(true)
	bad := lipgloss.NewStyle().Foreground(t.Bad).Background(t.Surface)

	inner := components.InnerWidth(w)
	visible := max(3, h-4)
	hs := a.history
	if hs.cursor < hs.offset {
		hs.offset = hs.cursor
	}
	if hs.cursor >= hs.offset+visible {
		hs.offset = hs.cursor - visible + 1
	}

	const cols = "%-11s %-6s %-24s %8s %9s"
	var b strings.Builder
	b.WriteString(head.Render(fmt.Sprintf("%-*s", inner, fmt.Sprintf(cols, "When", "Kind", "Result", "Tokens", "Cost"))))
	end := min(len(events), hs.offset+visible)
	for i := hs.offset; i < end; i++ {
		ev := events[i]
		kind := "tests"
		if ev.Kind == model.KindBugReportGeneration {
			kind = "bug"
		}
		line := fmt.Sprintf(cols,
			ev.Timestamp.Local().Format("01-02 15:04"),
			kind,
			truncStr(eventResult(ev), 24),
			cli.FormatTokens(ev.TokensUsed),
			cli.FormatCost(ev.Cost))
		line = fmt.Sprintf("%-*s", inner, truncStr(line, inner))

		b.WriteString("\n")
		switch {
		case i == hs.cursor:
			b.WriteString(sel.Render(line))
		case !ev.Successful:
			b.WriteString(bad.Render(line))
		default:
			b.WriteString(row.Render(line))
		}
	}
	title := fmt.Sprintf("Generations (%d of %d)", hs.cursor+1, len(events))
	return components.Panel(title, b.String(), w)
}

func eventResult(ev model.GenerationEvent) string {
	if !ev.Successful {
		return "failed"
	}
	switch {
	case ev.TestCase != nil:
		title := ev.TestCase.DocumentTitle
		if title == "" {
			title = "untitled"
		}
		return fmt.Sprintf("%d · %s", ev.TestCase.TestCaseCount, title)
	case ev.BugReport != nil:
		return ev.BugReport.Severity + " · " + ev.BugReport.Category
	}
	return "ok"
}

func eventDetail(ev model.GenerationEvent, w int) string {
	t := theme.Active
	label := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	value := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)

	pairs := [][2]string{
		{"When", ev.Timestamp.Local().Format("2006-01-02 15:04:05")},
		{"Provider", ev.Provider},
		{"Model", ev.Model},
		{"Tokens", cli.FormatNumber(ev.TokensUsed)},
		{"Cost", cli.FormatCost(ev.Cost)},
		{"Latency", cli.FormatLatency(ev.ResponseTimeMs)},
		{"Saved", cli.FormatMinutes(ev.EstimatedTimeSavedMinutes)},
	}
	if tc := ev.TestCase; tc != nil {
		pairs = append(pairs,
			[2]string{"Test cases", fmt.Sprint(tc.TestCaseCount)},
			[2]string{"Automatable", fmt.Sprint(tc.AutomationCandidateCount)},
			[2]string{"Avg steps", fmt.Sprintf("%.1f", tc.AverageStepsPerTest)},
		)
	}
	if br := ev.BugReport; br != nil {
		pairs = append(pairs,
			[2]string{"Severity", br.Severity},
			[2]string{"Category", br.Category},
			[2]string{"Repro steps", yesNo(br.HasStepsToReproduce)},
			[2]string{"Suggested", fmt.Sprint(br.TestCaseSuggestionCount)},
		)
	}
	if ev.ErrorMessage != "" {
		pairs = append(pairs, [2]string{"Error", ev.ErrorMessage})
	}

	var b strings.Builder
	for i, p := range pairs {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(label.Render(fmt.Sprintf("%-12s", p[0])))
		b.WriteString(value.Render(truncStr(p[1], max(4, w-12))))
	}
	return b.String()
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
