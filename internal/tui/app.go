// Package tui provides the interactive Bubble Tea dashboard for qaid.
package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/theirongolddev/qaid/internal/integration"
	"github.com/theirongolddev/qaid/internal/model"
	"github.com/theirongolddev/qaid/internal/report"
	"github.com/theirongolddev/qaid/internal/tui/components"
	"github.com/theirongolddev/qaid/internal/tui/theme"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Source is where the dashboard reads metrics from. *tracker.Tracker
// implements it.
type Source interface {
	DashboardMetrics(ctx context.Context, windowDays int) (model.DashboardMetrics, error)
	Events(ctx context.Context, windowDays int) ([]model.GenerationEvent, error)
	Session() model.SessionMetrics
}

// Options configures NewApp.
type Options struct {
	Days            int
	Provider        string // history filter, substring match
	AutoRefresh     bool
	RefreshInterval time.Duration
	Status          func() integration.ServiceStatus
	Now             func() time.Time
}

// DataLoadedMsg carries one complete read of the metrics source.
type DataLoadedMsg struct {
	Days     int
	Metrics  model.DashboardMetrics
	Events   []model.GenerationEvent
	Session  model.SessionMetrics
	Status   integration.ServiceStatus
	LoadedAt time.Time
	LoadTime time.Duration
	Err      error
}

type tickMsg struct{}

// windows are the time ranges [ and ] step through.
var windows = []int{1, 7, 30, 90}

const (
	tabOverview = iota
	tabTestCases
	tabBugReports
	tabProviders
	tabHistory
)

const (
	minTerminalWidth = 80
	compactWidth     = 120
	maxContentWidth  = 180
	minContentHeight = 5
	loadTimeout      = 10 * time.Second
	tickInterval     = time.Second
)

// App is the root Bubble Tea model.
type App struct {
	src    Source
	opts   Options
	status func() integration.ServiceStatus
	now    func() time.Time

	// Data
	metrics  model.DashboardMetrics
	report   report.Report
	events   []model.GenerationEvent
	session  model.SessionMetrics
	svc      integration.ServiceStatus
	loaded   bool
	loadedAt time.Time
	loadTime time.Duration
	loadErr  error

	refreshing  bool
	autoRefresh bool
	interval    time.Duration

	// UI state
	width     int
	height    int
	activeTab int
	showHelp  bool
	days      int
	history   historyState
	spinner   spinner.Model
}

// NewApp creates the dashboard model over src.
func NewApp(src Source, opts Options) App {
	if opts.Days < 1 {
		opts.Days = 30
	}
	if opts.RefreshInterval < 5*time.Second {
		opts.RefreshInterval = 30 * time.Second
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	status := opts.Status
	if status == nil {
		status = func() integration.ServiceStatus { return integration.ServiceStatus{} }
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.Active.Accent).Background(theme.Active.Surface)

	return App{
		src:         src,
		opts:        opts,
		status:      status,
		now:         now,
		days:        opts.Days,
		autoRefresh: opts.AutoRefresh,
		interval:    opts.RefreshInterval,
		spinner:     sp,
		history:     historyState{filter: opts.Provider},
		refreshing:  true,
	}
}

// Init implements tea.Model.
func (a App) Init() tea.Cmd {
	return tea.Batch(
		tea.EnableMouseCellMotion,
		a.loadCmd(),
		a.spinner.Tick,
		tickCmd(),
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

// loadCmd reads the source in the background. Both reads use the same
// window so every tab agrees.
func (a App) loadCmd() tea.Cmd {
	src, days, now, status := a.src, a.days, a.now, a.status
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()

		start := time.Now()
		msg := DataLoadedMsg{Days: days}
		// On a read error the metrics are still the zero-valued shape.
		msg.Metrics, msg.Err = src.DashboardMetrics(ctx, days)
		if events, err := src.Events(ctx, days); err == nil {
			msg.Events = events
		} else if msg.Err == nil {
			msg.Err = err
		}
		msg.Session = src.Session()
		msg.Status = status()
		msg.LoadedAt = now()
		msg.LoadTime = time.Since(start)
		return msg
	}
}

func (a *App) apply(msg DataLoadedMsg) {
	a.refreshing = false
	a.loaded = true
	if msg.Days != a.days {
		// A load for a window the user already left.
		return
	}
	a.metrics = msg.Metrics
	a.session = msg.Session
	a.svc = msg.Status
	a.loadedAt = msg.LoadedAt
	a.loadTime = msg.LoadTime
	a.loadErr = msg.Err
	a.report = report.Build(msg.Metrics, msg.Status, msg.LoadedAt)

	events := append([]model.GenerationEvent(nil), msg.Events...)
	sort.Slice(events, func(i, j int) bool {
		return events[i].Timestamp.After(events[j].Timestamp)
	})
	a.events = events
	a.history.clamp(len(a.visibleEvents()))
}

// Update implements tea.Model.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		return a, nil

	case DataLoadedMsg:
		a.apply(msg)
		return a, nil

	case spinner.TickMsg:
		if !a.loaded {
			var cmd tea.Cmd
			a.spinner, cmd = a.spinner.Update(msg)
			return a, cmd
		}
		return a, nil

	case tickMsg:
		cmds := []tea.Cmd{tickCmd()}
		if a.loaded && a.autoRefresh && !a.refreshing && a.now().Sub(a.loadedAt) >= a.interval {
			a.refreshing = true
			cmds = append(cmds, a.loadCmd())
		}
		return a, tea.Batch(cmds...)

	case tea.MouseMsg:
		return a.updateMouse(msg)

	case tea.KeyMsg:
		return a.updateKey(msg)
	}
	return a, nil
}

func (a App) updateMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if !a.loaded || a.showHelp {
		return a, nil
	}
	switch msg.Button {
	case tea.MouseButtonWheelUp:
		if a.activeTab == tabHistory {
			a.history.move(-1, len(a.visibleEvents()))
		}
	case tea.MouseButtonWheelDown:
		if a.activeTab == tabHistory {
			a.history.move(1, len(a.visibleEvents()))
		}
	case tea.MouseButtonLeft:
		if msg.Y == 0 {
			if tab := components.TabAt(msg.X, a.activeTab); tab >= 0 {
				a.activeTab = tab
			}
		}
	}
	return a, nil
}

func (a App) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		return a, tea.Quit
	}
	if !a.loaded {
		return a, nil
	}

	if a.activeTab == tabHistory && a.history.searching {
		return a.updateHistorySearch(msg)
	}

	if key == "?" {
		a.showHelp = !a.showHelp
		return a, nil
	}
	if a.showHelp {
		a.showHelp = false
		return a, nil
	}

	if a.activeTab == tabHistory {
		if next, cmd, ok := a.updateHistoryKey(key); ok {
			return next, cmd
		}
	}

	switch key {
	case "q":
		return a, tea.Quit
	case "r":
		if !a.refreshing {
			a.refreshing = true
			return a, a.loadCmd()
		}
		return a, nil
	case "R":
		a.autoRefresh = !a.autoRefresh
		return a, nil
	case "[", "]":
		a.days = stepWindow(a.days, key == "]")
		a.refreshing = true
		return a, a.loadCmd()
	case "left", "shift+tab":
		a.activeTab = (a.activeTab - 1 + len(components.Tabs)) % len(components.Tabs)
		return a, nil
	case "right", "tab":
		a.activeTab = (a.activeTab + 1) % len(components.Tabs)
		return a, nil
	}

	if len(msg.Runes) == 1 {
		if tab := components.TabIndex(msg.Runes[0]); tab >= 0 {
			a.activeTab = tab
		}
	}
	return a, nil
}

// stepWindow moves days to the next larger or smaller preset window.
func stepWindow(days int, up bool) int {
	if up {
		for _, w := range windows {
			if w > days {
				return w
			}
		}
		return windows[len(windows)-1]
	}
	for i := len(windows) - 1; i >= 0; i-- {
		if windows[i] < days {
			return windows[i]
		}
	}
	return windows[0]
}

func (a App) contentWidth() int {
	return min(a.width, maxContentWidth)
}

func (a App) isCompact() bool {
	return a.contentWidth() < compactWidth
}

// View implements tea.Model.
func (a App) View() string {
	switch {
	case a.width == 0:
		return ""
	case a.width < minTerminalWidth:
		return a.viewTooNarrow()
	case !a.loaded:
		return a.viewLoading()
	case a.showHelp:
		return a.viewHelp()
	}
	return a.viewMain()
}

func (a App) viewTooNarrow() string {
	msg := fmt.Sprintf("\n  Terminal too narrow (%d cols)\n\n  qaid needs at least %d columns.\n",
		a.width, minTerminalWidth)
	h := max(5, a.height)
	return padHeight(truncateHeight(msg, h), h)
}

func (a App) viewLoading() string {
	t := theme.Active
	card := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.BorderAccent).
		Background(t.Surface).
		Padding(2, 4)
	logo := lipgloss.NewStyle().Foreground(t.AccentBright).Background(t.Surface).Bold(true)
	sub := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)

	body := logo.Render("◈ qaid") + sub.Render(" · AI generation metrics") + "\n\n" +
		a.spinner.View() + sub.Render(fmt.Sprintf(" Loading the last %d days...", a.days))

	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, card.Render(body),
		lipgloss.WithWhitespaceBackground(t.Background))
}

func (a App) viewHelp() string {
	t := theme.Active
	card := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.BorderAccent).
		Background(t.Surface).
		Padding(1, 3)
	title := lipgloss.NewStyle().Foreground(t.AccentBright).Background(t.Surface).Bold(true)
	keyStyle := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface).Bold(true)
	desc := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	dim := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)

	bindings := []struct{ key, desc string }{
		{"o t b p h", "Jump to tab"},
		{"← → tab", "Previous / next tab"},
		{"[ ]", "Shorter / longer window"},
		{"j k", "Move in history"},
		{"/", "Search history"},
		{"esc", "Clear search"},
		{"r", "Refresh now"},
		{"R", "Toggle auto-refresh"},
		{"q", "Quit"},
	}

	var b strings.Builder
	b.WriteString(title.Render("◈ Keyboard Shortcuts"))
	b.WriteString("\n\n")
	for _, bind := range bindings {
		b.WriteString(keyStyle.Render(fmt.Sprintf("  %-10s", bind.key)))
		b.WriteString(desc.Render("  " + bind.desc))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(dim.Render("Press any key to close"))

	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, card.Render(b.String()),
		lipgloss.WithWhitespaceBackground(t.Background))
}

func (a App) viewMain() string {
	t := theme.Active
	w, h, cw := a.width, a.height, a.contentWidth()

	pill := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)
	pillAccent := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface).Bold(true)
	filter := pill.Render(" window ") + pillAccent.Render(fmt.Sprintf("%dd", a.days))
	if a.history.filter != "" {
		filter += pill.Render(" │ provider ") + pillAccent.Render(a.history.filter)
	}
	header := components.RenderTabBar(a.activeTab, w) + "\n" +
		lipgloss.NewStyle().Background(t.Surface).Width(w).Render(filter)

	info := components.StatusInfo{
		Provider:    a.svc.Provider,
		State:       string(a.svc.State),
		Refreshing:  a.refreshing,
		AutoRefresh: a.autoRefresh,
	}
	if !a.loadedAt.IsZero() {
		info.Age = a.loadedAt.Format("15:04:05")
	}
	if a.loadErr != nil {
		info.Err = "metrics unavailable"
	}
	status := components.RenderStatusBar(w, info)

	contentH := max(minContentHeight, h-lipgloss.Height(header)-lipgloss.Height(status))

	var content string
	switch a.activeTab {
	case tabOverview:
		content = a.renderOverview(cw)
	case tabTestCases:
		content = a.renderTestCases(cw)
	case tabBugReports:
		content = a.renderBugReports(cw)
	case tabProviders:
		content = a.renderProviders(cw)
	case tabHistory:
		content = a.renderHistory(cw, contentH)
	}

	content = padHeight(truncateHeight(content, contentH), contentH)
	content = fillLines(content, cw, t.Background)
	content = lipgloss.Place(w, contentH, lipgloss.Center, lipgloss.Top, content,
		lipgloss.WithWhitespaceBackground(t.Background))

	out := lipgloss.JoinVertical(lipgloss.Left, header, content, status)
	return lipgloss.Place(w, h, lipgloss.Left, lipgloss.Top, out,
		lipgloss.WithWhitespaceBackground(t.Background))
}

func truncateHeight(s string, limit int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= limit {
		return s
	}
	return strings.Join(lines[:limit], "\n")
}

func padHeight(s string, h int) string {
	n := len(strings.Split(s, "\n"))
	if n >= h {
		return s
	}
	return s + strings.Repeat("\n", h-n)
}

// fillLines pads every line to w columns with bg.
func fillLines(s string, w int, bg lipgloss.Color) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = lipgloss.PlaceHorizontal(w, lipgloss.Left, line, lipgloss.WithWhitespaceBackground(bg))
	}
	return strings.Join(lines, "\n")
}

func truncStr(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}
