// Package tui implements the live dashboard shown by "botradar deploy --tui".
package tui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/xoelrdgz/botradar/internal/domain"
	"github.com/xoelrdgz/botradar/internal/tui/views"
	"github.com/xoelrdgz/botradar/pkg/sanitize"
)

const (
	maxDecisionsPerTick = 50
	uiTickInterval      = 100 * time.Millisecond
)

// App is the bubbletea program. Decisions arrive through OnDecision and
// metrics through SendMetrics, both from outside the UI goroutine; they are
// buffered and applied on the next tick.
type App struct {
	model      *Model
	throughput *views.Throughput
	decisions  *views.DecisionList
	topClients *views.TopClients
	status     *views.Status

	ready    bool
	quitting bool
	width    int
	height   int

	pending          []*domain.Decision
	pendingMu        sync.Mutex
	droppedDecisions int64
	maxPending       int

	metricsChan chan domain.MetricsSnapshot
	lastMetrics domain.MetricsSnapshot

	upstream string
}

// NewApp creates the dashboard. upstream is shown in the header.
func NewApp(upstream string) *App {
	return &App{
		model:       NewModel(),
		throughput:  views.NewThroughput(80),
		decisions:   views.NewDecisionList(15),
		topClients:  views.NewTopClients(100),
		status:      views.NewStatus(100),
		pending:     make([]*domain.Decision, 0, 100),
		maxPending:  500,
		metricsChan: make(chan domain.MetricsSnapshot, 10),
		upstream:    upstream,
	}
}

type tickMsg time.Time
type metricsMsg domain.MetricsSnapshot

func (a *App) Init() tea.Cmd {
	return tea.Batch(tea.EnterAltScreen, a.tick(), a.listenForMetrics())
}

func (a *App) tick() tea.Cmd {
	return tea.Tick(uiTickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (a *App) listenForMetrics() tea.Cmd {
	return func() tea.Msg { return metricsMsg(<-a.metricsChan) }
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			a.quitting = true
			return a, tea.Quit
		case "tab":
			a.model.NextView()
		case "m":
			a.throughput.ToggleMode()
		case "up", "k":
			a.decisions.ScrollUp()
		case "down", "j":
			a.decisions.ScrollDown()
		}
	case tea.WindowSizeMsg:
		a.resize(msg.Width, msg.Height)
	case tickMsg:
		a.applyPending()
		return a, a.tick()
	case metricsMsg:
		a.lastMetrics = domain.MetricsSnapshot(msg)
		a.model.UpdateMetrics(a.lastMetrics)
		a.throughput.Update(a.lastMetrics.RequestsPerSecond)
		a.status.Update(a.lastMetrics)
		return a, a.listenForMetrics()
	}
	return a, nil
}

func (a *App) resize(width, height int) {
	a.width, a.height = width, height
	a.ready = true
	a.model.SetDimensions(width, height)
	a.decisions.Width = width - 4
	a.topClients.Width = width - 4
	a.status.Width = width
	a.throughput.SetWidth(width - 12)

	contentHeight := max(height-12, 5)
	a.decisions.VisibleCount = contentHeight
	a.topClients.VisibleCount = contentHeight
}

// applyPending moves up to maxDecisionsPerTick buffered decisions into the
// model and refreshes the list views.
func (a *App) applyPending() {
	a.pendingMu.Lock()
	count := min(len(a.pending), maxDecisionsPerTick)
	batch := a.pending[:count]
	a.pending = a.pending[count:]
	a.pendingMu.Unlock()

	for _, d := range batch {
		a.model.AddDecision(d)
	}
	if count > 0 {
		a.decisions.Update(a.model.GetDecisions())
	}
	a.topClients.Update(toRows(a.model.TopClients()))
}

func toRows(entries []ClientEntry) []views.ClientRow {
	rows := make([]views.ClientRow, len(entries))
	for i, e := range entries {
		rows[i] = views.ClientRow{ClientID: e.ClientID, Flags: e.Flags, Bad: e.Bad, LastSeen: e.LastSeen, LastPath: e.LastPath}
	}
	return rows
}

func (a *App) View() string {
	if a.quitting {
		return "\n  Session terminated.\n\n"
	}
	if !a.ready {
		return "\n  Initializing...\n\n"
	}

	var b strings.Builder

	b.WriteString(a.renderHeader())
	b.WriteString("\n")
	b.WriteString(TextDim.Render(strings.Repeat("─", a.width)))
	b.WriteString("\n")

	b.WriteString(a.throughput.Render())
	b.WriteString("\n\n")

	viewName := "RECENT DECISIONS"
	content := a.decisions.Render()
	if a.model.ActiveView == viewClients {
		viewName = "TOP FLAGGED CLIENTS"
		content = a.topClients.Render()
	}
	b.WriteString(TextMuted.Render("  " + viewName))
	b.WriteString("\n")
	b.WriteString(content)

	b.WriteString("\n\n")
	b.WriteString(a.status.Render())
	b.WriteString("\n")
	b.WriteString(a.renderHelp())

	return b.String()
}

func (a *App) renderHeader() string {
	title := TextPrimary.Bold(true).Render("BOTRADAR")

	status := TextPrimary.Bold(true).Render("WATCHING")
	switch {
	case a.lastMetrics.Requests.NumBadReqs > 0:
		status = ForClass(domain.ActorClassBad).Render("BLOCKING")
	case a.lastMetrics.Requests.NumSuspReqs > 0:
		status = ForClass(domain.ActorClassSuspicious).Render("TAGGING")
	}

	return fmt.Sprintf("  %s  %s  %s %s",
		title, status,
		TextDim.Render("UPSTREAM:"), sanitize.String(a.upstream, 64))
}

func (a *App) renderHelp() string {
	names := []string{"DECISIONS", "CLIENTS"}
	return TextDim.Render(fmt.Sprintf("  %s [%s]  %s scroll  %s graph  %s quit",
		TextKey.Render("TAB"), names[a.model.ActiveView], TextKey.Render("↑↓"), TextKey.Render("m"), TextKey.Render("q")))
}

// OnDecision implements ports.DecisionSubscriber. When the buffer is full
// the oldest tenth is discarded.
func (a *App) OnDecision(decision *domain.Decision) {
	a.model.RecordClient(decision)

	a.pendingMu.Lock()
	defer a.pendingMu.Unlock()
	if len(a.pending) >= a.maxPending {
		drop := a.maxPending / 10
		a.droppedDecisions += int64(drop)
		a.pending = a.pending[drop:]
	}
	a.pending = append(a.pending, decision)
}

// SendMetrics offers a snapshot to the UI; it is skipped if the UI is
// behind.
func (a *App) SendMetrics(metrics domain.MetricsSnapshot) {
	select {
	case a.metricsChan <- metrics:
	default:
	}
}

func (a *App) Model() *Model { return a.model }

func (a *App) DroppedDecisions() int64 {
	a.pendingMu.Lock()
	defer a.pendingMu.Unlock()
	return a.droppedDecisions
}

func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
