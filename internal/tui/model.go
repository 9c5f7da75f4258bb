package tui

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/janekbaraniewski/usagesync/internal/bus"
	"github.com/janekbaraniewski/usagesync/internal/config"
	"github.com/janekbaraniewski/usagesync/internal/core"
	"github.com/janekbaraniewski/usagesync/internal/history"
	"github.com/janekbaraniewski/usagesync/internal/reconcile"
	"github.com/janekbaraniewski/usagesync/internal/syncer"
	"github.com/janekbaraniewski/usagesync/internal/view"
)

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// SnapshotsMsg carries the result of one successful refresh, along with the
// preferences it was fetched under.
type SnapshotsMsg struct {
	Snapshots   []core.UsageSnapshot
	Preferences config.Preferences
}

// StatusMsg updates the footer status line.
type StatusMsg struct {
	Text     string
	Severity syncer.StatusSeverity
}

// StateMsg tracks the orchestrator's polling state for the footer indicator.
type StateMsg syncer.State

// NotifyMsg surfaces a depleted/refreshed event inline. Messages are shown in
// the footer until the next one replaces them.
type NotifyMsg struct {
	Text string
}

type seriesMsg struct {
	providerID string
	points     []history.Point
}

// renderLine is one visible line of the flattened tree, cursor-addressable.
type renderLine struct {
	node   view.Node
	indent int
}

type Model struct {
	tree   *view.Tree
	engine *reconcile.Engine
	prefs  config.Preferences
	snaps  []core.UsageSnapshot

	store   config.Store
	signals *bus.Bus

	cursor      int
	lines       []renderLine
	width       int
	height      int
	showHelp    bool
	hasData     bool
	lastRefresh time.Time

	state      syncer.State
	statusText string
	statusSev  syncer.StatusSeverity
	notifyText string
	spin       spinner.Model

	series         []history.Point
	seriesProvider string

	onRefresh  func()
	onCollapse func(groupKey string, collapsed bool)
	seriesFor  func(providerID string, limit int) ([]history.Point, error)
}

func NewModel(store config.Store, signals *bus.Bus) Model {
	prefs, err := store.LoadPreferences()
	if err != nil {
		log.Printf("tui: load preferences: %v", err)
		prefs = config.DefaultPreferences()
	}

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = lipgloss.NewStyle().Foreground(colorAccent)

	return Model{
		tree:    view.NewTree(),
		engine:  reconcile.NewEngine(),
		prefs:   prefs,
		store:   store,
		signals: signals,
		state:   syncer.StateColdStart,
		spin:    sp,
	}
}

// SetOnRefresh sets the callback for a manual refresh request.
func (m *Model) SetOnRefresh(fn func()) { m.onRefresh = fn }

// SetOnCollapse sets the callback invoked when a group's collapse state is
// toggled, so it can be persisted.
func (m *Model) SetOnCollapse(fn func(groupKey string, collapsed bool)) { m.onCollapse = fn }

// SetSeriesSource sets the history lookup backing the sparkline.
func (m *Model) SetSeriesSource(fn func(providerID string, limit int) ([]history.Point, error)) {
	m.seriesFor = fn
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(tickCmd(), m.spin.Tick)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.ResumeMsg:
		// Back from suspend: the orchestrator refreshes immediately.
		if m.signals != nil {
			m.signals.Publish(bus.TopicResume)
		}
		return m, nil

	case tickMsg:
		return m, tickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case SnapshotsMsg:
		m.snaps = msg.Snapshots
		m.prefs = msg.Preferences
		m.hasData = true
		m.lastRefresh = time.Now()
		m.reconcileTree()
		return m, m.loadSeriesCmd()

	case StatusMsg:
		m.statusText = msg.Text
		m.statusSev = msg.Severity
		return m, nil

	case StateMsg:
		m.state = syncer.State(msg)
		return m, nil

	case NotifyMsg:
		m.notifyText = msg.Text
		return m, nil

	case seriesMsg:
		if msg.providerID == m.selectedProvider() {
			m.series = msg.points
			m.seriesProvider = msg.providerID
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "r":
		if m.onRefresh != nil {
			m.onRefresh()
		}
		return m, nil

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, m.loadSeriesCmd()

	case "down", "j":
		if m.cursor < len(m.lines)-1 {
			m.cursor++
		}
		return m, m.loadSeriesCmd()

	case "enter", " ":
		m.toggleCollapse()
		return m, nil

	case "c":
		m.prefs.CompactMode = !m.prefs.CompactMode
		return m.persistAndReconcile()

	case "p":
		m.prefs.PrivacyMode = !m.prefs.PrivacyMode
		if m.signals != nil {
			m.signals.Publish(bus.TopicPrivacy)
		}
		return m.persistAndReconcile()

	case "a":
		m.prefs.ShowAll = !m.prefs.ShowAll
		return m.persistAndReconcile()

	case "i":
		m.prefs.InvertProgressBar = !m.prefs.InvertProgressBar
		return m.persistAndReconcile()

	case "?":
		m.showHelp = !m.showHelp
		return m, nil
	}
	return m, nil
}

func (m Model) persistAndReconcile() (tea.Model, tea.Cmd) {
	if err := m.store.SavePreferences(m.prefs); err != nil {
		log.Printf("tui: save preferences: %v", err)
	}
	m.reconcileTree()
	return m, nil
}

func (m *Model) reconcileTree() {
	m.engine.Apply(m.tree, m.snaps, m.prefs)
	m.flatten()
	if m.cursor >= len(m.lines) {
		m.cursor = len(m.lines) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *Model) toggleCollapse() {
	if m.cursor >= len(m.lines) {
		return
	}
	group, ok := m.lines[m.cursor].node.(*view.Group)
	if !ok {
		return
	}
	group.Collapsed = !group.Collapsed
	if m.onCollapse != nil {
		m.onCollapse(group.Key(), group.Collapsed)
	}
	m.flatten()
}

func (m *Model) flatten() {
	m.lines = m.lines[:0]
	var walk func(p view.Parent, indent int)
	walk = func(p view.Parent, indent int) {
		for i := 0; i < p.Len(); i++ {
			child := p.At(i)
			m.lines = append(m.lines, renderLine{node: child, indent: indent})
			if g, ok := child.(*view.Group); ok && !g.Collapsed {
				walk(g, indent+1)
			}
		}
	}
	walk(m.tree, 0)
}

// selectedProvider maps the cursor line back to a provider id, or "".
func (m Model) selectedProvider() string {
	if m.cursor >= len(m.lines) {
		return ""
	}
	key := m.lines[m.cursor].node.Key()
	for _, prefix := range []string{"provider:", "row:"} {
		if strings.HasPrefix(key, prefix) {
			return strings.TrimPrefix(key, prefix)
		}
	}
	if strings.HasPrefix(key, "detail:") || strings.HasPrefix(key, "group:") {
		rest := strings.SplitN(key, ":", 3)
		if len(rest) >= 2 {
			return rest[1]
		}
	}
	return ""
}

func (m Model) loadSeriesCmd() tea.Cmd {
	id := m.selectedProvider()
	if id == "" || m.seriesFor == nil {
		return nil
	}
	fn := m.seriesFor
	return func() tea.Msg {
		points, err := fn(id, 120)
		if err != nil {
			log.Printf("tui: load series for %s: %v", id, err)
			return seriesMsg{providerID: id}
		}
		return seriesMsg{providerID: id, points: points}
	}
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("usagesync"))
	if m.prefs.PrivacyMode {
		b.WriteString(dimStyle.Render("  [privacy]"))
	}
	b.WriteString("\n\n")

	if !m.hasData {
		b.WriteString(m.loadingView())
		b.WriteString("\n")
		b.WriteString(m.footerView())
		return b.String()
	}

	for i, line := range m.lines {
		b.WriteString(m.renderLine(line, i == m.cursor))
		b.WriteString("\n")
	}

	if spark := m.sparklineView(); spark != "" {
		b.WriteString("\n")
		b.WriteString(spark)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.footerView())
	if m.showHelp {
		b.WriteString("\n")
		b.WriteString(helpView())
	}
	return b.String()
}

func (m Model) loadingView() string {
	switch m.state {
	case syncer.StateFailed:
		return errorStyle.Render(m.statusText)
	default:
		text := m.statusText
		if text == "" {
			text = "Waiting for data…"
		}
		return fmt.Sprintf("%s %s", m.spin.View(), dimStyle.Render(text))
	}
}

func (m Model) renderLine(line renderLine, selected bool) string {
	pad := strings.Repeat("  ", line.indent)

	switch n := line.node.(type) {
	case *view.Group:
		marker := "▾"
		if n.Collapsed {
			marker = "▸"
		}
		style := groupHeaderStyle
		if line.indent == 0 {
			style = sectionHeaderStyle
		}
		if selected {
			style = selectedStyle
		}
		return pad + style.Render(marker+" "+n.Title)

	case *view.Row:
		gaugeWidth := 20
		if n.Mode == view.ModeCompact {
			gaugeWidth = 10
		}
		fill := n.FillPercent
		if !n.Available {
			fill = -1
		}
		gauge := RenderGauge(fill, gaugeWidth, n.FillColor)

		label := labelStyle.Render(n.Label)
		if selected {
			label = selectedStyle.Render(n.Label)
		}
		parts := []string{pad + label, gauge, statusStyle.Render(n.Status)}
		if n.ResetText != "" {
			parts = append(parts, resetStyle.Render(n.ResetText))
		}
		return strings.Join(parts, "  ")
	}
	return pad + dimStyle.Render(line.node.Key())
}

func (m Model) sparklineView() string {
	if len(m.series) == 0 || m.seriesProvider == "" {
		return ""
	}
	width := m.width - 4
	if width > 60 {
		width = 60
	}
	spark := RenderSparkline(m.series, width)
	if spark == "" {
		return ""
	}
	return dimStyle.Render("history "+m.seriesProvider+" ") + spark
}

func (m Model) footerView() string {
	var parts []string

	switch m.state {
	case syncer.StateRefreshing, syncer.StateColdStart:
		parts = append(parts, m.spin.View())
	case syncer.StateFailed:
		parts = append(parts, errorStyle.Render("✗"))
	}

	if m.statusText != "" {
		style := dimStyle
		switch m.statusSev {
		case syncer.StatusWarn:
			style = warnStyle
		case syncer.StatusError:
			style = errorStyle
		}
		parts = append(parts, style.Render(m.statusText))
	}
	if m.notifyText != "" {
		parts = append(parts, warnStyle.Render(m.notifyText))
	}
	if !m.lastRefresh.IsZero() {
		age := time.Since(m.lastRefresh).Round(time.Second)
		parts = append(parts, dimStyle.Render(fmt.Sprintf("updated %s ago", age)))
	}

	parts = append(parts, helpStyle.Render("? help"))
	return strings.Join(parts, "  ")
}

func helpView() string {
	rows := []string{
		"r  refresh now",
		"space/enter  collapse group",
		"c  compact mode    p  privacy    a  show all    i  invert bars",
		"q  quit",
	}
	return helpStyle.Render(strings.Join(rows, "\n"))
}
