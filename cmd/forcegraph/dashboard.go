package main

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dd0wney/cluso-forcegraph/pkg/forcegraph"
	"github.com/dd0wney/cluso-forcegraph/pkg/graph"
	"github.com/dd0wney/cluso-forcegraph/pkg/layout"
	"github.com/dd0wney/cluso-forcegraph/pkg/pubsub"
	"github.com/dd0wney/cluso-forcegraph/pkg/scene"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF00FF")).
			MarginLeft(2).
			MarginTop(1)

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#FF00FF")).
			Padding(0, 2)

	inactiveTabStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#666666")).
				Padding(0, 2)

	contentStyle = lipgloss.NewStyle().
			MarginLeft(2).
			MarginTop(1)

	statsBoxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#00FF00")).
			Padding(1, 2).
			MarginRight(2)

	graphBoxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color("#FFFF00")).
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00FF00")).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			MarginTop(1).
			MarginLeft(2)
)

type view int

const (
	dashboardView view = iota
	nodesView
	eventsView
	layoutView
	viewCount
)

var viewNames = []string{"Dashboard", "Nodes", "Events", "Layout"}

const (
	// feedBuffer is the graph event channel size
	feedBuffer = 256
	// feedHistory is how many events the Events view keeps
	feedHistory = 200
)

type keyMap struct {
	Tab      key.Binding
	ShiftTab key.Binding
	Pause    key.Binding
	Refresh  key.Binding
	Reheat   key.Binding
	Fit      key.Binding
	Quit     key.Binding
}

var keys = keyMap{
	Tab: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "next view"),
	),
	ShiftTab: key.NewBinding(
		key.WithKeys("shift+tab"),
		key.WithHelp("shift+tab", "prev view"),
	),
	Pause: key.NewBinding(
		key.WithKeys(" ", "p"),
		key.WithHelp("space", "pause/resume"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "rebuild scene"),
	),
	Reheat: key.NewBinding(
		key.WithKeys("h"),
		key.WithHelp("h", "reheat layout"),
	),
	Fit: key.NewBinding(
		key.WithKeys("z"),
		key.WithHelp("z", "zoom to fit"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Tab, k.Pause, k.Reheat, k.Fit, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Tab, k.ShiftTab},
		{k.Pause, k.Refresh, k.Reheat, k.Fit},
		{k.Quit},
	}
}

type dashboard struct {
	ctx         context.Context
	engine      *engine
	source      string
	interval    time.Duration
	currentView view
	nodeTable   table.Model
	help        help.Model
	keys        keyMap
	width       int
	height      int
	message     string
	messageErr  bool
	startTime   time.Time
	stats       forcegraph.Stats
	frame       scene.FrameStats
	positions   map[string]layout.Position
	graph       *graph.Graph
	feed        *pubsub.Stream
	events      []string
}

type frameMsg time.Time

// graphEventMsg carries one message from the graph event feed
type graphEventMsg struct {
	feed *pubsub.Stream
	msg  pubsub.Message
}

// listen waits for the next message on feed. A closed feed ends the loop.
func listen(feed *pubsub.Stream) tea.Cmd {
	if feed == nil {
		return nil
	}
	return func() tea.Msg {
		msg, ok := <-feed.C()
		if !ok {
			return nil
		}
		return graphEventMsg{feed: feed, msg: msg}
	}
}

func frameCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

func newDashboard(ctx context.Context, e *engine, source string, interval time.Duration) dashboard {
	columns := []table.Column{
		{Title: "Key", Width: 20},
		{Title: "X", Width: 10},
		{Title: "Y", Width: 10},
		{Title: "Z", Width: 10},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(12),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("#00FFFF")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(lipgloss.Color("#FF00FF")).
		Bold(false)
	t.SetStyles(s)

	m := dashboard{
		ctx:         ctx,
		engine:      e,
		source:      source,
		interval:    interval,
		currentView: dashboardView,
		nodeTable:   t,
		help:        help.New(),
		keys:        keys,
		startTime:   time.Now(),
	}
	m.sample()
	m.subscribe()
	return m
}

// subscribe moves the event feed to the engine's current graph
func (m *dashboard) subscribe() {
	if m.feed != nil {
		m.feed.Close()
	}
	m.graph = m.engine.fg.Graph()
	m.feed = nil
	if m.graph != nil {
		m.feed = m.graph.Stream(m.ctx, feedBuffer)
	}
}

func (m *dashboard) pushEvent(line string) {
	m.events = append(m.events, line)
	if over := len(m.events) - feedHistory; over > 0 {
		m.events = m.events[over:]
	}
}

// describeEvent renders a graph event as one feed line
func describeEvent(msg pubsub.Message) string {
	switch p := msg.Payload.(type) {
	case graph.Node:
		return fmt.Sprintf("%s %s", msg.Topic, p.Key)
	case graph.Edge:
		return fmt.Sprintf("%s %s (%s -> %s)", msg.Topic, p.Key, p.Source, p.Target)
	case graph.AttributesUpdate:
		if p.Name != "" {
			return fmt.Sprintf("%s %s %s %s", msg.Topic, p.Key, p.Type, p.Name)
		}
		return fmt.Sprintf("%s %s %s", msg.Topic, p.Key, p.Type)
	}
	return msg.Topic
}

func (m dashboard) Init() tea.Cmd {
	return tea.Batch(frameCmd(m.interval), listen(m.feed))
}

func (m dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case frameMsg:
		if !m.stats.Paused {
			if err := m.engine.fg.Frame(); err != nil {
				m.setMessage(fmt.Sprintf("Frame failed: %v", err), true)
			}
		}
		m.sample()
		if m.engine.fg.Graph() != m.graph {
			m.subscribe()
			m.pushEvent("graph replaced")
			return m, tea.Batch(frameCmd(m.interval), listen(m.feed))
		}
		return m, frameCmd(m.interval)

	case graphEventMsg:
		if msg.feed != m.feed {
			return m, nil
		}
		m.pushEvent(describeEvent(msg.msg))
		return m, listen(m.feed)

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit

		case key.Matches(msg, m.keys.Tab):
			m.currentView = (m.currentView + 1) % viewCount

		case key.Matches(msg, m.keys.ShiftTab):
			m.currentView = (m.currentView + viewCount - 1) % viewCount

		case key.Matches(msg, m.keys.Pause):
			if m.engine.fg.Paused() {
				m.engine.fg.ResumeAnimation()
				m.setMessage("Animation resumed", false)
			} else {
				m.engine.fg.PauseAnimation()
				m.setMessage("Animation paused", false)
			}

		case key.Matches(msg, m.keys.Refresh):
			m.engine.fg.Refresh()
			m.setMessage("Scene rebuilt", false)

		case key.Matches(msg, m.keys.Reheat):
			m.engine.fg.ResetCountdown()
			m.setMessage("Layout reheated", false)

		case key.Matches(msg, m.keys.Fit):
			if m.engine.fg.ZoomToFit(10, nil) {
				m.setMessage("Camera fitted to graph", false)
			} else {
				m.setMessage("Nothing to fit", true)
			}
		}
		m.sample()
	}

	if m.currentView == nodesView {
		m.nodeTable, cmd = m.nodeTable.Update(msg)
	}
	return m, cmd
}

func (m *dashboard) setMessage(msg string, isErr bool) {
	m.message = msg
	m.messageErr = isErr
}

// sample copies the engine state the views render
func (m *dashboard) sample() {
	m.stats = m.engine.fg.Stats()
	m.frame = m.engine.renderer.Summary()
	m.positions = m.engine.fg.NodePositions()
	m.nodeTable.SetRows(positionRows(m.positions))
}

func positionRows(positions map[string]layout.Position) []table.Row {
	names := make([]string, 0, len(positions))
	for k := range positions {
		names = append(names, k)
	}
	sort.Strings(names)

	rows := make([]table.Row, 0, len(names))
	for _, k := range names {
		p := positions[k]
		rows = append(rows, table.Row{
			k,
			fmt.Sprintf("%.1f", p.X),
			fmt.Sprintf("%.1f", p.Y),
			fmt.Sprintf("%.1f", p.Z),
		})
	}
	return rows
}

func (m dashboard) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	var s strings.Builder

	s.WriteString(titleStyle.Render("forcegraph"))
	s.WriteString("\n\n")
	s.WriteString(m.renderTabs())
	s.WriteString("\n\n")

	switch m.currentView {
	case dashboardView:
		s.WriteString(m.renderDashboard())
	case nodesView:
		s.WriteString(contentStyle.Render(m.nodeTable.View()))
	case eventsView:
		s.WriteString(m.renderEvents())
	case layoutView:
		s.WriteString(m.renderLayout())
	}

	if m.message != "" {
		s.WriteString("\n\n")
		if m.messageErr {
			s.WriteString(errorStyle.Render("x " + m.message))
		} else {
			s.WriteString(successStyle.Render("> " + m.message))
		}
	}

	s.WriteString("\n\n")
	s.WriteString(helpStyle.Render(m.help.ShortHelpView(m.keys.ShortHelp())))

	return s.String()
}

func (m dashboard) renderTabs() string {
	tabs := make([]string, 0, len(viewNames))
	for i, name := range viewNames {
		if view(i) == m.currentView {
			tabs = append(tabs, activeTabStyle.Render(name))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(name))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m dashboard) engineState() string {
	switch {
	case m.stats.Closed:
		return "closed"
	case m.stats.Loading:
		return "loading"
	case m.stats.Paused:
		return "paused"
	case m.stats.Running:
		return "running"
	default:
		return "settled"
	}
}

func (m dashboard) renderDashboard() string {
	uptime := time.Since(m.startTime).Round(time.Second)
	source := m.source
	if source == "" {
		source = "(empty graph)"
	}

	graphContent := fmt.Sprintf(`Graph
-------------
Source:    %s
Nodes:     %d
Edges:     %d
Bound:     %d nodes, %d links
Arrows:    %d
Particles: %d`,
		source,
		m.stats.Nodes,
		m.stats.Edges,
		m.stats.BoundNodes,
		m.stats.BoundLinks,
		m.stats.Arrows,
		m.stats.Particles,
	)

	engineContent := fmt.Sprintf(`Engine
-------------
State:      %s
Ticks:      %d
Uptime:     %s

Scene
-------------
Frame:      %d
Objects:    %d
Meshes:     %d
Lines:      %d
Geometries: %d
Materials:  %d`,
		m.engineState(),
		m.stats.Ticks,
		uptime,
		m.frame.Frame,
		m.frame.Objects,
		m.frame.Meshes,
		m.frame.Lines,
		m.frame.Geometries,
		m.frame.Materials,
	)

	return contentStyle.Render(lipgloss.JoinHorizontal(
		lipgloss.Top,
		statsBoxStyle.Render(graphContent),
		statsBoxStyle.Render(engineContent),
	))
}

// renderEvents lists the most recent graph events that fit the window
func (m dashboard) renderEvents() string {
	h := max(m.height-12, 3)
	lines := m.events
	if len(lines) > h {
		lines = lines[len(lines)-h:]
	}

	content := "No graph events yet"
	if len(lines) > 0 {
		content = strings.Join(lines, "\n")
	}
	if m.feed != nil {
		if dropped := m.feed.Dropped(); dropped > 0 {
			content += "\n" + errorStyle.Render(fmt.Sprintf("%d events dropped", dropped))
		}
	}
	return contentStyle.Render(graphBoxStyle.Render(content))
}

// renderLayout draws the node positions projected onto the XY plane
func (m dashboard) renderLayout() string {
	w := max(m.width-10, 10)
	h := max(m.height-14, 5)
	return contentStyle.Render(graphBoxStyle.Render(plotPositions(m.positions, w, h)))
}

// plotPositions scales positions into a w by h character grid. Each node
// is drawn with the first letter of its key.
func plotPositions(positions map[string]layout.Position, w, h int) string {
	grid := make([][]rune, h)
	for i := range grid {
		grid[i] = []rune(strings.Repeat(" ", w))
	}
	if len(positions) == 0 {
		return joinGrid(grid)
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range positions {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	spanX := math.Max(maxX-minX, 1e-9)
	spanY := math.Max(maxY-minY, 1e-9)

	for k, p := range positions {
		col := int(math.Round((p.X - minX) / spanX * float64(w-1)))
		// screen rows grow downwards
		row := int(math.Round((maxY - p.Y) / spanY * float64(h-1)))
		mark := '*'
		if r := []rune(k); len(r) > 0 {
			mark = r[0]
		}
		grid[row][col] = mark
	}
	return joinGrid(grid)
}

func joinGrid(grid [][]rune) string {
	lines := make([]string, len(grid))
	for i, row := range grid {
		lines[i] = string(row)
	}
	return strings.Join(lines, "\n")
}
