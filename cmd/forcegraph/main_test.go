package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/dd0wney/cluso-forcegraph/pkg/config"
	"github.com/dd0wney/cluso-forcegraph/pkg/forcegraph"
	"github.com/dd0wney/cluso-forcegraph/pkg/graph"
	"github.com/dd0wney/cluso-forcegraph/pkg/health"
	"github.com/dd0wney/cluso-forcegraph/pkg/layout"
	"github.com/dd0wney/cluso-forcegraph/pkg/logging"
	"github.com/dd0wney/cluso-forcegraph/pkg/pubsub"
	"github.com/dd0wney/cluso-forcegraph/pkg/source"
)

func writeTriangle(t *testing.T) string {
	t.Helper()
	g := graph.New()
	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, g.AddNode(k, graph.Attributes{"group": k == "a"}))
	}
	require.NoError(t, g.AddEdgeWithKey("ab", "a", "b", nil))
	require.NoError(t, g.AddEdgeWithKey("bc", "b", "c", nil))
	require.NoError(t, g.AddEdgeWithKey("ca", "c", "a", nil))

	p := filepath.Join(t.TempDir(), "triangle.json")
	require.NoError(t, source.Save(context.Background(), g, p))
	return p
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Source = writeTriangle(t)
	cfg.Engine.CooldownTicks = 20
	return cfg
}

func TestSimulateSettles(t *testing.T) {
	cfg := testConfig(t)

	report, g, err := simulate(context.Background(), cfg, logging.NewNopLogger(), 1000)
	require.NoError(t, err)

	assert.True(t, report.Settled)
	assert.Positive(t, report.Frames)
	assert.LessOrEqual(t, report.Frames, 21)
	assert.Equal(t, 3, report.Engine.Nodes)
	assert.Equal(t, 3, report.Engine.BoundLinks)
	assert.Equal(t, report.Frames, report.Scene.Frame)
	assert.Positive(t, report.Scene.Meshes)
	assert.Len(t, report.Positions, 3)
	assert.Equal(t, 3, g.Order())
}

func TestSimulateStopsAtFrameLimit(t *testing.T) {
	cfg := testConfig(t)
	cfg.Engine.CooldownTicks = 0

	report, _, err := simulate(context.Background(), cfg, logging.NewNopLogger(), 5)
	require.NoError(t, err)
	assert.Equal(t, 5, report.Frames)
	assert.False(t, report.Settled)
}

func TestSimulateHonorsContext(t *testing.T) {
	cfg := testConfig(t)
	cfg.Engine.CooldownTicks = 0

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := simulate(ctx, cfg, logging.NewNopLogger(), 10)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSimulateMissingSource(t *testing.T) {
	cfg := config.Default()
	cfg.Source = filepath.Join(t.TempDir(), "missing.json")

	_, _, err := simulate(context.Background(), cfg, logging.NewNopLogger(), 10)
	assert.Error(t, err)
}

func TestWriteReport(t *testing.T) {
	report := &simulateReport{
		Frames:    3,
		Settled:   true,
		Positions: map[string]layout.Position{"a": {X: 1, Y: 2, Z: 3}},
	}

	var buf bytes.Buffer
	require.NoError(t, writeReport(&buf, "json", report))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, float64(3), decoded["frames"])
	assert.Contains(t, decoded, "positions")

	buf.Reset()
	require.NoError(t, writeReport(&buf, "yaml", report))
	var fromYAML simulateReport
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &fromYAML))
	assert.Equal(t, report.Positions, fromYAML.Positions)
	assert.True(t, fromYAML.Settled)
}

func TestExportLayout(t *testing.T) {
	cfg := testConfig(t)
	cfg.Node.AutoColorBy = config.Field("group")

	report, g, err := simulate(context.Background(), cfg, logging.NewNopLogger(), 50)
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "out.yaml")
	require.NoError(t, exportLayout(context.Background(), cfg, g, report.Positions, dest))

	loaded, err := source.Load(context.Background(), dest)
	require.NoError(t, err)
	a, err := loaded.Node("a")
	require.NoError(t, err)
	assert.InDelta(t, report.Positions["a"].X, a.Attributes["x"], 1e-9)
	assert.NotEmpty(t, a.Attributes["color"])
}

func TestPlotPositions(t *testing.T) {
	out := plotPositions(map[string]layout.Position{
		"left":  {X: -10, Y: 0},
		"right": {X: 10, Y: 0},
		"top":   {X: 0, Y: 5},
	}, 21, 3)

	lines := strings.Split(out, "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, 't', []rune(lines[0])[10])
	assert.Equal(t, 'l', []rune(lines[2])[0])
	assert.Equal(t, 'r', []rune(lines[2])[20])

	empty := plotPositions(nil, 4, 2)
	assert.Equal(t, "    \n    ", empty)
}

func TestPositionRowsAreSorted(t *testing.T) {
	rows := positionRows(map[string]layout.Position{
		"b": {X: 1.25},
		"a": {Y: -2},
	})
	require.Len(t, rows, 2)
	assert.Equal(t, "a", rows[0][0])
	assert.Equal(t, "-2.0", rows[0][2])
	assert.Equal(t, "b", rows[1][0])
	assert.Equal(t, "1.2", rows[1][1])
}

func newTestDashboard(t *testing.T) dashboard {
	t.Helper()
	e, err := newEngine(context.Background(), testConfig(t), logging.NewNopLogger(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.fg.Close() })
	return newDashboard(context.Background(), e, "triangle.json", time.Millisecond)
}

func update(t *testing.T, m dashboard, msg tea.Msg) (dashboard, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	d, ok := next.(dashboard)
	require.True(t, ok)
	return d, cmd
}

func TestDashboardFramesAdvance(t *testing.T) {
	m := newTestDashboard(t)
	assert.Equal(t, "Initializing...", m.View())

	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 40})
	m, cmd := update(t, m, frameMsg(time.Now()))
	assert.NotNil(t, cmd)
	assert.Equal(t, 1, m.frame.Frame)
	assert.Len(t, m.positions, 3)
	assert.Contains(t, m.View(), "Nodes:     3")
}

func TestDashboardKeys(t *testing.T) {
	m := newTestDashboard(t)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 40})

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, nodesView, m.currentView)
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyShiftTab})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyShiftTab})
	assert.Equal(t, layoutView, m.currentView)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("p")})
	assert.True(t, m.stats.Paused)
	before := m.frame.Frame
	m, _ = update(t, m, frameMsg(time.Now()))
	assert.Equal(t, before, m.frame.Frame, "paused dashboards do not render")

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("p")})
	assert.False(t, m.stats.Paused)
	assert.Equal(t, "Animation resumed", m.message)
	m, _ = update(t, m, frameMsg(time.Now()))
	assert.Equal(t, before+1, m.frame.Frame)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("z")})
	assert.Equal(t, "Camera fitted to graph", m.message)
	assert.False(t, m.messageErr)

	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestDashboardEventFeed(t *testing.T) {
	m := newTestDashboard(t)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 40})
	require.NotNil(t, m.feed)
	assert.NotNil(t, m.Init())

	g := m.engine.fg.Graph()
	require.NoError(t, g.SetNodeAttribute("a", "color", "red"))
	require.NoError(t, g.DropEdge("ab"))

	for i := 0; i < 2; i++ {
		var cmd tea.Cmd
		m, cmd = update(t, m, listen(m.feed)())
		assert.NotNil(t, cmd, "the feed keeps listening")
	}
	assert.Equal(t, []string{
		"nodeAttributesUpdated a set color",
		"edgeDropped ab (a -> b)",
	}, m.events)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, eventsView, m.currentView)
	assert.Contains(t, m.View(), "edgeDropped ab (a -> b)")
}

func TestDashboardFollowsReplacedGraph(t *testing.T) {
	m := newTestDashboard(t)
	old := m.feed

	replacement := graph.New()
	require.NoError(t, replacement.AddNode("solo", nil))
	require.NoError(t, m.engine.fg.Set(forcegraph.WithGraph(replacement)))

	m, cmd := update(t, m, frameMsg(time.Now()))
	assert.NotNil(t, cmd)
	assert.Same(t, replacement, m.graph)
	assert.NotSame(t, old, m.feed)
	assert.Equal(t, []string{"graph replaced"}, m.events)

	_, open := <-old.C()
	assert.False(t, open, "the old feed is closed")

	// messages from the old feed are ignored
	m, cmd = update(t, m, graphEventMsg{feed: old, msg: pubsub.Message{Topic: graph.EventCleared}})
	assert.Nil(t, cmd)
	assert.Len(t, m.events, 1)

	require.NoError(t, replacement.AddNode("second", nil))
	m, _ = update(t, m, listen(m.feed)())
	assert.Equal(t, "nodeAdded second", m.events[1])
}

func TestReloadFuncAppliesConfigFile(t *testing.T) {
	e, err := newEngine(context.Background(), config.Default(), logging.NewNopLogger(), nil)
	require.NoError(t, err)
	defer e.fg.Close()

	p := filepath.Join(t.TempDir(), "forcegraph.yaml")
	cfg := config.Default()
	cfg.Logging.Level = "debug"
	require.NoError(t, cfg.Save(p))

	prev := configPath
	configPath = p
	defer func() { configPath = prev }()

	var buf bytes.Buffer
	logger := logging.NewJSONLogger(&buf, logging.InfoLevel)
	require.NoError(t, reloadFunc(e.fg, logger)())
	assert.Equal(t, logging.DebugLevel, logger.GetLevel())
	assert.Contains(t, buf.String(), "configuration reloaded")

	require.NoError(t, os.WriteFile(p, []byte("engine: {dimensions: 7}\n"), 0o644))
	assert.Error(t, reloadFunc(e.fg, logger)())
}

func TestWatchSourceReplacesGraph(t *testing.T) {
	cfg := testConfig(t)
	e, err := newEngine(context.Background(), cfg, logging.NewNopLogger(), nil)
	require.NoError(t, err)
	defer e.fg.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		watchSource(ctx, e.fg, cfg.Source, logging.NewNopLogger())
	}()

	g := graph.New()
	require.NoError(t, g.AddNode("solo", nil))

	// writes closer together than the settle delay keep postponing the
	// reload, so give the watcher time to register and write once
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, source.Save(context.Background(), g, cfg.Source))
	assert.Eventually(t, func() bool {
		return e.fg.Graph().HasNode("solo")
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, 1, e.fg.Stats().BoundNodes)

	cancel()
	<-done
}

func TestServerTLS(t *testing.T) {
	checks := health.NewHealthChecker()

	tlsCfg, err := serverTLS(config.TLSConfig{}, checks)
	require.NoError(t, err)
	assert.Nil(t, tlsCfg)
	assert.Empty(t, checks.Names(health.ProbeHealth))

	tlsCfg, err = serverTLS(config.TLSConfig{SelfSigned: true, Hosts: []string{"localhost"}}, checks)
	require.NoError(t, err)
	require.NotNil(t, tlsCfg)
	assert.Equal(t, []string{"certificate"}, checks.Names(health.ProbeHealth))
	assert.Equal(t, health.StatusHealthy, checks.Check().Status)

	_, err = serverTLS(config.TLSConfig{CertFile: "server.crt"}, checks)
	assert.Error(t, err)
}

func TestApplyTLSFlags(t *testing.T) {
	cmd := serveCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--tls-self-signed"}))

	dst := config.TLSConfig{CertFile: "from-config.crt", KeyFile: "from-config.key"}
	applyTLSFlags(cmd, &dst, config.TLSConfig{SelfSigned: true})
	assert.True(t, dst.SelfSigned)
	assert.Equal(t, "from-config.crt", dst.CertFile, "unset flags keep configured files")

	cmd = serveCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--tls-cert", "a.crt", "--tls-key", "a.key"}))
	applyTLSFlags(cmd, &dst, config.TLSConfig{CertFile: "a.crt", KeyFile: "a.key"})
	assert.Equal(t, "a.crt", dst.CertFile)
	assert.Equal(t, "a.key", dst.KeyFile)
}

func TestConfigCertCommand(t *testing.T) {
	dir := t.TempDir()
	certFile := filepath.Join(dir, "server.crt")
	keyFile := filepath.Join(dir, "server.key")

	cmd := configCertCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{certFile, keyFile, "--host", "viewer.local", "--valid-for", "48h"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), certFile)

	checks := health.NewHealthChecker()
	tlsCfg, err := serverTLS(config.TLSConfig{CertFile: certFile, KeyFile: keyFile}, checks)
	require.NoError(t, err)
	require.NotNil(t, tlsCfg)
	// 48h is inside the renewal window
	assert.Equal(t, health.StatusDegraded, checks.Check().Status)
}
