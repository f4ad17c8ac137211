// Copyright 2026 The IoT Project Authors
// SPDX-License-Identifier: Apache-2.0

package dashui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/YusufAkyuz/IoT-Project/lib/clock"
)

// tickMsg drives the poll loop.
type tickMsg time.Time

// snapshotMsg carries one poll result back into the update loop.
type snapshotMsg struct {
	snap Snapshot
	err  error
}

// Pane styles.
var (
	headerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("4")).
			Padding(0, 1).
			Bold(true)

	kpiStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("6")).
			Padding(0, 1)

	rowsStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("2")).
			Padding(0, 1)

	statsStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("5")).
			Padding(0, 1)

	anomalyStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("1")).
			Padding(0, 1)

	anomalyRowStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("1")).
			Bold(true)

	titleStyle = lipgloss.NewStyle().Bold(true)

	errStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
)

// Model is the bubbletea model for the live dashboard.
type Model struct {
	querier Querier
	clock   clock.Clock
	opts    Options

	snap     Snapshot
	haveSnap bool
	lastErr  error

	width  int
	height int
}

// New builds a dashboard model. The store is not touched until Init.
func New(q Querier, clk clock.Clock, opts Options) Model {
	if clk == nil {
		clk = clock.Real()
	}
	return Model{
		querier: q,
		clock:   clk,
		opts:    opts.withDefaults(),
	}
}

// Init starts the first poll and the refresh ticker.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.fetchCmd(), m.tickCmd())
}

// fetchCmd polls the store off the update loop.
func (m Model) fetchCmd() tea.Cmd {
	return func() tea.Msg {
		snap, err := fetchSnapshot(context.Background(), m.querier, m.clock, m.opts)
		return snapshotMsg{snap: snap, err: err}
	}
}

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.opts.Refresh, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		return m, tea.Batch(m.fetchCmd(), m.tickCmd())

	case snapshotMsg:
		if msg.err != nil {
			// Keep the last good snapshot on screen.
			m.lastErr = msg.err
			return m, nil
		}
		m.snap = msg.snap
		m.haveSnap = true
		m.lastErr = nil
	}

	return m, nil
}

// View renders the dashboard.
func (m Model) View() string {
	device := m.opts.DeviceID
	if device == "" {
		device = "all devices"
	}
	header := headerStyle.Render(fmt.Sprintf("Greenhouse Live Dashboard  •  %s", device))

	if !m.haveSnap {
		status := "waiting for first snapshot…"
		if m.lastErr != nil {
			status = errStyle.Render(fmt.Sprintf("waiting for database: %v", m.lastErr))
		}
		return lipgloss.JoinVertical(lipgloss.Left, header, status, m.footer())
	}

	right := lipgloss.JoinVertical(lipgloss.Left, m.kpiPane(), m.statsPane())
	main := lipgloss.JoinHorizontal(lipgloss.Top, m.rowsPane(), right)

	parts := []string{header, main, m.anomalyPane()}
	if m.lastErr != nil {
		parts = append(parts, errStyle.Render(fmt.Sprintf("stale: %v", m.lastErr)))
	}
	parts = append(parts, m.footer())
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) footer() string {
	return lipgloss.NewStyle().Faint(true).Render("q: quit")
}

func (m Model) kpiPane() string {
	s := m.snap

	lastTS := s.LastTS
	if lastTS == "" {
		lastTS = "—"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", titleStyle.Render("Live KPIs"))
	fmt.Fprintf(&b, "rows       %d\n", s.Total)
	fmt.Fprintf(&b, "anomalies  %d (%.1f%%)\n", s.Anomalies, s.AnomalyPercent())
	fmt.Fprintf(&b, "last ts    %s\n", lastTS)
	fmt.Fprintf(&b, "lag        %s\n", fmtLag(s.Lag, s.HasLag))
	fmt.Fprintf(&b, "last %-4s  %d msgs\n", m.opts.RateWindow, s.RateCount)
	fmt.Fprintf(&b, "dup ts     %d", s.DupTS)
	return kpiStyle.Render(b.String())
}

func (m Model) rowsPane() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", titleStyle.Render("Last rows (newest first)"))
	fmt.Fprintf(&b, "%-20s %9s %9s %9s %9s %5s\n", "ts (UTC)", "ACHP", "PHR", "AWWGV", "PDMRG", "anom")

	if len(m.snap.LastRows) == 0 {
		b.WriteString("no rows yet — start the simulator")
		return rowsStyle.Render(b.String())
	}

	for i, r := range m.snap.LastRows {
		line := fmt.Sprintf("%-20s %9.3f %9.3f %9.3f %9.3f %5d",
			r.TS, r.Metrics.ACHP, r.Metrics.PHR, r.Metrics.AWWGV, r.Metrics.PDMRG,
			boolToInt(r.IsAnomaly))
		if r.IsAnomaly {
			line = anomalyRowStyle.Render(line)
		}
		b.WriteString(line)
		if i < len(m.snap.LastRows)-1 {
			b.WriteByte('\n')
		}
	}
	return rowsStyle.Render(b.String())
}

func (m Model) statsPane() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", titleStyle.Render(fmt.Sprintf("Window stats (last %d)", m.opts.WindowN)))
	fmt.Fprintf(&b, "%-6s %9s %9s %9s %9s\n", "metric", "last", "min", "mean", "max")

	if len(m.snap.Window) == 0 {
		b.WriteString("—")
		return statsStyle.Render(b.String())
	}

	for i, st := range m.snap.Window {
		fmt.Fprintf(&b, "%-6s %9.3f %9.3f %9.3f %9.3f",
			st.Metric, st.Last, st.Min, st.Mean, st.Max)
		if i < len(m.snap.Window)-1 {
			b.WriteByte('\n')
		}
	}
	return statsStyle.Render(b.String())
}

func (m Model) anomalyPane() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", titleStyle.Render("Recent anomalies (newest first)"))

	if len(m.snap.RecentAnomalies) == 0 {
		b.WriteString("—")
		return anomalyStyle.Render(b.String())
	}

	for i, r := range m.snap.RecentAnomalies {
		line := fmt.Sprintf("%-20s %9.3f %9.3f %9.3f %9.3f",
			r.TS, r.Metrics.ACHP, r.Metrics.PHR, r.Metrics.AWWGV, r.Metrics.PDMRG)
		b.WriteString(anomalyRowStyle.Render(line))
		if i < len(m.snap.RecentAnomalies)-1 {
			b.WriteByte('\n')
		}
	}
	return anomalyStyle.Render(b.String())
}

// fmtLag renders ingest lag in the largest sensible unit.
func fmtLag(lag time.Duration, ok bool) string {
	if !ok {
		return "—"
	}
	seconds := lag.Seconds()
	switch {
	case seconds < 60:
		return fmt.Sprintf("%.1fs", seconds)
	case seconds < 3600:
		return fmt.Sprintf("%.1fm", seconds/60)
	default:
		return fmt.Sprintf("%.1fh", seconds/3600)
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
