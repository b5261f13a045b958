// Copyright (c) 2026 Repofleet Authors
// Repofleet - shared file propagation for repository fleets
// This source code is licensed under the MIT license found in the LICENSE file.

// Package tui provides the interactive terminal dashboard for Repofleet.
// It shows the fleet roster with each repository's sync state and recent
// drift findings, backed by the same database layer the CLI uses.
package tui // import "github.com/repofleet/repofleet/internal/tui"

import (
	"fmt"
	"os"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/repofleet/repofleet/internal/db"
	"github.com/repofleet/repofleet/internal/model"
	"github.com/repofleet/repofleet/internal/sync"
)

var (
	titleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Bold(true).Padding(0, 1)
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Padding(0, 1)
	flashStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Padding(0, 1)
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Padding(0, 1)
	dirtyCell   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	staleCell   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

// fleetLoadedMsg carries a fresh snapshot of the fleet from the database.
type fleetLoadedMsg struct {
	repos []model.Repository
	rev   *model.ManifestRevision
	err   error
}

// driftLoadedMsg carries the recent drift events for the selected repository.
type driftLoadedMsg struct {
	repo   string
	events []model.DriftEvent
	err    error
}

// flashMsg shows a transient one-line notice in the status bar.
type flashMsg string

type dashboardModel struct {
	fleet        sync.Fleet
	manifestPath string

	table   table.Model
	spinner spinner.Model
	loading bool

	repos []model.Repository
	rev   *model.ManifestRevision

	drift      []model.DriftEvent
	driftRepo  string
	showDrift  bool
	flash      string
	err        error
	width      int
	height     int
}

// Run starts the interactive dashboard. It blocks until the user quits.
func Run(fleet sync.Fleet, manifestPath string) {
	m := newDashboard(fleet, manifestPath)
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error running dashboard: %v\n", err)
		os.Exit(1)
	}
}

func newDashboard(fleet sync.Fleet, manifestPath string) dashboardModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	t := table.New(
		table.WithColumns(fleetColumns(80)),
		table.WithFocused(true),
		table.WithHeight(12),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.Bold(true).Foreground(lipgloss.Color("14"))
	styles.Selected = styles.Selected.Foreground(lipgloss.Color("0")).Background(lipgloss.Color("14"))
	t.SetStyles(styles)

	return dashboardModel{
		fleet:        fleet,
		manifestPath: manifestPath,
		table:        t,
		spinner:      sp,
		loading:      true,
	}
}

func fleetColumns(width int) []table.Column {
	nameWidth := width - 46
	if nameWidth < 20 {
		nameWidth = 20
	}
	return []table.Column{
		{Title: "Repository", Width: nameWidth},
		{Title: "Serial", Width: 6},
		{Title: "State", Width: 10},
		{Title: "Last Sync", Width: 16},
	}
}

func (m dashboardModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, loadFleet)
}

// loadFleet reads the roster and active revision from the database.
func loadFleet() tea.Msg {
	repos, err := db.GetAllRepositories()
	if err != nil {
		return fleetLoadedMsg{err: err}
	}
	rev, err := db.GetActiveManifestRevision()
	if err != nil {
		return fleetLoadedMsg{err: err}
	}
	return fleetLoadedMsg{repos: repos, rev: rev}
}

// loadDrift reads the recent drift events for one repository.
func loadDrift(repo model.Repository) tea.Cmd {
	return func() tea.Msg {
		events, err := db.GetDriftEventsForRepository(repo.ID)
		if err != nil {
			return driftLoadedMsg{err: err}
		}
		if len(events) > 8 {
			events = events[:8]
		}
		return driftLoadedMsg{repo: repo.String(), events: events}
	}
}

func (m dashboardModel) selectedRepo() *model.Repository {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.repos) {
		return nil
	}
	return &m.repos[idx]
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetColumns(fleetColumns(msg.Width))
		m.table.SetHeight(msg.Height - 7)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			m.loading = true
			m.showDrift = false
			m.flash = ""
			return m, tea.Batch(m.spinner.Tick, loadFleet)
		case "c":
			if repo := m.selectedRepo(); repo != nil {
				if err := clipboard.WriteAll(repo.RemoteURL); err == nil {
					m.flash = "Copied " + repo.RemoteURL
				} else {
					m.flash = "Clipboard unavailable"
				}
			}
			return m, nil
		case "enter":
			if repo := m.selectedRepo(); repo != nil {
				m.showDrift = true
				return m, loadDrift(*repo)
			}
			return m, nil
		case "esc":
			m.showDrift = false
			return m, nil
		}

	case fleetLoadedMsg:
		m.loading = false
		m.err = msg.err
		if msg.err == nil {
			m.repos = msg.repos
			m.rev = msg.rev
			m.table.SetRows(m.rows())
		}
		return m, nil

	case driftLoadedMsg:
		m.err = msg.err
		m.drift = msg.events
		m.driftRepo = msg.repo
		return m, nil

	case flashMsg:
		m.flash = string(msg)
		return m, nil

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m dashboardModel) rows() []table.Row {
	rows := make([]table.Row, 0, len(m.repos))
	for _, r := range m.repos {
		state := "clean"
		switch {
		case !r.IsActive:
			state = "disabled"
		case r.IsDirty:
			state = dirtyCell.Render("dirty")
		case m.rev != nil && r.Serial < m.rev.Serial:
			state = staleCell.Render("stale")
		}
		lastSync := "never"
		if r.LastSyncedAt != nil {
			lastSync = r.LastSyncedAt.Local().Format("2006-01-02 15:04")
		}
		rows = append(rows, table.Row{r.String(), fmt.Sprintf("%d", r.Serial), state, lastSync})
	}
	return rows
}

func (m dashboardModel) View() string {
	var b strings.Builder

	title := "Repofleet — " + m.fleet.BaseName
	if m.rev != nil {
		title += fmt.Sprintf("  (revision %d)", m.rev.Serial)
	}
	b.WriteString(titleStyle.Render(title) + "\n\n")

	if m.loading {
		b.WriteString(statusStyle.Render(m.spinner.View()+" loading fleet...") + "\n")
		return b.String()
	}
	if m.err != nil {
		b.WriteString(errStyle.Render("error: "+m.err.Error()) + "\n")
	}

	b.WriteString(m.table.View() + "\n")

	if m.showDrift {
		b.WriteString("\n" + titleStyle.Render("Recent drift — "+m.driftRepo) + "\n")
		if len(m.drift) == 0 {
			b.WriteString(statusStyle.Render("no drift events recorded") + "\n")
		}
		for _, e := range m.drift {
			line := fmt.Sprintf("%s  %-8s %s", e.DetectedAt.Local().Format("2006-01-02 15:04"), e.DriftType, e.Details)
			b.WriteString(statusStyle.Render(line) + "\n")
		}
	}

	if m.flash != "" {
		b.WriteString("\n" + flashStyle.Render(m.flash))
	}
	b.WriteString("\n" + statusStyle.Render("r refresh · enter drift · c copy remote · q quit"))
	return b.String()
}
