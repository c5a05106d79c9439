package main

import (
	"bytes"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"repcrep/pkg/command"
	"repcrep/pkg/datamanager"
	"repcrep/pkg/driver"
	"repcrep/pkg/primitives"
	"repcrep/pkg/report"
)

var (
	upStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	downStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

type keyMap struct {
	Step key.Binding
	Quit key.Binding
}

var keys = keyMap{
	Step: key.NewBinding(key.WithKeys("n", "enter", " "), key.WithHelp("n/enter", "step")),
	Quit: key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// model is the bubbletea Elm-architecture model for the interactive
// stepper: each keypress advances the driver by exactly one command,
// re-rendering the site-status table and appending to the scrolling event
// log. Commands are always applied one at a time, never concurrently.
type model struct {
	cmds []command.Command
	pos  int

	d   *driver.Driver
	log bytes.Buffer

	sites    table.Model
	viewport viewport.Model
	width    int
	height   int
	done     bool
	err      error
}

func newModel(cmds []command.Command) *model {
	m := &model{cmds: cmds}
	m.d = driver.New(report.NewReporter(&m.log))
	m.sites = table.New(
		table.WithColumns([]table.Column{
			{Title: "Site", Width: 6},
			{Title: "Status", Width: 8},
		}),
		table.WithHeight(primitives.SiteCount),
	)
	m.viewport = viewport.New(80, 20)
	m.refresh()
	return m
}

func (m *model) Init() tea.Cmd {
	return nil
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - primitives.SiteCount - 4
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Step):
			m.step()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *model) step() {
	if m.done || m.err != nil {
		return
	}
	if m.pos >= len(m.cmds) {
		m.done = true
		return
	}
	if err := m.d.Step(m.cmds[m.pos]); err != nil {
		m.err = err
	}
	m.pos++
	m.refresh()
}

func (m *model) refresh() {
	rows := make([]table.Row, 0, primitives.SiteCount)
	for _, s := range primitives.AllSites() {
		status, _ := m.d.Manager().SiteStatus(s)
		label := upStyle.Render("up")
		if status == datamanager.Down {
			label = downStyle.Render("down")
		}
		rows = append(rows, table.Row{s.String(), label})
	}
	m.sites.SetRows(rows)

	m.viewport.SetContent(m.log.String())
	m.viewport.GotoBottom()
}

func (m *model) View() string {
	status := fmt.Sprintf("command %d/%d", m.pos, len(m.cmds))
	if m.done {
		status = "done — " + status
	}
	if m.err != nil {
		status = fmt.Sprintf("error: %v", m.err)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.sites.View(),
		m.viewport.View(),
		helpStyle.Render(status+"  ·  n/enter: step  ·  q: quit"),
	)
}
