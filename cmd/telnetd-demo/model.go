package main

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")).Padding(0, 1)
	footStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Padding(1, 1, 0, 1)
)

type tickMsg time.Time

// adminModel is the bubbletea model for the demo server's admin
// console: a table of live connections refreshed on a timer, styled
// the way the teacher's own TUI layer styles its panes.
type adminModel struct {
	table    table.Model
	reg      *registry
	interval time.Duration
	listen   string
}

func newAdminModel(reg *registry, listen string, interval time.Duration) adminModel {
	columns := []table.Column{
		{Title: "Connection", Width: 36},
		{Title: "Remote", Width: 21},
		{Title: "Uptime", Width: 10},
		{Title: "Bytes In", Width: 10},
		{Title: "Bytes Out", Width: 10},
		{Title: "WriteQ", Width: 8},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithRows(nil),
		table.WithFocused(true),
		table.WithHeight(15),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(styles)

	return adminModel{table: t, reg: reg, interval: interval, listen: listen}
}

func (m adminModel) Init() tea.Cmd {
	return tick(m.interval)
}

func tick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m adminModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case tickMsg:
		m.table.SetRows(m.buildRows())
		return m, tick(m.interval)
	}
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m adminModel) buildRows() []table.Row {
	rows := make([]table.Row, 0)
	for _, r := range m.reg.rows() {
		s := r.stats
		rows = append(rows, table.Row{
			r.id.String(),
			r.remote,
			time.Since(r.accepted).Round(time.Second).String(),
			fmt.Sprintf("%d", s.BytesRead),
			fmt.Sprintf("%d", s.BytesWritten),
			fmt.Sprintf("%d", s.WriteQueueLen),
		})
	}
	return rows
}

func (m adminModel) View() string {
	header := titleStyle.Render(fmt.Sprintf("telnetd-demo — listening on %s", m.listen))
	foot := footStyle.Render(fmt.Sprintf("%d live, %d closed — q to quit", len(m.table.Rows()), m.reg.closedCount()))
	return header + "\n" + m.table.View() + "\n" + foot
}
