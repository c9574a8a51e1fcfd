package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"golang.org/x/term"

	"github.com/wippyai/tbl/codec"
	"github.com/wippyai/tbl/errors"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	nameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

func browseCommand() *cli.Command {
	return &cli.Command{
		Name:      "browse",
		Usage:     "Browse the tables and entries of a TBL file",
		ArgsUsage: "<game> <tblfile>",
		Action: func(c *cli.Context) (err error) {
			input := c.Args().Get(1)
			if input == "" {
				return errors.InvalidInput(errors.PhaseIO, "missing <tblfile> argument")
			}
			if !term.IsTerminal(int(os.Stdout.Fd())) {
				return errors.InvalidInput(errors.PhaseIO, "browse needs a terminal; use tbl2json instead")
			}
			ws, err := openWorkspace(c, c.Args().Get(0))
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, ws.Close()) }()

			data, err := os.ReadFile(input)
			if err != nil {
				return errors.Wrap(errors.PhaseIO, errors.KindNotFound, err, "read "+input)
			}
			tables, err := ws.codec.Decode(c.Context, data)
			if err != nil {
				return err
			}
			_, err = tea.NewProgram(newBrowseModel(input, tables), tea.WithAltScreen()).Run()
			return err
		},
	}
}

type browseState int

const (
	stateSelectTable browseState = iota
	stateShowEntry
)

type browseModel struct {
	err      error
	filename string
	tables   []*codec.Table
	viewport viewport.Model
	table    int
	entry    int
	width    int
	height   int
	state    browseState
}

func newBrowseModel(filename string, tables []*codec.Table) *browseModel {
	return &browseModel{
		filename: filename,
		tables:   tables,
		viewport: viewport.New(80, 20),
		state:    stateSelectTable,
	}
}

func (m *browseModel) Init() tea.Cmd {
	return nil
}

func (m *browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-5, 1)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit

		case "up", "k":
			if m.state == stateSelectTable && m.table > 0 {
				m.table--
				return m, nil
			}

		case "down", "j":
			if m.state == stateSelectTable && m.table < len(m.tables)-1 {
				m.table++
				return m, nil
			}

		case "left", "h":
			if m.state == stateShowEntry && m.entry > 0 {
				m.entry--
				m.showEntry()
			}
			return m, nil

		case "right", "l":
			if m.state == stateShowEntry && m.entry < len(m.tables[m.table].Entries)-1 {
				m.entry++
				m.showEntry()
			}
			return m, nil

		case "enter":
			if m.state == stateSelectTable && len(m.tables) > 0 && len(m.tables[m.table].Entries) > 0 {
				m.entry = 0
				m.state = stateShowEntry
				m.showEntry()
			}
			return m, nil

		case "esc":
			m.state = stateSelectTable
			m.err = nil
			return m, nil
		}
	}

	if m.state == stateShowEntry {
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *browseModel) showEntry() {
	b, err := json.MarshalIndent(m.tables[m.table].Entries[m.entry], "", "    ")
	if err != nil {
		m.err = err
		m.viewport.SetContent("")
		return
	}
	m.err = nil
	m.viewport.SetContent(string(b))
	m.viewport.GotoTop()
}

func (m *browseModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("TBL Browser"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectTable:
		if len(m.tables) == 0 {
			b.WriteString("No tables.\n\n")
			b.WriteString(helpStyle.Render("q quit"))
			return b.String()
		}
		for i, t := range m.tables {
			line := m.formatTable(t)
			if i == m.table {
				b.WriteString(selectedStyle.Render("> " + line))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter open • q quit"))

	case stateShowEntry:
		t := m.tables[m.table]
		b.WriteString(fmt.Sprintf("%s entry %d of %d\n",
			nameStyle.Render(t.Name), m.entry+1, len(t.Entries)))
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(m.viewport.View())
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("←/→ entry • ↑/↓ scroll • esc back • q quit"))
	}
	return b.String()
}

func (m *browseModel) formatTable(t *codec.Table) string {
	return nameStyle.Render(t.Name) + " " + infoStyle.Render(fmt.Sprintf("v%d, %d entries of %d bytes", t.Version, len(t.Entries), t.EntryLength))
}
