package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/xmlwasm/expat/parser"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	nameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	argStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

var tuiCmd = &cobra.Command{
	Use:   "tui <file.xml>",
	Short: "Browse a document's parse events interactively",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		prog := tea.NewProgram(newEventModel(args[0]), tea.WithAltScreen())
		_, err := prog.Run()
		return err
	},
}

type eventLine struct {
	name string
	text string
}

type eventModel struct {
	filename string
	err      error
	events   []eventLine
	filter   textinput.Model
	visible  []int
	selected int
	offset   int
	height   int
	loaded   bool
}

type parsedMsg struct {
	err    error
	events []eventLine
}

func newEventModel(filename string) *eventModel {
	ti := textinput.New()
	ti.Placeholder = "filter events"
	ti.Prompt = "/ "
	ti.Width = 40
	return &eventModel{
		filename: filename,
		filter:   ti,
		height:   24,
	}
}

func (m *eventModel) Init() tea.Cmd {
	return m.parseFile
}

// parseFile runs the whole parse up front; events land in memory and the
// model only browses them.
func (m *eventModel) parseFile() tea.Msg {
	ctx := context.Background()

	wasm, err := loadWasm()
	if err != nil {
		return parsedMsg{err: err}
	}
	rt, err := parser.NewRuntime(ctx, wasm)
	if err != nil {
		return parsedMsg{err: err}
	}
	defer rt.Close(ctx)

	p, err := rt.NewParser(ctx, parserOptions())
	if err != nil {
		return parsedMsg{err: err}
	}
	defer p.Destroy(ctx)

	var events []eventLine
	p.On(parser.Wildcard, func(args ...any) {
		name := args[0].(string)
		events = append(events, eventLine{
			name: name,
			text: formatEvent(name, args[1:], false),
		})
	})

	data, err := os.ReadFile(m.filename)
	if err != nil {
		return parsedMsg{err: err}
	}
	if err := p.Parse(ctx, data, true); err != nil {
		// the error event is already in the list; keep what parsed
		return parsedMsg{events: events, err: err}
	}
	return parsedMsg{events: events}
}

func (m *eventModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.height = msg.Height

	case parsedMsg:
		m.loaded = true
		m.err = msg.err
		m.events = msg.events
		m.refilter()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if !m.filter.Focused() || msg.String() == "ctrl+c" {
				return m, tea.Quit
			}

		case "/":
			if !m.filter.Focused() {
				m.filter.Focus()
				return m, textinput.Blink
			}

		case "esc":
			if m.filter.Focused() {
				m.filter.Blur()
				m.filter.SetValue("")
				m.refilter()
				return m, nil
			}

		case "enter":
			if m.filter.Focused() {
				m.filter.Blur()
				return m, nil
			}

		case "up", "k":
			if !m.filter.Focused() && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if !m.filter.Focused() && m.selected < len(m.visible)-1 {
				m.selected++
			}
		}
	}

	if m.filter.Focused() {
		var cmd tea.Cmd
		m.filter, cmd = m.filter.Update(msg)
		m.refilter()
		return m, cmd
	}
	return m, nil
}

func (m *eventModel) refilter() {
	needle := strings.ToLower(m.filter.Value())
	m.visible = m.visible[:0]
	for i, ev := range m.events {
		if needle == "" || strings.Contains(strings.ToLower(ev.text), needle) {
			m.visible = append(m.visible, i)
		}
	}
	if m.selected >= len(m.visible) {
		m.selected = len(m.visible) - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
}

func (m *eventModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("XML Events"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n\n")

	if !m.loaded {
		b.WriteString("Parsing...")
		return b.String()
	}
	if m.err != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n\n")
	}

	rows := m.height - 7
	if rows < 1 {
		rows = 1
	}
	if m.selected < m.offset {
		m.offset = m.selected
	}
	if m.selected >= m.offset+rows {
		m.offset = m.selected - rows + 1
	}

	for i := m.offset; i < len(m.visible) && i < m.offset+rows; i++ {
		ev := m.events[m.visible[i]]
		line := renderEventLine(ev)
		if i == m.selected {
			line = selectedStyle.Render("> " + ev.text)
		} else {
			line = "  " + line
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	if len(m.visible) == 0 {
		b.WriteString(helpStyle.Render("  no events match"))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.filter.View())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("↑/↓ select • / filter • esc clear • q quit"))
	return b.String()
}

func renderEventLine(ev eventLine) string {
	name, rest, found := strings.Cut(ev.text, " ")
	style := nameStyle
	if ev.name == parser.EventError {
		style = errorStyle
	}
	if !found {
		return style.Render(name)
	}
	return style.Render(name) + " " + argStyle.Render(rest)
}
