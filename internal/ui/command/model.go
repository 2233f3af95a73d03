package command

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/notification-sync/internal/theme"
)

// Palette command names.
const (
	Refresh     = "refresh"
	LoadMore    = "more"
	ReadAll     = "read-all"
	Read        = "read"
	Open        = "open"
	Delete      = "delete"
	Settings    = "settings"
	Logout      = "logout"
	Quit        = "quit"
	ClearStatus = "clear"
)

// needsArg lists the commands that take a notification id.
var needsArg = []string{Read, Open, Delete}

// Names is every command the palette accepts, used for completion.
var Names = []string{Refresh, LoadMore, ReadAll, Read, Open, Delete, Settings, Logout, Quit, ClearStatus}

// ErrUnknownCommand is returned by Parse for a name not in Names.
var ErrUnknownCommand = errors.New("unknown command")

// Command is a parsed palette line.
type Command struct {
	Name string
	Arg  string
}

// RunMsg is emitted when the user executes a valid command.
type RunMsg struct {
	Command Command
}

// CancelMsg is emitted when the palette is closed without running anything.
type CancelMsg struct{}

// Parse splits a palette line into a command and its argument.
func Parse(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, ErrUnknownCommand
	}

	c := Command{Name: strings.ToLower(fields[0])}
	if c.Name == "q" {
		c.Name = Quit
	}
	if !slices.Contains(Names, c.Name) {
		return Command{}, fmt.Errorf("%w: %s", ErrUnknownCommand, fields[0])
	}

	switch {
	case slices.Contains(needsArg, c.Name) && len(fields) != 2:
		return Command{}, fmt.Errorf("%s takes a notification id", c.Name)
	case !slices.Contains(needsArg, c.Name) && len(fields) != 1:
		return Command{}, fmt.Errorf("%s takes no arguments", c.Name)
	}
	if len(fields) == 2 {
		c.Arg = fields[1]
	}
	return c, nil
}

// Model is the command palette view.
type Model struct {
	input  textinput.Model
	err    error
	width  int
	height int
}

// New creates a new command palette model.
func New(width, height int) Model {
	ti := textinput.New()
	ti.Placeholder = "refresh, read-all, open <id>..."
	ti.Prompt = ": "
	ti.ShowSuggestions = true
	ti.SetSuggestions(Names)
	ti.Width = width - 6

	return Model{
		input:  ti,
		width:  width,
		height: height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages for the command palette.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "enter":
			c, err := Parse(m.input.Value())
			if err != nil {
				m.err = err
				return m, nil
			}
			m.reset()
			return m, func() tea.Msg { return RunMsg{Command: c} }

		case "esc":
			m.reset()
			return m, func() tea.Msg { return CancelMsg{} }
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) reset() {
	m.input.Reset()
	m.input.Blur()
	m.err = nil
}

// View renders the command palette.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	sections := []string{titleStyle.Render("Command Palette"), m.input.View()}
	if m.err != nil {
		sections = append(sections, "", lipgloss.NewStyle().Foreground(theme.ColorRed).Render(m.err.Error()))
	}

	return theme.PanelStyle.
		Width(max(m.width-4, 0)).
		Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

// SetSize updates the command palette dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.input.Width = width - 6
}

// Focus gives keyboard focus to the text input.
func (m *Model) Focus() tea.Cmd {
	return m.input.Focus()
}
