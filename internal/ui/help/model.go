package help

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/notification-sync/internal/keys"
	"github.com/nhle/notification-sync/internal/model"
	"github.com/nhle/notification-sync/internal/theme"
)

// Model is the help overlay. It also shows why the profile reminder is
// displayed, since the reminder links here.
type Model struct {
	keys       *keys.KeyMap
	help       help.Model
	completion *model.ProfileCompletion
	push       *model.PushToken
	pushKnown  bool
	width      int
	height     int
}

// New creates a new help view model.
func New(k *keys.KeyMap, width, height int) Model {
	h := help.New()
	h.Width = width
	h.ShowAll = true
	return Model{
		keys:   k,
		help:   h,
		width:  width,
		height: height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the help view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	return m, nil
}

// SetCompletion records the latest profile completion for display.
func (m *Model) SetCompletion(pc *model.ProfileCompletion) {
	m.completion = pc
}

// SetPushToken records the active push token; nil means none is
// registered for this device.
func (m *Model) SetPushToken(t *model.PushToken) {
	m.push = t
	m.pushKnown = true
}

// View renders the help overlay.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	sections := []string{
		titleStyle.Render("Keyboard Shortcuts"),
		m.help.View(m.keys),
	}

	if pc := m.completion; pc != nil && !pc.IsComplete {
		sections = append(sections, "",
			titleStyle.Render("Profile"),
			theme.ReminderStyle.Render(completionLine(*pc)),
		)
	}

	if m.pushKnown {
		sections = append(sections, "",
			titleStyle.Render("Push"),
			pushLine(m.push),
		)
	}

	return theme.PanelStyle.
		Width(max(m.width-4, 0)).
		Height(max(m.height-4, 0)).
		Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

// SetSize updates the help view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = width - 4
}

func completionLine(pc model.ProfileCompletion) string {
	line := fmt.Sprintf("Your profile is %d%% complete.", pc.Percentage)
	if len(pc.MissingFields) > 0 {
		line += " Missing: " + strings.Join(pc.MissingFields, ", ")
	}
	return line
}

func pushLine(t *model.PushToken) string {
	if t == nil {
		return "No push token registered on this device."
	}
	device := t.DeviceID
	if len(device) > 8 {
		device = device[:8]
	}
	return fmt.Sprintf("Registered for %s (device %s).", t.Platform, device)
}
