package settings

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/notification-sync/internal/model"
	"github.com/nhle/notification-sync/internal/theme"
)

// SubmitMsg carries the edited preferences to the parent.
type SubmitMsg struct {
	Settings model.NotificationSettings
}

// CancelMsg signals the form was closed without saving.
type CancelMsg struct{}

// category maps a multi-select option onto a settings field.
type category struct {
	label string
	key   string
	field func(*model.NotificationSettings) *bool
}

var categories = []category{
	{"Follows", "follows", func(s *model.NotificationSettings) *bool { return &s.Follows }},
	{"Likes", "likes", func(s *model.NotificationSettings) *bool { return &s.Likes }},
	{"Comments", "comments", func(s *model.NotificationSettings) *bool { return &s.Comments }},
	{"Mentions", "mentions", func(s *model.NotificationSettings) *bool { return &s.Mentions }},
	{"Gifts", "gifts", func(s *model.NotificationSettings) *bool { return &s.Gifts }},
	{"Challenges", "challenges", func(s *model.NotificationSettings) *bool { return &s.Challenges }},
	{"Live streams", "liveStreams", func(s *model.NotificationSettings) *bool { return &s.LiveStreams }},
	{"Clubs", "clubs", func(s *model.NotificationSettings) *bool { return &s.Clubs }},
	{"Wallet", "wallet", func(s *model.NotificationSettings) *bool { return &s.Wallet }},
	{"Rewards", "rewards", func(s *model.NotificationSettings) *bool { return &s.Rewards }},
	{"Announcements", "announcements", func(s *model.NotificationSettings) *bool { return &s.Announcements }},
}

// values is what the huh fields bind to. It lives behind a pointer so the
// bindings survive Model copies.
type values struct {
	push     bool
	inApp    bool
	selected []string
}

// Model is the notification preferences form.
type Model struct {
	form   *huh.Form
	values *values
	width  int
	height int
}

// New creates an idle settings view.
func New(width, height int) Model {
	return Model{width: width, height: height}
}

// Start builds the form from the current server preferences.
func (m *Model) Start(s model.NotificationSettings) tea.Cmd {
	m.values = fromSettings(s)
	m.form = m.buildForm()
	return m.form.Init()
}

func (m Model) buildForm() *huh.Form {
	opts := make([]huh.Option[string], len(categories))
	for i, c := range categories {
		opts[i] = huh.NewOption(c.label, c.key)
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Push notifications").
				Description("Deliver notifications to this device").
				Value(&m.values.push),
			huh.NewConfirm().
				Title("In-app notifications").
				Value(&m.values.inApp),
			huh.NewMultiSelect[string]().
				Title("Categories").
				Options(opts...).
				Value(&m.values.selected),
		),
	).WithWidth(m.formWidth())
}

// Update handles messages for the settings form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		out := toSettings(m.values)
		m.form = nil
		return m, func() tea.Msg { return SubmitMsg{Settings: out} }
	case huh.StateAborted:
		m.form = nil
		return m, func() tea.Msg { return CancelMsg{} }
	}
	return m, cmd
}

// View renders the form.
func (m Model) View() string {
	if m.form == nil {
		return lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray).
			Render("Loading settings...")
	}
	return theme.PanelStyle.Render(m.form.View())
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	if m.form != nil {
		m.form = m.form.WithWidth(m.formWidth())
	}
}

func (m Model) formWidth() int {
	return max(min(m.width-8, 72), 20)
}

func fromSettings(s model.NotificationSettings) *values {
	v := &values{push: s.PushEnabled, inApp: s.InAppEnabled}
	for _, c := range categories {
		if *c.field(&s) {
			v.selected = append(v.selected, c.key)
		}
	}
	return v
}

func toSettings(v *values) model.NotificationSettings {
	s := model.NotificationSettings{PushEnabled: v.push, InAppEnabled: v.inApp}
	on := make(map[string]bool, len(v.selected))
	for _, k := range v.selected {
		on[k] = true
	}
	for _, c := range categories {
		*c.field(&s) = on[c.key]
	}
	return s
}
