package notiflist

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/notification-sync/internal/inbox"
	"github.com/nhle/notification-sync/internal/keys"
	"github.com/nhle/notification-sync/internal/model"
	"github.com/nhle/notification-sync/internal/theme"
)

// SelectedMsg is sent when the user opens a notification.
type SelectedMsg struct {
	ID string
}

// MarkReadMsg asks the parent to mark a notification read.
type MarkReadMsg struct {
	ID string
}

// DeleteMsg asks the parent to delete a notification.
type DeleteMsg struct {
	ID string
}

// LoadMoreMsg asks the parent to fetch the next page.
type LoadMoreMsg struct{}

// Model is the notification list view component.
type Model struct {
	list    list.Model
	keys    *keys.KeyMap
	hasMore bool
	loading bool
	width   int
	height  int
}

// New creates an empty list view.
func New(k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, ItemDelegate{}, width, height-1)
	l.Title = "Notifications"
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)

	return Model{
		list:    l,
		keys:    k,
		hasMore: true,
		width:   width,
		height:  height,
	}
}

// SetSnapshot replaces the rendered items with the store contents,
// keeping the cursor on the same notification when it is still present.
func (m *Model) SetSnapshot(s inbox.Snapshot) tea.Cmd {
	selectedID := ""
	if n, ok := m.Selected(); ok {
		selectedID = n.ID
	}

	items := make([]list.Item, len(s.Notifications))
	cursor := -1
	for i, n := range s.Notifications {
		items[i] = Item{Notification: n}
		if n.ID == selectedID {
			cursor = i
		}
	}
	m.hasMore = s.Cursor.HasMore

	cmd := m.list.SetItems(items)
	if cursor >= 0 {
		m.list.Select(cursor)
	}
	return cmd
}

// SetLoading shows or hides the pagination indicator.
func (m *Model) SetLoading(loading bool) {
	m.loading = loading
}

// Selected returns the notification under the cursor.
func (m Model) Selected() (model.Notification, bool) {
	it, ok := m.list.SelectedItem().(Item)
	if !ok {
		return model.Notification{}, false
	}
	return it.Notification, true
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the list view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if cmd, handled := m.handleKey(msg); handled {
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	n, ok := m.Selected()

	switch {
	case key.Matches(msg, m.keys.Select) && ok:
		return emit(SelectedMsg{ID: n.ID}), true

	case key.Matches(msg, m.keys.MarkRead) && ok:
		return emit(MarkReadMsg{ID: n.ID}), true

	case key.Matches(msg, m.keys.Delete) && ok:
		return emit(DeleteMsg{ID: n.ID}), true

	case key.Matches(msg, m.keys.LoadMore):
		return m.loadMore(), true

	case key.Matches(msg, m.keys.Down) && m.atEnd():
		// Scrolling past the last row pulls the next page.
		return m.loadMore(), true
	}
	return nil, false
}

func (m Model) atEnd() bool {
	return len(m.list.Items()) > 0 && m.list.Index() == len(m.list.Items())-1
}

func (m Model) loadMore() tea.Cmd {
	if !m.hasMore || m.loading {
		return nil
	}
	return emit(LoadMoreMsg{})
}

// View renders the list view.
func (m Model) View() string {
	if len(m.list.Items()) == 0 {
		return m.renderEmptyState()
	}

	footer := ""
	switch {
	case m.loading:
		footer = "loading older notifications..."
	case m.hasMore:
		footer = "n for older notifications"
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.list.View(), theme.HelpStyle.Render(footer))
}

// renderEmptyState shows guidance text when the inbox is empty.
func (m Model) renderEmptyState() string {
	style := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	if m.loading {
		return style.Render("Loading notifications...")
	}
	return style.Render("You're all caught up.\n\nPress r to refresh.")
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, max(height-1, 0))
}

func emit(msg tea.Msg) tea.Cmd {
	return func() tea.Msg { return msg }
}
