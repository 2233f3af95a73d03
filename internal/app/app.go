package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/notification-sync/internal/api"
	"github.com/nhle/notification-sync/internal/inbox"
	"github.com/nhle/notification-sync/internal/keys"
	"github.com/nhle/notification-sync/internal/model"
	"github.com/nhle/notification-sync/internal/realtime"
	appsync "github.com/nhle/notification-sync/internal/sync"
	"github.com/nhle/notification-sync/internal/ui"
	"github.com/nhle/notification-sync/internal/ui/command"
	"github.com/nhle/notification-sync/internal/ui/detail"
	helpview "github.com/nhle/notification-sync/internal/ui/help"
	"github.com/nhle/notification-sync/internal/ui/notiflist"
	settingsview "github.com/nhle/notification-sync/internal/ui/settings"
)

// commandTimeout bounds every request issued from the UI.
const commandTimeout = 15 * time.Second

// Syncer is the subset of the sync coordinator the UI drives.
type Syncer interface {
	Refresh(ctx context.Context) error
	LoadMore(ctx context.Context) (bool, error)
	MarkRead(id string) bool
	MarkAllRead()
	Delete(id string) bool
	Settings(ctx context.Context) (*model.NotificationSettings, error)
	UpdateSettings(ctx context.Context, s model.NotificationSettings) (*model.NotificationSettings, error)
	Foreground(ctx context.Context) error
	Logout(ctx context.Context)
	Results() <-chan appsync.Result
}

// Reminders is the subset of the reminder scheduler the UI drives.
type Reminders interface {
	Evaluate(ctx context.Context) (bool, error)
	MarkShown(ctx context.Context) error
	Completion() *model.ProfileCompletion
}

// PushStatus reports the push token registered for this device.
type PushStatus interface {
	ActiveToken(ctx context.Context) (*model.PushToken, error)
}

// Services groups the engine components behind the UI.
type Services struct {
	Store     *inbox.Store
	Sync      Syncer
	Reminders Reminders
	Push      PushStatus
	Feed      *Feed

	// Connection is the realtime state at startup.
	Connection realtime.State
}

type reminderMsg struct {
	show       bool
	completion *model.ProfileCompletion
	err        error
}

type loadMoreDoneMsg struct {
	err error
}

type refreshDoneMsg struct {
	err error
}

type settingsLoadedMsg struct {
	settings *model.NotificationSettings
	err      error
}

type settingsSavedMsg struct {
	err error
}

type pushStatusMsg struct {
	token *model.PushToken
	err   error
}

type foregroundDoneMsg struct {
	err error
}

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewList ViewState = iota
	ViewDetail
	ViewHelp
	ViewSettings
	ViewCommand
)

// Model is the root Bubble Tea model. It routes input to the active view
// and turns engine callbacks into redraws.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	keys         *keys.KeyMap
	svc          Services
	list         notiflist.Model
	detail       detail.Model
	helpView     helpview.Model
	settingsView settingsview.Model
	commandView  command.Model
	ready        bool

	unread        int
	connection    realtime.State
	reminder      bool
	statusMessage string
}

// New creates the root model.
func New(svc Services) Model {
	if svc.Feed == nil {
		svc.Feed = NewFeed()
	}
	k := keys.DefaultKeyMap()
	return Model{
		currentView:  ViewList,
		keys:         k,
		svc:          svc,
		list:         notiflist.New(k, 80, 24),
		detail:       detail.New(k, 80, 24),
		helpView:     helpview.New(k, 80, 24),
		settingsView: settingsview.New(80, 24),
		commandView:  command.New(80, 24),
		connection:   svc.Connection,
	}
}

// Init renders the current inbox and starts listening for engine updates.
func (m Model) Init() tea.Cmd {
	store := m.svc.Store
	return tea.Batch(
		func() tea.Msg { return snapshotMsg{snapshot: store.Snapshot()} },
		m.svc.Feed.waitForSnapshot(),
		m.svc.Feed.waitForEvent(),
		m.svc.Feed.waitForExpiry(),
		waitForResult(m.svc.Sync.Results()),
		m.evaluateReminder(),
	)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		w, h := m.layout.ContentWidth(), m.layout.ContentHeight()
		m.list.SetSize(w, h)
		m.detail.SetSize(w, h)
		m.helpView.SetSize(w, h)
		m.settingsView.SetSize(w, h)
		m.commandView.SetSize(w, h)
		// Forward to active view so huh forms can calculate their layout.
		return m.updateActiveView(msg)

	case snapshotMsg:
		return m, tea.Batch(m.applySnapshot(msg.snapshot), m.svc.Feed.waitForSnapshot())

	case realtimeMsg:
		m.applyEvent(msg.event)
		return m, m.svc.Feed.waitForEvent()

	case authExpiredMsg:
		m.statusMessage = "Session expired, please sign in again"
		return m, tea.Sequence(m.logout(), tea.Quit)

	case resultMsg:
		if msg.result.Err != nil {
			m.statusMessage = fmt.Sprintf("%s failed: %v", msg.result.Op, msg.result.Err)
		}
		return m, waitForResult(m.svc.Sync.Results())

	case reminderMsg:
		if msg.err != nil {
			return m, nil
		}
		m.helpView.SetCompletion(msg.completion)
		if msg.show {
			m.reminder = true
			return m, m.markReminderShown()
		}
		return m, nil

	case pushStatusMsg:
		if msg.err != nil {
			m.setError("reading push status", msg.err)
			return m, nil
		}
		m.helpView.SetPushToken(msg.token)
		return m, nil

	case tea.FocusMsg:
		return m, tea.Batch(m.foreground(), m.evaluateReminder())

	case foregroundDoneMsg:
		m.setError("sync", msg.err)
		return m, nil

	case refreshDoneMsg:
		if msg.err == nil {
			m.statusMessage = ""
		}
		m.setError("refresh", msg.err)
		return m, nil

	case loadMoreDoneMsg:
		m.list.SetLoading(false)
		m.setError("loading more", msg.err)
		return m, nil

	case notiflist.SelectedMsg:
		n, ok := m.svc.Store.Get(msg.ID)
		if !ok {
			m.statusMessage = "No notification " + msg.ID
			return m, nil
		}
		m.svc.Sync.MarkRead(msg.ID)
		n.IsRead = true
		m.detail.SetNotification(n)
		m.previousView = m.currentView
		m.currentView = ViewDetail
		return m, nil

	case notiflist.MarkReadMsg:
		m.svc.Sync.MarkRead(msg.ID)
		return m, nil

	case notiflist.DeleteMsg:
		m.svc.Sync.Delete(msg.ID)
		return m, nil

	case notiflist.LoadMoreMsg:
		m.list.SetLoading(true)
		return m, m.loadMore()

	case detail.BackMsg:
		m.currentView = ViewList
		return m, nil

	case settingsLoadedMsg:
		if msg.err != nil {
			m.currentView = ViewList
			m.setError("loading settings", msg.err)
			return m, nil
		}
		return m, m.settingsView.Start(*msg.settings)

	case settingsview.SubmitMsg:
		m.currentView = ViewList
		return m, m.saveSettings(msg.Settings)

	case settingsview.CancelMsg:
		m.currentView = ViewList
		return m, nil

	case command.RunMsg:
		m.currentView = m.previousView
		return m, m.execute(msg.Command)

	case command.CancelMsg:
		m.currentView = m.previousView
		return m, nil

	case settingsSavedMsg:
		if msg.err == nil {
			m.statusMessage = "Preferences saved"
		}
		m.setError("saving settings", msg.err)
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}

		// Forms own every other key while they are open.
		if m.currentView == ViewSettings || m.currentView == ViewCommand {
			break
		}

		switch {
		case key.Matches(msg, m.keys.Help):
			if m.currentView == ViewHelp {
				m.currentView = m.previousView
				return m, nil
			}
			m.previousView = m.currentView
			m.currentView = ViewHelp
			return m, m.loadPushStatus()

		case m.currentView == ViewHelp && key.Matches(msg, m.keys.Back):
			m.currentView = m.previousView
			return m, nil

		case key.Matches(msg, m.keys.Command):
			m.previousView = m.currentView
			m.currentView = ViewCommand
			return m, m.commandView.Focus()
		}

		if m.currentView != ViewList {
			break
		}

		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit

		case key.Matches(msg, m.keys.Refresh):
			m.statusMessage = "Refreshing..."
			return m, m.refresh()

		case key.Matches(msg, m.keys.MarkAllRead):
			m.svc.Sync.MarkAllRead()
			return m, nil

		case key.Matches(msg, m.keys.Settings):
			m.previousView = m.currentView
			m.currentView = ViewSettings
			return m, m.loadSettings()

		case key.Matches(msg, m.keys.DismissReminder) && m.reminder:
			m.reminder = false
			return m, nil

		case key.Matches(msg, m.keys.Logout):
			return m, tea.Sequence(m.logout(), tea.Quit)
		}
	}

	return m.updateActiveView(msg)
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewList:
		m.list, cmd = m.list.Update(msg)
	case ViewDetail:
		m.detail, cmd = m.detail.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewSettings:
		m.settingsView, cmd = m.settingsView.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	}

	return m, cmd
}

func (m *Model) applySnapshot(s inbox.Snapshot) tea.Cmd {
	m.unread = s.UnreadCount
	cmd := m.list.SetSnapshot(s)

	// Keep an open detail view in step with server-side changes.
	if id := m.detail.CurrentID(); id != "" && m.currentView == ViewDetail {
		if n, ok := m.svc.Store.Get(id); ok {
			m.detail.SetNotification(n)
		} else {
			m.currentView = ViewList
		}
	}
	return cmd
}

func (m *Model) applyEvent(ev realtime.Event) {
	switch ev := ev.(type) {
	case realtime.StateChanged:
		m.connection = ev.State
	case realtime.NotificationReceived:
		m.statusMessage = "New: " + ev.Notification.Title
	case realtime.SocketError:
		if errors.Is(ev.Err, realtime.ErrReconnectExhausted) {
			m.statusMessage = "Offline. Press r to retry"
		}
	}
}

func (m *Model) setError(op string, err error) {
	if err == nil {
		return
	}
	var netErr *api.NetworkError
	if errors.As(err, &netErr) {
		m.statusMessage = op + " failed: server unreachable"
		return
	}
	m.statusMessage = fmt.Sprintf("%s failed: %v", op, err)
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader("Notifications", m.unread, m.connection.String())
	statusBar := m.layout.RenderStatusBar(m.statusLine())

	return m.layout.RenderWithFrame(header, m.renderContent(), statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewList:
		return m.list.View()
	case ViewDetail:
		return m.detail.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewSettings:
		return m.settingsView.View()
	case ViewCommand:
		return m.commandView.View()
	default:
		return ""
	}
}

// statusLine returns the message, reminder or key hints for the status bar.
func (m Model) statusLine() string {
	if m.statusMessage != "" && m.currentView == ViewList {
		return m.statusMessage
	}

	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewDetail:
		return "esc back | j/k scroll"
	case ViewSettings:
		return "space toggle | enter submit | esc cancel"
	case ViewCommand:
		return "tab complete | enter run | esc cancel"
	}

	if m.reminder {
		return reminderLine(m.svc.Reminders.Completion())
	}
	return "q quit | ? help | : command | m read | M read all | d delete | r refresh | s settings"
}

// execute runs a command palette entry.
func (m *Model) execute(c command.Command) tea.Cmd {
	switch c.Name {
	case command.Refresh:
		m.statusMessage = "Refreshing..."
		return m.refresh()
	case command.LoadMore:
		m.list.SetLoading(true)
		return m.loadMore()
	case command.ReadAll:
		m.svc.Sync.MarkAllRead()
	case command.Read:
		if !m.svc.Sync.MarkRead(c.Arg) {
			m.statusMessage = "Nothing to mark read: " + c.Arg
		}
	case command.Open:
		return func() tea.Msg { return notiflist.SelectedMsg{ID: c.Arg} }
	case command.Delete:
		if !m.svc.Sync.Delete(c.Arg) {
			m.statusMessage = "No notification " + c.Arg
		}
	case command.Settings:
		m.previousView = ViewList
		m.currentView = ViewSettings
		return m.loadSettings()
	case command.Logout:
		return tea.Sequence(m.logout(), tea.Quit)
	case command.Quit:
		return tea.Quit
	case command.ClearStatus:
		m.statusMessage = ""
	}
	return nil
}

func reminderLine(pc *model.ProfileCompletion) string {
	if pc == nil {
		return "Complete your profile | ? details | p dismiss"
	}
	return fmt.Sprintf("Your profile is %d%% complete | ? details | p dismiss", pc.Percentage)
}
