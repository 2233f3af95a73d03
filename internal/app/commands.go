package app

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/notification-sync/internal/model"
)

// refresh returns a command that re-fetches the first page.
func (m Model) refresh() tea.Cmd {
	s := m.svc.Sync
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		return refreshDoneMsg{err: s.Refresh(ctx)}
	}
}

// loadMore returns a command that fetches the next page.
func (m Model) loadMore() tea.Cmd {
	s := m.svc.Sync
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		_, err := s.LoadMore(ctx)
		return loadMoreDoneMsg{err: err}
	}
}

// loadSettings returns a command that reads the server preferences.
func (m Model) loadSettings() tea.Cmd {
	s := m.svc.Sync
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		out, err := s.Settings(ctx)
		return settingsLoadedMsg{settings: out, err: err}
	}
}

// saveSettings returns a command that writes the edited preferences.
func (m Model) saveSettings(in model.NotificationSettings) tea.Cmd {
	s := m.svc.Sync
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		_, err := s.UpdateSettings(ctx, in)
		return settingsSavedMsg{err: err}
	}
}

// foreground returns a command that resyncs the badge and unread count.
func (m Model) foreground() tea.Cmd {
	s := m.svc.Sync
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		return foregroundDoneMsg{err: s.Foreground(ctx)}
	}
}

// logout returns a command that ends the session.
func (m Model) logout() tea.Cmd {
	s := m.svc.Sync
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		s.Logout(ctx)
		return nil
	}
}

// loadPushStatus returns a command that reads the active push token. It
// is a no-op without a registrar.
func (m Model) loadPushStatus() tea.Cmd {
	p := m.svc.Push
	if p == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		token, err := p.ActiveToken(ctx)
		return pushStatusMsg{token: token, err: err}
	}
}

// evaluateReminder returns a command that checks whether the profile
// reminder is due. It is a no-op without a scheduler.
func (m Model) evaluateReminder() tea.Cmd {
	r := m.svc.Reminders
	if r == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		show, err := r.Evaluate(ctx)
		return reminderMsg{show: show, completion: r.Completion(), err: err}
	}
}

// markReminderShown records that the reminder was displayed.
func (m Model) markReminderShown() tea.Cmd {
	r := m.svc.Reminders
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		// A failed write means the reminder may show again next launch.
		_ = r.MarkShown(ctx)
		return nil
	}
}
