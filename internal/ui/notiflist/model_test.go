package notiflist

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/notification-sync/internal/inbox"
	"github.com/nhle/notification-sync/internal/keys"
	"github.com/nhle/notification-sync/internal/model"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func snapshot(hasMore bool, ns ...model.Notification) inbox.Snapshot {
	return inbox.Snapshot{
		Notifications: ns,
		UnreadCount:   len(ns),
		Cursor:        inbox.Cursor{Page: 1, HasMore: hasMore},
	}
}

func note(id string, age time.Duration) model.Notification {
	return model.Notification{ID: id, Type: model.NotificationLike, Title: "liked " + id, CreatedAt: now.Add(-age)}
}

func press(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func run(t *testing.T, cmd tea.Cmd) tea.Msg {
	t.Helper()
	require.NotNil(t, cmd)
	return cmd()
}

func TestSelectionSurvivesSnapshot(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 20)
	m.SetSnapshot(snapshot(true, note("a", time.Minute), note("b", time.Hour)))
	m.list.Select(1)

	m.SetSnapshot(snapshot(true, note("new", 0), note("a", time.Minute), note("b", time.Hour)))

	n, ok := m.Selected()
	require.True(t, ok)
	assert.Equal(t, "b", n.ID)
}

func TestKeyActions(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 20)
	m.SetSnapshot(snapshot(true, note("a", time.Minute)))

	_, cmd := m.Update(press("m"))
	assert.Equal(t, MarkReadMsg{ID: "a"}, run(t, cmd))

	_, cmd = m.Update(press("d"))
	assert.Equal(t, DeleteMsg{ID: "a"}, run(t, cmd))

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, SelectedMsg{ID: "a"}, run(t, cmd))

	_, cmd = m.Update(press("n"))
	assert.Equal(t, LoadMoreMsg{}, run(t, cmd))
}

func TestLoadMoreSuppressed(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 20)
	m.SetSnapshot(snapshot(false, note("a", time.Minute)))

	_, cmd := m.Update(press("n"))
	assert.Nil(t, cmd, "no more pages")

	m.SetSnapshot(snapshot(true, note("a", time.Minute)))
	m.SetLoading(true)
	_, cmd = m.Update(press("n"))
	assert.Nil(t, cmd, "already loading")
}

func TestRenderLine(t *testing.T) {
	n := note("a", 3*time.Hour)
	n.Actor = &model.Actor{DisplayName: "Bob", Username: "bob"}

	line := renderLine(n, false, now)
	assert.Contains(t, line, "Bob: liked a")
	assert.Contains(t, line, "3h ago")
	assert.Contains(t, line, "●")

	n.IsRead = true
	assert.False(t, strings.Contains(renderLine(n, false, now), "●"))
}
