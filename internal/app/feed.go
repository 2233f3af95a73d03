package app

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/notification-sync/internal/inbox"
	"github.com/nhle/notification-sync/internal/realtime"
	appsync "github.com/nhle/notification-sync/internal/sync"
)

// snapshotMsg carries the latest inbox state to the UI.
type snapshotMsg struct {
	snapshot inbox.Snapshot
}

// realtimeMsg carries a connection event to the UI.
type realtimeMsg struct {
	event realtime.Event
}

// authExpiredMsg is sent when the server rejects the session.
type authExpiredMsg struct {
	err error
}

// resultMsg carries the outcome of a background reconciliation.
type resultMsg struct {
	result appsync.Result
}

// Feed bridges engine callbacks onto channels the Bubble Tea runtime can
// wait on. Its publish methods never block, so they are safe to call from
// store listeners and realtime handlers.
type Feed struct {
	snapshots chan inbox.Snapshot
	events    chan realtime.Event
	expired   chan error
}

// NewFeed creates an empty feed.
func NewFeed() *Feed {
	return &Feed{
		snapshots: make(chan inbox.Snapshot, 1),
		events:    make(chan realtime.Event, 32),
		expired:   make(chan error, 1),
	}
}

// PublishSnapshot replaces any snapshot the UI has not consumed yet.
// Calls must be serialized, which inbox.Store listeners are.
func (f *Feed) PublishSnapshot(s inbox.Snapshot) {
	select {
	case <-f.snapshots:
	default:
	}
	select {
	case f.snapshots <- s:
	default:
	}
}

// PublishEvent queues a realtime event, dropping it if the UI is behind.
func (f *Feed) PublishEvent(ev realtime.Event) {
	select {
	case f.events <- ev:
	default:
	}
}

// AuthExpired records that the session was rejected.
func (f *Feed) AuthExpired(err error) {
	select {
	case f.expired <- err:
	default:
	}
}

// Reset discards anything queued, for use before the UI starts.
func (f *Feed) Reset() {
	for {
		select {
		case <-f.snapshots:
		case <-f.events:
		case <-f.expired:
		default:
			return
		}
	}
}

func (f *Feed) waitForSnapshot() tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg{snapshot: <-f.snapshots}
	}
}

func (f *Feed) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		return realtimeMsg{event: <-f.events}
	}
}

func (f *Feed) waitForExpiry() tea.Cmd {
	return func() tea.Msg {
		return authExpiredMsg{err: <-f.expired}
	}
}

// waitForResult returns a tea.Cmd that waits for the next reconciliation
// result. It must be re-issued after every resultMsg.
func waitForResult(results <-chan appsync.Result) tea.Cmd {
	return func() tea.Msg {
		r, ok := <-results
		if !ok {
			return nil
		}
		return resultMsg{result: r}
	}
}
