package realtime

import (
	"errors"

	"github.com/nhle/notification-sync/internal/model"
)

// State is the connection lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateAuthenticating
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// ErrReconnectExhausted is reported once the reconnect loop gives up.
var ErrReconnectExhausted = errors.New("realtime: reconnect attempts exhausted")

// Event is one of StateChanged, NotificationReceived or SocketError.
type Event interface {
	isEvent()
}

// StateChanged reports a lifecycle transition.
type StateChanged struct {
	State State
}

// NotificationReceived reports a realtime delivery that was applied to the
// inbox.
type NotificationReceived struct {
	Notification model.Notification
	UnreadCount  *int
}

// SocketError reports a failed or dropped connection. Err is an
// *api.AuthError when the server rejected the session token.
type SocketError struct {
	Err error
}

func (StateChanged) isEvent()         {}
func (NotificationReceived) isEvent() {}
func (SocketError) isEvent()          {}

// Wire event names.
const (
	eventAuthenticate  = "authenticate"
	eventAuthenticated = "authenticated"
	eventUnauthorized  = "unauthorized"
	eventNotification  = "notification"
	eventError         = "error"
)
