package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nhle/notification-sync/internal/api"
	"github.com/nhle/notification-sync/internal/model"
)

// Conn is the subset of *websocket.Conn the manager uses.
type Conn interface {
	ReadJSON(v interface{}) error
	WriteJSON(v interface{}) error
	SetReadDeadline(t time.Time) error
	Close() error
}

// Dialer opens a socket channel.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WebsocketDialer dials with gorilla/websocket.
type WebsocketDialer struct {
	Dialer *websocket.Dialer
	Header http.Header
}

// Dial opens a websocket connection to url.
func (d WebsocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	wd := d.Dialer
	if wd == nil {
		wd = websocket.DefaultDialer
	}
	conn, resp, err := wd.DialContext(ctx, url, d.Header)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, &api.AuthError{StatusCode: resp.StatusCode, Message: "socket handshake rejected"}
		}
		return nil, fmt.Errorf("dialing %s: %w", url, err)
	}
	return conn, nil
}

// envelope is the JSON frame exchanged on the socket.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outbound struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// notificationPayload is the data of an inbound "notification" frame.
type notificationPayload struct {
	Notification model.Notification `json:"notification"`
	UnreadCount  *int               `json:"unreadCount"`
}

// message decodes a frame's data as either a bare string or
// {"message": "..."}.
func message(data json.RawMessage) string {
	var s string
	if json.Unmarshal(data, &s) == nil {
		return s
	}
	var m struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &m) == nil && m.Message != "" {
		return m.Message
	}
	return string(data)
}
