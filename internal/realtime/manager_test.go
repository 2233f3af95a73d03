package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/notification-sync/internal/api"
	"github.com/nhle/notification-sync/internal/inbox"
	"github.com/nhle/notification-sync/internal/model"
)

const waitFor = 2 * time.Second
const tick = 5 * time.Millisecond

// wsServer is a websocket endpoint that speaks the authenticate handshake.
type wsServer struct {
	srv      *httptest.Server
	upgrader websocket.Upgrader
	accept   func(token string) bool

	mu     sync.Mutex
	tokens []string
	conns  []*websocket.Conn
}

func newWSServer(t *testing.T, accept func(string) bool) *wsServer {
	t.Helper()
	s := &wsServer{accept: accept}
	s.srv = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *wsServer) url() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http")
}

func (s *wsServer) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	var env envelope
	if err := conn.ReadJSON(&env); err != nil || env.Event != eventAuthenticate {
		conn.Close()
		return
	}
	var token string
	_ = json.Unmarshal(env.Data, &token)

	s.mu.Lock()
	s.tokens = append(s.tokens, token)
	s.mu.Unlock()

	if !s.accept(token) {
		_ = conn.WriteJSON(outbound{Event: eventUnauthorized, Data: "invalid token"})
		conn.Close()
		return
	}
	_ = conn.WriteJSON(outbound{Event: eventAuthenticated})

	s.mu.Lock()
	s.conns = append(s.conns, conn)
	s.mu.Unlock()
}

func (s *wsServer) seenTokens() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.tokens...)
}

func (s *wsServer) connCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// latest waits for the server to have finished the handshake and returns
// the newest connection.
func (s *wsServer) latest(t *testing.T) *websocket.Conn {
	t.Helper()
	var conn *websocket.Conn
	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		if len(s.conns) == 0 {
			return false
		}
		conn = s.conns[len(s.conns)-1]
		return true
	}, waitFor, tick)
	return conn
}

func fastBackoff() Backoff {
	return Backoff{Initial: time.Millisecond, Max: 4 * time.Millisecond, MaxAttempts: 3}
}

func newTestManager(t *testing.T, store *inbox.Store, opts Options) *Manager {
	t.Helper()
	if opts.Backoff == (Backoff{}) {
		opts.Backoff = fastBackoff()
	}
	m := NewManager(store, opts)
	t.Cleanup(m.Close)
	return m
}

// recorder collects events from a subscription.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) record(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) socketErrors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []error
	for _, ev := range r.events {
		if se, ok := ev.(SocketError); ok {
			out = append(out, se.Err)
		}
	}
	return out
}

func (r *recorder) states() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []State
	for _, ev := range r.events {
		if sc, ok := ev.(StateChanged); ok {
			out = append(out, sc.State)
		}
	}
	return out
}

func TestConnectAuthenticatesAndDeliversToStore(t *testing.T) {
	srv := newWSServer(t, func(string) bool { return true })
	store := inbox.New()
	m := newTestManager(t, store, Options{URL: srv.url()})
	rec := &recorder{}
	m.Subscribe(rec.record)

	m.Connect("session-1")
	require.Eventually(t, func() bool { return m.State() == StateConnected }, waitFor, tick)
	assert.Equal(t, []string{"session-1"}, srv.seenTokens())

	err := srv.latest(t).WriteJSON(map[string]any{
		"event": "notification",
		"data": map[string]any{
			"notification": map[string]any{
				"id":        "n1",
				"type":      "LIKE",
				"title":     "New like",
				"isRead":    false,
				"createdAt": "2026-03-01T12:00:00Z",
			},
			"unreadCount": 3,
		},
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return store.UnreadCount() == 3 }, waitFor, tick)
	n, ok := store.Get("n1")
	require.True(t, ok)
	assert.Equal(t, model.NotificationLike, n.Type)

	require.Eventually(t, func() bool {
		states := rec.states()
		return len(states) >= 3 && states[len(states)-1] == StateConnected
	}, waitFor, tick)
	assert.Equal(t, []State{StateConnecting, StateAuthenticating, StateConnected}, rec.states())
}

func TestConnectSameTokenIsNoop(t *testing.T) {
	srv := newWSServer(t, func(string) bool { return true })
	m := newTestManager(t, inbox.New(), Options{URL: srv.url()})

	m.Connect("tok")
	require.Eventually(t, func() bool { return m.State() == StateConnected }, waitFor, tick)
	m.Connect("tok")
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, []string{"tok"}, srv.seenTokens())
	assert.Equal(t, StateConnected, m.State())
}

func TestConnectNewTokenReplacesSession(t *testing.T) {
	srv := newWSServer(t, func(string) bool { return true })
	m := newTestManager(t, inbox.New(), Options{URL: srv.url()})

	m.Connect("alice")
	require.Eventually(t, func() bool { return m.State() == StateConnected }, waitFor, tick)
	m.Connect("bob")
	require.Eventually(t, func() bool {
		return m.State() == StateConnected && len(srv.seenTokens()) == 2
	}, waitFor, tick)

	assert.Equal(t, []string{"alice", "bob"}, srv.seenTokens())
}

func TestReconnectsAfterServerDrop(t *testing.T) {
	srv := newWSServer(t, func(string) bool { return true })
	m := newTestManager(t, inbox.New(), Options{URL: srv.url()})
	rec := &recorder{}
	m.Subscribe(rec.record)

	m.Connect("tok")
	require.Eventually(t, func() bool { return m.State() == StateConnected }, waitFor, tick)
	srv.latest(t).Close()

	require.Eventually(t, func() bool {
		return len(srv.seenTokens()) == 2 && m.State() == StateConnected
	}, waitFor, tick)
	assert.NotEmpty(t, rec.socketErrors())
}

func TestUnauthorizedIsNotRetried(t *testing.T) {
	srv := newWSServer(t, func(string) bool { return false })
	m := newTestManager(t, inbox.New(), Options{URL: srv.url()})
	rec := &recorder{}
	m.Subscribe(rec.record)

	m.Connect("expired")
	require.Eventually(t, func() bool { return len(rec.socketErrors()) == 1 }, waitFor, tick)
	time.Sleep(50 * time.Millisecond)

	assert.True(t, api.IsAuthError(rec.socketErrors()[0]))
	assert.Equal(t, []string{"expired"}, srv.seenTokens())
	assert.Equal(t, StateDisconnected, m.State())
}

// fakeDialer fails or hands out scripted connections.
type fakeDialer struct {
	mu    sync.Mutex
	dials int
	next  func(n int) (Conn, error)
}

func (d *fakeDialer) Dial(ctx context.Context, _ string) (Conn, error) {
	d.mu.Lock()
	d.dials++
	n := d.dials
	d.mu.Unlock()
	return d.next(n)
}

func (d *fakeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

// fakeConn accepts authentication immediately and then blocks on in.
type fakeConn struct {
	in        chan []byte
	closed    chan struct{}
	closeOnce sync.Once
	authed    bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{in: make(chan []byte, 8), closed: make(chan struct{})}
}

func (c *fakeConn) ReadJSON(v interface{}) error {
	if !c.authed {
		c.authed = true
		return json.Unmarshal([]byte(`{"event":"authenticated"}`), v)
	}
	select {
	case b := <-c.in:
		return json.Unmarshal(b, v)
	case <-c.closed:
		return io.EOF
	}
}

func (c *fakeConn) WriteJSON(interface{}) error { return nil }

func (c *fakeConn) SetReadDeadline(time.Time) error { return nil }

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func TestSupersededGenerationIsDiscarded(t *testing.T) {
	store := inbox.New()
	dialer := &fakeDialer{next: func(int) (Conn, error) { return newFakeConn(), nil }}
	m := newTestManager(t, store, Options{Dialer: dialer})

	m.Connect("first")
	require.Eventually(t, func() bool { return m.State() == StateConnected }, waitFor, tick)

	m.mu.Lock()
	oldGen := m.gen
	m.mu.Unlock()

	m.Connect("second")
	three := 3
	m.deliver(oldGen, notificationPayload{
		Notification: model.Notification{ID: "stale", CreatedAt: time.Now()},
		UnreadCount:  &three,
	})

	_, ok := store.Get("stale")
	assert.False(t, ok)
	assert.Equal(t, 0, store.UnreadCount())
}

func TestReconnectGivesUpAfterMaxAttempts(t *testing.T) {
	dialer := &fakeDialer{next: func(int) (Conn, error) { return nil, errors.New("connection refused") }}
	m := newTestManager(t, inbox.New(), Options{Dialer: dialer})
	rec := &recorder{}
	m.Subscribe(rec.record)

	m.Connect("tok")

	require.Eventually(t, func() bool {
		errs := rec.socketErrors()
		return len(errs) > 0 && errors.Is(errs[len(errs)-1], ErrReconnectExhausted)
	}, waitFor, tick)
	time.Sleep(20 * time.Millisecond)

	// One initial attempt plus MaxAttempts reconnects.
	assert.Equal(t, 4, dialer.count())
	assert.Equal(t, StateDisconnected, m.State())
}

func TestDisconnectCancelsBackoff(t *testing.T) {
	dialer := &fakeDialer{next: func(int) (Conn, error) { return nil, errors.New("connection refused") }}
	m := newTestManager(t, inbox.New(), Options{
		Dialer:  dialer,
		Backoff: Backoff{Initial: time.Hour, Max: time.Hour, MaxAttempts: 5},
	})
	rec := &recorder{}
	m.Subscribe(rec.record)

	m.Connect("tok")
	require.Eventually(t, func() bool { return len(rec.socketErrors()) == 1 }, waitFor, tick)

	m.Disconnect()
	m.Disconnect()

	done := make(chan struct{})
	go func() {
		m.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(waitFor):
		t.Fatal("reconnect loop still waiting after Disconnect")
	}
	assert.Equal(t, 1, dialer.count())
	assert.Equal(t, StateDisconnected, m.State())
}

func TestSubscriptionDisposer(t *testing.T) {
	dialer := &fakeDialer{next: func(int) (Conn, error) { return newFakeConn(), nil }}
	m := newTestManager(t, inbox.New(), Options{Dialer: dialer})
	rec := &recorder{}
	dispose := m.Subscribe(rec.record)
	dispose()

	m.Connect("tok")
	require.Eventually(t, func() bool { return m.State() == StateConnected }, waitFor, tick)
	time.Sleep(20 * time.Millisecond)

	assert.Empty(t, rec.states())
}

func TestBackoffDelay(t *testing.T) {
	b := Backoff{Initial: time.Second, Max: 30 * time.Second, MaxAttempts: 8}

	assert.Equal(t, time.Second, b.Delay(1))
	assert.Equal(t, 2*time.Second, b.Delay(2))
	assert.Equal(t, 16*time.Second, b.Delay(5))
	assert.Equal(t, 30*time.Second, b.Delay(6))
	assert.Equal(t, 30*time.Second, b.Delay(100))
}

func TestBackoffDelayNeverWrapsAround(t *testing.T) {
	// 3s doubled 31 times overflows int64 nanoseconds.
	b := Backoff{Initial: 3 * time.Second, Max: 30 * time.Second, MaxAttempts: 64}

	for attempt := 1; attempt <= 64; attempt++ {
		d := b.Delay(attempt)
		assert.Positive(t, d, "attempt %d", attempt)
		assert.LessOrEqual(t, d, b.Max, "attempt %d", attempt)
		if attempt > 1 {
			assert.GreaterOrEqual(t, d, b.Delay(attempt-1), "attempt %d", attempt)
		}
	}
	assert.Equal(t, 30*time.Second, b.Delay(32))
}

func notificationFrame(id string) map[string]any {
	return map[string]any{
		"event": "notification",
		"data": map[string]any{
			"notification": map[string]any{"id": id, "type": "LIKE", "createdAt": "2026-03-01T12:00:00Z"},
		},
	}
}

func TestServerErrorFrameReconnects(t *testing.T) {
	srv := newWSServer(t, func(string) bool { return true })
	store := inbox.New()
	m := newTestManager(t, store, Options{URL: srv.url()})
	rec := &recorder{}
	m.Subscribe(rec.record)

	m.Connect("tok")
	require.Eventually(t, func() bool { return m.State() == StateConnected }, waitFor, tick)
	first := srv.latest(t)

	require.NoError(t, first.WriteJSON(map[string]any{"event": "error", "data": "internal failure"}))

	require.Eventually(t, func() bool {
		return len(srv.seenTokens()) == 2 && len(rec.states()) == 7
	}, waitFor, tick)
	assert.Equal(t, StateConnected, m.State())
	assert.Equal(t, []State{
		StateConnecting, StateAuthenticating, StateConnected,
		StateDisconnected,
		StateConnecting, StateAuthenticating, StateConnected,
	}, rec.states())
	require.Len(t, rec.socketErrors(), 1)
	assert.Contains(t, rec.socketErrors()[0].Error(), "internal failure")

	// Only the new socket feeds the store.
	_ = first.WriteJSON(notificationFrame("stale"))
	require.Eventually(t, func() bool { return srv.connCount() == 2 }, waitFor, tick)
	second := srv.latest(t)
	require.NotSame(t, first, second)
	require.NoError(t, second.WriteJSON(notificationFrame("fresh")))

	require.Eventually(t, func() bool {
		_, ok := store.Get("fresh")
		return ok
	}, waitFor, tick)
	_, ok := store.Get("stale")
	assert.False(t, ok)
}
