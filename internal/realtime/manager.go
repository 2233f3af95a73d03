// Package realtime owns the persistent socket channel that delivers
// notifications as they happen.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/nhle/notification-sync/internal/api"
	"github.com/nhle/notification-sync/internal/inbox"
	"github.com/nhle/notification-sync/internal/model"
)

// defaultHandshakeTimeout bounds dial plus authentication.
const defaultHandshakeTimeout = 10 * time.Second

// Sink receives realtime deliveries. *inbox.Store implements it.
type Sink interface {
	Revision() inbox.Revision
	Prepend(n model.Notification, unreadCount *int, rev inbox.Revision) bool
}

// Options configures a Manager.
type Options struct {
	URL              string
	Dialer           Dialer
	Backoff          Backoff
	HandshakeTimeout time.Duration
	Logger           *slog.Logger
}

// Manager drives Disconnected → Connecting → Authenticating → Connected for
// one session token at a time. Every Connect starts a new generation;
// anything a superseded generation produces is dropped.
type Manager struct {
	url              string
	dialer           Dialer
	backoff          Backoff
	handshakeTimeout time.Duration
	log              *slog.Logger
	sink             Sink

	mu     sync.Mutex
	state  State
	token  string
	gen    uint64
	cancel context.CancelFunc

	subs    map[int]func(Event)
	nextSub int
	queue   []Event
	wake    chan struct{}
	done    chan struct{}
	closed  bool

	wg sync.WaitGroup
}

// NewManager creates a disconnected manager that applies deliveries to sink.
func NewManager(sink Sink, opts Options) *Manager {
	if opts.Dialer == nil {
		opts.Dialer = WebsocketDialer{}
	}
	if opts.Backoff.Initial <= 0 || opts.Backoff.Max <= 0 || opts.Backoff.MaxAttempts <= 0 {
		opts.Backoff = DefaultBackoff
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = defaultHandshakeTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	m := &Manager{
		url:              opts.URL,
		dialer:           opts.Dialer,
		backoff:          opts.Backoff,
		handshakeTimeout: opts.HandshakeTimeout,
		log:              opts.Logger.With("component", "realtime"),
		sink:             sink,
		subs:             make(map[int]func(Event)),
		wake:             make(chan struct{}, 1),
		done:             make(chan struct{}),
	}
	go m.dispatch()
	return m
}

// Subscribe registers fn for every event. Handlers run in order on a
// single dispatcher goroutine and may call Connect or Disconnect. The
// returned function removes the subscription.
func (m *Manager) Subscribe(fn func(Event)) (dispose func()) {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Connect opens the channel for token. It is a no-op while a connection
// for the same token is active or being retried; a different token tears
// the current one down first.
func (m *Manager) Connect(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	if m.cancel != nil && m.token == token {
		return
	}

	m.stopLocked()
	m.token = token
	gen := m.gen

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.wg.Add(1)
	go m.run(ctx, gen, token)
}

// Disconnect tears down the channel and cancels any pending reconnect.
// It is safe to call repeatedly.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
}

// Close disconnects, waits for the connection goroutine and stops event
// dispatch.
func (m *Manager) Close() {
	m.mu.Lock()
	m.stopLocked()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()

	m.wg.Wait()
	close(m.done)
}

// stopLocked invalidates the current generation. Callers hold mu.
func (m *Manager) stopLocked() {
	m.gen++
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.setStateLocked(StateDisconnected)
}

// run keeps one generation connected until it is cancelled, the server
// rejects the token, or the backoff budget is spent.
func (m *Manager) run(ctx context.Context, gen uint64, token string) {
	defer m.wg.Done()

	failures := 0
	for {
		connected, err := m.session(ctx, gen, token)
		if ctx.Err() != nil {
			return
		}
		if connected {
			failures = 0
		}

		if api.IsAuthError(err) {
			m.log.Warn("socket authentication rejected", "error", err)
			m.finish(gen, err)
			return
		}

		failures++
		if failures > m.backoff.MaxAttempts {
			m.log.Error("giving up on socket reconnect", "attempts", failures-1, "error", err)
			m.finish(gen, fmt.Errorf("%w: %v", ErrReconnectExhausted, err))
			return
		}

		delay := m.backoff.Delay(failures)
		m.log.Warn("socket dropped, reconnecting", "error", err, "attempt", failures, "delay", delay)
		m.report(gen, err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// session dials, authenticates and pumps inbound frames until the
// connection fails. connected reports whether authentication succeeded.
func (m *Manager) session(ctx context.Context, gen uint64, token string) (connected bool, err error) {
	if !m.setState(gen, StateConnecting) {
		return false, context.Canceled
	}

	hctx, cancel := context.WithTimeout(ctx, m.handshakeTimeout)
	conn, err := m.dialer.Dial(hctx, m.url)
	cancel()
	if err != nil {
		return false, err
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if !m.setState(gen, StateAuthenticating) {
		return false, context.Canceled
	}
	if err := m.authenticate(conn, token); err != nil {
		return false, err
	}
	if !m.setState(gen, StateConnected) {
		return false, context.Canceled
	}
	m.log.Info("socket connected")

	for {
		var env envelope
		if err := conn.ReadJSON(&env); err != nil {
			return true, fmt.Errorf("reading socket: %w", err)
		}
		if err := m.handle(gen, env); err != nil {
			return true, err
		}
	}
}

// authenticate sends the session token and waits for the server's verdict.
func (m *Manager) authenticate(conn Conn, token string) error {
	if err := conn.WriteJSON(outbound{Event: eventAuthenticate, Data: token}); err != nil {
		return fmt.Errorf("sending authenticate: %w", err)
	}
	if err := conn.SetReadDeadline(time.Now().Add(m.handshakeTimeout)); err != nil {
		return fmt.Errorf("setting handshake deadline: %w", err)
	}

	for {
		var env envelope
		if err := conn.ReadJSON(&env); err != nil {
			return fmt.Errorf("awaiting authentication: %w", err)
		}
		switch env.Event {
		case eventAuthenticated:
			return conn.SetReadDeadline(time.Time{})
		case eventUnauthorized:
			return &api.AuthError{StatusCode: 401, Message: message(env.Data)}
		case eventError:
			return fmt.Errorf("server error during authentication: %s", message(env.Data))
		default:
			m.log.Debug("ignoring frame before authentication", "event", env.Event)
		}
	}
}

// handle dispatches one inbound frame. A server error frame ends the
// connection so the reconnect loop takes over.
func (m *Manager) handle(gen uint64, env envelope) error {
	switch env.Event {
	case eventNotification:
		var p notificationPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			m.log.Warn("malformed notification frame", "error", err)
			return nil
		}
		if p.Notification.ID == "" {
			m.log.Warn("notification frame without id")
			return nil
		}
		m.deliver(gen, p)

	case eventError:
		return fmt.Errorf("server error event: %s", message(env.Data))

	default:
		m.log.Debug("ignoring socket event", "event", env.Event)
	}
	return nil
}

// deliver applies a notification to the sink unless its generation has
// been superseded. The check and the apply happen under one lock so a
// concurrent Connect or Disconnect cannot slip between them.
func (m *Manager) deliver(gen uint64, p notificationPayload) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen {
		m.log.Debug("dropping notification from superseded connection", "id", p.Notification.ID)
		return
	}
	m.sink.Prepend(p.Notification, p.UnreadCount, m.sink.Revision())
	m.emitLocked(NotificationReceived{Notification: p.Notification, UnreadCount: p.UnreadCount})
}

// report emits a SocketError for a still-current generation and marks it
// disconnected while it waits to retry.
func (m *Manager) report(gen uint64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		return
	}
	m.setStateLocked(StateDisconnected)
	m.emitLocked(SocketError{Err: err})
}

// finish ends a generation that will not retry.
func (m *Manager) finish(gen uint64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		return
	}
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.setStateLocked(StateDisconnected)
	m.emitLocked(SocketError{Err: err})
}

func (m *Manager) setState(gen uint64, s State) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		return false
	}
	m.setStateLocked(s)
	return true
}

func (m *Manager) setStateLocked(s State) {
	if m.state == s {
		return
	}
	m.state = s
	m.emitLocked(StateChanged{State: s})
}

// emitLocked queues ev for the dispatcher. Callers hold mu.
func (m *Manager) emitLocked(ev Event) {
	m.queue = append(m.queue, ev)
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// dispatch delivers queued events to subscribers in order.
func (m *Manager) dispatch() {
	for {
		select {
		case <-m.done:
			return
		case <-m.wake:
		}

		for {
			m.mu.Lock()
			if len(m.queue) == 0 {
				m.mu.Unlock()
				break
			}
			ev := m.queue[0]
			m.queue = m.queue[1:]
			subs := make([]func(Event), 0, len(m.subs))
			for _, fn := range m.subs {
				subs = append(subs, fn)
			}
			m.mu.Unlock()

			for _, fn := range subs {
				fn(ev)
			}
		}
	}
}
