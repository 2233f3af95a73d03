// Package sync ties the inbox, the realtime channel and the push token to
// the session lifecycle.
package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	gosync "sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nhle/notification-sync/internal/api"
	"github.com/nhle/notification-sync/internal/inbox"
	"github.com/nhle/notification-sync/internal/kv"
	"github.com/nhle/notification-sync/internal/model"
	"github.com/nhle/notification-sync/internal/realtime"
)

// ErrNoSession is returned by operations that need a signed-in user.
var ErrNoSession = errors.New("sync: no active session")

// defaultPageSize is used when Options.PageSize is unset.
const defaultPageSize = 20

// taskTimeout bounds one background reconciliation task.
const taskTimeout = 30 * time.Second

// API is the REST surface the coordinator drives. *api.Client implements it.
type API interface {
	SetToken(token string)
	FetchNotifications(ctx context.Context, page, limit int) (*api.NotificationPage, error)
	UnreadCount(ctx context.Context) (int, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context) error
	DeleteNotification(ctx context.Context, id string) error
	Settings(ctx context.Context) (*model.NotificationSettings, error)
	UpdateSettings(ctx context.Context, s model.NotificationSettings) (*model.NotificationSettings, error)
}

// Realtime is the socket channel. *realtime.Manager implements it.
type Realtime interface {
	Connect(token string)
	Disconnect()
	Subscribe(fn func(realtime.Event)) (dispose func())
}

// Pusher is the push-token lifecycle. *push.Registrar implements it.
type Pusher interface {
	ObtainToken(ctx context.Context) (string, bool, error)
	RegisterToken(ctx context.Context, token string) error
	DeregisterOnLogout(ctx context.Context)
	SetBadgeCount(ctx context.Context, n int) error
	ClearBadge(ctx context.Context) error
}

// Options holds the coordinator's collaborators.
type Options struct {
	Store    *inbox.Store
	API      API
	Realtime Realtime
	Push     Pusher

	// Secrets holds the session token; State holds the session user.
	Secrets kv.Store
	State   kv.Store

	PageSize int
	Logger   *slog.Logger

	// OnAuthExpired is called once when the server rejects the session.
	// It must not block.
	OnAuthExpired func(error)
}

// Result reports the outcome of a background reconciliation task.
type Result struct {
	Op  string
	Err error
}

type task struct {
	op    string
	epoch uint64
	run   func(ctx context.Context) error
}

// Coordinator orchestrates login, logout, pagination and the optimistic
// inbox actions. Call Start before use and Stop when done.
type Coordinator struct {
	store    *inbox.Store
	api      API
	rt       Realtime
	push     Pusher
	secrets  kv.Store
	state    kv.Store
	pageSize int
	log      *slog.Logger

	onAuthExpired func(error)

	mu      gosync.Mutex
	session *model.Session
	expired bool

	loading atomic.Bool
	badge   atomic.Int64

	tasks    chan task
	badgeCh  chan struct{}
	resultCh chan Result
	stopCh   chan struct{}
	wg       gosync.WaitGroup
	running  bool
	unsubs   []func()
}

// New creates a Coordinator.
func New(opts Options) *Coordinator {
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	c := &Coordinator{
		store:         opts.Store,
		api:           opts.API,
		rt:            opts.Realtime,
		push:          opts.Push,
		secrets:       opts.Secrets,
		state:         opts.State,
		pageSize:      opts.PageSize,
		log:           opts.Logger.With("component", "sync"),
		onAuthExpired: opts.OnAuthExpired,
		tasks:         make(chan task, 64),
		badgeCh:       make(chan struct{}, 1),
		resultCh:      make(chan Result, 16),
		stopCh:        make(chan struct{}),
	}
	c.badge.Store(-1)
	return c
}

// Start launches the reconciliation and badge workers and subscribes to
// the store and the realtime channel.
func (c *Coordinator) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return
	}
	c.running = true

	c.unsubs = append(c.unsubs,
		c.store.Subscribe(c.onStoreChange),
		c.rt.Subscribe(c.onRealtimeEvent),
	)

	c.wg.Add(2)
	go c.reconcileLoop()
	go c.badgeLoop()
}

// Stop halts the workers. Queued tasks that have not started are dropped.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	unsubs := c.unsubs
	c.unsubs = nil
	close(c.stopCh)
	c.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	c.wg.Wait()
}

// Results delivers the outcome of every background task. Results are
// dropped when nobody is reading.
func (c *Coordinator) Results() <-chan Result {
	return c.resultCh
}

// Session returns the active session, or nil.
func (c *Coordinator) Session() *model.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	s := *c.session
	return &s
}

// Login starts a session: the inbox is reset, the socket is opened, the
// first page and unread count are fetched, and the push token is
// registered. Only a failed fetch is returned; push problems are logged.
func (c *Coordinator) Login(ctx context.Context, s model.Session) error {
	c.mu.Lock()
	c.persistSession(ctx, s)
	c.store.Reset()
	c.api.SetToken(s.Token)
	c.session = &s
	c.expired = false
	c.rt.Connect(s.Token)
	rev := c.store.Revision()
	c.mu.Unlock()

	c.log.Info("session started", "user", s.User.ID)

	fetchErr := c.fetchFirstPage(ctx, rev)

	if rev.Epoch == c.store.Epoch() {
		c.registerPush(ctx)
	}
	return fetchErr
}

// Resume restores a persisted session. It reports false when there is
// none.
func (c *Coordinator) Resume(ctx context.Context) (bool, error) {
	token, err := c.secrets.Get(ctx, kv.KeySessionToken)
	if errors.Is(err, kv.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading session token: %w", err)
	}

	s := model.Session{Token: token}
	raw, err := c.state.Get(ctx, kv.KeySessionUser)
	switch {
	case err == nil:
		if err := json.Unmarshal([]byte(raw), &s.User); err != nil {
			c.log.Warn("decoding session user", "error", err)
		}
	case !errors.Is(err, kv.ErrNotFound):
		c.log.Warn("reading session user", "error", err)
	}

	return true, c.Login(ctx, s)
}

// Logout ends the session. The push token is retired first, while the
// session token is still accepted by the server. Network and keyring calls
// run without c.mu held, so the session stays readable until teardown.
func (c *Coordinator) Logout(ctx context.Context) {
	c.push.DeregisterOnLogout(ctx)

	c.mu.Lock()
	c.rt.Disconnect()
	c.store.Reset()
	c.api.SetToken("")
	c.session = nil
	c.expired = false
	c.mu.Unlock()

	c.clearSession(ctx)
	if err := c.push.ClearBadge(ctx); err != nil {
		c.log.Warn("clearing badge", "error", err)
	}
	c.log.Info("session ended")
}

// Refresh re-fetches the first page, replacing the list.
func (c *Coordinator) Refresh(ctx context.Context) error {
	if !c.active() {
		return ErrNoSession
	}
	return c.fetchFirstPage(ctx, c.store.Revision())
}

// RefreshUnreadCount re-reads the server's unread total.
func (c *Coordinator) RefreshUnreadCount(ctx context.Context) error {
	if !c.active() {
		return ErrNoSession
	}
	rev := c.store.Revision()
	n, err := c.api.UnreadCount(ctx)
	if err != nil {
		return c.handleErr(err)
	}
	c.store.SetUnreadCount(n, rev)
	return nil
}

// LoadMore fetches the next page. A call made while another is in flight
// is ignored. It reports whether a page was applied.
func (c *Coordinator) LoadMore(ctx context.Context) (bool, error) {
	if !c.active() {
		return false, ErrNoSession
	}
	if !c.loading.CompareAndSwap(false, true) {
		return false, nil
	}
	defer c.loading.Store(false)

	cur := c.store.Cursor()
	if !cur.HasMore {
		return false, nil
	}

	rev := c.store.Revision()
	next := cur.Page + 1
	page, err := c.api.FetchNotifications(ctx, next, c.pageSize)
	if err != nil {
		return false, c.handleErr(err)
	}
	return c.store.AppendPage(toPage(page, next), rev), nil
}

// Loading reports whether a LoadMore is in flight.
func (c *Coordinator) Loading() bool {
	return c.loading.Load()
}

// MarkRead marks a notification read locally and confirms it with the
// server in the background. It reports whether anything changed.
func (c *Coordinator) MarkRead(id string) bool {
	if !c.store.MarkRead(id) {
		return false
	}
	c.enqueue("mark read", func(ctx context.Context) error {
		return c.api.MarkRead(ctx, id)
	})
	return true
}

// MarkAllRead marks everything read locally and on the server.
func (c *Coordinator) MarkAllRead() {
	c.store.MarkAllRead()
	c.enqueue("mark all read", c.api.MarkAllRead)
}

// Delete removes a notification locally and on the server.
func (c *Coordinator) Delete(id string) bool {
	if !c.store.RemoveByID(id) {
		return false
	}
	c.enqueue("delete", func(ctx context.Context) error {
		return c.api.DeleteNotification(ctx, id)
	})
	return true
}

// Settings returns the notification preferences.
func (c *Coordinator) Settings(ctx context.Context) (*model.NotificationSettings, error) {
	s, err := c.api.Settings(ctx)
	if err != nil {
		return nil, c.handleErr(err)
	}
	return s, nil
}

// UpdateSettings stores new notification preferences.
func (c *Coordinator) UpdateSettings(
	ctx context.Context,
	s model.NotificationSettings,
) (*model.NotificationSettings, error) {
	out, err := c.api.UpdateSettings(ctx, s)
	if err != nil {
		return nil, c.handleErr(err)
	}
	return out, nil
}

// Foreground is called when the app returns to the foreground. It mirrors
// the current count onto the badge, re-registers the push token if the OS
// rotated it while backgrounded, and asks the server for a fresh count.
func (c *Coordinator) Foreground(ctx context.Context) error {
	n := c.store.UnreadCount()
	c.badge.Store(int64(n))
	if err := c.push.SetBadgeCount(ctx, n); err != nil {
		c.log.Warn("setting badge", "error", err)
	}
	if !c.active() {
		return nil
	}
	c.registerPush(ctx)
	return c.RefreshUnreadCount(ctx)
}

// fetchFirstPage loads page 1 and the unread count concurrently and
// applies both under rev.
func (c *Coordinator) fetchFirstPage(ctx context.Context, rev inbox.Revision) error {
	var (
		page  *api.NotificationPage
		count int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		page, err = c.api.FetchNotifications(gctx, 1, c.pageSize)
		return err
	})
	g.Go(func() error {
		var err error
		count, err = c.api.UnreadCount(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return c.handleErr(err)
	}

	if !c.store.ReplaceAll(toPage(page, 1), rev) {
		c.log.Debug("discarding first page from previous session")
		return nil
	}
	c.store.SetUnreadCount(count, rev)
	return nil
}

func (c *Coordinator) registerPush(ctx context.Context) {
	token, ok, err := c.push.ObtainToken(ctx)
	if err != nil {
		c.log.Warn("obtaining push token", "error", err)
		return
	}
	if !ok {
		return
	}
	if err := c.push.RegisterToken(ctx, token); err != nil {
		c.log.Warn("registering push token", "error", err)
		_ = c.handleErr(err)
	}
}

func (c *Coordinator) active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session != nil && !c.expired
}

// handleErr invalidates the session on an auth error and returns err.
func (c *Coordinator) handleErr(err error) error {
	if api.IsAuthError(err) {
		c.expire(err)
	}
	return err
}

// expire drops everything belonging to the rejected session. Logging out
// is left to the OnAuthExpired hook.
func (c *Coordinator) expire(err error) {
	c.mu.Lock()
	if c.session == nil || c.expired {
		c.mu.Unlock()
		return
	}
	c.expired = true
	c.rt.Disconnect()
	c.store.Reset()
	c.mu.Unlock()

	c.log.Warn("session rejected by server", "error", err)
	if c.onAuthExpired != nil {
		c.onAuthExpired(err)
	}
}

func (c *Coordinator) persistSession(ctx context.Context, s model.Session) {
	if err := c.secrets.Set(ctx, kv.KeySessionToken, s.Token); err != nil {
		c.log.Warn("persisting session token", "error", err)
	}
	raw, err := json.Marshal(s.User)
	if err != nil {
		c.log.Warn("encoding session user", "error", err)
		return
	}
	if err := c.state.Set(ctx, kv.KeySessionUser, string(raw)); err != nil {
		c.log.Warn("persisting session user", "error", err)
	}
}

func (c *Coordinator) clearSession(ctx context.Context) {
	if err := c.secrets.Delete(ctx, kv.KeySessionToken); err != nil {
		c.log.Warn("clearing session token", "error", err)
	}
	if err := c.state.Delete(ctx, kv.KeySessionUser); err != nil {
		c.log.Warn("clearing session user", "error", err)
	}
}

// onStoreChange runs under the store lock, so it only records the count
// and wakes the badge worker.
func (c *Coordinator) onStoreChange(s inbox.Snapshot) {
	if c.badge.Swap(int64(s.UnreadCount)) == int64(s.UnreadCount) {
		return
	}
	select {
	case c.badgeCh <- struct{}{}:
	default:
	}
}

func (c *Coordinator) onRealtimeEvent(ev realtime.Event) {
	switch ev := ev.(type) {
	case realtime.SocketError:
		if api.IsAuthError(ev.Err) {
			c.expire(ev.Err)
			return
		}
		c.log.Debug("socket error", "error", ev.Err)
	case realtime.StateChanged:
		if ev.State == realtime.StateConnected {
			c.enqueueRefresh("catch up unread count")
		}
	}
}

func (c *Coordinator) enqueue(op string, run func(ctx context.Context) error) {
	c.submit(task{op: op, epoch: c.store.Epoch(), run: func(ctx context.Context) error {
		if err := run(ctx); err != nil {
			// The local effect stays; resync the count the server still holds.
			if !api.IsAuthError(err) {
				if rerr := c.refreshUnread(ctx); rerr != nil {
					c.log.Debug("refreshing unread count", "error", rerr)
				}
			}
			return err
		}
		return c.refreshUnread(ctx)
	}})
}

func (c *Coordinator) enqueueRefresh(op string) {
	c.submit(task{op: op, epoch: c.store.Epoch(), run: c.refreshUnread})
}

func (c *Coordinator) submit(t task) {
	select {
	case c.tasks <- t:
	case <-c.stopCh:
	}
}

// refreshUnread reads the unread count after a task. The revision is taken
// before the server call, so a local change made while it is in flight
// keeps its value.
func (c *Coordinator) refreshUnread(ctx context.Context) error {
	rev := c.store.Revision()
	n, err := c.api.UnreadCount(ctx)
	if err != nil {
		return err
	}
	c.store.SetUnreadCount(n, rev)
	return nil
}

// reconcileLoop runs queued tasks one at a time.
func (c *Coordinator) reconcileLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.stopCh:
			return
		case t := <-c.tasks:
			c.runTask(t)
		}
	}
}

func (c *Coordinator) runTask(t task) {
	if t.epoch != c.store.Epoch() || !c.active() {
		c.log.Debug("skipping task from previous session", "op", t.op)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), taskTimeout)
	defer cancel()

	err := t.run(ctx)
	if err != nil {
		c.log.Warn("reconciling with server", "op", t.op, "error", err)
		err = c.handleErr(err)
	}
	c.sendResult(Result{Op: t.op, Err: err})
}

func (c *Coordinator) sendResult(r Result) {
	select {
	case c.resultCh <- r:
	default:
	}
}

// badgeLoop mirrors the unread count onto the OS badge.
func (c *Coordinator) badgeLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.stopCh:
			return
		case <-c.badgeCh:
			n := int(c.badge.Load())
			ctx, cancel := context.WithTimeout(context.Background(), taskTimeout)
			if err := c.push.SetBadgeCount(ctx, n); err != nil {
				c.log.Warn("setting badge", "error", err)
			}
			cancel()
		}
	}
}

func toPage(p *api.NotificationPage, requested int) inbox.Page {
	number := p.Pagination.Page
	if number == 0 {
		number = requested
	}
	return inbox.Page{
		Items:       p.Notifications,
		UnreadCount: p.UnreadCount,
		Number:      number,
		TotalPages:  p.Pagination.TotalPages,
	}
}
