// Package inbox holds the in-memory notification list and the
// authoritative unread counter for the signed-in session.
package inbox

import (
	"slices"
	"strings"
	"sync"

	"github.com/nhle/notification-sync/internal/model"
)

// Revision tags an asynchronous operation with the session epoch it was
// started in and a logical timestamp. Results carrying a stale epoch are
// dropped; a server-reported unread count is applied only if no newer
// value has been applied since the revision was taken.
type Revision struct {
	Epoch uint64
	Seq   uint64
}

// Page is one page of server history.
type Page struct {
	Items       []model.Notification
	UnreadCount int
	Number      int
	TotalPages  int
}

// Cursor is the pagination position: the last page loaded and whether the
// server has more.
type Cursor struct {
	Page    int
	HasMore bool
}

// Snapshot is a copy of the store state.
type Snapshot struct {
	Notifications []model.Notification
	UnreadCount   int
	Cursor        Cursor
}

// entry is a stored notification plus the sequence it was inserted at.
// live marks realtime deliveries, which survive a page-1 replace that was
// requested before they arrived.
type entry struct {
	n    model.Notification
	seq  uint64
	live bool
}

// Store is the single owner of the notification list and unread count.
// All methods are safe for concurrent use and never fail.
type Store struct {
	mu        sync.Mutex
	items     []entry
	unread    int
	unreadSeq uint64
	cursor    Cursor
	// replaceSeq is the revision of the last applied ReplaceAll. Pages
	// requested before it belong to a list that no longer exists.
	replaceSeq uint64
	epoch      uint64
	seq        uint64

	listeners    map[int]func(Snapshot)
	nextListener int
}

// New returns an empty store positioned at page 1.
func New() *Store {
	return &Store{
		cursor:    Cursor{Page: 1, HasMore: true},
		listeners: make(map[int]func(Snapshot)),
	}
}

// Revision stamps a new operation against the current epoch.
func (s *Store) Revision() Revision {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return Revision{Epoch: s.epoch, Seq: s.seq}
}

// Epoch returns the current session epoch.
func (s *Store) Epoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// Subscribe registers fn to receive a snapshot after every applied
// mutation. fn runs with the store locked and must not call back into the
// Store. The returned function removes the subscription.
func (s *Store) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// ReplaceAll swaps the list for a freshly fetched first page. Realtime
// deliveries that arrived after rev was taken are kept.
func (s *Store) ReplaceAll(p Page, rev Revision) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rev.Epoch != s.epoch {
		return false
	}

	seen := make(map[string]bool, len(p.Items))
	items := make([]entry, 0, len(p.Items))
	for _, e := range s.items {
		if e.live && e.seq > rev.Seq {
			seen[e.n.ID] = true
			items = append(items, e)
		}
	}
	for _, n := range p.Items {
		if seen[n.ID] {
			continue
		}
		seen[n.ID] = true
		items = append(items, entry{n: n, seq: rev.Seq})
	}
	s.items = items

	s.applyUnread(p.UnreadCount, rev)
	s.cursor = cursorFor(p)
	s.replaceSeq = max(s.replaceSeq, rev.Seq)
	s.commit()
	return true
}

// AppendPage adds a later page, skipping notifications already present.
// A page requested before the most recent ReplaceAll is dropped.
func (s *Store) AppendPage(p Page, rev Revision) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rev.Epoch != s.epoch || rev.Seq < s.replaceSeq {
		return false
	}

	seen := s.ids()
	for _, n := range p.Items {
		if seen[n.ID] {
			continue
		}
		seen[n.ID] = true
		s.items = append(s.items, entry{n: n, seq: rev.Seq})
	}

	if p.Number >= s.cursor.Page {
		s.cursor = cursorFor(p)
	}
	s.commit()
	return true
}

// Prepend inserts a realtime delivery. A duplicate id leaves the list
// untouched; unreadCount, when non-nil, is applied either way.
func (s *Store) Prepend(n model.Notification, unreadCount *int, rev Revision) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rev.Epoch != s.epoch {
		return false
	}

	if !s.ids()[n.ID] {
		s.items = append([]entry{{n: n, seq: rev.Seq, live: true}}, s.items...)
	}
	if unreadCount != nil {
		s.applyUnread(*unreadCount, rev)
	}
	s.commit()
	return true
}

// SetUnreadCount applies a value from the unread-count endpoint.
func (s *Store) SetUnreadCount(n int, rev Revision) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rev.Epoch != s.epoch || rev.Seq < s.unreadSeq {
		return false
	}
	s.applyUnread(n, rev)
	s.commit()
	return true
}

// MarkRead flips an unread notification to read and decrements the
// counter. It reports whether anything changed.
func (s *Store) MarkRead(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 || s.items[i].n.IsRead {
		return false
	}
	s.items[i].n.IsRead = true
	s.decrementLocal()
	s.commit()
	return true
}

// MarkAllRead marks every notification read and zeroes the counter.
func (s *Store) MarkAllRead() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		s.items[i].n.IsRead = true
	}
	s.unread = 0
	s.touchLocal()
	s.commit()
}

// RemoveByID deletes a notification, decrementing the counter if it was
// unread. It reports whether the id was present.
func (s *Store) RemoveByID(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	wasUnread := !s.items[i].n.IsRead
	s.items = slices.Delete(s.items, i, i+1)
	if wasUnread {
		s.decrementLocal()
	}
	s.commit()
	return true
}

// Reset clears all state and starts a new epoch, invalidating every
// outstanding revision.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = nil
	s.unread = 0
	s.unreadSeq = 0
	s.replaceSeq = 0
	s.cursor = Cursor{Page: 1, HasMore: true}
	s.epoch++
	s.commit()
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// UnreadCount returns the authoritative unread total.
func (s *Store) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread
}

// Cursor returns the pagination position.
func (s *Store) Cursor() Cursor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// Get returns the notification with the given id.
func (s *Store) Get(id string) (model.Notification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return model.Notification{}, false
	}
	return s.items[i].n, true
}

func (s *Store) applyUnread(n int, rev Revision) {
	if rev.Seq < s.unreadSeq {
		return
	}
	s.unread = max(n, 0)
	s.unreadSeq = rev.Seq
}

// decrementLocal applies an optimistic local decrement. The sequence is
// advanced so responses requested earlier cannot undo it.
func (s *Store) decrementLocal() {
	s.unread = max(s.unread-1, 0)
	s.touchLocal()
}

func (s *Store) touchLocal() {
	s.seq++
	s.unreadSeq = s.seq
}

func (s *Store) ids() map[string]bool {
	seen := make(map[string]bool, len(s.items))
	for _, e := range s.items {
		seen[e.n.ID] = true
	}
	return seen
}

func (s *Store) indexOf(id string) int {
	return slices.IndexFunc(s.items, func(e entry) bool { return e.n.ID == id })
}

// commit restores ordering and notifies subscribers. Callers hold mu.
func (s *Store) commit() {
	slices.SortStableFunc(s.items, func(a, b entry) int {
		if c := b.n.CreatedAt.Compare(a.n.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.n.ID, b.n.ID)
	})

	if len(s.listeners) == 0 {
		return
	}
	snap := s.snapshotLocked()
	for _, fn := range s.listeners {
		fn(snap)
	}
}

func (s *Store) snapshotLocked() Snapshot {
	list := make([]model.Notification, len(s.items))
	for i, e := range s.items {
		list[i] = e.n
	}
	return Snapshot{
		Notifications: list,
		UnreadCount:   s.unread,
		Cursor:        s.cursor,
	}
}

func cursorFor(p Page) Cursor {
	page := max(p.Number, 1)
	return Cursor{Page: page, HasMore: page < p.TotalPages}
}
