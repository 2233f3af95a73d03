// Package reminder decides when to surface the profile-completion
// reminder and remembers when it was last shown.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/nhle/notification-sync/internal/kv"
	"github.com/nhle/notification-sync/internal/model"
)

// Interval is the minimum time between two reminders.
const Interval = 24 * time.Hour

// State is the input to ShouldShow. A nil Completion means the completion
// data is still loading.
type State struct {
	LastShownAt *time.Time
	Completion  *model.ProfileCompletion
}

// ShouldShow reports whether the reminder should be displayed at now.
func ShouldShow(s State, now time.Time) bool {
	if s.Completion == nil || s.Completion.IsComplete {
		return false
	}
	if s.LastShownAt != nil && now.Sub(*s.LastShownAt) < Interval {
		return false
	}
	return true
}

// CompletionSource fetches the user's profile completion. *api.Client
// implements it.
type CompletionSource interface {
	ProfileCompletion(ctx context.Context) (*model.ProfileCompletion, error)
}

// Scheduler combines ShouldShow with the persisted last-shown timestamp.
type Scheduler struct {
	store  kv.Store
	source CompletionSource
	now    func() time.Time
	log    *slog.Logger

	mu         sync.Mutex
	loaded     bool
	lastShown  *time.Time
	completion *model.ProfileCompletion
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.log = l.With("component", "reminder") }
}

// NewScheduler creates a Scheduler. Nothing is read until Load or
// Evaluate is called.
func NewScheduler(store kv.Store, source CompletionSource, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:  store,
		source: source,
		now:    time.Now,
		log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads the persisted last-shown timestamp. A missing or unreadable
// value is treated as never shown.
func (s *Scheduler) Load(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked(ctx)
}

func (s *Scheduler) loadLocked(ctx context.Context) {
	s.loaded = true
	s.lastShown = nil

	raw, err := s.store.Get(ctx, kv.KeyReminderShown)
	if errors.Is(err, kv.ErrNotFound) {
		return
	}
	if err != nil {
		s.log.Warn("reading last reminder time", "error", err)
		return
	}

	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		s.log.Warn("parsing last reminder time", "value", raw, "error", err)
		return
	}
	s.lastShown = &t
}

// Evaluate refreshes the completion data and reports whether the reminder
// should be shown now. A failed fetch is treated as still loading.
func (s *Scheduler) Evaluate(ctx context.Context) (bool, error) {
	completion, err := s.source.ProfileCompletion(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		s.loadLocked(ctx)
	}
	if err != nil {
		return false, fmt.Errorf("fetching profile completion: %w", err)
	}
	s.completion = completion

	return ShouldShow(s.stateLocked(), s.now()), nil
}

// MarkShown records that the reminder was displayed. The in-memory value
// changes only once the write has succeeded.
func (s *Scheduler) MarkShown(ctx context.Context) error {
	now := s.now().UTC().Truncate(time.Second)

	if err := s.store.Set(ctx, kv.KeyReminderShown, now.Format(time.RFC3339)); err != nil {
		s.log.Warn("persisting last reminder time", "error", err)
		return err
	}

	s.mu.Lock()
	s.loaded = true
	s.lastShown = &now
	s.mu.Unlock()
	return nil
}

// State returns the current inputs to ShouldShow.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// Completion returns the last fetched profile completion, or nil.
func (s *Scheduler) Completion() *model.ProfileCompletion {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completion
}

func (s *Scheduler) stateLocked() State {
	st := State{Completion: s.completion}
	if s.lastShown != nil {
		t := *s.lastShown
		st.LastShownAt = &t
	}
	return st
}
