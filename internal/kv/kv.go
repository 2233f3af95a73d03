// Package kv is the small key-value persistence contract the sync engine
// needs for session and token continuity across restarts.
package kv

import (
	"context"
	"errors"
	"fmt"
)

// Well-known keys.
const (
	KeySessionToken  = "session_token"
	KeySessionUser   = "session_user"
	KeyPushToken     = "push_token"
	KeyDeviceID      = "device_id"
	KeyReminderShown = "profile_completion_last_reminder"
)

// ErrNotFound is returned by Get when the key has no value.
var ErrNotFound = errors.New("kv: key not found")

// PersistenceError wraps a backend failure with the key and operation.
type PersistenceError struct {
	Op  string
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("kv %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// IsPersistenceError reports whether err (or any error in its chain) is a
// PersistenceError.
func IsPersistenceError(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}

// Store persists string values by key.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
