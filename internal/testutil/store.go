package testutil

import (
	"io"
	"log/slog"
	"testing"

	"github.com/99designs/keyring"

	"github.com/nhle/notification-sync/internal/kv"
)

// NewTestKV creates an in-memory SQLiteStore with all migrations applied.
// It automatically closes the store when the test completes.
func NewTestKV(t *testing.T) *kv.SQLiteStore {
	t.Helper()

	s, err := kv.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// NewTestKeyring returns a KeyringStore backed by an in-memory keyring.
func NewTestKeyring(t *testing.T) *kv.KeyringStore {
	t.Helper()
	return kv.NewKeyringStore(keyring.NewArrayKeyring(nil))
}

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
