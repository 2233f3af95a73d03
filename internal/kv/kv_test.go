package kv_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/notification-sync/internal/kv"
	"github.com/nhle/notification-sync/internal/testutil"
)

func exerciseStore(t *testing.T, s kv.Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, kv.KeyPushToken)
	assert.ErrorIs(t, err, kv.ErrNotFound)

	require.NoError(t, s.Set(ctx, kv.KeyPushToken, "A"))
	require.NoError(t, s.Set(ctx, kv.KeyPushToken, "B"))

	got, err := s.Get(ctx, kv.KeyPushToken)
	require.NoError(t, err)
	assert.Equal(t, "B", got)

	require.NoError(t, s.Delete(ctx, kv.KeyPushToken))
	require.NoError(t, s.Delete(ctx, kv.KeyPushToken), "deleting a missing key is fine")

	_, err = s.Get(ctx, kv.KeyPushToken)
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func TestSQLiteStore(t *testing.T) {
	exerciseStore(t, testutil.NewTestKV(t))
}

func TestKeyringStore(t *testing.T) {
	exerciseStore(t, testutil.NewTestKeyring(t))
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")

	s, err := kv.NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, kv.KeyReminderShown, "2026-03-01T12:00:00Z"))
	require.NoError(t, s.Close())

	s, err = kv.NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get(ctx, kv.KeyReminderShown)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01T12:00:00Z", got)
}

func TestPersistenceErrorUnwraps(t *testing.T) {
	cause := errors.New("disk full")
	err := error(&kv.PersistenceError{Op: "set", Key: kv.KeySessionUser, Err: cause})

	assert.True(t, kv.IsPersistenceError(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), kv.KeySessionUser)
}
