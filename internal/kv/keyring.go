package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

// KeyringStore implements Store on the OS credential store. It holds the
// secrets: the session token and the active push token.
type KeyringStore struct {
	ring keyring.Keyring
}

// OpenKeyring returns a KeyringStore for the given service name. fileDir is
// used by the encrypted file backend on systems without a native keyring.
func OpenKeyring(service, fileDir string) (*KeyringStore, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: service,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  fileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt(service + "-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return NewKeyringStore(ring), nil
}

// NewKeyringStore wraps an already opened keyring.
func NewKeyringStore(ring keyring.Keyring) *KeyringStore {
	return &KeyringStore{ring: ring}
}

// Get retrieves a secret by key.
func (s *KeyringStore) Get(_ context.Context, key string) (string, error) {
	item, err := s.ring.Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", &PersistenceError{Op: "get", Key: key, Err: err}
	}
	return string(item.Data), nil
}

// Set stores a secret by key.
func (s *KeyringStore) Set(_ context.Context, key, value string) error {
	err := s.ring.Set(keyring.Item{
		Key:  key,
		Data: []byte(value),
	})
	if err != nil {
		return &PersistenceError{Op: "set", Key: key, Err: err}
	}
	return nil
}

// Delete removes a secret by key.
func (s *KeyringStore) Delete(_ context.Context, key string) error {
	err := s.ring.Remove(key)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return &PersistenceError{Op: "delete", Key: key, Err: err}
	}
	return nil
}
