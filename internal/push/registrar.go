// Package push manages the device push token: permission, registration
// with the server, rotation, and the OS badge.
package push

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/nhle/notification-sync/internal/api"
	"github.com/nhle/notification-sync/internal/kv"
	"github.com/nhle/notification-sync/internal/model"
)

// Server is the push-token part of the REST API. *api.Client implements it.
type Server interface {
	RegisterPushToken(ctx context.Context, req api.RegisterPushTokenRequest) error
	DeregisterPushToken(ctx context.Context, token string) error
}

// Registrar keeps exactly one active push token registered per session.
type Registrar struct {
	device Device
	server Server
	store  kv.Store
	log    *slog.Logger

	mu sync.Mutex
}

// NewRegistrar creates a Registrar. store should be a secret store; the
// active token and the install id are kept there.
func NewRegistrar(device Device, server Server, store kv.Store, logger *slog.Logger) *Registrar {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Registrar{
		device: device,
		server: server,
		store:  store,
		log:    logger.With("component", "push"),
	}
}

// ObtainToken asks for permission if needed and returns the device token.
// ok is false when the user denied permission or the device cannot
// receive push; a denial is final until changed in OS settings.
func (r *Registrar) ObtainToken(ctx context.Context) (token string, ok bool, err error) {
	if !r.device.Supported() {
		r.log.Info("push not supported on this device")
		return "", false, nil
	}

	granted, err := r.device.PermissionGranted(ctx)
	if err != nil {
		return "", false, fmt.Errorf("checking push permission: %w", err)
	}
	if !granted {
		granted, err = r.device.RequestPermission(ctx)
		if err != nil {
			return "", false, fmt.Errorf("requesting push permission: %w", err)
		}
		if !granted {
			r.log.Info("push permission denied")
			return "", false, nil
		}
	}

	token, err = r.device.Token(ctx)
	if err != nil {
		return "", false, fmt.Errorf("obtaining push token: %w", err)
	}
	return token, token != "", nil
}

// RegisterToken registers token with the server if it differs from the
// persisted one, then retires the previous token. Retiring is best-effort.
func (r *Registrar) RegisterToken(ctx context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, err := r.store.Get(ctx, kv.KeyPushToken)
	if err != nil && !errors.Is(err, kv.ErrNotFound) {
		r.log.Warn("reading persisted push token", "error", err)
		prev = ""
	}
	if prev == token {
		return nil
	}

	err = r.server.RegisterPushToken(ctx, api.RegisterPushTokenRequest{
		Token:    token,
		Platform: r.device.Platform(),
		DeviceID: r.deviceID(ctx),
	})
	if err != nil {
		return err
	}

	if err := r.store.Set(ctx, kv.KeyPushToken, token); err != nil {
		r.log.Warn("persisting push token", "error", err)
	}

	if prev != "" {
		if err := r.server.DeregisterPushToken(ctx, prev); err != nil {
			r.log.Warn("retiring previous push token", "error", err)
		}
	}

	r.log.Info("push token registered", "rotated", prev != "")
	return nil
}

// HandleTokenRefresh is the entry point for platforms that deliver token
// rotation as a callback. Where no callback exists the token is re-read on
// every foreground and passed to RegisterToken, which has the same effect.
func (r *Registrar) HandleTokenRefresh(ctx context.Context, token string) error {
	return r.RegisterToken(ctx, token)
}

// ActiveToken returns the persisted active token, or nil if none.
func (r *Registrar) ActiveToken(ctx context.Context) (*model.PushToken, error) {
	token, err := r.store.Get(ctx, kv.KeyPushToken)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &model.PushToken{
		Token:    token,
		Platform: r.device.Platform(),
		DeviceID: r.deviceID(ctx),
		Active:   true,
	}, nil
}

// DeregisterOnLogout retires the persisted token while the session is
// still valid. The local copy is always cleared so it is never reused by
// the next session.
func (r *Registrar) DeregisterOnLogout(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	token, err := r.store.Get(ctx, kv.KeyPushToken)
	switch {
	case errors.Is(err, kv.ErrNotFound):
		return
	case err != nil:
		r.log.Warn("reading persisted push token", "error", err)
	default:
		if err := r.server.DeregisterPushToken(ctx, token); err != nil {
			r.log.Warn("deregistering push token on logout", "error", err)
		}
	}

	if err := r.store.Delete(ctx, kv.KeyPushToken); err != nil {
		r.log.Warn("clearing persisted push token", "error", err)
	}
}

// SetBadgeCount mirrors the unread count onto the app icon.
func (r *Registrar) SetBadgeCount(ctx context.Context, n int) error {
	if err := r.device.SetBadge(ctx, max(n, 0)); err != nil {
		return fmt.Errorf("setting badge: %w", err)
	}
	return nil
}

// ClearBadge removes the app icon badge.
func (r *Registrar) ClearBadge(ctx context.Context) error {
	return r.SetBadgeCount(ctx, 0)
}

// deviceID returns the install-scoped id, creating it on first use.
func (r *Registrar) deviceID(ctx context.Context) string {
	id, err := r.store.Get(ctx, kv.KeyDeviceID)
	if err == nil && id != "" {
		return id
	}
	if err != nil && !errors.Is(err, kv.ErrNotFound) {
		r.log.Warn("reading device id", "error", err)
	}

	id = uuid.NewString()
	if err := r.store.Set(ctx, kv.KeyDeviceID, id); err != nil {
		r.log.Warn("persisting device id", "error", err)
	}
	return id
}
