package push

import (
	"context"
	"errors"
	"sync"

	"github.com/nhle/notification-sync/internal/model"
)

// ErrUnsupported is returned by devices that cannot receive push.
var ErrUnsupported = errors.New("push: not supported on this device")

// Device is the operating system side of push: permission, token issue
// and the app icon badge.
type Device interface {
	// Supported reports whether this is a physical device able to
	// receive push (emulators and desktops are not).
	Supported() bool

	Platform() model.Platform

	PermissionGranted(ctx context.Context) (bool, error)

	// RequestPermission prompts the user. It returns false when denied.
	RequestPermission(ctx context.Context) (bool, error)

	// Token returns the current push token issued by the OS.
	Token(ctx context.Context) (string, error)

	SetBadge(ctx context.Context, n int) error
}

// UnsupportedDevice is a Device for environments without push, such as a
// desktop terminal. It keeps the badge in memory so callers can still
// display it.
type UnsupportedDevice struct {
	mu    sync.Mutex
	badge int
}

func (d *UnsupportedDevice) Supported() bool { return false }

func (d *UnsupportedDevice) Platform() model.Platform { return model.PlatformWeb }

func (d *UnsupportedDevice) PermissionGranted(context.Context) (bool, error) { return false, nil }

func (d *UnsupportedDevice) RequestPermission(context.Context) (bool, error) { return false, nil }

func (d *UnsupportedDevice) Token(context.Context) (string, error) { return "", ErrUnsupported }

func (d *UnsupportedDevice) SetBadge(_ context.Context, n int) error {
	d.mu.Lock()
	d.badge = n
	d.mu.Unlock()
	return nil
}

// Badge returns the last badge value set.
func (d *UnsupportedDevice) Badge() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.badge
}
