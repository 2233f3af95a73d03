// Command notifsync is a terminal inbox for the notification service. It
// keeps the list, the unread badge and the push registration in sync with
// the server over REST and a realtime socket.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/nhle/notification-sync/internal/api"
	"github.com/nhle/notification-sync/internal/app"
	"github.com/nhle/notification-sync/internal/inbox"
	"github.com/nhle/notification-sync/internal/kv"
	"github.com/nhle/notification-sync/internal/model"
	"github.com/nhle/notification-sync/internal/push"
	"github.com/nhle/notification-sync/internal/realtime"
	"github.com/nhle/notification-sync/internal/reminder"
	appsync "github.com/nhle/notification-sync/internal/sync"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "notifsync:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := model.EnsureConfig(model.DefaultConfigPath())
	if err != nil {
		return err
	}

	logger, closeLog, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer closeLog()

	if err := os.MkdirAll(filepath.Dir(cfg.Storage.DBPath), 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	state, err := kv.NewSQLiteStore(cfg.Storage.DBPath)
	if err != nil {
		return err
	}
	defer state.Close()

	secrets, err := kv.OpenKeyring(cfg.Storage.KeyringService, cfg.Storage.KeyringDir)
	if err != nil {
		return err
	}

	client := api.NewClient(cfg.Server.BaseURL, api.WithTimeout(cfg.Server.RequestTimeout()))
	store := inbox.New()

	rt := realtime.NewManager(store, realtime.Options{
		URL: cfg.Server.SocketURL,
		Backoff: realtime.Backoff{
			Initial:     cfg.Realtime.InitialBackoff(),
			Max:         cfg.Realtime.MaxBackoff(),
			MaxAttempts: cfg.Realtime.MaxAttempts,
		},
		HandshakeTimeout: cfg.Realtime.HandshakeTimeout(),
		Logger:           logger,
	})
	defer rt.Close()

	registrar := push.NewRegistrar(&push.UnsupportedDevice{}, client, secrets, logger)
	feed := app.NewFeed()
	coord := appsync.New(appsync.Options{
		Store:         store,
		API:           client,
		Realtime:      rt,
		Push:          registrar,
		Secrets:       secrets,
		State:         state,
		PageSize:      cfg.Inbox.PageSize,
		Logger:        logger,
		OnAuthExpired: feed.AuthExpired,
	})
	coord.Start()
	defer coord.Stop()

	defer store.Subscribe(feed.PublishSnapshot)()
	defer rt.Subscribe(feed.PublishEvent)()

	if err := signIn(coord, logger); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return nil
		}
		return err
	}
	feed.Reset()

	p := tea.NewProgram(
		app.New(app.Services{
			Store:      store,
			Sync:       coord,
			Reminders:  reminder.NewScheduler(state, client, reminder.WithLogger(logger)),
			Push:       registrar,
			Feed:       feed,
			Connection: rt.State(),
		}),
		tea.WithAltScreen(),
		tea.WithReportFocus(),
	)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running ui: %w", err)
	}
	return nil
}

// signIn resumes the stored session, or asks for a token when there is
// none or the stored one was rejected. A failed first-page fetch is not
// fatal; the inbox can be refreshed from the UI.
func signIn(coord *appsync.Coordinator, logger *slog.Logger) error {
	ctx := context.Background()

	resumed, err := coord.Resume(ctx)
	switch {
	case resumed && err == nil:
		return nil
	case resumed && !api.IsAuthError(err):
		logger.Warn("initial sync failed", "error", err)
		return nil
	case resumed:
		logger.Info("stored session rejected")
		coord.Logout(ctx)
	case err != nil:
		logger.Warn("reading stored session", "error", err)
	}

	s, err := promptSession()
	if err != nil {
		return err
	}
	if err := coord.Login(ctx, s); err != nil {
		if api.IsAuthError(err) {
			coord.Logout(ctx)
			return fmt.Errorf("signing in: %w", err)
		}
		logger.Warn("initial sync failed", "error", err)
	}
	return nil
}

// promptSession asks for the session token issued by the auth service.
func promptSession() (model.Session, error) {
	var token, username string

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Session token").
				Description("Paste the token from your signed-in session").
				EchoMode(huh.EchoModePassword).
				Value(&token).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("token is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Username").
				Value(&username),
		),
	)
	if err := form.Run(); err != nil {
		return model.Session{}, err
	}

	username = strings.TrimSpace(username)
	return model.Session{
		Token: strings.TrimSpace(token),
		User:  model.SessionUser{ID: username, Username: username},
	}, nil
}

// newLogger opens the log file. The terminal belongs to the UI, so nothing
// is written to stderr.
func newLogger(cfg model.LogConfig) (*slog.Logger, func(), error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}

	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level}))
	return logger, func() { f.Close() }, nil
}
