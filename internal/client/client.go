package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/drp-sh/drpsync/internal/client/config"
	"github.com/drp-sh/drpsync/internal/client/sync"
	"github.com/drp-sh/drpsync/internal/drpsdk"
	"github.com/gofrs/flock"
)

const shutdownGrace = 10 * time.Second

var ErrAlreadyRunning = errors.New("another drpsync instance is using this data dir")

// Client wires config, SDK, and the sync engine into the long-running
// daemon started by the bare `drpsync` invocation.
type Client struct {
	cfg     *config.Config
	sdk     *drpsdk.SDK
	session *drpsdk.SessionProvider
	engine  *sync.Engine
	lock    *flock.Flock
}

func New(cfg *config.Config) (*Client, error) {
	lock := flock.New(cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire instance lock: %w", err)
	}
	if !locked {
		return nil, ErrAlreadyRunning
	}

	session := drpsdk.NewSessionProvider(cfg.ServerURL, cfg.RefreshToken, func(refreshToken string) {
		cfg.RefreshToken = refreshToken
		if err := cfg.Save(cfg.Path); err != nil {
			slog.Warn("failed to persist rotated refresh token", "error", err)
		}
	})

	sdk, err := drpsdk.New(cfg.ServerURL, session)
	if err != nil {
		lock.Unlock()
		return nil, err
	}

	store := sync.NewStateStore(cfg.StatePath())
	ignore := sync.NewIgnoreList(cfg.Folder, cfg.Excludes)
	ignore.Load()

	engine := sync.NewEngine(cfg.Folder, store, newRemoteStore(sdk), ignore, sync.EngineOptions{
		DebounceWindow: cfg.Debounce(),
		SweepInterval:  cfg.SweepInterval(),
		Executor: sync.ExecutorOptions{
			Concurrency: cfg.Workers(),
		},
	})

	return &Client{
		cfg:     cfg,
		sdk:     sdk,
		session: session,
		engine:  engine,
		lock:    lock,
	}, nil
}

// Start runs the watch loop until ctx is cancelled.
func (c *Client) Start(ctx context.Context) error {
	defer c.lock.Unlock()
	defer c.sdk.Close()

	slog.Info("drpsync start",
		"server", c.cfg.ServerURL,
		"folder", c.cfg.Folder,
		"account", c.cfg.Email,
	)

	// Verify the session once up front; an expired session keeps the loop
	// running, uploads just stay pending until re-authentication.
	if c.cfg.RefreshToken != "" {
		if _, err := c.session.Token(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Warn("session invalid, run 'drpsync login' to re-authenticate", "error", err)
		}
	}

	if err := c.engine.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	c.engine.Stop(shutdownGrace)
	return nil
}
