package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"runtime"

	"notesync/internal/account"
	"notesync/internal/config"
	"notesync/internal/domain"
	"notesync/internal/engine"
	"notesync/internal/localdb"
	"notesync/internal/mutlog"
	"notesync/internal/remote"
	"notesync/internal/store"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

const appVersion = "0.1.0"

// app wires the engine and its collaborators for one command invocation.
type app struct {
	cfg     *config.ClientConfig
	db      *sql.DB
	remote  *remote.Client
	account *account.Service
	engine  *engine.Engine
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.LoadClientConfig(configPath)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	db, err := localdb.Open(ctx, cfg.DBPath())
	if err != nil {
		return nil, err
	}

	st, err := store.New(ctx, db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	client := remote.NewClient(cfg.ServerURL, cfg.RequestTimeout, logger)

	eng := engine.New(st, mutlog.New(db, logger), client, clockwork.NewRealClock(), logger, engine.Config{
		PushBatch:      cfg.PushBatch,
		PullLimit:      cfg.PullLimit,
		BackoffBase:    cfg.BackoffBase,
		BackoffMax:     cfg.BackoffMax,
		RequestTimeout: cfg.RequestTimeout,
		PollInterval:   cfg.PollInterval,
	})

	acct := account.NewService(db, client, account.DeviceInfo{
		Name:       cfg.DeviceName,
		Type:       "cli",
		OS:         runtime.GOOS,
		AppVersion: appVersion,
	}, logger)

	return &app{
		cfg:     cfg,
		db:      db,
		remote:  client,
		account: acct,
		engine:  eng,
	}, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		logger.Warn("failed to close database", zap.Error(err))
	}
}

// session returns the signed-in session and re-applies any edit that was
// logged but not yet written to the store by an interrupted run.
func (a *app) session(ctx context.Context) (domain.Session, error) {
	sess, err := a.account.Session(ctx)
	if errors.Is(err, domain.ErrUnauthenticated) {
		return domain.Session{}, errors.New("not signed in, run 'notesync login' first")
	}
	if err != nil {
		return domain.Session{}, err
	}

	n, err := a.engine.Recover(ctx, sess)
	if err != nil {
		return domain.Session{}, err
	}
	if n > 0 {
		logger.Info("recovered unapplied edits", zap.Int("count", n))
	}
	return sess, nil
}

// mustApp opens the app and its session or exits.
func mustApp(ctx context.Context) (*app, domain.Session) {
	a, err := newApp(ctx)
	if err != nil {
		fatal("Failed to open notesync", err)
	}
	sess, err := a.session(ctx)
	if err != nil {
		a.Close()
		fatal("Error", err)
	}
	return a, sess
}
