package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2/google"

	"github.com/tonimelisma/drivegit/internal/config"
	"github.com/tonimelisma/drivegit/internal/drive"
	"github.com/tonimelisma/drivegit/internal/extract"
	"github.com/tonimelisma/drivegit/internal/gitrepo"
	"github.com/tonimelisma/drivegit/internal/state"
	"github.com/tonimelisma/drivegit/internal/sync"
)

// driveScope is the OAuth scope for reading folder contents and the
// change feed.
const driveScope = "https://www.googleapis.com/auth/drive.readonly"

// httpClientTimeout bounds a single Drive API call, downloads included.
const httpClientTimeout = 2 * time.Minute

// app wires the configured components together for the CLI commands.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	store  *state.Store
	drive  *drive.Client
	engine *sync.Engine
	coord  *sync.Coordinator
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	store, err := state.Open(cfg.State.DBPath, logger)
	if err != nil {
		return nil, err
	}

	tokenSource, err := google.DefaultTokenSource(ctx, driveScope)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("loading drive credentials: %w", err)
	}

	client := drive.NewClient("", &http.Client{Timeout: httpClientTimeout}, tokenSource, drive.Options{
		FolderID:       cfg.Drive.FolderID,
		ExcludePaths:   cfg.Sync.ExcludePaths,
		SkipExtensions: cfg.Sync.SkipExtensions,
		MaxFileSizeMB:  cfg.Sync.MaxFileSizeMB,
	}, logger)

	engine := sync.NewEngine(sync.EngineConfig{
		Feed:    client,
		Meta:    client,
		Content: client,
		Store:   store,
		Deriver: extract.New(logger),
		NewWorktree: func() (sync.Worktree, error) {
			return gitrepo.New(cfg.Git.RepoURL, cfg.Git.Branch, cfg.Git.Token, logger)
		},
		FolderID:      cfg.Drive.FolderID,
		DocsSubdir:    cfg.Git.DocsSubdir,
		DefaultAuthor: sync.Author{Name: cfg.Git.AuthorName, Email: cfg.Git.AuthorEmail},
		Logger:        logger,
	})

	return &app{
		cfg:    cfg,
		logger: logger,
		store:  store,
		drive:  client,
		engine: engine,
		coord:  sync.NewCoordinator(store, engine, logger),
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("closing state store", "error", err)
	}
}

// registerWatch creates a watch channel anchored at the stored cursor and
// persists the registration.
func registerWatch(ctx context.Context, a *app) error {
	cursor, err := a.store.Cursor(ctx)
	if err != nil {
		return err
	}

	ch, err := a.drive.Watch(ctx, a.cfg.Drive.WebhookURL, cursor)
	if err != nil {
		return fmt.Errorf("registering watch channel: %w", err)
	}

	err = a.store.SetSubscription(ctx, &state.Subscription{
		ChannelID:  ch.ID,
		ResourceID: ch.ResourceID,
		Expiration: ch.Expiration,
	})
	if err != nil {
		return err
	}

	a.logger.Info("watch channel registered",
		"channel_id", ch.ID, "expiration", ch.Expiration)

	return nil
}
