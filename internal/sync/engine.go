package sync

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tonimelisma/drivegit/internal/state"
)

// EngineConfig holds the collaborators for NewEngine.
type EngineConfig struct {
	Feed    ChangeFeed      // satisfied by *drive.Client
	Meta    MetadataService // satisfied by *drive.Client
	Content ContentFetcher  // satisfied by *drive.Client
	Store   StateStore      // satisfied by *state.Store
	Deriver Deriver         // satisfied by *extract.Extractor

	// NewWorktree creates a fresh disposable working copy per cycle.
	NewWorktree func() (Worktree, error)

	FolderID      string // monitored folder, used by the initial sync walk
	DocsSubdir    string // repo subdirectory mirrored paths go under
	DefaultAuthor Author // commit author when no change author is known
	Logger        *slog.Logger
}

// Engine runs sync cycles: fetch changes, classify, materialize into a
// fresh clone, commit per author, push, then persist state and advance the
// cursor. Nothing persisted moves unless the push succeeded.
type Engine struct {
	feed       ChangeFeed
	meta       MetadataService
	content    ContentFetcher
	store      StateStore
	deriver    Deriver
	classifier *Classifier

	newWorktree   func() (Worktree, error)
	folderID      string
	docsDir       string
	defaultAuthor Author
	logger        *slog.Logger
}

// NewEngine creates an Engine.
func NewEngine(cfg EngineConfig) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		feed:          cfg.Feed,
		meta:          cfg.Meta,
		content:       cfg.Content,
		store:         cfg.Store,
		deriver:       cfg.Deriver,
		classifier:    NewClassifier(cfg.Meta, cfg.Store, cfg.DocsSubdir, logger),
		newWorktree:   cfg.NewWorktree,
		folderID:      cfg.FolderID,
		docsDir:       cfg.DocsSubdir,
		defaultAuthor: cfg.DefaultAuthor,
		logger:        logger,
	}
}

// RunOnce consumes the change feed from the stored cursor and mirrors the
// result into git. Returns the number of changes applied.
//
// With no cursor stored, RunOnce anchors the feed at a fresh start token
// and returns without fetching anything; the next cycle picks up from
// there.
//
// A failed push aborts the cycle before any state write, so the next cycle
// replays the same changes. Per-change materialization failures do not
// abort the cycle; those changes are dropped and logged, and the cursor
// still advances past them.
func (e *Engine) RunOnce(ctx context.Context) (int, error) {
	cursor, err := e.store.Cursor(ctx)
	if err != nil {
		return 0, err
	}

	if cursor == "" {
		token, err := e.feed.StartPageToken(ctx)
		if err != nil {
			return 0, fmt.Errorf("sync: getting start page token: %w", err)
		}

		if err := e.store.SetCursor(ctx, token); err != nil {
			return 0, err
		}

		e.logger.Info("no cursor stored, anchored change feed", "cursor", token)

		return 0, nil
	}

	records, newCursor, err := e.feed.ListChanges(ctx, cursor)
	if err != nil {
		return 0, fmt.Errorf("sync: listing changes: %w", err)
	}

	records = Dedup(records)

	var changes []*Change

	var skipped int

	for _, rec := range records {
		c, err := e.classifier.Classify(ctx, rec)
		if err != nil {
			return 0, err
		}

		if c == nil {
			continue
		}

		if c.Action == ActionSkip {
			skipped++
			continue
		}

		changes = append(changes, c)
	}

	if len(changes) == 0 {
		e.logger.Info("no actionable changes",
			"records", len(records), "skipped", skipped)

		if newCursor != cursor {
			if err := e.store.SetCursor(ctx, newCursor); err != nil {
				return 0, err
			}
		}

		return 0, nil
	}

	e.logger.Info("applying changes", "count", len(changes))

	wt, err := e.newWorktree()
	if err != nil {
		return 0, fmt.Errorf("sync: creating working copy: %w", err)
	}
	defer wt.Cleanup()

	if err := wt.Clone(ctx); err != nil {
		return 0, err
	}

	mat := NewMaterializer(e.content, wt, e.deriver, e.logger)
	applied, failures := mat.Process(ctx, changes)

	if err := e.commitBatches(wt, applied); err != nil {
		return 0, err
	}

	if err := wt.Push(ctx); err != nil {
		return 0, err
	}

	// The push landed; only now does persisted state move.
	for _, c := range applied {
		if err := e.persistChange(ctx, c); err != nil {
			return 0, err
		}
	}

	if err := e.store.SetCursor(ctx, newCursor); err != nil {
		return 0, err
	}

	e.logger.Info("sync cycle complete",
		"applied", len(applied), "failed", len(failures))

	return len(applied), nil
}

// commitBatches commits the applied changes. A single author commits the
// already-staged tree directly; multiple authors get the index rebuilt per
// batch so each commit carries only that author's paths.
func (e *Engine) commitBatches(wt Worktree, applied []*Change) error {
	if len(applied) == 0 {
		return nil
	}

	batches := GroupByAuthor(applied, e.defaultAuthor)

	if len(batches) == 1 {
		b := batches[0]
		return e.commitIfStaged(wt, buildMessage("Sync from Google Drive", b.Changes), b.Author)
	}

	if err := wt.UnstageAll(); err != nil {
		return err
	}

	for _, b := range batches {
		for _, c := range b.Changes {
			for _, p := range c.paths {
				if err := wt.StageFile(p); err != nil {
					return fmt.Errorf("sync: restaging %s: %w", p, err)
				}
			}
		}

		if err := e.commitIfStaged(wt, buildMessage("Sync from Google Drive", b.Changes), b.Author); err != nil {
			return err
		}
	}

	return nil
}

func (e *Engine) commitIfStaged(wt Worktree, message string, author Author) error {
	staged, err := wt.HasStagedChanges()
	if err != nil {
		return err
	}

	if !staged {
		e.logger.Debug("nothing staged for commit", "author", author.Email)
		return nil
	}

	return wt.Commit(message, author.Name, author.Email)
}

func (e *Engine) persistChange(ctx context.Context, c *Change) error {
	if c.Action == ActionDelete {
		return e.store.DeleteFile(ctx, c.FileID)
	}

	return e.store.SetFile(ctx, trackedRecord(c))
}

// trackedRecord builds the persisted record for a non-delete change. The
// extracted path is computed from the name and MIME type rather than from
// the materialization outcome, so a failed derivation still records where
// the companion would live.
func trackedRecord(c *Change) *state.TrackedFile {
	meta := c.File

	extracted := ""
	if p, ok := derivedRelPath(c.NewPath, meta.Name, meta.MimeType); ok {
		extracted = p
	}

	return &state.TrackedFile{
		FileID:          c.FileID,
		Name:            meta.Name,
		Path:            c.NewPath,
		MD5:             meta.MD5Checksum,
		MimeType:        meta.MimeType,
		ModifiedTime:    meta.ModifiedTime,
		ExtractedPath:   extracted,
		LastAuthorName:  c.AuthorName,
		LastAuthorEmail: c.AuthorEmail,
	}
}

func buildMessage(header string, changes []*Change) string {
	var b strings.Builder

	b.WriteString(header)
	b.WriteString("\n")

	for _, c := range changes {
		b.WriteString("\n  - ")
		b.WriteString(c.describe())
	}

	b.WriteString("\n")

	return b.String()
}
