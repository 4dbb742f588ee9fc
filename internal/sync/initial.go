package sync

import (
	"context"
	"fmt"
	"path"

	"github.com/tonimelisma/drivegit/internal/drive"
)

// RunInitialSync imports everything currently under the monitored folder
// and anchors the cursor. The start token is captured before the listing
// so that anything changing during the walk replays on the next cycle.
//
// All files land in a single commit by the default author; per-file
// attribution starts with the change feed.
func (e *Engine) RunInitialSync(ctx context.Context) (int, error) {
	startToken, err := e.feed.StartPageToken(ctx)
	if err != nil {
		return 0, fmt.Errorf("sync: getting start token: %w", err)
	}

	var changes []*Change

	if err := e.walkFolder(ctx, e.folderID, "", &changes); err != nil {
		return 0, err
	}

	e.logger.Info("initial sync discovered files", "count", len(changes))

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

	if err := e.commitIfStaged(wt, buildMessage("Initial sync from Google Drive", applied), e.defaultAuthor); err != nil {
		return 0, err
	}

	if err := wt.Push(ctx); err != nil {
		return 0, err
	}

	for _, c := range applied {
		if err := e.persistChange(ctx, c); err != nil {
			return 0, err
		}
	}

	if err := e.store.SetCursor(ctx, startToken); err != nil {
		return 0, err
	}

	e.logger.Info("initial sync complete",
		"applied", len(applied), "failed", len(failures))

	return len(applied), nil
}

// walkFolder lists a folder recursively, collecting an add for every
// syncable file. Paths are built from the walk itself, so no per-file
// parent resolution is needed.
func (e *Engine) walkFolder(ctx context.Context, folderID, relDir string, out *[]*Change) error {
	children, err := e.feed.ListChildren(ctx, folderID)
	if err != nil {
		return fmt.Errorf("sync: listing folder %s: %w", folderID, err)
	}

	for _, child := range children {
		rel := path.Join(relDir, child.Name)

		if e.meta.MatchesExclude(rel) {
			e.logger.Debug("excluded from initial sync", "path", rel)
			continue
		}

		if child.MimeType == drive.MimeFolder {
			if err := e.walkFolder(ctx, child.ID, rel, out); err != nil {
				return err
			}

			continue
		}

		if reason := e.meta.SkipReason(child); reason != "" {
			e.logger.Info("file skipped", "name", child.Name, "reason", reason)
			continue
		}

		name, email := changeAuthor(child, nil)

		*out = append(*out, &Change{
			Action:      ActionAdd,
			FileID:      child.ID,
			File:        child,
			NewPath:     path.Join(e.docsDir, rel),
			AuthorName:  name,
			AuthorEmail: email,
		})
	}

	return nil
}
