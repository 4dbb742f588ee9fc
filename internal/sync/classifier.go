package sync

import (
	"context"
	"fmt"
	"log/slog"
	"path"

	"github.com/tonimelisma/drivegit/internal/drive"
	"github.com/tonimelisma/drivegit/internal/state"
)

// Classifier decides what, if anything, a change record means for the
// mirror. It holds no mutable state; all persisted knowledge comes through
// TrackedLookup.
type Classifier struct {
	meta    MetadataService
	tracked TrackedLookup
	docsDir string
	logger  *slog.Logger
}

// NewClassifier creates a Classifier. docsDir is the repo subdirectory all
// mirrored paths are placed under.
func NewClassifier(meta MetadataService, tracked TrackedLookup, docsDir string, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}

	return &Classifier{meta: meta, tracked: tracked, docsDir: docsDir, logger: logger}
}

// Classify maps one change record to a Change. Records that were never
// relevant (untracked removals, files outside the monitored folder,
// excluded or skipped files) return nil; a tracked file whose content is
// unchanged returns an ActionSkip Change so re-notifications stay visible
// in the cycle accounting.
//
// The decision order is significant: removal and trash are checked before
// containment, containment before exclusion, exclusion before skip rules,
// and path changes before content changes.
func (cl *Classifier) Classify(ctx context.Context, rec drive.ChangeRecord) (*Change, error) {
	prior, err := cl.tracked.File(ctx, rec.FileID)
	if err != nil {
		return nil, fmt.Errorf("sync: looking up %s: %w", rec.FileID, err)
	}

	if rec.Removed || (rec.File != nil && rec.File.Trashed) {
		return cl.classifyRemoval(rec, prior), nil
	}

	meta := rec.File
	if meta == nil {
		cl.logger.Debug("change record without metadata ignored", "file_id", rec.FileID)
		return nil, nil
	}

	if meta.MimeType == drive.MimeFolder {
		return nil, nil
	}

	if !cl.meta.IsInFolder(ctx, meta) {
		if prior == nil {
			return nil, nil
		}

		// Moved out of the monitored folder, same as a delete.
		return cl.deleteChange(rec.FileID, meta, prior), nil
	}

	resolved := cl.meta.ResolvePath(ctx, meta)

	if cl.meta.MatchesExclude(resolved) {
		cl.logger.Debug("excluded path ignored", "path", resolved)
		return nil, nil
	}

	if reason := cl.meta.SkipReason(meta); reason != "" {
		cl.logger.Info("file skipped", "name", meta.Name, "reason", reason)
		return nil, nil
	}

	newPath := path.Join(cl.docsDir, resolved)
	authorName, authorEmail := changeAuthor(meta, prior)

	if prior == nil {
		return &Change{
			Action:      ActionAdd,
			FileID:      rec.FileID,
			File:        meta,
			NewPath:     newPath,
			AuthorName:  authorName,
			AuthorEmail: authorEmail,
		}, nil
	}

	contentChanged := contentDiffers(meta, prior)

	if prior.Path != newPath {
		action := ActionMove
		if prior.Name != meta.Name {
			action = ActionRename
		}

		// Native documents carry no content hash, and the modification
		// marker cannot be compared reliably across a rename, so their
		// content is always re-fetched.
		if meta.MD5Checksum == "" {
			contentChanged = true
		}

		return &Change{
			Action:         action,
			FileID:         rec.FileID,
			File:           meta,
			Prior:          prior,
			OldPath:        prior.Path,
			NewPath:        newPath,
			ContentChanged: contentChanged,
			AuthorName:     authorName,
			AuthorEmail:    authorEmail,
		}, nil
	}

	if contentChanged {
		return &Change{
			Action:      ActionModify,
			FileID:      rec.FileID,
			File:        meta,
			Prior:       prior,
			OldPath:     prior.Path,
			NewPath:     newPath,
			AuthorName:  authorName,
			AuthorEmail: authorEmail,
		}, nil
	}

	cl.logger.Debug("file unchanged", "path", newPath)

	return &Change{
		Action:  ActionSkip,
		FileID:  rec.FileID,
		File:    meta,
		Prior:   prior,
		NewPath: newPath,
	}, nil
}

func (cl *Classifier) classifyRemoval(rec drive.ChangeRecord, prior *state.TrackedFile) *Change {
	if prior == nil {
		cl.logger.Debug("removal of untracked file ignored", "file_id", rec.FileID)
		return nil
	}

	return cl.deleteChange(rec.FileID, rec.File, prior)
}

func (cl *Classifier) deleteChange(fileID string, meta *drive.FileMeta, prior *state.TrackedFile) *Change {
	name, email := changeAuthor(meta, prior)

	return &Change{
		Action:      ActionDelete,
		FileID:      fileID,
		File:        meta,
		Prior:       prior,
		OldPath:     prior.Path,
		AuthorName:  name,
		AuthorEmail: email,
	}
}

// contentDiffers compares by content hash when the remote reports one, and
// by modification marker for native documents, which never carry a hash.
func contentDiffers(meta *drive.FileMeta, prior *state.TrackedFile) bool {
	if meta.MD5Checksum != "" {
		return meta.MD5Checksum != prior.MD5
	}

	return meta.ModifiedTime != prior.ModifiedTime
}

// changeAuthor attributes a change to the last modifying user, falling
// back to the author recorded on the tracked file. Empty when neither is
// known; the grouper substitutes the configured default.
func changeAuthor(meta *drive.FileMeta, prior *state.TrackedFile) (string, string) {
	if meta != nil && meta.LastModifyingUser != nil {
		return meta.LastModifyingUser.DisplayName, meta.LastModifyingUser.EmailAddress
	}

	if prior != nil {
		return prior.LastAuthorName, prior.LastAuthorEmail
	}

	return "", ""
}
