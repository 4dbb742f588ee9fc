// Package sync turns change-feed records into attributed git commits: it
// classifies each record against the tracked state, materializes content
// into a working copy, groups changes per author, and advances the cursor
// only after a successful push.
package sync

import (
	"context"
	"fmt"

	"github.com/tonimelisma/drivegit/internal/drive"
	"github.com/tonimelisma/drivegit/internal/state"
)

// Action is the classified outcome for a single change record.
type Action string

const (
	ActionAdd    Action = "add"
	ActionModify Action = "modify"
	ActionRename Action = "rename"
	ActionMove   Action = "move"
	ActionDelete Action = "delete"

	// ActionSkip marks a tracked file whose re-notification carried no
	// content change. Skips are counted but never materialized.
	ActionSkip Action = "skip"
)

// Change is one classified change. Records that were never relevant
// (untracked removals, excluded or skipped files) do not become a Change.
type Change struct {
	Action Action
	FileID string

	File  *drive.FileMeta    // current metadata, nil for removal records
	Prior *state.TrackedFile // tracked record before this change, nil for adds

	OldPath string // previous logical repo path (rename, move, delete)
	NewPath string // target logical repo path, "" for delete

	// ContentChanged marks a rename or move whose content also changed,
	// so the materializer rewrites the file after moving it.
	ContentChanged bool

	AuthorName  string
	AuthorEmail string

	// Worktree paths touched during materialization, used to restage the
	// change when commits are split per author.
	paths []string
}

func (c *Change) describe() string {
	switch c.Action {
	case ActionAdd:
		return "Added: " + c.NewPath
	case ActionModify:
		return "Modified: " + c.NewPath
	case ActionRename:
		return fmt.Sprintf("Renamed: %s -> %s", c.OldPath, c.NewPath)
	case ActionMove:
		return fmt.Sprintf("Moved: %s -> %s", c.OldPath, c.NewPath)
	case ActionDelete:
		return "Deleted: " + c.OldPath
	}

	return string(c.Action) + ": " + c.NewPath
}

// MetadataService answers metadata questions about remote files. Satisfied
// by *drive.Client.
type MetadataService interface {
	IsInFolder(ctx context.Context, meta *drive.FileMeta) bool
	ResolvePath(ctx context.Context, meta *drive.FileMeta) string
	MatchesExclude(relPath string) bool
	SkipReason(meta *drive.FileMeta) string
}

// ContentFetcher retrieves file content. Satisfied by *drive.Client.
type ContentFetcher interface {
	Download(ctx context.Context, fileID string) ([]byte, error)
	Export(ctx context.Context, fileID, mimeType string) ([]byte, error)
}

// ChangeFeed reads the change feed and folder listings. Satisfied by
// *drive.Client.
type ChangeFeed interface {
	ListChanges(ctx context.Context, cursor string) ([]drive.ChangeRecord, string, error)
	StartPageToken(ctx context.Context) (string, error)
	ListChildren(ctx context.Context, folderID string) ([]*drive.FileMeta, error)
}

// TrackedLookup reads tracked-file records. Satisfied by *state.Store.
type TrackedLookup interface {
	File(ctx context.Context, fileID string) (*state.TrackedFile, error)
}

// StateStore is the persisted state the engine reads and advances.
// Satisfied by *state.Store.
type StateStore interface {
	TrackedLookup
	Cursor(ctx context.Context) (string, error)
	SetCursor(ctx context.Context, token string) error
	SetFile(ctx context.Context, f *state.TrackedFile) error
	DeleteFile(ctx context.Context, fileID string) error
}

// Worktree is a disposable working copy of the mirror repository.
// Satisfied by *gitrepo.Repo.
type Worktree interface {
	Clone(ctx context.Context) error
	WriteFile(relPath string, content []byte) error
	RenameFile(oldPath, newPath string) error
	DeleteFile(relPath string) error
	StageFile(relPath string) error
	UnstageAll() error
	HasStagedChanges() (bool, error)
	Commit(message, authorName, authorEmail string) error
	Push(ctx context.Context) error
	Cleanup()
}

// Deriver produces a diffable text companion for document content.
// Satisfied by *extract.Extractor.
type Deriver interface {
	Derive(ctx context.Context, content []byte, name string) (string, bool, error)
}

// Dedup collapses multiple records for the same file down to the latest
// record, keeping each file at its first-seen position in the feed.
func Dedup(records []drive.ChangeRecord) []drive.ChangeRecord {
	seen := make(map[string]int, len(records))
	out := make([]drive.ChangeRecord, 0, len(records))

	for _, rec := range records {
		if i, ok := seen[rec.FileID]; ok {
			out[i] = rec
			continue
		}

		seen[rec.FileID] = len(out)
		out = append(out, rec)
	}

	return out
}
