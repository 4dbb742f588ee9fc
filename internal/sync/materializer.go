package sync

import (
	"context"
	"fmt"
	"log/slog"
	"path"

	"github.com/tonimelisma/drivegit/internal/extract"
)

// Materializer applies classified changes to a working copy: it fetches
// content, writes originals and derived text companions, and moves or
// removes files. A failure on one change never aborts the rest of the
// batch.
type Materializer struct {
	content ContentFetcher
	wt      Worktree
	deriver Deriver
	logger  *slog.Logger
}

// Failure pairs a change with the error that prevented applying it.
type Failure struct {
	Change *Change
	Err    error
}

// NewMaterializer creates a Materializer bound to one working copy.
func NewMaterializer(content ContentFetcher, wt Worktree, deriver Deriver, logger *slog.Logger) *Materializer {
	if logger == nil {
		logger = slog.Default()
	}

	return &Materializer{content: content, wt: wt, deriver: deriver, logger: logger}
}

// Process applies each change in order, returning the changes that took
// effect and the per-change failures.
func (m *Materializer) Process(ctx context.Context, changes []*Change) ([]*Change, []Failure) {
	applied := make([]*Change, 0, len(changes))

	var failures []Failure

	for _, c := range changes {
		var err error

		switch c.Action {
		case ActionDelete:
			err = m.applyDelete(c)
		case ActionRename, ActionMove:
			err = m.applyMove(ctx, c)
		case ActionAdd, ActionModify:
			err = m.applyWrite(ctx, c)
		default:
			err = fmt.Errorf("sync: unknown action %q", c.Action)
		}

		if err != nil {
			m.logger.Error("change failed",
				"action", c.Action, "file_id", c.FileID, "error", err)

			failures = append(failures, Failure{Change: c, Err: err})
			continue
		}

		applied = append(applied, c)
	}

	return applied, failures
}

// originalRelPath maps a logical repo path to the on-disk path of the
// original document. Native documents live at the logical path plus their
// export extension; everything else lives at the logical path itself.
func originalRelPath(logical, mimeType string) string {
	if exp, ok := extract.NativeExports[mimeType]; ok {
		return logical + exp.Ext
	}

	return logical
}

// derivedRelPath returns the text-companion path for a logical repo path,
// or ok=false when the file type has no extractor.
func derivedRelPath(logical, name, mimeType string) (string, bool) {
	derived, ok := extract.DerivedFilename(name, mimeType)
	if !ok {
		return "", false
	}

	return path.Join(path.Dir(logical), derived), true
}

func (m *Materializer) applyDelete(c *Change) error {
	orig := originalRelPath(c.OldPath, c.Prior.MimeType)

	if err := m.wt.DeleteFile(orig); err != nil {
		return err
	}

	c.paths = append(c.paths, orig)

	if c.Prior.ExtractedPath != "" {
		if err := m.wt.DeleteFile(c.Prior.ExtractedPath); err != nil {
			return err
		}

		c.paths = append(c.paths, c.Prior.ExtractedPath)
	}

	return nil
}

func (m *Materializer) applyMove(ctx context.Context, c *Change) error {
	oldOrig := originalRelPath(c.OldPath, c.File.MimeType)
	newOrig := originalRelPath(c.NewPath, c.File.MimeType)

	if err := m.wt.RenameFile(oldOrig, newOrig); err != nil {
		return err
	}

	c.paths = append(c.paths, oldOrig, newOrig)

	if c.Prior.ExtractedPath != "" {
		if newDerived, ok := derivedRelPath(c.NewPath, c.File.Name, c.File.MimeType); ok {
			if err := m.wt.RenameFile(c.Prior.ExtractedPath, newDerived); err != nil {
				// The companion may never have been written. Remove
				// whatever sits at the old path so nothing is orphaned
				// there; a content rewrite regenerates it at the new
				// path.
				m.logger.Warn("could not move derived companion",
					"from", c.Prior.ExtractedPath, "to", newDerived, "error", err)

				if err := m.wt.DeleteFile(c.Prior.ExtractedPath); err != nil {
					return err
				}
			} else {
				c.paths = append(c.paths, c.Prior.ExtractedPath, newDerived)
			}
		}
	}

	if c.ContentChanged {
		return m.applyWrite(ctx, c)
	}

	return nil
}

func (m *Materializer) applyWrite(ctx context.Context, c *Change) error {
	meta := c.File

	var (
		content []byte
		err     error
	)

	if exp, ok := extract.NativeExports[meta.MimeType]; ok {
		content, err = m.content.Export(ctx, meta.ID, exp.ExportMime)
	} else {
		content, err = m.content.Download(ctx, meta.ID)
	}

	if err != nil {
		return fmt.Errorf("fetching content for %s: %w", meta.Name, err)
	}

	orig := originalRelPath(c.NewPath, meta.MimeType)

	if err := m.wt.WriteFile(orig, content); err != nil {
		return err
	}

	c.paths = append(c.paths, orig)

	text, ok, err := m.deriver.Derive(ctx, content, path.Base(orig))
	if err != nil {
		// Derivation is best-effort; the original is already in place.
		m.logger.Warn("text derivation failed", "path", orig, "error", err)
		return nil
	}

	if !ok {
		return nil
	}

	derived, ok := derivedRelPath(c.NewPath, meta.Name, meta.MimeType)
	if !ok {
		return nil
	}

	if err := m.wt.WriteFile(derived, []byte(text)); err != nil {
		return err
	}

	c.paths = append(c.paths, derived)

	return nil
}
