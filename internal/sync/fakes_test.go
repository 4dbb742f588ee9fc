package sync

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"sort"

	"github.com/tonimelisma/drivegit/internal/drive"
	"github.com/tonimelisma/drivegit/internal/state"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// --- state ---

type fakeStore struct {
	cursor string
	files  map[string]*state.TrackedFile
}

func newFakeStore() *fakeStore {
	return &fakeStore{files: make(map[string]*state.TrackedFile)}
}

func (s *fakeStore) Cursor(_ context.Context) (string, error) { return s.cursor, nil }

func (s *fakeStore) SetCursor(_ context.Context, token string) error {
	s.cursor = token
	return nil
}

func (s *fakeStore) File(_ context.Context, fileID string) (*state.TrackedFile, error) {
	return s.files[fileID], nil
}

func (s *fakeStore) SetFile(_ context.Context, f *state.TrackedFile) error {
	s.files[f.FileID] = f
	return nil
}

func (s *fakeStore) DeleteFile(_ context.Context, fileID string) error {
	delete(s.files, fileID)
	return nil
}

// --- metadata ---

type fakeMeta struct {
	outside  map[string]bool   // file IDs outside the monitored folder
	resolved map[string]string // file ID to drive-relative path, default Name
	excluded map[string]bool   // resolved paths matching an exclude
	skip     map[string]string // file ID to skip reason
}

func (m *fakeMeta) IsInFolder(_ context.Context, meta *drive.FileMeta) bool {
	return !m.outside[meta.ID]
}

func (m *fakeMeta) ResolvePath(_ context.Context, meta *drive.FileMeta) string {
	if p, ok := m.resolved[meta.ID]; ok {
		return p
	}

	return meta.Name
}

func (m *fakeMeta) MatchesExclude(relPath string) bool { return m.excluded[relPath] }

func (m *fakeMeta) SkipReason(meta *drive.FileMeta) string { return m.skip[meta.ID] }

// --- content ---

type fakeContent struct {
	data        map[string][]byte // file ID to download bytes
	exports     map[string][]byte // file ID to export bytes
	errs        map[string]error
	exportMimes map[string]string // records the mime requested per file ID
}

func (c *fakeContent) Download(_ context.Context, fileID string) ([]byte, error) {
	if err := c.errs[fileID]; err != nil {
		return nil, err
	}

	if b, ok := c.data[fileID]; ok {
		return b, nil
	}

	return []byte("content-" + fileID), nil
}

func (c *fakeContent) Export(_ context.Context, fileID, mimeType string) ([]byte, error) {
	if c.exportMimes == nil {
		c.exportMimes = make(map[string]string)
	}

	c.exportMimes[fileID] = mimeType

	if err := c.errs[fileID]; err != nil {
		return nil, err
	}

	if b, ok := c.exports[fileID]; ok {
		return b, nil
	}

	return []byte("export-" + fileID), nil
}

// --- change feed ---

type fakeFeed struct {
	records  []drive.ChangeRecord
	next     string
	start    string
	children map[string][]*drive.FileMeta
}

func (f *fakeFeed) ListChanges(_ context.Context, _ string) ([]drive.ChangeRecord, string, error) {
	return f.records, f.next, nil
}

func (f *fakeFeed) StartPageToken(_ context.Context) (string, error) { return f.start, nil }

func (f *fakeFeed) ListChildren(_ context.Context, folderID string) ([]*drive.FileMeta, error) {
	return f.children[folderID], nil
}

// --- worktree ---

type fakeCommit struct {
	message string
	author  string
	email   string
	paths   []string
}

type fakeWorktree struct {
	cloned     bool
	cleaned    bool
	files      map[string]string
	staged     map[string]bool
	commits    []fakeCommit
	pushed     bool
	pushErr    error
	renameErrs map[string]error // keyed by source path
}

func newFakeWorktree() *fakeWorktree {
	return &fakeWorktree{
		files:  make(map[string]string),
		staged: make(map[string]bool),
	}
}

func (w *fakeWorktree) Clone(_ context.Context) error {
	w.cloned = true
	return nil
}

func (w *fakeWorktree) WriteFile(relPath string, content []byte) error {
	w.files[relPath] = string(content)
	w.staged[relPath] = true
	return nil
}

func (w *fakeWorktree) RenameFile(oldPath, newPath string) error {
	if err := w.renameErrs[oldPath]; err != nil {
		return err
	}

	content, ok := w.files[oldPath]
	if !ok {
		return fmt.Errorf("fake: rename of missing file %s", oldPath)
	}

	delete(w.files, oldPath)
	w.files[newPath] = content
	w.staged[oldPath] = true
	w.staged[newPath] = true
	return nil
}

func (w *fakeWorktree) DeleteFile(relPath string) error {
	if _, ok := w.files[relPath]; !ok {
		return nil
	}

	delete(w.files, relPath)
	w.staged[relPath] = true
	return nil
}

func (w *fakeWorktree) StageFile(relPath string) error {
	w.staged[relPath] = true
	return nil
}

func (w *fakeWorktree) UnstageAll() error {
	w.staged = make(map[string]bool)
	return nil
}

func (w *fakeWorktree) HasStagedChanges() (bool, error) { return len(w.staged) > 0, nil }

func (w *fakeWorktree) Commit(message, authorName, authorEmail string) error {
	paths := make([]string, 0, len(w.staged))
	for p := range w.staged {
		paths = append(paths, p)
	}

	sort.Strings(paths)

	w.commits = append(w.commits, fakeCommit{
		message: message,
		author:  authorName,
		email:   authorEmail,
		paths:   paths,
	})

	w.staged = make(map[string]bool)
	return nil
}

func (w *fakeWorktree) Push(_ context.Context) error {
	if w.pushErr != nil {
		return w.pushErr
	}

	w.pushed = true
	return nil
}

func (w *fakeWorktree) Cleanup() { w.cleaned = true }

// --- deriver ---

// fakeDeriver derives "md:<name>" for docx and "txt:<name>" for pdf/csv.
type fakeDeriver struct {
	err error
}

func (d fakeDeriver) Derive(_ context.Context, _ []byte, name string) (string, bool, error) {
	switch path.Ext(name) {
	case ".docx":
		if d.err != nil {
			return "", true, d.err
		}

		return "md:" + name, true, nil

	case ".pdf", ".csv":
		if d.err != nil {
			return "", true, d.err
		}

		return "txt:" + name, true, nil
	}

	return "", false, nil
}

// --- engine fixture ---

type engineFixture struct {
	store   *fakeStore
	meta    *fakeMeta
	feed    *fakeFeed
	content *fakeContent
	wt      *fakeWorktree
	engine  *Engine

	factoryCalls int
}

func newFixture() *engineFixture {
	f := &engineFixture{
		store:   newFakeStore(),
		meta:    &fakeMeta{},
		feed:    &fakeFeed{next: "cursor-2"},
		content: &fakeContent{},
		wt:      newFakeWorktree(),
	}

	f.store.cursor = "cursor-1"

	f.engine = NewEngine(EngineConfig{
		Feed:    f.feed,
		Meta:    f.meta,
		Content: f.content,
		Store:   f.store,
		Deriver: fakeDeriver{},
		NewWorktree: func() (Worktree, error) {
			f.factoryCalls++
			return f.wt, nil
		},
		FolderID:      "root",
		DocsSubdir:    "docs",
		DefaultAuthor: Author{Name: "Sync Bot", Email: "bot@example.com"},
		Logger:        testLogger(),
	})

	return f
}
