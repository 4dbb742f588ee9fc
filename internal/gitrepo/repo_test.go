package gitrepo

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func testSignature() *object.Signature {
	return &object.Signature{Name: "Seed", Email: "seed@example.com", When: time.Now()}
}

// initRemote creates a bare repository seeded with a single commit on
// master, and returns its path for use as a local remote URL.
func initRemote(t *testing.T) string {
	t.Helper()

	bare := t.TempDir()
	_, err := git.PlainInit(bare, true)
	require.NoError(t, err)

	seedDir := t.TempDir()
	seed, err := git.PlainInit(seedDir, false)
	require.NoError(t, err)

	wt, err := seed.Worktree()
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(seedDir, "README.md"), []byte("# mirror\n"), 0o644))
	_, err = wt.Add("README.md")
	require.NoError(t, err)

	_, err = wt.Commit("initial", &git.CommitOptions{Author: testSignature()})
	require.NoError(t, err)

	_, err = seed.CreateRemote(&gitconfig.RemoteConfig{Name: "origin", URLs: []string{bare}})
	require.NoError(t, err)
	require.NoError(t, seed.Push(&git.PushOptions{RemoteName: "origin"}))

	return bare
}

// newWorkingCopy clones a fresh working copy of the given remote.
func newWorkingCopy(t *testing.T, remote string) *Repo {
	t.Helper()

	r, err := New(remote, "master", "", testLogger())
	require.NoError(t, err)
	t.Cleanup(r.Cleanup)

	require.NoError(t, r.Clone(context.Background()))
	return r
}

func TestWriteCommitPush(t *testing.T) {
	t.Parallel()

	remote := initRemote(t)
	r := newWorkingCopy(t, remote)

	require.NoError(t, r.WriteFile("docs/hello.md", []byte("hello\n")))

	staged, err := r.HasStagedChanges()
	require.NoError(t, err)
	assert.True(t, staged)

	require.NoError(t, r.Commit("add hello", "Alice Writer", "alice@example.com"))
	require.NoError(t, r.Push(context.Background()))

	// A fresh clone sees the new file and the attributed author.
	check := newWorkingCopy(t, remote)

	content, err := os.ReadFile(filepath.Join(check.Dir(), "docs", "hello.md"))
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(content))

	head, err := check.repo.Head()
	require.NoError(t, err)

	commit, err := check.repo.CommitObject(head.Hash())
	require.NoError(t, err)
	assert.Equal(t, "Alice Writer", commit.Author.Name)
	assert.Equal(t, "alice@example.com", commit.Author.Email)
	assert.Equal(t, "add hello", commit.Message)
}

func TestRenameFile(t *testing.T) {
	t.Parallel()

	remote := initRemote(t)
	r := newWorkingCopy(t, remote)

	require.NoError(t, r.WriteFile("notes.txt", []byte("content\n")))
	require.NoError(t, r.Commit("add notes", "Alice", "alice@example.com"))

	require.NoError(t, r.RenameFile("notes.txt", "archive/notes.txt"))

	staged, err := r.HasStagedChanges()
	require.NoError(t, err)
	assert.True(t, staged)

	require.NoError(t, r.Commit("move notes", "Alice", "alice@example.com"))
	require.NoError(t, r.Push(context.Background()))

	check := newWorkingCopy(t, remote)
	assert.NoFileExists(t, filepath.Join(check.Dir(), "notes.txt"))
	assert.FileExists(t, filepath.Join(check.Dir(), "archive", "notes.txt"))
}

func TestDeleteFile(t *testing.T) {
	t.Parallel()

	r := newWorkingCopy(t, initRemote(t))

	require.NoError(t, r.DeleteFile("README.md"))

	staged, err := r.HasStagedChanges()
	require.NoError(t, err)
	assert.True(t, staged)
	assert.NoFileExists(t, filepath.Join(r.Dir(), "README.md"))
}

func TestDeleteFile_MissingIsNoOp(t *testing.T) {
	t.Parallel()

	r := newWorkingCopy(t, initRemote(t))

	require.NoError(t, r.DeleteFile("ghost/never-existed.txt"))

	staged, err := r.HasStagedChanges()
	require.NoError(t, err)
	assert.False(t, staged)
}

func TestUnstageAll(t *testing.T) {
	t.Parallel()

	r := newWorkingCopy(t, initRemote(t))

	require.NoError(t, r.WriteFile("a.txt", []byte("a\n")))
	require.NoError(t, r.WriteFile("b.txt", []byte("b\n")))

	staged, err := r.HasStagedChanges()
	require.NoError(t, err)
	require.True(t, staged)

	require.NoError(t, r.UnstageAll())

	staged, err = r.HasStagedChanges()
	require.NoError(t, err)
	assert.False(t, staged, "mixed reset must clear the index")

	// Files survive the reset in the worktree and can be restaged.
	assert.FileExists(t, filepath.Join(r.Dir(), "a.txt"))
	require.NoError(t, r.StageFile("a.txt"))

	staged, err = r.HasStagedChanges()
	require.NoError(t, err)
	assert.True(t, staged)
}

func TestPush_NoNewCommitsIsNoOp(t *testing.T) {
	t.Parallel()

	r := newWorkingCopy(t, initRemote(t))
	assert.NoError(t, r.Push(context.Background()))
}

func TestCleanup(t *testing.T) {
	t.Parallel()

	r := newWorkingCopy(t, initRemote(t))
	dir := r.Dir()

	r.Cleanup()
	assert.NoDirExists(t, dir)

	r.Cleanup()
}
