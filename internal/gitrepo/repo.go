// Package gitrepo manages a temporary working copy of the mirror
// repository. Each sync run clones the repo fresh, applies changes
// through the worktree, commits, pushes, and discards the clone.
package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
)

// Repo is a disposable working copy of the mirror repository.
type Repo struct {
	url    string
	branch string
	token  string
	logger *slog.Logger

	dir  string
	repo *git.Repository
	wt   *git.Worktree
}

// New prepares a working copy rooted in a fresh temporary directory.
// Clone must be called before any worktree operation.
func New(repoURL, branch, token string, logger *slog.Logger) (*Repo, error) {
	dir, err := os.MkdirTemp("", "drivegit-*")
	if err != nil {
		return nil, fmt.Errorf("gitrepo: creating temp dir: %w", err)
	}

	return &Repo{
		url:    repoURL,
		branch: branch,
		token:  token,
		logger: logger,
		dir:    dir,
	}, nil
}

// Dir returns the root of the working copy on disk.
func (r *Repo) Dir() string {
	return r.dir
}

// auth returns HTTP basic credentials for the remote, or nil when no
// token is configured (local-path remotes need none).
func (r *Repo) auth() transport.AuthMethod {
	if r.token == "" {
		return nil
	}

	return &githttp.BasicAuth{Username: "oauth2", Password: r.token}
}

// Clone fetches the configured branch into the working directory.
func (r *Repo) Clone(ctx context.Context) error {
	repo, err := git.PlainCloneContext(ctx, r.dir, false, &git.CloneOptions{
		URL:           r.url,
		Auth:          r.auth(),
		ReferenceName: plumbing.NewBranchReferenceName(r.branch),
		SingleBranch:  true,
	})
	if err != nil {
		return fmt.Errorf("gitrepo: cloning %s: %w", r.branch, err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("gitrepo: opening worktree: %w", err)
	}

	r.repo = repo
	r.wt = wt

	r.logger.Debug("cloned repository", "branch", r.branch, "dir", r.dir)
	return nil
}

// WriteFile writes content at the given repo-relative path and stages it,
// creating parent directories as needed.
func (r *Repo) WriteFile(relPath string, content []byte) error {
	full := filepath.Join(r.dir, filepath.FromSlash(relPath))

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("gitrepo: creating parent dirs for %s: %w", relPath, err)
	}

	if err := os.WriteFile(full, content, 0o644); err != nil {
		return fmt.Errorf("gitrepo: writing %s: %w", relPath, err)
	}

	if _, err := r.wt.Add(relPath); err != nil {
		return fmt.Errorf("gitrepo: staging %s: %w", relPath, err)
	}

	return nil
}

// RenameFile moves a tracked file to a new repo-relative path and stages
// both sides of the move.
func (r *Repo) RenameFile(oldPath, newPath string) error {
	newFull := filepath.Join(r.dir, filepath.FromSlash(newPath))

	if err := os.MkdirAll(filepath.Dir(newFull), 0o755); err != nil {
		return fmt.Errorf("gitrepo: creating parent dirs for %s: %w", newPath, err)
	}

	if _, err := r.wt.Move(oldPath, newPath); err != nil {
		return fmt.Errorf("gitrepo: moving %s to %s: %w", oldPath, newPath, err)
	}

	return nil
}

// DeleteFile removes a file from the worktree and index. Deleting a path
// that does not exist is a no-op so replayed deletes stay idempotent.
func (r *Repo) DeleteFile(relPath string) error {
	full := filepath.Join(r.dir, filepath.FromSlash(relPath))

	if _, err := os.Stat(full); errors.Is(err, os.ErrNotExist) {
		r.logger.Debug("delete of missing file ignored", "path", relPath)
		return nil
	}

	if _, err := r.wt.Remove(relPath); err != nil {
		return fmt.Errorf("gitrepo: removing %s: %w", relPath, err)
	}

	return nil
}

// StageFile adds a single path to the index.
func (r *Repo) StageFile(relPath string) error {
	if _, err := r.wt.Add(relPath); err != nil {
		return fmt.Errorf("gitrepo: staging %s: %w", relPath, err)
	}

	return nil
}

// UnstageAll resets the index back to HEAD, leaving the worktree intact.
func (r *Repo) UnstageAll() error {
	if err := r.wt.Reset(&git.ResetOptions{Mode: git.MixedReset}); err != nil {
		return fmt.Errorf("gitrepo: unstaging all: %w", err)
	}

	return nil
}

// HasStagedChanges reports whether the index differs from HEAD.
func (r *Repo) HasStagedChanges() (bool, error) {
	status, err := r.wt.Status()
	if err != nil {
		return false, fmt.Errorf("gitrepo: reading status: %w", err)
	}

	for _, fs := range status {
		if fs.Staging != git.Unmodified && fs.Staging != git.Untracked {
			return true, nil
		}
	}

	return false, nil
}

// Commit records the staged changes with the given author.
func (r *Repo) Commit(message, authorName, authorEmail string) error {
	_, err := r.wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  authorName,
			Email: authorEmail,
			When:  time.Now(),
		},
	})
	if err != nil {
		return fmt.Errorf("gitrepo: committing as %s: %w", authorName, err)
	}

	return nil
}

// Push uploads local commits to the remote branch.
func (r *Repo) Push(ctx context.Context) error {
	err := r.repo.PushContext(ctx, &git.PushOptions{
		RemoteName: "origin",
		Auth:       r.auth(),
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("gitrepo: pushing %s: %w", r.branch, err)
	}

	return nil
}

// Cleanup removes the working directory. Safe to call multiple times.
func (r *Repo) Cleanup() {
	if r.dir == "" {
		return
	}

	if err := os.RemoveAll(r.dir); err != nil {
		r.logger.Warn("failed to remove working copy", "dir", r.dir, "error", err)
	}

	r.dir = ""
}
