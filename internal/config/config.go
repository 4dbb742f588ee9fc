// Package config loads and validates drivegit configuration from a TOML
// file with environment-variable overrides. Configuration is constructed
// once at process start and passed explicitly into component constructors;
// there is no package-level cached config.
package config

import (
	"errors"
	"fmt"
	"strings"
)

// Defaults for optional settings.
const (
	DefaultBranch         = "main"
	DefaultAuthorName     = "Drive Sync Bot"
	DefaultAuthorEmail    = "sync@example.com"
	DefaultDocsSubdir     = "docs"
	DefaultMaxFileSizeMB  = 100
	DefaultDBPath         = "drivegit.db"
	DefaultListenAddr     = ":8080"
	DefaultSkipExtensions = ".zip,.exe,.dmg,.iso"
)

// Config is the root configuration structure, mirroring the TOML file layout.
type Config struct {
	Drive  DriveConfig  `toml:"drive"`
	Git    GitConfig    `toml:"git"`
	Sync   SyncConfig   `toml:"sync"`
	State  StateConfig  `toml:"state"`
	Server ServerConfig `toml:"server"`
}

// DriveConfig holds the change-feed source settings.
type DriveConfig struct {
	// FolderID is the ID of the monitored folder. Required.
	FolderID string `toml:"folder_id"`

	// WebhookURL is the publicly reachable URL that receives push
	// notifications. Required for serve/setup/renew, unused by one-shot sync.
	WebhookURL string `toml:"webhook_url"`

	// VerificationToken, when set, is served on GET requests as a
	// google-site-verification body for domain verification.
	VerificationToken string `toml:"verification_token"`
}

// GitConfig holds the mirror repository settings.
type GitConfig struct {
	// RepoURL is the HTTPS remote of the mirror repository. Required.
	RepoURL string `toml:"repo_url"`

	// Branch is the branch commits are made on and pushed to.
	Branch string `toml:"branch"`

	// Token authenticates pushes. Usually supplied via DRIVEGIT_GIT_TOKEN
	// rather than the config file.
	Token string `toml:"token"`

	// AuthorName and AuthorEmail are the fallback commit identity for
	// changes without an attributed editor.
	AuthorName  string `toml:"author_name"`
	AuthorEmail string `toml:"author_email"`

	// DocsSubdir is the repository subdirectory mirrored files live under.
	DocsSubdir string `toml:"docs_subdir"`
}

// SyncConfig holds classification filter settings.
type SyncConfig struct {
	// ExcludePaths are glob patterns matched against relative paths.
	// A pattern matching any leading path prefix also excludes the file.
	ExcludePaths []string `toml:"exclude_paths"`

	// SkipExtensions are filename suffixes that are never synced.
	SkipExtensions []string `toml:"skip_extensions"`

	// MaxFileSizeMB is the size ceiling; larger files are skipped.
	MaxFileSizeMB int `toml:"max_file_size_mb"`
}

// StateConfig holds the persisted-state store settings.
type StateConfig struct {
	// DBPath is the SQLite database path. Use ":memory:" in tests.
	DBPath string `toml:"db_path"`
}

// ServerConfig holds the HTTP entrypoint settings.
type ServerConfig struct {
	// Addr is the listen address for the notification server.
	Addr string `toml:"addr"`
}

// DefaultConfig returns a Config populated with all default values.
// Required fields (folder ID, repo URL) are left empty and caught by Validate.
func DefaultConfig() *Config {
	return &Config{
		Git: GitConfig{
			Branch:      DefaultBranch,
			AuthorName:  DefaultAuthorName,
			AuthorEmail: DefaultAuthorEmail,
			DocsSubdir:  DefaultDocsSubdir,
		},
		Sync: SyncConfig{
			SkipExtensions: splitList(DefaultSkipExtensions),
			MaxFileSizeMB:  DefaultMaxFileSizeMB,
		},
		State: StateConfig{
			DBPath: DefaultDBPath,
		},
		Server: ServerConfig{
			Addr: DefaultListenAddr,
		},
	}
}

// Validate checks that all required settings are present and well-formed.
// Missing credentials or required settings are fatal at startup, not retried.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Drive.FolderID == "" {
		errs = append(errs, errors.New("drive.folder_id is required"))
	}

	if cfg.Git.RepoURL == "" {
		errs = append(errs, errors.New("git.repo_url is required"))
	} else if !strings.HasPrefix(cfg.Git.RepoURL, "https://") {
		errs = append(errs, fmt.Errorf("git.repo_url must be an https:// URL, got %q", cfg.Git.RepoURL))
	}

	if cfg.Git.Branch == "" {
		errs = append(errs, errors.New("git.branch is required"))
	}

	if cfg.Sync.MaxFileSizeMB <= 0 {
		errs = append(errs, fmt.Errorf("sync.max_file_size_mb must be positive, got %d", cfg.Sync.MaxFileSizeMB))
	}

	return errors.Join(errs...)
}

// splitList parses a comma-separated list, trimming whitespace and
// dropping empty entries.
func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}

	var out []string

	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}

	return out
}
