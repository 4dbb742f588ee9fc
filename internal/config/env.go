package config

import (
	"fmt"
	"os"
	"strconv"
)

// Environment variable names. Every setting can be supplied through the
// environment, which is how hosted deployments are expected to configure
// the service (the config file is a local-development convenience).
const (
	EnvConfig            = "DRIVEGIT_CONFIG"
	EnvFolderID          = "DRIVEGIT_DRIVE_FOLDER_ID"
	EnvWebhookURL        = "DRIVEGIT_WEBHOOK_URL"
	EnvVerificationToken = "DRIVEGIT_VERIFICATION_TOKEN"
	EnvGitRepoURL        = "DRIVEGIT_GIT_REPO_URL"
	EnvGitBranch         = "DRIVEGIT_GIT_BRANCH"
	EnvGitToken          = "DRIVEGIT_GIT_TOKEN"
	EnvAuthorName        = "DRIVEGIT_COMMIT_AUTHOR_NAME"
	EnvAuthorEmail       = "DRIVEGIT_COMMIT_AUTHOR_EMAIL"
	EnvDocsSubdir        = "DRIVEGIT_DOCS_SUBDIR"
	EnvExcludePaths      = "DRIVEGIT_EXCLUDE_PATHS"
	EnvSkipExtensions    = "DRIVEGIT_SKIP_EXTENSIONS"
	EnvMaxFileSizeMB     = "DRIVEGIT_MAX_FILE_SIZE_MB"
	EnvDBPath            = "DRIVEGIT_DB_PATH"
	EnvListenAddr        = "DRIVEGIT_LISTEN_ADDR"
)

// ApplyEnvOverrides mutates cfg with any values found in the environment.
// Environment variables take precedence over the config file.
func ApplyEnvOverrides(cfg *Config) error {
	setString(EnvFolderID, &cfg.Drive.FolderID)
	setString(EnvWebhookURL, &cfg.Drive.WebhookURL)
	setString(EnvVerificationToken, &cfg.Drive.VerificationToken)
	setString(EnvGitRepoURL, &cfg.Git.RepoURL)
	setString(EnvGitBranch, &cfg.Git.Branch)
	setString(EnvGitToken, &cfg.Git.Token)
	setString(EnvAuthorName, &cfg.Git.AuthorName)
	setString(EnvAuthorEmail, &cfg.Git.AuthorEmail)
	setString(EnvDocsSubdir, &cfg.Git.DocsSubdir)
	setString(EnvDBPath, &cfg.State.DBPath)
	setString(EnvListenAddr, &cfg.Server.Addr)

	if v, ok := os.LookupEnv(EnvExcludePaths); ok {
		cfg.Sync.ExcludePaths = splitList(v)
	}

	if v, ok := os.LookupEnv(EnvSkipExtensions); ok {
		cfg.Sync.SkipExtensions = splitList(v)
	}

	if v, ok := os.LookupEnv(EnvMaxFileSizeMB); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvMaxFileSizeMB, err)
		}

		cfg.Sync.MaxFileSizeMB = n
	}

	return nil
}

func setString(env string, dst *string) {
	if v, ok := os.LookupEnv(env); ok {
		*dst = v
	}
}
