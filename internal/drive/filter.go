package drive

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

const bytesPerMB = 1024 * 1024

// MatchesExclude reports whether a relative path matches any configured
// exclude pattern. A pattern also excludes a file when it matches any
// leading directory prefix of the path, so "Drafts/*" excludes everything
// under Drafts at any depth.
func (c *Client) MatchesExclude(relPath string) bool {
	for _, pattern := range c.opts.ExcludePaths {
		if ok, err := doublestar.Match(pattern, relPath); err == nil && ok {
			return true
		}

		dirPattern := strings.TrimSuffix(pattern, "/*")

		parts := strings.Split(relPath, "/")
		for i := range parts {
			partial := strings.Join(parts[:i+1], "/")
			if ok, err := doublestar.Match(dirPattern, partial); err == nil && ok {
				return true
			}
		}
	}

	return false
}

// SkipReason returns a human-readable reason when the file should not be
// synced (skipped extension or size ceiling), or "" to proceed.
func (c *Client) SkipReason(meta *FileMeta) string {
	lower := strings.ToLower(meta.Name)

	for _, ext := range c.opts.SkipExtensions {
		if strings.HasSuffix(lower, strings.ToLower(ext)) {
			return fmt.Sprintf("skipped extension %s", ext)
		}
	}

	if max := int64(c.opts.MaxFileSizeMB) * bytesPerMB; meta.Size > max {
		return fmt.Sprintf("file too large (%dMB > %dMB)", meta.Size/bytesPerMB, c.opts.MaxFileSizeMB)
	}

	return ""
}
