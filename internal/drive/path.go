package drive

import (
	"context"
	"log/slog"
	"strings"
)

// IsInFolder reports whether a file sits under the monitored folder by
// walking its parent chain. A visited set guards against parent cycles, and
// an unreachable parent lookup is treated as "not contained" for that
// branch (transient API failures degrade to exclusion, never to an error).
func (c *Client) IsInFolder(ctx context.Context, meta *FileMeta) bool {
	if meta == nil || len(meta.Parents) == 0 {
		return false
	}

	visited := make(map[string]bool)
	toCheck := append([]string(nil), meta.Parents...)

	for len(toCheck) > 0 {
		parentID := toCheck[len(toCheck)-1]
		toCheck = toCheck[:len(toCheck)-1]

		if visited[parentID] {
			continue
		}

		visited[parentID] = true

		if parentID == c.opts.FolderID {
			return true
		}

		parent, err := c.fileMeta(ctx, parentID, "parents")
		if err != nil {
			c.logger.Debug("could not fetch parent during containment check",
				slog.String("parent_id", parentID),
				slog.String("error", err.Error()),
			)

			continue
		}

		toCheck = append(toCheck, parent.Parents...)
	}

	return false
}

// ResolvePath reconstructs the file's path relative to the monitored
// folder, like "Contracts/Subfolder/file.docx", by walking the first-parent
// chain and joining folder names.
//
// When a parent lookup fails mid-walk the path is truncated to the segments
// resolved so far. This produces a shorter path rather than failing the
// classification; it is logged at warn level because a truncated path can
// place the file in the wrong directory.
func (c *Client) ResolvePath(ctx context.Context, meta *FileMeta) string {
	name := meta.Name
	if name == "" {
		name = "unknown"
	}

	if len(meta.Parents) == 0 {
		return name
	}

	var parts []string

	parent := meta.Parents[0]
	for parent != "" && parent != c.opts.FolderID {
		folderName, ok := c.folderName(ctx, parent)
		if !ok {
			c.logger.Warn("path resolution truncated: parent folder unresolvable",
				slog.String("file", name),
				slog.String("parent_id", parent),
			)

			break
		}

		parts = append(parts, folderName)

		parentMeta, err := c.fileMeta(ctx, parent, "name,parents")
		if err != nil {
			c.logger.Warn("path resolution truncated: parent chain lookup failed",
				slog.String("file", name),
				slog.String("parent_id", parent),
				slog.String("error", err.Error()),
			)

			break
		}

		if len(parentMeta.Parents) == 0 {
			break
		}

		parent = parentMeta.Parents[0]
	}

	// parts were accumulated leaf-to-root; reverse into path order.
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}

	parts = append(parts, name)

	return strings.Join(parts, "/")
}

// folderName resolves a folder's display name, caching both successes and
// failures so each broken parent is fetched at most once per client.
func (c *Client) folderName(ctx context.Context, folderID string) (string, bool) {
	c.folderMu.Lock()
	entry, cached := c.folderNames[folderID]
	c.folderMu.Unlock()

	if cached {
		return entry.name, entry.ok
	}

	meta, err := c.fileMeta(ctx, folderID, "name")

	entry = folderEntry{}
	if err == nil {
		entry = folderEntry{name: meta.Name, ok: true}
	}

	c.folderMu.Lock()
	c.folderNames[folderID] = entry
	c.folderMu.Unlock()

	return entry.name, entry.ok
}
