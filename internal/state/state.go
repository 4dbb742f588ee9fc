// Package state persists everything a sync deployment shares across
// invocations: the change-feed cursor, the watch subscription, the
// distributed sync lock, the resync flag, and one tracked-file record per
// mirrored remote file. Backed by SQLite with WAL mode.
package state

import "time"

// LockTTL is the age after which a held lock is considered abandoned and
// may be forcibly reclaimed by another instance. Favors liveness: a hung
// instance loses its lock rather than wedging the deployment.
const LockTTL = 600 * time.Second

// TrackedFile is the persisted record for one remote file that currently
// exists inside the monitored folder. Records are created, updated, and
// deleted only after the corresponding commit has been pushed.
type TrackedFile struct {
	FileID string // stable remote identifier, primary key

	Name string // bare filename as reported by the remote
	Path string // relative path under the monitored folder

	// MD5 is the remote content hash. Empty for natively-edited document
	// formats, which have no stable hash; those compare ModifiedTime instead.
	MD5 string

	MimeType     string
	ModifiedTime string // opaque modification marker from the remote

	// ExtractedPath is the relative path of the derived text companion,
	// empty when the format is not extractable.
	ExtractedPath string

	LastAuthorName  string
	LastAuthorEmail string
}

// Subscription is the persisted watch-channel registration.
type Subscription struct {
	ChannelID  string
	ResourceID string
	Expiration int64 // unix milliseconds, as reported by the remote
}
