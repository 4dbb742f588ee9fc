package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver, registers as "sqlite".
)

// walJournalSizeLimit caps the WAL journal at 64 MiB.
const walJournalSizeLimit = 67108864

// Store is the SQLite-backed persisted-state store. Each Store instance has
// its own generated lock-owner identity, so one process instance releasing
// the lock can never release a lock another instance has since taken over.
type Store struct {
	db        *sql.DB
	logger    *slog.Logger
	lockOwner string

	// now is stubbed in tests to exercise lock staleness.
	now func() time.Time

	cursorStmts cursorStatements
	subStmts    subscriptionStatements
	flagStmts   flagStatements
	fileStmts   fileStatements
}

// Statement groups to avoid a flat list of a dozen fields.
type cursorStatements struct {
	get, set *sql.Stmt
}

type subscriptionStatements struct {
	get, set, clear *sql.Stmt
}

type flagStatements struct {
	get, set, clear *sql.Stmt
}

type fileStatements struct {
	get, set, delete, list, listPrefix *sql.Stmt
}

// Open creates a Store, opening the database at dbPath, applying
// migrations, and preparing all repeated statements. Use ":memory:" for tests.
func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("opening state database", "path", dbPath)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("state: open sqlite: %w", err)
	}

	// A single connection serializes writers and keeps ":memory:" databases
	// from silently splitting across pool connections.
	db.SetMaxOpenConns(1)

	if err := setPragmas(context.Background(), db); err != nil {
		db.Close()
		return nil, err
	}

	if err := runMigrations(context.Background(), db, logger); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{
		db:        db,
		logger:    logger,
		lockOwner: uuid.NewString(),
		now:       time.Now,
	}

	if err := s.prepareStatements(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("state: prepare statements: %w", err)
	}

	return s, nil
}

// Close releases the database connection and prepared statements.
func (s *Store) Close() error {
	return s.db.Close()
}

func setPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = FULL",
		"PRAGMA foreign_keys = ON",
		fmt.Sprintf("PRAGMA journal_size_limit = %d", walJournalSizeLimit),
		"PRAGMA busy_timeout = 5000",
	}

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("state: set pragma %q: %w", p, err)
		}
	}

	return nil
}

// --- SQL query constants, grouped by domain ---

const (
	sqlGetCursor = `SELECT token FROM cursor WHERE id = 1`
	sqlSetCursor = `INSERT INTO cursor (id, token) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET token = excluded.token`

	sqlGetSubscription = `SELECT channel_id, resource_id, expiration FROM subscription WHERE id = 1`
	sqlSetSubscription = `INSERT INTO subscription (id, channel_id, resource_id, expiration)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			channel_id  = excluded.channel_id,
			resource_id = excluded.resource_id,
			expiration  = excluded.expiration`
	sqlClearSubscription = `DELETE FROM subscription WHERE id = 1`

	sqlGetFlag   = `SELECT needed FROM resync_flag WHERE id = 1`
	sqlSetFlag   = `INSERT INTO resync_flag (id, needed) VALUES (1, 1)
		ON CONFLICT(id) DO UPDATE SET needed = 1`
	sqlClearFlag = `INSERT INTO resync_flag (id, needed) VALUES (1, 0)
		ON CONFLICT(id) DO UPDATE SET needed = 0`

	sqlFileColumns = `file_id, name, path, md5, mime_type, modified_time,
		extracted_path, last_author_name, last_author_email`

	sqlGetFile = `SELECT ` + sqlFileColumns + ` FROM files WHERE file_id = ?`

	sqlSetFile = `INSERT INTO files (` + sqlFileColumns + `, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(file_id) DO UPDATE SET
			name              = excluded.name,
			path              = excluded.path,
			md5               = excluded.md5,
			mime_type         = excluded.mime_type,
			modified_time     = excluded.modified_time,
			extracted_path    = excluded.extracted_path,
			last_author_name  = excluded.last_author_name,
			last_author_email = excluded.last_author_email,
			updated_at        = excluded.updated_at`

	sqlDeleteFile      = `DELETE FROM files WHERE file_id = ?`
	sqlListFiles       = `SELECT ` + sqlFileColumns + ` FROM files ORDER BY path`
	sqlListFilesPrefix = `SELECT ` + sqlFileColumns + ` FROM files
		WHERE path >= ? AND path < ? ORDER BY path`

	sqlGetLock = `SELECT locked, owner, acquired_at FROM sync_lock WHERE id = 1`
	sqlSetLock = `INSERT INTO sync_lock (id, locked, owner, acquired_at) VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			locked      = excluded.locked,
			owner       = excluded.owner,
			acquired_at = excluded.acquired_at`
)

func (s *Store) prepareStatements(ctx context.Context) error {
	stmts := []struct {
		dst   **sql.Stmt
		query string
	}{
		{&s.cursorStmts.get, sqlGetCursor},
		{&s.cursorStmts.set, sqlSetCursor},
		{&s.subStmts.get, sqlGetSubscription},
		{&s.subStmts.set, sqlSetSubscription},
		{&s.subStmts.clear, sqlClearSubscription},
		{&s.flagStmts.get, sqlGetFlag},
		{&s.flagStmts.set, sqlSetFlag},
		{&s.flagStmts.clear, sqlClearFlag},
		{&s.fileStmts.get, sqlGetFile},
		{&s.fileStmts.set, sqlSetFile},
		{&s.fileStmts.delete, sqlDeleteFile},
		{&s.fileStmts.list, sqlListFiles},
		{&s.fileStmts.listPrefix, sqlListFilesPrefix},
	}

	for _, st := range stmts {
		prepared, err := s.db.PrepareContext(ctx, st.query)
		if err != nil {
			return err
		}

		*st.dst = prepared
	}

	return nil
}

// --- Cursor ---

// Cursor returns the persisted change-feed cursor, or "" if none is stored
// (the uninitialized state).
func (s *Store) Cursor(ctx context.Context) (string, error) {
	var token string

	err := s.cursorStmts.get.QueryRowContext(ctx).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}

	if err != nil {
		return "", fmt.Errorf("state: get cursor: %w", err)
	}

	return token, nil
}

// SetCursor persists the change-feed cursor. Callers must only invoke this
// after all side effects of the consumed changes have been pushed.
func (s *Store) SetCursor(ctx context.Context, token string) error {
	if _, err := s.cursorStmts.set.ExecContext(ctx, token); err != nil {
		return fmt.Errorf("state: set cursor: %w", err)
	}

	return nil
}

// --- Subscription ---

// Subscription returns the stored watch-channel registration, or nil if none.
func (s *Store) Subscription(ctx context.Context) (*Subscription, error) {
	var sub Subscription

	err := s.subStmts.get.QueryRowContext(ctx).Scan(&sub.ChannelID, &sub.ResourceID, &sub.Expiration)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("state: get subscription: %w", err)
	}

	return &sub, nil
}

// SetSubscription stores a watch-channel registration, replacing any
// previous one.
func (s *Store) SetSubscription(ctx context.Context, sub *Subscription) error {
	if _, err := s.subStmts.set.ExecContext(ctx, sub.ChannelID, sub.ResourceID, sub.Expiration); err != nil {
		return fmt.Errorf("state: set subscription: %w", err)
	}

	return nil
}

// ClearSubscription removes the stored watch-channel registration.
func (s *Store) ClearSubscription(ctx context.Context) error {
	if _, err := s.subStmts.clear.ExecContext(ctx); err != nil {
		return fmt.Errorf("state: clear subscription: %w", err)
	}

	return nil
}

// --- Resync flag ---

// ResyncNeeded reports whether a notification arrived while a cycle was
// running.
func (s *Store) ResyncNeeded(ctx context.Context) (bool, error) {
	var needed bool

	err := s.flagStmts.get.QueryRowContext(ctx).Scan(&needed)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("state: get resync flag: %w", err)
	}

	return needed, nil
}

// SetResyncNeeded flags that changes arrived while a cycle was in progress.
func (s *Store) SetResyncNeeded(ctx context.Context) error {
	if _, err := s.flagStmts.set.ExecContext(ctx); err != nil {
		return fmt.Errorf("state: set resync flag: %w", err)
	}

	return nil
}

// ClearResyncNeeded resets the resync flag.
func (s *Store) ClearResyncNeeded(ctx context.Context) error {
	if _, err := s.flagStmts.clear.ExecContext(ctx); err != nil {
		return fmt.Errorf("state: clear resync flag: %w", err)
	}

	return nil
}

// --- Distributed lock ---

// AcquireLock attempts to take the sync lock in a single read-check-write
// transaction. It succeeds when no lock exists, the lock is not held, or the
// held lock is older than LockTTL (in which case the stale lock is broken
// with a warning). Returns false when the lock is held and fresh.
func (s *Store) AcquireLock(ctx context.Context) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("state: begin lock tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var (
		locked     bool
		owner      sql.NullString
		acquiredAt sql.NullInt64
	)

	err = tx.QueryRowContext(ctx, sqlGetLock).Scan(&locked, &owner, &acquiredAt)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("state: read lock: %w", err)
	}

	nowUnix := s.now().Unix()

	if locked && acquiredAt.Valid {
		age := nowUnix - acquiredAt.Int64
		if age < int64(LockTTL.Seconds()) {
			return false, nil
		}

		s.logger.Warn("breaking stale sync lock",
			slog.String("previous_owner", owner.String),
			slog.Int64("age_seconds", age),
		)
	}

	if _, err := tx.ExecContext(ctx, sqlSetLock, true, s.lockOwner, nowUnix); err != nil {
		return false, fmt.Errorf("state: write lock: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("state: commit lock: %w", err)
	}

	return true, nil
}

// ReleaseLock releases the sync lock if this instance still owns it.
// Releasing a lock taken over by another instance is a safe no-op.
func (s *Store) ReleaseLock(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("state: begin unlock tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var (
		locked sql.NullBool
		owner  sql.NullString
	)

	err = tx.QueryRowContext(ctx, `SELECT locked, owner FROM sync_lock WHERE id = 1`).Scan(&locked, &owner)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("state: read lock for release: %w", err)
	}

	if owner.String != s.lockOwner {
		s.logger.Debug("not releasing lock owned by another instance",
			slog.String("owner", owner.String),
		)

		return nil
	}

	if _, err := tx.ExecContext(ctx, sqlSetLock, false, nil, nil); err != nil {
		return fmt.Errorf("state: clear lock: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("state: commit unlock: %w", err)
	}

	return nil
}

// --- Tracked files ---

// File returns the tracked record for a remote file ID, or nil if the file
// is not tracked.
func (s *Store) File(ctx context.Context, fileID string) (*TrackedFile, error) {
	f, err := scanFile(s.fileStmts.get.QueryRowContext(ctx, fileID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("state: get file %s: %w", fileID, err)
	}

	return f, nil
}

// SetFile creates or replaces a tracked-file record.
func (s *Store) SetFile(ctx context.Context, f *TrackedFile) error {
	_, err := s.fileStmts.set.ExecContext(ctx,
		f.FileID, f.Name, f.Path, f.MD5, f.MimeType, f.ModifiedTime,
		f.ExtractedPath, f.LastAuthorName, f.LastAuthorEmail,
		s.now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("state: set file %s: %w", f.FileID, err)
	}

	return nil
}

// DeleteFile removes a tracked-file record. Deleting an untracked file is
// a no-op.
func (s *Store) DeleteFile(ctx context.Context, fileID string) error {
	if _, err := s.fileStmts.delete.ExecContext(ctx, fileID); err != nil {
		return fmt.Errorf("state: delete file %s: %w", fileID, err)
	}

	return nil
}

// ListFiles returns all tracked files ordered by path. A non-empty prefix
// restricts the result to files whose path starts with it.
func (s *Store) ListFiles(ctx context.Context, pathPrefix string) ([]*TrackedFile, error) {
	var (
		rows *sql.Rows
		err  error
	)

	if pathPrefix == "" {
		rows, err = s.fileStmts.list.QueryContext(ctx)
	} else {
		// Range scan over the path index: [prefix, prefix+\xff).
		rows, err = s.fileStmts.listPrefix.QueryContext(ctx, pathPrefix, pathPrefix+"\xff")
	}

	if err != nil {
		return nil, fmt.Errorf("state: list files: %w", err)
	}
	defer rows.Close()

	var files []*TrackedFile

	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("state: scan file row: %w", err)
		}

		files = append(files, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("state: iterate files: %w", err)
	}

	return files, nil
}

// scanner abstracts *sql.Row and *sql.Rows for scanFile.
type scanner interface {
	Scan(dest ...any) error
}

func scanFile(row scanner) (*TrackedFile, error) {
	var f TrackedFile

	err := row.Scan(
		&f.FileID, &f.Name, &f.Path, &f.MD5, &f.MimeType, &f.ModifiedTime,
		&f.ExtractedPath, &f.LastAuthorName, &f.LastAuthorEmail,
	)
	if err != nil {
		return nil, err
	}

	return &f, nil
}
