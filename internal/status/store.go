package status

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema
// changes; the database is tiny, so operators can simply delete it.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the
// expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// Store manages status persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the status database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=FULL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	err = s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete the status database)",
			ErrSchemaMismatch, version, schemaVersion)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO transfer_status (id) VALUES (1)"); err != nil {
		return fmt.Errorf("seed status row: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// LoadStatus reads the persisted snapshot.
func (s *Store) LoadStatus(ctx context.Context) (Status, error) {
	var st Status
	var inProgress, suspended, clean int
	var heartbeat, storageNote, adminNote, graceNote string
	err := s.db.QueryRowContext(ctx, `
        SELECT current_transfer_source, transfer_target_user, transfer_in_progress,
               current_transfer_size, bytes_completed, bytes_current_file,
               percent_complete, service_suspended, suspend_reason,
               last_heartbeat, last_storage_notification, last_admin_notification,
               last_grace_notification, clean_shutdown
        FROM transfer_status WHERE id = 1`,
	).Scan(
		&st.CurrentTransferSource, &st.TransferTargetUser, &inProgress,
		&st.CurrentTransferSize, &st.BytesCompleted, &st.BytesCurrentFile,
		&st.PercentComplete, &suspended, &st.SuspendReason,
		&heartbeat, &storageNote, &adminNote, &graceNote, &clean,
	)
	if err != nil {
		return Status{}, fmt.Errorf("load status: %w", err)
	}
	st.TransferInProgress = inProgress != 0
	st.ServiceSuspended = suspended != 0
	st.CleanShutdown = clean != 0
	st.LastHeartbeat = parseTimestamp(heartbeat)
	st.LastStorageNotification = parseTimestamp(storageNote)
	st.LastAdminNotification = parseTimestamp(adminNote)
	st.LastGraceNotification = parseTimestamp(graceNote)
	return st, nil
}

// SaveStatus writes the whole snapshot in one statement.
func (s *Store) SaveStatus(ctx context.Context, st Status) error {
	_, err := s.db.ExecContext(ctx, `
        UPDATE transfer_status SET
            current_transfer_source = ?, transfer_target_user = ?,
            transfer_in_progress = ?, current_transfer_size = ?,
            bytes_completed = ?, bytes_current_file = ?, percent_complete = ?,
            service_suspended = ?, suspend_reason = ?, last_heartbeat = ?,
            last_storage_notification = ?, last_admin_notification = ?,
            last_grace_notification = ?, clean_shutdown = ?
        WHERE id = 1`,
		st.CurrentTransferSource, st.TransferTargetUser,
		boolInt(st.TransferInProgress), st.CurrentTransferSize,
		st.BytesCompleted, st.BytesCurrentFile, st.PercentComplete,
		boolInt(st.ServiceSuspended), st.SuspendReason, formatTimestamp(st.LastHeartbeat),
		formatTimestamp(st.LastStorageNotification), formatTimestamp(st.LastAdminNotification),
		formatTimestamp(st.LastGraceNotification), boolInt(st.CleanShutdown),
	)
	if err != nil {
		return fmt.Errorf("save status: %w", err)
	}
	return nil
}

// AppendHistory records a finalized transfer.
func (s *Store) AppendHistory(ctx context.Context, entry HistoryEntry) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO transfer_history (user, batch, bytes, started_at, completed_at)
        VALUES (?, ?, ?, ?, ?)`,
		entry.User, entry.Batch, entry.Bytes,
		formatTimestamp(entry.StartedAt), formatTimestamp(entry.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// History returns the most recent finalized transfers, newest first.
func (s *Store) History(ctx context.Context, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, user, batch, bytes, started_at, completed_at
        FROM transfer_history ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var entry HistoryEntry
		var started, completed string
		if err := rows.Scan(&entry.ID, &entry.User, &entry.Batch, &entry.Bytes, &started, &completed); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		entry.StartedAt = parseTimestamp(started)
		entry.CompletedAt = parseTimestamp(completed)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func boolInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimestamp(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
