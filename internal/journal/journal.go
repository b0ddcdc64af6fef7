// Package journal persists transfer history in an embedded SQLite database.
// The transfers listing reads from it, and interrupted downloads leave a
// record pointing at their partial file for resume.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite" // Pure Go SQLite driver, registers as "sqlite".
)

// Transfer lifecycle states.
const (
	StateActive   = "active"
	StateDone     = "done"
	StateFailed   = "failed"
	StateCanceled = "canceled"
)

// Record is one journaled transfer.
type Record struct {
	ID          string
	Kind        string // "upload" or "download"
	ItemID      string
	Name        string
	Size        int64
	Transferred int64
	State       string
	LocalPath   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Store is the SQLite-backed transfer journal. Safe for concurrent use; the
// database handle serializes access.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// Open opens (creating if needed) the journal database at dbPath and applies
// pending schema migrations. Use ":memory:" for tests.
func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("journal: open sqlite: %w", err)
	}

	// An in-memory database exists per connection; pin the pool to one so
	// the schema survives.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := setPragmas(context.Background(), db); err != nil {
		db.Close()

		return nil, err
	}

	if err := runMigrations(context.Background(), db, logger); err != nil {
		db.Close()

		return nil, err
	}

	logger.Debug("transfer journal ready", slog.String("path", dbPath))

	return &Store{db: db, logger: logger, now: time.Now}, nil
}

// setPragmas configures SQLite for WAL mode and safety.
func setPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("journal: set pragma %q: %w", p, err)
		}
	}

	return nil
}

// Begin inserts an active record and returns its ID.
func (s *Store) Begin(kind, itemID, name string, size int64, localPath string) (string, error) {
	id := uuid.NewString()
	now := s.now().UTC()

	_, err := s.db.Exec(`
		INSERT INTO transfers (id, kind, item_id, name, size, transferred, state, local_path, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 0, ?, ?, ?, ?)`,
		id, kind, itemID, name, size, StateActive, localPath, now, now,
	)
	if err != nil {
		return "", fmt.Errorf("journal: inserting transfer: %w", err)
	}

	return id, nil
}

// Progress updates the running byte count of an active record.
func (s *Store) Progress(id string, transferred int64) error {
	_, err := s.db.Exec(
		`UPDATE transfers SET transferred = ?, updated_at = ? WHERE id = ?`,
		transferred, s.now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("journal: updating progress: %w", err)
	}

	return nil
}

// Finish moves a record into a terminal state with its final byte count.
func (s *Store) Finish(id, state string, transferred int64) error {
	_, err := s.db.Exec(
		`UPDATE transfers SET state = ?, transferred = ?, updated_at = ? WHERE id = ?`,
		state, transferred, s.now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("journal: finishing transfer: %w", err)
	}

	return nil
}

// Recent returns the newest records first, at most limit of them.
func (s *Store) Recent(limit int) ([]Record, error) {
	rows, err := s.db.Query(`
		SELECT id, kind, item_id, name, size, transferred, state, local_path, created_at, updated_at
		FROM transfers
		ORDER BY created_at DESC, id
		LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("journal: listing transfers: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// Interrupted returns download records that ended in a non-done state and
// still have a local path, newest first. These are resume candidates.
func (s *Store) Interrupted() ([]Record, error) {
	rows, err := s.db.Query(`
		SELECT id, kind, item_id, name, size, transferred, state, local_path, created_at, updated_at
		FROM transfers
		WHERE kind = 'download' AND state IN (?, ?) AND local_path != ''
		ORDER BY created_at DESC, id`,
		StateFailed, StateCanceled,
	)
	if err != nil {
		return nil, fmt.Errorf("journal: listing interrupted transfers: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// Prune deletes terminal records older than cutoff.
func (s *Store) Prune(cutoff time.Time) (int64, error) {
	result, err := s.db.Exec(
		`DELETE FROM transfers WHERE state != ? AND updated_at < ?`,
		StateActive, cutoff.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("journal: pruning transfers: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("journal: counting pruned rows: %w", err)
	}

	return n, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var records []Record

	for rows.Next() {
		var r Record

		err := rows.Scan(&r.ID, &r.Kind, &r.ItemID, &r.Name, &r.Size, &r.Transferred, &r.State, &r.LocalPath, &r.CreatedAt, &r.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("journal: scanning transfer row: %w", err)
		}

		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: iterating transfer rows: %w", err)
	}

	return records, nil
}
