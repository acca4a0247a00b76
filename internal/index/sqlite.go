package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"pcc-go/internal/index/migrations"
	"pcc-go/internal/pcc"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteIndex implements the LocalIndex interface using SQLite. It caches the
// set of digests known to exist in the content store so transfers can skip
// remote existence checks for blobs this machine has already seen.
type SQLiteIndex struct {
	db   *sql.DB
	path string
}

// NewSQLiteIndex creates a new SQLite index at the given path.
// path can be a file path or ":memory:" for an in-memory index.
func NewSQLiteIndex(path string) (*SQLiteIndex, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating index database: %w", err)
	}

	return &SQLiteIndex{db: db, path: path}, nil
}

// OpenConnection opens and configures a SQLite connection with appropriate PRAGMAs.
// This is exported for use in tools and tests that need a properly configured
// SQLite connection. path can be a file path or ":memory:".
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign key constraints (SQLite default is OFF for backward compatibility)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// HasBlob reports whether the digest has been recorded in the index.
func (s *SQLiteIndex) HasBlob(digest string) (bool, error) {
	var found string
	err := s.db.QueryRow("SELECT digest FROM blobs WHERE digest = ?", digest).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("querying blob by digest: %w", err)
	}
	return true, nil
}

// RecordBlob records that a blob with this digest exists in the content store.
// Recording the same digest twice is a no-op.
func (s *SQLiteIndex) RecordBlob(digest string, size int64) error {
	_, err := s.db.Exec(
		"INSERT INTO blobs (digest, size, created_at) VALUES (?, ?, ?) ON CONFLICT (digest) DO NOTHING",
		digest, size, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("recording blob: %w", err)
	}
	return nil
}

// BlobCount returns the number of digests recorded in the index.
func (s *SQLiteIndex) BlobCount() (int64, error) {
	var n int64
	if err := s.db.QueryRow("SELECT COUNT(*) FROM blobs").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting blobs: %w", err)
	}
	return n, nil
}

// Transfer operation tracking

// StartOperation records the start of an upload or download operation and
// returns its row ID.
func (s *SQLiteIndex) StartOperation(operation, parameters string) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO transfer_operations (started_at, operation, parameters, status) VALUES (?, ?, ?, 'started')",
		time.Now(), operation, parameters,
	)
	if err != nil {
		return 0, fmt.Errorf("starting operation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading operation id: %w", err)
	}
	return id, nil
}

// FinishOperation marks an operation as finished with the given status.
func (s *SQLiteIndex) FinishOperation(id int64, status string) error {
	_, err := s.db.Exec(
		"UPDATE transfer_operations SET finished_at = ?, status = ? WHERE id = ?",
		time.Now(), status, id,
	)
	if err != nil {
		return fmt.Errorf("finishing operation: %w", err)
	}
	return nil
}

// Operation describes a recorded transfer operation.
type Operation struct {
	ID         int64
	StartedAt  time.Time
	FinishedAt sql.NullTime
	Operation  string
	Parameters string
	Status     string
}

// ListOperations returns the most recent transfer operations, newest first.
func (s *SQLiteIndex) ListOperations(limit int) ([]*Operation, error) {
	rows, err := s.db.QueryContext(context.Background(),
		"SELECT id, started_at, finished_at, operation, parameters, status FROM transfer_operations ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	defer rows.Close()

	var ops []*Operation
	for rows.Next() {
		var op Operation
		if err := rows.Scan(&op.ID, &op.StartedAt, &op.FinishedAt, &op.Operation, &op.Parameters, &op.Status); err != nil {
			return nil, fmt.Errorf("scanning operation: %w", err)
		}
		ops = append(ops, &op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	return ops, nil
}

// Path returns the database file path (or ":memory:" for in-memory indexes).
func (s *SQLiteIndex) Path() string {
	return s.path
}

// CheckMigrations verifies the index schema is up-to-date.
func (s *SQLiteIndex) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// Close closes the database connection.
func (s *SQLiteIndex) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Compile-time check that SQLiteIndex implements pcc.LocalIndex
var _ pcc.LocalIndex = (*SQLiteIndex)(nil)
