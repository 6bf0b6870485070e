// Package docstore provides the per-user document store backing the
// progression engine. It exposes point reads, multi-document optimistic
// transactions, atomic multi-document field batches (increment, set, delete
// without a preceding read), and a change-subscription feed per document.
//
// Documents are versioned JSON bodies in SQLite (WAL mode). Transactions use
// the version column for optimistic concurrency; field batches run inside a
// single SQLite transaction so a multi-document batch commits atomically.
package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)
)

// Store is an injectable document store client. Construct one per process
// (or per test) and pass it to every component that needs persistence.
type Store struct {
	db  *sql.DB
	hub *hub
	log zerolog.Logger
}

// Snapshot is a full-document view at a committed version.
// Version 0 with Exists=false means the document has never been written.
type Snapshot struct {
	Collection string
	ID         string
	Version    int64
	Body       json.RawMessage
	UpdatedAt  time.Time
	Exists     bool
}

// Decode unmarshals the snapshot body into v. Absent documents decode as a
// no-op so callers can default-initialize first.
func (s Snapshot) Decode(v any) error {
	if !s.Exists {
		return nil
	}
	return json.Unmarshal(s.Body, v)
}

// Open creates or opens the document store at dir/documents.db.
// Enables WAL mode and a 5-second busy timeout.
func Open(dir string, log zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, "documents.db")
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// SQLite is single-writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db, hub: newHub(log), log: log}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close tears down all subscriptions and shuts down the database.
func (s *Store) Close() error {
	s.hub.closeAll()
	return s.db.Close()
}

// Ping checks store connectivity.
func (s *Store) Ping() error {
	return s.db.Ping()
}

// migrate runs idempotent schema migrations.
func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			collection TEXT NOT NULL,
			id         TEXT NOT NULL,
			version    INTEGER NOT NULL,
			body       TEXT NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (collection, id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_updated ON documents(updated_at)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// Get performs a point read of a single document.
// A missing document is not an error: the snapshot reports Exists=false.
func (s *Store) Get(ctx context.Context, collection, id string) (Snapshot, error) {
	snap := Snapshot{Collection: collection, ID: id}

	var body string
	var updatedAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT version, body, updated_at FROM documents WHERE collection = ? AND id = ?`,
		collection, id,
	).Scan(&snap.Version, &body, &updatedAt)
	if err == sql.ErrNoRows {
		return snap, nil
	}
	if err != nil {
		return snap, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}

	snap.Body = json.RawMessage(body)
	snap.UpdatedAt = time.Unix(updatedAt, 0)
	snap.Exists = true
	return snap, nil
}

// getTx reads version and body inside an open SQL transaction.
func getTx(tx *sql.Tx, collection, id string) (body []byte, version int64, err error) {
	var raw string
	err = tx.QueryRow(
		`SELECT version, body FROM documents WHERE collection = ? AND id = ?`,
		collection, id,
	).Scan(&version, &raw)
	if err == sql.ErrNoRows {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	return []byte(raw), version, nil
}

// putTx upserts a document body at the given version inside an open SQL
// transaction.
func putTx(tx *sql.Tx, collection, id string, version int64, body []byte, now time.Time) error {
	_, err := tx.Exec(
		`INSERT INTO documents (collection, id, version, body, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(collection, id) DO UPDATE SET
			version=excluded.version,
			body=excluded.body,
			updated_at=excluded.updated_at`,
		collection, id, version, string(body), now.Unix(),
	)
	return err
}
