// Package store is a SQLite-backed document store. Each cog owns a named
// partition and keeps small JSON documents (configuration, stats, claim
// records) in it, keyed by a string id.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a document does not exist in a partition.
var ErrNotFound = errors.New("store: document not found")

// SQLiteStore holds all partitions in a single database.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and runs migrations.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: busy timeout: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS documents (
			partition  TEXT NOT NULL,
			id         TEXT NOT NULL,
			body       TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (partition, id)
		);
	`)
	if err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Partition returns a handle scoped to the named partition.
func (s *SQLiteStore) Partition(name string) *Partition {
	return &Partition{db: s.db, name: name}
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection (for testing or direct access).
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Partition is a namespace of documents owned by one cog.
type Partition struct {
	db   *sql.DB
	name string
}

// Name returns the partition name.
func (p *Partition) Name() string { return p.name }

// FindOne decodes the document with the given id into v.
func (p *Partition) FindOne(ctx context.Context, id string, v any) error {
	raw, err := p.raw(ctx, id)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("store: decode %s/%s: %w", p.name, id, err)
	}
	return nil
}

// Upsert stores v as the document with the given id, replacing any previous version.
func (p *Partition) Upsert(ctx context.Context, id string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: encode %s/%s: %w", p.name, id, err)
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO documents (partition, id, body, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(partition, id) DO UPDATE SET body=excluded.body, updated_at=excluded.updated_at
	`, p.name, id, string(body), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("store: upsert %s/%s: %w", p.name, id, err)
	}
	return nil
}

// Delete removes a document. It returns ErrNotFound if nothing was deleted.
func (p *Partition) Delete(ctx context.Context, id string) error {
	result, err := p.db.ExecContext(ctx, `DELETE FROM documents WHERE partition = ? AND id = ?`, p.name, id)
	if err != nil {
		return fmt.Errorf("store: delete %s/%s: %w", p.name, id, err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Count returns the number of documents in the partition.
func (p *Partition) Count(ctx context.Context) (int, error) {
	var n int
	err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE partition = ?`, p.name).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("store: count %s: %w", p.name, err)
	}
	return n, nil
}

func (p *Partition) raw(ctx context.Context, id string) ([]byte, error) {
	var body string
	err := p.db.QueryRowContext(ctx, `SELECT body FROM documents WHERE partition = ? AND id = ?`, p.name, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: find %s/%s: %w", p.name, id, err)
	}
	return []byte(body), nil
}
