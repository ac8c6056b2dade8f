// Package history keeps a bounded record of recent webhook deliveries
// for debugging payload shapes without tailing server logs.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

// Entry is one recorded webhook delivery.
type Entry struct {
	ID         string    `json:"id"`
	ReceivedAt time.Time `json:"receivedAt"`
	Kind       string    `json:"kind"`
	Status     string    `json:"status"`
	Payload    string    `json:"payload"`
}

// Store persists webhook deliveries in SQLite, keeping only the most
// recent entries up to the configured retention.
type Store struct {
	db        *sql.DB
	dbPath    string
	retention int
}

// NewStore creates or opens a delivery history store at dbPath.
func NewStore(dbPath string, retention int) (*Store, error) {
	if retention <= 0 {
		return nil, fmt.Errorf("history retention must be positive, got %d", retention)
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
		return nil, fmt.Errorf("creating history dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening history db: %w", err)
	}

	store := &Store{db: db, dbPath: dbPath, retention: retention}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing history schema: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS deliveries (
		id TEXT PRIMARY KEY,
		received_at DATETIME NOT NULL,
		kind TEXT NOT NULL,
		status TEXT NOT NULL,
		payload TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_deliveries_received_at ON deliveries(received_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record stores a delivery and prunes entries beyond the retention limit.
// It returns the number of retained entries.
func (s *Store) Record(kind, status, payload string) (int, error) {
	entry := Entry{
		ID:         uuid.NewString(),
		ReceivedAt: time.Now().UTC(),
		Kind:       kind,
		Status:     status,
		Payload:    payload,
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("starting history tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(
		`INSERT INTO deliveries (id, received_at, kind, status, payload) VALUES (?, ?, ?, ?, ?)`,
		entry.ID, entry.ReceivedAt, entry.Kind, entry.Status, entry.Payload,
	); err != nil {
		return 0, fmt.Errorf("recording delivery: %w", err)
	}

	// Keep only the newest N deliveries.
	if _, err := tx.Exec(
		`DELETE FROM deliveries WHERE id NOT IN (
			SELECT id FROM deliveries ORDER BY received_at DESC, id LIMIT ?
		)`, s.retention,
	); err != nil {
		return 0, fmt.Errorf("pruning deliveries: %w", err)
	}

	var count int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM deliveries`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting deliveries: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing delivery: %w", err)
	}
	return count, nil
}

// Recent returns up to limit deliveries, newest first.
func (s *Store) Recent(limit int) ([]Entry, error) {
	if limit <= 0 || limit > s.retention {
		limit = s.retention
	}

	rows, err := s.db.Query(
		`SELECT id, received_at, kind, status, payload
		 FROM deliveries ORDER BY received_at DESC, id LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying deliveries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.ReceivedAt, &e.Kind, &e.Status, &e.Payload); err != nil {
			return nil, fmt.Errorf("scanning delivery: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
