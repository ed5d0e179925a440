package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps one row per cluster in a local database file.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS cluster_records (
			cluster_id INTEGER PRIMARY KEY,
			answer     TEXT NOT NULL,
			payload    TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`)
	if err != nil {
		return fmt.Errorf("creating cluster_records: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context) (map[int]Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT cluster_id, payload FROM cluster_records`)
	if err != nil {
		return nil, fmt.Errorf("querying cluster_records: %w", err)
	}
	defer rows.Close()
	return scanPayloads(rows)
}

// Save inserts the records that are not stored yet.
func (s *SQLiteStore) Save(ctx context.Context, records map[int]Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO cluster_records (cluster_id, answer, payload) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for id, r := range records {
		payload, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("encoding record %d: %w", id, err)
		}
		if _, err := stmt.ExecContext(ctx, id, r.Answer, string(payload)); err != nil {
			return fmt.Errorf("inserting record %d: %w", id, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanPayloads(rows *sql.Rows) (map[int]Record, error) {
	out := make(map[int]Record)
	for rows.Next() {
		var (
			id      int
			payload string
		)
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, err
		}
		var r Record
		if err := json.Unmarshal([]byte(payload), &r); err != nil {
			return nil, fmt.Errorf("decoding record %d: %w", id, err)
		}
		r.ClusterID = id
		out[id] = r
	}
	return out, rows.Err()
}
