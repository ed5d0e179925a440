package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
)

// PostgresStore keeps records next to the corpus in Postgres.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	s := &PostgresStore{db: db}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	// Advisory lock keeps concurrent runs from racing on the schema.
	const lockID = 418207761

	var acquired bool
	err := s.db.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, lockID).Scan(&acquired)
	if err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	if !acquired {
		// Another run is migrating; wait briefly and skip
		time.Sleep(2 * time.Second)
		return nil
	}
	defer func() {
		_, _ = s.db.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, lockID)
	}()

	_, err = s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS cluster_records (
			cluster_id INTEGER PRIMARY KEY,
			date       TEXT NOT NULL DEFAULT '',
			tags       TEXT[] NOT NULL DEFAULT '{}',
			sources    INTEGER[] NOT NULL,
			answer     TEXT NOT NULL,
			payload    JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("failed to create cluster_records table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context) (map[int]Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT cluster_id, payload::text FROM cluster_records`)
	if err != nil {
		return nil, fmt.Errorf("querying cluster_records: %w", err)
	}
	defer rows.Close()
	return scanPayloads(rows)
}

// Save inserts the records that are not stored yet.
func (s *PostgresStore) Save(ctx context.Context, records map[int]Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for id, r := range records {
		args, err := insertArgs(id, r)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO cluster_records (cluster_id, date, tags, sources, answer, payload)
			VALUES ($1, $2, $3, $4, $5, $6::jsonb)
			ON CONFLICT (cluster_id) DO NOTHING`, args...)
		if err != nil {
			return fmt.Errorf("inserting record %d: %w", id, err)
		}
	}
	return tx.Commit()
}

// insertArgs binds one record for the insert. Missing tags bind as an empty
// array; pq.Array(nil) would bind NULL and violate the NOT NULL columns.
func insertArgs(id int, r Record) ([]any, error) {
	payload, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encoding record %d: %w", id, err)
	}
	tags := r.Tags
	if tags == nil {
		tags = []string{}
	}
	sources := make([]int64, len(r.Sources))
	for i, src := range r.Sources {
		sources[i] = int64(src)
	}
	return []any{id, r.Date, pq.Array(tags), pq.Array(sources), r.Answer, string(payload)}, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
