package corpus

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
)

// PostgresSource reads the corpus from a documents table ordered by position.
type PostgresSource struct {
	db *sql.DB
}

func NewPostgresSource(dsn string) (*PostgresSource, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &PostgresSource{db: db}, nil
}

func (s *PostgresSource) Load(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT title, content, COALESCE(date, ''), COALESCE(tags, ARRAY[]::TEXT[])
		FROM documents
		ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var (
			title, content sql.NullString
			date           string
			tags           []string
		)
		if err := rows.Scan(&title, &content, &date, pq.Array(&tags)); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		doc := Document{Index: len(docs), Date: date, Tags: tags}
		if title.Valid {
			doc.Title = StringPtr(title.String)
		}
		if content.Valid {
			doc.Content = StringPtr(content.String)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

func (s *PostgresSource) Close() error {
	return s.db.Close()
}
