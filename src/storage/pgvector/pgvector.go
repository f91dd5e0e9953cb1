// Package pgvector stores chunk vectors in PostgreSQL with the pgvector extension.
package pgvector

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"docresearch/src/core/research"
)

var invalidIdent = regexp.MustCompile(`[^a-z0-9_]+`)

type Store struct {
	pool  *pgxpool.Pool
	table string
}

// NewStore connects to connString and keeps vectors in the table derived from index.
func NewStore(ctx context.Context, connString, index string) (*Store, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &Store{pool: pool, table: TableName(index)}, nil
}

// TableName converts an index name into a safe SQL identifier, e.g. "citation-theme-bot" becomes
// "citation_theme_bot".
func TableName(index string) string {
	name := strings.Trim(invalidIdent.ReplaceAllString(strings.ToLower(index), "_"), "_")
	if name == "" {
		return "chunks"
	}
	if name[0] >= '0' && name[0] <= '9' {
		name = "t_" + name
	}
	return name
}

func (s *Store) EnsureIndex(ctx context.Context, dimension int) error {
	if _, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			doc_id TEXT NOT NULL,
			ref TEXT NOT NULL,
			content TEXT NOT NULL,
			embedding vector(%d)
		)`, s.table, dimension)
	if _, err := s.pool.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_embedding_idx
		ON %s
		USING ivfflat (embedding vector_cosine_ops)
		WITH (lists = 100)`, s.table, s.table)
	if _, err := s.pool.Exec(ctx, createIndex); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	return nil
}

func (s *Store) Upsert(ctx context.Context, vectors []research.Vector) error {
	if len(vectors) == 0 {
		return nil
	}

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, doc_id, ref, content, embedding)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			doc_id = EXCLUDED.doc_id,
			ref = EXCLUDED.ref,
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding`, s.table)

	batch := &pgx.Batch{}
	for _, v := range vectors {
		batch.Queue(stmt, v.ID, v.DocID, v.Ref, sanitizeUTF8(v.Text), pgvector.NewVector(v.Values))
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to upsert vectors: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, vector []float32, topK int) ([]research.Match, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if vector == nil {
		rows, err = s.pool.Query(ctx, fmt.Sprintf(`
			SELECT id, doc_id, ref, content, 0::float8
			FROM %s
			LIMIT $1`, s.table), topK)
	} else {
		rows, err = s.pool.Query(ctx, fmt.Sprintf(`
			SELECT id, doc_id, ref, content, 1 - (embedding <=> $1)
			FROM %s
			ORDER BY embedding <=> $1
			LIMIT $2`, s.table), pgvector.NewVector(vector), topK)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query vectors: %w", err)
	}
	defer rows.Close()

	var matches []research.Match
	for rows.Next() {
		var m research.Match
		if err := rows.Scan(&m.ID, &m.DocID, &m.Ref, &m.Text, &m.Score); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// sanitizeUTF8 drops invalid bytes, which PostgreSQL rejects in TEXT columns.
func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "")
}
