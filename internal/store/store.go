package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/openlegis/billchat/pkg/models"
)

// Store persists embedded bill chunks in Postgres with pgvector. The
// chat pipeline runs off the in-memory cache; this store is the
// durable mirror built by cmd/indexer for operators who want one.
type Store struct {
	pool *pgxpool.Pool
}

// BillStore defines the methods the Store must implement.
type BillStore interface {
	Migrate(ctx context.Context, dim int) error
	UpsertChunk(ctx context.Context, bill models.BillIdentity, chunk models.BillChunk, embedding []float32) error
	Search(ctx context.Context, bill models.BillIdentity, queryVec []float32, k int) ([]models.SearchResult, error)
	Bills(ctx context.Context) ([]string, error)
}

// New creates a Store connected to the given database URL.
func New(ctx context.Context, url string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}
	p, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{pool: p}, nil
}

func (s *Store) Close() { s.pool.Close() }

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}

// Migrate applies the schema. The vector column width must match the
// embedding model's dimensionality.
func (s *Store) Migrate(ctx context.Context, dim int) error {
	q := `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS bill_chunks (
  bill_key    TEXT NOT NULL,
  chunk_id    INT NOT NULL,
  congress    INT NOT NULL,
  bill_type   TEXT NOT NULL,
  bill_number INT NOT NULL,
  section     TEXT,
  subsection  TEXT,
  content     TEXT NOT NULL,
  start_word  INT NOT NULL,
  end_word    INT NOT NULL,
  embedding   vector(%d),
  created_at  TIMESTAMP WITH TIME ZONE DEFAULT now(),
  PRIMARY KEY (bill_key, chunk_id)
);

CREATE INDEX IF NOT EXISTS bill_chunks_bill_key_idx
  ON bill_chunks (bill_key);

CREATE INDEX IF NOT EXISTS bill_chunks_embedding_idx
  ON bill_chunks USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);
`
	_, err := s.pool.Exec(ctx, fmt.Sprintf(q, dim))
	return err
}

// UpsertChunk inserts or replaces one embedded chunk.
func (s *Store) UpsertChunk(ctx context.Context, bill models.BillIdentity, chunk models.BillChunk, embedding []float32) error {
	var ev any
	if embedding != nil {
		ev = pgvector.NewVector(embedding)
	} else {
		ev = (*pgvector.Vector)(nil)
	}

	const q = `
		INSERT INTO bill_chunks (
			bill_key, chunk_id, congress, bill_type, bill_number,
			section, subsection, content, start_word, end_word, embedding, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,now())
		ON CONFLICT (bill_key, chunk_id) DO UPDATE SET
			section    = EXCLUDED.section,
			subsection = EXCLUDED.subsection,
			content    = EXCLUDED.content,
			start_word = EXCLUDED.start_word,
			end_word   = EXCLUDED.end_word,
			embedding  = COALESCE(EXCLUDED.embedding, bill_chunks.embedding),
			created_at = bill_chunks.created_at;`

	_, err := s.pool.Exec(ctx, q,
		bill.Key(), chunk.ID, bill.Congress, bill.Type, bill.Number,
		chunk.Section, chunk.Subsection, chunk.Text, chunk.StartWord, chunk.EndWord, ev,
	)
	return err
}

// Search ranks a bill's stored chunks by cosine similarity in SQL.
func (s *Store) Search(ctx context.Context, bill models.BillIdentity, queryVec []float32, k int) ([]models.SearchResult, error) {
	const q = `
		SELECT chunk_id, content, section, subsection, start_word, end_word,
		       1 - (embedding <=> $1) AS similarity
		FROM bill_chunks
		WHERE bill_key = $2 AND embedding IS NOT NULL
		ORDER BY embedding <=> $1, chunk_id
		LIMIT $3`

	rows, err := s.pool.Query(ctx, q, pgvector.NewVector(queryVec), bill.Key(), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.SearchResult
	for rows.Next() {
		var r models.SearchResult
		var section, subsection *string
		if err := rows.Scan(&r.Chunk.ID, &r.Chunk.Text, &section, &subsection,
			&r.Chunk.StartWord, &r.Chunk.EndWord, &r.Similarity); err != nil {
			return nil, err
		}
		if section != nil {
			r.Chunk.Section = *section
		}
		if subsection != nil {
			r.Chunk.Subsection = *subsection
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Bills returns the distinct bill keys present in the store.
func (s *Store) Bills(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT bill_key FROM bill_chunks ORDER BY bill_key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
