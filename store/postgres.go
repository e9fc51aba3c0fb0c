package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"docquery/types"
)

// PostgresIndex is a pgvector-backed implementation of Storer. It trades
// the in-memory index's file snapshots for a durable table: Save and Load
// are no-ops because every Add is already persistent.
type PostgresIndex struct {
	pool     *pgxpool.Pool
	embedder Embedder
	dim      int
}

func NewPostgresIndex(ctx context.Context, connStr string, embedder Embedder, dim int) (*PostgresIndex, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	p := &PostgresIndex{
		pool:     pool,
		embedder: embedder,
		dim:      dim,
	}
	if err := p.createTables(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

func (p *PostgresIndex) createTables(ctx context.Context) error {
	query := fmt.Sprintf(`
    CREATE EXTENSION IF NOT EXISTS vector;

    CREATE TABLE IF NOT EXISTS chunks (
        id UUID PRIMARY KEY,
        position BIGSERIAL,
        source TEXT NOT NULL,
        chunk_id TEXT NOT NULL,
        page_number INT NOT NULL DEFAULT 0,
        section TEXT,
        created_at TIMESTAMP WITH TIME ZONE,
        metadata JSONB,
        content TEXT NOT NULL,
        embedding vector(%d)
    );

	CREATE INDEX IF NOT EXISTS idx_chunks_embedding ON chunks USING ivfflat (embedding vector_ip_ops)
	WITH (lists = 100);

	CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source);
    `, p.dim)
	_, err := p.pool.Exec(ctx, query)
	return err
}

func (p *PostgresIndex) Add(ctx context.Context, chunks []types.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	vectors := make([][]float32, 0, len(chunks))
	for _, chunk := range chunks {
		vec, err := p.embedder.Embed(chunk.Content)
		if err != nil {
			return fmt.Errorf("embedding chunk %s: %w", chunk.ChunkID, err)
		}
		if len(vec) != p.dim {
			return fmt.Errorf("embedding for chunk %s has dimension %d, index expects %d",
				chunk.ChunkID, len(vec), p.dim)
		}
		vectors = append(vectors, vec)
	}

	query := `
    INSERT INTO chunks (id, source, chunk_id, page_number, section, created_at, metadata, content, embedding)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `
	for i, chunk := range chunks {
		meta, err := json.Marshal(chunk.Metadata)
		if err != nil {
			return fmt.Errorf("marshaling metadata for chunk %s: %w", chunk.ChunkID, err)
		}
		_, err = p.pool.Exec(ctx, query,
			uuid.New(), chunk.Source, chunk.ChunkID, chunk.PageNumber, chunk.Section,
			chunk.Timestamp, meta, chunk.Content, toPgVector(vectors[i]),
		)
		if err != nil {
			return fmt.Errorf("inserting chunk %s: %w", chunk.ChunkID, err)
		}
	}
	log.Printf("[INDEX] Inserted %d chunks into postgres", len(chunks))
	return nil
}

func (p *PostgresIndex) Search(ctx context.Context, query string, k int) ([]types.ScoredChunk, error) {
	queryVec, err := p.embedder.Embed(query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	// <#> is pgvector's negative inner product; negate it back into a
	// higher-is-better similarity score.
	sql := `
		SELECT source, chunk_id, page_number, section, created_at, metadata, content,
		       (embedding <#> $1) * -1 AS score
		FROM chunks
		WHERE embedding IS NOT NULL
		ORDER BY embedding <#> $1
		LIMIT $2
	`
	rows, err := p.pool.Query(ctx, sql, pgvector.NewVector(queryVec), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []types.ScoredChunk
	for rows.Next() {
		var (
			chunk types.DocumentChunk
			ts    *time.Time
			meta  []byte
			score float64
		)
		if err := rows.Scan(
			&chunk.Source,
			&chunk.ChunkID,
			&chunk.PageNumber,
			&chunk.Section,
			&ts,
			&meta,
			&chunk.Content,
			&score,
		); err != nil {
			return nil, err
		}
		if ts != nil {
			chunk.Timestamp = *ts
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &chunk.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshaling metadata for chunk %s: %w", chunk.ChunkID, err)
			}
		}
		results = append(results, types.ScoredChunk{Chunk: chunk, Score: score})
	}
	return results, rows.Err()
}

func (p *PostgresIndex) SemanticSearch(ctx context.Context, query string, k int, threshold float64) ([]types.DocumentChunk, error) {
	results, err := p.Search(ctx, query, k)
	if err != nil {
		return nil, err
	}

	var chunks []types.DocumentChunk
	for _, r := range results {
		if r.Score >= threshold {
			chunks = append(chunks, r.Chunk)
		}
	}
	return chunks, nil
}

// Save is a no-op: the table is the persistent form.
func (p *PostgresIndex) Save(ctx context.Context, path string) error {
	return nil
}

// Load is a no-op: the table is already live.
func (p *PostgresIndex) Load(ctx context.Context, path string) error {
	return nil
}

func (p *PostgresIndex) Stats(ctx context.Context) (types.IndexStats, error) {
	var count int
	if err := p.pool.QueryRow(ctx, "SELECT count(*) FROM chunks").Scan(&count); err != nil {
		return types.IndexStats{}, err
	}

	return types.IndexStats{
		TotalDocuments: count,
		IndexSize:      count,
		Dimension:      p.dim,
		ModelName:      p.embedder.Model(),
	}, nil
}

// Close closes the underlying connection pool.
func (p *PostgresIndex) Close() error {
	if p.pool != nil {
		p.pool.Close()
		log.Println("Postgres connection pool is closed")
	}
	return nil
}

func toPgVector(v []float32) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = fmt.Sprintf("%f", x)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
