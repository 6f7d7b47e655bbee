package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mudler/ragcontext/rag/types"
	"github.com/mudler/xlog"
)

// PostgresDB stores documents in a pgvector table and ranks them by cosine
// similarity.
type PostgresDB struct {
	pool           *pgxpool.Pool
	collectionName string
	tableName      string
	embed          EmbeddingFunc
	embeddingDims  int
}

// NewPostgresDBCollection connects to databaseURL and makes sure the
// collection table exists.
func NewPostgresDBCollection(ctx context.Context, collectionName, databaseURL string, embed EmbeddingFunc) (*PostgresDB, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required for PostgreSQL engine")
	}

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// The table needs a fixed vector width, probe the model once.
	probe, err := embed(ctx, "dimension probe")
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to get test embedding: %w", err)
	}

	pg := &PostgresDB{
		pool:           pool,
		collectionName: collectionName,
		tableName:      sanitizeTableName(collectionName),
		embed:          embed,
		embeddingDims:  len(probe),
	}

	if err := pg.setupDatabase(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to setup database: %w", err)
	}

	return pg, nil
}

func sanitizeTableName(name string) string {
	name = strings.ToLower(name)
	name = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			return r
		}
		return '_'
	}, name)
	if len(name) > 0 && (name[0] < 'a' || name[0] > 'z') {
		name = "col_" + name
	}
	return "documents_" + name
}

func (p *PostgresDB) setupDatabase(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to enable vector extension: %w", err)
	}

	_, err := p.pool.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id SERIAL PRIMARY KEY,
			content TEXT NOT NULL,
			metadata JSONB,
			embedding VECTOR(%d)
		)
	`, p.tableName, p.embeddingDims))
	if err != nil {
		return fmt.Errorf("failed to create documents table: %w", err)
	}

	_, err = p.pool.Exec(ctx, fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS idx_%s_embedding ON %s
		USING hnsw(embedding vector_cosine_ops)
	`, p.tableName, p.tableName))
	if err != nil {
		xlog.Warn("Failed to create HNSW index, searches will scan the table", "table", p.tableName, "error", err)
	}

	return nil
}

func formatVector(vec []float32) string {
	parts := make([]string, len(vec))
	for i, v := range vec {
		parts[i] = fmt.Sprintf("%.6f", v)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func (p *PostgresDB) Count(ctx context.Context) (int, error) {
	var count int
	err := p.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", p.tableName)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return count, nil
}

func (p *PostgresDB) Reset(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY", p.tableName)); err != nil {
		return fmt.Errorf("failed to truncate table: %w", err)
	}
	return nil
}

func (p *PostgresDB) Store(ctx context.Context, docs []string, metadata map[string]string) ([]types.Result, error) {
	if len(docs) == 0 {
		return nil, ErrEmptyDocuments
	}

	vectors, err := embedAll(ctx, p.embed, docs)
	if err != nil {
		return nil, err
	}

	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	results := make([]types.Result, 0, len(docs))
	for i, content := range docs {
		var id int
		err = p.pool.QueryRow(ctx, fmt.Sprintf(`
			INSERT INTO %s (content, metadata, embedding)
			VALUES ($1, $2::jsonb, $3::vector)
			RETURNING id
		`, p.tableName), content, string(metadataJSON), formatVector(vectors[i])).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("failed to insert document: %w", err)
		}

		results = append(results, types.Result{ID: types.ID(fmt.Sprint(id)), Data: content})
	}

	return results, nil
}

func (p *PostgresDB) Query(ctx context.Context, q types.Query) ([]types.Result, error) {
	queryEmbedding, err := p.embed(ctx, q.Text)
	if err != nil {
		return nil, fmt.Errorf("failed to get query embedding: %w", err)
	}

	rows, err := p.pool.Query(ctx, fmt.Sprintf(`
		SELECT
			id::text,
			content,
			metadata,
			(1 - (embedding <=> $1::vector)) AS similarity
		FROM %s
		WHERE embedding IS NOT NULL
		ORDER BY embedding <=> $1::vector
		LIMIT $2
	`, p.tableName), formatVector(queryEmbedding), q.TopK)
	if err != nil {
		return nil, fmt.Errorf("failed to execute search: %w", err)
	}
	defer rows.Close()

	results := []types.Result{}
	for rows.Next() {
		var (
			id           string
			content      string
			metadataJSON []byte
			similarity   float64
		)
		if err := rows.Scan(&id, &content, &metadataJSON, &similarity); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		r := types.Result{ID: types.ID(id), Score: similarity}
		if q.IncludeData {
			r.Data = content
		}
		if q.IncludeMetadata && len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &r.Metadata); err != nil {
				xlog.Warn("Ignoring malformed metadata", "id", id, "error", err)
			}
		}
		results = append(results, r)
	}

	return results, rows.Err()
}

// Close releases the connection pool.
func (p *PostgresDB) Close() {
	p.pool.Close()
}
