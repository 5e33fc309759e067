package qa

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores/pgvector"

	"github.com/zhouzirui/medrag/backend/internal/config"
)

const (
	embeddingTable  = pgvector.DefaultEmbeddingStoreTableName
	collectionTable = pgvector.DefaultCollectionStoreTableName
)

// Index is a Retriever backed by a document collection that can be counted
// and released.
type Index interface {
	Retriever
	CountDocuments(ctx context.Context) (int64, error)
	Close()
}

// VectorIndex stores document chunks in Postgres (pgvector) and embeds
// queries with an Ollama embedding model.
type VectorIndex struct {
	pool       *pgxpool.Pool
	store      pgvector.Store
	collection string
}

var _ Index = (*VectorIndex)(nil)

// OpenVectorIndex connects to the database and prepares the collection.
func OpenVectorIndex(ctx context.Context, cfg config.RetrievalConfig) (*VectorIndex, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("DATABASE_URL is not configured")
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	llm, err := ollama.New(
		ollama.WithServerURL(cfg.OllamaURL),
		ollama.WithModel(cfg.EmbeddingModel),
	)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("create ollama client: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("create embedder: %w", err)
	}

	store, err := pgvector.New(ctx,
		pgvector.WithConn(pool),
		pgvector.WithEmbedder(embedder),
		pgvector.WithCollectionName(cfg.Collection),
	)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("open pgvector collection %q: %w", cfg.Collection, err)
	}

	return &VectorIndex{pool: pool, store: store, collection: cfg.Collection}, nil
}

// Retrieve implements Retriever.
func (v *VectorIndex) Retrieve(ctx context.Context, query string, topK int) ([]Source, error) {
	docs, err := v.store.SimilaritySearch(ctx, query, topK)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}

	sources := make([]Source, 0, len(docs))
	for _, doc := range docs {
		sources = append(sources, Source{
			Content:  doc.PageContent,
			Metadata: doc.Metadata,
			Score:    doc.Score,
		})
	}
	return sources, nil
}

// CountDocuments returns the number of chunks stored in the collection.
func (v *VectorIndex) CountDocuments(ctx context.Context) (int64, error) {
	query := fmt.Sprintf(`SELECT count(*) FROM %s e JOIN %s c ON e.collection_id = c.uuid WHERE c.name = $1`,
		embeddingTable, collectionTable)

	var count int64
	if err := v.pool.QueryRow(ctx, query, v.collection).Scan(&count); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return count, nil
}

// AddDocuments embeds and stores the given chunks.
func (v *VectorIndex) AddDocuments(ctx context.Context, docs []schema.Document) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}
	ids, err := v.store.AddDocuments(ctx, docs)
	if err != nil {
		return 0, fmt.Errorf("add documents: %w", err)
	}
	return len(ids), nil
}

// Reset deletes every chunk of the collection, keeping the collection row.
func (v *VectorIndex) Reset(ctx context.Context) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE collection_id IN (SELECT uuid FROM %s WHERE name = $1)`,
		embeddingTable, collectionTable)

	tag, err := v.pool.Exec(ctx, query, v.collection)
	if err != nil {
		return 0, fmt.Errorf("reset collection: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Close releases the connection pool.
func (v *VectorIndex) Close() {
	v.pool.Close()
}
