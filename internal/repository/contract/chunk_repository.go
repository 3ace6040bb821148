package contract

import (
	"context"

	"coaching-rag-be/internal/entity"
	"coaching-rag-be/internal/repository/specification"

	"github.com/google/uuid"
)

// ScoredChunk wraps Chunk with its cosine similarity to the query vector
type ScoredChunk struct {
	Chunk      *entity.Chunk
	Similarity float64
}

// ChunkSearchQuery scopes a similarity search. DocumentId nil means every document of the owner.
type ChunkSearchQuery struct {
	OwnerId    uuid.UUID
	DocumentId *uuid.UUID
	Embedding  []float32
	Limit      int
	Threshold  float64
}

type ChunkRepository interface {
	CreateBulk(ctx context.Context, chunks []*entity.Chunk) error
	DeleteByDocumentId(ctx context.Context, documentId uuid.UUID) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Chunk, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	// SearchSimilar returns at most Limit chunks with similarity >= Threshold,
	// ordered by similarity descending and chunk index ascending on ties.
	SearchSimilar(ctx context.Context, query ChunkSearchQuery) ([]*ScoredChunk, error)
}
