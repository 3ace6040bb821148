package implementation

import (
	"context"
	"fmt"
	"sort"

	"coaching-rag-be/internal/entity"
	"coaching-rag-be/internal/mapper"
	"coaching-rag-be/internal/model"
	"coaching-rag-be/internal/repository/contract"
	"coaching-rag-be/internal/repository/specification"
	"coaching-rag-be/pkg/embedding"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

const defaultSearchLimit = 5

type ChunkRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.DocumentMapper
}

func NewChunkRepository(db *gorm.DB) contract.ChunkRepository {
	return &ChunkRepositoryImpl{
		db:     db,
		mapper: mapper.NewDocumentMapper(),
	}
}

func (r *ChunkRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	return specification.ApplyAll(db, specs...)
}

func (r *ChunkRepositoryImpl) CreateBulk(ctx context.Context, chunks []*entity.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	dimension := len(chunks[0].Embedding)
	models := make([]*model.Chunk, len(chunks))
	for i, c := range chunks {
		if len(c.Embedding) == 0 || len(c.Embedding) != dimension {
			return fmt.Errorf("chunk %d of document %s has embedding dimension %d, expected %d", c.ChunkIndex, c.DocumentId, len(c.Embedding), dimension)
		}
		if c.Id == uuid.Nil {
			c.Id = uuid.New()
		}
		models[i] = r.mapper.ChunkToModel(c)
	}

	if err := r.db.WithContext(ctx).Create(models).Error; err != nil {
		return err
	}

	for i, m := range models {
		*chunks[i] = *r.mapper.ChunkToEntity(m)
	}
	return nil
}

func (r *ChunkRepositoryImpl) DeleteByDocumentId(ctx context.Context, documentId uuid.UUID) error {
	return r.db.WithContext(ctx).Where("document_id = ?", documentId).Delete(&model.Chunk{}).Error
}

func (r *ChunkRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Chunk, error) {
	var models []*model.Chunk
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.Chunk, len(models))
	for i, m := range models {
		entities[i] = r.mapper.ChunkToEntity(m)
	}
	return entities, nil
}

func (r *ChunkRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.Chunk{}), specs...)
	err := query.Count(&count).Error
	return count, err
}

func (r *ChunkRepositoryImpl) SearchSimilar(ctx context.Context, query contract.ChunkSearchQuery) ([]*contract.ScoredChunk, error) {
	if query.Limit <= 0 {
		query.Limit = defaultSearchLimit
	}
	if len(query.Embedding) == 0 {
		return []*contract.ScoredChunk{}, nil
	}

	if r.db.Dialector.Name() == "postgres" {
		return r.searchWithPgvector(ctx, query)
	}
	return r.searchInProcess(ctx, query)
}

// searchWithPgvector ranks inside Postgres.
// Cosine distance in pgvector is 1 - cosine_similarity.
func (r *ChunkRepositoryImpl) searchWithPgvector(ctx context.Context, query contract.ChunkSearchQuery) ([]*contract.ScoredChunk, error) {
	type result struct {
		model.Chunk
		Similarity float64
	}
	var results []result

	queryVector := pgvector.NewVector(query.Embedding)

	db := r.db.WithContext(ctx).
		Table("chunks").
		Select("chunks.*, 1 - (embedding <=> ?) as similarity", queryVector).
		Where("owner_id = ?", query.OwnerId)
	if query.DocumentId != nil {
		db = db.Where("document_id = ?", *query.DocumentId)
	}

	err := db.
		Where("1 - (embedding <=> ?) >= ?", queryVector, query.Threshold).
		Order("similarity DESC").
		Order("chunk_index ASC").
		Limit(query.Limit).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	scored := make([]*contract.ScoredChunk, len(results))
	for i := range results {
		scored[i] = &contract.ScoredChunk{
			Chunk:      r.mapper.ChunkToEntity(&results[i].Chunk),
			Similarity: results[i].Similarity,
		}
	}
	return scored, nil
}

// searchInProcess serves dialects without a vector index (sqlite in local mode and tests).
func (r *ChunkRepositoryImpl) searchInProcess(ctx context.Context, query contract.ChunkSearchQuery) ([]*contract.ScoredChunk, error) {
	specs := []specification.Specification{specification.OwnedBy{OwnerID: query.OwnerId}}
	if query.DocumentId != nil {
		specs = append(specs, specification.ByDocumentID{DocumentID: *query.DocumentId})
	}

	chunks, err := r.FindAll(ctx, specs...)
	if err != nil {
		return nil, err
	}

	scored := make([]*contract.ScoredChunk, 0, len(chunks))
	for _, c := range chunks {
		similarity := embedding.CosineSimilarity(query.Embedding, c.Embedding)
		if similarity < query.Threshold {
			continue
		}
		scored = append(scored, &contract.ScoredChunk{Chunk: c, Similarity: similarity})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Similarity != scored[j].Similarity {
			return scored[i].Similarity > scored[j].Similarity
		}
		return scored[i].Chunk.ChunkIndex < scored[j].Chunk.ChunkIndex
	})

	if len(scored) > query.Limit {
		scored = scored[:query.Limit]
	}
	return scored, nil
}
