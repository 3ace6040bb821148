package memory

import (
	"context"
	"time"

	"coaching-rag-be/internal/entity"
	"coaching-rag-be/internal/repository/contract"
	"coaching-rag-be/internal/repository/specification"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// DocumentCatalog answers filename lookups for citations, caching document
// rows in front of the documents table.
type DocumentCatalog struct {
	cache     *cache.Cache
	documents contract.DocumentRepository
}

func NewDocumentCatalog(documents contract.DocumentRepository, ttl time.Duration) *DocumentCatalog {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &DocumentCatalog{
		cache:     cache.New(ttl, 2*ttl),
		documents: documents,
	}
}

// Get returns the owner's document or nil when it does not exist or belongs to someone else.
func (c *DocumentCatalog) Get(ctx context.Context, ownerId, documentId uuid.UUID) (*entity.Document, error) {
	if x, found := c.cache.Get(documentId.String()); found {
		doc := x.(*entity.Document)
		if doc.OwnerId != ownerId {
			return nil, nil
		}
		return doc, nil
	}

	doc, err := c.documents.FindOne(ctx,
		specification.ByID{ID: documentId},
		specification.OwnedBy{OwnerID: ownerId},
	)
	if err != nil || doc == nil {
		return nil, err
	}
	c.cache.Set(documentId.String(), doc, cache.DefaultExpiration)
	return doc, nil
}

// Filenames resolves several documents at once. Unknown ids are absent from the result.
func (c *DocumentCatalog) Filenames(ctx context.Context, ownerId uuid.UUID, documentIds []uuid.UUID) (map[uuid.UUID]string, error) {
	names := make(map[uuid.UUID]string, len(documentIds))
	var missing []uuid.UUID
	for _, id := range documentIds {
		if _, done := names[id]; done {
			continue
		}
		if x, found := c.cache.Get(id.String()); found {
			if doc := x.(*entity.Document); doc.OwnerId == ownerId {
				names[id] = doc.Filename
			}
			continue
		}
		missing = append(missing, id)
	}

	if len(missing) > 0 {
		docs, err := c.documents.FindAll(ctx,
			specification.ByIDs{IDs: missing},
			specification.OwnedBy{OwnerID: ownerId},
		)
		if err != nil {
			return nil, err
		}
		for _, doc := range docs {
			c.cache.Set(doc.Id.String(), doc, cache.DefaultExpiration)
			names[doc.Id] = doc.Filename
		}
	}
	return names, nil
}

func (c *DocumentCatalog) Invalidate(documentId uuid.UUID) {
	c.cache.Delete(documentId.String())
}
