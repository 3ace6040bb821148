package implementation

import (
	"context"

	"coaching-rag-be/internal/entity"
	"coaching-rag-be/internal/mapper"
	"coaching-rag-be/internal/model"
	"coaching-rag-be/internal/repository/contract"
	"coaching-rag-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ConversationCitationRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ConversationMapper
}

func NewConversationCitationRepository(db *gorm.DB) contract.ConversationCitationRepository {
	return &ConversationCitationRepositoryImpl{
		db:     db,
		mapper: mapper.NewConversationMapper(),
	}
}

func (r *ConversationCitationRepositoryImpl) CreateBulk(ctx context.Context, citations []*entity.ConversationCitation) error {
	if len(citations) == 0 {
		return nil
	}
	models := make([]*model.ConversationCitation, len(citations))
	for i, c := range citations {
		if c.Id == uuid.Nil {
			c.Id = uuid.New()
		}
		models[i] = r.mapper.CitationToModel(c)
	}
	return r.db.WithContext(ctx).Create(models).Error
}

func (r *ConversationCitationRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&model.ConversationCitation{})
	for _, spec := range specs {
		query = spec.Apply(query)
	}
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ConversationCitationRepositoryImpl) DeleteBySessionId(ctx context.Context, sessionId uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).Where("session_id = ?", sessionId).Delete(&model.ConversationCitation{})
	return result.RowsAffected, result.Error
}
