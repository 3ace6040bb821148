package implementation

import (
	"context"
	"errors"
	"time"

	"coaching-rag-be/internal/entity"
	"coaching-rag-be/internal/mapper"
	"coaching-rag-be/internal/model"
	"coaching-rag-be/internal/repository/contract"
	"coaching-rag-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ConversationSessionRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ConversationMapper
}

func NewConversationSessionRepository(db *gorm.DB) contract.ConversationSessionRepository {
	return &ConversationSessionRepositoryImpl{
		db:     db,
		mapper: mapper.NewConversationMapper(),
	}
}

func (r *ConversationSessionRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	return specification.ApplyAll(db, specs...)
}

func (r *ConversationSessionRepositoryImpl) Create(ctx context.Context, session *entity.ConversationSession) error {
	m := r.mapper.SessionToModel(session)
	if m.Id == uuid.Nil {
		m.Id = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*session = *r.mapper.SessionToEntity(m)
	return nil
}

func (r *ConversationSessionRepositoryImpl) Update(ctx context.Context, session *entity.ConversationSession) error {
	m := r.mapper.SessionToModel(session)
	if err := r.db.WithContext(ctx).Save(m).Error; err != nil {
		return err
	}
	*session = *r.mapper.SessionToEntity(m)
	return nil
}

func (r *ConversationSessionRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.ConversationSession{}, "id = ?", id).Error
}

func (r *ConversationSessionRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ConversationSession, error) {
	var m model.ConversationSession
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.SessionToEntity(&m), nil
}

func (r *ConversationSessionRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ConversationSession, error) {
	var models []*model.ConversationSession
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.ConversationSession, len(models))
	for i, m := range models {
		entities[i] = r.mapper.SessionToEntity(m)
	}
	return entities, nil
}

func (r *ConversationSessionRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.ConversationSession{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ConversationSessionRepositoryImpl) TouchLastMessageAt(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.ConversationSession{}).
		Where("id = ? AND last_message_at < ?", id, at).
		Update("last_message_at", at).Error
}

func (r *ConversationSessionRepositoryImpl) FindExpired(ctx context.Context, cutoff time.Time, limit int) ([]*entity.ConversationSession, error) {
	return r.FindAll(ctx,
		specification.LastMessageBefore{Cutoff: cutoff},
		specification.OrderBy{Field: "last_message_at"},
		specification.OrderBy{Field: "id"},
		specification.Pagination{Limit: limit},
	)
}
