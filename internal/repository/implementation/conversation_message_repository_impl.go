package implementation

import (
	"context"
	"errors"

	"coaching-rag-be/internal/entity"
	"coaching-rag-be/internal/mapper"
	"coaching-rag-be/internal/model"
	"coaching-rag-be/internal/repository/contract"
	"coaching-rag-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ConversationMessageRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ConversationMapper
}

func NewConversationMessageRepository(db *gorm.DB) contract.ConversationMessageRepository {
	return &ConversationMessageRepositoryImpl{
		db:     db,
		mapper: mapper.NewConversationMapper(),
	}
}

func (r *ConversationMessageRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	return specification.ApplyAll(db, specs...)
}

// appendSeqAttempts bounds retries when concurrent appends race for the same seq.
const appendSeqAttempts = 5

func (r *ConversationMessageRepositoryImpl) Append(ctx context.Context, message *entity.ConversationMessage) (*entity.ConversationMessage, bool, error) {
	m, err := r.mapper.MessageToModel(message)
	if err != nil {
		return nil, false, err
	}
	if m.Id == uuid.Nil {
		m.Id = uuid.New()
	}

	db := r.db.WithContext(ctx)

	var created bool
	for attempt := 1; ; attempt++ {
		err := db.Transaction(func(tx *gorm.DB) error {
			// Seq breaks createdAt ties in insertion order.
			var maxSeq int64
			if err := tx.Model(&model.ConversationMessage{}).
				Where("session_id = ?", m.SessionId).
				Select("COALESCE(MAX(seq), 0)").
				Scan(&maxSeq).Error; err != nil {
				return err
			}
			m.Seq = maxSeq + 1

			// The (session_id, client_id) unique index is what makes retries converge.
			result := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "session_id"}, {Name: "client_id"}},
				DoNothing: true,
			}).Create(m)
			if result.Error != nil {
				return result.Error
			}
			created = result.RowsAffected > 0
			return nil
		})
		if err == nil {
			break
		}
		// (session_id, seq) is unique: a concurrent append took this seq, so read MAX again.
		if !IsUniqueViolation(err) || attempt >= appendSeqAttempts {
			return nil, false, err
		}
	}

	stored, err := r.FindOne(ctx,
		specification.BySessionID{SessionID: m.SessionId},
		specification.ByClientID{ClientID: m.ClientId},
	)
	if err != nil {
		return nil, false, err
	}
	if stored == nil {
		return nil, false, errors.New("appended message not found on read back")
	}
	return stored, created, nil
}

func (r *ConversationMessageRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ConversationMessage, error) {
	var m model.ConversationMessage
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.MessageToEntity(&m)
}

func (r *ConversationMessageRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ConversationMessage, error) {
	var models []*model.ConversationMessage
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.MessagesToEntities(models)
}

func (r *ConversationMessageRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.ConversationMessage{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ConversationMessageRepositoryImpl) DeleteBySessionId(ctx context.Context, sessionId uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).Where("session_id = ?", sessionId).Delete(&model.ConversationMessage{})
	return result.RowsAffected, result.Error
}
