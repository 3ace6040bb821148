package contract

import (
	"context"
	"time"

	"coaching-rag-be/internal/entity"
	"coaching-rag-be/internal/repository/specification"

	"github.com/google/uuid"
)

type ConversationSessionRepository interface {
	Create(ctx context.Context, session *entity.ConversationSession) error
	Update(ctx context.Context, session *entity.ConversationSession) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ConversationSession, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ConversationSession, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	// TouchLastMessageAt only moves the retention clock forward.
	TouchLastMessageAt(ctx context.Context, id uuid.UUID, at time.Time) error
	// FindExpired returns up to limit sessions idle since before cutoff, oldest first.
	FindExpired(ctx context.Context, cutoff time.Time, limit int) ([]*entity.ConversationSession, error)
}
