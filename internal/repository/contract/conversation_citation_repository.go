package contract

import (
	"context"

	"coaching-rag-be/internal/entity"
	"coaching-rag-be/internal/repository/specification"

	"github.com/google/uuid"
)

type ConversationCitationRepository interface {
	CreateBulk(ctx context.Context, citations []*entity.ConversationCitation) error
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	DeleteBySessionId(ctx context.Context, sessionId uuid.UUID) (int64, error)
}
