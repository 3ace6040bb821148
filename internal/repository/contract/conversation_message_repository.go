package contract

import (
	"context"

	"coaching-rag-be/internal/entity"
	"coaching-rag-be/internal/repository/specification"

	"github.com/google/uuid"
)

type ConversationMessageRepository interface {
	// Append inserts the message unless (SessionId, ClientId) already exists.
	// Either way the stored row is returned; created reports whether this call wrote it.
	Append(ctx context.Context, message *entity.ConversationMessage) (stored *entity.ConversationMessage, created bool, err error)
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ConversationMessage, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ConversationMessage, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	DeleteBySessionId(ctx context.Context, sessionId uuid.UUID) (int64, error)
}
