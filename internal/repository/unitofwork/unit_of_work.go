package unitofwork

import (
	"context"

	"coaching-rag-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	DocumentRepository() contract.DocumentRepository
	ChunkRepository() contract.ChunkRepository

	ConversationSessionRepository() contract.ConversationSessionRepository
	ConversationMessageRepository() contract.ConversationMessageRepository
	ConversationCitationRepository() contract.ConversationCitationRepository
	UserProfileRepository() contract.UserProfileRepository
}
