package history

import (
	"context"

	"coaching-rag-be/internal/entity"
	"coaching-rag-be/internal/repository/specification"
	"coaching-rag-be/internal/repository/unitofwork"
	"coaching-rag-be/pkg/llm"

	"github.com/google/uuid"
)

const defaultWindow = 10

// Loader reads prior turns of a session for prompt context.
type Loader struct {
	uowFactory unitofwork.RepositoryFactory
	window     int
}

func NewLoader(uowFactory unitofwork.RepositoryFactory, window int) *Loader {
	if window <= 0 {
		window = defaultWindow
	}
	return &Loader{
		uowFactory: uowFactory,
		window:     window,
	}
}

// LoadTurns returns the owner's messages of the session in chronological order.
func (l *Loader) LoadTurns(ctx context.Context, ownerId, sessionId uuid.UUID) ([]*entity.ConversationMessage, error) {
	uow := l.uowFactory.NewUnitOfWork(ctx)
	return uow.ConversationMessageRepository().FindAll(ctx,
		specification.BySessionID{SessionID: sessionId},
		specification.OwnedBy{OwnerID: ownerId},
		specification.Chronological{},
	)
}

func (l *Loader) Window() int {
	return l.window
}

// FilterGrounded keeps complete question/answer turns whose answer was grounded
// in the same document scope and was not a fallback. Order is preserved, oldest
// first, and only the newest window messages survive.
func FilterGrounded(messages []*entity.ConversationMessage, documentId *uuid.UUID, window int) []llm.Message {
	var kept []llm.Message
	var pending *entity.ConversationMessage

	for _, msg := range messages {
		switch msg.Role {
		case entity.RoleUser:
			pending = msg
		case entity.RoleAssistant:
			question := pending
			pending = nil
			if question == nil || !sameTurn(question, msg) {
				continue
			}
			if msg.Metadata.Fallback || !sameScope(msg.Metadata.DocumentId, documentId) {
				continue
			}
			kept = append(kept,
				llm.Message{Role: "user", Content: question.Content},
				llm.Message{Role: "assistant", Content: msg.Content},
			)
		}
	}

	if window > 0 && len(kept) > window {
		kept = kept[len(kept)-window:]
		// never start on a dangling answer
		if len(kept) > 0 && kept[0].Role == "assistant" {
			kept = kept[1:]
		}
	}
	return kept
}

func sameTurn(question, answer *entity.ConversationMessage) bool {
	if question.Metadata.TurnId == "" || answer.Metadata.TurnId == "" {
		return true
	}
	return question.Metadata.TurnId == answer.Metadata.TurnId
}

func sameScope(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
