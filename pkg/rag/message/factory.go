package message

import (
	"time"

	"coaching-rag-be/internal/entity"
	"coaching-rag-be/pkg/idempotency"

	"github.com/google/uuid"
)

// Turn is one question with its answer, ready to persist.
type Turn struct {
	Id        string
	Question  *entity.ConversationMessage
	Answer    *entity.ConversationMessage
	Citations []entity.Citation
}

// Factory builds the two messages of a turn with their idempotency keys.
type Factory struct {
	now func() time.Time
}

func NewFactory(now func() time.Time) *Factory {
	if now == nil {
		now = time.Now
	}
	return &Factory{now: now}
}

// TurnInput carries what the orchestrator produced for one request.
type TurnInput struct {
	SessionId       uuid.UUID
	OwnerId         uuid.UUID
	DocumentId      *uuid.UUID
	ClientRequestId string
	Question        string
	Answer          string
	Citations       []entity.Citation
	Fallback        bool
	TokensUsed      int
}

func (f *Factory) NewTurn(in TurnInput) *Turn {
	now := f.now().UTC()

	turnId := in.ClientRequestId
	userClientId := idempotency.Fresh()
	assistantClientId := idempotency.Fresh()
	if in.ClientRequestId != "" {
		userClientId = idempotency.Derive(in.ClientRequestId, string(entity.RoleUser))
		assistantClientId = idempotency.Derive(in.ClientRequestId, string(entity.RoleAssistant))
	} else {
		turnId = uuid.NewString()
	}

	citations := in.Citations
	if citations == nil {
		citations = []entity.Citation{}
	}

	actionType := entity.ActionTypeAnswer
	if in.Fallback {
		actionType = entity.ActionTypeFallbackAnswer
	}

	question := &entity.ConversationMessage{
		Id:         uuid.New(),
		SessionId:  in.SessionId,
		OwnerId:    in.OwnerId,
		Role:       entity.RoleUser,
		Content:    in.Question,
		ActionType: entity.ActionTypeQuestion,
		Metadata: entity.MessageMetadata{
			Citations:  []entity.Citation{},
			DocumentId: in.DocumentId,
			TurnId:     turnId,
		},
		ClientId:  userClientId,
		CreatedAt: now,
	}

	answer := &entity.ConversationMessage{
		Id:         uuid.New(),
		SessionId:  in.SessionId,
		OwnerId:    in.OwnerId,
		Role:       entity.RoleAssistant,
		Content:    in.Answer,
		ActionType: actionType,
		Metadata: entity.MessageMetadata{
			Citations:  citations,
			Fallback:   in.Fallback,
			DocumentId: in.DocumentId,
			TurnId:     turnId,
			TokensUsed: in.TokensUsed,
		},
		ClientId: assistantClientId,
		// answers sort after their question even on coarse clocks
		CreatedAt: now.Add(time.Millisecond),
	}

	return &Turn{
		Id:        turnId,
		Question:  question,
		Answer:    answer,
		Citations: citations,
	}
}
