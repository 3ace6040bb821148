package entity

import (
	"time"

	"github.com/google/uuid"
)

type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

const (
	ActionTypeQuestion       = "question"
	ActionTypeAnswer         = "answer"
	ActionTypeFallbackAnswer = "fallback_answer"
)

const DefaultSessionTitle = "Unnamed session"

type ConversationSession struct {
	Id            uuid.UUID
	OwnerId       uuid.UUID
	Title         string
	CreatedAt     time.Time
	LastMessageAt time.Time
	IsActive      bool
}

type Citation struct {
	ChunkId    uuid.UUID `json:"chunk_id"`
	DocumentId uuid.UUID `json:"document_id"`
	Filename   string    `json:"filename"`
	Page       int       `json:"page"`
	ChunkIndex int       `json:"chunk_index"`
	Similarity float64   `json:"similarity"`
}

// MessageMetadata is stored as JSON next to every message.
type MessageMetadata struct {
	Citations  []Citation `json:"citations"`
	Fallback   bool       `json:"fallback"`
	DocumentId *uuid.UUID `json:"document_id,omitempty"`
	TurnId     string     `json:"turn_id,omitempty"`
	TokensUsed int        `json:"tokens_used,omitempty"`
}

// ConversationMessage is append-only. ClientId is unique per SessionId.
type ConversationMessage struct {
	Id         uuid.UUID
	SessionId  uuid.UUID
	OwnerId    uuid.UUID
	Role       MessageRole
	Content    string
	ActionType string
	Metadata   MessageMetadata
	Seq        int64
	ClientId   string
	CreatedAt  time.Time
}

// ConversationCitation links a persisted answer to the chunk it offered as a source.
type ConversationCitation struct {
	Id         uuid.UUID
	MessageId  uuid.UUID
	SessionId  uuid.UUID
	OwnerId    uuid.UUID
	ChunkId    uuid.UUID
	DocumentId uuid.UUID
	PageNumber int
	CreatedAt  time.Time
}
