package dto

import (
	"time"

	"github.com/google/uuid"
)

type QueryRequest struct {
	Question                   string     `json:"question" validate:"required,max=4000"`
	DocumentId                 *uuid.UUID `json:"documentId,omitempty"`
	SessionId                  *uuid.UUID `json:"sessionId,omitempty"`
	IncludeConversationContext bool       `json:"includeConversationContext"`
	// ClientRequestId makes retries of the same question converge on one stored turn.
	ClientRequestId string `json:"clientRequestId,omitempty" validate:"max=128"`
}

type SourceDTO struct {
	DocumentId uuid.UUID `json:"documentId"`
	Filename   string    `json:"filename"`
	Page       int       `json:"page"`
	ChunkIndex int       `json:"chunkIndex"`
	Similarity float64   `json:"similarity"`
	Content    string    `json:"content"`
}

type QueryMetadata struct {
	Fallback bool `json:"fallback"`
	// Persisted is false when the answer was delivered but the turn could not be stored.
	Persisted bool `json:"persisted"`
}

type QueryResponse struct {
	Id                 uuid.UUID     `json:"id"`
	Answer             string        `json:"answer"`
	Sources            []SourceDTO   `json:"sources"`
	Timestamp          time.Time     `json:"timestamp"`
	SessionId          *uuid.UUID    `json:"sessionId,omitempty"`
	TokensUsed         int           `json:"tokensUsed"`
	UserMessageId      *uuid.UUID    `json:"userMessageId,omitempty"`
	AssistantMessageId *uuid.UUID    `json:"assistantMessageId,omitempty"`
	Metadata           QueryMetadata `json:"metadata"`
}
