package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateSessionRequest struct {
	// Id lets an offline client pick the session id; repeating the call is a no-op.
	Id    *uuid.UUID `json:"id,omitempty"`
	Title string     `json:"title" validate:"max=200"`
}

type RenameSessionRequest struct {
	Title string `json:"title" validate:"required,max=200"`
}

type SessionResponse struct {
	Id            uuid.UUID `json:"id"`
	Title         string    `json:"title"`
	CreatedAt     time.Time `json:"created_at"`
	LastMessageAt time.Time `json:"last_message_at"`
	IsActive      bool      `json:"is_active"`
}

type CitationDTO struct {
	ChunkId    uuid.UUID `json:"chunk_id"`
	DocumentId uuid.UUID `json:"document_id"`
	Filename   string    `json:"filename"`
	Page       int       `json:"page"`
	ChunkIndex int       `json:"chunk_index"`
	Similarity float64   `json:"similarity"`
}

type MessageResponse struct {
	Id         uuid.UUID     `json:"id"`
	Role       string        `json:"role"`
	Content    string        `json:"content"`
	ActionType string        `json:"action_type"`
	Citations  []CitationDTO `json:"citations"`
	Fallback   bool          `json:"fallback"`
	CreatedAt  time.Time     `json:"created_at"`
}
