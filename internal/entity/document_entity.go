package entity

import (
	"time"

	"github.com/google/uuid"
)

const (
	DocumentStatusProcessing = "processing"
	DocumentStatusReady      = "ready"
	DocumentStatusFailed     = "failed"
)

type Document struct {
	Id        uuid.UUID
	OwnerId   uuid.UUID
	Filename  string
	Status    string
	CreatedAt time.Time
	UpdatedAt *time.Time
}

// Chunk is an immutable fragment of a Document with its embedding.
type Chunk struct {
	Id         uuid.UUID
	DocumentId uuid.UUID
	OwnerId    uuid.UUID
	PageNumber int
	ChunkIndex int
	Content    string
	Embedding  []float32
	CreatedAt  time.Time
}

// RetrievalResult is produced per query and never persisted.
type RetrievalResult struct {
	ChunkId    uuid.UUID
	DocumentId uuid.UUID
	Filename   string
	Page       int
	ChunkIndex int
	Similarity float64
	Content    string
}
