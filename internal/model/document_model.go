package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

type Document struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey"`
	OwnerId   uuid.UUID `gorm:"type:uuid;not null;index"` // User ownership for data isolation
	Filename  string    `gorm:"type:text;not null"`
	Status    string    `gorm:"type:varchar(32);not null;default:'processing'"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (Document) TableName() string {
	return "documents"
}

type Chunk struct {
	Id         uuid.UUID       `gorm:"type:uuid;primaryKey"`
	DocumentId uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_chunks_document_chunk_index,priority:1"`
	OwnerId    uuid.UUID       `gorm:"type:uuid;not null;index"`
	PageNumber int             `gorm:"not null;default:1"`
	ChunkIndex int             `gorm:"not null;uniqueIndex:idx_chunks_document_chunk_index,priority:2"`
	Content    string          `gorm:"type:text;not null"`
	// Resized to the configured dimension by AutoMigrate.
	Embedding  pgvector.Vector `gorm:"type:vector(768)"`
	CreatedAt  time.Time       `gorm:"autoCreateTime"`
}

func (Chunk) TableName() string {
	return "chunks"
}
