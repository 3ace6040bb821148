package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type ConversationSession struct {
	Id            uuid.UUID `gorm:"type:uuid;primaryKey"`
	OwnerId       uuid.UUID `gorm:"type:uuid;not null;index"`
	Title         string    `gorm:"type:text;not null"`
	CreatedAt     time.Time `gorm:"not null"`
	LastMessageAt time.Time `gorm:"not null;index"` // Retention clock
	IsActive      bool      `gorm:"not null;default:true"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

func (ConversationSession) TableName() string {
	return "conversation_sessions"
}

type ConversationMessage struct {
	Id         uuid.UUID      `gorm:"type:uuid;primaryKey"`
	SessionId  uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_messages_session_client,priority:1;uniqueIndex:idx_messages_session_seq,priority:1"`
	OwnerId    uuid.UUID      `gorm:"type:uuid;not null;index"`
	Role       string         `gorm:"type:varchar(16);not null"`
	Content    string         `gorm:"type:text;not null"`
	ActionType string         `gorm:"type:varchar(32)"`
	Metadata   datatypes.JSON `gorm:"not null"`
	Seq        int64          `gorm:"not null;default:0;uniqueIndex:idx_messages_session_seq,priority:2"`
	ClientId   string         `gorm:"type:varchar(128);not null;uniqueIndex:idx_messages_session_client,priority:2"`
	CreatedAt  time.Time      `gorm:"not null;index"`
}

func (ConversationMessage) TableName() string {
	return "conversation_messages"
}

type ConversationCitation struct {
	Id         uuid.UUID `gorm:"type:uuid;primaryKey"`
	MessageId  uuid.UUID `gorm:"type:uuid;not null;index"`
	SessionId  uuid.UUID `gorm:"type:uuid;not null;index"`
	OwnerId    uuid.UUID `gorm:"type:uuid;not null"`
	ChunkId    uuid.UUID `gorm:"type:uuid;not null"`
	DocumentId uuid.UUID `gorm:"type:uuid;not null;index"`
	PageNumber int
	CreatedAt  time.Time `gorm:"autoCreateTime"`
}

func (ConversationCitation) TableName() string {
	return "conversation_citations"
}
