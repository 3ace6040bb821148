package specification

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BySessionID struct {
	SessionID uuid.UUID
}

func (s BySessionID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("session_id = ?", s.SessionID)
}

type ByClientID struct {
	ClientID string
}

func (s ByClientID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("client_id = ?", s.ClientID)
}

// LastMessageBefore selects sessions whose retention clock is older than Cutoff.
type LastMessageBefore struct {
	Cutoff time.Time
}

func (s LastMessageBefore) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("last_message_at < ?", s.Cutoff)
}

// Chronological orders messages by creation time, breaking ties by insertion sequence.
type Chronological struct{}

func (s Chronological) Apply(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC").Order("seq ASC")
}

// LastMessageSince selects sessions active at or after From.
type LastMessageSince struct {
	From time.Time
}

func (s LastMessageSince) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("last_message_at >= ?", s.From)
}
