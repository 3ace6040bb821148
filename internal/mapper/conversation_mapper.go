package mapper

import (
	"encoding/json"
	"fmt"

	"coaching-rag-be/internal/entity"
	"coaching-rag-be/internal/model"

	"gorm.io/datatypes"
)

type ConversationMapper struct{}

func NewConversationMapper() *ConversationMapper {
	return &ConversationMapper{}
}

// Session Mappers

func (m *ConversationMapper) SessionToEntity(s *model.ConversationSession) *entity.ConversationSession {
	if s == nil {
		return nil
	}

	return &entity.ConversationSession{
		Id:            s.Id,
		OwnerId:       s.OwnerId,
		Title:         s.Title,
		CreatedAt:     s.CreatedAt,
		LastMessageAt: s.LastMessageAt,
		IsActive:      s.IsActive,
	}
}

func (m *ConversationMapper) SessionToModel(s *entity.ConversationSession) *model.ConversationSession {
	if s == nil {
		return nil
	}

	return &model.ConversationSession{
		Id:            s.Id,
		OwnerId:       s.OwnerId,
		Title:         s.Title,
		CreatedAt:     s.CreatedAt,
		LastMessageAt: s.LastMessageAt,
		IsActive:      s.IsActive,
	}
}

// Message Mappers

// MessageToEntity fails closed: a row whose metadata cannot be decoded is an error,
// never a message with silently defaulted metadata.
func (m *ConversationMapper) MessageToEntity(msg *model.ConversationMessage) (*entity.ConversationMessage, error) {
	if msg == nil {
		return nil, nil
	}

	var metadata entity.MessageMetadata
	if len(msg.Metadata) > 0 {
		if err := json.Unmarshal(msg.Metadata, &metadata); err != nil {
			return nil, fmt.Errorf("decode metadata of message %s: %w", msg.Id, err)
		}
	}
	if metadata.Citations == nil {
		metadata.Citations = []entity.Citation{}
	}

	return &entity.ConversationMessage{
		Id:         msg.Id,
		SessionId:  msg.SessionId,
		OwnerId:    msg.OwnerId,
		Role:       entity.MessageRole(msg.Role),
		Content:    msg.Content,
		ActionType: msg.ActionType,
		Metadata:   metadata,
		Seq:        msg.Seq,
		ClientId:   msg.ClientId,
		CreatedAt:  msg.CreatedAt,
	}, nil
}

func (m *ConversationMapper) MessageToModel(msg *entity.ConversationMessage) (*model.ConversationMessage, error) {
	if msg == nil {
		return nil, nil
	}

	metadata := msg.Metadata
	if metadata.Citations == nil {
		metadata.Citations = []entity.Citation{}
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}

	return &model.ConversationMessage{
		Id:         msg.Id,
		SessionId:  msg.SessionId,
		OwnerId:    msg.OwnerId,
		Role:       string(msg.Role),
		Content:    msg.Content,
		ActionType: msg.ActionType,
		Metadata:   datatypes.JSON(raw),
		Seq:        msg.Seq,
		ClientId:   msg.ClientId,
		CreatedAt:  msg.CreatedAt,
	}, nil
}

func (m *ConversationMapper) MessagesToEntities(models []*model.ConversationMessage) ([]*entity.ConversationMessage, error) {
	entities := make([]*entity.ConversationMessage, 0, len(models))
	for _, mm := range models {
		e, err := m.MessageToEntity(mm)
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	return entities, nil
}

// Citation Mappers

func (m *ConversationMapper) CitationToModel(c *entity.ConversationCitation) *model.ConversationCitation {
	return &model.ConversationCitation{
		Id:         c.Id,
		MessageId:  c.MessageId,
		SessionId:  c.SessionId,
		OwnerId:    c.OwnerId,
		ChunkId:    c.ChunkId,
		DocumentId: c.DocumentId,
		PageNumber: c.PageNumber,
		CreatedAt:  c.CreatedAt,
	}
}
