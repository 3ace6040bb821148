package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"coaching-rag-be/internal/apperr"
	"coaching-rag-be/internal/dto"
	"coaching-rag-be/internal/entity"
	"coaching-rag-be/internal/pkg/logger"
	"coaching-rag-be/internal/repository/implementation"
	"coaching-rag-be/internal/repository/specification"
	"coaching-rag-be/internal/repository/unitofwork"
	"coaching-rag-be/pkg/idempotency"
	"coaching-rag-be/pkg/rag/message"

	"github.com/google/uuid"
)

const (
	conversationModule = "CONVERSATION"
	sessionTitleRunes  = 60
)

// PersistedTurn is the stored form of one question and its answer.
type PersistedTurn struct {
	Question *entity.ConversationMessage
	Answer   *entity.ConversationMessage
	// Replayed is true when both rows already existed from an earlier attempt.
	Replayed bool
}

type IConversationService interface {
	CreateSession(ctx context.Context, ownerId uuid.UUID, request *dto.CreateSessionRequest) (*dto.SessionResponse, error)
	ListSessions(ctx context.Context, ownerId uuid.UUID) ([]*dto.SessionResponse, error)
	RenameSession(ctx context.Context, ownerId, sessionId uuid.UUID, request *dto.RenameSessionRequest) (*dto.SessionResponse, error)
	DeleteSession(ctx context.Context, ownerId, sessionId uuid.UUID) error
	GetMessages(ctx context.Context, ownerId, sessionId uuid.UUID) ([]*dto.MessageResponse, error)

	AppendMessage(ctx context.Context, ownerId uuid.UUID, msg *entity.ConversationMessage) (*entity.ConversationMessage, error)
	ListMessages(ctx context.Context, ownerId, sessionId uuid.UUID) ([]*entity.ConversationMessage, error)
	TouchSession(ctx context.Context, ownerId, sessionId uuid.UUID, at time.Time) error

	// RequireSession returns the session when ownerId owns it.
	RequireSession(ctx context.Context, ownerId, sessionId uuid.UUID) (*entity.ConversationSession, error)
	// PersistTurn writes question, answer, citation refs and the session clock in one transaction.
	PersistTurn(ctx context.Context, ownerId uuid.UUID, turn *message.Turn) (*PersistedTurn, error)
	// FindTurn returns a turn previously stored under clientRequestId, or nil.
	FindTurn(ctx context.Context, ownerId, sessionId uuid.UUID, clientRequestId string) (*PersistedTurn, error)
}

type conversationService struct {
	uowFactory unitofwork.RepositoryFactory
	logger     logger.ILogger
	now        func() time.Time
}

func NewConversationService(uowFactory unitofwork.RepositoryFactory, log logger.ILogger) IConversationService {
	return &conversationService{
		uowFactory: uowFactory,
		logger:     log,
		now:        time.Now,
	}
}

// loadOwnedSession distinguishes a missing session from one owned by someone else.
func (s *conversationService) loadOwnedSession(ctx context.Context, uow unitofwork.UnitOfWork, ownerId, sessionId uuid.UUID) (*entity.ConversationSession, error) {
	session, err := uow.ConversationSessionRepository().FindOne(ctx, specification.ByID{ID: sessionId})
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, apperr.NotFound("session not found")
	}
	if session.OwnerId != ownerId {
		s.logger.Warn(conversationModule, "Cross-owner session access rejected", map[string]interface{}{
			"security_event": true,
			"session_id":     sessionId.String(),
			"caller_id":      ownerId.String(),
		})
		return nil, apperr.Forbidden("session belongs to another user")
	}
	return session, nil
}

func (s *conversationService) RequireSession(ctx context.Context, ownerId, sessionId uuid.UUID) (*entity.ConversationSession, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	return s.loadOwnedSession(ctx, uow, ownerId, sessionId)
}

func (s *conversationService) CreateSession(ctx context.Context, ownerId uuid.UUID, request *dto.CreateSessionRequest) (*dto.SessionResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	now := s.now().UTC()

	title := strings.TrimSpace(request.Title)
	if title == "" {
		title = entity.DefaultSessionTitle
	}

	session := &entity.ConversationSession{
		Id:            uuid.New(),
		OwnerId:       ownerId,
		Title:         title,
		CreatedAt:     now,
		LastMessageAt: now,
		IsActive:      true,
	}

	if request.Id != nil {
		session.Id = *request.Id
		existing, err := s.findForCreate(ctx, uow, ownerId, session.Id)
		if err != nil || existing != nil {
			return toSessionResponse(existing), err
		}
	}

	if err := uow.ConversationSessionRepository().Create(ctx, session); err != nil {
		if request.Id != nil && implementation.IsUniqueViolation(err) {
			// lost a race against a retry of the same create
			existing, findErr := s.findForCreate(ctx, uow, ownerId, session.Id)
			if findErr != nil {
				return nil, findErr
			}
			if existing != nil {
				return toSessionResponse(existing), nil
			}
		}
		return nil, err
	}

	s.logger.Info(conversationModule, "Session created", map[string]interface{}{
		"session_id": session.Id.String(),
		"owner_id":   ownerId.String(),
	})
	return toSessionResponse(session), nil
}

func (s *conversationService) findForCreate(ctx context.Context, uow unitofwork.UnitOfWork, ownerId, sessionId uuid.UUID) (*entity.ConversationSession, error) {
	existing, err := s.loadOwnedSession(ctx, uow, ownerId, sessionId)
	if apperr.Is(err, apperr.CodeNotFound) {
		return nil, nil
	}
	return existing, err
}

func (s *conversationService) ListSessions(ctx context.Context, ownerId uuid.UUID) ([]*dto.SessionResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	sessions, err := uow.ConversationSessionRepository().FindAll(ctx,
		specification.OwnedBy{OwnerID: ownerId},
		specification.OrderBy{Field: "last_message_at", Desc: true},
	)
	if err != nil {
		return nil, err
	}

	response := make([]*dto.SessionResponse, 0, len(sessions))
	for _, session := range sessions {
		response = append(response, toSessionResponse(session))
	}
	return response, nil
}

func (s *conversationService) RenameSession(ctx context.Context, ownerId, sessionId uuid.UUID, request *dto.RenameSessionRequest) (*dto.SessionResponse, error) {
	title := strings.TrimSpace(request.Title)
	if title == "" {
		return nil, apperr.InvalidRequest("title must not be blank")
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	session, err := s.loadOwnedSession(ctx, uow, ownerId, sessionId)
	if err != nil {
		return nil, err
	}
	session.Title = title
	if err := uow.ConversationSessionRepository().Update(ctx, session); err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, err
	}
	return toSessionResponse(session), nil
}

func (s *conversationService) DeleteSession(ctx context.Context, ownerId, sessionId uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if _, err := s.loadOwnedSession(ctx, uow, ownerId, sessionId); err != nil {
		return err
	}

	purged, err := purgeSession(ctx, uow, sessionId)
	if err != nil {
		return err
	}
	if err := uow.Commit(); err != nil {
		return err
	}

	s.logger.Info(conversationModule, "Session deleted", map[string]interface{}{
		"session_id":         sessionId.String(),
		"messages_deleted":   purged.messages,
		"chunk_refs_deleted": purged.chunkRefs,
	})
	return nil
}

func (s *conversationService) GetMessages(ctx context.Context, ownerId, sessionId uuid.UUID) ([]*dto.MessageResponse, error) {
	messages, err := s.ListMessages(ctx, ownerId, sessionId)
	if err != nil {
		return nil, err
	}

	response := make([]*dto.MessageResponse, 0, len(messages))
	for _, msg := range messages {
		citations := make([]dto.CitationDTO, 0, len(msg.Metadata.Citations))
		for _, c := range msg.Metadata.Citations {
			citations = append(citations, dto.CitationDTO{
				ChunkId:    c.ChunkId,
				DocumentId: c.DocumentId,
				Filename:   c.Filename,
				Page:       c.Page,
				ChunkIndex: c.ChunkIndex,
				Similarity: c.Similarity,
			})
		}
		response = append(response, &dto.MessageResponse{
			Id:         msg.Id,
			Role:       string(msg.Role),
			Content:    msg.Content,
			ActionType: msg.ActionType,
			Citations:  citations,
			Fallback:   msg.Metadata.Fallback,
			CreatedAt:  msg.CreatedAt,
		})
	}
	return response, nil
}

func (s *conversationService) ListMessages(ctx context.Context, ownerId, sessionId uuid.UUID) ([]*entity.ConversationMessage, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	if _, err := s.loadOwnedSession(ctx, uow, ownerId, sessionId); err != nil {
		return nil, err
	}

	return uow.ConversationMessageRepository().FindAll(ctx,
		specification.BySessionID{SessionID: sessionId},
		specification.OwnedBy{OwnerID: ownerId},
		specification.Chronological{},
	)
}

func (s *conversationService) AppendMessage(ctx context.Context, ownerId uuid.UUID, msg *entity.ConversationMessage) (*entity.ConversationMessage, error) {
	if err := s.validateMessage(ownerId, msg); err != nil {
		return nil, err
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	if _, err := s.loadOwnedSession(ctx, uow, ownerId, msg.SessionId); err != nil {
		return nil, err
	}

	stored, _, err := s.appendOwned(ctx, uow, ownerId, msg)
	if err != nil {
		return nil, err
	}
	if err := uow.ConversationSessionRepository().TouchLastMessageAt(ctx, msg.SessionId, stored.CreatedAt); err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, err
	}
	return stored, nil
}

func (s *conversationService) TouchSession(ctx context.Context, ownerId, sessionId uuid.UUID, at time.Time) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if _, err := s.loadOwnedSession(ctx, uow, ownerId, sessionId); err != nil {
		return err
	}
	if err := uow.ConversationSessionRepository().TouchLastMessageAt(ctx, sessionId, at.UTC()); err != nil {
		return err
	}
	return uow.Commit()
}

func (s *conversationService) PersistTurn(ctx context.Context, ownerId uuid.UUID, turn *message.Turn) (*PersistedTurn, error) {
	if err := s.validateMessage(ownerId, turn.Question); err != nil {
		return nil, err
	}
	if err := s.validateMessage(ownerId, turn.Answer); err != nil {
		return nil, err
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	session, err := s.loadOwnedSession(ctx, uow, ownerId, turn.Question.SessionId)
	if err != nil {
		return nil, err
	}

	question, _, err := s.appendOwned(ctx, uow, ownerId, turn.Question)
	if err != nil {
		return nil, err
	}
	answer, created, err := s.appendOwned(ctx, uow, ownerId, turn.Answer)
	if err != nil {
		return nil, err
	}

	if created && len(turn.Citations) > 0 {
		refs := make([]*entity.ConversationCitation, 0, len(turn.Citations))
		for _, c := range turn.Citations {
			refs = append(refs, &entity.ConversationCitation{
				MessageId:  answer.Id,
				SessionId:  session.Id,
				OwnerId:    ownerId,
				ChunkId:    c.ChunkId,
				DocumentId: c.DocumentId,
				PageNumber: c.Page,
				CreatedAt:  answer.CreatedAt,
			})
		}
		if err := uow.ConversationCitationRepository().CreateBulk(ctx, refs); err != nil {
			return nil, err
		}
	}

	if err := uow.ConversationSessionRepository().TouchLastMessageAt(ctx, session.Id, answer.CreatedAt); err != nil {
		return nil, err
	}

	if session.Title == entity.DefaultSessionTitle {
		// re-read so the update does not roll back the clock just moved
		fresh, err := uow.ConversationSessionRepository().FindOne(ctx, specification.ByID{ID: session.Id})
		if err != nil {
			return nil, err
		}
		fresh.Title = titleFromQuestion(question.Content)
		if err := uow.ConversationSessionRepository().Update(ctx, fresh); err != nil {
			return nil, err
		}
	}

	if err := uow.Commit(); err != nil {
		return nil, err
	}

	return &PersistedTurn{
		Question: question,
		Answer:   answer,
		Replayed: !created,
	}, nil
}

func (s *conversationService) FindTurn(ctx context.Context, ownerId, sessionId uuid.UUID, clientRequestId string) (*PersistedTurn, error) {
	if clientRequestId == "" {
		return nil, nil
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if _, err := s.loadOwnedSession(ctx, uow, ownerId, sessionId); err != nil {
		return nil, err
	}

	repo := uow.ConversationMessageRepository()
	answer, err := repo.FindOne(ctx,
		specification.BySessionID{SessionID: sessionId},
		specification.ByClientID{ClientID: idempotency.Derive(clientRequestId, string(entity.RoleAssistant))},
	)
	if err != nil || answer == nil {
		return nil, err
	}
	question, err := repo.FindOne(ctx,
		specification.BySessionID{SessionID: sessionId},
		specification.ByClientID{ClientID: idempotency.Derive(clientRequestId, string(entity.RoleUser))},
	)
	if err != nil {
		return nil, err
	}

	return &PersistedTurn{Question: question, Answer: answer, Replayed: true}, nil
}

// appendOwned appends msg and rejects a stored row that belongs to someone else.
func (s *conversationService) appendOwned(ctx context.Context, uow unitofwork.UnitOfWork, ownerId uuid.UUID, msg *entity.ConversationMessage) (*entity.ConversationMessage, bool, error) {
	stored, created, err := uow.ConversationMessageRepository().Append(ctx, msg)
	if err != nil {
		return nil, false, err
	}
	if stored.OwnerId != ownerId {
		s.logger.Warn(conversationModule, "Cross-owner message write rejected", map[string]interface{}{
			"security_event": true,
			"session_id":     msg.SessionId.String(),
			"client_id":      msg.ClientId,
		})
		return nil, false, apperr.Forbidden("message belongs to another user")
	}
	if !created {
		s.logger.Debug(conversationModule, "Duplicate append converged on stored message", map[string]interface{}{
			"message_id": stored.Id.String(),
			"client_id":  msg.ClientId,
		})
	}
	return stored, created, nil
}

func (s *conversationService) validateMessage(ownerId uuid.UUID, msg *entity.ConversationMessage) error {
	if msg == nil {
		return apperr.InvalidRequest("message is required")
	}
	if msg.OwnerId == uuid.Nil {
		msg.OwnerId = ownerId
	}
	if msg.OwnerId != ownerId {
		s.logger.Warn(conversationModule, "Message written on behalf of another user rejected", map[string]interface{}{
			"security_event": true,
			"session_id":     msg.SessionId.String(),
			"client_id":      msg.ClientId,
		})
		return apperr.Forbidden("message owner does not match caller")
	}
	if msg.SessionId == uuid.Nil {
		return apperr.InvalidRequest("sessionId is required")
	}
	if strings.TrimSpace(msg.ClientId) == "" {
		return apperr.InvalidRequest("clientId is required")
	}
	if msg.Role != entity.RoleUser && msg.Role != entity.RoleAssistant {
		return apperr.InvalidRequest(fmt.Sprintf("unknown role %q", msg.Role))
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	return nil
}

func titleFromQuestion(question string) string {
	question = strings.TrimSpace(question)
	if utf8.RuneCountInString(question) <= sessionTitleRunes {
		return question
	}
	return string([]rune(question)[:sessionTitleRunes])
}

type purgeCounts struct {
	messages  int64
	chunkRefs int64
}

// purgeSession deletes a session with its messages and citation refs. Source
// documents and chunks are never touched. Call inside a transaction.
func purgeSession(ctx context.Context, uow unitofwork.UnitOfWork, sessionId uuid.UUID) (purgeCounts, error) {
	var counts purgeCounts
	var err error

	if counts.messages, err = uow.ConversationMessageRepository().DeleteBySessionId(ctx, sessionId); err != nil {
		return counts, fmt.Errorf("delete messages: %w", err)
	}
	if err = uow.ConversationSessionRepository().Delete(ctx, sessionId); err != nil {
		return counts, fmt.Errorf("delete session: %w", err)
	}
	if counts.chunkRefs, err = uow.ConversationCitationRepository().DeleteBySessionId(ctx, sessionId); err != nil {
		return counts, fmt.Errorf("delete citation refs: %w", err)
	}
	return counts, nil
}

func toSessionResponse(session *entity.ConversationSession) *dto.SessionResponse {
	if session == nil {
		return nil
	}
	return &dto.SessionResponse{
		Id:            session.Id,
		Title:         session.Title,
		CreatedAt:     session.CreatedAt,
		LastMessageAt: session.LastMessageAt,
		IsActive:      session.IsActive,
	}
}
