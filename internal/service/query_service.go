package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"coaching-rag-be/internal/apperr"
	"coaching-rag-be/internal/dto"
	"coaching-rag-be/internal/entity"
	"coaching-rag-be/internal/pkg/logger"
	"coaching-rag-be/internal/repository/contract"
	"coaching-rag-be/internal/repository/memory"
	"coaching-rag-be/internal/repository/unitofwork"
	"coaching-rag-be/internal/tracer"
	"coaching-rag-be/pkg/embedding"
	"coaching-rag-be/pkg/events"
	"coaching-rag-be/pkg/llm"
	ragcontext "coaching-rag-be/pkg/rag/context"
	"coaching-rag-be/pkg/rag/history"
	"coaching-rag-be/pkg/rag/message"
	"coaching-rag-be/pkg/rag/response"

	"github.com/google/uuid"
)

const (
	queryModule    = "QUERY"
	snippetRunes   = 300
	defaultTopK    = 5
	maxQuestionLen = 4000
)

// QueryState names the step a query is in. Every transition is logged.
type QueryState string

const (
	StateEmbedding  QueryState = "embedding"
	StateSearching  QueryState = "searching"
	StateNoMatch    QueryState = "no_match"
	StateAssembling QueryState = "assembling"
	StateCompleting QueryState = "completing"
	StatePersisting QueryState = "persisting"
	StateResponded  QueryState = "responded"
	StateFailed     QueryState = "failed"
)

// Persistence is the durability outcome of an answered query.
type Persistence string

const (
	PersistenceSkipped Persistence = "skipped" // no session given
	PersistenceStored  Persistence = "stored"
	PersistenceFailed  Persistence = "failed"
)

// Embedder is satisfied by *embedding.Client.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Completer is satisfied by *llm.Client.
type Completer interface {
	Complete(ctx context.Context, messages []llm.Message, opts ...llm.Option) (*llm.Completion, error)
}

// QueryResult separates an answer from whether it was stored.
type QueryResult struct {
	Answer             string
	Sources            []*entity.RetrievalResult
	Fallback           bool
	TokensUsed         int
	SessionId          *uuid.UUID
	UserMessageId      *uuid.UUID
	AssistantMessageId *uuid.UUID
	Persistence        Persistence
	Replayed           bool
	Trace              []QueryState
}

type QueryOptions struct {
	TopK            int
	SimilarityFloor float64
}

type IQueryService interface {
	Query(ctx context.Context, ownerId uuid.UUID, request *dto.QueryRequest) (*dto.QueryResponse, error)
	Answer(ctx context.Context, ownerId uuid.UUID, request *dto.QueryRequest) (*QueryResult, error)
}

type queryService struct {
	uowFactory    unitofwork.RepositoryFactory
	conversations IConversationService
	embedder      Embedder
	completer     Completer
	catalog       *memory.DocumentCatalog
	assembler     *ragcontext.Assembler
	history       *history.Loader
	turns         *message.Factory
	publisher     events.Publisher
	logger        logger.ILogger
	opts          QueryOptions
	now           func() time.Time
}

func NewQueryService(
	uowFactory unitofwork.RepositoryFactory,
	conversations IConversationService,
	embedder Embedder,
	completer Completer,
	catalog *memory.DocumentCatalog,
	historyLoader *history.Loader,
	publisher events.Publisher,
	log logger.ILogger,
	opts QueryOptions,
) IQueryService {
	if opts.TopK <= 0 {
		opts.TopK = defaultTopK
	}
	return &queryService{
		uowFactory:    uowFactory,
		conversations: conversations,
		embedder:      embedder,
		completer:     completer,
		catalog:       catalog,
		assembler:     ragcontext.NewAssembler(historyLoader.Window()),
		history:       historyLoader,
		turns:         message.NewFactory(nil),
		publisher:     publisher,
		logger:        log,
		opts:          opts,
		now:           time.Now,
	}
}

func (s *queryService) Query(ctx context.Context, ownerId uuid.UUID, request *dto.QueryRequest) (*dto.QueryResponse, error) {
	result, err := s.Answer(ctx, ownerId, request)
	if err != nil {
		return nil, err
	}

	sources := make([]dto.SourceDTO, 0, len(result.Sources))
	for _, r := range result.Sources {
		sources = append(sources, dto.SourceDTO{
			DocumentId: r.DocumentId,
			Filename:   r.Filename,
			Page:       r.Page,
			ChunkIndex: r.ChunkIndex,
			Similarity: r.Similarity,
			Content:    snippet(r.Content),
		})
	}

	id := uuid.New()
	if result.AssistantMessageId != nil {
		id = *result.AssistantMessageId
	}

	return &dto.QueryResponse{
		Id:                 id,
		Answer:             result.Answer,
		Sources:            sources,
		Timestamp:          s.now().UTC(),
		SessionId:          result.SessionId,
		TokensUsed:         result.TokensUsed,
		UserMessageId:      result.UserMessageId,
		AssistantMessageId: result.AssistantMessageId,
		Metadata: dto.QueryMetadata{
			Fallback:  result.Fallback,
			Persisted: result.Persistence == PersistenceStored,
		},
	}, nil
}

func (s *queryService) Answer(ctx context.Context, ownerId uuid.UUID, request *dto.QueryRequest) (*QueryResult, error) {
	question := strings.TrimSpace(request.Question)
	if question == "" {
		return nil, apperr.InvalidRequest("question must not be empty")
	}
	if len(question) > maxQuestionLen {
		return nil, apperr.InvalidRequest("question is too long")
	}

	ctx, span := tracer.Start(ctx, "query.answer")
	defer span.End()

	result := &QueryResult{SessionId: request.SessionId, Persistence: PersistenceSkipped}

	if request.SessionId != nil {
		if _, err := s.conversations.RequireSession(ctx, ownerId, *request.SessionId); err != nil {
			return nil, err
		}
		if replay, err := s.conversations.FindTurn(ctx, ownerId, *request.SessionId, request.ClientRequestId); err != nil {
			return nil, err
		} else if replay != nil && replay.Question != nil {
			s.logger.Info(queryModule, "Replaying stored turn", map[string]interface{}{
				"session_id":        request.SessionId.String(),
				"client_request_id": request.ClientRequestId,
			})
			return replayResult(result, replay), nil
		}
	}

	s.transition(ctx, result, StateEmbedding, nil)
	vector, err := s.embedder.Embed(ctx, question)
	if err != nil {
		s.transition(ctx, result, StateFailed, map[string]interface{}{"error": err.Error(), "step": StateEmbedding})
		if errors.Is(err, embedding.ErrEmptyText) {
			return nil, apperr.InvalidRequest("question must not be empty")
		}
		return nil, apperr.EmbeddingUnavailable(err)
	}

	s.transition(ctx, result, StateSearching, nil)
	results, err := s.search(ctx, ownerId, request.DocumentId, vector)
	if err != nil {
		s.transition(ctx, result, StateFailed, map[string]interface{}{"error": err.Error(), "step": StateSearching})
		return nil, err
	}

	var citations []entity.Citation
	if len(results) == 0 {
		s.transition(ctx, result, StateNoMatch, nil)
		answer, err := s.fallbackAnswer(ctx, ownerId, request.DocumentId)
		if err != nil {
			s.transition(ctx, result, StateFailed, map[string]interface{}{"error": err.Error(), "step": StateNoMatch})
			return nil, err
		}
		result.Answer = answer
		result.Fallback = true
		result.Sources = []*entity.RetrievalResult{}
	} else {
		s.transition(ctx, result, StateAssembling, map[string]interface{}{"results": len(results)})
		var prior []*entity.ConversationMessage
		if request.IncludeConversationContext && request.SessionId != nil {
			prior, err = s.history.LoadTurns(ctx, ownerId, *request.SessionId)
			if err != nil {
				s.transition(ctx, result, StateFailed, map[string]interface{}{"error": err.Error(), "step": StateAssembling})
				return nil, err
			}
		}
		assembly := s.assembler.Assemble(question, results, prior, request.DocumentId)

		s.transition(ctx, result, StateCompleting, nil)
		completion, err := s.completer.Complete(ctx, assembly.Messages())
		if err != nil {
			s.transition(ctx, result, StateFailed, map[string]interface{}{"error": err.Error(), "step": StateCompleting})
			return nil, apperr.CompletionUnavailable(err)
		}

		result.Answer = strings.TrimSpace(completion.Text)
		result.TokensUsed = completion.TokensUsed
		result.Sources = results
		citations = assembly.Citations
	}

	if request.SessionId != nil {
		s.transition(ctx, result, StatePersisting, nil)
		s.persist(ctx, ownerId, request, question, citations, result)
	}

	s.transition(ctx, result, StateResponded, map[string]interface{}{
		"fallback":    result.Fallback,
		"persistence": result.Persistence,
	})
	return result, nil
}

func (s *queryService) search(ctx context.Context, ownerId uuid.UUID, documentId *uuid.UUID, vector []float32) ([]*entity.RetrievalResult, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	scored, err := uow.ChunkRepository().SearchSimilar(ctx, contract.ChunkSearchQuery{
		OwnerId:    ownerId,
		DocumentId: documentId,
		Embedding:  vector,
		Limit:      s.opts.TopK,
		Threshold:  s.opts.SimilarityFloor,
	})
	if err != nil {
		return nil, err
	}
	if len(scored) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, 0, len(scored))
	for _, sc := range scored {
		ids = append(ids, sc.Chunk.DocumentId)
	}
	names, err := s.catalog.Filenames(ctx, ownerId, ids)
	if err != nil {
		return nil, err
	}

	results := make([]*entity.RetrievalResult, 0, len(scored))
	for _, sc := range scored {
		results = append(results, &entity.RetrievalResult{
			ChunkId:    sc.Chunk.Id,
			DocumentId: sc.Chunk.DocumentId,
			Filename:   names[sc.Chunk.DocumentId],
			Page:       sc.Chunk.PageNumber,
			ChunkIndex: sc.Chunk.ChunkIndex,
			Similarity: sc.Similarity,
			Content:    sc.Chunk.Content,
		})
	}
	return results, nil
}

func (s *queryService) fallbackAnswer(ctx context.Context, ownerId uuid.UUID, documentId *uuid.UUID) (string, error) {
	if documentId == nil {
		return response.FallbackAnswer("", false), nil
	}
	doc, err := s.catalog.Get(ctx, ownerId, *documentId)
	if err != nil {
		return "", err
	}
	filename := ""
	if doc != nil {
		filename = doc.Filename
	}
	return response.FallbackAnswer(filename, true), nil
}

// persist stores the turn. A failure is reported on the result and never fails the query.
func (s *queryService) persist(ctx context.Context, ownerId uuid.UUID, request *dto.QueryRequest, question string, citations []entity.Citation, result *QueryResult) {
	turn := s.turns.NewTurn(message.TurnInput{
		SessionId:       *request.SessionId,
		OwnerId:         ownerId,
		DocumentId:      request.DocumentId,
		ClientRequestId: request.ClientRequestId,
		Question:        question,
		Answer:          result.Answer,
		Citations:       citations,
		Fallback:        result.Fallback,
		TokensUsed:      result.TokensUsed,
	})

	stored, err := s.conversations.PersistTurn(ctx, ownerId, turn)
	if err != nil {
		result.Persistence = PersistenceFailed
		s.logger.Error(queryModule, "Turn not persisted, answer delivered anyway", map[string]interface{}{
			"session_id": request.SessionId.String(),
			"turn_id":    turn.Id,
			"error":      err.Error(),
		})
		if s.publisher != nil {
			event := events.NewTurnPersistenceFailed(request.SessionId.String(), ownerId.String(), turn.Id, err.Error())
			if pubErr := s.publisher.Publish(ctx, event); pubErr != nil {
				s.logger.Warn(queryModule, "Failed to publish audit event", map[string]interface{}{"error": pubErr.Error()})
			}
		}
		return
	}

	result.Persistence = PersistenceStored
	result.UserMessageId = &stored.Question.Id
	result.AssistantMessageId = &stored.Answer.Id
	if stored.Replayed {
		// a concurrent retry stored first; answer with what is on record
		result.Replayed = true
		result.Answer = stored.Answer.Content
		result.Fallback = stored.Answer.Metadata.Fallback
	}
}

func (s *queryService) transition(ctx context.Context, result *QueryResult, state QueryState, details map[string]interface{}) {
	result.Trace = append(result.Trace, state)
	tracer.Event(ctx, string(state))
	if details == nil {
		details = map[string]interface{}{}
	}
	details["state"] = state
	if state == StateFailed {
		if msg, ok := details["error"].(string); ok {
			tracer.Fail(ctx, msg)
		}
		s.logger.Warn(queryModule, "Query failed", details)
		return
	}
	s.logger.Debug(queryModule, "Query state", details)
}

func replayResult(result *QueryResult, replay *PersistedTurn) *QueryResult {
	answer := replay.Answer
	result.Answer = answer.Content
	result.Fallback = answer.Metadata.Fallback
	result.TokensUsed = answer.Metadata.TokensUsed
	result.UserMessageId = &replay.Question.Id
	result.AssistantMessageId = &answer.Id
	result.Persistence = PersistenceStored
	result.Replayed = true
	result.Sources = make([]*entity.RetrievalResult, 0, len(answer.Metadata.Citations))
	for _, c := range answer.Metadata.Citations {
		result.Sources = append(result.Sources, &entity.RetrievalResult{
			ChunkId:    c.ChunkId,
			DocumentId: c.DocumentId,
			Filename:   c.Filename,
			Page:       c.Page,
			ChunkIndex: c.ChunkIndex,
			Similarity: c.Similarity,
		})
	}
	return result
}

func snippet(content string) string {
	runes := []rune(strings.TrimSpace(content))
	if len(runes) <= snippetRunes {
		return string(runes)
	}
	return string(runes[:snippetRunes]) + "…"
}
