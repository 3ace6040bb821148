package service

import (
	"context"
	"strings"

	"coaching-rag-be/internal/apperr"
	"coaching-rag-be/internal/dto"
	"coaching-rag-be/internal/pkg/logger"
	"coaching-rag-be/internal/repository/unitofwork"
	"coaching-rag-be/pkg/llm"
	"coaching-rag-be/pkg/rag/personalize"

	"github.com/google/uuid"
)

const (
	personalizerModule = "PERSONALIZER"
	maxPromptCount     = personalize.MaxCount
)

type IPromptService interface {
	Personalize(ctx context.Context, callerId uuid.UUID, request *dto.PersonalizeRequest) (*dto.PersonalizeResponse, error)
}

type promptService struct {
	uowFactory unitofwork.RepositoryFactory
	completer  Completer
	pool       []string
	logger     logger.ILogger
}

// NewPromptService uses personalize.DefaultPool when pool is empty.
func NewPromptService(uowFactory unitofwork.RepositoryFactory, completer Completer, pool []string, log logger.ILogger) IPromptService {
	if len(pool) == 0 {
		pool = personalize.DefaultPool
	}
	return &promptService{
		uowFactory: uowFactory,
		completer:  completer,
		pool:       pool,
		logger:     log,
	}
}

func (s *promptService) Personalize(ctx context.Context, callerId uuid.UUID, request *dto.PersonalizeRequest) (*dto.PersonalizeResponse, error) {
	if request.Count < 1 || request.Count > maxPromptCount {
		return nil, apperr.InvalidRequest("count must be between 1 and 20")
	}

	userId := callerId
	if request.UserId != nil && *request.UserId != callerId {
		s.logger.Warn(personalizerModule, "Cross-owner profile access rejected", map[string]interface{}{
			"security_event": true,
			"caller_id":      callerId.String(),
			"user_id":        request.UserId.String(),
		})
		return nil, apperr.Forbidden("profile belongs to another user")
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	profile, err := uow.UserProfileRepository().FindByUserId(ctx, userId)
	if err != nil {
		// an unreadable profile is treated like a missing one
		s.logger.Warn(personalizerModule, "Profile could not be loaded, using fallback pool", map[string]interface{}{
			"user_id": userId.String(),
			"error":   err.Error(),
		})
		profile = nil
	}
	if profile == nil {
		prompts, err := personalize.Pad(nil, s.pool, request.Count)
		if err != nil {
			return nil, err
		}
		return &dto.PersonalizeResponse{Prompts: prompts}, nil
	}

	if strings.TrimSpace(profile.Role) == "" || strings.TrimSpace(profile.Function) == "" {
		return nil, apperr.InvalidRequest("profile is missing role or function")
	}

	instruction := personalize.BuildInstruction(profile, request.Count)
	completion, err := s.completer.Complete(ctx, []llm.Message{
		{Role: "system", Content: instruction},
		{Role: "user", Content: "Write my questions now."},
	})
	if err != nil {
		return nil, apperr.CompletionUnavailable(err)
	}

	parsed := personalize.ParseQuestions(completion.Text)
	if !personalize.Validate(parsed, request.Count) {
		s.logger.Info(personalizerModule, "Model output repaired from fallback pool", map[string]interface{}{
			"user_id": userId.String(),
			"wanted":  request.Count,
			"parsed":  len(parsed),
		})
	}

	prompts, err := personalize.Pad(parsed, s.pool, request.Count)
	if err != nil {
		return nil, err
	}

	return &dto.PersonalizeResponse{
		Prompts: prompts,
		Usage:   dto.UsageDTO{TokensUsed: completion.TokensUsed},
	}, nil
}
