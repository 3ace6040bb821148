package factory

import (
	"context"
	"fmt"

	"coaching-rag-be/internal/config"
	"coaching-rag-be/pkg/llm"
	"coaching-rag-be/pkg/llm/gemini"
	"coaching-rag-be/pkg/llm/ollama"
	"coaching-rag-be/pkg/llm/openai"

	"golang.org/x/oauth2/clientcredentials"
)

func NewLLMProvider(ctx context.Context, cfg *config.Config) (llm.LLMProvider, error) {
	ai := cfg.Ai
	switch ai.LLMProvider {
	case "", "ollama":
		baseURL := ai.OllamaBaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434" // Default
		}
		return ollama.NewOllamaProvider(baseURL, ai.LLMModel), nil
	case "openai":
		if ai.OAuthTokenURL != "" {
			creds := clientcredentials.Config{
				ClientID:     ai.OAuthClientID,
				ClientSecret: ai.OAuthClientSecret,
				TokenURL:     ai.OAuthTokenURL,
				Scopes:       ai.OAuthScopes,
			}
			return openai.NewOAuthProvider(ctx, creds, ai.OpenAIBaseURL, ai.LLMModel), nil
		}
		return openai.NewProvider(cfg.Keys.OpenAI, ai.OpenAIBaseURL, ai.LLMModel), nil
	case "gemini":
		return gemini.NewProvider(ctx, cfg.Keys.GoogleGemini, ai.LLMModel)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", ai.LLMProvider)
	}
}

// NewClient builds the rate limited, timeout bounded client services depend on.
func NewClient(ctx context.Context, cfg *config.Config) (*llm.Client, error) {
	provider, err := NewLLMProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return llm.NewClient(provider, cfg.Ai.CallTimeout, cfg.Ai.RequestsPerSecond, cfg.Ai.Temperature), nil
}
