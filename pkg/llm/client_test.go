package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	completion *Completion
	err        error
	delay      time.Duration
	calls      int
	options    Options
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Chat(ctx context.Context, _ []Message, opts ...Option) (*Completion, error) {
	s.calls++
	s.options = ApplyOptions(Options{}, opts...)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.completion, s.err
}

var chat = []Message{{Role: "system", Content: "answer"}, {Role: "user", Content: "hi"}}

func TestClientComplete(t *testing.T) {
	ctx := context.Background()

	t.Run("empty conversation", func(t *testing.T) {
		provider := &stubProvider{}
		_, err := NewClient(provider, time.Second, 0, 0.3).Complete(ctx, nil)
		assert.ErrorIs(t, err, ErrEmptyConversation)
		assert.Zero(t, provider.calls)
	})

	t.Run("applies default temperature before caller options", func(t *testing.T) {
		provider := &stubProvider{completion: &Completion{Text: "hello", TokensUsed: 12}}
		got, err := NewClient(provider, time.Second, 0, 0.3).Complete(ctx, chat, WithMaxTokens(50))
		require.NoError(t, err)
		assert.Equal(t, "hello", got.Text)
		assert.Equal(t, 12, got.TokensUsed)
		assert.InDelta(t, 0.3, provider.options.Temperature, 1e-9)
		assert.Equal(t, 50, provider.options.MaxTokens)

		_, err = NewClient(provider, time.Second, 0, 0.3).Complete(ctx, chat, WithTemperature(0.9))
		require.NoError(t, err)
		assert.InDelta(t, 0.9, provider.options.Temperature, 1e-9)
	})

	t.Run("single attempt on failure", func(t *testing.T) {
		provider := &stubProvider{err: errors.New("503")}
		_, err := NewClient(provider, time.Second, 0, 0.3).Complete(ctx, chat)
		var svcErr *ServiceError
		require.ErrorAs(t, err, &svcErr)
		assert.False(t, svcErr.Timeout)
		assert.Equal(t, 1, provider.calls)
	})

	t.Run("nil completion", func(t *testing.T) {
		_, err := NewClient(&stubProvider{}, time.Second, 0, 0.3).Complete(ctx, chat)
		var svcErr *ServiceError
		assert.ErrorAs(t, err, &svcErr)
	})

	t.Run("timeout", func(t *testing.T) {
		_, err := NewClient(&stubProvider{delay: time.Second}, 10*time.Millisecond, 0, 0.3).Complete(ctx, chat)
		var svcErr *ServiceError
		require.ErrorAs(t, err, &svcErr)
		assert.True(t, svcErr.Timeout)
	})
}
