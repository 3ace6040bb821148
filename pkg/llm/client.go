package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// ServiceError wraps every upstream completion failure, including deadline expiry.
type ServiceError struct {
	Provider string
	Timeout  bool
	Err      error
}

func (e *ServiceError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("completion service %s timed out: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("completion service %s failed: %v", e.Provider, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

var ErrEmptyConversation = errors.New("completion requires at least one message")

// Client is the one completion entry point services use. It is safe for concurrent use.
type Client struct {
	provider    LLMProvider
	limiter     *rate.Limiter
	timeout     time.Duration
	temperature float64
}

// NewClient wraps provider with a per-call timeout and a shared rate limit.
// requestsPerSecond <= 0 disables limiting.
func NewClient(provider LLMProvider, timeout time.Duration, requestsPerSecond float64, temperature float64) *Client {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if requestsPerSecond > 0 {
		burst := int(requestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
	return &Client{
		provider:    provider,
		limiter:     limiter,
		timeout:     timeout,
		temperature: temperature,
	}
}

// Complete issues exactly one provider call. It never retries.
func (c *Client) Complete(ctx context.Context, messages []Message, opts ...Option) (*Completion, error) {
	if len(messages) == 0 {
		return nil, ErrEmptyConversation
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, c.wrap(ctx, err)
	}

	opts = append([]Option{WithTemperature(c.temperature)}, opts...)
	completion, err := c.provider.Chat(ctx, messages, opts...)
	if err != nil {
		return nil, c.wrap(ctx, err)
	}
	if completion == nil {
		return nil, &ServiceError{Provider: c.provider.Name(), Err: errors.New("provider returned no completion")}
	}
	return completion, nil
}

func (c *Client) wrap(ctx context.Context, err error) error {
	return &ServiceError{
		Provider: c.provider.Name(),
		Timeout:  errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded),
		Err:      err,
	}
}
