package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// EmbeddingProvider defines the interface for generating text embeddings
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Name() string
}

// ServiceError is returned for every upstream embedding failure. Callers own the retry policy.
type ServiceError struct {
	Provider string
	Timeout  bool
	Err      error
}

func (e *ServiceError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("embedding service %s timed out: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("embedding service %s failed: %v", e.Provider, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

var ErrEmptyText = errors.New("embedding input is empty")

// Client validates input, bounds each call with a timeout and normalises provider failures.
type Client struct {
	provider  EmbeddingProvider
	timeout   time.Duration
	dimension int
}

func NewClient(provider EmbeddingProvider, timeout time.Duration, dimension int) *Client {
	return &Client{
		provider:  provider,
		timeout:   timeout,
		dimension: dimension,
	}
}

func (c *Client) Dimension() int {
	return c.dimension
}

func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	values, err := c.provider.Embed(ctx, text)
	if err != nil {
		return nil, &ServiceError{
			Provider: c.provider.Name(),
			Timeout:  errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded),
			Err:      err,
		}
	}
	if len(values) == 0 {
		return nil, &ServiceError{Provider: c.provider.Name(), Err: errors.New("empty embedding in response")}
	}
	if c.dimension > 0 && len(values) != c.dimension {
		return nil, &ServiceError{
			Provider: c.provider.Name(),
			Err:      fmt.Errorf("embedding has %d dimensions, store expects %d", len(values), c.dimension),
		}
	}
	return values, nil
}
