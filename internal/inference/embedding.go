package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// EmbeddingConfig holds configuration for the embedding client.
type EmbeddingConfig struct {
	APIKey  string
	Model   string        // default: text-embedding-3-small
	BaseURL string        // default: https://api.openai.com
	Timeout time.Duration // default: 30s
}

// EmbeddingClient implements Embedder using the OpenAI embeddings API.
type EmbeddingClient struct {
	cfg            EmbeddingConfig
	client         *http.Client
	limiter        *rate.Limiter
	circuitBreaker *CircuitBreaker
}

// NewEmbeddingClient creates a new embedding client.
func NewEmbeddingClient(cfg EmbeddingConfig, limiter *rate.Limiter) *EmbeddingClient {
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &EmbeddingClient{
		cfg:            cfg,
		client:         &http.Client{Timeout: cfg.Timeout},
		limiter:        limiter,
		circuitBreaker: NewCircuitBreaker(),
	}
}

type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// Embed generates an embedding vector for the given text.
func (c *EmbeddingClient) Embed(ctx context.Context, text string) ([]float64, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("inference rate limit: %w", err)
		}
	}

	result, err := c.circuitBreaker.Execute(ctx, func() (interface{}, error) {
		return c.embed(ctx, text)
	})
	if err != nil {
		if errors.Is(err, ErrCircuitOpen) {
			return nil, fmt.Errorf("embedding: %w", err)
		}
		return nil, err
	}
	return result.([]float64), nil
}

func (c *EmbeddingClient) embed(ctx context.Context, text string) ([]float64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	jsonData, err := json.Marshal(embeddingRequest{Model: c.cfg.Model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/v1/embeddings", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embeddings returned status %d: %s", resp.StatusCode, string(body))
	}

	var respData embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&respData); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(respData.Data) == 0 || len(respData.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("embeddings returned empty vector")
	}
	return respData.Data[0].Embedding, nil
}

// Model returns the configured model name.
func (c *EmbeddingClient) Model() string {
	return c.cfg.Model
}

// Compile-time assertion.
var _ Embedder = (*EmbeddingClient)(nil)
