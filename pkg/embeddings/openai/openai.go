// Package openai implements pkg/embeddings' Embedder against the OpenAI
// embeddings API, or any service exposing the same /v1/embeddings shape.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aigolabs/aig/pkg/embeddings"
	"github.com/aigolabs/aig/pkg/vectorstore"
)

const (
	// DefaultEmbeddingModel is the default model used for embeddings.
	DefaultEmbeddingModel = "text-embedding-3-small"

	// DefaultBaseURL is the OpenAI API URL.
	DefaultBaseURL = "https://api.openai.com/v1"
)

// Embedder wraps an OpenAI-compatible embeddings API.
type Embedder struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// EmbedderConfig holds configuration for the OpenAI embedder.
type EmbedderConfig struct {
	// BaseURL defaults to DefaultBaseURL if empty; point it at any
	// OpenAI-compatible service.
	BaseURL string

	// APIKey authenticates requests. Required for the hosted API.
	APIKey string

	// Model defaults to DefaultEmbeddingModel if empty.
	Model string
}

type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// NewEmbedder creates a new embedder for an OpenAI-compatible API.
func NewEmbedder(cfg EmbedderConfig) (*Embedder, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if cfg.APIKey == "" && baseURL == DefaultBaseURL {
		return nil, fmt.Errorf("openai api key is required")
	}

	model := cfg.Model
	if model == "" {
		model = DefaultEmbeddingModel
	}

	return &Embedder{
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}, nil
}

// Embed converts text into a vector embedding.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float64, error) {
	jsonBody, err := json.Marshal(embedRequest{Model: e.model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("%w: marshaling request: %v", vectorstore.ErrEmbedding, err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", e.baseURL+"/embeddings", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", vectorstore.ErrEmbedding, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: sending request: %v", vectorstore.ErrEmbedding, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: openai returned status %d: %s", vectorstore.ErrEmbedding, resp.StatusCode, string(body))
	}

	var embedResp embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&embedResp); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", vectorstore.ErrEmbedding, err)
	}

	if len(embedResp.Data) == 0 {
		return nil, fmt.Errorf("%w: no embeddings returned", vectorstore.ErrEmbedding)
	}

	return embedResp.Data[0].Embedding, nil
}

// Close releases resources held by the embedder.
func (e *Embedder) Close() error {
	return nil
}

var _ embeddings.Embedder = (*Embedder)(nil)
