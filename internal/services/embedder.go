package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/sashabaranov/go-openai"
)

// Embedder turns normalized text into a fixed-dimension vector
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Model() string
}

// ============================================================================
// Sentence-transformers HTTP service
// ============================================================================

// HTTPEmbedder calls a sentence-transformers service exposing POST /embed/query
type HTTPEmbedder struct {
	baseURL    string
	model      string
	httpClient *http.Client
	retries    int
	retryDelay time.Duration
}

// embedQueryResponse is the response from /embed/query
type embedQueryResponse struct {
	Embedding []float32 `json:"embedding"`
	Dimension int       `json:"dimension"`
	Model     string    `json:"model"`
}

const defaultEmbedRetryDelay = 250 * time.Millisecond

// NewHTTPEmbedder creates an embedder for the given service URL and model
func NewHTTPEmbedder(baseURL, model string, timeout time.Duration, retries int) *HTTPEmbedder {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if retries < 0 {
		retries = 0
	}
	return &HTTPEmbedder{
		baseURL: baseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		retries:    retries,
		retryDelay: defaultEmbedRetryDelay,
	}
}

// Model returns the embedding model identifier
func (e *HTTPEmbedder) Model() string {
	return e.model
}

// Embed returns the query embedding for text
func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	body := map[string]interface{}{
		"query":     text,
		"model":     e.model,
		"use_cache": true,
	}

	resp, err := e.doRequest(ctx, http.MethodPost, "/embed/query", body)
	if err != nil {
		return nil, fmt.Errorf("embed query request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedding service returned HTTP %d: %s", resp.StatusCode, string(msg))
	}

	var result embedQueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode embedding: %w", err)
	}
	if len(result.Embedding) == 0 {
		return nil, errors.New("embedding service returned an empty vector")
	}

	return result.Embedding, nil
}

// embedServerError is a 5xx from the embedding service
type embedServerError struct {
	status int
}

func (e *embedServerError) Error() string {
	return fmt.Sprintf("HTTP %d", e.status)
}

// doRequest retries transport errors and 5xx with exponential backoff. 4xx
// responses are returned to the caller unretried.
func (e *HTTPEmbedder) doRequest(ctx context.Context, method, endpoint string, body interface{}) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	var resp *http.Response
	err = retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, method, e.baseURL+endpoint, bytes.NewReader(payload))
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("failed to create request: %w", err))
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Accept", "application/json")

			r, err := e.httpClient.Do(req)
			if err != nil {
				return err
			}
			if r.StatusCode >= 500 {
				r.Body.Close()
				return &embedServerError{status: r.StatusCode}
			}
			resp = r
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(e.retries)+1),
		retry.Delay(e.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isRetryableEmbedError),
	)
	if err != nil {
		return nil, fmt.Errorf("request failed after %d retries: %w", e.retries, err)
	}
	return resp, nil
}

// isRetryableEmbedError retries transport failures and 5xx
func isRetryableEmbedError(err error) bool {
	if !retry.IsRecoverable(err) {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// ============================================================================
// OpenAI-compatible /embeddings
// ============================================================================

// OpenAIEmbedder uses any OpenAI-compatible embeddings endpoint
type OpenAIEmbedder struct {
	client *openai.Client
	model  string
}

// NewOpenAIEmbedder creates an embedder; an empty baseURL means api.openai.com
func NewOpenAIEmbedder(apiKey, baseURL, model string) *OpenAIEmbedder {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIEmbedder{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// Model returns the embedding model identifier
func (e *OpenAIEmbedder) Model() string {
	return e.model
}

// Embed returns the embedding for text
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, errors.New("embeddings response contained no vector")
	}
	return resp.Data[0].Embedding, nil
}
