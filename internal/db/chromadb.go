package db

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrCollectionNotFound is returned when the named collection does not exist
var ErrCollectionNotFound = errors.New("collection not found")

// ChromaDBClient talks to the ChromaDB v2 REST API over plain HTTP
type ChromaDBClient struct {
	hostURL    string
	baseURL    string
	httpClient *http.Client
	tenant     string
	database   string
}

// ChromaDBConfig holds configuration for ChromaDB connection
type ChromaDBConfig struct {
	Host     string
	Port     int
	Tenant   string // default: "default_tenant"
	Database string // default: "default_database"
	Timeout  time.Duration
}

// Collection represents a ChromaDB collection
type Collection struct {
	ID       string                 `json:"id"`
	Name     string                 `json:"name"`
	Metadata map[string]interface{} `json:"metadata"`
}

// QueryResponse is the column-oriented result of a nearest-neighbour query.
// The outer slice is indexed by query embedding, the inner by result rank.
type QueryResponse struct {
	IDs        [][]string                 `json:"ids"`
	Documents  [][]*string                `json:"documents"`
	Metadatas  [][]map[string]interface{} `json:"metadatas"`
	Distances  [][]*float32               `json:"distances"`
	Embeddings [][][]float32              `json:"embeddings"`
}

// queryInclude asks Chroma to return stored vectors alongside documents
var queryInclude = []string{"documents", "embeddings", "distances", "metadatas"}

// NewChromaDBClient creates a new ChromaDB client with v2 API support
func NewChromaDBClient(config ChromaDBConfig) *ChromaDBClient {
	if config.Tenant == "" {
		config.Tenant = "default_tenant"
	}
	if config.Database == "" {
		config.Database = "default_database"
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	hostURL := fmt.Sprintf("http://%s:%d", config.Host, config.Port)

	return &ChromaDBClient{
		hostURL: hostURL,
		baseURL: fmt.Sprintf("%s/api/v2/tenants/%s/databases/%s",
			hostURL, config.Tenant, config.Database),
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		tenant:   config.Tenant,
		database: config.Database,
	}
}

// newChromaDBClientWithURL points the client at an arbitrary host URL (tests)
func newChromaDBClientWithURL(hostURL string) *ChromaDBClient {
	c := NewChromaDBClient(ChromaDBConfig{Host: "localhost", Port: 8000})
	c.hostURL = hostURL
	c.baseURL = fmt.Sprintf("%s/api/v2/tenants/%s/databases/%s", hostURL, c.tenant, c.database)
	return c
}

// do sends a JSON request and decodes a JSON response into out (when non-nil).
// Any status outside okStatuses is reported as an error carrying the body.
func (c *ChromaDBClient) do(ctx context.Context, method, url string, payload interface{}, out interface{}, okStatuses ...int) (int, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	ok := false
	for _, s := range okStatuses {
		if resp.StatusCode == s {
			ok = true
			break
		}
	}
	if !ok {
		respBody, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return resp.StatusCode, nil
}

// Heartbeat checks if ChromaDB is alive
func (c *ChromaDBClient) Heartbeat(ctx context.Context) error {
	if _, err := c.do(ctx, http.MethodGet, c.hostURL+"/api/v2/heartbeat", nil, nil, http.StatusOK); err != nil {
		return fmt.Errorf("heartbeat failed: %w", err)
	}
	return nil
}

// ListCollections returns all collections in the configured database
func (c *ChromaDBClient) ListCollections(ctx context.Context) ([]Collection, error) {
	var collections []Collection
	if _, err := c.do(ctx, http.MethodGet, c.baseURL+"/collections", nil, &collections, http.StatusOK); err != nil {
		return nil, fmt.Errorf("list collections failed: %w", err)
	}
	return collections, nil
}

// CreateCollection creates a new collection, defaulting to cosine space
func (c *ChromaDBClient) CreateCollection(ctx context.Context, name string, metadata map[string]interface{}) (*Collection, error) {
	if metadata == nil {
		metadata = map[string]interface{}{
			"hnsw:space": "cosine",
		}
	}

	payload := map[string]interface{}{
		"name":          name,
		"metadata":      metadata,
		"get_or_create": true,
	}

	var collection Collection
	if _, err := c.do(ctx, http.MethodPost, c.baseURL+"/collections", payload, &collection, http.StatusOK, http.StatusCreated); err != nil {
		return nil, fmt.Errorf("create collection failed: %w", err)
	}
	return &collection, nil
}

// GetCollection retrieves a collection by name
func (c *ChromaDBClient) GetCollection(ctx context.Context, name string) (*Collection, error) {
	var collection Collection
	status, err := c.do(ctx, http.MethodGet, fmt.Sprintf("%s/collections/%s", c.baseURL, name), nil, &collection, http.StatusOK)
	if status == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("get collection failed: %w", err)
	}
	return &collection, nil
}

// CountCollection returns the number of records in a collection
func (c *ChromaDBClient) CountCollection(ctx context.Context, name string) (int, error) {
	collection, err := c.GetCollection(ctx, name)
	if err != nil {
		return 0, err
	}

	var count int
	url := fmt.Sprintf("%s/collections/%s/count", c.baseURL, collection.ID)
	if _, err := c.do(ctx, http.MethodGet, url, nil, &count, http.StatusOK); err != nil {
		return 0, fmt.Errorf("count collection failed: %w", err)
	}
	return count, nil
}

// UpsertDocuments inserts or replaces records in a collection
func (c *ChromaDBClient) UpsertDocuments(ctx context.Context, collectionName string, ids []string, documents []string, embeddings [][]float32, metadatas []map[string]interface{}) error {
	collection, err := c.GetCollection(ctx, collectionName)
	if err != nil {
		return err
	}

	payload := map[string]interface{}{
		"ids":        ids,
		"documents":  documents,
		"embeddings": embeddings,
	}
	if metadatas != nil {
		payload["metadatas"] = metadatas
	}

	url := fmt.Sprintf("%s/collections/%s/upsert", c.baseURL, collection.ID)
	if _, err := c.do(ctx, http.MethodPost, url, payload, nil, http.StatusOK, http.StatusCreated); err != nil {
		return fmt.Errorf("upsert documents failed: %w", err)
	}
	return nil
}

// Query returns the nResults nearest records for each query embedding,
// including their stored embeddings.
func (c *ChromaDBClient) Query(ctx context.Context, collectionName string, queryEmbeddings [][]float32, nResults int) (*QueryResponse, error) {
	collection, err := c.GetCollection(ctx, collectionName)
	if err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"query_embeddings": queryEmbeddings,
		"n_results":        nResults,
		"include":          queryInclude,
	}

	var queryResp QueryResponse
	url := fmt.Sprintf("%s/collections/%s/query", c.baseURL, collection.ID)
	if _, err := c.do(ctx, http.MethodPost, url, payload, &queryResp, http.StatusOK); err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	return &queryResp, nil
}

// Close closes the HTTP client connections
func (c *ChromaDBClient) Close() {
	c.httpClient.CloseIdleConnections()
}
