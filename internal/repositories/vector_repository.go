package repositories

import (
	"context"
)

// VectorRepository is a similarity search index bound to one collection.
// Upsert and CreateCollection exist for the offline loader; the answer path
// only calls Search.
type VectorRepository interface {
	CreateCollection(ctx context.Context, metadata map[string]interface{}) error
	Search(ctx context.Context, queryEmbedding []float32, limit int) ([]*SearchResult, error)
	Upsert(ctx context.Context, records []*Record) error
	Count(ctx context.Context) (int, error)
	CollectionName() string

	Ping(ctx context.Context) error
	Close() error
}

// Record is a passage to store in the index
type Record struct {
	ID        string                 `json:"id"`
	Text      string                 `json:"text"`
	Embedding []float32              `json:"embedding"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// SearchResult is a nearest-neighbour candidate. Vector is the stored
// embedding so callers can re-score against a live query vector.
type SearchResult struct {
	ID       string                 `json:"id"`
	Text     string                 `json:"text"`
	Vector   []float32              `json:"vector,omitempty"`
	Distance float32                `json:"distance"`
	Score    float32                `json:"score"` // 1 - distance, as reported by the backend
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// VectorRepositoryError represents errors from the vector repository
type VectorRepositoryError struct {
	Operation string
	Err       error
	Message   string
}

func (e *VectorRepositoryError) Error() string {
	if e.Message != "" {
		if e.Err != nil {
			return e.Operation + ": " + e.Message + ": " + e.Err.Error()
		}
		return e.Operation + ": " + e.Message
	}
	if e.Err != nil {
		return e.Operation + ": " + e.Err.Error()
	}
	return e.Operation + ": unknown error"
}

func (e *VectorRepositoryError) Unwrap() error {
	return e.Err
}

// NewVectorRepositoryError creates a new vector repository error
func NewVectorRepositoryError(operation string, err error, message string) *VectorRepositoryError {
	return &VectorRepositoryError{
		Operation: operation,
		Err:       err,
		Message:   message,
	}
}
