package repositories

import (
	"context"
	"errors"
	"fmt"

	"campus-rag/internal/db"
)

// chromaAPI is the part of db.ChromaDBClient the repository depends on
type chromaAPI interface {
	Heartbeat(ctx context.Context) error
	CreateCollection(ctx context.Context, name string, metadata map[string]interface{}) (*db.Collection, error)
	CountCollection(ctx context.Context, name string) (int, error)
	UpsertDocuments(ctx context.Context, collectionName string, ids []string, documents []string, embeddings [][]float32, metadatas []map[string]interface{}) error
	Query(ctx context.Context, collectionName string, queryEmbeddings [][]float32, nResults int) (*db.QueryResponse, error)
	Close()
}

// ChromaVectorRepository implements VectorRepository using ChromaDB
type ChromaVectorRepository struct {
	client     chromaAPI
	collection string
}

// NewChromaVectorRepository creates a ChromaDB-backed repository for one collection
func NewChromaVectorRepository(client *db.ChromaDBClient, collection string) *ChromaVectorRepository {
	return &ChromaVectorRepository{
		client:     client,
		collection: collection,
	}
}

// CollectionName returns the collection this repository searches
func (r *ChromaVectorRepository) CollectionName() string {
	return r.collection
}

// CreateCollection creates the collection if it does not exist yet
func (r *ChromaVectorRepository) CreateCollection(ctx context.Context, metadata map[string]interface{}) error {
	if _, err := r.client.CreateCollection(ctx, r.collection, metadata); err != nil {
		return NewVectorRepositoryError("create_collection", err, "failed to create collection "+r.collection)
	}
	return nil
}

// Search returns up to limit nearest candidates with their stored vectors.
// Rows the backend returns without a document get an empty Text.
func (r *ChromaVectorRepository) Search(ctx context.Context, queryEmbedding []float32, limit int) ([]*SearchResult, error) {
	if len(queryEmbedding) == 0 {
		return nil, NewVectorRepositoryError("search", nil, "empty query embedding")
	}
	if limit <= 0 {
		return []*SearchResult{}, nil
	}

	resp, err := r.client.Query(ctx, r.collection, [][]float32{queryEmbedding}, limit)
	if err != nil {
		if errors.Is(err, db.ErrCollectionNotFound) {
			return nil, NewVectorRepositoryError("search", err, "collection not found: "+r.collection)
		}
		return nil, NewVectorRepositoryError("search", err, "query failed")
	}

	results := make([]*SearchResult, 0, limit)
	if len(resp.IDs) == 0 {
		return results, nil
	}

	for i, id := range resp.IDs[0] {
		result := &SearchResult{ID: id}

		if len(resp.Documents) > 0 && len(resp.Documents[0]) > i && resp.Documents[0][i] != nil {
			result.Text = *resp.Documents[0][i]
		}
		if len(resp.Embeddings) > 0 && len(resp.Embeddings[0]) > i {
			result.Vector = resp.Embeddings[0][i]
		}
		if len(resp.Distances) > 0 && len(resp.Distances[0]) > i && resp.Distances[0][i] != nil {
			result.Distance = *resp.Distances[0][i]
			result.Score = 1.0 - result.Distance
		}
		if len(resp.Metadatas) > 0 && len(resp.Metadatas[0]) > i {
			result.Metadata = resp.Metadatas[0][i]
		}

		results = append(results, result)
	}

	return results, nil
}

// Upsert stores records, replacing any with the same ID
func (r *ChromaVectorRepository) Upsert(ctx context.Context, records []*Record) error {
	if len(records) == 0 {
		return nil
	}

	ids := make([]string, len(records))
	documents := make([]string, len(records))
	embeddings := make([][]float32, len(records))
	metadatas := make([]map[string]interface{}, len(records))
	hasMetadata := false

	for i, rec := range records {
		if rec.ID == "" {
			return NewVectorRepositoryError("upsert", nil, fmt.Sprintf("record %d has no id", i))
		}
		ids[i] = rec.ID
		documents[i] = rec.Text
		embeddings[i] = rec.Embedding
		metadatas[i] = rec.Metadata
		if rec.Metadata != nil {
			hasMetadata = true
		}
	}
	if !hasMetadata {
		metadatas = nil
	}

	if err := r.client.UpsertDocuments(ctx, r.collection, ids, documents, embeddings, metadatas); err != nil {
		return NewVectorRepositoryError("upsert", err, fmt.Sprintf("failed to store %d records", len(records)))
	}
	return nil
}

// Count returns the number of records in the collection
func (r *ChromaVectorRepository) Count(ctx context.Context) (int, error) {
	n, err := r.client.CountCollection(ctx, r.collection)
	if err != nil {
		return 0, NewVectorRepositoryError("count", err, "")
	}
	return n, nil
}

// Ping checks that ChromaDB answers its heartbeat
func (r *ChromaVectorRepository) Ping(ctx context.Context) error {
	if err := r.client.Heartbeat(ctx); err != nil {
		return NewVectorRepositoryError("ping", err, "")
	}
	return nil
}

// Close releases idle HTTP connections
func (r *ChromaVectorRepository) Close() error {
	r.client.Close()
	return nil
}
