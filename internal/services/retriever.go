package services

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"campus-rag/internal/models"
	"campus-rag/internal/repositories"
)

// DefaultOverFetch is how many candidates are pulled per requested result
const DefaultOverFetch = 2

// Retriever finds knowledge-base passages for a query and ranks them by
// cosine similarity recomputed against the live query embedding.
type Retriever struct {
	normalizer *QueryNormalizer
	embedder   Embedder
	vectorRepo repositories.VectorRepository
	overFetch  int
	logger     *log.Logger
}

// NewRetriever creates a new retriever
func NewRetriever(
	normalizer *QueryNormalizer,
	embedder Embedder,
	vectorRepo repositories.VectorRepository,
	overFetch int,
	logger *log.Logger,
) *Retriever {
	if overFetch < 1 {
		overFetch = DefaultOverFetch
	}
	return &Retriever{
		normalizer: normalizer,
		embedder:   embedder,
		vectorRepo: vectorRepo,
		overFetch:  overFetch,
		logger:     logger,
	}
}

// Retrieve returns at most topK chunks in descending score order. Any
// failure, including a panic in a backend client, yields an empty slice.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) (chunks []models.RetrievedChunk) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Printf("Retrieval panicked: %v", rec)
			chunks = []models.RetrievedChunk{}
		}
	}()

	chunks, err := r.retrieve(ctx, query, topK)
	if err != nil {
		r.logger.Printf("Retrieval failed, continuing without context: %v", err)
		return []models.RetrievedChunk{}
	}
	return chunks
}

func (r *Retriever) retrieve(ctx context.Context, query string, topK int) ([]models.RetrievedChunk, error) {
	if topK <= 0 {
		return []models.RetrievedChunk{}, nil
	}

	startTime := time.Now()
	normalized := r.normalizer.Normalize(query)
	if normalized == "" {
		return []models.RetrievedChunk{}, nil
	}

	queryVector, err := r.embedder.Embed(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if !finiteVector(queryVector) {
		return nil, fmt.Errorf("embed query: vector is empty or not finite")
	}
	embeddingTime := time.Since(startTime).Seconds() * 1000

	searchStart := time.Now()
	candidates, err := r.vectorRepo.Search(ctx, queryVector, topK*r.overFetch)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	searchTime := time.Since(searchStart).Seconds() * 1000

	chunks := make([]models.RetrievedChunk, 0, len(candidates))
	dropped := 0
	for _, c := range candidates {
		if c == nil || c.Text == "" || len(c.Vector) != len(queryVector) || !finiteVector(c.Vector) {
			dropped++
			continue
		}
		chunks = append(chunks, models.RetrievedChunk{
			Text:   c.Text,
			Score:  CosineSimilarity(queryVector, c.Vector),
			Vector: c.Vector,
		})
	}

	sort.SliceStable(chunks, func(i, j int) bool {
		return chunks[i].Score > chunks[j].Score
	})
	if len(chunks) > topK {
		chunks = chunks[:topK]
	}

	r.logger.Printf("Retrieved %d/%d candidates for %q (dropped %d, embed: %.2fms, search: %.2fms)",
		len(chunks), len(candidates), normalized, dropped, embeddingTime, searchTime)

	return chunks, nil
}

// CosineSimilarity computes cos(a, b) in float64. Mismatched lengths or a
// zero-norm vector give 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func finiteVector(v []float32) bool {
	if len(v) == 0 {
		return false
	}
	for _, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
