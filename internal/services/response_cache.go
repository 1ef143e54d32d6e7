package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log"
	"time"

	"campus-rag/internal/repositories"
)

const (
	responseCacheKeyPrefix = "rag:resp:"

	DefaultCacheTTL         = time.Hour
	DefaultFallbackCacheTTL = 5 * time.Minute
)

// ResponseCache is a cache-aside layer for answers. A nil repository or a
// failing backend behaves as a permanent miss and writes become no-ops.
type ResponseCache struct {
	repo           repositories.ResponseCacheRepository
	embeddingModel string
	collection     string
	logger         *log.Logger
}

// NewResponseCache creates a cache scoped to an embedding model and collection,
// so answers never leak across a re-index with a different model.
func NewResponseCache(repo repositories.ResponseCacheRepository, embeddingModel, collection string, logger *log.Logger) *ResponseCache {
	return &ResponseCache{
		repo:           repo,
		embeddingModel: embeddingModel,
		collection:     collection,
		logger:         logger,
	}
}

// Key returns the storage key for a normalized query
func (c *ResponseCache) Key(normalizedQuery string) string {
	sum := sha256.Sum256([]byte(normalizedQuery + "|" + c.embeddingModel + "|" + c.collection))
	return responseCacheKeyPrefix + hex.EncodeToString(sum[:])
}

// Get returns the cached answer, if any
func (c *ResponseCache) Get(ctx context.Context, normalizedQuery string) (string, bool) {
	if c == nil || c.repo == nil {
		return "", false
	}

	val, err := c.repo.Get(ctx, c.Key(normalizedQuery))
	if err != nil {
		if !errors.Is(err, repositories.ErrCacheMiss) {
			c.logger.Printf("Cache read failed, treating as miss: %v", err)
		}
		return "", false
	}
	return val, true
}

// Put stores an answer for ttl. Empty answers are not cached.
func (c *ResponseCache) Put(ctx context.Context, normalizedQuery, answer string, ttl time.Duration) {
	if c == nil || c.repo == nil || answer == "" || ttl <= 0 {
		return
	}

	if err := c.repo.Set(ctx, c.Key(normalizedQuery), answer, ttl); err != nil {
		c.logger.Printf("Cache write failed, ignoring: %v", err)
	}
}
