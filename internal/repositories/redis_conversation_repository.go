package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"campus-rag/internal/models"

	"github.com/redis/go-redis/v9"
)

const conversationKeyPrefix = "chat:"

// ConversationRepository keeps a bounded, expiring list of turns per user
type ConversationRepository interface {
	Append(ctx context.Context, userID string, turn models.ConversationTurn, capacity int, ttl time.Duration) error
	Recent(ctx context.Context, userID string, limit int) ([]models.ConversationTurn, error)
	Clear(ctx context.Context, userID string) error
}

// RedisConversationRepository stores turns in a Redis list, newest at the head
type RedisConversationRepository struct {
	client *redis.Client
}

// NewRedisConversationRepository creates a new Redis-based conversation store
func NewRedisConversationRepository(client *redis.Client) *RedisConversationRepository {
	return &RedisConversationRepository{
		client: client,
	}
}

func conversationKey(userID string) string {
	return conversationKeyPrefix + userID
}

// Append pushes a turn, trims the list to capacity and refreshes its expiry
// in one MULTI block.
func (r *RedisConversationRepository) Append(ctx context.Context, userID string, turn models.ConversationTurn, capacity int, ttl time.Duration) error {
	if userID == "" {
		return fmt.Errorf("append: user id is required")
	}
	if capacity <= 0 {
		return fmt.Errorf("append: capacity must be positive")
	}

	data, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("append: failed to marshal turn: %w", err)
	}

	key := conversationKey(userID)
	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, int64(capacity-1))
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append: %w", err)
	}
	return nil
}

// Recent returns up to limit of the newest turns, ordered oldest first.
// Entries that fail to decode are skipped.
func (r *RedisConversationRepository) Recent(ctx context.Context, userID string, limit int) ([]models.ConversationTurn, error) {
	if limit <= 0 {
		return []models.ConversationTurn{}, nil
	}

	raw, err := r.client.LRange(ctx, conversationKey(userID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("recent: %w", err)
	}

	turns := make([]models.ConversationTurn, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var turn models.ConversationTurn
		if err := json.Unmarshal([]byte(raw[i]), &turn); err != nil {
			continue
		}
		turns = append(turns, turn)
	}

	return turns, nil
}

// Clear drops a user's history
func (r *RedisConversationRepository) Clear(ctx context.Context, userID string) error {
	return r.client.Del(ctx, conversationKey(userID)).Err()
}
