package services

import (
	"context"
	"log"
	"time"

	"campus-rag/internal/models"
	"campus-rag/internal/repositories"
)

const (
	DefaultHistoryCapacity = 10
	DefaultHistoryTTL      = 30 * time.Minute
	DefaultPromptTurns     = 5
)

// ConversationHistory keeps per-user turns for prompt context. A nil
// repository or a failing backend means writes are dropped and reads are empty.
type ConversationHistory struct {
	repo     repositories.ConversationRepository
	capacity int
	ttl      time.Duration
	now      func() time.Time
	logger   *log.Logger
}

// NewConversationHistory creates a history service
func NewConversationHistory(repo repositories.ConversationRepository, capacity int, ttl time.Duration, logger *log.Logger) *ConversationHistory {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	if ttl <= 0 {
		ttl = DefaultHistoryTTL
	}
	return &ConversationHistory{
		repo:     repo,
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
		logger:   logger,
	}
}

// Append records a turn for userID
func (h *ConversationHistory) Append(ctx context.Context, userID, userMessage, aiMessage string) {
	if h == nil || h.repo == nil || userID == "" {
		return
	}

	turn := models.ConversationTurn{
		UserMessage: userMessage,
		AIMessage:   aiMessage,
		Timestamp:   h.now().UTC(),
	}
	if err := h.repo.Append(ctx, userID, turn, h.capacity, h.ttl); err != nil {
		h.logger.Printf("History write failed for %s, ignoring: %v", userID, err)
	}
}

// Recent returns up to limit turns for userID, oldest first
func (h *ConversationHistory) Recent(ctx context.Context, userID string, limit int) []models.ConversationTurn {
	if h == nil || h.repo == nil || userID == "" || limit <= 0 {
		return []models.ConversationTurn{}
	}

	turns, err := h.repo.Recent(ctx, userID, limit)
	if err != nil {
		h.logger.Printf("History read failed for %s, continuing without: %v", userID, err)
		return []models.ConversationTurn{}
	}
	return turns
}
