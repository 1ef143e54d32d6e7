package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
)

// AskConfig holds pipeline tuning
type AskConfig struct {
	TopK               int
	RelevanceThreshold float64
	PromptTurns        int
	CacheTTL           time.Duration
	FallbackCacheTTL   time.Duration
	RetrievalTimeout   time.Duration
	GenerationTimeout  time.Duration
}

// DefaultAskConfig returns the production pipeline settings
func DefaultAskConfig() AskConfig {
	return AskConfig{
		TopK:               3,
		RelevanceThreshold: DefaultRelevanceThreshold,
		PromptTurns:        DefaultPromptTurns,
		CacheTTL:           DefaultCacheTTL,
		FallbackCacheTTL:   DefaultFallbackCacheTTL,
		RetrievalTimeout:   15 * time.Second,
		GenerationTimeout:  60 * time.Second,
	}
}

// AskResult is the outcome of one answered question
type AskResult struct {
	Answer             string
	Cached             bool
	UsedExternalSearch bool
	ContextChunks      int
}

// AskService runs the answer pipeline for a single question
type AskService struct {
	validator  *QueryValidator
	normalizer *QueryNormalizer
	cache      *ResponseCache
	history    *ConversationHistory
	runtime    RuntimeSource
	config     AskConfig
	logger     *log.Logger
}

// NewAskService creates a new ask service
func NewAskService(
	validator *QueryValidator,
	normalizer *QueryNormalizer,
	cache *ResponseCache,
	history *ConversationHistory,
	runtime RuntimeSource,
	config AskConfig,
	logger *log.Logger,
) *AskService {
	defaults := DefaultAskConfig()
	if config.TopK <= 0 {
		config.TopK = defaults.TopK
	}
	if config.PromptTurns <= 0 {
		config.PromptTurns = defaults.PromptTurns
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = defaults.CacheTTL
	}
	if config.FallbackCacheTTL <= 0 {
		config.FallbackCacheTTL = defaults.FallbackCacheTTL
	}
	if config.RetrievalTimeout <= 0 {
		config.RetrievalTimeout = defaults.RetrievalTimeout
	}
	if config.GenerationTimeout <= 0 {
		config.GenerationTimeout = defaults.GenerationTimeout
	}

	return &AskService{
		validator:  validator,
		normalizer: normalizer,
		cache:      cache,
		history:    history,
		runtime:    runtime,
		config:     config,
		logger:     logger,
	}
}

// Ask answers rawQuery for userID. Errors are ErrInvalidQuery,
// ErrRuntimeUnavailable or ErrGenerationUnavailable; nothing is cached or
// recorded in history when an error is returned.
func (s *AskService) Ask(ctx context.Context, userID, rawQuery string) (*AskResult, error) {
	startTime := time.Now()

	if err := s.validator.Validate(rawQuery); err != nil {
		return nil, err
	}
	query := strings.TrimSpace(rawQuery)
	normalized := s.normalizer.Normalize(query)

	if cached, ok := s.cache.Get(ctx, normalized); ok {
		s.logger.Printf("Cache hit for %q", normalized)
		s.history.Append(ctx, userID, query, cached)
		return &AskResult{Answer: cached, Cached: true}, nil
	}

	rt, err := s.runtime.Get(ctx)
	if err != nil {
		return nil, err
	}

	historyText := FormatHistory(s.history.Recent(ctx, userID, s.config.PromptTurns))

	retrievalCtx, cancelRetrieval := context.WithTimeout(ctx, s.config.RetrievalTimeout)
	chunks := rt.Retriever.Retrieve(retrievalCtx, query, s.config.TopK)
	cancelRetrieval()

	decision := ApplyRelevanceGate(chunks, s.config.RelevanceThreshold)
	if decision.UseExternalSearch {
		s.logger.Printf("No chunk above %.2f among %d retrieved, enabling web search", s.config.RelevanceThreshold, len(chunks))
	} else {
		s.logger.Printf("Using %d relevant chunks as context, web search disabled", len(decision.Relevant))
	}

	systemPrompt, userPrompt := BuildPrompt(query, decision.ContextText, historyText)

	generationCtx, cancelGeneration := context.WithTimeout(ctx, s.config.GenerationTimeout)
	answer, err := rt.Orchestrator.Answer(generationCtx, systemPrompt, userPrompt, decision.UseExternalSearch)
	cancelGeneration()
	if err != nil {
		return nil, fmt.Errorf("answer %q: %w", normalized, err)
	}

	// Answers built without knowledge-base context age out quickly
	ttl := s.config.CacheTTL
	if decision.UseExternalSearch || isUngroundedAnswer(answer) {
		ttl = s.config.FallbackCacheTTL
	}
	s.cache.Put(ctx, normalized, answer, ttl)
	s.history.Append(ctx, userID, query, answer)

	s.logger.Printf("Answered %q in %.2fms (chunks: %d, web search: %v)",
		normalized, time.Since(startTime).Seconds()*1000, len(decision.Relevant), decision.UseExternalSearch)

	return &AskResult{
		Answer:             answer,
		UsedExternalSearch: decision.UseExternalSearch,
		ContextChunks:      len(decision.Relevant),
	}, nil
}

// isUngroundedAnswer reports fallback and "no information" replies, which
// are cached briefly so fresh knowledge-base content shows up soon.
func isUngroundedAnswer(answer string) bool {
	return answer == FallbackAnswer || strings.Contains(answer, "tidak menyajikan informasi")
}
