package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"campus-rag/internal/middleware"
	"campus-rag/internal/models"
	"campus-rag/internal/repositories"
	"campus-rag/internal/services"
)

const (
	maxAskBodyBytes = 8 << 10

	msgInvalidBody        = "Format permintaan tidak valid."
	msgRateLimited        = "Terlalu banyak permintaan. Silakan coba lagi nanti."
	msgServiceUnavailable = "Sistem sedang mengalami gangguan sementara. Mohon coba lagi dalam beberapa saat."
	msgInternalError      = "Terjadi gangguan teknis. Tim sedang memperbaiki."
)

// Asker answers a question for a user
type Asker interface {
	Ask(ctx context.Context, userID, rawQuery string) (*services.AskResult, error)
}

// QueryValidator rejects malformed questions before they are counted
// against the rate limit
type QueryValidator interface {
	Validate(raw string) error
}

// AskHandler handles HTTP requests for the question-answering endpoint
type AskHandler struct {
	askService Asker
	validator  QueryValidator
	limiter    repositories.RateLimiter
	logger     *log.Logger
}

// NewAskHandler creates a new ask handler. A nil validator or limiter is
// skipped.
func NewAskHandler(askService Asker, validator QueryValidator, limiter repositories.RateLimiter, logger *log.Logger) *AskHandler {
	return &AskHandler{
		askService: askService,
		validator:  validator,
		limiter:    limiter,
		logger:     logger,
	}
}

// Ask answers a question about UIN Salatiga
// @Summary Ask the campus assistant
// @Description Answers a question from the knowledge base, falling back to live web search when no document is relevant
// @Tags ask
// @Accept json
// @Produce json
// @Param request body models.AskRequest true "Question"
// @Success 200 {object} models.AskResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 429 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /ask [post]
func (h *AskHandler) Ask(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	h.logger.Printf("Ask request from %s (user: %s)", r.RemoteAddr, userID)

	var req models.AskRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAskBodyBytes)).Decode(&req); err != nil {
		h.logger.Printf("Failed to decode request: %v", err)
		h.sendError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	if h.validator != nil {
		if err := h.validator.Validate(req.Query); err != nil {
			status, message := mapAskError(err)
			h.sendError(w, status, message)
			return
		}
	}

	if !h.allow(r) {
		h.sendError(w, http.StatusTooManyRequests, msgRateLimited)
		return
	}

	result, err := h.askService.Ask(r.Context(), userID, req.Query)
	if err != nil {
		status, message := mapAskError(err)
		if status >= http.StatusInternalServerError {
			h.logger.Printf("Ask failed (%d): %v", status, err)
		}
		h.sendError(w, status, message)
		return
	}

	if result.Cached {
		w.Header().Set(middleware.CacheHitHeader, "true")
	}
	h.sendJSON(w, http.StatusOK, models.AskResponse{
		Answer: result.Answer,
		Cached: result.Cached,
	})
}

// allow counts the request against the caller's IP address. The cookie
// identity is not used because a client can drop it to get a new one. A
// failing limiter lets the request through.
func (h *AskHandler) allow(r *http.Request) bool {
	if h.limiter == nil {
		return true
	}

	ip := middleware.ClientIP(r)
	allowed, err := h.limiter.Allow(r.Context(), ip)
	if err != nil {
		h.logger.Printf("Rate limiter unavailable, allowing request: %v", err)
		return true
	}
	if !allowed {
		h.logger.Printf("Rate limit exceeded for %s", ip)
	}
	return allowed
}

// mapAskError turns a pipeline error into a status and a user-facing message
func mapAskError(err error) (int, string) {
	var vErr *services.ValidationError
	switch {
	case errors.As(err, &vErr):
		return http.StatusBadRequest, vErr.Message
	case errors.Is(err, services.ErrInvalidQuery):
		return http.StatusBadRequest, msgInvalidBody
	case errors.Is(err, services.ErrRuntimeUnavailable),
		errors.Is(err, services.ErrGenerationUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, msgServiceUnavailable
	default:
		return http.StatusInternalServerError, msgInternalError
	}
}

// Helper methods

func (h *AskHandler) sendJSON(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, data, h.logger)
}

func (h *AskHandler) sendError(w http.ResponseWriter, status int, message string) {
	h.sendJSON(w, status, models.ErrorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}, logger *log.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Printf("Failed to encode JSON: %v", err)
	}
}
