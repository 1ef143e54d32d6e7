package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"campus-rag/internal/models"
)

const healthCheckTimeout = 3 * time.Second

// HealthCheck probes one dependency
type HealthCheck func(ctx context.Context) error

// RuntimeStatus reports the state of the lazily built runtime
type RuntimeStatus interface {
	Status() string
}

// HealthHandler reports dependency status
type HealthHandler struct {
	redisCheck  HealthCheck
	vectorCheck HealthCheck
	runtime     RuntimeStatus
	logger      *log.Logger
}

// NewHealthHandler creates a health handler. A nil redisCheck reports Redis
// as disabled.
func NewHealthHandler(redisCheck, vectorCheck HealthCheck, runtime RuntimeStatus, logger *log.Logger) *HealthHandler {
	return &HealthHandler{
		redisCheck:  redisCheck,
		vectorCheck: vectorCheck,
		runtime:     runtime,
		logger:      logger,
	}
}

// Health reports service health
// @Summary Health check
// @Description Reports vector index, Redis and runtime status. Only the vector index is required for a healthy result.
// @Tags general
// @Produce json
// @Success 200 {object} models.HealthResponse
// @Failure 503 {object} models.HealthResponse
// @Router /health [get]
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	resp := models.HealthResponse{
		Status:      "healthy",
		Redis:       "disabled",
		VectorIndex: "ok",
		Runtime:     "pending",
		Timestamp:   time.Now().UTC(),
	}

	if h.redisCheck != nil {
		resp.Redis = "ok"
		if err := h.redisCheck(ctx); err != nil {
			h.logger.Printf("Health: Redis check failed: %v", err)
			resp.Redis = "down"
		}
	}

	if h.vectorCheck == nil {
		resp.VectorIndex = "down"
	} else if err := h.vectorCheck(ctx); err != nil {
		h.logger.Printf("Health: vector index check failed: %v", err)
		resp.VectorIndex = "down"
	}

	if h.runtime != nil {
		resp.Runtime = h.runtime.Status()
	}

	status := http.StatusOK
	if resp.VectorIndex != "ok" {
		resp.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, resp, h.logger)
}
