package routes

import (
	"net/http"

	"campus-rag/internal/handlers"

	"github.com/gorilla/mux"
)

// Handlers holds all HTTP handlers
type Handlers struct {
	Ask    *handlers.AskHandler
	Health *handlers.HealthHandler
}

// RegisterRoutes sets up all application routes
func RegisterRoutes(router *mux.Router, h *Handlers) {
	// Health endpoints
	router.HandleFunc("/health", h.Health.Health).Methods(http.MethodGet)

	// Question answering
	router.HandleFunc("/ask", h.Ask.Ask).Methods(http.MethodPost, http.MethodOptions)
}
