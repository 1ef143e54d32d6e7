package models

import "time"

// AskRequest is the body of POST /ask
type AskRequest struct {
	Query string `json:"query"` // The user's question, 3..500 characters
}

// AskResponse is returned for a successfully answered question
type AskResponse struct {
	Answer string `json:"answer"`
	Cached bool   `json:"cached,omitempty"`
}

// ErrorResponse is returned for every non-2xx answer from the API
type ErrorResponse struct {
	Error string `json:"error"`
}

// ConversationTurn is one user message and the assistant's reply
type ConversationTurn struct {
	UserMessage string    `json:"user"`
	AIMessage   string    `json:"ai"`
	Timestamp   time.Time `json:"ts"`
}

// HealthResponse reports dependency status for GET /health
type HealthResponse struct {
	Status      string    `json:"status"`       // "healthy" or "unhealthy"
	Redis       string    `json:"redis"`        // "ok", "down" or "disabled"
	VectorIndex string    `json:"vector_index"` // "ok" or "down"
	Runtime     string    `json:"runtime"`      // "ready", "pending" or "failed"
	Timestamp   time.Time `json:"timestamp"`
}
