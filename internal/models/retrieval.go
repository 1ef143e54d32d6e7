package models

// Query pairs the raw user text with its normalized form
type Query struct {
	Raw        string
	Normalized string
}

// RetrievedChunk is a knowledge-base passage ranked against a query.
// Score is the cosine similarity recomputed from Vector, higher is better.
type RetrievedChunk struct {
	Text   string    `json:"text"`
	Score  float64   `json:"score"`
	Vector []float32 `json:"-"`
}

// SearchToolResult is the structured payload handed back to the model after
// a web_search tool call. Exactly one of Status or Error is set.
type SearchToolResult struct {
	Status  string          `json:"status,omitempty"` // "success" or "not_found"
	Results []SearchSnippet `json:"results,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// SearchSnippet is a single web search hit
type SearchSnippet struct {
	Snippet     string `json:"snippet"`
	SourceTitle string `json:"source_title"`
	URL         string `json:"url"`
}

const (
	SearchStatusSuccess  = "success"
	SearchStatusNotFound = "not_found"
)
