package services

import (
	"strings"

	"campus-rag/internal/models"
)

// DefaultRelevanceThreshold is the minimum similarity (exclusive) for a
// chunk to count as grounding context.
const DefaultRelevanceThreshold = 0.75

// GateDecision is the outcome of the relevance gate
type GateDecision struct {
	ContextText       string
	UseExternalSearch bool
	Relevant          []models.RetrievedChunk
}

// ApplyRelevanceGate keeps chunks scoring strictly above threshold. If any
// survive their texts are joined with newlines in the given order; otherwise
// the caller should augment with external search.
func ApplyRelevanceGate(chunks []models.RetrievedChunk, threshold float64) GateDecision {
	relevant := make([]models.RetrievedChunk, 0, len(chunks))
	texts := make([]string, 0, len(chunks))

	for _, c := range chunks {
		if c.Score > threshold {
			relevant = append(relevant, c)
			texts = append(texts, c.Text)
		}
	}

	if len(relevant) == 0 {
		return GateDecision{UseExternalSearch: true, Relevant: relevant}
	}

	return GateDecision{
		ContextText: strings.Join(texts, "\n"),
		Relevant:    relevant,
	}
}
