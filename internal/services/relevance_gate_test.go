package services

import (
	"testing"

	"campus-rag/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestApplyRelevanceGate(t *testing.T) {
	tests := []struct {
		name         string
		chunks       []models.RetrievedChunk
		threshold    float64
		wantContext  string
		wantExternal bool
		wantRelevant int
	}{
		{
			name:         "no chunks",
			chunks:       nil,
			threshold:    0.75,
			wantExternal: true,
		},
		{
			name: "all below threshold",
			chunks: []models.RetrievedChunk{
				{Text: "a", Score: 0.5},
				{Text: "b", Score: 0.3},
			},
			threshold:    0.75,
			wantExternal: true,
		},
		{
			name: "score equal to threshold is rejected",
			chunks: []models.RetrievedChunk{
				{Text: "edge", Score: 0.75},
			},
			threshold:    0.75,
			wantExternal: true,
		},
		{
			name: "mixed keeps order of relevant chunks",
			chunks: []models.RetrievedChunk{
				{Text: "Pendaftaran dibuka Mei.", Score: 0.92},
				{Text: "Biaya UKT bervariasi.", Score: 0.81},
				{Text: "Tidak relevan.", Score: 0.40},
			},
			threshold:    0.8,
			wantContext:  "Pendaftaran dibuka Mei.\nBiaya UKT bervariasi.",
			wantRelevant: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := ApplyRelevanceGate(tt.chunks, tt.threshold)

			assert.Equal(t, tt.wantContext, d.ContextText)
			assert.Equal(t, tt.wantExternal, d.UseExternalSearch)
			assert.Len(t, d.Relevant, tt.wantRelevant)
		})
	}
}
