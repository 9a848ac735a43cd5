package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/schema"

	"github.com/ecoalerta/chat-backend/models"
)

func citation(text, source string) models.SourceCitation {
	return models.SourceCitation{Text: text, Metadata: models.CitationMetadata{Source: source}}
}

func TestDedupCitationsKeepsFirstSeenOrder(t *testing.T) {
	in := []models.SourceCitation{citation("A", "X"), citation("A", "X"), citation("B", "Y")}

	for _, key := range []CitationKeyFunc{CitationKeyByText, CitationKeyBySource} {
		out := DedupCitations(in, key)
		assert.Equal(t, []models.SourceCitation{citation("A", "X"), citation("B", "Y")}, out)
	}
}

func TestDedupCitationsKeyChoiceMatters(t *testing.T) {
	in := []models.SourceCitation{citation("A", "X"), citation("B", "X"), citation("A", "Y")}

	byText := DedupCitations(in, CitationKeyByText)
	assert.Equal(t, []models.SourceCitation{citation("A", "X"), citation("B", "X")}, byText)

	bySource := DedupCitations(in, CitationKeyBySource)
	assert.Equal(t, []models.SourceCitation{citation("A", "X"), citation("A", "Y")}, bySource)
}

func TestDedupCitationsEmpty(t *testing.T) {
	out := DedupCitations(nil, nil)
	require.NotNil(t, out)
	assert.Empty(t, out)
}

func TestToCitation(t *testing.T) {
	tests := []struct {
		name     string
		metadata map[string]any
		want     models.SourceCitation
	}{
		{
			name:     "source and title",
			metadata: map[string]any{"source": "https://gov.example/lei", "title": "Lei de Crimes Ambientais"},
			want:     citation("https://gov.example/lei", "Lei de Crimes Ambientais"),
		},
		{
			name:     "label falls back to locator",
			metadata: map[string]any{"source": "docs/manual.pdf"},
			want:     citation("docs/manual.pdf", "docs/manual.pdf"),
		},
		{
			name:     "url and name",
			metadata: map[string]any{"url": "https://x.example", "name": "X"},
			want:     citation("https://x.example", "X"),
		},
		{
			name:     "document id as last resort",
			metadata: map[string]any{"id": "abc123"},
			want:     citation("abc123", "abc123"),
		},
		{
			name:     "no metadata",
			metadata: nil,
			want:     citation("", ""),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToCitation(schema.Document{Metadata: tt.metadata}))
		})
	}
}

func TestCitationKeyFuncFor(t *testing.T) {
	key, err := CitationKeyFuncFor("text")
	require.NoError(t, err)
	assert.Equal(t, "A", key(citation("A", "X")))

	key, err = CitationKeyFuncFor("source")
	require.NoError(t, err)
	assert.Equal(t, "X", key(citation("A", "X")))

	_, err = CitationKeyFuncFor("checksum")
	assert.Error(t, err)
}
