package services

import (
	"fmt"

	"github.com/tmc/langchaingo/schema"

	"github.com/ecoalerta/chat-backend/models"
	"github.com/ecoalerta/chat-backend/vectorstore"
)

// CitationKeyFunc returns the identity used to deduplicate citations.
type CitationKeyFunc func(models.SourceCitation) string

// CitationKeyByText identifies a citation by its origin locator.
func CitationKeyByText(c models.SourceCitation) string { return c.Text }

// CitationKeyBySource identifies a citation by its display label.
func CitationKeyBySource(c models.SourceCitation) string { return c.Metadata.Source }

// CitationKeyFuncFor resolves the CITATION_DEDUP_KEY setting.
func CitationKeyFuncFor(name string) (CitationKeyFunc, error) {
	switch name {
	case "", "text":
		return CitationKeyByText, nil
	case "source":
		return CitationKeyBySource, nil
	default:
		return nil, fmt.Errorf("unknown citation dedup key %q (want text or source)", name)
	}
}

// ToCitation maps a retrieved chunk to the citation shown to the user.
func ToCitation(doc schema.Document) models.SourceCitation {
	locator := firstString(doc.Metadata, vectorstore.MetadataSource, "url", vectorstore.MetadataID)
	label := firstString(doc.Metadata, vectorstore.MetadataTitle, "name")
	if label == "" {
		label = locator
	}
	return models.SourceCitation{
		Text:     locator,
		Metadata: models.CitationMetadata{Source: label},
	}
}

func ToCitations(docs []schema.Document) []models.SourceCitation {
	out := make([]models.SourceCitation, 0, len(docs))
	for _, doc := range docs {
		out = append(out, ToCitation(doc))
	}
	return out
}

// DedupCitations keeps the first citation for each key, in order. The
// result is never nil so it always encodes as a JSON array.
func DedupCitations(citations []models.SourceCitation, key CitationKeyFunc) []models.SourceCitation {
	if key == nil {
		key = CitationKeyByText
	}
	seen := make(map[string]struct{}, len(citations))
	out := make([]models.SourceCitation, 0, len(citations))
	for _, c := range citations {
		k := key(c)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, c)
	}
	return out
}

func firstString(metadata map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := metadata[k]; ok && v != nil {
			if s := fmt.Sprint(v); s != "" {
				return s
			}
		}
	}
	return ""
}
