package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ecoalerta/chat-backend/models"
)

// ResponseFormat selects how the legacy chat endpoint serializes results.
type ResponseFormat string

const (
	// FormatMarkers wraps the sources JSON in marker tokens, then the answer.
	FormatMarkers ResponseFormat = "markers"
	// FormatPlain is the sources JSON immediately followed by the answer.
	FormatPlain ResponseFormat = "plain"
	// FormatJSON is the structured {sources, text} object.
	FormatJSON ResponseFormat = "json"
)

const (
	SourcesStartMarker = "START_SOURCES_STRING"
	SourcesEndMarker   = "END_SOURCES_STRING"
)

// Inside the sources JSON a marker's first letter is written as a \u escape,
// which decodes to the same string but never matches the raw token.
var (
	jsonMarkerEscaper = strings.NewReplacer(
		SourcesStartMarker, `\u0053`+SourcesStartMarker[1:],
		SourcesEndMarker, `\u0045`+SourcesEndMarker[1:],
	)
	markerStripper = strings.NewReplacer(SourcesStartMarker, "", SourcesEndMarker, "")
)

func ParseResponseFormat(s string) (ResponseFormat, error) {
	switch f := ResponseFormat(strings.ToLower(s)); f {
	case FormatMarkers, FormatPlain, FormatJSON:
		return f, nil
	case "":
		return FormatMarkers, nil
	default:
		return "", fmt.Errorf("unknown response format %q", s)
	}
}

// FormatTextResponse renders result as the single string expected by legacy
// clients. FormatJSON is not a text format and is rejected. In the markers
// format each marker appears exactly once: marker tokens inside citations are
// JSON-escaped and marker tokens in the answer text are removed.
func FormatTextResponse(format ResponseFormat, result *models.ChatResult) (string, error) {
	sources, err := encodeSources(result.Sources)
	if err != nil {
		return "", err
	}
	switch format {
	case FormatMarkers:
		sources = jsonMarkerEscaper.Replace(sources)
		return SourcesStartMarker + sources + SourcesEndMarker + stripMarkers(result.Text), nil
	case FormatPlain:
		return sources + result.Text, nil
	default:
		return "", fmt.Errorf("format %q is not a text format", format)
	}
}

// ToChatResponse builds the structured response body.
func ToChatResponse(result *models.ChatResult) models.ChatResponse {
	sources := result.Sources
	if sources == nil {
		sources = []models.SourceCitation{}
	}
	return models.ChatResponse{Sources: sources, Text: result.Text}
}

// stripMarkers repeats until removing a token cannot join two halves into a new one.
func stripMarkers(text string) string {
	for strings.Contains(text, SourcesStartMarker) || strings.Contains(text, SourcesEndMarker) {
		text = markerStripper.Replace(text)
	}
	return text
}

func encodeSources(sources []models.SourceCitation) (string, error) {
	if sources == nil {
		sources = []models.SourceCitation{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(sources); err != nil {
		return "", fmt.Errorf("failed to encode sources: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
