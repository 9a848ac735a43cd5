package models

import "github.com/tmc/langchaingo/schema"

// SourceCitation points the user at a document that backed the answer.
// Text holds the origin locator (URL or path), Metadata.Source the label shown
// to the user.
type SourceCitation struct {
	Text     string           `json:"text"`
	Metadata CitationMetadata `json:"metadata"`
}

// CitationMetadata carries the display label of a citation.
type CitationMetadata struct {
	Source string `json:"source"`
}

// QAResult is what the retrieval-QA pipeline produces for one query.
type QAResult struct {
	Text            string
	SourceDocuments []schema.Document
}

// ChatResult is the outcome of one chat request before it is serialized.
type ChatResult struct {
	Query   string
	Text    string
	Sources []SourceCitation
}
