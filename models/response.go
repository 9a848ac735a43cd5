package models

// ChatResponse is the structured body returned by /api/v1/chat and by the
// legacy endpoint when RESPONSE_FORMAT=json.
type ChatResponse struct {
	Sources []SourceCitation `json:"sources"`
	Text    string           `json:"text"`
}

// ErrorResponse is returned for every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is returned by the health endpoints.
type HealthResponse struct {
	Status string `json:"status"`
}
