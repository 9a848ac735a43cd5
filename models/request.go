package models

// ChatRequest is the body accepted by the chat endpoints. Older clients send
// the image inside a "files" object; newer ones use the top-level field.
type ChatRequest struct {
	Message       string            `json:"message" binding:"required"`
	Image         string            `json:"image,omitempty"`
	Files         map[string]string `json:"files,omitempty"`
	AssistantName string            `json:"assistantName,omitempty"`
}

// ImagePayload returns the raw image payload, or "" when none was sent.
func (r ChatRequest) ImagePayload() string {
	if r.Image != "" {
		return r.Image
	}
	return r.Files["image"]
}
