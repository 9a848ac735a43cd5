package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"
	"google.golang.org/genai"

	"github.com/ecoalerta/chat-backend/models"
)

// ImageDescriber turns an image into a short text description that can be
// appended to a retrieval query.
type ImageDescriber interface {
	DescribeImage(ctx context.Context, image *models.ImageInput) (string, error)
}

var errEmptyDescription = errors.New("vision model returned no description")

// OpenAIDescriber sends the image to an OpenAI-compatible vision model.
type OpenAIDescriber struct {
	llm    llms.Model
	prompt string
}

func NewOpenAIDescriber(llm llms.Model, prompt string) *OpenAIDescriber {
	return &OpenAIDescriber{llm: llm, prompt: prompt}
}

func (d *OpenAIDescriber) DescribeImage(ctx context.Context, image *models.ImageInput) (string, error) {
	log.Debugf("VISION: Describing image (%s, remote=%t)", image.MIMEType, image.IsRemote())

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, d.prompt),
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.ImageURLPart(image.DataURI())},
		},
	}
	resp, err := d.llm.GenerateContent(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("vision model call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errEmptyDescription
	}

	description := strings.TrimSpace(resp.Choices[0].Content)
	if description == "" {
		return "", errEmptyDescription
	}
	return description, nil
}

// GeminiDescriber sends the image to a Gemini model.
type GeminiDescriber struct {
	client *genai.Client
	model  string
	prompt string
}

func NewGeminiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return client, nil
}

func NewGeminiDescriber(client *genai.Client, model, prompt string) *GeminiDescriber {
	return &GeminiDescriber{client: client, model: model, prompt: prompt}
}

func (d *GeminiDescriber) DescribeImage(ctx context.Context, image *models.ImageInput) (string, error) {
	log.Debugf("VISION: Describing image with Gemini (%s, remote=%t)", image.MIMEType, image.IsRemote())

	result, err := d.client.Models.GenerateContent(ctx, d.model,
		[]*genai.Content{{Role: "user", Parts: []*genai.Part{geminiImagePart(image)}}},
		&genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: d.prompt}}},
		},
	)
	if err != nil {
		return "", fmt.Errorf("gemini api call failed: %w", err)
	}
	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return "", errEmptyDescription
	}

	var sb strings.Builder
	for _, p := range result.Candidates[0].Content.Parts {
		if p.Text != "" {
			sb.WriteString(p.Text)
		}
	}
	description := strings.TrimSpace(sb.String())
	if description == "" {
		return "", errEmptyDescription
	}
	return description, nil
}

func geminiImagePart(image *models.ImageInput) *genai.Part {
	if image.IsRemote() {
		mimeType := image.MIMEType
		if mimeType == "" {
			mimeType = "image/jpeg"
		}
		return &genai.Part{FileData: &genai.FileData{FileURI: image.URL, MIMEType: mimeType}}
	}
	return &genai.Part{InlineData: &genai.Blob{MIMEType: image.MIMEType, Data: image.Data}}
}
